// Package bridge runs the pretrained mesh and shape models in a Python service process and
// exchanges frames with it over stdin/stdout.
package bridge

import (
	"bufio"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ayusman/landmarker/internal/landmark"
)

// ScriptName is the service script looked up when Config.Script is empty.
const ScriptName = "landmark_service.py"

// DefaultIdleTimeout is how long an unused service process is kept alive.
const DefaultIdleTimeout = 30 * time.Second

// SolutionShape selects the dlib 68-point shape predictor.
const SolutionShape landmark.Solution = "shape"

var (
	// ErrScriptNotFound is returned when the service script cannot be located.
	ErrScriptNotFound = errors.New(ScriptName + " not found")
	// ErrService wraps an error reported by the service itself.
	ErrService = errors.New("landmark service error")
	// ErrMessageTooLarge is returned when a service reply exceeds the message limit.
	ErrMessageTooLarge = errors.New("landmark service reply too large")
)

// Config describes the service process.
type Config struct {
	Script      string // service script, looked up when empty
	Python      string // interpreter, venv or python3 when empty
	Solution    landmark.Solution
	Options     landmark.Options
	Model       string // model file, required for SolutionShape
	IdleTimeout time.Duration
	Logger      *logrus.Logger
}

// launcher starts the service and returns its stdin, its stdout and a wait function.
type launcher func() (io.WriteCloser, io.ReadCloser, func() error, error)

// Client talks to one service process. The process is started lazily on the first request and
// stopped by Close or after IdleTimeout without requests.
type Client struct {
	config    Config
	script    string
	launch    launcher
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	stdoutCl  io.Closer
	wait      func() error
	mu        sync.Mutex
	started   bool
	idleTimer *time.Timer
}

// New validates cfg and locates the service script. No process is started.
func New(cfg Config) (*Client, error) {
	switch cfg.Solution {
	case landmark.SolutionFaceMesh, landmark.SolutionHands:
		if cfg.Options.MaxSubjects < 1 {
			return nil, fmt.Errorf("max subjects must be at least 1, got %d", cfg.Options.MaxSubjects)
		}
	case SolutionShape:
		if cfg.Model == "" {
			return nil, errors.New("shape solution requires a model file")
		}
	default:
		return nil, fmt.Errorf("unknown solution %q", cfg.Solution)
	}

	script := cfg.Script
	if script == "" {
		script = findScript()
	} else if _, err := os.Stat(script); err != nil {
		script = ""
	}
	if script == "" {
		return nil, ErrScriptNotFound
	}

	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	c := &Client{config: cfg, script: script}
	c.launch = c.startProcess
	return c, nil
}

// Args returns the command line passed to the service script.
func (c *Client) Args() []string {
	args := []string{c.script, "--solution", string(c.config.Solution)}
	if c.config.Solution != SolutionShape {
		args = append(args,
			"--max", strconv.Itoa(c.config.Options.MaxSubjects),
			"--min-detection", strconv.FormatFloat(c.config.Options.MinDetection, 'f', -1, 64),
			"--min-tracking", strconv.FormatFloat(c.config.Options.MinTracking, 'f', -1, 64),
		)
	}
	if c.config.Model != "" {
		args = append(args, "--model", c.config.Model)
	}
	return args
}

// Process sends an RGB frame to a mesh solution and returns the subjects it found.
// The frame bytes are sent in the channel order given.
func (c *Client) Process(rgb *gocv.Mat) ([]landmark.Subject, error) {
	resp, err := c.roundTrip(request{Op: opMesh}, rgb)
	if err != nil {
		return nil, err
	}
	return resp.Subjects, nil
}

// Predict sends a grayscale frame and a face rectangle to the shape solution and returns the
// predicted points in pixel coordinates.
func (c *Client) Predict(gray *gocv.Mat, face image.Rectangle) ([]image.Point, error) {
	req := request{Op: opShape, Rect: []int{face.Min.X, face.Min.Y, face.Max.X, face.Max.Y}}
	resp, err := c.roundTrip(req, gray)
	if err != nil {
		return nil, err
	}
	if len(resp.Subjects) == 0 {
		return nil, nil
	}

	points := make([]image.Point, len(resp.Subjects[0].Points))
	for i, p := range resp.Subjects[0].Points {
		points[i] = image.Pt(int(p.X), int(p.Y))
	}
	return points, nil
}

// Close shuts down the service process.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shutdown()
}

func (c *Client) roundTrip(req request, frame *gocv.Mat) (response, error) {
	if frame == nil || frame.Empty() {
		return response{}, errors.New("empty frame")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ensureStarted(); err != nil {
		return response{}, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return response{}, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	if err := writeRequest(c.stdin, req, buf.GetBytes()); err != nil {
		c.abort(err)
		return response{}, err
	}

	resp, err := readResponse(c.stdout, maxMessage)
	if err != nil {
		// A service-side error leaves the stream in step. Anything else may leave a reply
		// unread, so the process is replaced on the next request.
		if !errors.Is(err, ErrService) {
			c.abort(err)
		}
		return response{}, err
	}

	c.resetIdleTimer()
	return resp, nil
}

func (c *Client) ensureStarted() error {
	if c.started {
		return nil
	}

	stdin, stdout, wait, err := c.launch()
	if err != nil {
		return err
	}

	c.stdin = stdin
	c.stdout = bufio.NewReader(stdout)
	c.stdoutCl = stdout
	c.wait = wait
	c.started = true

	c.config.Logger.WithField("solution", c.config.Solution).Debug("landmark service started")
	return nil
}

func (c *Client) startProcess() (io.WriteCloser, io.ReadCloser, func() error, error) {
	python := c.config.Python
	if python == "" {
		python = findVenvPython()
	}
	if python == "" {
		python = "python3"
	}

	cmd := exec.Command(python, c.Args()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	stderr := c.config.Logger.WriterLevel(logrus.DebugLevel)
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stderr.Close()
		return nil, nil, nil, fmt.Errorf("start landmark service: %w", err)
	}

	wait := func() error {
		defer stderr.Close()
		return cmd.Wait()
	}
	return stdin, stdout, wait, nil
}

func (c *Client) shutdown() error {
	if !c.started {
		return nil
	}

	if c.idleTimer != nil {
		c.idleTimer.Stop()
		c.idleTimer = nil
	}

	if c.stdin != nil {
		c.stdin.Close()
	}
	if c.stdoutCl != nil {
		c.stdoutCl.Close()
	}

	err := c.wait()
	c.started = false
	c.stdin = nil
	c.stdout = nil
	c.stdoutCl = nil
	c.wait = nil

	c.config.Logger.WithField("solution", c.config.Solution).Debug("landmark service stopped")
	return err
}

// abort stops a service whose stream can no longer be trusted. The caller holds c.mu.
func (c *Client) abort(cause error) {
	log := c.config.Logger.WithField("solution", c.config.Solution).WithError(cause)
	log.Warn("landmark service stream broken, restarting on next request")
	if err := c.shutdown(); err != nil {
		log.WithField("exit", err.Error()).Debug("landmark service exited with error")
	}
}

func (c *Client) resetIdleTimer() {
	if c.idleTimer != nil {
		c.idleTimer.Stop()
	}
	c.idleTimer = time.AfterFunc(c.config.IdleTimeout, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := c.shutdown(); err != nil {
			c.config.Logger.WithError(err).Warn("idle landmark service exited with error")
		}
	})
}

// Started reports whether the service process is running.
func (c *Client) Started() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

func findScript() string {
	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	return firstExisting(
		filepath.Join("scripts", ScriptName),
		filepath.Join("..", "scripts", ScriptName),
		filepath.Join(execDir, "scripts", ScriptName),
		filepath.Join(os.Getenv("HOME"), ".landmarker", "scripts", ScriptName),
	)
}

// findVenvPython looks for a Python interpreter in a virtual environment next to the project.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	return firstExisting(
		"venv/bin/python",
		"../venv/bin/python",
		"../../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".landmarker/venv/bin/python"),
	)
}

func firstExisting(candidates ...string) string {
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}
