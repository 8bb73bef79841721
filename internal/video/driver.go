// Package video runs a landmarker over every frame of a capture stream.
package video

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/landmarker/internal/capture"
	"github.com/ayusman/landmarker/internal/landmark"
)

const (
	DefaultMinDetection = 0.6
	DefaultMinTracking  = 0.6
	// KeyDelayMs is how long each iteration waits for a key press.
	KeyDelayMs = 10
)

// ErrInvalidStream is returned for a stream identifier that is not a non-negative integer.
var ErrInvalidStream = errors.New("invalid stream identifier")

// ParseStreamID parses a capture device index.
func ParseStreamID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || id < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidStream, s)
	}
	return id, nil
}

// Config selects the part to landmark and the model settings.
type Config struct {
	Part            Part
	MaxSubjects     int
	MinDetection    float64
	MinTracking     float64
	Stream          int
	MotionThreshold float64 // percent of changed pixels; 0 disables the motion gate
}

// DefaultConfig returns the settings for part with one subject.
func DefaultConfig(part Part) Config {
	return Config{
		Part:         part,
		MaxSubjects:  1,
		MinDetection: DefaultMinDetection,
		MinTracking:  DefaultMinTracking,
	}
}

func (c Config) validate() error {
	if c.MaxSubjects < 1 {
		return fmt.Errorf("max subjects must be at least 1, got %d", c.MaxSubjects)
	}
	if c.MinDetection < 0 || c.MinDetection > 1 {
		return fmt.Errorf("min detection confidence %v out of range [0,1]", c.MinDetection)
	}
	if c.MinTracking < 0 || c.MinTracking > 1 {
		return fmt.Errorf("min tracking confidence %v out of range [0,1]", c.MinTracking)
	}
	if c.Stream < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidStream, c.Stream)
	}
	if c.MotionThreshold < 0 {
		return fmt.Errorf("motion threshold %v must not be negative", c.MotionThreshold)
	}
	return nil
}

// ModelFactory builds the mesh model for a solution.
type ModelFactory func(solution landmark.Solution, opts landmark.Options) (landmark.MeshModel, error)

// KeyPoller waits up to delayMs for a key press and returns its code, or -1.
type KeyPoller interface {
	PollKey(delayMs int) int
}

// Stats counts what happened to the frames read by Run.
type Stats struct {
	Frames  int // frames processed
	Dropped int // failed reads that were skipped
	Still   int // frames skipped by the motion gate
}

// Option configures a Driver.
type Option func(*Driver)

// WithRegistry replaces the default part registry.
func WithRegistry(r Registry) Option {
	return func(d *Driver) { d.registry = r }
}

// WithPreview shows annotated frames.
func WithPreview(p landmark.Preview) Option {
	return func(d *Driver) { d.preview = p }
}

// WithKeys stops the loop when the escape key is pressed.
func WithKeys(k KeyPoller) Option {
	return func(d *Driver) { d.keys = k }
}

// WithSink sends results to s, in addition to any sink added before.
func WithSink(s Sink) Option {
	return func(d *Driver) { d.sinks = append(d.sinks, s) }
}

// WithLogger sets the logger.
func WithLogger(l *logrus.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithClock overrides the time source stamped on results.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) { d.now = now }
}

// Driver reads frames from a camera, landmarks them and emits the results.
type Driver struct {
	config     Config
	registry   Registry
	camera     capture.Camera
	landmarker landmark.Landmarker
	gate       *capture.MotionGate
	preview    landmark.Preview
	keys       KeyPoller
	sinks      MultiSink
	logger     *logrus.Logger
	now        func() time.Time
	sleep      func(time.Duration)
	stats      Stats
}

// NewDriver validates cfg and builds the landmarker for cfg.Part. The camera is not touched; an
// unknown part or invalid setting fails here, before any device is acquired.
func NewDriver(cfg Config, camera capture.Camera, models ModelFactory, opts ...Option) (*Driver, error) {
	d := &Driver{
		config:   cfg,
		registry: DefaultRegistry(),
		camera:   camera,
		logger:   logrus.StandardLogger(),
		now:      time.Now,
		sleep:    time.Sleep,
	}
	for _, opt := range opts {
		opt(d)
	}

	entry, err := d.registry.Lookup(cfg.Part)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	model, err := models(entry.Solution, landmark.Options{
		MaxSubjects:  cfg.MaxSubjects,
		MinDetection: cfg.MinDetection,
		MinTracking:  cfg.MinTracking,
	})
	if err != nil {
		return nil, fmt.Errorf("load %s model: %w", entry.Solution, err)
	}
	d.landmarker = entry.New(model, d.preview)

	if cfg.MotionThreshold > 0 {
		d.gate = capture.NewMotionGate(cfg.MotionThreshold)
	}

	return d, nil
}

// Run opens the camera and processes frames until the escape key is pressed, the stream ends,
// ctx is cancelled or an error occurs. The camera is released before Run returns.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.camera.Open(); err != nil {
		return fmt.Errorf("open stream %d: %w", d.config.Stream, err)
	}
	defer func() {
		if err := d.camera.Close(); err != nil {
			d.logger.WithError(err).Warn("release camera")
		}
	}()
	if d.gate != nil {
		defer d.gate.Close()
	}
	d.stats = Stats{}

	log := d.logger.WithFields(logrus.Fields{"part": d.config.Part, "stream": d.config.Stream})
	log.Info("video started")

	for {
		if err := ctx.Err(); err != nil {
			log.WithField("frames", d.stats.Frames).Info("video cancelled")
			return nil
		}

		dropped := d.stats.Dropped
		stop, err := d.step()
		if err != nil {
			return err
		}
		if stop {
			log.WithField("frames", d.stats.Frames).Info("video finished")
			return nil
		}

		// Without a key poller nothing paces the loop, so a device that keeps dropping frames
		// would spin.
		if d.keys == nil && d.stats.Dropped > dropped {
			d.sleep(KeyDelayMs * time.Millisecond)
		}

		if d.keys != nil && d.keys.PollKey(KeyDelayMs)&0xFF == landmark.EscapeKey {
			log.WithField("frames", d.stats.Frames).Info("video stopped by key")
			return nil
		}
	}
}

// step handles one read. It reports true when the stream has ended.
func (d *Driver) step() (bool, error) {
	frame, err := d.camera.ReadFrame()
	switch {
	case errors.Is(err, capture.ErrFrameDropped):
		d.stats.Dropped++
		return false, nil
	case errors.Is(err, capture.ErrEndOfStream):
		return true, nil
	case err != nil:
		return false, fmt.Errorf("read frame: %w", err)
	}
	defer frame.Close()

	if d.gate != nil {
		if open, changed := d.gate.Open(frame); !open {
			d.stats.Still++
			d.logger.WithField("changed", changed).Trace("still frame skipped")
			return false, nil
		}
	}

	lm, err := d.landmarker.Process(frame)
	if err != nil {
		return false, fmt.Errorf("frame %d: %w", d.stats.Frames, err)
	}

	result := Result{
		Index:     d.stats.Frames,
		Time:      d.now(),
		Part:      d.config.Part,
		Landmarks: lm,
	}
	d.stats.Frames++

	if err := d.sinks.Emit(result); err != nil {
		return false, fmt.Errorf("emit frame %d: %w", result.Index, err)
	}
	return false, nil
}

// AddSink sends results to s as well. It must be called before Run.
func (d *Driver) AddSink(s Sink) {
	d.sinks = append(d.sinks, s)
}

// Stats returns the frame counters of the last Run.
func (d *Driver) Stats() Stats {
	return d.stats
}

// Close releases the landmarker and its model.
func (d *Driver) Close() error {
	return d.landmarker.Close()
}
