package bridge

import (
	"encoding/json"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/landmarker/internal/landmark"
)

// fakeService answers requests in-process through pipes. A non-empty stray line is printed once,
// ahead of the next reply.
type fakeService struct {
	mu       sync.Mutex
	handler  func(req request, img []byte) response
	stray    string
	requests []request
	launches int
}

func (s *fakeService) launch() (io.WriteCloser, io.ReadCloser, func() error, error) {
	s.mu.Lock()
	s.launches++
	s.mu.Unlock()

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer respW.Close()
		enc := json.NewEncoder(respW)
		for {
			req, img, err := readRequest(reqR)
			if err != nil {
				return
			}
			s.mu.Lock()
			s.requests = append(s.requests, req)
			stray := s.stray
			s.stray = ""
			s.mu.Unlock()
			if stray != "" {
				if _, err := io.WriteString(respW, stray+"\n"); err != nil {
					return
				}
			}
			if err := enc.Encode(s.handler(req, img)); err != nil {
				return
			}
		}
	}()

	wait := func() error {
		<-done
		return nil
	}
	return reqW, respR, wait, nil
}

func (s *fakeService) Launches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.launches
}

func newTestClient(t *testing.T, cfg Config, svc *fakeService) *Client {
	t.Helper()
	script := filepath.Join(t.TempDir(), ScriptName)
	require.NoError(t, os.WriteFile(script, []byte("# service\n"), 0644))
	cfg.Script = script

	logger, _ := test.NewNullLogger()
	cfg.Logger = logger

	c, err := New(cfg)
	require.NoError(t, err)
	c.launch = svc.launch
	t.Cleanup(func() { c.Close() })
	return c
}

func testFrame(t *testing.T, mt gocv.MatType) gocv.Mat {
	t.Helper()
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, mt)
	t.Cleanup(func() { frame.Close() })
	return frame
}

func meshOptions() landmark.Options {
	return landmark.Options{MaxSubjects: 2, MinDetection: 0.6, MinTracking: 0.6}
}

func TestNew_Validation(t *testing.T) {
	script := filepath.Join(t.TempDir(), ScriptName)
	require.NoError(t, os.WriteFile(script, nil, 0644))

	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "hands", cfg: Config{Script: script, Solution: landmark.SolutionHands, Options: meshOptions()}},
		{name: "face mesh", cfg: Config{Script: script, Solution: landmark.SolutionFaceMesh, Options: meshOptions()}},
		{name: "shape", cfg: Config{Script: script, Solution: SolutionShape, Model: "faceLandmark68.dat"}},
		{name: "unknown solution", cfg: Config{Script: script, Solution: "pose", Options: meshOptions()}, wantErr: true},
		{name: "zero subjects", cfg: Config{Script: script, Solution: landmark.SolutionHands}, wantErr: true},
		{name: "shape without model", cfg: Config{Script: script, Solution: SolutionShape}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, c.Started(), "process must start lazily")
		})
	}
}

func TestNew_MissingScript(t *testing.T) {
	_, err := New(Config{
		Script:   filepath.Join(t.TempDir(), "nope.py"),
		Solution: landmark.SolutionHands,
		Options:  meshOptions(),
	})
	assert.ErrorIs(t, err, ErrScriptNotFound)
}

func TestClient_Args(t *testing.T) {
	mesh := newTestClient(t, Config{Solution: landmark.SolutionHands, Options: meshOptions()}, &fakeService{})
	assert.Equal(t, []string{
		mesh.script, "--solution", "hands", "--max", "2", "--min-detection", "0.6", "--min-tracking", "0.6",
	}, mesh.Args())

	shape := newTestClient(t, Config{Solution: SolutionShape, Model: "/models/faceLandmark68.dat"}, &fakeService{})
	assert.Equal(t, []string{
		shape.script, "--solution", "shape", "--model", "/models/faceLandmark68.dat",
	}, shape.Args())
}

func TestClient_Process(t *testing.T) {
	palm := landmark.OpenPalmSubject()
	svc := &fakeService{handler: func(req request, img []byte) response {
		return response{Subjects: []landmark.Subject{palm}}
	}}
	c := newTestClient(t, Config{Solution: landmark.SolutionHands, Options: meshOptions()}, svc)

	frame := testFrame(t, gocv.MatTypeCV8UC3)
	for i := 0; i < 3; i++ {
		subjects, err := c.Process(&frame)
		require.NoError(t, err)
		require.Len(t, subjects, 1)
		assert.Equal(t, palm.Points, subjects[0].Points)
		assert.Equal(t, "Right", subjects[0].Label)
	}

	assert.Equal(t, 1, svc.Launches(), "process is reused across requests")
	assert.True(t, c.Started())
	assert.Equal(t, opMesh, svc.requests[0].Op)
}

func TestClient_ProcessSendsDecodableFrame(t *testing.T) {
	var got image.Point
	svc := &fakeService{handler: func(req request, img []byte) response {
		m, err := gocv.IMDecode(img, gocv.IMReadColor)
		if err == nil {
			got = image.Pt(m.Cols(), m.Rows())
			m.Close()
		}
		return response{}
	}}
	c := newTestClient(t, Config{Solution: landmark.SolutionFaceMesh, Options: meshOptions()}, svc)

	frame := testFrame(t, gocv.MatTypeCV8UC3)
	_, err := c.Process(&frame)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(64, 48), got)
}

func TestClient_Predict(t *testing.T) {
	svc := &fakeService{handler: func(req request, img []byte) response {
		points := make([]landmark.Point, landmark.ShapePoints)
		for i := range points {
			points[i] = landmark.Point{X: float64(req.Rect[0] + i), Y: float64(req.Rect[1] + i)}
		}
		return response{Subjects: []landmark.Subject{{Points: points}}}
	}}
	c := newTestClient(t, Config{Solution: SolutionShape, Model: "faceLandmark68.dat"}, svc)

	gray := testFrame(t, gocv.MatTypeCV8U)
	points, err := c.Predict(&gray, image.Rect(5, 7, 40, 42))
	require.NoError(t, err)

	require.Len(t, points, landmark.ShapePoints)
	assert.Equal(t, image.Pt(5, 7), points[0])
	assert.Equal(t, image.Pt(72, 74), points[67])
	assert.Equal(t, []int{5, 7, 40, 42}, svc.requests[0].Rect)
}

func TestClient_PredictNoShape(t *testing.T) {
	svc := &fakeService{handler: func(req request, img []byte) response { return response{} }}
	c := newTestClient(t, Config{Solution: SolutionShape, Model: "faceLandmark68.dat"}, svc)

	gray := testFrame(t, gocv.MatTypeCV8U)
	points, err := c.Predict(&gray, image.Rect(0, 0, 10, 10))
	require.NoError(t, err)
	assert.Empty(t, points)
}

func TestClient_ServiceError(t *testing.T) {
	svc := &fakeService{handler: func(req request, img []byte) response {
		return response{Error: "model not loaded"}
	}}
	c := newTestClient(t, Config{Solution: landmark.SolutionHands, Options: meshOptions()}, svc)

	frame := testFrame(t, gocv.MatTypeCV8UC3)
	_, err := c.Process(&frame)
	assert.ErrorIs(t, err, ErrService)
}

func TestClient_ServiceErrorKeepsProcess(t *testing.T) {
	svc := &fakeService{handler: func(req request, img []byte) response {
		return response{Error: "no hands"}
	}}
	c := newTestClient(t, Config{Solution: landmark.SolutionHands, Options: meshOptions()}, svc)

	frame := testFrame(t, gocv.MatTypeCV8UC3)
	for i := 0; i < 2; i++ {
		_, err := c.Process(&frame)
		require.ErrorIs(t, err, ErrService)
	}
	assert.True(t, c.Started())
	assert.Equal(t, 1, svc.Launches())
}

func TestClient_StrayOutputRestartsService(t *testing.T) {
	var calls atomic.Int32
	svc := &fakeService{
		stray: "loading model weights...",
		handler: func(req request, img []byte) response {
			n := int(calls.Add(1))
			return response{Subjects: []landmark.Subject{landmark.UniformSubject(n, 0.5, 0.5)}}
		},
	}
	c := newTestClient(t, Config{Solution: landmark.SolutionHands, Options: meshOptions()}, svc)

	frame := testFrame(t, gocv.MatTypeCV8UC3)
	_, err := c.Process(&frame)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrService)
	assert.False(t, c.Started(), "a desynchronized service is stopped")

	// The next request gets its own reply, not the one left behind by the first.
	subjects, err := c.Process(&frame)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Len(t, subjects[0].Points, 2)
	assert.Equal(t, 2, svc.Launches())
}

func TestClient_EmptyFrame(t *testing.T) {
	svc := &fakeService{}
	c := newTestClient(t, Config{Solution: landmark.SolutionHands, Options: meshOptions()}, svc)

	empty := gocv.NewMat()
	defer empty.Close()

	_, err := c.Process(&empty)
	assert.Error(t, err)
	assert.Zero(t, svc.Launches())
}

func TestClient_CloseAndRestart(t *testing.T) {
	svc := &fakeService{handler: func(req request, img []byte) response { return response{} }}
	c := newTestClient(t, Config{Solution: landmark.SolutionHands, Options: meshOptions()}, svc)

	frame := testFrame(t, gocv.MatTypeCV8UC3)
	_, err := c.Process(&frame)
	require.NoError(t, err)

	require.NoError(t, c.Close())
	assert.False(t, c.Started())
	require.NoError(t, c.Close(), "close is idempotent")

	_, err = c.Process(&frame)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.Launches())
}

func TestClient_IdleShutdown(t *testing.T) {
	svc := &fakeService{handler: func(req request, img []byte) response { return response{} }}
	c := newTestClient(t, Config{
		Solution:    landmark.SolutionHands,
		Options:     meshOptions(),
		IdleTimeout: 20 * time.Millisecond,
	}, svc)

	frame := testFrame(t, gocv.MatTypeCV8UC3)
	_, err := c.Process(&frame)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return !c.Started() }, time.Second, 10*time.Millisecond)
}

func TestClient_ImplementsModels(t *testing.T) {
	var _ landmark.MeshModel = (*Client)(nil)
	var _ landmark.ShapePredictor = (*Client)(nil)
}
