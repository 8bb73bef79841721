// Package capture provides camera capture and image loading using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture resolution.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

var (
	// ErrCameraNotOpen is returned when trying to read from a camera that is not open.
	ErrCameraNotOpen = errors.New("camera is not open")
	// ErrFrameDropped is returned when a single read fails but the source is still usable.
	ErrFrameDropped = errors.New("frame dropped")
	// ErrEndOfStream is returned once the source has no more frames.
	ErrEndOfStream = errors.New("end of stream")
)

// Camera defines the interface for frame sources.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller owns the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// videoCamera reads frames from a capture device or a video file through gocv.VideoCapture.
type videoCamera struct {
	source  any
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
	isFile  bool
}

// NewCamera creates a Camera for the given capture device index.
func NewCamera(deviceID int) Camera {
	return &videoCamera{source: deviceID}
}

// NewFileCamera creates a Camera that plays back a video file.
func NewFileCamera(path string) Camera {
	return &videoCamera{source: path, isFile: true}
}

// Open opens the source. Devices are asked for 640x480.
func (c *videoCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}

	capture, err := gocv.OpenVideoCapture(c.source)
	if err != nil {
		return fmt.Errorf("open capture %v: %w", c.source, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return fmt.Errorf("open capture %v: device unavailable", c.source)
	}

	if !c.isFile {
		capture.Set(gocv.VideoCaptureFrameWidth, DefaultWidth)
		capture.Set(gocv.VideoCaptureFrameHeight, DefaultHeight)
	}

	c.capture = capture
	c.running = true

	return nil
}

// Close releases the capture handle. Closing a closed camera is a no-op.
func (c *videoCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		c.running = false
		return nil
	}

	err := c.capture.Close()
	c.capture = nil
	c.running = false

	return err
}

// ReadFrame reads a single frame.
// A failed read on a file past its last frame, or on a device that went away, is ErrEndOfStream;
// any other failed read is ErrFrameDropped.
func (c *videoCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running || c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		if c.exhausted() {
			return nil, ErrEndOfStream
		}
		return nil, ErrFrameDropped
	}

	return &mat, nil
}

func (c *videoCamera) exhausted() bool {
	if !c.capture.IsOpened() {
		return true
	}
	if !c.isFile {
		return false
	}
	total := c.capture.Get(gocv.VideoCaptureFrameCount)
	pos := c.capture.Get(gocv.VideoCapturePosFrames)
	return total <= 0 || pos >= total
}

// IsOpen returns true if the camera is currently open.
func (c *videoCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.running
}
