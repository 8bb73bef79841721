package landmark

import (
	"image"

	"gocv.io/x/gocv"
)

// MockMeshModel is a test implementation of MeshModel.
// It allows tests to control the model output and records the frames it was given.
type MockMeshModel struct {
	subjects []Subject
	err      error
	calls    int
	lastSize image.Point
	lastRGB  gocv.Vecb
	closed   bool
}

// NewMockMeshModel creates a new MockMeshModel instance.
func NewMockMeshModel() *MockMeshModel {
	return &MockMeshModel{}
}

// SetSubjects sets the subjects returned by Process.
func (m *MockMeshModel) SetSubjects(subjects []Subject) {
	m.subjects = subjects
}

// SetError sets the error returned by Process.
func (m *MockMeshModel) SetError(err error) {
	m.err = err
}

// Process returns the pre-configured subjects or error.
func (m *MockMeshModel) Process(rgb *gocv.Mat) ([]Subject, error) {
	m.calls++
	if rgb != nil && !rgb.Empty() {
		m.lastSize = image.Pt(rgb.Cols(), rgb.Rows())
		m.lastRGB = rgb.GetVecbAt(0, 0)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.subjects, nil
}

// Close marks the model closed.
func (m *MockMeshModel) Close() error {
	m.closed = true
	return nil
}

// Calls returns how many frames were processed.
func (m *MockMeshModel) Calls() int { return m.calls }

// Closed reports whether Close was called.
func (m *MockMeshModel) Closed() bool { return m.closed }

// MockFinder returns fixed face rectangles.
type MockFinder struct {
	Faces []image.Rectangle
	Err   error
}

func (f *MockFinder) Find(gray *gocv.Mat) ([]image.Rectangle, error) {
	return f.Faces, f.Err
}

// MockPredictor returns a synthetic shape laid out inside each face rectangle.
// Size overrides the number of points returned when non-zero.
type MockPredictor struct {
	Size  int
	Err   error
	Calls int
}

func (p *MockPredictor) Predict(gray *gocv.Mat, face image.Rectangle) ([]image.Point, error) {
	p.Calls++
	if p.Err != nil {
		return nil, p.Err
	}
	n := ShapePoints
	if p.Size != 0 {
		n = p.Size
	}
	points := make([]image.Point, n)
	for i := range points {
		points[i] = image.Pt(face.Min.X+i, face.Min.Y+i)
	}
	return points, nil
}

// RecordingPreview keeps the size of every frame it is shown.
type RecordingPreview struct {
	Shown []image.Point
}

func (p *RecordingPreview) Show(frame gocv.Mat) {
	p.Shown = append(p.Shown, image.Pt(frame.Cols(), frame.Rows()))
}

// OpenPalmSubject returns a right hand with all fingers extended, in normalized coordinates.
func OpenPalmSubject() Subject {
	points := make([]Point, HandPoints)

	points[Wrist] = Point{X: 0.5, Y: 0.8}

	points[ThumbCMC] = Point{X: 0.55, Y: 0.75, Z: 0.02}
	points[ThumbMCP] = Point{X: 0.62, Y: 0.70, Z: 0.03}
	points[ThumbIP] = Point{X: 0.68, Y: 0.65, Z: 0.03}
	points[ThumbTip] = Point{X: 0.73, Y: 0.60, Z: 0.03}

	points[IndexMCP] = Point{X: 0.55, Y: 0.68}
	points[IndexPIP] = Point{X: 0.57, Y: 0.55}
	points[IndexDIP] = Point{X: 0.58, Y: 0.45}
	points[IndexTip] = Point{X: 0.58, Y: 0.35}

	points[MiddleMCP] = Point{X: 0.50, Y: 0.66}
	points[MiddlePIP] = Point{X: 0.50, Y: 0.52}
	points[MiddleDIP] = Point{X: 0.50, Y: 0.40}
	points[MiddleTip] = Point{X: 0.50, Y: 0.28}

	points[RingMCP] = Point{X: 0.45, Y: 0.68}
	points[RingPIP] = Point{X: 0.43, Y: 0.55}
	points[RingDIP] = Point{X: 0.42, Y: 0.45}
	points[RingTip] = Point{X: 0.42, Y: 0.35}

	points[PinkyMCP] = Point{X: 0.40, Y: 0.70}
	points[PinkyPIP] = Point{X: 0.37, Y: 0.60}
	points[PinkyDIP] = Point{X: 0.35, Y: 0.50}
	points[PinkyTip] = Point{X: 0.34, Y: 0.42}

	return Subject{Points: points, Label: "Right", Score: 0.95}
}

// UniformSubject returns n points all at (x, y).
func UniformSubject(n int, x, y float64) Subject {
	points := make([]Point, n)
	for i := range points {
		points[i] = Point{X: x, Y: y}
	}
	return Subject{Points: points}
}
