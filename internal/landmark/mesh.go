package landmark

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/ayusman/landmarker/internal/capture"
)

// Solution names a mesh model topology.
type Solution string

const (
	SolutionFaceMesh Solution = "face_mesh"
	SolutionHands    Solution = "hands"
)

// mesh holds what the face and hand adapters share: the model, the preview and the drawing
// topology.
type mesh struct {
	solution    Solution
	model       MeshModel
	preview     Preview
	connections [][2]int
}

// SetPreview attaches a preview window. Nil disables it.
func (m *mesh) SetPreview(p Preview) {
	m.preview = p
}

// ProcessSubjects runs the model on a mirrored copy of frame and returns one landmark map per
// detected subject.
func (m *mesh) ProcessSubjects(frame *gocv.Mat) ([]Landmarks, error) {
	if frame == nil || frame.Empty() {
		return nil, capture.ErrImageDecode
	}

	mirrored := gocv.NewMat()
	defer mirrored.Close()
	gocv.Flip(*frame, &mirrored, 1)

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(mirrored, &rgb, gocv.ColorBGRToRGB)

	subjects, err := m.model.Process(&rgb)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.solution, err)
	}

	display := gocv.NewMat()
	defer display.Close()
	gocv.CvtColor(rgb, &display, gocv.ColorRGBToBGR)

	width, height := display.Cols(), display.Rows()

	all := make([]Landmarks, 0, len(subjects))
	for _, s := range subjects {
		all = append(all, ToLandmarks(s, width, height))
	}

	if m.preview != nil {
		for _, lm := range all {
			DrawLandmarks(&display, lm, m.connections)
		}
		m.preview.Show(display)
	}

	return all, nil
}

// Process returns the landmarks of every detected subject merged into a single map.
func (m *mesh) Process(frame *gocv.Mat) (Landmarks, error) {
	all, err := m.ProcessSubjects(frame)
	if err != nil {
		return nil, err
	}
	return Merge(all), nil
}

// ProcessFile reads the image at path and runs Process on it.
func (m *mesh) ProcessFile(path string) (Landmarks, error) {
	frame, err := capture.ReadImage(path)
	if err != nil {
		return nil, err
	}
	defer frame.Close()
	return m.Process(frame)
}

// Close releases the model.
func (m *mesh) Close() error {
	return m.model.Close()
}
