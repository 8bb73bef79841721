package landmark

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/ayusman/landmarker/internal/capture"
)

// ShapePoints is the number of points produced by the dlib 68-point shape predictor.
const ShapePoints = 68

// Shape is the ordered set of facial points for one face.
type Shape [ShapePoints]image.Point

// FaceFinder locates faces in a grayscale image.
type FaceFinder interface {
	Find(gray *gocv.Mat) ([]image.Rectangle, error)
}

// ShapePredictor predicts the facial points inside a face rectangle of a grayscale image.
type ShapePredictor interface {
	Predict(gray *gocv.Mat, face image.Rectangle) ([]image.Point, error)
}

// ShapeLandmarker maps faces to 68 dlib points.
type ShapeLandmarker struct {
	finder    FaceFinder
	predictor ShapePredictor
	preview   Preview
}

// NewShapeLandmarker creates a landmarker from a face finder and a shape predictor.
func NewShapeLandmarker(finder FaceFinder, predictor ShapePredictor) *ShapeLandmarker {
	return &ShapeLandmarker{finder: finder, predictor: predictor}
}

// SetPreview attaches a preview window. Nil disables it.
func (l *ShapeLandmarker) SetPreview(p Preview) {
	l.preview = p
}

// Single returns the shape of the first face found in frame.
func (l *ShapeLandmarker) Single(frame *gocv.Mat) (Shape, error) {
	shapes, err := l.landmark(frame, true)
	if err != nil {
		return Shape{}, err
	}
	return shapes[0], nil
}

// All returns one shape per face found in frame, in finder order.
func (l *ShapeLandmarker) All(frame *gocv.Mat) ([]Shape, error) {
	return l.landmark(frame, false)
}

// SingleFile reads the image at path and runs Single on it.
func (l *ShapeLandmarker) SingleFile(path string) (Shape, error) {
	frame, err := capture.ReadImage(path)
	if err != nil {
		return Shape{}, err
	}
	defer frame.Close()
	return l.Single(frame)
}

// AllFile reads the image at path and runs All on it.
func (l *ShapeLandmarker) AllFile(path string) ([]Shape, error) {
	frame, err := capture.ReadImage(path)
	if err != nil {
		return nil, err
	}
	defer frame.Close()
	return l.All(frame)
}

func (l *ShapeLandmarker) landmark(frame *gocv.Mat, single bool) ([]Shape, error) {
	if frame == nil || frame.Empty() {
		return nil, capture.ErrImageDecode
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	faces, err := l.finder.Find(&gray)
	if err != nil {
		return nil, fmt.Errorf("find faces: %w", err)
	}
	if single {
		if len(faces) == 0 {
			return nil, ErrNoFace
		}
		faces = faces[:1]
	}

	shapes := make([]Shape, 0, len(faces))
	for _, face := range faces {
		points, err := l.predictor.Predict(&gray, face)
		if err != nil {
			return nil, fmt.Errorf("predict shape: %w", err)
		}
		if len(points) != ShapePoints {
			return nil, fmt.Errorf("%w: got %d points, want %d", ErrShapeSize, len(points), ShapePoints)
		}

		var s Shape
		copy(s[:], points)
		shapes = append(shapes, s)
	}

	if l.preview != nil {
		display := frame.Clone()
		defer display.Close()
		DrawBoxes(&display, faces)
		for _, s := range shapes {
			DrawShape(&display, s)
		}
		l.preview.Show(display)
	}

	return shapes, nil
}

// Landmarks returns the shape as an index to point map.
func (s Shape) Landmarks() Landmarks {
	lm := make(Landmarks, ShapePoints)
	for i, p := range s {
		lm[i] = p
	}
	return lm
}
