package landmark

import (
	"fmt"
	"image"

	"github.com/Kagami/go-face"
	"gocv.io/x/gocv"
)

// DlibFinder finds faces with dlib's frontal face detector through go-face.
// The models directory must hold the go-face model files.
type DlibFinder struct {
	rec *face.Recognizer
}

// NewDlibFinder loads the dlib models from modelsDir.
func NewDlibFinder(modelsDir string) (*DlibFinder, error) {
	rec, err := face.NewRecognizer(modelsDir)
	if err != nil {
		return nil, fmt.Errorf("load dlib models from %s: %w", modelsDir, err)
	}
	return &DlibFinder{rec: rec}, nil
}

// Find returns the face rectangles in gray, in detector order.
func (f *DlibFinder) Find(gray *gocv.Mat) ([]image.Rectangle, error) {
	buf, err := gocv.IMEncode(".jpg", *gray)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	faces, err := f.rec.Recognize(buf.GetBytes())
	if err != nil {
		return nil, err
	}

	rects := make([]image.Rectangle, len(faces))
	for i, fc := range faces {
		rects[i] = fc.Rectangle
	}
	return rects, nil
}

// Close releases the dlib models.
func (f *DlibFinder) Close() error {
	f.rec.Close()
	return nil
}
