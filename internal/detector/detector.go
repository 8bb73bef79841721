// Package detector finds faces in images with a Caffe SSD model run through OpenCV's DNN module.
package detector

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/ayusman/landmarker/internal/capture"
)

// DefaultMinConfidence is the detection score a face needs to be reported.
const DefaultMinConfidence = 0.7

// SSD input geometry and per-channel mean (BGR) of the res10 300x300 face model.
var (
	blobSize = image.Pt(300, 300)
	blobMean = gocv.NewScalar(104.0, 177.0, 123.0, 0)
)

// Net is the slice of gocv.Net the detector needs. *gocv.Net satisfies it.
type Net interface {
	SetInput(blob gocv.Mat, name string)
	Forward(outputName string) gocv.Mat
	Close() error
}

// LoadCaffe reads a Caffe network from its prototxt and weights.
func LoadCaffe(prototxt, weights string) (Net, error) {
	for _, path := range []string{prototxt, weights} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("load caffe model: %w", err)
		}
	}

	net := gocv.ReadNetFromCaffe(prototxt, weights)
	if net.Empty() {
		net.Close()
		return nil, fmt.Errorf("load caffe model %s: empty network", weights)
	}
	return &net, nil
}

// Config holds detector options.
type Config struct {
	// Mode selects how sub-threshold detections are handled (default ScanFilter).
	Mode ScanMode
}

// FaceDetector wraps a face SSD network. It is not safe for concurrent use: the network keeps
// the last input between SetInput and Forward.
type FaceDetector struct {
	net  Net
	mode ScanMode
}

// New creates a FaceDetector over an already loaded network.
func New(net Net, cfg Config) *FaceDetector {
	return &FaceDetector{net: net, mode: cfg.Mode}
}

// Detect returns the bounding boxes of faces in frame scoring at least minConfidence,
// in the network's output order.
func (d *FaceDetector) Detect(frame *gocv.Mat, minConfidence float64) ([]Box, error) {
	if frame == nil || frame.Empty() {
		return nil, capture.ErrImageDecode
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(*frame, &resized, blobSize, 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(resized, 1.0, blobSize, blobMean, false, false)
	defer blob.Close()

	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	defer out.Close()

	dets := decodeDetections(out, frame.Cols(), frame.Rows())
	return ExtractBoxes(dets, minConfidence, d.mode), nil
}

// DetectFile reads the image at path and runs Detect on it.
func (d *FaceDetector) DetectFile(path string, minConfidence float64) ([]Box, error) {
	frame, err := capture.ReadImage(path)
	if err != nil {
		return nil, err
	}
	defer frame.Close()

	return d.Detect(frame, minConfidence)
}

// Close releases the network.
func (d *FaceDetector) Close() error {
	return d.net.Close()
}

// decodeDetections turns the SSD output into pixel boxes. The network emits a 1x1xNx7 blob whose
// rows are [image, class, confidence, x1, y1, x2, y2] with normalized coordinates; a plain Nx7
// matrix is accepted as well.
func decodeDetections(out gocv.Mat, width, height int) []Detection {
	rows := out
	if len(out.Size()) == 4 {
		rows = gocv.GetBlobChannel(out, 0, 0)
		defer rows.Close()
	}

	if rows.Cols() < 7 {
		return nil
	}

	dets := make([]Detection, 0, rows.Rows())
	for r := 0; r < rows.Rows(); r++ {
		w, h := float32(width), float32(height)
		dets = append(dets, Detection{
			Confidence: float64(rows.GetFloatAt(r, 2)),
			Box: Box{
				X1: int(rows.GetFloatAt(r, 3) * w),
				Y1: int(rows.GetFloatAt(r, 4) * h),
				X2: int(rows.GetFloatAt(r, 5) * w),
				Y2: int(rows.GetFloatAt(r, 6) * h),
			},
		})
	}

	return dets
}
