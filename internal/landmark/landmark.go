// Package landmark turns face and hand images into pixel landmark coordinates using injected
// pretrained models: mediapipe face/hand meshes and dlib's 68-point shape predictor.
package landmark

import (
	"errors"
	"image"

	"gocv.io/x/gocv"
)

var (
	// ErrNoFace is returned when single-face landmarking finds no face.
	ErrNoFace = errors.New("no face detected")
	// ErrShapeSize is returned when a shape predictor yields an unexpected number of points.
	ErrShapeSize = errors.New("unexpected shape size")
)

// Point is a normalized landmark as produced by a mesh model: X and Y in [0,1] relative to the
// frame width and height, Z relative depth.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Subject is one detected face or hand with its landmarks in mesh topology order.
type Subject struct {
	Points []Point `json:"points"`
	Label  string  `json:"label,omitempty"` // handedness for hands
	Score  float64 `json:"score,omitempty"`
}

// Landmarks maps a landmark index to its pixel coordinate.
type Landmarks map[int]image.Point

// MeshModel is a pretrained mesh solution. Process receives an RGB frame it must not modify and
// returns the subjects found, in model order.
type MeshModel interface {
	Process(rgb *gocv.Mat) ([]Subject, error)
	Close() error
}

// Landmarker is the capability shared by the mesh adapters. Input is either a decoded BGR frame
// or the path of an image file.
type Landmarker interface {
	Process(frame *gocv.Mat) (Landmarks, error)
	ProcessFile(path string) (Landmarks, error)
	Close() error
}

// Options configures a mesh model.
type Options struct {
	MaxSubjects  int
	MinDetection float64
	MinTracking  float64
}

// ToPixel scales a normalized point to pixel coordinates of a width x height frame, truncating.
func ToPixel(p Point, width, height int) image.Point {
	return image.Pt(int(p.X*float64(width)), int(p.Y*float64(height)))
}

// ToLandmarks converts one subject to pixel landmarks.
func ToLandmarks(s Subject, width, height int) Landmarks {
	lm := make(Landmarks, len(s.Points))
	for i, p := range s.Points {
		lm[i] = ToPixel(p, width, height)
	}
	return lm
}

// Merge folds several subjects' landmarks into one map; later subjects overwrite earlier ones
// at the same index.
func Merge(all []Landmarks) Landmarks {
	merged := make(Landmarks)
	for _, lm := range all {
		for i, p := range lm {
			merged[i] = p
		}
	}
	return merged
}
