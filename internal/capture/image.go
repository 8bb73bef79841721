package capture

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"
)

// ErrImageDecode is returned when an image file cannot be read or decoded.
var ErrImageDecode = errors.New("cannot decode image")

// ReadImage loads a color image from disk. The caller owns the returned Mat.
func ReadImage(path string) (*gocv.Mat, error) {
	mat := gocv.IMRead(path, gocv.IMReadColor)
	if mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("%w: %s", ErrImageDecode, path)
	}
	return &mat, nil
}
