package capture

import (
	"image"

	"gocv.io/x/gocv"
)

const (
	// gateBlurSize is the Gaussian kernel applied before differencing.
	gateBlurSize = 21
	// gateDiffThreshold is the per-pixel intensity change counted as motion.
	gateDiffThreshold = 25
)

// MotionGate reports whether a frame differs enough from the previous one to be worth running
// a model on. The first frame always passes.
type MotionGate struct {
	threshold float64
	prevGray  gocv.Mat
	primed    bool
}

// NewMotionGate creates a gate that opens when more than threshold percent of pixels change.
func NewMotionGate(threshold float64) *MotionGate {
	return &MotionGate{
		threshold: threshold,
		prevGray:  gocv.NewMat(),
	}
}

// Open compares frame with the previous frame and returns whether it passes along with the
// percentage of changed pixels.
func (g *MotionGate) Open(frame *gocv.Mat) (bool, float64) {
	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(gateBlurSize, gateBlurSize), 0, 0, gocv.BorderDefault)

	if !g.primed {
		blurred.CopyTo(&g.prevGray)
		g.primed = true
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, g.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, gateDiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0

	blurred.CopyTo(&g.prevGray)

	return changed > g.threshold, changed
}

// Close releases the stored baseline frame.
func (g *MotionGate) Close() {
	if !g.prevGray.Empty() {
		g.prevGray.Close()
		g.prevGray = gocv.NewMat()
	}
	g.primed = false
}
