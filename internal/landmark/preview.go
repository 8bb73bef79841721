package landmark

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// PreviewTitle is the window name used for annotated previews.
const PreviewTitle = "Landmark Detection"

// EscapeKey is the key code that stops a preview loop.
const EscapeKey = 27

var (
	pointColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	lineColor  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
)

// Preview displays annotated frames.
type Preview interface {
	Show(frame gocv.Mat)
}

// WindowPreview shows frames in an OpenCV window and doubles as the key source of a video loop.
type WindowPreview struct {
	window *gocv.Window
}

// NewWindowPreview opens the preview window.
func NewWindowPreview() *WindowPreview {
	return &WindowPreview{window: gocv.NewWindow(PreviewTitle)}
}

func (p *WindowPreview) Show(frame gocv.Mat) {
	p.window.IMShow(frame)
}

// PollKey waits up to delayMs for a key press and returns its code, or -1.
func (p *WindowPreview) PollKey(delayMs int) int {
	return p.window.WaitKey(delayMs)
}

// Close destroys the window.
func (p *WindowPreview) Close() error {
	return p.window.Close()
}

// DrawLandmarks marks every landmark and the given connections on img.
func DrawLandmarks(img *gocv.Mat, lm Landmarks, connections [][2]int) {
	for _, c := range connections {
		a, okA := lm[c[0]]
		b, okB := lm[c[1]]
		if okA && okB {
			gocv.Line(img, a, b, lineColor, 1)
		}
	}
	for _, p := range lm {
		gocv.Circle(img, p, 1, pointColor, 1)
	}
}

// DrawShape marks the 68 points of a dlib shape on img.
func DrawShape(img *gocv.Mat, s Shape) {
	for _, p := range s {
		gocv.Circle(img, p, 1, pointColor, -1)
	}
}

// DrawBoxes outlines rectangles on img.
func DrawBoxes(img *gocv.Mat, rects []image.Rectangle) {
	for _, r := range rects {
		gocv.Rectangle(img, r, pointColor, 2)
	}
}
