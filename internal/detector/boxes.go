package detector

import "image"

// Box is a face bounding box in pixel coordinates.
type Box struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Detection is a raw network output row before thresholding.
type Detection struct {
	Box        Box
	Confidence float64
}

// ScanMode controls how ExtractBoxes treats detections below the threshold.
type ScanMode int

const (
	// ScanFilter keeps every detection at or above the threshold, wherever it appears.
	ScanFilter ScanMode = iota
	// ScanStopAtFirstMiss stops at the first detection below the threshold. It relies on the
	// network emitting detections sorted by decreasing confidence.
	ScanStopAtFirstMiss
)

func (m ScanMode) String() string {
	switch m {
	case ScanFilter:
		return "filter"
	case ScanStopAtFirstMiss:
		return "stop-at-first-miss"
	default:
		return "unknown"
	}
}

// ExtractBoxes selects the boxes of detections scoring at least minConfidence, keeping their order.
func ExtractBoxes(dets []Detection, minConfidence float64, mode ScanMode) []Box {
	boxes := make([]Box, 0, len(dets))
	for _, d := range dets {
		// NaN scores compare false both ways and count as a miss.
		if !(d.Confidence >= minConfidence) {
			if mode == ScanStopAtFirstMiss {
				break
			}
			continue
		}
		boxes = append(boxes, d.Box)
	}
	return boxes
}
