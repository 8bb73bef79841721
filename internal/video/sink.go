package video

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ayusman/landmarker/internal/landmark"
)

// Result is the landmark set computed for one frame.
type Result struct {
	Index     int                `json:"index"`
	Time      time.Time          `json:"time"`
	Part      Part               `json:"part"`
	Landmarks landmark.Landmarks `json:"landmarks"`
}

// Sink receives every result a driver produces. An error stops the driver.
type Sink interface {
	Emit(r Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(r Result) error

func (f SinkFunc) Emit(r Result) error { return f(r) }

// MultiSink emits to every sink in order.
type MultiSink []Sink

func (m MultiSink) Emit(r Result) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PrintSink writes one line per frame listing index=(x,y) pairs in index order.
type PrintSink struct {
	w io.Writer
}

func NewPrintSink(w io.Writer) *PrintSink {
	return &PrintSink{w: w}
}

func (p *PrintSink) Emit(r Result) error {
	_, err := fmt.Fprintf(p.w, "frame %d: %s\n", r.Index, FormatLandmarks(r.Landmarks))
	return err
}

// FormatLandmarks renders landmarks as space separated index=(x,y) pairs sorted by index.
func FormatLandmarks(lm landmark.Landmarks) string {
	indices := make([]int, 0, len(lm))
	for i := range lm {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	var b strings.Builder
	for n, i := range indices {
		if n > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d=(%d,%d)", i, lm[i].X, lm[i].Y)
	}
	return b.String()
}
