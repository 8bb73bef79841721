package video

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ayusman/landmarker/internal/landmark"
)

// Part names the body part a video session landmarks.
type Part string

const (
	PartFace Part = "face"
	PartHand Part = "hand"
)

// ErrUnknownPart is returned for a part with no registered landmarker.
var ErrUnknownPart = errors.New("unknown body part")

// Entry describes how to build the landmarker for one part.
type Entry struct {
	Solution landmark.Solution
	Defaults landmark.Options
	New      func(model landmark.MeshModel, preview landmark.Preview) landmark.Landmarker
}

// Registry maps parts to landmarker entries.
type Registry map[Part]Entry

// DefaultRegistry returns the face and hand mesh landmarkers.
func DefaultRegistry() Registry {
	return Registry{
		PartFace: {
			Solution: landmark.SolutionFaceMesh,
			Defaults: landmark.DefaultFaceOptions(),
			New: func(model landmark.MeshModel, preview landmark.Preview) landmark.Landmarker {
				fm := landmark.NewFaceMesh(model)
				fm.SetPreview(preview)
				return fm
			},
		},
		PartHand: {
			Solution: landmark.SolutionHands,
			Defaults: landmark.DefaultHandOptions(),
			New: func(model landmark.MeshModel, preview landmark.Preview) landmark.Landmarker {
				hm := landmark.NewHandMesh(model)
				hm.SetPreview(preview)
				return hm
			},
		},
	}
}

// Lookup returns the entry registered for part.
func (r Registry) Lookup(part Part) (Entry, error) {
	e, ok := r[part]
	if !ok {
		names := make([]string, 0, len(r))
		for _, p := range r.Parts() {
			names = append(names, string(p))
		}
		return Entry{}, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownPart, part, strings.Join(names, ", "))
	}
	return e, nil
}

// Parts returns the registered parts in name order.
func (r Registry) Parts() []Part {
	parts := make([]Part, 0, len(r))
	for p := range r {
		parts = append(parts, p)
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i] < parts[j] })
	return parts
}
