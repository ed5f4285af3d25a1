package l1detections

import (
	"math"

	"github.com/you112ef/Sky-CASA/internal/casa"
)

// Validate checks frame ordering and detection shape. Frame indices must be
// non-negative and non-decreasing; coordinates and areas must be finite and
// non-negative. The first violation fails the whole input.
func Validate(frames []Frame) error {
	prev := -1
	for fi, f := range frames {
		if f.Index < 0 {
			return casa.Errorf(casa.StageIngest, casa.KindMalformedInput,
				"frame #%d has negative index %d", fi, f.Index)
		}
		if f.Index < prev {
			return casa.Errorf(casa.StageIngest, casa.KindMalformedInput,
				"frame index %d follows %d (indices must be non-decreasing)", f.Index, prev)
		}
		prev = f.Index

		for di, d := range f.Detections {
			if d.FrameIndex != 0 && d.FrameIndex != f.Index {
				return casa.Errorf(casa.StageIngest, casa.KindMalformedInput,
					"frame %d detection #%d claims frame %d", f.Index, di, d.FrameIndex)
			}
			if !nonNegativeFinite(d.X) || !nonNegativeFinite(d.Y) {
				return casa.Errorf(casa.StageIngest, casa.KindMalformedInput,
					"frame %d detection #%d has invalid centroid (%v, %v)", f.Index, di, d.X, d.Y)
			}
			if !nonNegativeFinite(d.Area) {
				return casa.Errorf(casa.StageIngest, casa.KindMalformedInput,
					"frame %d detection #%d has invalid area %v", f.Index, di, d.Area)
			}
		}
	}
	return nil
}

func nonNegativeFinite(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// GroupByFrame builds frames from a flat detection list. Detections must
// already be sorted by non-decreasing FrameIndex; no reordering is done.
func GroupByFrame(detections []Detection) ([]Frame, error) {
	var frames []Frame
	for i, d := range detections {
		if d.FrameIndex < 0 {
			return nil, casa.Errorf(casa.StageIngest, casa.KindMalformedInput,
				"detection #%d has negative frame index %d", i, d.FrameIndex)
		}
		if n := len(frames); n > 0 {
			last := &frames[n-1]
			if d.FrameIndex == last.Index {
				last.Detections = append(last.Detections, d)
				continue
			}
			if d.FrameIndex < last.Index {
				return nil, casa.Errorf(casa.StageIngest, casa.KindMalformedInput,
					"detection #%d frame %d follows frame %d", i, d.FrameIndex, last.Index)
			}
		}
		frames = append(frames, Frame{Index: d.FrameIndex, Detections: []Detection{d}})
	}
	return frames, nil
}
