package l2tracks

import (
	"context"
	"log/slog"

	"github.com/you112ef/Sky-CASA/internal/casa"
	"github.com/you112ef/Sky-CASA/internal/casa/l1detections"
)

// Stats summarises one tracking run.
type Stats struct {
	Frames     int `json:"frames"`
	Detections int `json:"detections"`
	Created    int `json:"created"`
	Finalized  int `json:"finalized"`
	Discarded  int `json:"discarded"`
	Dropped    int `json:"dropped"` // unmatched detections refused by MaxOpenTracks
}

// Tracker is the per-run track arena. Tracks[i] has TrackID i+1. A Tracker
// is not safe for concurrent use and must not be reused across runs.
type Tracker struct {
	Tracks []*Track
	Config TrackerConfig

	stats     Stats
	lastFrame int
	started   bool
	finalized bool
	logger    *slog.Logger
}

// NewTracker creates a new tracker with the specified configuration.
func NewTracker(config TrackerConfig, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{Config: config, logger: logger}
}

// Update associates one frame of detections. Frames must arrive in
// non-decreasing index order; a frame repeating the previous index is
// treated as a continuation of it.
func (t *Tracker) Update(frame l1detections.Frame) error {
	if t.finalized {
		return casa.Errorf(casa.StageTracking, casa.KindInternal, "update after finalize")
	}
	if frame.Index < 0 {
		return casa.Errorf(casa.StageTracking, casa.KindMalformedInput, "negative frame index %d", frame.Index)
	}
	if t.started && frame.Index < t.lastFrame {
		return casa.Errorf(casa.StageTracking, casa.KindMalformedInput,
			"frame %d arrived after frame %d", frame.Index, t.lastFrame)
	}
	t.started = true
	t.lastFrame = frame.Index
	t.stats.Frames++
	t.stats.Detections += len(frame.Detections)

	assignments := t.associate(frame)

	for di, idx := range assignments {
		if idx >= 0 {
			t.extend(t.Tracks[idx], frame.Index, frame.Detections[di])
		}
	}
	for di, idx := range assignments {
		if idx < 0 {
			t.birth(frame.Index, frame.Detections[di])
		}
	}
	return nil
}

func (t *Tracker) extend(track *Track, frameIndex int, det l1detections.Detection) {
	track.Points = append(track.Points, Point{X: det.X, Y: det.Y})
	track.Areas = append(track.Areas, det.Area)
	track.EndFrame = frameIndex
}

func (t *Tracker) birth(frameIndex int, det l1detections.Detection) {
	if t.Config.MaxOpenTracks > 0 && len(t.Tracks) >= t.Config.MaxOpenTracks {
		t.stats.Dropped++
		return
	}
	t.Tracks = append(t.Tracks, &Track{
		TrackID:    len(t.Tracks) + 1,
		StartFrame: frameIndex,
		EndFrame:   frameIndex,
		Points:     []Point{{X: det.X, Y: det.Y}},
		Areas:      []float64{det.Area},
		State:      TrackOpen,
	})
	t.stats.Created++
}

// Finalize closes every open track and returns those long enough for
// kinematics, in TrackID order. Further updates are rejected.
func (t *Tracker) Finalize() []*Track {
	if t.finalized {
		return t.Finalized()
	}
	t.finalized = true
	out := make([]*Track, 0, len(t.Tracks))
	for _, track := range t.Tracks {
		if track.State != TrackOpen {
			continue
		}
		if track.Len() >= t.Config.MinTrackLength {
			track.State = TrackFinalized
			t.stats.Finalized++
			out = append(out, track)
		} else {
			track.State = TrackDiscarded
			t.stats.Discarded++
		}
	}
	t.logger.Debug("[Tracker] finalized",
		"frames", t.stats.Frames,
		"created", t.stats.Created,
		"finalized", t.stats.Finalized,
		"discarded", t.stats.Discarded,
		"dropped", t.stats.Dropped)
	return out
}

// Finalized returns the tracks in the Finalized state, in TrackID order.
func (t *Tracker) Finalized() []*Track {
	var out []*Track
	for _, track := range t.Tracks {
		if track.State == TrackFinalized {
			out = append(out, track)
		}
	}
	return out
}

// GetTrack returns the track with the given ID, or nil.
func (t *Tracker) GetTrack(id int) *Track {
	if id < 1 || id > len(t.Tracks) {
		return nil
	}
	return t.Tracks[id-1]
}

// Stats returns the counters accumulated so far.
func (t *Tracker) Stats() Stats { return t.stats }

// Associate runs a fresh Tracker over frames and returns the finalized
// tracks. The context is checked between frames, never within one.
func Associate(ctx context.Context, frames []l1detections.Frame, config TrackerConfig, logger *slog.Logger) ([]*Track, Stats, error) {
	if err := config.Validate(); err != nil {
		return nil, Stats{}, casa.NewError(casa.StageTracking, casa.KindValidationFailure, err)
	}
	t := NewTracker(config, logger)
	for _, frame := range frames {
		if err := ctx.Err(); err != nil {
			return nil, t.Stats(), casa.NewError(casa.StageTracking, casa.KindCancelled, err)
		}
		if err := t.Update(frame); err != nil {
			return nil, t.Stats(), err
		}
	}
	tracks := t.Finalize()
	return tracks, t.Stats(), nil
}
