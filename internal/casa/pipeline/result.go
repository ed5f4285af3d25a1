package pipeline

import (
	"time"

	"github.com/you112ef/Sky-CASA/internal/casa"
	"github.com/you112ef/Sky-CASA/internal/casa/l1detections"
	"github.com/you112ef/Sky-CASA/internal/casa/l2tracks"
	"github.com/you112ef/Sky-CASA/internal/casa/l3kinematics"
	"github.com/you112ef/Sky-CASA/internal/casa/l4motility"
)

// Input is the detection sequence and metadata of one run.
type Input = l1detections.Input

// TrackResult is one finalized track with its kinematics and class.
// Kinematics is nil when the track had fewer than two points.
type TrackResult struct {
	Track      *l2tracks.Track               `json:"track"`
	Kinematics *l3kinematics.TrackKinematics `json:"kinematics,omitempty"`
	Class      l4motility.Class              `json:"class,omitempty"`
}

// Failure describes why a run failed.
type Failure struct {
	Stage   casa.Stage `json:"stage"`
	Kind    casa.Kind  `json:"kind"`
	Message string     `json:"message"`
}

// AnalysisResult is the immutable output of Engine.Analyze.
type AnalysisResult struct {
	RunID       string                  `json:"run_id"`
	SampleID    string                  `json:"sample_id,omitempty"`
	Source      string                  `json:"source,omitempty"`
	Sample      l1detections.SampleInfo `json:"sample"`
	AnalyzedAt  time.Time               `json:"analyzed_at"`
	Duration    time.Duration           `json:"duration_ns"`
	Calibration casa.Calibration        `json:"calibration"`
	Params      Params                  `json:"params"`

	TotalFrames     int                         `json:"total_frames"`
	TotalDetections int                         `json:"total_detections"`
	TracksCreated   int                         `json:"tracks_created"`
	TracksDiscarded int                         `json:"tracks_discarded"`
	Tracks          []TrackResult               `json:"tracks"`
	Aggregate       l4motility.AggregateMetrics `json:"aggregate"`
	Report          string                      `json:"report"`

	Success      bool     `json:"success"`
	Failure      *Failure `json:"failure,omitempty"`
	ErrorMessage string   `json:"error_message,omitempty"`
}

// Err returns the failure as an *casa.AnalysisError, or nil on success.
func (r *AnalysisResult) Err() error {
	if r.Success || r.Failure == nil {
		return nil
	}
	return casa.Errorf(r.Failure.Stage, r.Failure.Kind, "%s", r.Failure.Message)
}

// ClassOf returns the class of the given track and whether it has
// kinematics.
func (r *AnalysisResult) ClassOf(trackID int) (l4motility.Class, bool) {
	for _, tr := range r.Tracks {
		if tr.Track.TrackID == trackID {
			return tr.Class, tr.Kinematics != nil
		}
	}
	return "", false
}
