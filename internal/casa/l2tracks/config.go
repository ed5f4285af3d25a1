package l2tracks

import (
	"fmt"
	"strings"

	"github.com/you112ef/Sky-CASA/internal/config"
)

// AssociationMode selects how detections are matched to open tracks.
type AssociationMode string

const (
	AssociationGreedy    AssociationMode = "greedy"    // first-created qualifying track wins
	AssociationNearest   AssociationMode = "nearest"   // smallest Euclidean distance, ties to lower ID
	AssociationHungarian AssociationMode = "hungarian" // per-frame minimum total distance
)

// ParseAssociationMode parses a mode name, case-insensitively. An empty
// string yields the greedy default.
func ParseAssociationMode(s string) (AssociationMode, error) {
	switch AssociationMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", AssociationGreedy:
		return AssociationGreedy, nil
	case AssociationNearest:
		return AssociationNearest, nil
	case AssociationHungarian:
		return AssociationHungarian, nil
	}
	return "", fmt.Errorf("unknown association mode %q", s)
}

// Defaults used when no tuning file is supplied.
const (
	DefaultGatingDistancePx = 20.0
	DefaultMinTrackLength   = 5
)

// TrackerConfig holds configuration parameters for the tracker.
type TrackerConfig struct {
	GatingDistancePx float64         `json:"gating_distance_px"` // Per-axis gate in pixels; a match needs |dx| and |dy| strictly below it
	MinTrackLength   int             `json:"min_track_length"`   // Points a track needs to survive finalization
	Association      AssociationMode `json:"association_mode"`   // Matching strategy
	MaxOpenTracks    int             `json:"max_open_tracks"`    // Cap on tracks born in a run (0 = unlimited)
}

// DefaultTrackerConfig returns default tracker configuration.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		GatingDistancePx: DefaultGatingDistancePx,
		MinTrackLength:   DefaultMinTrackLength,
		Association:      AssociationGreedy,
	}
}

// TrackerConfigFromTuning builds a TrackerConfig from a loaded tuning file.
// A nil cfg yields DefaultTrackerConfig.
func TrackerConfigFromTuning(cfg *config.TuningConfig) TrackerConfig {
	if cfg == nil {
		return DefaultTrackerConfig()
	}
	// An unknown mode is carried through verbatim so Validate rejects it.
	mode := AssociationMode(cfg.GetAssociationMode())
	if parsed, err := ParseAssociationMode(string(mode)); err == nil {
		mode = parsed
	}
	return TrackerConfig{
		GatingDistancePx: cfg.GetGatingDistancePx(),
		MinTrackLength:   cfg.GetMinTrackLength(),
		Association:      mode,
		MaxOpenTracks:    cfg.GetMaxOpenTracks(),
	}
}

// Validate reports the first unusable field.
func (c TrackerConfig) Validate() error {
	if !(c.GatingDistancePx > 0) {
		return fmt.Errorf("gating distance must be positive, got %g", c.GatingDistancePx)
	}
	if c.MinTrackLength < 1 {
		return fmt.Errorf("minimum track length must be at least 1, got %d", c.MinTrackLength)
	}
	if c.MaxOpenTracks < 0 {
		return fmt.Errorf("max open tracks must be non-negative, got %d", c.MaxOpenTracks)
	}
	if _, err := ParseAssociationMode(string(c.Association)); err != nil {
		return err
	}
	return nil
}
