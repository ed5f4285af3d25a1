package l4motility

import (
	"fmt"

	"github.com/you112ef/Sky-CASA/internal/casa/l3kinematics"
	"github.com/you112ef/Sky-CASA/internal/config"
)

// Class is the motility category of a track.
type Class string

const (
	ClassProgressive    Class = "progressive"
	ClassNonProgressive Class = "non_progressive"
	ClassImmotile       Class = "immotile"
)

// Label returns the human-readable class name used in reports.
func (c Class) Label() string {
	switch c {
	case ClassProgressive:
		return "Progressive"
	case ClassNonProgressive:
		return "Non-progressive"
	case ClassImmotile:
		return "Immotile"
	}
	return string(c)
}

// Default LIN thresholds in percent.
const (
	DefaultProgressiveLIN = 50.0
	DefaultImmotileLIN    = 10.0
)

// Thresholds are the LIN cut points. Both bounds are exclusive on the
// upper class: LIN > ProgressiveLIN is progressive, LIN > ImmotileLIN is
// non-progressive, anything else is immotile.
type Thresholds struct {
	ProgressiveLIN float64 `json:"progressive_lin"`
	ImmotileLIN    float64 `json:"immotile_lin"`
}

// DefaultThresholds returns the 50 % / 10 % cut points.
func DefaultThresholds() Thresholds {
	return Thresholds{ProgressiveLIN: DefaultProgressiveLIN, ImmotileLIN: DefaultImmotileLIN}
}

// ThresholdsFromTuning reads the thresholds from a tuning file. A nil cfg
// yields DefaultThresholds.
func ThresholdsFromTuning(cfg *config.TuningConfig) Thresholds {
	if cfg == nil {
		return DefaultThresholds()
	}
	return Thresholds{ProgressiveLIN: cfg.GetProgressiveLIN(), ImmotileLIN: cfg.GetImmotileLIN()}
}

// Validate requires 0 <= ImmotileLIN < ProgressiveLIN <= 100.
func (t Thresholds) Validate() error {
	if t.ImmotileLIN < 0 || t.ProgressiveLIN > 100 || t.ImmotileLIN >= t.ProgressiveLIN {
		return fmt.Errorf("LIN thresholds must satisfy 0 <= immotile < progressive <= 100, got immotile=%g progressive=%g",
			t.ImmotileLIN, t.ProgressiveLIN)
	}
	return nil
}

// Classify assigns a motility class from the track's linearity.
func (t Thresholds) Classify(k l3kinematics.TrackKinematics) Class {
	switch {
	case k.LIN > t.ProgressiveLIN:
		return ClassProgressive
	case k.LIN > t.ImmotileLIN:
		return ClassNonProgressive
	default:
		return ClassImmotile
	}
}
