package pipeline

import (
	"fmt"

	"github.com/you112ef/Sky-CASA/internal/casa"
	"github.com/you112ef/Sky-CASA/internal/casa/l2tracks"
	"github.com/you112ef/Sky-CASA/internal/casa/l3kinematics"
	"github.com/you112ef/Sky-CASA/internal/casa/l4motility"
	"github.com/you112ef/Sky-CASA/internal/config"
	"github.com/you112ef/Sky-CASA/internal/units"
)

// Params gathers every tunable of a run. It is echoed into the result.
type Params struct {
	Tracker            l2tracks.TrackerConfig `json:"tracker"`
	Kinematics         l3kinematics.Options   `json:"kinematics"`
	Thresholds         l4motility.Thresholds  `json:"thresholds"`
	DefaultCalibration casa.Calibration       `json:"default_calibration"`
	Workers            int                    `json:"workers"`
	ReportUnits        string                 `json:"report_units"`
}

// DefaultParams returns the built-in configuration.
func DefaultParams() Params {
	return Params{
		Tracker:            l2tracks.DefaultTrackerConfig(),
		Kinematics:         l3kinematics.DefaultOptions(),
		Thresholds:         l4motility.DefaultThresholds(),
		DefaultCalibration: casa.DefaultCalibration(),
		ReportUnits:        units.UMPS,
	}
}

// ParamsFromTuning builds Params from a tuning file. A nil cfg yields
// DefaultParams.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	if cfg == nil {
		return DefaultParams()
	}
	return Params{
		Tracker:    l2tracks.TrackerConfigFromTuning(cfg),
		Kinematics: l3kinematics.OptionsFromTuning(cfg),
		Thresholds: l4motility.ThresholdsFromTuning(cfg),
		DefaultCalibration: casa.Calibration{
			MicronsPerPixel: cfg.GetDefaultMicronsPerPixel(),
			FrameRateHz:     cfg.GetDefaultFrameRateHz(),
		},
		Workers:     cfg.GetWorkers(),
		ReportUnits: units.UMPS,
	}
}

// Validate checks every component configuration.
func (p Params) Validate() error {
	if err := p.Tracker.Validate(); err != nil {
		return fmt.Errorf("tracker: %w", err)
	}
	if err := p.Thresholds.Validate(); err != nil {
		return fmt.Errorf("classification: %w", err)
	}
	if _, err := l3kinematics.ParseVAPMode(string(p.Kinematics.VAPMode)); err != nil {
		return fmt.Errorf("kinematics: %w", err)
	}
	if err := p.DefaultCalibration.Validate(); err != nil {
		return fmt.Errorf("default calibration: %w", err)
	}
	if !units.IsValid(p.ReportUnits) {
		return fmt.Errorf("report units %q not one of %s", p.ReportUnits, units.GetValidUnitsString())
	}
	return nil
}
