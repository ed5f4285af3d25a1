package casa

import (
	"fmt"
	"math"
)

// Calibration defaults used when the sample metadata does not supply a value.
const (
	DefaultMicronsPerPixel = 1.0
	DefaultFrameRateHz     = 30.0
)

// Calibration converts pixel-space measurements into physical units.
// It is resolved once per run and never changes afterwards.
type Calibration struct {
	MicronsPerPixel float64 `json:"microns_per_pixel"`
	FrameRateHz     float64 `json:"frame_rate_hz"`
}

// DefaultCalibration returns the calibration applied when nothing is known
// about the sample.
func DefaultCalibration() Calibration {
	return Calibration{
		MicronsPerPixel: DefaultMicronsPerPixel,
		FrameRateHz:     DefaultFrameRateHz,
	}
}

// FrameInterval returns the time between consecutive frames in seconds.
func (c Calibration) FrameInterval() float64 {
	return 1.0 / c.FrameRateHz
}

// String renders the calibration the way it is echoed in reports.
func (c Calibration) String() string {
	return fmt.Sprintf("%.4g µm/px @ %.4g fps", c.MicronsPerPixel, c.FrameRateHz)
}

// CalibrationInput is calibration as supplied by the sample metadata
// collaborator. Either field may be absent.
type CalibrationInput struct {
	MicronsPerPixel *float64 `json:"microns_per_pixel,omitempty"`
	FrameRateHz     *float64 `json:"frame_rate_hz,omitempty"`
}

// Resolve validates explicitly provided values and fills absent ones from
// fallback. An explicit value that is not a positive finite number is a
// ValidationFailure.
func (in CalibrationInput) Resolve(fallback Calibration) (Calibration, error) {
	out := fallback
	if in.MicronsPerPixel != nil {
		if !positiveFinite(*in.MicronsPerPixel) {
			return Calibration{}, NewError(StageIngest, KindValidationFailure,
				fmt.Errorf("microns_per_pixel must be > 0, got %v", *in.MicronsPerPixel))
		}
		out.MicronsPerPixel = *in.MicronsPerPixel
	}
	if in.FrameRateHz != nil {
		if !positiveFinite(*in.FrameRateHz) {
			return Calibration{}, NewError(StageIngest, KindValidationFailure,
				fmt.Errorf("frame_rate_hz must be > 0, got %v", *in.FrameRateHz))
		}
		out.FrameRateHz = *in.FrameRateHz
	}
	return out, nil
}

// Validate reports whether both fields are positive finite numbers.
func (c Calibration) Validate() error {
	if !positiveFinite(c.MicronsPerPixel) {
		return fmt.Errorf("microns_per_pixel must be > 0, got %v", c.MicronsPerPixel)
	}
	if !positiveFinite(c.FrameRateHz) {
		return fmt.Errorf("frame_rate_hz must be > 0, got %v", c.FrameRateHz)
	}
	return nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Float64 returns a pointer to v, for building CalibrationInput literals.
func Float64(v float64) *float64 { return &v }
