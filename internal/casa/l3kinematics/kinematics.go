package l3kinematics

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/you112ef/Sky-CASA/internal/casa"
	"github.com/you112ef/Sky-CASA/internal/casa/l2tracks"
	"github.com/you112ef/Sky-CASA/internal/config"
)

// VAPMode selects how the average path velocity is derived.
type VAPMode string

const (
	VAPCurvilinear VAPMode = "curvilinear" // VAP = VCL
	VAPSmoothed    VAPMode = "smoothed"    // VAP along a moving-average path
)

// ParseVAPMode parses a mode name; empty selects VAPCurvilinear.
func ParseVAPMode(s string) (VAPMode, error) {
	switch VAPMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", VAPCurvilinear:
		return VAPCurvilinear, nil
	case VAPSmoothed:
		return VAPSmoothed, nil
	}
	return "", fmt.Errorf("unknown VAP mode %q", s)
}

const DefaultSmoothingWindow = 5

// Options tunes the kinematics computation.
type Options struct {
	VAPMode         VAPMode `json:"vap_mode"`
	SmoothingWindow int     `json:"smoothing_window"` // points in the centred moving average (VAPSmoothed only)
}

// DefaultOptions returns the curvilinear VAP configuration.
func DefaultOptions() Options {
	return Options{VAPMode: VAPCurvilinear, SmoothingWindow: DefaultSmoothingWindow}
}

// OptionsFromTuning builds Options from a tuning file. A nil cfg yields
// DefaultOptions.
func OptionsFromTuning(cfg *config.TuningConfig) Options {
	if cfg == nil {
		return DefaultOptions()
	}
	// Unknown modes pass through unchanged for Params validation to reject.
	mode := VAPMode(cfg.GetVAPMode())
	if parsed, err := ParseVAPMode(string(mode)); err == nil {
		mode = parsed
	}
	return Options{VAPMode: mode, SmoothingWindow: cfg.GetSmoothingWindow()}
}

// TrackKinematics is the CASA parameter set of one track.
type TrackKinematics struct {
	VCL float64 `json:"vcl"` // curvilinear velocity, µm/s
	VSL float64 `json:"vsl"` // straight-line velocity, µm/s
	VAP float64 `json:"vap"` // average path velocity, µm/s
	ALH float64 `json:"alh"` // mean signed turning angle, degrees
	BCF float64 `json:"bcf"` // turning-angle sign changes per second, Hz
	LIN float64 `json:"lin"` // VSL/VCL, %
	STR float64 `json:"str"` // VSL/VAP, %
	WOB float64 `json:"wob"` // VAP/VCL, %
	MAD float64 `json:"mad"` // mean absolute turning angle, degrees

	PathLengthMicrons   float64 `json:"path_length_um"`
	DisplacementMicrons float64 `json:"displacement_um"`
	DurationSecs        float64 `json:"duration_s"`
	Steps               int     `json:"steps"`
}

// Compute derives the CASA parameters of a centroid sequence. It returns
// false when fewer than two points make the kinematics undefined.
func Compute(points []l2tracks.Point, calib casa.Calibration, opts Options) (TrackKinematics, bool) {
	n := len(points)
	if n < 2 {
		return TrackKinematics{}, false
	}
	mpp, fps := calib.MicronsPerPixel, calib.FrameRateHz
	steps := n - 1

	stepLen := make([]float64, steps)
	for i := 1; i < n; i++ {
		stepLen[i-1] = points[i-1].Distance(points[i]) * mpp
	}
	stepVel := make([]float64, steps)
	floats.ScaleTo(stepVel, fps, stepLen)

	k := TrackKinematics{
		Steps:               steps,
		DurationSecs:        float64(steps) / fps,
		PathLengthMicrons:   floats.Sum(stepLen),
		DisplacementMicrons: points[0].Distance(points[n-1]) * mpp,
	}
	k.VCL = stat.Mean(stepVel, nil)
	k.VSL = math.Min(k.DisplacementMicrons/k.DurationSecs, k.VCL)

	switch opts.VAPMode {
	case VAPSmoothed:
		k.VAP = smoothedVelocity(points, opts.SmoothingWindow, mpp, fps)
		// Keep VSL ≤ VAP ≤ VCL.
		k.VAP = math.Max(k.VSL, math.Min(k.VAP, k.VCL))
	default:
		k.VAP = k.VCL
	}

	angles := TurningAngles(points)
	if len(angles) > 0 {
		k.ALH = stat.Mean(angles, nil)
		abs := make([]float64, len(angles))
		for i, a := range angles {
			abs[i] = math.Abs(a)
		}
		k.MAD = stat.Mean(abs, nil)
		k.BCF = float64(signChanges(angles)) / k.DurationSecs
	}

	k.LIN = percent(k.VSL, k.VCL)
	k.STR = percent(k.VSL, k.VAP)
	k.WOB = percent(k.VAP, k.VCL)
	return k, true
}

// TurningAngle returns the signed angle in degrees between the vectors
// p2→p1 and p2→p3.
func TurningAngle(p1, p2, p3 l2tracks.Point) float64 {
	v1x, v1y := p1.X-p2.X, p1.Y-p2.Y
	v2x, v2y := p3.X-p2.X, p3.Y-p2.Y
	cross := v1x*v2y - v1y*v2x
	dot := v1x*v2x + v1y*v2y
	// Drop negative zeros so collinear steps do not flip between ±180.
	if cross == 0 {
		cross = 0
	}
	if dot == 0 {
		dot = 0
	}
	return math.Atan2(cross, dot) * 180 / math.Pi
}

// TurningAngles returns the turning angle of every consecutive triplet.
func TurningAngles(points []l2tracks.Point) []float64 {
	if len(points) < 3 {
		return nil
	}
	out := make([]float64, len(points)-2)
	for i := 1; i < len(points)-1; i++ {
		out[i-1] = TurningAngle(points[i-1], points[i], points[i+1])
	}
	return out
}

// signChanges counts strict sign flips between consecutive values; zeros
// never count as a flip.
func signChanges(values []float64) int {
	n := 0
	for i := 1; i < len(values); i++ {
		if values[i-1]*values[i] < 0 {
			n++
		}
	}
	return n
}

func percent(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den * 100
}

// smoothedVelocity is the mean step velocity along the centred moving
// average of points, windows truncated at the ends.
func smoothedVelocity(points []l2tracks.Point, window int, mpp, fps float64) float64 {
	path := Smooth(points, window)
	vel := make([]float64, len(path)-1)
	for i := 1; i < len(path); i++ {
		vel[i-1] = path[i-1].Distance(path[i]) * mpp * fps
	}
	return stat.Mean(vel, nil)
}

// Smooth returns the centred moving average of points over window points.
// A window below 2 returns a copy of points.
func Smooth(points []l2tracks.Point, window int) []l2tracks.Point {
	out := make([]l2tracks.Point, len(points))
	if window < 2 {
		copy(out, points)
		return out
	}
	half := window / 2
	xs := make([]float64, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i], ys[i] = p.X, p.Y
	}
	for i := range points {
		lo, hi := max(0, i-half), min(len(points), i+half+1)
		out[i] = l2tracks.Point{X: stat.Mean(xs[lo:hi], nil), Y: stat.Mean(ys[lo:hi], nil)}
	}
	return out
}
