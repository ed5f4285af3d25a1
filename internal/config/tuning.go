// Package config loads CASA engine tuning parameters.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Built-in defaults, used for any field the loaded file omits.
const (
	defaultGatingDistancePx      = 20.0
	defaultMinTrackLength        = 5
	defaultAssociationMode       = "greedy"
	defaultMaxOpenTracks         = 0
	defaultProgressiveLIN        = 50.0
	defaultImmotileLIN           = 10.0
	defaultVAPMode               = "curvilinear"
	defaultSmoothingWindow       = 5
	defaultWorkers               = 4
	defaultFrameRateHz           = 30.0
	defaultMicronsPerPixel       = 1.0
	maxConfigFileSize      int64 = 1 * 1024 * 1024
)

// TuningConfig holds every tunable of an analysis run. Fields are pointers
// so a partial JSON file only overrides what it names; the Get* accessors
// supply defaults for the rest.
type TuningConfig struct {
	// Tracker
	GatingDistancePx *float64 `json:"gating_distance_px,omitempty"`
	MinTrackLength   *int     `json:"min_track_length,omitempty"`
	AssociationMode  *string  `json:"association_mode,omitempty"` // greedy | nearest | hungarian
	MaxOpenTracks    *int     `json:"max_open_tracks,omitempty"`  // 0 = unlimited

	// Classification (LIN %, exclusive on the upper side)
	ProgressiveLIN *float64 `json:"progressive_lin,omitempty"`
	ImmotileLIN    *float64 `json:"immotile_lin,omitempty"`

	// Kinematics
	VAPMode         *string `json:"vap_mode,omitempty"` // curvilinear | smoothed
	SmoothingWindow *int    `json:"smoothing_window,omitempty"`
	Workers         *int    `json:"workers,omitempty"`

	// Calibration fallbacks for samples without metadata
	DefaultFrameRateHz     *float64 `json:"default_frame_rate_hz,omitempty"`
	DefaultMicronsPerPixel *float64 `json:"default_microns_per_pixel,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields unset, so every
// accessor returns its built-in default.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// with the built-in defaults.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		GatingDistancePx:       ptrFloat64(defaultGatingDistancePx),
		MinTrackLength:         ptrInt(defaultMinTrackLength),
		AssociationMode:        ptrString(defaultAssociationMode),
		MaxOpenTracks:          ptrInt(defaultMaxOpenTracks),
		ProgressiveLIN:         ptrFloat64(defaultProgressiveLIN),
		ImmotileLIN:            ptrFloat64(defaultImmotileLIN),
		VAPMode:                ptrString(defaultVAPMode),
		SmoothingWindow:        ptrInt(defaultSmoothingWindow),
		Workers:                ptrInt(defaultWorkers),
		DefaultFrameRateHz:     ptrFloat64(defaultFrameRateHz),
		DefaultMicronsPerPixel: ptrFloat64(defaultMicronsPerPixel),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and be under 1MB. Omitted fields keep their defaults.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents. Panics if the file cannot be loaded; intended
// for tests and binaries run from inside the repository.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the set values are usable.
func (c *TuningConfig) Validate() error {
	if c.GatingDistancePx != nil && *c.GatingDistancePx <= 0 {
		return fmt.Errorf("gating_distance_px must be positive, got %f", *c.GatingDistancePx)
	}
	if c.MinTrackLength != nil && *c.MinTrackLength < 1 {
		return fmt.Errorf("min_track_length must be at least 1, got %d", *c.MinTrackLength)
	}
	if c.AssociationMode != nil {
		switch strings.ToLower(*c.AssociationMode) {
		case "greedy", "nearest", "hungarian":
		default:
			return fmt.Errorf("association_mode must be greedy, nearest or hungarian, got %q", *c.AssociationMode)
		}
	}
	if c.MaxOpenTracks != nil && *c.MaxOpenTracks < 0 {
		return fmt.Errorf("max_open_tracks must be non-negative, got %d", *c.MaxOpenTracks)
	}
	prog, imm := c.GetProgressiveLIN(), c.GetImmotileLIN()
	if imm < 0 || prog > 100 || imm >= prog {
		return fmt.Errorf("LIN thresholds must satisfy 0 <= immotile_lin < progressive_lin <= 100, got %g and %g", imm, prog)
	}
	if c.VAPMode != nil {
		switch strings.ToLower(*c.VAPMode) {
		case "curvilinear", "smoothed":
		default:
			return fmt.Errorf("vap_mode must be curvilinear or smoothed, got %q", *c.VAPMode)
		}
	}
	if c.SmoothingWindow != nil && *c.SmoothingWindow < 1 {
		return fmt.Errorf("smoothing_window must be at least 1, got %d", *c.SmoothingWindow)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.DefaultFrameRateHz != nil && *c.DefaultFrameRateHz <= 0 {
		return fmt.Errorf("default_frame_rate_hz must be positive, got %f", *c.DefaultFrameRateHz)
	}
	if c.DefaultMicronsPerPixel != nil && *c.DefaultMicronsPerPixel <= 0 {
		return fmt.Errorf("default_microns_per_pixel must be positive, got %f", *c.DefaultMicronsPerPixel)
	}
	return nil
}

// GetGatingDistancePx returns the gating_distance_px value or the default.
func (c *TuningConfig) GetGatingDistancePx() float64 {
	if c.GatingDistancePx == nil {
		return defaultGatingDistancePx
	}
	return *c.GatingDistancePx
}

// GetMinTrackLength returns the min_track_length value or the default.
func (c *TuningConfig) GetMinTrackLength() int {
	if c.MinTrackLength == nil {
		return defaultMinTrackLength
	}
	return *c.MinTrackLength
}

// GetAssociationMode returns the association_mode value or the default.
func (c *TuningConfig) GetAssociationMode() string {
	if c.AssociationMode == nil || *c.AssociationMode == "" {
		return defaultAssociationMode
	}
	return strings.ToLower(*c.AssociationMode)
}

// GetMaxOpenTracks returns the max_open_tracks value or the default.
func (c *TuningConfig) GetMaxOpenTracks() int {
	if c.MaxOpenTracks == nil {
		return defaultMaxOpenTracks
	}
	return *c.MaxOpenTracks
}

// GetProgressiveLIN returns the progressive_lin value or the default.
func (c *TuningConfig) GetProgressiveLIN() float64 {
	if c.ProgressiveLIN == nil {
		return defaultProgressiveLIN
	}
	return *c.ProgressiveLIN
}

// GetImmotileLIN returns the immotile_lin value or the default.
func (c *TuningConfig) GetImmotileLIN() float64 {
	if c.ImmotileLIN == nil {
		return defaultImmotileLIN
	}
	return *c.ImmotileLIN
}

// GetVAPMode returns the vap_mode value or the default.
func (c *TuningConfig) GetVAPMode() string {
	if c.VAPMode == nil || *c.VAPMode == "" {
		return defaultVAPMode
	}
	return strings.ToLower(*c.VAPMode)
}

// GetSmoothingWindow returns the smoothing_window value or the default.
func (c *TuningConfig) GetSmoothingWindow() int {
	if c.SmoothingWindow == nil {
		return defaultSmoothingWindow
	}
	return *c.SmoothingWindow
}

// GetWorkers returns the workers value or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return defaultWorkers
	}
	return *c.Workers
}

// GetDefaultFrameRateHz returns the default_frame_rate_hz value or the default.
func (c *TuningConfig) GetDefaultFrameRateHz() float64 {
	if c.DefaultFrameRateHz == nil {
		return defaultFrameRateHz
	}
	return *c.DefaultFrameRateHz
}

// GetDefaultMicronsPerPixel returns the default_microns_per_pixel value or the default.
func (c *TuningConfig) GetDefaultMicronsPerPixel() float64 {
	if c.DefaultMicronsPerPixel == nil {
		return defaultMicronsPerPixel
	}
	return *c.DefaultMicronsPerPixel
}

// Overrides carries command-line or request-level values applied on top of
// a loaded config. Zero values leave the config untouched.
type Overrides struct {
	GatingDistancePx float64
	MinTrackLength   int
	AssociationMode  string
	Workers          int
}

// WithOverrides returns a copy of c with the non-zero overrides applied.
func (c *TuningConfig) WithOverrides(o Overrides) *TuningConfig {
	out := *c
	if o.GatingDistancePx > 0 {
		out.GatingDistancePx = ptrFloat64(o.GatingDistancePx)
	}
	if o.MinTrackLength > 0 {
		out.MinTrackLength = ptrInt(o.MinTrackLength)
	}
	if o.AssociationMode != "" {
		out.AssociationMode = ptrString(o.AssociationMode)
	}
	if o.Workers > 0 {
		out.Workers = ptrInt(o.Workers)
	}
	return &out
}
