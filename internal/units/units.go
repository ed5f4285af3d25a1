// Package units provides shared constants and validation for velocity units.
package units

import "strings"

// Unit constants
const (
	UMPS = "um/s" // micrometres per second, the engine's native unit
	MMPS = "mm/s"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{UMPS, MMPS}

// Normalize maps accepted spellings onto a unit constant. Unknown input is
// returned lower-cased.
func Normalize(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	switch u {
	case "", "µm/s", "μm/s", "um/s", "umps":
		return UMPS
	case "mm/s", "mmps":
		return MMPS
	}
	return u
}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	u := Normalize(unit)
	for _, validUnit := range ValidUnits {
		if u == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertVelocity converts a velocity from µm/s to the target units.
func ConvertVelocity(umps float64, targetUnits string) float64 {
	switch Normalize(targetUnits) {
	case MMPS:
		return umps / 1000
	default:
		return umps
	}
}

// Label returns the display label for a unit.
func Label(unit string) string {
	switch Normalize(unit) {
	case MMPS:
		return "mm/s"
	default:
		return "µm/s"
	}
}
