// Package units provides shared constants and conversion for distance units
package units

import (
	"fmt"
	"strings"
)

// Unit constants
const (
	MM = "mm"
	CM = "cm"
	M  = "m"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MM, CM, M}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return strings.Join(ValidUnits, ", ")
}

// ConvertDistance converts a distance from millimetres to the target units.
// Volume geometry is always stored in mm.
func ConvertDistance(mm float64, targetUnits string) float64 {
	switch targetUnits {
	case CM:
		return mm / 10
	case M:
		return mm / 1000
	default:
		return mm
	}
}

// FormatDistance renders a millimetre distance in the target units with the
// unit suffix, e.g. "12.5 cm".
func FormatDistance(mm float64, targetUnits string) string {
	if !IsValid(targetUnits) {
		targetUnits = MM
	}
	return fmt.Sprintf("%g %s", ConvertDistance(mm, targetUnits), targetUnits)
}
