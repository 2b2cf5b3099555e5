package source

import (
	"github.com/lox/envmon/internal/models"
)

const (
	FlagTempOutOfRange     = "temp_out_of_range"
	FlagHumidityInvalid    = "humidity_invalid"
	FlagPressureOutOfRange = "pressure_out_of_range"
	FlagGasNegative        = "gas_negative"
	FlagUVNegative         = "uv_negative"
	FlagLightNegative      = "light_negative"
)

// ValidateReading returns quality flags for implausible values. Flagged values
// are still aggregated; the flags feed logs and metrics only.
func ValidateReading(r models.RawReading) []string {
	var flags []string

	if v, ok := r.Value(models.Temperature); ok {
		if v < -40 || v > 85 {
			flags = append(flags, FlagTempOutOfRange)
		}
	}

	if v, ok := r.Value(models.Humidity); ok {
		if v < 0 || v > 100 {
			flags = append(flags, FlagHumidityInvalid)
		}
	}

	if v, ok := r.Value(models.Pressure); ok {
		if v < 300 || v > 1100 {
			flags = append(flags, FlagPressureOutOfRange)
		}
	}

	if v, ok := r.Value(models.GasResistance); ok && v < 0 {
		flags = append(flags, FlagGasNegative)
	}
	if v, ok := r.Value(models.UVRaw); ok && v < 0 {
		flags = append(flags, FlagUVNegative)
	}
	if v, ok := r.Value(models.AmbientLight); ok && v < 0 {
		flags = append(flags, FlagLightNegative)
	}

	return flags
}
