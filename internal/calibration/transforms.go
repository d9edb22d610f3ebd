// Package calibration converts raw analog voltages reported by a VegeHub into
// physical units.
//
// Every transform accepts an untyped reading (the value as it arrived in a push
// payload, a CLI argument, or a registry default) and reports validity through a
// second boolean result. A reading that cannot be coerced to a finite number
// yields (0, false); the transforms never panic, so a single bad sample cannot
// abort payload ingestion.
package calibration

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NoiseFloor is the voltage below which a VH400 reading is reported as dry soil.
const NoiseFloor = 0.01

// Therm200 linear coefficients: celsius = Therm200Slope*volts + Therm200Offset
const (
	Therm200Slope  = 41.67
	Therm200Offset = -40.0
)

// breakpoint is one (volts, percent) coordinate of the VH400 lookup table.
type breakpoint struct {
	volts   float64
	percent float64
}

// vh400Table is the manufacturer's volumetric water content curve.
// Breakpoints must stay sorted by volts.
var vh400Table = []breakpoint{
	{0, 0},
	{1.1, 10},
	{1.3, 15},
	{1.82, 40},
	{2.2, 50},
	{3.0, 100},
}

// SensorType identifies which transform applies to an analog channel.
type SensorType string

const (
	// SensorRaw passes the coerced voltage through unchanged
	SensorRaw SensorType = "raw"
	// SensorVH400 is the capacitance soil moisture probe (percent VWC)
	SensorVH400 SensorType = "vh400"
	// SensorTherm200 is the resistive soil temperature probe (degrees celsius)
	SensorTherm200 SensorType = "therm200"
)

// Unit returns the unit of measurement produced for the sensor type.
func (s SensorType) Unit() string {
	switch s {
	case SensorVH400:
		return "%"
	case SensorTherm200:
		return "°C"
	default:
		return "V"
	}
}

// ParseSensorType parses a sensor type name, case-insensitively.
// An empty name maps to SensorRaw.
func ParseSensorType(name string) (SensorType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "raw", "voltage":
		return SensorRaw, nil
	case "vh400", "moisture":
		return SensorVH400, nil
	case "therm200", "temperature":
		return SensorTherm200, nil
	default:
		return "", fmt.Errorf("unknown sensor type %q (expected raw, vh400 or therm200)", name)
	}
}

// Apply runs the transform for sensor type s over v.
func Apply(s SensorType, v any) (float64, bool) {
	switch s {
	case SensorVH400:
		return VH400(v)
	case SensorTherm200:
		return Therm200(v)
	default:
		return ToFloat(v)
	}
}

// VH400 converts a VH400 probe voltage into volumetric water content (0-100%).
func VH400(v any) (float64, bool) {
	volts, ok := ToFloat(v)
	if !ok {
		return 0, false
	}
	if volts < NoiseFloor {
		return 0, true
	}

	for i := 1; i < len(vh400Table); i++ {
		lo, hi := vh400Table[i-1], vh400Table[i]
		if volts == hi.volts {
			return hi.percent, true
		}
		if volts < hi.volts {
			frac := (volts - lo.volts) / (hi.volts - lo.volts)
			return lo.percent + (hi.percent-lo.percent)*frac, true
		}
	}

	return vh400Table[len(vh400Table)-1].percent, true
}

// Therm200 converts a THERM200 probe voltage into degrees celsius.
// The formula is applied over the whole domain; out-of-range voltages extrapolate.
func Therm200(v any) (float64, bool) {
	volts, ok := ToFloat(v)
	if !ok {
		return 0, false
	}
	return Therm200Slope*volts + Therm200Offset, true
}

// ToFloat coerces a reading into a finite float64.
// Booleans count as 1 and 0; strings are parsed after trimming whitespace.
func ToFloat(v any) (float64, bool) {
	var f float64

	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case bool:
		if n {
			f = 1
		}
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
