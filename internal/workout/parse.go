package workout

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ParseError reports malformed human-entered text in a workout step. It is
// recoverable: the caller skips the offending workout file and carries on.
type ParseError struct {
	Field string
	Value string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s %q: %v", e.Field, e.Value, e.Err)
	}
	return fmt.Sprintf("parse %s %q", e.Field, e.Value)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ParseDuration parses "MM:SS" text into whole seconds. A missing component
// defaults to 0, so "5" is five minutes and "0:30" is thirty seconds.
func ParseDuration(text string) (uint16, error) {
	parts := strings.Split(text, ":")

	minutes, err := parseComponent(parts, 0)
	if err != nil {
		return 0, &ParseError{Field: "duration", Value: text, Err: err}
	}
	seconds, err := parseComponent(parts, 1)
	if err != nil {
		return 0, &ParseError{Field: "duration", Value: text, Err: err}
	}

	total := uint32(minutes)*60 + uint32(seconds)
	if total > math.MaxUint16 {
		return 0, &ParseError{Field: "duration", Value: text, Err: fmt.Errorf("exceeds %d seconds", math.MaxUint16)}
	}
	return uint16(total), nil
}

func parseComponent(parts []string, idx int) (uint16, error) {
	if idx >= len(parts) {
		return 0, nil
	}
	v, err := strconv.ParseUint(parts[idx], 10, 16)
	if err != nil {
		return 0, err
	}
	return uint16(v), nil
}

// PaceUnit is the unit tag of a human-entered pace value.
type PaceUnit string

const (
	PaceUnitMph      PaceUnit = "mph"
	PaceUnitKph      PaceUnit = "kph"
	PaceUnitMinPerMi PaceUnit = "min/mi"
	PaceUnitMinPerKm PaceUnit = "min/km"
)

// Pace is an unparsed pace entry from a workout file: a unit tag plus the
// text the user typed. min/mi and min/km values are "MM:SS" per distance
// unit; mph and kph values are decimal speeds.
type Pace struct {
	Unit  PaceUnit `json:"unit"`
	Value string   `json:"value"`
}

// kmPerMile converts statute miles to kilometers.
const kmPerMile = 1.60934

// SpeedCentiKmh converts a pace to fixed-point speed in hundredths of km/h,
// truncating toward zero. A pace that works out to zero distance per time
// (e.g. min/mi "0:00"), a non-positive speed, or a speed past the fixed-point
// range is a ParseError, so garbage never reaches the belt as a target.
func (p Pace) SpeedCentiKmh() (uint16, error) {
	var kmh float64
	switch p.Unit {
	case PaceUnitMinPerMi:
		perMile, err := minPerDistanceToKmh(p)
		if err != nil {
			return 0, err
		}
		kmh = perMile * kmPerMile
	case PaceUnitMinPerKm:
		perKm, err := minPerDistanceToKmh(p)
		if err != nil {
			return 0, err
		}
		kmh = perKm
	case PaceUnitMph:
		v, err := strconv.ParseFloat(p.Value, 64)
		if err != nil {
			return 0, &ParseError{Field: "pace", Value: p.Value, Err: err}
		}
		kmh = v * kmPerMile
	case PaceUnitKph:
		v, err := strconv.ParseFloat(p.Value, 64)
		if err != nil {
			return 0, &ParseError{Field: "pace", Value: p.Value, Err: err}
		}
		kmh = v
	default:
		return 0, &ParseError{Field: "pace unit", Value: string(p.Unit), Err: fmt.Errorf("unknown unit")}
	}

	centi := kmh * 100
	// The negated comparison also rejects NaN.
	if !(centi > 0 && centi <= math.MaxUint16) {
		return 0, &ParseError{Field: "pace", Value: p.Value, Err: fmt.Errorf("speed %.2f km/h out of range", kmh)}
	}
	return uint16(centi), nil
}

// minPerDistanceToKmh converts a "MM:SS per distance unit" pace into
// distance units per hour.
func minPerDistanceToKmh(p Pace) (float64, error) {
	secondsPerUnit, err := ParseDuration(p.Value)
	if err != nil {
		return 0, err
	}
	if secondsPerUnit == 0 {
		return 0, &ParseError{Field: "pace", Value: p.Value, Err: fmt.Errorf("zero time per distance")}
	}
	return 3600.0 / float64(secondsPerUnit), nil
}
