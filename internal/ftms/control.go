package ftms

import "fmt"

// FTMS Control Point Op Codes (Fitness Machine Service 1.0 spec) for the
// commands a treadmill accepts.
const (
	OpCodeRequestControl          byte = 0x00
	OpCodeReset                   byte = 0x01
	OpCodeSetTargetSpeed          byte = 0x02
	OpCodeSetTargetInclination    byte = 0x03
	OpCodeStartOrResume           byte = 0x07
	OpCodeStopOrPause             byte = 0x08
	OpCodeSetTargetedDistance     byte = 0x0C
	OpCodeSetTargetedTrainingTime byte = 0x0D
)

// Command is the closed set of outbound Control Point commands. Each variant
// carries at most one numeric parameter. Commands are plain values,
// constructed and encoded immediately.
//
// The encoder does not enforce command ordering (request control before
// start, start before parameter changes); that protocol sequencing belongs
// to the caller issuing the writes.
type Command interface {
	ftmsCommand()
}

type RequestControl struct{}

type Reset struct{}

// SetTargetSpeed sets the belt speed in 0.01 km/h units.
type SetTargetSpeed struct {
	SpeedCentiKmh uint16
}

// SetTargetInclination sets the incline in 0.1 % units.
type SetTargetInclination struct {
	InclinationDeciPct int16
}

type StartOrResume struct{}

type StopOrPause struct{}

// SetTargetedDistance sets a distance target in meters. The wire field is a
// UINT24, so Meters must fit in 24 bits; use NewSetTargetedDistance to
// construct a validated value.
type SetTargetedDistance struct {
	Meters uint32
}

// SetTargetedTrainingTime sets a session time target in seconds.
type SetTargetedTrainingTime struct {
	Seconds uint16
}

func (RequestControl) ftmsCommand()          {}
func (Reset) ftmsCommand()                   {}
func (SetTargetSpeed) ftmsCommand()          {}
func (SetTargetInclination) ftmsCommand()    {}
func (StartOrResume) ftmsCommand()           {}
func (StopOrPause) ftmsCommand()             {}
func (SetTargetedDistance) ftmsCommand()     {}
func (SetTargetedTrainingTime) ftmsCommand() {}

// MaxTargetedDistanceMeters is the largest distance the UINT24 wire field
// can carry.
const MaxTargetedDistanceMeters uint32 = 1<<24 - 1

// NewSetTargetedDistance validates that meters fits the 24-bit wire field.
// Out-of-range values are rejected here rather than silently truncated at
// encode time.
func NewSetTargetedDistance(meters uint32) (SetTargetedDistance, error) {
	if meters > MaxTargetedDistanceMeters {
		return SetTargetedDistance{}, fmt.Errorf("targeted distance %d m exceeds 24-bit maximum %d", meters, MaxTargetedDistanceMeters)
	}
	return SetTargetedDistance{Meters: meters}, nil
}

// EncodeCommand produces the Control Point message for a command: the op
// code followed by the little-endian parameter, if any. Encoding is total.
func EncodeCommand(cmd Command) []byte {
	switch c := cmd.(type) {
	case RequestControl:
		return []byte{OpCodeRequestControl}
	case Reset:
		return []byte{OpCodeReset}
	case SetTargetSpeed:
		return []byte{OpCodeSetTargetSpeed, byte(c.SpeedCentiKmh), byte(c.SpeedCentiKmh >> 8)}
	case SetTargetInclination:
		v := uint16(c.InclinationDeciPct)
		return []byte{OpCodeSetTargetInclination, byte(v), byte(v >> 8)}
	case StartOrResume:
		return []byte{OpCodeStartOrResume}
	case StopOrPause:
		return []byte{OpCodeStopOrPause}
	case SetTargetedDistance:
		return []byte{OpCodeSetTargetedDistance, byte(c.Meters), byte(c.Meters >> 8), byte(c.Meters >> 16)}
	case SetTargetedTrainingTime:
		return []byte{OpCodeSetTargetedTrainingTime, byte(c.Seconds), byte(c.Seconds >> 8)}
	default:
		// Command is a closed set; a new variant without an encoder is a bug.
		panic(fmt.Sprintf("ftms: unknown command type %T", cmd))
	}
}
