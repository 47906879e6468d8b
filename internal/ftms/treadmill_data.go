package ftms

import "errors"

// ErrNotEnoughData is returned when a Treadmill Data notification is shorter
// than its flag bits declare. The caller should drop the notification and
// carry on; the next one is independent.
var ErrNotEnoughData = errors.New("treadmill data: not enough data")

// TreadmillData holds all fields from the FTMS Treadmill Data characteristic.
// Instantaneous speed is always present; every other field is populated if
// and only if its Has* flag is set.
// See: https://www.bluetooth.com/specifications/specs/fitness-machine-service-1-0/
type TreadmillData struct {
	// Presence flags, decoded from the first two bytes
	MoreData                     bool
	HasAverageSpeed              bool
	HasTotalDistance             bool
	HasInclinationAndRampAngle   bool
	HasElevationGain             bool
	HasInstantaneousPace         bool
	HasAveragePace               bool
	HasEnergy                    bool
	HasHeartRate                 bool
	HasMetabolicEquivalent       bool
	HasElapsedTime               bool
	HasRemainingTime             bool
	HasForceOnBeltAndPowerOutput bool

	SpeedCentiKmh        uint16 // 0.01 km/h resolution, always present
	AverageSpeedCentiKmh uint16 // 0.01 km/h
	TotalDistanceMeters  uint32 // UINT24 on the wire
	InclinationDeciPct   int16  // 0.1 % resolution
	RampAngleDeciDeg     int16  // 0.1 degree resolution
	PositiveElevation    uint16 // 0.1 m resolution
	NegativeElevation    uint16 // 0.1 m resolution
	InstantaneousPace    uint16 // 0.1 km/min resolution
	AveragePace          uint16 // 0.1 km/min resolution
	TotalEnergyKcal      uint16
	EnergyPerHourKcal    uint16
	EnergyPerMinuteKcal  uint8
	HeartRateBpm         uint8
	MetabolicEquivalent  uint8 // 0.1 MET resolution
	ElapsedTimeSeconds   uint16
	RemainingTimeSeconds uint16
	ForceOnBeltNewtons   int16
	PowerOutputWatts     int16
}

// Treadmill Data flag bit positions (FTMS 1.0 spec).
// Byte 0 holds bits 0-7, byte 1 holds bits 8-12.
const (
	tdFlagMoreData                  = 1 << 0
	tdFlagAverageSpeed              = 1 << 1
	tdFlagTotalDistance             = 1 << 2
	tdFlagInclinationAndRampAngle   = 1 << 3
	tdFlagElevationGain             = 1 << 4
	tdFlagInstantaneousPace         = 1 << 5
	tdFlagAveragePace               = 1 << 6
	tdFlagEnergy                    = 1 << 7
	tdFlagHeartRate                 = 1 << 8
	tdFlagMetabolicEquivalent       = 1 << 9
	tdFlagElapsedTime               = 1 << 10
	tdFlagRemainingTime             = 1 << 11
	tdFlagForceOnBeltAndPowerOutput = 1 << 12
)

func leUint16(buf []byte) uint16 {
	return uint16(buf[0]) | (uint16(buf[1]) << 8)
}

func leInt16(buf []byte) int16 {
	return int16(leUint16(buf))
}

func leUint24(buf []byte) uint32 {
	return uint32(buf[0]) | (uint32(buf[1]) << 8) | (uint32(buf[2]) << 16)
}

// fieldGroup describes one flag-gated group of optional fields. The decoder
// walks these in wire order, consuming width bytes per present group.
type fieldGroup struct {
	present func(*TreadmillData) bool
	width   int
	assign  func(*TreadmillData, []byte)
}

// Optional field groups in the order they appear on the wire. This order is
// fixed by the FTMS spec and independent of which flags are set.
var treadmillDataGroups = []fieldGroup{
	{
		present: func(d *TreadmillData) bool { return d.HasAverageSpeed },
		width:   2,
		assign:  func(d *TreadmillData, b []byte) { d.AverageSpeedCentiKmh = leUint16(b) },
	},
	{
		present: func(d *TreadmillData) bool { return d.HasTotalDistance },
		width:   3,
		assign:  func(d *TreadmillData, b []byte) { d.TotalDistanceMeters = leUint24(b) },
	},
	{
		present: func(d *TreadmillData) bool { return d.HasInclinationAndRampAngle },
		width:   4,
		assign: func(d *TreadmillData, b []byte) {
			d.InclinationDeciPct = leInt16(b)
			d.RampAngleDeciDeg = leInt16(b[2:])
		},
	},
	{
		present: func(d *TreadmillData) bool { return d.HasElevationGain },
		width:   4,
		assign: func(d *TreadmillData, b []byte) {
			d.PositiveElevation = leUint16(b)
			d.NegativeElevation = leUint16(b[2:])
		},
	},
	{
		present: func(d *TreadmillData) bool { return d.HasInstantaneousPace },
		width:   2,
		assign:  func(d *TreadmillData, b []byte) { d.InstantaneousPace = leUint16(b) },
	},
	{
		present: func(d *TreadmillData) bool { return d.HasAveragePace },
		width:   2,
		assign:  func(d *TreadmillData, b []byte) { d.AveragePace = leUint16(b) },
	},
	{
		present: func(d *TreadmillData) bool { return d.HasEnergy },
		width:   5,
		assign: func(d *TreadmillData, b []byte) {
			d.TotalEnergyKcal = leUint16(b)
			d.EnergyPerHourKcal = leUint16(b[2:])
			d.EnergyPerMinuteKcal = b[4]
		},
	},
	{
		present: func(d *TreadmillData) bool { return d.HasHeartRate },
		width:   1,
		assign:  func(d *TreadmillData, b []byte) { d.HeartRateBpm = b[0] },
	},
	{
		present: func(d *TreadmillData) bool { return d.HasMetabolicEquivalent },
		width:   1,
		assign:  func(d *TreadmillData, b []byte) { d.MetabolicEquivalent = b[0] },
	},
	{
		present: func(d *TreadmillData) bool { return d.HasElapsedTime },
		width:   2,
		assign:  func(d *TreadmillData, b []byte) { d.ElapsedTimeSeconds = leUint16(b) },
	},
	{
		present: func(d *TreadmillData) bool { return d.HasRemainingTime },
		width:   2,
		assign:  func(d *TreadmillData, b []byte) { d.RemainingTimeSeconds = leUint16(b) },
	},
	{
		present: func(d *TreadmillData) bool { return d.HasForceOnBeltAndPowerOutput },
		width:   4,
		assign: func(d *TreadmillData, b []byte) {
			d.ForceOnBeltNewtons = leInt16(b)
			d.PowerOutputWatts = leInt16(b[2:])
		},
	},
}

// DecodeTreadmillData parses a raw Treadmill Data notification. Decoding is
// all-or-nothing: if any flagged group's bytes are missing the whole
// notification is rejected with ErrNotEnoughData and no partial frame is
// returned. The function is pure and safe for concurrent use.
func DecodeTreadmillData(buf []byte) (*TreadmillData, error) {
	if len(buf) < 4 {
		return nil, ErrNotEnoughData
	}

	flags := uint16(buf[0]) | (uint16(buf[1]) << 8)

	d := &TreadmillData{
		MoreData:                     flags&tdFlagMoreData != 0,
		HasAverageSpeed:              flags&tdFlagAverageSpeed != 0,
		HasTotalDistance:             flags&tdFlagTotalDistance != 0,
		HasInclinationAndRampAngle:   flags&tdFlagInclinationAndRampAngle != 0,
		HasElevationGain:             flags&tdFlagElevationGain != 0,
		HasInstantaneousPace:         flags&tdFlagInstantaneousPace != 0,
		HasAveragePace:               flags&tdFlagAveragePace != 0,
		HasEnergy:                    flags&tdFlagEnergy != 0,
		HasHeartRate:                 flags&tdFlagHeartRate != 0,
		HasMetabolicEquivalent:       flags&tdFlagMetabolicEquivalent != 0,
		HasElapsedTime:               flags&tdFlagElapsedTime != 0,
		HasRemainingTime:             flags&tdFlagRemainingTime != 0,
		HasForceOnBeltAndPowerOutput: flags&tdFlagForceOnBeltAndPowerOutput != 0,
	}

	d.SpeedCentiKmh = leUint16(buf[2:])

	// The cursor advances past every consumed group, including the last one.
	offset := 4
	for _, g := range treadmillDataGroups {
		if !g.present(d) {
			continue
		}
		if offset+g.width > len(buf) {
			return nil, ErrNotEnoughData
		}
		g.assign(d, buf[offset:offset+g.width])
		offset += g.width
	}

	return d, nil
}
