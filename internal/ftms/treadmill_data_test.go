package ftms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTreadmillData_TooShort(t *testing.T) {
	for _, buf := range [][]byte{nil, {}, {0x00}, {0x00, 0x00}, {0x00, 0x00, 0x10}} {
		data, err := DecodeTreadmillData(buf)
		assert.Nil(t, data)
		assert.ErrorIs(t, err, ErrNotEnoughData)
	}
}

func TestDecodeTreadmillData_SpeedOnly(t *testing.T) {
	// Both flag bytes zero: only instantaneous speed is present.
	// 0x04D2 = 1234 -> 12.34 km/h
	data, err := DecodeTreadmillData([]byte{0x00, 0x00, 0xD2, 0x04})
	require.NoError(t, err)

	assert.Equal(t, uint16(1234), data.SpeedCentiKmh)
	assert.False(t, data.MoreData)
	assert.False(t, data.HasAverageSpeed)
	assert.False(t, data.HasTotalDistance)
	assert.False(t, data.HasInclinationAndRampAngle)
	assert.False(t, data.HasElevationGain)
	assert.False(t, data.HasInstantaneousPace)
	assert.False(t, data.HasAveragePace)
	assert.False(t, data.HasEnergy)
	assert.False(t, data.HasHeartRate)
	assert.False(t, data.HasMetabolicEquivalent)
	assert.False(t, data.HasElapsedTime)
	assert.False(t, data.HasRemainingTime)
	assert.False(t, data.HasForceOnBeltAndPowerOutput)
}

func TestDecodeTreadmillData_SingleGroups(t *testing.T) {
	tests := []struct {
		name   string
		buf    []byte
		verify func(t *testing.T, d *TreadmillData)
	}{
		{
			name: "average speed",
			buf:  []byte{0x02, 0x00, 0x00, 0x00, 0x39, 0x05},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasAverageSpeed)
				assert.Equal(t, uint16(1337), d.AverageSpeedCentiKmh)
			},
		},
		{
			name: "total distance is a little-endian uint24",
			buf:  []byte{0x04, 0x00, 0x00, 0x00, 0x01, 0x02, 0x03},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasTotalDistance)
				assert.Equal(t, uint32(0x030201), d.TotalDistanceMeters)
			},
		},
		{
			name: "inclination and ramp angle are signed",
			buf:  []byte{0x08, 0x00, 0x00, 0x00, 0xF6, 0xFF, 0x0A, 0x00},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasInclinationAndRampAngle)
				assert.Equal(t, int16(-10), d.InclinationDeciPct)
				assert.Equal(t, int16(10), d.RampAngleDeciDeg)
			},
		},
		{
			name: "elevation gain",
			buf:  []byte{0x10, 0x00, 0x00, 0x00, 0x64, 0x00, 0x32, 0x00},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasElevationGain)
				assert.Equal(t, uint16(100), d.PositiveElevation)
				assert.Equal(t, uint16(50), d.NegativeElevation)
			},
		},
		{
			name: "instantaneous pace",
			buf:  []byte{0x20, 0x00, 0x00, 0x00, 0x2C, 0x01},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasInstantaneousPace)
				assert.Equal(t, uint16(300), d.InstantaneousPace)
			},
		},
		{
			name: "average pace",
			buf:  []byte{0x40, 0x00, 0x00, 0x00, 0x2D, 0x01},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasAveragePace)
				assert.Equal(t, uint16(301), d.AveragePace)
			},
		},
		{
			name: "energy is u16, u16, u8",
			buf:  []byte{0x80, 0x00, 0x00, 0x00, 0xE8, 0x03, 0x90, 0x01, 0x07},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasEnergy)
				assert.Equal(t, uint16(1000), d.TotalEnergyKcal)
				assert.Equal(t, uint16(400), d.EnergyPerHourKcal)
				assert.Equal(t, uint8(7), d.EnergyPerMinuteKcal)
			},
		},
		{
			name: "heart rate",
			buf:  []byte{0x00, 0x01, 0x00, 0x00, 0x96},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasHeartRate)
				assert.Equal(t, uint8(150), d.HeartRateBpm)
			},
		},
		{
			name: "metabolic equivalent",
			buf:  []byte{0x00, 0x02, 0x00, 0x00, 0x55},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasMetabolicEquivalent)
				assert.Equal(t, uint8(85), d.MetabolicEquivalent)
			},
		},
		{
			name: "elapsed time",
			buf:  []byte{0x00, 0x04, 0x00, 0x00, 0x58, 0x02},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasElapsedTime)
				assert.Equal(t, uint16(600), d.ElapsedTimeSeconds)
			},
		},
		{
			name: "remaining time",
			buf:  []byte{0x00, 0x08, 0x00, 0x00, 0x2C, 0x01},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasRemainingTime)
				assert.Equal(t, uint16(300), d.RemainingTimeSeconds)
			},
		},
		{
			name: "force on belt and power output are signed",
			buf:  []byte{0x00, 0x10, 0x00, 0x00, 0xFF, 0xFF, 0x2C, 0x01},
			verify: func(t *testing.T, d *TreadmillData) {
				assert.True(t, d.HasForceOnBeltAndPowerOutput)
				assert.Equal(t, int16(-1), d.ForceOnBeltNewtons)
				assert.Equal(t, int16(300), d.PowerOutputWatts)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := DecodeTreadmillData(tt.buf)
			require.NoError(t, err)
			tt.verify(t, data)
		})
	}
}

func TestDecodeTreadmillData_MultipleGroupsInWireOrder(t *testing.T) {
	// average_speed + total_distance + heart_rate + elapsed_time set.
	buf := []byte{
		0x06, 0x05, // flags
		0xC4, 0x09, // speed 2500 -> 25.00 km/h
		0x20, 0x03, // average speed 800
		0x10, 0x27, 0x00, // total distance 10000
		0xA0,       // heart rate 160
		0x3C, 0x00, // elapsed time 60
	}

	data, err := DecodeTreadmillData(buf)
	require.NoError(t, err)

	assert.Equal(t, uint16(2500), data.SpeedCentiKmh)
	assert.Equal(t, uint16(800), data.AverageSpeedCentiKmh)
	assert.Equal(t, uint32(10000), data.TotalDistanceMeters)
	assert.Equal(t, uint8(160), data.HeartRateBpm)
	assert.Equal(t, uint16(60), data.ElapsedTimeSeconds)
	assert.False(t, data.HasInstantaneousPace)
	assert.False(t, data.HasEnergy)
}

func TestDecodeTreadmillData_TruncatedGroupFailsWhole(t *testing.T) {
	// Earlier groups decode fine but heart rate's byte is missing.
	// The decode must fail outright, not return a partial frame.
	buf := []byte{
		0x02, 0x01, // flags: average_speed + heart_rate
		0xC4, 0x09, // speed
		0x20, 0x03, // average speed
		// heart rate byte missing
	}

	data, err := DecodeTreadmillData(buf)
	assert.Nil(t, data)
	assert.ErrorIs(t, err, ErrNotEnoughData)
}

func TestDecodeTreadmillData_EveryGroupTruncation(t *testing.T) {
	// Full frame with every flag set, then chop a byte off each group's tail.
	full := []byte{
		0xFF, 0x1F, // all 13 flags
		0xC4, 0x09, // speed
		0x20, 0x03, // average speed
		0x10, 0x27, 0x00, // total distance
		0x0A, 0x00, 0x14, 0x00, // inclination, ramp angle
		0x64, 0x00, 0x32, 0x00, // elevations
		0x2C, 0x01, // instantaneous pace
		0x2D, 0x01, // average pace
		0xE8, 0x03, 0x90, 0x01, 0x07, // energy
		0xA0,       // heart rate
		0x55,       // MET
		0x3C, 0x00, // elapsed
		0x1E, 0x00, // remaining
		0x05, 0x00, 0x2C, 0x01, // force, power
	}

	data, err := DecodeTreadmillData(full)
	require.NoError(t, err)
	assert.Equal(t, int16(300), data.PowerOutputWatts)
	assert.Equal(t, uint8(160), data.HeartRateBpm)

	for n := 4; n < len(full); n++ {
		truncated, err := DecodeTreadmillData(full[:n])
		assert.Nil(t, truncated, "length %d should not decode", n)
		assert.ErrorIs(t, err, ErrNotEnoughData, "length %d", n)
	}
}

func TestDecodeTreadmillData_MoreDataFlagCarried(t *testing.T) {
	data, err := DecodeTreadmillData([]byte{0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.True(t, data.MoreData)
}
