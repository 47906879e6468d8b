package treadmill

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ldavies/treadmill-console/internal/ftms"
)

// controlRecorder collects Control Point writes from the mock treadmill
type controlRecorder struct {
	mu     sync.Mutex
	writes [][]byte
}

func (r *controlRecorder) record(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, append([]byte(nil), data...))
}

func (r *controlRecorder) opCodes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	ops := make([]byte, 0, len(r.writes))
	for _, w := range r.writes {
		ops = append(ops, w[0])
	}
	return ops
}

func TestHandler_ConnectAcquiresControl(t *testing.T) {
	model, manager := newTestModel(t)
	handler := NewDeviceHandler(model, manager, testLogger())

	recorder := &controlRecorder{}
	unregister := manager.MockDevice().ObserveControlWrites(recorder.record)
	defer unregister()

	require.NoError(t, handler.Connect(mockAddress))

	session := model.GetSession()
	assert.True(t, session.Connected)
	assert.True(t, session.ControlGranted)
	assert.True(t, session.BeltStarted)
	assert.Equal(t, mockAddress, session.Address)
	assert.Equal(t, "HORIZON_7.0AT", session.Name)

	// Request Control must land before Start/Resume.
	ops := recorder.opCodes()
	require.Len(t, ops, 2)
	assert.Equal(t, ftms.OpCodeRequestControl, ops[0])
	assert.Equal(t, ftms.OpCodeStartOrResume, ops[1])
}

func TestHandler_ConnectUnknownDevice(t *testing.T) {
	model, manager := newTestModel(t)
	handler := NewDeviceHandler(model, manager, testLogger())

	err := handler.Connect("AA:BB:CC:DD:EE:FF")
	assert.Error(t, err)
	assert.False(t, model.GetSession().Connected)
}

func TestHandler_SendCommandRequiresConnection(t *testing.T) {
	model, manager := newTestModel(t)
	handler := NewDeviceHandler(model, manager, testLogger())

	err := handler.SendCommand(ftms.SetTargetSpeed{SpeedCentiKmh: 1000})
	assert.Error(t, err)
}

func TestHandler_SetTargetSpeedReachesDevice(t *testing.T) {
	model, manager := newTestModel(t)
	handler := NewDeviceHandler(model, manager, testLogger())
	require.NoError(t, handler.Connect(mockAddress))

	recorder := &controlRecorder{}
	unregister := manager.MockDevice().ObserveControlWrites(recorder.record)
	defer unregister()

	require.NoError(t, handler.SetTargetSpeed(1250))

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	require.Len(t, recorder.writes, 1)
	assert.Equal(t, []byte{ftms.OpCodeSetTargetSpeed, 0xE2, 0x04}, recorder.writes[0])
}

func TestHandler_StopBeltClearsBeltStarted(t *testing.T) {
	model, manager := newTestModel(t)
	handler := NewDeviceHandler(model, manager, testLogger())
	require.NoError(t, handler.Connect(mockAddress))

	require.NoError(t, handler.StopBelt())
	assert.False(t, model.GetSession().BeltStarted)

	require.NoError(t, handler.StartBelt())
	assert.True(t, model.GetSession().BeltStarted)
}

func TestHandler_TreadmillDataReachesModel(t *testing.T) {
	model, manager := newTestModel(t)
	handler := NewDeviceHandler(model, manager, testLogger())

	// Flags: no optional fields. Speed 12.34 km/h.
	handler.handleTreadmillData([]byte{0x00, 0x00, 0xD2, 0x04})

	telemetry := model.GetTelemetry()
	require.True(t, telemetry.Valid)
	assert.Equal(t, uint16(1234), telemetry.Data.SpeedCentiKmh)
	assert.InDelta(t, 12.34, telemetry.SpeedKmh(), 0.001)
}

func TestHandler_TruncatedFrameIsDropped(t *testing.T) {
	model, manager := newTestModel(t)
	handler := NewDeviceHandler(model, manager, testLogger())

	handler.handleTreadmillData([]byte{0x00, 0x00, 0xD2, 0x04})
	// Average speed flagged but missing; the whole frame is rejected.
	handler.handleTreadmillData([]byte{0x02, 0x00, 0xFF, 0xFF})

	telemetry := model.GetTelemetry()
	require.True(t, telemetry.Valid)
	assert.Equal(t, uint16(1234), telemetry.Data.SpeedCentiKmh)
}

func TestHandler_ControlNotPermittedClearsControl(t *testing.T) {
	model, manager := newTestModel(t)
	handler := NewDeviceHandler(model, manager, testLogger())
	require.NoError(t, handler.Connect(mockAddress))
	require.True(t, model.GetSession().ControlGranted)

	handler.handleControlPointResponse([]byte{
		ftms.OpCodeResponseCode, ftms.OpCodeRequestControl, ftms.ResultControlNotPermitted,
	})

	assert.False(t, model.GetSession().ControlGranted)
}

func TestHandler_DisconnectClearsSession(t *testing.T) {
	model, manager := newTestModel(t)
	handler := NewDeviceHandler(model, manager, testLogger())
	require.NoError(t, handler.Connect(mockAddress))

	require.NoError(t, handler.Disconnect())

	assert.False(t, model.GetSession().Connected)
	require.Eventually(t, func() bool {
		return !manager.MockDevice().IsConnected()
	}, time.Second, 10*time.Millisecond)
}
