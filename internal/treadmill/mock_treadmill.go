package treadmill

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ldavies/treadmill-console/internal/bt"
	"github.com/ldavies/treadmill-console/internal/events"
	"github.com/ldavies/treadmill-console/internal/ftms"
	"github.com/ldavies/treadmill-console/internal/safego"
)

const (
	mockAddress = "00:11:22:33:44:55"
	mockRSSI    = -42
)

// MockDevice simulates an FTMS treadmill behind the bt.Device interface. It
// interprets Control Point writes, acknowledges them the way real firmware
// does, and emits a Treadmill Data frame once a second reflecting the last
// commanded targets.
type MockDevice struct {
	logger *log.Logger
	name   string

	mu              sync.RWMutex
	state           bt.DeviceState
	beltRunning     bool
	speedCentiKmh   uint16
	inclineDeciPct  int16
	distanceMillim  uint64 // accumulated in millimeters to avoid drift
	elapsedSeconds  uint16
	dataCallback    func([]byte)
	controlCallback func([]byte)

	// controlWrites sees every raw Control Point write; tests subscribe here
	// to assert on command traffic.
	controlWrites *events.CallbackEvent[[]byte]

	stopOnce sync.Once
	stopChan chan struct{}
	wg       sync.WaitGroup
}

var _ bt.Device = (*MockDevice)(nil)

func NewMockDevice(name string, logger *log.Logger) *MockDevice {
	if logger == nil {
		panic("MockDevice: logger cannot be nil")
	}
	d := &MockDevice{
		logger:        logger,
		name:          name,
		state:         bt.StateDisconnected,
		controlWrites: events.NewCallbackEvent[[]byte](false),
		stopChan:      make(chan struct{}),
	}

	d.wg.Add(1)
	safego.Go(logger, func() { d.simulate() })

	return d
}

// ObserveControlWrites registers fn on every Control Point write and returns
// the unregister function.
func (d *MockDevice) ObserveControlWrites(fn func([]byte)) func() {
	return d.controlWrites.Listen(fn)
}

func (d *MockDevice) stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
		d.wg.Wait()
	})
}

func (d *MockDevice) Address() string { return mockAddress }

func (d *MockDevice) LocalName() string { return d.name }

func (d *MockDevice) LastSeen() time.Time { return time.Now() }

func (d *MockDevice) RSSI() (int16, error) {
	return mockRSSI, nil
}

func (d *MockDevice) State() bt.DeviceState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *MockDevice) IsConnected() bool {
	return d.State() == bt.StateConnected
}

func (d *MockDevice) HasService(uuid string) bool {
	return uuid == ftms.ServiceUUIDFTMS
}

func (d *MockDevice) setState(state bt.DeviceState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state
}

func (d *MockDevice) WaitForConnection(timeout time.Duration) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(timeout)

	for {
		select {
		case <-ticker.C:
			if d.IsConnected() {
				return nil
			}
		case <-deadline:
			return fmt.Errorf("timeout after %v waiting for connection to %s", timeout, d.Address())
		}
	}
}

func (d *MockDevice) EnableNotifications(serviceUUID, charUUID string, callback func(buf []byte)) error {
	if serviceUUID != ftms.ServiceUUIDFTMS {
		return fmt.Errorf("service %s not found on device", serviceUUID)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	switch charUUID {
	case ftms.CharUUIDTreadmillData:
		d.dataCallback = callback
	case ftms.CharUUIDFTMSControlPoint:
		d.controlCallback = callback
	default:
		return fmt.Errorf("characteristic %s not found in service %s", charUUID, serviceUUID)
	}
	return nil
}

func (d *MockDevice) DisableNotifications(serviceUUID, charUUID string) error {
	return d.EnableNotifications(serviceUUID, charUUID, nil)
}

func (d *MockDevice) ReadCharacteristic(serviceUUID, charUUID string) ([]byte, error) {
	if serviceUUID == ftms.ServiceUUIDFTMS && charUUID == ftms.CharUUIDTreadmillData {
		d.mu.RLock()
		defer d.mu.RUnlock()
		return d.buildFrame(), nil
	}
	return nil, fmt.Errorf("characteristic %s not found in service %s", charUUID, serviceUUID)
}

func (d *MockDevice) WriteCharacteristic(serviceUUID, charUUID string, data []byte) error {
	return d.handleWrite(serviceUUID, charUUID, data)
}

func (d *MockDevice) WriteCharacteristicWithoutResponse(serviceUUID, charUUID string, data []byte) error {
	return d.handleWrite(serviceUUID, charUUID, data)
}

func (d *MockDevice) handleWrite(serviceUUID, charUUID string, data []byte) error {
	if serviceUUID != ftms.ServiceUUIDFTMS || charUUID != ftms.CharUUIDFTMSControlPoint {
		return fmt.Errorf("characteristic %s not found in service %s", charUUID, serviceUUID)
	}
	if len(data) == 0 {
		return fmt.Errorf("empty control point write")
	}

	d.controlWrites.Notify(data)

	opCode := data[0]
	d.mu.Lock()
	switch opCode {
	case ftms.OpCodeRequestControl, ftms.OpCodeReset:
		// Accepted without state change.
	case ftms.OpCodeStartOrResume:
		d.beltRunning = true
	case ftms.OpCodeStopOrPause:
		d.beltRunning = false
	case ftms.OpCodeSetTargetSpeed:
		if len(data) >= 3 {
			d.speedCentiKmh = uint16(data[1]) | uint16(data[2])<<8
		}
	case ftms.OpCodeSetTargetInclination:
		if len(data) >= 3 {
			d.inclineDeciPct = int16(uint16(data[1]) | uint16(data[2])<<8)
		}
	}
	callback := d.controlCallback
	d.mu.Unlock()

	d.logger.Printf("MockDevice: control write %v", data)
	if callback != nil {
		callback([]byte{ftms.OpCodeResponseCode, opCode, ftms.ResultSuccess})
	}
	return nil
}

// simulate advances belt state once a second and pushes a data frame to the
// notification subscriber.
func (d *MockDevice) simulate() {
	defer d.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ticker.C:
			d.mu.Lock()
			if d.state == bt.StateConnected && d.beltRunning {
				d.elapsedSeconds++
				// speed is in 0.01 km/h; one second covers speed/360 meters.
				d.distanceMillim += uint64(d.speedCentiKmh) * 1000 / 360
			}
			frame := d.buildFrame()
			callback := d.dataCallback
			connected := d.state == bt.StateConnected
			d.mu.Unlock()

			if connected && callback != nil {
				callback(frame)
			}
		}
	}
}

// buildFrame encodes the current simulated state as a Treadmill Data
// notification with total distance, inclination, and elapsed time present.
// MUST be called with mu held.
func (d *MockDevice) buildFrame() []byte {
	const flags uint16 = 0x040C // total distance, inclination, elapsed time

	speed := d.speedCentiKmh
	if !d.beltRunning {
		speed = 0
	}
	distance := uint32(d.distanceMillim / 1000)
	incline := uint16(d.inclineDeciPct)

	return []byte{
		byte(flags & 0xFF), byte(flags >> 8),
		byte(speed), byte(speed >> 8),
		byte(distance), byte(distance >> 8), byte(distance >> 16),
		byte(incline), byte(incline >> 8),
		byte(incline), byte(incline >> 8), // ramp angle mirrors incline
		byte(d.elapsedSeconds), byte(d.elapsedSeconds >> 8),
	}
}

// MockManager serves a single MockDevice behind the bt.ManagerInterface so
// the whole application can run without BLE hardware.
type MockManager struct {
	logger *log.Logger
	device *MockDevice

	mu       sync.RWMutex
	scanning bool

	scannedEvent   *events.ChannelEvent[[]bt.Device]
	connectedEvent *events.ChannelEvent[[]bt.Device]
}

var _ bt.ManagerInterface = (*MockManager)(nil)

func NewMockManager(deviceName string, logger *log.Logger) *MockManager {
	if logger == nil {
		panic("MockManager: logger cannot be nil")
	}
	return &MockManager{
		logger:         logger,
		device:         NewMockDevice(deviceName, logger),
		scannedEvent:   events.NewChannelEvent[[]bt.Device](true),
		connectedEvent: events.NewChannelEvent[[]bt.Device](true),
	}
}

// MockDevice exposes the simulated treadmill for tests.
func (m *MockManager) MockDevice() *MockDevice {
	return m.device
}

func (m *MockManager) Enable() error { return nil }

func (m *MockManager) StartScan(filter bt.ScanFilter) {
	m.mu.Lock()
	m.scanning = true
	m.mu.Unlock()

	if filter.Name != "" && filter.Name != m.device.LocalName() {
		m.logger.Printf("MockManager: scan filter %q does not match %q, nothing to report",
			filter.Name, m.device.LocalName())
		m.scannedEvent.Notify(nil)
		return
	}
	m.logger.Printf("MockManager: scan found %s (%s)", m.device.LocalName(), m.device.Address())
	m.scannedEvent.Notify([]bt.Device{m.device})
}

func (m *MockManager) StopScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanning = false
	return nil
}

func (m *MockManager) IsScanning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanning
}

func (m *MockManager) Connect(dev bt.Device) error {
	if dev.Address() != m.device.Address() {
		return fmt.Errorf("unknown device %s", dev.Address())
	}
	m.device.setState(bt.StateConnected)
	m.connectedEvent.Notify(m.ConnectedDevices())
	m.logger.Printf("MockManager: connected %s", dev.Address())
	return nil
}

func (m *MockManager) Disconnect(dev bt.Device) error {
	if dev.Address() != m.device.Address() {
		return fmt.Errorf("unknown device %s", dev.Address())
	}
	m.device.setState(bt.StateDisconnected)
	m.connectedEvent.Notify(m.ConnectedDevices())
	m.logger.Printf("MockManager: disconnected %s", dev.Address())
	return nil
}

func (m *MockManager) DeviceByAddress(address string) bt.Device {
	if address == m.device.Address() {
		return m.device
	}
	return nil
}

func (m *MockManager) ScannedDevices() []bt.Device {
	return []bt.Device{m.device}
}

func (m *MockManager) ConnectedDevices() []bt.Device {
	if m.device.IsConnected() {
		return []bt.Device{m.device}
	}
	return []bt.Device{}
}

func (m *MockManager) ListenToScannedDevices(ch chan<- []bt.Device) func() {
	return m.scannedEvent.Listen(ch)
}

func (m *MockManager) ListenToConnectedDevices(ch chan<- []bt.Device) func() {
	return m.connectedEvent.Listen(ch)
}

func (m *MockManager) Shutdown() {
	m.logger.Println("MockManager: shutting down")
	m.device.setState(bt.StateDisconnected)
	m.device.stop()
}
