package bt

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ldavies/treadmill-console/internal/safemap"
	"tinygo.org/x/bluetooth"
)

type DeviceState int

const (
	StateDisconnected DeviceState = iota
	StateConnecting
	StateConnected
)

func (s DeviceState) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateConnecting:
		return "Connecting"
	case StateDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

// Device is one BLE peripheral as seen by the manager: scan metadata plus,
// once connected, GATT access. The mock treadmill implements this too, so
// everything above the bt package works against the interface.
type Device interface {
	Address() string
	LocalName() string
	RSSI() (int16, error)
	LastSeen() time.Time
	State() DeviceState
	IsConnected() bool
	HasService(uuid string) bool
	WaitForConnection(timeout time.Duration) error
	EnableNotifications(serviceUUID, charUUID string, callback func(buf []byte)) error
	DisableNotifications(serviceUUID, charUUID string) error
	ReadCharacteristic(serviceUUID, charUUID string) ([]byte, error)
	WriteCharacteristic(serviceUUID, charUUID string, data []byte) error
	WriteCharacteristicWithoutResponse(serviceUUID, charUUID string, data []byte) error
}

type device struct {
	addr        bluetooth.Address
	logger      *log.Logger
	scanTimeout time.Duration

	mu        sync.RWMutex
	name      string
	lastSeen  time.Time
	scan      *bluetooth.ScanResult
	conn      *bluetooth.Device
	state     DeviceState
	services  []string

	// bleMu serializes GATT operations; concurrent discovery on the same
	// connection corrupts in-flight reads.
	bleMu            sync.Mutex
	serviceByUUID    *safemap.SafeMap[string, *bluetooth.DeviceService]
	charByUUID       *safemap.SafeMap[string, *bluetooth.DeviceCharacteristic]
	charsDiscovered  *safemap.SafeMap[string, bool]
	servicesResolved bool
}

func newDevice(logger *log.Logger, addr bluetooth.Address, scanTimeout time.Duration) *device {
	if logger == nil {
		panic("bt: logger must be non nil")
	}
	if scanTimeout <= 0 {
		panic("bt: scanTimeout must be > 0")
	}
	return &device{
		addr:            addr,
		logger:          logger,
		scanTimeout:     scanTimeout,
		name:            "Unknown",
		lastSeen:        time.Unix(0, 0),
		state:           StateDisconnected,
		serviceByUUID:   safemap.New[string, *bluetooth.DeviceService](),
		charByUUID:      safemap.New[string, *bluetooth.DeviceCharacteristic](),
		charsDiscovered: safemap.New[string, bool](),
	}
}

func (d *device) Address() string { return d.addr.String() }

func (d *device) LocalName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.scan != nil {
		if name := d.scan.LocalName(); name != "" {
			return name
		}
	}
	return d.name
}

func (d *device) RSSI() (int16, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.scan == nil {
		return 0, errors.New("no scan result for device")
	}
	return d.scan.RSSI, nil
}

func (d *device) LastSeen() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastSeen
}

func (d *device) State() DeviceState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *device) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.conn != nil
}

func (d *device) HasService(uuid string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, s := range d.services {
		if s == uuid {
			return true
		}
	}
	return false
}

func (d *device) isRecentlyScanned() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.scan == nil {
		return false
	}
	return time.Since(d.lastSeen) <= d.scanTimeout
}

func (d *device) recordScan(result *bluetooth.ScanResult, seen time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.scan = result
	d.lastSeen = seen
	if name := result.LocalName(); name != "" {
		d.name = name
	}
}

func (d *device) recordServices(uuids []bluetooth.UUID) {
	strs := make([]string, 0, len(uuids))
	for _, uuid := range uuids {
		strs = append(strs, uuid.String())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.services = strs
}

func (d *device) setConnection(conn *bluetooth.Device, state DeviceState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.conn = conn
	d.state = state
}

func (d *device) setState(state DeviceState) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state = state
}

func (d *device) connection() *bluetooth.Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.conn
}

// WaitForConnection polls until the connect handler has recorded a live
// connection or the timeout expires.
func (d *device) WaitForConnection(timeout time.Duration) error {
	ticker := time.NewTicker(250 * time.Millisecond)
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

func (d *device) EnableNotifications(serviceUUID, charUUID string, callback func(buf []byte)) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	char, err := d.characteristic(serviceUUID, charUUID)
	if err != nil {
		return err
	}
	if err := char.EnableNotifications(callback); err != nil {
		return fmt.Errorf("enable notifications on %s: %w", charUUID, err)
	}
	d.logger.Printf("bt: notifications enabled on %s", charUUID)
	return nil
}

func (d *device) DisableNotifications(serviceUUID, charUUID string) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	char, err := d.characteristic(serviceUUID, charUUID)
	if err != nil {
		return err
	}
	// A nil callback turns notifications off.
	if err := char.EnableNotifications(nil); err != nil {
		return fmt.Errorf("disable notifications on %s: %w", charUUID, err)
	}
	d.logger.Printf("bt: notifications disabled on %s", charUUID)
	return nil
}

func (d *device) ReadCharacteristic(serviceUUID, charUUID string) ([]byte, error) {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()

	char, err := d.characteristic(serviceUUID, charUUID)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, 512)
	n, err := char.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read characteristic %s: %w", charUUID, err)
	}
	return buf[:n], nil
}

func (d *device) WriteCharacteristic(serviceUUID, charUUID string, data []byte) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()
	return d.write(serviceUUID, charUUID, data, true)
}

func (d *device) WriteCharacteristicWithoutResponse(serviceUUID, charUUID string, data []byte) error {
	d.bleMu.Lock()
	defer d.bleMu.Unlock()
	return d.write(serviceUUID, charUUID, data, false)
}

func (d *device) write(serviceUUID, charUUID string, data []byte, withResponse bool) error {
	char, err := d.characteristic(serviceUUID, charUUID)
	if err != nil {
		return err
	}
	if withResponse {
		_, err = char.Write(data)
	} else {
		_, err = char.WriteWithoutResponse(data)
	}
	if err != nil {
		return fmt.Errorf("write characteristic %s: %w", charUUID, err)
	}
	return nil
}

// service resolves a GATT service, discovering all services on first use.
// Discovering one service at a time interrupts traffic on previously
// discovered ones, so discovery always fetches everything and caches it.
func (d *device) service(serviceUUID string) (*bluetooth.DeviceService, error) {
	if svc, ok := d.serviceByUUID.Load(serviceUUID); ok {
		return svc, nil
	}

	conn := d.connection()
	if conn == nil {
		return nil, errors.New("bt: device not connected")
	}

	if !d.servicesResolved {
		services, err := conn.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("discover services: %w", err)
		}
		for i := range services {
			svc := &services[i]
			d.serviceByUUID.Store(svc.UUID().String(), svc)
		}
		d.servicesResolved = true
		d.logger.Printf("bt: discovered %d services on %s", len(services), d.Address())
	}

	svc, ok := d.serviceByUUID.Load(serviceUUID)
	if !ok {
		return nil, fmt.Errorf("service %s not found on device", serviceUUID)
	}
	return svc, nil
}

func (d *device) characteristic(serviceUUID, charUUID string) (*bluetooth.DeviceCharacteristic, error) {
	key := serviceUUID + "_" + charUUID
	if char, ok := d.charByUUID.Load(key); ok {
		return char, nil
	}

	if discovered, _ := d.charsDiscovered.Load(serviceUUID); !discovered {
		svc, err := d.service(serviceUUID)
		if err != nil {
			return nil, err
		}
		chars, err := svc.DiscoverCharacteristics(nil)
		if err != nil {
			return nil, fmt.Errorf("discover characteristics of %s: %w", serviceUUID, err)
		}
		for i := range chars {
			char := &chars[i]
			d.charByUUID.Store(serviceUUID+"_"+char.UUID().String(), char)
		}
		d.charsDiscovered.Store(serviceUUID, true)
		d.logger.Printf("bt: discovered %d characteristics in %s", len(chars), serviceUUID)
	}

	char, ok := d.charByUUID.Load(key)
	if !ok {
		return nil, fmt.Errorf("characteristic %s not found in service %s", charUUID, serviceUUID)
	}
	return char, nil
}
