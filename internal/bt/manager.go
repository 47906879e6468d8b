package bt

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ldavies/treadmill-console/internal/events"
	"github.com/ldavies/treadmill-console/internal/safego"
	"tinygo.org/x/bluetooth"
)

// ScanFilter narrows scan results. ServiceUUIDs keeps devices advertising at
// least one of the listed services; Name keeps devices whose advertised local
// name matches exactly. Empty fields match everything.
type ScanFilter struct {
	ServiceUUIDs []string
	Name         string
}

// ManagerInterface is the surface the application layer talks to. The mock
// manager used without hardware implements it as well.
type ManagerInterface interface {
	Enable() error
	StartScan(filter ScanFilter)
	StopScan() error
	IsScanning() bool
	Connect(device Device) error
	Disconnect(device Device) error
	DeviceByAddress(address string) Device
	ScannedDevices() []Device
	ConnectedDevices() []Device
	ListenToScannedDevices(ch chan<- []Device) func()
	ListenToConnectedDevices(ch chan<- []Device) func()
	Shutdown()
}

var _ ManagerInterface = (*Manager)(nil)

// Manager owns the BLE adapter: scanning, the device registry, and
// connection state tracking via the adapter's connect handler.
type Manager struct {
	adapter     *bluetooth.Adapter
	logger      *log.Logger
	scanTimeout time.Duration

	mu         sync.RWMutex
	devices    map[string]*device
	scanning   bool
	scanCtx    context.Context
	scanCancel context.CancelFunc

	scannedEvent   *events.ChannelEvent[[]Device]
	connectedEvent *events.ChannelEvent[[]Device]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewManager(adapter *bluetooth.Adapter, logger *log.Logger, scanTimeout time.Duration) *Manager {
	if logger == nil {
		panic("bt: logger must be non nil")
	}
	if scanTimeout <= 0 {
		scanTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		adapter:        adapter,
		logger:         logger,
		scanTimeout:    scanTimeout,
		devices:        make(map[string]*device),
		scannedEvent:   events.NewChannelEvent[[]Device](true),
		connectedEvent: events.NewChannelEvent[[]Device](true),
		ctx:            ctx,
		cancel:         cancel,
	}
}

// Enable powers the adapter and installs the connect handler that keeps
// per-device connection state current.
func (m *Manager) Enable() error {
	m.adapter.SetConnectHandler(func(conn bluetooth.Device, connected bool) {
		d := m.deviceFor(conn.Address)
		if connected {
			m.logger.Printf("bt: connected %s", conn.Address.String())
			c := conn
			d.setConnection(&c, StateConnected)
		} else {
			m.logger.Printf("bt: disconnected %s", conn.Address.String())
			d.setConnection(nil, StateDisconnected)
		}
		m.connectedEvent.Notify(m.ConnectedDevices())
	})
	return m.adapter.Enable()
}

func (m *Manager) deviceFor(addr bluetooth.Address) *device {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := addr.String()
	if d, ok := m.devices[key]; ok {
		return d
	}
	d := newDevice(m.logger, addr, m.scanTimeout)
	m.devices[key] = d
	return d
}

func (m *Manager) DeviceByAddress(address string) Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if d, ok := m.devices[address]; ok {
		return d
	}
	return nil
}

// StartScan begins scanning with the given filter. A scan already in flight
// is cancelled first and its goroutines wind down on their own.
func (m *Manager) StartScan(filter ScanFilter) {
	m.logger.Printf("bt: starting scan, filter=%+v", filter)

	m.mu.Lock()
	if m.scanning && m.scanCancel != nil {
		m.scanCancel()
	}
	m.scanning = true
	m.scanCtx, m.scanCancel = context.WithCancel(m.ctx)
	scanCtx := m.scanCtx
	m.mu.Unlock()

	serviceFilter := make(map[string]struct{}, len(filter.ServiceUUIDs))
	for _, uuid := range filter.ServiceUUIDs {
		serviceFilter[uuid] = struct{}{}
	}

	m.wg.Add(1)
	safego.Go(m.logger, func() {
		defer m.wg.Done()
		m.expireStaleDevices(scanCtx)
	})

	m.wg.Add(1)
	safego.Go(m.logger, func() {
		defer m.wg.Done()
		err := m.adapter.Scan(func(_ *bluetooth.Adapter, result bluetooth.ScanResult) {
			select {
			case <-scanCtx.Done():
				return
			default:
			}
			m.handleScanResult(result, serviceFilter, filter.Name)
		})
		if err != nil {
			m.logger.Printf("bt: scan error: %v", err)
		}
	})

	// Push the scanned device list to listeners once a second rather than
	// per advertisement; advertisements arrive far too often to redraw on.
	m.wg.Add(1)
	safego.Go(m.logger, func() {
		defer m.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-scanCtx.Done():
				return
			case <-ticker.C:
				m.scannedEvent.Notify(m.ScannedDevices())
			}
		}
	})
}

func (m *Manager) handleScanResult(result bluetooth.ScanResult, serviceFilter map[string]struct{}, nameFilter string) {
	if len(serviceFilter) > 0 {
		found := false
		for _, uuid := range result.ServiceUUIDs() {
			if _, ok := serviceFilter[uuid.String()]; ok {
				found = true
				break
			}
		}
		if !found {
			return
		}
	}
	if nameFilter != "" && result.LocalName() != nameFilter {
		return
	}

	d := m.deviceFor(result.Address)
	firstSeen := d.LastSeen().Equal(time.Unix(0, 0))
	r := result
	d.recordScan(&r, time.Now())
	if firstSeen {
		d.recordServices(result.ServiceUUIDs())
		m.logger.Printf("bt: found %s (%s) rssi=%d", d.LocalName(), d.Address(), result.RSSI)
	}
}

func (m *Manager) expireStaleDevices(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			for addr, d := range m.devices {
				if d.IsConnected() {
					continue
				}
				if time.Since(d.LastSeen()) > m.scanTimeout {
					delete(m.devices, addr)
					m.logger.Printf("bt: device %s not seen for %v, dropped", addr, m.scanTimeout)
				}
			}
			m.mu.Unlock()
		}
	}
}

func (m *Manager) StopScan() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanning = false
	if m.scanCancel != nil {
		m.scanCancel()
		m.scanCancel = nil
	}
	return m.adapter.StopScan()
}

func (m *Manager) IsScanning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.scanning
}

// Connect starts connecting to device. Success is reported asynchronously
// through the connect handler; callers use WaitForConnection to block.
func (m *Manager) Connect(dev Device) error {
	m.mu.RLock()
	d, ok := m.devices[dev.Address()]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("bt: unknown device %s", dev.Address())
	}

	if _, err := m.adapter.Connect(d.addr, bluetooth.ConnectionParams{}); err != nil {
		return fmt.Errorf("connect %s: %w", dev.Address(), err)
	}
	d.setState(StateConnecting)
	m.logger.Printf("bt: connection initiated to %s", dev.Address())
	return nil
}

func (m *Manager) Disconnect(dev Device) error {
	m.mu.RLock()
	d, ok := m.devices[dev.Address()]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("bt: unknown device %s", dev.Address())
	}

	conn := d.connection()
	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}

func (m *Manager) ScannedDevices() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Device, 0, len(m.devices))
	for _, d := range m.devices {
		if d.isRecentlyScanned() {
			result = append(result, d)
		}
	}
	return result
}

func (m *Manager) ConnectedDevices() []Device {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]Device, 0)
	for _, d := range m.devices {
		if d.IsConnected() {
			result = append(result, d)
		}
	}
	return result
}

func (m *Manager) ListenToScannedDevices(ch chan<- []Device) func() {
	return m.scannedEvent.Listen(ch)
}

func (m *Manager) ListenToConnectedDevices(ch chan<- []Device) func() {
	return m.connectedEvent.Listen(ch)
}

// Shutdown disconnects everything, stops scanning, and waits for the
// manager's goroutines to exit.
func (m *Manager) Shutdown() {
	m.logger.Println("bt: shutting down")
	for _, dev := range m.ConnectedDevices() {
		if err := m.Disconnect(dev); err != nil {
			m.logger.Printf("bt: error disconnecting %s: %v", dev.Address(), err)
		}
	}
	if err := m.StopScan(); err != nil {
		m.logger.Printf("bt: error stopping scan: %v", err)
	}
	m.cancel()
	m.wg.Wait()
	m.logger.Println("bt: shutdown complete")
}
