package treadmill

import (
	"context"
	"log"
	"sort"
	"sync"

	"github.com/ldavies/treadmill-console/internal/bt"
	"github.com/ldavies/treadmill-console/internal/events"
	"github.com/ldavies/treadmill-console/internal/ftms"
	"github.com/ldavies/treadmill-console/internal/safego"
	"github.com/ldavies/treadmill-console/internal/workout"
)

const maxLogLines = 1000

// Model is the application state hub. Everything the views render flows
// through here as events; the handler and runner push into it, the views
// listen.
type Model struct {
	logEvent         *events.ChannelEvent[string]
	scanDevicesEvent *events.ChannelEvent[[]DeviceListing]
	sessionEvent     *events.ChannelEvent[Session]
	telemetryEvent   *events.ChannelEvent[Telemetry]
	runStateEvent    *events.ChannelEvent[RunState]
	plansEvent       *events.ChannelEvent[[]*workout.Plan]
	uiStateEvent     *events.ChannelEvent[UIState]
	closeEvent       *events.ChannelEvent[struct{}]

	mu          sync.RWMutex
	session     Session
	telemetry   Telemetry
	runState    RunState
	plans       []*workout.Plan
	scanDevices []DeviceListing
	uiState     UIState

	logMu    sync.RWMutex
	logLines []string

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *log.Logger
}

func NewModel(manager bt.ManagerInterface, logger *log.Logger, uiLogChan <-chan string) *Model {
	if logger == nil {
		panic("Model: logger cannot be nil")
	}
	if uiLogChan == nil {
		panic("Model: uiLogChan cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Model{
		logEvent:         events.NewChannelEvent[string](false),
		scanDevicesEvent: events.NewChannelEvent[[]DeviceListing](true),
		sessionEvent:     events.NewChannelEvent[Session](true),
		telemetryEvent:   events.NewChannelEvent[Telemetry](true),
		runStateEvent:    events.NewChannelEvent[RunState](true),
		plansEvent:       events.NewChannelEvent[[]*workout.Plan](true),
		uiStateEvent:     events.NewChannelEvent[UIState](true),
		closeEvent:       events.NewChannelEvent[struct{}](true),
		uiState:          UIState{Mode: UIModeDeviceManagement},
		runState:         RunState{Status: RunStatusIdle},
		logLines:         make([]string, 0, maxLogLines),
		ctx:              ctx,
		cancel:           cancel,
		logger:           logger,
	}

	m.wg.Add(1)
	safego.Go(logger, func() { m.listenToScannedDevices(ctx, manager) })

	m.wg.Add(1)
	safego.Go(logger, func() { m.listenToConnections(ctx, manager) })

	m.wg.Add(1)
	safego.Go(logger, func() { m.readFromLogChannel(ctx, uiLogChan) })

	return m
}

// Shutdown stops all goroutines and waits for them to finish
func (m *Model) Shutdown() {
	m.logger.Println("Model: shutting down")
	m.cancel()
	m.wg.Wait()
	m.logger.Println("Model: shutdown complete")
}

func (m *Model) ListenToLog(ch chan<- string) func() {
	return m.logEvent.Listen(ch)
}

func (m *Model) ListenToScanDevices(ch chan<- []DeviceListing) func() {
	return m.scanDevicesEvent.Listen(ch)
}

func (m *Model) ListenToSession(ch chan<- Session) func() {
	return m.sessionEvent.Listen(ch)
}

func (m *Model) ListenToTelemetry(ch chan<- Telemetry) func() {
	return m.telemetryEvent.Listen(ch)
}

func (m *Model) ListenToRunState(ch chan<- RunState) func() {
	return m.runStateEvent.Listen(ch)
}

func (m *Model) ListenToPlans(ch chan<- []*workout.Plan) func() {
	return m.plansEvent.Listen(ch)
}

func (m *Model) ListenToUIState(ch chan<- UIState) func() {
	return m.uiStateEvent.Listen(ch)
}

func (m *Model) ListenToCloseApplication(ch chan<- struct{}) func() {
	return m.closeEvent.Listen(ch)
}

// RequestCloseApplication signals that the application should close
func (m *Model) RequestCloseApplication() {
	m.closeEvent.Notify(struct{}{})
}

func (m *Model) GetUIState() UIState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uiState
}

// SetMode updates the current UI mode and notifies listeners
func (m *Model) SetMode(mode UIMode) {
	m.mu.Lock()
	if m.uiState.Mode == mode {
		m.mu.Unlock()
		return
	}
	m.uiState.Mode = mode
	state := m.uiState
	m.mu.Unlock()

	m.uiStateEvent.Notify(state)
}

func (m *Model) GetSession() Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.session
}

func (m *Model) SetSession(session Session) {
	m.mu.Lock()
	m.session = session
	m.mu.Unlock()

	m.sessionEvent.Notify(session)
}

func (m *Model) GetTelemetry() Telemetry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.telemetry
}

// SetTreadmillData stores a freshly decoded data frame and notifies listeners
func (m *Model) SetTreadmillData(data *ftms.TreadmillData) {
	t := Telemetry{Valid: true, Data: *data}
	m.mu.Lock()
	m.telemetry = t
	m.mu.Unlock()

	m.telemetryEvent.Notify(t)
}

// GetScanDevices returns the most recent scan snapshot in the same order the
// view lists it.
func (m *Model) GetScanDevices() []DeviceListing {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]DeviceListing, len(m.scanDevices))
	copy(result, m.scanDevices)
	return result
}

func (m *Model) GetRunState() RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.runState
}

func (m *Model) SetRunState(state RunState) {
	m.mu.Lock()
	m.runState = state
	m.mu.Unlock()

	m.runStateEvent.Notify(state)
}

func (m *Model) GetPlans() []*workout.Plan {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*workout.Plan, len(m.plans))
	copy(result, m.plans)
	return result
}

func (m *Model) SetPlans(plans []*workout.Plan) {
	m.mu.Lock()
	m.plans = plans
	snapshot := make([]*workout.Plan, len(plans))
	copy(snapshot, plans)
	m.mu.Unlock()

	m.plansEvent.Notify(snapshot)
}

// GetLogTail returns the last n lines of logs
func (m *Model) GetLogTail(n int) []string {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	if n <= 0 {
		return []string{}
	}
	if n >= len(m.logLines) {
		result := make([]string, len(m.logLines))
		copy(result, m.logLines)
		return result
	}
	result := make([]string, n)
	copy(result, m.logLines[len(m.logLines)-n:])
	return result
}

func (m *Model) readFromLogChannel(ctx context.Context, logChan <-chan string) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-logChan:
			if !ok {
				return
			}

			m.logMu.Lock()
			m.logLines = append(m.logLines, line)
			if len(m.logLines) > maxLogLines {
				m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
			}
			m.logMu.Unlock()

			m.logEvent.Notify(line)
		}
	}
}

// listenToScannedDevices converts manager scan events into sorted listings
// for the view.
func (m *Model) listenToScannedDevices(ctx context.Context, manager bt.ManagerInterface) {
	defer m.wg.Done()

	deviceChan := make(chan []bt.Device, 1)
	unregister := manager.ListenToScannedDevices(deviceChan)
	defer unregister()

	for {
		select {
		case <-ctx.Done():
			return
		case devices, ok := <-deviceChan:
			if !ok {
				return
			}
			listings := toDeviceListings(devices)
			m.mu.Lock()
			m.scanDevices = listings
			m.mu.Unlock()
			m.scanDevicesEvent.Notify(listings)
		}
	}
}

// listenToConnections clears the session when the treadmill drops off.
func (m *Model) listenToConnections(ctx context.Context, manager bt.ManagerInterface) {
	defer m.wg.Done()

	deviceChan := make(chan []bt.Device, 1)
	unregister := manager.ListenToConnectedDevices(deviceChan)
	defer unregister()

	for {
		select {
		case <-ctx.Done():
			return
		case devices, ok := <-deviceChan:
			if !ok {
				return
			}

			session := m.GetSession()
			if !session.Connected {
				continue
			}
			stillConnected := false
			for _, dev := range devices {
				if dev.Address() == session.Address {
					stillConnected = true
					break
				}
			}
			if !stillConnected {
				m.logger.Printf("Model: treadmill %s disconnected, clearing session", session.Address)
				m.SetSession(Session{})
			}
		}
	}
}

func toDeviceListings(devices []bt.Device) []DeviceListing {
	listings := make([]DeviceListing, 0, len(devices))
	for _, dev := range devices {
		rssi, err := dev.RSSI()
		if err != nil {
			rssi = 0
		}
		listings = append(listings, DeviceListing{
			Name:    dev.LocalName(),
			Address: dev.Address(),
			RSSI:    rssi,
			State:   dev.State().String(),
		})
	}
	sort.Slice(listings, func(i, j int) bool {
		return listings[i].Address < listings[j].Address
	})
	return listings
}
