package treadmill

import "github.com/ldavies/treadmill-console/internal/workout"

// UIViewImpl defines the interface for framework-specific UI implementations
type UIViewImpl interface {
	// Initialize is called after construction to set up framework-specific widgets
	// controller is used to handle UI events
	Initialize(controller *Controller)

	// SetupKeyboardHandlers sets up keyboard event handlers
	// controller is used to handle keyboard events
	SetupKeyboardHandlers(controller *Controller)

	// Run starts the UI framework and blocks until it exits
	Run() error

	// Stop stops the UI framework
	Stop()

	// Draw refreshes/redraws the UI
	Draw() error

	// --- Mode Management ---

	// SetMode switches the UI to the specified mode
	SetMode(mode UIMode)

	// GetCurrentMode returns the currently active UI mode
	GetCurrentMode() UIMode

	// --- Log View (shared across modes) ---

	// GetLogViewHeight returns the visible height of the log view
	GetLogViewHeight() int

	// ClearLogView clears the log view
	ClearLogView()

	// WriteLogLine writes a line to the log view
	WriteLogLine(line string) error

	// --- Device Management Mode ---

	// SetScanDeviceList updates the scanned treadmill list
	SetScanDeviceList(items []string)

	// UpdateSession updates the connection status display
	UpdateSession(session Session)

	// --- Run Dashboard Mode ---

	// UpdateTelemetry updates the live belt data display
	UpdateTelemetry(telemetry Telemetry)

	// UpdateRunState updates the workout progress display
	UpdateRunState(state RunState)

	// --- Workout Selection Mode ---

	// SetWorkoutList populates the workout selection list
	SetWorkoutList(plans []*workout.Plan)
}
