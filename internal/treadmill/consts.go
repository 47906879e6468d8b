package treadmill

import (
	"github.com/ldavies/treadmill-console/internal/ftms"
	"github.com/ldavies/treadmill-console/internal/workout"
)

// UIMode represents the current UI mode/screen
type UIMode int

const (
	UIModeDeviceManagement UIMode = iota // Treadmill scanning and connection
	UIModeWorkoutSelection               // Workout selection
	UIModeRunDashboard                   // Live belt telemetry and workout progress
)

// UIModeInfo contains display information for a UI mode
type UIModeInfo struct {
	Mode        UIMode
	DisplayName string
	KeyBinding  rune
}

// AllUIModes defines all available UI modes in order
var AllUIModes = []UIModeInfo{
	{Mode: UIModeDeviceManagement, DisplayName: "Treadmill", KeyBinding: '1'},
	{Mode: UIModeWorkoutSelection, DisplayName: "Workouts", KeyBinding: '2'},
	{Mode: UIModeRunDashboard, DisplayName: "Dashboard", KeyBinding: '3'},
}

// GetUIModeByKey returns the mode for a given key binding
func GetUIModeByKey(key rune) (UIMode, bool) {
	for _, info := range AllUIModes {
		if info.KeyBinding == key {
			return info.Mode, true
		}
	}
	return 0, false
}

// GetUIModeInfo returns the info for a given mode
func GetUIModeInfo(mode UIMode) (UIModeInfo, bool) {
	for _, info := range AllUIModes {
		if info.Mode == mode {
			return info, true
		}
	}
	return UIModeInfo{}, false
}

// UIState holds the current state of the UI that views need to render
type UIState struct {
	Mode UIMode
}

// DeviceListing is what the view shows for one scanned treadmill
type DeviceListing struct {
	Name    string
	Address string
	RSSI    int16
	State   string
}

// Session describes the treadmill connection the console currently holds.
// A zero Session means nothing is connected.
type Session struct {
	Address        string
	Name           string
	Connected      bool
	ControlGranted bool
	BeltStarted    bool
}

// Telemetry is the most recent decoded treadmill data frame plus a flag for
// whether anything arrived yet.
type Telemetry struct {
	Valid bool
	Data  ftms.TreadmillData
}

// SpeedKmh returns the instantaneous belt speed in km/h.
func (t Telemetry) SpeedKmh() float64 {
	return float64(t.Data.SpeedCentiKmh) / 100.0
}

// RunStatus represents the current status of a workout run
type RunStatus int

const (
	RunStatusIdle    RunStatus = iota // No plan loaded
	RunStatusReady                    // Plan loaded but not started
	RunStatusRunning                  // Run in progress
	RunStatusPaused                   // Run paused
)

func (s RunStatus) String() string {
	switch s {
	case RunStatusReady:
		return "Ready"
	case RunStatusRunning:
		return "Running"
	case RunStatusPaused:
		return "Paused"
	default:
		return "Idle"
	}
}

// RunState holds the current state of a workout run
type RunState struct {
	Status           RunStatus
	Plan             *workout.Plan // The loaded plan (nil if none)
	StepIdx          int           // Index of the current step (0-based)
	ElapsedSeconds   uint16
	RemainingSeconds uint16
	StepElapsed      uint16
	StepRemaining    uint16
}

// Speed adjustment step for the manual +/- keys, in hundredths of km/h.
const SpeedStepCentiKmh = 50

// Belt speed limits, in hundredths of km/h. The manual controls clamp here;
// workout plans are sent as compiled.
const (
	MinBeltSpeedCentiKmh = 50
	MaxBeltSpeedCentiKmh = 2000
)
