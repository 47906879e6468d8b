package treadmill

import (
	"fmt"
	"log"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/ldavies/treadmill-console/internal/workout"
)

// Page names for tview.Pages
const (
	pageDeviceManagement = "device_management"
	pageWorkoutSelection = "workout_selection"
	pageRunDashboard     = "run_dashboard"
)

// CursesUIViewImpl implements UIViewImpl using tview (curses-based terminal UI)
type CursesUIViewImpl struct {
	logger      *log.Logger
	app         *tview.Application
	model       *Model
	currentMode UIMode

	// Root container that holds all pages
	pages *tview.Pages

	// Shared components (visible in all modes)
	logView  *tview.TextView
	mainFlex *tview.Flex // Main layout: mode content on left, logs on right

	// Device Management mode components
	deviceMgmtFlex       *tview.Flex
	scanDeviceList       *tview.List
	sessionText          *tview.TextView
	deviceMgmtTabWidgets []*tview.Box

	// Run Dashboard mode components
	runDashboardFlex       *tview.Flex
	runDashboardTabWidgets []*tview.Box
	telemetryPanel         *tview.TextView
	runPanel               *tview.TextView

	// Workout Selection mode components
	workoutSelectionFlex       *tview.Flex
	workoutSelectionTabWidgets []*tview.Box
	workoutList                *tview.List
	workoutDetailsPanel        *tview.TextView
	plans                      []*workout.Plan // Available workout plans
}

func NewCursesUIView(logger *log.Logger, app *tview.Application, model *Model) *CursesUIViewImpl {
	return &CursesUIViewImpl{
		logger:      logger,
		app:         app,
		model:       model,
		currentMode: UIModeDeviceManagement,
	}
}

// Initialize sets up the tview widgets
func (ui *CursesUIViewImpl) Initialize(controller *Controller) {
	// Create shared log view
	// Note: Don't use SetChangedFunc with app.Draw() - it can cause hangs during shutdown
	// when the app has been stopped but log messages are still being written.
	// The BaseUIView's event listeners already call Draw() after updating content.
	ui.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	ui.logView.SetBorder(true).SetTitle(" Logs ")

	// Create pages container for mode switching
	ui.pages = tview.NewPages()

	// Initialize each mode
	ui.initDeviceManagementMode(controller)
	ui.initWorkoutSelectionMode(controller)
	ui.initRunDashboardMode(controller)

	// Add pages
	ui.pages.AddPage(pageDeviceManagement, ui.deviceMgmtFlex, true, true)
	ui.pages.AddPage(pageWorkoutSelection, ui.workoutSelectionFlex, true, false)
	ui.pages.AddPage(pageRunDashboard, ui.runDashboardFlex, true, false)

	// Create main layout: pages on left, logs on right
	ui.mainFlex = tview.NewFlex().
		AddItem(ui.pages, 0, 1, true).
		AddItem(ui.logView, 0, 1, false)

	// Set initial focus
	ui.setFocusForCurrentMode()
}

// initDeviceManagementMode sets up the Device Management mode UI
func (ui *CursesUIViewImpl) initDeviceManagementMode(controller *Controller) {
	// Create instructions box at the top
	instructionsText := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	instructionsText.SetText("[yellow]S[white] Toggle Scan  |  [yellow]Enter[white] Connect  |  [yellow]D[white] Disconnect\n[yellow]1[white] Treadmill  |  [yellow]2[white] Workouts  |  [yellow]3[white] Dashboard")

	// Scanned treadmill list
	ui.scanDeviceList = tview.NewList().
		ShowSecondaryText(false).
		SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			ui.logger.Printf("UI: Treadmill selected: index=%d, text=%s", index, mainText)
			// The list is filled from the model's scan snapshot in the same
			// sorted order, so index lookup against the model is safe.
			listings := ui.model.GetScanDevices()
			if index >= len(listings) {
				ui.logger.Printf("UI: Index %d out of range (have %d devices)", index, len(listings))
				return
			}
			selected := listings[index]
			ui.logger.Printf("UI: Connecting to %s (%s)", selected.Name, selected.Address)
			controller.OnDeviceSelected(selected.Address)
		})
	ui.scanDeviceList.SetBorder(true).SetTitle(" Treadmills ")

	// Connection status
	ui.sessionText = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.sessionText.SetBorder(true).SetTitle(" Connected ")
	ui.updateSessionDisplay(Session{})

	ui.deviceMgmtTabWidgets = append(ui.deviceMgmtTabWidgets, ui.scanDeviceList.Box)

	// Create device management layout: instructions at top, list and status below
	ui.deviceMgmtFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(instructionsText, 2, 0, false).
		AddItem(ui.scanDeviceList, 0, 4, true).
		AddItem(ui.sessionText, 4, 0, false)
}

// initRunDashboardMode sets up the Run Dashboard mode UI
func (ui *CursesUIViewImpl) initRunDashboardMode(controller *Controller) {
	// Create telemetry panel for displaying live belt data
	ui.telemetryPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.telemetryPanel.SetBorder(true).SetTitle(" Belt ")
	ui.updateTelemetryDisplay(Telemetry{})

	// Create run panel for displaying workout progress
	ui.runPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.runPanel.SetBorder(true).SetTitle(" Workout ")
	ui.updateRunDisplay(RunState{Status: RunStatusIdle})

	ui.runDashboardTabWidgets = append(ui.runDashboardTabWidgets, ui.telemetryPanel.Box)
	ui.runDashboardTabWidgets = append(ui.runDashboardTabWidgets, ui.runPanel.Box)

	// Create run dashboard layout: telemetry and workout side by side
	ui.runDashboardFlex = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(ui.telemetryPanel, 0, 1, true).
		AddItem(ui.runPanel, 0, 1, false)
}

// initWorkoutSelectionMode sets up the Workout Selection mode UI
func (ui *CursesUIViewImpl) initWorkoutSelectionMode(controller *Controller) {
	// Create workout list for selecting plans
	ui.workoutList = tview.NewList().
		ShowSecondaryText(true).
		SetSelectedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			ui.logger.Printf("UI: Workout selected: index=%d, name=%s", index, mainText)
			controller.OnWorkoutSelected(index)
		}).
		SetChangedFunc(func(index int, mainText, secondaryText string, shortcut rune) {
			// Update details panel when selection changes
			ui.updateWorkoutDetailsDisplay(index)
		})
	ui.workoutList.SetBorder(true).SetTitle(" Workouts ")

	// Create workout details panel
	ui.workoutDetailsPanel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	ui.workoutDetailsPanel.SetBorder(true).SetTitle(" Workout Details ")
	ui.updateWorkoutDetailsDisplay(-1) // Initialize with no selection

	ui.workoutSelectionTabWidgets = append(ui.workoutSelectionTabWidgets, ui.workoutList.Box)
	ui.workoutSelectionTabWidgets = append(ui.workoutSelectionTabWidgets, ui.workoutDetailsPanel.Box)

	// Create workout selection layout
	ui.workoutSelectionFlex = tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(ui.workoutList, 0, 1, true).
		AddItem(ui.workoutDetailsPanel, 0, 1, false)
}

// SetWorkoutList populates the workout selection list
func (ui *CursesUIViewImpl) SetWorkoutList(plans []*workout.Plan) {
	ui.plans = plans
	ui.workoutList.Clear()

	for _, plan := range plans {
		summary := fmt.Sprintf("%s, %d m", formatSecondsMMSS(plan.Duration), plan.Distance)
		ui.workoutList.AddItem(plan.Name, summary, 0, nil)
	}

	// Update details for first item if list is not empty
	if len(plans) > 0 {
		ui.updateWorkoutDetailsDisplay(0)
	}
}

// updateWorkoutDetailsDisplay formats and displays the plan details
func (ui *CursesUIViewImpl) updateWorkoutDetailsDisplay(index int) {
	if ui.workoutDetailsPanel == nil {
		return
	}

	var text string

	if index < 0 || index >= len(ui.plans) {
		text = "\n\n  [yellow]Workout Selection[white]\n\n"
		text += "  Select a workout from the list to view details.\n\n"
		text += "  [gray]Press Enter to load the selected workout.[white]\n"
	} else {
		plan := ui.plans[index]
		text = "\n"
		text += fmt.Sprintf("  [yellow]%s[white]\n", plan.Name)
		if plan.Description != "" {
			text += fmt.Sprintf("  [gray]%s[white]\n", plan.Description)
		}
		text += "\n"
		text += fmt.Sprintf("  [gray]Duration:[white] %s\n", formatSecondsMMSS(plan.Duration))
		text += fmt.Sprintf("  [gray]Distance:[white] %d m\n", plan.Distance)
		text += fmt.Sprintf("  [gray]Steps:[white] %d\n\n", len(plan.Steps))

		// Show step breakdown
		text += "  [gray]Structure:[white]\n"
		for i, step := range plan.Steps {
			text += fmt.Sprintf("    %d. %s: %s at %s", i+1, step.Name, formatSecondsMMSS(step.Duration), formatCentiKmh(step.Pace))
			if step.Angle != 0 {
				text += fmt.Sprintf(", %.1f%%", float64(step.Angle)/10.0)
			}
			text += "\n"
		}
		text += "\n  [green]Press Enter to load this workout[white]\n"
	}

	ui.workoutDetailsPanel.SetText(text)
}

// SetMode switches the UI to the specified mode
func (ui *CursesUIViewImpl) SetMode(mode UIMode) {
	if ui.currentMode == mode {
		return
	}

	ui.currentMode = mode

	switch mode {
	case UIModeDeviceManagement:
		ui.pages.SwitchToPage(pageDeviceManagement)
	case UIModeWorkoutSelection:
		ui.pages.SwitchToPage(pageWorkoutSelection)
	case UIModeRunDashboard:
		ui.pages.SwitchToPage(pageRunDashboard)
	}

	ui.setFocusForCurrentMode()
	ui.app.Draw()
}

// GetCurrentMode returns the currently active UI mode
func (ui *CursesUIViewImpl) GetCurrentMode() UIMode {
	return ui.currentMode
}

// setFocusForCurrentMode sets focus to the first widget in the current mode
func (ui *CursesUIViewImpl) setFocusForCurrentMode() {
	widgets := ui.getTabWidgetsForCurrentMode()
	if len(widgets) > 0 {
		ui.app.SetFocus(widgets[0])
	}
}

// getTabWidgetsForCurrentMode returns the tab widgets for the current mode
func (ui *CursesUIViewImpl) getTabWidgetsForCurrentMode() []*tview.Box {
	switch ui.currentMode {
	case UIModeDeviceManagement:
		return ui.deviceMgmtTabWidgets
	case UIModeWorkoutSelection:
		return ui.workoutSelectionTabWidgets
	case UIModeRunDashboard:
		return ui.runDashboardTabWidgets
	default:
		return nil
	}
}

// SetupKeyboardHandlers sets up keyboard event handlers
func (ui *CursesUIViewImpl) SetupKeyboardHandlers(controller *Controller) {
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		// Number keys for mode switching (1-9)
		if event.Key() == tcell.KeyRune {
			if mode, ok := GetUIModeByKey(event.Rune()); ok {
				// Delegate to controller - it will update the model, which will notify us
				controller.OnModeChange(mode)
				return nil
			}
		}

		// Tab to switch focus between widgets in current mode
		if event.Key() == tcell.KeyTab {
			widgets := ui.getTabWidgetsForCurrentMode()
			widgetCount := len(widgets)
			if widgetCount > 0 {
				for i := 0; i < widgetCount+1; i++ {
					idx := i % widgetCount
					if widgets[idx].HasFocus() {
						nextIdx := (idx + 1) % widgetCount
						ui.app.SetFocus(widgets[nextIdx])
						break
					}
				}
			}
			return nil
		}

		// Escape to quit
		if event.Key() == tcell.KeyEscape {
			controller.OnEscapeKey()
			return nil
		}

		// Mode-specific key handlers
		switch ui.currentMode {
		case UIModeDeviceManagement:
			// 's' key to toggle scanning (only in device management mode)
			if event.Key() == tcell.KeyRune && event.Rune() == 's' {
				controller.ToggleDeviceScan()
				return nil
			}
			// 'd' key to disconnect the treadmill
			if event.Key() == tcell.KeyRune && event.Rune() == 'd' {
				controller.DisconnectDevice()
				return nil
			}
		case UIModeRunDashboard:
			// '+' or '=' or Up arrow to increase speed
			if event.Key() == tcell.KeyRune && (event.Rune() == '+' || event.Rune() == '=') {
				controller.IncreaseSpeed()
				return nil
			}
			if event.Key() == tcell.KeyUp {
				controller.IncreaseSpeed()
				return nil
			}
			// '-' or Down arrow to decrease speed
			if event.Key() == tcell.KeyRune && event.Rune() == '-' {
				controller.DecreaseSpeed()
				return nil
			}
			if event.Key() == tcell.KeyDown {
				controller.DecreaseSpeed()
				return nil
			}
			// Space to start/pause workout
			if event.Key() == tcell.KeyRune && event.Rune() == ' ' {
				controller.ToggleWorkout()
				return nil
			}
			// 'x' to stop workout
			if event.Key() == tcell.KeyRune && event.Rune() == 'x' {
				controller.StopWorkout()
				return nil
			}
		}

		return event
	})
}

// GetLogViewHeight returns the visible height of the log view
func (ui *CursesUIViewImpl) GetLogViewHeight() int {
	_, _, _, height := ui.logView.GetInnerRect()
	return height
}

// ClearLogView clears the log view
func (ui *CursesUIViewImpl) ClearLogView() {
	ui.logView.Clear()
}

// WriteLogLine writes a line to the log view
func (ui *CursesUIViewImpl) WriteLogLine(line string) error {
	_, err := fmt.Fprint(ui.logView, line)
	return err
}

// SetScanDeviceList updates the scanned treadmill list, preserving the
// current selection across the once-a-second refresh.
func (ui *CursesUIViewImpl) SetScanDeviceList(items []string) {
	currentSelectionIndex := ui.scanDeviceList.GetCurrentItem()

	var currentSelectionText *string
	if currentSelectionIndex < ui.scanDeviceList.GetItemCount() {
		main, _ := ui.scanDeviceList.GetItemText(currentSelectionIndex)
		currentSelectionText = &main
	}

	ui.scanDeviceList.Clear()

	selectedIdx := -1
	for i, item := range items {
		if currentSelectionText != nil && *currentSelectionText == item {
			selectedIdx = i
		}
		ui.scanDeviceList.AddItem(item, "", 0, nil)
	}
	if selectedIdx > -1 {
		ui.scanDeviceList.SetCurrentItem(selectedIdx)
	}
}

// UpdateSession updates the connection status display
func (ui *CursesUIViewImpl) UpdateSession(session Session) {
	ui.updateSessionDisplay(session)
}

func (ui *CursesUIViewImpl) updateSessionDisplay(session Session) {
	if ui.sessionText == nil {
		return
	}

	if !session.Connected {
		ui.sessionText.SetText(" [gray]None[white]")
		return
	}

	control := "[gray]no control[white]"
	if session.ControlGranted {
		control = "[green]control granted[white]"
	}
	ui.sessionText.SetText(fmt.Sprintf(" [green]*[white] %s (%s)\n %s", session.Name, session.Address, control))
}

// Draw refreshes/redraws the UI
func (ui *CursesUIViewImpl) Draw() error {
	ui.app.Draw()
	return nil
}

// Run starts the UI and blocks until it exits
func (ui *CursesUIViewImpl) Run() error {
	// SetRoot must be called before setting focus, otherwise focus may be reset
	ui.app.SetRoot(ui.mainFlex, true)
	ui.setFocusForCurrentMode()
	return ui.app.Run()
}

// Stop stops the UI framework
func (ui *CursesUIViewImpl) Stop() {
	ui.app.Stop()
}

// UpdateTelemetry updates the live belt data display
func (ui *CursesUIViewImpl) UpdateTelemetry(telemetry Telemetry) {
	ui.updateTelemetryDisplay(telemetry)
}

// updateTelemetryDisplay formats and displays the latest belt frame
func (ui *CursesUIViewImpl) updateTelemetryDisplay(telemetry Telemetry) {
	if ui.telemetryPanel == nil {
		return
	}

	if !telemetry.Valid {
		ui.telemetryPanel.SetText("\n\n  [yellow]Run Dashboard[white]\n\n  Connect a treadmill in Treadmill mode (press 1)\n  to see live belt data here.")
		return
	}

	data := telemetry.Data
	text := "\n"
	text += fmt.Sprintf("  [green]>[white] Speed:      [yellow]%.2f[white] km/h\n\n", telemetry.SpeedKmh())

	if data.HasInclinationAndRampAngle {
		text += fmt.Sprintf("  [cyan]^[white] Incline:    [yellow]%.1f[white] %%\n\n", float64(data.InclinationDeciPct)/10.0)
	}
	if data.HasTotalDistance {
		if data.TotalDistanceMeters >= 1000 {
			text += fmt.Sprintf("  [purple]#[white] Distance:   [yellow]%.2f[white] km\n\n", float64(data.TotalDistanceMeters)/1000.0)
		} else {
			text += fmt.Sprintf("  [purple]#[white] Distance:   [yellow]%d[white] m\n\n", data.TotalDistanceMeters)
		}
	}
	if data.HasHeartRate {
		text += fmt.Sprintf("  [red]<3[white] Heart Rate: [yellow]%d[white] bpm\n\n", data.HeartRateBpm)
	}
	if data.HasEnergy {
		text += fmt.Sprintf("  [blue]~[white] Energy:     [yellow]%d[white] kcal\n\n", data.TotalEnergyKcal)
	}
	if data.HasElapsedTime {
		text += fmt.Sprintf("  [white]T[white] Elapsed:    [yellow]%s[white]\n\n", formatSecondsMMSS(data.ElapsedTimeSeconds))
	}

	text += "  [gray]Controls:[white]\n"
	text += "  [yellow]+[white]/[yellow]Up[white] Faster    [yellow]-[white]/[yellow]Down[white] Slower\n"

	ui.telemetryPanel.SetText(text)
}

// UpdateRunState updates the workout progress display
func (ui *CursesUIViewImpl) UpdateRunState(state RunState) {
	ui.updateRunDisplay(state)
}

// updateRunDisplay formats and displays the run state
func (ui *CursesUIViewImpl) updateRunDisplay(state RunState) {
	if ui.runPanel == nil {
		return
	}

	var text string

	switch state.Status {
	case RunStatusIdle:
		text = "\n  [gray]No workout loaded[white]\n\n"
		text += "  Go to Workouts mode (press 2) to load one.\n"

	case RunStatusReady:
		if state.Plan != nil {
			text = "\n"
			text += fmt.Sprintf("  [yellow]%s[white]\n\n", state.Plan.Name)
			text += fmt.Sprintf("  [gray]Duration:[white] %s\n", formatSecondsMMSS(state.Plan.Duration))
			text += fmt.Sprintf("  [gray]Distance:[white] %d m\n\n", state.Plan.Distance)
			text += "  [green]Ready to start[white]\n\n"
			text += "  [gray]Press[white] [yellow]Space[white] [gray]to start[white]\n"
		}

	case RunStatusPaused:
		text = ui.formatActiveRunDisplay(state, true)

	case RunStatusRunning:
		text = ui.formatActiveRunDisplay(state, false)
	}

	ui.runPanel.SetText(text)
}

// formatActiveRunDisplay formats the display for a running or paused workout
func (ui *CursesUIViewImpl) formatActiveRunDisplay(state RunState, paused bool) string {
	if state.Plan == nil {
		return "\n  [gray]No workout data[white]\n"
	}

	var text string
	text = "\n"

	if paused {
		text += fmt.Sprintf("  [yellow]%s[white] [gray](PAUSED)[white]\n\n", state.Plan.Name)
	} else {
		text += fmt.Sprintf("  [yellow]%s[white]\n\n", state.Plan.Name)
	}

	// Overall timing
	text += fmt.Sprintf("  [gray]Elapsed:[white]   %s\n", formatSecondsMMSS(state.ElapsedSeconds))
	text += fmt.Sprintf("  [gray]Remaining:[white] %s\n\n", formatSecondsMMSS(state.RemainingSeconds))

	// Current step info
	if len(state.Plan.Steps) > 0 && state.StepIdx < len(state.Plan.Steps) {
		step := state.Plan.Steps[state.StepIdx]

		text += fmt.Sprintf("  [cyan]Current Step[white] (%d/%d) %s\n", state.StepIdx+1, len(state.Plan.Steps), step.Name)
		text += fmt.Sprintf("  [gray]Step Time:[white] %s / %s\n", formatSecondsMMSS(state.StepElapsed), formatSecondsMMSS(step.Duration))
		text += fmt.Sprintf("  [green]>[white] Target: [yellow]%s[white]", formatCentiKmh(step.Pace))
		if step.Angle != 0 {
			text += fmt.Sprintf(" at [yellow]%.1f%%[white]", float64(step.Angle)/10.0)
		}
		text += "\n"

		// Next step info
		nextIdx := state.StepIdx + 1
		if nextIdx < len(state.Plan.Steps) {
			next := state.Plan.Steps[nextIdx]
			text += fmt.Sprintf("\n  [gray]Next Step:[white]\n    [gray]%s: %s at %s[white]\n",
				next.Name, formatSecondsMMSS(next.Duration), formatCentiKmh(next.Pace))
		} else {
			text += "\n  [gray]Next Step:[white] [green]Finish![white]\n"
		}
	}

	// Controls hint
	text += "\n  [gray]----------------------[white]\n"
	if paused {
		text += "  [yellow]Space[white] Resume  |  [yellow]X[white] Stop\n"
	} else {
		text += "  [yellow]Space[white] Pause  |  [yellow]X[white] Stop\n"
	}

	return text
}

// formatSecondsMMSS formats a second count as MM:SS
func formatSecondsMMSS(seconds uint16) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// formatCentiKmh formats a 0.01 km/h speed for display
func formatCentiKmh(centiKmh uint16) string {
	return fmt.Sprintf("%d.%02d km/h", centiKmh/100, centiKmh%100)
}
