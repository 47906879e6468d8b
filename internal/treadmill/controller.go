package treadmill

import (
	"context"
	"log"
	"sync"

	"github.com/ldavies/treadmill-console/internal/safego"
)

// Controller translates UI events into model, handler, and runner calls.
type Controller struct {
	model       *Model
	handler     *DeviceHandler
	runner      *WorkoutRunner
	persistence *persistence
	deviceName  string
	logger      *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu               sync.Mutex
	autoConnectTried bool
}

func NewController(model *Model, handler *DeviceHandler, runner *WorkoutRunner, deviceName string, logger *log.Logger) *Controller {
	if model == nil {
		panic("Controller: model cannot be nil")
	}
	if handler == nil {
		panic("Controller: handler cannot be nil")
	}
	if runner == nil {
		panic("Controller: runner cannot be nil")
	}
	if logger == nil {
		panic("Controller: logger cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		model:       model,
		handler:     handler,
		runner:      runner,
		persistence: newPersistence(logger),
		deviceName:  deviceName,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}

	c.wg.Add(1)
	safego.Go(logger, func() { c.listenForAutoConnect() })

	return c
}

// listenForAutoConnect watches scan results for the treadmill used last time
// and connects to it once, so a restart drops straight back into a session.
func (c *Controller) listenForAutoConnect() {
	defer c.wg.Done()

	preferred := c.persistence.getPreferredTreadmill()
	if preferred == "" {
		return
	}

	ch := make(chan []DeviceListing, 1)
	unregister := c.model.ListenToScanDevices(ch)
	defer unregister()

	for {
		select {
		case <-c.ctx.Done():
			return
		case listings, ok := <-ch:
			if !ok {
				return
			}

			c.mu.Lock()
			tried := c.autoConnectTried
			c.mu.Unlock()
			if tried || c.model.GetSession().Connected {
				return
			}

			for _, listing := range listings {
				if listing.Address != preferred {
					continue
				}
				c.mu.Lock()
				c.autoConnectTried = true
				c.mu.Unlock()

				c.logger.Printf("Auto-connecting %s from persistence", preferred)
				if err := c.handler.Connect(preferred); err != nil {
					c.logger.Printf("Auto-connect failed: %v", err)
				}
				return
			}
		}
	}
}

// OnEscapeKey handles when the Escape key is pressed
func (c *Controller) OnEscapeKey() {
	c.model.RequestCloseApplication()
}

// OnModeChange handles when the user requests a mode change
func (c *Controller) OnModeChange(mode UIMode) {
	if info, ok := GetUIModeInfo(mode); ok {
		c.logger.Printf("Switching to %s mode", info.DisplayName)
	}
	// We want to scan whenever we are in device mgmt mode
	if mode == UIModeDeviceManagement {
		c.StartDeviceScan()
	} else {
		c.StopDeviceScan()
	}
	c.model.SetMode(mode)
}

func (c *Controller) StartDeviceScan() {
	if c.handler.IsScanning() {
		c.logger.Printf("already scanning")
		return
	}
	c.handler.StartScan(c.deviceName)
}

func (c *Controller) StopDeviceScan() {
	if !c.handler.IsScanning() {
		c.logger.Printf("already not scanning")
		return
	}
	if err := c.handler.StopScan(); err != nil {
		c.logger.Printf("error stopping scan: %v", err)
	}
}

func (c *Controller) ToggleDeviceScan() {
	if c.handler.IsScanning() {
		c.StopDeviceScan()
	} else {
		c.StartDeviceScan()
	}
}

// OnDeviceSelected handles when a scanned treadmill is selected from the UI
func (c *Controller) OnDeviceSelected(address string) {
	if err := c.handler.Connect(address); err != nil {
		c.logger.Printf("Connection failed: %v", err)
		return
	}
	c.persistence.setPreferredTreadmill(address)
}

// DisconnectDevice drops the current treadmill connection
func (c *Controller) DisconnectDevice() {
	if err := c.handler.Disconnect(); err != nil {
		c.logger.Printf("Disconnect failed: %v", err)
	}
}

// OnWorkoutSelected loads the workout plan at index into the runner
func (c *Controller) OnWorkoutSelected(index int) {
	plans := c.model.GetPlans()
	if index < 0 || index >= len(plans) {
		c.logger.Printf("Invalid workout index: %d", index)
		return
	}

	plan := plans[index]
	c.logger.Printf("Workout selected: %s", plan.Name)
	c.runner.SetPlan(plan)
}

// StartWorkout starts or resumes the loaded plan
func (c *Controller) StartWorkout() {
	c.runner.Start()
}

// PauseWorkout pauses the running plan
func (c *Controller) PauseWorkout() {
	c.runner.Pause()
}

// StopWorkout aborts the run and resets progress
func (c *Controller) StopWorkout() {
	c.runner.Stop()
}

// ToggleWorkout starts, pauses, or resumes based on current state
func (c *Controller) ToggleWorkout() {
	state := c.model.GetRunState()
	switch state.Status {
	case RunStatusReady, RunStatusPaused:
		c.runner.Start()
	case RunStatusRunning:
		c.runner.Pause()
	default:
		c.logger.Printf("No workout loaded - select one in Workouts mode (press 2)")
	}
}

// IncreaseSpeed raises the belt target one step above the current speed
func (c *Controller) IncreaseSpeed() {
	session := c.model.GetSession()
	if !session.ControlGranted {
		c.logger.Printf("No treadmill control")
		return
	}

	speed := c.model.GetTelemetry().Data.SpeedCentiKmh
	// Compare before adding; the sum could wrap uint16 on a bogus frame.
	var newSpeed uint16 = MaxBeltSpeedCentiKmh
	if speed < MaxBeltSpeedCentiKmh-SpeedStepCentiKmh {
		newSpeed = speed + SpeedStepCentiKmh
	}
	c.setTargetSpeed(newSpeed)
}

// DecreaseSpeed lowers the belt target one step below the current speed
func (c *Controller) DecreaseSpeed() {
	session := c.model.GetSession()
	if !session.ControlGranted {
		c.logger.Printf("No treadmill control")
		return
	}

	speed := c.model.GetTelemetry().Data.SpeedCentiKmh
	var newSpeed uint16 = MinBeltSpeedCentiKmh
	if speed > MinBeltSpeedCentiKmh+SpeedStepCentiKmh {
		newSpeed = speed - SpeedStepCentiKmh
	}
	c.setTargetSpeed(newSpeed)
}

func (c *Controller) setTargetSpeed(speedCentiKmh uint16) {
	if err := c.handler.SetTargetSpeed(speedCentiKmh); err != nil {
		c.logger.Printf("Failed to set speed: %v", err)
		return
	}
	c.logger.Printf("Target speed: %d.%02d km/h", speedCentiKmh/100, speedCentiKmh%100)
}

// Shutdown stops the controller and the runner
func (c *Controller) Shutdown() {
	c.cancel()
	c.wg.Wait()
	c.runner.Shutdown()
}
