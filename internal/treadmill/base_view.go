package treadmill

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ldavies/treadmill-console/internal/safego"
	"github.com/ldavies/treadmill-console/internal/workout"
)

// BaseUIView contains the base logic shared by all UI implementations
type BaseUIView struct {
	viewImpl   UIViewImpl
	model      *Model
	controller *Controller
	context    context.Context
	cancelFunc context.CancelFunc
	waitGroup  sync.WaitGroup
	logger     *log.Logger
}

// NewBaseUIViewArg holds the arguments for creating a new BaseUIView
type NewBaseUIViewArg struct {
	ViewImpl   UIViewImpl
	Model      *Model
	Controller *Controller
	Logger     *log.Logger
}

// NewBaseUIView creates a new BaseUIView with the given implementation
func NewBaseUIView(args NewBaseUIViewArg) *BaseUIView {
	if args.Logger == nil {
		panic("BaseUIView: logger cannot be nil")
	}
	if args.ViewImpl == nil {
		panic("BaseUIView: ViewImpl cannot be nil")
	}
	if args.Model == nil {
		panic("BaseUIView: Model cannot be nil")
	}
	if args.Controller == nil {
		panic("BaseUIView: Controller cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())

	base := &BaseUIView{
		viewImpl:   args.ViewImpl,
		model:      args.Model,
		controller: args.Controller,
		context:    ctx,
		cancelFunc: cancel,
		logger:     args.Logger,
	}

	// Initialize framework-specific widgets
	args.ViewImpl.Initialize(args.Controller)

	// Set up keyboard handlers
	args.ViewImpl.SetupKeyboardHandlers(args.Controller)

	// Set initial mode from model
	args.ViewImpl.SetMode(args.Model.GetUIState().Mode)

	// Set up periodic resize check and initial display
	base.waitGroup.Add(1)
	safego.Go(base.logger, func() { base.monitorLogResize() })
	base.updateLogDisplay()

	base.setupEventListeners()

	return base
}

func (base *BaseUIView) setupEventListeners() {
	// Listen to log messages from model
	logChan := make(chan string, 1)
	logUnregister := base.model.ListenToLog(logChan)
	base.waitGroup.Add(1)
	safego.Go(base.logger, func() {
		defer base.waitGroup.Done()
		defer logUnregister()
		for {
			select {
			case <-base.context.Done():
				return
			case _, ok := <-logChan:
				if !ok {
					return
				}
				// When a new log arrives, update the display to show the tail
				base.updateLogDisplay()
			}
		}
	})

	// Listen to scanned treadmill list changes from model
	scanChan := make(chan []DeviceListing, 1)
	scanUnregister := base.model.ListenToScanDevices(scanChan)
	base.waitGroup.Add(1)
	safego.Go(base.logger, func() {
		defer base.waitGroup.Done()
		defer scanUnregister()
		for {
			select {
			case <-base.context.Done():
				return
			case listings, ok := <-scanChan:
				if !ok {
					return
				}
				items := make([]string, 0, len(listings))
				for _, listing := range listings {
					items = append(items, formatDeviceListing(listing))
				}
				base.viewImpl.SetScanDeviceList(items)
				base.draw()
			}
		}
	})

	// Listen to session changes from model
	sessionChan := make(chan Session, 1)
	sessionUnregister := base.model.ListenToSession(sessionChan)
	base.waitGroup.Add(1)
	safego.Go(base.logger, func() {
		defer base.waitGroup.Done()
		defer sessionUnregister()
		for {
			select {
			case <-base.context.Done():
				return
			case session, ok := <-sessionChan:
				if !ok {
					return
				}
				base.viewImpl.UpdateSession(session)
				base.draw()
			}
		}
	})

	// Listen to telemetry changes from model
	telemetryChan := make(chan Telemetry, 1)
	telemetryUnregister := base.model.ListenToTelemetry(telemetryChan)
	base.waitGroup.Add(1)
	safego.Go(base.logger, func() {
		defer base.waitGroup.Done()
		defer telemetryUnregister()
		for {
			select {
			case <-base.context.Done():
				return
			case telemetry, ok := <-telemetryChan:
				if !ok {
					return
				}
				base.viewImpl.UpdateTelemetry(telemetry)
				base.draw()
			}
		}
	})

	// Listen to run state changes from model
	runStateChan := make(chan RunState, 1)
	runStateUnregister := base.model.ListenToRunState(runStateChan)
	base.waitGroup.Add(1)
	safego.Go(base.logger, func() {
		defer base.waitGroup.Done()
		defer runStateUnregister()
		for {
			select {
			case <-base.context.Done():
				return
			case state, ok := <-runStateChan:
				if !ok {
					return
				}
				base.viewImpl.UpdateRunState(state)
				base.draw()
			}
		}
	})

	// Listen to workout plan list changes from model
	plansChan := make(chan []*workout.Plan, 1)
	plansUnregister := base.model.ListenToPlans(plansChan)
	base.waitGroup.Add(1)
	safego.Go(base.logger, func() {
		defer base.waitGroup.Done()
		defer plansUnregister()
		for {
			select {
			case <-base.context.Done():
				return
			case plans, ok := <-plansChan:
				if !ok {
					return
				}
				base.viewImpl.SetWorkoutList(plans)
				base.draw()
			}
		}
	})

	// Listen to UI state changes from model
	uiStateChan := make(chan UIState, 1)
	uiStateUnregister := base.model.ListenToUIState(uiStateChan)
	base.waitGroup.Add(1)
	safego.Go(base.logger, func() {
		defer base.waitGroup.Done()
		defer uiStateUnregister()
		for {
			select {
			case <-base.context.Done():
				return
			case state, ok := <-uiStateChan:
				if !ok {
					return
				}
				base.viewImpl.SetMode(state.Mode)
				base.draw()
			}
		}
	})

	// Listen to close application event from model
	closeChan := make(chan struct{}, 1)
	closeUnregister := base.model.ListenToCloseApplication(closeChan)
	base.waitGroup.Add(1)
	safego.Go(base.logger, func() {
		defer base.waitGroup.Done()
		defer closeUnregister()
		select {
		case <-base.context.Done():
			return
		case _, ok := <-closeChan:
			if !ok {
				return
			}
			base.viewImpl.Stop()
		}
	})
}

func (base *BaseUIView) draw() {
	if err := base.viewImpl.Draw(); err != nil {
		base.logger.Printf("BaseUIView: Error drawing: %v", err)
	}
}

func (base *BaseUIView) updateLogDisplay() {
	// Get the visible height of the log view
	height := base.viewImpl.GetLogViewHeight()
	if height <= 0 {
		return
	}

	// Get the tail of logs that fit in the visible area
	logLines := base.model.GetLogTail(height)

	base.viewImpl.ClearLogView()
	for _, line := range logLines {
		if err := base.viewImpl.WriteLogLine(line); err != nil {
			base.logger.Printf("BaseUIView: Error writing to log view: %v", err)
		}
	}
}

func (base *BaseUIView) monitorLogResize() {
	defer base.waitGroup.Done()
	var lastHeight int
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-base.context.Done():
			return
		case <-ticker.C:
			height := base.viewImpl.GetLogViewHeight()
			if height != lastHeight && height > 0 {
				lastHeight = height
				base.updateLogDisplay()
				base.draw()
			}
		}
	}
}

// Shutdown stops all goroutines and waits for them to finish
func (base *BaseUIView) Shutdown() {
	base.logger.Println("BaseUIView: Shutting down")
	base.cancelFunc()
	base.waitGroup.Wait()
	base.logger.Println("BaseUIView: Shutdown complete")
}

// Run starts the UI and blocks until it exits
func (base *BaseUIView) Run() error {
	return base.viewImpl.Run()
}

func formatDeviceListing(listing DeviceListing) string {
	return fmt.Sprintf("%s (%s) %d dBm [%s]", listing.Name, listing.Address, listing.RSSI, listing.State)
}
