package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/rivo/tview"
	"github.com/spf13/pflag"
	"gopkg.in/natefinch/lumberjack.v2"
	"tinygo.org/x/bluetooth"

	"github.com/ldavies/treadmill-console/internal/bt"
	"github.com/ldavies/treadmill-console/internal/config"
	"github.com/ldavies/treadmill-console/internal/treadmill"
	"github.com/ldavies/treadmill-console/internal/workout"
)

// channelWriter mirrors log output into a channel so the curses log pane can
// show it. Writes never block; if the UI falls behind, lines are dropped here
// but still land in the log file.
type channelWriter struct {
	ch chan<- string
}

func (w channelWriter) Write(p []byte) (int, error) {
	select {
	case w.ch <- string(p):
	default:
	}
	return len(p), nil
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "treadmill-console: %v\n", err)
		os.Exit(1)
	}

	// The curses UI owns the terminal, so logs go to a rotating file and are
	// mirrored into the in-app log pane.
	uiLogChan := make(chan string, 256)
	logWriter := io.MultiWriter(
		&lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
		},
		channelWriter{ch: uiLogChan},
	)
	logger := log.New(logWriter, "", log.LstdFlags)
	logger.Printf("treadmill-console starting (device %q, workouts %q, mock=%v)",
		cfg.DeviceName, cfg.WorkoutsDir, cfg.Mock)

	var manager bt.ManagerInterface
	if cfg.Mock {
		manager = treadmill.NewMockManager(cfg.DeviceName, logger)
	} else {
		manager = bt.NewManager(bluetooth.DefaultAdapter, logger, cfg.ScanTimeout)
	}
	if err := manager.Enable(); err != nil {
		fmt.Fprintf(os.Stderr, "treadmill-console: enable BLE stack: %v\n", err)
		os.Exit(1)
	}

	model := treadmill.NewModel(manager, logger, uiLogChan)
	handler := treadmill.NewDeviceHandler(model, manager, logger)
	runner := treadmill.NewWorkoutRunner(model, handler, logger)
	controller := treadmill.NewController(model, handler, runner, cfg.DeviceName, logger)

	plans, fileErrs, err := workout.LoadDir(cfg.WorkoutsDir)
	if err != nil {
		logger.Printf("No workouts loaded: %v", err)
	}
	for _, fe := range fileErrs {
		logger.Printf("Skipping workout: %v", fe)
	}
	logger.Printf("Loaded %d workout(s) from %s", len(plans), cfg.WorkoutsDir)
	model.SetPlans(plans)

	app := tview.NewApplication()
	viewImpl := treadmill.NewCursesUIView(logger, app, model)
	view := treadmill.NewBaseUIView(treadmill.NewBaseUIViewArg{
		ViewImpl:   viewImpl,
		Model:      model,
		Controller: controller,
		Logger:     logger,
	})

	runErr := view.Run()

	// Teardown order: UI listeners first, then the controller and runner,
	// then BLE, then the model feeding them all.
	view.Shutdown()
	controller.Shutdown()
	manager.Shutdown()
	model.Shutdown()

	if runErr != nil {
		fmt.Fprintf(os.Stderr, "treadmill-console: UI error: %v\n", runErr)
		os.Exit(1)
	}
	logger.Printf("treadmill-console exited cleanly")
}
