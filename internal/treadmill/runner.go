package treadmill

import (
	"log"
	"sync"
	"time"

	"github.com/ldavies/treadmill-console/internal/safego"
	"github.com/ldavies/treadmill-console/internal/workout"
)

// runnerCommand represents commands sent to the runner goroutine
type runnerCommand int

const (
	cmdStart runnerCommand = iota
	cmdPause
	cmdStop
)

// beltController is the slice of DeviceHandler the runner needs to drive the
// belt. Kept narrow so tests can substitute a recorder.
type beltController interface {
	SetTargetSpeed(speedCentiKmh uint16) error
	SetTargetInclination(inclinationDeciPct int16) error
	StartBelt() error
	StopBelt() error
}

var _ beltController = (*DeviceHandler)(nil)

// WorkoutRunner executes a compiled plan against the belt: one tick per
// second, retargeting speed and incline on step boundaries.
type WorkoutRunner struct {
	model  *Model
	belt   beltController
	logger *log.Logger

	mu          sync.RWMutex
	plan        *workout.Plan
	status      RunStatus
	elapsed     uint16
	lastStepIdx int

	cmdChan      chan runnerCommand
	doneChan     chan struct{}
	wg           sync.WaitGroup
	shutdownOnce sync.Once
}

func NewWorkoutRunner(model *Model, belt beltController, logger *log.Logger) *WorkoutRunner {
	if model == nil {
		panic("WorkoutRunner: model cannot be nil")
	}
	if belt == nil {
		panic("WorkoutRunner: belt cannot be nil")
	}
	if logger == nil {
		panic("WorkoutRunner: logger cannot be nil")
	}

	r := &WorkoutRunner{
		model:       model,
		belt:        belt,
		logger:      logger,
		status:      RunStatusIdle,
		lastStepIdx: -1,
		cmdChan:     make(chan runnerCommand, 1),
		doneChan:    make(chan struct{}),
	}

	r.wg.Add(1)
	safego.Go(logger, func() { r.runLoop() })

	return r
}

// SetPlan loads a compiled plan for execution. Ignored while a run is in
// progress.
func (r *WorkoutRunner) SetPlan(plan *workout.Plan) {
	r.mu.Lock()

	if r.status == RunStatusRunning || r.status == RunStatusPaused {
		r.mu.Unlock()
		r.logger.Printf("WorkoutRunner: Cannot set plan while running or paused")
		return
	}

	r.plan = plan
	r.elapsed = 0
	r.lastStepIdx = -1

	if plan != nil {
		r.status = RunStatusReady
		r.logger.Printf("WorkoutRunner: Plan '%s' loaded (%d steps, %ds, %dm)",
			plan.Name, len(plan.Steps), plan.Duration, plan.Distance)
	} else {
		r.status = RunStatusIdle
		r.logger.Printf("WorkoutRunner: Plan cleared")
	}

	state := r.buildState()
	r.mu.Unlock()

	r.model.SetRunState(state)
}

// Start begins or resumes plan execution
func (r *WorkoutRunner) Start() {
	r.mu.RLock()
	status := r.status
	plan := r.plan
	r.mu.RUnlock()

	if plan == nil || len(plan.Steps) == 0 {
		r.logger.Printf("WorkoutRunner: No plan loaded")
		return
	}
	if status == RunStatusRunning {
		r.logger.Printf("WorkoutRunner: Already running")
		return
	}
	if status != RunStatusReady && status != RunStatusPaused {
		r.logger.Printf("WorkoutRunner: Cannot start in current state")
		return
	}

	r.logger.Printf("WorkoutRunner: Starting")
	r.cmdChan <- cmdStart
}

// Pause pauses plan execution and the belt
func (r *WorkoutRunner) Pause() {
	r.mu.RLock()
	status := r.status
	r.mu.RUnlock()

	if status != RunStatusRunning {
		r.logger.Printf("WorkoutRunner: Cannot pause - not running")
		return
	}

	r.logger.Printf("WorkoutRunner: Pausing")
	r.cmdChan <- cmdPause
}

// Stop aborts the run and resets progress
func (r *WorkoutRunner) Stop() {
	r.mu.RLock()
	status := r.status
	r.mu.RUnlock()

	if status != RunStatusRunning && status != RunStatusPaused {
		r.logger.Printf("WorkoutRunner: Nothing to stop")
		return
	}

	r.logger.Printf("WorkoutRunner: Stopping")
	r.cmdChan <- cmdStop
}

// Shutdown stops the runner goroutine. Safe to call multiple times.
func (r *WorkoutRunner) Shutdown() {
	r.shutdownOnce.Do(func() {
		r.logger.Printf("WorkoutRunner: Shutting down")
		close(r.doneChan)
		r.wg.Wait()
		r.logger.Printf("WorkoutRunner: Shutdown complete")
	})
}

// buildState computes the current run state. MUST be called with mu held.
func (r *WorkoutRunner) buildState() RunState {
	state := RunState{
		Status: r.status,
		Plan:   r.plan,
	}

	if r.plan == nil || r.status == RunStatusIdle {
		return state
	}

	state.ElapsedSeconds = r.elapsed
	state.RemainingSeconds = r.plan.Duration - r.elapsed

	var stepStart uint16
	for i, step := range r.plan.Steps {
		stepEnd := stepStart + step.Duration
		if r.elapsed < stepEnd {
			state.StepIdx = i
			state.StepElapsed = r.elapsed - stepStart
			state.StepRemaining = stepEnd - r.elapsed
			return state
		}
		stepStart = stepEnd
	}

	state.StepIdx = len(r.plan.Steps) - 1
	return state
}

// tickResult holds the outcome of one timer tick
type tickResult struct {
	state       RunState
	skip        bool
	completed   bool
	step        workout.Step
	stepChanged bool
}

// handleTick advances the run by one second under lock and reports what the
// loop should do about it.
func (r *WorkoutRunner) handleTick() tickResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != RunStatusRunning {
		return tickResult{skip: true}
	}

	r.elapsed++

	if r.elapsed >= r.plan.Duration {
		r.elapsed = 0
		r.status = RunStatusReady
		r.lastStepIdx = -1
		return tickResult{state: r.buildState(), completed: true}
	}

	state := r.buildState()
	result := tickResult{state: state, step: r.plan.Steps[state.StepIdx]}

	if state.StepIdx != r.lastStepIdx {
		result.stepChanged = true
		r.lastStepIdx = state.StepIdx
	}
	return result
}

// sendStepTargets pushes a step's speed and incline to the belt
func (r *WorkoutRunner) sendStepTargets(step workout.Step) {
	r.logger.Printf("WorkoutRunner: Step '%s': %d.%02d km/h, incline %.1f%%",
		step.Name, step.Pace/100, step.Pace%100, float64(step.Angle)/10.0)

	if err := r.belt.SetTargetSpeed(step.Pace); err != nil {
		r.logger.Printf("WorkoutRunner: Failed to set target speed: %v", err)
	}
	if err := r.belt.SetTargetInclination(step.Angle); err != nil {
		r.logger.Printf("WorkoutRunner: Failed to set target incline: %v", err)
	}
}

// runLoop is the runner goroutine: commands reconfigure the ticker, ticks
// advance the run.
func (r *WorkoutRunner) runLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	ticker.Stop() // started on cmdStart

	for {
		select {
		case <-r.doneChan:
			ticker.Stop()
			r.logger.Printf("WorkoutRunner: Goroutine exiting")
			return

		case cmd := <-r.cmdChan:
			switch cmd {
			case cmdStart:
				state := func() RunState {
					r.mu.Lock()
					defer r.mu.Unlock()
					r.status = RunStatusRunning
					r.lastStepIdx = -1
					return r.buildState()
				}()

				if err := r.belt.StartBelt(); err != nil {
					r.logger.Printf("WorkoutRunner: Failed to start belt: %v", err)
				}
				ticker.Reset(1 * time.Second)
				r.model.SetRunState(state)
				r.logger.Printf("WorkoutRunner: Run started")

			case cmdPause:
				ticker.Stop()
				state := func() RunState {
					r.mu.Lock()
					defer r.mu.Unlock()
					r.status = RunStatusPaused
					return r.buildState()
				}()

				if err := r.belt.StopBelt(); err != nil {
					r.logger.Printf("WorkoutRunner: Failed to pause belt: %v", err)
				}
				r.model.SetRunState(state)
				r.logger.Printf("WorkoutRunner: Run paused")

			case cmdStop:
				ticker.Stop()
				state := func() RunState {
					r.mu.Lock()
					defer r.mu.Unlock()
					r.status = RunStatusReady
					r.elapsed = 0
					r.lastStepIdx = -1
					return r.buildState()
				}()

				if err := r.belt.StopBelt(); err != nil {
					r.logger.Printf("WorkoutRunner: Failed to stop belt: %v", err)
				}
				r.model.SetRunState(state)
				r.logger.Printf("WorkoutRunner: Run stopped and reset")
			}

		case <-ticker.C:
			result := r.handleTick()

			if result.skip {
				continue
			}

			if result.completed {
				ticker.Stop()
				if err := r.belt.StopBelt(); err != nil {
					r.logger.Printf("WorkoutRunner: Failed to stop belt: %v", err)
				}
				r.model.SetRunState(result.state)
				r.logger.Printf("WorkoutRunner: Run complete!")
				continue
			}

			if result.stepChanged {
				r.sendStepTargets(result.step)
			}

			r.model.SetRunState(result.state)
		}
	}
}
