package workout

import (
	"encoding/json"
	"fmt"
)

// StepSpec is a node in the declarative workout tree: either a Run leaf or a
// Repeat group of child specs. Specs are immutable once unmarshalled.
type StepSpec interface {
	isStepSpec()
}

// RepeatSpec repeats its child sequence a fixed number of times.
type RepeatSpec struct {
	Times uint8
	Steps []StepSpec
}

// RunSpec is a single run segment with human-entered duration and pace text.
type RunSpec struct {
	Name     string
	Duration string
	Pace     Pace
	Angle    int16
}

func (RepeatSpec) isStepSpec() {}
func (RunSpec) isStepSpec()    {}

// WorkoutSpec is a workout definition as read from a JSON file.
type WorkoutSpec struct {
	Name        string
	Description string
	Steps       []StepSpec
}

func (w *WorkoutSpec) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string            `json:"name"`
		Description string            `json:"description"`
		Steps       []json.RawMessage `json:"steps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	steps, err := decodeStepSpecs(raw.Steps)
	if err != nil {
		return err
	}

	w.Name = raw.Name
	w.Description = raw.Description
	w.Steps = steps
	return nil
}

func decodeStepSpecs(raws []json.RawMessage) ([]StepSpec, error) {
	steps := make([]StepSpec, 0, len(raws))
	for i, raw := range raws {
		step, err := decodeStepSpec(raw)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// decodeStepSpec dispatches on the "type" tag to pick the StepSpec variant.
func decodeStepSpec(raw json.RawMessage) (StepSpec, error) {
	var tag struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &tag); err != nil {
		return nil, err
	}

	switch tag.Type {
	case "repeat":
		var r struct {
			Times uint8             `json:"times"`
			Steps []json.RawMessage `json:"steps"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		children, err := decodeStepSpecs(r.Steps)
		if err != nil {
			return nil, err
		}
		return RepeatSpec{Times: r.Times, Steps: children}, nil
	case "run":
		var r struct {
			Name     string `json:"name"`
			Duration string `json:"duration"`
			Pace     Pace   `json:"pace"`
			Angle    int16  `json:"angle"`
		}
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, err
		}
		return RunSpec{Name: r.Name, Duration: r.Duration, Pace: r.Pace, Angle: r.Angle}, nil
	default:
		return nil, fmt.Errorf("unknown step type %q", tag.Type)
	}
}

// Step is a fully resolved workout step. Distance keeps the reference
// fixed-point scale: pace (0.01 km/h) times duration (s) divided by 1000.
type Step struct {
	Name     string
	Duration uint16 // seconds
	Distance uint16 // pace * duration / 1000
	Pace     uint16 // hundredths of km/h
	Angle    int16
}

// Plan is a compiled workout: the flat expanded step sequence plus aggregate
// totals. Totals are u16 sums of the per-step (already truncated) values;
// long or high-repeat workouts wrap silently, matching the step fields'
// width.
type Plan struct {
	Name        string
	Description string
	Steps       []Step
	Duration    uint16
	Distance    uint16
}

// Compile expands a workout spec tree into a flat plan. Leaf parsing happens
// once per leaf occurrence in the tree; repeats duplicate the already
// resolved steps. Any leaf parse error aborts compilation of this workout
// only.
func Compile(spec *WorkoutSpec) (*Plan, error) {
	steps, err := expandSteps(spec.Steps)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Name:        spec.Name,
		Description: spec.Description,
		Steps:       steps,
	}
	// Per-leaf truncation happened above; aggregates sum the truncated
	// values, never recompute from pace and total time.
	for _, step := range steps {
		plan.Duration += step.Duration
		plan.Distance += step.Distance
	}
	return plan, nil
}

func expandSteps(specs []StepSpec) ([]Step, error) {
	var result []Step
	for _, spec := range specs {
		steps, err := expandStep(spec)
		if err != nil {
			return nil, err
		}
		result = append(result, steps...)
	}
	return result, nil
}

func expandStep(spec StepSpec) ([]Step, error) {
	switch s := spec.(type) {
	case RunSpec:
		pace, err := s.Pace.SpeedCentiKmh()
		if err != nil {
			return nil, fmt.Errorf("run %q: %w", s.Name, err)
		}
		duration, err := ParseDuration(s.Duration)
		if err != nil {
			return nil, fmt.Errorf("run %q: %w", s.Name, err)
		}
		distance := uint16(float32(pace) * float32(duration) / 1000.0)
		return []Step{{
			Name:     s.Name,
			Duration: duration,
			Distance: distance,
			Pace:     pace,
			Angle:    s.Angle,
		}}, nil
	case RepeatSpec:
		once, err := expandSteps(s.Steps)
		if err != nil {
			return nil, err
		}
		result := make([]Step, 0, len(once)*int(s.Times))
		for i := 0; i < int(s.Times); i++ {
			result = append(result, once...)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unknown step spec type %T", spec)
	}
}
