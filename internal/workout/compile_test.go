package workout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eightMinMilePace() Pace {
	return Pace{Unit: PaceUnitMinPerMi, Value: "8:00"}
}

func TestCompile_RepeatExpandsSteps(t *testing.T) {
	spec := &WorkoutSpec{
		Name: "intervals",
		Steps: []StepSpec{
			RepeatSpec{
				Times: 3,
				Steps: []StepSpec{
					RunSpec{Name: "mile pace", Duration: "1:00", Pace: eightMinMilePace(), Angle: 0},
				},
			},
		},
	}

	plan, err := Compile(spec)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 3)

	// 8:00/mi is 1207 hundredths of km/h; 60 s of that covers 72 m.
	want := Step{Name: "mile pace", Duration: 60, Distance: 72, Pace: 1207, Angle: 0}
	for _, step := range plan.Steps {
		assert.Equal(t, want, step)
	}

	assert.Equal(t, uint16(180), plan.Duration)
	assert.Equal(t, uint16(3*72), plan.Distance)
}

func TestCompile_NestedRepeats(t *testing.T) {
	warmup := RunSpec{Name: "warmup", Duration: "5:00", Pace: Pace{Unit: PaceUnitKph, Value: "8"}, Angle: 0}
	fast := RunSpec{Name: "fast", Duration: "0:30", Pace: Pace{Unit: PaceUnitKph, Value: "14"}, Angle: 10}
	easy := RunSpec{Name: "easy", Duration: "1:30", Pace: Pace{Unit: PaceUnitKph, Value: "9"}, Angle: 0}

	spec := &WorkoutSpec{
		Name: "pyramid",
		Steps: []StepSpec{
			warmup,
			RepeatSpec{
				Times: 2,
				Steps: []StepSpec{
					RepeatSpec{Times: 2, Steps: []StepSpec{fast}},
					easy,
				},
			},
		},
	}

	plan, err := Compile(spec)
	require.NoError(t, err)

	var names []string
	for _, step := range plan.Steps {
		names = append(names, step.Name)
	}
	assert.Equal(t, []string{"warmup", "fast", "fast", "easy", "fast", "fast", "easy"}, names)
	assert.Equal(t, uint16(300+2*(2*30+90)), plan.Duration)
}

func TestCompile_LeafErrorAbortsWorkout(t *testing.T) {
	spec := &WorkoutSpec{
		Name: "broken",
		Steps: []StepSpec{
			RunSpec{Name: "ok", Duration: "1:00", Pace: eightMinMilePace()},
			RepeatSpec{
				Times: 4,
				Steps: []StepSpec{
					RunSpec{Name: "bad", Duration: "soon", Pace: eightMinMilePace()},
				},
			},
		},
	}

	_, err := Compile(spec)
	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Contains(t, err.Error(), `run "bad"`)
}

func TestCompile_AggregatesSumTruncatedSteps(t *testing.T) {
	// 10:00 at 8:00/mi: distance per leaf is uint16(1207*600/1000) = 724,
	// not uint16(12.07005 km/h * 600 s / 3.6) recomputed from floats.
	spec := &WorkoutSpec{
		Steps: []StepSpec{
			RunSpec{Name: "tempo", Duration: "10:00", Pace: eightMinMilePace()},
		},
	}

	plan, err := Compile(spec)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, uint16(724), plan.Steps[0].Distance)
	assert.Equal(t, uint16(724), plan.Distance)
}

func TestWorkoutSpecUnmarshalJSON(t *testing.T) {
	raw := `{
		"name": "tuesday",
		"description": "short intervals",
		"steps": [
			{"type": "run", "name": "warmup", "duration": "5:00", "pace": {"unit": "kph", "value": "8"}, "angle": 0},
			{"type": "repeat", "times": 3, "steps": [
				{"type": "run", "name": "rep", "duration": "1:00", "pace": {"unit": "min/mi", "value": "8:00"}, "angle": 5}
			]}
		]
	}`

	var spec WorkoutSpec
	require.NoError(t, spec.UnmarshalJSON([]byte(raw)))

	assert.Equal(t, "tuesday", spec.Name)
	assert.Equal(t, "short intervals", spec.Description)
	require.Len(t, spec.Steps, 2)

	warmup, ok := spec.Steps[0].(RunSpec)
	require.True(t, ok)
	assert.Equal(t, "warmup", warmup.Name)
	assert.Equal(t, PaceUnitKph, warmup.Pace.Unit)

	repeat, ok := spec.Steps[1].(RepeatSpec)
	require.True(t, ok)
	assert.Equal(t, uint8(3), repeat.Times)
	require.Len(t, repeat.Steps, 1)
	rep, ok := repeat.Steps[0].(RunSpec)
	require.True(t, ok)
	assert.Equal(t, int16(5), rep.Angle)
}

func TestWorkoutSpecUnmarshalJSON_UnknownStepType(t *testing.T) {
	raw := `{"name": "x", "steps": [{"type": "swim", "duration": "1:00"}]}`

	var spec WorkoutSpec
	err := spec.UnmarshalJSON([]byte(raw))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 0")
	assert.Contains(t, err.Error(), `unknown step type "swim"`)
}
