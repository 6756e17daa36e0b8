package policy

import (
	"fmt"
	"math"
)

// TemperatureSchedule implements a multiplicatively decaying softmax
// temperature. Higher temperatures flatten the policy's action
// distributions towards uniform; lower temperatures sharpen them
// towards greedy.
//
// The schedule is owned by whoever selects actions and is advanced
// explicitly with Decay, once per action selection. Reading the
// current temperature with Value never changes the schedule, so
// batched policy evaluations during learning do not perturb
// exploration. The temperature is monotonically non-increasing and
// never drops below the schedule's minimum.
type TemperatureSchedule struct {
	value float64
	min   float64
	decay float64
}

// NewTemperatureSchedule returns a new TemperatureSchedule starting
// at initial, decaying by a factor of decay on each call to Decay,
// and floored at min.
func NewTemperatureSchedule(initial, min, decay float64) (
	*TemperatureSchedule, error) {
	if initial <= 0 {
		return nil, fmt.Errorf("newTemperatureSchedule: initial "+
			"temperature must be positive, got %v", initial)
	}
	if min <= 0 || min > initial {
		return nil, fmt.Errorf("newTemperatureSchedule: minimum "+
			"temperature must be in (0, %v], got %v", initial, min)
	}
	if decay <= 0 || decay > 1 {
		return nil, fmt.Errorf("newTemperatureSchedule: decay must be in "+
			"(0, 1], got %v", decay)
	}

	return &TemperatureSchedule{
		value: initial,
		min:   min,
		decay: decay,
	}, nil
}

// Value returns the current temperature without advancing the
// schedule
func (t *TemperatureSchedule) Value() float64 {
	return t.value
}

// Min returns the temperature floor
func (t *TemperatureSchedule) Min() float64 {
	return t.min
}

// Decay advances the schedule by one step and returns the new
// temperature
func (t *TemperatureSchedule) Decay() float64 {
	t.value = math.Max(t.min, t.value*t.decay)
	return t.value
}

func (t *TemperatureSchedule) String() string {
	return fmt.Sprintf("TemperatureSchedule{value: %v, min: %v, decay: %v}",
		t.value, t.min, t.decay)
}
