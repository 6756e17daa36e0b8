package gridchase

import (
	"testing"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/goa2c/environment"
	ts "github.com/samuelfneumann/goa2c/timestep"
)

// fixedStart returns the same starting state on every episode
func fixedStart(state []float64) environment.Starter {
	intervals := make([]r1.Interval, len(state))
	for i, v := range state {
		intervals[i] = r1.Interval{Min: v, Max: v}
	}
	return environment.NewUniformStarter(intervals, 1)
}

func TestGridChaseReachesGoal(t *testing.T) {
	// Agent at (0, 0), goal at (2, 2)
	g, firstStep, err := New(fixedStart([]float64{0, 0, 2, 2}), 5, 100, 0.9)
	if err != nil {
		t.Fatalf("could not create environment: %v", err)
	}
	if !firstStep.First() {
		t.Error("first timestep should have type First")
	}

	// Move diagonally towards the goal
	action := mat.NewVecDense(2, []float64{2, 2})

	step, done := g.Step(action)
	if done {
		t.Fatal("episode ended before the goal was reached")
	}
	if step.Reward != StepReward {
		t.Errorf("expected step reward %v, got %v", StepReward, step.Reward)
	}
	if step.Observation.AtVec(0) != 1 || step.Observation.AtVec(1) != 1 {
		t.Errorf("expected agent at (1, 1), got (%v, %v)",
			step.Observation.AtVec(0), step.Observation.AtVec(1))
	}

	step, done = g.Step(action)
	if !done {
		t.Fatal("episode should end when the agent reaches the goal")
	}
	if step.Reward != GoalReward {
		t.Errorf("expected goal reward %v, got %v", GoalReward, step.Reward)
	}
}

func TestGridChaseStaysOnGrid(t *testing.T) {
	g, _, err := New(fixedStart([]float64{0, 0, 4, 4}), 5, 100, 0.9)
	if err != nil {
		t.Fatalf("could not create environment: %v", err)
	}

	// Decrement both coordinates at the grid boundary
	step, _ := g.Step(mat.NewVecDense(2, []float64{0, 0}))
	if step.Observation.AtVec(0) != 0 || step.Observation.AtVec(1) != 0 {
		t.Errorf("agent left the grid: (%v, %v)",
			step.Observation.AtVec(0), step.Observation.AtVec(1))
	}
}

func TestGridChaseStepLimit(t *testing.T) {
	maxSteps := 3
	g, _, err := New(fixedStart([]float64{0, 0, 4, 4}), 5, maxSteps, 0.9)
	if err != nil {
		t.Fatalf("could not create environment: %v", err)
	}

	// Do nothing until the step limit cuts the episode off
	stay := mat.NewVecDense(2, []float64{1, 1})
	var step ts.TimeStep
	var done bool
	for i := 0; i < maxSteps; i++ {
		if done {
			t.Fatalf("episode ended early on step %v", i)
		}
		step, done = g.Step(stay)
	}
	if !done {
		t.Error("episode should end at the step limit")
	}
	if step.Number != maxSteps {
		t.Errorf("expected final step number %v, got %v", maxSteps,
			step.Number)
	}
}

func TestGridChaseActionSpec(t *testing.T) {
	g, _, err := New(fixedStart([]float64{0, 0, 4, 4}), 5, 100, 0.9)
	if err != nil {
		t.Fatalf("could not create environment: %v", err)
	}

	spec := g.ActionSpec()
	if spec.Shape.Len() != ActionDims {
		t.Errorf("expected %v action dimensions, got %v", ActionDims,
			spec.Shape.Len())
	}
	if spec.Cardinality != environment.Discrete {
		t.Error("action spec should be discrete")
	}
	for i := 0; i < spec.Shape.Len(); i++ {
		if int(spec.UpperBound.AtVec(i)) != MaxDiscreteAction {
			t.Errorf("expected upper bound %v for dimension %v, got %v",
				MaxDiscreteAction, i, spec.UpperBound.AtVec(i))
		}
	}
}
