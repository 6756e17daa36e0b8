// Package gridchase implements a pursuit environment on a bounded
// grid with a multi-discrete action space
package gridchase

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	env "github.com/samuelfneumann/goa2c/environment"
	ts "github.com/samuelfneumann/goa2c/timestep"
	"github.com/samuelfneumann/goa2c/utils/floatutils"
)

const (
	// Discrete choices per action dimension
	MinDiscreteAction int = 0
	MaxDiscreteAction int = 2

	// ActionDims is the number of action dimensions. The agent picks
	// one choice per grid axis on each step.
	ActionDims int = 2

	// Rewards
	StepReward float64 = -0.1
	GoalReward float64 = 1.0
)

// GridChase implements an episodic pursuit task on a size x size
// grid. The agent starts at some cell and must reach a goal cell. On
// each step the agent chooses one of three moves independently per
// axis:
//
//	Choice	Meaning
//	  0		Decrement coordinate
//	  1		Do nothing
//	  2		Increment coordinate
//
// so that a single action is a vector of two independent discrete
// choices. State observations are the continuous-valued features
// [x, y, goalX, goalY].
//
// Episodes end when the agent reaches the goal or after maxSteps
// steps, whichever comes first.
type GridChase struct {
	env.Starter
	lastStep ts.TimeStep
	discount float64
	size     int
	maxSteps int
}

// New constructs a new GridChase environment on a size x size grid.
// The starter samples the initial [x, y, goalX, goalY] state of each
// episode; sampled coordinates are rounded and clipped onto the grid.
func New(starter env.Starter, size, maxSteps int,
	discount float64) (*GridChase, ts.TimeStep, error) {
	if size < 2 {
		return nil, ts.TimeStep{}, fmt.Errorf("new: grid size must be at "+
			"least 2, got %v", size)
	}
	if maxSteps < 1 {
		return nil, ts.TimeStep{}, fmt.Errorf("new: maxSteps must be "+
			"positive, got %v", maxSteps)
	}

	g := &GridChase{
		Starter:  starter,
		discount: discount,
		size:     size,
		maxSteps: maxSteps,
	}

	firstStep := g.Reset()
	return g, firstStep, nil
}

// Reset resets the environment and returns a starting state drawn
// from the environment Starter
func (g *GridChase) Reset() ts.TimeStep {
	state := g.snapToGrid(g.Start())
	startStep := ts.New(ts.First, 0, g.discount, state, 0)
	g.lastStep = startStep

	return startStep
}

// Step takes one environmental step given action a and returns the
// next state as a timestep.TimeStep and a bool indicating whether or
// not the episode has ended
func (g *GridChase) Step(a mat.Vector) (ts.TimeStep, bool) {
	if a.Len() != ActionDims {
		panic(fmt.Sprintf("step: action must have %v dimensions, got %v",
			ActionDims, a.Len()))
	}

	state := g.lastStep.Observation
	x, y := state.AtVec(0), state.AtVec(1)
	goalX, goalY := state.AtVec(2), state.AtVec(3)

	x += g.delta(a.AtVec(0))
	y += g.delta(a.AtVec(1))
	x = floatutils.Clip(x, 0, float64(g.size-1))
	y = floatutils.Clip(y, 0, float64(g.size-1))

	newState := mat.NewVecDense(4, []float64{x, y, goalX, goalY})

	atGoal := x == goalX && y == goalY
	reward := StepReward
	if atGoal {
		reward = GoalReward
	}

	stepType := ts.Mid
	if atGoal || g.lastStep.Number+1 >= g.maxSteps {
		stepType = ts.Last
	}

	nextStep := ts.New(stepType, reward, g.discount, newState,
		g.lastStep.Number+1)
	g.lastStep = nextStep

	return nextStep, nextStep.Last()
}

// ActionSpec returns the action specification of the environment
func (g *GridChase) ActionSpec() env.Spec {
	shape := mat.NewVecDense(ActionDims, nil)
	lowerBound := mat.NewVecDense(ActionDims, []float64{
		float64(MinDiscreteAction), float64(MinDiscreteAction)})
	upperBound := mat.NewVecDense(ActionDims, []float64{
		float64(MaxDiscreteAction), float64(MaxDiscreteAction)})

	return env.NewSpec(shape, env.Action, lowerBound, upperBound,
		env.Discrete)
}

// ObservationSpec returns the observation specification of the
// environment
func (g *GridChase) ObservationSpec() env.Spec {
	shape := mat.NewVecDense(4, nil)
	lowerBound := mat.NewVecDense(4, nil)

	max := float64(g.size - 1)
	upperBound := mat.NewVecDense(4, []float64{max, max, max, max})

	return env.NewSpec(shape, env.Observation, lowerBound, upperBound,
		env.Continuous)
}

// DiscountSpec returns the discounting specification of the
// environment
func (g *GridChase) DiscountSpec() env.Spec {
	shape := mat.NewVecDense(1, nil)
	lowerBound := mat.NewVecDense(1, []float64{g.discount})
	upperBound := mat.NewVecDense(1, []float64{g.discount})

	return env.NewSpec(shape, env.Discount, lowerBound, upperBound,
		env.Continuous)
}

func (g *GridChase) String() string {
	state := g.lastStep.Observation
	return fmt.Sprintf("GridChase  |  Agent: (%v, %v)  |  Goal: (%v, %v)",
		state.AtVec(0), state.AtVec(1), state.AtVec(2), state.AtVec(3))
}

// delta converts a discrete choice in {0, 1, 2} into a coordinate
// change in {-1, 0, +1}
func (g *GridChase) delta(choice float64) float64 {
	intChoice := int(choice)
	if intChoice < MinDiscreteAction || intChoice > MaxDiscreteAction {
		panic(fmt.Sprintf("delta: illegal action choice %v ∉ (0, 1, 2)",
			intChoice))
	}
	return float64(intChoice - 1)
}

// snapToGrid rounds and clips a sampled state onto grid cells
func (g *GridChase) snapToGrid(state mat.Vector) *mat.VecDense {
	snapped := mat.NewVecDense(state.Len(), nil)
	for i := 0; i < state.Len(); i++ {
		cell := math.Round(state.AtVec(i))
		snapped.SetVec(i, floatutils.Clip(cell, 0, float64(g.size-1)))
	}
	return snapped
}
