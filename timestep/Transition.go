package timestep

import (
	"gonum.org/v1/gonum/mat"
)

// Transition packages together a single environmental transition: the
// state an agent was in, the action it took there, the reward it
// received for taking that action, the state the action led to, and
// whether that next state ended the episode.
//
// For multi-discrete action spaces the Action vector holds one
// discrete choice per action dimension.
//
// A Transition is created once per environment step and should never
// be mutated afterwards.
type Transition struct {
	State     *mat.VecDense
	Action    *mat.VecDense
	Reward    float64
	NextState *mat.VecDense
	Done      bool
}

// NewTransition constructs a Transition from the two timesteps it
// spans and the action that joined them.
func NewTransition(step TimeStep, action *mat.VecDense,
	nextStep TimeStep) Transition {
	return Transition{
		State:     step.Observation,
		Action:    action,
		Reward:    nextStep.Reward,
		NextState: nextStep.Observation,
		Done:      nextStep.Last(),
	}
}
