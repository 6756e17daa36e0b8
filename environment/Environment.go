// Package environment outlines the interfaces and structs needed to
// implement concrete environments
package environment

import (
	"gonum.org/v1/gonum/mat"

	"github.com/samuelfneumann/goa2c/timestep"
)

// Starter implements a distribution of starting states and samples
// starting states for environments
type Starter interface {
	Start() mat.Vector
}

// Environment implements a simulated environment that an agent can
// interact with through discrete steps.
//
// Reset starts a new episode and returns its first timestep. Step
// takes one environmental step given an action vector and returns the
// next timestep along with a bool indicating whether that step ended
// the episode. For multi-discrete action spaces the action vector
// holds one discrete choice per action dimension.
type Environment interface {
	Starter
	Reset() timestep.TimeStep
	Step(action mat.Vector) (timestep.TimeStep, bool)
	ObservationSpec() Spec
	ActionSpec() Spec
	DiscountSpec() Spec
}
