package nstepa2c

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"

	ts "github.com/samuelfneumann/goa2c/timestep"
)

// transitionWithReward returns a transition with the argument reward
// and terminality. States and actions are irrelevant to the return
// recursion.
func transitionWithReward(reward float64, done bool) ts.Transition {
	state := mat.NewVecDense(1, nil)
	action := mat.NewVecDense(1, nil)
	return ts.Transition{
		State:     state,
		Action:    action,
		Reward:    reward,
		NextState: state,
		Done:      done,
	}
}

func TestNStepTargetsBackwardRecursion(t *testing.T) {
	buffer := newTrajectoryBuffer(8)
	buffer.push(transitionWithReward(1.0, false))
	buffer.push(transitionWithReward(1.0, false))
	buffer.push(transitionWithReward(1.0, true))

	targets := buffer.nStepTargets(0.9, 0.0)

	// target[2] = 1
	// target[1] = 1 + 0.9 * 1    = 1.9
	// target[0] = 1 + 0.9 * 1.9  = 2.71
	expected := []float64{2.71, 1.9, 1.0}
	assert.Equal(t, len(expected), len(targets))
	for i := range expected {
		assert.InDelta(t, expected[i], targets[i], 1e-12,
			"target %d", i)
	}
}

func TestNStepTargetsBootstrapOnNonTerminal(t *testing.T) {
	buffer := newTrajectoryBuffer(8)
	buffer.push(transitionWithReward(0.5, false))
	buffer.push(transitionWithReward(-0.1, false))

	bootstrap := 2.0
	targets := buffer.nStepTargets(0.5, bootstrap)

	// target[1] = -0.1 + 0.5 * 2           = 0.9
	// target[0] =  0.5 + 0.5 * 0.9         = 0.95
	assert.InDelta(t, 0.9, targets[1], 1e-12)
	assert.InDelta(t, 0.95, targets[0], 1e-12)
}

func TestNStepTargetsMaskBootstrapOnTerminal(t *testing.T) {
	buffer := newTrajectoryBuffer(8)
	buffer.push(transitionWithReward(1.0, true))

	// The bootstrap must not leak through a terminal transition
	targets := buffer.nStepTargets(0.9, 100.0)
	assert.InDelta(t, 1.0, targets[0], 1e-12)
}

func TestTrajectoryBufferClearAndReuse(t *testing.T) {
	buffer := newTrajectoryBuffer(2)
	buffer.push(transitionWithReward(1.0, false))
	buffer.push(transitionWithReward(2.0, false))
	assert.Equal(t, 2, buffer.len())

	buffer.clear()
	assert.Equal(t, 0, buffer.len())

	buffer.push(transitionWithReward(3.0, true))
	assert.Equal(t, 1, buffer.len())
	assert.Equal(t, 3.0, buffer.last().Reward)

	snapshot := buffer.snapshot()
	assert.Equal(t, 1, len(snapshot))
	assert.Equal(t, 3.0, snapshot[0].Reward)
}
