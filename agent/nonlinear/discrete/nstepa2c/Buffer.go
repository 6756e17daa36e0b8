package nstepa2c

import (
	ts "github.com/samuelfneumann/goa2c/timestep"
)

// trajectoryBuffer stores the transitions of the current episode in
// the order they occurred. Unlike a replay buffer, it holds at most
// one (partial) episode at a time: the agent drains it on each
// learning update and clears it on episode boundaries, so stored
// transitions are always contiguous in time. That contiguity is what
// lets n-step return targets be computed with a single backward pass.
type trajectoryBuffer struct {
	transitions []ts.Transition
}

// newTrajectoryBuffer returns an empty trajectoryBuffer with room for
// capacity transitions before growing
func newTrajectoryBuffer(capacity int) *trajectoryBuffer {
	return &trajectoryBuffer{
		transitions: make([]ts.Transition, 0, capacity),
	}
}

// push appends a transition to the buffer
func (t *trajectoryBuffer) push(transition ts.Transition) {
	t.transitions = append(t.transitions, transition)
}

// len returns the number of stored transitions
func (t *trajectoryBuffer) len() int {
	return len(t.transitions)
}

// clear removes all stored transitions, retaining the underlying
// storage
func (t *trajectoryBuffer) clear() {
	t.transitions = t.transitions[:0]
}

// snapshot returns the stored transitions in chronological order. The
// returned slice aliases the buffer and is invalidated by the next
// push or clear.
func (t *trajectoryBuffer) snapshot() []ts.Transition {
	return t.transitions
}

// last returns the most recently stored transition. The buffer must
// be non-empty.
func (t *trajectoryBuffer) last() ts.Transition {
	return t.transitions[len(t.transitions)-1]
}

// nStepTargets computes an n-step bootstrapped return target for each
// stored transition, in chronological order. The target of the most
// recent transition is its reward plus the discounted bootstrap; each
// earlier transition's target is its reward plus the discounted
// target of its successor:
//
//	target[i] = reward[i] + discount * (1 - done[i]) * target[i+1]
//
// so the target of the i'th transition is an (L - i)-step return. The
// bootstrap argument estimates the value from the most recent
// transition's state onward and is masked away on terminal
// transitions.
func (t *trajectoryBuffer) nStepTargets(discount,
	bootstrap float64) []float64 {
	targets := make([]float64, len(t.transitions))

	running := bootstrap
	for i := len(t.transitions) - 1; i >= 0; i-- {
		transition := t.transitions[i]
		if transition.Done {
			running = 0
		}
		running = transition.Reward + discount*running
		targets[i] = running
	}

	return targets
}
