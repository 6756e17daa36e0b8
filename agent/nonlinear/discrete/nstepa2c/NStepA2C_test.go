package nstepa2c

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r1"

	"github.com/samuelfneumann/goa2c/environment"
	"github.com/samuelfneumann/goa2c/environment/gridchase"
	"github.com/samuelfneumann/goa2c/network"
	ts "github.com/samuelfneumann/goa2c/timestep"
)

// testAgent returns an NStepA2C agent on a GridChase environment with
// a fixed starting state and small networks
func testAgent(t *testing.T, updateEvery int) (*NStepA2C,
	environment.Environment) {
	t.Helper()

	// The goal is 9 diagonal moves away, so short test episodes can
	// never reach it and every reward is the step penalty
	intervals := []r1.Interval{
		{Min: 0, Max: 0},
		{Min: 0, Max: 0},
		{Min: 9, Max: 9},
		{Min: 9, Max: 9},
	}
	starter := environment.NewUniformStarter(intervals, 1)

	env, _, err := gridchase.New(starter, 10, 100, 0.9)
	require.NoError(t, err)

	config := DefaultConfig()
	config.PolicyLayers = []int{5}
	config.PolicyBiases = []bool{true}
	config.PolicyActivations = []*network.Activation{network.ReLU()}
	config.ValueFnLayers = []int{5}
	config.ValueFnBiases = []bool{true}
	config.ValueFnActivations = []*network.Activation{network.ReLU()}
	config.UpdateEvery = updateEvery

	a, err := config.CreateAgent(env, 42)
	require.NoError(t, err)

	return a.(*NStepA2C), env
}

// weightsOf flattens a network's learnable weights into one slice
func weightsOf(t *testing.T, net network.NeuralNet) []float64 {
	t.Helper()

	var weights []float64
	for _, learnable := range net.Learnables() {
		data, ok := learnable.Value().Data().([]float64)
		require.True(t, ok, "learnable %v does not hold float64 weights",
			learnable.Name())
		weights = append(weights, data...)
	}
	return weights
}

// changed reports whether two flattened weight slices differ
func changed(before, after []float64) bool {
	if len(before) != len(after) {
		return true
	}
	for i := range before {
		if math.Abs(before[i]-after[i]) > 1e-15 {
			return true
		}
	}
	return false
}

func TestStepUpdatesOnCadence(t *testing.T) {
	updateEvery := 3
	a, env := testAgent(t, updateEvery)

	step := env.Reset()
	require.NoError(t, a.ObserveFirst(step))

	// Updates must occur on exactly every updateEvery'th call,
	// starting with the first
	for call := 0; call < 2*updateEvery; call++ {
		action := a.SelectAction(step)
		next, _ := env.Step(action)
		require.NoError(t, a.Observe(action, next))
		step = next

		before := weightsOf(t, a.behaviour.Network())
		require.NoError(t, a.Step())
		after := weightsOf(t, a.behaviour.Network())

		if call%updateEvery == 0 {
			assert.True(t, changed(before, after),
				"expected an update on call %v", call)
		} else {
			assert.False(t, changed(before, after),
				"unexpected update on call %v", call)
		}
	}
}

func TestStepWithEmptyBufferIsNoOp(t *testing.T) {
	a, env := testAgent(t, 3)
	require.NoError(t, a.ObserveFirst(env.Reset()))

	policyBefore := weightsOf(t, a.behaviour.Network())
	criticBefore := weightsOf(t, a.vValueFn)

	// The counter is at 0, but there is nothing to update
	require.NoError(t, a.Step())

	assert.False(t, changed(policyBefore,
		weightsOf(t, a.behaviour.Network())))
	assert.False(t, changed(criticBefore, weightsOf(t, a.vValueFn)))
}

func TestStepSkipsUpdatesInEvalMode(t *testing.T) {
	a, env := testAgent(t, 1)

	step := env.Reset()
	require.NoError(t, a.ObserveFirst(step))
	a.Eval()

	action := a.SelectAction(step)
	next, _ := env.Step(action)
	require.NoError(t, a.Observe(action, next))

	before := weightsOf(t, a.behaviour.Network())
	require.NoError(t, a.Step())
	assert.False(t, changed(before, weightsOf(t, a.behaviour.Network())))
}

func TestEndEpisodeClearsBuffer(t *testing.T) {
	a, env := testAgent(t, 100)

	step := env.Reset()
	require.NoError(t, a.ObserveFirst(step))

	for i := 0; i < 4; i++ {
		action := a.SelectAction(step)
		next, _ := env.Step(action)
		require.NoError(t, a.Observe(action, next))
		step = next
	}
	assert.Equal(t, 4, a.BufferLen())

	a.EndEpisode()
	assert.Equal(t, 0, a.BufferLen())
}

func TestEpisodeReturnAndLearning(t *testing.T) {
	episodeLength := 5
	a, env := testAgent(t, episodeLength)

	policyBefore := weightsOf(t, a.behaviour.Network())
	criticBefore := weightsOf(t, a.vValueFn)

	step := env.Reset()
	require.NoError(t, a.ObserveFirst(step))

	// Updates occur on the first call and every episodeLength'th call
	// after it. Skip the first call's update so that the update under
	// test sees the whole episode.
	require.NoError(t, a.Step())

	var episodeReturn float64
	for i := 0; i < episodeLength; i++ {
		action := a.SelectAction(step)
		next, _ := env.Step(action)
		require.NoError(t, a.Observe(action, next))

		episodeReturn += next.Reward
		require.NoError(t, a.Step())
		step = next
	}

	assert.InDelta(t, float64(episodeLength)*gridchase.StepReward,
		episodeReturn, 1e-12)

	// The counter wrapped once mid-episode, so both networks must
	// have learned
	assert.True(t, changed(policyBefore,
		weightsOf(t, a.behaviour.Network())),
		"policy weights did not change")
	assert.True(t, changed(criticBefore, weightsOf(t, a.vValueFn)),
		"critic weights did not change")

	a.EndEpisode()
	assert.Equal(t, 0, a.BufferLen())
}

func TestTdErrorUsesValueEstimates(t *testing.T) {
	a, env := testAgent(t, 50)

	step := env.Reset()
	action := a.SelectAction(step)
	next, _ := env.Step(action)

	transition := ts.NewTransition(step, action, next)
	tdErr := a.TdError(transition)

	// Reconstruct the TD error from the critic's own estimates
	stateValue, err := a.stateValue(step.Observation.RawVector().Data)
	require.NoError(t, err)
	nextStateValue, err := a.stateValue(next.Observation.RawVector().Data)
	require.NoError(t, err)

	mask := 1.0
	if next.Last() {
		mask = 0.0
	}
	expected := next.Reward + a.gamma*mask*nextStateValue - stateValue
	assert.InDelta(t, expected, tdErr, 1e-12)
}
