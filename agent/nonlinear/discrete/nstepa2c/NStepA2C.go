// Package nstepa2c implements an n-step advantage actor-critic
// algorithm with a factored categorical policy over a multi-discrete
// action space.
//
// The agent accumulates the current episode's transitions in a
// trajectory buffer. Once every UpdateEvery calls to Step, it
// replays the buffer backwards to construct an n-step bootstrapped
// return target for every stored transition, then regresses the
// critic onto those targets and follows the policy gradient scaled
// by the resulting advantages. The buffer is cleared once per
// episode, so targets never mix transitions from different episodes.
package nstepa2c

import (
	"fmt"
	"os"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goa2c/agent"
	env "github.com/samuelfneumann/goa2c/environment"
	"github.com/samuelfneumann/goa2c/network"
	ts "github.com/samuelfneumann/goa2c/timestep"
)

// NStepA2C implements the n-step advantage actor-critic agent. The
// agent maintains two copies of the policy and two copies of the
// critic. The batch-1 behaviour policy and prediction critic run
// without gradients and serve action selection and bootstrapping.
// The training copies live on their own graphs, are sized to the
// current buffer length, and carry the loss and gradient nodes.
// Weights flow behaviour to training before each update and back
// after the solvers step.
type NStepA2C struct {
	// Behaviour policy, batch 1, selects actions with its own VM
	behaviour agent.LogPdfOfer

	// Prediction critic, batch 1, bootstraps n-step targets
	vValueFn network.NeuralNet
	vVM      G.VM

	// Training policy, rebuilt whenever the buffer length changes
	trainPolicy   agent.LogPdfOfer
	trainPolicyVM G.VM
	advantages    *G.Node
	policySolver  G.Solver

	// Training critic, rebuilt alongside the training policy
	trainValueFn        network.NeuralNet
	trainValueFnVM      G.VM
	trainValueFnTargets *G.Node
	vSolver             G.Solver
	trainBatch          int

	buffer   *trajectoryBuffer
	prevStep ts.TimeStep

	features   int
	actionDims int

	gamma       float64
	updateEvery int
	tStep       int

	eval bool
}

// New returns a new NStepA2C agent on environment e, configured by c
func New(e env.Environment, c agent.Config, seed uint64) (agent.Agent,
	error) {
	if !c.ValidAgent(&NStepA2C{}) {
		return nil, fmt.Errorf("new: invalid configuration type: %T", c)
	}

	config, ok := c.(Config)
	if !ok {
		return nil, fmt.Errorf("new: invalid configuration type: %T", c)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("new: %v", err)
	}

	behaviour := config.behaviour
	valueFn := config.vValueFn
	vVM := G.NewTapeMachine(valueFn.Graph())

	a := &NStepA2C{
		behaviour: behaviour,

		vValueFn: valueFn,
		vVM:      vVM,

		policySolver: config.PolicySolver,
		vSolver:      config.VSolver,

		buffer: newTrajectoryBuffer(config.UpdateEvery),

		features:   e.ObservationSpec().Shape.Len(),
		actionDims: e.ActionSpec().Shape.Len(),

		gamma:       config.Gamma,
		updateEvery: config.UpdateEvery,
	}

	return a, nil
}

// SelectAction selects an action for the argument timestep
func (a *NStepA2C) SelectAction(t ts.TimeStep) *mat.VecDense {
	return a.behaviour.SelectAction(t)
}

// ObserveFirst records the first timestep of an episode
func (a *NStepA2C) ObserveFirst(t ts.TimeStep) error {
	if !t.First() {
		fmt.Fprintf(os.Stderr, "Warning: ObserveFirst() should only be "+
			"called on the first timestep (current timestep = %d)\n",
			t.Number)
	}

	a.prevStep = t
	return nil
}

// Observe records that an action led to some timestep
func (a *NStepA2C) Observe(action mat.Vector, nextStep ts.TimeStep) error {
	if nextStep.First() {
		a.prevStep = nextStep
		return nil
	}

	actionVec, ok := action.(*mat.VecDense)
	if !ok {
		return fmt.Errorf("observe: actions must be dense vectors, got %T",
			action)
	}

	a.buffer.push(ts.NewTransition(a.prevStep, actionVec, nextStep))
	a.prevStep = nextStep
	return nil
}

// EndEpisode performs cleanup at the end of an episode. Transitions
// recorded since the last update are discarded with the buffer;
// learning resumes from a fresh buffer on the next episode.
func (a *NStepA2C) EndEpisode() {
	a.buffer.clear()
}

// Step updates the agent's networks. The method is called once per
// environment step, but a parameter update is performed only when
// the agent's internal step counter equals 0; the counter cycles
// through UpdateEvery values. Calls with an empty buffer or in
// evaluation mode are no-ops, but still advance the counter.
func (a *NStepA2C) Step() error {
	update := a.tStep == 0
	a.tStep = (a.tStep + 1) % a.updateEvery

	if !update || a.eval || a.buffer.len() == 0 {
		return nil
	}
	return a.update()
}

// update performs a single gradient update on the critic and the
// policy using every transition currently stored in the buffer
func (a *NStepA2C) update() error {
	transitions := a.buffer.snapshot()
	batch := len(transitions)

	if batch != a.trainBatch {
		if err := a.rebuildTrainGraphs(batch); err != nil {
			return fmt.Errorf("update: %v", err)
		}
	}

	// Weights flow behaviour to training before the update
	if err := network.Set(a.trainPolicy.Network(),
		a.behaviour.Network()); err != nil {
		return fmt.Errorf("update: could not sync training policy: %v", err)
	}
	if err := network.Set(a.trainValueFn, a.vValueFn); err != nil {
		return fmt.Errorf("update: could not sync training critic: %v", err)
	}

	states := make([]float64, 0, batch*a.features)
	actions := make([]float64, 0, batch*a.actionDims)
	for _, transition := range transitions {
		states = append(states, transition.State.RawVector().Data...)
		actions = append(actions, transition.Action.RawVector().Data...)
	}

	// Bootstrap the return recursion from the prediction critic's
	// estimate of the most recent state. The prediction critic
	// computes no gradients, so no gradient flows through the
	// bootstrap term.
	lastState := a.buffer.last().NextState.RawVector().Data
	bootstrap, err := a.stateValue(lastState)
	if err != nil {
		return fmt.Errorf("update: could not bootstrap: %v", err)
	}
	targets := a.buffer.nStepTargets(a.gamma, bootstrap)

	// Critic update. The critic's forward values are read before the
	// solver steps so that advantages use pre-update estimates.
	if err := a.trainValueFn.SetInput(states); err != nil {
		return fmt.Errorf("update: could not set critic input: %v", err)
	}
	targetsTensor := tensor.NewDense(
		tensor.Float64,
		a.trainValueFnTargets.Shape(),
		tensor.WithBacking(targets),
	)
	if err := G.Let(a.trainValueFnTargets, targetsTensor); err != nil {
		return fmt.Errorf("update: could not set critic targets: %v", err)
	}
	if err := a.trainValueFnVM.RunAll(); err != nil {
		return fmt.Errorf("update: could not run critic graph: %v", err)
	}

	stateValues := a.trainValueFn.Output()[0].Data().([]float64)
	advantages := make([]float64, batch)
	for i := range advantages {
		advantages[i] = targets[i] - stateValues[i]
	}

	if err := a.vSolver.Step(a.trainValueFn.Model()); err != nil {
		return fmt.Errorf("update: could not step critic solver: %v", err)
	}
	a.trainValueFnVM.Reset()

	// Policy update. Advantages enter the policy graph as constants,
	// so the policy gradient cannot flow into the critic.
	if _, err := a.trainPolicy.LogPdfOf(states, actions); err != nil {
		return fmt.Errorf("update: could not set policy input: %v", err)
	}
	advantagesTensor := tensor.NewDense(
		tensor.Float64,
		[]int{batch},
		tensor.WithBacking(advantages),
	)
	if err := G.Let(a.advantages, advantagesTensor); err != nil {
		return fmt.Errorf("update: could not set advantages: %v", err)
	}
	if err := a.trainPolicyVM.RunAll(); err != nil {
		return fmt.Errorf("update: could not run policy graph: %v", err)
	}
	if err := a.policySolver.Step(a.trainPolicy.Network().Model()); err != nil {
		return fmt.Errorf("update: could not step policy solver: %v", err)
	}
	a.trainPolicyVM.Reset()

	// Updated weights flow back to the behaviour copies
	if err := network.Set(a.behaviour.Network(),
		a.trainPolicy.Network()); err != nil {
		return fmt.Errorf("update: could not sync behaviour policy: %v", err)
	}
	if err := network.Set(a.vValueFn, a.trainValueFn); err != nil {
		return fmt.Errorf("update: could not sync prediction critic: %v",
			err)
	}

	return nil
}

// rebuildTrainGraphs constructs training copies of the policy and
// critic sized for the argument batch, with their loss and gradient
// nodes. The buffer grows between updates, so the training graphs
// are rebuilt whenever its length changes. Weight shapes do not
// depend on the batch size, so solver state carries across rebuilds.
func (a *NStepA2C) rebuildTrainGraphs(batch int) error {
	// Training policy and REINFORCE-style loss
	clone, err := a.behaviour.CloneWithBatch(batch)
	if err != nil {
		return fmt.Errorf("rebuildTrainGraphs: could not clone policy: %v",
			err)
	}
	trainPolicy, ok := clone.(agent.LogPdfOfer)
	if !ok {
		return fmt.Errorf("rebuildTrainGraphs: cloned policy cannot "+
			"compute log probabilities: %T", clone)
	}

	logProb := trainPolicy.LogPdfNode()
	advantages := G.NewVector(
		trainPolicy.Network().Graph(),
		tensor.Float64,
		G.WithName("Advantages"),
		G.WithShape(batch),
	)
	policyLoss := G.Must(G.HadamardProd(logProb, advantages))
	policyLoss = G.Must(G.Mean(policyLoss))
	policyLoss = G.Must(G.Neg(policyLoss))

	if _, err := G.Grad(policyLoss,
		trainPolicy.Network().Learnables()...); err != nil {
		return fmt.Errorf("rebuildTrainGraphs: could not compute policy "+
			"gradient: %v", err)
	}
	trainPolicyVM := G.NewTapeMachine(trainPolicy.Network().Graph(),
		G.BindDualValues(trainPolicy.Network().Learnables()...))

	// Training critic and MSE loss against the n-step targets
	trainValueFn, err := a.vValueFn.CloneWithBatch(batch)
	if err != nil {
		return fmt.Errorf("rebuildTrainGraphs: could not clone critic: %v",
			err)
	}

	targets := G.NewMatrix(
		trainValueFn.Graph(),
		tensor.Float64,
		G.WithShape(trainValueFn.Prediction()[0].Shape()...),
		G.WithName("ValueFunctionUpdateTarget"),
	)
	valueFnLoss := G.Must(G.Sub(trainValueFn.Prediction()[0], targets))
	valueFnLoss = G.Must(G.Square(valueFnLoss))
	valueFnLoss = G.Must(G.Mean(valueFnLoss))

	if _, err := G.Grad(valueFnLoss,
		trainValueFn.Learnables()...); err != nil {
		return fmt.Errorf("rebuildTrainGraphs: could not compute critic "+
			"gradient: %v", err)
	}
	trainValueFnVM := G.NewTapeMachine(trainValueFn.Graph(),
		G.BindDualValues(trainValueFn.Learnables()...))

	if a.trainPolicyVM != nil {
		a.trainPolicyVM.Close()
	}
	if a.trainValueFnVM != nil {
		a.trainValueFnVM.Close()
	}

	a.trainPolicy = trainPolicy
	a.trainPolicyVM = trainPolicyVM
	a.advantages = advantages
	a.trainValueFn = trainValueFn
	a.trainValueFnVM = trainValueFnVM
	a.trainValueFnTargets = targets
	a.trainBatch = batch

	return nil
}

// stateValue returns the prediction critic's value estimate of the
// argument state observation
func (a *NStepA2C) stateValue(obs []float64) (float64, error) {
	if err := a.vValueFn.SetInput(obs); err != nil {
		return 0, fmt.Errorf("stateValue: could not set critic input: %v",
			err)
	}
	if err := a.vVM.RunAll(); err != nil {
		return 0, fmt.Errorf("stateValue: could not run critic graph: %v",
			err)
	}

	value := a.vValueFn.Output()[0].Data().([]float64)
	a.vVM.Reset()
	if len(value) != 1 {
		return 0, fmt.Errorf("stateValue: more than one state value "+
			"predicted: %v", len(value))
	}

	return value[0], nil
}

// TdError returns the one-step TD error of the argument transition
// under the agent's current value estimates
func (a *NStepA2C) TdError(t ts.Transition) float64 {
	stateValue, err := a.stateValue(t.State.RawVector().Data)
	if err != nil {
		panic(fmt.Sprintf("tdError: %v", err))
	}
	nextStateValue, err := a.stateValue(t.NextState.RawVector().Data)
	if err != nil {
		panic(fmt.Sprintf("tdError: %v", err))
	}

	mask := 1.0
	if t.Done {
		mask = 0.0
	}
	return t.Reward + a.gamma*mask*nextStateValue - stateValue
}

// Eval sets the agent to evaluation mode
func (a *NStepA2C) Eval() {
	a.eval = true
	a.behaviour.Eval()
}

// Train sets the agent to training mode
func (a *NStepA2C) Train() {
	a.eval = false
	a.behaviour.Train()
}

// IsEval indicates whether the agent is in evaluation mode
func (a *NStepA2C) IsEval() bool { return a.eval }

// BufferLen returns the number of transitions currently stored for
// the next update
func (a *NStepA2C) BufferLen() int {
	return a.buffer.len()
}
