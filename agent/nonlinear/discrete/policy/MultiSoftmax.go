// Package policy implements policies for agents using neural network
// function approximation
package policy

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"

	"github.com/samuelfneumann/goa2c/agent"
	"github.com/samuelfneumann/goa2c/environment"
	"github.com/samuelfneumann/goa2c/network"
	"github.com/samuelfneumann/goa2c/timestep"
	"github.com/samuelfneumann/goa2c/utils/floatutils"
)

// MultiSoftmax implements a factored categorical policy over a
// multi-discrete action space. The policy network predicts
// actionDims * numChoices values per state. The prediction is
// reshaped so that each action dimension gets its own row of logits,
// and a temperature-scaled softmax along the choice dimension turns
// each row into an independent categorical distribution. Factoring
// the action space this way supports multi-discrete actions without
// a combinatorial blowup of the output layer.
//
// In training mode, SelectAction samples each dimension's
// distribution independently. In evaluation mode, SelectAction takes
// the per-dimension argmax, which is deterministic for fixed weights
// and state. Sampling uses the policy's TemperatureSchedule and
// advances it by one step per selection; evaluating the log
// probability of a batch of actions with LogPdfOf reads the schedule
// without advancing it.
type MultiSoftmax struct {
	network.NeuralNet
	vm G.VM // Only batch-1 policies select actions

	invTemperature *G.Node
	schedule       *TemperatureSchedule

	probs    *G.Node
	probsVal G.Value

	actionIndices *G.Node
	logPdfNode    *G.Node
	logPdfVal     G.Value

	features   int
	actionDims int
	numChoices int
	batchSize  int

	hiddenSizes []int
	biases      []bool
	activations []*network.Activation
	init        G.InitWFn

	eval bool
	seed int64
	rng  *rand.Rand
}

// NewMultiSoftmax returns a new MultiSoftmax policy for the action
// space of env. The policy network has hidden layers given by
// hiddenSizes, biases, and activations, followed by a tanh output
// layer of size actionDims * numChoices. The schedule controls the
// softmax temperature and is shared with the caller, who may observe
// it but should let the policy advance it.
//
// The batchForLogProb parameter determines the batch size of the
// policy. Only batch-1 policies can select actions; larger batches
// are used to compute log probabilities of past actions when
// learning.
func NewMultiSoftmax(env environment.Environment, batchForLogProb int,
	g *G.ExprGraph, hiddenSizes []int, biases []bool,
	activations []*network.Activation, init G.InitWFn, seed int64,
	schedule *TemperatureSchedule) (agent.LogPdfOfer, error) {
	// Error checking
	actionSpec := env.ActionSpec()
	if actionSpec.Cardinality != environment.Discrete {
		return nil, fmt.Errorf("newMultiSoftmax: softmax policy cannot be " +
			"used with continuous actions")
	}

	actionDims := actionSpec.Shape.Len()
	numChoices := int(actionSpec.UpperBound.AtVec(0)) + 1
	if numChoices < 2 {
		return nil, fmt.Errorf("newMultiSoftmax: action dimensions need at "+
			"least 2 choices, got %v", numChoices)
	}

	// All action dimensions must share the same number of choices so
	// that the prediction can be reshaped into a matrix of logits
	for i := 1; i < actionDims; i++ {
		choices := int(actionSpec.UpperBound.AtVec(i)) + 1
		if choices != numChoices {
			return nil, fmt.Errorf("newMultiSoftmax: action dimension %v "+
				"has %v choices\n\twant(%v)", i, choices, numChoices)
		}
	}

	features := env.ObservationSpec().Shape.Len()

	return newMultiSoftmax(features, actionDims, numChoices,
		batchForLogProb, g, hiddenSizes, biases, activations, init, seed,
		schedule)
}

// newMultiSoftmax constructs the policy from raw dimensions, so that
// policies can be cloned without an environment.
func newMultiSoftmax(features, actionDims, numChoices, batch int,
	g *G.ExprGraph, hiddenSizes []int, biases []bool,
	activations []*network.Activation, init G.InitWFn, seed int64,
	schedule *TemperatureSchedule) (*MultiSoftmax, error) {
	if schedule == nil {
		return nil, fmt.Errorf("newMultiSoftmax: no temperature schedule " +
			"given")
	}

	outputs := actionDims * numChoices
	net, err := network.NewMultiHeadMLP(features, batch, outputs, g,
		hiddenSizes, biases, init, activations, network.TanH())
	if err != nil {
		return nil, fmt.Errorf("newMultiSoftmax: could not create policy "+
			"network: %v", err)
	}

	logits := net.Prediction()[0]
	if logits.Shape()[1] != outputs {
		return nil, fmt.Errorf("newMultiSoftmax: network predicts %v values"+
			"\n\twant(%v)", logits.Shape()[1], outputs)
	}

	// One row of logits per action dimension per batch element
	rows := G.Must(G.Reshape(logits, tensor.Shape{batch * actionDims,
		numChoices}))

	// Temperature-scaled logits. The node holds the inverse
	// temperature so that scaling is a scalar multiplication.
	invTemperature := G.NewScalar(g, tensor.Float64,
		G.WithName(fmt.Sprintf("InverseTemperature%d", batch)))
	scaled := G.Must(G.Mul(rows, invTemperature))

	// Row-wise log probabilities and probabilities
	logSumExp := LogSumExp(scaled, 1)
	logProbs := G.Must(G.BroadcastSub(scaled, logSumExp, nil, []byte{1}))
	probs := G.Must(G.Exp(logProbs))

	// Log probability of actions inputted with LogPdfOf. The joint
	// log probability of an action vector is the sum of its
	// per-dimension log probabilities.
	actionIndices := G.NewMatrix(
		g,
		tensor.Float64,
		G.WithShape(batch*actionDims, numChoices),
		G.WithInit(G.Zeroes()),
		G.WithName(fmt.Sprintf("ActionIndices%d", batch)),
	)
	logPdfSelected := G.Must(G.HadamardProd(actionIndices, logProbs))
	logPdfSelected = G.Must(G.Sum(logPdfSelected, 1))
	logPdfJoint := G.Must(G.Reshape(logPdfSelected, tensor.Shape{batch,
		actionDims}))
	logPdfJoint = G.Must(G.Sum(logPdfJoint, 1))

	source := rand.NewSource(seed)

	pol := &MultiSoftmax{
		NeuralNet: net,

		invTemperature: invTemperature,
		schedule:       schedule,

		probs: probs,

		actionIndices: actionIndices,
		logPdfNode:    logPdfJoint,

		features:   features,
		actionDims: actionDims,
		numChoices: numChoices,
		batchSize:  batch,

		hiddenSizes: hiddenSizes,
		biases:      biases,
		activations: activations,
		init:        init,

		seed: seed,
		rng:  rand.New(source),
	}
	G.Read(pol.probs, &pol.probsVal)
	G.Read(pol.logPdfNode, &pol.logPdfVal)

	if batch == 1 {
		pol.vm = G.NewTapeMachine(net.Graph())
	}

	return pol, nil
}

// LogSumExp numerically stably computes the log of the sum of
// exponentials of logits along the given axis
func LogSumExp(logits *G.Node, along int) *G.Node {
	max := G.Must(G.Max(logits, along))

	exponent := G.Must(G.BroadcastSub(logits, max, nil, []byte{1}))
	exponent = G.Must(G.Exp(exponent))

	sum := G.Must(G.Sum(exponent, along))
	log := G.Must(G.Log(sum))

	return G.Must(G.Add(max, log))
}

// SelectAction selects an action for the argument timestep. The
// returned vector holds one discrete choice per action dimension.
func (c *MultiSoftmax) SelectAction(t timestep.TimeStep) *mat.VecDense {
	if c.batchSize != 1 {
		panic("selectAction: cannot select actions from batch policy")
	}

	probs := c.probabilities(t.Observation.RawVector().Data)

	action := make([]float64, c.actionDims)
	for dim := 0; dim < c.actionDims; dim++ {
		row := probs[dim*c.numChoices : (dim+1)*c.numChoices]
		if c.eval {
			action[dim] = float64(floatutils.ArgMax(row...))
		} else {
			action[dim] = float64(c.sample(row))
		}
	}

	// Exploration sharpens once per selection, independent of
	// training progress
	if !c.eval {
		c.schedule.Decay()
	}

	return mat.NewVecDense(c.actionDims, action)
}

// Probabilities returns the action distribution of the policy in the
// state observed on timestep t as a matrix with one row per action
// dimension. Each row is a valid probability distribution over that
// dimension's choices.
func (c *MultiSoftmax) Probabilities(t timestep.TimeStep) *mat.Dense {
	if c.batchSize != 1 {
		panic("probabilities: cannot evaluate distribution of batch policy")
	}

	probs := c.probabilities(t.Observation.RawVector().Data)
	out := mat.NewDense(c.actionDims, c.numChoices, nil)
	for dim := 0; dim < c.actionDims; dim++ {
		out.SetRow(dim, probs[dim*c.numChoices:(dim+1)*c.numChoices])
	}
	return out
}

// probabilities runs the policy network forward on obs and returns
// the flattened [actionDims, numChoices] probability tensor
func (c *MultiSoftmax) probabilities(obs []float64) []float64 {
	if err := c.Network().SetInput(obs); err != nil {
		panic(fmt.Sprintf("probabilities: could not set network input: %v",
			err))
	}
	if err := G.Let(c.invTemperature, 1.0/c.schedule.Value()); err != nil {
		panic(fmt.Sprintf("probabilities: could not set temperature: %v",
			err))
	}

	if err := c.vm.RunAll(); err != nil {
		panic(fmt.Sprintf("probabilities: could not run policy network: %v",
			err))
	}
	probs := c.probsVal.Data().([]float64)
	out := make([]float64, len(probs))
	copy(out, probs)
	c.vm.Reset()

	return out
}

// sample draws one choice from a categorical distribution
func (c *MultiSoftmax) sample(probs []float64) int {
	u := c.rng.Float64()
	var cumulative float64
	for i, p := range probs {
		cumulative += p
		if u < cumulative {
			return i
		}
	}
	// Guard against the row summing to slightly less than 1
	return len(probs) - 1
}

// LogPdfOf sets the policy's log probability node to compute the log
// probabilities of taking the argument actions in the argument
// states. Both arguments are constructed in row major order: states
// holds batch * features values, and actions holds batch * actionDims
// discrete choices. The node is returned; its value is available
// after the policy's graph has been run.
func (c *MultiSoftmax) LogPdfOf(states, actions []float64) (*G.Node,
	error) {
	if len(actions) != c.batchSize*c.actionDims {
		return nil, fmt.Errorf("logPdfOf: invalid number of actions"+
			"\n\twant(%v)\n\thave(%v)", c.batchSize*c.actionDims,
			len(actions))
	}

	if err := c.Network().SetInput(states); err != nil {
		return nil, fmt.Errorf("logPdfOf: could not set state input: %v",
			err)
	}

	// One-hot encode the taken actions, one row per action dimension
	actionIndices := make([]float64, c.batchSize*c.actionDims*c.numChoices)
	for i, choice := range actions {
		index := int(choice)
		if index < 0 || index >= c.numChoices {
			return nil, fmt.Errorf("logPdfOf: illegal action choice %v for "+
				"%v-choice dimension", index, c.numChoices)
		}
		actionIndices[i*c.numChoices+index] = 1.0
	}
	actionIndicesTensor := tensor.NewDense(
		tensor.Float64,
		[]int{c.batchSize * c.actionDims, c.numChoices},
		tensor.WithBacking(actionIndices),
	)
	if err := G.Let(c.actionIndices, actionIndicesTensor); err != nil {
		return nil, fmt.Errorf("logPdfOf: could not set action indices: %v",
			err)
	}

	// Learning reads the schedule but does not advance it
	err := G.Let(c.invTemperature, 1.0/c.schedule.Value())
	if err != nil {
		return nil, fmt.Errorf("logPdfOf: could not set temperature: %v",
			err)
	}

	return c.logPdfNode, nil
}

// LogPdfNode returns the node that computes the log probability of
// inputted actions
func (c *MultiSoftmax) LogPdfNode() *G.Node {
	return c.logPdfNode
}

// LogPdfVal returns the value of the node returned by LogPdfNode
func (c *MultiSoftmax) LogPdfVal() G.Value {
	return c.logPdfVal
}

// CloneWithBatch clones the policy with a new input batch size. The
// clone lives on a new computational graph, shares the original's
// temperature schedule, and starts with the original's weights.
func (c *MultiSoftmax) CloneWithBatch(batch int) (agent.NNPolicy, error) {
	clone, err := newMultiSoftmax(c.features, c.actionDims, c.numChoices,
		batch, G.NewGraph(), c.hiddenSizes, c.biases, c.activations, c.init,
		c.seed, c.schedule)
	if err != nil {
		return nil, fmt.Errorf("cloneWithBatch: %v", err)
	}

	if err := network.Set(clone.Network(), c.Network()); err != nil {
		return nil, fmt.Errorf("cloneWithBatch: could not copy weights: %v",
			err)
	}

	return clone, nil
}

// Network returns the policy's neural network
func (c *MultiSoftmax) Network() network.NeuralNet {
	return c.NeuralNet
}

// ActionDims returns the number of action dimensions of the policy
func (c *MultiSoftmax) ActionDims() int {
	return c.actionDims
}

// NumChoices returns the number of discrete choices per action
// dimension
func (c *MultiSoftmax) NumChoices() int {
	return c.numChoices
}

// Eval sets the policy to evaluation mode
func (c *MultiSoftmax) Eval() { c.eval = true }

// Train sets the policy to training mode
func (c *MultiSoftmax) Train() { c.eval = false }

// IsEval indicates whether the policy is in evaluation mode
func (c *MultiSoftmax) IsEval() bool { return c.eval }
