package nstepa2c

import (
	"fmt"

	G "gorgonia.org/gorgonia"

	"github.com/samuelfneumann/goa2c/agent"
	"github.com/samuelfneumann/goa2c/agent/nonlinear/discrete/policy"
	env "github.com/samuelfneumann/goa2c/environment"
	"github.com/samuelfneumann/goa2c/initwfn"
	"github.com/samuelfneumann/goa2c/network"
	"github.com/samuelfneumann/goa2c/solver"
)

// Config implements a configuration of the NStepA2C agent with MLP
// policy and critic networks. Config is JSON-serializable so that
// hyperparameter settings can be stored in configuration files.
type Config struct {
	// Policy neural net
	behaviour         agent.LogPdfOfer
	PolicyLayers      []int
	PolicyBiases      []bool
	PolicyActivations []*network.Activation

	// State value critic neural net
	vValueFn           network.NeuralNet
	ValueFnLayers      []int
	ValueFnBiases      []bool
	ValueFnActivations []*network.Activation

	// Weight init function for all neural nets
	InitWFn *initwfn.InitWFn

	PolicySolver *solver.Solver
	VSolver      *solver.Solver

	// Softmax exploration temperature schedule
	InitialTemperature float64
	MinTemperature     float64
	TemperatureDecay   float64

	// Discount factor of the n-step return targets
	Gamma float64

	// Number of calls to Step between parameter updates
	UpdateEvery int
}

// DefaultConfig returns a default configuration of the NStepA2C
// agent
func DefaultConfig() Config {
	init, err := initwfn.NewGlorotU(1.0)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: could not create weight "+
			"initializer: %v", err))
	}

	policySolver, err := solver.NewDefaultAdam(1e-4, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: could not create policy "+
			"solver: %v", err))
	}

	vSolver, err := solver.NewDefaultAdam(1e-3, 1)
	if err != nil {
		panic(fmt.Sprintf("defaultConfig: could not create critic "+
			"solver: %v", err))
	}

	return Config{
		PolicyLayers: []int{128, 64},
		PolicyBiases: []bool{true, true},
		PolicyActivations: []*network.Activation{
			network.ReLU(), network.ReLU(),
		},

		ValueFnLayers: []int{128, 64},
		ValueFnBiases: []bool{true, true},
		ValueFnActivations: []*network.Activation{
			network.ReLU(), network.ReLU(),
		},

		InitWFn:      init,
		PolicySolver: policySolver,
		VSolver:      vSolver,

		InitialTemperature: 1.0,
		MinTemperature:     0.1,
		TemperatureDecay:   0.999,

		Gamma:       0.9,
		UpdateEvery: 50,
	}
}

// Validate returns an error describing whether or not the
// configuration is valid
func (c Config) Validate() error {
	if c.Gamma < 0 || c.Gamma > 1 {
		return fmt.Errorf("discount factor must be in [0, 1], got %v",
			c.Gamma)
	}
	if c.UpdateEvery < 1 {
		return fmt.Errorf("cannot update every %v steps", c.UpdateEvery)
	}
	if c.PolicySolver == nil || c.VSolver == nil {
		return fmt.Errorf("configuration requires both a policy and a " +
			"critic solver")
	}
	if c.InitWFn == nil {
		return fmt.Errorf("configuration requires a weight initializer")
	}
	if len(c.PolicyLayers) != len(c.PolicyBiases) ||
		len(c.PolicyLayers) != len(c.PolicyActivations) {
		return fmt.Errorf("policy layers (%v), biases (%v), and "+
			"activations (%v) must have equal lengths",
			len(c.PolicyLayers), len(c.PolicyBiases),
			len(c.PolicyActivations))
	}
	if len(c.ValueFnLayers) != len(c.ValueFnBiases) ||
		len(c.ValueFnLayers) != len(c.ValueFnActivations) {
		return fmt.Errorf("critic layers (%v), biases (%v), and "+
			"activations (%v) must have equal lengths",
			len(c.ValueFnLayers), len(c.ValueFnBiases),
			len(c.ValueFnActivations))
	}

	return nil
}

// ValidAgent returns whether the argument agent can be constructed
// from the Config
func (c Config) ValidAgent(a agent.Agent) bool {
	_, ok := a.(*NStepA2C)
	return ok
}

// CreateAgent creates and returns the agent determined by the
// configuration
func (c Config) CreateAgent(e env.Environment, seed uint64) (agent.Agent,
	error) {
	schedule, err := policy.NewTemperatureSchedule(c.InitialTemperature,
		c.MinTemperature, c.TemperatureDecay)
	if err != nil {
		return nil, fmt.Errorf("createAgent: could not create "+
			"temperature schedule: %v", err)
	}

	behaviour, err := policy.NewMultiSoftmax(
		e,
		1,
		G.NewGraph(),
		c.PolicyLayers,
		c.PolicyBiases,
		c.PolicyActivations,
		c.InitWFn.InitWFn(),
		int64(seed),
		schedule,
	)
	if err != nil {
		return nil, fmt.Errorf("createAgent: could not create behaviour "+
			"policy: %v", err)
	}

	features := e.ObservationSpec().Shape.Len()
	valueFn, err := network.NewSingleHeadMLP(
		features,
		1,
		G.NewGraph(),
		c.ValueFnLayers,
		c.ValueFnBiases,
		c.InitWFn.InitWFn(),
		c.ValueFnActivations,
	)
	if err != nil {
		return nil, fmt.Errorf("createAgent: could not create value "+
			"function: %v", err)
	}

	c.behaviour = behaviour
	c.vValueFn = valueFn

	return New(e, c, seed)
}
