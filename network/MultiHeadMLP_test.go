package network

import (
	"testing"

	G "gorgonia.org/gorgonia"
)

func TestMultiHeadMLPShapes(t *testing.T) {
	features, batch, outputs := 4, 3, 6

	g := G.NewGraph()
	net, err := NewMultiHeadMLP(features, batch, outputs, g,
		[]int{128, 64}, []bool{true, true}, G.GlorotN(1.0),
		[]*Activation{ReLU(), ReLU()}, TanH())
	if err != nil {
		t.Fatalf("could not create network: %v", err)
	}

	if net.Features() != features {
		t.Errorf("expected %v features, got %v", features, net.Features())
	}
	if net.BatchSize() != batch {
		t.Errorf("expected batch size %v, got %v", batch, net.BatchSize())
	}
	if net.Outputs() != outputs {
		t.Errorf("expected %v outputs, got %v", outputs, net.Outputs())
	}

	pred := net.Prediction()[0]
	shape := pred.Shape()
	if shape[0] != batch || shape[1] != outputs {
		t.Errorf("expected prediction shape [%v %v], got %v", batch,
			outputs, shape)
	}

	// Two hidden layers plus output layer, all with biases
	if len(net.Learnables()) != 6 {
		t.Errorf("expected 6 learnable nodes, got %v", len(net.Learnables()))
	}
}

func TestMultiHeadMLPForward(t *testing.T) {
	g := G.NewGraph()
	net, err := NewMultiHeadMLP(2, 1, 3, g, []int{8}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU()}, TanH())
	if err != nil {
		t.Fatalf("could not create network: %v", err)
	}

	vm := G.NewTapeMachine(net.Graph())
	defer vm.Close()

	if err := net.SetInput([]float64{0.5, -0.5}); err != nil {
		t.Fatalf("could not set network input: %v", err)
	}
	if err := vm.RunAll(); err != nil {
		t.Fatalf("could not run forward pass: %v", err)
	}
	defer vm.Reset()

	out := net.Output()[0].Data().([]float64)
	if len(out) != 3 {
		t.Fatalf("expected 3 outputs, got %v", len(out))
	}

	// The tanh output head bounds each prediction
	for i, v := range out {
		if v < -1 || v > 1 {
			t.Errorf("output %v = %v outside tanh range", i, v)
		}
	}
}

func TestMultiHeadMLPSetInputWrongSize(t *testing.T) {
	g := G.NewGraph()
	net, err := NewMultiHeadMLP(4, 2, 2, g, []int{8}, []bool{true},
		G.GlorotU(1.0), []*Activation{ReLU()}, Identity())
	if err != nil {
		t.Fatalf("could not create network: %v", err)
	}

	if err := net.SetInput([]float64{1, 2, 3}); err == nil {
		t.Error("expected an error for an input of the wrong size")
	}
}

func TestCloneWithBatchPreservesWeights(t *testing.T) {
	g := G.NewGraph()
	net, err := NewSingleHeadMLP(3, 1, g, []int{16}, []bool{true},
		G.GlorotN(1.0), []*Activation{ReLU()})
	if err != nil {
		t.Fatalf("could not create network: %v", err)
	}

	clone, err := net.CloneWithBatch(5)
	if err != nil {
		t.Fatalf("could not clone network: %v", err)
	}

	if clone.BatchSize() != 5 {
		t.Errorf("expected batch size 5, got %v", clone.BatchSize())
	}
	if clone.Graph() == net.Graph() {
		t.Error("clone should live on a new graph")
	}

	origLearnables := net.Learnables()
	cloneLearnables := clone.Learnables()
	if len(origLearnables) != len(cloneLearnables) {
		t.Fatalf("clone has %v learnables, original has %v",
			len(cloneLearnables), len(origLearnables))
	}

	for i := range origLearnables {
		orig := origLearnables[i].Value().Data().([]float64)
		cloned := cloneLearnables[i].Value().Data().([]float64)
		for j := range orig {
			if orig[j] != cloned[j] {
				t.Fatalf("weights of learnable %v differ at index %v", i, j)
			}
		}
	}
}
