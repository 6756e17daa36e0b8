// Package network implements neural network function approximators
// as Gorgonia computational graphs
package network

import (
	G "gorgonia.org/gorgonia"
)

// NeuralNet implements a neural network on a Gorgonia computational
// graph.
//
// A NeuralNet is constructed for a fixed input batch size. Batch-1
// networks are used for action selection and state evaluation on
// single observations; larger batches are used for learning, where
// CloneWithBatch produces a network with identical weights on a fresh
// graph sized for the training batch.
type NeuralNet interface {
	// Graph returns the computational graph that the network is a
	// part of
	Graph() *G.ExprGraph

	// Clone clones the network to a new computational graph,
	// preserving weights
	Clone() (NeuralNet, error)

	// CloneWithBatch clones the network to a new computational graph
	// with a new input batch size, preserving weights
	CloneWithBatch(int) (NeuralNet, error)

	// BatchSize returns the batch size of inputs to the network
	BatchSize() int

	// Features returns the number of features in a single input
	// observation vector
	Features() int

	// Outputs returns the number of outputs predicted per input
	Outputs() int

	// SetInput sets the value of the input node before running the
	// forward pass. The input should be constructed in row major
	// order for batched networks.
	SetInput([]float64) error

	// Set sets the weights of the network to equal those of another
	// network
	Set(NeuralNet) error

	// Learnables returns the learnable nodes of the network
	Learnables() G.Nodes

	// Model returns the learnable nodes with their gradients
	Model() []G.ValueGrad

	// Output returns the value of the network predictions after the
	// graph has been run
	Output() []G.Value

	// Prediction returns the nodes of the computational graph that
	// store the network predictions
	Prediction() []*G.Node
}

// Set sets the weights of dest to be equal to the weights of source
func Set(dest, source NeuralNet) error {
	return dest.Set(source)
}
