package tracker

import (
	"encoding/gob"
	"log"
	"os"

	"gonum.org/v1/gonum/stat"

	ts "github.com/samuelfneumann/goa2c/timestep"
)

// MeanReturn tracks the running mean of the most recent episodic
// returns in an experiment. After each episode, the Tracker records
// the mean return over the last window episodes (or over all episodes
// when fewer than window have finished), producing a smoothed
// learning curve.
type MeanReturn struct {
	returns  *Return
	window   int
	means    []float64
	recorded int
	filename string
}

// NewMeanReturn creates and returns a new *MeanReturn Tracker that
// averages over the last window episodes and saves its data to
// filename
func NewMeanReturn(filename string, window int) *MeanReturn {
	if window < 1 {
		panic("newMeanReturn: window must be positive")
	}

	return &MeanReturn{
		returns:  NewReturn(filename),
		window:   window,
		filename: filename,
	}
}

// Track tracks the reward seen on a timestep
func (m *MeanReturn) Track(step ts.TimeStep) {
	m.returns.Track(step)

	episodeReturns := m.returns.Returns()
	for m.recorded < len(episodeReturns) {
		m.recorded++

		start := m.recorded - m.window
		if start < 0 {
			start = 0
		}

		mean := stat.Mean(episodeReturns[start:m.recorded], nil)
		m.means = append(m.means, mean)
	}
}

// Means returns the running mean returns recorded so far, one per
// finished episode
func (m *MeanReturn) Means() []float64 {
	return m.means
}

// Save saves the data tracked by the MeanReturn Tracker to disk
func (m *MeanReturn) Save() {
	file, err := os.Create(m.filename)
	if err != nil {
		log.Fatalf("could not open save file: %v", err)
	}
	defer file.Close()

	en := gob.NewEncoder(file)
	if err = en.Encode(m.means); err != nil {
		log.Fatalf("could not encode mean return data: %v", err)
	}
}
