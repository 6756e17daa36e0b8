// Package experiment implements functionality for running an
// experiment.
//
// Experiments step an agent through an environment, sending every
// TimeStep to registered tracker.Trackers. Trackers cache data from
// the timesteps they see, and an Experiment's Save method writes all
// cached data to disk once the experiment has finished. New Trackers
// can be registered through a constructor or through an Experiment's
// Register method.
package experiment

import (
	"github.com/samuelfneumann/goa2c/experiment/tracker"
)

// Experiment outlines structs that can run experiments. Run runs all
// episodes until the experiment's ending condition is reached, and
// RunEpisode runs a single episode, returning whether the experiment
// has finished.
type Experiment interface {
	Run()
	RunEpisode() bool

	// Save all tracked data to disk
	Save()

	// Register adds a new tracker.Tracker to the (possibly already
	// running) experiment
	Register(t tracker.Tracker)
}
