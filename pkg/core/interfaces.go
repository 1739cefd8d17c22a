package core

import (
	"context"
)

// Environment is a box simulation driven one step at a time.
type Environment interface {
	// Reset starts a new episode and returns the first observation
	Reset() (Observation, error)
	// Step applies an action, advances the timeline by one event and reports
	// the reward and whether the episode is over
	Step(action Action) (Observation, int, bool, error)
	// NumBoxes is the length every action must have
	NumBoxes() int
	// Snapshot returns a read-only view for renderers
	Snapshot() Snapshot
}

// Agent chooses which boxes to press.
type Agent interface {
	ID() string
	// Act returns the action for the current observation
	Act(ctx context.Context, obs Observation) (Action, error)
}

// Experiment coordinates the running of experiments
type Experiment interface {
	// Run executes the experiment according to configuration
	Run(ctx context.Context) error
	// GetStatus returns current experiment status
	GetStatus() ExperimentStatus
}
