// Package agent holds the players that choose which boxes to press.
package agent

import (
	"context"

	"github.com/boristopalov/openthechests/pkg/core"
	"github.com/boristopalov/openthechests/pkg/sampling"
	"github.com/google/uuid"
)

// Resetter is implemented by agents that keep state between steps.
type Resetter interface {
	Reset()
}

// Observer is implemented by agents that want the outcome of their action.
type Observer interface {
	Observe(reward int, done bool)
}

// RandomAgent presses each box independently with probability p.
type RandomAgent struct {
	id  string
	rng *sampling.Rng
	p   float64
}

func NewRandomAgent(rng *sampling.Rng, p float64) *RandomAgent {
	return &RandomAgent{id: "random-" + uuid.New().String(), rng: rng, p: p}
}

func (a *RandomAgent) ID() string { return a.id }

func (a *RandomAgent) Act(_ context.Context, obs core.Observation) (core.Action, error) {
	action := make(core.Action, len(obs.Active))
	for i := range action {
		action[i] = a.rng.Float64() < a.p
	}
	return action, nil
}

// EagerAgent presses every active box that is still closed.
type EagerAgent struct {
	id string
}

func NewEagerAgent() *EagerAgent {
	return &EagerAgent{id: "eager-" + uuid.New().String()}
}

func (a *EagerAgent) ID() string { return a.id }

func (a *EagerAgent) Act(_ context.Context, obs core.Observation) (core.Action, error) {
	action := make(core.Action, len(obs.Active))
	for i := range action {
		action[i] = obs.Active[i] && !obs.Open[i]
	}
	return action, nil
}
