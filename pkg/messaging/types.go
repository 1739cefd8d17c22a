package messaging

import (
	"time"

	"github.com/boristopalov/openthechests/pkg/core"
)

// Update is published after every environment step.
type Update struct {
	RunID     string
	Episode   int
	Snapshot  core.Snapshot
	Timestamp time.Time
}

// Broker fans updates out to watchers
type Broker interface {
	// Publish delivers u to every subscriber with room in its channel and
	// returns how many received it
	Publish(u Update) int
	// Subscribe registers a watcher
	Subscribe(id string, ch chan<- Update) error
	// Unsubscribe removes a watcher
	Unsubscribe(id string) error
}
