package messaging

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// SimpleBroker never blocks a publisher: an update for a subscriber whose
// channel is full is dropped and counted.
type SimpleBroker struct {
	subscribers map[string]chan<- Update
	mu          sync.RWMutex
	dropped     atomic.Uint64
}

func NewBroker() *SimpleBroker {
	return &SimpleBroker{
		subscribers: make(map[string]chan<- Update),
	}
}

func (b *SimpleBroker) Publish(u Update) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- u:
			delivered++
		default:
			b.dropped.Add(1)
		}
	}
	return delivered
}

func (b *SimpleBroker) Subscribe(id string, ch chan<- Update) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; exists {
		return fmt.Errorf("watcher %s is already subscribed", id)
	}
	b.subscribers[id] = ch
	return nil
}

func (b *SimpleBroker) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return fmt.Errorf("watcher %s is not subscribed", id)
	}
	delete(b.subscribers, id)
	return nil
}

// Dropped counts updates discarded because a subscriber was full.
func (b *SimpleBroker) Dropped() uint64 { return b.dropped.Load() }

func (b *SimpleBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]chan<- Update)
	b.dropped.Store(0)
}
