package messaging

import (
	"context"
	"sync"
)

// Watch subscribes id to b and calls fn for every update, in order, until
// ctx is done. The returned stop function unsubscribes, lets fn drain what
// is already buffered and waits for it to return.
func Watch(ctx context.Context, b Broker, id string, buffer int, fn func(Update)) (stop func(), err error) {
	ch := make(chan Update, buffer)
	if err := b.Subscribe(id, ch); err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case u, ok := <-ch:
				if !ok {
					return
				}
				fn(u)
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = b.Unsubscribe(id)
			close(ch)
			<-done
		})
	}, nil
}
