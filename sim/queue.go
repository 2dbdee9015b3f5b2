package sim

import (
	"sync"

	"github.com/rustyeddy/futbridge/gateway"
)

// queue delivers callbacks to one handler, in order, on its own goroutine.
// Pushing never blocks so the engine can emit while holding its lock and the
// handler can call back into the engine.
type queue struct {
	h gateway.Handler

	mu     sync.Mutex
	items  []func(gateway.Handler)
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newQueue(h gateway.Handler) *queue {
	q := &queue{h: h, wake: make(chan struct{}, 1), done: make(chan struct{})}
	go q.run()
	return q
}

func (q *queue) push(fn func(gateway.Handler)) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, fn)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) run() {
	defer close(q.done)
	for range q.wake {
		for {
			q.mu.Lock()
			batch := q.items
			q.items = nil
			closed := q.closed
			q.mu.Unlock()

			for _, fn := range batch {
				fn(q.h)
			}
			if len(batch) == 0 {
				if closed {
					return
				}
				break
			}
		}
	}
}

// close delivers what is queued and stops the goroutine.
func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.done
}
