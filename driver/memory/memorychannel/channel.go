// Package memorychannel provides an in-process [channel.Channel]
// implementation.
//
// New returns a connected pair of endpoints, typically one handed to the
// proxied side and one to the responder within the same process or test.
package memorychannel

import (
	"context"
	"slices"
	"sync"
)

// New returns a connected pair of channel endpoints.
//
// Payloads sent on one endpoint are read from the other, and vice versa. Both
// endpoints are safe for concurrent use.
func New() (a, b *Endpoint) {
	a = &Endpoint{}
	b = &Endpoint{}
	a.peer = b
	b.peer = a
	return a, b
}

// Endpoint is one half of a connected in-process channel pair.
//
// Each endpoint owns the queues it reads from; Send enqueues onto the peer's
// queues.
type Endpoint struct {
	peer *Endpoint

	m      sync.Mutex
	queues map[string]*queue
}

// Send delivers a payload to the peer endpoint under the given event key.
func (e *Endpoint) Send(ctx context.Context, key string, payload []byte) error {
	e.peer.queue(key).push(slices.Clone(payload))
	return ctx.Err()
}

// Read blocks until a payload arrives on the given event key, then returns
// it.
func (e *Endpoint) Read(ctx context.Context, key string) ([]byte, error) {
	return e.queue(key).pop(ctx)
}

// Flush discards any payloads pending on the given event key without reading
// them.
func (e *Endpoint) Flush(ctx context.Context, key string) error {
	e.queue(key).flush()
	return ctx.Err()
}

func (e *Endpoint) queue(key string) *queue {
	e.m.Lock()
	defer e.m.Unlock()

	q, ok := e.queues[key]
	if !ok {
		q = &queue{
			wake: make(chan struct{}, 1),
		}
		if e.queues == nil {
			e.queues = map[string]*queue{}
		}
		e.queues[key] = q
	}

	return q
}

// queue is a FIFO of payloads on a single event key.
type queue struct {
	m     sync.Mutex
	items [][]byte
	wake  chan struct{}
}

func (q *queue) push(p []byte) {
	q.m.Lock()
	q.items = append(q.items, p)
	q.m.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) pop(ctx context.Context) ([]byte, error) {
	for {
		q.m.Lock()
		if len(q.items) != 0 {
			p := q.items[0]
			q.items = q.items[1:]
			q.m.Unlock()
			return p, nil
		}
		q.m.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
			continue
		}
	}
}

func (q *queue) flush() {
	q.m.Lock()
	q.items = nil
	q.m.Unlock()
}
