// Package channel defines the event channel that carries proxy requests and
// responses between a worker context and the context that owns a store.
//
// A Channel value is one endpoint of a duplex link: payloads sent on an event
// key by one endpoint are read, in order, from the same key by the peer
// endpoint. Delivery guarantees beyond per-key FIFO ordering are the
// transport's concern, not this package's.
package channel

import "context"

// A Channel is one endpoint of a duplex, event-keyed message link.
type Channel interface {
	// Send enqueues a payload on the given event key for the peer endpoint.
	Send(ctx context.Context, key string, payload []byte) error

	// Read blocks until a payload is available on the given event key and
	// returns it.
	//
	// There is no timeout: a peer that never sends blocks the caller until
	// ctx is cancelled.
	Read(ctx context.Context, key string) ([]byte, error)

	// Flush discards any payloads queued for this endpoint on the given
	// event key without processing them.
	Flush(ctx context.Context, key string) error
}

// ScalarKey returns the event key that carries single-response exchanges for
// the given schema.
func ScalarKey(schema string) string {
	return "db-" + schema
}

// StreamKey returns the event key that carries streamed exchanges for the
// given schema.
//
// It is distinct from [ScalarKey] for the same schema so that scalar and
// streaming traffic never collide.
func StreamKey(schema string) string {
	return "db=" + schema
}
