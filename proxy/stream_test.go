package proxy_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/skinsch/dbproxy/channel"
	"github.com/skinsch/dbproxy/driver/memory/memorychannel"
	"github.com/skinsch/dbproxy/proxy"
	"github.com/skinsch/dbproxy/store"
)

// owner is a hand-driven peer endpoint, used to script exact frame sequences
// that a well-behaved responder would never produce.
type owner struct {
	t       *testing.T
	channel channel.Channel
	key     string
}

func newOwner(t *testing.T, schema string) (*owner, channel.Channel) {
	worker, peer := memorychannel.New()

	return &owner{
		t:       t,
		channel: peer,
		key:     channel.StreamKey(schema),
	}, worker
}

// awaitRequest blocks until a streamed request arrives.
func (o *owner) awaitRequest(ctx context.Context) store.Request {
	payload, err := o.channel.Read(ctx, o.key)
	if err != nil {
		o.t.Error(err)
		return store.Request{}
	}

	var req store.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		o.t.Error(err)
	}

	return req
}

// sendJSON sends an arbitrary payload on the stream key.
func (o *owner) sendJSON(ctx context.Context, m any) {
	payload, err := json.Marshal(m)
	if err != nil {
		o.t.Error(err)
		return
	}

	if err := o.channel.Send(ctx, o.key, payload); err != nil {
		o.t.Error(err)
	}
}

func (o *owner) sendStart(ctx context.Context) {
	o.sendJSON(ctx, map[string]any{"kind": "start"})
}

func (o *owner) sendElement(ctx context.Context, k, v string) {
	o.sendJSON(ctx, map[string]any{
		"kind": "element",
		"pair": store.Pair{Key: []byte(k), Value: []byte(v)},
	})
}

func (o *owner) sendEnd(ctx context.Context) {
	o.sendJSON(ctx, map[string]any{"kind": "end"})
}

func TestProxied_protocolViolation(t *testing.T) {
	t.Parallel()

	t.Run("it panics when the first frame is not a start frame", func(t *testing.T) {
		t.Parallel()

		o, worker := newOwner(t, "<schema>")
		p := proxy.NewProxied("<schema>", worker)

		// Answer the streamed request the way the responder answers a
		// non-streaming operation on the stream key: with a scalar envelope
		// instead of a frame sequence.
		go func() {
			ctx := context.Background()
			o.awaitRequest(ctx)
			o.sendJSON(ctx, map[string]any{"result": map[string]any{}})
		}()

		defer func() {
			v := recover()

			if _, ok := v.(proxy.ProtocolError); !ok {
				t.Fatalf("expected a ProtocolError panic, got %v", v)
			}
		}()

		p.Range(
			t.Context(),
			func(context.Context, store.Pair) (bool, error) {
				return true, nil
			},
		)
	})

	t.Run("it panics when a stream restarts mid-flight", func(t *testing.T) {
		t.Parallel()

		o, worker := newOwner(t, "<schema>")
		p := proxy.NewProxied("<schema>", worker)

		go func() {
			ctx := context.Background()
			o.awaitRequest(ctx)
			o.sendStart(ctx)
			o.sendStart(ctx)
		}()

		defer func() {
			v := recover()

			if _, ok := v.(proxy.ProtocolError); !ok {
				t.Fatalf("expected a ProtocolError panic, got %v", v)
			}
		}()

		p.Range(
			t.Context(),
			func(context.Context, store.Pair) (bool, error) {
				return true, nil
			},
		)
	})
}

func TestProxied_flushAfterEnd(t *testing.T) {
	t.Parallel()

	o, worker := newOwner(t, "<schema>")
	p := proxy.NewProxied("<schema>", worker)

	// The owner enqueues the entire stream plus a trailing stale frame, then
	// signals. The iteration callback waits for the signal before consuming,
	// so the stale frame is guaranteed to be queued when the proxy reads the
	// end frame.
	staged := make(chan struct{})

	go func() {
		ctx := context.Background()
		o.awaitRequest(ctx)
		o.sendStart(ctx)
		o.sendElement(ctx, "<key>", "<value>")
		o.sendEnd(ctx)
		o.sendElement(ctx, "<stale-key>", "<stale-value>")
		close(staged)
	}()

	if err := p.Range(
		t.Context(),
		func(context.Context, store.Pair) (bool, error) {
			<-staged
			return true, nil
		},
	); err != nil {
		t.Fatal(err)
	}

	// The flush that follows the end frame must have discarded the stale
	// frame, leaving the stream key clean.
	ctx, cancel := context.WithTimeout(t.Context(), 20*time.Millisecond)
	defer cancel()

	if payload, err := worker.Read(ctx, channel.StreamKey("<schema>")); err == nil {
		t.Fatalf("stream key not clean after end frame: read %q", string(payload))
	}
}

func TestProxied_abandonedStreamRecovery(t *testing.T) {
	t.Parallel()

	o, worker := newOwner(t, "<schema>")
	p := proxy.NewProxied("<schema>", worker)

	// The owner answers two consecutive requests with the same three-element
	// stream, signalling after each full response is queued.
	staged := make(chan struct{}, 2)

	go func() {
		ctx := context.Background()

		for n := 0; n < 2; n++ {
			o.awaitRequest(ctx)
			o.sendStart(ctx)
			for _, k := range []string{"a", "b", "c"} {
				o.sendElement(ctx, k, "value-"+k)
			}
			o.sendEnd(ctx)

			staged <- struct{}{}
		}
	}()

	// Abandon the first stream after one element, leaving its residue on the
	// key.
	if err := p.Range(
		t.Context(),
		func(context.Context, store.Pair) (bool, error) {
			<-staged
			return false, nil
		},
	); err != nil {
		t.Fatal(err)
	}

	// The next stream must flush the residue before it begins, and observe
	// only its own frames.
	var keys []string
	if err := p.Range(
		t.Context(),
		func(_ context.Context, pr store.Pair) (bool, error) {
			keys = append(keys, string(pr.Key))
			return true, nil
		},
	); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"a", "b", "c"}, keys); diff != "" {
		t.Fatal(diff)
	}
}

func TestProxied_keysAreDisjoint(t *testing.T) {
	t.Parallel()

	p := setupProxied(t)

	seed := func(n int) error {
		for i := 0; i < n; i++ {
			k := []byte(fmt.Sprintf("<key-%d>", i))
			if err := p.Set(t.Context(), k, []byte("<value>")); err != nil {
				return err
			}
		}
		return nil
	}

	if err := seed(10); err != nil {
		t.Fatal(err)
	}

	// Scalar and streamed traffic for the same schema run concurrently on
	// their disjoint keys without cross-delivery.
	errs := make(chan error, 2)

	go func() {
		for i := 0; i < 50; i++ {
			if _, err := p.Len(t.Context()); err != nil {
				errs <- err
				return
			}
		}
		errs <- nil
	}()

	go func() {
		for i := 0; i < 20; i++ {
			count := 0
			if err := p.Range(
				t.Context(),
				func(context.Context, store.Pair) (bool, error) {
					count++
					return true, nil
				},
			); err != nil {
				errs <- err
				return
			}
			if count != 10 {
				errs <- fmt.Errorf("stream yielded %d of 10 pairs", count)
				return
			}
		}
		errs <- nil
	}()

	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}
}
