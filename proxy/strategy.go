package proxy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skinsch/dbproxy/channel"
	"github.com/skinsch/dbproxy/store"
)

// executor is one of the proxy's two execution strategies.
//
// The strategy is an explicit variant fixed at construction, never inferred
// from the presence or absence of a collaborator.
type executor interface {
	do(ctx context.Context, req store.Request) (store.Result, error)
	stream(
		ctx context.Context,
		req store.Request,
		emit func(ctx context.Context, pr store.Pair) (bool, error),
	) error
}

// direct executes operations against the store itself, opening a table handle
// around each call.
type direct struct {
	schema string
	store  store.Store
}

func (d *direct) do(ctx context.Context, req store.Request) (store.Result, error) {
	t, err := d.store.Open(ctx, d.schema, req.Table)
	if err != nil {
		return store.Result{}, err
	}
	defer t.Close()

	return store.Dispatch(ctx, t, req)
}

func (d *direct) stream(
	ctx context.Context,
	req store.Request,
	emit func(ctx context.Context, pr store.Pair) (bool, error),
) error {
	t, err := d.store.Open(ctx, d.schema, req.Table)
	if err != nil {
		return err
	}
	defer t.Close()

	return store.DispatchStream(ctx, t, req, emit)
}

// proxied executes operations by exchanging messages with the store's owning
// context over a session channel.
type proxied struct {
	schema  string
	channel channel.Channel
}

func (x *proxied) do(ctx context.Context, req store.Request) (store.Result, error) {
	key := channel.ScalarKey(x.schema)

	payload, err := json.Marshal(req)
	if err != nil {
		return store.Result{}, err
	}

	if err := x.channel.Send(ctx, key, payload); err != nil {
		return store.Result{}, err
	}

	reply, err := x.channel.Read(ctx, key)
	if err != nil {
		return store.Result{}, err
	}

	var res response
	if err := json.Unmarshal(reply, &res); err != nil {
		panic(ProtocolError{
			Key:     key,
			Message: fmt.Sprintf("malformed response: %s", err),
		})
	}

	return res.Result, res.error()
}

func (x *proxied) stream(
	ctx context.Context,
	req store.Request,
	emit func(ctx context.Context, pr store.Pair) (bool, error),
) error {
	key := channel.StreamKey(x.schema)

	// Discard anything a previous, aborted stream may have left on the key.
	if err := x.channel.Flush(ctx, key); err != nil {
		return err
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}

	if err := x.channel.Send(ctx, key, payload); err != nil {
		return err
	}

	f, err := x.readFrame(ctx, key)
	if err != nil {
		return err
	}

	if f.Kind != frameStart {
		panic(ProtocolError{
			Key:     key,
			Message: fmt.Sprintf("expected start frame, got %q", f.Kind),
		})
	}

	for {
		f, err := x.readFrame(ctx, key)
		if err != nil {
			return err
		}

		switch f.Kind {
		case frameElement:
			if f.Pair == nil {
				panic(ProtocolError{
					Key:     key,
					Message: "element frame has no pair",
				})
			}

			ok, err := emit(ctx, *f.Pair)
			if !ok || err != nil {
				// Abandon the stream without flushing; the next streamed
				// request on this key flushes before it sends.
				return err
			}

		case frameEnd:
			if err := x.channel.Flush(ctx, key); err != nil {
				return err
			}

			if f.Err != "" {
				return fmt.Errorf("stream failed: %s", f.Err)
			}

			return nil

		default:
			panic(ProtocolError{
				Key:     key,
				Message: fmt.Sprintf("unexpected %q frame", f.Kind),
			})
		}
	}
}

func (x *proxied) readFrame(ctx context.Context, key string) (frame, error) {
	payload, err := x.channel.Read(ctx, key)
	if err != nil {
		return frame{}, err
	}

	var f frame
	if err := json.Unmarshal(payload, &f); err != nil {
		panic(ProtocolError{
			Key:     key,
			Message: fmt.Sprintf("malformed frame: %s", err),
		})
	}

	return f, nil
}
