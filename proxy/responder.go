package proxy

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/skinsch/dbproxy/channel"
	"github.com/skinsch/dbproxy/store"
)

// Responder answers proxied requests for one schema on behalf of the context
// that owns the store.
//
// It is the counterpart of a proxy constructed with [NewProxied]: it serves
// the scalar and stream event keys for its schema until its context is
// cancelled or the channel fails.
type Responder struct {
	// Schema is the schema whose event keys the responder serves.
	Schema string

	// Store is the store that requests are dispatched against.
	Store store.Store

	// Channel is the responder's endpoint of the session channel.
	Channel channel.Channel
}

// Run serves requests until ctx is cancelled or an error occurs.
func (r *Responder) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)

	go func() {
		errs <- r.serveScalar(ctx)
	}()
	go func() {
		errs <- r.serveStream(ctx)
	}()

	err := <-errs
	cancel()
	<-errs

	return err
}

// serveScalar answers non-streaming requests on the schema's scalar key.
func (r *Responder) serveScalar(ctx context.Context) error {
	key := channel.ScalarKey(r.Schema)

	for {
		req, err := r.readRequest(ctx, key)
		if err != nil {
			return err
		}

		res, opErr := r.dispatch(ctx, req)

		if err := r.send(ctx, key, newResponse(res, opErr)); err != nil {
			return err
		}
	}
}

// serveStream answers streaming requests on the schema's stream key.
//
// A non-streaming operation requested on the stream key is answered with its
// scalar envelope rather than a frame sequence; the requesting side detects
// the violation when the first payload is not a start frame.
func (r *Responder) serveStream(ctx context.Context) error {
	key := channel.StreamKey(r.Schema)

	for {
		req, err := r.readRequest(ctx, key)
		if err != nil {
			return err
		}

		if !req.Op.Streaming() {
			res, opErr := r.dispatch(ctx, req)

			if err := r.send(ctx, key, newResponse(res, opErr)); err != nil {
				return err
			}

			continue
		}

		if err := r.streamResponse(ctx, key, req); err != nil {
			return err
		}
	}
}

// streamResponse answers one streaming request with a start frame, one
// element frame per pair, and an end frame.
func (r *Responder) streamResponse(ctx context.Context, key string, req store.Request) error {
	if err := r.send(ctx, key, frame{Kind: frameStart}); err != nil {
		return err
	}

	opErr := func() error {
		t, err := r.Store.Open(ctx, r.Schema, req.Table)
		if err != nil {
			return err
		}
		defer t.Close()

		return store.DispatchStream(
			ctx,
			t,
			req,
			func(ctx context.Context, p store.Pair) (bool, error) {
				return true, r.send(ctx, key, frame{Kind: frameElement, Pair: &p})
			},
		)
	}()

	end := frame{Kind: frameEnd}
	if opErr != nil {
		end.Err = opErr.Error()
	}

	return r.send(ctx, key, end)
}

// dispatch executes one non-streaming operation, opening and closing a table
// handle around the call.
func (r *Responder) dispatch(ctx context.Context, req store.Request) (store.Result, error) {
	if !req.Op.Valid() || req.Op.Streaming() {
		return store.Result{}, fmt.Errorf("operation %q cannot be dispatched as a scalar call", req.Op)
	}

	t, err := r.Store.Open(ctx, r.Schema, req.Table)
	if err != nil {
		return store.Result{}, err
	}
	defer t.Close()

	return store.Dispatch(ctx, t, req)
}

func (r *Responder) readRequest(ctx context.Context, key string) (store.Request, error) {
	payload, err := r.Channel.Read(ctx, key)
	if err != nil {
		return store.Request{}, err
	}

	var req store.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return store.Request{}, fmt.Errorf("malformed request on %q: %w", key, err)
	}

	return req, nil
}

func (r *Responder) send(ctx context.Context, key string, m any) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}

	return r.Channel.Send(ctx, key, payload)
}
