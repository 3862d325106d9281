package proxy

import (
	"errors"

	"github.com/skinsch/dbproxy/store"
)

// response is the envelope that answers a non-streaming request.
//
// Not-found conditions are carried structurally rather than as text so that
// [store.NotFoundError] is type-checkable on both sides of the channel.
type response struct {
	Result   store.Result   `json:"result"`
	Err      string         `json:"err,omitempty"`
	NotFound *notFoundError `json:"notFound,omitempty"`
}

type notFoundError struct {
	Table string `json:"table"`
	Key   []byte `json:"key,omitempty"`
}

// newResponse builds the envelope for the outcome of a dispatched request.
func newResponse(res store.Result, err error) response {
	r := response{Result: res}

	if err == nil {
		return r
	}

	var nf store.NotFoundError
	if errors.As(err, &nf) {
		r.NotFound = &notFoundError{
			Table: nf.Table,
			Key:   nf.Key,
		}
		return r
	}

	r.Err = err.Error()

	return r
}

// error reconstructs the error, if any, that the envelope carries.
func (r response) error() error {
	if r.NotFound != nil {
		return store.NotFoundError{
			Table: r.NotFound.Table,
			Key:   r.NotFound.Key,
		}
	}

	if r.Err != "" {
		return errors.New(r.Err)
	}

	return nil
}

// frameKind discriminates the three cases of a stream frame.
type frameKind string

const (
	// frameStart opens a stream. It is always the first frame of a
	// well-formed streamed response.
	frameStart frameKind = "start"

	// frameElement carries one key/value pair of the stream.
	frameElement frameKind = "element"

	// frameEnd closes a stream. It carries any error that interrupted
	// iteration on the owning side.
	frameEnd frameKind = "end"
)

// frame is the envelope for one payload of a streamed response.
type frame struct {
	Kind frameKind   `json:"kind"`
	Pair *store.Pair `json:"pair,omitempty"`
	Err  string      `json:"err,omitempty"`
}
