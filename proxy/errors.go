package proxy

import "fmt"

// ProtocolError indicates that the peer on the session channel violated the
// stream framing protocol, such as answering a streamed request with
// something other than a start frame.
//
// It is used as a panic value, not an error return: a peer that does not
// speak the protocol leaves the channel in an unknowable state, and no caller
// can meaningfully recover.
type ProtocolError struct {
	// Key is the event key on which the violation occurred.
	Key string

	// Message describes the violation.
	Message string
}

func (e ProtocolError) Error() string {
	return fmt.Sprintf("protocol violation on %q: %s", e.Key, e.Message)
}
