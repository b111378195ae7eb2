package bridge

import "errors"

var (
	// ErrStreamTerminated wraps a backend failure that ended a relaying session.
	ErrStreamTerminated = errors.New("backend stream terminated")

	// ErrDownstreamAborted marks a session ended by the client going away.
	ErrDownstreamAborted = errors.New("downstream client aborted")

	// ErrEncodingFailure wraps a message that could not be framed.
	ErrEncodingFailure = errors.New("message encoding failed")

	// ErrStreamingUnsupported is reported when the response cannot be flushed.
	ErrStreamingUnsupported = errors.New("response writer does not support streaming")
)
