package analytics

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Stream is an open StreamAnalytics call.
//
// Next must be called from a single goroutine. Cancel may be called from
// any goroutine, any number of times, including while Next is blocked.
type Stream struct {
	cs     grpc.ClientStream
	cancel func()
	once   sync.Once

	pending    *structpb.Struct
	pendingEOF bool

	// header is set when Open stopped waiting for response headers.
	header <-chan headerResult
}

// Next blocks until the backend emits a message, finishes or fails.
// A normal end returns io.EOF. After a terminal result the call is
// released and further calls return the same kind of terminal result.
func (s *Stream) Next() (*structpb.Struct, error) {
	if s.header != nil {
		// Drained before RecvMsg so the two never run concurrently. A
		// header error is reported again by RecvMsg.
		<-s.header
		s.header = nil
	}
	if s.pending != nil {
		msg := s.pending
		s.pending = nil
		return msg, nil
	}
	if s.pendingEOF {
		s.Cancel()
		return nil, io.EOF
	}

	msg := new(structpb.Struct)
	if err := s.cs.RecvMsg(msg); err != nil {
		s.Cancel()
		if errors.Is(err, io.EOF) {
			s.pendingEOF = true
			return nil, io.EOF
		}
		return nil, fmt.Errorf("receive analytics message: %w", err)
	}
	return msg, nil
}

// Cancel aborts the backend call. It is idempotent.
func (s *Stream) Cancel() {
	s.once.Do(s.cancel)
}
