// Package analytics opens the backend's StreamAnalytics server-streaming
// call and exposes it as a pull-based Stream.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// StreamAnalyticsMethod is the full gRPC method name of the analytics stream.
const StreamAnalyticsMethod = "/agent.AgentService/StreamAnalytics"

var streamAnalyticsDesc = &grpc.StreamDesc{
	StreamName:    "StreamAnalytics",
	ServerStreams: true,
}

// Client opens analytics streams over a shared gRPC connection.
type Client struct {
	conn        grpc.ClientConnInterface
	openTimeout time.Duration
	callOpts    []grpc.CallOption
}

// Option configures a Client.
type Option func(*Client)

// WithOpenTimeout bounds how long Open waits for the backend. Connecting
// and sending the request must finish within d or Open fails. Once the
// request is sent, Open waits at most the rest of d for response headers
// and then returns the stream anyway; the first Next call waits for the
// backend's first message or status. Zero waits for as long as ctx allows.
func WithOpenTimeout(d time.Duration) Option {
	return func(c *Client) { c.openTimeout = d }
}

// WithCallOptions appends gRPC call options to every stream.
func WithCallOptions(opts ...grpc.CallOption) Option {
	return func(c *Client) { c.callOpts = append(c.callOpts, opts...) }
}

// NewClient returns a Client using conn.
func NewClient(conn grpc.ClientConnInterface, opts ...Option) *Client {
	c := &Client{conn: conn}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open validates f and starts one StreamAnalytics call bound to ctx.
// The returned Stream owns the call; it ends when ctx is done, when Cancel
// is called, or when the backend finishes.
//
// Open returns ErrInvalidFilter without contacting the backend, and
// ErrBackendUnavailable when the call cannot be established.
func (c *Client) Open(ctx context.Context, f Filter) (*Stream, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	s, err := c.open(ctx, cancel, f)
	if err != nil {
		cancel()
		return nil, err
	}
	return s, nil
}

func (c *Client) open(ctx context.Context, cancel context.CancelFunc, f Filter) (*Stream, error) {
	var deadline time.Time
	var timer *time.Timer
	if c.openTimeout > 0 {
		deadline = time.Now().Add(c.openTimeout)
		timer = time.AfterFunc(c.openTimeout, cancel)
	}

	cs, err := c.start(ctx, f)
	if timer != nil && !timer.Stop() {
		return nil, fmt.Errorf("%w: open timed out after %s", ErrBackendUnavailable, c.openTimeout)
	}
	if err != nil {
		return nil, err
	}

	s := &Stream{cs: cs, cancel: cancel}

	// Servers send headers with their first message, so a slow first
	// sample must not fail the call. Past the deadline the header wait
	// moves into the first Next.
	header := make(chan headerResult, 1)
	go func() {
		md, err := cs.Header()
		header <- headerResult{md: md, err: err}
	}()

	var expired <-chan time.Time
	if timer != nil {
		wait := time.NewTimer(time.Until(deadline))
		defer wait.Stop()
		expired = wait.C
	}

	select {
	case h := <-header:
		if err := s.settle(h); err != nil {
			return nil, err
		}
	case <-expired:
		s.header = header
	}
	return s, nil
}

// start issues the call and sends the request.
func (c *Client) start(ctx context.Context, f Filter) (grpc.ClientStream, error) {
	cs, err := c.conn.NewStream(ctx, streamAnalyticsDesc, StreamAnalyticsMethod, c.callOpts...)
	if err != nil {
		return nil, unavailable(err)
	}

	// SendMsg reports io.EOF when the server already ended the call; the
	// real status surfaces from RecvMsg.
	if err := cs.SendMsg(f.Request()); err != nil && !errors.Is(err, io.EOF) {
		return nil, unavailable(err)
	}
	if err := cs.CloseSend(); err != nil {
		return nil, unavailable(err)
	}
	return cs, nil
}

type headerResult struct {
	md  metadata.MD
	err error
}

// settle applies the header outcome observed during Open.
func (s *Stream) settle(h headerResult) error {
	if h.err != nil {
		return unavailable(h.err)
	}
	if h.md != nil {
		return nil
	}
	// The call terminated without headers. RecvMsg yields its status.
	msg := new(structpb.Struct)
	switch err := s.cs.RecvMsg(msg); {
	case errors.Is(err, io.EOF):
		s.pendingEOF = true
	case err != nil:
		return unavailable(err)
	default:
		s.pending = msg
	}
	return nil
}

func unavailable(err error) error {
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return fmt.Errorf("%w: %s: %s", ErrBackendUnavailable, st.Code(), st.Message())
	}
	return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
}
