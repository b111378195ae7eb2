package bridge

import (
	"context"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/avika-ai/avika-bff/bff/internal/analytics"
)

// Stream is the pull side of one backend streaming call.
type Stream interface {
	// Next blocks for the next message; io.EOF marks a normal end.
	Next() (*structpb.Struct, error)
	// Cancel aborts the call. Safe to call concurrently with Next.
	Cancel()
}

// Opener starts a Stream for a filter.
type Opener interface {
	Open(ctx context.Context, f analytics.Filter) (Stream, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, f analytics.Filter) (Stream, error)

// Open calls fn.
func (fn OpenerFunc) Open(ctx context.Context, f analytics.Filter) (Stream, error) {
	return fn(ctx, f)
}

// AnalyticsOpener serves streams from an analytics client.
func AnalyticsOpener(c *analytics.Client) Opener {
	return OpenerFunc(func(ctx context.Context, f analytics.Filter) (Stream, error) {
		s, err := c.Open(ctx, f)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}
