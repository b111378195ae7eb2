package bridge

import (
	"context"
	"time"

	"github.com/avika-ai/avika-bff/bff/internal/analytics"
)

// State is a stream session's lifecycle position.
type State int

const (
	StateOpening State = iota
	StateRelaying
	StateFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateRelaying:
		return "relaying"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Outcome records why a session ended.
type Outcome string

const (
	OutcomeCompleted     Outcome = "completed"
	OutcomeBackendError  Outcome = "backend_error"
	OutcomeClientAborted Outcome = "client_aborted"
	OutcomeMaxDuration   Outcome = "max_duration"
	OutcomeOpenFailed    Outcome = "open_failed"
)

// Summary describes one session. Observers receive it when the session
// starts relaying and again, complete, when it ends.
type Summary struct {
	SessionID string
	RequestID string
	User      string
	Filter    analytics.Filter
	StartedAt time.Time
	Duration  time.Duration
	Frames    int
	Skipped   int
	Opened    bool
	State     State
	Outcome   Outcome
	Err       error
}

// Observer is notified of session lifecycle events. Calls happen on the
// session goroutine with a context that outlives the request.
type Observer interface {
	StreamOpened(ctx context.Context, s Summary)
	StreamClosed(ctx context.Context, s Summary)
}

// Observers fans events out to each member in order.
type Observers []Observer

func (o Observers) StreamOpened(ctx context.Context, s Summary) {
	for _, obs := range o {
		obs.StreamOpened(ctx, s)
	}
}

func (o Observers) StreamClosed(ctx context.Context, s Summary) {
	for _, obs := range o {
		obs.StreamClosed(ctx, s)
	}
}
