// Package bridge relays a backend analytics stream to a browser as a
// text/event-stream response, tying the two lifecycles together.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/avika-ai/avika-bff/bff/internal/analytics"
	"github.com/avika-ai/avika-bff/common/httputil"
	"github.com/avika-ai/avika-bff/common/logging"
	"github.com/avika-ai/avika-bff/common/middleware"
)

// Bridge serves analytics stream sessions.
type Bridge struct {
	opener      Opener
	logger      *logging.Logger
	observers   Observers
	maxDuration time.Duration
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithObserver registers lifecycle observers.
func WithObserver(o ...Observer) Option {
	return func(b *Bridge) { b.observers = append(b.observers, o...) }
}

// WithMaxDuration caps how long one session may relay. Zero means no cap.
func WithMaxDuration(d time.Duration) Option {
	return func(b *Bridge) { b.maxDuration = d }
}

// New returns a Bridge that opens streams through opener.
func New(opener Opener, logger *logging.Logger, opts ...Option) *Bridge {
	if logger == nil {
		logger = logging.Default()
	}
	b := &Bridge{
		opener: opener,
		logger: logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

type session struct {
	Summary
	stream Stream
	once   sync.Once
}

// cancel releases the backend call exactly once.
func (s *session) cancel() {
	s.once.Do(func() {
		if s.stream != nil {
			s.stream.Cancel()
		}
	})
}

// Serve runs one session for f on w and blocks until it ends.
//
// Failures before the first byte produce a JSON error response: 400 for an
// invalid filter and 500 otherwise. Once relaying, failures only end the
// stream. Client disconnect cancels the backend call; backend completion
// ends the response.
func (b *Bridge) Serve(w http.ResponseWriter, r *http.Request, f analytics.Filter, user string) (sum Summary) {
	reqCtx := r.Context()
	s := &session{Summary: Summary{
		SessionID: uuid.NewString(),
		RequestID: middleware.GetRequestID(reqCtx),
		User:      user,
		Filter:    f,
		StartedAt: time.Now(),
		State:     StateOpening,
	}}
	log := b.logger.WithContext(reqCtx).With(
		logging.SessionID(s.SessionID),
		logging.Filter(f.String()),
	)
	obsCtx := context.WithoutCancel(reqCtx)

	defer func() {
		s.Duration = time.Since(s.StartedAt)
		sum = s.Summary
		b.observers.StreamClosed(obsCtx, sum)
		b.logClosed(log, &s.Summary)
	}()

	if !canFlush(w) {
		s.fail(ErrStreamingUnsupported)
		httputil.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return s.Summary
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if b.maxDuration > 0 {
		ctx, cancel = context.WithTimeout(reqCtx, b.maxDuration)
	} else {
		ctx, cancel = context.WithCancel(reqCtx)
	}
	defer cancel()

	stream, err := b.opener.Open(ctx, f)
	if err != nil {
		s.fail(err)
		if reqCtx.Err() != nil {
			s.Outcome = OutcomeClientAborted
			return s.Summary
		}
		if errors.Is(err, analytics.ErrInvalidFilter) {
			httputil.WriteError(w, http.StatusBadRequest, err.Error())
		} else {
			httputil.WriteError(w, http.StatusInternalServerError, "failed to open analytics stream")
		}
		return s.Summary
	}
	s.stream = stream
	defer s.cancel()

	var aborted atomic.Bool
	stop := context.AfterFunc(ctx, func() {
		aborted.Store(true)
		s.cancel()
	})
	defer stop()

	rc := http.NewResponseController(w)
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	// Stream responses outlive the server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		log.Debug("clear write deadline", logging.Error(err))
	}
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		b.abort(ctx, reqCtx, s, err)
		return s.Summary
	}

	s.State = StateRelaying
	s.Opened = true
	b.observers.StreamOpened(obsCtx, s.Summary)
	log.Debug("analytics stream relaying")

	b.relay(ctx, reqCtx, w, rc, s, &aborted, log)
	return s.Summary
}

func (b *Bridge) relay(ctx, reqCtx context.Context, w http.ResponseWriter, rc *http.ResponseController, s *session, aborted *atomic.Bool, log *logging.Logger) {
	for {
		msg, err := s.stream.Next()
		if aborted.Load() || ctx.Err() != nil {
			b.abort(ctx, reqCtx, s, nil)
			return
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.end(OutcomeCompleted, nil)
			} else {
				s.end(OutcomeBackendError, fmt.Errorf("%w: %w", ErrStreamTerminated, err))
			}
			return
		}

		frame, err := EncodeFrame(msg)
		if err != nil {
			s.Skipped++
			log.Warn("skipping analytics message", logging.Error(err))
			continue
		}

		if _, err := w.Write(frame); err != nil {
			b.abort(ctx, reqCtx, s, err)
			return
		}
		if err := rc.Flush(); err != nil {
			b.abort(ctx, reqCtx, s, err)
			return
		}
		s.Frames++
	}
}

// abort ends a session whose downstream side stopped, telling the session
// deadline apart from a client disconnect.
func (b *Bridge) abort(ctx, reqCtx context.Context, s *session, cause error) {
	if reqCtx.Err() == nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		s.end(OutcomeMaxDuration, fmt.Errorf("session exceeded max duration %s", b.maxDuration))
		return
	}
	if cause == nil {
		s.end(OutcomeClientAborted, ErrDownstreamAborted)
		return
	}
	s.end(OutcomeClientAborted, fmt.Errorf("%w: %w", ErrDownstreamAborted, cause))
}

func (s *session) fail(err error) {
	s.State = StateFailed
	s.Outcome = OutcomeOpenFailed
	s.Err = err
}

func (s *session) end(o Outcome, err error) {
	s.cancel()
	s.State = StateClosed
	s.Outcome = o
	s.Err = err
}

func (b *Bridge) logClosed(log *logging.Logger, s *Summary) {
	attrs := []any{
		logging.Outcome(string(s.Outcome)),
		logging.Frames(s.Frames),
		logging.Skipped(s.Skipped),
		logging.Duration(s.Duration),
	}
	if s.Err != nil {
		attrs = append(attrs, logging.Error(s.Err))
	}

	level := slog.LevelInfo
	switch s.Outcome {
	case OutcomeBackendError, OutcomeOpenFailed:
		level = slog.LevelWarn
	case OutcomeClientAborted:
		level = slog.LevelDebug
	}
	log.Log(context.Background(), level, "analytics stream closed", attrs...)
}

// canFlush reports whether w, or a writer it wraps, can flush.
func canFlush(w http.ResponseWriter) bool {
	for {
		switch t := w.(type) {
		case http.Flusher:
			return true
		case interface{ FlushError() error }:
			return true
		case interface{ Unwrap() http.ResponseWriter }:
			w = t.Unwrap()
		default:
			return false
		}
	}
}
