// Package events announces analytics stream lifecycle changes on the
// message bus.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/avika-ai/avika-bff/bff/internal/bridge"
	"github.com/avika-ai/avika-bff/bff/internal/metrics"
	"github.com/avika-ai/avika-bff/common/logging"
	"github.com/avika-ai/avika-bff/common/messaging"
	"github.com/avika-ai/avika-bff/common/signing"
)

// StreamEvent is the JSON body of a lifecycle message.
type StreamEvent struct {
	SessionID  string    `json:"session_id"`
	User       string    `json:"user,omitempty"`
	Scope      string    `json:"scope"`
	ScopeID    string    `json:"scope_id,omitempty"`
	Window     string    `json:"window"`
	State      string    `json:"state"`
	Outcome    string    `json:"outcome,omitempty"`
	Frames     int       `json:"frames"`
	Skipped    int       `json:"skipped"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

func newStreamEvent(s bridge.Summary) StreamEvent {
	ev := StreamEvent{
		SessionID:  s.SessionID,
		User:       s.User,
		Scope:      s.Filter.Scope.String(),
		ScopeID:    s.Filter.ID,
		Window:     s.Filter.Window,
		State:      s.State.String(),
		Outcome:    string(s.Outcome),
		Frames:     s.Frames,
		Skipped:    s.Skipped,
		DurationMS: s.Duration.Milliseconds(),
		StartedAt:  s.StartedAt.UTC(),
	}
	if s.Err != nil {
		ev.Error = s.Err.Error()
	}
	return ev
}

// Publisher is a bridge.Observer that publishes lifecycle events.
// Publishing is best effort; failures are logged and counted.
type Publisher struct {
	pub    messaging.Publisher
	logger *logging.Logger
	signer *signing.Signer
	now    func() time.Time
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithSigner signs every message with s.
func WithSigner(s *signing.Signer) Option {
	return func(p *Publisher) { p.signer = s }
}

// NewPublisher returns a Publisher sending through pub.
func NewPublisher(pub messaging.Publisher, logger *logging.Logger, opts ...Option) *Publisher {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Publisher{pub: pub, logger: logger, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Publisher) StreamOpened(ctx context.Context, s bridge.Summary) {
	p.publish(ctx, messaging.SubjectStreamsOpened, s)
}

func (p *Publisher) StreamClosed(ctx context.Context, s bridge.Summary) {
	p.publish(ctx, messaging.SubjectStreamsClosed, s)
}

func (p *Publisher) publish(ctx context.Context, subject string, s bridge.Summary) {
	data, err := json.Marshal(newStreamEvent(s))
	if err != nil {
		metrics.EventPublishErrors.Inc()
		p.logger.ErrorContext(ctx, "failed to encode stream event", logging.Error(err))
		return
	}

	msg := &messaging.Message{
		Subject:   subject,
		Data:      data,
		Timestamp: p.now().UTC(),
		Metadata:  map[string]string{},
	}
	if s.RequestID != "" {
		msg.Metadata[messaging.HeaderRequestID] = s.RequestID
	}
	if p.signer != nil {
		msg.Metadata[messaging.HeaderTimestamp] = msg.Timestamp.Format(time.RFC3339Nano)
		msg.Metadata[messaging.HeaderSignature] = p.signer.Sign(subject, msg.Timestamp, data)
	}

	if err := p.pub.PublishMsg(ctx, msg); err != nil {
		metrics.EventPublishErrors.Inc()
		p.logger.WarnContext(ctx, "failed to publish stream event",
			logging.SessionID(s.SessionID),
			logging.Error(err),
		)
	}
}
