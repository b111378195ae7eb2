package metrics

import (
	"context"

	"github.com/avika-ai/avika-bff/bff/internal/bridge"
)

// StreamObserver records stream session metrics.
type StreamObserver struct{}

func (StreamObserver) StreamOpened(context.Context, bridge.Summary) {
	ActiveStreams.Inc()
}

func (StreamObserver) StreamClosed(_ context.Context, s bridge.Summary) {
	if s.Opened {
		ActiveStreams.Dec()
	}
	outcome := string(s.Outcome)
	StreamSessions.WithLabelValues(outcome).Inc()
	StreamDuration.WithLabelValues(outcome).Observe(s.Duration.Seconds())
	StreamFrames.Add(float64(s.Frames))
	StreamSkipped.Add(float64(s.Skipped))
}
