package messaging

import (
	"fmt"
	"time"
)

// HealthStatus represents the health state of a messaging connection.
type HealthStatus struct {
	Connected bool          `json:"connected"`
	Latency   time.Duration `json:"latency_ms"`
	Error     string        `json:"error,omitempty"`
}

// Pinger is implemented by clients that can measure a broker round trip.
type Pinger interface {
	Client
	RTT() (time.Duration, error)
}

// CheckClientHealth reports whether client is connected and, when it can,
// the broker round-trip latency.
func CheckClientHealth(client Client) HealthStatus {
	status := HealthStatus{}

	if client == nil {
		status.Error = "client is nil"
		return status
	}

	status.Connected = client.IsConnected()
	if !status.Connected {
		status.Error = "not connected to message broker"
		return status
	}

	if p, ok := client.(Pinger); ok {
		rtt, err := p.RTT()
		if err != nil {
			status.Error = fmt.Sprintf("health check failed: %v", err)
			return status
		}
		status.Latency = rtt
	}

	return status
}
