package messaging

// Subject names follow the pattern {service}.{resource}.{action}.
const (
	// SubjectStreamsOpened is published when an analytics stream session starts relaying.
	SubjectStreamsOpened = "bff.streams.opened"

	// SubjectStreamsClosed is published once per session when it terminates.
	SubjectStreamsClosed = "bff.streams.closed"
)

// Headers set on published messages.
const (
	// HeaderRequestID carries the originating HTTP request ID.
	HeaderRequestID = "X-Request-ID"

	// HeaderTimestamp is the RFC 3339 production time covered by HeaderSignature.
	HeaderTimestamp = "X-Avika-Timestamp"

	// HeaderSignature is the hex HMAC-SHA256 of subject, timestamp and payload.
	HeaderSignature = "X-Avika-Signature"
)
