package logging

import (
	"log/slog"
	"time"
)

// Common field names so every component logs the same keys.
const (
	FieldService   = "service"
	FieldRequestID = "request_id"
	FieldUser      = "user"
	FieldIP        = "ip"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldSessionID = "session_id"
	FieldFilter    = "filter"
	FieldFrames    = "frames"
	FieldSkipped   = "skipped"
	FieldOutcome   = "outcome"
	FieldRPC       = "rpc"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// User returns a slog attribute for the authenticated username.
func User(name string) slog.Attr {
	return slog.String(FieldUser, name)
}

// IP returns a slog attribute for the client address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute with d expressed in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns a slog attribute for an error. A nil error yields an empty value.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// SessionID returns a slog attribute for a stream session ID.
func SessionID(id string) slog.Attr {
	return slog.String(FieldSessionID, id)
}

// Filter returns a slog attribute describing a stream filter.
func Filter(desc string) slog.Attr {
	return slog.String(FieldFilter, desc)
}

// Frames returns a slog attribute for the number of relayed frames.
func Frames(n int) slog.Attr {
	return slog.Int(FieldFrames, n)
}

// Skipped returns a slog attribute for the number of skipped messages.
func Skipped(n int) slog.Attr {
	return slog.Int(FieldSkipped, n)
}

// Outcome returns a slog attribute for how a stream session ended.
func Outcome(o string) slog.Attr {
	return slog.String(FieldOutcome, o)
}

// RPC returns a slog attribute for a backend RPC method name.
func RPC(method string) slog.Attr {
	return slog.String(FieldRPC, method)
}
