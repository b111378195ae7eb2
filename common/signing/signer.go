// Package signing authenticates published messages with an HMAC-SHA256
// signature so consumers can reject events that did not come from the
// gateway.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Signer computes and checks message signatures with a shared key.
type Signer struct {
	key []byte
}

// NewSigner returns a Signer using key.
func NewSigner(key string) *Signer {
	return &Signer{key: []byte(key)}
}

// Sign returns the hex signature over subject, timestamp and data.
func (s *Signer) Sign(subject string, ts time.Time, data []byte) string {
	h := hmac.New(sha256.New, s.key)
	h.Write([]byte(subject))
	h.Write([]byte{0})
	h.Write([]byte(ts.UTC().Format(time.RFC3339Nano)))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Verify reports whether signature matches the message.
func (s *Signer) Verify(subject string, ts time.Time, data []byte, signature string) bool {
	expected := s.Sign(subject, ts, data)
	return hmac.Equal([]byte(expected), []byte(signature))
}
