package signing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSigner_Sign(t *testing.T) {
	signer := NewSigner("test-secret")
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	data := []byte(`{"session_id":"s-1"}`)

	sig := signer.Sign("bff.streams.opened", ts, data)
	assert.Len(t, sig, 64)
	assert.Equal(t, sig, signer.Sign("bff.streams.opened", ts, data), "signatures are deterministic")
	assert.Equal(t, sig, signer.Sign("bff.streams.opened", ts.In(time.FixedZone("X", 3600)), data), "timestamps are normalised to UTC")
	assert.NotEqual(t, sig, NewSigner("other-secret").Sign("bff.streams.opened", ts, data))
}

func TestSigner_Verify(t *testing.T) {
	signer := NewSigner("test-secret")
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	subject := "bff.streams.closed"
	data := []byte(`{"session_id":"s-1","frames":2}`)
	sig := signer.Sign(subject, ts, data)

	tests := []struct {
		name      string
		subject   string
		ts        time.Time
		data      []byte
		signature string
		want      bool
	}{
		{name: "valid", subject: subject, ts: ts, data: data, signature: sig, want: true},
		{name: "wrong subject", subject: "bff.streams.opened", ts: ts, data: data, signature: sig},
		{name: "wrong timestamp", subject: subject, ts: ts.Add(time.Nanosecond), data: data, signature: sig},
		{name: "tampered data", subject: subject, ts: ts, data: []byte(`{"session_id":"s-1","frames":3}`), signature: sig},
		{name: "empty signature", subject: subject, ts: ts, data: data},
		{name: "field boundary shift", subject: subject + "2", ts: ts, data: data, signature: sig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, signer.Verify(tt.subject, tt.ts, tt.data, tt.signature))
		})
	}
}
