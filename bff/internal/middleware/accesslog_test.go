package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avika-ai/avika-bff/bff/internal/metrics"
	"github.com/avika-ai/avika-bff/common/logging"
	commonmw "github.com/avika-ai/avika-bff/common/middleware"
)

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelInfo, "json")

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/agents/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	handler := commonmw.RequestID(AccessLog(logger)(mux))

	route := "GET /api/agents/{id}"
	before := testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, route, "404"))

	req := httptest.NewRequest(http.MethodGet, "/api/agents/a1", nil)
	req.Header.Set(commonmw.RequestIDHeader, "req-42")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.HTTPRequests.WithLabelValues(http.MethodGet, route, "404")))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http request", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "/api/agents/a1", entry[logging.FieldPath])
	assert.Equal(t, float64(404), entry[logging.FieldStatus])
	assert.Equal(t, "req-42", entry[logging.FieldRequestID])
}

func TestAccessLog_ImplicitOK(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewWithWriter(&buf, slog.LevelInfo, "json")

	handler := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/somewhere", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(200), entry[logging.FieldStatus])
	assert.Equal(t, "INFO", entry["level"])
}

func TestStatusRecorder_FlushThroughController(t *testing.T) {
	inner := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: inner}

	rec.WriteHeader(http.StatusOK)
	rec.WriteHeader(http.StatusInternalServerError)
	require.NoError(t, http.NewResponseController(rec).Flush())

	assert.Equal(t, http.StatusOK, rec.status, "first status wins")
	assert.True(t, inner.Flushed)
}
