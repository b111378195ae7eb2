package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/avika-ai/avika-bff/bff/internal/backend"
	"github.com/avika-ai/avika-bff/bff/internal/backendtest"
	"github.com/avika-ai/avika-bff/common/logging"
)

func newBackendClient(t *testing.T, unary map[string]backendtest.UnaryFunc) *backend.Client {
	t.Helper()
	conn := backendtest.Start(t, backendtest.Handlers{Unary: unary})
	return backend.NewClient(conn, time.Second)
}

func reply(m map[string]any) backendtest.UnaryFunc {
	return func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
		return structpb.NewStruct(m)
	}
}

func TestAgentsHandler_List(t *testing.T) {
	client := newBackendClient(t, map[string]backendtest.UnaryFunc{
		"ListAgents": reply(map[string]any{"agents": []any{map[string]any{"agent_id": "agent-1"}}}),
	})
	h := NewAgentsHandler(client, logging.Discard())

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/agents", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"agents":[{"agent_id":"agent-1"}]}`, rr.Body.String())
}

func TestAgentsHandler_Update(t *testing.T) {
	var got atomic.Pointer[structpb.Struct]
	client := newBackendClient(t, map[string]backendtest.UnaryFunc{
		"UpdateAgent": func(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			got.Store(req)
			if req.GetFields()["agent_id"].GetStringValue() == "missing" {
				return nil, status.Error(codes.NotFound, "agent missing not found")
			}
			return structpb.NewStruct(map[string]any{"success": true, "message": "Update command sent to agent"})
		},
	})
	h := NewAgentsHandler(client, logging.Discard())

	mux := http.NewServeMux()
	mux.HandleFunc("PATCH /api/agents/{id}", h.Update)

	t.Run("with body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/agents/agent-7", strings.NewReader(`{"version":"1.2.3"}`))
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.JSONEq(t, `{"success":true,"message":"Update command sent to agent"}`, rr.Body.String())
		assert.Equal(t, map[string]any{"agent_id": "agent-7", "version": "1.2.3"}, got.Load().AsMap())
	})

	t.Run("empty body", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/api/agents/agent-8", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, map[string]any{"agent_id": "agent-8"}, got.Load().AsMap())
	})

	t.Run("malformed body", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/api/agents/agent-7", strings.NewReader(`{"version":`)))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown agent", func(t *testing.T) {
		rr := httptest.NewRecorder()
		mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPatch, "/api/agents/missing", nil))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.JSONEq(t, `{"error":"agent missing not found"}`, rr.Body.String())
	})
}

func TestRulesHandler(t *testing.T) {
	client := newBackendClient(t, map[string]backendtest.UnaryFunc{
		"ListAlertRules": reply(map[string]any{"rules": []any{map[string]any{"id": "r1", "name": "cpu"}}}),
		"CreateAlertRule": func(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			m := req.AsMap()
			if m["name"] == "" {
				return nil, status.Error(codes.InvalidArgument, "name is required")
			}
			m["id"] = "r2"
			return structpb.NewStruct(m)
		},
	})
	h := NewRulesHandler(client, logging.Discard())

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/rules", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"rules":[{"id":"r1","name":"cpu"}]}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/rules", strings.NewReader(`{"name":"mem","threshold":80}`)))
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"id":"r2","name":"mem","threshold":80}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/rules", strings.NewReader(`{"name":""}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"name is required"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/rules", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	h.Create(rr, httptest.NewRequest(http.MethodPost, "/api/rules", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRulesHandler_BackendDown(t *testing.T) {
	client := newBackendClient(t, map[string]backendtest.UnaryFunc{
		"ListAlertRules": func(context.Context, *structpb.Struct) (*structpb.Struct, error) {
			return nil, status.Error(codes.Unavailable, "database offline")
		},
	})

	rr := httptest.NewRecorder()
	NewRulesHandler(client, logging.Discard()).List(rr, httptest.NewRequest(http.MethodGet, "/api/rules", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"error":"Service Unavailable"}`, rr.Body.String())
}

func TestReportsHandler_Generate(t *testing.T) {
	var got atomic.Pointer[structpb.Struct]
	client := newBackendClient(t, map[string]backendtest.UnaryFunc{
		"GenerateReport": func(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			got.Store(req)
			return structpb.NewStruct(map[string]any{"summary": map[string]any{"total_requests": 42}})
		},
	})
	h := NewReportsHandler(client, logging.Discard())

	rr := httptest.NewRecorder()
	h.Generate(rr, httptest.NewRequest(http.MethodPost, "/api/reports",
		strings.NewReader(`{"start_time":1700000000,"end_time":1700086400,"agent_ids":["a"]}`)))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"summary":{"total_requests":42}}`, rr.Body.String())
	assert.Equal(t, map[string]any{
		"start_time": float64(1700000000),
		"end_time":   float64(1700086400),
		"agent_ids":  []any{"a"},
	}, got.Load().AsMap())

	rr = httptest.NewRecorder()
	h.Generate(rr, httptest.NewRequest(http.MethodPost, "/api/reports",
		strings.NewReader(`{"start_time":1700086400,"end_time":1700000000}`)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"end time must be after start time"}`, rr.Body.String())
}

func TestReportsHandler_Download(t *testing.T) {
	pdf := []byte("%PDF-1.4 binary\x00\xff")
	var got atomic.Pointer[structpb.Struct]
	client := newBackendClient(t, map[string]backendtest.UnaryFunc{
		"DownloadReport": func(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
			got.Store(req)
			return structpb.NewStruct(map[string]any{
				"content":      base64.StdEncoding.EncodeToString(pdf),
				"file_name":    "report-1700000000.pdf",
				"content_type": "application/pdf",
			})
		},
	})
	h := NewReportsHandler(client, logging.Discard())

	rr := httptest.NewRecorder()
	h.Download(rr, httptest.NewRequest(http.MethodGet, "/api/reports/download?start=1700000000&end=1700086400&agent_ids=a,b", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/pdf", rr.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=report-1700000000.pdf`, rr.Header().Get("Content-Disposition"))
	assert.Equal(t, pdf, rr.Body.Bytes())
	assert.Equal(t, []any{"a", "b"}, got.Load().AsMap()["agent_ids"])
}

func TestReportsHandler_DownloadBadParams(t *testing.T) {
	h := NewReportsHandler(newBackendClient(t, nil), logging.Discard())

	for _, query := range []string{"start=yesterday", "end=x", "start=-5", "start=20&end=10"} {
		t.Run(query, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.Download(rr, httptest.NewRequest(http.MethodGet, "/api/reports/download?"+query, nil))

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestReportsHandler_DownloadUnimplemented(t *testing.T) {
	h := NewReportsHandler(newBackendClient(t, nil), logging.Discard())

	rr := httptest.NewRecorder()
	h.Download(rr, httptest.NewRequest(http.MethodGet, "/api/reports/download", nil))
	assert.Equal(t, http.StatusNotImplemented, rr.Code)
}
