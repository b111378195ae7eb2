package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/avika-ai/avika-bff/bff/internal/analytics"
	"github.com/avika-ai/avika-bff/bff/internal/backendtest"
	"github.com/avika-ai/avika-bff/common/logging"
)

// startGateway serves the bridge over real HTTP against a scripted backend.
func startGateway(t *testing.T, fn backendtest.StreamFunc, obs Observer) *httptest.Server {
	t.Helper()
	conn := backendtest.Start(t, backendtest.Handlers{StreamAnalytics: fn})
	b := New(AnalyticsOpener(analytics.NewClient(conn)), logging.Discard(), WithObserver(obs))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		f, err := analytics.ResolveFilter(q.Get("agent_id"), q.Get("environment_id"), q.Get("project_id"), q.Get("window"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.Serve(w, r, f, "")
	}))
	t.Cleanup(srv.Close)
	return srv
}

type closedObserver struct {
	closed chan Summary
}

func newClosedObserver() *closedObserver {
	return &closedObserver{closed: make(chan Summary, 1)}
}

func (o *closedObserver) StreamOpened(context.Context, Summary)     {}
func (o *closedObserver) StreamClosed(_ context.Context, s Summary) { o.closed <- s }

func (o *closedObserver) wait(t *testing.T) Summary {
	t.Helper()
	select {
	case s := <-o.closed:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("session never closed")
		return Summary{}
	}
}

func TestScenario_EnvironmentStreamEndsAfterTwoFrames(t *testing.T) {
	var gotReq atomic.Pointer[structpb.Struct]
	obs := newClosedObserver()
	srv := startGateway(t, func(req *structpb.Struct, stream grpc.ServerStream) error {
		gotReq.Store(req)
		return backendtest.Emit(stream,
			map[string]any{"ts": 1, "val": 10},
			map[string]any{"ts": 2, "val": 12},
		)
	}, obs)

	resp, err := http.Get(srv.URL + "?environment_id=env-1&window=1h")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "data: {\"ts\":1,\"val\":10}\n\ndata: {\"ts\":2,\"val\":12}\n\n", string(body))

	sum := obs.wait(t)
	assert.Equal(t, OutcomeCompleted, sum.Outcome)
	assert.Equal(t, 2, sum.Frames)
	assert.Equal(t, map[string]any{"environment_id": "env-1", "time_window": "1h"}, gotReq.Load().AsMap())
}

func TestScenario_AllFilterBackendFailsOnOpen(t *testing.T) {
	var gotReq atomic.Pointer[structpb.Struct]
	obs := newClosedObserver()
	srv := startGateway(t, func(req *structpb.Struct, _ grpc.ServerStream) error {
		gotReq.Store(req)
		return status.Error(codes.Unavailable, "backend down")
	}, obs)

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.NotContains(t, string(body), "data:")

	var payload map[string]string
	require.NoError(t, json.Unmarshal(body, &payload))
	assert.NotEmpty(t, payload["error"])

	sum := obs.wait(t)
	assert.Equal(t, OutcomeOpenFailed, sum.Outcome)
	assert.Equal(t, analytics.ScopeAll, sum.Filter.Scope)
	assert.Equal(t, map[string]any{"time_window": analytics.DefaultWindow}, gotReq.Load().AsMap())
}

func TestScenario_ClientDisconnectCancelsBackend(t *testing.T) {
	backendCancelled := make(chan struct{})
	sent := make(chan int, 1024)
	obs := newClosedObserver()
	srv := startGateway(t, func(_ *structpb.Struct, stream grpc.ServerStream) error {
		defer close(backendCancelled)
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for i := 0; ; i++ {
			if err := backendtest.Emit(stream, map[string]any{"seq": i}); err != nil {
				return err
			}
			sent <- i
			select {
			case <-stream.Context().Done():
				return stream.Context().Err()
			case <-ticker.C:
			}
		}
	}, obs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?agent_id=agent-7", nil)
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: {\"seq\":0}"), "first frame: %q", line)

	cancel()

	select {
	case <-backendCancelled:
	case <-time.After(5 * time.Second):
		t.Fatal("backend stub never observed cancellation")
	}

	sum := obs.wait(t)
	assert.Equal(t, OutcomeClientAborted, sum.Outcome)
	assert.GreaterOrEqual(t, sum.Frames, 1)
	assert.LessOrEqual(t, sum.Frames, len(sent))
}
