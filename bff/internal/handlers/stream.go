package handlers

import (
	"net/http"

	"github.com/avika-ai/avika-bff/bff/internal/analytics"
	"github.com/avika-ai/avika-bff/bff/internal/auth"
	"github.com/avika-ai/avika-bff/bff/internal/bridge"
	"github.com/avika-ai/avika-bff/common/httputil"
)

// StreamHandler serves the analytics event stream.
type StreamHandler struct {
	bridge *bridge.Bridge
}

func NewStreamHandler(b *bridge.Bridge) *StreamHandler {
	return &StreamHandler{bridge: b}
}

// Stream handles GET /api/analytics/stream?agent_id=&environment_id=&project_id=&window=
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := analytics.ResolveFilter(
		q.Get("agent_id"),
		q.Get("environment_id"),
		q.Get("project_id"),
		q.Get("window"),
	)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.bridge.Serve(w, r, f, auth.Username(r.Context()))
}
