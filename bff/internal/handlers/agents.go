package handlers

import (
	"net/http"

	"github.com/avika-ai/avika-bff/bff/internal/backend"
	"github.com/avika-ai/avika-bff/common/httputil"
	"github.com/avika-ai/avika-bff/common/logging"
)

// AgentsHandler exposes agent management calls.
type AgentsHandler struct {
	client *backend.Client
	logger *logging.Logger
}

func NewAgentsHandler(client *backend.Client, logger *logging.Logger) *AgentsHandler {
	return &AgentsHandler{client: client, logger: logger}
}

// List handles GET /api/agents
func (h *AgentsHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.ListAgents(r.Context())
	if err != nil {
		writeBackendError(w, r, h.logger, "ListAgents", err)
		return
	}
	writeStruct(w, http.StatusOK, resp)
}

// Update handles PATCH /api/agents/{id}
func (h *AgentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		httputil.WriteError(w, http.StatusBadRequest, "agent ID required")
		return
	}

	var fields map[string]any
	if err := decodeOptionalJSON(w, r, &fields); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.client.UpdateAgent(r.Context(), id, fields)
	if err != nil {
		writeBackendError(w, r, h.logger, "UpdateAgent", err)
		return
	}
	h.logger.InfoContext(r.Context(), "agent update requested", "agent_id", id)
	writeStruct(w, http.StatusOK, resp)
}
