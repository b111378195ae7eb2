package handlers

import (
	"net/http"

	"github.com/avika-ai/avika-bff/bff/internal/backend"
	"github.com/avika-ai/avika-bff/common/httputil"
	"github.com/avika-ai/avika-bff/common/logging"
)

// RulesHandler exposes alert rule calls.
type RulesHandler struct {
	client *backend.Client
	logger *logging.Logger
}

func NewRulesHandler(client *backend.Client, logger *logging.Logger) *RulesHandler {
	return &RulesHandler{client: client, logger: logger}
}

// List handles GET /api/rules
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	resp, err := h.client.ListAlertRules(r.Context())
	if err != nil {
		writeBackendError(w, r, h.logger, "ListAlertRules", err)
		return
	}
	writeStruct(w, http.StatusOK, resp)
}

// Create handles POST /api/rules
func (h *RulesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var rule map[string]any
	if err := httputil.DecodeJSON(w, r, &rule); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(rule) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "rule must not be empty")
		return
	}

	resp, err := h.client.CreateAlertRule(r.Context(), rule)
	if err != nil {
		writeBackendError(w, r, h.logger, "CreateAlertRule", err)
		return
	}
	writeStruct(w, http.StatusCreated, resp)
}
