package handlers

import (
	"context"
	"net/http"

	"github.com/avika-ai/avika-bff/bff/internal/audit"
	"github.com/avika-ai/avika-bff/bff/internal/auth"
	"github.com/avika-ai/avika-bff/common/httputil"
	"github.com/avika-ai/avika-bff/common/logging"
)

// AdminRole may list every user's sessions.
const AdminRole = "admin"

// SessionLister reads recorded stream sessions.
type SessionLister interface {
	Recent(ctx context.Context, username string, limit int) ([]audit.SessionRecord, error)
}

// SessionsHandler lists recorded analytics stream sessions.
type SessionsHandler struct {
	store  SessionLister
	logger *logging.Logger
}

func NewSessionsHandler(store SessionLister, logger *logging.Logger) *SessionsHandler {
	return &SessionsHandler{store: store, logger: logger}
}

// List handles GET /api/analytics/sessions?limit=&user=
// Non-admin users only see their own sessions.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	username := user.Username
	if user.Role == AdminRole {
		username = r.URL.Query().Get("user")
	}
	limit := httputil.ParseIntParam(r.URL.Query().Get("limit"), audit.DefaultListLimit)

	records, err := h.store.Recent(r.Context(), username, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list stream sessions", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "failed to list sessions")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sessions": records})
}
