package handlers

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/avika-ai/avika-bff/common/database"
	"github.com/avika-ai/avika-bff/common/httputil"
	"github.com/avika-ai/avika-bff/common/messaging"
)

// Readiness check values.
const (
	CheckOK            = "ok"
	CheckNotConfigured = "not_configured"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	service string
	version string
	db      *sql.DB
	broker  messaging.Client
	dbCheck func(context.Context, *sql.DB) error
}

// NewHealthHandler returns a HealthHandler. db and broker may be nil when
// the gateway runs without them.
func NewHealthHandler(service, version string, db *sql.DB, broker messaging.Client) *HealthHandler {
	return &HealthHandler{
		service: service,
		version: version,
		db:      db,
		broker:  broker,
		dbCheck: database.HealthCheck,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": h.service,
		"version": h.version,
	})
}

// Ready handles GET /ready. A failing database probe makes the gateway
// degraded; the message broker is reported but never fails readiness.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := map[string]any{}
	ready := true

	if h.db == nil {
		checks["database"] = CheckNotConfigured
	} else if err := h.dbCheck(r.Context(), h.db); err != nil {
		checks["database"] = err.Error()
		ready = false
	} else {
		checks["database"] = CheckOK
	}

	if h.broker == nil {
		checks["nats"] = CheckNotConfigured
	} else {
		checks["nats"] = messaging.CheckClientHealth(h.broker)
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, map[string]any{
		"status": status,
		"checks": checks,
	})
}
