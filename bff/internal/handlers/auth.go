package handlers

import (
	"net/http"

	"github.com/avika-ai/avika-bff/bff/internal/auth"
	"github.com/avika-ai/avika-bff/common/httputil"
	"github.com/avika-ai/avika-bff/common/logging"
)

// AuthHandler forwards session endpoints to the backend. The backend owns
// the session cookie; the gateway only carries it.
type AuthHandler struct {
	forward    http.Handler
	cache      auth.SessionCache
	cookieName string
	logger     *logging.Logger
}

func NewAuthHandler(forward http.Handler, cache auth.SessionCache, cookieName string, logger *logging.Logger) *AuthHandler {
	if cache == nil {
		cache = auth.NoopSessionCache{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &AuthHandler{
		forward:    forward,
		cache:      cache,
		cookieName: cookieName,
		logger:     logger,
	}
}

func (h *AuthHandler) GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	// Cross-origin protection is header based (Sec-Fetch-Site and Origin).
	// The empty token keeps older frontends working.
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"csrf_token": ""})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "login forwarded", logging.IP(httputil.GetClientIP(r)))
	h.forward.ServeHTTP(w, r)
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	h.forward.ServeHTTP(w, r)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	h.forward.ServeHTTP(w, r)
}

// Logout forwards the request and forgets any cached validation of the
// session so the next request re-checks it with the backend.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.cookieName); err == nil && cookie.Value != "" {
		if err := h.cache.Delete(r.Context(), cookie.Value); err != nil {
			h.logger.WarnContext(r.Context(), "failed to drop cached session", logging.Error(err))
		}
	}
	h.forward.ServeHTTP(w, r)
}
