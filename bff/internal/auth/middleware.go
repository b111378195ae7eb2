package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/avika-ai/avika-bff/common/httputil"
	"github.com/avika-ai/avika-bff/common/logging"
)

type contextKey string

const userKey contextKey = "user"

// Middleware rejects requests without a valid backend session.
type Middleware struct {
	client     *Client
	cache      SessionCache
	cookieName string
	logger     *logging.Logger
}

// NewMiddleware returns a Middleware. A nil cache disables caching.
func NewMiddleware(client *Client, cache SessionCache, cookieName string, logger *logging.Logger) *Middleware {
	if cache == nil {
		cache = NoopSessionCache{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Middleware{
		client:     client,
		cache:      cache,
		cookieName: cookieName,
		logger:     logger,
	}
}

// Protect resolves the session cookie to a User and stores it in the
// request context. Requests without one get 401.
func (m *Middleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		cookie, err := r.Cookie(m.cookieName)
		if err != nil || cookie.Value == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		u, ok, err := m.cache.Get(ctx, cookie.Value)
		if err != nil {
			m.logger.WarnContext(ctx, "session cache unavailable", logging.Error(err))
		}
		if !ok {
			u, err = m.client.Me(ctx, r.Header.Get("Cookie"))
			switch {
			case errors.Is(err, ErrUnauthenticated):
				httputil.WriteError(w, http.StatusUnauthorized, "unauthorized")
				return
			case err != nil:
				m.logger.ErrorContext(ctx, "session validation failed", logging.Error(err))
				httputil.WriteError(w, http.StatusBadGateway, "session service unavailable")
				return
			}
			if err := m.cache.Set(ctx, cookie.Value, u); err != nil {
				m.logger.WarnContext(ctx, "session cache write failed", logging.Error(err))
			}
		}

		next.ServeHTTP(w, r.WithContext(WithUser(ctx, u)))
	})
}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey, u)
}

// GetUser returns the authenticated user, or nil.
func GetUser(ctx context.Context) *User {
	u, _ := ctx.Value(userKey).(*User)
	return u
}

// Username returns the authenticated username, or "".
func Username(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.Username
	}
	return ""
}
