package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avika-ai/avika-bff/bff/internal/auth"
	"github.com/avika-ai/avika-bff/bff/internal/proxy"
	"github.com/avika-ai/avika-bff/common/logging"
)

const testCookie = "avika_session"

// mockSessionBackend plays the backend's session endpoints.
func mockSessionBackend(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var req map[string]string
			_ = json.NewDecoder(r.Body).Decode(&req)
			if req["username"] == "admin" && req["password"] == "admin123" {
				http.SetCookie(w, &http.Cookie{Name: testCookie, Value: "sess-1", Path: "/", HttpOnly: true})
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"success":true}`))
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))

		case "/api/auth/logout":
			http.SetCookie(w, &http.Cookie{Name: testCookie, Value: "", Path: "/", MaxAge: -1})
			_, _ = w.Write([]byte(`{"success":true}`))

		case "/api/auth/change-password":
			if c, err := r.Cookie(testCookie); err != nil || c.Value != "sess-1" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			body, _ := io.ReadAll(r.Body)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write(body)

		case "/api/auth/me":
			if c, err := r.Cookie(testCookie); err == nil && c.Value == "sess-1" {
				_, _ = w.Write([]byte(`{"authenticated":true,"user":{"username":"admin","role":"admin"}}`))
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"authenticated":false}`))

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestAuthHandler(t *testing.T, cache auth.SessionCache) *AuthHandler {
	t.Helper()
	backend := mockSessionBackend(t)
	p := proxy.NewProxy(backend.URL, time.Second, logging.Discard())
	return NewAuthHandler(p, cache, testCookie, logging.Discard())
}

func TestAuthHandler_GetCSRFToken(t *testing.T) {
	h := newTestAuthHandler(t, nil)

	rr := httptest.NewRecorder()
	h.GetCSRFToken(rr, httptest.NewRequest(http.MethodGet, "/api/auth/csrf-token", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"csrf_token":""}`, rr.Body.String())
}

func TestAuthHandler_Login(t *testing.T) {
	h := newTestAuthHandler(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCookie bool
	}{
		{name: "valid credentials", body: `{"username":"admin","password":"admin123"}`, wantStatus: http.StatusOK, wantCookie: true},
		{name: "invalid credentials", body: `{"username":"admin","password":"nope"}`, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rr := httptest.NewRecorder()

			h.Login(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			cookies := rr.Result().Cookies()
			if tt.wantCookie {
				require.Len(t, cookies, 1)
				assert.Equal(t, testCookie, cookies[0].Name)
				assert.Equal(t, "sess-1", cookies[0].Value)
				assert.True(t, cookies[0].HttpOnly)
			} else {
				assert.Empty(t, cookies)
			}
		})
	}
}

func TestAuthHandler_ChangePassword(t *testing.T) {
	h := newTestAuthHandler(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/change-password", strings.NewReader(`{"new_password":"s3cret"}`))
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "sess-1"})
	rr := httptest.NewRecorder()
	h.ChangePassword(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"new_password":"s3cret"}`, rr.Body.String())

	rr = httptest.NewRecorder()
	h.ChangePassword(rr, httptest.NewRequest(http.MethodPost, "/api/auth/change-password", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthHandler_Me(t *testing.T) {
	h := newTestAuthHandler(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "sess-1"})
	rr := httptest.NewRecorder()
	h.Me(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"username":"admin"`)

	rr = httptest.NewRecorder()
	h.Me(rr, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.JSONEq(t, `{"authenticated":false}`, rr.Body.String())
}

func TestAuthHandler_LogoutDropsCachedSession(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cache := auth.NewRedisSessionCache(client, time.Minute)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "sess-1", &auth.User{Username: "admin"}))

	h := newTestAuthHandler(t, cache)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "sess-1"})
	rr := httptest.NewRecorder()
	h.Logout(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, -1, cookies[0].MaxAge)

	_, ok, err := cache.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, ok, "cached session must be forgotten on logout")
}

func TestAuthHandler_LogoutWithoutCookie(t *testing.T) {
	h := newTestAuthHandler(t, nil)

	rr := httptest.NewRecorder()
	h.Logout(rr, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}
