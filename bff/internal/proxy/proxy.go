// Package proxy forwards session requests to the backend verbatim.
package proxy

import (
	"io"
	"net/http"
	"time"

	"github.com/avika-ai/avika-bff/common/httputil"
	"github.com/avika-ai/avika-bff/common/logging"
	"github.com/avika-ai/avika-bff/common/middleware"
)

// forwardedRequestHeaders are copied from the browser request.
var forwardedRequestHeaders = []string{
	"Cookie",
	"Content-Type",
	"Accept",
	"Accept-Language",
	"User-Agent",
}

// hopHeaders are connection-scoped and never copied back.
var hopHeaders = map[string]bool{
	"Connection":          true,
	"Keep-Alive":          true,
	"Proxy-Authenticate":  true,
	"Proxy-Authorization": true,
	"Te":                  true,
	"Trailer":             true,
	"Transfer-Encoding":   true,
	"Upgrade":             true,
	"Content-Length":      true,
}

// Proxy forwards requests to a backend base URL, carrying the session
// cookie in and every Set-Cookie out.
type Proxy struct {
	targetURL  string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewProxy returns a Proxy for targetURL.
func NewProxy(targetURL string, timeout time.Duration, logger *logging.Logger) *Proxy {
	if logger == nil {
		logger = logging.Default()
	}
	return &Proxy{
		targetURL: targetURL,
		httpClient: &http.Client{
			Timeout: timeout,
			// Redirects are the browser's business.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		logger: logger,
	}
}

// Handler forwards the request to the same path on the backend.
func (p *Proxy) Handler() http.Handler {
	return http.HandlerFunc(p.ServeHTTP)
}

// ServeHTTP forwards r and relays the backend's status, headers and body.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	targetURL := p.targetURL + r.URL.Path
	if r.URL.RawQuery != "" {
		targetURL += "?" + r.URL.RawQuery
	}

	proxyReq, err := http.NewRequestWithContext(ctx, r.Method, targetURL, r.Body)
	if err != nil {
		p.logger.ErrorContext(ctx, "proxy request creation failed", logging.Error(err))
		httputil.WriteError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	proxyReq.ContentLength = r.ContentLength

	for _, key := range forwardedRequestHeaders {
		for _, value := range r.Header.Values(key) {
			proxyReq.Header.Add(key, value)
		}
	}
	if reqID := middleware.GetRequestID(ctx); reqID != "" {
		proxyReq.Header.Set(middleware.RequestIDHeader, reqID)
	}
	proxyReq.Header.Set("X-Forwarded-For", httputil.GetClientIP(r))

	resp, err := p.httpClient.Do(proxyReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "proxy request failed",
			logging.Path(r.URL.Path),
			logging.Error(err),
		)
		httputil.WriteError(w, http.StatusServiceUnavailable, "backend unavailable")
		return
	}
	defer resp.Body.Close()

	for key, values := range resp.Header {
		if hopHeaders[key] {
			continue
		}
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		p.logger.DebugContext(ctx, "proxy response copy interrupted", logging.Error(err))
	}
}
