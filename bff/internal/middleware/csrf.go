package middleware

import (
	"fmt"
	"net/http"

	"github.com/avika-ai/avika-bff/common/httputil"
	"github.com/avika-ai/avika-bff/common/logging"
)

// CSRFConfig configures cross-origin request protection.
type CSRFConfig struct {
	// TrustedOrigins may send state-changing requests cross-origin,
	// e.g. "https://console.avika.dev". Wildcards are not accepted.
	TrustedOrigins []string
	// BypassPatterns are ServeMux patterns exempt from the check.
	BypassPatterns []string
}

// CSRF rejects cross-origin state-changing browser requests using
// Sec-Fetch-Site and Origin. Safe methods and non-browser clients pass.
func CSRF(cfg CSRFConfig, logger *logging.Logger) (func(http.Handler) http.Handler, error) {
	if logger == nil {
		logger = logging.Default()
	}

	protection := http.NewCrossOriginProtection()
	for _, origin := range cfg.TrustedOrigins {
		if err := protection.AddTrustedOrigin(origin); err != nil {
			return nil, fmt.Errorf("invalid trusted origin %q: %w", origin, err)
		}
	}
	for _, pattern := range cfg.BypassPatterns {
		protection.AddInsecureBypassPattern(pattern)
	}

	protection.SetDenyHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.WarnContext(r.Context(), "cross-origin request rejected",
			logging.Method(r.Method),
			logging.Path(r.URL.Path),
			logging.IP(httputil.GetClientIP(r)),
			"origin", r.Header.Get("Origin"),
		)
		httputil.WriteError(w, http.StatusForbidden, "cross-origin request rejected")
	}))

	return protection.Handler, nil
}
