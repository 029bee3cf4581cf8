package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// Origins is an allow-list of browser origins. "*" allows any origin.
type Origins []string

// Allowed reports whether origin may talk to the server. Requests without
// an Origin header are not browser cross-origin requests and are allowed.
func (o Origins) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range o {
		allowed = strings.TrimSpace(allowed)
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// CORS answers preflight requests and sets the CORS headers for allowed
// origins.
func CORS(origins Origins, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && origins.Allowed(origin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				log.Debug().Str("path", r.URL.Path).Str("origin", origin).Msg("preflight")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
