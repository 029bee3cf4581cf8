package middleware

import (
	"net/http"
	"strings"

	"github.com/rs/zerolog"
)

// RequestLogger logs every request under /api/ at debug level.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
			}
			next.ServeHTTP(w, r)
		})
	}
}
