package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/JonMunkholm/catalog-etl/internal/config"
	"github.com/JonMunkholm/catalog-etl/internal/logging"
)

// APIKeyAuth returns middleware that validates the X-API-Key header against
// cfg.APIKeys. When cfg.RequireAPIKey is false every request passes.
func APIKeyAuth(cfg config.SecurityConfig) func(http.Handler) http.Handler {
	keys := make([][]byte, len(cfg.APIKeys))
	for i, k := range cfg.APIKeys {
		keys[i] = []byte(k)
	}

	return func(next http.Handler) http.Handler {
		if !cfg.RequireAPIKey {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get("X-API-Key")

			var status int
			var code string
			switch {
			case apiKey == "":
				status, code = http.StatusUnauthorized, "AUTH_MISSING_KEY"
			case !isValidAPIKey([]byte(apiKey), keys):
				status, code = http.StatusForbidden, "AUTH_INVALID_KEY"
			default:
				next.ServeHTTP(w, r)
				return
			}

			logging.FromContext(r.Context()).Warn("auth: request rejected",
				"path", r.URL.Path,
				"method", r.Method,
				"remote_addr", r.RemoteAddr,
				"code", code,
			)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":"` + http.StatusText(status) + `","code":"` + code + `"}` + "\n"))
		})
	}
}

// isValidAPIKey compares key against every configured key in constant time,
// so the response time does not reveal which key (if any) matched.
func isValidAPIKey(key []byte, validKeys [][]byte) bool {
	valid := 0
	for _, validKey := range validKeys {
		valid |= subtle.ConstantTimeCompare(key, validKey)
	}
	return valid == 1
}
