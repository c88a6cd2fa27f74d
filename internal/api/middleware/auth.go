package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/corpusworks/corpusd/internal/api"
)

// APIKeyAuth guards the API with a static configured key, supplied by clients
// in the X-API-Key header. An empty configured key disables the check.
func APIKeyAuth(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			supplied := r.Header.Get("X-API-Key")
			if subtle.ConstantTimeCompare([]byte(supplied), []byte(key)) != 1 {
				api.Error(w, http.StatusUnauthorized, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
