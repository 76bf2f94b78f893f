package auth

import (
	"crypto/subtle"
	"net/http"
)

// APIKey returns middleware that enforces API key authentication.
//
// Behaviour:
//   - If mode != "apikey" or key == "", all requests are allowed.
//   - Otherwise the value of header is compared to key in constant time.
//   - A missing, empty, or incorrect key returns 401 Unauthorized.
func APIKey(mode, header, key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if mode != "apikey" || key == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(`{"error":"invalid api key"}`)) //nolint:errcheck
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
