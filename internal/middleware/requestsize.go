package middleware

import (
	"net/http"
)

const (
	// DefaultMaxRequestSize is the default maximum request body size
	DefaultMaxRequestSize int64 = 20 << 20
)

// MaxRequestSize rejects bodies over maxBytes. Screenshot uploads are the
// largest requests, so the limit is sized for them.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxRequestSize
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				http.Error(w, "Request Entity Too Large", http.StatusRequestEntityTooLarge)
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}