package middleware

import (
	"mime"
	"net/http"
)

// ContentType validates Content-Type headers for requests with bodies.
// Requests without a body, such as analysis triggers, pass through.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && r.ContentLength != 0 {
			contentType := r.Header.Get("Content-Type")
			if contentType == "" {
				http.Error(w, "Content-Type header is required", http.StatusBadRequest)
				return
			}

			mediaType, _, err := mime.ParseMediaType(contentType)
			if err != nil || (mediaType != "application/json" && mediaType != "multipart/form-data") {
				http.Error(w, "Content-Type must be application/json or multipart/form-data", http.StatusUnsupportedMediaType)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
