package middleware

import "net/http"

// MaxBodySize limits the size of request bodies. Requests whose body exceeds
// maxBytes fail with a wrapped MaxBytesError once the handler reads past the
// limit. Uploads of CSV allowlists are the largest expected payload.
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
