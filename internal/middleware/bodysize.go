package middleware

import (
	"net/http"

	apperrors "github.com/jkindrix/zenquote/internal/errors"
)

// MaxJSONBodySize is the maximum size for JSON API requests (64KB).
// Chat messages are the largest bodies the API accepts.
const MaxJSONBodySize = 64 << 10

// BodySizeLimiter limits the size of request bodies.
func BodySizeLimiter(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > maxBytes {
				writeError(w, apperrors.InvalidInput("request body too large"), http.StatusRequestEntityTooLarge)
				return
			}

			// Covers chunked bodies with no Content-Length.
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

			next.ServeHTTP(w, r)
		})
	}
}

// BodySizeLimiterJSON returns a middleware limiting JSON API request bodies.
func BodySizeLimiterJSON() func(http.Handler) http.Handler {
	return BodySizeLimiter(MaxJSONBodySize)
}
