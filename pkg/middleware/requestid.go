package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/pradumya004/Getmax-wfm-sub009/pkg/contextkeys"
)

const requestIDHeader = "X-Request-ID"

// RequestID assigns every request a correlation id, reusing the caller's
// X-Request-ID when present, and echoes it back on the response.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := contextkeys.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
