package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	SessionHeader   = "X-Tryon-Session"

	maxTokenLength = 128
)

type requestIDKey struct{}

// RequestID propagates a caller supplied X-Request-ID or mints a uuid.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := cleanToken(r.Header.Get(RequestIDHeader))
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, rid)))
	})
}

// RequestIDFromContext returns the id stored by RequestID.
func RequestIDFromContext(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey{}).(string)
	return rid
}

// SessionKey returns the caller's try-on session token. Malformed tokens are
// treated as absent.
func SessionKey(r *http.Request) string {
	return cleanToken(r.Header.Get(SessionHeader))
}

// cleanToken accepts printable ASCII without spaces, up to maxTokenLength.
func cleanToken(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || len(v) > maxTokenLength {
		return ""
	}
	for i := 0; i < len(v); i++ {
		if c := v[i]; c <= ' ' || c > '~' {
			return ""
		}
	}
	return v
}
