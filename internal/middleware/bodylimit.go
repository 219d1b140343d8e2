package middleware

import (
	"net/http"
)

// DefaultMaxBodySize caps request bodies when no explicit limit is given. The
// admin API only carries small JSON payloads, so 1MB is already generous.
const DefaultMaxBodySize = 1 << 20

// BodyLimitMiddleware rejects oversized bodies up front when the length is
// declared, and caps reads on everything else so a handler is never fed an
// unbounded stream.
type BodyLimitMiddleware struct {
	limit int64
}

func NewBodyLimitMiddleware(limit int64) *BodyLimitMiddleware {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	return &BodyLimitMiddleware{limit: limit}
}

func (m *BodyLimitMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && r.ContentLength > m.limit {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
				"error": "Request body too large",
			})
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, m.limit)
		next.ServeHTTP(w, r)
	})
}
