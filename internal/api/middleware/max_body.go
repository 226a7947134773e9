package middleware

import (
	"mime"
	"net/http"

	"github.com/cloo-solutions/reportqa/internal/api"
)

// BodyLimits caps request bodies. Document uploads are multipart and get their own,
// larger limit; every other endpoint takes a small JSON body.
type BodyLimits struct {
	JSON      int64
	Multipart int64
}

func (l BodyLimits) forRequest(r *http.Request) int64 {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err == nil && mediaType == "multipart/form-data" {
		return l.Multipart
	}
	return l.JSON
}

// MaxBodyBytes rejects bodies over the limit for their content type. A zero limit
// disables the check.
func MaxBodyBytes(limits BodyLimits) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limit := limits.forRequest(r)
			if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				api.JSON(w, http.StatusRequestEntityTooLarge, api.ErrorResponse{
					Error:   "request body too large",
					Details: map[string]int64{"limit_bytes": limit},
				})
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
