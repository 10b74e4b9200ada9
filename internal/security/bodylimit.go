package security

import (
	"net/http"

	"github.com/kasirkita/backend-kasir/internal/common"
)

// BodyLimit caps request payload sizes. POS payloads are small; a
// cart with hundreds of lines still fits well under the default 1 MiB.
type BodyLimit struct {
	Max int64
}

// Middleware rejects requests whose declared length exceeds the cap
// and wraps the body so oversized chunked uploads fail on read.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "ukuran permintaan terlalu besar", nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}
