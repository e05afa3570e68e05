package sitegate

import "net/http"

// MaxBodySize returns middleware that limits request body size using
// http.MaxBytesReader. Put it on public write endpoints so an oversized
// body stops allocating at the limit instead of being read in full.
//
// The middleware only wraps the body; the limit is enforced when the body
// is read. bind.JSON detects the violation during decode and responds with
// a 413. Handlers reading the body themselves must check for
// *http.MaxBytesError:
//
//	r.Use(sitegate.Handler())
//	r.Use(sitegate.MaxBodySize(1 << 20)) // 1MB
func MaxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
