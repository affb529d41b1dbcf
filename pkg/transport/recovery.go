package transport

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/vetora/vetora/pkg/api"
)

// Recovery returns middleware that catches panics in the handler and
// converts them to SERVER_ERROR responses. The panic value is logged, never
// sent to the client. The server continues to accept new requests after a
// panic is recovered.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := &statusRecorder{ResponseWriter: w}
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					logger.Error("panic serving request",
						"request_id", RequestIDFromContext(r.Context()),
						"method", r.Method,
						"path", r.URL.Path,
						"panic", p,
						"stack", string(debug.Stack()),
					)
					if !rec.wroteHeader {
						WriteError(w, api.NewServerError())
					}
				}
			}()
			next.ServeHTTP(rec, r)
		})
	}
}
