package recovery

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"conti/internal/log"
	"conti/internal/middleware/trace"
)

// Middleware turns a handler panic into a logged 500 with a JSON body.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil || rec == http.ErrAbortHandler {
				if rec != nil {
					panic(rec)
				}
				return
			}
			ctx := r.Context()
			fields := log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent())
			fields["stack"] = string(debug.Stack())
			log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Panic recovered in HTTP handler",
				fmt.Errorf("panic: %v", rec), log.ComponentHTTP, "serve", fields)

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":      "internal server error",
				"request_id": trace.GetRequestID(ctx),
			})
		}()
		next.ServeHTTP(w, r)
	})
}
