package middleware

import (
	"net/http"

	"github.com/avelasco/taskboard-api/internal/api/shared"
)

// TraceID attaches a trace identifier to each request context so
// responses and log lines can be correlated. An incoming X-Trace-ID
// header is honored; otherwise a fresh ID is generated.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		ctx := shared.SetTraceID(r.Context(), traceID)

		w.Header().Set("X-Trace-ID", shared.GetTraceID(ctx))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
