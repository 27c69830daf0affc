package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// SlowRequestThreshold is the duration above which a completed request is
// logged at warn level. Cold warehouse loads usually take a few seconds.
const SlowRequestThreshold = 10 * time.Second

// Logger returns a middleware that logs one line per completed request:
// error level for 5xx, warn level for slow requests, info otherwise.
// Handlers reach the same logger through zerolog.Ctx.
func Logger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newStatusRecorder(w)

			next.ServeHTTP(wrapped, r.WithContext(log.WithContext(r.Context())))

			duration := time.Since(start)
			requestID := GetRequestID(r.Context())

			spanCtx := trace.SpanContextFromContext(r.Context())
			traceID := ""
			spanID := ""
			if spanCtx.IsValid() {
				traceID = spanCtx.TraceID().String()
				spanID = spanCtx.SpanID().String()
			}

			var event *zerolog.Event
			switch {
			case wrapped.statusCode >= http.StatusInternalServerError:
				event = log.Error()
			case duration >= SlowRequestThreshold:
				event = log.Warn().Bool("slow", true)
			default:
				event = log.Info()
			}
			if id := sessionID(r); id != "" {
				event = event.Str("session_id", id)
			}

			event.
				Str("request_id", requestID).
				Str("trace_id", traceID).
				Str("span_id", spanID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("route", routePattern(r)).
				Int("status", wrapped.statusCode).
				Int64("bytes", wrapped.written).
				Dur("duration", duration).
				Str("remote_addr", r.RemoteAddr).
				Str("user_agent", r.UserAgent()).
				Msg("request completed")
		})
	}
}
