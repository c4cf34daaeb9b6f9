package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RequestRecorder receives per-request metrics.
type RequestRecorder interface {
	Observe(route, method string, status int, duration time.Duration)
}

type Observability struct {
	logger   *slog.Logger
	recorder RequestRecorder
}

func NewObservability(logger *slog.Logger, recorder RequestRecorder) *Observability {
	if logger == nil {
		logger = slog.Default()
	}
	return &Observability{logger: logger, recorder: recorder}
}

// Middleware logs and measures each request under its route pattern.
func (o *Observability) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		duration := time.Since(start)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		if o.recorder != nil {
			o.recorder.Observe(route, r.Method, recorder.status, duration)
		}
		level := slog.LevelDebug
		if recorder.status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		o.logger.LogAttrs(r.Context(), level, "http request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", recorder.status),
			slog.Duration("duration", duration),
			slog.String("request_id", RequestIDFrom(r.Context())))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
