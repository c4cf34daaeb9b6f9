package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"

	"stableledger/storage/eventlog"
)

const IdempotencyHeader = "Idempotency-Key"

// ResponseStore persists responses keyed by idempotency key and caller.
type ResponseStore interface {
	FindResponse(ctx context.Context, key, caller string) (*eventlog.IdempotencyKey, bool, error)
	SaveResponse(ctx context.Context, rec *eventlog.IdempotencyKey) error
}

// WithIdempotency replays the stored response for a repeated POST carrying
// the same Idempotency-Key from the same caller. Server errors are not
// stored so the request can be retried.
func WithIdempotency(store ResponseStore, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if store == nil || key == "" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			caller := ""
			if addr, ok := CallerFrom(r.Context()); ok {
				caller = addr.Hex()
			}

			record, found, err := store.FindResponse(r.Context(), key, caller)
			if err != nil {
				logger.Error("idempotency lookup", slog.String("key", key), slog.Any("error", err))
				WriteError(w, http.StatusInternalServerError, "Internal", "")
				return
			}
			if found {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Idempotent-Replay", "true")
				w.WriteHeader(record.Status)
				_, _ = w.Write([]byte(record.Response))
				return
			}

			recorder := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			status := recorder.status
			if status == 0 {
				status = http.StatusOK
			}
			if status >= http.StatusInternalServerError {
				return
			}
			payload := &eventlog.IdempotencyKey{
				Key:       key,
				Caller:    caller,
				RequestID: RequestIDFrom(r.Context()),
				Method:    r.Method,
				Path:      r.URL.Path,
				Status:    status,
				Response:  recorder.buf.String(),
			}
			if err := store.SaveResponse(r.Context(), payload); err != nil {
				logger.Error("idempotency save", slog.String("key", key), slog.Any("error", err))
			}
		})
	}
}

// responseRecorder captures the response for idempotent operations.
type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if rr.status == 0 {
		rr.status = http.StatusOK
	}
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
