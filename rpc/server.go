package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"stableledger/core"
	"stableledger/core/types"
	"stableledger/rpc/middleware"
	"stableledger/storage/eventlog"
)

const maxBodyBytes = 1 << 20

// EventSource serves the committed event journal.
type EventSource interface {
	Query(ctx context.Context, filter eventlog.Filter) ([]*types.Event, error)
}

// Config wires the API to the ledger and its supporting services. Nil
// optional fields disable the matching feature.
type Config struct {
	Ledger        *core.Ledger
	Events        EventSource
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	Idempotency   middleware.ResponseStore
	Metrics       http.Handler
	Logger        *slog.Logger
}

type Server struct {
	ledger *core.Ledger
	events EventSource
	logger *slog.Logger
}

// NewHandler builds the HTTP API.
func NewHandler(cfg Config) (http.Handler, error) {
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("rpc: ledger required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{ledger: cfg.Ledger, events: cfg.Events, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if cfg.Observability != nil {
		r.Use(cfg.Observability.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	r.Route("/v1", func(v1 chi.Router) {
		if cfg.Authenticator != nil {
			v1.Use(cfg.Authenticator.Middleware)
		}
		if cfg.RateLimiter != nil {
			v1.Use(cfg.RateLimiter.Middleware)
		}
		if cfg.Idempotency != nil {
			v1.Use(middleware.WithIdempotency(cfg.Idempotency, logger))
		}
		s.mountOrders(v1)
		s.mountFunds(v1)
		s.mountRewards(v1)
		s.mountAdmin(v1)
		s.mountOracle(v1)
		s.mountTokens(v1)
		s.mountViews(v1)
	})
	return r, nil
}

// caller returns the authenticated account or writes a 401.
func caller(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	addr, ok := middleware.CallerFrom(r.Context())
	if !ok {
		middleware.WriteError(w, http.StatusUnauthorized, "Unauthenticated", errCallerRequired.Error())
		return common.Address{}, false
	}
	return addr, true
}

// decode reads a JSON body into v, rejecting unknown fields. An empty body
// leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && err != io.EOF {
		writeBadRequest(w, fmt.Errorf("decode request: %w", err))
		return false
	}
	return true
}

func pathAddress(w http.ResponseWriter, r *http.Request, name string) (common.Address, bool) {
	addr, err := parseAddress(name, chi.URLParam(r, name))
	if err != nil {
		writeBadRequest(w, err)
		return common.Address{}, false
	}
	return addr, true
}

func pathRewardID(w http.ResponseWriter, r *http.Request) ([32]byte, bool) {
	id, err := ParseRewardID(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, err)
		return id, false
	}
	return id, true
}

func writeOK(w http.ResponseWriter, v any) {
	if v == nil {
		v = map[string]string{"status": "ok"}
	}
	middleware.WriteJSON(w, http.StatusOK, v)
}
