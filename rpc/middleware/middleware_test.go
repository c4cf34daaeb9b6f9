package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"stableledger/storage/eventlog"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var alice = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthenticatorResolvesCaller(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Issuer: "ledgerctl", Audience: "ledgerd"}, nil)
	token, err := IssueToken(testSecret, TokenRequest{Subject: alice, Issuer: "ledgerctl", Audience: "ledgerd", TTL: time.Minute}, time.Now())
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	var seen common.Address
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/mint", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if seen != alice {
		t.Fatalf("caller mismatch: %s", seen.Hex())
	}
}

func TestAuthenticatorRejectsBadTokens(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, Audience: "ledgerd"}, nil)
	now := time.Now()
	wrongAudience, _ := IssueToken(testSecret, TokenRequest{Subject: alice, Audience: "other"}, now)
	expired, _ := IssueToken(testSecret, TokenRequest{Subject: alice, Audience: "ledgerd", TTL: time.Minute}, now.Add(-time.Hour))
	wrongKey, _ := IssueToken(strings.Repeat("x", 32), TokenRequest{Subject: alice, Audience: "ledgerd"}, now)

	cases := map[string]string{
		"missing":        "",
		"malformed":      "Bearer not-a-jwt",
		"wrong audience": "Bearer " + wrongAudience,
		"expired":        "Bearer " + expired,
		"wrong key":      "Bearer " + wrongKey,
	}
	for name, header := range cases {
		req := httptest.NewRequest(http.MethodPost, "/v1/mint", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		res := httptest.NewRecorder()
		auth.Middleware(okHandler()).ServeHTTP(res, req)
		if res.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", name, res.Code)
		}
	}
}

func TestAnonymousReads(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{HMACSecret: testSecret, AnonymousReads: true}, nil)
	res := httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/limits", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected anonymous GET to pass, got %d", res.Code)
	}
	res = httptest.NewRecorder()
	auth.Middleware(okHandler()).ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/mint", nil))
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected anonymous POST to fail, got %d", res.Code)
	}
}

func TestIssueTokenRequiresSubject(t *testing.T) {
	if _, err := IssueToken(testSecret, TokenRequest{}, time.Now()); err == nil {
		t.Fatalf("expected zero subject to be rejected")
	}
	if _, err := IssueToken("", TokenRequest{Subject: alice}, time.Now()); err == nil {
		t.Fatalf("expected empty secret to be rejected")
	}
}

type throttles struct{ count int }

func (t *throttles) RecordThrottle(string, string) { t.count++ }

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	rec := new(throttles)
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1}, rec)
	handler := limiter.Middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/limits", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
	if rec.count != 1 {
		t.Fatalf("expected one throttle, got %d", rec.count)
	}
}

func TestRateLimiterSeparatesCallers(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RatePerSecond: 1, Burst: 1}, nil)
	handler := limiter.Middleware(okHandler())

	for _, caller := range []common.Address{alice, common.HexToAddress("0xb0b")} {
		req := httptest.NewRequest(http.MethodGet, "/v1/limits", nil)
		req = req.WithContext(WithCaller(req.Context(), caller))
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected first request from %s to succeed, got %d", caller.Hex(), res.Code)
		}
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{}, nil)
	handler := limiter.Middleware(okHandler())
	for i := 0; i < 5; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
		if res.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, res.Code)
		}
	}
}

func TestRequestIDAssignedAndPropagated(t *testing.T) {
	var inner string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inner = RequestIDFrom(r.Context())
	}))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/", nil))
	if inner == "" || res.Header().Get(RequestIDHeader) != inner {
		t.Fatalf("expected generated id to match header, got %q / %q", inner, res.Header().Get(RequestIDHeader))
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if inner != "abc-123" {
		t.Fatalf("expected caller id to be kept, got %q", inner)
	}
}

type memResponses struct {
	records map[string]*eventlog.IdempotencyKey
}

func (m *memResponses) FindResponse(_ context.Context, key, caller string) (*eventlog.IdempotencyKey, bool, error) {
	rec, ok := m.records[key+"|"+caller]
	return rec, ok, nil
}

func (m *memResponses) SaveResponse(_ context.Context, rec *eventlog.IdempotencyKey) error {
	if _, ok := m.records[rec.Key+"|"+rec.Caller]; !ok {
		m.records[rec.Key+"|"+rec.Caller] = rec
	}
	return nil
}

func TestIdempotencyReplaysResponse(t *testing.T) {
	store := &memResponses{records: map[string]*eventlog.IdempotencyKey{}}
	calls := 0
	handler := WithIdempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		WriteJSON(w, http.StatusCreated, map[string]int{"call": calls})
	}))

	send := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/mint", strings.NewReader("{}"))
		req.Header.Set(IdempotencyHeader, "order-1")
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		return res
	}
	first := send()
	second := send()
	if calls != 1 {
		t.Fatalf("expected handler to run once, ran %d times", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("expected replayed response, got %d %q", second.Code, second.Body.String())
	}
	if second.Header().Get("Idempotent-Replay") != "true" {
		t.Fatalf("expected replay header")
	}
}

func TestIdempotencySkipsServerErrors(t *testing.T) {
	store := &memResponses{records: map[string]*eventlog.IdempotencyKey{}}
	handler := WithIdempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, http.StatusInternalServerError, "Internal", "boom")
	}))
	req := httptest.NewRequest(http.MethodPost, "/v1/mint", nil)
	req.Header.Set(IdempotencyHeader, "order-2")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if len(store.records) != 0 {
		t.Fatalf("expected server error not to be stored")
	}
}
