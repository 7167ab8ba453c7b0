package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/homedoc-backend/pkg/errors"
	"github.com/angelmondragon/homedoc-backend/pkg/redis/redistest"
)

const sessionsPath = "/api/v1/checkout/sessions"

func postSession(body, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, sessionsPath, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func sessionHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"sessionId":"cs_test_%d"}`, *calls)
	})
}

func TestIdempotencyPassesThroughWithoutHeader(t *testing.T) {
	store := redistest.New()
	var calls int
	handler := Idempotency("checkout", store, nil)(sessionHandler(&calls))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, postSession(`{"email":"a@example.com"}`, ""))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d", rec.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected handler to run for every request without a key, ran %d", calls)
	}
	if n := store.Count("replay:"); n != 0 {
		t.Fatalf("nothing should be stored without a key, found %d", n)
	}
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := redistest.New()
	var calls int
	handler := Idempotency("checkout", store, nil)(sessionHandler(&calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postSession(`{"email":"a@example.com"}`, "abc"))
	if first.Code != http.StatusOK {
		t.Fatalf("expected first response 200 got %d", first.Code)
	}

	again := httptest.NewRecorder()
	handler.ServeHTTP(again, postSession(`{"email":"a@example.com"}`, "abc"))
	if again.Code != http.StatusOK {
		t.Fatalf("expected replay status 200 got %d", again.Code)
	}
	if again.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected content-type header preserved")
	}
	if again.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatalf("expected replay marker header")
	}
	if got := strings.TrimSpace(again.Body.String()); got != `{"sessionId":"cs_test_1"}` {
		t.Fatalf("expected stored body got %s", got)
	}
	if calls != 1 {
		t.Fatalf("handler executed %d times, expected 1", calls)
	}
	if ttl := store.TTL(onlyReplayKey(t, store)); ttl != ReplayTTL {
		t.Fatalf("expected ttl %v got %v", ReplayTTL, ttl)
	}
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	store := redistest.New()
	var calls int
	handler := Idempotency("checkout", store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), postSession(`{}`, "retry-me"))
	}
	if calls != 2 {
		t.Fatalf("failed responses must not be replayed, handler ran %d times", calls)
	}
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	store := redistest.New()
	var calls int
	handler := Idempotency("checkout", store, nil)(sessionHandler(&calls))

	handler.ServeHTTP(httptest.NewRecorder(), postSession(`{"email":"a@example.com","cart":[1]}`, "xyz"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postSession(`{"email":"a@example.com","cart":[2]}`, "xyz"))
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse error response: %v", err)
	}
	if payload.Error.Code != string(pkgerrors.CodeConflict) {
		t.Fatalf("expected error code %s got %s", pkgerrors.CodeConflict, payload.Error.Code)
	}
}

func TestIdempotencyScopesKeyToPurchaser(t *testing.T) {
	store := redistest.New()
	var calls int
	handler := Idempotency("checkout", store, nil)(sessionHandler(&calls))

	handler.ServeHTTP(httptest.NewRecorder(), postSession(`{"email":"alice@example.com"}`, "shared"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postSession(`{"email":"bob@example.com"}`, "shared"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for a different purchaser got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "cs_test_2") {
		t.Fatalf("a different purchaser must get a fresh session, got %s", rec.Body.String())
	}
	if n := store.Count("replay:checkout:"); n != 2 {
		t.Fatalf("expected one stored record per purchaser, got %d", n)
	}
}

func TestIdempotencyStoreOutageIsDependencyError(t *testing.T) {
	store := redistest.New()
	store.Err = errors.New("connection refused")
	var calls int
	handler := Idempotency("checkout", store, nil)(sessionHandler(&calls))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postSession(`{}`, "k"))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", rec.Code)
	}
	if calls != 0 {
		t.Fatalf("handler must not run when the replay store is down")
	}
}

func TestCallerFingerprintNormalizesEmail(t *testing.T) {
	a := callerFingerprint([]byte(`{"email":" Doc@Example.com "}`))
	b := callerFingerprint([]byte(`{"email":"doc@example.com","cart":[]}`))
	if a != b {
		t.Fatalf("expected equal fingerprints, got %s and %s", a, b)
	}
	if callerFingerprint([]byte(`{"cart":[1]}`)) == callerFingerprint([]byte(`{"cart":[2]}`)) {
		t.Fatalf("anonymous bodies must not share a fingerprint")
	}
}

func onlyReplayKey(t *testing.T, store *redistest.Memory) string {
	t.Helper()
	keys := store.Keys("replay:")
	if len(keys) != 1 {
		t.Fatalf("expected one replay record, got %v", keys)
	}
	return keys[0]
}
