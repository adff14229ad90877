package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/devicehub-backend/pkg/errors"
)

const checkoutPath = "/api/v1/offers/2b0a3c1e-1111-4c1e-9a55-0b5d7f1f0001/checkout"

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key], _ = value.(string)
	return true, nil
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("test:%s:%s", scope, id)
}

func postCheckout(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, checkoutPath, strings.NewReader(body))
	if key != "" {
		req.Header.Set(idempotencyHeader, key)
	}
	return req
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestReplayTTL(t *testing.T) {
	cases := []struct {
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{http.MethodPost, checkoutPath, moneyReplayTTL, true},
		{http.MethodPost, "/api/v1/orders/{orderId}/payment-intent", moneyReplayTTL, true},
		{http.MethodPost, "/api/v1/admin/orders/abc/cancel", moneyReplayTTL, true},
		{http.MethodPost, "/api/v1/offers", standardReplayTTL, true},
		{http.MethodPost, "/api/v1/orders/abc/re-offer/respond", standardReplayTTL, true},
		{http.MethodPost, "/api/v1/admin/inventory/restock", standardReplayTTL, true},
		{http.MethodPost, "/api/v1/offers/abc/accept", 0, false},
		{http.MethodPost, "/api/v1/orders//payment-intent", 0, false},
		{http.MethodGet, "/api/v1/orders/abc/payment-intent", 0, false},
	}
	for _, tc := range cases {
		ttl, ok := replayTTL(tc.method, tc.path)
		require.Equal(t, tc.ok, ok, "%s %s", tc.method, tc.path)
		require.Equal(t, tc.want, ttl, "%s %s", tc.method, tc.path)
	}
}

func TestIdempotencyRequiresKey(t *testing.T) {
	called := false
	handler := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postCheckout("", `{"payment_method":"wire"}`))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, called)
}

func TestIdempotencyReplaysFirstResponse(t *testing.T) {
	calls := 0
	handler := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"order_number":"ORD-0000001"}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postCheckout("abc", `{"payment_method":"wire"}`))
	require.Equal(t, http.StatusCreated, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postCheckout("abc", `{"payment_method":"wire"}`))
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, "application/json", second.Header().Get("Content-Type"))
	require.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	require.JSONEq(t, `{"order_number":"ORD-0000001"}`, second.Body.String())
	require.Equal(t, 1, calls)
}

func TestIdempotencyRejectsChangedBody(t *testing.T) {
	handler := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), postCheckout("xyz", `{"payment_method":"wire"}`))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postCheckout("xyz", `{"payment_method":"card"}`))
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, rec))
}

func TestIdempotencyInFlightKeyConflicts(t *testing.T) {
	store := newMemoryStore()
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			inner = httptest.NewRecorder()
			handler.ServeHTTP(inner, postCheckout("dup", `{"payment_method":"wire"}`))
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postCheckout("dup", `{"payment_method":"wire"}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, inner)
	require.Equal(t, http.StatusConflict, inner.Code)
	require.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, inner))
}

func TestIdempotencyServerErrorIsNotRecorded(t *testing.T) {
	calls := 0
	handler := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, postCheckout("retry", `{}`))
	require.Equal(t, http.StatusServiceUnavailable, first.Code)

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, postCheckout("retry", `{}`))
	require.Equal(t, http.StatusCreated, second.Code)
	require.Equal(t, 2, calls)
}

func TestIdempotencyIgnoresOtherRoutes(t *testing.T) {
	called := false
	handler := Idempotency(newMemoryStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, called)
}
