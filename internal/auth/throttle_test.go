package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/shopcore/storefront-api/internal/auth"
	"github.com/shopcore/storefront-api/internal/config"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: make(map[string]int64)}
}

func (f *fakeCounter) CountInWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, 0, f.err
	}
	f.counts[key]++
	return f.counts[key], window, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestThrottler_LimitEnforced(t *testing.T) {
	counter := newFakeCounter()
	throttler := auth.NewThrottler(counter, map[string]config.ScopeLimit{
		"orders": {Requests: 2, Window: time.Minute},
	})
	handler := throttler.Limit("orders")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "request %d should pass", i+1)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestThrottler_ScopesAreIsolated(t *testing.T) {
	counter := newFakeCounter()
	throttler := auth.NewThrottler(counter, map[string]config.ScopeLimit{
		"orders":   {Requests: 1, Window: time.Minute},
		"products": {Requests: 1, Window: time.Minute},
	})
	orderLimited := throttler.Limit("orders")(okHandler())
	productLimited := throttler.Limit("products")(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"

	rec := httptest.NewRecorder()
	orderLimited.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	orderLimited.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Exhausting the orders scope must not touch the products quota.
	rec = httptest.NewRecorder()
	productLimited.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestThrottler_CallersHaveSeparateQuotas(t *testing.T) {
	counter := newFakeCounter()
	throttler := auth.NewThrottler(counter, map[string]config.ScopeLimit{
		"orders": {Requests: 1, Window: time.Minute},
	})
	handler := throttler.Limit("orders")(okHandler())

	alice := uuid.Must(uuid.NewV4())
	bob := uuid.Must(uuid.NewV4())

	send := func(userID uuid.UUID) int {
		req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{UserID: userID}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, send(alice))
	assert.Equal(t, http.StatusTooManyRequests, send(alice))
	assert.Equal(t, http.StatusOK, send(bob))
}

func TestThrottler_FailsOpenOnBackendError(t *testing.T) {
	counter := newFakeCounter()
	counter.err = errors.New("redis down")
	throttler := auth.NewThrottler(counter, map[string]config.ScopeLimit{
		"orders": {Requests: 1, Window: time.Minute},
	})
	handler := throttler.Limit("orders")(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/orders/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestThrottler_UnknownScopePassesThrough(t *testing.T) {
	throttler := auth.NewThrottler(newFakeCounter(), map[string]config.ScopeLimit{})
	handler := throttler.Limit("unconfigured")(okHandler())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
