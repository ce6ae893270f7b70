package http

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid"

	"github.com/shopcore/storefront-api/internal/auth"
	"github.com/shopcore/storefront-api/internal/cache"
	"github.com/shopcore/storefront-api/internal/config"
	"github.com/shopcore/storefront-api/internal/order"
	"github.com/shopcore/storefront-api/internal/product"
	"github.com/shopcore/storefront-api/internal/user"
)

const testSecret = "test-secret"

// memStore is an in-memory PageStore with a controllable clock.
type memStore struct {
	mu   sync.Mutex
	data map[string]memEntry
	now  func() time.Time
}

type memEntry struct {
	val       []byte
	expiresAt time.Time
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]memEntry), now: time.Now}
}

func (m *memStore) GetBytes(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.data[key]
	if !ok || m.now().After(entry.expiresAt) {
		return nil, cache.ErrMiss
	}
	return entry.val, nil
}

func (m *memStore) SetBytes(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = memEntry{val: val, expiresAt: m.now().Add(ttl)}
	return nil
}

type memCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func newMemCounter() *memCounter {
	return &memCounter{counts: make(map[string]int64)}
}

func (m *memCounter) CountInWindow(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key]++
	return m.counts[key], window, nil
}

type mockProductService struct {
	listFunc   func(ctx context.Context, f product.Filter) ([]product.Product, error)
	getFunc    func(ctx context.Context, id int64) (*product.Product, error)
	createFunc func(ctx context.Context, p *product.Product) (*product.Product, error)
	updateFunc func(ctx context.Context, p *product.Product) (*product.Product, error)
	deleteFunc func(ctx context.Context, id int64) error
	infoFunc   func(ctx context.Context) (*product.Info, error)
}

func (m *mockProductService) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	return m.listFunc(ctx, f)
}

func (m *mockProductService) Get(ctx context.Context, id int64) (*product.Product, error) {
	return m.getFunc(ctx, id)
}

func (m *mockProductService) Create(ctx context.Context, p *product.Product) (*product.Product, error) {
	return m.createFunc(ctx, p)
}

func (m *mockProductService) Update(ctx context.Context, p *product.Product) (*product.Product, error) {
	return m.updateFunc(ctx, p)
}

func (m *mockProductService) Delete(ctx context.Context, id int64) error {
	return m.deleteFunc(ctx, id)
}

func (m *mockProductService) Info(ctx context.Context) (*product.Info, error) {
	return m.infoFunc(ctx)
}

type mockOrderService struct {
	createFunc func(ctx context.Context, req order.Requester, items []order.ItemInput) (*order.Order, error)
	getFunc    func(ctx context.Context, req order.Requester, orderID uuid.UUID) (*order.Order, error)
	listFunc   func(ctx context.Context, req order.Requester, f order.Filter) ([]order.Order, error)
	updateFunc func(ctx context.Context, req order.Requester, orderID uuid.UUID, newStatus order.Status, items []order.ItemInput) (*order.Order, error)
	deleteFunc func(ctx context.Context, req order.Requester, orderID uuid.UUID) error
}

func (m *mockOrderService) Create(ctx context.Context, req order.Requester, items []order.ItemInput) (*order.Order, error) {
	return m.createFunc(ctx, req, items)
}

func (m *mockOrderService) Get(ctx context.Context, req order.Requester, orderID uuid.UUID) (*order.Order, error) {
	return m.getFunc(ctx, req, orderID)
}

func (m *mockOrderService) List(ctx context.Context, req order.Requester, f order.Filter) ([]order.Order, error) {
	return m.listFunc(ctx, req, f)
}

func (m *mockOrderService) Update(ctx context.Context, req order.Requester, orderID uuid.UUID, newStatus order.Status, items []order.ItemInput) (*order.Order, error) {
	return m.updateFunc(ctx, req, orderID, newStatus, items)
}

func (m *mockOrderService) Delete(ctx context.Context, req order.Requester, orderID uuid.UUID) error {
	return m.deleteFunc(ctx, req, orderID)
}

type mockUserService struct {
	listFunc     func(ctx context.Context) ([]user.User, error)
	registerFunc func(ctx context.Context, u *user.User, password string) (*user.User, error)
}

func (m *mockUserService) List(ctx context.Context) ([]user.User, error) {
	return m.listFunc(ctx)
}

func (m *mockUserService) Register(ctx context.Context, u *user.User, password string) (*user.User, error) {
	return m.registerFunc(ctx, u, password)
}

// newTestRouter wires the real router and middleware around mock services.
func newTestRouter(t *testing.T, ps product.Service, os order.Service, us user.Service) (chi.Router, *auth.Verifier) {
	t.Helper()

	verifier := auth.NewVerifier(testSecret)
	router := NewRouter(RouterDeps{
		Verifier: verifier,
		Throttler: auth.NewThrottler(newMemCounter(), map[string]config.ScopeLimit{
			"products": {Requests: 10000, Window: time.Minute},
			"orders":   {Requests: 10000, Window: time.Minute},
		}),
		Pages:    newMemStore(),
		ListTTL:  time.Minute,
		Products: NewProductHandler(ps, 0),
		Orders:   NewOrderHandler(os),
		Users:    NewUserHandler(us),
	})
	return router, verifier
}

func bearerToken(t *testing.T, verifier *auth.Verifier, id auth.Identity) string {
	t.Helper()
	token, err := verifier.Issue(id, time.Minute)
	if err != nil {
		t.Fatalf("failed to issue test token: %v", err)
	}
	return "Bearer " + token
}
