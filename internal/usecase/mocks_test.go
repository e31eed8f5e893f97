package usecase

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/listproxy/backend/internal/domain"
)

// MockCacheRepository is a mock implementation of domain.CacheRepository
type MockCacheRepository struct {
	mu       sync.Mutex
	data     map[string][]byte
	getError error
	setError error
	sets     int
}

func NewMockCacheRepository() *MockCacheRepository {
	return &MockCacheRepository{data: make(map[string][]byte)}
}

func (m *MockCacheRepository) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, domain.ErrCacheMiss
}

func (m *MockCacheRepository) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.setError != nil {
		return m.setError
	}
	m.data[key] = value
	return nil
}

// MockUpstreamClient is a mock implementation of domain.UpstreamClient
type MockUpstreamClient struct {
	mu sync.Mutex

	primaryItems   []domain.ProductItem
	primaryErr     error
	secondaryItems []domain.ProductItem
	secondaryErr   error
	page           []byte
	pageErr        error
	resource       *domain.Resource
	resourceErr    error

	// block makes every call wait for its context to end
	block bool

	calls       []string
	lastQuery   domain.SearchQuery
	lastTarget  domain.ProxyTarget
	lastHeaders map[string]string
}

func (m *MockUpstreamClient) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

func (m *MockUpstreamClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockUpstreamClient) wait(ctx context.Context) error {
	if !m.block {
		return nil
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *MockUpstreamClient) SearchPrimary(ctx context.Context, query domain.SearchQuery) ([]domain.ProductItem, error) {
	m.record(StagePrimaryAPI)
	m.lastQuery = query
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.primaryItems, m.primaryErr
}

func (m *MockUpstreamClient) SearchSecondary(ctx context.Context, query domain.SearchQuery) ([]domain.ProductItem, error) {
	m.record(StageSecondaryAPI)
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.secondaryItems, m.secondaryErr
}

func (m *MockUpstreamClient) FetchPage(ctx context.Context, target domain.ProxyTarget) ([]byte, error) {
	m.record(StageRawHTML)
	m.lastTarget = target
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	return m.page, m.pageErr
}

func (m *MockUpstreamClient) FetchResource(ctx context.Context, target domain.ProxyTarget, header map[string]string) (*domain.Resource, error) {
	m.record("resource")
	m.lastTarget = target
	m.lastHeaders = header
	if m.resourceErr != nil {
		return nil, m.resourceErr
	}
	return m.resource, nil
}

// MockCatalog is a mock implementation of domain.Catalog
type MockCatalog struct {
	brands   map[string][]domain.ProductItem
	fallback []domain.ProductItem
}

func (m *MockCatalog) Brand(brand string) ([]domain.ProductItem, bool) {
	items, ok := m.brands[strings.ToLower(brand)]
	return items, ok
}

func (m *MockCatalog) Filter(term string) []domain.ProductItem {
	if term == "" {
		return m.fallback
	}
	var out []domain.ProductItem
	for _, item := range m.fallback {
		if strings.Contains(strings.ToLower(item.Title), strings.ToLower(term)) {
			out = append(out, item)
		}
	}
	return out
}
