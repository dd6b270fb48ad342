package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/flexconvert/flexconvert/internal/domain"
	"github.com/flexconvert/flexconvert/internal/repository"
	"github.com/flexconvert/flexconvert/internal/storage"
)

// =============================================================================
// In-memory Share Repository
// =============================================================================

// MockShareRepository is a map-backed repository.ShareRepository.
type MockShareRepository struct {
	mu        sync.Mutex
	shares    map[string]*domain.Share
	createErr error
	deleteErr map[string]error
}

func NewMockShareRepository() *MockShareRepository {
	return &MockShareRepository{
		shares:    make(map[string]*domain.Share),
		deleteErr: make(map[string]error),
	}
}

func (m *MockShareRepository) Create(ctx context.Context, share *domain.Share) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, exists := m.shares[share.ID]; exists {
		return domain.ErrShareAlreadyExists
	}
	stored := *share
	m.shares[share.ID] = &stored
	return nil
}

func (m *MockShareRepository) GetByID(ctx context.Context, id string) (*domain.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	share, ok := m.shares[id]
	if !ok {
		return nil, domain.ErrShareNotFound
	}
	out := *share
	return &out, nil
}

func (m *MockShareRepository) ListLive(ctx context.Context, filter domain.ShareFilter) (*repository.ListResult[domain.Share], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var live []*domain.Share
	for _, s := range m.shares {
		if !s.IsLive(filter.Now) {
			continue
		}
		if filter.Type != "" && s.Type != filter.Type {
			continue
		}
		out := *s
		live = append(live, &out)
	}
	sort.Slice(live, func(i, j int) bool {
		if !live[i].CreatedAt.Equal(live[j].CreatedAt) {
			return live[i].CreatedAt.After(live[j].CreatedAt)
		}
		return live[i].ID < live[j].ID
	})

	total := int64(len(live))
	start := min(filter.Offset, len(live))
	end := min(start+filter.Limit, len(live))

	return &repository.ListResult[domain.Share]{
		Items:  live[start:end],
		Total:  total,
		Offset: filter.Offset,
		Limit:  filter.Limit,
	}, nil
}

func (m *MockShareRepository) IncrementDownload(ctx context.Context, id string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	share, ok := m.shares[id]
	if !ok || !share.IsLive(now) {
		return false, nil
	}
	share.DownloadCount++
	share.UpdatedAt = now
	return true, nil
}

func (m *MockShareRepository) ListExpired(ctx context.Context, now time.Time, limit, offset int) ([]*domain.Share, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []*domain.Share
	for _, s := range m.shares {
		if s.IsExpired(now) {
			out := *s
			expired = append(expired, &out)
		}
	}
	sort.Slice(expired, func(i, j int) bool {
		if !expired[i].ExpiresAt.Equal(*expired[j].ExpiresAt) {
			return expired[i].ExpiresAt.Before(*expired[j].ExpiresAt)
		}
		return expired[i].ID < expired[j].ID
	})
	if offset >= len(expired) {
		return nil, nil
	}
	expired = expired[offset:]
	if len(expired) > limit {
		expired = expired[:limit]
	}
	return expired, nil
}

func (m *MockShareRepository) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.deleteErr[id]; err != nil {
		return err
	}
	if _, ok := m.shares[id]; !ok {
		return domain.ErrShareNotFound
	}
	delete(m.shares, id)
	return nil
}

// Helper to insert a share directly
func (m *MockShareRepository) Put(share *domain.Share) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *share
	m.shares[share.ID] = &stored
}

// =============================================================================
// testify Mocks
// =============================================================================

type mockUsageRepository struct {
	mock.Mock
}

func (m *mockUsageRepository) Insert(ctx context.Context, event *domain.UsageEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockUsageRepository) AggregateByTool(ctx context.Context, filter domain.UsageFilter) ([]domain.ToolUsage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ToolUsage), args.Error(1)
}

func (m *mockUsageRepository) Count(ctx context.Context, filter domain.UsageFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockUsageRepository) DailySeries(ctx context.Context, filter domain.UsageFilter) ([]domain.DailyCount, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DailyCount), args.Error(1)
}

type mockObjectStore struct {
	mock.Mock
}

func (m *mockObjectStore) PresignUpload(ctx context.Context, key, contentType string, size int64, expiry time.Duration) (*storage.PresignedRequest, error) {
	args := m.Called(ctx, key, contentType, size, expiry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PresignedRequest), args.Error(1)
}

func (m *mockObjectStore) PresignDownload(ctx context.Context, key, fileName string, expiry time.Duration) (*storage.PresignedRequest, error) {
	args := m.Called(ctx, key, fileName, expiry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PresignedRequest), args.Error(1)
}

func (m *mockObjectStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

// memoryCache is a trivial repository.Cache for stats caching tests.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return v, nil
}

func (c *memoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

var (
	_ repository.ShareRepository = (*MockShareRepository)(nil)
	_ repository.UsageRepository = (*mockUsageRepository)(nil)
	_ repository.Cache           = (*memoryCache)(nil)
	_ storage.ObjectStore        = (*mockObjectStore)(nil)
)
