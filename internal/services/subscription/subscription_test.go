package subscription

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/pivot-calculator/internal/cache"
	"github.com/magabrotheeeer/pivot-calculator/internal/models"
	"github.com/magabrotheeeer/pivot-calculator/internal/storage"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) GetSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

type CacheMock struct{ mock.Mock }

func (m *CacheMock) GetSubscription(ctx context.Context, userID string) (*models.Subscription, bool, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Subscription), args.Bool(1), args.Error(2)
}

func (m *CacheMock) FillSubscription(ctx context.Context, sub *models.Subscription) error {
	return m.Called(ctx, sub).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newService(repo Repository, cache Cache) *Service {
	s := New(repo, cache, newNoopLogger())
	s.now = func() time.Time { return now }
	return s
}

func TestService_IsActive(t *testing.T) {
	tests := []struct {
		name string
		sub  *models.Subscription
		err  error
		want bool
	}{
		{name: "active", sub: &models.Subscription{UserID: "u1", Status: models.SubscriptionActive, EndDate: now.Add(time.Hour)}, want: true},
		{name: "active status but expired", sub: &models.Subscription{UserID: "u1", Status: models.SubscriptionActive, EndDate: now.Add(-time.Second)}},
		{name: "ends exactly now", sub: &models.Subscription{UserID: "u1", Status: models.SubscriptionActive, EndDate: now}},
		{name: "cancelled", sub: &models.Subscription{UserID: "u1", Status: models.SubscriptionCancelled, EndDate: now.Add(time.Hour)}},
		{name: "no subscription", err: storage.ErrSubscriptionNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(RepoMock)
			repo.On("GetSubscription", mock.Anything, "u1").Return(tt.sub, tt.err)

			got, err := newService(repo, nil).IsActive(context.Background(), "u1")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_IsActive_StoreError(t *testing.T) {
	repo := new(RepoMock)
	repo.On("GetSubscription", mock.Anything, "u1").Return(nil, errors.New("db down"))

	active, err := newService(repo, nil).IsActive(context.Background(), "u1")
	require.Error(t, err)
	assert.False(t, active)
}

func TestService_UsesCache(t *testing.T) {
	cached := &models.Subscription{UserID: "u1", Status: models.SubscriptionActive, EndDate: now.Add(time.Hour)}
	repo := new(RepoMock)
	cache := new(CacheMock)
	cache.On("GetSubscription", mock.Anything, "u1").Return(cached, true, nil)

	active, err := newService(repo, cache).IsActive(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, active)
	repo.AssertNotCalled(t, "GetSubscription", mock.Anything, mock.Anything)
}

func TestService_InactiveCachedRowIsRechecked(t *testing.T) {
	expired := &models.Subscription{UserID: "u1", Status: models.SubscriptionActive, EndDate: now.Add(-time.Minute)}
	renewed := &models.Subscription{UserID: "u1", Status: models.SubscriptionActive, EndDate: now.AddDate(0, 0, 29)}
	repo := new(RepoMock)
	repo.On("GetSubscription", mock.Anything, "u1").Return(renewed, nil).Once()
	cache := new(CacheMock)
	cache.On("GetSubscription", mock.Anything, "u1").Return(expired, true, nil)

	active, err := newService(repo, cache).IsActive(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, active)
	repo.AssertExpectations(t)
	cache.AssertNotCalled(t, "FillSubscription", mock.Anything, mock.Anything)
}

func TestService_CacheMissFillsCache(t *testing.T) {
	sub := &models.Subscription{UserID: "u1", Status: models.SubscriptionActive, EndDate: now.Add(time.Hour)}
	repo := new(RepoMock)
	repo.On("GetSubscription", mock.Anything, "u1").Return(sub, nil)
	cache := new(CacheMock)
	cache.On("GetSubscription", mock.Anything, "u1").Return(nil, false, errors.New("redis down"))
	cache.On("FillSubscription", mock.Anything, sub).Return(nil)

	got, err := newService(repo, cache).Get(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, sub, got)
	cache.AssertExpectations(t)
}

func TestService_Details(t *testing.T) {
	repo := new(RepoMock)
	sub := &models.Subscription{UserID: "u1", Plan: models.Plan1M, Status: models.SubscriptionActive, EndDate: now.Add(36 * time.Hour)}
	repo.On("GetSubscription", mock.Anything, "u1").Return(sub, nil)
	repo.On("GetSubscription", mock.Anything, "u2").Return(nil, storage.ErrSubscriptionNotFound)

	s := newService(repo, nil)

	d, err := s.Details(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, d.Active)
	assert.Equal(t, 2, d.RemainingDays)
	assert.Equal(t, sub, d.Subscription)

	d, err = s.Details(context.Background(), "u2")
	require.NoError(t, err)
	assert.Equal(t, &Details{}, d)
}

// committingRepo отдает строку, прочитанную до оплаты, а во время чтения
// выполняет onRead: фиксацию оплаты и действия сверки с кешем.
type committingRepo struct {
	mu     sync.Mutex
	row    models.Subscription
	onRead func()
}

func (r *committingRepo) GetSubscription(_ context.Context, _ string) (*models.Subscription, error) {
	r.mu.Lock()
	row := r.row
	hook := r.onRead
	r.onRead = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return &row, nil
}

func (r *committingRepo) commit(sub models.Subscription) {
	r.mu.Lock()
	r.row = sub
	r.mu.Unlock()
}

func newRedisCache(t *testing.T) *cache.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &cache.Cache{Db: rdb, TTL: 5 * time.Minute}
}

func TestService_PaymentDuringCacheFillGrantsAccess(t *testing.T) {
	expired := models.Subscription{UserID: "u1", Status: models.SubscriptionActive, EndDate: now.Add(-time.Hour)}
	renewed := models.Subscription{UserID: "u1", Status: models.SubscriptionActive, EndDate: now.AddDate(0, 0, 30)}

	tests := []struct {
		name  string
		after func(t *testing.T, c *cache.Cache)
	}{
		{
			name: "committed row cached",
			after: func(t *testing.T, c *cache.Cache) {
				sub := renewed
				require.NoError(t, c.SetSubscription(context.Background(), &sub))
			},
		},
		{
			name: "cache write failed, key invalidated",
			after: func(t *testing.T, c *cache.Cache) {
				require.NoError(t, c.InvalidateSubscription(context.Background(), "u1"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newRedisCache(t)
			repo := &committingRepo{row: expired}
			repo.onRead = func() {
				repo.commit(renewed)
				tt.after(t, c)
			}
			s := newService(repo, c)

			first, err := s.IsActive(context.Background(), "u1")
			require.NoError(t, err)
			assert.False(t, first)

			second, err := s.IsActive(context.Background(), "u1")
			require.NoError(t, err)
			assert.True(t, second)

			d, err := s.Details(context.Background(), "u1")
			require.NoError(t, err)
			assert.True(t, d.Active)
			assert.Equal(t, 30, d.RemainingDays)
		})
	}
}
