package usecase

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/metrics"
)

// newTestMetrics builds a metrics manager on a throwaway registry so tests in
// the package never collide.
func newTestMetrics() *metrics.MetricsManager {
	return metrics.NewMetricsManager("biscuit_test")
}

type MockReviewRepository struct {
	mock.Mock
}

func (m *MockReviewRepository) Upsert(ctx context.Context, review *domain.Review) (bool, error) {
	args := m.Called(ctx, review)
	return args.Bool(0), args.Error(1)
}

func (m *MockReviewRepository) FindOneAndDelete(ctx context.Context, author primitive.ObjectID, releaseID string) (*domain.Review, error) {
	args := m.Called(ctx, author, releaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *MockReviewRepository) OtherArtistReviewExists(ctx context.Context, author primitive.ObjectID, artistID, excludeReleaseID string) (bool, error) {
	args := m.Called(ctx, author, artistID, excludeReleaseID)
	return args.Bool(0), args.Error(1)
}

func (m *MockReviewRepository) FindFeed(ctx context.Context, filter domain.FeedFilter) ([]*domain.Review, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Review), args.Error(1)
}

func (m *MockReviewRepository) IncrementLikeCount(ctx context.Context, id primitive.ObjectID, delta int64) (*domain.Review, error) {
	args := m.Called(ctx, id, delta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Review), args.Error(1)
}

func (m *MockReviewRepository) AggregateAuthorStats(ctx context.Context) ([]domain.AuthorStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AuthorStats), args.Error(1)
}

type MockLikeRepository struct {
	mock.Mock
}

func (m *MockLikeRepository) Add(ctx context.Context, actor, review primitive.ObjectID) error {
	args := m.Called(ctx, actor, review)
	return args.Error(0)
}

func (m *MockLikeRepository) Remove(ctx context.Context, actor, review primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, actor, review)
	return args.Bool(0), args.Error(1)
}

func (m *MockLikeRepository) Exists(ctx context.Context, actor, review primitive.ObjectID) (bool, error) {
	args := m.Called(ctx, actor, review)
	return args.Bool(0), args.Error(1)
}

type MockUserStatsRepository struct {
	mock.Mock
}

func (m *MockUserStatsRepository) IncrementReviewStats(ctx context.Context, author primitive.ObjectID, releasesDelta, artistsDelta int64) error {
	args := m.Called(ctx, author, releasesDelta, artistsDelta)
	return args.Error(0)
}

func (m *MockUserStatsRepository) ReplaceAllStats(ctx context.Context, stats []domain.AuthorStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

type MockCatalogClient struct {
	mock.Mock
}

func (m *MockCatalogClient) Lookup(ctx context.Context, releaseID string) (*domain.Release, error) {
	args := m.Called(ctx, releaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Release), args.Error(1)
}

func (m *MockCatalogClient) Search(ctx context.Context, term string, params domain.SearchParams) ([]domain.Release, error) {
	args := m.Called(ctx, term, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Release), args.Error(1)
}

type MockFeedCache struct {
	mock.Mock
}

func (m *MockFeedCache) GetRelease(ctx context.Context, releaseID string) (*domain.Release, error) {
	args := m.Called(ctx, releaseID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Release), args.Error(1)
}

func (m *MockFeedCache) SetRelease(ctx context.Context, release *domain.Release, ttl time.Duration) error {
	args := m.Called(ctx, release, ttl)
	return args.Error(0)
}

func (m *MockFeedCache) GetProfileFeed(ctx context.Context, key string) ([]*domain.FeedEntry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.FeedEntry), args.Error(1)
}

func (m *MockFeedCache) SetProfileFeed(ctx context.Context, author, key string, entries []*domain.FeedEntry, ttl time.Duration) error {
	args := m.Called(ctx, author, key, entries, ttl)
	return args.Error(0)
}

func (m *MockFeedCache) InvalidateProfileFeed(ctx context.Context, author string) error {
	args := m.Called(ctx, author)
	return args.Error(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishReviewCreated(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishReviewUpdated(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishReviewDeleted(ctx context.Context, review *domain.Review) error {
	args := m.Called(ctx, review)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishLikeToggled(ctx context.Context, reviewID, actor primitive.ObjectID, liked bool, likeCount int64) error {
	args := m.Called(ctx, reviewID, actor, liked, likeCount)
	return args.Error(0)
}
