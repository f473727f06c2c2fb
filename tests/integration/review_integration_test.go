//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sloanfm/biscuit/internal/adapter/repository/mongodb"
	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
	"github.com/sloanfm/biscuit/internal/platform/metrics"
	"github.com/sloanfm/biscuit/internal/usecase"
	"github.com/sloanfm/biscuit/internal/worker"
)

var mongoClient *mongo.Client

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not construct docker pool: %s", err)
	}
	if err := pool.Client.Ping(); err != nil {
		log.Fatalf("Could not connect to Docker: %s", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        "7.0",
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("Could not start mongo container: %s", err)
	}

	uri := fmt.Sprintf("mongodb://localhost:%s", resource.GetPort("27017/tcp"))
	pool.MaxWait = 60 * time.Second
	if err := pool.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		if err != nil {
			return err
		}
		if err := client.Ping(ctx, nil); err != nil {
			return err
		}
		mongoClient = client
		return nil
	}); err != nil {
		log.Fatalf("Could not connect to mongo container: %s", err)
	}

	code := m.Run()

	if err := pool.Purge(resource); err != nil {
		log.Fatalf("Could not purge mongo container: %s", err)
	}
	os.Exit(code)
}

// noopCache satisfies domain.FeedCache without caching anything, keeping the
// tests pinned to store behavior.
type noopCache struct{}

func (noopCache) GetRelease(context.Context, string) (*domain.Release, error) { return nil, nil }
func (noopCache) SetRelease(context.Context, *domain.Release, time.Duration) error {
	return nil
}
func (noopCache) GetProfileFeed(context.Context, string) ([]*domain.FeedEntry, error) {
	return nil, nil
}
func (noopCache) SetProfileFeed(context.Context, string, string, []*domain.FeedEntry, time.Duration) error {
	return nil
}
func (noopCache) InvalidateProfileFeed(context.Context, string) error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishReviewCreated(context.Context, *domain.Review) error { return nil }
func (noopPublisher) PublishReviewUpdated(context.Context, *domain.Review) error { return nil }
func (noopPublisher) PublishReviewDeleted(context.Context, *domain.Review) error { return nil }
func (noopPublisher) PublishLikeToggled(context.Context, primitive.ObjectID, primitive.ObjectID, bool, int64) error {
	return nil
}

// stubCatalog answers every lookup with minimal metadata for the asked id.
type stubCatalog struct{}

func (stubCatalog) Lookup(_ context.Context, releaseID string) (*domain.Release, error) {
	return &domain.Release{
		CollectionID:   releaseID,
		ArtistID:       "i:10",
		CollectionName: "Release " + releaseID,
		ArtistName:     "Artist",
	}, nil
}

func (stubCatalog) Search(context.Context, string, domain.SearchParams) ([]domain.Release, error) {
	return nil, nil
}

type fixture struct {
	db         *mongo.Database
	reviewRepo *mongodb.ReviewRepository
	likeRepo   *mongodb.LikeRepository
	userRepo   *mongodb.UserStatsRepository
	reviewUC   *usecase.ReviewUsecase
	feedUC     *usecase.FeedUsecase
	likeUC     *usecase.LikeUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Nop()
	mm := metrics.NewMetricsManager("biscuit_it_" + primitive.NewObjectID().Hex())

	db := mongoClient.Database("biscuit_it_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = db.Drop(ctx)
	})

	reviewRepo, err := mongodb.NewReviewRepository(db, log)
	require.NoError(t, err)
	likeRepo, err := mongodb.NewLikeRepository(db, log)
	require.NoError(t, err)
	userRepo := mongodb.NewUserStatsRepository(db, log)

	return &fixture{
		db:         db,
		reviewRepo: reviewRepo,
		likeRepo:   likeRepo,
		userRepo:   userRepo,
		reviewUC:   usecase.NewReviewUsecase(reviewRepo, userRepo, noopCache{}, noopPublisher{}, mm, log),
		feedUC: usecase.NewFeedUsecase(reviewRepo, likeRepo, stubCatalog{}, noopCache{}, mm, log,
			time.Hour, time.Minute),
		likeUC: usecase.NewLikeUsecase(likeRepo, reviewRepo, noopCache{}, noopPublisher{}, mm, log),
	}
}

// newAccount seeds a user document and returns its session.
func (f *fixture) newAccount(t *testing.T) (*domain.Session, primitive.ObjectID) {
	t.Helper()
	id := primitive.NewObjectID()
	_, err := f.db.Collection("users").InsertOne(context.Background(), bson.M{
		"_id":   id,
		"stats": bson.M{"releases": int64(0), "artists": int64(0)},
	})
	require.NoError(t, err)
	return &domain.Session{ID: id.Hex()}, id
}

func (f *fixture) stats(t *testing.T, id primitive.ObjectID) (int64, int64) {
	t.Helper()
	var doc struct {
		Stats struct {
			Releases int64 `bson:"releases"`
			Artists  int64 `bson:"artists"`
		} `bson:"stats"`
	}
	err := f.db.Collection("users").FindOne(context.Background(), bson.M{"_id": id}).Decode(&doc)
	require.NoError(t, err)
	return doc.Stats.Releases, doc.Stats.Artists
}

func submit(releaseID, artistID string, rating float64) usecase.CreateReviewInput {
	return usecase.CreateReviewInput{
		ReleaseID:     releaseID,
		ArtistID:      artistID,
		Rating:        rating,
		Content:       "listened all week",
		ShouldPublish: true,
	}
}

func TestReviewUpsertIdempotence(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, author := f.newAccount(t)

	first, created, err := f.reviewUC.CreateOrUpdateReview(ctx, session, submit("i:100", "i:10", 3.5))
	require.NoError(t, err)
	assert.True(t, created)

	second, created, err := f.reviewUC.CreateOrUpdateReview(ctx, session, submit("i:100", "i:10", 5))
	require.NoError(t, err)
	assert.False(t, created)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 5.0, second.Rating)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())
	assert.True(t, second.UpdatedAt.After(second.CreatedAt) || second.UpdatedAt.Equal(second.CreatedAt))

	count, err := f.db.Collection("reviews").CountDocuments(ctx, bson.M{"author": author})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	// Resubmission does not move the counters.
	releases, artists := f.stats(t, author)
	assert.Equal(t, int64(1), releases)
	assert.Equal(t, int64(1), artists)
}

func TestTwoReleasesOneArtistStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, author := f.newAccount(t)

	_, _, err := f.reviewUC.CreateOrUpdateReview(ctx, session, submit("i:100", "i:10", 4))
	require.NoError(t, err)
	_, _, err = f.reviewUC.CreateOrUpdateReview(ctx, session, submit("i:200", "i:10", 4.5))
	require.NoError(t, err)

	releases, artists := f.stats(t, author)
	assert.Equal(t, int64(2), releases)
	assert.Equal(t, int64(1), artists)

	// Deleting one keeps the artist counted; deleting both releases it.
	require.NoError(t, f.reviewUC.DeleteReview(ctx, session, "i:100"))
	releases, artists = f.stats(t, author)
	assert.Equal(t, int64(1), releases)
	assert.Equal(t, int64(1), artists)

	require.NoError(t, f.reviewUC.DeleteReview(ctx, session, "i:200"))
	releases, artists = f.stats(t, author)
	assert.Equal(t, int64(0), releases)
	assert.Equal(t, int64(0), artists)
}

func TestDeleteMissingReviewFails(t *testing.T) {
	f := newFixture(t)
	session, _ := f.newAccount(t)

	err := f.reviewUC.DeleteReview(context.Background(), session, "i:999")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLikeToggleInvolution(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	authorSession, _ := f.newAccount(t)
	viewerSession, _ := f.newAccount(t)

	review, _, err := f.reviewUC.CreateOrUpdateReview(ctx, authorSession, submit("i:100", "i:10", 4))
	require.NoError(t, err)

	status, err := f.likeUC.ToggleLike(ctx, viewerSession, review.ID.Hex())
	require.NoError(t, err)
	assert.True(t, status.HasLiked)
	assert.Equal(t, int64(1), status.LikeCount)

	liked, err := f.likeUC.GetLikeStatus(ctx, viewerSession, review.ID.Hex())
	require.NoError(t, err)
	assert.True(t, liked)

	status, err = f.likeUC.ToggleLike(ctx, viewerSession, review.ID.Hex())
	require.NoError(t, err)
	assert.False(t, status.HasLiked)
	assert.Equal(t, int64(0), status.LikeCount)

	liked, err = f.likeUC.GetLikeStatus(ctx, viewerSession, review.ID.Hex())
	require.NoError(t, err)
	assert.False(t, liked)

	count, err := f.db.Collection("likes").CountDocuments(ctx, bson.M{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestLikeCountTracksDistinctActors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	authorSession, _ := f.newAccount(t)

	review, _, err := f.reviewUC.CreateOrUpdateReview(ctx, authorSession, submit("i:100", "i:10", 4))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		viewer, _ := f.newAccount(t)
		status, err := f.likeUC.ToggleLike(ctx, viewer, review.ID.Hex())
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), status.LikeCount)
	}
}

func TestRecentFeedOrdering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var lastRelease string
	for i := 0; i < 3; i++ {
		session, _ := f.newAccount(t)
		lastRelease = fmt.Sprintf("i:%d", 100+i)
		_, _, err := f.reviewUC.CreateOrUpdateReview(ctx, session, submit(lastRelease, "i:10", 4))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	page, err := f.feedUC.GetReviews(ctx, nil, usecase.FeedParams{SortBy: domain.FeedSortRecent})
	require.NoError(t, err)
	require.Len(t, page.Entries, 3)
	assert.False(t, page.HasMore)
	assert.Equal(t, lastRelease, page.Entries[0].Review.ReleaseID)
	assert.False(t, page.Entries[0].HasLiked)
}

func TestPopularFeedOrderingAndPeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Three reviews with 2, 1 and 0 likes.
	var reviews []*domain.Review
	for i := 0; i < 3; i++ {
		session, _ := f.newAccount(t)
		review, _, err := f.reviewUC.CreateOrUpdateReview(ctx, session, submit(fmt.Sprintf("i:%d", 100+i), "i:10", 4))
		require.NoError(t, err)
		reviews = append(reviews, review)
	}
	for i, review := range reviews {
		for j := 0; j < 2-i; j++ {
			viewer, _ := f.newAccount(t)
			_, err := f.likeUC.ToggleLike(ctx, viewer, review.ID.Hex())
			require.NoError(t, err)
		}
	}

	page, err := f.feedUC.GetReviews(ctx, nil, usecase.FeedParams{SortBy: domain.FeedSortPopular, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)
	assert.True(t, page.HasMore)
	assert.Equal(t, int64(2), page.Entries[0].Review.LikeCount)
	assert.Equal(t, int64(1), page.Entries[1].Review.LikeCount)
}

func TestDraftsExcludedFromFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, _ := f.newAccount(t)

	draft := submit("i:100", "i:10", 4)
	draft.ShouldPublish = false
	_, _, err := f.reviewUC.CreateOrUpdateReview(ctx, session, draft)
	require.NoError(t, err)

	page, err := f.feedUC.GetReviews(ctx, nil, usecase.FeedParams{})
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
}

func TestViewerLikeStatusInFeed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	authorSession, _ := f.newAccount(t)
	viewerSession, _ := f.newAccount(t)

	review, _, err := f.reviewUC.CreateOrUpdateReview(ctx, authorSession, submit("i:100", "i:10", 4))
	require.NoError(t, err)
	_, err = f.likeUC.ToggleLike(ctx, viewerSession, review.ID.Hex())
	require.NoError(t, err)

	page, err := f.feedUC.GetReviews(ctx, viewerSession, usecase.FeedParams{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.True(t, page.Entries[0].HasLiked)

	page, err = f.feedUC.GetReviews(ctx, authorSession, usecase.FeedParams{})
	require.NoError(t, err)
	assert.False(t, page.Entries[0].HasLiked)
}

func TestStatsReconcilerRepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session, author := f.newAccount(t)

	_, _, err := f.reviewUC.CreateOrUpdateReview(ctx, session, submit("i:100", "i:10", 4))
	require.NoError(t, err)
	_, _, err = f.reviewUC.CreateOrUpdateReview(ctx, session, submit("i:200", "i:20", 4))
	require.NoError(t, err)

	// Simulate counter drift from a crash between review write and $inc.
	_, err = f.db.Collection("users").UpdateByID(ctx, author, bson.M{
		"$set": bson.M{"stats.releases": int64(9), "stats.artists": int64(9)},
	})
	require.NoError(t, err)

	reconciler := worker.NewStatsReconciler(f.reviewRepo, f.userRepo, logger.Nop())
	require.NoError(t, reconciler.Reconcile(ctx))

	releases, artists := f.stats(t, author)
	assert.Equal(t, int64(2), releases)
	assert.Equal(t, int64(2), artists)
}
