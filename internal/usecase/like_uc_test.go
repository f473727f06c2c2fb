package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
)

type likeUcMocks struct {
	likeRepo   *MockLikeRepository
	reviewRepo *MockReviewRepository
	cache      *MockFeedCache
	publisher  *MockEventPublisher
}

func newLikeUsecaseForTest() (*LikeUsecase, likeUcMocks) {
	m := likeUcMocks{
		likeRepo:   new(MockLikeRepository),
		reviewRepo: new(MockReviewRepository),
		cache:      new(MockFeedCache),
		publisher:  new(MockEventPublisher),
	}
	uc := NewLikeUsecase(m.likeRepo, m.reviewRepo, m.cache, m.publisher, newTestMetrics(), logger.Nop())
	return uc, m
}

func TestToggleLike_AddsWhenNoLikeExists(t *testing.T) {
	uc, m := newLikeUsecaseForTest()
	session, actor := testSession()
	ctx := context.Background()
	reviewID := primitive.NewObjectID()
	reviewAuthor := primitive.NewObjectID()

	m.likeRepo.On("Remove", ctx, actor, reviewID).Return(false, nil)
	m.likeRepo.On("Add", ctx, actor, reviewID).Return(nil)
	m.reviewRepo.On("IncrementLikeCount", ctx, reviewID, int64(1)).
		Return(&domain.Review{ID: reviewID, Author: reviewAuthor, LikeCount: 6}, nil)
	m.cache.On("InvalidateProfileFeed", ctx, reviewAuthor.Hex()).Return(nil)
	m.publisher.On("PublishLikeToggled", ctx, reviewID, actor, true, int64(6)).Return(nil)

	status, err := uc.ToggleLike(ctx, session, reviewID.Hex())

	require.NoError(t, err)
	assert.True(t, status.HasLiked)
	assert.Equal(t, int64(6), status.LikeCount)
	m.likeRepo.AssertExpectations(t)
}

func TestToggleLike_RemovesExistingLike(t *testing.T) {
	uc, m := newLikeUsecaseForTest()
	session, actor := testSession()
	ctx := context.Background()
	reviewID := primitive.NewObjectID()
	reviewAuthor := primitive.NewObjectID()

	m.likeRepo.On("Remove", ctx, actor, reviewID).Return(true, nil)
	m.reviewRepo.On("IncrementLikeCount", ctx, reviewID, int64(-1)).
		Return(&domain.Review{ID: reviewID, Author: reviewAuthor, LikeCount: 4}, nil)
	m.cache.On("InvalidateProfileFeed", ctx, reviewAuthor.Hex()).Return(nil)
	m.publisher.On("PublishLikeToggled", ctx, reviewID, actor, false, int64(4)).Return(nil)

	status, err := uc.ToggleLike(ctx, session, reviewID.Hex())

	require.NoError(t, err)
	assert.False(t, status.HasLiked)
	assert.Equal(t, int64(4), status.LikeCount)
	m.likeRepo.AssertNotCalled(t, "Add", mock.Anything, mock.Anything, mock.Anything)
}

func TestToggleLike_ConcurrentAddRace(t *testing.T) {
	uc, m := newLikeUsecaseForTest()
	session, actor := testSession()
	ctx := context.Background()
	reviewID := primitive.NewObjectID()
	reviewAuthor := primitive.NewObjectID()

	m.likeRepo.On("Remove", ctx, actor, reviewID).Return(false, nil)
	m.likeRepo.On("Add", ctx, actor, reviewID).Return(domain.ErrAlreadyExists)
	// The racing insert owns the counter bump; this toggle applies delta 0.
	m.reviewRepo.On("IncrementLikeCount", ctx, reviewID, int64(0)).
		Return(&domain.Review{ID: reviewID, Author: reviewAuthor, LikeCount: 1}, nil)
	m.cache.On("InvalidateProfileFeed", ctx, reviewAuthor.Hex()).Return(nil)
	m.publisher.On("PublishLikeToggled", ctx, reviewID, actor, true, int64(1)).Return(nil)

	status, err := uc.ToggleLike(ctx, session, reviewID.Hex())

	require.NoError(t, err)
	assert.True(t, status.HasLiked)
	assert.Equal(t, int64(1), status.LikeCount)
}

func TestToggleLike_ReviewGone(t *testing.T) {
	uc, m := newLikeUsecaseForTest()
	session, actor := testSession()
	ctx := context.Background()
	reviewID := primitive.NewObjectID()

	m.likeRepo.On("Remove", ctx, actor, reviewID).Return(false, nil)
	m.likeRepo.On("Add", ctx, actor, reviewID).Return(nil)
	m.reviewRepo.On("IncrementLikeCount", ctx, reviewID, int64(1)).Return(nil, domain.ErrNotFound)

	_, err := uc.ToggleLike(ctx, session, reviewID.Hex())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestToggleLike_Unauthenticated(t *testing.T) {
	uc, m := newLikeUsecaseForTest()

	_, err := uc.ToggleLike(context.Background(), nil, primitive.NewObjectID().Hex())

	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)
	m.likeRepo.AssertNotCalled(t, "Remove", mock.Anything, mock.Anything, mock.Anything)
}

func TestToggleLike_MalformedReviewID(t *testing.T) {
	uc, _ := newLikeUsecaseForTest()
	session, _ := testSession()

	_, err := uc.ToggleLike(context.Background(), session, "zz")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetLikeStatus(t *testing.T) {
	uc, m := newLikeUsecaseForTest()
	session, actor := testSession()
	ctx := context.Background()
	reviewID := primitive.NewObjectID()

	m.likeRepo.On("Exists", ctx, actor, reviewID).Return(true, nil)

	liked, err := uc.GetLikeStatus(ctx, session, reviewID.Hex())

	require.NoError(t, err)
	assert.True(t, liked)
}

func TestGetLikeStatus_AnonymousIsFalse(t *testing.T) {
	uc, m := newLikeUsecaseForTest()

	liked, err := uc.GetLikeStatus(context.Background(), nil, primitive.NewObjectID().Hex())

	require.NoError(t, err)
	assert.False(t, liked)
	m.likeRepo.AssertNotCalled(t, "Exists", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetLikeStatus_LookupFailureIsFalse(t *testing.T) {
	uc, m := newLikeUsecaseForTest()
	session, actor := testSession()
	ctx := context.Background()
	reviewID := primitive.NewObjectID()

	m.likeRepo.On("Exists", ctx, actor, reviewID).Return(false, assert.AnError)

	liked, err := uc.GetLikeStatus(ctx, session, reviewID.Hex())

	require.NoError(t, err)
	assert.False(t, liked)
}
