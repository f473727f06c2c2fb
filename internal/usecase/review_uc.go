// Package usecase contains the application services: review lifecycle, feed
// composition and like toggling. Services depend only on the domain ports;
// adapters are injected in main.
package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
	"github.com/sloanfm/biscuit/internal/platform/metrics"
)

// CreateReviewInput carries the form fields of a review submission.
type CreateReviewInput struct {
	ReleaseID     string
	ArtistID      string
	Rating        float64
	Content       string
	ShouldPublish bool
}

// ReviewUsecase implements the review lifecycle: create-or-update and delete,
// with the denormalized per-account counters maintained alongside.
type ReviewUsecase struct {
	reviewRepo domain.ReviewRepository
	userRepo   domain.UserStatsRepository
	cache      domain.FeedCache
	publisher  domain.EventPublisher
	metrics    *metrics.MetricsManager
	logger     *logger.Logger
}

func NewReviewUsecase(
	reviewRepo domain.ReviewRepository,
	userRepo domain.UserStatsRepository,
	cache domain.FeedCache,
	publisher domain.EventPublisher,
	mm *metrics.MetricsManager,
	log *logger.Logger,
) *ReviewUsecase {
	return &ReviewUsecase{
		reviewRepo: reviewRepo,
		userRepo:   userRepo,
		cache:      cache,
		publisher:  publisher,
		metrics:    mm,
		logger:     log.Named("ReviewUsecase"),
	}
}

// sessionAuthor resolves the signed-in account id, or ErrNotAuthenticated.
func sessionAuthor(session *domain.Session) (primitive.ObjectID, error) {
	if session == nil {
		return primitive.NilObjectID, domain.ErrNotAuthenticated
	}
	author, err := primitive.ObjectIDFromHex(session.ID)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: malformed session id", domain.ErrNotAuthenticated)
	}
	return author, nil
}

// CreateOrUpdateReview submits a review for a release. A second submission by
// the same author for the same release updates the existing review in place;
// the store's unique index decides which case this is, not application code.
// The returned flag reports whether a new review was created.
func (uc *ReviewUsecase) CreateOrUpdateReview(ctx context.Context, session *domain.Session, input CreateReviewInput) (*domain.Review, bool, error) {
	author, err := sessionAuthor(session)
	if err != nil {
		return nil, false, err
	}

	review, err := domain.NewReview(author, input.ReleaseID, input.ArtistID, input.Rating, input.Content, !input.ShouldPublish)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	created, err := uc.reviewRepo.Upsert(ctx, review)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			// Lost a concurrent first-submission race; the winning document
			// holds this author's review now.
			return nil, false, err
		}
		uc.logger.Error("Failed to upsert review", zap.Error(err))
		return nil, false, fmt.Errorf("%w: %v", domain.ErrRepository, err)
	}

	if created {
		if err := uc.applyCreateStats(ctx, review); err != nil {
			// The review exists but the counters do not reflect it. Surface
			// the failure; the reconciler will repair the counters.
			return nil, true, err
		}
		uc.metrics.ReviewsCreatedTotal.Inc()
	} else {
		uc.metrics.ReviewsUpdatedTotal.Inc()
	}

	if err := uc.cache.InvalidateProfileFeed(ctx, author.Hex()); err != nil {
		uc.logger.Warn("Failed to invalidate profile feed cache", zap.Error(err), zap.String("author", author.Hex()))
	}

	uc.publishReviewEvent(ctx, review, created)

	uc.logger.Info("Review saved",
		zap.String("review_id", review.ID.Hex()),
		zap.String("release_id", review.ReleaseID),
		zap.Bool("created", created))
	return review, created, nil
}

// applyCreateStats bumps the author's counters for a newly inserted review.
// stats.artists only moves when no other review by this author references the
// same artist; the just-written release is excluded from the check.
func (uc *ReviewUsecase) applyCreateStats(ctx context.Context, review *domain.Review) error {
	otherExists, err := uc.reviewRepo.OtherArtistReviewExists(ctx, review.Author, review.ArtistID, review.ReleaseID)
	if err != nil {
		uc.logger.Error("Failed to check distinct-artist condition", zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrRepository, err)
	}

	var artistsDelta int64
	if !otherExists {
		artistsDelta = 1
	}
	if err := uc.userRepo.IncrementReviewStats(ctx, review.Author, 1, artistsDelta); err != nil {
		uc.logger.Error("Failed to increment user review stats", zap.Error(err),
			zap.String("author", review.Author.Hex()))
		return fmt.Errorf("%w: %v", domain.ErrRepository, err)
	}
	return nil
}

// DeleteReview removes the author's review of the given release. Deleting a
// review that does not exist is an error, not a no-op.
func (uc *ReviewUsecase) DeleteReview(ctx context.Context, session *domain.Session, releaseID string) error {
	author, err := sessionAuthor(session)
	if err != nil {
		return err
	}
	if releaseID == "" {
		return fmt.Errorf("%w: releaseId is required", domain.ErrInvalidInput)
	}

	deleted, err := uc.reviewRepo.FindOneAndDelete(ctx, author, releaseID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		uc.logger.Error("Failed to delete review", zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrRepository, err)
	}

	// The distinct-artist recheck runs after the delete so the removed review
	// can no longer satisfy it.
	stillExists, err := uc.reviewRepo.OtherArtistReviewExists(ctx, author, deleted.ArtistID, releaseID)
	if err != nil {
		uc.logger.Error("Failed to recheck distinct-artist condition", zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrRepository, err)
	}

	var artistsDelta int64
	if !stillExists {
		artistsDelta = -1
	}
	if err := uc.userRepo.IncrementReviewStats(ctx, author, -1, artistsDelta); err != nil {
		uc.logger.Error("Failed to decrement user review stats", zap.Error(err),
			zap.String("author", author.Hex()))
		return fmt.Errorf("%w: %v", domain.ErrRepository, err)
	}

	uc.metrics.ReviewsDeletedTotal.Inc()

	if err := uc.cache.InvalidateProfileFeed(ctx, author.Hex()); err != nil {
		uc.logger.Warn("Failed to invalidate profile feed cache", zap.Error(err), zap.String("author", author.Hex()))
	}

	if err := uc.publisher.PublishReviewDeleted(ctx, deleted); err != nil {
		uc.logger.Warn("Failed to publish review.deleted event", zap.Error(err))
	}

	uc.logger.Info("Review deleted",
		zap.String("review_id", deleted.ID.Hex()),
		zap.String("release_id", releaseID))
	return nil
}

func (uc *ReviewUsecase) publishReviewEvent(ctx context.Context, review *domain.Review, created bool) {
	var err error
	if created {
		err = uc.publisher.PublishReviewCreated(ctx, review)
	} else {
		err = uc.publisher.PublishReviewUpdated(ctx, review)
	}
	if err != nil {
		uc.logger.Warn("Failed to publish review event", zap.Error(err), zap.Bool("created", created))
	}
}
