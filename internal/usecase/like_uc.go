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

// LikeUsecase implements the like toggle and like status reads.
type LikeUsecase struct {
	likeRepo   domain.LikeRepository
	reviewRepo domain.ReviewRepository
	cache      domain.FeedCache
	publisher  domain.EventPublisher
	metrics    *metrics.MetricsManager
	logger     *logger.Logger
}

func NewLikeUsecase(
	likeRepo domain.LikeRepository,
	reviewRepo domain.ReviewRepository,
	cache domain.FeedCache,
	publisher domain.EventPublisher,
	mm *metrics.MetricsManager,
	log *logger.Logger,
) *LikeUsecase {
	return &LikeUsecase{
		likeRepo:   likeRepo,
		reviewRepo: reviewRepo,
		cache:      cache,
		publisher:  publisher,
		metrics:    mm,
		logger:     log.Named("LikeUsecase"),
	}
}

// ToggleLike flips the viewer's like on a review. Delete-first: when a like
// record was removed the viewer is un-liking, otherwise one is inserted. The
// returned status is read back from the updated review document, so the count
// always reflects store state.
func (uc *LikeUsecase) ToggleLike(ctx context.Context, session *domain.Session, reviewIDHex string) (*domain.LikeStatus, error) {
	actor, err := sessionAuthor(session)
	if err != nil {
		return nil, err
	}
	reviewID, err := primitive.ObjectIDFromHex(reviewIDHex)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed review id", domain.ErrInvalidInput)
	}

	removed, err := uc.likeRepo.Remove(ctx, actor, reviewID)
	if err != nil {
		uc.logger.Error("Failed to remove like", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrRepository, err)
	}

	var delta int64
	hasLiked := false
	if removed {
		delta = -1
	} else {
		switch err := uc.likeRepo.Add(ctx, actor, reviewID); {
		case err == nil:
			delta = 1
			hasLiked = true
		case errors.Is(err, domain.ErrAlreadyExists):
			// A concurrent toggle inserted first; that insert owns the
			// counter bump.
			hasLiked = true
		default:
			uc.logger.Error("Failed to add like", zap.Error(err))
			return nil, fmt.Errorf("%w: %v", domain.ErrRepository, err)
		}
	}

	review, err := uc.reviewRepo.IncrementLikeCount(ctx, reviewID, delta)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// The review vanished between the like mutation and the counter
			// update; report the miss, the orphaned like record is inert.
			return nil, err
		}
		uc.logger.Error("Failed to update like count", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrRepository, err)
	}

	direction := "unlike"
	if hasLiked {
		direction = "like"
	}
	uc.metrics.LikeTogglesTotal.WithLabelValues(direction).Inc()

	// likeCount feeds the popular sort of the author's profile feed.
	if err := uc.cache.InvalidateProfileFeed(ctx, review.Author.Hex()); err != nil {
		uc.logger.Warn("Failed to invalidate profile feed cache", zap.Error(err),
			zap.String("author", review.Author.Hex()))
	}

	if err := uc.publisher.PublishLikeToggled(ctx, reviewID, actor, hasLiked, review.LikeCount); err != nil {
		uc.logger.Warn("Failed to publish like toggle event", zap.Error(err))
	}

	uc.logger.Info("Like toggled",
		zap.String("review_id", reviewID.Hex()),
		zap.String("actor", actor.Hex()),
		zap.Bool("has_liked", hasLiked),
		zap.Int64("like_count", review.LikeCount))
	return &domain.LikeStatus{HasLiked: hasLiked, LikeCount: review.LikeCount}, nil
}

// GetLikeStatus reports whether the viewer has liked the review. Anonymous
// viewers and lookup failures both read as "not liked".
func (uc *LikeUsecase) GetLikeStatus(ctx context.Context, session *domain.Session, reviewIDHex string) (bool, error) {
	if session == nil {
		return false, nil
	}
	actor, err := primitive.ObjectIDFromHex(session.ID)
	if err != nil {
		return false, nil
	}
	reviewID, err := primitive.ObjectIDFromHex(reviewIDHex)
	if err != nil {
		return false, fmt.Errorf("%w: malformed review id", domain.ErrInvalidInput)
	}

	liked, err := uc.likeRepo.Exists(ctx, actor, reviewID)
	if err != nil {
		uc.logger.Warn("Like status lookup failed", zap.Error(err),
			zap.String("review_id", reviewID.Hex()))
		return false, nil
	}
	return liked, nil
}
