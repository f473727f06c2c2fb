package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
	"github.com/sloanfm/biscuit/internal/platform/metrics"
)

const (
	defaultFeedLimit = 10
	maxFeedLimit     = 50
)

// FeedParams are the query parameters of a feed request, still in transport
// form (author as hex string).
type FeedParams struct {
	SortBy domain.FeedSort
	Limit  int64
	Author string
}

// FeedPage is one page of the composed feed plus a flag telling the caller
// whether another page exists.
type FeedPage struct {
	Entries []*domain.FeedEntry `json:"entries"`
	HasMore bool                `json:"hasMore"`
}

// FeedUsecase composes the review feed: stored reviews joined with catalog
// metadata and the viewer's like status.
type FeedUsecase struct {
	reviewRepo domain.ReviewRepository
	likeRepo   domain.LikeRepository
	catalog    domain.CatalogClient
	cache      domain.FeedCache
	metrics    *metrics.MetricsManager
	logger     *logger.Logger

	releaseTTL     time.Duration
	profileFeedTTL time.Duration
}

func NewFeedUsecase(
	reviewRepo domain.ReviewRepository,
	likeRepo domain.LikeRepository,
	catalog domain.CatalogClient,
	cache domain.FeedCache,
	mm *metrics.MetricsManager,
	log *logger.Logger,
	releaseTTL, profileFeedTTL time.Duration,
) *FeedUsecase {
	return &FeedUsecase{
		reviewRepo:     reviewRepo,
		likeRepo:       likeRepo,
		catalog:        catalog,
		cache:          cache,
		metrics:        mm,
		logger:         log.Named("FeedUsecase"),
		releaseTTL:     releaseTTL,
		profileFeedTTL: profileFeedTTL,
	}
}

// GetReviews returns a page of published reviews in the requested order.
// viewer may be nil; anonymous viewers see hasLiked=false without a like
// store round trip. A catalog failure aborts the whole page.
func (uc *FeedUsecase) GetReviews(ctx context.Context, viewer *domain.Session, params FeedParams) (*FeedPage, error) {
	if params.SortBy == "" {
		params.SortBy = domain.FeedSortRecent
	}
	if !params.SortBy.IsValid() {
		return nil, fmt.Errorf("%w: unknown sort order %q", domain.ErrInvalidInput, params.SortBy)
	}
	if params.Limit <= 0 {
		params.Limit = defaultFeedLimit
	}
	if params.Limit > maxFeedLimit {
		params.Limit = maxFeedLimit
	}

	var author *primitive.ObjectID
	if params.Author != "" {
		id, err := primitive.ObjectIDFromHex(params.Author)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed author id", domain.ErrInvalidInput)
		}
		author = &id
	}

	uc.metrics.FeedRequestsTotal.WithLabelValues(string(params.SortBy)).Inc()

	entries, err := uc.loadEntries(ctx, params, author)
	if err != nil {
		return nil, err
	}

	// The over-fetched peek entry only signals that more exist.
	hasMore := int64(len(entries)) > params.Limit
	if hasMore {
		entries = entries[:params.Limit]
	}

	uc.applyLikeStatus(ctx, viewer, entries)

	return &FeedPage{Entries: entries, HasMore: hasMore}, nil
}

// loadEntries returns up to limit+1 viewer-independent entries, from the
// profile cache when the request is scoped to one author, otherwise composed
// from the stores.
func (uc *FeedUsecase) loadEntries(ctx context.Context, params FeedParams, author *primitive.ObjectID) ([]*domain.FeedEntry, error) {
	var cacheKey string
	if author != nil {
		cacheKey = fmt.Sprintf("feed:profile:%s:%s:%d", author.Hex(), params.SortBy, params.Limit)
		cached, err := uc.cache.GetProfileFeed(ctx, cacheKey)
		if err != nil {
			uc.logger.Warn("Profile feed cache read failed", zap.Error(err), zap.String("key", cacheKey))
		} else if cached != nil {
			uc.logger.Debug("Profile feed cache hit", zap.String("key", cacheKey))
			return cached, nil
		}
	}

	reviews, err := uc.reviewRepo.FindFeed(ctx, domain.FeedFilter{
		SortBy: params.SortBy,
		Limit:  params.Limit,
		Author: author,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return nil, err
		}
		uc.logger.Error("Failed to load feed reviews", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrRepository, err)
	}

	entries := make([]*domain.FeedEntry, 0, len(reviews))
	for _, review := range reviews {
		release, err := uc.resolveRelease(ctx, review.ReleaseID)
		if err != nil {
			// A feed page with holes is worse than no page; reviews always
			// render together with their release.
			return nil, err
		}
		entries = append(entries, &domain.FeedEntry{Review: review, Release: release})
	}

	if author != nil {
		if err := uc.cache.SetProfileFeed(ctx, author.Hex(), cacheKey, entries, uc.profileFeedTTL); err != nil {
			uc.logger.Warn("Profile feed cache write failed", zap.Error(err), zap.String("key", cacheKey))
		}
	}
	return entries, nil
}

// resolveRelease fetches catalog metadata via the cache, falling through to a
// live lookup on a miss.
func (uc *FeedUsecase) resolveRelease(ctx context.Context, releaseID string) (*domain.Release, error) {
	release, err := uc.cache.GetRelease(ctx, releaseID)
	if err != nil {
		uc.logger.Warn("Release cache read failed", zap.Error(err), zap.String("release_id", releaseID))
	} else if release != nil {
		return release, nil
	}

	release, err = uc.catalog.Lookup(ctx, releaseID)
	if err != nil {
		uc.metrics.CatalogLookupErrors.Inc()
		uc.logger.Error("Catalog lookup failed during feed composition",
			zap.Error(err), zap.String("release_id", releaseID))
		return nil, err
	}

	if err := uc.cache.SetRelease(ctx, release, uc.releaseTTL); err != nil {
		uc.logger.Warn("Release cache write failed", zap.Error(err), zap.String("release_id", releaseID))
	}
	return release, nil
}

// applyLikeStatus layers the viewer's like status onto the entries. Failures
// here degrade to "not liked" rather than failing the feed.
func (uc *FeedUsecase) applyLikeStatus(ctx context.Context, viewer *domain.Session, entries []*domain.FeedEntry) {
	if viewer == nil {
		return
	}
	actor, err := primitive.ObjectIDFromHex(viewer.ID)
	if err != nil {
		uc.logger.Warn("Malformed viewer id in session", zap.String("viewer", viewer.ID))
		return
	}

	for _, entry := range entries {
		liked, err := uc.likeRepo.Exists(ctx, actor, entry.Review.ID)
		if err != nil {
			uc.logger.Warn("Like status lookup failed",
				zap.Error(err), zap.String("review_id", entry.Review.ID.Hex()))
			continue
		}
		entry.HasLiked = liked
	}
}

// SearchReleases proxies a catalog search for the release picker.
func (uc *FeedUsecase) SearchReleases(ctx context.Context, term string, params domain.SearchParams) ([]domain.Release, error) {
	if term == "" {
		return nil, fmt.Errorf("%w: search term is required", domain.ErrInvalidInput)
	}
	releases, err := uc.catalog.Search(ctx, term, params)
	if err != nil {
		uc.metrics.CatalogLookupErrors.Inc()
		uc.logger.Error("Catalog search failed", zap.Error(err), zap.String("term", term))
		return nil, err
	}
	return releases, nil
}
