package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReviewRepository defines the interface for review persistence. Methods
// operate on the clean domain.Review entity; mapping to database structures
// is handled by the repository implementation.
type ReviewRepository interface {
	// Upsert applies update-if-exists semantics on the unique
	// (author, releaseId) key: mutable fields are set, and when no document
	// matched a new review is inserted with zeroed counters. The returned
	// flag reports whether an insert happened.
	Upsert(ctx context.Context, review *Review) (created bool, err error)

	// FindOneAndDelete removes the review matching (author, releaseId) and
	// returns the deleted document, or ErrNotFound if none existed.
	FindOneAndDelete(ctx context.Context, author primitive.ObjectID, releaseID string) (*Review, error)

	// OtherArtistReviewExists reports whether the author has any review of
	// the given artist on a release other than excludeReleaseID.
	OtherArtistReviewExists(ctx context.Context, author primitive.ObjectID, artistID, excludeReleaseID string) (bool, error)

	// FindFeed returns published (non-draft) reviews in the filter's order.
	// It fetches Limit+1 documents so the caller can peek whether more exist.
	FindFeed(ctx context.Context, filter FeedFilter) ([]*Review, error)

	// IncrementLikeCount atomically adjusts a review's like counter and
	// returns the updated document, or ErrNotFound if the review is gone.
	IncrementLikeCount(ctx context.Context, id primitive.ObjectID, delta int64) (*Review, error)

	// AggregateAuthorStats recomputes release/distinct-artist counts per
	// author across the whole collection, for counter reconciliation.
	AggregateAuthorStats(ctx context.Context) ([]AuthorStats, error)
}

// LikeRepository defines the interface for like-record persistence.
type LikeRepository interface {
	// Add inserts a like record; ErrAlreadyExists when the (actor, review)
	// pair already has one.
	Add(ctx context.Context, actor, review primitive.ObjectID) error

	// Remove deletes the (actor, review) like record, reporting whether a
	// record was actually deleted.
	Remove(ctx context.Context, actor, review primitive.ObjectID) (bool, error)

	// Exists reports whether the actor has liked the review.
	Exists(ctx context.Context, actor, review primitive.ObjectID) (bool, error)
}

// UserStatsRepository maintains the denormalized per-account review
// aggregates on the users collection.
type UserStatsRepository interface {
	// IncrementReviewStats adjusts stats.releases and stats.artists by the
	// given deltas.
	IncrementReviewStats(ctx context.Context, author primitive.ObjectID, releasesDelta, artistsDelta int64) error

	// ReplaceAllStats overwrites every account's review aggregates with the
	// recomputed values; accounts absent from stats are reset to zero.
	ReplaceAllStats(ctx context.Context, stats []AuthorStats) error
}

// CatalogClient is the boundary to the external release catalog. It may be
// slow, rate-limited, or unavailable; implementations translate transport
// errors into ErrNotFound or ErrCatalogUnavailable.
type CatalogClient interface {
	Lookup(ctx context.Context, releaseID string) (*Release, error)
	Search(ctx context.Context, term string, params SearchParams) ([]Release, error)
}

// FeedCache caches catalog metadata and composed profile feeds. All methods
// are best effort; a cache failure must never fail the request.
type FeedCache interface {
	GetRelease(ctx context.Context, releaseID string) (*Release, error)
	SetRelease(ctx context.Context, release *Release, ttl time.Duration) error

	// Profile feed entries are cached without viewer-specific like status;
	// the feed service layers HasLiked on top per request.
	GetProfileFeed(ctx context.Context, key string) ([]*FeedEntry, error)
	SetProfileFeed(ctx context.Context, author, key string, entries []*FeedEntry, ttl time.Duration) error
	InvalidateProfileFeed(ctx context.Context, author string) error
}

// EventPublisher emits domain events for downstream consumers. Publish
// failures are non-fatal for the triggering operation.
type EventPublisher interface {
	PublishReviewCreated(ctx context.Context, review *Review) error
	PublishReviewUpdated(ctx context.Context, review *Review) error
	PublishReviewDeleted(ctx context.Context, review *Review) error
	PublishLikeToggled(ctx context.Context, reviewID, actor primitive.ObjectID, liked bool, likeCount int64) error
}
