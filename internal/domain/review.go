package domain

import (
	"errors"
	"math"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Domain Specific Errors ---

var (
	// ErrNotAuthenticated indicates that no signed-in viewer is present.
	ErrNotAuthenticated = errors.New("not signed in")
	// ErrNotFound indicates that a requested entity was not found.
	ErrNotFound = errors.New("entity not found")
	// ErrInvalidInput indicates that the provided input data is invalid.
	ErrInvalidInput = errors.New("invalid input data")
	// ErrAlreadyExists indicates a uniqueness-constraint violation, e.g. a
	// duplicate (author, release) review or a duplicate (actor, review) like.
	ErrAlreadyExists = errors.New("entity already exists")
	// ErrCatalogUnavailable indicates the external catalog could not serve a
	// lookup. Distinct from ErrNotFound so callers can tell a missing release
	// from a catalog outage or timeout.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrRepository indicates a generic data persistence error.
	ErrRepository = errors.New("repository error")
)

// --- Review Entity ---

// Review is a user's take on a single release. At most one Review exists per
// (author, release) pair; the store's unique index enforces this, application
// code never check-then-inserts.
type Review struct {
	ID           primitive.ObjectID `json:"id"`
	Author       primitive.ObjectID `json:"author"`
	IsDraft      bool               `json:"isDraft"`
	ReleaseID    string             `json:"releaseId"` // catalog-namespaced, e.g. "i:12345"
	ArtistID     string             `json:"artistId"`  // same namespace
	Rating       float64            `json:"rating"`
	Content      string             `json:"content,omitempty"`
	LikeCount    int64              `json:"likeCount"`
	CommentCount int64              `json:"commentCount"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
}

// ValidRating reports whether rating is in [0, 5] at 0.5 granularity.
func ValidRating(rating float64) bool {
	if rating < 0 || rating > 5 {
		return false
	}
	doubled := rating * 2
	return doubled == math.Trunc(doubled)
}

// NewReview validates input and builds a fresh, unpersisted review. Content
// is trimmed; counters start at zero.
func NewReview(author primitive.ObjectID, releaseID, artistID string, rating float64, content string, isDraft bool) (*Review, error) {
	if author.IsZero() {
		return nil, errors.New("author cannot be empty")
	}
	if releaseID == "" {
		return nil, errors.New("releaseId cannot be empty")
	}
	if artistID == "" {
		return nil, errors.New("artistId cannot be empty")
	}
	if !ValidRating(rating) {
		return nil, errors.New("rating must be between 0 and 5 in 0.5 steps")
	}

	now := time.Now().UTC()
	return &Review{
		ID:        primitive.NewObjectID(),
		Author:    author,
		IsDraft:   isDraft,
		ReleaseID: releaseID,
		ArtistID:  artistID,
		Rating:    rating,
		Content:   strings.TrimSpace(content),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// --- Feed Sort Orders ---

// FeedSort names an ordering of the public review feed.
type FeedSort string

const (
	FeedSortRecent        FeedSort = "recent"        // createdAt desc
	FeedSortTrending      FeedSort = "trending"      // updatedAt desc
	FeedSortPopular       FeedSort = "popular"       // likeCount desc
	FeedSortControversial FeedSort = "controversial" // commentCount desc
)

// IsValid checks if the FeedSort is one of the defined constants.
func (s FeedSort) IsValid() bool {
	switch s {
	case FeedSortRecent, FeedSortTrending, FeedSortPopular, FeedSortControversial:
		return true
	}
	return false
}

// FeedFilter holds parameters for querying the review feed. Drafts are never
// included, regardless of who is asking.
type FeedFilter struct {
	SortBy FeedSort
	Limit  int64
	Author *primitive.ObjectID // optional author filter
}

// FeedEntry is the derived read model served to feed consumers: a review
// joined with catalog metadata and the viewer's like status. It is never
// persisted.
type FeedEntry struct {
	Review   *Review  `json:"review"`
	Release  *Release `json:"release"`
	HasLiked bool     `json:"hasLiked"`
}

// AuthorStats is a recomputed aggregate of one author's reviews, used by the
// stats reconciler.
type AuthorStats struct {
	Author   primitive.ObjectID
	Releases int64
	Artists  int64
}
