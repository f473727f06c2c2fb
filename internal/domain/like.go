package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Like records that an actor has liked a review. Existence of the record is
// the sole source of truth for "has this viewer liked this review"; there is
// no update operation.
type Like struct {
	ID        primitive.ObjectID
	Actor     primitive.ObjectID
	Review    primitive.ObjectID
	CreatedAt time.Time
}

// LikeStatus is the authoritative post-toggle state returned to callers, read
// back from the updated review document rather than computed client-side.
type LikeStatus struct {
	HasLiked  bool  `json:"hasLiked"`
	LikeCount int64 `json:"likeCount"`
}
