package mongodb

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sloanfm/biscuit/internal/domain"
)

// reviewDocument is the persisted shape of a review. Field names follow the
// collections the web front end reads, so both sides can share a database.
type reviewDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Author       primitive.ObjectID `bson:"author"`
	IsDraft      bool               `bson:"isDraft"`
	ReleaseID    string             `bson:"releaseId"`
	ArtistID     string             `bson:"artistId"`
	Rating       float64            `bson:"rating"`
	Content      string             `bson:"content,omitempty"`
	LikeCount    int64              `bson:"likeCount"`
	CommentCount int64              `bson:"commentCount"`
	CreatedAt    time.Time          `bson:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt"`
}

// likeDocument is the persisted shape of a like record.
type likeDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Actor     primitive.ObjectID `bson:"actor"`
	Review    primitive.ObjectID `bson:"review"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d *reviewDocument) toDomainReview() *domain.Review {
	if d == nil {
		return nil
	}
	return &domain.Review{
		ID:           d.ID,
		Author:       d.Author,
		IsDraft:      d.IsDraft,
		ReleaseID:    d.ReleaseID,
		ArtistID:     d.ArtistID,
		Rating:       d.Rating,
		Content:      d.Content,
		LikeCount:    d.LikeCount,
		CommentCount: d.CommentCount,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func toDomainReviews(docs []*reviewDocument) []*domain.Review {
	reviews := make([]*domain.Review, 0, len(docs))
	for _, doc := range docs {
		reviews = append(reviews, doc.toDomainReview())
	}
	return reviews
}
