package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
)

const reviewCollectionName = "reviews"

// feedSortFields maps a feed sort order to the document field it orders by.
// All feed orders are descending.
var feedSortFields = map[domain.FeedSort]string{
	domain.FeedSortRecent:        "createdAt",
	domain.FeedSortTrending:      "updatedAt",
	domain.FeedSortPopular:       "likeCount",
	domain.FeedSortControversial: "commentCount",
}

// ReviewRepository implements domain.ReviewRepository using MongoDB.
type ReviewRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewReviewRepository creates a new MongoDB review repository and ensures the
// collection's indexes. The unique (author, releaseId) index is the
// concurrency-safety mechanism against duplicate submissions; it must exist
// before the service takes traffic.
func NewReviewRepository(db *mongo.Database, log *logger.Logger) (*ReviewRepository, error) {
	collection := db.Collection(reviewCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "author", Value: 1}, {Key: "releaseId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "author", Value: 1}, {Key: "artistId", Value: 1}}},
		{Keys: bson.D{{Key: "isDraft", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "isDraft", Value: 1}, {Key: "likeCount", Value: -1}}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Error("Failed to create indexes for reviews collection", zap.Error(err))
		return nil, fmt.Errorf("failed to create indexes for %s: %w", reviewCollectionName, err)
	}
	log.Info("Successfully ensured indexes for reviews collection")

	return &ReviewRepository{
		collection: collection,
		logger:     log.Named("ReviewRepository"),
	}, nil
}

// Upsert applies update-if-exists semantics on the (author, releaseId) key.
// The mutable fields (isDraft, rating, content) are always set; everything
// else is written only on insert. After the write, review is refreshed from
// the stored document so callers see authoritative state.
func (r *ReviewRepository) Upsert(ctx context.Context, review *domain.Review) (bool, error) {
	r.logger.Debug("Upserting review",
		zap.String("author", review.Author.Hex()),
		zap.String("release_id", review.ReleaseID))

	filter := bson.M{"author": review.Author, "releaseId": review.ReleaseID}
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"isDraft":   review.IsDraft,
			"rating":    review.Rating,
			"content":   review.Content,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"_id":          review.ID,
			"author":       review.Author,
			"releaseId":    review.ReleaseID,
			"artistId":     review.ArtistID,
			"likeCount":    int64(0),
			"commentCount": int64(0),
			"createdAt":    now,
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			// Lost a concurrent-insert race on the unique index. The other
			// writer's document is the one that exists now.
			r.logger.Warn("Duplicate key error on review upsert",
				zap.String("author", review.Author.Hex()),
				zap.String("release_id", review.ReleaseID))
			return false, domain.ErrAlreadyExists
		}
		r.logger.Error("Failed to upsert review", zap.Error(err))
		return false, fmt.Errorf("db upsert failed: %w", err)
	}
	created := result.UpsertedCount > 0

	var doc reviewDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		r.logger.Error("Failed to read back upserted review", zap.Error(err))
		return created, fmt.Errorf("db findone after upsert failed: %w", err)
	}
	*review = *doc.toDomainReview()

	r.logger.Info("Review upserted",
		zap.String("review_id", review.ID.Hex()),
		zap.Bool("created", created))
	return created, nil
}

// FindOneAndDelete removes the review matching (author, releaseId), returning
// the deleted document so the caller can run its post-delete accounting.
func (r *ReviewRepository) FindOneAndDelete(ctx context.Context, author primitive.ObjectID, releaseID string) (*domain.Review, error) {
	r.logger.Debug("Deleting review",
		zap.String("author", author.Hex()),
		zap.String("release_id", releaseID))

	var doc reviewDocument
	err := r.collection.FindOneAndDelete(ctx, bson.M{"author": author, "releaseId": releaseID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Warn("Review not found for deletion",
				zap.String("author", author.Hex()),
				zap.String("release_id", releaseID))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("Failed to delete review", zap.Error(err))
		return nil, fmt.Errorf("db findoneanddelete failed: %w", err)
	}

	r.logger.Info("Review deleted", zap.String("review_id", doc.ID.Hex()))
	return doc.toDomainReview(), nil
}

// OtherArtistReviewExists reports whether the author still has a review of
// artistID on some release other than excludeReleaseID. Run after a delete
// (or with the just-written release excluded) so the review being mutated is
// never counted.
func (r *ReviewRepository) OtherArtistReviewExists(ctx context.Context, author primitive.ObjectID, artistID, excludeReleaseID string) (bool, error) {
	filter := bson.M{
		"author":    author,
		"artistId":  artistID,
		"releaseId": bson.M{"$ne": excludeReleaseID},
	}

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		r.logger.Error("Failed to check for other artist reviews", zap.Error(err),
			zap.String("author", author.Hex()),
			zap.String("artist_id", artistID))
		return false, fmt.Errorf("db count failed: %w", err)
	}
	return count > 0, nil
}

// FindFeed returns published reviews in the requested order, fetching one
// document past the limit so the caller can peek whether more exist.
func (r *ReviewRepository) FindFeed(ctx context.Context, filter domain.FeedFilter) ([]*domain.Review, error) {
	sortField, ok := feedSortFields[filter.SortBy]
	if !ok {
		return nil, fmt.Errorf("%w: unknown sort order %q", domain.ErrInvalidInput, filter.SortBy)
	}

	query := bson.M{"isDraft": false}
	if filter.Author != nil {
		query["author"] = *filter.Author
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: sortField, Value: -1}}).
		SetLimit(filter.Limit + 1)

	cursor, err := r.collection.Find(ctx, query, findOptions)
	if err != nil {
		r.logger.Error("Failed to find feed reviews", zap.Error(err), zap.Any("filter", filter))
		return nil, fmt.Errorf("db find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []*reviewDocument
	if err = cursor.All(ctx, &docs); err != nil {
		r.logger.Error("Failed to decode feed reviews", zap.Error(err))
		return nil, fmt.Errorf("db cursor all failed: %w", err)
	}

	return toDomainReviews(docs), nil
}

// IncrementLikeCount atomically adjusts a review's like counter and returns
// the updated document, so callers report counts from store state.
func (r *ReviewRepository) IncrementLikeCount(ctx context.Context, id primitive.ObjectID, delta int64) (*domain.Review, error) {
	var doc reviewDocument
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"likeCount": delta}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Warn("Review not found for like-count update", zap.String("review_id", id.Hex()))
			return nil, domain.ErrNotFound
		}
		r.logger.Error("Failed to update like count", zap.Error(err), zap.String("review_id", id.Hex()))
		return nil, fmt.Errorf("db findoneandupdate failed: %w", err)
	}

	return doc.toDomainReview(), nil
}

// AggregateAuthorStats recomputes per-author release and distinct-artist
// counts from the reviews collection. Drafts count, matching the increments
// applied on create.
func (r *ReviewRepository) AggregateAuthorStats(ctx context.Context) ([]domain.AuthorStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$author"},
			{Key: "releases", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "artists", Value: bson.D{{Key: "$addToSet", Value: "$artistId"}}},
		}}},
		{{Key: "$project", Value: bson.D{
			{Key: "releases", Value: 1},
			{Key: "artists", Value: bson.D{{Key: "$size", Value: "$artists"}}},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.Error("Failed to aggregate author stats", zap.Error(err))
		return nil, fmt.Errorf("db aggregate failed: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Author   primitive.ObjectID `bson:"_id"`
		Releases int64              `bson:"releases"`
		Artists  int64              `bson:"artists"`
	}
	if err = cursor.All(ctx, &results); err != nil {
		r.logger.Error("Failed to decode author stats aggregation", zap.Error(err))
		return nil, fmt.Errorf("db cursor all for aggregate failed: %w", err)
	}

	stats := make([]domain.AuthorStats, 0, len(results))
	for _, res := range results {
		stats = append(stats, domain.AuthorStats{
			Author:   res.Author,
			Releases: res.Releases,
			Artists:  res.Artists,
		})
	}
	return stats, nil
}
