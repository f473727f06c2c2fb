package mongodb

import (
	"context"
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

const likeCollectionName = "likes"

// LikeRepository implements domain.LikeRepository using MongoDB.
type LikeRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewLikeRepository creates a new MongoDB like repository. The unique
// (actor, review) index keeps a viewer from holding more than one like on the
// same review no matter how requests interleave.
func NewLikeRepository(db *mongo.Database, log *logger.Logger) (*LikeRepository, error) {
	collection := db.Collection(likeCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "actor", Value: 1}, {Key: "review", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "review", Value: 1}}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Error("Failed to create indexes for likes collection", zap.Error(err))
		return nil, fmt.Errorf("failed to create indexes for %s: %w", likeCollectionName, err)
	}
	log.Info("Successfully ensured indexes for likes collection")

	return &LikeRepository{
		collection: collection,
		logger:     log.Named("LikeRepository"),
	}, nil
}

// Add records that actor likes review. A concurrent duplicate insert is
// rejected by the unique index and surfaces as domain.ErrAlreadyExists.
func (r *LikeRepository) Add(ctx context.Context, actor, review primitive.ObjectID) error {
	doc := likeDocument{
		ID:        primitive.NewObjectID(),
		Actor:     actor,
		Review:    review,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			r.logger.Warn("Like already exists",
				zap.String("actor", actor.Hex()),
				zap.String("review", review.Hex()))
			return domain.ErrAlreadyExists
		}
		r.logger.Error("Failed to insert like", zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	return nil
}

// Remove deletes the actor's like on review, reporting whether one existed.
func (r *LikeRepository) Remove(ctx context.Context, actor, review primitive.ObjectID) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"actor": actor, "review": review})
	if err != nil {
		r.logger.Error("Failed to delete like", zap.Error(err),
			zap.String("actor", actor.Hex()),
			zap.String("review", review.Hex()))
		return false, fmt.Errorf("db delete failed: %w", err)
	}
	return result.DeletedCount > 0, nil
}

// Exists reports whether actor currently likes review.
func (r *LikeRepository) Exists(ctx context.Context, actor, review primitive.ObjectID) (bool, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{"actor": actor, "review": review}, options.Count().SetLimit(1))
	if err != nil {
		r.logger.Error("Failed to count likes", zap.Error(err),
			zap.String("actor", actor.Hex()),
			zap.String("review", review.Hex()))
		return false, fmt.Errorf("db count failed: %w", err)
	}
	return count > 0, nil
}
