package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/sloanfm/biscuit/internal/domain"
	"github.com/sloanfm/biscuit/internal/platform/logger"
)

const userCollectionName = "users"

// UserStatsRepository maintains the denormalized review counters embedded in
// user documents. User documents themselves are owned by the account system;
// this repository only touches the stats subdocument.
type UserStatsRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

func NewUserStatsRepository(db *mongo.Database, log *logger.Logger) *UserStatsRepository {
	return &UserStatsRepository{
		collection: db.Collection(userCollectionName),
		logger:     log.Named("UserStatsRepository"),
	}
}

// IncrementReviewStats adjusts the author's reviewed-release and
// reviewed-artist counters. Deltas may be negative.
func (r *UserStatsRepository) IncrementReviewStats(ctx context.Context, author primitive.ObjectID, releasesDelta, artistsDelta int64) error {
	update := bson.M{"$inc": bson.M{
		"stats.releases": releasesDelta,
		"stats.artists":  artistsDelta,
	}}

	result, err := r.collection.UpdateByID(ctx, author, update)
	if err != nil {
		r.logger.Error("Failed to increment user review stats", zap.Error(err),
			zap.String("author", author.Hex()))
		return fmt.Errorf("db update failed: %w", err)
	}
	if result.MatchedCount == 0 {
		r.logger.Warn("User not found for stats update", zap.String("author", author.Hex()))
		return domain.ErrNotFound
	}
	return nil
}

// ReplaceAllStats resets every user's counters and installs the freshly
// aggregated values. Users without any reviews are zeroed by the first pass.
func (r *UserStatsRepository) ReplaceAllStats(ctx context.Context, stats []domain.AuthorStats) error {
	_, err := r.collection.UpdateMany(ctx, bson.M{}, bson.M{"$set": bson.M{
		"stats.releases": int64(0),
		"stats.artists":  int64(0),
	}})
	if err != nil {
		r.logger.Error("Failed to reset user review stats", zap.Error(err))
		return fmt.Errorf("db updatemany failed: %w", err)
	}

	if len(stats) == 0 {
		return nil
	}

	models := make([]mongo.WriteModel, 0, len(stats))
	for _, s := range stats {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": s.Author}).
			SetUpdate(bson.M{"$set": bson.M{
				"stats.releases": s.Releases,
				"stats.artists":  s.Artists,
			}}))
	}

	if _, err := r.collection.BulkWrite(ctx, models); err != nil {
		r.logger.Error("Failed to write aggregated user review stats", zap.Error(err))
		return fmt.Errorf("db bulkwrite failed: %w", err)
	}

	r.logger.Info("Replaced user review stats", zap.Int("authors", len(stats)))
	return nil
}
