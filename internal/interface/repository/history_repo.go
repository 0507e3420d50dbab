// internal/interface/repository/history_repo.go
package repository

import (
	"context"
	"fmt"

	"callwatch-service/internal/domain/entity"
	"callwatch-service/internal/domain/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoHistoryRepository implements the HistoryRepository interface
type MongoHistoryRepository struct {
	collection *mongo.Collection
}

// NewMongoHistoryRepository creates a new MongoDB call history repository
func NewMongoHistoryRepository(db *mongo.Database) repository.HistoryRepository {
	collection := db.Collection("callHistory")

	// Create indexes for better performance
	ctx := context.Background()

	callIDIndex := mongo.IndexModel{
		Keys:    bson.M{"call.id": 1},
		Options: options.Index().SetUnique(true),
	}

	// Index on addedAt for newest-first loads and eviction
	addedAtIndex := mongo.IndexModel{
		Keys: bson.M{"addedAt": -1},
	}

	statusIndex := mongo.IndexModel{
		Keys: bson.M{"status": 1},
	}

	collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		callIDIndex,
		addedAtIndex,
		statusIndex,
	})

	return &MongoHistoryRepository{
		collection: collection,
	}
}

// Upsert writes a history entry keyed by its call id
func (r *MongoHistoryRepository) Upsert(ctx context.Context, entry *entity.HistoryEntry) error {
	if entry.Call.ID == "" {
		return fmt.Errorf("history entry without call id")
	}
	if entry.SchemaVersion == 0 {
		entry.SchemaVersion = entity.HistorySchemaVersion
	}

	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, bson.M{"call.id": entry.Call.ID}, entry, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert history entry: %w", err)
	}
	return nil
}

// LoadRecent returns the newest entries first, at most limit of them
func (r *MongoHistoryRepository) LoadRecent(ctx context.Context, limit int) ([]*entity.HistoryEntry, error) {
	limit64 := int64(limit)
	cursor, err := r.collection.Find(ctx, bson.M{}, &options.FindOptions{
		Limit: &limit64,
		Sort:  bson.D{{Key: "addedAt", Value: -1}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*entity.HistoryEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}

	return entries, nil
}

// Trim deletes everything older than the newest cap entries
func (r *MongoHistoryRepository) Trim(ctx context.Context, cap int) error {
	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return err
	}
	excess := count - int64(cap)
	if excess <= 0 {
		return nil
	}

	// Collect the ids of the oldest excess entries and delete them
	cursor, err := r.collection.Find(ctx, bson.M{}, &options.FindOptions{
		Limit:      &excess,
		Sort:       bson.D{{Key: "addedAt", Value: 1}},
		Projection: bson.M{"call.id": 1},
	})
	if err != nil {
		return err
	}
	defer cursor.Close(ctx)

	var oldest []struct {
		Call struct {
			ID string `bson:"id"`
		} `bson:"call"`
	}
	if err := cursor.All(ctx, &oldest); err != nil {
		return err
	}

	ids := make([]string, 0, len(oldest))
	for _, doc := range oldest {
		ids = append(ids, doc.Call.ID)
	}
	if len(ids) == 0 {
		return nil
	}

	_, err = r.collection.DeleteMany(ctx, bson.M{"call.id": bson.M{"$in": ids}})
	return err
}

// Clear removes the whole history
func (r *MongoHistoryRepository) Clear(ctx context.Context) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{})
	return err
}
