package audit

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// Repository is the idempotent sink for audit entries.
type Repository interface {
	InsertIfAbsent(ctx context.Context, e Entry) (bool, error)
}

type MongoRepository struct {
	collection *mongo.Collection
}

func NewRepository(db *mongo.Database) Repository {
	return &MongoRepository{collection: db.Collection("audit_entries")}
}

func (r *MongoRepository) InsertIfAbsent(ctx context.Context, e Entry) (bool, error) {
	_, err := r.collection.InsertOne(ctx, e)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("audit entry insert failed: %w", err)
	}
	return true, nil
}
