package migrations

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const auditCollection = "audit_entries"

// EnsureAuditCollection creates the audit collection indexes. The _id is the
// audit entry's natural identifier, so uniqueness needs no extra index.
func EnsureAuditCollection(ctx context.Context, db *mongo.Database) error {
	collection := db.Collection(auditCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "subject", Value: 1}, {Key: "occurred_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_entries_subject_occurred_at"),
		},
		{
			Keys:    bson.D{{Key: "actor", Value: 1}},
			Options: options.Index().SetName("idx_audit_entries_actor"),
		},
		{
			Keys:    bson.D{{Key: "occurred_at", Value: -1}},
			Options: options.Index().SetName("idx_audit_entries_occurred_at"),
		},
	}

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		// Index already exists with the same spec: fine on re-deploy.
		if !strings.Contains(err.Error(), "IndexOptionsConflict") && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("failed to create audit indexes: %w", err)
		}
	}

	return nil
}
