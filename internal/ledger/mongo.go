package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ragpay/server/internal/config"
)

const purchasesCollection = "chunk_purchases"

// Mongo stores chunk ownership in a chunk_purchases collection with a unique
// compound index on (user_address, chunk_id).
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongo connects and ensures the uniqueness index exists.
func NewMongo(cfg config.DatabaseConfig) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoDBURL))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	collection := client.Database(cfg.MongoDBDatabase).Collection(purchasesCollection)
	_, err = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_address", Value: 1}, {Key: "chunk_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("creating chunk_purchases index: %w", err)
	}

	return &Mongo{client: client, collection: collection}, nil
}

func (m *Mongo) PaidSubset(ctx context.Context, wallet string, ids []string) (map[string]bool, error) {
	result := make(map[string]bool)
	if len(ids) == 0 {
		return result, nil
	}

	cursor, err := m.collection.Find(ctx, bson.M{
		"user_address": wallet,
		"chunk_id":     bson.M{"$in": ids},
	})
	if err != nil {
		return nil, fmt.Errorf("querying chunk_purchases: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc struct {
			ChunkID string `bson:"chunk_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding chunk_purchases document: %w", err)
		}
		result[doc.ChunkID] = true
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunk_purchases cursor: %w", err)
	}
	return result, nil
}

func (m *Mongo) Record(ctx context.Context, wallet string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, len(ids))
	for i, id := range ids {
		docs[i] = bson.M{
			"user_address": wallet,
			"chunk_id":     id,
			"purchased_at": now,
		}
	}

	// Unordered insert keeps going past duplicate-key errors, so recording an
	// already-owned chunk stays idempotent.
	_, err := m.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if err != nil && !isDuplicateKeyOnly(err) {
		return fmt.Errorf("recording %d purchases: %w", len(ids), err)
	}
	return nil
}

func isDuplicateKeyOnly(err error) bool {
	if !mongo.IsDuplicateKeyError(err) {
		return false
	}
	var bulkErr mongo.BulkWriteException
	if errors.As(err, &bulkErr) {
		for _, we := range bulkErr.WriteErrors {
			if we.Code != 11000 {
				return false
			}
		}
	}
	return true
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
