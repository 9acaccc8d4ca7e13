package ledger

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quotesync/quote-sync-service/internal/models"
)

// MongoSink implements the ledger contract on MongoDB: a namespaces
// collection keyed by URL and a records collection with the transformed
// payload flattened into the document.
type MongoSink struct {
	client     *mongo.Client
	namespaces *mongo.Collection
	records    *mongo.Collection
}

// NewMongoSink connects to MongoDB and prepares the ledger collections.
func NewMongoSink(ctx context.Context, uri, database string) (*MongoSink, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	db := client.Database(database)
	return &MongoSink{
		client:     client,
		namespaces: db.Collection("namespaces"),
		records:    db.Collection("records"),
	}, nil
}

func (m *MongoSink) EnsureNamespace(ctx context.Context, key string) error {
	_, err := m.namespaces.UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$setOnInsert": bson.M{"key": key, "registered_at": time.Now().UTC()}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to ensure namespace %s: %w", key, err)
	}
	return nil
}

func (m *MongoSink) IngestRecords(ctx context.Context, key string, recs []models.TransformedRecord) error {
	now := time.Now().UTC()
	for _, rec := range recs {
		doc := bson.M{
			"identifier":  rec.Identifier,
			"namespace":   key,
			"amount":      rec.Amount,
			"unit":        rec.Unit,
			"state":       rec.State,
			"expiry":      rec.Expiry,
			"paid_at":     rec.PaidAt,
			"request":     rec.Request,
			"extra":       rec.Extra,
			"ingested_at": now,
		}
		_, err := m.records.ReplaceOne(ctx,
			bson.M{"identifier": rec.Identifier},
			doc,
			options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("failed to ingest record %s: %w", rec.Identifier, err)
		}
	}
	return nil
}

func (m *MongoSink) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
