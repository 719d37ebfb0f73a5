package kv

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoStore keeps entries as {_id: key, value: string} documents.
type MongoStore struct {
	col *mongo.Collection
}

// NewMongoStore uses the kv_entries collection of db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("kv_entries")}
}

type mongoEntry struct {
	Key   string `bson:"_id"`
	Value string `bson:"value"`
}

func (m *MongoStore) Get(ctx context.Context, key string) (string, bool, error) {
	var e mongoEntry
	err := m.col.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: mongo get %s: %w", ErrUnavailable, key, err)
	}
	return e.Value, true, nil
}

func (m *MongoStore) Set(ctx context.Context, key, value string) error {
	_, err := m.col.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: key}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "value", Value: value}}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("%w: mongo set %s: %w", ErrUnavailable, key, err)
	}
	return nil
}

func (m *MongoStore) Remove(ctx context.Context, key string) error {
	if _, err := m.col.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}}); err != nil {
		return fmt.Errorf("%w: mongo remove %s: %w", ErrUnavailable, key, err)
	}
	return nil
}
