package kvstore

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type mongoItem struct {
	Key     string `bson:"_id"`
	Value   []byte `bson:"value"`
	Version string `bson:"version"`
}

// MongoStore implements Store with one document per key in a dedicated collection.
// Every write stamps a fresh ObjectID as the version.
type MongoStore struct {
	coll *mongo.Collection
}

// NewMongoStore binds the named logical store to a collection of db.
func NewMongoStore(db *mongo.Database, storeName string) (*MongoStore, error) {
	if db == nil || storeName == "" {
		return nil, ErrInvalidConfig
	}
	return &MongoStore{coll: db.Collection(storeName)}, nil
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := s.GetVersioned(ctx, key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// GetVersioned implements Store.
func (s *MongoStore) GetVersioned(ctx context.Context, key string) (Item, error) {
	if key == "" {
		return Item{}, ErrEmptyKey
	}

	var doc mongoItem
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return Item{}, ErrNotFound
	}
	if err != nil {
		return Item{}, unavailable(err)
	}

	return Item{Key: key, Value: doc.Value, Version: doc.Version}, nil
}

// Set implements Store.
func (s *MongoStore) Set(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "value", Value: value},
		{Key: "version", Value: bson.NewObjectID().Hex()},
	}}}
	_, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: key}}, update, options.UpdateOne().SetUpsert(true))
	if err != nil {
		return unavailable(err)
	}
	return nil
}

// Delete implements Store.
func (s *MongoStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}}); err != nil {
		return unavailable(err)
	}
	return nil
}

// CompareAndSwap implements Store.
func (s *MongoStore) CompareAndSwap(ctx context.Context, key string, value []byte, expectedVersion string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}

	version := bson.NewObjectID().Hex()

	if expectedVersion == "" {
		_, err := s.coll.InsertOne(ctx, mongoItem{Key: key, Value: value, Version: version})
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrVersionConflict
		}
		if err != nil {
			return "", unavailable(err)
		}
		return version, nil
	}

	filter := bson.D{
		{Key: "_id", Value: key},
		{Key: "version", Value: expectedVersion},
	}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "value", Value: value},
		{Key: "version", Value: version},
	}}}

	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return "", unavailable(err)
	}
	if res.MatchedCount == 0 {
		return "", ErrVersionConflict
	}
	return version, nil
}
