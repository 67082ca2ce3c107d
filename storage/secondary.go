package storage

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSecondaryStore implements SecondaryStore on a mongodb database.
// Story/scenario/prompt/video documents live in separate collections that
// succeed or fail independently.
type MongoSecondaryStore struct {
	db       *mongo.Database
	enabled  bool
	complete bool
}

// MongoConfig carries the secondary store connection settings.
type MongoConfig struct {
	URI      string
	Database string
	Enabled  bool
}

// NewMongoSecondaryStore connects to mongodb. A disabled or unconfigured
// store still constructs successfully: availability is reported through
// Enabled/Configured and policy-checked per write by the engine.
func NewMongoSecondaryStore(ctx context.Context, cfg MongoConfig) (*MongoSecondaryStore, error) {
	if !cfg.Enabled || cfg.URI == "" {
		return &MongoSecondaryStore{enabled: false, complete: false}, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}

	return &MongoSecondaryStore{
		db:       client.Database(cfg.Database),
		enabled:  true,
		complete: cfg.Database != "",
	}, nil
}

func (s *MongoSecondaryStore) Enabled() bool {
	return s.enabled
}

func (s *MongoSecondaryStore) Configured() bool {
	return s.enabled && s.complete
}

// Upsert replaces the document keyed by id, inserting when absent.
func (s *MongoSecondaryStore) Upsert(ctx context.Context, collection, id string, doc interface{}) error {
	if !s.enabled {
		return errors.New("secondary store is disabled")
	}
	_, err := s.db.Collection(collection).ReplaceOne(
		ctx,
		bson.M{"_id": id},
		doc,
		options.Replace().SetUpsert(true),
	)
	return err
}

// Delete removes a document by id. Missing documents are not an error so
// best-effort cleanup stays idempotent.
func (s *MongoSecondaryStore) Delete(ctx context.Context, collection, id string) error {
	if !s.enabled {
		return errors.New("secondary store is disabled")
	}
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Get decodes the document keyed by id into dest.
func (s *MongoSecondaryStore) Get(ctx context.Context, collection, id string, dest interface{}) error {
	if !s.enabled {
		return errors.New("secondary store is disabled")
	}
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(dest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
