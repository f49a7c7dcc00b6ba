package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"SentimentPipeline/internal/ports"
)

// CheckpointCollection holds one resume token document per consumer.
const CheckpointCollection = "consumer_checkpoints"

type checkpointDocument struct {
	Name      string    `bson:"_id"`
	Token     []byte    `bson:"token"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoTokenStore persists the resume token next to the articles.
type MongoTokenStore struct {
	coll *mongo.Collection
	name string
	now  func() time.Time
}

var _ ports.TokenStore = (*MongoTokenStore)(nil)

// NewMongoTokenStore keeps the token for consumer name in coll.
func NewMongoTokenStore(coll *mongo.Collection, name string) *MongoTokenStore {
	return &MongoTokenStore{coll: coll, name: name, now: time.Now}
}

func (s *MongoTokenStore) Load(ctx context.Context) ([]byte, error) {
	var doc checkpointDocument
	err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: s.name}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", s.name, err)
	}
	return doc.Token, nil
}

func (s *MongoTokenStore) Save(ctx context.Context, token []byte) error {
	_, err := s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: s.name}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "token", Value: token},
			{Key: "updatedAt", Value: s.now().UTC()},
		}}},
		options.UpdateOne().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint %s: %w", s.name, err)
	}
	return nil
}

func (s *MongoTokenStore) Clear(ctx context.Context) error {
	if _, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: s.name}}); err != nil {
		return fmt.Errorf("clear checkpoint %s: %w", s.name, err)
	}
	return nil
}
