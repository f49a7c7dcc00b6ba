package storage

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"SentimentPipeline/internal/domain"
	"SentimentPipeline/internal/ports"
)

// Server error codes after which a stored resume token cannot be used again.
const (
	codeChangeStreamFatal   = 280
	codeInvalidResumeToken  = 260
	codeChangeStreamHistory = 286
)

// MongoChangeFeed watches inserts on the articles collection.
type MongoChangeFeed struct {
	coll *mongo.Collection
}

var _ ports.ChangeFeed = (*MongoChangeFeed)(nil)

// NewMongoChangeFeed watches coll.
func NewMongoChangeFeed(coll *mongo.Collection) *MongoChangeFeed {
	return &MongoChangeFeed{coll: coll}
}

func insertPipeline() mongo.Pipeline {
	return mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{{Key: "operationType", Value: "insert"}}}},
	}
}

// Watch opens a stream after resumeAfter, or from now when it is empty.
func (f *MongoChangeFeed) Watch(ctx context.Context, resumeAfter []byte) (ports.ChangeStream, error) {
	opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
	if len(resumeAfter) > 0 {
		opts.SetResumeAfter(bson.Raw(resumeAfter))
	}

	cs, err := f.coll.Watch(ctx, insertPipeline(), opts)
	if err != nil {
		return nil, classifyStreamError(fmt.Errorf("open change stream: %w", err))
	}
	return &mongoStream{cs: cs}, nil
}

type changeDocument struct {
	FullDocument *articleDocument `bson:"fullDocument"`
	DocumentKey  struct {
		ID bson.ObjectID `bson:"_id"`
	} `bson:"documentKey"`
}

type mongoStream struct {
	cs    *mongo.ChangeStream
	event domain.ChangeEvent
	err   error
}

func (s *mongoStream) Next(ctx context.Context) bool {
	if s.err != nil || !s.cs.Next(ctx) {
		return false
	}

	var doc changeDocument
	if err := s.cs.Decode(&doc); err != nil {
		s.err = fmt.Errorf("decode change event: %w", err)
		return false
	}

	s.event = toChangeEvent(doc, s.cs.ResumeToken())
	return true
}

// toChangeEvent leaves Article empty when the document was deleted before lookup.
func toChangeEvent(doc changeDocument, token bson.Raw) domain.ChangeEvent {
	event := domain.ChangeEvent{Token: append([]byte(nil), token...)}
	if doc.FullDocument != nil {
		event.Article = doc.FullDocument.toArticle()
		if event.Article.ID == "" && !doc.DocumentKey.ID.IsZero() {
			event.Article.ID = doc.DocumentKey.ID.Hex()
		}
	}
	return event
}

func (s *mongoStream) Event() domain.ChangeEvent {
	return s.event
}

func (s *mongoStream) Err() error {
	if s.err != nil {
		return s.err
	}
	if err := s.cs.Err(); err != nil {
		return classifyStreamError(fmt.Errorf("change stream: %w", err))
	}
	return nil
}

func (s *mongoStream) Close(ctx context.Context) error {
	return s.cs.Close(ctx)
}

// classifyStreamError marks errors that make the stored token unusable.
func classifyStreamError(err error) error {
	var se mongo.ServerError
	if errors.As(err, &se) &&
		(se.HasErrorCode(codeInvalidResumeToken) ||
			se.HasErrorCode(codeChangeStreamHistory) ||
			se.HasErrorCode(codeChangeStreamFatal)) {
		return fmt.Errorf("%w: %w", ports.ErrResumeTokenInvalid, err)
	}
	return err
}
