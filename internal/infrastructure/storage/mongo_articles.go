package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"SentimentPipeline/internal/domain"
	"SentimentPipeline/internal/ports"
)

const mongoSelectionTimeout = 5 * time.Second

// articleDocument is the stored article shape.
type articleDocument struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	URL           string        `bson:"url"`
	Title         string        `bson:"title"`
	ContentBody   string        `bson:"contentBody"`
	SourceName    string        `bson:"sourceName"`
	ContentLength int           `bson:"contentLength"`
	IsAnalyzed    bool          `bson:"isAnalyzed"`
	PublishedAt   time.Time     `bson:"publishedAt"`
}

func toDocument(a domain.Article) articleDocument {
	return articleDocument{
		URL:           a.URL,
		Title:         a.Title,
		ContentBody:   a.Body,
		SourceName:    a.SourceName,
		ContentLength: a.ContentLength,
		IsAnalyzed:    a.IsAnalyzed,
		PublishedAt:   a.PublishedAt,
	}
}

func (d articleDocument) toArticle() domain.Article {
	id := ""
	if !d.ID.IsZero() {
		id = d.ID.Hex()
	}
	return domain.Article{
		ID:            id,
		URL:           d.URL,
		Title:         d.Title,
		Body:          d.ContentBody,
		SourceName:    d.SourceName,
		ContentLength: d.ContentLength,
		IsAnalyzed:    d.IsAnalyzed,
		PublishedAt:   d.PublishedAt,
	}
}

// unanalyzedFilter matches articles whose flag is false or missing.
func unanalyzedFilter() bson.D {
	return bson.D{{Key: "isAnalyzed", Value: bson.D{{Key: "$ne", Value: true}}}}
}

// ConnectMongo dials and pings the document store.
func ConnectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri).SetServerSelectionTimeout(mongoSelectionTimeout))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping mongo: %w", err)
	}
	return client, nil
}

// MongoArticleStore keeps articles in a single collection unique by url.
type MongoArticleStore struct {
	coll *mongo.Collection
}

var _ ports.ArticleStore = (*MongoArticleStore)(nil)

// NewMongoArticleStore wraps the articles collection.
func NewMongoArticleStore(coll *mongo.Collection) *MongoArticleStore {
	return &MongoArticleStore{coll: coll}
}

// Collection exposes the underlying collection for the change feed.
func (s *MongoArticleStore) Collection() *mongo.Collection {
	return s.coll
}

// EnsureIndexes creates the unique url index.
func (s *MongoArticleStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "url", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("url_unique"),
	})
	if err != nil {
		return fmt.Errorf("create url index: %w", err)
	}
	return nil
}

// Exists reports whether an article with url is stored.
func (s *MongoArticleStore) Exists(ctx context.Context, url string) (bool, error) {
	err := s.coll.FindOne(ctx,
		bson.D{{Key: "url", Value: url}},
		options.FindOne().SetProjection(bson.D{{Key: "_id", Value: 1}}),
	).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("find %s: %w", url, err)
	}
	return true, nil
}

// Insert stores a new article and returns its id.
func (s *MongoArticleStore) Insert(ctx context.Context, article domain.Article) (string, error) {
	res, err := s.coll.InsertOne(ctx, toDocument(article))
	if mongo.IsDuplicateKeyError(err) {
		return "", ports.ErrDuplicateArticle
	}
	if err != nil {
		return "", fmt.Errorf("insert %s: %w", article.URL, err)
	}

	id, ok := res.InsertedID.(bson.ObjectID)
	if !ok {
		return fmt.Sprint(res.InsertedID), nil
	}
	return id.Hex(), nil
}

// FindUnanalyzed returns every article not yet enriched, in natural order.
func (s *MongoArticleStore) FindUnanalyzed(ctx context.Context) ([]domain.Article, error) {
	cursor, err := s.coll.Find(ctx, unanalyzedFilter())
	if err != nil {
		return nil, fmt.Errorf("find unanalyzed: %w", err)
	}

	var docs []articleDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode unanalyzed: %w", err)
	}

	articles := make([]domain.Article, 0, len(docs))
	for _, d := range docs {
		articles = append(articles, d.toArticle())
	}
	return articles, nil
}

// MarkAnalyzed sets the isAnalyzed flag on one article.
func (s *MongoArticleStore) MarkAnalyzed(ctx context.Context, id string) error {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("article id %q: %w", id, err)
	}

	_, err = s.coll.UpdateOne(ctx,
		bson.D{{Key: "_id", Value: oid}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "isAnalyzed", Value: true}}}},
	)
	if err != nil {
		return fmt.Errorf("mark %s analyzed: %w", id, err)
	}
	return nil
}
