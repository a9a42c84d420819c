package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/stormydragon/twitfix/internal/domain"
)

// keyNamespace is the uuid5 namespace for deriving document ids from
// source URLs. URLs can contain characters unsuitable as keys, so the
// namespaced hash stands in for them; the constant must never change or
// existing documents become unreachable.
var keyNamespace = uuid.MustParse("135679dc-738a-4596-8bd2-9a70c1cea8c2")

// MongoCache stores one document per record. The deterministic id makes
// lookups a direct document fetch, and the database sorts TopByField
// natively.
type MongoCache struct {
	client *mongo.Client
	links  *mongo.Collection
	logger *slog.Logger
}

// mongoRecord wraps a PostRecord with the document id and a server-side
// insertion timestamp used as the TopByField tie-break.
type mongoRecord struct {
	ID                string    `bson:"_id"`
	CachedAt          time.Time `bson:"cached_at"`
	domain.PostRecord `bson:",inline"`
}

// NewMongoCache connects to the document database.
func NewMongoCache(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoCache, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	return &MongoCache{
		client: client,
		links:  client.Database(database).Collection("linkCache"),
		logger: logger,
	}, nil
}

// cacheKey derives the deterministic document id for a source URL.
func cacheKey(sourceURL string) string {
	id := uuid.NewSHA1(keyNamespace, []byte(sourceURL))
	return strings.ReplaceAll(id.String(), "-", "")
}

func (c *MongoCache) Get(ctx context.Context, sourceURL string) (*domain.PostRecord, error) {
	var doc mongoRecord
	err := c.links.FindOneAndUpdate(ctx,
		bson.M{"_id": cacheKey(sourceURL)},
		bson.M{"$inc": bson.M{"hits": 1}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)

	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}

	rec := doc.PostRecord
	return &rec, nil
}

func (c *MongoCache) Put(ctx context.Context, sourceURL string, rec *domain.PostRecord) (bool, error) {
	doc := mongoRecord{
		ID:         cacheKey(sourceURL),
		CachedAt:   time.Now().UTC(),
		PostRecord: *rec,
	}

	_, err := c.links.ReplaceOne(ctx,
		bson.M{"_id": doc.ID},
		doc,
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	return true, nil
}

func (c *MongoCache) TopByField(ctx context.Context, field string, count, offset int) ([]*domain.PostRecord, error) {
	if err := validSortField(field); err != nil {
		return nil, err
	}

	cursor, err := c.links.Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: field, Value: -1}, {Key: "cached_at", Value: 1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(count)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	defer cursor.Close(ctx)

	var out []*domain.PostRecord
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		rec := doc.PostRecord
		out = append(out, &rec)
	}
	return out, cursor.Err()
}

func (c *MongoCache) Latest(ctx context.Context, count, offset int) ([]*domain.PostRecord, error) {
	cursor, err := c.links.Find(ctx, bson.M{}, options.Find().
		SetSort(bson.D{{Key: "cached_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(count)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCacheUnavailable, err)
	}
	defer cursor.Close(ctx)

	var out []*domain.PostRecord
	for cursor.Next(ctx) {
		var doc mongoRecord
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode document: %w", err)
		}
		rec := doc.PostRecord
		out = append(out, &rec)
	}
	return out, cursor.Err()
}

func (c *MongoCache) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
