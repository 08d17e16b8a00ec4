// Package mongostore serves the record and blob store contracts from a
// MongoDB database and its GridFS bucket.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spacemonkeygo/monkit/v3"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gcs/internal/apperr"
	"gcs/internal/models"
	"gcs/internal/store"
)

var mon = monkit.Package()

const disconnectTimeout = 5 * time.Second

// Client is a record store over one MongoDB database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	bucket *gridfs.Bucket
}

var _ store.RecordStore = (*Client)(nil)

// Connect opens database on the cluster at uri.
func Connect(ctx context.Context, uri, database string) (*Client, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", database, err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("ping %s: %w", database, err)
	}

	db := client.Database(database)
	bucket, err := gridfs.NewBucket(db)
	if err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, fmt.Errorf("gridfs bucket: %w", err)
	}
	return &Client{client: client, db: db, bucket: bucket}, nil
}

// GridFS returns the blob store of the database.
func (c *Client) GridFS() *GridFS {
	return &GridFS{bucket: c.bucket, files: c.db.Collection("fs.files")}
}

func (c *Client) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	return c.client.Disconnect(ctx)
}

func (c *Client) Find(ctx context.Context, collection string, cond store.Condition, opts store.Options) (_ []models.Document, err error) {
	defer mon.Task()(&ctx)(&err)

	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(sortSpec(opts.Sort))
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(int64(opts.Skip))
	}

	cursor, err := c.db.Collection(collection).Find(ctx, filter(cond), findOpts)
	if err != nil {
		return nil, apperr.Store.Wrap(err)
	}
	var raw []bson.M
	if err := cursor.All(ctx, &raw); err != nil {
		return nil, apperr.Store.Wrap(err)
	}
	out := make([]models.Document, 0, len(raw))
	for _, doc := range raw {
		out = append(out, normalizeDocument(doc))
	}
	return out, nil
}

func (c *Client) FindOne(ctx context.Context, collection string, cond store.Condition) (_ models.Document, err error) {
	defer mon.Task()(&ctx)(&err)

	var raw bson.M
	err = c.db.Collection(collection).FindOne(ctx, filter(cond)).Decode(&raw)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Store.Wrap(err)
	}
	return normalizeDocument(raw), nil
}

func (c *Client) Insert(ctx context.Context, collection string, doc models.Document) (_ models.Document, err error) {
	defer mon.Task()(&ctx)(&err)

	stored := doc.Clone()
	if stored.ID() == "" {
		stored[models.KeyID] = models.NewID()
	}
	encoded := bson.M(stored.Clone())
	encoded[models.KeyID] = objectID(stored.ID())
	if _, err := c.db.Collection(collection).InsertOne(ctx, encoded); err != nil {
		return nil, apperr.Store.Wrap(err)
	}
	return stored, nil
}

func (c *Client) Update(ctx context.Context, collection string, cond store.Condition, patch store.Patch, opts store.UpdateOptions) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := patch.Validate(); err != nil {
		return apperr.Store.Wrap(err)
	}
	_, err = c.db.Collection(collection).UpdateOne(ctx, filter(cond), bson.M(patch), options.Update().SetUpsert(opts.Upsert))
	return apperr.Store.Wrap(err)
}

func (c *Client) Remove(ctx context.Context, collection string, cond store.Condition) (err error) {
	defer mon.Task()(&ctx)(&err)

	_, err = c.db.Collection(collection).DeleteMany(ctx, filter(cond))
	return apperr.Store.Wrap(err)
}

// filter converts a condition, storing _id clauses as ObjectIDs.
func filter(cond store.Condition) bson.M {
	out := bson.M{}
	for key, value := range cond {
		if key == models.KeyID {
			if id, ok := value.(string); ok {
				out[key] = objectID(id)
				continue
			}
		}
		out[key] = value
	}
	return out
}

func sortSpec(fields []store.SortField) bson.D {
	spec := bson.D{}
	for _, field := range fields {
		dir := 1
		if field.Desc {
			dir = -1
		}
		spec = append(spec, bson.E{Key: field.Field, Value: dir})
	}
	return spec
}

// objectID returns the ObjectID form of a hex id, or the id unchanged.
func objectID(id string) any {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return id
	}
	return oid
}

func normalizeDocument(doc bson.M) models.Document {
	return models.Document(normalizeValue(map[string]any(doc)).(map[string]any))
}

func normalizeValue(v any) any {
	switch t := v.(type) {
	case primitive.ObjectID:
		return t.Hex()
	case primitive.DateTime:
		return t.Time().UTC()
	case primitive.M:
		return normalizeMap(t)
	case map[string]any:
		return normalizeMap(t)
	case primitive.D:
		out := make(map[string]any, len(t))
		for _, e := range t {
			out[e.Key] = normalizeValue(e.Value)
		}
		return out
	case primitive.A:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalizeValue(item)
		}
		return out
	default:
		return v
	}
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}
