package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/gridfs"
	"go.mongodb.org/mongo-driver/mongo/options"

	"gcs/internal/apperr"
	"gcs/internal/blobstore"
	"gcs/internal/models"
	"gcs/internal/store"
)

// GridFS is a blob store over the fs bucket of a database.
type GridFS struct {
	bucket *gridfs.Bucket
	files  *mongo.Collection
}

var _ blobstore.BlobStore = (*GridFS)(nil)

type gridFile struct {
	ID          primitive.ObjectID `bson:"_id"`
	Length      int64              `bson:"length"`
	UploadDate  time.Time          `bson:"uploadDate"`
	Filename    string             `bson:"filename"`
	ContentType string             `bson:"contentType,omitempty"`
	Metadata    *gridLinkage       `bson:"metadata,omitempty"`
}

type gridLinkage struct {
	NID      string `bson:"nid"`
	Field    string `bson:"field"`
	Position int    `bson:"position"`
	Media    string `bson:"media"`
	Mime     string `bson:"mime,omitempty"`
}

func (f gridFile) blob() models.Blob {
	blob := models.Blob{
		ID:          f.ID.Hex(),
		Filename:    f.Filename,
		ContentType: f.ContentType,
		Length:      f.Length,
		UploadDate:  f.UploadDate.UTC(),
	}
	if f.Metadata != nil {
		blob.Metadata = &models.Linkage{
			NID:      f.Metadata.NID,
			Field:    f.Metadata.Field,
			Position: f.Metadata.Position,
			Media:    models.MediaKind(f.Metadata.Media),
			Mime:     f.Metadata.Mime,
		}
	}
	return blob
}

func blobNotFound(id string) error {
	return apperr.Blob.Wrap(apperr.NotFound.New("blob %s", id))
}

func (g *GridFS) OpenWrite(ctx context.Context, filename, contentType string) (blobstore.WriteSink, error) {
	id := primitive.NewObjectID()
	stream, err := g.bucket.OpenUploadStreamWithID(id, filename)
	if err != nil {
		return nil, apperr.Blob.Wrap(err)
	}
	return &gridSink{gridfs: g, ctx: ctx, id: id, contentType: contentType, stream: stream}, nil
}

func (g *GridFS) Stat(ctx context.Context, id string) (models.Blob, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.Blob{}, blobNotFound(id)
	}
	var file gridFile
	err = g.files.FindOne(ctx, bson.M{"_id": oid}).Decode(&file)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Blob{}, blobNotFound(id)
	}
	if err != nil {
		return models.Blob{}, apperr.Blob.Wrap(err)
	}
	return file.blob(), nil
}

func (g *GridFS) OpenRead(ctx context.Context, id string) (_ *blobstore.ReadStream, err error) {
	defer mon.Task()(&ctx)(&err)

	blob, err := g.Stat(ctx, id)
	if err != nil {
		return nil, err
	}
	oid, _ := primitive.ObjectIDFromHex(blob.ID)
	stream, err := g.bucket.OpenDownloadStream(oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return nil, blobNotFound(id)
	}
	if err != nil {
		return nil, apperr.Blob.Wrap(err)
	}
	return &blobstore.ReadStream{ReadCloser: stream, Blob: blob}, nil
}

func (g *GridFS) Remove(ctx context.Context, id string) (err error) {
	defer mon.Task()(&ctx)(&err)

	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return blobNotFound(id)
	}
	err = g.bucket.DeleteContext(ctx, oid)
	if errors.Is(err, gridfs.ErrFileNotFound) {
		return blobNotFound(id)
	}
	return apperr.Blob.Wrap(err)
}

func (g *GridFS) SetMetadata(ctx context.Context, id string, linkage models.Linkage) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return blobNotFound(id)
	}
	res, err := g.files.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"metadata": map[string]any(linkage.Document())}})
	if err != nil {
		return apperr.Blob.Wrap(err)
	}
	if res.MatchedCount == 0 {
		return blobNotFound(id)
	}
	return nil
}

func (g *GridFS) Find(ctx context.Context, cond store.Condition, sort ...store.SortField) ([]models.Blob, error) {
	opts := options.Find()
	if len(sort) > 0 {
		opts.SetSort(sortSpec(sort))
	}
	cursor, err := g.files.Find(ctx, filter(cond), opts)
	if err != nil {
		return nil, apperr.Blob.Wrap(err)
	}
	var files []gridFile
	if err := cursor.All(ctx, &files); err != nil {
		return nil, apperr.Blob.Wrap(err)
	}
	out := make([]models.Blob, 0, len(files))
	for _, file := range files {
		out = append(out, file.blob())
	}
	return out, nil
}

type gridSink struct {
	gridfs      *GridFS
	ctx         context.Context
	id          primitive.ObjectID
	contentType string
	stream      *gridfs.UploadStream
}

func (s *gridSink) ID() string {
	return s.id.Hex()
}

func (s *gridSink) Write(p []byte) (int, error) {
	return s.stream.Write(p)
}

func (s *gridSink) Commit() (models.Blob, error) {
	if err := s.stream.Close(); err != nil {
		return models.Blob{}, apperr.Blob.Wrap(fmt.Errorf("close upload stream: %w", err))
	}
	if s.contentType != "" {
		_, err := s.gridfs.files.UpdateOne(s.ctx, bson.M{"_id": s.id}, bson.M{"$set": bson.M{"contentType": s.contentType}})
		if err != nil {
			return models.Blob{}, apperr.Blob.Wrap(err)
		}
	}
	return s.gridfs.Stat(s.ctx, s.id.Hex())
}

func (s *gridSink) Abort() error {
	return apperr.Blob.Wrap(s.stream.Abort())
}
