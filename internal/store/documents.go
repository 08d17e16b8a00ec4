package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gcs/internal/apperr"
	"gcs/internal/models"
)

// BlobOwnerPath is the linkage path indexed for blob metadata lookups.
const BlobOwnerPath = "metadata.nid"

type storedDocument struct {
	seq int64
	doc models.Document
}

// Find returns every matching document in insertion order unless opts sorts them.
func (s *Store) Find(ctx context.Context, collection string, cond Condition, opts Options) (_ []models.Document, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.scan(ctx, s.db, collection, cond)
	if err != nil {
		return nil, apperr.Store.Wrap(fmt.Errorf("find %s: %w", collection, err))
	}

	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, row.doc)
	}
	sortDocuments(docs, opts.Sort)
	return window(docs, opts.Skip, opts.Limit), nil
}

// FindOne returns the first matching document, or nil.
func (s *Store) FindOne(ctx context.Context, collection string, cond Condition) (_ models.Document, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	rows, err := s.scan(ctx, s.db, collection, cond)
	if err != nil {
		return nil, apperr.Store.Wrap(fmt.Errorf("find one %s: %w", collection, err))
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].doc, nil
}

// Insert stores doc and returns it with its _id.
func (s *Store) Insert(ctx context.Context, collection string, doc models.Document) (_ models.Document, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := validateCollection(collection); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, apperr.Store.New("insert %s: document is required", collection)
	}

	stored := doc.Clone()
	if stored.ID() == "" {
		stored[models.KeyID] = models.NewID()
	}
	if err := insertDocument(ctx, s.db, collection, stored); err != nil {
		return nil, apperr.Store.Wrap(fmt.Errorf("insert %s: %w", collection, err))
	}
	return stored, nil
}

// Update applies patch to the first document matching cond. With Upsert, a
// document built from the equality clauses of cond is inserted when nothing matches.
func (s *Store) Update(ctx context.Context, collection string, cond Condition, patch Patch, opts UpdateOptions) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := validateCollection(collection); err != nil {
		return err
	}
	if err := patch.Validate(); err != nil {
		return apperr.Store.Wrap(fmt.Errorf("update %s: %w", collection, err))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store.Wrap(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := s.scan(ctx, tx, collection, cond)
	if err != nil {
		return apperr.Store.Wrap(fmt.Errorf("update %s: %w", collection, err))
	}

	if len(rows) == 0 {
		if !opts.Upsert {
			return tx.Commit()
		}
		doc := upsertSeed(cond)
		if err := Apply(doc, patch); err != nil {
			return apperr.Store.Wrap(fmt.Errorf("update %s: %w", collection, err))
		}
		if doc.ID() == "" {
			doc[models.KeyID] = models.NewID()
		}
		if err := insertDocument(ctx, tx, collection, doc); err != nil {
			return apperr.Store.Wrap(fmt.Errorf("upsert %s: %w", collection, err))
		}
		return tx.Commit()
	}

	target := rows[0]
	if err := Apply(target.doc, patch); err != nil {
		return apperr.Store.Wrap(fmt.Errorf("update %s: %w", collection, err))
	}
	body, err := json.Marshal(target.doc)
	if err != nil {
		return apperr.Store.Wrap(fmt.Errorf("encode %s document: %w", collection, err))
	}
	if _, err := tx.ExecContext(ctx, `UPDATE documents SET body = ?, updated_at = ? WHERE seq = ?`,
		string(body), formatTime(time.Now().UTC()), target.seq); err != nil {
		return apperr.Store.Wrap(fmt.Errorf("update %s: %w", collection, err))
	}
	return tx.Commit()
}

// Remove deletes every document matching cond.
func (s *Store) Remove(ctx context.Context, collection string, cond Condition) (err error) {
	defer mon.Task()(&ctx)(&err)

	if err := validateCollection(collection); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Store.Wrap(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	rows, err := s.scan(ctx, tx, collection, cond)
	if err != nil {
		return apperr.Store.Wrap(fmt.Errorf("remove %s: %w", collection, err))
	}
	for _, row := range rows {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE seq = ?`, row.seq); err != nil {
			return apperr.Store.Wrap(fmt.Errorf("remove %s: %w", collection, err))
		}
	}
	return tx.Commit()
}

// Collections lists the collections holding at least one document.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT collection FROM documents ORDER BY collection`)
	if err != nil {
		return nil, apperr.Store.Wrap(err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, apperr.Store.Wrap(err)
		}
		out = append(out, name)
	}
	return out, apperr.Store.Wrap(rows.Err())
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// scan loads candidate rows using the indexed clauses of cond and filters
// the rest in memory.
func (s *Store) scan(ctx context.Context, q queryer, collection string, cond Condition) ([]storedDocument, error) {
	query := `SELECT seq, body FROM documents WHERE collection = ?`
	args := []any{collection}
	if id, ok := cond[models.KeyID].(string); ok {
		query += ` AND id = ?`
		args = append(args, id)
	}
	if owner, ok := cond[BlobOwnerPath].(string); ok {
		query += ` AND json_extract(body, '$.metadata.nid') = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY seq`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storedDocument
	for rows.Next() {
		var seq int64
		var body string
		if err := rows.Scan(&seq, &body); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(body)
		if err != nil {
			return nil, err
		}
		if !Match(doc, cond) {
			continue
		}
		out = append(out, storedDocument{seq: seq, doc: doc})
	}
	return out, rows.Err()
}

func insertDocument(ctx context.Context, x execer, collection string, doc models.Document) error {
	id := doc.ID()
	if id == "" {
		return fmt.Errorf("document id is required")
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	now := formatTime(time.Now().UTC())
	_, err = x.ExecContext(ctx,
		`INSERT INTO documents (collection, id, body, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		collection, id, string(body), now, now)
	return err
}

func decodeDocument(body string) (models.Document, error) {
	var doc models.Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc == nil {
		doc = models.Document{}
	}
	return doc, nil
}

// upsertSeed builds the starting document of an upsert from the plain
// equality clauses of cond.
func upsertSeed(cond Condition) models.Document {
	doc := models.Document{}
	for _, path := range sortedKeys(cond) {
		value := cond[path]
		if _, isList := asList(value); isList {
			continue
		}
		_ = setPath(doc, path, value)
	}
	return doc
}

func validateCollection(collection string) error {
	if strings.TrimSpace(collection) == "" {
		return apperr.Store.New("collection is required")
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
