package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/zeebo/errs"
)

// Error is the class of registry storage failures.
var Error = errs.Class("registry")

var environmentsBucket = []byte("environments")

const (
	boltFileMode = 0o600
	boltTimeout  = 1 * time.Second
)

// BoltLookup keeps environments in a bolt database, the core database of a deployment.
type BoltLookup struct {
	db   *bolt.DB
	Path string
}

var _ Lookup = (*BoltLookup)(nil)

// OpenBolt opens or creates the core database at path.
func OpenBolt(path string) (*BoltLookup, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, Error.Wrap(err)
	}
	db, err := bolt.Open(path, boltFileMode, &bolt.Options{Timeout: boltTimeout})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(environmentsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, Error.Wrap(err)
	}
	return &BoltLookup{db: db, Path: path}, nil
}

// Close closes the database.
func (b *BoltLookup) Close() error {
	return Error.Wrap(b.db.Close())
}

func (b *BoltLookup) Environment(ctx context.Context, code string) (_ *Environment, err error) {
	defer mon.Task()(&ctx)(&err)

	var env *Environment
	err = b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(environmentsBucket).Get([]byte(NormalizeCode(code)))
		if data == nil {
			return nil
		}
		env = &Environment{}
		if err := json.Unmarshal(data, env); err != nil {
			return fmt.Errorf("decode environment %s: %w", code, err)
		}
		return nil
	})
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return env, nil
}

// Put stores env under its normalized code.
func (b *BoltLookup) Put(ctx context.Context, env Environment) (err error) {
	defer mon.Task()(&ctx)(&err)

	env.Code = NormalizeCode(env.Code)
	if env.Code == "" {
		return Error.New("environment code is required")
	}
	data, err := json.Marshal(env)
	if err != nil {
		return Error.Wrap(err)
	}
	return Error.Wrap(b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(environmentsBucket).Put([]byte(env.Code), data)
	}))
}

// Delete removes an environment. Missing codes are ignored.
func (b *BoltLookup) Delete(ctx context.Context, code string) error {
	return Error.Wrap(b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(environmentsBucket).Delete([]byte(NormalizeCode(code)))
	}))
}

// Codes lists the stored environment codes in key order.
func (b *BoltLookup) Codes(ctx context.Context) ([]string, error) {
	var codes []string
	err := b.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(environmentsBucket).ForEach(func(k, _ []byte) error {
			codes = append(codes, string(k))
			return nil
		})
	})
	return codes, Error.Wrap(err)
}

// Import stores every environment of doc.
func (b *BoltLookup) Import(ctx context.Context, doc EnvironmentFile) (int, error) {
	count := 0
	for _, env := range doc.Normalized() {
		if err := b.Put(ctx, env); err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}
