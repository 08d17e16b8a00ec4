package pool

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"

	"gcs/internal/apperr"
	"gcs/internal/blobstore"
	"gcs/internal/mongostore"
	"gcs/internal/registry"
	"gcs/internal/store"
)

var mon = monkit.Package()

// Dialer opens handles for the drivers named by registry clusters.
type Dialer struct {
	// Content holds blob bytes for sqlite clusters.
	Content blobstore.ContentStore
	// DataDir is used when a sqlite cluster names no dataDir.
	DataDir string
}

var _ Connector = (*Dialer)(nil)

func (d *Dialer) Connect(ctx context.Context, info registry.ConnectionInfo) (_ *Handle, err error) {
	defer mon.Task()(&ctx)(&err)

	if err := validateDatabaseName(info.Name); err != nil {
		return nil, apperr.NoDatabaseConnection.Wrap(err)
	}

	switch strings.ToLower(strings.TrimSpace(info.Cluster.Driver)) {
	case registry.DriverSQLite, "":
		return d.connectSQLite(info)
	case registry.DriverMongo:
		return d.connectMongo(ctx, info)
	default:
		return nil, apperr.NoDatabaseConnection.New("unsupported driver %q for cluster %s", info.Cluster.Driver, info.ClusterName)
	}
}

func (d *Dialer) connectSQLite(info registry.ConnectionInfo) (*Handle, error) {
	if d.Content == nil {
		return nil, apperr.Configuration.New("no blob content store configured")
	}
	dir := strings.TrimSpace(info.Cluster.DataDir)
	if dir == "" {
		dir = d.DataDir
	}
	if dir == "" {
		return nil, apperr.NoDatabaseConnection.New("cluster %s has no data directory", info.ClusterName)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperr.NoDatabaseConnection.Wrap(err)
	}

	st, err := store.Open(filepath.Join(dir, info.Name+".db"))
	if err != nil {
		return nil, apperr.NoDatabaseConnection.Wrap(fmt.Errorf("open database %s: %w", info.Name, err))
	}
	blobs := blobstore.NewFiles(st, d.Content, path.Join(info.Env, info.Name))
	return NewHandle(info, st, blobs, st.Close), nil
}

func (d *Dialer) connectMongo(ctx context.Context, info registry.ConnectionInfo) (*Handle, error) {
	client, err := mongostore.Connect(ctx, info.Cluster.URI, info.Name)
	if err != nil {
		return nil, apperr.NoDatabaseConnection.Wrap(err)
	}
	return NewHandle(info, client, client.GridFS(), client.Close), nil
}

func validateDatabaseName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("database name is required")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid database name %q", name)
	}
	return nil
}
