package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"gcs/internal/blobstore"
	"gcs/internal/config"
	"gcs/internal/definition"
	"gcs/internal/mutation"
	"gcs/internal/pipeline"
	"gcs/internal/pool"
	"gcs/internal/registry"
)

const boltRegistryFileName = "registry.db"

// runtime holds the long-lived collaborators of a service process.
type runtime struct {
	def      *definition.Definition
	resolver *registry.Resolver
	engine   *pipeline.Engine
	shared   *pool.Shared
	closers  []func() error
}

func buildRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *runtime, err error) {
	if strings.TrimSpace(cfg.ServiceFile) == "" {
		return nil, fmt.Errorf("service_file is required (set it with: gcs config set service_file <path>)")
	}
	def, err := definition.Load(cfg.ServiceFile)
	if err != nil {
		return nil, err
	}

	rt := &runtime{def: def, shared: &pool.Shared{}}
	defer func() {
		if err != nil {
			_ = rt.Close()
		}
	}()
	rt.closers = append(rt.closers, rt.shared.Close)

	lookup, err := rt.openLookup(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	content, err := openContent(ctx, cfg)
	if err != nil {
		return nil, err
	}

	dialer := &pool.Dialer{Content: content, DataDir: filepath.Join(cfg.DataDir, "db")}
	rt.resolver = registry.NewResolver(lookup, def.ServiceName, def.Bindings())
	rt.engine, err = pipeline.New(def, pipeline.Options{
		Resolver: rt.resolver,
		Policy:   pool.NewPolicy(def.DB.Multitenant, dialer, rt.shared),
		Models:   mutation.NewRegistry(),
		Handlers: pipeline.NewHandlers(),
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *runtime) openLookup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (registry.Lookup, error) {
	var lookup registry.Lookup
	switch cfg.Registry.Source {
	case "bolt":
		bolt, err := registry.OpenBolt(boltRegistryPath(cfg))
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, bolt.Close)
		lookup = bolt
	default:
		if strings.TrimSpace(cfg.Registry.Path) == "" {
			return nil, fmt.Errorf("registry.path is required for the file registry")
		}
		file, err := registry.NewFileLookup(cfg.Registry.Path)
		if err != nil {
			return nil, err
		}
		lookup = file
	}

	if cfg.Cache.RedisAddr == "" {
		return lookup, nil
	}
	client, err := registry.OpenRedis(ctx, cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, client.Close)
	return registry.NewCachedLookup(lookup, client, cfg.Cache.TTL.Duration, logger), nil
}

func boltRegistryPath(cfg *config.Config) string {
	if path := strings.TrimSpace(cfg.Registry.Path); path != "" && cfg.Registry.Source == "bolt" {
		return path
	}
	return filepath.Join(cfg.DataDir, boltRegistryFileName)
}

func openContent(ctx context.Context, cfg *config.Config) (blobstore.ContentStore, error) {
	switch cfg.Blobs.Backend {
	case "minio":
		return blobstore.NewMinIO(ctx, blobstore.MinIOConfig{
			Endpoint:  cfg.Blobs.MinIOEndpoint,
			AccessKey: cfg.Blobs.MinIOAccessKey,
			SecretKey: cfg.Blobs.MinIOSecretKey,
			Bucket:    cfg.Blobs.MinIOBucket,
			Secure:    cfg.Blobs.MinIOSecure,
		})
	default:
		return blobstore.NewLocalFS(cfg.Blobs.Root)
	}
}

// Close releases everything opened by buildRuntime, newest first.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
