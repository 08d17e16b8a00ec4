package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"gcs/internal/config"
	"gcs/internal/models"
	"gcs/internal/pipeline"
	"gcs/internal/registry"
)

const testServiceYAML = `
serviceName: gc_notes
errors:
  400: unable to list
  401: unable to add
db:
  collection: notes
  config:
    DEV:
      gc_notes: {cluster: local}
apis:
  /list: {method: get, type: list, mw: {code: 400}}
  /add:  {method: post, type: add, mw: {code: 401, model: add}}
form:
  add:
    - {name: title, type: text}
    - {name: files, type: document}
`

const testRegistryYAML = `
environments:
  dev:
    clusters:
      local:
        driver: sqlite
    databases:
      gc_notes:
        cluster: local
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	servicePath := filepath.Join(dir, "service.yaml")
	registryPath := filepath.Join(dir, "registry.yaml")
	require.NoError(t, os.WriteFile(servicePath, []byte(testServiceYAML), 0o644))
	require.NoError(t, os.WriteFile(registryPath, []byte(testRegistryYAML), 0o644))

	cfg := config.Default()
	cfg.ServiceFile = servicePath
	cfg.DataDir = filepath.Join(dir, "data")
	cfg.Registry.Path = registryPath
	cfg.Blobs.Root = filepath.Join(dir, "data", "blobs")
	return &cfg
}

func addAndList(t *testing.T, rt *runtime) {
	t.Helper()
	ctx := context.Background()
	_, err := rt.engine.Run(ctx, "/add", pipeline.Request{Env: "DEV", Input: map[string]any{"title": "hello"}})
	require.NoError(t, err)

	out, err := rt.engine.Run(ctx, "/list", pipeline.Request{Env: "DEV", Input: map[string]any{}})
	require.NoError(t, err)
	docs, ok := out.([]models.Document)
	require.True(t, ok, "unexpected list result %T", out)
	require.Len(t, docs, 1)
}

func TestBuildRuntimeFileRegistry(t *testing.T) {
	cfg := testConfig(t)
	rt, err := buildRuntime(context.Background(), cfg, newLogger(os.Stderr, 0, "text"))
	require.NoError(t, err)
	defer rt.Close()

	addAndList(t, rt)
	require.FileExists(t, filepath.Join(cfg.DataDir, "db", "gc_notes.db"))
}

func TestBuildRuntimeBoltRegistryWithRedisCache(t *testing.T) {
	cfg := testConfig(t)
	doc, err := registry.LoadFile(cfg.Registry.Path)
	require.NoError(t, err)

	cfg.Registry.Source = "bolt"
	cfg.Registry.Path = ""
	require.NoError(t, withBoltRegistry(cfg, func(lookup *registry.BoltLookup) error {
		_, err := lookup.Import(context.Background(), doc)
		return err
	}))

	mr := miniredis.RunT(t)
	cfg.Cache.RedisAddr = mr.Addr()

	rt, err := buildRuntime(context.Background(), cfg, newLogger(os.Stderr, 0, "text"))
	require.NoError(t, err)
	defer rt.Close()

	addAndList(t, rt)
	require.NotEmpty(t, mr.Keys(), "expected the environment lookup to be cached")
}

func TestBuildRuntimeRequiresServiceFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.ServiceFile = ""
	_, err := buildRuntime(context.Background(), cfg, newLogger(os.Stderr, 0, "text"))
	require.Error(t, err)
}

func TestBuildRuntimeRequiresRegistryPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Registry.Path = ""
	_, err := buildRuntime(context.Background(), cfg, newLogger(os.Stderr, 0, "text"))
	require.Error(t, err)
}
