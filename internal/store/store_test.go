package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"gcs/internal/apperr"
	"gcs/internal/models"
)

// testStore creates a temporary store for testing.
func testStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	st, err := Open(path)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestInsertAssignsIDAndFindOne(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	inserted, err := st.Insert(ctx, "pages", models.Document{
		"created": int64(1700000000000),
		"fields":  map[string]any{"title": "home"},
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !models.IsValidID(inserted.ID()) {
		t.Fatalf("expected generated id, got %q", inserted.ID())
	}

	got, err := st.FindOne(ctx, "pages", Condition{"_id": inserted.ID()})
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if got == nil {
		t.Fatal("expected document, got nil")
	}
	if got.Fields()["title"] != "home" {
		t.Fatalf("unexpected fields: %#v", got.Fields())
	}
	if got["created"] != float64(1700000000000) {
		t.Fatalf("unexpected created: %#v", got["created"])
	}
}

func TestFindOneMissingReturnsNil(t *testing.T) {
	st := testStore(t)
	got, err := st.FindOne(context.Background(), "pages", Condition{"_id": models.NewID()})
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %#v", got)
	}
}

func TestInsertDuplicateIDIsStoreError(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	id := models.NewID()

	if _, err := st.Insert(ctx, "pages", models.Document{"_id": id}); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	_, err := st.Insert(ctx, "pages", models.Document{"_id": id})
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if !apperr.Store.Has(err) {
		t.Fatalf("expected store error, got %v", err)
	}

	if _, err := st.Insert(ctx, "posts", models.Document{"_id": id}); err != nil {
		t.Fatalf("same id in another collection: %v", err)
	}
}

func TestFindConditionSortLimitSkip(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	for i, title := range []string{"c", "a", "d", "b"} {
		_, err := st.Insert(ctx, "pages", models.Document{
			"created": i,
			"fields":  map[string]any{"title": title, "kind": "page"},
		})
		if err != nil {
			t.Fatalf("insert %s: %v", title, err)
		}
	}
	if _, err := st.Insert(ctx, "pages", models.Document{"fields": map[string]any{"title": "z", "kind": "draft"}}); err != nil {
		t.Fatalf("insert draft: %v", err)
	}

	all, err := st.Find(ctx, "pages", Condition{}, Options{})
	if err != nil {
		t.Fatalf("find all: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 documents, got %d", len(all))
	}

	pages, err := st.Find(ctx, "pages", Condition{"fields.kind": "page"}, Options{
		Sort:  []SortField{{Field: "fields.title"}},
		Skip:  1,
		Limit: 2,
	})
	if err != nil {
		t.Fatalf("find pages: %v", err)
	}
	if len(pages) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(pages))
	}
	if pages[0].Fields()["title"] != "b" || pages[1].Fields()["title"] != "c" {
		t.Fatalf("unexpected page: %v %v", pages[0].Fields(), pages[1].Fields())
	}

	none, err := st.Find(ctx, "posts", Condition{}, Options{})
	if err != nil {
		t.Fatalf("find empty collection: %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", none)
	}
}

func TestUpdateSetPushPull(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()

	doc, err := st.Insert(ctx, "pages", models.Document{"fields": map[string]any{"title": "x"}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	byID := Condition{"_id": doc.ID()}

	steps := []Patch{
		Set("fields.title", "y"),
		Push("fields.attachments", "b1"),
		Push("fields.attachments", "b2"),
		Pull("fields.attachments", "b1"),
	}
	for _, patch := range steps {
		if err := st.Update(ctx, "pages", byID, patch, UpdateOptions{}); err != nil {
			t.Fatalf("update %v: %v", patch, err)
		}
	}

	got, err := st.FindOne(ctx, "pages", byID)
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if got.Fields()["title"] != "y" {
		t.Fatalf("expected title y, got %#v", got.Fields()["title"])
	}
	ids := models.IDList(got.Fields()["attachments"])
	if len(ids) != 1 || ids[0] != "b2" {
		t.Fatalf("unexpected attachments: %#v", ids)
	}
}

func TestUpdateWithoutMatch(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	missing := Condition{"_id": models.NewID()}

	if err := st.Update(ctx, "pages", missing, Set("fields.title", "x"), UpdateOptions{}); err != nil {
		t.Fatalf("update without upsert: %v", err)
	}
	docs, err := st.Find(ctx, "pages", Condition{}, Options{})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("expected no documents, got %d", len(docs))
	}

	if err := st.Update(ctx, "pages", missing, Set("fields.title", "x"), UpdateOptions{Upsert: true}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := st.FindOne(ctx, "pages", missing)
	if err != nil {
		t.Fatalf("find upserted: %v", err)
	}
	if got == nil || got.Fields()["title"] != "x" {
		t.Fatalf("unexpected upserted document: %#v", got)
	}
}

func TestUpdateInvalidPatchIsStoreError(t *testing.T) {
	st := testStore(t)
	err := st.Update(context.Background(), "pages", Condition{}, Patch{"title": "x"}, UpdateOptions{})
	if !apperr.Store.Has(err) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestRemoveByOwner(t *testing.T) {
	st := testStore(t)
	ctx := context.Background()
	owner := models.NewID()

	for i := 0; i < 3; i++ {
		if _, err := st.Insert(ctx, "fs.files", models.Document{"metadata": map[string]any{"nid": owner, "position": i}}); err != nil {
			t.Fatalf("insert blob %d: %v", i, err)
		}
	}
	if _, err := st.Insert(ctx, "fs.files", models.Document{"metadata": map[string]any{"nid": models.NewID()}}); err != nil {
		t.Fatalf("insert foreign blob: %v", err)
	}

	owned, err := st.Find(ctx, "fs.files", Condition{BlobOwnerPath: owner}, Options{Sort: []SortField{{Field: "metadata.position", Desc: true}}})
	if err != nil {
		t.Fatalf("find owned: %v", err)
	}
	if len(owned) != 3 {
		t.Fatalf("expected 3 owned blobs, got %d", len(owned))
	}

	if err := st.Remove(ctx, "fs.files", Condition{BlobOwnerPath: owner}); err != nil {
		t.Fatalf("remove: %v", err)
	}
	rest, err := st.Find(ctx, "fs.files", Condition{}, Options{})
	if err != nil {
		t.Fatalf("find rest: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("expected 1 remaining blob, got %d", len(rest))
	}

	collections, err := st.Collections(ctx)
	if err != nil {
		t.Fatalf("collections: %v", err)
	}
	if len(collections) != 1 || collections[0] != "fs.files" {
		t.Fatalf("unexpected collections: %v", collections)
	}
}

func TestEmptyCollectionName(t *testing.T) {
	st := testStore(t)
	if _, err := st.Find(context.Background(), " ", Condition{}, Options{}); err == nil {
		t.Fatal("expected error for empty collection")
	}
}

func TestPoolSettingsFromEnv(t *testing.T) {
	defaults := poolSettings{MaxOpen: 1, MaxIdle: 1, MaxLifetime: 5 * time.Minute}
	cases := []struct {
		name string
		env  map[string]string
		want poolSettings
	}{
		{name: "unset", want: defaults},
		{
			name: "overrides",
			env:  map[string]string{"GCS_DB_MAX_OPEN_CONNS": "4", "GCS_DB_MAX_IDLE_CONNS": " 2 ", "GCS_DB_CONN_MAX_LIFETIME": "45s"},
			want: poolSettings{MaxOpen: 4, MaxIdle: 2, MaxLifetime: 45 * time.Second},
		},
		{
			name: "bare seconds",
			env:  map[string]string{"GCS_DB_CONN_MAX_LIFETIME": "30"},
			want: poolSettings{MaxOpen: 1, MaxIdle: 1, MaxLifetime: 30 * time.Second},
		},
		{
			name: "malformed and non-positive keep defaults",
			env:  map[string]string{"GCS_DB_MAX_OPEN_CONNS": "bad", "GCS_DB_MAX_IDLE_CONNS": "0", "GCS_DB_CONN_MAX_LIFETIME": "-1m"},
			want: defaults,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, key := range []string{maxOpenConnsEnvKey, maxIdleConnsEnvKey, connMaxLifetimeEnvKey} {
				t.Setenv(key, tc.env[key])
			}
			if diff := cmp.Diff(tc.want, poolSettingsFromEnv()); diff != "" {
				t.Fatalf("settings mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOpenAppliesPoolSettings(t *testing.T) {
	t.Setenv(maxOpenConnsEnvKey, "3")
	t.Setenv(maxIdleConnsEnvKey, "")
	t.Setenv(connMaxLifetimeEnvKey, "")

	st := testStore(t)
	if got := st.db.Stats().MaxOpenConnections; got != 3 {
		t.Fatalf("expected GCS_DB_MAX_OPEN_CONNS to size the pool, got %d", got)
	}

	t.Setenv(maxOpenConnsEnvKey, "")
	if got := testStore(t).db.Stats().MaxOpenConnections; got != defaultMaxOpenConns {
		t.Fatalf("expected default pool size %d, got %d", defaultMaxOpenConns, got)
	}
}
