package mutation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"gcs/internal/apperr"
	"gcs/internal/store"
)

func TestGenericAddSkipsReservedKeys(t *testing.T) {
	fields, err := GenericAdd(context.Background(), Input{
		"id":    "ignored",
		"env":   "DEV",
		"title": "hello",
		"tags":  []any{"a", "b"},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"title": "hello", "tags": []any{"a", "b"}}, fields)
}

func TestGenericUpdateBuildsSetEnvelope(t *testing.T) {
	patch, err := GenericUpdate(context.Background(), Input{
		"id":    "5f0c0c0c0c0c0c0c0c0c0c0c",
		"title": "renamed",
		"count": 3,
	})
	require.NoError(t, err)
	require.Equal(t, store.Patch{store.OpSet: map[string]any{
		"fields.title": "renamed",
		"fields.count": 3,
	}}, patch)
}

func TestGenericUpdateRejectsOperatorKeys(t *testing.T) {
	_, err := GenericUpdate(context.Background(), Input{"$where": "1"})
	require.True(t, apperr.BadRequest.Has(err), "got %v", err)
}

func TestRegistryDefaults(t *testing.T) {
	r := NewRegistry()
	require.Equal(t, []string{"add", "generic", "update"}, r.Names())

	_, err := r.AddFor("add")
	require.NoError(t, err)
	_, err = r.UpdateFor("update")
	require.NoError(t, err)

	_, err = r.UpdateFor("add")
	require.True(t, apperr.Configuration.Has(err), "got %v", err)
	_, err = r.AddFor("missing")
	require.True(t, apperr.Configuration.Has(err), "got %v", err)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.Error(t, r.Register("", Model{Add: GenericAdd}))
	require.Error(t, r.Register("empty", Model{}))
	require.Error(t, r.Register("add", Model{Add: GenericAdd}))

	custom := func(_ context.Context, input Input) (map[string]any, error) {
		return map[string]any{"title": input["name"]}, nil
	}
	require.NoError(t, r.Register("page", Model{Add: custom}))
	add, err := r.AddFor("page")
	require.NoError(t, err)
	fields, err := add(context.Background(), Input{"name": "x"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"title": "x"}, fields)
}

func TestTouchedFields(t *testing.T) {
	patch := store.Patch{
		store.OpSet: map[string]any{
			"fields.title":       "x",
			"fields.meta.author": "y",
			"modified":           1,
		},
		store.OpPush: map[string]any{"fields.photos": "id"},
	}
	require.Equal(t, []string{"meta", "photos", "title"}, TouchedFields(patch))

	whole := store.Set("fields", map[string]any{"photos": []any{}, "title": "t"})
	require.Equal(t, []string{"photos", "title"}, TouchedFields(whole))
}
