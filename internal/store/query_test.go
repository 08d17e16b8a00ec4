package store

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"gcs/internal/models"
)

func TestMatch(t *testing.T) {
	doc := models.Document{
		"_id":     "r1",
		"created": float64(1700000000000),
		"fields": map[string]any{
			"title":       "home",
			"attachments": []any{"b1", "b2"},
		},
		"metadata": map[string]any{"nid": "r1", "position": float64(0)},
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{name: "empty", cond: Condition{}, want: true},
		{name: "id", cond: Condition{"_id": "r1"}, want: true},
		{name: "nested", cond: Condition{"fields.title": "home"}, want: true},
		{name: "nested mismatch", cond: Condition{"fields.title": "about"}, want: false},
		{name: "int against float", cond: Condition{"metadata.position": 0}, want: true},
		{name: "list contains", cond: Condition{"fields.attachments": "b2"}, want: true},
		{name: "list missing element", cond: Condition{"fields.attachments": "b3"}, want: false},
		{name: "exact list", cond: Condition{"fields.attachments": []any{"b1", "b2"}}, want: true},
		{name: "missing path", cond: Condition{"fields.body": "x"}, want: false},
		{name: "missing path nil", cond: Condition{"fields.body": nil}, want: true},
		{name: "all clauses", cond: Condition{"_id": "r1", "metadata.nid": "r2"}, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Match(doc, tc.cond); got != tc.want {
				t.Fatalf("Match(%v) = %v, want %v", tc.cond, got, tc.want)
			}
		})
	}
}

func TestApplyPatch(t *testing.T) {
	doc := models.Document{
		"_id":    "r1",
		"fields": map[string]any{"title": "x", "attachments": []any{"b1", "b2"}},
	}

	patch := Patch{
		OpSet:  map[string]any{"fields.title": "y", "modified": 42},
		OpPush: map[string]any{"fields.gallery": "g1"},
		OpPull: map[string]any{"fields.attachments": "b1"},
	}
	if err := Apply(doc, patch); err != nil {
		t.Fatalf("apply: %v", err)
	}

	want := models.Document{
		"_id":      "r1",
		"modified": 42,
		"fields": map[string]any{
			"title":       "y",
			"attachments": []any{"b2"},
			"gallery":     []any{"g1"},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("unexpected document (-want +got):\n%s", diff)
	}
}

func TestApplyPatchRejectsInvalidPatches(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
	}{
		{name: "empty", patch: Patch{}},
		{name: "unknown operator", patch: Patch{"$inc": map[string]any{"n": 1}}},
		{name: "replacement document", patch: Patch{"title": "x"}},
		{name: "operand not a map", patch: Patch{OpSet: "x"}},
		{name: "id change", patch: Set("_id", "other")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := Apply(models.Document{"_id": "r1"}, tc.patch); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestPushOntoScalarFails(t *testing.T) {
	doc := models.Document{"fields": map[string]any{"title": "x"}}
	if err := Apply(doc, Push("fields.title", "b1")); err == nil {
		t.Fatal("expected push onto scalar to fail")
	}
}

func TestSortAndWindow(t *testing.T) {
	docs := []models.Document{
		{"_id": "a", "metadata": map[string]any{"position": float64(2)}},
		{"_id": "b", "metadata": map[string]any{"position": float64(0)}},
		{"_id": "c"},
		{"_id": "d", "metadata": map[string]any{"position": float64(1)}},
	}
	sortDocuments(docs, []SortField{{Field: "metadata.position"}})

	var ids []string
	for _, doc := range docs {
		ids = append(ids, doc.ID())
	}
	if diff := cmp.Diff([]string{"c", "b", "d", "a"}, ids); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}

	page := window(docs, 1, 2)
	if len(page) != 2 || page[0].ID() != "b" || page[1].ID() != "d" {
		t.Fatalf("unexpected window: %v", page)
	}
	if got := window(docs, 10, 0); len(got) != 0 {
		t.Fatalf("expected empty window, got %d", len(got))
	}
}
