package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseAssignments(t *testing.T) {
	got, err := parseAssignments([]string{
		"title=hello world",
		"count=3",
		"draft=true",
		"tags=[\"a\",\"b\"]",
		"note=",
		"expr=a=b",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := map[string]any{
		"title": "hello world",
		"count": float64(3),
		"draft": true,
		"tags":  []any{"a", "b"},
		"note":  "",
		"expr":  "a=b",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("assignments mismatch (-want +got):\n%s", diff)
	}
}

func TestParseAssignmentsRejectsMissingKey(t *testing.T) {
	for _, arg := range []string{"title", "=value", " =x"} {
		if _, err := parseAssignments([]string{arg}); err == nil {
			t.Fatalf("expected %q to be rejected", arg)
		}
	}
}

func TestMergeJSONData(t *testing.T) {
	got, err := mergeJSONData(`{"title":"base","count":1}`, map[string]any{"title": "override"})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	want := map[string]any{"title": "override", "count": float64(1)}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}

	if _, err := mergeJSONData(`[1,2]`, nil); err == nil {
		t.Fatal("expected non-object data to be rejected")
	}
}
