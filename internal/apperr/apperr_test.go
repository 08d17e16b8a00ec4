package apperr

import (
	"fmt"
	"testing"
)

func TestMessageStripsClassPrefixes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: fmt.Errorf("disk full"), want: "disk full"},
		{name: "single class", err: BadRequest.New("invalid record id %q", "zz"), want: `invalid record id "zz"`},
		{name: "nested classes", err: Blob.Wrap(NotFound.New("blob 42")), want: "blob 42"},
		{name: "wrapped plain", err: Store.Wrap(fmt.Errorf("insert pages: %w", fmt.Errorf("locked"))), want: "insert pages: locked"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Message(tc.err); got != tc.want {
				t.Fatalf("Message() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestIsNotFoundThroughWrapping(t *testing.T) {
	err := Blob.Wrap(NotFound.New("blob %s", "abc"))
	if !IsNotFound(err) {
		t.Fatal("expected not found")
	}
	if !Blob.Has(err) {
		t.Fatal("expected blob class")
	}
	if IsNotFound(Blob.New("timeout")) {
		t.Fatal("transport error must not be not found")
	}
}

func TestKind(t *testing.T) {
	if got := Kind(Blob.Wrap(NotFound.New("x"))); got != "blob" {
		t.Fatalf("expected blob, got %q", got)
	}
	if got := Kind(Configuration.New("missing code")); got != "configuration" {
		t.Fatalf("expected configuration, got %q", got)
	}
	if got := Kind(fmt.Errorf("boom")); got != "internal" {
		t.Fatalf("expected internal, got %q", got)
	}
}
