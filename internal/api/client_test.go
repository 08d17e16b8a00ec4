package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestHTTPTimeoutFromEnv(t *testing.T) {
	t.Run("default", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})

	t.Run("duration format", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "45s")
		if got := httpTimeoutFromEnv(); got != 45*time.Second {
			t.Fatalf("expected 45s timeout, got %v", got)
		}
	})

	t.Run("integer seconds", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "25")
		if got := httpTimeoutFromEnv(); got != 25*time.Second {
			t.Fatalf("expected 25s timeout, got %v", got)
		}
	})

	t.Run("invalid falls back", func(t *testing.T) {
		t.Setenv(httpTimeoutEnvKey, "invalid")
		if got := httpTimeoutFromEnv(); got != defaultHTTPTimeout {
			t.Fatalf("expected default timeout %v, got %v", defaultHTTPTimeout, got)
		}
	})
}

func TestClientDecodesEnvelopes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("env"); got != "DEV" {
			t.Errorf("expected env DEV, got %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/list":
			_, _ = io.WriteString(w, `{"result":true,"data":[{"_id":"a1","created":5,"fields":{"title":"x"}}]}`)
		case "/get":
			_, _ = io.WriteString(w, `{"result":false,"errors":{"code":402,"message":"invalid id"}}`)
		case "/delete":
			if r.Method != http.MethodDelete {
				t.Errorf("expected DELETE, got %s", r.Method)
			}
			_, _ = io.WriteString(w, `{"result":true,"data":true}`)
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"error":"no route","code":"not_found"}`)
		}
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "DEV")
	ctx := context.Background()

	records, err := client.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []Record{{ID: "a1", Created: 5, Fields: map[string]any{"title": "x"}}}
	if diff := cmp.Diff(want, records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}

	_, err = client.Get(ctx, "zzz")
	var failure *EnvelopeFailure
	if !errors.As(err, &failure) || failure.Code != 402 || failure.Message != "invalid id" {
		t.Fatalf("expected envelope failure, got %v", err)
	}

	ok, err := client.Delete(ctx, "a1")
	if err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}

	_, err = client.Schema(ctx)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusNotFound || apiErr.Code != "not_found" {
		t.Fatalf("expected transport error, got %v", err)
	}
}

func TestClientUploadStreamsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "secret-pass" {
			t.Errorf("expected basic auth, got %q %q %v", user, pass, ok)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		for key, want := range map[string]string{"nid": "r1", "field": "photos", "position": "2", "media": "image", "action": "edit"} {
			if got := r.FormValue(key); got != want {
				t.Errorf("expected %s=%q, got %q", key, want, got)
			}
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			return
		}
		defer file.Close()
		body, _ := io.ReadAll(file)
		if header.Filename != "cat.png" || string(body) != "meow" {
			t.Errorf("unexpected file %q %q", header.Filename, body)
		}
		_, _ = io.WriteString(w, `{"result":true,"data":{"_id":"b1"}}`)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "DEV")
	client.SetBasicAuth("alice", "secret-pass")
	out, err := client.Upload(context.Background(), UploadParams{RecordID: "r1", Field: "photos", Position: 2, Media: "image", Edit: true}, "/tmp/cat.png", strings.NewReader("meow"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if out["_id"] != "b1" {
		t.Fatalf("unexpected upload response %#v", out)
	}
}

func TestClientDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") == "missing" {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-Gcs-Envelope", "true")
			_, _ = io.WriteString(w, `{"result":false,"errors":{"code":400,"message":"not found"}}`)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "payload")
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "DEV")
	var buf bytes.Buffer
	contentType, n, err := client.Download(context.Background(), "b1", &buf)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if contentType != "text/plain" || n != 7 || buf.String() != "payload" {
		t.Fatalf("unexpected download %q %d %q", contentType, n, buf.String())
	}

	_, _, err = client.Download(context.Background(), "missing", &buf)
	var failure *EnvelopeFailure
	if !errors.As(err, &failure) || failure.Code != 400 {
		t.Fatalf("expected envelope failure, got %v", err)
	}
}
