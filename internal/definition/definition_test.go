package definition

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gcs/internal/apperr"
	"gcs/internal/mutation"
	"gcs/internal/registry"
)

const sample = `
serviceName: gc_pages
errors:
  400: unable to list
  401: unable to add
  402: unable to get
  403: unable to delete
  405: unable to update
db:
  collection: pages
  multitenant: true
  options:
    sort: [{field: created, desc: true}]
  config:
    dev:
      gc_pages: {cluster: cluster1}
    PROD:
      gc_pages: {cluster: main, tenantSpecific: true}
apis:
  /list:   {method: get, type: list, mw: {code: 400}}
  /get:    {method: get, type: get, mw: {code: 402}}
  /delete: {method: del, type: delete, mw: {code: 403}}
  /add:    {method: post, type: add, mw: {code: 401, model: add}}
  /update:
    method: post
    type: update
    mw: {code: 405, model: update}
    workflow: {preExec: stampEditor}
form:
  add:
    - {name: title, type: text}
    - {name: attachments, type: document}
  edit:
    - {name: title, type: text}
    - {name: summary, type: textarea}
`

type handlerNames []string

func (h handlerNames) Has(name string) bool {
	for _, n := range h {
		if n == name {
			return true
		}
	}
	return false
}

func parseSample(t *testing.T, mutate func(string) string) *Definition {
	t.Helper()
	doc := sample
	if mutate != nil {
		doc = mutate(doc)
	}
	def, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return def
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write definition: %v", err)
	}
	def, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := def.Validate(mutation.NewRegistry(), handlerNames{"stampEditor"}); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if def.Files != (Files{UploadCode: 401, DownloadCode: 400, DeleteCode: 400}) {
		t.Fatalf("unexpected file codes %+v", def.Files)
	}
	if got := def.APIs["/delete"].HTTPMethod(); got != "DELETE" {
		t.Fatalf("expected del to map to DELETE, got %q", got)
	}
	if diff := cmp.Diff([]string{"/add", "/delete", "/get", "/list", "/update"}, def.Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
	var names []string
	for _, f := range def.Form.Fields() {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"title", "attachments", "summary"}, names); diff != "" {
		t.Fatalf("form fields mismatch (-want +got):\n%s", diff)
	}
}

func TestBindingsAndEnvironments(t *testing.T) {
	def := parseSample(t, nil)
	want := map[string]registry.Binding{
		"DEV":  {Database: "gc_pages", Cluster: "cluster1"},
		"PROD": {Database: "gc_pages", Cluster: "main", TenantSpecific: true},
	}
	if diff := cmp.Diff(want, def.Bindings()); diff != "" {
		t.Fatalf("bindings mismatch (-want +got):\n%s", diff)
	}
	if !def.AcceptsEnv("Dev") || def.AcceptsEnv("QA") {
		t.Fatalf("unexpected env acceptance")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(string) string
	}{
		{name: "missing service name", mutate: func(s string) string { return strings.Replace(s, "serviceName: gc_pages", "", 1) }},
		{name: "missing collection", mutate: func(s string) string { return strings.Replace(s, "collection: pages", "", 1) }},
		{name: "missing code", mutate: func(s string) string { return strings.Replace(s, "mw: {code: 400}", "mw: {}", 1) }},
		{name: "unlisted code", mutate: func(s string) string { return strings.Replace(s, "mw: {code: 400}", "mw: {code: 499}", 1) }},
		{name: "unknown type", mutate: func(s string) string { return strings.Replace(s, "type: list", "type: count", 1) }},
		{name: "unknown method", mutate: func(s string) string { return strings.Replace(s, "method: get, type: list", "method: patch, type: list", 1) }},
		{name: "unknown model", mutate: func(s string) string { return strings.Replace(s, "model: add", "model: nope", 1) }},
		{name: "model without update", mutate: func(s string) string { return strings.Replace(s, "model: update", "model: add", 1) }},
		{name: "unknown handler", mutate: func(s string) string { return strings.Replace(s, "stampEditor", "ghost", 1) }},
		{name: "unknown stage", mutate: func(s string) string { return strings.Replace(s, "preExec: stampEditor", "beforeAll: stampEditor", 1) }},
		{name: "core stage", mutate: func(s string) string { return strings.Replace(s, "preExec: stampEditor", "exec: stampEditor", 1) }},
		{name: "tenant specific without multitenant", mutate: func(s string) string { return strings.Replace(s, "multitenant: true", "multitenant: false", 1) }},
		{name: "no upload code", mutate: func(s string) string { return strings.Replace(s, "  401: unable to add\n", "", 1) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			def := parseSample(t, tc.mutate)
			err := def.Validate(mutation.NewRegistry(), handlerNames{"stampEditor"})
			if !apperr.Configuration.Has(err) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestValidateRequiresEnvironments(t *testing.T) {
	def := parseSample(t, nil)
	def.DB.Config = nil
	if err := def.Validate(mutation.NewRegistry(), handlerNames{"stampEditor"}); !apperr.Configuration.Has(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("apis: [")); !apperr.Configuration.Has(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
