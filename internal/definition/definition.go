// Package definition loads the declarative description of one generated
// service: its collection, form, api routes, error codes and database
// bindings.
package definition

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"gcs/internal/apperr"
	"gcs/internal/models"
	"gcs/internal/registry"
	"gcs/internal/store"
)

// Operation names the record operation an api runs.
type Operation string

const (
	OpList   Operation = "list"
	OpGet    Operation = "get"
	OpDelete Operation = "delete"
	OpAdd    Operation = "add"
	OpUpdate Operation = "update"
)

// Stage slots of a pipeline run, in execution order.
const (
	StageInitialize = "initialize"
	StagePreExec    = "preExec"
	StageExec       = "exec"
	StagePostExec   = "postExec"
	StageResponse   = "response"
)

// Stages lists every stage slot in execution order.
var Stages = []string{StageInitialize, StagePreExec, StageExec, StagePostExec, StageResponse}

// Default envelope codes of the file endpoints.
const (
	DefaultUploadCode   = 401
	DefaultDownloadCode = 400
	DefaultDeleteCode   = 400
)

// Definition is one generated service.
type Definition struct {
	ServiceName string         `json:"serviceName" yaml:"serviceName"`
	Errors      map[int]string `json:"errors" yaml:"errors"`
	DB          DB             `json:"db" yaml:"db"`
	APIs        map[string]API `json:"apis" yaml:"apis"`
	Files       Files          `json:"files" yaml:"files"`
	Form        Form           `json:"form" yaml:"form"`
}

// DB describes the collection and where it lives per environment.
type DB struct {
	Collection  string                          `json:"collection" yaml:"collection"`
	Multitenant bool                            `json:"multitenant" yaml:"multitenant"`
	Condition   store.Condition                 `json:"condition,omitempty" yaml:"condition,omitempty"`
	Options     store.Options                   `json:"options,omitempty" yaml:"options,omitempty"`
	Config      map[string]map[string]DBBinding `json:"config" yaml:"config"`
}

// DBBinding places one database on a cluster.
type DBBinding struct {
	Cluster        string `json:"cluster" yaml:"cluster"`
	TenantSpecific bool   `json:"tenantSpecific,omitempty" yaml:"tenantSpecific,omitempty"`
}

// API is one generated route.
type API struct {
	Method   string            `json:"method" yaml:"method"`
	Type     Operation         `json:"type" yaml:"type"`
	MW       MW                `json:"mw" yaml:"mw"`
	Workflow map[string]string `json:"workflow,omitempty" yaml:"workflow,omitempty"`
}

// MW carries the envelope code and record model of an api.
type MW struct {
	Code  int    `json:"code" yaml:"code"`
	Model string `json:"model,omitempty" yaml:"model,omitempty"`
}

// Files holds the envelope codes of the file endpoints.
type Files struct {
	UploadCode   int `json:"uploadCode,omitempty" yaml:"uploadCode,omitempty"`
	DownloadCode int `json:"downloadCode,omitempty" yaml:"downloadCode,omitempty"`
	DeleteCode   int `json:"deleteCode,omitempty" yaml:"deleteCode,omitempty"`
}

// Form lists the declared fields of the collection.
type Form struct {
	Add  []models.FormField `json:"add" yaml:"add"`
	Edit []models.FormField `json:"edit,omitempty" yaml:"edit,omitempty"`
}

// Fields returns the add fields followed by edit-only fields.
func (f Form) Fields() []models.FormField {
	seen := map[string]struct{}{}
	out := make([]models.FormField, 0, len(f.Add)+len(f.Edit))
	for _, group := range [][]models.FormField{f.Add, f.Edit} {
		for _, field := range group {
			if _, dup := seen[field.Name]; dup {
				continue
			}
			seen[field.Name] = struct{}{}
			out = append(out, field)
		}
	}
	return out
}

// Load reads and parses a definition file and applies defaults. It does not
// validate; see Validate.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.Configuration.Wrap(fmt.Errorf("read definition %s: %w", path, err))
	}
	return Parse(data)
}

// Parse decodes a YAML definition and applies defaults.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, apperr.Configuration.Wrap(fmt.Errorf("parse definition: %w", err))
	}
	def.applyDefaults()
	return &def, nil
}

func (d *Definition) applyDefaults() {
	if d.Files.UploadCode == 0 {
		d.Files.UploadCode = DefaultUploadCode
	}
	if d.Files.DownloadCode == 0 {
		d.Files.DownloadCode = DefaultDownloadCode
	}
	if d.Files.DeleteCode == 0 {
		d.Files.DeleteCode = DefaultDeleteCode
	}
	for path, api := range d.APIs {
		api.Method = strings.ToLower(strings.TrimSpace(api.Method))
		if api.Method == "del" {
			api.Method = "delete"
		}
		api.Type = Operation(strings.ToLower(strings.TrimSpace(string(api.Type))))
		d.APIs[path] = api
	}
}

// HTTPMethod returns the net/http method name of the api.
func (a API) HTTPMethod() string {
	switch a.Method {
	case "get":
		return http.MethodGet
	case "post":
		return http.MethodPost
	case "put":
		return http.MethodPut
	case "delete":
		return http.MethodDelete
	default:
		return ""
	}
}

// Message returns the configured message of code.
func (d *Definition) Message(code int) string {
	return d.Errors[code]
}

// Paths returns the api paths in sorted order.
func (d *Definition) Paths() []string {
	paths := make([]string, 0, len(d.APIs))
	for path := range d.APIs {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Bindings returns the database binding of the service per environment.
// The database name is the service name unless the environment binds a
// single database under another name.
func (d *Definition) Bindings() map[string]registry.Binding {
	out := make(map[string]registry.Binding, len(d.DB.Config))
	for env, databases := range d.DB.Config {
		code := registry.NormalizeCode(env)
		if binding, ok := databases[d.ServiceName]; ok {
			out[code] = registry.Binding{Database: d.ServiceName, Cluster: binding.Cluster, TenantSpecific: binding.TenantSpecific}
			continue
		}
		names := make([]string, 0, len(databases))
		for name := range databases {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) == 0 {
			continue
		}
		binding := databases[names[0]]
		out[code] = registry.Binding{Database: names[0], Cluster: binding.Cluster, TenantSpecific: binding.TenantSpecific}
	}
	return out
}

// Environments returns the environment codes the service accepts.
func (d *Definition) Environments() []string {
	codes := make([]string, 0, len(d.DB.Config))
	for env := range d.DB.Config {
		codes = append(codes, registry.NormalizeCode(env))
	}
	sort.Strings(codes)
	return codes
}

// AcceptsEnv reports whether code is one of the configured environments.
func (d *Definition) AcceptsEnv(code string) bool {
	code = registry.NormalizeCode(code)
	for env := range d.DB.Config {
		if registry.NormalizeCode(env) == code {
			return true
		}
	}
	return false
}
