// Package registry resolves the document store connection of a request
// from its environment code and tenant.
package registry

import (
	"context"
	"sort"
	"strings"
)

// Drivers understood by the connector.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Cluster is one document store cluster of an environment.
type Cluster struct {
	Driver  string            `json:"driver" yaml:"driver"`
	URI     string            `json:"uri,omitempty" yaml:"uri,omitempty"`
	DataDir string            `json:"dataDir,omitempty" yaml:"dataDir,omitempty"`
	Options map[string]string `json:"options,omitempty" yaml:"options,omitempty"`
}

// Database is a database registered in an environment.
type Database struct {
	Cluster string `json:"cluster" yaml:"cluster"`
}

// Environment is the registry entry of one deployment environment.
type Environment struct {
	Code      string              `json:"code" yaml:"code"`
	Clusters  map[string]Cluster  `json:"clusters" yaml:"clusters"`
	Databases map[string]Database `json:"databases" yaml:"databases"`
}

// Lookup returns the registry entry of an environment code. Unknown codes
// return a nil environment and no error.
type Lookup interface {
	Environment(ctx context.Context, code string) (*Environment, error)
}

// NormalizeCode returns the registry key of an environment code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// EnvironmentFile is the on-disk document listing environments.
type EnvironmentFile struct {
	Environments map[string]Environment `json:"environments" yaml:"environments"`
}

// Normalized returns the environments keyed by normalized code.
func (f EnvironmentFile) Normalized() map[string]Environment {
	out := make(map[string]Environment, len(f.Environments))
	for code, env := range f.Environments {
		key := NormalizeCode(code)
		env.Code = key
		out[key] = env
	}
	return out
}

// Codes returns the sorted normalized codes of f.
func (f EnvironmentFile) Codes() []string {
	codes := make([]string, 0, len(f.Environments))
	for code := range f.Normalized() {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}
