package registry

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileLookup serves environments from a YAML document loaded once.
type FileLookup struct {
	path         string
	environments map[string]Environment
}

var _ Lookup = (*FileLookup)(nil)

// LoadFile reads an environment registry document.
func LoadFile(path string) (EnvironmentFile, error) {
	var doc EnvironmentFile
	data, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read registry %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return doc, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return doc, nil
}

// NewFileLookup loads path and serves its environments.
func NewFileLookup(path string) (*FileLookup, error) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &FileLookup{path: path, environments: doc.Normalized()}, nil
}

func (f *FileLookup) Environment(ctx context.Context, code string) (*Environment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	env, ok := f.environments[NormalizeCode(code)]
	if !ok {
		return nil, nil
	}
	return &env, nil
}
