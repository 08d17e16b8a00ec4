// Package mutation holds the named record models that shape raw input into
// stored documents for add and patches for update.
package mutation

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gcs/internal/apperr"
	"gcs/internal/models"
	"gcs/internal/store"
)

// Input is the validated request input handed to a model.
type Input map[string]any

// AddFunc builds the fields map of a new record.
type AddFunc func(ctx context.Context, input Input) (map[string]any, error)

// UpdateFunc builds the patch applied to an existing record.
type UpdateFunc func(ctx context.Context, input Input) (store.Patch, error)

// Model is one named contract. Either transform may be nil when the model
// only serves one operation.
type Model struct {
	Add    AddFunc
	Update UpdateFunc
}

// Keys that identify the request rather than record content.
var reservedKeys = map[string]struct{}{
	"id":         {},
	models.KeyID: {},
	"env":        {},
	"__env":      {},
}

// IsReserved reports whether key is an identifier-only input key.
func IsReserved(key string) bool {
	_, ok := reservedKeys[key]
	return ok
}

// GenericAdd copies every non-reserved input key into the record fields.
func GenericAdd(_ context.Context, input Input) (map[string]any, error) {
	fields := make(map[string]any, len(input))
	for key, value := range input {
		if IsReserved(key) {
			continue
		}
		fields[key] = value
	}
	return fields, nil
}

// GenericUpdate sets fields.<key> for every non-reserved input key.
func GenericUpdate(_ context.Context, input Input) (store.Patch, error) {
	set := make(map[string]any, len(input))
	for key, value := range input {
		if IsReserved(key) {
			continue
		}
		if strings.TrimSpace(key) == "" || strings.HasPrefix(key, "$") {
			return nil, apperr.BadRequest.New("invalid field name %q", key)
		}
		set[models.KeyFields+"."+key] = value
	}
	return store.Patch{store.OpSet: set}, nil
}

// Registry resolves models by name.
type Registry struct {
	mu     sync.RWMutex
	models map[string]Model
}

// NewRegistry returns a registry holding the generic models under "add",
// "update" and "generic".
func NewRegistry() *Registry {
	r := &Registry{models: map[string]Model{}}
	r.MustRegister("add", Model{Add: GenericAdd})
	r.MustRegister("update", Model{Update: GenericUpdate})
	r.MustRegister("generic", Model{Add: GenericAdd, Update: GenericUpdate})
	return r
}

// Register adds a named model. Names are unique.
func (r *Registry) Register(name string, model Model) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return apperr.Configuration.New("model name is required")
	}
	if model.Add == nil && model.Update == nil {
		return apperr.Configuration.New("model %s has no transforms", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.models[name]; exists {
		return apperr.Configuration.New("model %s already registered", name)
	}
	r.models[name] = model
	return nil
}

// MustRegister is Register for init-time wiring.
func (r *Registry) MustRegister(name string, model Model) {
	if err := r.Register(name, model); err != nil {
		panic(err)
	}
}

// Names lists the registered model names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.models))
	for name := range r.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddFor returns the add transform of model name.
func (r *Registry) AddFor(name string) (AddFunc, error) {
	model, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if model.Add == nil {
		return nil, apperr.Configuration.New("model %s has no add transform", name)
	}
	return model.Add, nil
}

// UpdateFor returns the update transform of model name.
func (r *Registry) UpdateFor(name string) (UpdateFunc, error) {
	model, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if model.Update == nil {
		return nil, apperr.Configuration.New("model %s has no update transform", name)
	}
	return model.Update, nil
}

func (r *Registry) lookup(name string) (Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	model, ok := r.models[name]
	if !ok {
		return Model{}, apperr.Configuration.New("model %q is not registered", name)
	}
	return model, nil
}

// TouchedFields returns the record field names a patch writes, in order.
func TouchedFields(patch store.Patch) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, op := range []string{store.OpSet, store.OpUnset, store.OpPush, store.OpPull} {
		for path, value := range patch.Operands(op) {
			var names []string
			if path == models.KeyFields {
				if whole, ok := value.(map[string]any); ok {
					for name := range whole {
						names = append(names, name)
					}
				}
			} else if name, ok := fieldOfPath(path); ok {
				names = append(names, name)
			}
			for _, name := range names {
				if _, dup := seen[name]; dup {
					continue
				}
				seen[name] = struct{}{}
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func fieldOfPath(path string) (string, bool) {
	rest, ok := strings.CutPrefix(path, models.KeyFields+".")
	if !ok || rest == "" {
		return "", false
	}
	name, _, _ := strings.Cut(rest, ".")
	return name, true
}

// String renders a model for logs.
func (m Model) String() string {
	return fmt.Sprintf("model{add:%t update:%t}", m.Add != nil, m.Update != nil)
}
