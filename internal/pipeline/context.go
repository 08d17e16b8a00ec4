package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"gcs/internal/apperr"
	"gcs/internal/blobstore"
	"gcs/internal/definition"
	"gcs/internal/models"
	"gcs/internal/mutation"
	"gcs/internal/pool"
	"gcs/internal/store"
)

// Request is the validated input of one pipeline run.
type Request struct {
	Env       string
	Principal *models.Principal
	Input     mutation.Input
}

// Context is the per-request state shared by the stages of one run.
type Context struct {
	Path      string
	Operation definition.Operation
	Env       string
	Principal *models.Principal
	Input     mutation.Input
	RecordID  string

	Collection string
	Condition  store.Condition
	Options    store.Options

	// Data is the staging area filled by exec and emitted by response.
	Data any

	Logger *slog.Logger

	lease *pool.Lease
}

// Records returns the record store of the acquired handle.
func (c *Context) Records() store.RecordStore {
	if c.lease == nil || c.lease.Handle == nil {
		return nil
	}
	return c.lease.Handle.Records
}

// Blobs returns the blob store of the acquired handle.
func (c *Context) Blobs() blobstore.BlobStore {
	if c.lease == nil || c.lease.Handle == nil {
		return nil
	}
	return c.lease.Handle.Blobs
}

// Database returns the resolved database name, or "" before initialize.
func (c *Context) Database() string {
	if c.lease == nil || c.lease.Handle == nil {
		return ""
	}
	return c.lease.Handle.Info.Name
}

func (c *Context) release() {
	if err := c.lease.Release(); err != nil {
		c.Logger.Warn("release handle", "path", c.Path, "error", err)
	}
}

// StageFunc is one step of a pipeline run. A returned error ends the run.
type StageFunc func(ctx context.Context, pc *Context) error

// Handlers is the set of named stage functions a definition workflow may
// reference.
type Handlers struct {
	mu    sync.RWMutex
	funcs map[string]StageFunc
}

// NewHandlers returns a handler set holding the built-in handlers.
func NewHandlers() *Handlers {
	h := &Handlers{funcs: map[string]StageFunc{}}
	for name, fn := range builtinHandlers {
		h.funcs[name] = fn
	}
	return h
}

// Register adds a named stage function.
func (h *Handlers) Register(name string, fn StageFunc) error {
	if name == "" || fn == nil {
		return apperr.Configuration.New("handler name and function are required")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, exists := h.funcs[name]; exists {
		return apperr.Configuration.New("handler %s already registered", name)
	}
	h.funcs[name] = fn
	return nil
}

// Has reports whether name is registered.
func (h *Handlers) Has(name string) bool {
	_, ok := h.get(name)
	return ok
}

// Names lists the registered handler names.
func (h *Handlers) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.funcs))
	for name := range h.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (h *Handlers) get(name string) (StageFunc, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.funcs[name]
	return fn, ok
}

var builtinHandlers = map[string]StageFunc{
	"stampEditor": stampEditor,
	"ownedOnly":   ownedOnly,
}

// stampEditor records the calling username in the editor field.
func stampEditor(_ context.Context, pc *Context) error {
	if pc.Principal == nil || pc.Principal.Username == "" {
		return nil
	}
	if pc.Input == nil {
		pc.Input = mutation.Input{}
	}
	pc.Input["editor"] = pc.Principal.Username
	return nil
}

// ownedOnly narrows the condition to records authored by the caller.
func ownedOnly(_ context.Context, pc *Context) error {
	if pc.Principal == nil || pc.Principal.Username == "" {
		return apperr.BadRequest.New("an authenticated user is required")
	}
	if pc.Condition == nil {
		pc.Condition = store.Condition{}
	}
	pc.Condition[models.KeyAuthor] = pc.Principal.Username
	return nil
}
