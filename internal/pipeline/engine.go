// Package pipeline runs the generated record operations through their
// ordered stages and serves the file operations of a service.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spacemonkeygo/monkit/v3"

	"gcs/internal/apperr"
	"gcs/internal/attachments"
	"gcs/internal/definition"
	"gcs/internal/mutation"
	"gcs/internal/pool"
	"gcs/internal/registry"
)

var mon = monkit.Package()

// Resolver maps an environment and tenant to a database.
type Resolver interface {
	Resolve(ctx context.Context, envCode, tenantCode string) (registry.ConnectionInfo, error)
}

// Failure is the error envelope of a failed run.
type Failure struct {
	Code    int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("%d: %s", f.Code, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts the failure envelope of err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// Options wires an engine to its collaborators.
type Options struct {
	Resolver Resolver
	Policy   *pool.Policy
	Models   *mutation.Registry
	Handlers *Handlers
	Logger   *slog.Logger
}

type route struct {
	path   string
	api    definition.API
	stages [len(stageOrder)]StageFunc
	add    mutation.AddFunc
	update mutation.UpdateFunc
}

var stageOrder = [...]string{
	definition.StageInitialize,
	definition.StagePreExec,
	definition.StageExec,
	definition.StagePostExec,
	definition.StageResponse,
}

// Engine runs the operations of one service definition.
type Engine struct {
	def         *definition.Definition
	resolver    Resolver
	policy      *pool.Policy
	attachments *attachments.Engine
	logger      *slog.Logger
	routes      map[string]*route
	now         func() time.Time
}

// New validates def and compiles its routes. Every definition problem is a
// Configuration error and no engine is returned.
func New(def *definition.Definition, opts Options) (*Engine, error) {
	if def == nil {
		return nil, apperr.Configuration.New("service definition is required")
	}
	if opts.Resolver == nil || opts.Policy == nil {
		return nil, apperr.Configuration.New("resolver and pool policy are required")
	}
	if opts.Models == nil {
		opts.Models = mutation.NewRegistry()
	}
	if opts.Handlers == nil {
		opts.Handlers = NewHandlers()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if err := def.Validate(opts.Models, opts.Handlers); err != nil {
		return nil, err
	}

	e := &Engine{
		def:         def,
		resolver:    opts.Resolver,
		policy:      opts.Policy,
		attachments: attachments.New(def.DB.Collection, def.Form.Fields(), opts.Logger),
		logger:      opts.Logger,
		routes:      make(map[string]*route, len(def.APIs)),
		now:         time.Now,
	}
	for _, path := range def.Paths() {
		r, err := e.compile(path, def.APIs[path], opts)
		if err != nil {
			return nil, err
		}
		e.routes[path] = r
	}
	return e, nil
}

func (e *Engine) compile(path string, api definition.API, opts Options) (*route, error) {
	r := &route{path: path, api: api}
	r.stages[0] = e.initialize
	r.stages[2] = func(ctx context.Context, pc *Context) error { return e.exec(ctx, r, pc) }
	r.stages[4] = e.respond

	switch api.Type {
	case definition.OpAdd:
		add, err := opts.Models.AddFor(api.MW.Model)
		if err != nil {
			return nil, err
		}
		r.add = add
	case definition.OpUpdate:
		update, err := opts.Models.UpdateFor(api.MW.Model)
		if err != nil {
			return nil, err
		}
		r.update = update
	}

	for i, stage := range stageOrder {
		name := api.Workflow[stage]
		if name == "" {
			continue
		}
		fn, ok := opts.Handlers.get(name)
		if !ok {
			return nil, apperr.Configuration.New("api [%s] workflow handler %q is not registered", path, name)
		}
		r.stages[i] = fn
	}
	return r, nil
}

// Definition returns the service definition the engine runs.
func (e *Engine) Definition() *definition.Definition {
	return e.def
}

// Attachments returns the attachment engine of the collection.
func (e *Engine) Attachments() *attachments.Engine {
	return e.attachments
}

// Run executes the api at path. Failures are returned as *Failure carrying
// the api's configured code; the acquired handle is released either way.
func (e *Engine) Run(ctx context.Context, path string, req Request) (_ any, err error) {
	defer mon.Task()(&ctx)(&err)

	r, ok := e.routes[path]
	if !ok {
		return nil, fmt.Errorf("no api registered at %s", path)
	}

	pc := &Context{
		Path:      path,
		Operation: r.api.Type,
		Env:       registry.NormalizeCode(req.Env),
		Principal: req.Principal,
		Input:     cloneInput(req.Input),
		Logger:    e.logger,
	}

	for i, stage := range r.stages {
		if stage == nil {
			continue
		}
		if err := e.runStage(ctx, stageOrder[i], stage, pc); err != nil {
			pc.release()
			return nil, e.fail(r.api.MW.Code, pc, stageOrder[i], err)
		}
	}
	return pc.Data, nil
}

func (e *Engine) runStage(ctx context.Context, name string, stage StageFunc, pc *Context) (err error) {
	defer mon.TaskNamed(name)(&ctx)(&err)
	return stage(ctx, pc)
}

// fail converts err into the envelope of code, preferring the underlying message.
func (e *Engine) fail(code int, pc *Context, stage string, err error) *Failure {
	msg := apperr.Message(err)
	if msg == "" {
		msg = e.def.Message(code)
	}
	e.logger.Error("pipeline stage failed",
		"operation", string(pc.Operation),
		"path", pc.Path,
		"stage", stage,
		"code", code,
		"kind", apperr.Kind(err),
		"error", err)
	return &Failure{Code: code, Message: msg, Err: err}
}

func cloneInput(in mutation.Input) mutation.Input {
	out := make(mutation.Input, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
