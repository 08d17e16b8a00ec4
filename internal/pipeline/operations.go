package pipeline

import (
	"context"
	"strings"

	"gcs/internal/apperr"
	"gcs/internal/definition"
	"gcs/internal/models"
	"gcs/internal/mutation"
	"gcs/internal/pool"
	"gcs/internal/store"
)

// initialize checks the environment, acquires a handle and loads the
// collection settings. Operations on one record also bind the record id.
func (e *Engine) initialize(ctx context.Context, pc *Context) error {
	switch pc.Operation {
	case definition.OpGet, definition.OpDelete, definition.OpUpdate:
		id, err := recordID(pc.Input)
		if err != nil {
			return err
		}
		pc.RecordID = id
	}

	lease, err := e.acquire(ctx, pc.Env, pc.Principal)
	if err != nil {
		return err
	}
	pc.lease = lease

	pc.Collection = e.def.DB.Collection
	pc.Options = e.def.DB.Options
	if pc.RecordID != "" {
		pc.Condition = store.Condition{models.KeyID: pc.RecordID}
	} else {
		pc.Condition = make(store.Condition, len(e.def.DB.Condition))
		for k, v := range e.def.DB.Condition {
			pc.Condition[k] = v
		}
	}
	return nil
}

func (e *Engine) acquire(ctx context.Context, env string, principal *models.Principal) (*pool.Lease, error) {
	if env == "" {
		return nil, apperr.BadRequest.New("env is required")
	}
	if !e.def.AcceptsEnv(env) {
		return nil, apperr.BadRequest.New("env %s is not one of %s", env, strings.Join(e.def.Environments(), ", "))
	}
	tenant := ""
	if principal != nil {
		tenant = principal.TenantCode
	}
	info, err := e.resolver.Resolve(ctx, env, tenant)
	if err != nil {
		return nil, err
	}
	return e.policy.Acquire(ctx, info)
}

func recordID(input mutation.Input) (string, error) {
	raw, ok := input["id"]
	if !ok || raw == nil {
		return "", apperr.BadRequest.New("id is required")
	}
	s, ok := raw.(string)
	if !ok {
		return "", apperr.BadRequest.New("id must be a string")
	}
	id, err := models.ParseID(s)
	if err != nil {
		return "", apperr.BadRequest.Wrap(err)
	}
	return id, nil
}

func (e *Engine) exec(ctx context.Context, r *route, pc *Context) error {
	records, blobs := pc.Records(), pc.Blobs()
	if records == nil || blobs == nil {
		return apperr.NoDatabaseConnection.New("no handle acquired for %s", pc.Path)
	}

	switch r.api.Type {
	case definition.OpList:
		docs, err := records.Find(ctx, pc.Collection, pc.Condition, pc.Options)
		if err != nil {
			return err
		}
		if docs == nil {
			docs = []models.Document{}
		}
		pc.Data = docs
		return nil

	case definition.OpGet:
		doc, err := records.FindOne(ctx, pc.Collection, pc.Condition)
		if err != nil {
			return err
		}
		if doc == nil {
			pc.Data = nil
			return nil
		}
		if err := e.attachments.Expand(ctx, blobs, doc); err != nil {
			return err
		}
		pc.Data = doc
		return nil

	case definition.OpDelete:
		doc, err := records.FindOne(ctx, pc.Collection, pc.Condition)
		if err != nil {
			return err
		}
		if doc != nil {
			if err := e.attachments.DeleteRecord(ctx, records, blobs, pc.RecordID); err != nil {
				return err
			}
		}
		pc.Data = true
		return nil

	case definition.OpAdd:
		fields, err := r.add(ctx, pc.Input)
		if err != nil {
			return err
		}
		if fields == nil {
			fields = map[string]any{}
		}
		if err := e.rejectAttachmentWrites(keys(fields)); err != nil {
			return err
		}
		doc := models.Document{
			models.KeyCreated: e.now().UnixMilli(),
			models.KeyFields:  fields,
		}
		if pc.Principal != nil && pc.Principal.Username != "" {
			doc[models.KeyAuthor] = pc.Principal.Username
		}
		inserted, err := records.Insert(ctx, pc.Collection, doc)
		if err != nil {
			return err
		}
		pc.Data = inserted
		return nil

	case definition.OpUpdate:
		input := cloneInput(pc.Input)
		delete(input, "id")
		patch, err := r.update(ctx, input)
		if err != nil {
			return err
		}
		for op, operand := range patch {
			if patch.Operands(op) == nil {
				return apperr.BadRequest.New("update operator %s requires a field map, got %T", op, operand)
			}
		}
		if err := e.rejectAttachmentWrites(mutation.TouchedFields(patch)); err != nil {
			return err
		}
		stamped := make(store.Patch, len(patch)+1)
		for op, operand := range patch {
			stamped[op] = operand
		}
		set := map[string]any{}
		for path, value := range patch.Operands(store.OpSet) {
			set[path] = value
		}
		set[models.KeyModified] = e.now().UnixMilli()
		stamped[store.OpSet] = set

		if err := records.Update(ctx, pc.Collection, pc.Condition, stamped, store.UpdateOptions{Upsert: false}); err != nil {
			return err
		}
		pc.Data = models.Document{models.KeyID: pc.RecordID}
		return nil

	default:
		return apperr.Configuration.New("unsupported operation %s", r.api.Type)
	}
}

// respond releases the handle. The staged data is returned by Run.
func (e *Engine) respond(_ context.Context, pc *Context) error {
	pc.release()
	return nil
}

func (e *Engine) rejectAttachmentWrites(fields []string) error {
	for _, name := range fields {
		if e.attachments.IsAttachmentField(name) {
			return apperr.BadRequest.New("field %s holds attachments and is managed by the file endpoints", name)
		}
	}
	return nil
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
