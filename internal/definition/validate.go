package definition

import (
	"slices"

	"gcs/internal/apperr"
	"gcs/internal/mutation"
)

// HandlerSet reports which named stage handlers exist.
type HandlerSet interface {
	Has(name string) bool
}

// Overridable stage slots. The remaining slots carry the operation itself.
var customStages = []string{StagePreExec, StagePostExec}

// Validate checks the definition against the registered models and stage
// handlers. Every problem is a Configuration error.
func (d *Definition) Validate(models *mutation.Registry, handlers HandlerSet) error {
	if d.ServiceName == "" {
		return apperr.Configuration.New("serviceName is required")
	}
	if d.DB.Collection == "" {
		return apperr.Configuration.New("db.collection is required")
	}
	if len(d.DB.Config) == 0 {
		return apperr.Configuration.New("db.config must bind at least one environment")
	}
	for env, databases := range d.DB.Config {
		if len(databases) == 0 {
			return apperr.Configuration.New("db.config.%s binds no database", env)
		}
		for name, binding := range databases {
			if binding.Cluster == "" {
				return apperr.Configuration.New("db.config.%s.%s has no cluster", env, name)
			}
			if binding.TenantSpecific && !d.DB.Multitenant {
				return apperr.Configuration.New("db.config.%s.%s is tenant specific but the service is not multitenant", env, name)
			}
		}
	}

	for _, field := range d.Form.Fields() {
		if field.Name == "" {
			return apperr.Configuration.New("form field without a name")
		}
	}

	for _, code := range []int{d.Files.UploadCode, d.Files.DownloadCode, d.Files.DeleteCode} {
		if _, ok := d.Errors[code]; !ok {
			return apperr.Configuration.New("file error code %d is not listed in errors", code)
		}
	}

	for _, path := range d.Paths() {
		api := d.APIs[path]
		if len(path) == 0 || path[0] != '/' {
			return apperr.Configuration.New("api path %q must start with /", path)
		}
		if api.HTTPMethod() == "" {
			return apperr.Configuration.New("api [%s] has unsupported method %q", path, api.Method)
		}
		if api.MW.Code == 0 {
			return apperr.Configuration.New("please provide a default code value for api [%s] that matches the list of codes in errors", path)
		}
		if _, ok := d.Errors[api.MW.Code]; !ok {
			return apperr.Configuration.New("api [%s] code %d is not listed in errors", path, api.MW.Code)
		}

		switch api.Type {
		case OpList, OpGet, OpDelete:
		case OpAdd:
			if models == nil {
				return apperr.Configuration.New("api [%s] needs a model registry", path)
			}
			if _, err := models.AddFor(api.MW.Model); err != nil {
				return apperr.Configuration.New("please provide a model entry for api [%s]: %s", path, apperr.Message(err))
			}
		case OpUpdate:
			if models == nil {
				return apperr.Configuration.New("api [%s] needs a model registry", path)
			}
			if _, err := models.UpdateFor(api.MW.Model); err != nil {
				return apperr.Configuration.New("please provide a model entry for api [%s]: %s", path, apperr.Message(err))
			}
		default:
			return apperr.Configuration.New("api [%s] has unknown type %q", path, api.Type)
		}

		for stage, handler := range api.Workflow {
			if !slices.Contains(Stages, stage) {
				return apperr.Configuration.New("api [%s] workflow names unknown stage %q", path, stage)
			}
			if !slices.Contains(customStages, stage) {
				return apperr.Configuration.New("api [%s] workflow may not replace the %s stage", path, stage)
			}
			if handler == "" {
				continue
			}
			if handlers == nil || !handlers.Has(handler) {
				return apperr.Configuration.New("api [%s] workflow handler %q is not registered", path, handler)
			}
		}
	}
	return nil
}
