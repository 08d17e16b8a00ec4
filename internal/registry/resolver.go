package registry

import (
	"context"
	"sort"
	"strings"

	"github.com/spacemonkeygo/monkit/v3"

	"gcs/internal/apperr"
)

var mon = monkit.Package()

// Binding is the database a service uses in one environment.
type Binding struct {
	Database       string `json:"database" yaml:"database"`
	Cluster        string `json:"cluster" yaml:"cluster"`
	TenantSpecific bool   `json:"tenantSpecific" yaml:"tenantSpecific"`
}

// ConnectionInfo is everything needed to open a handle on one database.
type ConnectionInfo struct {
	Env         string  `json:"env"`
	ClusterName string  `json:"clusterName"`
	Cluster     Cluster `json:"cluster"`
	Name        string  `json:"name"`
}

// Resolver maps an environment code and tenant to connection parameters.
type Resolver struct {
	lookup   Lookup
	service  string
	bindings map[string]Binding
}

// NewResolver creates a resolver for service. Binding keys are environment codes.
func NewResolver(lookup Lookup, service string, bindings map[string]Binding) *Resolver {
	normalized := make(map[string]Binding, len(bindings))
	for code, binding := range bindings {
		normalized[NormalizeCode(code)] = binding
	}
	return &Resolver{lookup: lookup, service: service, bindings: normalized}
}

// Environments returns the environment codes the service is bound in.
func (r *Resolver) Environments() []string {
	codes := make([]string, 0, len(r.bindings))
	for code := range r.bindings {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Resolve returns the connection parameters of envCode. A tenant-specific
// binding names the database {tenantCode}_{service}.
func (r *Resolver) Resolve(ctx context.Context, envCode, tenantCode string) (_ ConnectionInfo, err error) {
	defer mon.Task()(&ctx)(&err)

	code := NormalizeCode(envCode)
	if code == "" {
		return ConnectionInfo{}, apperr.BadRequest.New("environment code is required")
	}
	binding, ok := r.bindings[code]
	if !ok {
		return ConnectionInfo{}, apperr.NoDatabaseConnection.New("this environment has no database connection: %s", code)
	}

	env, err := r.lookup.Environment(ctx, code)
	if err != nil {
		return ConnectionInfo{}, apperr.NoDatabaseConnection.Wrap(err)
	}
	if env == nil {
		return ConnectionInfo{}, apperr.NoDatabaseConnection.New("this environment has no database connection: %s", code)
	}
	if _, ok := env.Databases[binding.Database]; !ok {
		return ConnectionInfo{}, apperr.NoDatabaseConnection.New("database %s is not registered in environment %s", binding.Database, code)
	}
	cluster, ok := env.Clusters[binding.Cluster]
	if !ok {
		return ConnectionInfo{}, apperr.NoDatabaseConnection.New("cluster %s is not registered in environment %s", binding.Cluster, code)
	}

	info := ConnectionInfo{
		Env:         code,
		ClusterName: binding.Cluster,
		Cluster:     cluster,
		Name:        binding.Database,
	}
	if binding.TenantSpecific {
		tenant := strings.TrimSpace(tenantCode)
		if tenant == "" {
			return ConnectionInfo{}, apperr.BadRequest.New("tenant context is required for database %s", binding.Database)
		}
		info.Name = tenant + "_" + r.service
	}
	return info, nil
}

// TenantSpecific reports whether envCode routes to per-tenant databases.
func (r *Resolver) TenantSpecific(envCode string) bool {
	return r.bindings[NormalizeCode(envCode)].TenantSpecific
}
