// Package pool decides per request whether a resolved database is served by
// the process-wide handle or by a fresh handle closed after the request.
package pool

import (
	"context"
	"errors"
	"sync"

	"gcs/internal/blobstore"
	"gcs/internal/registry"
	"gcs/internal/store"
)

// Handle is an open connection on one resolved database.
type Handle struct {
	Info    registry.ConnectionInfo
	Records store.RecordStore
	Blobs   blobstore.BlobStore

	closeOnce sync.Once
	closer    func() error
	closeErr  error
}

// NewHandle wraps an open record store and blob store. closer releases both.
func NewHandle(info registry.ConnectionInfo, records store.RecordStore, blobs blobstore.BlobStore, closer func() error) *Handle {
	return &Handle{Info: info, Records: records, Blobs: blobs, closer: closer}
}

// Close releases the handle. Later calls return the first result.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}
	h.closeOnce.Do(func() {
		if h.closer != nil {
			h.closeErr = h.closer()
		}
	})
	return h.closeErr
}

// Connector opens handles on resolved databases.
type Connector interface {
	Connect(ctx context.Context, info registry.ConnectionInfo) (*Handle, error)
}

// Shared holds the process-wide handles of a service that is not
// multitenant, one per resolved environment and database. Each is opened by
// the first request that resolves to it and lives until Close is called at
// process shutdown; request code never closes them.
type Shared struct {
	mu      sync.Mutex
	handles map[string]*Handle
}

func sharedKey(env, name string) string {
	return env + "/" + name
}

// Handle returns the shared handle of database name in env, or nil before
// first use.
func (s *Shared) Handle(env, name string) *Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handles[sharedKey(env, name)]
}

// Len reports how many shared handles are open.
func (s *Shared) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func (s *Shared) getOrOpen(ctx context.Context, connector Connector, info registry.ConnectionInfo) (*Handle, error) {
	key := sharedKey(info.Env, info.Name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if handle, ok := s.handles[key]; ok {
		return handle, nil
	}
	handle, err := connector.Connect(ctx, info)
	if err != nil {
		return nil, err
	}
	if s.handles == nil {
		s.handles = make(map[string]*Handle)
	}
	s.handles[key] = handle
	return handle, nil
}

// Close releases every shared handle at shutdown.
func (s *Shared) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	for key, handle := range s.handles {
		if err := handle.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.handles, key)
	}
	return errors.Join(errs...)
}

// Policy acquires handles for pipeline runs.
type Policy struct {
	multitenant bool
	connector   Connector
	shared      *Shared
}

// NewPolicy creates a policy. shared may be nil for multitenant services.
func NewPolicy(multitenant bool, connector Connector, shared *Shared) *Policy {
	if shared == nil {
		shared = &Shared{}
	}
	return &Policy{multitenant: multitenant, connector: connector, shared: shared}
}

// Multitenant reports whether every request gets its own handle.
func (p *Policy) Multitenant() bool {
	return p.multitenant
}

// Lease is a handle acquired for one pipeline run.
type Lease struct {
	Handle *Handle
	owned  bool
	once   sync.Once
	err    error
}

// Release closes the handle if this lease owns it. It is safe to call more than once.
func (l *Lease) Release() error {
	if l == nil {
		return nil
	}
	l.once.Do(func() {
		if l.owned {
			l.err = l.Handle.Close()
		}
	})
	return l.err
}

// Owned reports whether releasing the lease closes its handle.
func (l *Lease) Owned() bool {
	return l != nil && l.owned
}

// Acquire returns a fresh handle for multitenant services and the shared
// handle of info's environment and database otherwise.
func (p *Policy) Acquire(ctx context.Context, info registry.ConnectionInfo) (_ *Lease, err error) {
	defer mon.Task()(&ctx)(&err)

	if p.multitenant {
		handle, err := p.connector.Connect(ctx, info)
		if err != nil {
			return nil, err
		}
		return &Lease{Handle: handle, owned: true}, nil
	}

	handle, err := p.shared.getOrOpen(ctx, p.connector, info)
	if err != nil {
		return nil, err
	}
	return &Lease{Handle: handle}, nil
}
