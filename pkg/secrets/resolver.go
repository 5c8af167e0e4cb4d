package secrets

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/crowdit/crowdmcp/pkg/debug"
	"github.com/crowdit/crowdmcp/pkg/observability"
)

const (
	defaultLookupTimeout  = 5 * time.Second
	defaultPersistTimeout = 10 * time.Second
)

// Resolver looks up secrets in the environment and then in a Store.
// Successful non-empty reads are cached for the lifetime of the process.
type Resolver struct {
	store          Store
	lookupTimeout  time.Duration
	persistTimeout time.Duration
	getenv         func(string) string

	mu    sync.RWMutex
	cache map[string]string
	group singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLookupTimeout bounds each store read.
func WithLookupTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.lookupTimeout = d
		}
	}
}

// WithPersistTimeout bounds each store write.
func WithPersistTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.persistTimeout = d
		}
	}
}

// WithGetenv replaces os.Getenv, mainly for tests.
func WithGetenv(fn func(string) string) Option {
	return func(r *Resolver) { r.getenv = fn }
}

// NewResolver creates a Resolver. A nil store makes the resolver env-only.
func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{
		store:          store,
		lookupTimeout:  defaultLookupTimeout,
		persistTimeout: defaultPersistTimeout,
		getenv:         os.Getenv,
		cache:          make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the value of the named secret and whether it was found.
// The environment always wins over the store. Store errors are logged and
// reported as not found.
func (r *Resolver) Lookup(ctx context.Context, name string) (string, bool) {
	if v := r.getenv(name); v != "" {
		observability.SecretLookupsTotal.WithLabelValues("env", "hit").Inc()
		return v, true
	}

	r.mu.RLock()
	v, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		observability.SecretLookupsTotal.WithLabelValues("cache", "hit").Inc()
		return v, true
	}

	if r.store == nil {
		observability.SecretLookupsTotal.WithLabelValues("env", "miss").Inc()
		return "", false
	}

	// Waiters share the fetch; it outlives the first caller's cancellation
	// but not the lookup timeout.
	res, _, _ := r.group.Do(name, func() (any, error) {
		return r.fetch(context.WithoutCancel(ctx), name), nil
	})
	v = res.(string)
	return v, v != ""
}

func (r *Resolver) fetch(ctx context.Context, name string) string {
	ctx, cancel := context.WithTimeout(ctx, r.lookupTimeout)
	defer cancel()

	v, err := r.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			observability.SecretLookupsTotal.WithLabelValues("store", "miss").Inc()
			debug.Log("secrets", "secret not in store", "name", name)
		} else {
			observability.SecretLookupsTotal.WithLabelValues("store", "error").Inc()
			debug.Log("secrets", "store lookup failed", "name", name, "error", err)
		}
		return ""
	}
	if v == "" {
		observability.SecretLookupsTotal.WithLabelValues("store", "miss").Inc()
		return ""
	}
	observability.SecretLookupsTotal.WithLabelValues("store", "hit").Inc()

	r.mu.Lock()
	r.cache[name] = v
	r.mu.Unlock()
	debug.Log("secrets", "secret loaded from store", "name", name)
	return v
}

// LookupAny returns the first of names that resolves.
func (r *Resolver) LookupAny(ctx context.Context, names ...string) (string, bool) {
	for _, name := range names {
		if v, ok := r.Lookup(ctx, name); ok {
			return v, true
		}
	}
	return "", false
}

// Get is Lookup without the found flag.
func (r *Resolver) Get(ctx context.Context, name string) string {
	v, _ := r.Lookup(ctx, name)
	return v
}

// Persist writes value to the store and updates the cache. It reports
// whether the write reached the store. The cache is updated even when the
// write fails so the running process keeps the newest value.
func (r *Resolver) Persist(ctx context.Context, name, value string) bool {
	r.mu.Lock()
	r.cache[name] = value
	r.mu.Unlock()

	if r.store == nil {
		debug.Log("secrets", "no store configured, value kept in memory only", "name", name)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, r.persistTimeout)
	defer cancel()

	if err := r.store.Put(ctx, name, value); err != nil {
		debug.Log("secrets", "store write failed", "name", name, "error", err)
		return false
	}
	debug.Log("secrets", "secret persisted", "name", name)
	return true
}

// HasStore reports whether an external store is configured.
func (r *Resolver) HasStore() bool {
	return r.store != nil
}
