package secrets

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store when the named secret does not exist.
var ErrNotFound = errors.New("secret not found")

// Store is an external secret backend.
type Store interface {
	// Get returns the current value of the named secret, or ErrNotFound.
	Get(ctx context.Context, name string) (string, error)

	// Put writes a new value for the named secret, creating it if needed.
	Put(ctx context.Context, name, value string) error
}

// Closer is implemented by stores holding connections.
type Closer interface {
	Close() error
}

// Source is the read/write view of secrets that integrations depend on.
// *Resolver satisfies it.
type Source interface {
	Lookup(ctx context.Context, name string) (string, bool)
	LookupAny(ctx context.Context, names ...string) (string, bool)
	Persist(ctx context.Context, name, value string) bool
}

var _ Source = (*Resolver)(nil)
