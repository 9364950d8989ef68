// Package kv defines the namespaced key-value port used for all persisted
// state, plus store decorators.
package kv

import (
	"context"
	"errors"
)

// ErrInvalidKey is returned by backends that cannot store a key as given.
var ErrInvalidKey = errors.New("invalid key")

// Store is a flat string-to-string namespace.
//
// Get reports ok=false for missing keys without an error. SetMany writes all
// pairs atomically when the backend supports transactions.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	SetMany(ctx context.Context, pairs map[string]string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Closer is implemented by stores holding external resources.
type Closer interface {
	Close() error
}
