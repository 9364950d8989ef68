package backend

import (
	"context"
	"time"

	"ahorro/internal/cache"
	"ahorro/internal/kv"
)

type CleanupFunc func() error

// BackendResult is a ready kv store plus what the caller must run or
// release alongside it.
type BackendResult struct {
	Store   kv.Store
	Cleanup CleanupFunc
	// Ready probes the store for the readiness endpoint.
	Ready func(context.Context) error
	// Cleaners are caches the caller should hand to a cache.Janitor.
	Cleaners []cache.Cleaner
}

type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Firestore specific
	FirestoreProjectID  string
	FirestoreCollection string

	// Read cache in front of any backend; size 0 disables it.
	CacheSize int
	CacheTTL  time.Duration
}

type BackendType string

const (
	MemoryBackend    BackendType = "memory"
	SQLiteBackend    BackendType = "sqlite"
	FirestoreBackend BackendType = "firestore"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case MemoryBackend, SQLiteBackend, FirestoreBackend:
		return true
	default:
		return false
	}
}
