package backend

import (
	"context"
	"fmt"

	"ahorro/internal/kv"
	kvfirestore "ahorro/internal/kv/firestore"
	"ahorro/internal/kv/memory"
	"ahorro/internal/log"
	"ahorro/internal/storage"
)

// probeKey is read by readiness checks; it never has to exist.
const probeKey = "ahorro_ready_probe"

type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentBackend)
	}
	return &DefaultFactory{logger: logger}
}

func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case SQLiteBackend:
		res, err = f.createSQLiteBackend(config)
	case FirestoreBackend:
		res, err = f.createFirestoreBackend(ctx, config)
	case MemoryBackend:
		res = f.createMemoryBackend()
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	if config.CacheSize > 0 {
		cached := kv.NewCached(res.Store, config.CacheSize, config.CacheTTL)
		res.Store = cached
		res.Cleaners = append(res.Cleaners, cached.Cleaner())
		f.logger.Info("Enabled kv read cache", "size", config.CacheSize, "ttl", config.CacheTTL)
	}
	if res.Ready == nil {
		store := res.Store
		res.Ready = func(ctx context.Context) error {
			_, _, err := store.Get(ctx, probeKey)
			return err
		}
	}
	return res, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}
	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	return &BackendResult{
		Store:   repo,
		Cleanup: repo.Close,
		Ready:   repo.Ping,
	}, nil
}

func (f *DefaultFactory) createFirestoreBackend(ctx context.Context, config Config) (*BackendResult, error) {
	store, err := kvfirestore.New(ctx, config.FirestoreProjectID, config.FirestoreCollection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firestore store: %w", err)
	}
	f.logger.Info("Initialized Firestore backend",
		"project_id", config.FirestoreProjectID,
		"collection", config.FirestoreCollection)
	return &BackendResult{
		Store:   store,
		Cleanup: store.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend() *BackendResult {
	f.logger.Info("Initialized memory backend")
	return &BackendResult{Store: memory.New()}
}
