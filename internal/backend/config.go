package backend

import (
	"fmt"

	"ahorro/internal/config"
)

// FromAppConfig converts the application config to backend config.
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:                backendType,
		SQLiteDBPath:        appConfig.SQLiteDBPath,
		FirestoreProjectID:  appConfig.FirestoreProjectID,
		FirestoreCollection: appConfig.FirestoreCollection,
		CacheSize:           appConfig.KVCacheSize,
		CacheTTL:            appConfig.KVCacheTTL,
	}, nil
}

func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}

	switch c.Type {
	case SQLiteBackend:
		if c.SQLiteDBPath == "" {
			return fmt.Errorf("SQLite database path is required for sqlite backend")
		}
	case FirestoreBackend:
		if c.FirestoreProjectID == "" {
			return fmt.Errorf("Firestore project id is required for firestore backend")
		}
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative")
	}
	return nil
}

func GetBackendTypes() []BackendType {
	return []BackendType{MemoryBackend, SQLiteBackend, FirestoreBackend}
}
