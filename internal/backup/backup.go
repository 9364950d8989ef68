// Package backup exports and restores the full persisted state and renders
// the per-challenge CSV report.
package backup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"ahorro/internal/adapters"
	"ahorro/internal/core"
)

var (
	ErrUnreadableBackup = errors.New("backup file is not valid JSON")
	ErrInvalidBackup    = errors.New("backup file has no localStorage section")
	ErrNotImplemented   = errors.New("CSV import is not implemented")
	ErrInvalidBackupKey = errors.New("backup contains an unusable key")
)

// Backup is the downloadable JSON document. LocalStorage carries every
// namespaced key verbatim and is the only section read back on import.
type Backup struct {
	Profile            core.UserProfile  `json:"profile"`
	Theme              core.ThemeMode    `json:"theme"`
	CurrentChallengeID string            `json:"currentChallengeId"`
	Timestamp          string            `json:"timestamp"`
	LocalStorage       map[string]string `json:"localStorage"`
}

// Meta is the session information stamped on an export.
type Meta struct {
	Profile            core.UserProfile
	Theme              core.ThemeMode
	CurrentChallengeID string
}

// Export snapshots every namespaced key from store.
func Export(ctx context.Context, store *adapters.SavingsStore, meta Meta, now time.Time) (Backup, error) {
	pairs, err := store.Snapshot(ctx)
	if err != nil {
		return Backup{}, fmt.Errorf("export: %w", err)
	}
	return Backup{
		Profile:            meta.Profile,
		Theme:              meta.Theme,
		CurrentChallengeID: meta.CurrentChallengeID,
		Timestamp:          now.UTC().Format(core.TimestampLayout),
		LocalStorage:       pairs,
	}, nil
}

func (b Backup) Marshal() ([]byte, error) {
	return json.Marshal(b)
}

// Parse validates a backup document and returns its key/value pairs.
// Non-string values are kept as their JSON text.
func Parse(data []byte) (map[string]string, error) {
	var doc struct {
		LocalStorage map[string]json.RawMessage `json:"localStorage"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableBackup, err)
	}
	if doc.LocalStorage == nil {
		return nil, ErrInvalidBackup
	}
	pairs := make(map[string]string, len(doc.LocalStorage))
	for k, raw := range doc.LocalStorage {
		if k == "" || strings.Contains(k, "/") {
			return nil, fmt.Errorf("%w: %q", ErrInvalidBackupKey, k)
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			pairs[k] = s
			continue
		}
		pairs[k] = string(raw)
	}
	return pairs, nil
}

// Import writes every pair of the backup into store in one batch and
// returns how many keys were restored.
func Import(ctx context.Context, store *adapters.SavingsStore, data []byte) (int, error) {
	pairs, err := Parse(data)
	if err != nil {
		return 0, err
	}
	if err := store.Restore(ctx, pairs); err != nil {
		return 0, fmt.Errorf("import: %w", err)
	}
	return len(pairs), nil
}

// FileName is the suggested download name for a backup taken at now.
func FileName(now time.Time) string {
	return "arcontrol_backup_" + now.UTC().Format("2006-01-02") + ".json"
}
