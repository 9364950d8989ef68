// Package adapters maps savings state onto namespaced key-value pairs.
package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"ahorro/internal/core"
	"ahorro/internal/kv"
	"ahorro/internal/log"
)

// KeyPrefix namespaces every persisted key. It is shared with backups
// produced by earlier clients, so it must not change.
const KeyPrefix = "cyberSave_"

const (
	KeyTheme           = KeyPrefix + "theme"
	KeyLastChallengeID = KeyPrefix + "lastChallengeId"
	KeyProfile         = KeyPrefix + "profile"

	configPrefix = KeyPrefix + "config_"
)

func ConfigKey(id string) string  { return configPrefix + id }
func DataKey(id string) string    { return KeyPrefix + "data_" + id }
func LoansKey(id string) string   { return KeyPrefix + "loans_" + id }
func HistoryKey(id string) string { return KeyPrefix + "history_" + id }

// SavingsStore persists ledgers, session settings and custom challenges.
// Malformed stored JSON decodes as empty; storage failures are returned.
type SavingsStore struct {
	store  kv.Store
	logger *log.Logger
}

func NewSavingsStore(store kv.Store, logger *log.Logger) *SavingsStore {
	if logger == nil {
		logger = log.Wrap(nil, log.ComponentStorage)
	}
	return &SavingsStore{store: store, logger: logger}
}

// Store exposes the underlying kv store.
func (s *SavingsStore) Store() kv.Store { return s.store }

func (s *SavingsStore) LoadLedger(ctx context.Context, id string) (core.Ledger, error) {
	var l core.Ledger
	if err := s.loadJSON(ctx, DataKey(id), &l.Selected); err != nil {
		return core.Ledger{}, err
	}
	if err := s.loadJSON(ctx, LoansKey(id), &l.Loaned); err != nil {
		return core.Ledger{}, err
	}
	if err := s.loadJSON(ctx, HistoryKey(id), &l.History); err != nil {
		return core.Ledger{}, err
	}
	return l, nil
}

func ledgerPairs(id string, l core.Ledger) (map[string]string, error) {
	pairs := make(map[string]string, 3)
	for key, v := range map[string]any{
		DataKey(id):    nonNil(l.Selected),
		LoansKey(id):   nonNil(l.Loaned),
		HistoryKey(id): nonNilHistory(l.History),
	} {
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		pairs[key] = string(b)
	}
	return pairs, nil
}

// Session is the persisted shell state restored on startup.
type Session struct {
	Theme           core.ThemeMode
	LastChallengeID string
	Profile         core.UserProfile
}

// HasActiveSession reports whether startup can skip the start screen.
func (s Session) HasActiveSession() bool {
	return s.Theme != "" && s.LastChallengeID != ""
}

func (s *SavingsStore) LoadSession(ctx context.Context) (Session, error) {
	var sess Session
	theme, ok, err := s.store.Get(ctx, KeyTheme)
	if err != nil {
		return Session{}, fmt.Errorf("load theme: %w", err)
	}
	if ok {
		if t, err := core.ParseTheme(theme); err == nil {
			sess.Theme = t
		} else {
			s.logger.DebugContext(ctx, "Ignoring stored theme", "value", theme)
		}
	}
	last, _, err := s.store.Get(ctx, KeyLastChallengeID)
	if err != nil {
		return Session{}, fmt.Errorf("load last challenge: %w", err)
	}
	sess.LastChallengeID = last
	if err := s.loadJSON(ctx, KeyProfile, &sess.Profile); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func sessionPairs(sess Session) (map[string]string, error) {
	profile, err := json.Marshal(sess.Profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}
	pairs := map[string]string{
		KeyProfile:         string(profile),
		KeyLastChallengeID: sess.LastChallengeID,
	}
	if sess.Theme != "" {
		pairs[KeyTheme] = string(sess.Theme)
	}
	return pairs, nil
}

// Commit writes the session, the custom config of c and, when l is not
// nil, the ledger of c in a single batch.
func (s *SavingsStore) Commit(ctx context.Context, sess Session, c core.ChallengeConfig, l *core.Ledger) error {
	pairs, err := sessionPairs(sess)
	if err != nil {
		return err
	}
	if l != nil {
		lp, err := ledgerPairs(c.ID, *l)
		if err != nil {
			return err
		}
		for k, v := range lp {
			pairs[k] = v
		}
	}
	if core.IsCustomID(c.ID) {
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("encode config: %w", err)
		}
		pairs[ConfigKey(c.ID)] = string(b)
	}
	if err := s.store.SetMany(ctx, pairs); err != nil {
		return fmt.Errorf("commit %s: %w", c.ID, err)
	}
	return nil
}

// ClearTheme removes the theme so the next start shows the start screen.
func (s *SavingsStore) ClearTheme(ctx context.Context) error {
	if err := s.store.Delete(ctx, KeyTheme); err != nil {
		return fmt.Errorf("clear theme: %w", err)
	}
	return nil
}

// LoadChallenge resolves id against the presets, then stored custom configs.
func (s *SavingsStore) LoadChallenge(ctx context.Context, id string) (core.ChallengeConfig, bool, error) {
	if c, ok := core.FindPreset(id); ok {
		return c, true, nil
	}
	raw, ok, err := s.store.Get(ctx, ConfigKey(id))
	if err != nil {
		return core.ChallengeConfig{}, false, fmt.Errorf("load config %s: %w", id, err)
	}
	if !ok {
		return core.ChallengeConfig{}, false, nil
	}
	var c core.ChallengeConfig
	if err := json.Unmarshal([]byte(raw), &c); err != nil || !c.Valid() {
		s.logger.DebugContext(ctx, "Malformed custom config", log.FieldChallengeID, id, log.FieldError, err)
		return core.ChallengeConfig{}, false, nil
	}
	return c, true, nil
}

// ListCustomConfigs returns every stored custom challenge ordered by id.
func (s *SavingsStore) ListCustomConfigs(ctx context.Context) ([]core.ChallengeConfig, error) {
	keys, err := s.store.Keys(ctx, configPrefix)
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	var out []core.ChallengeConfig
	for _, k := range keys {
		c, ok, err := s.LoadChallenge(ctx, strings.TrimPrefix(k, configPrefix))
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// NetBalance reads the persisted ledger of id and returns its net balance.
func (s *SavingsStore) NetBalance(ctx context.Context, id string) (int64, error) {
	l, err := s.LoadLedger(ctx, id)
	if err != nil {
		return 0, err
	}
	return l.NetBalance(), nil
}

// Snapshot returns every namespaced pair verbatim.
func (s *SavingsStore) Snapshot(ctx context.Context) (map[string]string, error) {
	keys, err := s.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok, err := s.store.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", k, err)
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

// Restore writes pairs verbatim.
func (s *SavingsStore) Restore(ctx context.Context, pairs map[string]string) error {
	if err := s.store.SetMany(ctx, pairs); err != nil {
		return fmt.Errorf("restore: %w", err)
	}
	return nil
}

func (s *SavingsStore) loadJSON(ctx context.Context, key string, dst any) error {
	raw, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("load %s: %w", key, err)
	}
	if !ok || raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		s.logger.DebugContext(ctx, "Malformed stored value treated as empty", "key", key, log.FieldError, err)
		clearValue(dst)
	}
	return nil
}

func clearValue(dst any) {
	switch v := dst.(type) {
	case *[]int64:
		*v = nil
	case *[]core.DepositRecord:
		*v = nil
	case *core.UserProfile:
		*v = core.UserProfile{}
	}
}

func nonNil(in []int64) []int64 {
	if in == nil {
		return []int64{}
	}
	return in
}

func nonNilHistory(in []core.DepositRecord) []core.DepositRecord {
	if in == nil {
		return []core.DepositRecord{}
	}
	return in
}
