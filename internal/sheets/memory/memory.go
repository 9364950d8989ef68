package memory

import (
	"context"
	"fmt"
	"sync"

	"ahorro/internal/sheets"
)

// Store is an in-process HistoryMirror used when no spreadsheet is set.
type Store struct {
	mu   sync.Mutex
	rows []sheets.HistoryRow
	ids  map[string]int
}

var _ sheets.HistoryMirror = (*Store)(nil)

func New() *Store {
	return &Store{ids: make(map[string]int)}
}

func (s *Store) AppendRow(_ context.Context, row sheets.HistoryRow) (string, error) {
	if row.EventID == "" {
		return "", fmt.Errorf("history row without event id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	s.ids[row.EventID] = len(s.rows)
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

func (s *Store) HasEvent(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[eventID]
	return ok, nil
}

// Rows returns a copy of the mirrored rows in append order.
func (s *Store) Rows() []sheets.HistoryRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sheets.HistoryRow(nil), s.rows...)
}
