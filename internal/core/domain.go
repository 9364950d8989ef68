package core

import (
	"errors"
	"strings"
)

const (
	Dark  ThemeMode = "dark"
	Light ThemeMode = "light"

	Deposit    RecordType = "deposit"
	Withdrawal RecordType = "withdrawal"
)

// TimestampLayout matches the millisecond ISO-8601 form used in stored history.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type (
	ThemeMode string

	RecordType string

	// UserProfile holds free-form contact details shown on the report.
	UserProfile struct {
		Name    string `json:"name"`
		Phone   string `json:"phone"`
		Address string `json:"address"`
		Email   string `json:"email"`
	}

	// DepositRecord is one entry of the append-only history log.
	// Deposits carry the positive slot value, withdrawals the negated amount.
	DepositRecord struct {
		Value     float64    `json:"value"`
		Timestamp string     `json:"timestamp"`
		Type      RecordType `json:"type,omitempty"`
	}
)

var (
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient funds for this withdrawal")
	ErrInvalidRange       = errors.New("invalid range: start must be lower than end")
	ErrInvalidProgression = errors.New("invalid progression: count must be positive")
	ErrNotInteger         = errors.New("value is not an integer")
	ErrInvalidTheme       = errors.New("invalid theme")
)

// ParseTheme accepts "dark" or "light" in any case.
func ParseTheme(s string) (ThemeMode, error) {
	switch ThemeMode(strings.ToLower(strings.TrimSpace(s))) {
	case Dark:
		return Dark, nil
	case Light:
		return Light, nil
	default:
		return "", ErrInvalidTheme
	}
}

// Toggle returns the opposite theme.
func (t ThemeMode) Toggle() ThemeMode {
	if t == Dark {
		return Light
	}
	return Dark
}

// Kind returns the record type, treating untyped legacy records as deposits.
func (r DepositRecord) Kind() RecordType {
	if r.Type == "" {
		return Deposit
	}
	return r.Type
}

// IsEmpty reports whether every profile field is blank.
func (p UserProfile) IsEmpty() bool {
	return strings.TrimSpace(p.Name) == "" &&
		strings.TrimSpace(p.Phone) == "" &&
		strings.TrimSpace(p.Address) == "" &&
		strings.TrimSpace(p.Email) == ""
}

// Transition tells the caller whether the working set produced by a state
// change must be written back to storage.
type Transition struct {
	Persist bool
}
