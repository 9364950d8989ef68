package sheets

import (
	"context"
	"time"
)

// HistoryRow is one ledger event as mirrored to a spreadsheet.
type HistoryRow struct {
	EventID     string
	Timestamp   time.Time
	ChallengeID string
	Kind        string
	Value       float64
	NetBalance  int64
}

// Ports for outbound adapters.
type (
	HistoryWriter interface {
		AppendRow(ctx context.Context, row HistoryRow) (rowRef string, err error)
	}

	// EventIndex answers whether an event was already mirrored, which makes
	// redelivered messages idempotent.
	EventIndex interface {
		HasEvent(ctx context.Context, eventID string) (bool, error)
	}

	HistoryMirror interface {
		HistoryWriter
		EventIndex
	}
)
