package worker

import (
	"context"
	"fmt"
	"log/slog"

	"ahorro/internal/amqp"
	"ahorro/internal/sheets"
)

// HistoryWorker mirrors ledger events into a spreadsheet.
type HistoryWorker struct {
	mirror sheets.HistoryMirror
}

func NewHistoryWorker(mirror sheets.HistoryMirror) *HistoryWorker {
	return &HistoryWorker{mirror: mirror}
}

// HandleLedgerEvent appends e unless it was already mirrored. Errors make
// the consumer requeue the delivery.
func (w *HistoryWorker) HandleLedgerEvent(ctx context.Context, e *amqp.LedgerEvent) error {
	seen, err := w.mirror.HasEvent(ctx, e.ID)
	if err != nil {
		return fmt.Errorf("check mirrored event: %w", err)
	}
	if seen {
		slog.InfoContext(ctx, "Skipping already mirrored event", "id", e.ID, "kind", e.Kind)
		return nil
	}

	ref, err := w.mirror.AppendRow(ctx, sheets.HistoryRow{
		EventID:     e.ID,
		Timestamp:   e.Timestamp,
		ChallengeID: e.ChallengeID,
		Kind:        string(e.Kind),
		Value:       e.Value,
		NetBalance:  e.NetBalance,
	})
	if err != nil {
		return fmt.Errorf("append history row: %w", err)
	}

	slog.InfoContext(ctx, "Ledger event mirrored",
		"id", e.ID,
		"kind", e.Kind,
		"challenge_id", e.ChallengeID,
		"ref", ref)
	return nil
}
