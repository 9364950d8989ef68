package google

import (
	"context"
	"testing"
	"time"

	ports "ahorro/internal/sheets"
)

func TestRowValues(t *testing.T) {
	ts := time.Date(2025, 5, 1, 12, 0, 0, 0, time.FixedZone("CST", -6*3600))
	got := rowValues(ports.HistoryRow{
		EventID: "e1", Timestamp: ts, ChallengeID: "250", Kind: "withdrawal", Value: -25, NetBalance: 1500,
	})
	want := []any{"e1", "2025-05-01T18:00:00Z", "250", "withdrawal", -25.0, "$1,500"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("column %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEventIDs(t *testing.T) {
	ids := eventIDs([][]any{{"ID"}, {"a"}, {}, {"  "}, {"b", "x"}})
	if len(ids) != 2 {
		t.Fatalf("unexpected ids %v", ids)
	}
	for _, k := range []string{"a", "b"} {
		if _, ok := ids[k]; !ok {
			t.Fatalf("missing %s", k)
		}
	}
}

func TestUninitializedClient(t *testing.T) {
	c := &Client{sheetName: DefaultSheetName}
	if _, err := c.AppendRow(context.Background(), ports.HistoryRow{EventID: "x"}); err == nil {
		t.Fatalf("expected error without service")
	}
	if _, err := c.HasEvent(context.Background(), "x"); err == nil {
		t.Fatalf("expected error without service")
	}
}
