package google

import (
	"fmt"
	"strings"
	"time"

	"ahorro/internal/core"
	ports "ahorro/internal/sheets"
)

// rowValues orders a history row as columns A..F:
// event id, timestamp, challenge, kind, value, net balance.
func rowValues(r ports.HistoryRow) []any {
	return []any{
		r.EventID,
		r.Timestamp.UTC().Format(time.RFC3339),
		r.ChallengeID,
		r.Kind,
		r.Value,
		core.FormatMXN(r.NetBalance),
	}
}

// eventIDs collects the non-empty first cells, skipping a header row.
func eventIDs(values [][]any) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for i, row := range values {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(fmt.Sprint(row[0]))
		if v == "" || (i == 0 && strings.EqualFold(v, "id")) {
			continue
		}
		out[v] = struct{}{}
	}
	return out
}
