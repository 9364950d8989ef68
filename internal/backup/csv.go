package backup

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"ahorro/internal/core"
)

var csvHeader = []string{"Fecha", "Tipo", "Monto"}

// WriteCSV renders history as Fecha,Tipo,Monto rows in stored order.
// Dates use the d/m/yyyy form in loc; untyped records are deposits.
func WriteCSV(w io.Writer, history []core.DepositRecord, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range history {
		row := []string{
			formatDate(rec.Timestamp, loc),
			string(rec.Kind()),
			strconv.FormatFloat(rec.Value, 'f', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ImportCSV is reserved for a future spreadsheet import.
func ImportCSV(io.Reader) error {
	return ErrNotImplemented
}

// CSVFileName is the suggested download name for challenge id.
func CSVFileName(challengeID string) string {
	return "reporte_" + challengeID + ".csv"
}

func formatDate(ts string, loc *time.Location) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ""
	}
	return t.In(loc).Format("2/1/2006")
}
