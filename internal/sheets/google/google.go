package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	ports "ahorro/internal/sheets"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"
)

const DefaultSheetName = "Historial"

// Client appends ledger history rows to one sheet of a spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string

	mu    sync.Mutex
	known map[string]struct{}
}

var _ ports.HistoryMirror = (*Client)(nil)

// New builds a client authenticated with service account credentials from
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS.
func New(ctx context.Context, spreadsheetID, sheetName string) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	if strings.TrimSpace(sheetName) == "" {
		sheetName = DefaultSheetName
	}
	creds, err := credentialsFromEnv()
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(creds),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	slog.InfoContext(ctx, "Google Sheets history mirror ready", "sheet", sheetName)
	return NewWithService(svc, spreadsheetID, sheetName), nil
}

func NewWithService(svc *gsheet.Service, spreadsheetID, sheetName string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetName: sheetName}
}

func credentialsFromEnv() ([]byte, error) {
	if raw := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON")); raw != "" {
		return []byte(raw), nil
	}
	path := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if path == "" {
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read service account file: %w", err)
	}
	return b, nil
}

// AppendRow adds row after the last used row of the sheet.
func (c *Client) AppendRow(ctx context.Context, row ports.HistoryRow) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	vr := &gsheet.ValueRange{Values: [][]any{rowValues(row)}}
	resp, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("append to %s: %w", c.sheetName, err)
	}

	c.mu.Lock()
	if c.known != nil {
		c.known[row.EventID] = struct{}{}
	}
	c.mu.Unlock()

	if resp.Updates != nil {
		return resp.Updates.UpdatedRange, nil
	}
	return rng, nil
}

// HasEvent checks column A for eventID. The column is read once and then
// kept in sync by AppendRow.
func (c *Client) HasEvent(ctx context.Context, eventID string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.known == nil {
		if c.svc == nil {
			return false, errors.New("sheets service not initialized")
		}
		rng := fmt.Sprintf("%s!A:A", c.sheetName)
		resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).Context(ctx).Do()
		if err != nil {
			return false, fmt.Errorf("read %s: %w", rng, err)
		}
		c.known = eventIDs(resp.Values)
	}
	_, ok := c.known[eventID]
	return ok, nil
}
