// Package google stores tables as tabs of a Google spreadsheet. The first row
// of every tab holds the field names.
package google

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bizdash/internal/core"
	"bizdash/internal/log"
	"bizdash/internal/records"
)

const valueInputOption = "USER_ENTERED"

// Credentials points at a service account key, inline or on disk. When both
// are empty GOOGLE_APPLICATION_CREDENTIALS is consulted.
type Credentials struct {
	JSON string
	File string
}

func (c Credentials) load() ([]byte, error) {
	switch {
	case strings.TrimSpace(c.JSON) != "":
		return []byte(c.JSON), nil
	case strings.TrimSpace(c.File) != "":
		b, err := os.ReadFile(c.File)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	if p := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")); p != "" {
		b, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
}

// NewService creates a Sheets service authenticated as a service account.
func NewService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	raw, err := creds.load()
	if err != nil {
		return nil, err
	}
	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(raw),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// Client implements records.TableClient on a spreadsheet.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

var _ records.TableClient = (*Client)(nil)

func New(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) (*Client, error) {
	if svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, logger: logger.WithComponent(log.ComponentSheets)}, nil
}

// A1 quotes a tab name for use in a range.
func A1(sheet, rng string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + rng
}

func (c *Client) values(ctx context.Context, table string) ([][]any, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, A1(table, "A:ZZ")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	return resp.Values, nil
}

func (c *Client) Find(ctx context.Context, table, selector string) ([]core.Row, error) {
	sel, err := records.ParseSelector(selector)
	if err != nil {
		return nil, err
	}
	vals, err := c.values(ctx, table)
	if err != nil {
		return nil, err
	}
	_, rows, _ := rowsFromValues(vals)
	out := rows[:0]
	for _, r := range rows {
		if sel.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (c *Client) Add(ctx context.Context, table string, rows ...core.Row) ([]core.Row, error) {
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, A1(table, "1:1")).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read %s header: %w", table, err)
	}
	header := headerOf(resp.Values)
	if len(header) == 0 {
		return nil, fmt.Errorf("%s: sheet has no header row", table)
	}

	out := make([]core.Row, 0, len(rows))
	vals := make([][]any, 0, len(rows))
	for _, r := range rows {
		row := core.Row{}
		for k, v := range r {
			row[k] = v
		}
		if core.ParseString(row.Lookup(core.FieldID)) == "" {
			row[core.FieldID] = uuid.NewString()
		}
		out = append(out, row)
		vals = append(vals, rowToValues(header, row))
	}

	_, err = c.svc.Spreadsheets.Values.Append(c.spreadsheetID, A1(table, "A1"), &gsheet.ValueRange{Values: vals}).
		ValueInputOption(valueInputOption).
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("append %s: %w", table, err)
	}
	c.logger.InfoContext(ctx, "Rows appended", log.FieldTable, table, log.FieldRecords, len(out))
	return out, nil
}

func (c *Client) Edit(ctx context.Context, table string, rows ...core.Row) ([]core.Row, error) {
	vals, err := c.values(ctx, table)
	if err != nil {
		return nil, err
	}
	header, existing, lines := rowsFromValues(vals)

	out := make([]core.Row, 0, len(rows))
	for _, r := range rows {
		id := core.ParseString(r.Lookup(core.FieldID))
		if id == "" {
			return nil, core.ErrMissingID
		}
		idx := indexByID(existing, id)
		if idx < 0 {
			return nil, fmt.Errorf("%w: %s %s", records.ErrNotFound, table, id)
		}
		merged := existing[idx]
		for k, v := range r {
			merged.Set(k, v)
		}
		rng := A1(table, fmt.Sprintf("A%d", lines[idx]))
		_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, rng, &gsheet.ValueRange{Values: [][]any{rowToValues(header, merged)}}).
			ValueInputOption(valueInputOption).
			Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("update %s row %s: %w", table, id, err)
		}
		out = append(out, merged)
	}
	return out, nil
}
