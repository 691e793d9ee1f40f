package export

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gsheet "google.golang.org/api/sheets/v4"

	"bizdash/internal/log"
	"bizdash/internal/records/google"
)

// SheetsWriter writes each sheet of a workbook to a tab of a spreadsheet,
// creating the tab when missing and replacing its previous contents.
type SheetsWriter struct {
	svc           *gsheet.Service
	spreadsheetID string
	logger        *log.Logger
}

var _ Writer = (*SheetsWriter)(nil)

func NewSheetsWriter(svc *gsheet.Service, spreadsheetID string, logger *log.Logger) (*SheetsWriter, error) {
	if svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	if strings.TrimSpace(spreadsheetID) == "" {
		return nil, errors.New("missing export spreadsheet id")
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &SheetsWriter{svc: svc, spreadsheetID: spreadsheetID, logger: logger.WithComponent(log.ComponentExport)}, nil
}

func (s *SheetsWriter) Write(ctx context.Context, wb Workbook) error {
	ss, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	existing := make(map[string]bool, len(ss.Sheets))
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			existing[sh.Properties.Title] = true
		}
	}

	var add []*gsheet.Request
	for _, sh := range wb.Sheets {
		if !existing[sh.Name] {
			add = append(add, &gsheet.Request{AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: sh.Name},
			}})
			existing[sh.Name] = true
		}
	}
	if len(add) > 0 {
		_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: add}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("add sheets: %w", err)
		}
	}

	for _, sh := range wb.Sheets {
		if _, err := s.svc.Spreadsheets.Values.Clear(s.spreadsheetID, google.A1(sh.Name, "A:ZZ"), &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
			return fmt.Errorf("clear %s: %w", sh.Name, err)
		}
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, google.A1(sh.Name, "A1"), &gsheet.ValueRange{Values: sheetValues(sh)}).
			ValueInputOption("RAW").
			Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("write %s: %w", sh.Name, err)
		}
		s.logger.InfoContext(ctx, "Sheet exported", "sheet", sh.Name, log.FieldRecords, len(sh.Rows))
	}
	return nil
}

func sheetValues(s Sheet) [][]any {
	out := make([][]any, 0, len(s.Rows)+1)
	out = append(out, toAny(s.Header))
	for _, r := range s.Rows {
		out = append(out, toAny(r))
	}
	return out
}

func toAny(row []string) []any {
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
