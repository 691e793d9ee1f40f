package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/zip"
)

// ZipWriter writes a workbook as a zip archive with one CSV file per sheet.
type ZipWriter struct {
	w   io.Writer
	now func() time.Time
}

var _ Writer = (*ZipWriter)(nil)

func NewZipWriter(w io.Writer) *ZipWriter {
	return &ZipWriter{w: w, now: time.Now}
}

func (z *ZipWriter) Write(ctx context.Context, wb Workbook) error {
	zw := zip.NewWriter(z.w)
	used := make(map[string]int, len(wb.Sheets))
	for _, s := range wb.Sheets {
		if err := ctx.Err(); err != nil {
			return err
		}
		name := s.Name
		if n := used[name]; n > 0 {
			name = fmt.Sprintf("%s (%d)", name, n+1)
		}
		used[s.Name]++

		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     name + ".csv",
			Method:   zip.Deflate,
			Modified: z.now(),
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", name, err)
		}
		if err := writeCSV(f, s); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, s Sheet) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(s.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(s.Rows); err != nil {
		return err
	}
	return cw.Error()
}
