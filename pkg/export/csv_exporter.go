package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"
)

// CSVExporter renders hearing rosters as CSV.
type CSVExporter struct {
	loc *time.Location
}

// NewCSVExporter builds a CSV exporter printing times in loc.
func NewCSVExporter(loc *time.Location) *CSVExporter {
	if loc == nil {
		loc = time.UTC
	}
	return &CSVExporter{loc: loc}
}

// RenderRoster produces one CSV line per roster row, prefixed with the case id.
func (e *CSVExporter) RenderRoster(sheet HearingSheet) ([]byte, error) {
	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)
	if err := writer.Write(append([]string{"Case", "Date"}, rosterHeaders...)); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	for _, row := range sheet.Rows {
		if err := writer.Write(append([]string{sheet.CaseID, sheet.Date}, row.cells(e.loc)...)); err != nil {
			return nil, fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}
