package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders hearing attendance sheets.
type PDFExporter struct {
	loc *time.Location
}

// NewPDFExporter constructs a PDF exporter printing times in loc.
func NewPDFExporter(loc *time.Location) *PDFExporter {
	if loc == nil {
		loc = time.UTC
	}
	return &PDFExporter{loc: loc}
}

// RenderSheet creates the attendance sheet with the hearing QR code, the
// manual code and the roster table.
func (e *PDFExporter) RenderSheet(sheet HearingSheet) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, "HEARING ATTENDANCE SHEET", "", 1, "C", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	for _, line := range [][2]string{
		{"Case", sheet.CaseID},
		{"Court", sheet.CourtName},
		{"Location", sheet.Location},
		{"Date", sheet.Date + " " + sheet.Time},
		{"Status", sheet.Status},
	} {
		pdf.CellFormat(30, 6, line[0]+":", "", 0, "", false, 0, "")
		pdf.CellFormat(100, 6, line[1], "", 1, "", false, 0, "")
	}

	if sheet.QRToken != "" {
		png, err := QRPNG(sheet.QRToken, DefaultQRSize)
		if err != nil {
			return nil, err
		}
		opts := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: false}
		pdf.RegisterImageOptionsReader("hearing-qr", opts, bytes.NewReader(png))
		pdf.ImageOptions("hearing-qr", 150, 22, 45, 45, false, opts, 0, "")
	}
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(30, 8, "Manual code:", "", 0, "", false, 0, "")
	pdf.CellFormat(100, 8, sheet.ManualCode, "", 1, "", false, 0, "")
	pdf.SetY(72)

	pdf.SetFont("Arial", "B", 10)
	widths := []float64{60, 25, 25, 30, 50}
	for i, header := range rosterHeaders {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range sheet.Rows {
		for i, cell := range row.cells(e.loc) {
			pdf.CellFormat(widths[i], 7, cell, "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	generated := sheet.Generated
	if generated.IsZero() {
		generated = time.Now()
	}
	pdf.Ln(4)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 5, "Generated "+generated.In(e.loc).Format("2006-01-02 15:04 MST"), "", 1, "R", false, 0, "")

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
