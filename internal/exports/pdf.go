// Package exports renders dataset result sets into downloadable
// documents. CSV is plain string assembly and lives with the result set
// code; this package owns the PDF layout.
package exports

import (
	"bytes"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/phpdave11/gofpdf"

	"github.com/meridianbank/opsdesk/internal/resultset"
)

const (
	headerRowHeight = 7.0
	bodyRowHeight   = 6.0
	cellPadding     = 2.0
	footerReserve   = 18.0
)

// Table is one dataset export laid out as a grid: a title block, a
// repeated header row, and one body row per record.
type Table struct {
	Title     string
	Columns   []resultset.Column
	Records   []resultset.Record
	FetchedAt time.Time
}

// PDF renders the table as a paginated A4 landscape document. The column
// header row repeats on every page and a page counter sits in the footer.
func PDF(t Table) ([]byte, error) {
	if len(t.Columns) == 0 {
		return nil, errors.New("at least one column is required")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(t.Title, false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.CellFormat(0, 8, fmt.Sprintf("Page %d of {nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	usable := pageW - left - right
	colWidth := usable / float64(len(t.Columns))
	pageLimit := pageH - footerReserve - bodyRowHeight

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, tr(t.Title))
	pdf.Ln(9)
	pdf.SetFont("Helvetica", "", 9)
	pdf.Cell(0, 5, fmt.Sprintf("%d records, data as of %s",
		len(t.Records), t.FetchedAt.UTC().Format("2006-01-02 15:04 UTC")))
	pdf.Ln(8)

	writeHeader := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for _, c := range t.Columns {
			pdf.CellFormat(colWidth, headerRowHeight, fitCell(pdf, tr(c.Header), colWidth), "1", 0, "L", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Helvetica", "", 8)
	}
	writeHeader()

	if len(t.Records) == 0 {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.CellFormat(usable, bodyRowHeight, "No records.", "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	for _, rec := range t.Records {
		if pdf.GetY() > pageLimit {
			pdf.AddPage()
			writeHeader()
		}
		for _, c := range t.Columns {
			cell := tr(resultset.Cell(rec, c.Field))
			pdf.CellFormat(colWidth, bodyRowHeight, fitCell(pdf, cell, colWidth), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// fitCell shortens s until it fits the column width, marking anything cut
// with a trailing ellipsis.
func fitCell(pdf *gofpdf.Fpdf, s string, width float64) string {
	max := width - cellPadding
	if pdf.GetStringWidth(s) <= max {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > max {
		_, size := utf8.DecodeLastRuneInString(s)
		s = s[:len(s)-size]
	}
	return s + "..."
}
