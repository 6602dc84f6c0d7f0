package resultset

import "strings"

// Column maps a CSV header label to the record field rendered beneath it.
type Column struct {
	Header string
	Field  string
}

// ToCSV renders records as CSV text: one quoted header row, then one quoted
// row per record. Every cell is quoted whether or not it needs to be, with
// embedded quotes doubled, which keeps the output uniform for spreadsheet
// imports. Rows end with \n, including the last. A record missing a column's
// field yields an empty quoted cell.
func ToCSV(records []Record, columns []Column) string {
	var b strings.Builder

	cells := make([]string, len(columns))
	for i, c := range columns {
		cells[i] = c.Header
	}
	writeCSVRow(&b, cells)

	for _, r := range records {
		for i, c := range columns {
			v, ok := fieldValue(r, c.Field)
			if !ok {
				cells[i] = ""
				continue
			}
			cells[i] = renderValue(v)
		}
		writeCSVRow(&b, cells)
	}
	return b.String()
}

func writeCSVRow(b *strings.Builder, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
}
