//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/meridianbank/opsdesk/internal/resultset"
)

// ExportFormat identifies the rendering used for a dataset export.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

// Valid reports whether the export format is supported.
func (f ExportFormat) Valid() bool {
	switch f {
	case ExportFormatCSV, ExportFormatPDF:
		return true
	default:
		return false
	}
}

// ParseExportFormat normalizes a format string and reports whether it is
// supported. The normalized value is returned either way so callers can echo
// it back in error messages.
func ParseExportFormat(value string) (ExportFormat, bool) {
	f := ExportFormat(strings.ToLower(strings.TrimSpace(value)))
	return f, f.Valid()
}

// ContentType returns the MIME type clients receive for this format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// ExportRecord is the audit trail row written for every dataset export.
// The ID is a ULID, so records sort by creation time without a separate index.
type ExportRecord struct {
	ID        string                `json:"id"         db:"id"`
	UserID    string                `json:"user_id"    db:"user_id"`
	Dataset   string                `json:"dataset"    db:"dataset"`
	Format    ExportFormat          `json:"format"     db:"format"`
	RowCount  int                   `json:"row_count"  db:"row_count"`
	Filters   resultset.FilterState `json:"filters"    db:"filters"`
	CreatedAt time.Time             `json:"created_at" db:"created_at"`
}

// CreateExportRecordRequest represents parameters to record a completed export.
type CreateExportRecordRequest struct {
	ID       string                `json:"id"`
	UserID   string                `json:"user_id"`
	Dataset  string                `json:"dataset"`
	Format   ExportFormat          `json:"format"`
	RowCount int                   `json:"row_count"`
	Filters  resultset.FilterState `json:"filters"`
}

// ResultRecord flattens the audit row into a browsable record. The created
// time renders as RFC 3339 so window filters and CSV cells treat it like any
// ledger field, and the filter state collapses to a display string.
func (e *ExportRecord) ResultRecord() resultset.Record {
	return resultset.Record{
		"id":         e.ID,
		"user_id":    e.UserID,
		"dataset":    e.Dataset,
		"format":     string(e.Format),
		"row_count":  e.RowCount,
		"filters":    e.FilterSummary(),
		"created_at": e.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// FilterSummary renders the recorded filter state as sorted name=value pairs
// joined by spaces. An empty state yields the empty string.
func (e *ExportRecord) FilterSummary() string {
	if len(e.Filters) == 0 {
		return ""
	}
	names := make([]string, 0, len(e.Filters))
	for name := range e.Filters {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+e.Filters[name])
	}
	return strings.Join(parts, " ")
}

// ExportListOptions controls paging and filtering for listing export records.
type ExportListOptions struct {
	Dataset string // exact match; empty matches all datasets
	UserID  string // exact match; empty matches all users
	Limit   int
	Offset  int
}

// Validate validates CreateExportRecordRequest.
func (r *CreateExportRecordRequest) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return errors.New("id is required")
	}
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.Dataset) == "" {
		return errors.New("dataset is required")
	}
	if !r.Format.Valid() {
		return errors.New("invalid format")
	}
	if r.RowCount < 0 {
		return errors.New("row_count cannot be negative")
	}
	return nil
}
