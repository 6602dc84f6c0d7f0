// Package testutil provides testing utilities and helpers for the opsdesk back office.
package testutil

import (
	"github.com/meridianbank/opsdesk/internal/domain/model"
	"github.com/meridianbank/opsdesk/internal/resultset"
)

// SavedViewBuilder provides a fluent interface for building CreateSavedViewRequest objects for testing.
type SavedViewBuilder struct {
	req *model.CreateSavedViewRequest
}

// NewSavedViewRequest creates a new SavedViewBuilder with sensible defaults.
func NewSavedViewRequest() *SavedViewBuilder {
	return &SavedViewBuilder{
		req: &model.CreateSavedViewRequest{
			UserID:  "user-1",
			Dataset: "accounts",
			Name:    "My view",
			State: resultset.ViewState{
				Filters: resultset.FilterState{},
				Sort:    resultset.SortState{Field: "opened_at", Descending: true},
				Page:    resultset.PageState{Index: 0, Size: 25},
			},
		},
	}
}

// WithUserID sets the owning user.
func (b *SavedViewBuilder) WithUserID(userID string) *SavedViewBuilder {
	b.req.UserID = userID
	return b
}

// WithDataset sets the dataset the view belongs to.
func (b *SavedViewBuilder) WithDataset(dataset string) *SavedViewBuilder {
	b.req.Dataset = dataset
	return b
}

// WithName sets the view name.
func (b *SavedViewBuilder) WithName(name string) *SavedViewBuilder {
	b.req.Name = name
	return b
}

// WithState replaces the whole view state.
func (b *SavedViewBuilder) WithState(state resultset.ViewState) *SavedViewBuilder {
	b.req.State = state
	return b
}

// WithFilter sets one filter value in the view state.
func (b *SavedViewBuilder) WithFilter(name, value string) *SavedViewBuilder {
	if b.req.State.Filters == nil {
		b.req.State.Filters = resultset.FilterState{}
	}
	b.req.State.Filters[name] = value
	return b
}

// WithSort sets the sort key and direction in the view state.
func (b *SavedViewBuilder) WithSort(field string, descending bool) *SavedViewBuilder {
	b.req.State.Sort = resultset.SortState{Field: field, Descending: descending}
	return b
}

// WithPage sets the page index and size in the view state.
func (b *SavedViewBuilder) WithPage(index, size int) *SavedViewBuilder {
	b.req.State.Page = resultset.PageState{Index: index, Size: size}
	return b
}

// Build returns the constructed CreateSavedViewRequest.
func (b *SavedViewBuilder) Build() *model.CreateSavedViewRequest {
	return b.req
}

// ExportRecordBuilder provides a fluent interface for building CreateExportRecordRequest objects for testing.
type ExportRecordBuilder struct {
	req *model.CreateExportRecordRequest
}

// NewExportRecordRequest creates a new ExportRecordBuilder with sensible defaults.
// The caller still has to supply the ULID via WithID.
func NewExportRecordRequest() *ExportRecordBuilder {
	return &ExportRecordBuilder{
		req: &model.CreateExportRecordRequest{
			ID:       "01HV9QT4Y5MZ0J3W8K2R6E7DBC",
			UserID:   "user-1",
			Dataset:  "accounts",
			Format:   model.ExportFormatCSV,
			RowCount: 0,
			Filters:  resultset.FilterState{},
		},
	}
}

// WithID sets the export's ULID.
func (b *ExportRecordBuilder) WithID(id string) *ExportRecordBuilder {
	b.req.ID = id
	return b
}

// WithUserID sets the exporting user.
func (b *ExportRecordBuilder) WithUserID(userID string) *ExportRecordBuilder {
	b.req.UserID = userID
	return b
}

// WithDataset sets the exported dataset.
func (b *ExportRecordBuilder) WithDataset(dataset string) *ExportRecordBuilder {
	b.req.Dataset = dataset
	return b
}

// WithFormat sets the export format.
func (b *ExportRecordBuilder) WithFormat(format model.ExportFormat) *ExportRecordBuilder {
	b.req.Format = format
	return b
}

// WithRowCount sets the number of exported rows.
func (b *ExportRecordBuilder) WithRowCount(rows int) *ExportRecordBuilder {
	b.req.RowCount = rows
	return b
}

// WithFilter sets one filter value in the recorded filter summary.
func (b *ExportRecordBuilder) WithFilter(name, value string) *ExportRecordBuilder {
	if b.req.Filters == nil {
		b.req.Filters = resultset.FilterState{}
	}
	b.req.Filters[name] = value
	return b
}

// Build returns the constructed CreateExportRecordRequest.
func (b *ExportRecordBuilder) Build() *model.CreateExportRecordRequest {
	return b.req
}

// Common presets

// FilteredViewRequest creates a saved view request with an active filter and search.
func FilteredViewRequest(userID, dataset string) *model.CreateSavedViewRequest {
	return NewSavedViewRequest().
		WithUserID(userID).
		WithDataset(dataset).
		WithName("Filtered view").
		WithFilter("status", "frozen").
		WithFilter("q", "meridian").
		Build()
}

// CSVExportRequest creates a CSV export record request with the given ULID.
func CSVExportRequest(id string) *model.CreateExportRecordRequest {
	return NewExportRecordRequest().
		WithID(id).
		WithFormat(model.ExportFormatCSV).
		WithRowCount(42).
		Build()
}

// PDFExportRequest creates a PDF export record request with the given ULID.
func PDFExportRequest(id string) *model.CreateExportRecordRequest {
	return NewExportRecordRequest().
		WithID(id).
		WithFormat(model.ExportFormatPDF).
		WithRowCount(7).
		Build()
}
