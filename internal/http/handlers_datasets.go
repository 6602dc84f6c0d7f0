// Package httpx provides the JSON API handlers and middleware for the opsdesk
// back office service.
package httpx

import (
	"errors"
	"net/http"
	"sort"
	"strconv"

	"github.com/meridianbank/opsdesk/internal/catalog"
	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/domain/model"
	"github.com/meridianbank/opsdesk/internal/resultset"
	"github.com/meridianbank/opsdesk/internal/service"
)

// DatasetHandlers provides HTTP handlers for browsing and exporting datasets.
type DatasetHandlers struct {
	Datasets *service.DatasetService
	Exports  *service.ExportService
}

// datasetSummary is the wire form of a catalog entry: everything a client
// needs to render the browse controls for one dataset.
type datasetSummary struct {
	Key         string          `json:"key"`
	Title       string          `json:"title"`
	Columns     []columnSummary `json:"columns"`
	Filters     []filterSummary `json:"filters,omitempty"`
	Sortable    []string        `json:"sortable,omitempty"`
	DefaultSort sortSummary     `json:"default_sort"`
	PageSize    int             `json:"page_size"`
}

type columnSummary struct {
	Header string `json:"header"`
	Field  string `json:"field"`
}

type filterSummary struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Buckets []string `json:"buckets,omitempty"`
}

type sortSummary struct {
	Field string `json:"field"`
	Dir   string `json:"dir"`
}

// List handles GET /api/datasets. It returns the datasets the session's role
// may browse, with the column and filter metadata clients build their
// controls from.
func (h *DatasetHandlers) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	visible := h.Datasets.Visible(sess)
	summaries := make([]datasetSummary, 0, len(visible))
	for _, d := range visible {
		summaries = append(summaries, newDatasetSummary(d))
	}

	WriteJSON(w, http.StatusOK, map[string]any{"datasets": summaries})
}

// Records handles GET /api/datasets/{key}/records, the list endpoint. The
// query carries the view state (filters, sort, page); the response echoes
// the effective sort and page so clients stay in step with server-side
// defaulting and clamping.
func (h *DatasetHandlers) Records(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	page, err := h.Datasets.Page(r.Context(), sess, service.PageRequest{
		Dataset: r.PathValue("key"),
		View:    parseViewQuery(r),
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"records":     page.Page.Records,
		"total_count": page.Page.TotalCount,
		"total_pages": page.Page.TotalPages,
		"page":        page.Page.Index,
		"page_size":   page.Page.Size,
		"has_prev":    page.Page.HasPrev(),
		"has_next":    page.Page.HasNext(),
		"sort":        page.Sort.Field,
		"dir":         sortDir(page.Sort),
	})
}

// Export handles GET /api/datasets/{key}/export. The full filtered
// collection is rendered in the requested format and served as an
// attachment. Filters and sort use the same query protocol as the list
// endpoint; page params are ignored.
func (h *DatasetHandlers) Export(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	format := model.ExportFormatCSV
	if raw := r.URL.Query().Get("format"); raw != "" {
		// Normalizes case; unsupported values flow through so the service
		// can report them.
		format, _ = model.ParseExportFormat(raw)
	}

	view := parseViewQuery(r)
	export, err := h.Exports.Export(r.Context(), sess, service.ExportRequest{
		Dataset: r.PathValue("key"),
		Format:  format,
		Filters: view.Filters,
		Sort:    view.Sort,
	})
	if err != nil {
		WriteAppError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(export.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Data); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

func newDatasetSummary(d *catalog.Dataset) datasetSummary {
	columns := make([]columnSummary, 0, len(d.Columns))
	for _, c := range d.Columns {
		columns = append(columns, columnSummary{Header: c.Header, Field: c.Field})
	}

	filters := make([]filterSummary, 0, len(d.Filters))
	for _, f := range d.Filters {
		filters = append(filters, newFilterSummary(f))
	}

	return datasetSummary{
		Key:         d.Key,
		Title:       d.Title,
		Columns:     columns,
		Filters:     filters,
		Sortable:    d.Sortable,
		DefaultSort: sortSummary{Field: d.DefaultSort.Field, Dir: sortDir(d.DefaultSort)},
		PageSize:    resultset.DefaultPageSize,
	}
}

func newFilterSummary(f resultset.FilterDef) filterSummary {
	s := filterSummary{Name: f.Name, Kind: string(f.Kind)}
	if len(f.Buckets) > 0 {
		s.Buckets = make([]string, 0, len(f.Buckets))
		for name := range f.Buckets {
			s.Buckets = append(s.Buckets, name)
		}
		sort.Strings(s.Buckets)
	}
	return s
}

func sortDir(s resultset.SortState) string {
	if s.Descending {
		return "desc"
	}
	return "asc"
}

// requireSession returns the authenticated session from the request context
// or writes a 401. The auth middleware normally guarantees presence; this
// guards directly wired handlers.
func requireSession(w http.ResponseWriter, r *http.Request) (domainauth.Session, bool) {
	sess, ok := SessionFromRequest(r)
	if !ok {
		WriteError(w, ErrorParams{
			Code:    http.StatusUnauthorized,
			ErrCode: "authentication_required",
			Err:     errors.New("authentication required"),
		})
	}
	return sess, ok
}
