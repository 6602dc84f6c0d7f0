package service

import (
	"context"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/meridianbank/opsdesk/internal/core"
	"github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/domain/model"
	apperrors "github.com/meridianbank/opsdesk/internal/errors"
	"github.com/meridianbank/opsdesk/internal/exports"
	"github.com/meridianbank/opsdesk/internal/observability/metrics"
	"github.com/meridianbank/opsdesk/internal/observability/statsd"
	"github.com/meridianbank/opsdesk/internal/resultset"
)

// ExportServiceOptions groups dependencies for ExportService.
type ExportServiceOptions struct {
	Datasets *DatasetService
	Audit    core.ExportRepository
	Metrics  statsd.Sink
}

// ExportService renders a dataset's full filtered collection as a download.
// Exporting requires the manager role, and every export writes one audit
// row before the payload is released.
type ExportService struct {
	datasets *DatasetService
	audit    core.ExportRepository
	metrics  statsd.Sink
}

// NewExportService constructs a new ExportService.
func NewExportService(opts ExportServiceOptions) *ExportService {
	return &ExportService{
		datasets: opts.Datasets,
		audit:    opts.Audit,
		metrics:  opts.Metrics,
	}
}

// ExportRequest describes one requested export.
type ExportRequest struct {
	Dataset string
	Format  model.ExportFormat
	Filters resultset.FilterState
	Sort    resultset.SortState
}

// Export is a rendered payload ready to serve as an attachment.
type Export struct {
	ID          string
	Filename    string
	ContentType string
	Data        []byte
	RowCount    int
	CreatedAt   time.Time
}

// Export renders the requested dataset export and records it in the audit
// trail.
func (s *ExportService) Export(ctx context.Context, sess auth.Session, req ExportRequest) (*Export, error) {
	start := time.Now()
	out, err := s.export(ctx, sess, req)

	rows := 0
	if out != nil {
		rows = out.RowCount
	}
	metrics.EmitExport(s.metrics, metrics.ExportMetric{
		Dataset:  req.Dataset,
		Format:   string(req.Format),
		Rows:     rows,
		Duration: time.Since(start),
		Err:      err,
	})
	return out, err
}

func (s *ExportService) export(ctx context.Context, sess auth.Session, req ExportRequest) (*Export, error) {
	if !sess.CanExport() {
		return nil, apperrors.Forbidden("exporting datasets requires the manager role")
	}
	if !req.Format.Valid() {
		return nil, apperrors.InvalidInputf("unsupported export format %q", string(req.Format))
	}

	rows, err := s.datasets.Rows(ctx, sess, RowsRequest{
		Dataset: req.Dataset,
		Filters: req.Filters,
		Sort:    req.Sort,
	})
	if err != nil {
		return nil, err
	}

	payload, err := renderExport(req.Format, rows)
	if err != nil {
		return nil, fmt.Errorf("render %s export for %s: %w", req.Format, rows.Dataset, err)
	}

	// The audit row must land before the payload is released; a failed
	// write fails the export.
	record, err := s.audit.Create(ctx, &model.CreateExportRecordRequest{
		ID:       newExportID(),
		UserID:   sess.UserID,
		Dataset:  rows.Dataset,
		Format:   req.Format,
		RowCount: len(rows.Records),
		Filters:  auditFilters(req.Filters),
	})
	if err != nil {
		return nil, fmt.Errorf("record export audit entry: %w", err)
	}

	return &Export{
		ID:          record.ID,
		Filename:    exportFilename(rows.Dataset, req.Format, record.CreatedAt),
		ContentType: req.Format.ContentType(),
		Data:        payload,
		RowCount:    record.RowCount,
		CreatedAt:   record.CreatedAt,
	}, nil
}

func renderExport(format model.ExportFormat, rows *DatasetRows) ([]byte, error) {
	switch format {
	case model.ExportFormatPDF:
		return exports.PDF(exports.Table{
			Title:     rows.Title,
			Columns:   rows.Columns,
			Records:   rows.Records,
			FetchedAt: rows.FetchedAt,
		})
	default:
		return []byte(resultset.ToCSV(rows.Records, rows.Columns)), nil
	}
}

// auditFilters keeps only the filter values that actually constrained the
// export; "all" selections and blank queries carry no information.
func auditFilters(state resultset.FilterState) resultset.FilterState {
	out := resultset.FilterState{}
	for name, value := range state {
		if resultset.IsActive(value) {
			out[name] = value
		}
	}
	return out
}

// exportFilename builds an attachment name like accounts-20240101-150405.csv.
func exportFilename(dataset string, format model.ExportFormat, at time.Time) string {
	return fmt.Sprintf("%s-%s.%s", dataset, at.UTC().Format("20060102-150405"), format)
}

// newExportID mints a ULID. ULIDs embed their creation time, so ordering the
// audit trail by ID is ordering it by age.
func newExportID() string {
	return ulid.Make().String()
}
