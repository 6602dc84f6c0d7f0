package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/meridianbank/opsdesk/internal/catalog"
	"github.com/meridianbank/opsdesk/internal/core"
	"github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/domain/model"
	apperrors "github.com/meridianbank/opsdesk/internal/errors"
	"github.com/meridianbank/opsdesk/internal/observability/metrics"
	"github.com/meridianbank/opsdesk/internal/observability/statsd"
	"github.com/meridianbank/opsdesk/internal/resultset"
)

// exportCollectionLimit caps how many audit rows the exports dataset serves.
// The browser pages within the most recent rows; older ones age out of view.
const exportCollectionLimit = 5000

// DatasetServiceOptions groups dependencies for DatasetService.
type DatasetServiceOptions struct {
	Catalog   *catalog.Catalog
	Snapshots *core.SnapshotCacheService // optional: without it ledger datasets are fetched per page
	Ledger    core.UpstreamSource
	Exports   core.ExportRepository
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// DatasetService serves pages of catalog datasets. For each request it pins
// a snapshot of the collection (cached for ledger datasets, read fresh for
// the local audit trail), then runs the filter, sort and paginate pipeline
// over it.
type DatasetService struct {
	catalog   *catalog.Catalog
	snapshots *core.SnapshotCacheService
	ledger    core.UpstreamSource
	exports   core.ExportRepository
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewDatasetService constructs a new DatasetService.
func NewDatasetService(opts DatasetServiceOptions) *DatasetService {
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "dataset_service")
	}

	return &DatasetService{
		catalog:   opts.Catalog,
		snapshots: opts.Snapshots,
		ledger:    opts.Ledger,
		exports:   opts.Exports,
		logger:    logger,
		metrics:   opts.Metrics,
	}
}

// PageRequest identifies one page of one dataset.
type PageRequest struct {
	Dataset string
	View    resultset.ViewState
}

// DatasetPage is the served page plus the state that produced it. Sort and
// page index are the effective values after defaulting and clamping, so
// handlers can echo them back to the client.
type DatasetPage struct {
	Dataset   string
	Page      resultset.Page[resultset.Record]
	Sort      resultset.SortState
	Filters   resultset.FilterState
	FetchedAt time.Time
}

// RowsRequest identifies one dataset's full filtered collection.
type RowsRequest struct {
	Dataset string
	Filters resultset.FilterState
	Sort    resultset.SortState
}

// DatasetRows is the complete filtered and sorted collection, used by
// exports. Columns carry the dataset's export layout.
type DatasetRows struct {
	Dataset   string
	Title     string
	Columns   []resultset.Column
	Records   []resultset.Record
	FetchedAt time.Time
}

// Visible returns the datasets the session's role may browse, in catalog
// order.
func (s *DatasetService) Visible(sess auth.Session) []*catalog.Dataset {
	return s.catalog.VisibleDatasets(sess.Role)
}

// Page serves one page of a dataset for the session.
func (s *DatasetService) Page(ctx context.Context, sess auth.Session, req PageRequest) (*DatasetPage, error) {
	d, err := s.resolve(req.Dataset, sess.Role)
	if err != nil {
		return nil, err
	}
	view, err := normalizeView(d, req.View)
	if err != nil {
		return nil, err
	}

	snap, err := s.snapshot(ctx, d)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	page := d.Processor().Process(snap.Records, view)
	s.emitPipeline(d.Key, time.Since(start), len(snap.Records), page.TotalCount)

	return &DatasetPage{
		Dataset:   d.Key,
		Page:      page,
		Sort:      view.Sort,
		Filters:   view.Filters,
		FetchedAt: snap.FetchedAt,
	}, nil
}

// Rows returns the full filtered and sorted collection for the session,
// without pagination.
func (s *DatasetService) Rows(ctx context.Context, sess auth.Session, req RowsRequest) (*DatasetRows, error) {
	d, err := s.resolve(req.Dataset, sess.Role)
	if err != nil {
		return nil, err
	}
	view, err := normalizeView(d, resultset.ViewState{Filters: req.Filters, Sort: req.Sort})
	if err != nil {
		return nil, err
	}

	snap, err := s.snapshot(ctx, d)
	if err != nil {
		return nil, err
	}

	filtered := d.Processor().ApplyFilters(snap.Records, view.Filters)
	sorted := resultset.ApplySort(filtered, view.Sort)

	return &DatasetRows{
		Dataset:   d.Key,
		Title:     d.Title,
		Columns:   d.ExportColumns,
		Records:   sorted,
		FetchedAt: snap.FetchedAt,
	}, nil
}

// Refresh fetches a dataset's collection and replaces its cached snapshot,
// bypassing any cached copy. The refresher uses this to keep hot datasets
// warm. Returns the number of records in the fresh snapshot.
func (s *DatasetService) Refresh(ctx context.Context, key string) (int, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return 0, apperrors.Validation("dataset key is required")
	}
	d, ok := s.catalog.Dataset(key)
	if !ok {
		return 0, apperrors.NotFoundf("unknown dataset %q", key)
	}

	start := time.Now()
	records, err := s.fetch(ctx, d)
	elapsed := time.Since(start)
	if err != nil {
		s.emitSnapshot(d, "", elapsed, err)
		return 0, err
	}
	projected, err := d.Project(records)
	if err != nil {
		return 0, err
	}
	s.emitSnapshot(d, "", elapsed, nil)

	if s.cacheable(d) {
		snap := core.Snapshot{Dataset: d.Key, FetchedAt: time.Now().UTC(), Records: projected}
		if err := s.snapshots.Store(ctx, snap); err != nil {
			return 0, fmt.Errorf("store snapshot for %s: %w", d.Key, err)
		}
	}
	return len(projected), nil
}

// resolve looks up a dataset and enforces its minimum role.
func (s *DatasetService) resolve(key string, role auth.Role) (*catalog.Dataset, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, apperrors.Validation("dataset key is required")
	}
	d, ok := s.catalog.Dataset(key)
	if !ok {
		return nil, apperrors.NotFoundf("unknown dataset %q", key)
	}
	if !d.VisibleTo(role) {
		return nil, apperrors.Forbiddenf("dataset %q requires the %s role", d.Key, d.MinRole)
	}
	return d, nil
}

// normalizeView fills dataset defaults into a requested view and vets the
// sort field against the dataset's whitelist.
func normalizeView(d *catalog.Dataset, view resultset.ViewState) (resultset.ViewState, error) {
	if view.Sort.Field == "" {
		view.Sort = d.DefaultSort
	} else if !d.SortAllowed(view.Sort.Field) {
		return view, apperrors.InvalidInputf("dataset %q cannot sort by %q", d.Key, view.Sort.Field)
	}
	return view, nil
}

// snapshot returns the collection to serve this request from. Ledger
// datasets come from the snapshot cache when possible; the audit trail is
// always read fresh. A cache outage degrades to a direct fetch.
func (s *DatasetService) snapshot(ctx context.Context, d *catalog.Dataset) (*core.Snapshot, error) {
	cacheTag := ""
	if s.cacheable(d) {
		snap, err := s.snapshots.Load(ctx, d.Key)
		switch {
		case err != nil:
			s.warn(ctx, "snapshot cache read failed", "dataset", d.Key, "error", err)
		case snap != nil:
			s.emitSnapshot(d, metrics.CacheHit, 0, nil)
			return snap, nil
		}
		cacheTag = metrics.CacheMiss
	}

	start := time.Now()
	records, err := s.fetch(ctx, d)
	elapsed := time.Since(start)
	if err != nil {
		s.emitSnapshot(d, cacheTag, elapsed, err)
		return nil, err
	}

	projected, err := d.Project(records)
	if err != nil {
		return nil, err
	}
	s.emitSnapshot(d, cacheTag, elapsed, nil)

	snap := core.Snapshot{Dataset: d.Key, FetchedAt: time.Now().UTC(), Records: projected}
	if s.cacheable(d) {
		if err := s.snapshots.Store(ctx, snap); err != nil {
			s.warn(ctx, "snapshot cache write failed", "dataset", d.Key, "error", err)
		}
	}
	return &snap, nil
}

func (s *DatasetService) cacheable(d *catalog.Dataset) bool {
	return d.Source == catalog.SourceLedger && s.snapshots != nil
}

// fetch pulls the raw collection from the dataset's source of record.
func (s *DatasetService) fetch(ctx context.Context, d *catalog.Dataset) ([]resultset.Record, error) {
	switch d.Source {
	case catalog.SourceExports:
		return s.exportCollection(ctx)
	default:
		if s.ledger == nil {
			return nil, apperrors.Internalf("dataset %q has no upstream source configured", d.Key)
		}
		return s.ledger.FetchCollection(ctx, d.Path)
	}
}

// exportCollection adapts the audit trail into a browsable collection.
func (s *DatasetService) exportCollection(ctx context.Context) ([]resultset.Record, error) {
	if s.exports == nil {
		return nil, apperrors.Internal("export audit store is not configured")
	}
	rows, err := s.exports.List(ctx, model.ExportListOptions{Limit: exportCollectionLimit})
	if err != nil {
		return nil, fmt.Errorf("list export audit rows: %w", err)
	}

	records := make([]resultset.Record, len(rows))
	for i, row := range rows {
		records[i] = row.ResultRecord()
	}
	return records, nil
}

func (s *DatasetService) emitSnapshot(d *catalog.Dataset, cacheTag string, elapsed time.Duration, err error) {
	metrics.EmitSnapshotLoad(s.metrics, metrics.SnapshotMetric{
		Dataset:  d.Key,
		Source:   string(d.Source),
		Cache:    cacheTag,
		Duration: elapsed,
		Err:      err,
	})
}

func (s *DatasetService) emitPipeline(dataset string, elapsed time.Duration, rowsIn, rowsOut int) {
	if s.metrics == nil {
		return
	}
	tags := map[string]string{"dataset": dataset}
	s.metrics.Timing("pipeline.duration", elapsed, tags)
	s.metrics.Count("pipeline.rows_in", int64(rowsIn), metrics.CloneTags(tags))
	s.metrics.Count("pipeline.rows_out", int64(rowsOut), metrics.CloneTags(tags))
}

func (s *DatasetService) warn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
