package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/meridianbank/opsdesk/internal/core"
	"github.com/meridianbank/opsdesk/internal/data/database"
	"github.com/meridianbank/opsdesk/internal/data/pgxutil"
	"github.com/meridianbank/opsdesk/internal/domain/model"
	apperrors "github.com/meridianbank/opsdesk/internal/errors"
)

// ExportRepo provides database operations for the export audit trail.
// Rows are written once per export and never updated.
type ExportRepo struct {
	DB    *sql.DB
	clock Clock
}

var _ core.ExportRepository = (*ExportRepo)(nil)

// NewExportRepo creates an ExportRepo on the system clock.
func NewExportRepo(db *sql.DB) *ExportRepo {
	return &ExportRepo{DB: db, clock: systemClock{}}
}

// NewExportRepoWithClock lets tests pin audit timestamps.
func NewExportRepoWithClock(db *sql.DB, clock Clock) *ExportRepo {
	return &ExportRepo{DB: db, clock: clock}
}

// Create inserts one audit row for a completed export. The caller supplies the
// ULID so the response and the audit trail agree on the export's identity.
func (r *ExportRepo) Create(
	ctx context.Context,
	req *model.CreateExportRecordRequest,
) (*model.ExportRecord, error) {
	if req == nil {
		return nil, errors.New("create export record request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	filters := req.Filters
	if filters == nil {
		filters = map[string]string{}
	}

	var out model.ExportRecord
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO export_audit (
				id, user_id, dataset, format, row_count, filters, created_at
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7
			) RETURNING id, user_id, dataset, format, row_count, filters, created_at
		`,
			strings.TrimSpace(req.ID),
			strings.TrimSpace(req.UserID),
			strings.TrimSpace(req.Dataset),
			req.Format,
			req.RowCount,
			filters,
			r.clock.Now().UTC(),
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ExportRecord])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves an export record by ID.
func (r *ExportRepo) GetByID(ctx context.Context, id string) (*model.ExportRecord, error) {
	var rec model.ExportRecord
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, exportGetByIDQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		rec, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.ExportRecord])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExportNotFound
		}
		return nil, fmt.Errorf("failed to get export record by ID: %w", err)
	}
	return &rec, nil
}

// List retrieves export records, newest first, with pagination and optional
// dataset and user filters.
func (r *ExportRepo) List(
	ctx context.Context,
	opts model.ExportListOptions,
) ([]*model.ExportRecord, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := max(opts.Offset, 0)

	queryOpts := []database.ListQueryOption{
		database.WithColumns(exportColumns()...),
		database.WithConditions(exportConditions(opts)...),
		// IDs are ULIDs, so ordering by ID is ordering by creation time.
		database.WithOrderBy("id", "DESC"),
		database.WithLimit(limit),
		database.WithOffset(offset),
	}
	query, args := database.BuildListQuery(database.NewListQueryOptions("export_audit", queryOpts...))

	var rowsOut []model.ExportRecord
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.ExportRecord])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list export records: %w", err)
	}

	res := make([]*model.ExportRecord, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Count returns the number of export records matching the same filters List uses.
func (r *ExportRepo) Count(ctx context.Context, opts model.ExportListOptions) (int, error) {
	queryOpts := []database.ListQueryOption{
		database.WithCountOnly(),
		database.WithConditions(exportConditions(opts)...),
	}
	query, args := database.BuildListQuery(database.NewListQueryOptions("export_audit", queryOpts...))

	var count int
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, query, args...).Scan(&count)
	}); err != nil {
		return 0, fmt.Errorf("failed to count export records: %w", err)
	}
	return count, nil
}

// DeleteOlderThan removes audit rows older than maxAge and returns the number deleted.
func (r *ExportRepo) DeleteOlderThan(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, errors.New("max age must be positive")
	}

	cutoff := r.clock.Now().UTC().Add(-maxAge)
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM export_audit WHERE created_at < $1`, cutoff)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete old export records: %w", err)
	}
	return rows, nil
}

// --- helpers ---

const exportGetByIDQuery = `
	SELECT id, user_id, dataset, format, row_count, filters, created_at
	FROM export_audit
	WHERE id = $1`

// exportColumns returns the standard column list for export audit queries.
func exportColumns() []string {
	return []string{
		"id",
		"user_id",
		"dataset",
		"format",
		"row_count",
		"filters",
		"created_at",
	}
}

// exportConditions builds the WHERE conditions shared by List and Count.
func exportConditions(opts model.ExportListOptions) []database.Condition {
	conds := make([]database.Condition, 0, 2)
	if dataset := strings.TrimSpace(opts.Dataset); dataset != "" {
		conds = append(conds, database.WhereCond("dataset", database.Equal, dataset))
	}
	if userID := strings.TrimSpace(opts.UserID); userID != "" {
		conds = append(conds, database.WhereCond("user_id", database.Equal, userID))
	}
	return conds
}
