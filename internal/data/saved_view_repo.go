package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/meridianbank/opsdesk/internal/core"
	"github.com/meridianbank/opsdesk/internal/data/database"
	"github.com/meridianbank/opsdesk/internal/data/pgxutil"
	"github.com/meridianbank/opsdesk/internal/domain/model"
	apperrors "github.com/meridianbank/opsdesk/internal/errors"
)

// SavedViewRepo provides database operations for saved views.
type SavedViewRepo struct {
	DB    *sql.DB
	clock Clock
}

var _ core.SavedViewRepository = (*SavedViewRepo)(nil)

// NewSavedViewRepo creates a new SavedViewRepo on the system clock.
func NewSavedViewRepo(db *sql.DB) *SavedViewRepo {
	return &SavedViewRepo{DB: db, clock: systemClock{}}
}

// NewSavedViewRepoWithClock lets tests pin row timestamps.
func NewSavedViewRepoWithClock(db *sql.DB, clock Clock) *SavedViewRepo {
	return &SavedViewRepo{DB: db, clock: clock}
}

// Create inserts a new saved view. A user may keep several views per dataset,
// but names are unique within that pair.
func (r *SavedViewRepo) Create(
	ctx context.Context,
	req *model.CreateSavedViewRequest,
) (*model.SavedView, error) {
	if req == nil {
		return nil, errors.New("create saved view request is required")
	}

	if err := req.Validate(); err != nil {
		return nil, err
	}

	createdAt := r.clock.Now().UTC()
	var out model.SavedView
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `
			INSERT INTO saved_views (
				user_id, dataset, name, state, created_at, updated_at
			) VALUES (
				$1, $2, $3, $4, $5, $5
			) RETURNING id, user_id, dataset, name, state, created_at, updated_at
		`,
			strings.TrimSpace(req.UserID),
			strings.TrimSpace(req.Dataset),
			req.Name,
			req.State,
			createdAt,
		)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.SavedView])
		return err
	}); err != nil {
		return nil, r.mapWriteErr(err, false)
	}
	return &out, nil
}

// GetByID retrieves a saved view by ID.
func (r *SavedViewRepo) GetByID(ctx context.Context, id string) (*model.SavedView, error) {
	var view model.SavedView
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, savedViewGetByIDQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		view, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.SavedView])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrViewNotFound
		}
		return nil, fmt.Errorf("failed to get saved view by ID: %w", err)
	}
	return &view, nil
}

// List retrieves the views a user has saved, name-ascending. Dataset narrows
// the listing to one dataset when set.
func (r *SavedViewRepo) List(
	ctx context.Context,
	opts model.SavedViewListOptions,
) ([]*model.SavedView, error) {
	userID := strings.TrimSpace(opts.UserID)
	if userID == "" {
		return nil, errors.New("user_id is required")
	}

	queryOpts := []database.ListQueryOption{
		database.WithColumns(savedViewColumns()...),
		database.WithCondition(database.WhereCond("user_id", database.Equal, userID)),
		database.WithOrderBy("name", "ASC"),
	}
	if dataset := strings.TrimSpace(opts.Dataset); dataset != "" {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("dataset", database.Equal, dataset),
		))
	}
	query, args := database.BuildListQuery(database.NewListQueryOptions("saved_views", queryOpts...))

	var rowsOut []model.SavedView
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		rowsOut, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.SavedView])
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to list saved views: %w", err)
	}

	res := make([]*model.SavedView, len(rowsOut))
	for i := range rowsOut {
		res[i] = &rowsOut[i]
	}
	return res, nil
}

// Update updates fields of a saved view and bumps updated_at.
func (r *SavedViewRepo) Update(
	ctx context.Context,
	id string,
	req model.UpdateSavedViewRequest,
) (*model.SavedView, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var out model.SavedView
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		setClause, args := r.buildUpdateClause(req)
		args = append(args, id)
		query := "UPDATE saved_views SET " + setClause + " WHERE id = $" + strconv.Itoa(
			len(args),
		) + " RETURNING id, user_id, dataset, name, state, created_at, updated_at"
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		var e error
		out, e = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.SavedView])
		return e
	})
	if err != nil {
		return nil, r.mapWriteErr(err, true)
	}
	return &out, nil
}

// buildUpdateClause builds the SQL SET clause and args for updating a saved view.
// Validate has already rejected empty requests, so the clause is never empty.
func (r *SavedViewRepo) buildUpdateClause(req model.UpdateSavedViewRequest) (string, []any) {
	setParts := make([]string, 0, 3)
	args := make([]any, 0, 3)
	nextIdx := func() int { return len(args) + 1 }

	if req.Name != nil {
		setParts = append(setParts, fmt.Sprintf("name = $%d", nextIdx()))
		args = append(args, strings.TrimSpace(*req.Name))
	}
	if req.State != nil {
		setParts = append(setParts, fmt.Sprintf("state = $%d", nextIdx()))
		args = append(args, *req.State)
	}

	setParts = append(setParts, fmt.Sprintf("updated_at = $%d", nextIdx()))
	args = append(args, r.clock.Now().UTC())

	return strings.Join(setParts, ", "), args
}

// Delete deletes a saved view by ID.
func (r *SavedViewRepo) Delete(ctx context.Context, id string) (bool, error) {
	var rows int64
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		ct, err := conn.Exec(ctx, `DELETE FROM saved_views WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows = ct.RowsAffected()
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete saved view: %w", err)
	}
	return rows > 0, nil
}

// --- helpers ---

const savedViewGetByIDQuery = `
	SELECT id, user_id, dataset, name, state, created_at, updated_at
	FROM saved_views
	WHERE id = $1`

// savedViewColumns returns the standard column list for saved view queries.
func savedViewColumns() []string {
	return []string{
		"id",
		"user_id",
		"dataset",
		"name",
		"state",
		"created_at",
		"updated_at",
	}
}

func (r *SavedViewRepo) mapWriteErr(err error, includeNotFound bool) error {
	if err == nil {
		return nil
	}
	if includeNotFound && errors.Is(err, pgx.ErrNoRows) {
		return ErrViewNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrViewNameExists
	}
	return apperrors.MapDBError(err)
}
