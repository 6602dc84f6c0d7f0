package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/meridianbank/opsdesk/internal/data"
	"github.com/meridianbank/opsdesk/internal/data/database"
	"github.com/meridianbank/opsdesk/internal/domain/model"
)

type listViewsOptions struct {
	UserID  string
	Dataset string
	Name    string
	Limit   int
	Offset  int
}

type renameViewOptions struct {
	ID   string
	Name string
}

type deleteViewsOptions struct {
	ID      string
	UserID  string
	Dataset string
	All     bool
	DryRun  bool
	Yes     bool
}

func runListViews(cmdCtx *commandContext, args []string) error {
	opts, err := parseListViewsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	conns, err := connectInfra(&connectInfraOptions{
		Logger: cmdCtx.Logger,
		Config: &cmdCtx.Config,
		WantDB: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	resp, err := querySavedViewRows(&querySavedViewsRequest{
		Ctx:     ctx,
		DB:      conns.DB,
		Logger:  cmdCtx.Logger,
		Options: &opts,
	})
	if err != nil {
		return err
	}

	return printSavedViewRows(resp, &opts)
}

func runRenameView(cmdCtx *commandContext, args []string) error {
	opts, err := parseRenameViewFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, time.Minute)
	defer cancel()

	conns, err := connectInfra(&connectInfraOptions{
		Logger: cmdCtx.Logger,
		Config: &cmdCtx.Config,
		WantDB: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	repo := data.NewSavedViewRepo(conns.DB)
	name := opts.Name
	view, err := repo.Update(ctx, opts.ID, model.UpdateSavedViewRequest{Name: &name})
	if err != nil {
		switch {
		case errors.Is(err, data.ErrViewNotFound):
			return fmt.Errorf("saved view %q not found", opts.ID)
		case errors.Is(err, data.ErrViewNameExists):
			return fmt.Errorf("a view named %q already exists for that user and dataset", opts.Name)
		default:
			return fmt.Errorf("rename saved view: %w", err)
		}
	}

	if printErr := writef(
		os.Stdout,
		"Renamed view %s to %q (user %s, dataset %s)\n",
		view.ID,
		view.Name,
		view.UserID,
		view.Dataset,
	); printErr != nil {
		return fmt.Errorf("print rename summary: %w", printErr)
	}
	return nil
}

func runDeleteViews(cmdCtx *commandContext, args []string) error {
	opts, err := parseDeleteViewsFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirmAction(viewDeleteConfirmOptions{opts}, "delete saved views"); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	conns, err := connectInfra(&connectInfraOptions{
		Logger: cmdCtx.Logger,
		Config: &cmdCtx.Config,
		WantDB: true,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	rows, err := deleteSavedViewRows(&deleteSavedViewsRequest{
		Ctx:     ctx,
		DB:      conns.DB,
		Logger:  cmdCtx.Logger,
		Options: opts,
	})
	if err != nil {
		return err
	}

	cmdCtx.Logger.Info("delete saved views complete", "rows_deleted", rows)
	return nil
}

func parseListViewsFlags(args []string) (listViewsOptions, error) {
	fs := flag.NewFlagSet("list-views", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listViewsOptions
	fs.StringVar(&opts.UserID, "user", "", "Filter by owning user ID (comma-separated for several)")
	fs.StringVar(&opts.Dataset, "dataset", "", "Filter by dataset key")
	fs.StringVar(&opts.Name, "name", "", "Filter by name substring (case-insensitive)")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum rows to display (0 for unlimited)")
	fs.IntVar(&opts.Offset, "offset", 0, "Offset for query results")

	if err := fs.Parse(args); err != nil {
		return listViewsOptions{}, err
	}

	opts.UserID = strings.TrimSpace(opts.UserID)
	opts.Dataset = strings.TrimSpace(opts.Dataset)
	opts.Name = strings.TrimSpace(opts.Name)
	if opts.Limit < 0 {
		return listViewsOptions{}, errors.New("--limit must be >= 0")
	}
	if opts.Offset < 0 {
		return listViewsOptions{}, errors.New("--offset must be >= 0")
	}

	return opts, nil
}

func parseRenameViewFlags(args []string) (renameViewOptions, error) {
	fs := flag.NewFlagSet("rename-view", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts renameViewOptions
	fs.StringVar(&opts.ID, "id", "", "Saved view ID to rename (required)")
	fs.StringVar(&opts.Name, "name", "", "New view name (required)")

	if err := fs.Parse(args); err != nil {
		return renameViewOptions{}, err
	}

	opts.ID = strings.TrimSpace(opts.ID)
	opts.Name = strings.TrimSpace(opts.Name)
	if opts.ID == "" {
		return renameViewOptions{}, errors.New("--id is required")
	}
	if opts.Name == "" {
		return renameViewOptions{}, errors.New("--name is required")
	}

	return opts, nil
}

func parseDeleteViewsFlags(args []string) (deleteViewsOptions, error) {
	fs := flag.NewFlagSet("delete-views", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts deleteViewsOptions
	fs.StringVar(&opts.ID, "id", "", "Saved view ID to delete (mutually exclusive with --user)")
	fs.StringVar(&opts.UserID, "user", "", "Delete all views owned by this user")
	fs.StringVar(&opts.Dataset, "dataset", "", "Optional dataset filter (requires --user)")
	fs.BoolVar(&opts.All, "all", false, "Delete saved views for all users")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return deleteViewsOptions{}, err
	}

	opts.ID = strings.TrimSpace(opts.ID)
	opts.UserID = strings.TrimSpace(opts.UserID)
	opts.Dataset = strings.TrimSpace(opts.Dataset)
	if err := validateDeleteViewsOptions(opts); err != nil {
		return deleteViewsOptions{}, err
	}

	return opts, nil
}

func validateDeleteViewsOptions(opts deleteViewsOptions) error {
	if opts.All {
		if opts.ID != "" || opts.UserID != "" || opts.Dataset != "" {
			return errors.New("--all cannot be combined with id, user, or dataset filters")
		}
		return nil
	}
	if opts.ID != "" {
		if opts.UserID != "" || opts.Dataset != "" {
			return errors.New("--id cannot be combined with --user or --dataset")
		}
		return nil
	}
	if opts.UserID == "" {
		return errors.New("--id or --user is required unless --all is provided")
	}
	return nil
}

type viewDeleteConfirmOptions struct {
	opts deleteViewsOptions
}

func (v viewDeleteConfirmOptions) IsDryRun() bool { return v.opts.DryRun }
func (v viewDeleteConfirmOptions) IsYes() bool    { return v.opts.Yes }
func (v viewDeleteConfirmOptions) GetWarning() string {
	return "WARNING: this will remove every saved view for every user."
}

func (v viewDeleteConfirmOptions) GetTarget() string {
	if v.opts.All {
		return ""
	}
	if v.opts.ID != "" {
		return fmt.Sprintf("view %q", v.opts.ID)
	}
	target := fmt.Sprintf("user %q", v.opts.UserID)
	if v.opts.Dataset != "" {
		target += fmt.Sprintf(", dataset %q", v.opts.Dataset)
	}
	return target
}

type deleteSavedViewsRequest struct {
	Ctx     context.Context
	DB      *sql.DB
	Logger  *slog.Logger
	Options deleteViewsOptions
}

func deleteSavedViewRows(req *deleteSavedViewsRequest) (int64, error) {
	if req == nil {
		return 0, errors.New("delete request is required")
	}
	where := make([]string, 0, 2)
	args := make([]any, 0, 2)

	switch {
	case req.Options.All:
		// no filters; delete everything
	case req.Options.ID != "":
		where = append(where, fmt.Sprintf("id = $%d", len(args)+1))
		args = append(args, req.Options.ID)
	default:
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, req.Options.UserID)
		if req.Options.Dataset != "" {
			where = append(where, fmt.Sprintf("dataset = $%d", len(args)+1))
			args = append(args, req.Options.Dataset)
		}
	}

	query := "DELETE FROM saved_views"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	req.Logger.Info("executing", "query", query, "args", args, "dry_run", req.Options.DryRun)

	if req.Options.DryRun {
		return 0, nil
	}

	res, err := req.DB.ExecContext(req.Ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("delete saved views: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("saved views rows affected: %w", err)
	}
	return rows, nil
}

type querySavedViewsRequest struct {
	Ctx     context.Context
	DB      *sql.DB
	Logger  *slog.Logger
	Options *listViewsOptions
}

type savedViewRow struct {
	ID        string
	UserID    string
	Dataset   string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type querySavedViewsResponse struct {
	Rows  []savedViewRow
	Total int64
}

func querySavedViewRows(req *querySavedViewsRequest) (querySavedViewsResponse, error) {
	if req == nil || req.Options == nil {
		return querySavedViewsResponse{}, nil
	}
	conditions := buildViewConditions(req.Options)

	countOpts := []database.ListQueryOption{
		database.WithConditions(conditions...),
		database.WithCountOnly(),
	}
	countQuery, countArgs := database.BuildListQuery(
		database.NewListQueryOptions("saved_views", countOpts...),
	)
	var total int64
	if err := req.DB.QueryRowContext(req.Ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return querySavedViewsResponse{}, fmt.Errorf("count saved views: %w", err)
	}

	listColumns := []string{"id", "user_id", "dataset", "name", "created_at", "updated_at"}
	listOpts := []database.ListQueryOption{
		database.WithColumns(listColumns...),
		database.WithConditions(conditions...),
		database.WithOrderBy("updated_at", "DESC"),
	}
	if req.Options.Limit > 0 {
		listOpts = append(listOpts, database.WithLimit(req.Options.Limit))
	}
	if req.Options.Offset > 0 {
		listOpts = append(listOpts, database.WithOffset(req.Options.Offset))
	}
	selectQuery, selectArgs := database.BuildListQuery(
		database.NewListQueryOptions("saved_views", listOpts...),
	)

	req.Logger.Debug("querying saved views", "query", selectQuery, "args", selectArgs)

	rows, err := req.DB.QueryContext(req.Ctx, selectQuery, selectArgs...)
	if err != nil {
		return querySavedViewsResponse{}, fmt.Errorf("list saved views: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil && req.Logger != nil {
			req.Logger.Warn("close saved view rows failed", "error", closeErr)
		}
	}()

	out := make([]savedViewRow, 0)
	for rows.Next() {
		var row savedViewRow
		if scanErr := rows.Scan(&row.ID, &row.UserID, &row.Dataset, &row.Name, &row.CreatedAt, &row.UpdatedAt); scanErr != nil {
			return querySavedViewsResponse{}, fmt.Errorf("scan saved view row: %w", scanErr)
		}
		out = append(out, row)
	}
	if iterErr := rows.Err(); iterErr != nil {
		return querySavedViewsResponse{}, fmt.Errorf("list saved views rows: %w", iterErr)
	}

	return querySavedViewsResponse{Rows: out, Total: total}, nil
}

func buildViewConditions(opts *listViewsOptions) []database.Condition {
	if opts == nil {
		return nil
	}
	conditions := make([]database.Condition, 0, 3)
	if users := splitUserFilter(opts.UserID); len(users) == 1 {
		conditions = append(conditions, database.WhereCond("user_id", database.Equal, users[0]))
	} else if len(users) > 1 {
		conditions = append(conditions, database.WhereCond("user_id", database.In, users))
	}
	if opts.Dataset != "" {
		conditions = append(conditions, database.WhereCond("dataset", database.Equal, opts.Dataset))
	}
	if opts.Name != "" {
		conditions = append(conditions, database.WhereCond("name", database.ILike, "%"+opts.Name+"%"))
	}
	return conditions
}

// splitUserFilter turns the --user flag value into a list of user IDs,
// trimming whitespace and dropping empty entries.
func splitUserFilter(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	users := make([]string, 0, len(parts))
	for _, part := range parts {
		if id := strings.TrimSpace(part); id != "" {
			users = append(users, id)
		}
	}
	return users
}

func printSavedViewRows(resp querySavedViewsResponse, opts *listViewsOptions) error {
	if opts == nil {
		return errors.New("list options are required")
	}
	displayLimit := max(opts.Limit, 0)
	if err := writef(os.Stdout, "\nSaved views"); err != nil {
		return fmt.Errorf("write saved views header: %w", err)
	}
	if err := writeSavedViewsHeaderInfo(displayLimit, opts.Offset); err != nil {
		return err
	}
	if err := writeln(os.Stdout); err != nil {
		return fmt.Errorf("write saved views header newline: %w", err)
	}

	if len(resp.Rows) == 0 {
		return printSavedViewsEmpty()
	}

	if err := renderSavedViewTable(resp.Rows); err != nil {
		return err
	}

	if err := writef(os.Stdout, "Total matching rows: %d\n", resp.Total); err != nil {
		return fmt.Errorf("write saved views total: %w", err)
	}
	if opts.Limit > 0 && len(resp.Rows) == opts.Limit && int64(opts.Offset+opts.Limit) < resp.Total {
		if err := writeln(os.Stdout, "More rows available; adjust --offset or --limit to view additional data."); err != nil {
			return fmt.Errorf("write saved views more-rows message: %w", err)
		}
	}
	return nil
}

func writeSavedViewsHeaderInfo(limit, offset int) error {
	switch {
	case limit > 0:
		if err := writef(os.Stdout, " (limit %d, offset %d)", limit, offset); err != nil {
			return fmt.Errorf("write saved views limit: %w", err)
		}
	case offset > 0:
		if err := writef(os.Stdout, " (offset %d)", offset); err != nil {
			return fmt.Errorf("write saved views offset: %w", err)
		}
	}
	return nil
}

func printSavedViewsEmpty() error {
	if err := writeln(os.Stdout, "  (no rows found)"); err != nil {
		return fmt.Errorf("write saved views empty message: %w", err)
	}
	return nil
}

func renderSavedViewTable(rows []savedViewRow) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tUSER\tDATASET\tNAME\tUPDATED (UTC)"); err != nil {
		return fmt.Errorf("write saved views header row: %w", err)
	}

	for _, row := range rows {
		if err := writef(
			tw,
			"%s\t%s\t%s\t%s\t%s\n",
			row.ID,
			row.UserID,
			row.Dataset,
			row.Name,
			formatTimestamp(row.UpdatedAt),
		); err != nil {
			return fmt.Errorf("write saved views row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush saved views table: %w", err)
	}
	return nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}
