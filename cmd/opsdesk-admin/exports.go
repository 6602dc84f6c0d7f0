package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/meridianbank/opsdesk/internal/data"
	"github.com/meridianbank/opsdesk/internal/data/database"
	"github.com/meridianbank/opsdesk/internal/domain/model"
)

type listExportsOptions struct {
	UserID  string
	Dataset string
	Limit   int
	Offset  int
}

type pruneExportsOptions struct {
	OlderThan time.Duration
	DryRun    bool
	Yes       bool
}

func runListExports(cmdCtx *commandContext, args []string) error {
	opts, err := parseListExportsFlags(args)
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

	repo := data.NewExportRepo(conns.DB)
	listOpts := model.ExportListOptions{
		Dataset: opts.Dataset,
		UserID:  opts.UserID,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	}
	records, err := repo.List(ctx, listOpts)
	if err != nil {
		return fmt.Errorf("list export audit rows: %w", err)
	}
	total, err := repo.Count(ctx, listOpts)
	if err != nil {
		return fmt.Errorf("count export audit rows: %w", err)
	}

	return printExportRows(records, total, &opts)
}

func runPruneExports(cmdCtx *commandContext, args []string) error {
	opts, err := parsePruneExportsFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirmAction(exportPruneConfirmOptions{opts}, "prune export audit rows"); confirmErr != nil {
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

	if opts.DryRun {
		return printExportPruneDryRun(ctx, conns, opts)
	}

	deleted, err := data.NewExportRepo(conns.DB).DeleteOlderThan(ctx, opts.OlderThan)
	if err != nil {
		return fmt.Errorf("prune export audit rows: %w", err)
	}

	cmdCtx.Logger.Info("prune exports complete", "rows_deleted", deleted, "older_than", opts.OlderThan.String())
	return nil
}

func printExportPruneDryRun(ctx context.Context, conns *adminConnections, opts pruneExportsOptions) error {
	cutoff := time.Now().UTC().Add(-opts.OlderThan)
	countQuery, countArgs := database.BuildListQuery(
		database.NewListQueryOptions(
			"export_audit",
			database.WithCondition(database.WhereCond("created_at", database.LessThan, cutoff)),
			database.WithCountOnly(),
		),
	)
	var matched int64
	if err := conns.DB.QueryRowContext(ctx, countQuery, countArgs...).Scan(&matched); err != nil {
		return fmt.Errorf("count prunable export audit rows: %w", err)
	}

	if err := writef(
		os.Stdout,
		"Dry-run: would delete %d export audit rows older than %s (created before %s)\n",
		matched,
		opts.OlderThan,
		cutoff.Format(time.RFC3339),
	); err != nil {
		return fmt.Errorf("print prune dry-run summary: %w", err)
	}
	return nil
}

func parseListExportsFlags(args []string) (listExportsOptions, error) {
	fs := flag.NewFlagSet("list-exports", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listExportsOptions
	fs.StringVar(&opts.UserID, "user", "", "Filter by exporting user ID")
	fs.StringVar(&opts.Dataset, "dataset", "", "Filter by dataset key")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum rows to display")
	fs.IntVar(&opts.Offset, "offset", 0, "Offset for query results")

	if err := fs.Parse(args); err != nil {
		return listExportsOptions{}, err
	}

	opts.UserID = strings.TrimSpace(opts.UserID)
	opts.Dataset = strings.TrimSpace(opts.Dataset)
	if opts.Limit <= 0 {
		return listExportsOptions{}, errors.New("--limit must be > 0")
	}
	if opts.Offset < 0 {
		return listExportsOptions{}, errors.New("--offset must be >= 0")
	}

	return opts, nil
}

func parsePruneExportsFlags(args []string) (pruneExportsOptions, error) {
	fs := flag.NewFlagSet("prune-exports", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts pruneExportsOptions
	fs.DurationVar(&opts.OlderThan, "older-than", 0, "Delete audit rows older than this duration, e.g. 2160h for 90 days (required)")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return pruneExportsOptions{}, err
	}

	if opts.OlderThan <= 0 {
		return pruneExportsOptions{}, errors.New("--older-than must be a positive duration")
	}

	return opts, nil
}

type exportPruneConfirmOptions struct {
	opts pruneExportsOptions
}

func (e exportPruneConfirmOptions) IsDryRun() bool { return e.opts.DryRun }
func (e exportPruneConfirmOptions) IsYes() bool    { return e.opts.Yes }
func (e exportPruneConfirmOptions) GetWarning() string {
	return "WARNING: pruned audit rows cannot be recovered."
}

func (e exportPruneConfirmOptions) GetTarget() string {
	return fmt.Sprintf("rows older than %s", e.opts.OlderThan)
}

func printExportRows(records []*model.ExportRecord, total int, opts *listExportsOptions) error {
	if opts == nil {
		return errors.New("list options are required")
	}
	if err := writef(os.Stdout, "\nExport audit rows (limit %d, offset %d)\n", opts.Limit, opts.Offset); err != nil {
		return fmt.Errorf("write export audit header: %w", err)
	}

	if len(records) == 0 {
		if err := writeln(os.Stdout, "  (no rows found)"); err != nil {
			return fmt.Errorf("write export audit empty message: %w", err)
		}
		return nil
	}

	if err := renderExportTable(records); err != nil {
		return err
	}

	if err := writef(os.Stdout, "Total matching rows: %d\n", total); err != nil {
		return fmt.Errorf("write export audit total: %w", err)
	}
	if len(records) == opts.Limit && opts.Offset+opts.Limit < total {
		if err := writeln(os.Stdout, "More rows available; adjust --offset or --limit to view additional data."); err != nil {
			return fmt.Errorf("write export audit more-rows message: %w", err)
		}
	}
	return nil
}

func renderExportTable(records []*model.ExportRecord) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "ID\tUSER\tDATASET\tFORMAT\tROWS\tFILTERS\tCREATED (UTC)"); err != nil {
		return fmt.Errorf("write export audit header row: %w", err)
	}

	for _, record := range records {
		filters := record.FilterSummary()
		if filters == "" {
			filters = "-"
		}
		if err := writef(
			tw,
			"%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			record.ID,
			record.UserID,
			record.Dataset,
			record.Format,
			record.RowCount,
			filters,
			formatTimestamp(record.CreatedAt),
		); err != nil {
			return fmt.Errorf("write export audit row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush export audit table: %w", err)
	}
	return nil
}
