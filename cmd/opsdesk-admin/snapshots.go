package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridianbank/opsdesk/internal/catalog"
	"github.com/meridianbank/opsdesk/internal/core"
)

// Key layout owned by core.SnapshotCacheService.
const snapshotKeyPrefix = "snapshot:"

type listSnapshotsOptions struct {
	Dataset string
}

type purgeSnapshotsOptions struct {
	Dataset string
	All     bool
	DryRun  bool
	Yes     bool
}

func runListSnapshots(cmdCtx *commandContext, args []string) error {
	opts, err := parseListSnapshotsFlags(args)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	cat, err := catalog.Load(cmdCtx.Config.Catalog.Path)
	if err != nil {
		return fmt.Errorf("load dataset catalog: %w", err)
	}
	datasets, err := selectSnapshotDatasets(cat, opts.Dataset)
	if err != nil {
		return err
	}

	conns, err := connectInfra(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantCache: true,
	})
	if err != nil {
		return err
	}
	if conns.Cache == nil {
		if writeErr := writeln(os.Stderr, "Snapshot cache Redis is not available"); writeErr != nil {
			return fmt.Errorf("print cache availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	rows := make([]snapshotRow, 0, len(datasets))
	for _, key := range datasets {
		row, rowErr := fetchSnapshotRow(ctx, conns.Cache, key)
		if rowErr != nil {
			return rowErr
		}
		rows = append(rows, row)
	}

	return printSnapshotRows(rows)
}

func runPurgeSnapshots(cmdCtx *commandContext, args []string) error {
	opts, err := parsePurgeSnapshotsFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirmAction(snapshotPurgeConfirmOptions{opts}, "purge cached snapshots"); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, 2*time.Minute)
	defer cancel()

	conns, err := connectInfra(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantCache: true,
	})
	if err != nil {
		return err
	}
	if conns.Cache == nil {
		if writeErr := writeln(os.Stderr, "Snapshot cache Redis is not available"); writeErr != nil {
			return fmt.Errorf("print cache availability: %w", writeErr)
		}
		return nil
	}
	defer func() {
		if cerr := conns.Close(); cerr != nil {
			cmdCtx.Logger.Warn("close infra failed", "error", cerr)
		}
	}()

	stats, err := purgeSnapshotKeys(&snapshotPurgeRequest{
		Ctx:     ctx,
		Client:  conns.Cache,
		Logger:  cmdCtx.Logger,
		Options: opts,
	})
	if err != nil {
		return err
	}

	if stats.total == 0 {
		if writeErr := writeln(os.Stdout, "No snapshot keys found in Redis"); writeErr != nil {
			return fmt.Errorf("print snapshot purge summary: %w", writeErr)
		}
		return nil
	}

	if opts.DryRun {
		if writeErr := writef(os.Stdout, "Dry-run: would delete %d/%d keys\n", stats.deleted, stats.total); writeErr != nil {
			return fmt.Errorf("print snapshot purge dry run: %w", writeErr)
		}
		return nil
	}

	if writeErr := writef(os.Stdout, "Deleted %d/%d snapshot keys\n", stats.deleted, stats.total); writeErr != nil {
		return fmt.Errorf("print snapshot purge summary: %w", writeErr)
	}
	if stats.failures > 0 {
		if writeErr := writef(os.Stdout, "Failed batches: %d\n", stats.failures); writeErr != nil {
			return fmt.Errorf("print snapshot purge failures: %w", writeErr)
		}
	}
	return nil
}

func parseListSnapshotsFlags(args []string) (listSnapshotsOptions, error) {
	fs := flag.NewFlagSet("list-snapshots", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts listSnapshotsOptions
	fs.StringVar(&opts.Dataset, "dataset", "", "Only show the snapshot for this dataset key")

	if err := fs.Parse(args); err != nil {
		return listSnapshotsOptions{}, err
	}

	opts.Dataset = strings.TrimSpace(opts.Dataset)
	return opts, nil
}

func parsePurgeSnapshotsFlags(args []string) (purgeSnapshotsOptions, error) {
	fs := flag.NewFlagSet("purge-snapshots", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts purgeSnapshotsOptions
	fs.StringVar(&opts.Dataset, "dataset", "", "Dataset key to purge (required unless --all)")
	fs.BoolVar(&opts.All, "all", false, "Purge cached snapshots for all datasets")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Print actions without executing")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return purgeSnapshotsOptions{}, err
	}

	opts.Dataset = strings.TrimSpace(opts.Dataset)
	if err := validatePurgeSnapshotsOptions(opts); err != nil {
		return purgeSnapshotsOptions{}, err
	}

	return opts, nil
}

func validatePurgeSnapshotsOptions(opts purgeSnapshotsOptions) error {
	if opts.All && opts.Dataset != "" {
		return errors.New("--all cannot be combined with --dataset")
	}
	if !opts.All && opts.Dataset == "" {
		return errors.New("--dataset is required unless --all is provided")
	}
	return nil
}

type snapshotPurgeConfirmOptions struct {
	opts purgeSnapshotsOptions
}

func (s snapshotPurgeConfirmOptions) IsDryRun() bool { return s.opts.DryRun }
func (s snapshotPurgeConfirmOptions) IsYes() bool    { return s.opts.Yes }
func (s snapshotPurgeConfirmOptions) GetWarning() string {
	return "WARNING: the next request per dataset will refetch from the upstream ledger."
}

func (s snapshotPurgeConfirmOptions) GetTarget() string {
	if s.opts.All {
		return ""
	}
	return fmt.Sprintf("dataset %q", s.opts.Dataset)
}

// selectSnapshotDatasets resolves the dataset keys to inspect. The filter must
// name a catalog entry so typos surface instead of rendering an empty row.
func selectSnapshotDatasets(cat *catalog.Catalog, filter string) ([]string, error) {
	keys := make([]string, 0)
	for _, ds := range cat.Datasets() {
		if filter != "" && ds.Key != filter {
			continue
		}
		keys = append(keys, ds.Key)
	}
	if filter != "" && len(keys) == 0 {
		return nil, fmt.Errorf("dataset %q is not in the catalog", filter)
	}
	return keys, nil
}

type snapshotRow struct {
	Dataset   string
	Cached    bool
	Records   int
	FetchedAt time.Time
	TTL       time.Duration
	Key       string
}

func fetchSnapshotRow(ctx context.Context, client redis.UniversalClient, dataset string) (snapshotRow, error) {
	key := snapshotKeyPrefix + dataset
	row := snapshotRow{Dataset: dataset, Key: key}

	payload, err := client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return row, nil
	}
	if err != nil {
		return snapshotRow{}, fmt.Errorf("get snapshot key %q: %w", key, err)
	}

	var snap core.Snapshot
	if err := json.Unmarshal([]byte(payload), &snap); err != nil {
		return snapshotRow{}, fmt.Errorf("decode snapshot key %q: %w", key, err)
	}

	ttl, err := client.TTL(ctx, key).Result()
	if err != nil {
		return snapshotRow{}, fmt.Errorf("query redis ttl for key %q: %w", key, err)
	}

	row.Cached = true
	row.Records = len(snap.Records)
	row.FetchedAt = snap.FetchedAt
	row.TTL = ttl
	return row, nil
}

func printSnapshotRows(rows []snapshotRow) error {
	if err := writef(os.Stdout, "\nCached dataset snapshots\n"); err != nil {
		return fmt.Errorf("write snapshot header: %w", err)
	}

	if len(rows) == 0 {
		if err := writeln(os.Stdout, "  (no datasets in catalog)"); err != nil {
			return fmt.Errorf("write snapshot empty message: %w", err)
		}
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(tw, "DATASET\tRECORDS\tFETCHED (UTC)\tTTL\tKEY"); err != nil {
		return fmt.Errorf("write snapshot header row: %w", err)
	}

	for _, row := range rows {
		records := "-"
		fetched := "-"
		ttl := "-"
		if row.Cached {
			records = fmt.Sprintf("%d", row.Records)
			fetched = formatTimestamp(row.FetchedAt)
			ttl = formatRedisTTL(row.TTL)
		}
		if err := writef(tw, "%s\t%s\t%s\t%s\t%s\n", row.Dataset, records, fetched, ttl, row.Key); err != nil {
			return fmt.Errorf("write snapshot row: %w", err)
		}
	}

	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flush snapshot table: %w", err)
	}
	return nil
}

type snapshotPurgeRequest struct {
	Ctx     context.Context
	Client  redis.UniversalClient
	Logger  *slog.Logger
	Options purgeSnapshotsOptions
}

type snapshotPurgeStats struct {
	total    int
	deleted  int64
	failures int
}

func purgeSnapshotKeys(req *snapshotPurgeRequest) (snapshotPurgeStats, error) {
	if req == nil {
		return snapshotPurgeStats{}, errors.New("purge request is required")
	}

	pattern := snapshotKeyPrefix + req.Options.Dataset
	if req.Options.All {
		pattern = snapshotKeyPrefix + "*"
	}
	req.Logger.Info("scanning redis", "pattern", pattern, "dry_run", req.Options.DryRun)

	const batchCap = 100
	stats := snapshotPurgeStats{}
	iter := req.Client.Scan(req.Ctx, 0, pattern, 100).Iterator()
	batch := make([]string, 0, batchCap)

	for iter.Next(req.Ctx) {
		stats.total++
		batch = append(batch, iter.Val())
		if len(batch) == batchCap {
			flushSnapshotBatch(req, batch, &stats)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("redis scan: %w", err)
	}

	flushSnapshotBatch(req, batch, &stats)
	return stats, nil
}

func flushSnapshotBatch(req *snapshotPurgeRequest, batch []string, stats *snapshotPurgeStats) {
	if len(batch) == 0 {
		return
	}
	if req.Options.DryRun {
		stats.deleted += int64(len(batch))
		req.Logger.Info("dry-run skipping snapshot delete", "count", len(batch))
		return
	}
	n, delErr := req.Client.Del(req.Ctx, batch...).Result()
	if delErr != nil {
		stats.failures++
		req.Logger.Error("failed to delete snapshot keys", "count", len(batch), "error", delErr)
		return
	}
	stats.deleted += n
}

func formatRedisTTL(ttl time.Duration) string {
	if ttl == -1 {
		return "no expiry"
	}
	if ttl == -2 {
		return "missing"
	}
	if ttl < 0 {
		return ttl.String()
	}
	return ttl.Round(time.Millisecond).String()
}
