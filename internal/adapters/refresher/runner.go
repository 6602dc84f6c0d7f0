// Package refresher provides the snapshot prewarm loop for the refresher
// service mode.
package refresher

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridianbank/opsdesk/internal/core"
	obserrors "github.com/meridianbank/opsdesk/internal/observability/errors"
	"github.com/meridianbank/opsdesk/internal/observability/metrics"
	"github.com/meridianbank/opsdesk/internal/observability/notify"
	"github.com/meridianbank/opsdesk/internal/observability/statsd"
)

// DatasetRefresher re-fetches one dataset snapshot and reports the row count.
// *service.DatasetService satisfies it.
type DatasetRefresher interface {
	Refresh(ctx context.Context, key string) (int, error)
}

// Runner walks the configured datasets on an interval and refreshes their
// snapshots through the dataset service, so interactive requests mostly hit
// a warm cache.
type Runner struct {
	refresher   DatasetRefresher
	datasets    []string
	interval    time.Duration
	parallelism int
	locks       core.CacheRepository
	logger      *slog.Logger
	metrics     statsd.Sink

	notifier         notify.Sink
	failureThreshold int
	notifyCooldown   time.Duration
	streaks          failureTracker
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Refresher DatasetRefresher
	Datasets  []string

	Interval    time.Duration // default 5m
	Parallelism int           // default 4

	// Locks is optional. When set, replicas coordinate through
	// SetIfNotExists so only one of them refreshes a dataset per interval.
	Locks core.CacheRepository

	Logger  *slog.Logger
	Metrics statsd.Sink

	// Notifier is optional. Consecutive failures on the same dataset past
	// FailureThreshold trigger one notification per NotifyCooldown.
	Notifier         notify.Sink
	FailureThreshold int           // default 3
	NotifyCooldown   time.Duration // default 30m
}

// NewRunner creates a new refresher runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	return &Runner{
		refresher:        opts.Refresher,
		datasets:         normalizeDatasets(opts.Datasets),
		interval:         opts.Interval,
		parallelism:      opts.Parallelism,
		locks:            opts.Locks,
		logger:           opts.Logger,
		metrics:          opts.Metrics,
		notifier:         opts.Notifier,
		failureThreshold: opts.FailureThreshold,
		notifyCooldown:   opts.NotifyCooldown,
		streaks:          failureTracker{},
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Refresher == nil {
		return errors.New("dataset refresher is required")
	}
	if len(normalizeDatasets(opts.Datasets)) == 0 {
		return errors.New("at least one dataset is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 5 * time.Minute
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 3
	}
	if opts.NotifyCooldown <= 0 {
		opts.NotifyCooldown = 30 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// normalizeDatasets trims, drops empties and dedupes while preserving order.
func normalizeDatasets(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

// Run refreshes all datasets once at startup, then on every tick until the
// context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting snapshot refresher",
		"datasets", r.datasets,
		"interval", r.interval,
	)

	r.refreshAll(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "snapshot refresher stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			r.refreshAll(ctx)
		}
	}
}

// refreshAll fans out over the configured datasets with bounded parallelism.
func (r *Runner) refreshAll(ctx context.Context) {
	var g errgroup.Group
	g.SetLimit(r.parallelism)
	for _, key := range r.datasets {
		g.Go(func() error {
			r.refreshOne(ctx, key)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Runner) refreshOne(ctx context.Context, key string) {
	if !r.acquireLock(ctx, key) {
		r.logger.DebugContext(ctx, "dataset refresh already claimed", "dataset", key)
		r.emitRefresh(key, 0, 0, nil, true)
		return
	}

	start := time.Now()
	rows, err := r.refresher.Refresh(ctx, key)
	elapsed := time.Since(start)

	r.emitRefresh(key, rows, elapsed, err, false)

	if err != nil {
		streak := r.streaks.record(key)
		r.logger.ErrorContext(ctx, "dataset refresh failed",
			"dataset", key,
			"streak", streak,
			"error", err,
		)
		r.maybeNotify(ctx, key, streak, err)
		return
	}

	r.streaks.clear(key)
	r.logger.InfoContext(ctx, "dataset refreshed",
		"dataset", key,
		"rows", rows,
		"duration", elapsed,
	)
}

// acquireLock claims the per-interval refresh slot for a dataset. Lock
// trouble does not stop the refresh; worst case two replicas fetch the same
// snapshot.
func (r *Runner) acquireLock(ctx context.Context, key string) bool {
	if r.locks == nil {
		return true
	}
	ttl := r.interval * 9 / 10
	stamp := []byte(time.Now().UTC().Format(time.RFC3339))
	ok, err := r.locks.SetIfNotExists(ctx, refreshLockKey(key), stamp, ttl)
	if err != nil {
		r.logger.WarnContext(ctx, "refresh lock unavailable", "dataset", key, "error", err)
		return true
	}
	return ok
}

func (r *Runner) maybeNotify(ctx context.Context, key string, streak int, refreshErr error) {
	if r.notifier == nil {
		return
	}
	if !r.streaks.shouldNotify(key, streak, r.failureThreshold, r.notifyCooldown, time.Now()) {
		return
	}

	payload := notify.RefreshFailurePayload{
		Dataset:    key,
		Error:      refreshErr.Error(),
		ErrorClass: obserrors.CodeOrClass(refreshErr),
		Streak:     streak,
		Severity:   notify.SeverityCritical,
		OccurredAt: time.Now().UTC(),
	}
	if err := r.notifier.SendRefreshFailure(ctx, payload); err != nil {
		r.logger.ErrorContext(ctx, "refresh failure notification error",
			"dataset", key,
			"error", err,
		)
	}
}

func (r *Runner) emitRefresh(dataset string, rows int, elapsed time.Duration, err error, skipped bool) {
	if r.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	switch {
	case skipped:
		result = metrics.ResultSkipped
	case err != nil:
		result = metrics.ResultError
	}

	tags := map[string]string{
		"dataset": dataset,
		"result":  result,
	}
	if err != nil {
		if class := obserrors.CodeOrClass(err); class != "" {
			tags["error_class"] = class
		}
	}

	r.metrics.Count("refresher.dataset", 1, tags)

	if skipped {
		return
	}
	if elapsed > 0 {
		r.metrics.Timing("refresher.duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		r.metrics.Count("refresher.rows", int64(rows), metrics.CloneTags(tags))
		r.metrics.Gauge("refresher.last_success_epoch", float64(time.Now().Unix()),
			map[string]string{"dataset": dataset})
	}
}

func refreshLockKey(dataset string) string {
	return "refresh-lock:" + dataset
}

// failureTracker keeps consecutive failure counts and notification times per
// dataset. Safe for concurrent use.
type failureTracker struct {
	mu           sync.Mutex
	streaks      map[string]int
	lastNotified map[string]time.Time
}

// record bumps the failure streak for a dataset and returns the new count.
func (t *failureTracker) record(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.streaks == nil {
		t.streaks = make(map[string]int)
	}
	t.streaks[key]++
	return t.streaks[key]
}

// clear resets the streak after a successful refresh.
func (t *failureTracker) clear(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.streaks, key)
	delete(t.lastNotified, key)
}

// shouldNotify reports whether a notification is due and records the send
// time when it is.
func (t *failureTracker) shouldNotify(key string, streak, threshold int, cooldown time.Duration, now time.Time) bool {
	if streak < threshold {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if last, ok := t.lastNotified[key]; ok && now.Sub(last) < cooldown {
		return false
	}
	if t.lastNotified == nil {
		t.lastNotified = make(map[string]time.Time)
	}
	t.lastNotified[key] = now
	return true
}
