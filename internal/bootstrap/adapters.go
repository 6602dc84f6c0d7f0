package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridianbank/opsdesk/config"
	"github.com/meridianbank/opsdesk/internal/adapters/refresher"
	"github.com/meridianbank/opsdesk/internal/catalog"
	"github.com/meridianbank/opsdesk/internal/core"
	"github.com/meridianbank/opsdesk/internal/observability/notify"
	"github.com/meridianbank/opsdesk/internal/observability/statsd"
	"github.com/meridianbank/opsdesk/internal/service"
)

// RefresherConfig contains configuration for the snapshot refresher.
type RefresherConfig struct {
	Datasets *service.DatasetService
	Catalog  *catalog.Catalog
	Cache    core.CacheRepository
	Config   config.RefresherConfig
	Logger   *slog.Logger
	Metrics  statsd.Sink
	Notifier notify.Sink
}

// RunRefresher starts the snapshot refresher service.
func RunRefresher(ctx context.Context, cfg RefresherConfig) error {
	runner, err := refresher.NewRunner(refresher.RunnerOptions{
		Refresher:        cfg.Datasets,
		Datasets:         refresherDatasets(cfg.Config, cfg.Catalog),
		Interval:         cfg.Config.Interval,
		Parallelism:      cfg.Config.Concurrency,
		Locks:            cfg.Cache,
		Logger:           cfg.Logger,
		Metrics:          cfg.Metrics,
		Notifier:         cfg.Notifier,
		FailureThreshold: cfg.Config.FailureStreak,
	})
	if err != nil {
		return fmt.Errorf("create refresher runner: %w", err)
	}

	return runner.Run(ctx)
}

// refresherDatasets resolves the dataset keys the refresher prewarms. An
// explicit list wins; otherwise every ledger-sourced dataset in the
// catalog is refreshed.
func refresherDatasets(cfg config.RefresherConfig, cat *catalog.Catalog) []string {
	if len(cfg.Datasets) > 0 {
		return cfg.Datasets
	}
	if cat == nil {
		return nil
	}

	var keys []string
	for _, d := range cat.Datasets() {
		if d.Source == catalog.SourceLedger {
			keys = append(keys, d.Key)
		}
	}
	return keys
}
