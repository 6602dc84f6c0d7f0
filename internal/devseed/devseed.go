package devseed

// Package devseed loads demo data for local development: a set of saved
// views for the mock-auth dev user and a handful of export audit rows so
// the export history dataset is not empty on first boot.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/meridianbank/opsdesk/internal/data"
	"github.com/meridianbank/opsdesk/internal/domain/model"
	"github.com/meridianbank/opsdesk/internal/resultset"
)

// DefaultUserID is the user the demo data belongs to. It matches the
// DEV_AUTH_USER_ID default so the views show up after a mock-auth login.
const DefaultUserID = "dev-user"

// Services bundles the dependencies needed for development seeding.
type Services struct {
	DB      *sql.DB
	views   *data.SavedViewRepo
	exports *data.ExportRepo
}

// NewServices constructs all required repositories for seeding using the provided DB.
func NewServices(db *sql.DB) Services {
	return Services{
		DB:      db,
		views:   data.NewSavedViewRepo(db),
		exports: data.NewExportRepo(db),
	}
}

// Run executes the full development seeding workflow against the provided DB.
func Run(ctx context.Context, svcs Services, logger *slog.Logger) error {
	failures := 0
	failures += seedSavedViews(ctx, svcs.views, logger)

	if err := seedExportAudit(ctx, svcs.exports, logger); err != nil {
		return err
	}

	if failures > 0 {
		return fmt.Errorf("%d seed errors; check logs", failures)
	}
	return nil
}

func seedSavedViews(ctx context.Context, repo *data.SavedViewRepo, logger *slog.Logger) int {
	failures := 0
	for _, req := range defaultSavedViews() {
		created, err := createSavedView(ctx, repo, req)
		if err != nil {
			if logger != nil {
				logger.ErrorContext(ctx, "failed to create saved view", "name", req.Name, "error", err)
			}
			failures++
			continue
		}
		if logger != nil {
			msg := "saved view already exists"
			if created {
				msg = "created saved view"
			}
			logger.InfoContext(ctx, msg, "name", req.Name, "dataset", req.Dataset)
		}
	}
	return failures
}

func createSavedView(
	ctx context.Context,
	repo *data.SavedViewRepo,
	req *model.CreateSavedViewRequest,
) (bool, error) {
	if _, err := repo.Create(ctx, req); err != nil {
		if errors.Is(err, data.ErrViewNameExists) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func defaultSavedViews() []*model.CreateSavedViewRequest {
	return []*model.CreateSavedViewRequest{
		{
			UserID:  DefaultUserID,
			Dataset: "accounts",
			Name:    "Frozen accounts",
			State: resultset.ViewState{
				Filters: resultset.FilterState{"status": "frozen"},
				Sort:    resultset.SortState{Field: "opened_at", Descending: true},
				Page:    resultset.PageState{Index: 1, Size: resultset.DefaultPageSize},
			},
		},
		{
			UserID:  DefaultUserID,
			Dataset: "accounts",
			Name:    "Large EUR balances",
			State: resultset.ViewState{
				Filters: resultset.FilterState{"currency": "EUR", "balance": "over_10k"},
				Sort:    resultset.SortState{Field: "balance", Descending: true},
				Page:    resultset.PageState{Index: 1, Size: resultset.DefaultPageSize},
			},
		},
		{
			UserID:  DefaultUserID,
			Dataset: "transactions",
			Name:    "Failed wires this week",
			State: resultset.ViewState{
				Filters: resultset.FilterState{"status": "failed", "channel": "wire", "posted": "7d"},
				Sort:    resultset.SortState{Field: "posted_at", Descending: true},
				Page:    resultset.PageState{Index: 1, Size: resultset.DefaultPageSize},
			},
		},
		{
			UserID:  DefaultUserID,
			Dataset: "cases",
			Name:    "Open high severity",
			State: resultset.ViewState{
				Filters: resultset.FilterState{"status": "open", "severity": "high"},
				Sort:    resultset.SortState{Field: "opened_at", Descending: true},
				Page:    resultset.PageState{Index: 1, Size: resultset.DefaultPageSize},
			},
		},
		{
			UserID:  DefaultUserID,
			Dataset: "customers",
			Name:    "High risk pending KYC",
			State: resultset.ViewState{
				Filters: resultset.FilterState{"kyc_status": "pending", "risk": "high"},
				Sort:    resultset.SortState{Field: "risk_score", Descending: true},
				Page:    resultset.PageState{Index: 1, Size: resultset.DefaultPageSize},
			},
		},
	}
}

// seedExportAudit inserts sample export audit rows. The audit trail is
// append-only with caller-supplied ULIDs, so re-running the seed would pile
// up duplicates; seeding is skipped when any rows already exist.
func seedExportAudit(ctx context.Context, repo *data.ExportRepo, logger *slog.Logger) error {
	existing, err := repo.Count(ctx, model.ExportListOptions{})
	if err != nil {
		return fmt.Errorf("count export audit rows: %w", err)
	}
	if existing > 0 {
		if logger != nil {
			logger.InfoContext(ctx, "export audit already has rows", "count", existing, "action", "skipping")
		}
		return nil
	}

	for _, req := range defaultExportRecords() {
		req.ID = ulid.Make().String()
		if _, createErr := repo.Create(ctx, req); createErr != nil {
			return fmt.Errorf("create export audit row for %q: %w", req.Dataset, createErr)
		}
		if logger != nil {
			logger.InfoContext(ctx, "created export audit row",
				"dataset", req.Dataset, "format", req.Format, "user", req.UserID)
		}
	}
	return nil
}

func defaultExportRecords() []*model.CreateExportRecordRequest {
	return []*model.CreateExportRecordRequest{
		{
			UserID:   DefaultUserID,
			Dataset:  "accounts",
			Format:   model.ExportFormatCSV,
			RowCount: 412,
			Filters:  resultset.FilterState{"status": "active"},
		},
		{
			UserID:   DefaultUserID,
			Dataset:  "transactions",
			Format:   model.ExportFormatCSV,
			RowCount: 1187,
			Filters:  resultset.FilterState{"channel": "wire", "posted": "30d"},
		},
		{
			UserID:   DefaultUserID,
			Dataset:  "transactions",
			Format:   model.ExportFormatPDF,
			RowCount: 86,
			Filters:  resultset.FilterState{"status": "failed", "posted": "7d"},
		},
		{
			UserID:   "audit.reviewer",
			Dataset:  "cases",
			Format:   model.ExportFormatPDF,
			RowCount: 23,
			Filters:  resultset.FilterState{"severity": "high"},
		},
		{
			UserID:   "audit.reviewer",
			Dataset:  "customers",
			Format:   model.ExportFormatCSV,
			RowCount: 960,
			Filters:  resultset.FilterState{},
		},
	}
}
