package core

import (
	"context"
	"time"

	"github.com/meridianbank/opsdesk/internal/domain/model"
	"github.com/meridianbank/opsdesk/internal/resultset"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// SavedViewRepository defines the interface for saved view data operations.
type SavedViewRepository interface {
	Create(ctx context.Context, req *model.CreateSavedViewRequest) (*model.SavedView, error)
	GetByID(ctx context.Context, id string) (*model.SavedView, error)
	List(ctx context.Context, opts model.SavedViewListOptions) ([]*model.SavedView, error)
	Update(ctx context.Context, id string, req model.UpdateSavedViewRequest) (*model.SavedView, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ExportRepository defines the interface for export audit data operations.
// Every export writes one row; rows are never updated.
type ExportRepository interface {
	Create(ctx context.Context, req *model.CreateExportRecordRequest) (*model.ExportRecord, error)
	GetByID(ctx context.Context, id string) (*model.ExportRecord, error)
	List(ctx context.Context, opts model.ExportListOptions) ([]*model.ExportRecord, error)
	Count(ctx context.Context, opts model.ExportListOptions) (int, error)

	// DeleteOlderThan removes audit rows older than maxAge and returns the
	// number deleted. Used by the admin CLI, not the request path.
	DeleteOlderThan(ctx context.Context, maxAge time.Duration) (int64, error)
}

// UpstreamSource fetches one dataset's full collection from the system of
// record. Implementations handle transport and auth; callers see only records.
type UpstreamSource interface {
	FetchCollection(ctx context.Context, path string) ([]resultset.Record, error)
}
