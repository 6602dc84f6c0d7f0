package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/meridianbank/opsdesk/internal/domain/model"
	apperrors "github.com/meridianbank/opsdesk/internal/errors"
	"github.com/meridianbank/opsdesk/internal/mocks"
	"github.com/meridianbank/opsdesk/internal/resultset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// newExportService wires an export service over a dataset service with
// mocked sources. The audit repository doubles as the exports dataset
// provider, which mirrors production wiring.
func newExportService(t *testing.T) (*mocks.MockUpstreamSource, *mocks.MockExportRepository, *ExportService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	ledger := mocks.NewMockUpstreamSource(ctrl)
	auditRepo := mocks.NewMockExportRepository(ctrl)

	datasets := NewDatasetService(DatasetServiceOptions{
		Catalog: testCatalog(t),
		Ledger:  ledger,
		Exports: auditRepo,
	})
	service := NewExportService(ExportServiceOptions{
		Datasets: datasets,
		Audit:    auditRepo,
	})

	return ledger, auditRepo, service
}

// expectAuditRow sets up the audit write to echo the request back as the
// stored record with a fixed creation time.
func expectAuditRow(ctx context.Context, auditRepo *mocks.MockExportRepository, created time.Time) {
	auditRepo.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateExportRecordRequest) (*model.ExportRecord, error) {
			return &model.ExportRecord{
				ID:        req.ID,
				UserID:    req.UserID,
				Dataset:   req.Dataset,
				Format:    req.Format,
				RowCount:  req.RowCount,
				Filters:   req.Filters,
				CreatedAt: created,
			}, nil
		}).
		Times(1)
}

func TestExportService_Export_CSV(t *testing.T) {
	t.Parallel()
	ledger, auditRepo, service := newExportService(t)

	ctx := context.Background()
	ledger.EXPECT().
		FetchCollection(ctx, "/v1/accounts").
		Return(accountRecords(), nil).
		Times(1)

	created := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	expectAuditRow(ctx, auditRepo, created)

	result, err := service.Export(ctx, managerSession(), ExportRequest{
		Dataset: "accounts",
		Format:  model.ExportFormatCSV,
		Filters: resultset.FilterState{"status": "open"},
	})

	require.NoError(t, err)
	assert.NotEmpty(t, result.ID)
	assert.Equal(t, "accounts-20240315-143000.csv", result.Filename)
	assert.Equal(t, "text/csv; charset=utf-8", result.ContentType)
	assert.Equal(t, 2, result.RowCount)
	assert.True(t, result.CreatedAt.Equal(created))

	lines := strings.Split(strings.TrimRight(string(result.Data), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"Account ID","Name","Status","Balance"`, lines[0])
	assert.Equal(t, `"acc-1","Alder Logistics","open","1250.5"`, lines[1])
	assert.Equal(t, `"acc-3","Cedar Imports","open","98000"`, lines[2])
}

func TestExportService_Export_PDF(t *testing.T) {
	t.Parallel()
	ledger, auditRepo, service := newExportService(t)

	ctx := context.Background()
	ledger.EXPECT().
		FetchCollection(ctx, "/v1/accounts").
		Return(accountRecords(), nil).
		Times(1)

	created := time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC)
	expectAuditRow(ctx, auditRepo, created)

	result, err := service.Export(ctx, managerSession(), ExportRequest{
		Dataset: "accounts",
		Format:  model.ExportFormatPDF,
	})

	require.NoError(t, err)
	assert.Equal(t, "accounts-20240315-143000.pdf", result.Filename)
	assert.Equal(t, "application/pdf", result.ContentType)
	assert.Equal(t, 3, result.RowCount)
	assert.True(t, bytes.HasPrefix(result.Data, []byte("%PDF-")))
}

func TestExportService_Export_ClerkForbidden(t *testing.T) {
	t.Parallel()
	_, _, service := newExportService(t)

	result, err := service.Export(context.Background(), clerkSession(), ExportRequest{
		Dataset: "accounts",
		Format:  model.ExportFormatCSV,
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsForbidden(err))
	assert.Contains(t, err.Error(), "requires the manager role")
}

func TestExportService_Export_UnsupportedFormat(t *testing.T) {
	t.Parallel()
	_, _, service := newExportService(t)

	result, err := service.Export(context.Background(), managerSession(), ExportRequest{
		Dataset: "accounts",
		Format:  model.ExportFormat("xlsx"),
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsInvalidInput(err))
	assert.Contains(t, err.Error(), `unsupported export format "xlsx"`)
}

func TestExportService_Export_UnknownDataset(t *testing.T) {
	t.Parallel()
	_, _, service := newExportService(t)

	result, err := service.Export(context.Background(), managerSession(), ExportRequest{
		Dataset: "loans",
		Format:  model.ExportFormatCSV,
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestExportService_Export_AuditRow(t *testing.T) {
	t.Parallel()
	ledger, auditRepo, service := newExportService(t)

	ctx := context.Background()
	sess := managerSession()
	ledger.EXPECT().
		FetchCollection(ctx, "/v1/accounts").
		Return(accountRecords(), nil).
		Times(1)

	var captured *model.CreateExportRecordRequest
	auditRepo.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateExportRecordRequest) (*model.ExportRecord, error) {
			captured = req
			return &model.ExportRecord{
				ID:        req.ID,
				UserID:    req.UserID,
				Dataset:   req.Dataset,
				Format:    req.Format,
				RowCount:  req.RowCount,
				Filters:   req.Filters,
				CreatedAt: time.Now().UTC(),
			}, nil
		}).
		Times(1)

	_, err := service.Export(ctx, sess, ExportRequest{
		Dataset: "accounts",
		Format:  model.ExportFormatCSV,
		Filters: resultset.FilterState{
			"status": "open",
			"q":      "   ",
			"extra":  "all",
		},
	})

	require.NoError(t, err)
	require.NotNil(t, captured)
	assert.Len(t, captured.ID, 26) // ULID
	assert.Equal(t, sess.UserID, captured.UserID)
	assert.Equal(t, "accounts", captured.Dataset)
	assert.Equal(t, model.ExportFormatCSV, captured.Format)
	assert.Equal(t, 2, captured.RowCount)
	// Only filters that constrained the export are recorded.
	assert.Equal(t, resultset.FilterState{"status": "open"}, captured.Filters)
}

func TestExportService_Export_AuditFailureFailsExport(t *testing.T) {
	t.Parallel()
	ledger, auditRepo, service := newExportService(t)

	ctx := context.Background()
	ledger.EXPECT().
		FetchCollection(ctx, "/v1/accounts").
		Return(accountRecords(), nil).
		Times(1)
	auditRepo.EXPECT().
		Create(ctx, gomock.Any()).
		Return(nil, errors.New("database closed")).
		Times(1)

	result, err := service.Export(ctx, managerSession(), ExportRequest{
		Dataset: "accounts",
		Format:  model.ExportFormatCSV,
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "record export audit entry")
	assert.Contains(t, err.Error(), "database closed")
}

func TestExportService_Export_FetchError(t *testing.T) {
	t.Parallel()
	ledger, _, service := newExportService(t)

	ctx := context.Background()
	ledger.EXPECT().
		FetchCollection(ctx, "/v1/accounts").
		Return(nil, errors.New("ledger unreachable")).
		Times(1)

	result, err := service.Export(ctx, managerSession(), ExportRequest{
		Dataset: "accounts",
		Format:  model.ExportFormatCSV,
	})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "ledger unreachable")
}

func TestExportFilename(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 7, 1, 8, 5, 9, 0, time.UTC)
	assert.Equal(t, "accounts-20240701-080509.csv", exportFilename("accounts", model.ExportFormatCSV, at))
	assert.Equal(t, "wires-20240701-080509.pdf", exportFilename("wires", model.ExportFormatPDF, at))
}

func TestAuditFilters_DropsInactiveValues(t *testing.T) {
	t.Parallel()

	state := resultset.FilterState{
		"status": "open",
		"q":      "  ",
		"window": "all",
		"empty":  "",
	}

	assert.Equal(t, resultset.FilterState{"status": "open"}, auditFilters(state))
}
