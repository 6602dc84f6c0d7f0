//nolint:ireturn // Returning interfaces here is intentional for provider simplicity in example tests.

//go:build example

package httpx

import (
	"database/sql"
	"net/url"
	"testing"

	"github.com/meridianbank/opsdesk/internal/core"
	"github.com/meridianbank/opsdesk/internal/data"
	"github.com/meridianbank/opsdesk/internal/testutil/workflowtest"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

// repositoryProvider implements workflowtest.RepositoryProvider to avoid import cycles.
type repositoryProvider struct{}

//lint:ignore ireturn Returning interfaces simplifies test harness and avoids import cycles.
func (repositoryProvider) SavedViewRepository(db *sql.DB) core.SavedViewRepository {
	return data.NewSavedViewRepo(db)
}

//lint:ignore ireturn Returning interfaces simplifies test harness and avoids import cycles.
func (repositoryProvider) ExportRepository(db *sql.DB) core.ExportRepository {
	return data.NewExportRepo(db)
}

// cacheProvider implements workflowtest.CacheProvider for Redis tests.
type cacheProvider struct{}

//lint:ignore ireturn Returning interfaces simplifies test harness and avoids import cycles.
func (cacheProvider) CacheRepository(client *redis.Client) core.CacheRepository {
	return data.NewRedisCache(client)
}

// TestWorkflowHarnessUsageExample demonstrates how to use the workflow harness
// from outside the workflowtest package, avoiding import cycles.
func TestWorkflowHarnessUsageExample(t *testing.T) {
	// Create options with repository provider
	opts := workflowtest.DefaultWorkflowOptions()
	opts.RepositoryProvider = repositoryProvider{}

	// Use the workflow harness
	workflowtest.WithWorkflowHarness(t, opts, func(harness *workflowtest.WorkflowTestHarness) {
		// Verify harness is properly initialized
		assert.NotNil(t, harness.ViewRepo)
		assert.NotNil(t, harness.ExportRepo)
		assert.NotNil(t, harness.DatasetSvc)
		assert.NotNil(t, harness.ViewSvc)
		assert.NotNil(t, harness.ExportSvc)

		// Create HTTP client for API calls
		client := harness.NewHTTPClient()
		assert.NotNil(t, client)

		// Browse the stub ledger through the harness router
		page := client.FetchRecords("accounts", url.Values{"f_status": {"active"}})
		assert.Equal(t, 3, page.TotalCount)

		// Create workflow helpers and pin the slice as a view
		helpers := harness.NewWorkflowHelpers()
		view := helpers.CreateFilteredView("accounts", "Active accounts", map[string]string{"status": "active"})
		assert.NotEmpty(t, view.ID)
		assert.Equal(t, harness.Manager.UserID, view.UserID)
	})
}

// TestWorkflowHarnessWithRedisExample demonstrates Redis usage.
func TestWorkflowHarnessWithRedisExample(t *testing.T) {
	// Create Redis options with both providers
	opts := workflowtest.RedisWorkflowOptions()
	opts.RepositoryProvider = repositoryProvider{}
	opts.CacheProvider = cacheProvider{}

	// This test will be skipped if Redis is not available
	workflowtest.WithWorkflowHarness(t, opts, func(harness *workflowtest.WorkflowTestHarness) {
		// Verify Redis components are available
		assert.NotNil(t, harness.RedisClient)
		assert.NotNil(t, harness.CacheRepo)
		assert.NotNil(t, harness.Snapshots)

		// Run the full browse-save-export loop with the snapshot cache on
		helpers := harness.NewWorkflowHelpers()
		view, export := helpers.RunBrowseAndExportWorkflow("accounts", map[string]string{"status": "active"})
		assert.NotEmpty(t, view.ID)
		assert.Equal(t, "text/csv; charset=utf-8", export.ContentType)
		helpers.VerifyExportAudited("accounts", harness.Manager.UserID, 3)
	})
}
