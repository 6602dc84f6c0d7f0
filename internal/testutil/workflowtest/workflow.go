// Package workflowtest provides workflow testing utilities and helpers for the opsdesk browse and export flows.
package workflowtest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/meridianbank/opsdesk/internal/catalog"
	"github.com/meridianbank/opsdesk/internal/core"
	domainauth "github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/domain/model"
	"github.com/meridianbank/opsdesk/internal/resultset"
	"github.com/meridianbank/opsdesk/internal/service"
	"github.com/meridianbank/opsdesk/internal/testutil"
	"github.com/meridianbank/opsdesk/internal/upstream"
	"github.com/redis/go-redis/v9"
)

// RepositoryProvider is a simple interface for providing repositories
// This avoids import cycles by letting callers provide their own implementations.
type RepositoryProvider interface {
	SavedViewRepository(db *sql.DB) core.SavedViewRepository
	ExportRepository(db *sql.DB) core.ExportRepository
}

// CacheProvider provides a cache repository given a Redis client created by the harness.
type CacheProvider interface {
	CacheRepository(client *redis.Client) core.CacheRepository
}

// RoleHeader selects the session the harness router runs a request under.
// Requests without it run as the manager fixture.
const RoleHeader = "X-Test-Role"

// WorkflowTestHarness provides utilities for end-to-end workflow testing.
//
//nolint:revive // WorkflowTestHarness is intentionally verbose for clarity in test code.
type WorkflowTestHarness struct {
	t      testutil.TestingTB
	db     *sql.DB
	ts     *httptest.Server
	ledger *httptest.Server

	// Repositories (using interfaces to avoid import cycles)
	ViewRepo   core.SavedViewRepository
	ExportRepo core.ExportRepository

	// Domain wiring
	Catalog    *catalog.Catalog
	Ledger     core.UpstreamSource
	DatasetSvc *service.DatasetService
	ViewSvc    *service.ViewService
	ExportSvc  *service.ExportService

	// Session fixtures the harness router resolves RoleHeader against
	Manager domainauth.Session
	Clerk   domainauth.Session

	// Optional Redis components
	RedisAddr   string
	RedisClient *redis.Client
	CacheRepo   core.CacheRepository
	Snapshots   *core.SnapshotCacheService
}

// WorkflowTestOptions configures the workflow test harness.
//
//nolint:revive // WorkflowTestOptions is intentionally verbose for clarity in test code.
type WorkflowTestOptions struct {
	// EnableRedis enables the Redis-backed snapshot cache
	EnableRedis bool
	// RedisAddr overrides the default Redis test address
	RedisAddr string
	// SnapshotTTL sets the snapshot cache TTL (only used if EnableRedis is true)
	SnapshotTTL time.Duration
	// LedgerCollections maps collection paths to the JSON payloads the stub
	// ledger serves. Defaults to SampleLedgerCollections when nil.
	LedgerCollections map[string]string
	// RepositoryProvider provides repositories (required to avoid import cycles)
	RepositoryProvider RepositoryProvider
	// CacheProvider provides cache repository (optional, only used if EnableRedis is true)
	CacheProvider CacheProvider
}

// NewWorkflowTestHarness creates a new workflow test harness with all components wired up.
func NewWorkflowTestHarness(t testutil.TestingTB, db *sql.DB, opts WorkflowTestOptions) *WorkflowTestHarness {
	t.Helper()

	if opts.RepositoryProvider == nil {
		t.Fatalf("RepositoryProvider is required to avoid import cycles")
	}
	if opts.LedgerCollections == nil {
		opts.LedgerCollections = SampleLedgerCollections()
	}

	cat, err := catalog.Embedded()
	if err != nil {
		t.Fatalf("load embedded catalog: %v", err)
	}

	h := &WorkflowTestHarness{
		t:       t,
		db:      db,
		Catalog: cat,
		Manager: sessionFixture("wf-manager", "ops.manager", domainauth.RoleManager),
		Clerk:   sessionFixture("wf-clerk", "ops.clerk", domainauth.RoleClerk),
	}

	// Wire repositories using provider
	h.ViewRepo = opts.RepositoryProvider.SavedViewRepository(db)
	h.ExportRepo = opts.RepositoryProvider.ExportRepository(db)

	// Stub ledger and the production client pointed at it
	h.setupLedger(opts.LedgerCollections)

	// Setup Redis components if enabled
	if opts.EnableRedis {
		h.setupRedis(opts.RedisAddr, opts.SnapshotTTL, opts.CacheProvider)
	}

	// Wire services
	h.DatasetSvc = service.NewDatasetService(service.DatasetServiceOptions{
		Catalog:   h.Catalog,
		Snapshots: h.Snapshots,
		Ledger:    h.Ledger,
		Exports:   h.ExportRepo,
	})
	h.ViewSvc = service.NewViewService(service.ViewServiceOptions{
		Repo:    h.ViewRepo,
		Catalog: h.Catalog,
	})
	h.ExportSvc = service.NewExportService(service.ExportServiceOptions{
		Datasets: h.DatasetSvc,
		Audit:    h.ExportRepo,
	})

	// Create HTTP test server
	h.setupHTTPServer()

	return h
}

func sessionFixture(id, userID string, role domainauth.Role) domainauth.Session {
	return domainauth.Session{
		ID:        id,
		UserID:    userID,
		FirstName: "Test",
		LastName:  string(role),
		Email:     userID + "@meridianbank.example",
		Role:      role,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

// setupLedger starts the stub ledger server and builds the production client
// against it. The stub serves each configured collection as a top-level JSON
// array, the shape the real ledger uses.
func (h *WorkflowTestHarness) setupLedger(collections map[string]string) {
	h.t.Helper()

	mux := http.NewServeMux()
	for path, payload := range collections {
		body := []byte(payload)
		mux.HandleFunc("GET "+path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if _, err := w.Write(body); err != nil {
				h.t.Logf("warning: stub ledger write failed: %v", err)
			}
		})
	}
	h.ledger = httptest.NewServer(mux)

	client, err := upstream.NewClient(upstream.Config{
		BaseURL:  h.ledger.URL,
		Secret:   "workflow-test-secret",
		Issuer:   "opsdesk-test",
		Audience: "ledger-test",
		Timeout:  5 * time.Second,
	})
	if err != nil {
		h.t.Fatalf("build ledger client: %v", err)
	}
	h.Ledger = client
}

// setupRedis initializes the Redis-backed snapshot cache.
func (h *WorkflowTestHarness) setupRedis(addr string, ttl time.Duration, cacheProvider CacheProvider) {
	h.t.Helper()

	if cacheProvider == nil {
		h.t.Fatalf("CacheProvider is required when EnableRedis is true")
	}

	if addr == "" {
		client := testutil.SetupTestRedis(h.t)
		h.initRedisClient(client, addr, ttl, cacheProvider)
		return
	}

	// Use specific address for custom setups
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		h.t.Logf("redis not available at %s: %v", addr, err)
		if closeErr := client.Close(); closeErr != nil {
			h.t.Logf("warning: failed to close redis client: %v", closeErr)
		}
		h.t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
		return
	}

	h.initRedisClient(client, addr, ttl, cacheProvider)
}

func (h *WorkflowTestHarness) initRedisClient(
	client *redis.Client,
	addr string,
	ttl time.Duration,
	cacheProvider CacheProvider,
) {
	h.RedisAddr = addr
	h.RedisClient = client
	h.CacheRepo = cacheProvider.CacheRepository(client)
	h.Snapshots = core.NewSnapshotCacheService(core.SnapshotCacheServiceOptions{
		Cache:  h.CacheRepo,
		Config: core.SnapshotCacheConfig{TTL: ttl},
	})
}

// setupHTTPServer creates and starts the HTTP test server.
func (h *WorkflowTestHarness) setupHTTPServer() {
	h.t.Helper()

	// Create a basic HTTP router for testing
	// We avoid importing the http package to prevent import cycles
	mux := h.createTestRouter()
	h.ts = httptest.NewServer(mux)
}

// createTestRouter creates a basic HTTP router for testing without importing the http package.
func (h *WorkflowTestHarness) createTestRouter() *http.ServeMux {
	mux := http.NewServeMux()

	// Saved view endpoints - basic implementation for testing
	mux.HandleFunc("POST /api/views", h.handleCreateView)
	mux.HandleFunc("GET /api/views", h.handleListViews)
	mux.HandleFunc("DELETE /api/views/{id}", h.handleDeleteView)

	// Dataset endpoints
	mux.HandleFunc("GET /api/datasets/{key}/records", h.handleDatasetRecords)
	mux.HandleFunc("GET /api/datasets/{key}/export", h.handleExport)

	return mux
}

// sessionFor resolves the session fixture a request runs under.
func (h *WorkflowTestHarness) sessionFor(r *http.Request) domainauth.Session {
	if strings.EqualFold(r.Header.Get(RoleHeader), string(domainauth.RoleClerk)) {
		return h.Clerk
	}
	return h.Manager
}

// HTTP handler implementations for testing.
func (h *WorkflowTestHarness) handleCreateView(w http.ResponseWriter, r *http.Request) {
	var req *model.CreateSavedViewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	view, err := h.ViewSvc.Create(r.Context(), h.sessionFor(r), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if encodeErr := json.NewEncoder(w).Encode(view); encodeErr != nil {
		h.t.Fatalf("encode view response: %v", encodeErr)
	}
}

func (h *WorkflowTestHarness) handleListViews(w http.ResponseWriter, r *http.Request) {
	views, err := h.ViewSvc.List(r.Context(), h.sessionFor(r), r.URL.Query().Get("dataset"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if encodeErr := json.NewEncoder(w).Encode(map[string]any{"views": views}); encodeErr != nil {
		h.t.Fatalf("encode views response: %v", encodeErr)
	}
}

func (h *WorkflowTestHarness) handleDeleteView(w http.ResponseWriter, r *http.Request) {
	if err := h.ViewSvc.Delete(r.Context(), h.sessionFor(r), r.PathValue("id")); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *WorkflowTestHarness) handleDatasetRecords(w http.ResponseWriter, r *http.Request) {
	page, err := h.DatasetSvc.Page(r.Context(), h.sessionFor(r), service.PageRequest{
		Dataset: r.PathValue("key"),
		View:    parseViewQuery(r),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	encodeErr := json.NewEncoder(w).Encode(map[string]any{
		"records":     page.Page.Records,
		"total_count": page.Page.TotalCount,
		"total_pages": page.Page.TotalPages,
		"page":        page.Page.Index,
	})
	if encodeErr != nil {
		h.t.Fatalf("encode records response: %v", encodeErr)
	}
}

func (h *WorkflowTestHarness) handleExport(w http.ResponseWriter, r *http.Request) {
	format := model.ExportFormatCSV
	if raw := r.URL.Query().Get("format"); raw != "" {
		format, _ = model.ParseExportFormat(raw)
	}
	view := parseViewQuery(r)

	export, err := h.ExportSvc.Export(r.Context(), h.sessionFor(r), service.ExportRequest{
		Dataset: r.PathValue("key"),
		Format:  format,
		Filters: view.Filters,
		Sort:    view.Sort,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	if _, writeErr := w.Write(export.Data); writeErr != nil {
		h.t.Logf("warning: export write failed: %v", writeErr)
	}
}

// parseViewQuery assembles a view state from the request query: f_-prefixed
// filter params, sort/dir, and page/size.
func parseViewQuery(r *http.Request) resultset.ViewState {
	q := r.URL.Query()

	filters := make(resultset.FilterState)
	for name, vals := range q {
		if len(vals) == 0 || !strings.HasPrefix(name, "f_") {
			continue
		}
		filters[strings.TrimPrefix(name, "f_")] = vals[0]
	}

	page := 1
	if v, err := strconv.Atoi(q.Get("page")); err == nil && v > 0 {
		page = v
	}
	size := 0
	if v, err := strconv.Atoi(q.Get("size")); err == nil && v > 0 {
		size = v
	}

	return resultset.ViewState{
		Filters: filters,
		Sort: resultset.SortState{
			Field:      strings.TrimSpace(q.Get("sort")),
			Descending: strings.EqualFold(q.Get("dir"), "desc"),
		},
		Page: resultset.PageState{Index: page, Size: size},
	}
}

// Close cleans up all resources.
func (h *WorkflowTestHarness) Close() {
	h.t.Helper()

	if h.ts != nil {
		h.ts.Close()
	}
	if h.ledger != nil {
		h.ledger.Close()
	}
	if h.RedisClient != nil {
		if err := h.RedisClient.Close(); err != nil {
			h.t.Logf("warning: failed to close redis client: %v", err)
		}
	}
}

// BaseURL returns the base URL of the test HTTP server.
func (h *WorkflowTestHarness) BaseURL() string {
	return h.ts.URL
}

// LedgerURL returns the base URL of the stub ledger server.
func (h *WorkflowTestHarness) LedgerURL() string {
	return h.ledger.URL
}

// HTTPClient provides utilities for making HTTP requests to the test server.
type HTTPClient struct {
	t       testutil.TestingTB
	baseURL string
	client  *http.Client
	role    domainauth.Role
}

// NewHTTPClient creates a new HTTP client for testing. It runs as the
// manager fixture; use WithRole to downgrade.
func (h *WorkflowTestHarness) NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		t:       h.t,
		baseURL: h.BaseURL(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		role: domainauth.RoleManager,
	}
}

// WithRole returns a copy of the client that runs requests under the given role.
func (c *HTTPClient) WithRole(role domainauth.Role) *HTTPClient {
	clone := *c
	clone.role = role
	return &clone
}

// DoJSON creates a request with context and performs it using the harness client.
func (c *HTTPClient) DoJSON(method, path string, payload any) *http.Response {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RoleHeader, string(c.role))

	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

// CreateView saves a view via HTTP API and returns the created view.
func (c *HTTPClient) CreateView(req *model.CreateSavedViewRequest) model.SavedView {
	c.t.Helper()

	resp := c.DoJSON(http.MethodPost, "/api/views", req)
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.t.Logf("warning: failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("create view status: %d", resp.StatusCode)
	}

	var view model.SavedView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		c.t.Fatalf("decode create view: %v", err)
	}
	return view
}

// ListViews lists the calling user's saved views, optionally narrowed to one dataset.
func (c *HTTPClient) ListViews(dataset string) []*model.SavedView {
	c.t.Helper()

	path := "/api/views"
	if dataset != "" {
		path += "?dataset=" + url.QueryEscape(dataset)
	}
	resp := c.DoJSON(http.MethodGet, path, nil)
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.t.Logf("warning: failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("list views status: %d", resp.StatusCode)
	}

	var out struct {
		Views []*model.SavedView `json:"views"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.t.Fatalf("decode views: %v", err)
	}
	return out.Views
}

// DeleteView removes a saved view via HTTP API.
func (c *HTTPClient) DeleteView(id string) {
	c.t.Helper()

	resp := c.DoJSON(http.MethodDelete, "/api/views/"+id, nil)
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.t.Logf("warning: failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("delete view status: %d", resp.StatusCode)
	}
}

// RecordsPage is one decoded page of dataset records.
type RecordsPage struct {
	Records    []resultset.Record `json:"records"`
	TotalCount int                `json:"total_count"`
	TotalPages int                `json:"total_pages"`
	Page       int                `json:"page"`
}

// FetchRecords requests one page of a dataset. Query carries the view state
// (f_-prefixed filters, sort, dir, page, size).
func (c *HTTPClient) FetchRecords(dataset string, query url.Values) RecordsPage {
	c.t.Helper()

	path := "/api/datasets/" + url.PathEscape(dataset) + "/records"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}
	resp := c.DoJSON(http.MethodGet, path, nil)
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.t.Logf("warning: failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("fetch records status: %d", resp.StatusCode)
	}

	var page RecordsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		c.t.Fatalf("decode records page: %v", err)
	}
	return page
}

// ExportResult is one downloaded export payload.
type ExportResult struct {
	ContentType string
	Filename    string
	Data        []byte
}

// Export downloads a dataset export in the given format.
func (c *HTTPClient) Export(dataset, format string, query url.Values) ExportResult {
	c.t.Helper()

	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	if format != "" {
		q.Set("format", format)
	}
	path := "/api/datasets/" + url.PathEscape(dataset) + "/export"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp := c.DoJSON(http.MethodGet, path, nil)
	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.t.Logf("warning: failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		c.t.Fatalf("export status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.t.Fatalf("read export payload: %v", err)
	}
	return ExportResult{
		ContentType: resp.Header.Get("Content-Type"),
		Filename:    parseAttachmentFilename(resp.Header.Get("Content-Disposition")),
		Data:        data,
	}
}

// parseAttachmentFilename pulls the filename out of a Content-Disposition header.
func parseAttachmentFilename(disposition string) string {
	const marker = `filename="`
	start := strings.Index(disposition, marker)
	if start == -1 {
		return ""
	}
	rest := disposition[start+len(marker):]
	end := strings.IndexByte(rest, '"')
	if end == -1 {
		return rest
	}
	return rest[:end]
}

// WorkflowHelpers provides high-level workflow testing utilities.
type WorkflowHelpers struct {
	harness *WorkflowTestHarness
	client  *HTTPClient
}

// NewWorkflowHelpers creates workflow helpers for the given harness.
func (h *WorkflowTestHarness) NewWorkflowHelpers() *WorkflowHelpers {
	return &WorkflowHelpers{
		harness: h,
		client:  h.NewHTTPClient(),
	}
}

// CreateFilteredView saves a view pinning the given filters for a dataset.
func (w *WorkflowHelpers) CreateFilteredView(dataset, name string, filters map[string]string) model.SavedView {
	w.harness.t.Helper()

	state := resultset.ViewState{Filters: resultset.FilterState{}, Page: resultset.PageState{Index: 1}}
	for k, v := range filters {
		state.Filters[k] = v
	}

	return w.client.CreateView(&model.CreateSavedViewRequest{
		Dataset: dataset,
		Name:    name,
		State:   state,
	})
}

// CreateTimestampedView saves a view with a unique timestamp-based name.
func (w *WorkflowHelpers) CreateTimestampedView(dataset string, filters map[string]string) model.SavedView {
	w.harness.t.Helper()

	name := fmt.Sprintf("workflow-view-%d", time.Now().UnixNano())
	return w.CreateFilteredView(dataset, name, filters)
}

// RunBrowseAndExportWorkflow runs a complete workflow: save a filtered view,
// browse the dataset with the view's state, then export it. Returns the
// saved view and the downloaded export.
func (w *WorkflowHelpers) RunBrowseAndExportWorkflow(dataset string, filters map[string]string) (model.SavedView, ExportResult) {
	w.harness.t.Helper()

	// 1. Save a view pinning the filters
	view := w.CreateTimestampedView(dataset, filters)

	// 2. Browse the dataset with the view's state
	query := url.Values{}
	for k, v := range view.State.Filters {
		query.Set("f_"+k, v)
	}
	page := w.client.FetchRecords(dataset, query)

	// 3. Export the same filtered collection
	export := w.client.Export(dataset, "csv", query)

	if page.TotalCount > 0 && len(export.Data) == 0 {
		w.harness.t.Fatalf("export returned no payload for %d records", page.TotalCount)
	}

	return view, export
}

// VerifyExportAudited verifies the most recent audit row for the dataset and
// user matches the export that just ran.
func (w *WorkflowHelpers) VerifyExportAudited(dataset, userID string, wantRows int) {
	w.harness.t.Helper()

	ctx := context.Background()
	rows, err := w.harness.ExportRepo.List(ctx, model.ExportListOptions{
		Dataset: dataset,
		UserID:  userID,
		Limit:   1,
	})
	if err != nil {
		w.harness.t.Fatalf("list export audit rows: %v", err)
	}
	if len(rows) == 0 {
		w.harness.t.Fatalf("expected an audit row for dataset %s and user %s", dataset, userID)
	}
	if rows[0].RowCount != wantRows {
		w.harness.t.Fatalf("audit row count mismatch: got %d want %d", rows[0].RowCount, wantRows)
	}
}

// SampleLedgerCollections returns stub payloads for the embedded catalog's
// ledger datasets. Accounts carry the nested shape the projection flattens;
// cases have no projection and arrive flat.
func SampleLedgerCollections() map[string]string {
	return map[string]string{
		"/v1/accounts": `[
			{"id":"acc-001","iban":"DE89370400440532013000","holder":{"name":"Hana Novak"},"status":"active","currency":"EUR","balances":{"available":15230.55},"opened_at":"2024-11-03T09:14:00Z"},
			{"id":"acc-002","iban":"FR1420041010050500013M02606","holder":{"name":"Luc Moreau"},"status":"active","currency":"EUR","balances":{"available":820.10},"opened_at":"2025-02-18T14:02:00Z"},
			{"id":"acc-003","iban":"NL91ABNA0417164300","holder":{"name":"Sanne de Vries"},"status":"frozen","currency":"EUR","balances":{"available":-42.80},"opened_at":"2023-07-29T08:45:00Z"},
			{"id":"acc-004","iban":"GB29NWBK60161331926819","holder":{"name":"Priya Shah"},"status":"active","currency":"GBP","balances":{"available":10450.00},"opened_at":"2024-05-12T11:30:00Z"},
			{"id":"acc-005","iban":"ES9121000418450200051332","holder":{"name":"Marta Iglesias"},"status":"closed","currency":"EUR","balances":{"available":0},"opened_at":"2022-12-01T16:20:00Z"}
		]`,
		"/v1/cases": `[
			{"id":"case-001","case_ref":"RC-2025-0141","subject_name":"Luc Moreau","type":"kyc_review","severity":"medium","status":"open","assignee":"ops.manager","opened_at":"2025-05-21T10:00:00Z"},
			{"id":"case-002","case_ref":"RC-2025-0157","subject_name":"Sanne de Vries","type":"fraud_alert","severity":"high","status":"escalated","assignee":"ops.clerk","opened_at":"2025-06-02T13:40:00Z"},
			{"id":"case-003","case_ref":"RC-2024-0962","subject_name":"Marta Iglesias","type":"dormancy","severity":"low","status":"closed","assignee":"ops.clerk","opened_at":"2024-09-15T09:05:00Z"}
		]`,
	}
}

// skipIfRedisUnavailable skips the test if Redis is required but unavailable.
func skipIfRedisUnavailable(t testutil.TestingTB, opts WorkflowTestOptions) {
	t.Helper()

	if !opts.EnableRedis {
		return
	}

	if opts.RedisAddr == "" {
		// Use centralized Redis address detection
		if _, ok := testutil.GetTestRedisAddr(t); !ok {
			t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
		}
		return
	}

	// Test specific address by trying to connect
	client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
	defer func() {
		if err := client.Close(); err != nil {
			t.Logf("warning: failed to close redis client: %v", err)
		}
	}()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
	}
}

// WithWorkflowHarness is a helper that sets up and tears down a workflow test harness.
func WithWorkflowHarness(t testutil.TestingTB, opts WorkflowTestOptions, fn func(*WorkflowTestHarness)) {
	t.Helper()

	testutil.SkipIfNoTestDB(t)
	skipIfRedisUnavailable(t, opts)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		harness := NewWorkflowTestHarness(t, db, opts)
		defer harness.Close()
		fn(harness)
	})
}

// DefaultWorkflowOptions returns default options for workflow testing.
// Note: You must provide RepositoryProvider to avoid import cycles.
// Example:
//
//	opts := DefaultWorkflowOptions()
//	opts.RepositoryProvider = myRepositoryProvider
func DefaultWorkflowOptions() WorkflowTestOptions {
	return WorkflowTestOptions{
		EnableRedis: false,
		// RepositoryProvider must be set by caller
		// CacheProvider is optional (only needed if EnableRedis is true)
	}
}

// RedisWorkflowOptions returns options for workflow testing with Redis enabled.
// Note: You must provide both RepositoryProvider and CacheProvider to avoid import cycles.
// Example:
//
//	opts := RedisWorkflowOptions()
//	opts.RepositoryProvider = myRepositoryProvider
//	opts.CacheProvider = myCacheProvider
func RedisWorkflowOptions() WorkflowTestOptions {
	return WorkflowTestOptions{
		EnableRedis: true,
		// RepositoryProvider must be set by caller
		// CacheProvider must be set by caller when EnableRedis is true
	}
}
