// This file is a documentation template and should not be compiled.
// It uses placeholder types (ExampleService, ExampleRepository, etc.) that don't exist.
// Use this as a reference when creating new services.
//
//go:build ignore

package service

// TEMPLATE.go - Service Layer Pattern Template
//
// This file demonstrates the standard pattern for all services in the service layer.
// Use this as a reference when creating new services.
//
// KEY PRINCIPLES:
// 1. All services use Options struct pattern for dependency injection
// 2. All services have a constructor: NewXService(opts XServiceOptions) *XService
// 3. Services depend on port interfaces (internal/core, internal/ports), not concrete implementations
// 4. Optional dependencies are documented in the options struct and nil-checked before use
// 5. All methods accept context.Context as first parameter
// 6. Operations that act on behalf of a user take the auth.Session and re-check roles
//    themselves; route middleware is a fast path, not the enforcement point
// 7. Failures a handler maps to a status use typed errors from internal/errors;
//    infrastructure failures are wrapped with fmt.Errorf("operation: %w", err)
// 8. Parameter lists stay short: group request fields into a request struct,
//    effective state into a result struct
// 9. Business logic and orchestration belong in the service layer
// 10. Services never import from internal/data, internal/adapters, or internal/http

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/meridianbank/opsdesk/internal/core"
	"github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/domain/model"
	apperrors "github.com/meridianbank/opsdesk/internal/errors"
	"github.com/meridianbank/opsdesk/internal/observability/statsd"
)

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 1: Options Struct
// ═══════════════════════════════════════════════════════════════════════════

// ExampleServiceOptions groups dependencies for ExampleService.
//
// RULES:
// - Required dependencies are repository or port interfaces
// - Optional dependencies get an inline comment saying what degrades without them
// - Use meaningful field names (not abbreviations unless obvious)
type ExampleServiceOptions struct {
	Repo    core.ExampleRepository
	Cache   exampleCache // optional: without it every read hits the repository
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 2: Optional Interface Dependencies
// ═══════════════════════════════════════════════════════════════════════════

// exampleCache defines the minimal behavior required from a cache service.
// Define interfaces for optional dependencies to avoid tight coupling.
type exampleCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 3: Service Struct (private fields)
// ═══════════════════════════════════════════════════════════════════════════

// ExampleService provides business logic for example domain operations.
//
// RESPONSIBILITIES:
// - CRUD operations with business logic
// - Role enforcement against the calling session
// - Cross-repository orchestration
// - Caching strategies
// - Business rule enforcement
//
// DOES NOT:
// - Import from internal/data (depends on interfaces only)
// - Import from internal/http (transport layer depends on service, not vice versa)
// - Import from internal/adapters (adapters depend on service, not vice versa)
type ExampleService struct {
	repo    core.ExampleRepository
	cache   exampleCache
	logger  *slog.Logger
	metrics statsd.Sink
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 4: Constructor
// ═══════════════════════════════════════════════════════════════════════════

// NewExampleService constructs a new ExampleService.
//
// RULES:
// - Keep the constructor simple; wiring mistakes surface in tests, not panics
// - Tag the logger with the service's component name when one is supplied
// - Return a pointer to the service struct
func NewExampleService(opts ExampleServiceOptions) *ExampleService {
	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "example_service")
	}

	return &ExampleService{
		repo:    opts.Repo,
		cache:   opts.Cache,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 5: Session-Scoped Operations
// ═══════════════════════════════════════════════════════════════════════════

// Create creates a new example entity for the session's user.
//
// RULES:
// - Accept context.Context first, then the session, then the request
// - Ownership and identity come from the session, never from the payload
// - Validation failures use typed errors so handlers map them to 400
// - Repository failures are wrapped with operation context
func (s *ExampleService) Create(
	ctx context.Context,
	sess auth.Session,
	req *model.CreateExampleRequest,
) (*model.Example, error) {
	req.UserID = sess.UserID
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid example")
	}

	example, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create example: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "example created", "id", example.ID, "user_id", sess.UserID)
	}
	return example, nil
}

// GetByID retrieves one of the user's examples by ID.
//
// Role checks live here even when a route guard already ran: the service is
// also called from the admin CLI and background workers.
func (s *ExampleService) GetByID(ctx context.Context, sess auth.Session, id string) (*model.Example, error) {
	if !sess.Role.AtLeast(auth.RoleClerk) {
		return nil, apperrors.Forbidden("example access requires the clerk role")
	}

	example, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get example by id: %w", err)
	}

	// Someone else's entity must be indistinguishable from a missing one.
	if example.UserID != sess.UserID {
		return nil, apperrors.NotFound("example not found")
	}
	return example, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 6: Request/Result Structs
// ═══════════════════════════════════════════════════════════════════════════

// Functions never grow long positional parameter lists. Group inputs into a
// request struct and return effective state in a result struct so callers
// can echo back what actually happened after defaulting and clamping.

// ExampleListRequest identifies one page of the user's examples.
type ExampleListRequest struct {
	Dataset string
	Limit   int
	Offset  int
}

// ExampleListResult is the served page plus the effective paging values.
type ExampleListResult struct {
	Examples []*model.Example
	Limit    int
	Offset   int
}

// List retrieves a page of the user's examples.
func (s *ExampleService) List(
	ctx context.Context,
	sess auth.Session,
	req ExampleListRequest,
) (*ExampleListResult, error) {
	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 1000 {
		req.Limit = 1000
	}

	examples, err := s.repo.List(ctx, sess.UserID, req.Limit, req.Offset)
	if err != nil {
		return nil, fmt.Errorf("list examples: %w", err)
	}
	return &ExampleListResult{Examples: examples, Limit: req.Limit, Offset: req.Offset}, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 7: Optional Dependencies at the Call Site
// ═══════════════════════════════════════════════════════════════════════════

// Optional dependencies are nil-checked where they are used, usually behind
// a small helper so the main flow stays readable. Cache and metrics failures
// degrade, they never fail the request.

func (s *ExampleService) warn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}

func (s *ExampleService) emitRead(dataset string, hit bool) {
	if s.metrics == nil {
		return
	}
	tags := map[string]string{"dataset": dataset, "cache": cacheTag(hit)}
	s.metrics.Count("example.read", 1, tags)
}

func cacheTag(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 8: Orchestration Across Dependencies
// ═══════════════════════════════════════════════════════════════════════════

// Services compose other services when an operation spans concerns. The
// export service is the reference: it asks the dataset service for the
// filtered rows, renders them, and records the audit row. The composing
// service holds the narrower service as a field, not its repositories.
//
// When handing a failure up from a composed service, pass it through
// unwrapped: the typed code set by the inner service is what the handler
// maps to a status.

// ═══════════════════════════════════════════════════════════════════════════
// NOTES
// ═══════════════════════════════════════════════════════════════════════════
//
// When adding a new service:
//
// 1. Define the repository interface in internal/core (or the port in internal/ports)
// 2. Add the service here with the Options pattern and constructor
// 3. Generate the repository mock into internal/mocks (see tools/tools.go)
// 4. Write unit tests against the mock in the same package
// 5. Wire the service in internal/bootstrap and, if exposed, internal/http
//
// Common pitfalls:
// - Trusting user or owner IDs from a payload instead of the session
// - Returning raw repository errors where a typed code is needed for the status mapping
// - Importing from internal/data (use interfaces instead)
// - Skipping the role re-check because a route guard exists
// - Not checking optional dependencies for nil before use
