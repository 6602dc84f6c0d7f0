// This file is a documentation template and should not be compiled.
// It uses placeholder types (ExampleService, ExampleRepository, etc.) that don't exist.
// Use this as a reference when writing tests for services.
//
//go:build ignore

package service

// TEMPLATE_test.go - Service Testing Pattern Examples
//
// This file demonstrates standard testing patterns for services.
// Use these patterns when writing tests for new services.

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/domain/model"
	apperrors "github.com/meridianbank/opsdesk/internal/errors"
	"github.com/meridianbank/opsdesk/internal/mocks"
)

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 1: Shared Constructor Helper
// ═══════════════════════════════════════════════════════════════════════════

// Each service test file has one helper that wires the service over its
// mocks. The controller finishes via t.Cleanup, so tests never leak unmet
// expectations.

func newExampleService(t *testing.T) (*mocks.MockExampleRepository, *ExampleService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	repo := mocks.NewMockExampleRepository(ctrl)
	service := NewExampleService(ExampleServiceOptions{Repo: repo})
	return repo, service
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 2: Success Path with Exact Expectations
// ═══════════════════════════════════════════════════════════════════════════

// Pass context.Background() explicitly and expect it exactly; gomock.Any()
// for the context is reserved for handler-level tests where middleware
// decorates the context.

func TestExampleService_Create_Success(t *testing.T) {
	t.Parallel()
	repo, service := newExampleService(t)

	ctx := context.Background()
	repo.EXPECT().
		Create(ctx, gomock.Any()).
		DoAndReturn(func(_ context.Context, req *model.CreateExampleRequest) (*model.Example, error) {
			// Echo the request back as the stored entity so assertions
			// cover what the service actually sent.
			return &model.Example{ID: "example-1", UserID: req.UserID, Name: req.Name}, nil
		}).
		Times(1)

	got, err := service.Create(ctx, clerkSession(), &model.CreateExampleRequest{Name: "test-example"})

	require.NoError(t, err)
	assert.Equal(t, "example-1", got.ID)
	// Ownership must come from the session, never from the payload.
	assert.Equal(t, clerkSession().UserID, got.UserID)
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 3: Error Paths Assert the Typed Code
// ═══════════════════════════════════════════════════════════════════════════

// Handlers map typed codes to statuses, so service tests pin the code, not
// just the message. Repository errors stay reachable through errors.Is.

func TestExampleService_Create_RepositoryError(t *testing.T) {
	t.Parallel()
	repo, service := newExampleService(t)

	ctx := context.Background()
	repoErr := errors.New("database connection failed")
	repo.EXPECT().
		Create(ctx, gomock.Any()).
		Return(nil, repoErr).
		Times(1)

	got, err := service.Create(ctx, clerkSession(), &model.CreateExampleRequest{Name: "test"})

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "create example")
	assert.ErrorIs(t, err, repoErr)
}

func TestExampleService_Create_ValidationError(t *testing.T) {
	t.Parallel()
	_, service := newExampleService(t)

	got, err := service.Create(context.Background(), clerkSession(), &model.CreateExampleRequest{Name: "  "})

	require.Error(t, err)
	assert.Nil(t, got)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.GetCode(err))
}

func TestExampleService_GetByID_Forbidden(t *testing.T) {
	t.Parallel()
	_, service := newExampleService(t)

	guest := clerkSession()
	guest.Role = auth.RoleGuest

	got, err := service.GetByID(context.Background(), guest, "example-1")

	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, apperrors.IsForbidden(err))
}

func TestExampleService_GetByID_OtherUsersEntity(t *testing.T) {
	t.Parallel()
	repo, service := newExampleService(t)

	ctx := context.Background()
	repo.EXPECT().
		GetByID(ctx, "example-1").
		Return(&model.Example{ID: "example-1", UserID: "someone-else"}, nil).
		Times(1)

	got, err := service.GetByID(ctx, clerkSession(), "example-1")

	// Someone else's entity is indistinguishable from a missing one.
	require.Error(t, err)
	assert.Nil(t, got)
	assert.True(t, apperrors.IsNotFound(err))
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 4: Table-Driven Tests for Normalization
// ═══════════════════════════════════════════════════════════════════════════

func TestExampleService_List_PaginationNormalization(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		inputLimit  int
		expectLimit int
	}{
		{name: "zero limit defaults to 50", inputLimit: 0, expectLimit: 50},
		{name: "negative limit defaults to 50", inputLimit: -10, expectLimit: 50},
		{name: "limit over 1000 capped", inputLimit: 5000, expectLimit: 1000},
		{name: "valid limit passed through", inputLimit: 100, expectLimit: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo, service := newExampleService(t)

			ctx := context.Background()
			repo.EXPECT().
				List(ctx, clerkSession().UserID, tt.expectLimit, 0).
				Return([]*model.Example{}, nil).
				Times(1)

			result, err := service.List(ctx, clerkSession(), ExampleListRequest{Limit: tt.inputLimit})

			require.NoError(t, err)
			// The result echoes the effective limit after normalization.
			assert.Equal(t, tt.expectLimit, result.Limit)
		})
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// NOTES FOR TEST WRITING
// ═══════════════════════════════════════════════════════════════════════════
//
// Best Practices:
// 1. Use gomock for repository interfaces; hand-written doubles from
//    internal/mocks/auth for the auth ports
// 2. Use testify/require for assertions that should stop the test
// 3. Use testify/assert for assertions that should continue
// 4. Call t.Parallel() in every service test; shared fixtures return fresh values
// 5. Pin typed error codes with apperrors.GetCode / IsNotFound / IsForbidden
// 6. Use the session fixtures (clerkSession, managerSession) and tweak a
//    copy when a test needs an unusual role
// 7. Name tests clearly: TestServiceName_MethodName_Scenario
// 8. Keep tests focused (one behavior per test)
// 9. Use table-driven tests for normalization and clamping rules
// 10. When a mock should echo its input, use DoAndReturn, not a canned value
