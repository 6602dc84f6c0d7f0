// Package mocks provides mock implementations for testing the opsdesk service layer.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockRepo := mocks.NewMockSavedViewRepository(ctrl)
//	mockRepo.EXPECT().Create(gomock.Any(), gomock.Any()).Return(view, nil)
package mocks

// Generate mock for SavedViewRepository interface from internal/core package.
// This creates MockSavedViewRepository with methods for all SavedViewRepository interface methods:
// Create, GetByID, List, Update, Delete
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=saved_view_repository_mock.go github.com/meridianbank/opsdesk/internal/core SavedViewRepository

// Generate mock for ExportRepository interface from internal/core package.
// This creates MockExportRepository with methods for all ExportRepository interface methods:
// Create, GetByID, List, Count, DeleteOlderThan
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=export_repository_mock.go github.com/meridianbank/opsdesk/internal/core ExportRepository

// Generate mock for UpstreamSource interface from internal/core package.
// This creates MockUpstreamSource with methods for all UpstreamSource interface methods:
// FetchCollection
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=upstream_source_mock.go github.com/meridianbank/opsdesk/internal/core UpstreamSource
