package data

import "errors"

// Shared sentinel errors for data-layer repositories.
var (
	// Saved view repository sentinels.
	ErrViewNotFound   = errors.New("saved view not found")
	ErrViewNameExists = errors.New("view name already exists for this dataset")

	// Export audit repository sentinels.
	ErrExportNotFound = errors.New("export record not found")
)
