//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/meridianbank/opsdesk/internal/resultset"
)

const (
	maxViewNameLen = 255
)

// SavedView is a named, persisted view state: the filters, sort, and page a
// user has pinned for one dataset. Views belong to the user who saved them.
type SavedView struct {
	ID        string              `json:"id"         db:"id"`
	UserID    string              `json:"user_id"    db:"user_id"`
	Dataset   string              `json:"dataset"    db:"dataset"`
	Name      string              `json:"name"       db:"name"`
	State     resultset.ViewState `json:"state"      db:"state"`
	CreatedAt time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt time.Time           `json:"updated_at" db:"updated_at"`
}

// CreateSavedViewRequest represents parameters to create a SavedView.
type CreateSavedViewRequest struct {
	UserID  string              `json:"user_id"`
	Dataset string              `json:"dataset"`
	Name    string              `json:"name"`
	State   resultset.ViewState `json:"state"`
}

// UpdateSavedViewRequest represents parameters to update a SavedView.
type UpdateSavedViewRequest struct {
	Name  *string              `json:"name,omitempty"`
	State *resultset.ViewState `json:"state,omitempty"`
}

// SavedViewListOptions controls filtering for listing saved views.
// Views are always scoped to a user; Dataset narrows further when set.
type SavedViewListOptions struct {
	UserID  string
	Dataset string
}

// Validate validates CreateSavedViewRequest.
func (r *CreateSavedViewRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.Dataset) == "" {
		return errors.New("dataset is required")
	}
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return errors.New("name is required and cannot be empty")
	}
	if utf8.RuneCountInString(name) > maxViewNameLen {
		return errors.New("name cannot exceed 255 characters")
	}
	r.Name = name
	return nil
}

// HasUpdates reports whether any field is set in UpdateSavedViewRequest.
func (r *UpdateSavedViewRequest) HasUpdates() bool {
	return r.Name != nil || r.State != nil
}

// Validate validates UpdateSavedViewRequest, ensuring at least one field is set and values are sane.
func (r *UpdateSavedViewRequest) Validate() error {
	if !r.HasUpdates() {
		return errors.New("at least one field must be updated")
	}
	if r.Name != nil {
		n := strings.TrimSpace(*r.Name)
		if n == "" {
			return errors.New("name cannot be empty")
		}
		if utf8.RuneCountInString(n) > maxViewNameLen {
			return errors.New("name cannot exceed 255 characters")
		}
		*r.Name = n
	}
	return nil
}
