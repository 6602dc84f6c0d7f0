package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/meridianbank/opsdesk/internal/catalog"
	"github.com/meridianbank/opsdesk/internal/core"
	"github.com/meridianbank/opsdesk/internal/data"
	"github.com/meridianbank/opsdesk/internal/domain/auth"
	"github.com/meridianbank/opsdesk/internal/domain/model"
	apperrors "github.com/meridianbank/opsdesk/internal/errors"
)

// ViewServiceOptions groups dependencies for ViewService.
type ViewServiceOptions struct {
	Repo    core.SavedViewRepository
	Catalog *catalog.Catalog
}

// ViewService manages saved views: named view states a user has pinned for
// a dataset. Every operation is scoped to the calling session's user;
// another user's view behaves exactly like a missing one.
type ViewService struct {
	repo    core.SavedViewRepository
	catalog *catalog.Catalog
}

// NewViewService constructs a new ViewService.
func NewViewService(opts ViewServiceOptions) *ViewService {
	return &ViewService{repo: opts.Repo, catalog: opts.Catalog}
}

// Create saves a new view for the session's user. The dataset must exist
// and be visible to the session's role.
func (s *ViewService) Create(ctx context.Context, sess auth.Session, req *model.CreateSavedViewRequest) (*model.SavedView, error) {
	if req == nil {
		return nil, apperrors.Validation("create request is required")
	}

	// Ownership comes from the session, never from the payload.
	req.UserID = sess.UserID
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid saved view")
	}

	d, ok := s.catalog.Dataset(req.Dataset)
	if !ok {
		return nil, apperrors.NotFoundf("unknown dataset %q", req.Dataset)
	}
	if !d.VisibleTo(sess.Role) {
		return nil, apperrors.Forbiddenf("dataset %q requires the %s role", d.Key, d.MinRole)
	}

	view, err := s.repo.Create(ctx, req)
	if err != nil {
		if errors.Is(err, data.ErrViewNameExists) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeConflict, "view name already in use")
		}
		return nil, fmt.Errorf("create saved view: %w", err)
	}
	return view, nil
}

// Get returns one of the user's saved views by ID.
func (s *ViewService) Get(ctx context.Context, sess auth.Session, id string) (*model.SavedView, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperrors.Validation("view ID is required")
	}

	view, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, data.ErrViewNotFound) {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeNotFound, "saved view not found")
		}
		return nil, fmt.Errorf("get saved view: %w", err)
	}

	// Someone else's view must be indistinguishable from a missing one.
	if view.UserID != sess.UserID {
		return nil, apperrors.NotFound("saved view not found")
	}
	return view, nil
}

// List returns the user's saved views ordered by name, optionally narrowed
// to one dataset.
func (s *ViewService) List(ctx context.Context, sess auth.Session, dataset string) ([]*model.SavedView, error) {
	opts := model.SavedViewListOptions{
		UserID:  sess.UserID,
		Dataset: strings.TrimSpace(dataset),
	}

	views, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list saved views: %w", err)
	}
	return views, nil
}

// Update renames one of the user's views or replaces its stored state.
func (s *ViewService) Update(ctx context.Context, sess auth.Session, id string, req model.UpdateSavedViewRequest) (*model.SavedView, error) {
	if err := req.Validate(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "invalid saved view update")
	}

	if _, err := s.Get(ctx, sess, id); err != nil {
		return nil, err
	}

	view, err := s.repo.Update(ctx, id, req)
	if err != nil {
		switch {
		case errors.Is(err, data.ErrViewNotFound):
			return nil, apperrors.Wrap(err, apperrors.ErrCodeNotFound, "saved view not found")
		case errors.Is(err, data.ErrViewNameExists):
			return nil, apperrors.Wrap(err, apperrors.ErrCodeConflict, "view name already in use")
		default:
			return nil, fmt.Errorf("update saved view: %w", err)
		}
	}
	return view, nil
}

// Delete removes one of the user's saved views.
func (s *ViewService) Delete(ctx context.Context, sess auth.Session, id string) error {
	if _, err := s.Get(ctx, sess, id); err != nil {
		return err
	}

	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("delete saved view: %w", err)
	}
	if !deleted {
		return apperrors.NotFound("saved view not found")
	}
	return nil
}
