package httpx

import (
	"errors"
	"net/http"

	"github.com/meridianbank/opsdesk/internal/domain/model"
	"github.com/meridianbank/opsdesk/internal/service"
)

// ViewHandlers provides HTTP handlers for saved view operations. Views are
// owner-scoped: the service resolves ownership from the session, so no
// handler here trusts IDs or user fields from the payload.
type ViewHandlers struct {
	Svc *service.ViewService
}

// Create handles POST /api/views.
func (h *ViewHandlers) Create(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	var req model.CreateSavedViewRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	view, err := h.Svc.Create(r.Context(), sess, &req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, view)
}

// List handles GET /api/views. The optional dataset query param narrows the
// listing to one dataset's views.
func (h *ViewHandlers) List(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	views, err := h.Svc.List(r.Context(), sess, r.URL.Query().Get("dataset"))
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]any{"views": views})
}

// GetByID handles GET /api/views/{id}.
func (h *ViewHandlers) GetByID(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("view id is required")},
		)
		return
	}

	view, err := h.Svc.Get(r.Context(), sess, id)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

// Update handles PUT /api/views/{id}. The payload carries only the fields to
// change; omitted fields keep their stored values.
func (h *ViewHandlers) Update(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("view id is required")},
		)
		return
	}

	var req model.UpdateSavedViewRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	view, err := h.Svc.Update(r.Context(), sess, id, req)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, view)
}

// Delete handles DELETE /api/views/{id}.
func (h *ViewHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	sess, ok := requireSession(w, r)
	if !ok {
		return
	}

	id := r.PathValue("id")
	if id == "" {
		WriteError(
			w,
			ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_path", Err: errors.New("view id is required")},
		)
		return
	}

	if err := h.Svc.Delete(r.Context(), sess, id); err != nil {
		WriteAppError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
