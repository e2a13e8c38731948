package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/graphrapids/graphapi/internal/api/middleware"
	"github.com/graphrapids/graphapi/internal/api/types"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/services"
)

// CollectionsHandler serves the lifecycle endpoints shared by every kind.
// Each method binds the kind at route registration.
type CollectionsHandler struct {
	svc      services.ConfigService
	validate Validator
}

func NewCollectionsHandler(svc services.ConfigService, v Validator) *CollectionsHandler {
	return &CollectionsHandler{svc: svc, validate: v}
}

func (h *CollectionsHandler) List(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.svc.List(r.Context(), kind)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, types.APIResponse{
			Success: true,
			Data:    items,
			Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context()), Total: len(items)},
		})
	}
}

func (h *CollectionsHandler) Create(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CollectionCreateRequest
		if err := decode(r, h.validate, &req); err != nil {
			writeError(w, r, err)
			return
		}
		e, err := h.svc.Create(r.Context(), kind, &services.CreateInput{ID: req.ID, Name: req.Name, Entries: req.Entries, Document: req.Document})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusCreated, e)
	}
}

func (h *CollectionsHandler) Get(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := h.svc.Get(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, e)
	}
}

// Revision serves /draft and /published; stage is fixed by the route.
func (h *CollectionsHandler) Revision(kind models.Kind, stage models.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := revisionQuery(r, stage)
		if err != nil {
			writeError(w, r, err)
			return
		}
		rev, err := h.svc.Revision(r.Context(), kind, chi.URLParam(r, "id"), q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, rev)
	}
}

func (h *CollectionsHandler) Replace(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.DraftReplaceRequest
		if err := decode(r, h.validate, &req); err != nil {
			writeError(w, r, err)
			return
		}
		e, err := h.svc.Replace(r.Context(), kind, chi.URLParam(r, "id"), &services.ReplaceInput{Name: req.Name, Entries: req.Entries, Document: req.Document})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, e)
	}
}

func (h *CollectionsHandler) UpsertEntry(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.EntryUpsertRequest
		if err := decode(r, h.validate, &req); err != nil {
			writeError(w, r, err)
			return
		}
		e, err := h.svc.UpsertEntry(r.Context(), kind, chi.URLParam(r, "id"), chi.URLParam(r, "key"), req.Value)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, e)
	}
}

func (h *CollectionsHandler) DeleteEntry(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := h.svc.DeleteEntry(r.Context(), kind, chi.URLParam(r, "id"), chi.URLParam(r, "key"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, e)
	}
}

func (h *CollectionsHandler) Publish(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		e, err := h.svc.Publish(r.Context(), kind, chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, e)
	}
}

func (h *CollectionsHandler) Bundle(kind models.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := revisionQuery(r, "")
		if err != nil {
			writeError(w, r, err)
			return
		}
		b, err := h.svc.Bundle(r.Context(), kind, chi.URLParam(r, "id"), q)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, r, http.StatusOK, b)
	}
}
