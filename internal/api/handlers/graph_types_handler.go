package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/graphrapids/graphapi/internal/api/types"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/services"
)

// DerivedHandler serves views computed from published collections:
// graph-type runtimes and catalogs, theme CSS and ad hoc icon resolution.
type DerivedHandler struct {
	svc      services.ConfigService
	validate Validator
}

func NewDerivedHandler(svc services.ConfigService, v Validator) *DerivedHandler {
	return &DerivedHandler{svc: svc, validate: v}
}

func (h *DerivedHandler) Runtime(w http.ResponseWriter, r *http.Request) {
	q, err := revisionQuery(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt, err := h.svc.Runtime(r.Context(), chi.URLParam(r, "id"), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, rt)
}

func (h *DerivedHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	q, err := revisionQuery(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cat, err := h.svc.Catalog(r.Context(), chi.URLParam(r, "id"), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, cat)
}

// ThemeCSS returns the compiled stylesheet as text/css.
func (h *DerivedHandler) ThemeCSS(w http.ResponseWriter, r *http.Request) {
	q, err := revisionQuery(r, "")
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := h.svc.Theme(r.Context(), chi.URLParam(r, "id"), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/css; charset=utf-8")
	w.Header().Set("ETag", `"`+doc.Checksum+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(doc.RenderCSS))
}

func (h *DerivedHandler) ResolveIcons(w http.ResponseWriter, r *http.Request) {
	var req types.IconResolveRequest
	if err := decode(r, h.validate, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.ResolveIcons(r.Context(), &services.ResolveIconsInput{
		Stage:       models.Stage(req.Stage),
		Policy:      req.Policy,
		IconSetRefs: req.IconSetRefs,
		TypeIconMap: req.TypeIconMap,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, res)
}
