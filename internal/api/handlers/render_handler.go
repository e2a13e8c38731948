package handlers

import (
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/graphrapids/graphapi/internal/api/types"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/services"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

type RenderHandler struct {
	svc      services.RenderService
	validate Validator
}

func NewRenderHandler(svc services.RenderService, v Validator) *RenderHandler {
	return &RenderHandler{svc: svc, validate: v}
}

// input accepts either a JSON RenderRequest or a raw YAML body with the
// options in the query string.
func (h *RenderHandler) input(r *http.Request) (*services.RenderInput, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "" || ct == "application/json" {
		var req types.RenderRequest
		if err := decode(r, h.validate, &req); err != nil {
			return nil, err
		}
		return &services.RenderInput{
			YAML:        req.YAML,
			GraphTypeID: req.GraphTypeID,
			Stage:       models.Stage(req.Stage),
			Version:     req.Version,
			ThemeID:     req.ThemeID,
		}, nil
	}
	if !strings.Contains(ct, "yaml") && ct != "text/plain" {
		return nil, appErr.Newf(appErr.CodeInvalid, "unsupported content type %q", ct)
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "read request body failed")
	}
	q := r.URL.Query()
	req := types.RenderRequest{
		YAML:        string(body),
		GraphTypeID: q.Get("graphTypeId"),
		Stage:       q.Get("stage"),
		ThemeID:     q.Get("themeId"),
	}
	if s := q.Get("version"); s != "" {
		if req.Version, err = strconv.Atoi(s); err != nil {
			return nil, appErr.Newf(appErr.CodeInvalid, "version %q must be an integer", s)
		}
	}
	if err := h.validate.Struct(&req); err != nil {
		return nil, appErr.Wrap(err, appErr.CodeInvalid, "request validation failed")
	}
	return &services.RenderInput{YAML: req.YAML, GraphTypeID: req.GraphTypeID, Stage: models.Stage(req.Stage), Version: req.Version, ThemeID: req.ThemeID}, nil
}

// SVG renders synchronously and returns image/svg+xml.
func (h *RenderHandler) SVG(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.RenderSVG(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("X-Runtime-Checksum", res.RuntimeChecksum)
	if res.ThemeChecksum != "" {
		w.Header().Set("X-Theme-Checksum", res.ThemeChecksum)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.SVG)
}

func (h *RenderHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	in, err := h.input(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	job, err := h.svc.SubmitJob(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/render/jobs/"+job.ID)
	writeData(w, r, http.StatusAccepted, job)
}

func (h *RenderHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.svc.GetJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, job)
}
