package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/graphrapids/graphapi/internal/api/middleware"
	"github.com/graphrapids/graphapi/internal/api/types"
	"github.com/graphrapids/graphapi/internal/models"
	"github.com/graphrapids/graphapi/internal/services"
	appErr "github.com/graphrapids/graphapi/pkg/errors"
	"github.com/graphrapids/graphapi/pkg/logger"
)

// Validator is the part of validator.Validate the handlers use.
type Validator interface{ Struct(any) error }

// NewValidator returns the request validator shared by the handlers.
func NewValidator() Validator {
	return validator.New(validator.WithRequiredStructEnabled())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, types.APIResponse{Success: true, Data: data, Meta: &types.Meta{RequestID: middleware.GetRequestID(r.Context())}})
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := types.StatusOf(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, types.APIResponse{
		Success: false,
		Error:   types.FromAppError(err),
		Meta:    &types.Meta{RequestID: middleware.GetRequestID(r.Context())},
	})
}

// decode reads a JSON body keeping numbers exact, then validates it.
func decode(r *http.Request, v Validator, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return appErr.Wrap(err, appErr.CodeInvalid, "request body too large")
		}
		if errors.Is(err, io.EOF) {
			return appErr.New(appErr.CodeInvalid, "request body is empty")
		}
		return appErr.Wrap(err, appErr.CodeInvalid, "invalid json")
	}
	if err := v.Struct(dst); err != nil {
		return appErr.Wrap(err, appErr.CodeInvalid, "request validation failed")
	}
	return nil
}

// revisionQuery reads stage, version and checksum query parameters.
func revisionQuery(r *http.Request, stage models.Stage) (services.RevisionQuery, error) {
	q := services.RevisionQuery{Stage: stage, Checksum: r.URL.Query().Get("checksum")}
	if s := r.URL.Query().Get("stage"); s != "" && stage == "" {
		switch models.Stage(s) {
		case models.StageDraft, models.StagePublished:
			q.Stage = models.Stage(s)
		default:
			return q, appErr.Newf(appErr.CodeInvalid, "stage %q must be draft or published", s)
		}
	}
	if s := r.URL.Query().Get("version"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return q, appErr.Newf(appErr.CodeInvalid, "version %q must be a non-negative integer", s)
		}
		q.Version = n
	}
	return q, nil
}
