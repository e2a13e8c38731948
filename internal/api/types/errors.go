package types

import (
	"net/http"

	appErr "github.com/graphrapids/graphapi/pkg/errors"
)

func FromAppError(err error) *APIError {
	if err == nil {
		return nil
	}
	if e, ok := appErr.As(err); ok {
		return &APIError{Code: string(e.Code), Message: e.Message, Meta: e.Meta}
	}
	return &APIError{Code: string(appErr.CodeUnknown), Message: err.Error()}
}

// StatusOf maps an error code to its HTTP status.
func StatusOf(err error) int {
	switch appErr.CodeOf(err) {
	case appErr.CodeNotFound, appErr.CodeNoPublishedVersion, appErr.CodeEntryNotFound:
		return http.StatusNotFound
	case appErr.CodeAlreadyExists, appErr.CodeConflictingIconDefinition, appErr.CodeChecksumMismatch, appErr.CodeConflict:
		return http.StatusConflict
	case appErr.CodeUnresolvedReference:
		return http.StatusUnprocessableEntity
	case appErr.CodeInvalid, appErr.CodeMalformedContent, appErr.CodeInvalidVariableType:
		return http.StatusBadRequest
	case appErr.CodeBusy, appErr.CodeUnavailable:
		return http.StatusServiceUnavailable
	case appErr.CodeDeadline:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
