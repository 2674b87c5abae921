package api

import (
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	domainerrors "github.com/bookhaven/bookhaven-server/internal/errors"
	"github.com/bookhaven/bookhaven-server/internal/store"
)

// APIError implements huma.StatusError with the code/message/details
// shape the rest of the API uses.
type APIError struct { //nolint:revive // API prefix is intentional for clarity
	status  int
	Code    string `json:"code" doc:"Machine-readable error code"`
	Message string `json:"message" doc:"Human-readable error message"`
	Details any    `json:"details,omitempty" doc:"Additional error details"`
}

func (e *APIError) Error() string { return e.Message }

// GetStatus implements huma.StatusError.
func (e *APIError) GetStatus() int { return e.status }

// ContentType returns the content type for the error response.
func (e *APIError) ContentType(_ string) string { return "application/json" }

// RegisterErrorHandler replaces huma's error constructor so domain and
// store errors surface with their own codes and statuses. Call after
// creating the huma.API, before registering routes.
func RegisterErrorHandler() {
	huma.NewError = func(status int, message string, errs ...error) huma.StatusError {
		for _, err := range errs {
			var domainErr *domainerrors.Error
			if errors.As(err, &domainErr) {
				return &APIError{
					status:  domainErr.HTTPStatus(),
					Code:    string(domainErr.Code),
					Message: domainErr.Message,
					Details: domainErr.Details,
				}
			}
			if isNotFoundError(err) {
				return &APIError{
					status:  http.StatusNotFound,
					Code:    string(domainerrors.CodeNotFound),
					Message: err.Error(),
				}
			}
		}
		return &APIError{status: status, Code: statusToCode(status), Message: message}
	}
}

var storeNotFoundErrs = []error{
	store.ErrBookNotFound,
	store.ErrRatingNotFound,
	store.ErrSavedBookNotFound,
	store.ErrUserNotFound,
	store.ErrSessionNotFound,
}

func isNotFoundError(err error) bool {
	var storeErr *store.Error
	if errors.As(err, &storeErr) && storeErr.HTTPCode() == http.StatusNotFound {
		return true
	}
	for _, sentinel := range storeNotFoundErrs {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// statusToCode picks a domain error code for plain HTTP statuses.
func statusToCode(status int) string {
	codes := map[int]domainerrors.Code{
		http.StatusBadRequest:   domainerrors.CodeValidation,
		http.StatusUnauthorized: domainerrors.CodeUnauthorized,
		http.StatusForbidden:    domainerrors.CodeForbidden,
		http.StatusNotFound:     domainerrors.CodeNotFound,
		http.StatusConflict:     domainerrors.CodeConflict,
	}
	if code, ok := codes[status]; ok {
		return string(code)
	}
	return string(domainerrors.CodeInternal)
}
