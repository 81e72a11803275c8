package web

// errors.go provides unified error response handling for the API.
//
// It ensures all errors are:
//   - Logged with full technical details for debugging (server-side)
//   - Returned to clients as user-friendly messages with action suggestions
//   - Given a status code derived from the error type
//
// The error flow:
//  1. Handler encounters an error
//  2. Calls respondError(w, r, err)
//  3. Error is mapped via core.MapError to get user-friendly message
//  4. Technical error + context is logged with request ID for correlation

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// errBadRequest marks malformed request bodies and parameters.
var errBadRequest = errors.New("invalid request body")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		mapping   *core.MappingIncompleteError
		unmatched *core.UnmatchedIdentifiersError
		recCall   *core.ReconciliationCallError
		aborted   *core.RunAbortedError
		tooLarge  *http.MaxBytesError
	)

	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, errFileTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case core.IsNotFound(err), errors.Is(err, core.ErrUnknownPipeline):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidTransition),
		errors.Is(err, core.ErrStaleReconciliation),
		errors.Is(err, core.ErrNotValidated):
		return http.StatusConflict
	case errors.Is(err, core.ErrTooManyExecutions):
		return http.StatusServiceUnavailable
	case errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrUnsupportedFile),
		errors.Is(err, core.ErrMissingContext),
		errors.Is(err, core.ErrInvalidHeaderRow),
		errors.Is(err, core.ErrInvalidMapping),
		errors.As(err, &mapping),
		errors.As(err, &unmatched):
		return http.StatusUnprocessableEntity
	case errors.As(err, &recCall), errors.As(err, &aborted):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError logs the technical error server-side and returns a
// user-friendly JSON error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	userMsg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request error", attrs...)
	} else {
		logger.Warn("request error", attrs...)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "5")
	}

	writeJSON(w, status, ErrorResponse{
		Error:   errorDetail(err),
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// errorDetail returns the message clients may see in the error field.
// Remote errors are passed through so the operator sees what the service
// said; internal errors are not.
func errorDetail(err error) string {
	if statusFor(err) == http.StatusInternalServerError {
		return "internal error"
	}
	return err.Error()
}

// logRequestError logs a failure that happens after the response has started.
func (s *Server) logRequestError(r *http.Request, msg string, err error) {
	logging.FromContext(r.Context()).Error(msg,
		"path", r.URL.Path,
		"method", r.Method,
		"error", err,
	)
}
