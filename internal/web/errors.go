package web

// errors.go provides unified error response handling for the web layer.
//
// Every failure is logged with its technical detail and request ID, then
// mapped through core.MapError and returned as JSON, an HTMX fragment, or
// the full page with an alert, depending on who asked.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/JonMunkholm/woundcare/internal/core"
	"github.com/JonMunkholm/woundcare/internal/logging"
	"github.com/JonMunkholm/woundcare/internal/web/templates"
	"github.com/JonMunkholm/woundcare/internal/workbook"
)

var (
	errRateLimited = errors.New("rate limit exceeded")
	errNoFile      = errors.New("no file provided")
	errFileTooBig  = errors.New("file too large")
)

// FileError ties an upload failure to its form field.
type FileError struct {
	Field string
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
	Field   string `json:"field,omitempty"`
}

// statusFor picks the HTTP status for an error.
func statusFor(err error) int {
	var (
		colErr  *core.ColumnError
		sizeErr *http.MaxBytesError
	)
	switch {
	case errors.As(err, &colErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &sizeErr), errors.Is(err, errFileTooBig):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrMissingInput), errors.Is(err, workbook.ErrEmptyWorkbook):
		return http.StatusBadRequest
	}

	var fileErr *FileError
	if errors.As(err, &fileErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped user message.
// Errors without a known mapping (ERR000) always log at error level.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ue := core.NewUserError(err)
	userMsg := ue.User

	logger := logging.FromContext(r.Context())
	if !core.IsUserFacing(err) || (status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable) {
		logger.Error("request error", "path", r.URL.Path, "status", status, "error", ue.Technical, "code", userMsg.Code)
	} else {
		logger.Warn("request rejected", "path", r.URL.Path, "status", status, "error", ue.Technical, "code", userMsg.Code)
	}

	if errors.Is(err, core.ErrTooManyRuns) {
		w.Header().Set("Retry-After", "5")
	}

	switch {
	case isHTMX(r):
		renderErrorPartial(w, r, userMsg, status)
	case wantsJSON(r):
		resp := ErrorResponse{Error: ue.Error(), Message: userMsg.Message, Action: userMsg.Action, Code: userMsg.Code}
		var fileErr *FileError
		if errors.As(ue, &fileErr) {
			resp.Field = fileErr.Field
		}
		writeErrorJSON(w, resp, status)
	default:
		s.renderPage(w, r, templates.PageData{
			Alert: &templates.AlertData{Message: userMsg.Message, Action: userMsg.Action, Code: userMsg.Code},
		}, status)
	}
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg core.UserMessage, statusCode int) {
	writeErrorJSON(w, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}, statusCode)
}

func writeErrorJSON(w http.ResponseWriter, resp ErrorResponse, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(resp)
}

// renderErrorPartial renders an HTMX-compatible error fragment.
func renderErrorPartial(w http.ResponseWriter, r *http.Request, msg core.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	if err := templates.ErrorAlert(msg.Message, msg.Action, msg.Code).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error alert", "error", err)
	}
}

// isHTMX checks if the request is an HTMX request.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON checks if the client prefers JSON response.
// Browsers posting the upload form ask for HTML; other API callers get JSON.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	if strings.Contains(accept, "text/html") {
		return false
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
