package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nammaooru/civic-reports/internal/domain"
	"github.com/nammaooru/civic-reports/pkg/logger"
)

// ErrorResponse is the JSON error envelope returned by every handler.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

const (
	CodeInvalidInput  = "INVALID_INPUT"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeRateLimit     = "RATE_LIMIT_EXCEEDED"
	CodeInternalError = "INTERNAL_ERROR"
	CodeEmailExists   = "EMAIL_EXISTS"
	CodeNotVerified   = "EMAIL_NOT_VERIFIED"
)

func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, statusCode int, message, code string) {
	WriteJSON(w, statusCode, ErrorResponse{Error: message, Code: code})
}

// WriteDomainError maps the service error taxonomy onto HTTP. Every
// authentication failure collapses to the same message so callers cannot
// probe which check rejected them.
func WriteDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeInvalidInput)
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrOTPNotFound),
		errors.Is(err, domain.ErrOTPExpired):
		WriteError(w, http.StatusUnauthorized, "Invalid credentials", CodeUnauthorized)
	case errors.Is(err, domain.ErrNotVerified):
		WriteError(w, http.StatusUnauthorized, "Email not verified. Please verify your email first.", CodeNotVerified)
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "Insufficient permissions", CodeForbidden)
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "Not found", CodeNotFound)
	case errors.Is(err, domain.ErrEmailExists):
		WriteError(w, http.StatusConflict, "A user with this email already exists", CodeEmailExists)
	case errors.Is(err, domain.ErrInvalidStatus):
		WriteError(w, http.StatusBadRequest, err.Error(), CodeInvalidInput)
	case errors.Is(err, domain.ErrAlreadyClosed):
		WriteError(w, http.StatusConflict, "Report is closed and can no longer be updated", CodeConflict)
	default:
		logger.Error("Unhandled service error", "error", err)
		WriteError(w, http.StatusInternalServerError, "Internal server error", CodeInternalError)
	}
}

func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, CodeForbidden)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}
