package handlers

import (
	"errors"
	"net/http"

	"admindash/internal/logging"
	"admindash/internal/service"
	"admindash/internal/validation"
)

type errorResponse struct {
	Message       string `json:"message"`
	NotAuthorized bool   `json:"notAuthorized,omitempty"`
}

// errorStatus maps service errors to HTTP responses
var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{service.ErrInvalidOrExpiredCode, http.StatusUnauthorized, "Invalid or expired verification code"},
	{service.ErrUnauthenticated, http.StatusUnauthorized, MsgUnauthorized},
	{service.ErrPendingApproval, http.StatusForbidden, "Your account is pending approval. Please contact an administrator."},
	{service.ErrAccountExpired, http.StatusForbidden, "Your account has expired. Please contact an administrator."},
	{service.ErrForbidden, http.StatusForbidden, MsgForbidden},
	{service.ErrEmailTaken, http.StatusBadRequest, "Email already registered"},
	{service.ErrInvalidOrExpiredToken, http.StatusBadRequest, "Invalid or expired token"},
	{service.ErrSelfDelete, http.StatusBadRequest, "Cannot delete your own account"},
	{service.ErrSelfDemotion, http.StatusBadRequest, "Cannot remove your own admin role"},
	{service.ErrNotFound, http.StatusNotFound, MsgUserNotFound},
	{service.ErrTooManyAttempts, http.StatusTooManyRequests, MsgTooManyRequests},
}

// classifyError returns the status and body for err.
// Anything unrecognised is an internal error.
func classifyError(err error) (int, errorResponse) {
	var ve *validation.Error
	if errors.As(err, &ve) {
		return http.StatusBadRequest, errorResponse{Message: ve.Message}
	}
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			return e.status, errorResponse{
				Message:       e.message,
				NotAuthorized: errors.Is(err, service.ErrPendingApproval),
			}
		}
	}
	return http.StatusInternalServerError, errorResponse{Message: MsgInternalServerError}
}

// respondWithError writes the JSON error for err. Internal errors are logged
// in full and reach the client only as a generic message.
func respondWithError(w http.ResponseWriter, r *http.Request, log logging.Logger, err error) {
	status, body := classifyError(err)
	if status >= http.StatusInternalServerError {
		log.Error(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}
