package graph

import (
	"context"
	"errors"

	"admindash/internal/logging"
	"admindash/internal/service"
	"admindash/internal/validation"
)

// Error codes reported in extensions.code
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeNotFound        = "NOT_FOUND"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
)

// Error is a resolver error carrying a machine readable code
type Error struct {
	Message string
	Code    string
	Extra   map[string]interface{}
}

func (e *Error) Error() string { return e.Message }

// Extensions is read by the executor and copied into the response
func (e *Error) Extensions() map[string]interface{} {
	ext := map[string]interface{}{"code": e.Code}
	for k, v := range e.Extra {
		ext[k] = v
	}
	return ext
}

var errorCodes = []struct {
	err     error
	code    string
	message string
}{
	{service.ErrInvalidCredentials, CodeUnauthenticated, "Invalid email or password"},
	{service.ErrInvalidOrExpiredCode, CodeUnauthenticated, "Invalid or expired verification code"},
	{service.ErrUnauthenticated, CodeUnauthenticated, "Unauthorized"},
	{service.ErrPendingApproval, CodeForbidden, "Your account is pending approval. Please contact an administrator."},
	{service.ErrAccountExpired, CodeForbidden, "Your account has expired. Please contact an administrator."},
	{service.ErrForbidden, CodeForbidden, "Forbidden"},
	{service.ErrEmailTaken, CodeBadUserInput, "Email already registered"},
	{service.ErrInvalidOrExpiredToken, CodeBadUserInput, "Invalid or expired token"},
	{service.ErrSelfDelete, CodeBadUserInput, "Cannot delete your own account"},
	{service.ErrSelfDemotion, CodeBadUserInput, "Cannot remove your own admin role"},
	{service.ErrNotFound, CodeNotFound, "User not found"},
	{service.ErrTooManyAttempts, CodeTooManyRequests, "Too many requests, please try again later"},
}

// toError converts a service error into a resolver error. Unknown errors
// are logged and hidden behind a generic message.
func toError(ctx context.Context, log logging.Logger, err error) error {
	var ve *validation.Error
	if errors.As(err, &ve) {
		return &Error{Message: ve.Message, Code: CodeBadUserInput, Extra: map[string]interface{}{"field": ve.Field}}
	}
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			out := &Error{Message: e.message, Code: e.code}
			if errors.Is(err, service.ErrPendingApproval) {
				out.Extra = map[string]interface{}{"notAuthorized": true}
			}
			return out
		}
	}

	log.Error(ctx, "graphql resolver failed", "error", err)
	return &Error{Message: "Internal server error", Code: CodeInternal}
}

func badInput(msg string) error {
	return &Error{Message: msg, Code: CodeBadUserInput}
}
