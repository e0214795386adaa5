package service

import "errors"

var (
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrPendingApproval       = errors.New("your account is pending approval. Please contact an administrator.")
	ErrAccountExpired        = errors.New("your account has expired. Please contact an administrator.")
	ErrInvalidOrExpiredCode  = errors.New("invalid or expired verification code")
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrUnauthenticated       = errors.New("not authenticated")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("user not found")
	ErrSelfDelete            = errors.New("cannot delete your own account")
	ErrSelfDemotion          = errors.New("cannot remove your own admin role")
	ErrTooManyAttempts       = errors.New("too many attempts, please try again later")
)

// Messages returned to clients on success paths
const (
	MsgCodeSent        = "2FA code sent to your email"
	MsgResetRequested  = "If your email is registered, you will receive a password reset link"
	MsgResetSuccessful = "Password reset successful"
	MsgResendRequested = "If a verification is in progress, a new code has been sent"
	MsgUserDeleted     = "User deleted successfully"
	MsgLoggedOut       = "Logged out successfully"
)
