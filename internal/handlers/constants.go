package handlers

const (
	SessionCookieName = "session_id"

	MsgInvalidRequestBody  = "Invalid request body"
	MsgInvalidUserID       = "Invalid user ID"
	MsgUnsupportedMedia    = "Content-Type must be application/json"
	MsgUnauthorized        = "Unauthorized"
	MsgForbidden           = "Forbidden"
	MsgUserNotFound        = "User not found"
	MsgNotFound            = "Not found"
	MsgTooManyRequests     = "Too many requests, please try again later"
	MsgInternalServerError = "Internal server error"
)
