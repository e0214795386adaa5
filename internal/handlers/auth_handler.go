package handlers

import (
	"context"
	"net/http"
	"time"

	"admindash/internal/logging"
	"admindash/internal/models"
	"admindash/internal/security"
	"admindash/internal/service"
)

// cookieCodec is the session cookie surface the auth handler needs
type cookieCodec interface {
	Read(r *http.Request) (string, bool)
	Write(w http.ResponseWriter, r *http.Request, sessionID string, expiresAt time.Time) error
	Clear(w http.ResponseWriter, r *http.Request)
}

var _ cookieCodec = (*security.SessionCookies)(nil)

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	authService *service.AuthService
	cookies     cookieCodec
	log         logging.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *service.AuthService, cookies *security.SessionCookies, log logging.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookies:     cookies,
		log:         log,
	}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Email string `json:"email"`
	Code  string `json:"code"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type registerRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role,omitempty"`
}

type resetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Login checks the password and starts the two-factor challenge
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := parseJSON(w, r, &req); err != nil {
		respondBadBody(w, err)
		return
	}

	challenge, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

// VerifyTwoFactor completes the login and sets the session cookie
func (h *AuthHandler) VerifyTwoFactor(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := parseJSON(w, r, &req); err != nil {
		respondBadBody(w, err)
		return
	}

	sess, user, err := h.authService.VerifyTwoFactor(r.Context(), req.Email, req.Code)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}

	if err := h.issueCookie(w, r, sess); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

// ResendCode sends a new code for an outstanding challenge
func (h *AuthHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := parseJSON(w, r, &req); err != nil {
		respondBadBody(w, err)
		return
	}

	if err := h.authService.ResendCode(r.Context(), req.Email); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeMessage(w, http.StatusOK, service.MsgResendRequested)
}

// Register creates an account and signs it in
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := parseJSON(w, r, &req); err != nil {
		respondBadBody(w, err)
		return
	}

	sess, user, err := h.authService.Register(r.Context(), models.NewUser{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}

	if err := h.issueCookie(w, r, sess); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, user.Public())
}

// ForgotPassword emails a reset link; the response never reveals whether the email exists
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := parseJSON(w, r, &req); err != nil {
		respondBadBody(w, err)
		return
	}

	msg, err := h.authService.ForgotPassword(r.Context(), req.Email)
	if err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeMessage(w, http.StatusOK, msg)
}

// ResetPassword sets a new password from a reset token
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := parseJSON(w, r, &req); err != nil {
		respondBadBody(w, err)
		return
	}

	if err := h.authService.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		respondWithError(w, r, h.log, err)
		return
	}
	writeMessage(w, http.StatusOK, service.MsgResetSuccessful)
}

// Logout handles logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID, ok := h.cookies.Read(r); ok {
		if err := h.authService.Logout(r.Context(), sessionID); err != nil {
			h.log.Error(r.Context(), "failed to delete session", "error", err)
		}
	}

	h.cookies.Clear(w, r)
	writeMessage(w, http.StatusOK, service.MsgLoggedOut)
}

// CurrentUser returns the signed-in user
func (h *AuthHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())
	if user == nil {
		respondWithError(w, r, h.log, service.ErrUnauthenticated)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}

// issueCookie hands a new session to the browser. A session whose cookie
// could not be written is deleted so it cannot outlive the failed request.
func (h *AuthHandler) issueCookie(w http.ResponseWriter, r *http.Request, sess *models.Session) error {
	err := h.cookies.Write(w, r, sess.ID, sess.ExpiresAt)
	if err == nil {
		return nil
	}
	// the request context may already be cancelled
	ctx := context.WithoutCancel(r.Context())
	if lerr := h.authService.Logout(ctx, sess.ID); lerr != nil {
		h.log.Error(ctx, "failed to delete session after cookie error", "user_id", sess.UserID, "error", lerr)
	}
	return err
}
