package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"admindash/internal/logging"
	"admindash/internal/models"
	"admindash/internal/repository"
	"admindash/internal/security"
	"admindash/internal/session"
	"admindash/internal/validation"
)

// DefaultSessionDuration is used when AuthOptions leaves SessionDuration unset
const DefaultSessionDuration = 24 * time.Hour

// LoginChallenge is the result of a correct password: a code is on its way
type LoginChallenge struct {
	Email             string `json:"email"`
	RequiresTwoFactor bool   `json:"requiresTwoFactor"`
	Message           string `json:"message"`
}

// AuthOptions tunes an AuthService. Zero values pick the defaults.
type AuthOptions struct {
	SessionDuration        time.Duration
	AllowAdminRegistration bool
	Hasher                 security.PasswordHasher
	Limiter                security.AttemptLimiter
}

// AuthService handles authentication business logic:
// password check, two-factor challenge, sessions and password recovery.
type AuthService struct {
	users     UserStore
	sessions  session.Store
	notifier  Notifier
	hasher    security.PasswordHasher
	limiter   security.AttemptLimiter
	twoFactor *TwoFactorManager
	resets    *ResetTokenManager
	log       logging.Logger

	sessionDuration        time.Duration
	allowAdminRegistration bool
	now                    func() time.Time

	dummyOnce   sync.Once
	dummyDigest string
}

// NewAuthService creates a new auth service
func NewAuthService(users UserStore, sessions session.Store, notifier Notifier, log logging.Logger, opts AuthOptions) *AuthService {
	if opts.Hasher == nil {
		opts.Hasher = security.NewScryptHasher()
	}
	if opts.Limiter == nil {
		opts.Limiter = security.NoopLimiter{}
	}
	if opts.SessionDuration <= 0 {
		opts.SessionDuration = DefaultSessionDuration
	}
	if log == nil {
		log = logging.Nop()
	}

	return &AuthService{
		users:                  users,
		sessions:               sessions,
		notifier:               notifier,
		hasher:                 opts.Hasher,
		limiter:                opts.Limiter,
		twoFactor:              NewTwoFactorManager(users),
		resets:                 NewResetTokenManager(users, opts.Hasher),
		log:                    log.With("component", "auth"),
		sessionDuration:        opts.SessionDuration,
		allowAdminRegistration: opts.AllowAdminRegistration,
		now:                    time.Now,
	}
}

// SessionDuration is the lifetime of sessions created by this service
func (s *AuthService) SessionDuration() time.Duration {
	return s.sessionDuration
}

// setClock replaces the clock of the service and its managers
func (s *AuthService) setClock(now func() time.Time) {
	s.now = now
	s.twoFactor.now = now
	s.resets.now = now
}

// Login checks the password and, when it is correct, sends a verification code.
// No session is created here.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginChallenge, error) {
	email = strings.TrimSpace(email)
	limitKey := "login:" + email
	if err := s.checkLimit(ctx, limitKey); err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		// Burn the same time as a real verification
		s.hasher.Verify(password, s.dummyHash())
		return nil, ErrInvalidCredentials
	}

	passwordOK := s.hasher.Verify(password, user.PasswordHash)
	if user.NeedsApproval() {
		return nil, ErrPendingApproval
	}
	if !passwordOK {
		return nil, ErrInvalidCredentials
	}
	if user.IsExpiredAt(s.now()) {
		return nil, ErrAccountExpired
	}

	if err := s.sendCode(ctx, user); err != nil {
		return nil, err
	}
	s.resetLimit(ctx, limitKey)

	s.log.Info(ctx, "login challenge issued", "user_id", user.ID)
	return &LoginChallenge{Email: user.Email, RequiresTwoFactor: true, Message: MsgCodeSent}, nil
}

// VerifyTwoFactor completes a login and creates the session
func (s *AuthService) VerifyTwoFactor(ctx context.Context, email, code string) (*models.Session, *models.User, error) {
	email = strings.TrimSpace(email)
	limitKey := "2fa:" + email
	if err := s.checkLimit(ctx, limitKey); err != nil {
		return nil, nil, err
	}
	if validation.ValidateTwoFactorCode(code) != nil {
		return nil, nil, ErrInvalidOrExpiredCode
	}

	ok, err := s.twoFactor.Verify(ctx, email, code)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, ErrInvalidOrExpiredCode
	}

	// Re-read: an admin may have changed the account since the password step
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrInvalidOrExpiredCode
	}
	if user.NeedsApproval() {
		return nil, nil, ErrPendingApproval
	}
	if user.IsExpiredAt(s.now()) {
		return nil, nil, ErrAccountExpired
	}

	sess, err := s.startSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.resetLimit(ctx, limitKey)
	s.resetLimit(ctx, "login:"+email)

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return sess, user, nil
}

// ResendCode issues a fresh code when a challenge is already outstanding.
// It reports nothing about whether the email exists.
func (s *AuthService) ResendCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := s.checkLimit(ctx, "resend:"+email); err != nil {
		return err
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !user.HasPendingTwoFactor() {
		return nil
	}
	if user.NeedsApproval() || user.IsExpiredAt(s.now()) {
		return nil
	}
	return s.sendCode(ctx, user)
}

// Register creates a self-service account and signs it in.
// The first account ever created becomes the admin.
func (s *AuthService) Register(ctx context.Context, in models.NewUser) (*models.Session, *models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.ValidateNewUser(in); err != nil {
		return nil, nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, nil, ErrEmailTaken
	}

	count, err := s.users.CountUsers(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to count users: %w", err)
	}

	role := models.RoleUser
	switch {
	case count == 0:
		role = models.RoleAdmin
	case in.Role == models.RoleAdmin && s.allowAdminRegistration:
		role = models.RoleAdmin
	}

	user, err := createAccount(ctx, s.users, s.hasher, s.now(), models.NewUser{
		Name:     in.Name,
		Email:    in.Email,
		Password: in.Password,
		Role:     role,
	})
	if err != nil {
		return nil, nil, err
	}

	sess, err := s.startSession(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return sess, user, nil
}

// ForgotPassword emails a reset link when the account exists.
// The returned message is the same either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)

	allowed, err := s.limiter.Allow(ctx, "forgot:"+email)
	if err != nil {
		s.log.Warn(ctx, "attempt limiter unavailable", "error", err)
	}
	if !allowed && err == nil {
		return MsgResetRequested, nil
	}
	if validation.ValidateEmail(email) != nil {
		return MsgResetRequested, nil
	}

	grant, err := s.resets.Issue(ctx, email)
	if err != nil {
		return "", err
	}
	if grant == nil {
		return MsgResetRequested, nil
	}

	if err := s.notifier.SendPasswordResetEmail(ctx, grant.User.Email, grant.User.Name, grant.Token); err != nil {
		s.log.Error(ctx, "failed to send password reset email", "user_id", grant.User.ID, "error", err)
	}
	return MsgResetRequested, nil
}

// ResetPassword redeems a reset token, sets the new password and signs the
// user out everywhere.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	user, err := s.resets.Redeem(ctx, token)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidOrExpiredToken
	}

	if err := s.resets.ChangePassword(ctx, user, newPassword); err != nil {
		return err
	}
	if err := s.sessions.DeleteByUser(ctx, user.ID); err != nil {
		s.log.Error(ctx, "failed to revoke sessions after password reset", "user_id", user.ID, "error", err)
	}

	s.log.Info(ctx, "password reset", "user_id", user.ID)
	return nil
}

// Logout deletes the session. Unknown or empty IDs are not an error.
func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Authenticate resolves a session ID to the current user record
func (s *AuthService) Authenticate(ctx context.Context, sessionID string) (*models.User, error) {
	if sessionID == "" {
		return nil, ErrUnauthenticated
	}

	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if sess == nil {
		return nil, ErrUnauthenticated
	}

	now := s.now()
	if sess.IsExpiredAt(now) {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			s.log.Warn(ctx, "failed to delete expired session", "error", err)
		}
		return nil, ErrUnauthenticated
	}

	user, err := s.users.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			s.log.Warn(ctx, "failed to delete orphaned session", "error", err)
		}
		return nil, ErrUnauthenticated
	}
	if user.IsExpiredAt(now) {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// CleanupExpiredSessions removes expired sessions from the store
func (s *AuthService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	return n, nil
}

func (s *AuthService) startSession(ctx context.Context, userID int64) (*models.Session, error) {
	now := s.now()
	sess := &models.Session{
		ID:        security.GenerateSessionID(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.sessionDuration),
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sess, nil
}

func (s *AuthService) sendCode(ctx context.Context, user *models.User) error {
	code, err := s.twoFactor.Issue(ctx, user.Email)
	if err != nil {
		return err
	}
	if err := s.notifier.SendTwoFactorCode(ctx, user.Email, user.Name, code); err != nil {
		return fmt.Errorf("failed to send verification code: %w", err)
	}
	return nil
}

func (s *AuthService) checkLimit(ctx context.Context, key string) error {
	allowed, err := s.limiter.Allow(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check attempt limit: %w", err)
	}
	if !allowed {
		s.log.Warn(ctx, "attempt limit reached", "key", key)
		return ErrTooManyAttempts
	}
	return nil
}

func (s *AuthService) resetLimit(ctx context.Context, key string) {
	if err := s.limiter.Reset(ctx, key); err != nil {
		s.log.Warn(ctx, "failed to reset attempt limit", "key", key, "error", err)
	}
}

// dummyHash is verified against when the email is unknown
func (s *AuthService) dummyHash() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("timing-equaliser-password")
		if err != nil {
			return
		}
		s.dummyDigest = digest
	})
	return s.dummyDigest
}

// createAccount hashes the password and inserts the user, applying the
// account lifetime when no expiration date is given.
func createAccount(ctx context.Context, users UserStore, hasher security.PasswordHasher, now time.Time, in models.NewUser) (*models.User, error) {
	passwordHash, err := hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	expires := now.Add(models.AccountLifetime)
	if in.ExpirationDate != nil {
		expires = *in.ExpirationDate
	}
	role := in.Role
	if role == "" {
		role = models.RoleUser
	}

	user, err := users.CreateUser(ctx, &models.User{
		Name:           in.Name,
		Email:          in.Email,
		PasswordHash:   passwordHash,
		Role:           role,
		Authorized:     in.Authorized,
		CreatedAt:      now,
		ExpirationDate: &expires,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}
