package service

import (
	"context"
	"fmt"
	"time"

	"admindash/internal/credentials"
	"admindash/internal/models"
	"admindash/internal/security"
)

// ResetTokenTTL is how long a password reset link stays valid
const ResetTokenTTL = time.Hour

// ResetGrant is an issued reset token together with the account it belongs to
type ResetGrant struct {
	Token     string
	User      *models.User
	ExpiresAt time.Time
}

// ResetTokenManager issues and redeems password reset tokens
type ResetTokenManager struct {
	users    UserStore
	hasher   security.PasswordHasher
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// NewResetTokenManager creates a manager with the default TTL
func NewResetTokenManager(users UserStore, hasher security.PasswordHasher) *ResetTokenManager {
	return &ResetTokenManager{
		users:    users,
		hasher:   hasher,
		ttl:      ResetTokenTTL,
		now:      time.Now,
		generate: credentials.GenerateResetToken,
	}
}

// Issue creates a token for the account registered under email.
// It returns a nil grant when no such account exists.
func (m *ResetTokenManager) Issue(ctx context.Context, email string) (*ResetGrant, error) {
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	token, err := m.generate()
	if err != nil {
		return nil, err
	}
	expires := m.now().Add(m.ttl)
	if err := m.users.SetResetToken(ctx, user.ID, credentials.Digest(token), expires); err != nil {
		return nil, fmt.Errorf("failed to store reset token: %w", err)
	}
	return &ResetGrant{Token: token, User: user, ExpiresAt: expires}, nil
}

// Redeem returns the user owning an unexpired token, or nil
func (m *ResetTokenManager) Redeem(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	user, err := m.users.GetUserByResetToken(ctx, credentials.Digest(token))
	if err != nil {
		return nil, fmt.Errorf("failed to look up reset token: %w", err)
	}
	if user == nil || user.ResetPasswordExpires == nil {
		return nil, nil
	}
	if m.now().After(*user.ResetPasswordExpires) {
		return nil, nil
	}
	if !credentials.Matches(token, user.ResetPasswordToken) {
		return nil, nil
	}
	return user, nil
}

// ChangePassword sets a new password for a user returned by Redeem. The write
// only lands while the redeemed token is still stored, so of two concurrent
// resets with the same token exactly one succeeds.
func (m *ResetTokenManager) ChangePassword(ctx context.Context, user *models.User, newPassword string) error {
	if user == nil || user.ResetPasswordToken == "" {
		return ErrInvalidOrExpiredToken
	}
	hash, err := m.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	ok, err := m.users.ResetPassword(ctx, user.ID, user.ResetPasswordToken, hash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if !ok {
		return ErrInvalidOrExpiredToken
	}
	return nil
}
