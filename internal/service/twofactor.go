package service

import (
	"context"
	"fmt"
	"time"

	"admindash/internal/credentials"
)

// TwoFactorCodeTTL is how long an emailed code stays valid
const TwoFactorCodeTTL = 15 * time.Minute

// TwoFactorManager issues and checks the one-time codes sent after a correct password.
// Only the digest of a code is stored; issuing a new code replaces the previous one.
type TwoFactorManager struct {
	users    UserStore
	ttl      time.Duration
	now      func() time.Time
	generate func() (string, error)
}

// NewTwoFactorManager creates a manager with the default TTL
func NewTwoFactorManager(users UserStore) *TwoFactorManager {
	return &TwoFactorManager{
		users:    users,
		ttl:      TwoFactorCodeTTL,
		now:      time.Now,
		generate: credentials.GenerateTwoFactorCode,
	}
}

// Issue stores a fresh code for the account and returns the plaintext for delivery
func (m *TwoFactorManager) Issue(ctx context.Context, email string) (string, error) {
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return "", ErrNotFound
	}

	code, err := m.generate()
	if err != nil {
		return "", err
	}
	if err := m.users.SetTwoFactorCode(ctx, user.ID, credentials.Digest(code), m.now().Add(m.ttl)); err != nil {
		return "", fmt.Errorf("failed to store verification code: %w", err)
	}
	return code, nil
}

// Verify reports whether code matches the outstanding, unexpired challenge.
// A matching code is consumed so it cannot be used twice.
func (m *TwoFactorManager) Verify(ctx context.Context, email, code string) (bool, error) {
	user, err := m.users.GetUserByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil || !user.HasPendingTwoFactor() {
		return false, nil
	}
	if m.now().After(*user.TwoFactorCodeExpires) {
		return false, nil
	}
	if !credentials.Matches(code, user.TwoFactorCode) {
		return false, nil
	}

	consumed, err := m.users.ConsumeTwoFactorCode(ctx, user.ID, user.TwoFactorCode)
	if err != nil {
		return false, fmt.Errorf("failed to consume verification code: %w", err)
	}
	return consumed, nil
}
