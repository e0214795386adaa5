package service

import (
	"context"
	"time"

	"admindash/internal/models"
)

// UserStore is the credential store the services depend on.
// Lookups return nil, nil when the user does not exist.
type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByResetToken(ctx context.Context, tokenDigest string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsers(ctx context.Context) (int, error)
	UpdateUser(ctx context.Context, id int64, patch models.UserPatch) error
	DeleteUser(ctx context.Context, id int64) (bool, error)
	SetTwoFactorCode(ctx context.Context, id int64, codeDigest string, expires time.Time) error
	ConsumeTwoFactorCode(ctx context.Context, id int64, codeDigest string) (bool, error)
	SetResetToken(ctx context.Context, id int64, tokenDigest string, expires time.Time) error
	ResetPassword(ctx context.Context, id int64, tokenDigest, passwordHash string) (bool, error)
}

// Notifier delivers codes and reset links to users
type Notifier interface {
	SendTwoFactorCode(ctx context.Context, toEmail, toName, code string) error
	SendPasswordResetEmail(ctx context.Context, toEmail, toName, resetToken string) error
}
