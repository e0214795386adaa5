package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"admindash/internal/database"
	"admindash/internal/models"
)

// ErrDuplicateEmail is returned when an insert or update collides with an existing email
var ErrDuplicateEmail = errors.New("email already exists")

const userColumns = `id, name, email, password, role, authorized, created_at, expiration_date,
	profile_picture, preferred_language, theme, accent_color,
	two_factor_code, two_factor_code_expires, reset_password_token, reset_password_expires`

// UserRepository handles database operations for users
type UserRepository struct {
	db database.DBTX
}

// NewUserRepository creates a new user repository. db may be a *database.DB
// or a *database.Tx.
func NewUserRepository(db database.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u                                     models.User
		role, theme                           string
		expiration, codeExpires, resetExpires sql.NullTime
		picture, code, resetToken             sql.NullString
	)
	err := row.Scan(
		&u.ID, &u.Name, &u.Email, &u.PasswordHash, &role, &u.Authorized, &u.CreatedAt, &expiration,
		&picture, &u.PreferredLanguage, &theme, &u.AccentColor,
		&code, &codeExpires, &resetToken, &resetExpires,
	)
	if err != nil {
		return nil, err
	}

	u.Role = models.Role(role)
	u.Theme = models.Theme(theme)
	u.ProfilePicture = picture.String
	u.TwoFactorCode = code.String
	u.ResetPasswordToken = resetToken.String
	u.ExpirationDate = nullTimePtr(expiration)
	u.TwoFactorCodeExpires = nullTimePtr(codeExpires)
	u.ResetPasswordExpires = nullTimePtr(resetExpires)
	return &u, nil
}

func nullTimePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func stringArg(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE " + where
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser inserts a user and fills in its ID. PasswordHash must already be hashed.
func (r *UserRepository) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	u.CreatedAt = u.CreatedAt.UTC()
	if u.Role == "" {
		u.Role = models.RoleUser
	}
	if u.PreferredLanguage == "" {
		u.PreferredLanguage = models.DefaultLanguage
	}
	if u.Theme == "" {
		u.Theme = models.ThemeDefault
	}
	if u.AccentColor == "" {
		u.AccentColor = models.DefaultAccentColor
	}

	query := `
		INSERT INTO users (name, email, password, role, authorized, created_at, expiration_date,
			profile_picture, preferred_language, theme, accent_color)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		u.Name, u.Email, u.PasswordHash, string(u.Role), u.Authorized, u.CreatedAt, timeArg(u.ExpirationDate),
		stringArg(u.ProfilePicture), u.PreferredLanguage, string(u.Theme), u.AccentColor,
	)
	if err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	u.ID = id
	return u, nil
}

// GetUserByEmail retrieves a user by email address (exact match)
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := r.getOne(ctx, "email = ?", email)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

// GetUserByID retrieves a user by ID
func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	user, err := r.getOne(ctx, "id = ?", id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}
	return user, nil
}

// GetUserByResetToken retrieves the user holding a reset token digest
func (r *UserRepository) GetUserByResetToken(ctx context.Context, tokenDigest string) (*models.User, error) {
	if tokenDigest == "" {
		return nil, nil
	}
	user, err := r.getOne(ctx, "reset_password_token = ?", tokenDigest)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by reset token: %w", err)
	}
	return user, nil
}

// ListUsers retrieves all users ordered by ID
func (r *UserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of accounts
func (r *UserRepository) CountUsers(ctx context.Context) (int, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}

// UpdateUser applies the non-nil fields of patch. patch.Password must hold a digest.
func (r *UserRepository) UpdateUser(ctx context.Context, id int64, patch models.UserPatch) error {
	var (
		sets []string
		args []any
	)
	set := func(column string, value any) {
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}

	if patch.Name != nil {
		set("name", *patch.Name)
	}
	if patch.Email != nil {
		set("email", *patch.Email)
	}
	if patch.Password != nil {
		set("password", *patch.Password)
		set("reset_password_token", nil)
		set("reset_password_expires", nil)
	}
	if patch.Role != nil {
		set("role", string(*patch.Role))
	}
	if patch.Authorized != nil {
		set("authorized", *patch.Authorized)
	}
	if patch.ExpirationDate != nil {
		set("expiration_date", patch.ExpirationDate.UTC())
	}
	if patch.ProfilePicture != nil {
		set("profile_picture", stringArg(*patch.ProfilePicture))
	}
	if patch.PreferredLanguage != nil {
		set("preferred_language", *patch.PreferredLanguage)
	}
	if patch.Theme != nil {
		set("theme", string(*patch.Theme))
	}
	if patch.AccentColor != nil {
		set("accent_color", *patch.AccentColor)
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args = append(args, id)
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if r.db.GetDialect().IsUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

// DeleteUser removes a user and reports whether a row was deleted
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}
	return n > 0, nil
}

// SetTwoFactorCode stores a code digest and its expiry, replacing any previous code
func (r *UserRepository) SetTwoFactorCode(ctx context.Context, id int64, codeDigest string, expires time.Time) error {
	query := "UPDATE users SET two_factor_code = ?, two_factor_code_expires = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, codeDigest, expires.UTC(), id); err != nil {
		return fmt.Errorf("failed to set two-factor code: %w", err)
	}
	return nil
}

// ConsumeTwoFactorCode clears the code only if it still equals codeDigest.
// It reports false when another request consumed or replaced it first.
func (r *UserRepository) ConsumeTwoFactorCode(ctx context.Context, id int64, codeDigest string) (bool, error) {
	query := `UPDATE users SET two_factor_code = NULL, two_factor_code_expires = NULL
		WHERE id = ? AND two_factor_code = ?`
	result, err := r.db.ExecContext(ctx, query, id, codeDigest)
	if err != nil {
		return false, fmt.Errorf("failed to clear two-factor code: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to clear two-factor code: %w", err)
	}
	return n == 1, nil
}

// SetResetToken stores a reset token digest and its expiry, replacing any previous token
func (r *UserRepository) SetResetToken(ctx context.Context, id int64, tokenDigest string, expires time.Time) error {
	query := "UPDATE users SET reset_password_token = ?, reset_password_expires = ? WHERE id = ?"
	if _, err := r.db.ExecContext(ctx, query, tokenDigest, expires.UTC(), id); err != nil {
		return fmt.Errorf("failed to set reset token: %w", err)
	}
	return nil
}

// ResetPassword stores a new password digest only while tokenDigest is still the
// user's reset token, clearing the token in the same statement.
// It reports false when the token was already used or replaced.
func (r *UserRepository) ResetPassword(ctx context.Context, id int64, tokenDigest, passwordHash string) (bool, error) {
	query := `UPDATE users SET password = ?, reset_password_token = NULL, reset_password_expires = NULL
		WHERE id = ? AND reset_password_token = ?`
	result, err := r.db.ExecContext(ctx, query, passwordHash, id, tokenDigest)
	if err != nil {
		return false, fmt.Errorf("failed to reset password: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to reset password: %w", err)
	}
	return n == 1, nil
}
