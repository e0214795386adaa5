package models

import "time"

// Role is the access level of an account
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Theme is the dashboard colour scheme chosen by a user
type Theme string

const (
	ThemeDefault Theme = "default"
	ThemeBlue    Theme = "blue"
	ThemeGreen   Theme = "green"
	ThemePurple  Theme = "purple"
	ThemeOrange  Theme = "orange"
)

// Valid reports whether t is a known theme
func (t Theme) Valid() bool {
	switch t {
	case ThemeDefault, ThemeBlue, ThemeGreen, ThemePurple, ThemeOrange:
		return true
	}
	return false
}

// Defaults applied when an account is created
const (
	DefaultLanguage    = "pt"
	DefaultAccentColor = "#3498db"
	AccountLifetime    = 365 * 24 * time.Hour
)

// User is an account of the dashboard.
// TwoFactorCode and ResetPasswordToken hold SHA-256 digests, never the raw secret.
type User struct {
	ID                   int64
	Name                 string
	Email                string
	PasswordHash         string
	Role                 Role
	Authorized           bool
	CreatedAt            time.Time
	ExpirationDate       *time.Time
	ProfilePicture       string
	PreferredLanguage    string
	Theme                Theme
	AccentColor          string
	TwoFactorCode        string
	TwoFactorCodeExpires *time.Time
	ResetPasswordToken   string
	ResetPasswordExpires *time.Time
}

// IsAdmin reports whether the user has the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// NeedsApproval reports whether a non-admin account is still waiting for an admin
// to set the authorized flag. Admins never need approval.
func (u *User) NeedsApproval() bool {
	return !u.IsAdmin() && !u.Authorized
}

// IsExpiredAt reports whether a non-admin account is past its expiration date
func (u *User) IsExpiredAt(now time.Time) bool {
	if u.IsAdmin() || u.ExpirationDate == nil {
		return false
	}
	return now.After(*u.ExpirationDate)
}

// HasPendingTwoFactor reports whether a two-factor code is outstanding
func (u *User) HasPendingTwoFactor() bool {
	return u.TwoFactorCode != "" && u.TwoFactorCodeExpires != nil
}

// PublicUser is the representation of a user sent to clients
type PublicUser struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	Role              Role       `json:"role"`
	Authorized        bool       `json:"authorized"`
	CreatedAt         time.Time  `json:"createdAt"`
	ExpirationDate    *time.Time `json:"expirationDate"`
	ProfilePicture    *string    `json:"profilePicture"`
	PreferredLanguage string     `json:"preferredLanguage"`
	Theme             Theme      `json:"theme"`
	AccentColor       string     `json:"accentColor"`
}

// Public strips credentials and secrets from the user
func (u *User) Public() PublicUser {
	p := PublicUser{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		Role:              u.Role,
		Authorized:        u.Authorized,
		CreatedAt:         u.CreatedAt,
		ExpirationDate:    u.ExpirationDate,
		PreferredLanguage: u.PreferredLanguage,
		Theme:             u.Theme,
		AccentColor:       u.AccentColor,
	}
	if u.ProfilePicture != "" {
		pic := u.ProfilePicture
		p.ProfilePicture = &pic
	}
	return p
}

// PublicUsers converts a slice of users for a response
func PublicUsers(users []User) []PublicUser {
	out := make([]PublicUser, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out
}

// NewUser is the input for registering or creating an account.
// Role and Authorized are only honoured when an admin creates the account.
type NewUser struct {
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Password       string     `json:"password"`
	Role           Role       `json:"role,omitempty"`
	Authorized     bool       `json:"authorized,omitempty"`
	ExpirationDate *time.Time `json:"expirationDate,omitempty"`
}
