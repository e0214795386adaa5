package models

import "time"

// UserPatch is a partial update of a user. Nil fields are left unchanged.
//
// Role, Authorized and ExpirationDate are privileged: only admins may set them.
// Password carries the plaintext on input; the service replaces it with the
// digest before the patch reaches the store.
type UserPatch struct {
	Name              *string    `json:"name,omitempty"`
	Email             *string    `json:"email,omitempty"`
	Password          *string    `json:"password,omitempty"`
	Role              *Role      `json:"role,omitempty"`
	Authorized        *bool      `json:"authorized,omitempty"`
	ExpirationDate    *time.Time `json:"expirationDate,omitempty"`
	ProfilePicture    *string    `json:"profilePicture,omitempty"`
	PreferredLanguage *string    `json:"preferredLanguage,omitempty"`
	Theme             *Theme     `json:"theme,omitempty"`
	AccentColor       *string    `json:"accentColor,omitempty"`
}

// StripPrivileged clears the fields a non-admin may not change and reports
// whether anything was removed.
func (p *UserPatch) StripPrivileged() bool {
	stripped := p.Role != nil || p.Authorized != nil || p.ExpirationDate != nil
	p.Role = nil
	p.Authorized = nil
	p.ExpirationDate = nil
	return stripped
}

// IsEmpty reports whether the patch changes nothing
func (p *UserPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Password == nil &&
		p.Role == nil && p.Authorized == nil && p.ExpirationDate == nil &&
		p.ProfilePicture == nil && p.PreferredLanguage == nil &&
		p.Theme == nil && p.AccentColor == nil
}
