// Package validation checks user-supplied input before it reaches the services.
package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"admindash/internal/models"
)

const (
	MinPasswordLength = 6
	MaxPasswordLength = 128
	TwoFactorCodeLen  = 6
)

var (
	emailRegex       = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	accentColorRegex = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	languageRegex    = regexp.MustCompile(`^[a-z]{2}(-[A-Z]{2})?$`)
)

// Error is a validation failure whose message is safe to show to the client
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a validation failure
func IsValidationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve)
}

func fail(field, message string) error {
	return &Error{Field: field, Message: message}
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fail("email", "email is required")
	}
	if !emailRegex.MatchString(email) {
		return fail("email", "invalid email format")
	}
	return nil
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	if password == "" {
		return fail("password", "password is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fail("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if len(password) > MaxPasswordLength {
		return fail("password", fmt.Sprintf("password must be at most %d bytes", MaxPasswordLength))
	}
	return nil
}

// ValidateName checks if a name is valid
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fail("name", "name is required")
	}
	if utf8.RuneCountInString(name) < 2 {
		return fail("name", "name must be at least 2 characters")
	}
	if utf8.RuneCountInString(name) > 100 {
		return fail("name", "name must be at most 100 characters")
	}
	return nil
}

// ValidateRole accepts the empty role (meaning "default") and the known roles
func ValidateRole(role models.Role) error {
	if role == "" || role.Valid() {
		return nil
	}
	return fail("role", "role must be admin or user")
}

// ValidateTwoFactorCode checks the shape of a submitted code: six ASCII digits
func ValidateTwoFactorCode(code string) error {
	if len(code) != TwoFactorCodeLen {
		return fail("code", fmt.Sprintf("code must be %d digits", TwoFactorCodeLen))
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return fail("code", fmt.Sprintf("code must be %d digits", TwoFactorCodeLen))
		}
	}
	return nil
}

// ValidateNewUser checks registration and admin-creation input
func ValidateNewUser(in models.NewUser) error {
	if err := ValidateName(in.Name); err != nil {
		return err
	}
	if err := ValidateEmail(in.Email); err != nil {
		return err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return err
	}
	return ValidateRole(in.Role)
}

// ValidatePatch checks every field present in a partial update
func ValidatePatch(p models.UserPatch) error {
	if p.IsEmpty() {
		return fail("body", "no fields to update")
	}
	if p.Name != nil {
		if err := ValidateName(*p.Name); err != nil {
			return err
		}
	}
	if p.Email != nil {
		if err := ValidateEmail(*p.Email); err != nil {
			return err
		}
	}
	if p.Password != nil {
		if err := ValidatePassword(*p.Password); err != nil {
			return err
		}
	}
	if p.Role != nil && !p.Role.Valid() {
		return fail("role", "role must be admin or user")
	}
	if p.Theme != nil && !p.Theme.Valid() {
		return fail("theme", "unknown theme")
	}
	if p.AccentColor != nil && !accentColorRegex.MatchString(*p.AccentColor) {
		return fail("accentColor", "accent color must look like #3498db")
	}
	if p.PreferredLanguage != nil && !languageRegex.MatchString(*p.PreferredLanguage) {
		return fail("preferredLanguage", "language must be a code such as pt or en-US")
	}
	if p.ProfilePicture != nil && len(*p.ProfilePicture) > 2048 {
		return fail("profilePicture", "profile picture URL is too long")
	}
	return nil
}
