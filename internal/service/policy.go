package service

import "admindash/internal/models"

// RequireAuthenticated fails when there is no actor
func RequireAuthenticated(actor *models.User) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	return nil
}

// RequireAdmin allows only admins
func RequireAdmin(actor *models.User) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// RequireSelfOrAdmin allows admins and the owner of the target record
func RequireSelfOrAdmin(actor *models.User, targetID int64) error {
	if actor == nil {
		return ErrUnauthenticated
	}
	if actor.IsAdmin() || actor.ID == targetID {
		return nil
	}
	return ErrForbidden
}
