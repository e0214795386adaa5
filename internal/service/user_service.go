package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"admindash/internal/logging"
	"admindash/internal/models"
	"admindash/internal/repository"
	"admindash/internal/security"
	"admindash/internal/session"
	"admindash/internal/validation"
)

// UserService handles account management for admins and self-service profile edits.
// Every method takes the acting user and enforces the access policy itself.
type UserService struct {
	users    UserStore
	sessions session.Store
	hasher   security.PasswordHasher
	log      logging.Logger
	now      func() time.Time
}

// NewUserService creates a new user service
func NewUserService(users UserStore, sessions session.Store, hasher security.PasswordHasher, log logging.Logger) *UserService {
	if hasher == nil {
		hasher = security.NewScryptHasher()
	}
	if log == nil {
		log = logging.Nop()
	}
	return &UserService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		log:      log.With("component", "users"),
		now:      time.Now,
	}
}

// List returns every account
func (s *UserService) List(ctx context.Context, actor *models.User) ([]models.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

// Get returns one account
func (s *UserService) Get(ctx context.Context, actor *models.User, id int64) (*models.User, error) {
	if err := RequireSelfOrAdmin(actor, id); err != nil {
		return nil, err
	}
	return s.load(ctx, id)
}

// Create adds an account on behalf of an admin. Unlike registration the admin
// chooses the role, the authorized flag and the expiration date.
func (s *UserService) Create(ctx context.Context, actor *models.User, in models.NewUser) (*models.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.ValidateNewUser(in); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByEmail(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	user, err := createAccount(ctx, s.users, s.hasher, s.now(), in)
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "user created", "user_id", user.ID, "by", actor.ID)
	return user, nil
}

// Update applies a partial update. Non-admins may only edit their own profile
// and never the role, authorized flag or expiration date.
func (s *UserService) Update(ctx context.Context, actor *models.User, id int64, patch models.UserPatch) (*models.User, error) {
	if err := RequireSelfOrAdmin(actor, id); err != nil {
		return nil, err
	}

	if !actor.IsAdmin() && patch.StripPrivileged() {
		s.log.Debug(ctx, "privileged fields dropped from patch", "user_id", actor.ID)
		if patch.IsEmpty() {
			return s.load(ctx, id)
		}
	}
	if actor.IsAdmin() && actor.ID == id && patch.Role != nil && *patch.Role != models.RoleAdmin {
		return nil, ErrSelfDemotion
	}

	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		patch.Email = &email
	}
	if err := validation.ValidatePatch(patch); err != nil {
		return nil, err
	}

	target, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.Email != nil && *patch.Email != target.Email {
		other, err := s.users.GetUserByEmail(ctx, *patch.Email)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing user: %w", err)
		}
		if other != nil && other.ID != id {
			return nil, ErrEmailTaken
		}
	}

	if patch.Password != nil {
		hash, err := s.hasher.Hash(*patch.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		patch.Password = &hash
	}

	if err := s.users.UpdateUser(ctx, id, patch); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.log.Info(ctx, "user updated", "user_id", id, "by", actor.ID)
	return s.load(ctx, id)
}

// SetAuthorized approves or suspends an account. Suspending signs the user out everywhere.
func (s *UserService) SetAuthorized(ctx context.Context, actor *models.User, id int64, authorized bool) (*models.User, error) {
	if err := RequireAdmin(actor); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}

	if err := s.users.UpdateUser(ctx, id, models.UserPatch{Authorized: &authorized}); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if !authorized {
		if err := s.sessions.DeleteByUser(ctx, id); err != nil {
			s.log.Error(ctx, "failed to revoke sessions of suspended user", "user_id", id, "error", err)
		}
	}

	s.log.Info(ctx, "user authorization changed", "user_id", id, "authorized", authorized, "by", actor.ID)
	return s.load(ctx, id)
}

// Delete removes an account and its sessions. Admins cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, actor *models.User, id int64) error {
	if err := RequireAdmin(actor); err != nil {
		return err
	}
	if actor.ID == id {
		return ErrSelfDelete
	}

	deleted, err := s.users.DeleteUser(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if !deleted {
		return ErrNotFound
	}

	// SQL stores cascade; memory and redis stores do not
	if err := s.sessions.DeleteByUser(ctx, id); err != nil {
		s.log.Error(ctx, "failed to revoke sessions of deleted user", "user_id", id, "error", err)
	}

	s.log.Info(ctx, "user deleted", "user_id", id, "by", actor.ID)
	return nil
}

func (s *UserService) load(ctx context.Context, id int64) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if user == nil {
		return nil, ErrNotFound
	}
	return user, nil
}
