package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"admindash/internal/database"
	"admindash/internal/logging"
	"admindash/internal/models"
	"admindash/internal/repository"
	"admindash/internal/validation"
)

// BackupVersion is written into every export
const BackupVersion = "1.0"

var errDryRun = errors.New("dry run")

// BackupData represents the complete database backup structure
type BackupData struct {
	Version      string       `json:"version"`
	ExportedAt   time.Time    `json:"exported_at"`
	DatabaseType string       `json:"database_type"`
	Users        []UserBackup `json:"users"`
}

// UserBackup represents a user record for backup.
// Pending codes and reset tokens are short-lived and not exported.
type UserBackup struct {
	ID                int64      `json:"id"`
	Name              string     `json:"name"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"password_hash"`
	Role              string     `json:"role"`
	Authorized        bool       `json:"authorized"`
	CreatedAt         time.Time  `json:"created_at"`
	ExpirationDate    *time.Time `json:"expiration_date,omitempty"`
	ProfilePicture    string     `json:"profile_picture,omitempty"`
	PreferredLanguage string     `json:"preferred_language"`
	Theme             string     `json:"theme"`
	AccentColor       string     `json:"accent_color"`
}

// ImportReport summarises an import
type ImportReport struct {
	Imported int
	Skipped  int
	DryRun   bool
}

// BackupService handles database backup and restore operations
type BackupService struct {
	db  *database.DB
	log logging.Logger
}

// NewBackupService creates a new backup service
func NewBackupService(db *database.DB, log logging.Logger) *BackupService {
	if log == nil {
		log = logging.Nop()
	}
	return &BackupService{db: db, log: log.With("component", "backup")}
}

// Export writes a backup of all users to a file
func (s *BackupService) Export(ctx context.Context, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := s.ExportToWriter(ctx, file); err != nil {
		return err
	}
	s.log.Info(ctx, "database exported", "path", outputPath)
	return nil
}

// ExportToWriter writes a backup of all users as indented JSON
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	users, err := repository.NewUserRepository(s.db).ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to export users: %w", err)
	}

	backup := &BackupData{
		Version:      BackupVersion,
		ExportedAt:   time.Now().UTC(),
		DatabaseType: s.db.Dialect.DriverName(),
		Users:        make([]UserBackup, 0, len(users)),
	}
	for _, u := range users {
		backup.Users = append(backup.Users, UserBackup{
			ID:                u.ID,
			Name:              u.Name,
			Email:             u.Email,
			PasswordHash:      u.PasswordHash,
			Role:              string(u.Role),
			Authorized:        u.Authorized,
			CreatedAt:         u.CreatedAt,
			ExpirationDate:    u.ExpirationDate,
			ProfilePicture:    u.ProfilePicture,
			PreferredLanguage: u.PreferredLanguage,
			Theme:             string(u.Theme),
			AccentColor:       u.AccentColor,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(backup); err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}

	s.log.Info(ctx, "users exported", "count", len(backup.Users))
	return nil
}

// Import restores users from a backup file
func (s *BackupService) Import(ctx context.Context, inputPath string, dryRun bool) (*ImportReport, error) {
	file, err := os.Open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	return s.ImportFromReader(ctx, file, dryRun)
}

// ImportFromReader restores users inside one transaction. Users whose email
// already exists are skipped; IDs are reassigned by the database.
// A dry run performs every insert and rolls back.
func (s *BackupService) ImportFromReader(ctx context.Context, r io.Reader, dryRun bool) (*ImportReport, error) {
	var backup BackupData
	if err := json.NewDecoder(r).Decode(&backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}

	s.log.Info(ctx, "starting import", "version", backup.Version, "exported_at", backup.ExportedAt, "users", len(backup.Users))

	report := &ImportReport{DryRun: dryRun}
	err := s.db.WithTx(ctx, func(tx *database.Tx) error {
		users := repository.NewUserRepository(tx)
		for _, u := range backup.Users {
			imported, err := importUser(ctx, users, u)
			if err != nil {
				return err
			}
			if imported {
				report.Imported++
			} else {
				report.Skipped++
			}
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, fmt.Errorf("failed to import users: %w", err)
	}

	s.log.Info(ctx, "import finished", "imported", report.Imported, "skipped", report.Skipped, "dry_run", dryRun)
	return report, nil
}

func importUser(ctx context.Context, users *repository.UserRepository, u UserBackup) (bool, error) {
	if err := validation.ValidateEmail(u.Email); err != nil {
		return false, fmt.Errorf("user %d: %w", u.ID, err)
	}
	role := models.Role(u.Role)
	if !role.Valid() {
		return false, fmt.Errorf("user %d: unknown role %q", u.ID, u.Role)
	}
	if u.PasswordHash == "" {
		return false, fmt.Errorf("user %d: missing password hash", u.ID)
	}

	existing, err := users.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	_, err = users.CreateUser(ctx, &models.User{
		Name:              u.Name,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		Role:              role,
		Authorized:        u.Authorized,
		CreatedAt:         u.CreatedAt,
		ExpirationDate:    u.ExpirationDate,
		ProfilePicture:    u.ProfilePicture,
		PreferredLanguage: u.PreferredLanguage,
		Theme:             models.Theme(u.Theme),
		AccentColor:       u.AccentColor,
	})
	if err != nil {
		return false, fmt.Errorf("failed to import user %d: %w", u.ID, err)
	}
	return true, nil
}
