package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"admindash/internal/database"
	"admindash/internal/logging"
	"admindash/internal/models"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.RunMigrations(context.Background(), logging.Nop()))
	return db
}

func createUser(t *testing.T, repo *UserRepository, email string, role models.Role) *models.User {
	t.Helper()
	u, err := repo.CreateUser(context.Background(), &models.User{
		Name:         "User " + email,
		Email:        email,
		PasswordHash: "key.salt",
		Role:         role,
		CreatedAt:    time.Now(),
	})
	require.NoError(t, err)
	return u
}
