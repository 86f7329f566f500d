// Package testutil has fixtures shared by package tests.
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"moviedex/pkg/database"
)

// NewDB opens a migrated SQLite file under t.TempDir. A file (not :memory:)
// is used so every pooled connection sees the same data.
func NewDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "moviedex.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a bare user row so saved_movies foreign keys resolve.
func CreateUser(t testing.TB, db *sql.DB) string {
	t.Helper()

	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO users (id, name, email, password_hash)
		VALUES (?, ?, ?, ?)
	`, id, "Test User", id+"@example.test", "x")
	require.NoError(t, err)
	return id
}
