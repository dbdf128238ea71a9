package model

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/username/tillpoint/backend/src/database"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "model_test.db"))
	if err != nil {
		t.Fatalf("opening test database failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.EnsureSchema(db); err != nil {
		t.Fatalf("applying schema failed: %v", err)
	}
	return db
}

// createTestUser stores a user with a junk password hash. Tests around the
// bcrypt helpers hash for real; the rest do not need to pay for it.
func createTestUser(t *testing.T, db *sql.DB, username, role string) *User {
	t.Helper()
	user := &User{
		Username: username,
		FullName: "Test " + username,
		Password: "not-a-real-hash",
		Role:     role,
		Active:   true,
	}
	if err := user.CreateUser(db); err != nil {
		t.Fatalf("creating user %q failed: %v", username, err)
	}
	return user
}
