package handlers

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/username/tillpoint/backend/src/config"
	"github.com/username/tillpoint/backend/src/database"
	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/model"
	"github.com/username/tillpoint/backend/src/security"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{
		JWTSecret:          "handlers-test-secret-for-token-signing",
		CSRFAuthKey:        []byte("a-very-secure-32-byte-long-key-must-be-32-bytes!"),
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 7 * 24 * time.Hour,
	}
	os.Exit(m.Run())
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "handlers_test.db"))
	if err != nil {
		t.Fatalf("opening test database failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.EnsureSchema(db); err != nil {
		t.Fatalf("applying schema failed: %v", err)
	}
	return db
}

func newUserHandler(t *testing.T) (*UserHandler, *sql.DB) {
	t.Helper()
	db := newTestDB(t)
	return NewUserHandler(db, security.NewAuthService(config.Cfg.JWTSecret)), db
}

// signInAs stores a user and wires up a live session, returning the bearer
// token the frontend would hold.
func signInAs(t *testing.T, h *UserHandler, db *sql.DB, username, role string) (string, *model.User) {
	t.Helper()
	user := &model.User{
		Username: username,
		FullName: "Test " + username,
		Password: "not-a-real-hash",
		Role:     role,
		Active:   true,
	}
	if err := user.CreateUser(db); err != nil {
		t.Fatalf("creating user %q failed: %v", username, err)
	}
	token, err := h.authService.GenerateToken(user.ID)
	if err != nil {
		t.Fatalf("generating token failed: %v", err)
	}
	session := &model.Session{
		UserID:       user.ID,
		Token:        token,
		RefreshToken: username + "-refresh",
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := model.CreateSession(db, session); err != nil {
		t.Fatalf("creating session failed: %v", err)
	}
	return token, user
}
