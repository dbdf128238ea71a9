package model

import (
	"errors"
	"testing"
	"time"
)

// TestCreateAndGetUser inserts a user and reads it back by both keys.
func TestCreateAndGetUser(t *testing.T) {
	db := newTestDB(t)

	created := createTestUser(t, db, "thandi", "admin")
	if created.ID == 0 {
		t.Fatal("expected CreateUser to set the ID")
	}

	user, err := GetUserByUsername(db, "thandi")
	if err != nil {
		t.Fatalf("GetUserByUsername failed: %v", err)
	}
	if user.ID != created.ID || user.FullName != "Test thandi" || user.Role != "admin" {
		t.Errorf("expected inserted fields back, got %+v", user)
	}
	if !user.Active {
		t.Error("expected user active")
	}
	if user.LastLogin != nil {
		t.Errorf("expected no last login yet, got %v", user.LastLogin)
	}
	if user.CreatedAt.IsZero() {
		t.Error("expected created_at to be stamped")
	}

	byID, err := GetUserByID(db, created.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if byID.Username != "thandi" {
		t.Errorf("expected thandi by id, got %q", byID.Username)
	}

	if _, err := GetUserByUsername(db, "nobody"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := GetUserByID(db, 9999); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

// TestPasswordHashing checks the bcrypt helpers never store or accept
// plaintext.
func TestPasswordHashing(t *testing.T) {
	user := &User{Username: "sipho"}
	if err := user.HashPassword("spaza123"); err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if user.Password == "spaza123" || user.Password == "" {
		t.Fatal("expected a hash, not the plaintext password")
	}
	if err := user.CheckPassword("spaza123"); err != nil {
		t.Errorf("expected the right password to verify, got %v", err)
	}
	if err := user.CheckPassword("wrong"); err == nil {
		t.Error("expected the wrong password to fail")
	}
}

// TestCountAndListUsers lists users in username order.
func TestCountAndListUsers(t *testing.T) {
	db := newTestDB(t)

	n, err := CountUsers(db)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty users table, got %d", n)
	}

	createTestUser(t, db, "charlie", "pos_operator")
	createTestUser(t, db, "alice", "admin")
	createTestUser(t, db, "bob", "stock_manager")

	n, err = CountUsers(db)
	if err != nil {
		t.Fatalf("CountUsers failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 users, got %d", n)
	}

	users, err := ListUsers(db)
	if err != nil {
		t.Fatalf("ListUsers failed: %v", err)
	}
	if len(users) != 3 {
		t.Fatalf("expected 3 users listed, got %d", len(users))
	}
	want := []string{"alice", "bob", "charlie"}
	for i, name := range want {
		if users[i].Username != name {
			t.Errorf("position %d: expected %q, got %q", i, name, users[i].Username)
		}
	}
}

// TestSetUserActive disables and re-enables an account.
func TestSetUserActive(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "lerato", "pos_operator")

	if err := SetUserActive(db, user.ID, false); err != nil {
		t.Fatalf("SetUserActive failed: %v", err)
	}
	got, err := GetUserByID(db, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.Active {
		t.Error("expected user disabled")
	}

	if err := SetUserActive(db, user.ID, true); err != nil {
		t.Fatalf("SetUserActive failed: %v", err)
	}
	got, err = GetUserByID(db, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if !got.Active {
		t.Error("expected user re-enabled")
	}

	if err := SetUserActive(db, 9999, false); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUpdateLastLogin(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "naledi", "admin")

	at := time.Date(2025, 3, 10, 7, 45, 0, 0, time.UTC)
	if err := UpdateLastLogin(db, user.ID, at); err != nil {
		t.Fatalf("UpdateLastLogin failed: %v", err)
	}

	got, err := GetUserByID(db, user.ID)
	if err != nil {
		t.Fatalf("GetUserByID failed: %v", err)
	}
	if got.LastLogin == nil || !got.LastLogin.Equal(at) {
		t.Errorf("expected last login %v, got %v", at, got.LastLogin)
	}
}

// TestSessionLifecycle drives one session through create, both lookups, a
// token rotation, and deletion.
func TestSessionLifecycle(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "kagiso", "admin")

	session := &Session{
		UserID:       user.ID,
		Token:        "access-token-1",
		RefreshToken: "refresh-token-1",
		UserAgent:    "till-frontend/1.0",
		ClientIP:     "192.168.0.10",
		ExpiresAt:    time.Now().Add(time.Hour),
	}
	if err := CreateSession(db, session); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	got, err := GetSessionByToken(db, "access-token-1")
	if err != nil {
		t.Fatalf("GetSessionByToken failed: %v", err)
	}
	if got.UserID != user.ID || got.UserAgent != "till-frontend/1.0" || got.ClientIP != "192.168.0.10" {
		t.Errorf("expected session fields back, got %+v", got)
	}

	byRefresh, err := GetSessionByRefreshToken(db, "refresh-token-1")
	if err != nil {
		t.Fatalf("GetSessionByRefreshToken failed: %v", err)
	}
	if byRefresh.ID != got.ID {
		t.Errorf("expected the same session by refresh token, got %d and %d", byRefresh.ID, got.ID)
	}

	if err := UpdateSessionToken(db, got.ID, "access-token-2"); err != nil {
		t.Fatalf("UpdateSessionToken failed: %v", err)
	}
	if _, err := GetSessionByToken(db, "access-token-1"); err == nil {
		t.Error("expected the old access token to stop resolving")
	}
	rotated, err := GetSessionByToken(db, "access-token-2")
	if err != nil {
		t.Fatalf("GetSessionByToken after rotation failed: %v", err)
	}
	if rotated.ID != got.ID || rotated.RefreshToken != "refresh-token-1" {
		t.Errorf("expected the same session with a new token, got %+v", rotated)
	}

	if err := DeleteSessionByToken(db, "access-token-2"); err != nil {
		t.Fatalf("DeleteSessionByToken failed: %v", err)
	}
	if _, err := GetSessionByToken(db, "access-token-2"); err == nil {
		t.Error("expected the session gone after delete")
	}
	// Deleting an already-gone token is not an error.
	if err := DeleteSessionByToken(db, "access-token-2"); err != nil {
		t.Errorf("expected idempotent delete, got %v", err)
	}
}

// TestSessionFilters proves expired and blocked sessions never resolve.
func TestSessionFilters(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "zanele", "pos_operator")

	expired := &Session{UserID: user.ID, Token: "expired-token", RefreshToken: "expired-refresh",
		ExpiresAt: time.Now().Add(-time.Minute)}
	if err := CreateSession(db, expired); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	blocked := &Session{UserID: user.ID, Token: "blocked-token", RefreshToken: "blocked-refresh",
		IsBlocked: true, ExpiresAt: time.Now().Add(time.Hour)}
	if err := CreateSession(db, blocked); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if _, err := GetSessionByToken(db, "expired-token"); err == nil {
		t.Error("expected an expired session to be rejected")
	}
	if _, err := GetSessionByRefreshToken(db, "expired-refresh"); err == nil {
		t.Error("expected an expired refresh token to be rejected")
	}
	if _, err := GetSessionByToken(db, "blocked-token"); err == nil {
		t.Error("expected a blocked session to be rejected")
	}
}

func TestDeleteSessionsForUser(t *testing.T) {
	db := newTestDB(t)
	first := createTestUser(t, db, "mpho", "admin")
	second := createTestUser(t, db, "dineo", "admin")

	for i, token := range []string{"mpho-a", "mpho-b"} {
		s := &Session{UserID: first.ID, Token: token, RefreshToken: token + "-r",
			ExpiresAt: time.Now().Add(time.Duration(i+1) * time.Hour)}
		if err := CreateSession(db, s); err != nil {
			t.Fatalf("CreateSession failed: %v", err)
		}
	}
	keep := &Session{UserID: second.ID, Token: "dineo-a", RefreshToken: "dineo-a-r",
		ExpiresAt: time.Now().Add(time.Hour)}
	if err := CreateSession(db, keep); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}

	if err := DeleteSessionsForUser(db, first.ID); err != nil {
		t.Fatalf("DeleteSessionsForUser failed: %v", err)
	}
	if _, err := GetSessionByToken(db, "mpho-a"); err == nil {
		t.Error("expected mpho-a gone")
	}
	if _, err := GetSessionByToken(db, "mpho-b"); err == nil {
		t.Error("expected mpho-b gone")
	}
	if _, err := GetSessionByToken(db, "dineo-a"); err != nil {
		t.Errorf("expected the other user's session untouched, got %v", err)
	}
}

// TestLoginLog records attempts and lists them newest first.
func TestLoginLog(t *testing.T) {
	db := newTestDB(t)

	base := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	attempts := []struct {
		username string
		success  bool
	}{
		{"thandi", true},
		{"intruder", false},
		{"thandi", true},
	}
	for i, a := range attempts {
		if err := InsertLoginLog(db, a.username, a.success, "10.0.0.5", base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("InsertLoginLog failed: %v", err)
		}
	}

	entries, err := RecentLoginLog(db, 0)
	if err != nil {
		t.Fatalf("RecentLoginLog failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 attempts with the default limit, got %d", len(entries))
	}
	if entries[0].Username != "thandi" || !entries[0].AttemptTime.Equal(base.Add(2*time.Minute)) {
		t.Errorf("expected the newest attempt first, got %+v", entries[0])
	}
	if entries[1].Username != "intruder" || entries[1].Success {
		t.Errorf("expected the failed attempt second, got %+v", entries[1])
	}
	if entries[0].IPAddress != "10.0.0.5" {
		t.Errorf("expected client IP back, got %q", entries[0].IPAddress)
	}

	limited, err := RecentLoginLog(db, 2)
	if err != nil {
		t.Fatalf("RecentLoginLog failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected limit of 2 honored, got %d", len(limited))
	}
}
