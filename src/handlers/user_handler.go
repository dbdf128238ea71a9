package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/username/tillpoint/backend/src/config"
	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/model"
	"github.com/username/tillpoint/backend/src/security"
	"github.com/username/tillpoint/backend/src/security/validation"
	"github.com/username/tillpoint/backend/src/utils"
)

// Define a custom type for context keys to avoid collisions.
// This type is unexported, making it unique to this package.
type contextKey string

const (
	userIDContextKey   = contextKey("userID")
	userRoleContextKey = contextKey("userRole")
)

type UserHandler struct {
	db          *sql.DB
	authService *security.AuthService
}

func NewUserHandler(db *sql.DB, authService *security.AuthService) *UserHandler {
	return &UserHandler{
		db:          db,
		authService: authService,
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,max=120"`
	Role     string `json:"role" validate:"required"`
}

func userResponse(u *model.User) map[string]interface{} {
	return map[string]interface{}{
		"id":        u.ID,
		"username":  u.Username,
		"full_name": u.FullName,
		"role":      u.Role,
		"active":    u.Active,
	}
}

// LoginUserHandler checks credentials, records the attempt in the login log
// and hands out an access/refresh token pair.
func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	var creds loginRequest
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if errs := validation.ValidateStruct(creds); len(errs) > 0 {
		utils.SendJSONError(w, validation.FormatErrors(errs), http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByUsername(h.db, creds.Username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			h.recordLoginAttempt(creds.Username, false, r)
			utils.SendJSONError(w, "Invalid username or password", http.StatusUnauthorized)
			return
		}
		logger.L.Error("login: user lookup failed", "username", creds.Username, "error", err)
		utils.SendJSONError(w, "Error processing login", http.StatusInternalServerError)
		return
	}

	if err := user.CheckPassword(creds.Password); err != nil {
		h.recordLoginAttempt(creds.Username, false, r)
		utils.SendJSONError(w, "Invalid username or password", http.StatusUnauthorized)
		return
	}

	if !user.Active {
		h.recordLoginAttempt(creds.Username, false, r)
		logger.L.Warn("login attempt on disabled account", "username", creds.Username)
		utils.SendJSONError(w, "Account is disabled", http.StatusForbidden)
		return
	}

	accessToken, err := h.authService.GenerateToken(user.ID)
	if err != nil {
		logger.L.Error("login: token generation failed", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Error generating token", http.StatusInternalServerError)
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		logger.L.Error("login: refresh token generation failed", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Error generating token", http.StatusInternalServerError)
		return
	}

	session := &model.Session{
		UserID:       user.ID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := model.CreateSession(h.db, session); err != nil {
		logger.L.Error("login: session creation failed", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Error creating session", http.StatusInternalServerError)
		return
	}

	h.recordLoginAttempt(user.Username, true, r)
	if err := model.UpdateLastLogin(h.db, user.ID, time.Now()); err != nil {
		logger.L.Warn("login: failed to update last login", "userID", user.ID, "error", err)
	}

	logger.L.Info("user logged in", "userID", user.ID, "username", user.Username, "role", user.Role)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"user":          userResponse(user),
	})
}

func (h *UserHandler) recordLoginAttempt(username string, success bool, r *http.Request) {
	if err := model.InsertLoginLog(h.db, username, success, r.RemoteAddr, time.Now()); err != nil {
		logger.L.Warn("failed to record login attempt", "username", username, "error", err)
	}
}

// RefreshTokenHandler exchanges a valid refresh token for a fresh token pair.
// The old session is dropped so a stolen refresh token cannot be replayed.
func (h *UserHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		utils.SendJSONError(w, "Refresh token required", http.StatusBadRequest)
		return
	}

	session, err := model.GetSessionByRefreshToken(h.db, req.RefreshToken)
	if err != nil {
		utils.SendJSONError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	user, err := model.GetUserByID(h.db, session.UserID)
	if err != nil {
		logger.L.Error("refresh: user lookup failed", "userID", session.UserID, "error", err)
		utils.SendJSONError(w, "Invalid session or user", http.StatusUnauthorized)
		return
	}
	if !user.Active {
		utils.SendJSONError(w, "Account is disabled", http.StatusForbidden)
		return
	}

	accessToken, err := h.authService.GenerateToken(user.ID)
	if err != nil {
		logger.L.Error("refresh: token generation failed", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Error generating token", http.StatusInternalServerError)
		return
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		logger.L.Error("refresh: refresh token generation failed", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Error generating token", http.StatusInternalServerError)
		return
	}

	if err := model.DeleteSessionByToken(h.db, session.Token); err != nil {
		logger.L.Warn("refresh: failed to delete old session", "userID", user.ID, "error", err)
	}
	newSession := &model.Session{
		UserID:       user.ID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := model.CreateSession(h.db, newSession); err != nil {
		logger.L.Error("refresh: session creation failed", "userID", user.ID, "error", err)
		utils.SendJSONError(w, "Error creating session", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == "" {
		utils.SendJSONError(w, "Authorization header required", http.StatusBadRequest)
		return
	}

	if err := model.DeleteSessionByToken(h.db, tokenString); err != nil {
		logger.L.Error("logout: failed to delete session", "error", err)
		utils.SendJSONError(w, "Error processing logout", http.StatusInternalServerError)
		return
	}
	if userID, ok := GetUserIDFromContext(r.Context()); ok {
		logger.L.Info("user logged out", "userID", userID)
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterUserHandler creates a staff account. The route is restricted to
// user management, so only admins reach this point.
func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		utils.SendJSONError(w, validation.FormatErrors(errs), http.StatusBadRequest)
		return
	}
	if !security.ValidRole(req.Role) {
		utils.SendJSONError(w, "Invalid role: "+req.Role, http.StatusBadRequest)
		return
	}

	user := &model.User{
		Username: strings.TrimSpace(req.Username),
		FullName: strings.TrimSpace(req.FullName),
		Role:     req.Role,
		Active:   true,
	}
	if err := user.HashPassword(req.Password); err != nil {
		logger.L.Error("register: password hashing failed", "error", err)
		utils.SendJSONError(w, "Error creating user", http.StatusInternalServerError)
		return
	}

	if err := user.CreateUser(h.db); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.username") {
			utils.SendJSONError(w, "Username already exists", http.StatusConflict)
			return
		}
		logger.L.Error("register: user creation failed", "username", user.Username, "error", err)
		utils.SendJSONError(w, "Error creating user", http.StatusInternalServerError)
		return
	}

	actorID, _ := GetUserIDFromContext(r.Context())
	logger.L.Info("user account created", "userID", user.ID, "username", user.Username, "role", user.Role, "createdBy", actorID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(userResponse(user))
}

func (h *UserHandler) ListUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := model.ListUsers(h.db)
	if err != nil {
		logger.L.Error("failed to list users", "error", err)
		utils.SendJSONError(w, "Error fetching users", http.StatusInternalServerError)
		return
	}

	response := make([]map[string]interface{}, 0, len(users))
	for i := range users {
		entry := userResponse(&users[i])
		entry["last_login"] = users[i].LastLogin
		entry["created_at"] = users[i].CreatedAt
		response = append(response, entry)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		logger.L.Error("error encoding users response", "error", err)
	}
}

// SetUserActiveHandler enables or disables an account. Disabling also drops
// the account's sessions so outstanding tokens stop working immediately.
func (h *UserHandler) SetUserActiveHandler(w http.ResponseWriter, r *http.Request) {
	targetID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		utils.SendJSONError(w, "Invalid user ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	actorID, _ := GetUserIDFromContext(r.Context())
	if targetID == actorID && !req.Active {
		utils.SendJSONError(w, "You cannot deactivate your own account", http.StatusBadRequest)
		return
	}

	if err := model.SetUserActive(h.db, targetID, req.Active); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			utils.SendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		logger.L.Error("failed to update user active flag", "userID", targetID, "error", err)
		utils.SendJSONError(w, "Error updating user", http.StatusInternalServerError)
		return
	}

	if !req.Active {
		if err := model.DeleteSessionsForUser(h.db, targetID); err != nil {
			logger.L.Warn("failed to clear sessions for disabled user", "userID", targetID, "error", err)
		}
	}

	logger.L.Info("user active flag updated", "userID", targetID, "active", req.Active, "updatedBy", actorID)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     targetID,
		"active": req.Active,
	})
}

func (h *UserHandler) LoginLogHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			utils.SendJSONError(w, "Invalid limit parameter", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := model.RecentLoginLog(h.db, limit)
	if err != nil {
		logger.L.Error("failed to fetch login log", "error", err)
		utils.SendJSONError(w, "Error fetching login log", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.LoginLogEntry{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(entries); err != nil {
		logger.L.Error("error encoding login log response", "error", err)
	}
}

// GetUserIDFromContext retrieves the user ID stored by AuthMiddleware.
func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

// GetUserRoleFromContext retrieves the role stored by AuthMiddleware.
func GetUserRoleFromContext(ctx context.Context) (string, bool) {
	role, ok := ctx.Value(userRoleContextKey).(string)
	return role, ok
}
