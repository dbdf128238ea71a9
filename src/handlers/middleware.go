package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/model"
	"github.com/username/tillpoint/backend/src/security"
	"github.com/username/tillpoint/backend/src/utils"
)

func (h *UserHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			logger.L.Debug("AuthMiddleware: Authorization header missing", "path", r.URL.Path)
			utils.SendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		tokenString := ""
		if strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		} else {
			tokenString = authHeader
		}

		if tokenString == "" {
			logger.L.Debug("AuthMiddleware: Token string empty", "path", r.URL.Path)
			utils.SendJSONError(w, "Malformed token", http.StatusUnauthorized)
			return
		}

		userID, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			logger.L.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		if _, err := model.GetSessionByToken(h.db, tokenString); err != nil {
			logger.L.Warn("AuthMiddleware: Session validation failed", "path", r.URL.Path, "error", err)
			utils.SendJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
			return
		}

		user, err := model.GetUserByID(h.db, userID)
		if err != nil {
			logger.L.Warn("AuthMiddleware: User not found for valid token", "userID", userID, "error", err)
			utils.SendJSONError(w, "Invalid session or user", http.StatusUnauthorized)
			return
		}
		if !user.Active {
			logger.L.Warn("AuthMiddleware: Disabled account attempted access", "userID", userID, "path", r.URL.Path)
			utils.SendJSONError(w, "Account is disabled", http.StatusForbidden)
			return
		}

		ctx := context.WithValue(r.Context(), userIDContextKey, userID)
		ctx = context.WithValue(ctx, userRoleContextKey, user.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a handler behind one permission area. It must run
// inside AuthMiddleware so the role is already on the context.
func (h *UserHandler) RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role, ok := GetUserRoleFromContext(r.Context())
			if !ok {
				utils.SendJSONError(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			if !security.RoleAllowed(role, permission) {
				logger.L.Warn("permission denied", "role", role, "permission", permission, "path", r.URL.Path)
				utils.SendJSONError(w, "Permission denied", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
