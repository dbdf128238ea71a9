package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/tillpoint/backend/src/config"
	"github.com/username/tillpoint/backend/src/logger"
	"github.com/username/tillpoint/backend/src/utils"
)

const csrfCookieName = "csrf_token"

// GetCSRFToken issues a signed double-submit token. The client echoes it in
// the X-CSRF-Token header on mutating requests while the cookie rides along.
func GetCSRFToken(w http.ResponseWriter, r *http.Request) {
	token, err := newCSRFToken()
	if err != nil {
		logger.L.Error("failed to generate CSRF token", "error", err)
		utils.SendJSONError(w, "Error generating CSRF token", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		Secure:   false, // Set to true in production with HTTPS
		MaxAge:   3600,
	})

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-CSRF-Token", token)
	json.NewEncoder(w).Encode(map[string]string{
		"csrfToken": token,
	})
}

// newCSRFToken returns "<random>.<mac>" where the MAC binds the random part
// to the server's key, so a planted cookie from another origin won't verify.
func newCSRFToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	random := base64.RawURLEncoding.EncodeToString(b)
	return random + "." + signCSRF(random), nil
}

func signCSRF(random string) string {
	mac := hmac.New(sha256.New, config.Cfg.CSRFAuthKey)
	mac.Write([]byte(random))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func validCSRFToken(token string) bool {
	random, gotMAC, found := strings.Cut(token, ".")
	if !found || random == "" {
		return false
	}
	return hmac.Equal([]byte(signCSRF(random)), []byte(gotMAC))
}

// CSRFMiddleware validates the double-submit pair on mutating requests.
// Safe methods pass through, which also keeps the token endpoint reachable.
func CSRFMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get("X-CSRF-Token")
			cookie, err := r.Cookie(csrfCookieName)
			if headerToken != "" && err == nil && headerToken == cookie.Value && validCSRFToken(headerToken) {
				next.ServeHTTP(w, r)
				return
			}

			logger.L.Warn("CSRF validation failed", "method", r.Method, "path", r.URL.Path,
				"origin", r.Header.Get("Origin"), "hasHeaderToken", headerToken != "", "cookieErr", err)
			utils.SendJSONError(w, "CSRF token validation failed", http.StatusForbidden)
		})
	}
}
