package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/username/tillpoint/backend/src/config"
)

// TestCSRFTokenValidation checks the signed shape: only tokens minted with
// the server's key verify.
func TestCSRFTokenValidation(t *testing.T) {
	token, err := newCSRFToken()
	if err != nil {
		t.Fatalf("newCSRFToken failed: %v", err)
	}
	random, mac, found := strings.Cut(token, ".")
	if !found || random == "" || mac == "" {
		t.Fatalf("expected random.mac shape, got %q", token)
	}
	if !validCSRFToken(token) {
		t.Error("expected a freshly minted token to verify")
	}

	if validCSRFToken(random + ".forged-mac") {
		t.Error("expected a forged signature to fail")
	}
	if validCSRFToken(random) {
		t.Error("expected a token without a signature to fail")
	}
	if validCSRFToken("") {
		t.Error("expected an empty token to fail")
	}

	// A token minted under another key is a cookie planted from elsewhere.
	saved := config.Cfg.CSRFAuthKey
	config.Cfg.CSRFAuthKey = []byte("some-other-32-byte-signing-key-entirely!")
	planted, err := newCSRFToken()
	config.Cfg.CSRFAuthKey = saved
	if err != nil {
		t.Fatalf("newCSRFToken failed: %v", err)
	}
	if validCSRFToken(planted) {
		t.Error("expected a token signed under another key to fail")
	}
}

// TestGetCSRFToken issues the cookie/header/body triple with one token.
func TestGetCSRFToken(t *testing.T) {
	rec := httptest.NewRecorder()
	GetCSRFToken(rec, httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == csrfCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("expected the csrf_token cookie to be set")
	}
	if !cookie.HttpOnly {
		t.Error("expected an HttpOnly cookie")
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body failed: %v", err)
	}
	if body["csrfToken"] != cookie.Value {
		t.Error("expected the body token to match the cookie")
	}
	if rec.Header().Get("X-CSRF-Token") != cookie.Value {
		t.Error("expected the header token to match the cookie")
	}
	if !validCSRFToken(cookie.Value) {
		t.Error("expected the issued token to verify")
	}
}

// TestCSRFMiddleware covers the double-submit check on mutating requests.
func TestCSRFMiddleware(t *testing.T) {
	handler := CSRFMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(method string, headerToken, cookieToken string) int {
		r := httptest.NewRequest(method, "/api/sales", nil)
		if headerToken != "" {
			r.Header.Set("X-CSRF-Token", headerToken)
		}
		if cookieToken != "" {
			r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: cookieToken})
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, r)
		return rec.Code
	}

	token, err := newCSRFToken()
	if err != nil {
		t.Fatalf("newCSRFToken failed: %v", err)
	}
	other, err := newCSRFToken()
	if err != nil {
		t.Fatalf("newCSRFToken failed: %v", err)
	}

	if code := do(http.MethodGet, "", ""); code != http.StatusOK {
		t.Errorf("expected GET to pass without a token, got %d", code)
	}
	if code := do(http.MethodPost, token, token); code != http.StatusOK {
		t.Errorf("expected a matching pair to pass, got %d", code)
	}
	if code := do(http.MethodPost, "", ""); code != http.StatusForbidden {
		t.Errorf("expected a bare POST to be blocked, got %d", code)
	}
	if code := do(http.MethodPost, token, ""); code != http.StatusForbidden {
		t.Errorf("expected a header without its cookie to be blocked, got %d", code)
	}
	if code := do(http.MethodPost, token, other); code != http.StatusForbidden {
		t.Errorf("expected a mismatched pair to be blocked, got %d", code)
	}
	if code := do(http.MethodPost, "fake.fake", "fake.fake"); code != http.StatusForbidden {
		t.Errorf("expected an unsigned pair to be blocked, got %d", code)
	}
}
