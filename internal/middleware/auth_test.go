package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestRequireAuthNoToken(t *testing.T) {
	a := NewAuthenticator("test-secret")

	handler := a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Error("missing WWW-Authenticate header")
	}
}

func TestRequireAuthGarbageToken(t *testing.T) {
	a := NewAuthenticator("test-secret")

	handler := a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthValidToken(t *testing.T) {
	a := NewAuthenticator("test-secret")

	token, err := a.MintToken("lobby-display", time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	reached := false
	handler := a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !reached {
		t.Error("handler was not reached")
	}
}

func TestRequireAuthWrongSecret(t *testing.T) {
	issuer := NewAuthenticator("one-secret")
	verifier := NewAuthenticator("another-secret")

	token, err := issuer.MintToken("lobby-display", time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	handler := verifier.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireAuthExpiredToken(t *testing.T) {
	a := NewAuthenticator("test-secret")

	token, err := a.MintToken("lobby-display", -time.Minute)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	handler := a.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/status", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestVerifyReturnsSubject(t *testing.T) {
	a := NewAuthenticator("test-secret")

	token, err := a.MintToken("lobby-display", time.Hour)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	subject, err := a.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "lobby-display" {
		t.Errorf("subject = %q, want lobby-display", subject)
	}
}
