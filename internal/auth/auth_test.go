// Lootledger - Game Event Ingestion, Scoring, and Lootboards
// Copyright 2026 Lootledger Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lootledger/lootledger

package auth

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/lootledger/lootledger/internal/config"
	"github.com/lootledger/lootledger/internal/logging"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{
		Level:  "info",
		Format: "console",
		Output: io.Discard,
	})
}

func testSecurityConfig() *config.SecurityConfig {
	return &config.SecurityConfig{
		JWTSecret: "0123456789abcdef0123456789abcdef",
		TokenTTL:  time.Hour,
	}
}

func TestJWTRoundTrip(t *testing.T) {
	manager, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	token, err := manager.GenerateToken("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.Username != "admin" || claims.Role != "admin" {
		t.Errorf("got claims %+v", claims)
	}
}

func TestJWTRejectsShortSecret(t *testing.T) {
	_, err := NewJWTManager(&config.SecurityConfig{JWTSecret: "short"})
	if err == nil {
		t.Fatal("expected error for short secret")
	}
}

func TestJWTRejectsTamperedToken(t *testing.T) {
	manager, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}
	token, err := manager.GenerateToken("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tampered := token[:len(token)-2] + "xx"
	if _, err := manager.ValidateToken(tampered); err == nil {
		t.Error("tampered token validated")
	}
	if _, err := manager.ValidateToken("not.a.token"); err == nil {
		t.Error("garbage token validated")
	}
}

func TestJWTRejectsWrongSecret(t *testing.T) {
	a, _ := NewJWTManager(testSecurityConfig())
	b, _ := NewJWTManager(&config.SecurityConfig{
		JWTSecret: "ffffffffffffffffffffffffffffffff",
		TokenTTL:  time.Hour,
	})

	token, err := a.GenerateToken("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := b.ValidateToken(token); err == nil {
		t.Error("token signed with a different secret validated")
	}
}

func TestCredentialsVerify(t *testing.T) {
	creds, err := NewCredentials("admin", "hunter2hunter2")
	if err != nil {
		t.Fatalf("NewCredentials: %v", err)
	}

	if !creds.Verify("admin", "hunter2hunter2") {
		t.Error("valid credentials rejected")
	}
	if creds.Verify("admin", "wrong-password") {
		t.Error("wrong password accepted")
	}
	if creds.Verify("root", "hunter2hunter2") {
		t.Error("wrong username accepted")
	}
}

func TestCredentialsRequiresMinimumPassword(t *testing.T) {
	if _, err := NewCredentials("admin", "short"); err == nil {
		t.Error("short password accepted")
	}
	if _, err := NewCredentials("", "hunter2hunter2"); err == nil {
		t.Error("empty username accepted")
	}
}

func TestLockoutAfterMaxAttempts(t *testing.T) {
	lockout := NewLockout(LockoutConfig{
		MaxAttempts:  3,
		BaseDuration: time.Minute,
		MaxDuration:  time.Hour,
	})

	for i := 0; i < 2; i++ {
		if locked, _ := lockout.RecordFailure("admin"); locked {
			t.Fatalf("locked after %d attempts", i+1)
		}
	}
	locked, remaining := lockout.RecordFailure("admin")
	if !locked {
		t.Fatal("not locked after reaching max attempts")
	}
	if remaining <= 0 || remaining > time.Minute {
		t.Errorf("remaining = %v", remaining)
	}

	if locked, _ := lockout.CheckLocked("admin"); !locked {
		t.Error("CheckLocked disagrees with RecordFailure")
	}
	if locked, _ := lockout.CheckLocked("other"); locked {
		t.Error("unrelated subject locked")
	}
}

func TestLockoutExponentialBackoff(t *testing.T) {
	lockout := NewLockout(LockoutConfig{
		MaxAttempts:  1,
		BaseDuration: time.Minute,
		MaxDuration:  5 * time.Minute,
	})

	if d := lockout.lockoutDuration(0); d != time.Minute {
		t.Errorf("first lockout %v, want 1m", d)
	}
	if d := lockout.lockoutDuration(1); d != 2*time.Minute {
		t.Errorf("second lockout %v, want 2m", d)
	}
	if d := lockout.lockoutDuration(10); d != 5*time.Minute {
		t.Errorf("capped lockout %v, want 5m", d)
	}
}

func TestLockoutClearedBySuccess(t *testing.T) {
	lockout := NewLockout(DefaultLockoutConfig())
	lockout.RecordFailure("admin")
	lockout.RecordFailure("admin")
	lockout.RecordSuccess("admin")

	l := lockout.entries["admin"]
	if l != nil {
		t.Errorf("entry survived successful login: %+v", l)
	}
}

func TestLockoutSweep(t *testing.T) {
	lockout := NewLockout(DefaultLockoutConfig())
	lockout.RecordFailure("stale")
	lockout.entries["stale"].lastAttempt = time.Now().Add(-48 * time.Hour)
	lockout.RecordFailure("recent")

	if removed := lockout.Sweep(24 * time.Hour); removed != 1 {
		t.Errorf("swept %d entries, want 1", removed)
	}
	if _, ok := lockout.entries["recent"]; !ok {
		t.Error("recent entry swept")
	}
}

func TestMiddlewareRequiresToken(t *testing.T) {
	manager, err := NewJWTManager(testSecurityConfig())
	if err != nil {
		t.Fatalf("NewJWTManager: %v", err)
	}

	var gotClaims *Claims
	handler := Middleware(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	// No token.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: got %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "unauthorized") {
		t.Errorf("no token body: %s", rec.Body.String())
	}

	// Bad token.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad token: got %d, want 401", rec.Code)
	}

	// Valid token.
	token, err := manager.GenerateToken("admin", "admin")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("valid token: got %d, want 204", rec.Code)
	}
	if gotClaims == nil || gotClaims.Username != "admin" {
		t.Errorf("claims not attached: %+v", gotClaims)
	}
}

func TestMiddlewareAuthModeNone(t *testing.T) {
	handler := Middleware(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ClaimsFromContext(r.Context()) != nil {
			t.Error("claims present in auth mode none")
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("got %d, want 204", rec.Code)
	}
}
