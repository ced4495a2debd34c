package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func sign(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return s
}

func TestStatic(t *testing.T) {
	if id, ok := Static("alice").CurrentUser(); !ok || id != "alice" {
		t.Errorf("Static(alice) = %q, %v", id, ok)
	}
	if _, ok := Static("  ").CurrentUser(); ok {
		t.Error("blank static user must be signed out")
	}
}

func TestNewToken(t *testing.T) {
	tok, err := NewToken(sign(t, "bob"))
	if err != nil {
		t.Fatalf("NewToken failed: %v", err)
	}
	if id, ok := tok.CurrentUser(); !ok || id != "bob" {
		t.Errorf("CurrentUser = %q, %v", id, ok)
	}

	if _, err := NewToken(sign(t, "")); !errors.Is(err, ErrNoSubject) {
		t.Errorf("expected ErrNoSubject, got %v", err)
	}
	if _, err := NewToken("garbage"); err == nil {
		t.Error("expected parse error for garbage token")
	}
}

func TestResolve(t *testing.T) {
	p, err := Resolve("carol", "garbage")
	if err != nil {
		t.Fatalf("explicit user should win without parsing the token: %v", err)
	}
	if id, _ := p.CurrentUser(); id != "carol" {
		t.Errorf("expected carol, got %q", id)
	}

	p, err = Resolve("", sign(t, "dave"))
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if id, _ := p.CurrentUser(); id != "dave" {
		t.Errorf("expected dave, got %q", id)
	}

	p, _ = Resolve("", "")
	if _, ok := p.CurrentUser(); ok {
		t.Error("no user and no token must be signed out")
	}
}
