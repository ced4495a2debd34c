// Package auth exposes the identity of the signed-in user. Session and
// credential management live elsewhere; the sync core only needs a stable id.
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSubject is returned when a token carries no subject claim.
var ErrNoSubject = errors.New("token has no subject")

// Provider yields the current user id, or ok=false when nobody is signed in.
type Provider interface {
	CurrentUser() (userID string, ok bool)
}

// Static is a fixed identity. The empty string means signed out.
type Static string

// CurrentUser implements Provider.
func (s Static) CurrentUser() (string, bool) {
	id := strings.TrimSpace(string(s))
	return id, id != ""
}

// Token is an identity backed by a bearer token issued by the task API.
type Token struct {
	subject string
}

// NewToken reads the subject of a JWT. The signature is not verified here;
// the server verifies it on every request.
func NewToken(raw string) (*Token, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("empty token")
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if claims.Subject == "" {
		return nil, ErrNoSubject
	}
	return &Token{subject: claims.Subject}, nil
}

// CurrentUser implements Provider.
func (t *Token) CurrentUser() (string, bool) {
	if t == nil {
		return "", false
	}
	return t.subject, true
}

// Resolve picks the identity for a client: an explicit user wins, then the token.
func Resolve(user, token string) (Provider, error) {
	if strings.TrimSpace(user) != "" {
		return Static(user), nil
	}
	if token != "" {
		return NewToken(token)
	}
	return Static(""), nil
}
