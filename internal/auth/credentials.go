// Package auth keeps the bearer token and user profile between runs and
// performs login, registration and logout against the backend.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

const (
	keyToken = "token"
	keyUser  = "user"
)

// CredentialStore is the process-wide credential slot: set at login, cleared at logout.
type CredentialStore struct {
	kv  KV
	now func() time.Time
}

// NewCredentialStore builds a store over kv.
func NewCredentialStore(kv KV) *CredentialStore {
	return &CredentialStore{kv: kv, now: time.Now}
}

// Token returns the stored bearer token, or "" when there is none or the
// token is a JWT whose exp claim has passed.
func (s *CredentialStore) Token(ctx context.Context) (string, error) {
	token, ok, err := s.kv.Get(ctx, keyToken)
	if err != nil {
		return "", fmt.Errorf("Token: %w", err)
	}
	if !ok || token == "" {
		return "", nil
	}
	if exp, ok := TokenExpiry(token); ok && !s.now().Before(exp) {
		return "", nil
	}
	return token, nil
}

// User returns the stored profile; nil when logged out.
func (s *CredentialStore) User(ctx context.Context) (*domain.User, error) {
	raw, ok, err := s.kv.Get(ctx, keyUser)
	if err != nil {
		return nil, fmt.Errorf("User: %w", err)
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("User: decoding profile: %w", err)
	}
	return &u, nil
}

// Save stores the token and profile.
func (s *CredentialStore) Save(ctx context.Context, token string, user domain.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("Save: encoding profile: %w", err)
	}
	if err := s.kv.Set(ctx, keyToken, token); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	if err := s.kv.Set(ctx, keyUser, string(raw)); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// Clear removes token and profile.
func (s *CredentialStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, keyToken, keyUser); err != nil {
		return fmt.Errorf("Clear: %w", err)
	}
	return nil
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The signing key belongs to the backend; this is only used to avoid sending
// a token that is known to be stale. ok is false for opaque tokens.
func TokenExpiry(token string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
