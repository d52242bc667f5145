package tokenstore

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Skotchmaster/auth_service/internal/models"
	"github.com/Skotchmaster/auth_service/internal/repo"
	"github.com/Skotchmaster/auth_service/pkg/hash"
)

const (
	EmailVerificationTTL = 30 * time.Minute
	PasswordResetTTL     = time.Hour

	secretBytes = 32
)

// Store manages short-lived single-use secrets. Only the sha256 digest of a
// secret is persisted; the raw value exists once, in the return of Issue.
type Store struct {
	Repo *repo.GormRepo
}

func newSecret() (string, error) {
	buf := make([]byte, secretBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("token secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Issue creates a fresh secret for the subject and purpose, supersedes any
// older tokens of the same purpose, and persists the digest with an absolute
// expiry. Returns the raw secret for out-of-band delivery.
func (s *Store) Issue(ctx context.Context, purpose string, userID uuid.UUID, ttl time.Duration) (string, error) {
	raw, err := newSecret()
	if err != nil {
		return "", err
	}

	if err := s.Repo.DeleteSingleUseTokensForUser(ctx, userID, purpose); err != nil {
		return "", err
	}

	token := models.SingleUseToken{
		Purpose:   purpose,
		TokenHash: hash.TokenDigest(raw),
		UserID:    userID,
		ExpiresAt: time.Now().Add(ttl),
	}
	if err := s.Repo.CreateSingleUseToken(ctx, &token); err != nil {
		return "", err
	}

	return raw, nil
}

// Consume redeems the raw secret exactly once and returns the owning subject.
// Returns repo.ErrTokenNotFound for unknown or already-consumed secrets and
// repo.ErrTokenExpired for expired ones.
func (s *Store) Consume(ctx context.Context, purpose, raw string) (uuid.UUID, error) {
	token, err := s.Repo.ConsumeSingleUseToken(ctx, purpose, hash.TokenDigest(raw))
	if err != nil {
		return uuid.Nil, err
	}
	return token.UserID, nil
}

func (s *Store) RevokeAll(ctx context.Context, userID uuid.UUID, purpose string) error {
	return s.Repo.DeleteSingleUseTokensForUser(ctx, userID, purpose)
}
