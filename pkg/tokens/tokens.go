package tokens

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTTL  = 15 * time.Minute
	RefreshTTL = 7 * 24 * time.Hour
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

type AccessClaims struct {
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	jwt.RegisteredClaims
}

// Codec signs and verifies access and refresh tokens. The two token classes
// use separate secrets so a leaked access secret cannot forge refresh tokens.
type Codec struct {
	AccessSecret  []byte
	RefreshSecret []byte
}

func (c *Codec) SignAccess(subjectID string, exp time.Time) (string, error) {
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.AccessSecret)
}

// SignRefresh embeds a fresh JTI so every issued token is unique even when
// subject and timestamps coincide; the token digest is a store key.
func (c *Codec) SignRefresh(subjectID string, exp time.Time) (string, error) {
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.RefreshSecret)
}

// VerifyAccess checks signature and expiry and returns the subject id.
// Verification is pure: no store lookup.
func (c *Codec) VerifyAccess(tokenStr string) (string, error) {
	var claims AccessClaims
	if err := parse(tokenStr, &claims, c.AccessSecret); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func (c *Codec) VerifyRefresh(tokenStr string) (string, error) {
	var claims RefreshClaims
	if err := parse(tokenStr, &claims, c.RefreshSecret); err != nil {
		return "", err
	}
	return claims.Subject, nil
}

func parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected sign method")
		}
		return secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}
	if !tkn.Valid {
		return ErrInvalidToken
	}
	sub, err := tkn.Claims.GetSubject()
	if err != nil || sub == "" {
		return ErrInvalidToken
	}
	return nil
}
