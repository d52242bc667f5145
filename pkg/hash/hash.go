package hash

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword produces a bcrypt hash of the plaintext password.
func HashPassword(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	return string(hashBytes), nil
}

// CheckPassword reports whether the plaintext password matches the stored
// bcrypt hash. It never returns an error: any mismatch or malformed hash is
// simply false.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TokenDigest returns the hex-encoded sha256 digest of a raw opaque token.
// Deterministic so the same raw token always maps to the same store key.
// Not password-grade: raw tokens are high-entropy random values.
func TokenDigest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
