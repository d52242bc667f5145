package models

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"  json:"id"`
	Username      string    `gorm:"not null"              json:"username"`
	Email         string    `gorm:"uniqueIndex;not null"  json:"email"`
	PasswordHash  string    `gorm:"not null"              json:"-"`
	EmailVerified bool      `gorm:"default:false"         json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
}

// RefreshSession holds the sha256 digest of a raw refresh token. The raw
// token itself is never persisted. At most one row exists per raw token;
// rotation deletes the row and creates a new one for the replacement token.
type RefreshSession struct {
	ID        uint      `gorm:"primaryKey"            json:"id"`
	TokenHash string    `gorm:"uniqueIndex;not null"  json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"              json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Single-use token purposes.
const (
	PurposeEmailVerification = "email_verification"
	PurposePasswordReset     = "password_reset"
)

// SingleUseToken is consumed exactly once: deletion is the consumption.
type SingleUseToken struct {
	ID        uint      `gorm:"primaryKey"            json:"id"`
	Purpose   string    `gorm:"index;not null"        json:"purpose"`
	TokenHash string    `gorm:"uniqueIndex;not null"  json:"-"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	ExpiresAt time.Time `gorm:"not null"              json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
