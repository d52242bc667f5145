package repo

import (
	"errors"

	"gorm.io/gorm"
)

// Layer-level sentinels. The service maps these onto its public taxonomy.
var (
	ErrDuplicateEmail = errors.New("email already registered")
	ErrTokenNotFound  = errors.New("token record not found")
	ErrTokenExpired   = errors.New("token record expired")
)

type GormRepo struct {
	DB *gorm.DB
}
