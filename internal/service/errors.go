package service

import (
	"errors"
	"fmt"
)

// Public error taxonomy. Store and codec failures are re-mapped onto these
// before they cross the service boundary; callers never see raw gorm or jwt
// errors.
var (
	ErrValidation            = errors.New("invalid input")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrEmailNotVerified      = errors.New("email not verified")
	ErrDuplicateAccount      = errors.New("user with this email already exists")
	ErrInvalidRefreshToken   = errors.New("invalid refresh token")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrAccountNotFound       = errors.New("account not found")

	// ErrTransient marks store or notifier I/O failures. Callers may retry;
	// the service never retries on its own.
	ErrTransient = errors.New("transient backend error")
)

func transient(err error) error {
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
