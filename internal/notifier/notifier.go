package notifier

import (
	"context"
	"fmt"

	"github.com/Skotchmaster/auth_service/internal/models"
)

// Notifier delivers a raw single-use secret to its recipient out-of-band.
// Fire-and-forget: callers log failures and carry on.
type Notifier interface {
	Notify(ctx context.Context, purpose, recipient, rawSecret string) error
}

// TokenLink builds the URL a recipient follows to redeem the secret.
func TokenLink(appURL, purpose, rawSecret string) string {
	switch purpose {
	case models.PurposeEmailVerification:
		return fmt.Sprintf("%s/api/auth/verify-email?token=%s", appURL, rawSecret)
	case models.PurposePasswordReset:
		return fmt.Sprintf("%s/reset-password?token=%s", appURL, rawSecret)
	}
	return appURL
}
