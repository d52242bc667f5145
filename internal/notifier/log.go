package notifier

import (
	"context"

	"github.com/Skotchmaster/auth_service/pkg/logging"
)

// LogNotifier writes the redemption link to the log. Stand-in for a real
// mailer when no brokers are configured.
type LogNotifier struct {
	AppURL string
}

func (n *LogNotifier) Notify(ctx context.Context, purpose, recipient, rawSecret string) error {
	logging.FromContext(ctx).Info("email_requested",
		"purpose", purpose,
		"recipient", recipient,
		"link", TokenLink(n.AppURL, purpose, rawSecret),
	)
	return nil
}
