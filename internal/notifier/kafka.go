package notifier

import (
	"context"

	"github.com/Skotchmaster/auth_service/internal/events"
)

const emailEventsTopic = "email_events"

// KafkaNotifier publishes email requests for a downstream mailer to deliver.
type KafkaNotifier struct {
	Producer *events.Producer
	AppURL   string
}

func (n *KafkaNotifier) Notify(ctx context.Context, purpose, recipient, rawSecret string) error {
	event := map[string]interface{}{
		"type":      "email_requested",
		"purpose":   purpose,
		"recipient": recipient,
		"link":      TokenLink(n.AppURL, purpose, rawSecret),
	}
	return n.Producer.PublishEvent(ctx, emailEventsTopic, recipient, event)
}
