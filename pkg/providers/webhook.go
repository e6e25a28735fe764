package providers

import (
	"context"
	"net/http"

	"github.com/Ramsey-B/fern/pkg/delivery"
	"github.com/Ramsey-B/fern/pkg/models"
)

// WebhookAdapter forwards the full event envelope verbatim to a tenant URL.
// The tenant controls method and extra headers.
type WebhookAdapter struct{}

func (a *WebhookAdapter) Kind() models.IntegrationKind {
	return models.IntegrationWebhook
}

func (a *WebhookAdapter) Validate(settings models.IntegrationSettings) error {
	if settings.URL == "" {
		return &ConfigError{Kind: a.Kind(), Field: "url"}
	}
	return nil
}

func (a *WebhookAdapter) Deliver(ctx context.Context, sender Sender, cfg *models.IntegrationConfig, payload *EventPayload) *delivery.Result {
	settings := cfg.Settings.GetValue()
	if err := a.Validate(settings); err != nil {
		return configFailure(err)
	}

	method := settings.Method
	if method == "" {
		method = http.MethodPost
	}

	body, err := payload.Envelope()
	if err != nil {
		return configFailure(err)
	}

	return sender.Send(ctx, rawRequestFor(cfg, method, settings.URL, settings.Headers, body))
}
