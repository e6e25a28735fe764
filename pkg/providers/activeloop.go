package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Ramsey-B/fern/pkg/delivery"
	"github.com/Ramsey-B/fern/pkg/models"
)

// ActiveloopAdapter targets the Activeloop CRM. Each tenant account lives on
// its own subdomain, so the base URL is derived from settings rather than
// fixed.
type ActiveloopAdapter struct{}

func (a *ActiveloopAdapter) Kind() models.IntegrationKind {
	return models.IntegrationActiveloop
}

func (a *ActiveloopAdapter) Validate(settings models.IntegrationSettings) error {
	if settings.APIKey == "" {
		return &ConfigError{Kind: a.Kind(), Field: "api_key"}
	}
	if settings.Subdomain == "" {
		return &ConfigError{Kind: a.Kind(), Field: "subdomain"}
	}
	return nil
}

func (a *ActiveloopAdapter) Deliver(ctx context.Context, sender Sender, cfg *models.IntegrationConfig, payload *EventPayload) *delivery.Result {
	settings := cfg.Settings.GetValue()
	if err := a.Validate(settings); err != nil {
		return configFailure(err)
	}

	url := fmt.Sprintf("https://%s.api.activeloop.com/api/3/contacts", settings.Subdomain)

	body := map[string]any{
		"contact": map[string]any{
			"email":     payload.entityEmail(),
			"firstName": payload.entityName(),
		},
		"event": payload.Event,
	}

	headers := map[string]string{
		"Api-Token": settings.APIKey,
	}

	req, err := requestFor(cfg, http.MethodPost, url, headers, body)
	if err != nil {
		return configFailure(err)
	}

	return sender.Send(ctx, req)
}
