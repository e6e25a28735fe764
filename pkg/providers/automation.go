package providers

import (
	"context"
	"net/http"

	"github.com/Ramsey-B/fern/pkg/delivery"
	"github.com/Ramsey-B/fern/pkg/models"
)

// AutomationAdapter posts a simplified flat payload to an automation hook.
// Always POST; automation engines key off top-level fields.
type AutomationAdapter struct{}

func (a *AutomationAdapter) Kind() models.IntegrationKind {
	return models.IntegrationAutomation
}

func (a *AutomationAdapter) Validate(settings models.IntegrationSettings) error {
	if settings.URL == "" {
		return &ConfigError{Kind: a.Kind(), Field: "url"}
	}
	return nil
}

func (a *AutomationAdapter) Deliver(ctx context.Context, sender Sender, cfg *models.IntegrationConfig, payload *EventPayload) *delivery.Result {
	settings := cfg.Settings.GetValue()
	if err := a.Validate(settings); err != nil {
		return configFailure(err)
	}

	body := map[string]any{
		"event":       payload.Event,
		"group_id":    payload.GroupID,
		"occurred_at": payload.OccurredAt,
	}
	if payload.Entity != nil {
		body["entity_id"] = payload.Entity.ID
		body["entity_type"] = payload.Entity.Type
		body["entity_name"] = payload.Entity.Name
	}

	req, err := requestFor(cfg, http.MethodPost, settings.URL, settings.Headers, body)
	if err != nil {
		return configFailure(err)
	}

	return sender.Send(ctx, req)
}
