package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Ramsey-B/fern/pkg/delivery"
	"github.com/Ramsey-B/fern/pkg/models"
)

// HighriseAdapter targets the Highrise CRM. Accounts are partitioned by
// location, so both the token and the location id are required.
type HighriseAdapter struct{}

func (a *HighriseAdapter) Kind() models.IntegrationKind {
	return models.IntegrationHighrise
}

func (a *HighriseAdapter) Validate(settings models.IntegrationSettings) error {
	if settings.APIKey == "" {
		return &ConfigError{Kind: a.Kind(), Field: "api_key"}
	}
	if settings.LocationID == "" {
		return &ConfigError{Kind: a.Kind(), Field: "location_id"}
	}
	return nil
}

func (a *HighriseAdapter) Deliver(ctx context.Context, sender Sender, cfg *models.IntegrationConfig, payload *EventPayload) *delivery.Result {
	settings := cfg.Settings.GetValue()
	if err := a.Validate(settings); err != nil {
		return configFailure(err)
	}

	url := fmt.Sprintf("https://api.highrise.com/v1/locations/%s/events", settings.LocationID)

	body := map[string]any{
		"event": payload.Event,
		"name":  payload.entityName(),
		"email": payload.entityEmail(),
	}

	headers := map[string]string{
		"Authorization": "Bearer " + settings.APIKey,
	}

	req, err := requestFor(cfg, http.MethodPost, url, headers, body)
	if err != nil {
		return configFailure(err)
	}

	return sender.Send(ctx, req)
}
