package providers

import (
	"context"
	"net/http"

	"github.com/Ramsey-B/fern/pkg/delivery"
	"github.com/Ramsey-B/fern/pkg/models"
)

const hubcrmContactsURL = "https://api.hubcrm.com/crm/v3/objects/contacts"

// HubCRMAdapter targets the HubCRM contact API. Bearer token auth, contact
// fields nested under a properties object.
type HubCRMAdapter struct{}

func (a *HubCRMAdapter) Kind() models.IntegrationKind {
	return models.IntegrationHubCRM
}

func (a *HubCRMAdapter) Validate(settings models.IntegrationSettings) error {
	if settings.APIKey == "" {
		return &ConfigError{Kind: a.Kind(), Field: "api_key"}
	}
	return nil
}

func (a *HubCRMAdapter) Deliver(ctx context.Context, sender Sender, cfg *models.IntegrationConfig, payload *EventPayload) *delivery.Result {
	settings := cfg.Settings.GetValue()
	if err := a.Validate(settings); err != nil {
		return configFailure(err)
	}

	body := map[string]any{
		"properties": map[string]any{
			"email":      payload.entityEmail(),
			"name":       payload.entityName(),
			"last_event": payload.Event,
		},
	}

	headers := map[string]string{
		"Authorization": "Bearer " + settings.APIKey,
	}

	req, err := requestFor(cfg, http.MethodPost, hubcrmContactsURL, headers, body)
	if err != nil {
		return configFailure(err)
	}

	return sender.Send(ctx, req)
}
