package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Ramsey-B/fern/pkg/delivery"
	"github.com/Ramsey-B/fern/pkg/models"
)

// MailhawkAdapter targets the Mailhawk email marketing API. The regional API
// host is encoded in the API key suffix: a key ending in "-us21" is served
// from us21.api.mailhawk.io.
type MailhawkAdapter struct{}

func (a *MailhawkAdapter) Kind() models.IntegrationKind {
	return models.IntegrationMailhawk
}

func (a *MailhawkAdapter) Validate(settings models.IntegrationSettings) error {
	if settings.APIKey == "" {
		return &ConfigError{Kind: a.Kind(), Field: "api_key"}
	}
	if _, err := a.regionOf(settings.APIKey); err != nil {
		return err
	}
	return nil
}

func (a *MailhawkAdapter) regionOf(apiKey string) (string, error) {
	idx := strings.LastIndex(apiKey, "-")
	if idx < 0 || idx == len(apiKey)-1 {
		return "", &ConfigError{Kind: a.Kind(), Field: "api_key", Cause: "no region suffix"}
	}
	return apiKey[idx+1:], nil
}

func (a *MailhawkAdapter) Deliver(ctx context.Context, sender Sender, cfg *models.IntegrationConfig, payload *EventPayload) *delivery.Result {
	settings := cfg.Settings.GetValue()
	if err := a.Validate(settings); err != nil {
		return configFailure(err)
	}

	region, _ := a.regionOf(settings.APIKey)
	url := fmt.Sprintf("https://%s.api.mailhawk.io/3.0/events", region)

	body := map[string]any{
		"event":         payload.Event,
		"email_address": payload.entityEmail(),
		"merge_fields": map[string]any{
			"NAME": payload.entityName(),
		},
	}
	if settings.ListID != "" {
		body["list_id"] = settings.ListID
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
