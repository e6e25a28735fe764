package providers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Ramsey-B/fern/pkg/delivery"
	"github.com/Ramsey-B/fern/pkg/models"
)

// kitlineBaseURL is the fixed Kitline API host; Kitline authenticates with
// the API key in the query string rather than a header.
const kitlineBaseURL = "https://api.kitline.com/v3/subscribers"

// KitlineAdapter targets the Kitline email marketing API
type KitlineAdapter struct{}

func (a *KitlineAdapter) Kind() models.IntegrationKind {
	return models.IntegrationKitline
}

func (a *KitlineAdapter) Validate(settings models.IntegrationSettings) error {
	if settings.APIKey == "" {
		return &ConfigError{Kind: a.Kind(), Field: "api_key"}
	}
	return nil
}

func (a *KitlineAdapter) Deliver(ctx context.Context, sender Sender, cfg *models.IntegrationConfig, payload *EventPayload) *delivery.Result {
	settings := cfg.Settings.GetValue()
	if err := a.Validate(settings); err != nil {
		return configFailure(err)
	}

	target := kitlineBaseURL + "?api_key=" + url.QueryEscape(settings.APIKey)

	body := map[string]any{
		"event":      payload.Event,
		"email":      payload.entityEmail(),
		"first_name": payload.entityName(),
	}
	if settings.ListID != "" {
		body["form_id"] = settings.ListID
	}

	req, err := requestFor(cfg, http.MethodPost, target, nil, body)
	if err != nil {
		return configFailure(err)
	}

	return sender.Send(ctx, req)
}
