package providers_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/delivery"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/providers"
)

// spySender records requests instead of touching the network
type spySender struct {
	requests []delivery.Request
	result   *delivery.Result
}

func (s *spySender) Send(_ context.Context, req delivery.Request) *delivery.Result {
	s.requests = append(s.requests, req)
	if s.result != nil {
		return s.result
	}
	return &delivery.Result{Success: true, Attempts: 1, StatusCode: 200}
}

func testConfig(kind models.IntegrationKind, settings models.IntegrationSettings) *models.IntegrationConfig {
	return &models.IntegrationConfig{
		Kind:     kind,
		Name:     "test " + string(kind),
		Enabled:  true,
		Settings: database.JSONB[models.IntegrationSettings]{Data: settings},
	}
}

func testPayload() *providers.EventPayload {
	return &providers.EventPayload{
		Event:      "entity_created",
		GroupID:    "g1",
		OccurredAt: time.Now().UTC(),
		Entity: &providers.EntitySummary{
			ID:   "e1",
			Type: "contact",
			Name: "Jane",
			Properties: map[string]any{
				"email": "jane@example.com",
			},
		},
	}
}

func TestRegistryHasAllKinds(t *testing.T) {
	registry := providers.NewRegistry()

	for _, kind := range []models.IntegrationKind{
		models.IntegrationWebhook,
		models.IntegrationAutomation,
		models.IntegrationMailhawk,
		models.IntegrationKitline,
		models.IntegrationActiveloop,
		models.IntegrationHubCRM,
		models.IntegrationHighrise,
	} {
		adapter, ok := registry.Get(kind)
		require.True(t, ok, "missing adapter for %s", kind)
		assert.Equal(t, kind, adapter.Kind())
	}

	_, ok := registry.Get("smoke-signals")
	assert.False(t, ok)
}

func TestWebhookDeliver(t *testing.T) {
	adapter := &providers.WebhookAdapter{}
	sender := &spySender{}

	cfg := testConfig(models.IntegrationWebhook, models.IntegrationSettings{
		URL:     "https://hooks.example.com/fern",
		Headers: map[string]string{"X-Signature": "abc"},
	})

	payload := testPayload()
	result := adapter.Deliver(context.Background(), sender, cfg, payload)

	require.True(t, result.Success)
	require.Len(t, sender.requests, 1)
	req := sender.requests[0]
	assert.Equal(t, "https://hooks.example.com/fern", req.URL)
	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "abc", req.Headers["X-Signature"])

	// full envelope forwarded verbatim
	want, err := payload.Envelope()
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(req.Payload))

	var envelope map[string]any
	require.NoError(t, json.Unmarshal(req.Payload, &envelope))
	assert.Equal(t, "entity_created", envelope["event"])
	entity := envelope["entity"].(map[string]any)
	assert.Equal(t, "contact", entity["type"])
	assert.Equal(t, "Jane", entity["name"])
}

func TestWebhookMissingURLFailsFast(t *testing.T) {
	adapter := &providers.WebhookAdapter{}
	sender := &spySender{}

	cfg := testConfig(models.IntegrationWebhook, models.IntegrationSettings{})

	result := adapter.Deliver(context.Background(), sender, cfg, testPayload())

	assert.False(t, result.Success)
	assert.Zero(t, result.Attempts)
	require.Error(t, result.Err)
	assert.True(t, providers.IsConfigError(result.Err))
	assert.Empty(t, sender.requests, "config failures must not reach the network")
}

func TestAutomationFlatPayload(t *testing.T) {
	adapter := &providers.AutomationAdapter{}
	sender := &spySender{}

	cfg := testConfig(models.IntegrationAutomation, models.IntegrationSettings{
		URL: "https://automation.example.com/trigger",
	})

	result := adapter.Deliver(context.Background(), sender, cfg, testPayload())

	require.True(t, result.Success)
	require.Len(t, sender.requests, 1)
	assert.Equal(t, "POST", sender.requests[0].Method)

	var body map[string]any
	require.NoError(t, json.Unmarshal(sender.requests[0].Payload, &body))
	assert.Equal(t, "entity_created", body["event"])
	assert.Equal(t, "contact", body["entity_type"])
	assert.Equal(t, "Jane", body["entity_name"])
	assert.NotContains(t, body, "entity", "automation payload is flat")
}

func TestMailhawkRegionFromAPIKey(t *testing.T) {
	adapter := &providers.MailhawkAdapter{}
	sender := &spySender{}

	cfg := testConfig(models.IntegrationMailhawk, models.IntegrationSettings{
		APIKey: "abc123-us21",
	})

	result := adapter.Deliver(context.Background(), sender, cfg, testPayload())

	require.True(t, result.Success)
	require.Len(t, sender.requests, 1)
	req := sender.requests[0]
	assert.Equal(t, "https://us21.api.mailhawk.io/3.0/events", req.URL)
	assert.Equal(t, "Bearer abc123-us21", req.Headers["Authorization"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Payload, &body))
	assert.Equal(t, "jane@example.com", body["email_address"])
}

func TestMailhawkKeyWithoutRegionFailsFast(t *testing.T) {
	adapter := &providers.MailhawkAdapter{}
	sender := &spySender{}

	cfg := testConfig(models.IntegrationMailhawk, models.IntegrationSettings{
		APIKey: "noregion",
	})

	result := adapter.Deliver(context.Background(), sender, cfg, testPayload())

	assert.True(t, providers.IsConfigError(result.Err))
	assert.Empty(t, sender.requests)
}

func TestKitlineKeyInQueryString(t *testing.T) {
	adapter := &providers.KitlineAdapter{}
	sender := &spySender{}

	cfg := testConfig(models.IntegrationKitline, models.IntegrationSettings{
		APIKey: "kl-secret",
		ListID: "form-9",
	})

	result := adapter.Deliver(context.Background(), sender, cfg, testPayload())

	require.True(t, result.Success)
	require.Len(t, sender.requests, 1)
	assert.Equal(t, "https://api.kitline.com/v3/subscribers?api_key=kl-secret", sender.requests[0].URL)

	var body map[string]any
	require.NoError(t, json.Unmarshal(sender.requests[0].Payload, &body))
	assert.Equal(t, "form-9", body["form_id"])
	assert.Equal(t, "jane@example.com", body["email"])
}

func TestActiveloopSubdomainBaseURL(t *testing.T) {
	adapter := &providers.ActiveloopAdapter{}
	sender := &spySender{}

	cfg := testConfig(models.IntegrationActiveloop, models.IntegrationSettings{
		APIKey:    "al-token",
		Subdomain: "acme",
	})

	result := adapter.Deliver(context.Background(), sender, cfg, testPayload())

	require.True(t, result.Success)
	require.Len(t, sender.requests, 1)
	req := sender.requests[0]
	assert.Equal(t, "https://acme.api.activeloop.com/api/3/contacts", req.URL)
	assert.Equal(t, "al-token", req.Headers["Api-Token"])
}

func TestActiveloopMissingSubdomainFailsFast(t *testing.T) {
	adapter := &providers.ActiveloopAdapter{}
	sender := &spySender{}

	cfg := testConfig(models.IntegrationActiveloop, models.IntegrationSettings{APIKey: "al-token"})

	result := adapter.Deliver(context.Background(), sender, cfg, testPayload())

	assert.True(t, providers.IsConfigError(result.Err))
	assert.Empty(t, sender.requests)
}

func TestHubCRMBearerAuthAndProperties(t *testing.T) {
	adapter := &providers.HubCRMAdapter{}
	sender := &spySender{}

	cfg := testConfig(models.IntegrationHubCRM, models.IntegrationSettings{APIKey: "hub-token"})

	result := adapter.Deliver(context.Background(), sender, cfg, testPayload())

	require.True(t, result.Success)
	require.Len(t, sender.requests, 1)
	req := sender.requests[0]
	assert.Equal(t, "Bearer hub-token", req.Headers["Authorization"])

	var body map[string]any
	require.NoError(t, json.Unmarshal(req.Payload, &body))
	props := body["properties"].(map[string]any)
	assert.Equal(t, "Jane", props["name"])
	assert.Equal(t, "entity_created", props["last_event"])
}

func TestHighriseRequiresLocation(t *testing.T) {
	adapter := &providers.HighriseAdapter{}
	sender := &spySender{}

	cfg := testConfig(models.IntegrationHighrise, models.IntegrationSettings{APIKey: "hr-token"})

	result := adapter.Deliver(context.Background(), sender, cfg, testPayload())
	assert.True(t, providers.IsConfigError(result.Err))
	assert.Empty(t, sender.requests)

	cfg = testConfig(models.IntegrationHighrise, models.IntegrationSettings{
		APIKey:     "hr-token",
		LocationID: "loc-7",
	})

	result = adapter.Deliver(context.Background(), sender, cfg, testPayload())
	require.True(t, result.Success)
	require.Len(t, sender.requests, 1)
	assert.Equal(t, "https://api.highrise.com/v1/locations/loc-7/events", sender.requests[0].URL)
}

func TestRetryOverridesFromConfig(t *testing.T) {
	adapter := &providers.WebhookAdapter{}
	sender := &spySender{}

	retries := 5
	timeoutMs := 2500
	cfg := testConfig(models.IntegrationWebhook, models.IntegrationSettings{
		URL: "https://hooks.example.com/fern",
	})
	cfg.RetryAttempts = &retries
	cfg.TimeoutMs = &timeoutMs

	result := adapter.Deliver(context.Background(), sender, cfg, testPayload())

	require.True(t, result.Success)
	require.Len(t, sender.requests, 1)
	assert.Equal(t, 5, sender.requests[0].MaxRetries)
	assert.Equal(t, 2500*time.Millisecond, sender.requests[0].Timeout)
}
