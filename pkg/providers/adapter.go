// Package providers contains one adapter per outbound integration kind.
// Each adapter validates its own required settings, shapes the provider's
// payload, and delegates the HTTP call to the delivery engine.
package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Ramsey-B/fern/pkg/delivery"
	"github.com/Ramsey-B/fern/pkg/models"
)

// Sender performs the retrying HTTP call. Satisfied by *delivery.Engine;
// tests swap in spies to count network calls.
type Sender interface {
	Send(ctx context.Context, req delivery.Request) *delivery.Result
}

// Adapter handles one integration kind
type Adapter interface {
	Kind() models.IntegrationKind

	// Validate checks the required settings for this kind. A failure here
	// must happen before any network call.
	Validate(settings models.IntegrationSettings) error

	// Deliver shapes the provider payload and sends it. Configuration
	// failures surface in the result, never as a panic.
	Deliver(ctx context.Context, sender Sender, cfg *models.IntegrationConfig, payload *EventPayload) *delivery.Result
}

// ConfigError reports a missing or malformed integration setting. Never
// retried.
type ConfigError struct {
	Kind  models.IntegrationKind
	Field string
	Cause string
}

func (e *ConfigError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("%s integration misconfigured: %s (%s)", e.Kind, e.Field, e.Cause)
	}
	return fmt.Sprintf("%s integration misconfigured: missing %s", e.Kind, e.Field)
}

// IsConfigError reports whether err is an integration configuration failure
func IsConfigError(err error) bool {
	var c *ConfigError
	return errors.As(err, &c)
}

// configFailure wraps a ConfigError as a zero-attempt result
func configFailure(err error) *delivery.Result {
	return &delivery.Result{Err: err}
}

// requestFor builds the engine request, applying the config's retry and
// timeout overrides when set.
func requestFor(cfg *models.IntegrationConfig, method, url string, headers map[string]string, body any) (delivery.Request, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return delivery.Request{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	return rawRequestFor(cfg, method, url, headers, payload), nil
}

// rawRequestFor builds the engine request from a pre-encoded body
func rawRequestFor(cfg *models.IntegrationConfig, method, url string, headers map[string]string, payload []byte) delivery.Request {
	req := delivery.Request{
		URL:     url,
		Method:  method,
		Headers: headers,
		Payload: payload,
	}
	if cfg.RetryAttempts != nil && *cfg.RetryAttempts > 0 {
		req.MaxRetries = *cfg.RetryAttempts
	}
	if cfg.TimeoutMs != nil && *cfg.TimeoutMs > 0 {
		req.Timeout = time.Duration(*cfg.TimeoutMs) * time.Millisecond
	}

	return req
}
