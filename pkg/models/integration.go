package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// IntegrationKind identifies which provider adapter handles an integration
type IntegrationKind string

const (
	// IntegrationWebhook forwards the full event envelope to a tenant URL
	IntegrationWebhook IntegrationKind = "webhook"

	// IntegrationAutomation posts a simplified flat payload to an automation hook
	IntegrationAutomation IntegrationKind = "automation"

	// IntegrationMailhawk is the Mailhawk email marketing provider
	IntegrationMailhawk IntegrationKind = "mailhawk"

	// IntegrationKitline is the Kitline email marketing provider
	IntegrationKitline IntegrationKind = "kitline"

	// IntegrationActiveloop is the Activeloop CRM (per-tenant subdomain)
	IntegrationActiveloop IntegrationKind = "activeloop"

	// IntegrationHubCRM is the HubCRM contact API
	IntegrationHubCRM IntegrationKind = "hubcrm"

	// IntegrationHighrise is the Highrise CRM location-scoped contact API
	IntegrationHighrise IntegrationKind = "highrise"
)

// IntegrationSettings holds provider-specific transport settings. Which
// fields are required depends on the kind; each adapter validates its own.
type IntegrationSettings struct {
	URL        string            `json:"url,omitempty"`
	Method     string            `json:"method,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	APIKey     string            `json:"api_key,omitempty"`
	APISecret  string            `json:"api_secret,omitempty"`
	Subdomain  string            `json:"subdomain,omitempty"`
	ListID     string            `json:"list_id,omitempty"`
	LocationID string            `json:"location_id,omitempty"`
}

// IntegrationConfig is a group-scoped outbound integration. It is created and
// edited by tenant administrators and read-only to the dispatcher.
type IntegrationConfig struct {
	ID            uuid.UUID                            `db:"id" json:"id"`
	GroupID       uuid.UUID                            `db:"group_id" json:"group_id"`
	Kind          IntegrationKind                      `db:"kind" json:"kind"`
	Name          string                               `db:"name" json:"name"`
	Enabled       bool                                 `db:"enabled" json:"enabled"`
	Settings      database.JSONB[IntegrationSettings]  `db:"settings" json:"settings"`
	RetryAttempts *int                                 `db:"retry_attempts" json:"retry_attempts,omitempty"`
	TimeoutMs     *int                                 `db:"timeout_ms" json:"timeout_ms,omitempty"`
	CreatedAt     time.Time                            `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time                            `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (IntegrationConfig) TableName() string {
	return "integration_configs"
}
