package providers

import (
	"encoding/json"
	"time"

	"github.com/Ramsey-B/fern/pkg/models"
)

// EntitySummary is the slice of an entity that adapters are allowed to
// forward to third parties.
type EntitySummary struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
}

// EventPayload is the provider-neutral input to every adapter. Adapters
// reshape it into their provider's wire format.
type EventPayload struct {
	Event      string         `json:"event"`
	GroupID    string         `json:"group_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Entity     *EntitySummary `json:"entity,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// NewEntityPayload builds a payload for an entity lifecycle event
func NewEntityPayload(eventType string, entity *models.Entity) *EventPayload {
	return &EventPayload{
		Event:      eventType,
		GroupID:    entity.GroupID.String(),
		OccurredAt: time.Now().UTC(),
		Entity: &EntitySummary{
			ID:         entity.ID.String(),
			Type:       entity.EntityType,
			Name:       entity.Name,
			Properties: entity.Properties.GetValue(),
		},
	}
}

// Envelope marshals the full payload for verbatim forwarding
func (p *EventPayload) Envelope() ([]byte, error) {
	return json.Marshal(p)
}

// entityName returns the entity display name, or empty for entity-less events
func (p *EventPayload) entityName() string {
	if p.Entity == nil {
		return ""
	}
	return p.Entity.Name
}

// entityEmail pulls an email address out of the entity properties when one
// exists. Email-marketing providers key their contacts on it.
func (p *EventPayload) entityEmail() string {
	if p.Entity == nil || p.Entity.Properties == nil {
		return ""
	}
	if email, ok := p.Entity.Properties["email"].(string); ok {
		return email
	}
	return ""
}
