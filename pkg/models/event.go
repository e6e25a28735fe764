package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// Event type tags appended by the graph store
const (
	EventEntityCreated             = "entity_created"
	EventEntityUpdated             = "entity_updated"
	EventEntityDeleted             = "entity_deleted"
	EventThingCreated              = "thing_created"
	EventThingUpdated              = "thing_updated"
	EventThingDeleted              = "thing_deleted"
	EventIntegrationDeliveryFailed = "integration_delivery_failed"
)

// Event is an immutable record of something that happened inside a group.
// ActorID is nil for system-originated events. Events are append-only: the
// repository exposes no update or delete.
type Event struct {
	ID         uuid.UUID                      `db:"id" json:"id"`
	GroupID    uuid.UUID                      `db:"group_id" json:"group_id"`
	EventType  string                         `db:"event_type" json:"event_type"`
	ActorID    *uuid.UUID                     `db:"actor_id" json:"actor_id,omitempty"`
	TargetID   *uuid.UUID                     `db:"target_id" json:"target_id,omitempty"`
	Metadata   database.JSONB[map[string]any] `db:"metadata" json:"metadata"`
	OccurredAt time.Time                      `db:"occurred_at" json:"occurred_at"`
}

// TableName returns the database table name
func (Event) TableName() string {
	return "events"
}

// EventFilter narrows event listing. All fields are optional; GroupID scoping
// is applied by the repository regardless.
type EventFilter struct {
	EventType string
	ActorID   *uuid.UUID
	TargetID  *uuid.UUID
	From      *time.Time
	To        *time.Time
	Limit     int
}
