package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// EntityStatus is the lifecycle status of an entity
type EntityStatus string

const (
	EntityStatusDraft     EntityStatus = "draft"
	EntityStatusActive    EntityStatus = "active"
	EntityStatusPublished EntityStatus = "published"
	EntityStatusArchived  EntityStatus = "archived"
)

// Entity is a generic group-scoped record (a person, a content item, a
// payment, ...) discriminated by a type tag. GroupID is immutable after
// creation. Entities are soft-deleted via DeletedAt; read paths must filter
// deleted records.
type Entity struct {
	ID         uuid.UUID                      `db:"id" json:"id"`
	GroupID    uuid.UUID                      `db:"group_id" json:"group_id"`
	EntityType string                         `db:"entity_type" json:"entity_type"`
	Name       string                         `db:"name" json:"name"`
	Properties database.JSONB[map[string]any] `db:"properties" json:"properties"`
	Status     EntityStatus                   `db:"status" json:"status"`
	DeletedAt  *time.Time                     `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt  time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time                      `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Entity) TableName() string {
	return "entities"
}

// IsDeleted reports whether the entity has its soft-delete marker set
func (e *Entity) IsDeleted() bool {
	return e.DeletedAt != nil
}
