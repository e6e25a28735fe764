package models

import (
	"time"

	"github.com/google/uuid"
)

// GroupStatus is the lifecycle status of a tenant group
type GroupStatus string

const (
	GroupStatusActive   GroupStatus = "active"
	GroupStatusInactive GroupStatus = "inactive"
	GroupStatusArchived GroupStatus = "archived"
)

// Group represents a tenant boundary. All entity graph records are scoped to
// exactly one group. Groups are archived on tenant removal, never hard-deleted.
type Group struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	Name          string      `db:"name" json:"name"`
	ParentGroupID *uuid.UUID  `db:"parent_group_id" json:"parent_group_id,omitempty"`
	Status        GroupStatus `db:"status" json:"status"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Group) TableName() string {
	return "groups"
}

// IsActive reports whether writes to records scoped to this group are allowed
func (g *Group) IsActive() bool {
	return g.Status == GroupStatusActive
}
