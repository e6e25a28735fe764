package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
)

// RelationshipType is the closed vocabulary of edge types
type RelationshipType string

const (
	RelationshipOwns       RelationshipType = "owns"
	RelationshipAuthored   RelationshipType = "authored"
	RelationshipMemberOf   RelationshipType = "member_of"
	RelationshipFollows    RelationshipType = "follows"
	RelationshipPurchased  RelationshipType = "purchased"
	RelationshipSubscribed RelationshipType = "subscribed_to"
	RelationshipRelatedTo  RelationshipType = "related_to"
)

// ValidRelationshipType reports whether t is part of the closed vocabulary
func ValidRelationshipType(t RelationshipType) bool {
	switch t {
	case RelationshipOwns, RelationshipAuthored, RelationshipMemberOf,
		RelationshipFollows, RelationshipPurchased, RelationshipSubscribed,
		RelationshipRelatedTo:
		return true
	}
	return false
}

// Relationship is a typed, directed edge between two entities of the same
// group. (group, type, source, target) is upsert-unique: re-creating the same
// triple updates the existing edge. Unlike entities, relationships may be
// hard-deleted.
type Relationship struct {
	ID               uuid.UUID                      `db:"id" json:"id"`
	GroupID          uuid.UUID                      `db:"group_id" json:"group_id"`
	SourceID         uuid.UUID                      `db:"source_id" json:"source_id"`
	TargetID         uuid.UUID                      `db:"target_id" json:"target_id"`
	RelationshipType RelationshipType               `db:"relationship_type" json:"relationship_type"`
	Strength         *float64                       `db:"strength" json:"strength,omitempty"`
	Metadata         database.JSONB[map[string]any] `db:"metadata" json:"metadata"`
	ValidFrom        *time.Time                     `db:"valid_from" json:"valid_from,omitempty"`
	ValidTo          *time.Time                     `db:"valid_to" json:"valid_to,omitempty"`
	CreatedAt        time.Time                      `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time                      `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Relationship) TableName() string {
	return "relationships"
}
