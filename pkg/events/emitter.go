// Package events handles event emission for graph lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Publisher is the outbound side of the emitter. Satisfied by kafka.Producer.
type Publisher interface {
	PublishGraphEvent(ctx context.Context, event *kafka.GraphEvent) error
}

// Emitter mirrors graph mutations onto the event stream. Emission is best
// effort; callers log failures and never fail the originating write.
type Emitter struct {
	producer Publisher
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer Publisher, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

func actorString(actorID *string) string {
	if actorID == nil {
		return ""
	}
	return *actorID
}

// EmitEntityEvent emits a lifecycle event for an entity
func (e *Emitter) EmitEntityEvent(ctx context.Context, eventType string, entity *models.Entity, actorID *string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitEntityEvent")
	defer span.End()

	data := map[string]any{
		"schema_version": SchemaVersion,
		"entity_type":    entity.EntityType,
		"name":           entity.Name,
		"status":         entity.Status,
	}
	dataJSON, _ := json.Marshal(data)

	event := &kafka.GraphEvent{
		EventType:  eventType,
		GroupID:    entity.GroupID.String(),
		RecordID:   entity.ID.String(),
		RecordKind: "entity",
		ActorID:    actorString(actorID),
		Data:       dataJSON,
	}

	if err := e.producer.PublishGraphEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
			"entity_id":  entity.ID,
		}).Error("Failed to emit entity event")
		return err
	}

	return nil
}

// EmitRelationshipEvent emits a lifecycle event for a relationship
func (e *Emitter) EmitRelationshipEvent(ctx context.Context, eventType string, rel *models.Relationship, actorID *string) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRelationshipEvent")
	defer span.End()

	data := map[string]any{
		"schema_version":    SchemaVersion,
		"relationship_type": rel.RelationshipType,
		"source_id":         rel.SourceID,
		"target_id":         rel.TargetID,
	}
	dataJSON, _ := json.Marshal(data)

	event := &kafka.GraphEvent{
		EventType:  eventType,
		GroupID:    rel.GroupID.String(),
		RecordID:   rel.ID.String(),
		RecordKind: "relationship",
		ActorID:    actorString(actorID),
		Data:       dataJSON,
	}

	if err := e.producer.PublishGraphEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type":      eventType,
			"relationship_id": rel.ID,
		}).Error("Failed to emit relationship event")
		return err
	}

	return nil
}
