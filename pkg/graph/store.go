// Package graph is the write path for the entity graph. Every mutation
// validates isolation first, performs the write, appends an audit event, and
// hands the event to the integration dispatcher without blocking the caller.
package graph

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/providers"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// GroupStore reads groups for lifecycle checks
type GroupStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
}

// EntityStore is the entity persistence surface the graph needs
type EntityStore interface {
	Create(ctx context.Context, entity *models.Entity) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Entity, error)
	List(ctx context.Context, filter repositories.EntityFilter) ([]models.Entity, error)
	Update(ctx context.Context, entity *models.Entity) error
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

// RelationshipStore is the relationship persistence surface
type RelationshipStore interface {
	Upsert(ctx context.Context, rel *models.Relationship) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error)
	GetByTriple(ctx context.Context, relType models.RelationshipType, sourceID, targetID uuid.UUID) (*models.Relationship, error)
	List(ctx context.Context, filter repositories.RelationshipFilter) ([]models.Relationship, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.Relationship, error)
}

// EventStore is the append-only audit log
type EventStore interface {
	Append(ctx context.Context, event *models.Event) error
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, error)
	AuditTrail(ctx context.Context, entityID uuid.UUID, limit int) ([]models.Event, error)
}

// Validator decides group-isolation questions. Satisfied by isolation.Guard.
type Validator interface {
	ValidateEntity(ctx context.Context, groupID, entityID uuid.UUID) error
	ValidateRelationshipEndpoints(ctx context.Context, groupID, sourceID, targetID uuid.UUID) error
	ValidateEventParticipants(ctx context.Context, groupID uuid.UUID, actorID, targetID *uuid.UUID) error
}

// EventEmitter mirrors mutations onto the Kafka stream
type EventEmitter interface {
	EmitEntityEvent(ctx context.Context, eventType string, entity *models.Entity, actorID *string) error
	EmitRelationshipEvent(ctx context.Context, eventType string, rel *models.Relationship, actorID *string) error
}

// EventDispatcher fans events out to the group's integrations
type EventDispatcher interface {
	DispatchAsync(ctx context.Context, payload *providers.EventPayload, configs []models.IntegrationConfig)
}

// IntegrationLister loads the enabled integrations for the current group
type IntegrationLister interface {
	ListEnabled(ctx context.Context) ([]models.IntegrationConfig, error)
}

// Store is the entity graph service
type Store struct {
	groups        GroupStore
	entities      EntityStore
	relationships RelationshipStore
	events        EventStore
	guard         Validator
	emitter       EventEmitter
	dispatcher    EventDispatcher
	integrations  IntegrationLister
	logger        ectologger.Logger
}

// NewStore creates the graph store. emitter, dispatcher, and integrations
// are optional; nil disables the corresponding side effect.
func NewStore(
	groups GroupStore,
	entities EntityStore,
	relationships RelationshipStore,
	events EventStore,
	guard Validator,
	emitter EventEmitter,
	dispatcher EventDispatcher,
	integrations IntegrationLister,
	logger ectologger.Logger,
) *Store {
	return &Store{
		groups:        groups,
		entities:      entities,
		relationships: relationships,
		events:        events,
		guard:         guard,
		emitter:       emitter,
		dispatcher:    dispatcher,
		integrations:  integrations,
		logger:        logger,
	}
}

// requireActiveGroup rejects writes into inactive or archived groups
func (s *Store) requireActiveGroup(ctx context.Context) (uuid.UUID, error) {
	groupID, err := repositories.GetGroupID(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	group, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return uuid.Nil, err
	}
	if !group.IsActive() {
		return uuid.Nil, httperror.NewHTTPErrorf(http.StatusForbidden, "group %s is %s; writes are not allowed", groupID, group.Status)
	}

	return groupID, nil
}

// appendEvent writes the audit event. The record write has already
// committed, so a failed append is logged rather than surfaced.
func (s *Store) appendEvent(ctx context.Context, eventType string, targetID *uuid.UUID, metadata map[string]any) {
	event := &models.Event{
		ID:        uuid.New(),
		EventType: eventType,
		ActorID:   repositories.GetActorID(ctx),
		TargetID:  targetID,
		Metadata:  database.JSONB[map[string]any]{Data: metadata},
	}

	if err := s.events.Append(ctx, event); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": eventType,
		}).Error("failed to append audit event")
	}
}

// publishEntity emits the Kafka event and dispatches integrations for an
// entity mutation. Both are best effort.
func (s *Store) publishEntity(ctx context.Context, eventType string, entity *models.Entity) {
	actor := actorLabel(ctx)
	if s.emitter != nil {
		if err := s.emitter.EmitEntityEvent(ctx, eventType, entity, actor); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("entity event emission failed")
		}
	}

	s.dispatchPayload(ctx, providers.NewEntityPayload(eventType, entity))
}

func (s *Store) publishRelationship(ctx context.Context, eventType string, rel *models.Relationship) {
	actor := actorLabel(ctx)
	if s.emitter != nil {
		if err := s.emitter.EmitRelationshipEvent(ctx, eventType, rel, actor); err != nil {
			s.logger.WithContext(ctx).WithError(err).Warn("relationship event emission failed")
		}
	}

	payload := &providers.EventPayload{
		Event:      eventType,
		GroupID:    rel.GroupID.String(),
		OccurredAt: time.Now().UTC(),
		Metadata: map[string]any{
			"relationship_id":   rel.ID.String(),
			"relationship_type": rel.RelationshipType,
			"source_id":         rel.SourceID.String(),
			"target_id":         rel.TargetID.String(),
		},
	}
	s.dispatchPayload(ctx, payload)
}

func (s *Store) dispatchPayload(ctx context.Context, payload *providers.EventPayload) {
	if s.dispatcher == nil || s.integrations == nil {
		return
	}

	configs, err := s.integrations.ListEnabled(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("failed to load integrations for dispatch")
		return
	}
	if len(configs) == 0 {
		return
	}

	s.dispatcher.DispatchAsync(ctx, payload, configs)
}

func actorLabel(ctx context.Context) *string {
	actorID := repositories.GetActorID(ctx)
	if actorID == nil {
		return nil
	}
	label := actorID.String()
	return &label
}

// CreateEntity writes a new entity into the current group. The group must be
// active; status defaults to draft.
func (s *Store) CreateEntity(ctx context.Context, entity *models.Entity) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.CreateEntity")
	defer span.End()

	if _, err := s.requireActiveGroup(ctx); err != nil {
		return nil, err
	}
	if entity.EntityType == "" {
		return nil, httperror.NewHTTPError(http.StatusBadRequest, "entity_type is required")
	}

	if err := s.entities.Create(ctx, entity); err != nil {
		return nil, err
	}
	metrics.GraphWritesTotal.WithLabelValues("entity", "create").Inc()

	s.appendEvent(ctx, models.EventEntityCreated, &entity.ID, map[string]any{
		"entity_type": entity.EntityType,
		"name":        entity.Name,
	})
	s.publishEntity(ctx, models.EventEntityCreated, entity)

	return entity, nil
}

// GetEntity returns a single entity, including soft-deleted ones with their
// delete marker set
func (s *Store) GetEntity(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.GetEntity")
	defer span.End()

	return s.entities.GetByID(ctx, id)
}

// ListEntities lists non-deleted entities in the current group
func (s *Store) ListEntities(ctx context.Context, filter repositories.EntityFilter) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.ListEntities")
	defer span.End()

	return s.entities.List(ctx, filter)
}

// UpdateEntity modifies an entity's mutable fields
func (s *Store) UpdateEntity(ctx context.Context, entity *models.Entity) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.UpdateEntity")
	defer span.End()

	if _, err := s.requireActiveGroup(ctx); err != nil {
		return nil, err
	}

	if err := s.entities.Update(ctx, entity); err != nil {
		return nil, err
	}
	metrics.GraphWritesTotal.WithLabelValues("entity", "update").Inc()

	s.appendEvent(ctx, models.EventEntityUpdated, &entity.ID, map[string]any{
		"entity_type": entity.EntityType,
		"name":        entity.Name,
	})
	s.publishEntity(ctx, models.EventEntityUpdated, entity)

	return entity, nil
}

// DeleteEntity soft-deletes an entity. The record stays readable by id with
// its delete marker set; list operations stop returning it.
func (s *Store) DeleteEntity(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.DeleteEntity")
	defer span.End()

	if _, err := s.requireActiveGroup(ctx); err != nil {
		return err
	}

	entity, err := s.entities.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if entity.IsDeleted() {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s not found", id)
	}

	if err := s.entities.SoftDelete(ctx, id); err != nil {
		return err
	}
	metrics.GraphWritesTotal.WithLabelValues("entity", "delete").Inc()

	s.appendEvent(ctx, models.EventEntityDeleted, &id, map[string]any{
		"entity_type": entity.EntityType,
		"name":        entity.Name,
	})
	s.publishEntity(ctx, models.EventEntityDeleted, entity)

	return nil
}

// CreateRelationship inserts a new edge. Both endpoints must exist in the
// current group; an edge for the same (type, source, target) must not
// already exist.
func (s *Store) CreateRelationship(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.CreateRelationship")
	defer span.End()

	groupID, err := s.requireActiveGroup(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validateEdge(ctx, groupID, rel); err != nil {
		return nil, err
	}

	existing, err := s.relationships.GetByTriple(ctx, rel.RelationshipType, rel.SourceID, rel.TargetID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusConflict, "relationship %s already exists between %s and %s", rel.RelationshipType, rel.SourceID, rel.TargetID)
	}

	if err := s.relationships.Upsert(ctx, rel); err != nil {
		return nil, err
	}
	metrics.GraphWritesTotal.WithLabelValues("relationship", "create").Inc()

	s.appendRelationshipEvent(ctx, models.EventThingCreated, rel)
	s.publishRelationship(ctx, models.EventThingCreated, rel)

	return rel, nil
}

// UpsertRelationship inserts the edge or, when the (type, source, target)
// triple already exists in the group, patches its metadata, strength, and
// validity window. The appended event distinguishes the two outcomes.
func (s *Store) UpsertRelationship(ctx context.Context, rel *models.Relationship) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.UpsertRelationship")
	defer span.End()

	groupID, err := s.requireActiveGroup(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validateEdge(ctx, groupID, rel); err != nil {
		return nil, err
	}

	existing, err := s.relationships.GetByTriple(ctx, rel.RelationshipType, rel.SourceID, rel.TargetID)
	if err != nil {
		return nil, err
	}

	eventType := models.EventThingCreated
	operation := "create"
	if existing != nil {
		rel.ID = existing.ID
		eventType = models.EventThingUpdated
		operation = "update"
	}

	if err := s.relationships.Upsert(ctx, rel); err != nil {
		return nil, err
	}
	metrics.GraphWritesTotal.WithLabelValues("relationship", operation).Inc()

	s.appendRelationshipEvent(ctx, eventType, rel)
	s.publishRelationship(ctx, eventType, rel)

	return rel, nil
}

// BulkCreateRelationships writes each edge independently. Valid edges are
// written even when others fail; the per-edge errors come back alongside the
// created records.
func (s *Store) BulkCreateRelationships(ctx context.Context, edges []*models.Relationship) ([]*models.Relationship, []error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.BulkCreateRelationships")
	defer span.End()

	created := make([]*models.Relationship, len(edges))
	errs := make([]error, len(edges))

	for i, edge := range edges {
		rel, err := s.UpsertRelationship(ctx, edge)
		if err != nil {
			errs[i] = err
			continue
		}
		created[i] = rel
	}

	return created, errs
}

// RemoveRelationship hard-deletes an edge and records which edge was removed
func (s *Store) RemoveRelationship(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.RemoveRelationship")
	defer span.End()

	if _, err := s.requireActiveGroup(ctx); err != nil {
		return err
	}

	removed, err := s.relationships.Delete(ctx, id)
	if err != nil {
		return err
	}
	metrics.GraphWritesTotal.WithLabelValues("relationship", "delete").Inc()

	s.appendRelationshipEvent(ctx, models.EventThingDeleted, removed)
	s.publishRelationship(ctx, models.EventThingDeleted, removed)

	return nil
}

// GetRelationship returns a single edge
func (s *Store) GetRelationship(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.GetRelationship")
	defer span.End()

	return s.relationships.GetByID(ctx, id)
}

// ListRelationships lists edges in the current group
func (s *Store) ListRelationships(ctx context.Context, filter repositories.RelationshipFilter) ([]models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.ListRelationships")
	defer span.End()

	return s.relationships.List(ctx, filter)
}

// ListEvents lists audit events in the current group, newest first. Filter
// participants are validated against the group before querying.
func (s *Store) ListEvents(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.ListEvents")
	defer span.End()

	if filter.ActorID != nil || filter.TargetID != nil {
		groupID, err := repositories.GetGroupID(ctx)
		if err != nil {
			return nil, err
		}
		if err := s.guard.ValidateEventParticipants(ctx, groupID, filter.ActorID, filter.TargetID); err != nil {
			return nil, err
		}
	}

	return s.events.List(ctx, filter)
}

// EntityAuditTrail returns the events naming the entity as actor or target
func (s *Store) EntityAuditTrail(ctx context.Context, entityID uuid.UUID, limit int) ([]models.Event, error) {
	ctx, span := tracing.StartSpan(ctx, "graph.Store.EntityAuditTrail")
	defer span.End()

	groupID, err := repositories.GetGroupID(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.guard.ValidateEntity(ctx, groupID, entityID); err != nil {
		return nil, err
	}

	return s.events.AuditTrail(ctx, entityID, limit)
}

func (s *Store) validateEdge(ctx context.Context, groupID uuid.UUID, rel *models.Relationship) error {
	if !models.ValidRelationshipType(rel.RelationshipType) {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown relationship type: %s", rel.RelationshipType)
	}
	return s.guard.ValidateRelationshipEndpoints(ctx, groupID, rel.SourceID, rel.TargetID)
}

func (s *Store) appendRelationshipEvent(ctx context.Context, eventType string, rel *models.Relationship) {
	s.appendEvent(ctx, eventType, nil, map[string]any{
		"relationship_id":   rel.ID.String(),
		"relationship_type": rel.RelationshipType,
		"source_id":         rel.SourceID.String(),
		"target_id":         rel.TargetID.String(),
	})
}
