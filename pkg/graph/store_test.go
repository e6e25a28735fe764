package graph_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/providers"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

func getTestLogger(t *testing.T) ectologger.Logger {
	zapLogger, err := zap.NewDevelopment()
	require.NoError(t, err)
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

func getTestContext(groupID uuid.UUID) context.Context {
	return appctx.SetGroupID(context.Background(), groupID.String())
}

type fakeGroups struct {
	groups map[uuid.UUID]*models.Group
}

func (f *fakeGroups) GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	group, ok := f.groups[id]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "group %s not found", id)
	}
	return group, nil
}

type fakeEntities struct {
	entities map[uuid.UUID]*models.Entity
	creates  int
}

func (f *fakeEntities) Create(ctx context.Context, entity *models.Entity) error {
	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	f.entities[entity.ID] = entity
	f.creates++
	return nil
}

func (f *fakeEntities) GetByID(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	entity, ok := f.entities[id]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s not found", id)
	}
	return entity, nil
}

func (f *fakeEntities) List(ctx context.Context, filter repositories.EntityFilter) ([]models.Entity, error) {
	var out []models.Entity
	for _, entity := range f.entities {
		if !entity.IsDeleted() {
			out = append(out, *entity)
		}
	}
	return out, nil
}

func (f *fakeEntities) Update(ctx context.Context, entity *models.Entity) error {
	if _, ok := f.entities[entity.ID]; !ok {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s not found", entity.ID)
	}
	f.entities[entity.ID] = entity
	return nil
}

func (f *fakeEntities) SoftDelete(ctx context.Context, id uuid.UUID) error {
	entity, ok := f.entities[id]
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s not found", id)
	}
	now := time.Now()
	entity.DeletedAt = &now
	return nil
}

type tripleKey struct {
	relType  models.RelationshipType
	sourceID uuid.UUID
	targetID uuid.UUID
}

type fakeRelationships struct {
	rels    map[uuid.UUID]*models.Relationship
	upserts int
}

func (f *fakeRelationships) Upsert(ctx context.Context, rel *models.Relationship) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	copied := *rel
	f.rels[rel.ID] = &copied
	f.upserts++
	return nil
}

func (f *fakeRelationships) GetByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	rel, ok := f.rels[id]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "relationship %s not found", id)
	}
	return rel, nil
}

func (f *fakeRelationships) GetByTriple(ctx context.Context, relType models.RelationshipType, sourceID, targetID uuid.UUID) (*models.Relationship, error) {
	for _, rel := range f.rels {
		if rel.RelationshipType == relType && rel.SourceID == sourceID && rel.TargetID == targetID {
			return rel, nil
		}
	}
	return nil, nil
}

func (f *fakeRelationships) List(ctx context.Context, filter repositories.RelationshipFilter) ([]models.Relationship, error) {
	var out []models.Relationship
	for _, rel := range f.rels {
		out = append(out, *rel)
	}
	return out, nil
}

func (f *fakeRelationships) Delete(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	rel, ok := f.rels[id]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "relationship %s not found", id)
	}
	delete(f.rels, id)
	return rel, nil
}

type fakeEvents struct {
	appended  []*models.Event
	appendErr error
}

func (f *fakeEvents) Append(ctx context.Context, event *models.Event) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	f.appended = append(f.appended, event)
	return nil
}

func (f *fakeEvents) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	out := make([]models.Event, 0, len(f.appended))
	for _, event := range f.appended {
		out = append(out, *event)
	}
	return out, nil
}

func (f *fakeEvents) AuditTrail(ctx context.Context, entityID uuid.UUID, limit int) ([]models.Event, error) {
	var out []models.Event
	for _, event := range f.appended {
		if (event.ActorID != nil && *event.ActorID == entityID) || (event.TargetID != nil && *event.TargetID == entityID) {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (f *fakeEvents) eventTypes() []string {
	types := make([]string, 0, len(f.appended))
	for _, event := range f.appended {
		types = append(types, event.EventType)
	}
	return types
}

type fakeValidator struct {
	deny map[uuid.UUID]error
}

func (f *fakeValidator) ValidateEntity(ctx context.Context, groupID, entityID uuid.UUID) error {
	if err, ok := f.deny[entityID]; ok {
		return err
	}
	return nil
}

func (f *fakeValidator) ValidateRelationshipEndpoints(ctx context.Context, groupID, sourceID, targetID uuid.UUID) error {
	if sourceID == targetID {
		return httperror.NewHTTPError(http.StatusBadRequest, "relationship cannot reference a single entity on both ends")
	}
	if err, ok := f.deny[sourceID]; ok {
		return err
	}
	if err, ok := f.deny[targetID]; ok {
		return err
	}
	return nil
}

func (f *fakeValidator) ValidateEventParticipants(ctx context.Context, groupID uuid.UUID, actorID, targetID *uuid.UUID) error {
	if actorID != nil {
		if err, ok := f.deny[*actorID]; ok {
			return err
		}
	}
	if targetID != nil {
		if err, ok := f.deny[*targetID]; ok {
			return err
		}
	}
	return nil
}

type fakeDispatcher struct {
	payloads []*providers.EventPayload
}

func (f *fakeDispatcher) DispatchAsync(ctx context.Context, payload *providers.EventPayload, configs []models.IntegrationConfig) {
	f.payloads = append(f.payloads, payload)
}

type fakeLister struct {
	configs []models.IntegrationConfig
}

func (f *fakeLister) ListEnabled(ctx context.Context) ([]models.IntegrationConfig, error) {
	return f.configs, nil
}

type testDeps struct {
	groups        *fakeGroups
	entities      *fakeEntities
	relationships *fakeRelationships
	events        *fakeEvents
	dispatcher    *fakeDispatcher
	validator     *fakeValidator
	store         *graph.Store
	groupID       uuid.UUID
	ctx           context.Context
}

func newTestStore(t *testing.T) *testDeps {
	groupID := uuid.New()

	deps := &testDeps{
		groups: &fakeGroups{groups: map[uuid.UUID]*models.Group{
			groupID: {ID: groupID, Name: "acme", Status: models.GroupStatusActive},
		}},
		entities:      &fakeEntities{entities: map[uuid.UUID]*models.Entity{}},
		relationships: &fakeRelationships{rels: map[uuid.UUID]*models.Relationship{}},
		events:        &fakeEvents{},
		dispatcher:    &fakeDispatcher{},
		validator:     &fakeValidator{deny: map[uuid.UUID]error{}},
		groupID:       groupID,
	}
	deps.ctx = getTestContext(groupID)

	lister := &fakeLister{configs: []models.IntegrationConfig{
		{ID: uuid.New(), GroupID: groupID, Kind: models.IntegrationWebhook, Enabled: true},
	}}

	deps.store = graph.NewStore(
		deps.groups,
		deps.entities,
		deps.relationships,
		deps.events,
		deps.validator,
		nil,
		deps.dispatcher,
		lister,
		getTestLogger(t),
	)

	return deps
}

func newEntity(groupID uuid.UUID, entityType, name string) *models.Entity {
	return &models.Entity{
		ID:         uuid.New(),
		GroupID:    groupID,
		EntityType: entityType,
		Name:       name,
		Status:     models.EntityStatusActive,
		Properties: database.JSONB[map[string]any]{Data: map[string]any{"email": "jane@example.com"}},
	}
}

func TestCreateEntity(t *testing.T) {
	deps := newTestStore(t)

	entity, err := deps.store.CreateEntity(deps.ctx, newEntity(deps.groupID, "contact", "Jane"))
	require.NoError(t, err)
	require.NotNil(t, entity)

	require.Len(t, deps.events.appended, 1)
	event := deps.events.appended[0]
	assert.Equal(t, models.EventEntityCreated, event.EventType)
	require.NotNil(t, event.TargetID)
	assert.Equal(t, entity.ID, *event.TargetID)
	assert.Nil(t, event.ActorID)

	require.Len(t, deps.dispatcher.payloads, 1)
	payload := deps.dispatcher.payloads[0]
	assert.Equal(t, models.EventEntityCreated, payload.Event)
	assert.Equal(t, deps.groupID.String(), payload.GroupID)
	require.NotNil(t, payload.Entity)
	assert.Equal(t, "contact", payload.Entity.Type)
	assert.Equal(t, "Jane", payload.Entity.Name)
}

func TestCreateEntity_RequiresEntityType(t *testing.T) {
	deps := newTestStore(t)

	entity := newEntity(deps.groupID, "", "Jane")
	_, err := deps.store.CreateEntity(deps.ctx, entity)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Zero(t, deps.entities.creates)
}

func TestCreateEntity_InactiveGroupRejected(t *testing.T) {
	deps := newTestStore(t)
	deps.groups.groups[deps.groupID].Status = models.GroupStatusArchived

	_, err := deps.store.CreateEntity(deps.ctx, newEntity(deps.groupID, "contact", "Jane"))
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Zero(t, deps.entities.creates)
	assert.Empty(t, deps.events.appended)
}

func TestCreateEntity_EventAppendFailureDoesNotFailWrite(t *testing.T) {
	deps := newTestStore(t)
	deps.events.appendErr = assert.AnError

	entity, err := deps.store.CreateEntity(deps.ctx, newEntity(deps.groupID, "contact", "Jane"))
	require.NoError(t, err)
	require.NotNil(t, entity)
	assert.Equal(t, 1, deps.entities.creates)
	// integrations still see the mutation
	assert.Len(t, deps.dispatcher.payloads, 1)
}

func TestDeleteEntity(t *testing.T) {
	deps := newTestStore(t)

	entity, err := deps.store.CreateEntity(deps.ctx, newEntity(deps.groupID, "contact", "Jane"))
	require.NoError(t, err)

	require.NoError(t, deps.store.DeleteEntity(deps.ctx, entity.ID))

	// still readable by id with the delete marker set
	got, err := deps.store.GetEntity(deps.ctx, entity.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	// gone from listings
	listed, err := deps.store.ListEntities(deps.ctx, repositories.EntityFilter{})
	require.NoError(t, err)
	assert.Empty(t, listed)

	// deleting again is a 404
	err = deps.store.DeleteEntity(deps.ctx, entity.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))

	assert.Equal(t, []string{models.EventEntityCreated, models.EventEntityDeleted}, deps.events.eventTypes())
}

func TestCreateRelationship(t *testing.T) {
	deps := newTestStore(t)

	source := newEntity(deps.groupID, "user", "Ada")
	target := newEntity(deps.groupID, "document", "Paper")

	rel := &models.Relationship{
		GroupID:          deps.groupID,
		SourceID:         source.ID,
		TargetID:         target.ID,
		RelationshipType: models.RelationshipAuthored,
	}

	created, err := deps.store.CreateRelationship(deps.ctx, rel)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.Equal(t, []string{models.EventThingCreated}, deps.events.eventTypes())

	// same triple again conflicts
	dup := &models.Relationship{
		GroupID:          deps.groupID,
		SourceID:         source.ID,
		TargetID:         target.ID,
		RelationshipType: models.RelationshipAuthored,
	}
	_, err = deps.store.CreateRelationship(deps.ctx, dup)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, httperror.GetStatusCode(err))
}

func TestCreateRelationship_SelfReferenceRejected(t *testing.T) {
	deps := newTestStore(t)
	id := uuid.New()

	rel := &models.Relationship{
		GroupID:          deps.groupID,
		SourceID:         id,
		TargetID:         id,
		RelationshipType: models.RelationshipFollows,
	}

	_, err := deps.store.CreateRelationship(deps.ctx, rel)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Zero(t, deps.relationships.upserts)
}

func TestCreateRelationship_UnknownTypeRejected(t *testing.T) {
	deps := newTestStore(t)

	rel := &models.Relationship{
		GroupID:          deps.groupID,
		SourceID:         uuid.New(),
		TargetID:         uuid.New(),
		RelationshipType: models.RelationshipType("frenemies"),
	}

	_, err := deps.store.CreateRelationship(deps.ctx, rel)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}

func TestUpsertRelationship_Idempotent(t *testing.T) {
	deps := newTestStore(t)

	sourceID := uuid.New()
	targetID := uuid.New()
	strength := 0.5

	first, err := deps.store.UpsertRelationship(deps.ctx, &models.Relationship{
		GroupID:          deps.groupID,
		SourceID:         sourceID,
		TargetID:         targetID,
		RelationshipType: models.RelationshipFollows,
		Strength:         &strength,
	})
	require.NoError(t, err)

	stronger := 0.9
	second, err := deps.store.UpsertRelationship(deps.ctx, &models.Relationship{
		GroupID:          deps.groupID,
		SourceID:         sourceID,
		TargetID:         targetID,
		RelationshipType: models.RelationshipFollows,
		Strength:         &stronger,
	})
	require.NoError(t, err)

	// second upsert patched the existing edge rather than creating one
	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, deps.relationships.rels, 1)
	assert.Equal(t, []string{models.EventThingCreated, models.EventThingUpdated}, deps.events.eventTypes())

	got, err := deps.store.GetRelationship(deps.ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Strength)
	assert.Equal(t, stronger, *got.Strength)
}

func TestBulkCreateRelationships_PartialSuccess(t *testing.T) {
	deps := newTestStore(t)
	selfID := uuid.New()

	edges := []*models.Relationship{
		{GroupID: deps.groupID, SourceID: uuid.New(), TargetID: uuid.New(), RelationshipType: models.RelationshipOwns},
		{GroupID: deps.groupID, SourceID: selfID, TargetID: selfID, RelationshipType: models.RelationshipOwns},
		{GroupID: deps.groupID, SourceID: uuid.New(), TargetID: uuid.New(), RelationshipType: models.RelationshipMemberOf},
	}

	created, errs := deps.store.BulkCreateRelationships(deps.ctx, edges)
	require.Len(t, created, 3)
	require.Len(t, errs, 3)

	assert.NotNil(t, created[0])
	assert.NoError(t, errs[0])
	assert.Nil(t, created[1])
	assert.Error(t, errs[1])
	assert.NotNil(t, created[2])
	assert.NoError(t, errs[2])

	// the failed edge did not block the others
	assert.Len(t, deps.relationships.rels, 2)
}

func TestRemoveRelationship(t *testing.T) {
	deps := newTestStore(t)

	rel, err := deps.store.UpsertRelationship(deps.ctx, &models.Relationship{
		GroupID:          deps.groupID,
		SourceID:         uuid.New(),
		TargetID:         uuid.New(),
		RelationshipType: models.RelationshipPurchased,
	})
	require.NoError(t, err)

	require.NoError(t, deps.store.RemoveRelationship(deps.ctx, rel.ID))
	assert.Empty(t, deps.relationships.rels)

	types := deps.events.eventTypes()
	require.Len(t, types, 2)
	assert.Equal(t, models.EventThingDeleted, types[1])

	// the delete event names the removed edge
	deleted := deps.events.appended[1]
	assert.Equal(t, rel.ID.String(), deleted.Metadata.Data["relationship_id"])
	assert.Equal(t, rel.SourceID.String(), deleted.Metadata.Data["source_id"])

	err = deps.store.RemoveRelationship(deps.ctx, rel.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httperror.GetStatusCode(err))
}

func TestEntityAuditTrail(t *testing.T) {
	deps := newTestStore(t)

	entity, err := deps.store.CreateEntity(deps.ctx, newEntity(deps.groupID, "contact", "Jane"))
	require.NoError(t, err)

	other, err := deps.store.CreateEntity(deps.ctx, newEntity(deps.groupID, "contact", "Bill"))
	require.NoError(t, err)

	trail, err := deps.store.EntityAuditTrail(deps.ctx, entity.ID, 10)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, entity.ID, *trail[0].TargetID)

	otherTrail, err := deps.store.EntityAuditTrail(deps.ctx, other.ID, 10)
	require.NoError(t, err)
	require.Len(t, otherTrail, 1)
}

func TestListEvents_FilterParticipantsValidated(t *testing.T) {
	deps := newTestStore(t)

	entity, err := deps.store.CreateEntity(deps.ctx, newEntity(deps.groupID, "contact", "Jane"))
	require.NoError(t, err)

	events, err := deps.store.ListEvents(deps.ctx, models.EventFilter{TargetID: &entity.ID})
	require.NoError(t, err)
	require.Len(t, events, 1)

	foreign := uuid.New()
	deps.validator.deny[foreign] = httperror.NewHTTPErrorf(http.StatusForbidden, "entity %s belongs to another group", foreign)

	_, err = deps.store.ListEvents(deps.ctx, models.EventFilter{TargetID: &foreign})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestGroupScopeRequired(t *testing.T) {
	deps := newTestStore(t)

	_, err := deps.store.CreateEntity(context.Background(), newEntity(deps.groupID, "contact", "Jane"))
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, httperror.GetStatusCode(err))
}
