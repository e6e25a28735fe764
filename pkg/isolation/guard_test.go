package isolation_test

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

	"github.com/Ramsey-B/fern/pkg/isolation"
	"github.com/Ramsey-B/fern/pkg/models"
)

func getTestLogger() ectologger.Logger {
	zapLogger, _ := zap.NewDevelopment()
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type fakeEntityLookup struct {
	entities map[uuid.UUID]*models.Entity
	calls    int
}

func (f *fakeEntityLookup) GetAnyByID(_ context.Context, id uuid.UUID) (*models.Entity, error) {
	f.calls++
	entity, ok := f.entities[id]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s does not exist", id)
	}
	return entity, nil
}

type fakeGroupLookup struct {
	groups map[uuid.UUID]*models.Group
}

func (f *fakeGroupLookup) GetByID(_ context.Context, id uuid.UUID) (*models.Group, error) {
	group, ok := f.groups[id]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "group %s does not exist", id)
	}
	return group, nil
}

func newTestGuard(entities *fakeEntityLookup, groups *fakeGroupLookup) *isolation.Guard {
	if entities == nil {
		entities = &fakeEntityLookup{entities: map[uuid.UUID]*models.Entity{}}
	}
	if groups == nil {
		groups = &fakeGroupLookup{groups: map[uuid.UUID]*models.Group{}}
	}
	return isolation.NewGuard(entities, groups, getTestLogger())
}

func makeEntity(groupID uuid.UUID) *models.Entity {
	return &models.Entity{
		ID:         uuid.New(),
		GroupID:    groupID,
		EntityType: "contact",
		Name:       "Test Entity",
	}
}

func TestValidateEntity(t *testing.T) {
	groupID := uuid.New()
	otherGroupID := uuid.New()

	mine := makeEntity(groupID)
	theirs := makeEntity(otherGroupID)

	lookup := &fakeEntityLookup{entities: map[uuid.UUID]*models.Entity{
		mine.ID:   mine,
		theirs.ID: theirs,
	}}
	guard := newTestGuard(lookup, nil)
	ctx := context.Background()

	t.Run("same group succeeds", func(t *testing.T) {
		err := guard.ValidateEntity(ctx, groupID, mine.ID)
		assert.NoError(t, err)
	})

	t.Run("missing entity is not found", func(t *testing.T) {
		err := guard.ValidateEntity(ctx, groupID, uuid.New())
		require.Error(t, err)
		assert.True(t, isolation.IsNotFound(err))
	})

	t.Run("other group is a cross-group violation", func(t *testing.T) {
		err := guard.ValidateEntity(ctx, groupID, theirs.ID)
		require.Error(t, err)
		assert.True(t, isolation.IsCrossGroupViolation(err))
		assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	})

	t.Run("soft-deleted entity is not found", func(t *testing.T) {
		deleted := makeEntity(groupID)
		now := time.Now()
		deleted.DeletedAt = &now
		lookup.entities[deleted.ID] = deleted

		err := guard.ValidateEntity(ctx, groupID, deleted.ID)
		require.Error(t, err)
		assert.True(t, isolation.IsNotFound(err))
	})
}

func TestValidateRelationshipEndpoints(t *testing.T) {
	groupID := uuid.New()
	otherGroupID := uuid.New()

	source := makeEntity(groupID)
	target := makeEntity(groupID)
	foreign := makeEntity(otherGroupID)

	ctx := context.Background()

	t.Run("both ends in group succeeds", func(t *testing.T) {
		lookup := &fakeEntityLookup{entities: map[uuid.UUID]*models.Entity{
			source.ID: source,
			target.ID: target,
		}}
		guard := newTestGuard(lookup, nil)

		err := guard.ValidateRelationshipEndpoints(ctx, groupID, source.ID, target.ID)
		assert.NoError(t, err)
		assert.Equal(t, 2, lookup.calls)
	})

	t.Run("self reference fails before any lookup", func(t *testing.T) {
		lookup := &fakeEntityLookup{entities: map[uuid.UUID]*models.Entity{source.ID: source}}
		guard := newTestGuard(lookup, nil)

		err := guard.ValidateRelationshipEndpoints(ctx, groupID, source.ID, source.ID)
		require.Error(t, err)
		assert.True(t, isolation.IsSelfReference(err))
		assert.Equal(t, 0, lookup.calls)
	})

	t.Run("foreign target is a cross-group violation", func(t *testing.T) {
		lookup := &fakeEntityLookup{entities: map[uuid.UUID]*models.Entity{
			source.ID:  source,
			foreign.ID: foreign,
		}}
		guard := newTestGuard(lookup, nil)

		err := guard.ValidateRelationshipEndpoints(ctx, groupID, source.ID, foreign.ID)
		require.Error(t, err)
		assert.True(t, isolation.IsCrossGroupViolation(err))
	})
}

func TestValidateEventParticipants(t *testing.T) {
	groupID := uuid.New()
	actor := makeEntity(groupID)
	target := makeEntity(groupID)

	lookup := &fakeEntityLookup{entities: map[uuid.UUID]*models.Entity{
		actor.ID:  actor,
		target.ID: target,
	}}
	guard := newTestGuard(lookup, nil)
	ctx := context.Background()

	t.Run("both participants present", func(t *testing.T) {
		err := guard.ValidateEventParticipants(ctx, groupID, &actor.ID, &target.ID)
		assert.NoError(t, err)
	})

	t.Run("system actor is skipped", func(t *testing.T) {
		before := lookup.calls
		err := guard.ValidateEventParticipants(ctx, groupID, nil, &target.ID)
		assert.NoError(t, err)
		assert.Equal(t, before+1, lookup.calls)
	})

	t.Run("no participants is a no-op", func(t *testing.T) {
		before := lookup.calls
		err := guard.ValidateEventParticipants(ctx, groupID, nil, nil)
		assert.NoError(t, err)
		assert.Equal(t, before, lookup.calls)
	})

	t.Run("foreign actor fails", func(t *testing.T) {
		foreign := makeEntity(uuid.New())
		lookup.entities[foreign.ID] = foreign
		err := guard.ValidateEventParticipants(ctx, groupID, &foreign.ID, nil)
		require.Error(t, err)
		assert.True(t, isolation.IsCrossGroupViolation(err))
	})
}

func TestValidateHierarchicalAccess(t *testing.T) {
	ctx := context.Background()

	root := uuid.New()
	child := uuid.New()
	grandchild := uuid.New()
	sibling := uuid.New()

	groups := &fakeGroupLookup{groups: map[uuid.UUID]*models.Group{
		root:       {ID: root, Name: "root", Status: models.GroupStatusActive},
		child:      {ID: child, Name: "child", ParentGroupID: &root, Status: models.GroupStatusActive},
		grandchild: {ID: grandchild, Name: "grandchild", ParentGroupID: &child, Status: models.GroupStatusActive},
		sibling:    {ID: sibling, Name: "sibling", ParentGroupID: &root, Status: models.GroupStatusActive},
	}}
	guard := newTestGuard(nil, groups)

	t.Run("same group", func(t *testing.T) {
		ok, err := guard.ValidateHierarchicalAccess(ctx, child, child)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("parent reads child", func(t *testing.T) {
		ok, err := guard.ValidateHierarchicalAccess(ctx, root, child)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("ancestor reads grandchild", func(t *testing.T) {
		ok, err := guard.ValidateHierarchicalAccess(ctx, root, grandchild)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("child cannot read parent", func(t *testing.T) {
		ok, err := guard.ValidateHierarchicalAccess(ctx, child, root)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("sibling denied", func(t *testing.T) {
		ok, err := guard.ValidateHierarchicalAccess(ctx, sibling, child)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("cycle fails instead of looping", func(t *testing.T) {
		a := uuid.New()
		b := uuid.New()
		cyclic := &fakeGroupLookup{groups: map[uuid.UUID]*models.Group{
			a: {ID: a, ParentGroupID: &b},
			b: {ID: b, ParentGroupID: &a},
		}}
		cyclicGuard := newTestGuard(nil, cyclic)

		ok, err := cyclicGuard.ValidateHierarchicalAccess(ctx, uuid.New(), a)
		require.Error(t, err)
		assert.False(t, ok)
	})
}
