// Package isolation decides whether an operation touching group-scoped
// records is permitted. All validators are lookup-plus-compare; they never
// mutate anything.
package isolation

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

// maxHierarchyDepth bounds the parent chain walk. The data model forbids
// cycles but the walk does not trust that.
const maxHierarchyDepth = 32

// EntityLookup fetches entities without group scoping. The guard needs the
// raw row to compare its group against the caller's.
type EntityLookup interface {
	GetAnyByID(ctx context.Context, id uuid.UUID) (*models.Entity, error)
}

// GroupLookup fetches groups by id
type GroupLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error)
}

// Guard validates group membership for graph writes
type Guard struct {
	entities EntityLookup
	groups   GroupLookup
	logger   ectologger.Logger
}

// NewGuard creates a new isolation guard
func NewGuard(entities EntityLookup, groups GroupLookup, logger ectologger.Logger) *Guard {
	return &Guard{
		entities: entities,
		groups:   groups,
		logger:   logger,
	}
}

// NewCrossGroupViolation builds the error returned when a record exists but
// belongs to another group. Surfaced as 403; never retried.
func NewCrossGroupViolation(entityID uuid.UUID) error {
	return httperror.NewHTTPErrorf(http.StatusForbidden, "entity %s belongs to another group", entityID)
}

// NewSelfReference builds the error returned when a relationship names the
// same entity on both ends.
func NewSelfReference(entityID uuid.UUID) error {
	return httperror.NewHTTPErrorf(http.StatusBadRequest, "entity %s cannot relate to itself", entityID)
}

// IsCrossGroupViolation reports whether err is a cross-group failure
func IsCrossGroupViolation(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusForbidden
}

// IsSelfReference reports whether err is a self-reference failure
func IsSelfReference(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusBadRequest
}

// IsNotFound reports whether err is a missing-record failure
func IsNotFound(err error) bool {
	return httperror.IsHTTPError(err) && httperror.GetStatusCode(err) == http.StatusNotFound
}

// ValidateEntity checks that the entity exists and belongs to groupID.
// Missing entities fail with 404; entities in another group fail with 403.
func (g *Guard) ValidateEntity(ctx context.Context, groupID, entityID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "Guard.ValidateEntity")
	defer span.End()

	entity, err := g.entities.GetAnyByID(ctx, entityID)
	if err != nil {
		if IsNotFound(err) {
			metrics.IsolationViolationsTotal.WithLabelValues("not_found").Inc()
		}
		return err
	}

	// Soft-deleted entities cannot participate in new references.
	if entity.IsDeleted() {
		metrics.IsolationViolationsTotal.WithLabelValues("not_found").Inc()
		return httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s not found", entityID)
	}

	if entity.GroupID != groupID {
		g.logger.WithContext(ctx).WithFields(map[string]any{
			"entity_id":       entityID,
			"entity_group_id": entity.GroupID,
			"group_id":        groupID,
		}).Warn("cross-group entity reference blocked")
		metrics.IsolationViolationsTotal.WithLabelValues("cross_group").Inc()
		return NewCrossGroupViolation(entityID)
	}

	return nil
}

// ValidateRelationshipEndpoints checks both ends of a relationship. A
// self-referencing edge is rejected before any lookup.
func (g *Guard) ValidateRelationshipEndpoints(ctx context.Context, groupID, sourceID, targetID uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "Guard.ValidateRelationshipEndpoints")
	defer span.End()

	if sourceID == targetID {
		metrics.IsolationViolationsTotal.WithLabelValues("self_reference").Inc()
		return NewSelfReference(sourceID)
	}

	if err := g.ValidateEntity(ctx, groupID, sourceID); err != nil {
		return err
	}
	if err := g.ValidateEntity(ctx, groupID, targetID); err != nil {
		return err
	}

	return nil
}

// ValidateEventParticipants checks the actor and target of an event where
// present. A nil actor is the system actor and has no group to check.
func (g *Guard) ValidateEventParticipants(ctx context.Context, groupID uuid.UUID, actorID, targetID *uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "Guard.ValidateEventParticipants")
	defer span.End()

	if actorID != nil {
		if err := g.ValidateEntity(ctx, groupID, *actorID); err != nil {
			return err
		}
	}
	if targetID != nil {
		if err := g.ValidateEntity(ctx, groupID, *targetID); err != nil {
			return err
		}
	}

	return nil
}

// ValidateHierarchicalAccess reports whether requestingGroupID may read data
// owned by dataGroupID. A group can read its own data and any descendant's
// data. Siblings and descendants reading ancestors are denied.
func (g *Guard) ValidateHierarchicalAccess(ctx context.Context, requestingGroupID, dataGroupID uuid.UUID) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "Guard.ValidateHierarchicalAccess")
	defer span.End()

	if requestingGroupID == dataGroupID {
		return true, nil
	}

	visited := map[uuid.UUID]struct{}{dataGroupID: {}}
	current := dataGroupID

	for depth := 0; depth < maxHierarchyDepth; depth++ {
		group, err := g.groups.GetByID(ctx, current)
		if err != nil {
			return false, err
		}
		if group.ParentGroupID == nil {
			return false, nil
		}

		parent := *group.ParentGroupID
		if parent == requestingGroupID {
			return true, nil
		}
		if _, seen := visited[parent]; seen {
			g.logger.WithContext(ctx).WithFields(map[string]any{
				"group_id": dataGroupID,
				"cycle_at": parent,
			}).Error("cycle detected in group hierarchy")
			metrics.IsolationViolationsTotal.WithLabelValues("hierarchy_cycle").Inc()
			return false, httperror.NewHTTPError(http.StatusInternalServerError, "group hierarchy contains a cycle")
		}
		visited[parent] = struct{}{}
		current = parent
	}

	// Chain deeper than maxHierarchyDepth; fail closed.
	return false, httperror.NewHTTPError(http.StatusInternalServerError, "group hierarchy too deep")
}
