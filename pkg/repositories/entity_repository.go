package repositories

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const entitiesTable = "entities"

var entityStruct = database.NewStruct(new(models.Entity))

// EntityFilter narrows entity listing
type EntityFilter struct {
	EntityType string
	Status     models.EntityStatus
	Limit      int
	Offset     int
}

// EntityRepository handles database operations for entities
type EntityRepository struct {
	*Repository
}

// NewEntityRepository creates a new entity repository
func NewEntityRepository(db database.DB, logger ectologger.Logger) *EntityRepository {
	return &EntityRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new entity (group-scoped)
func (r *EntityRepository) Create(ctx context.Context, entity *models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.Create")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return err
	}
	entity.GroupID = groupID

	if entity.ID == uuid.Nil {
		entity.ID = uuid.New()
	}
	if entity.Status == "" {
		entity.Status = models.EntityStatusDraft
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(entitiesTable).
		Cols("id", "group_id", "entity_type", "name", "properties", "status", "created_at", "updated_at").
		Values(entity.ID, entity.GroupID, entity.EntityType, entity.Name, entity.Properties, entity.Status,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err = r.DB().QueryRowContext(ctx, query, args...).Scan(&entity.CreatedAt, &entity.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id": entity.ID,
		}).Error("failed to create entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create entity")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id": entity.ID,
	}).Debugf("Created %s", entitiesTable)
	return nil
}

// GetByID retrieves an entity by ID (group-scoped). Soft-deleted entities are
// returned with their delete marker set; list paths filter them out instead.
func (r *EntityRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.GetByID")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return nil, err
	}

	sb := entityStruct.SelectFrom(entitiesTable)
	sb.Where(sb.Equal("group_id", groupID), sb.Equal("id", id))

	query, args := sb.Build()
	var entity models.Entity
	err = r.DB().GetContext(ctx, &entity, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id": id,
		}).Error("failed to get entity by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity by ID")
	}

	return &entity, nil
}

// GetAnyByID retrieves an entity by ID without group scoping. Reserved for
// the isolation guard, which needs the record's own group to compare against
// the requesting scope.
func (r *EntityRepository) GetAnyByID(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.GetAnyByID")
	defer span.End()

	sb := entityStruct.SelectFrom(entitiesTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var entity models.Entity
	err := r.DB().GetContext(ctx, &entity, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id": id,
		}).Error("failed to get entity by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity by ID")
	}

	return &entity, nil
}

// List retrieves entities for the current group. Soft-deleted entities are
// always excluded.
func (r *EntityRepository) List(ctx context.Context, filter EntityFilter) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.List")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return nil, err
	}

	sb := entityStruct.SelectFrom(entitiesTable)
	conds := []string{
		sb.Equal("group_id", groupID),
		sb.IsNull("deleted_at"),
	}
	if filter.EntityType != "" {
		conds = append(conds, sb.Equal("entity_type", filter.EntityType))
	}
	if filter.Status != "" {
		conds = append(conds, sb.Equal("status", filter.Status))
	}
	sb.Where(conds...)
	sb.OrderBy("created_at").Desc()
	if filter.Limit > 0 {
		sb.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		sb.Offset(filter.Offset)
	}

	query, args := sb.Build()
	var entities []models.Entity
	err = r.DB().SelectContext(ctx, &entities, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list entities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list entities")
	}

	return entities, nil
}

// Update patches an entity's mutable fields. GroupID is immutable and never
// part of the update set.
func (r *EntityRepository) Update(ctx context.Context, entity *models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.Update")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(entitiesTable).
		Set(
			ub.Assign("name", entity.Name),
			ub.Assign("properties", entity.Properties),
			ub.Assign("status", entity.Status),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("group_id", groupID), ub.Equal("id", entity.ID), ub.IsNull("deleted_at"))
	ub.SQL("RETURNING updated_at")

	query, args := ub.Build()
	err = r.DB().QueryRowContext(ctx, query, args...).Scan(&entity.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s does not exist", entity.ID)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id": entity.ID,
		}).Error("failed to update entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update entity")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id": entity.ID,
	}).Debugf("Updated %s", entitiesTable)
	return nil
}

// SoftDelete marks an entity as deleted. The row remains readable through
// GetByID; list paths stop returning it.
func (r *EntityRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "EntityRepository.SoftDelete")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(entitiesTable).
		Set(
			ub.Assign("deleted_at", sqlbuilder.Raw("NOW()")),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("group_id", groupID), ub.Equal("id", id), ub.IsNull("deleted_at"))

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id": id,
		}).Error("failed to soft-delete entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete entity")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete entity")
	}
	if rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s does not exist", id)
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id": id,
	}).Debugf("Soft-deleted %s", entitiesTable)
	return nil
}
