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

const relationshipsTable = "relationships"

var relationshipStruct = database.NewStruct(new(models.Relationship))

// RelationshipFilter narrows relationship listing
type RelationshipFilter struct {
	RelationshipType models.RelationshipType
	SourceID         *uuid.UUID
	TargetID         *uuid.UUID
	Limit            int
	Offset           int
}

// RelationshipRepository handles database operations for relationships
type RelationshipRepository struct {
	*Repository
}

// NewRelationshipRepository creates a new relationship repository
func NewRelationshipRepository(db database.DB, logger ectologger.Logger) *RelationshipRepository {
	return &RelationshipRepository{
		Repository: NewRepository(db, logger),
	}
}

// Upsert inserts a relationship or, when the (group, type, source, target)
// triple already exists, patches the existing edge in place. The unique
// constraint makes this race-safe regardless of what the caller looked up
// beforehand.
func (r *RelationshipRepository) Upsert(ctx context.Context, rel *models.Relationship) error {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.Upsert")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return err
	}
	rel.GroupID = groupID

	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(relationshipsTable).
		Cols("id", "group_id", "source_id", "target_id", "relationship_type",
			"strength", "metadata", "valid_from", "valid_to", "created_at", "updated_at").
		Values(rel.ID, rel.GroupID, rel.SourceID, rel.TargetID, rel.RelationshipType,
			rel.Strength, rel.Metadata, rel.ValidFrom, rel.ValidTo,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()"))

	ub := ib.OnConflict("group_id", "relationship_type", "source_id", "target_id")
	ub.Set(
		ub.Assign("strength", database.Excluded("strength")),
		ub.Assign("metadata", database.Excluded("metadata")),
		ub.Assign("valid_from", database.Excluded("valid_from")),
		ub.Assign("valid_to", database.Excluded("valid_to")),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ib.SQL("RETURNING id, created_at, updated_at")

	query, args := ib.Build()
	err = r.DB().QueryRowContext(ctx, query, args...).Scan(&rel.ID, &rel.CreatedAt, &rel.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_id":         rel.SourceID,
			"target_id":         rel.TargetID,
			"relationship_type": rel.RelationshipType,
		}).Error("failed to upsert relationship")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert relationship")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"relationship_id": rel.ID,
	}).Debugf("Upserted %s", relationshipsTable)
	return nil
}

// GetByID retrieves a relationship by ID (group-scoped)
func (r *RelationshipRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.GetByID")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return nil, err
	}

	sb := relationshipStruct.SelectFrom(relationshipsTable)
	sb.Where(sb.Equal("group_id", groupID), sb.Equal("id", id))

	query, args := sb.Build()
	var rel models.Relationship
	err = r.DB().GetContext(ctx, &rel, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "relationship %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"relationship_id": id,
		}).Error("failed to get relationship by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship by ID")
	}

	return &rel, nil
}

// GetByTriple retrieves a relationship by its upsert identity. Returns nil
// when no edge exists for the triple.
func (r *RelationshipRepository) GetByTriple(ctx context.Context, relType models.RelationshipType, sourceID, targetID uuid.UUID) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.GetByTriple")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return nil, err
	}

	sb := relationshipStruct.SelectFrom(relationshipsTable)
	sb.Where(
		sb.Equal("group_id", groupID),
		sb.Equal("relationship_type", relType),
		sb.Equal("source_id", sourceID),
		sb.Equal("target_id", targetID),
	)

	query, args := sb.Build()
	var rel models.Relationship
	err = r.DB().GetContext(ctx, &rel, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to get relationship by triple")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get relationship")
	}

	return &rel, nil
}

// List retrieves relationships for the current group
func (r *RelationshipRepository) List(ctx context.Context, filter RelationshipFilter) ([]models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.List")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return nil, err
	}

	sb := relationshipStruct.SelectFrom(relationshipsTable)
	conds := []string{sb.Equal("group_id", groupID)}
	if filter.RelationshipType != "" {
		conds = append(conds, sb.Equal("relationship_type", filter.RelationshipType))
	}
	if filter.SourceID != nil {
		conds = append(conds, sb.Equal("source_id", *filter.SourceID))
	}
	if filter.TargetID != nil {
		conds = append(conds, sb.Equal("target_id", *filter.TargetID))
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
	var rels []models.Relationship
	err = r.DB().SelectContext(ctx, &rels, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list relationships")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}

	return rels, nil
}

// Delete hard-deletes a relationship and returns the removed edge so callers
// can name its type and endpoints in the audit event.
func (r *RelationshipRepository) Delete(ctx context.Context, id uuid.UUID) (*models.Relationship, error) {
	ctx, span := tracing.StartSpan(ctx, "RelationshipRepository.Delete")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return nil, err
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(relationshipsTable).
		Where(db.Equal("group_id", groupID), db.Equal("id", id))
	db.SQL("RETURNING id, group_id, source_id, target_id, relationship_type")

	query, args := db.Build()
	var rel models.Relationship
	err = r.DB().QueryRowContext(ctx, query, args...).
		Scan(&rel.ID, &rel.GroupID, &rel.SourceID, &rel.TargetID, &rel.RelationshipType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "relationship %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"relationship_id": id,
		}).Error("failed to delete relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete relationship")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"relationship_id": id,
	}).Debugf("Deleted %s", relationshipsTable)
	return &rel, nil
}
