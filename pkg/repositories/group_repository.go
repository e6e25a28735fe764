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

const groupsTable = "groups"

var groupStruct = database.NewStruct(new(models.Group))

// GroupRepository handles database operations for tenant groups. Groups are
// the scope itself, so lookups take explicit ids rather than reading the
// group from context.
type GroupRepository struct {
	*Repository
}

// NewGroupRepository creates a new group repository
func NewGroupRepository(db database.DB, logger ectologger.Logger) *GroupRepository {
	return &GroupRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create creates a new group
func (r *GroupRepository) Create(ctx context.Context, group *models.Group) error {
	ctx, span := tracing.StartSpan(ctx, "GroupRepository.Create")
	defer span.End()

	if group.ID == uuid.Nil {
		group.ID = uuid.New()
	}
	if group.Status == "" {
		group.Status = models.GroupStatusActive
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(groupsTable).
		Cols("id", "name", "parent_group_id", "status", "created_at", "updated_at").
		Values(group.ID, group.Name, group.ParentGroupID, group.Status,
			sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err := r.DB().QueryRowContext(ctx, query, args...).Scan(&group.CreatedAt, &group.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"group_id": group.ID,
		}).Error("failed to create group")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create group")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"group_id": group.ID,
	}).Debugf("Created %s", groupsTable)
	return nil
}

// GetByID retrieves a group by ID
func (r *GroupRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	ctx, span := tracing.StartSpan(ctx, "GroupRepository.GetByID")
	defer span.End()

	sb := groupStruct.SelectFrom(groupsTable)
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var group models.Group
	err := r.DB().GetContext(ctx, &group, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "group %s does not exist", id)
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"group_id": id,
		}).Error("failed to get group by ID")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get group by ID")
	}

	return &group, nil
}

// ListChildren retrieves the direct child groups of a parent
func (r *GroupRepository) ListChildren(ctx context.Context, parentID uuid.UUID) ([]models.Group, error) {
	ctx, span := tracing.StartSpan(ctx, "GroupRepository.ListChildren")
	defer span.End()

	sb := groupStruct.SelectFrom(groupsTable)
	sb.Where(sb.Equal("parent_group_id", parentID))
	sb.OrderBy("name")

	query, args := sb.Build()
	var groups []models.Group
	err := r.DB().SelectContext(ctx, &groups, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"parent_group_id": parentID,
		}).Error("failed to list child groups")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list child groups")
	}

	return groups, nil
}

// SetStatus transitions a group's lifecycle status and returns the updated
// row. Update and read-back run in one transaction so the returned group
// cannot reflect a concurrent later transition. Archiving is the removal
// path; groups are never hard-deleted.
func (r *GroupRepository) SetStatus(ctx context.Context, id uuid.UUID, status models.GroupStatus) (*models.Group, error) {
	ctx, span := tracing.StartSpan(ctx, "GroupRepository.SetStatus")
	defer span.End()

	ctx, tx, err := r.DB().GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	defer tx.Rollback(ctx)

	ub := database.NewUpdateBuilder()
	ub.Update(groupsTable).
		Set(
			ub.Assign("status", status),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(ub.Equal("id", id))

	query, args := ub.Build()
	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"group_id": id,
		}).Error("failed to update group status")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update group status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update group status")
	}
	if rows == 0 {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "group %s does not exist", id)
	}

	sb := groupStruct.SelectFrom(groupsTable)
	sb.Where(sb.Equal("id", id))

	query, args = sb.Build()
	var group models.Group
	if err := tx.GetContext(ctx, &group, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"group_id": id,
		}).Error("failed to read back group after status update")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update group status")
	}

	if err := tx.Commit(ctx); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"group_id": id,
		}).Error("failed to commit group status update")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update group status")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"group_id": id,
		"status":   status,
	}).Debugf("Updated %s status", groupsTable)
	return &group, nil
}
