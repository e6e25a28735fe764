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

const integrationConfigsTable = "integration_configs"

var integrationConfigStruct = database.NewStruct(new(models.IntegrationConfig))

// IntegrationRepository handles database operations for integration configs
type IntegrationRepository struct {
	*Repository
}

// NewIntegrationRepository creates a new integration repository
func NewIntegrationRepository(db database.DB, logger ectologger.Logger) *IntegrationRepository {
	return &IntegrationRepository{
		Repository: NewRepository(db, logger),
	}
}

// Create inserts a new integration config for the current group
func (r *IntegrationRepository) Create(ctx context.Context, config *models.IntegrationConfig) error {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.Create")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return err
	}
	config.GroupID = groupID

	if config.ID == uuid.Nil {
		config.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(integrationConfigsTable).
		Cols("id", "group_id", "kind", "name", "enabled", "settings", "retry_attempts", "timeout_ms",
			"created_at", "updated_at").
		Values(config.ID, config.GroupID, config.Kind, config.Name, config.Enabled, config.Settings,
			config.RetryAttempts, config.TimeoutMs, sqlbuilder.Raw("NOW()"), sqlbuilder.Raw("NOW()")).
		Returning("created_at", "updated_at")

	query, args := ib.Build()
	err = r.DB().QueryRowContext(ctx, query, args...).Scan(&config.CreatedAt, &config.UpdatedAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"kind": config.Kind,
			"name": config.Name,
		}).Error("failed to create integration config")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create integration config")
	}

	return nil
}

// GetByID retrieves an integration config by id (group-scoped)
func (r *IntegrationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.IntegrationConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.GetByID")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return nil, err
	}

	sb := integrationConfigStruct.SelectFrom(integrationConfigsTable)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("group_id", groupID),
	)

	query, args := sb.Build()
	var config models.IntegrationConfig
	err = r.DB().GetContext(ctx, &config, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NotFound("integration config %s not found", id.String())
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"integration_id": id,
		}).Error("failed to get integration config")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get integration config")
	}

	return &config, nil
}

// List retrieves all integration configs for the current group
func (r *IntegrationRepository) List(ctx context.Context) ([]models.IntegrationConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.List")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return nil, err
	}

	sb := integrationConfigStruct.SelectFrom(integrationConfigsTable)
	sb.Where(sb.Equal("group_id", groupID))
	sb.OrderBy("created_at").Desc()

	query, args := sb.Build()
	var configs []models.IntegrationConfig
	err = r.DB().SelectContext(ctx, &configs, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list integration configs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list integration configs")
	}

	return configs, nil
}

// ListEnabled retrieves the enabled integration configs for the current group.
// Dispatch fans out over this set.
func (r *IntegrationRepository) ListEnabled(ctx context.Context) ([]models.IntegrationConfig, error) {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.ListEnabled")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return nil, err
	}

	sb := integrationConfigStruct.SelectFrom(integrationConfigsTable)
	sb.Where(
		sb.Equal("group_id", groupID),
		sb.Equal("enabled", true),
	)
	sb.OrderBy("created_at").Asc()

	query, args := sb.Build()
	var configs []models.IntegrationConfig
	err = r.DB().SelectContext(ctx, &configs, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list enabled integration configs")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list enabled integration configs")
	}

	return configs, nil
}

// Update modifies an existing integration config. Kind and group are immutable.
func (r *IntegrationRepository) Update(ctx context.Context, config *models.IntegrationConfig) error {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.Update")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(integrationConfigsTable).
		Set(
			ub.Assign("name", config.Name),
			ub.Assign("enabled", config.Enabled),
			ub.Assign("settings", config.Settings),
			ub.Assign("retry_attempts", config.RetryAttempts),
			ub.Assign("timeout_ms", config.TimeoutMs),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(
			ub.Equal("id", config.ID),
			ub.Equal("group_id", groupID),
		)
	ub.SQL("RETURNING updated_at")

	query, args := ub.Build()
	err = r.DB().QueryRowContext(ctx, query, args...).Scan(&config.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NotFound("integration config %s not found", config.ID.String())
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"integration_id": config.ID,
		}).Error("failed to update integration config")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update integration config")
	}

	config.GroupID = groupID
	return nil
}

// SetEnabled toggles an integration config on or off
func (r *IntegrationRepository) SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.SetEnabled")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return err
	}

	ub := database.NewUpdateBuilder()
	ub.Update(integrationConfigsTable).
		Set(
			ub.Assign("enabled", enabled),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		).
		Where(
			ub.Equal("id", id),
			ub.Equal("group_id", groupID),
		)

	query, args := ub.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"integration_id": id,
		}).Error("failed to toggle integration config")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to toggle integration config")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to toggle integration config")
	}
	if rows == 0 {
		return NotFound("integration config %s not found", id.String())
	}

	return nil
}

// Delete removes an integration config
func (r *IntegrationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := tracing.StartSpan(ctx, "IntegrationRepository.Delete")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return err
	}

	db := database.NewDeleteBuilder()
	db.DeleteFrom(integrationConfigsTable).
		Where(
			db.Equal("id", id),
			db.Equal("group_id", groupID),
		)

	query, args := db.Build()
	result, err := r.DB().ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"integration_id": id,
		}).Error("failed to delete integration config")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete integration config")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to delete integration config")
	}
	if rows == 0 {
		return NotFound("integration config %s not found", id.String())
	}

	return nil
}
