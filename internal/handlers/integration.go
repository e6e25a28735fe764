package handlers

import (
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/providers"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

// IntegrationHandler handles integration config API requests
type IntegrationHandler struct {
	repo     *repositories.IntegrationRepository
	registry *providers.Registry
	sender   providers.Sender
}

// NewIntegrationHandler creates a new integration handler
func NewIntegrationHandler(repo *repositories.IntegrationRepository, registry *providers.Registry, sender providers.Sender) *IntegrationHandler {
	return &IntegrationHandler{
		repo:     repo,
		registry: registry,
		sender:   sender,
	}
}

// CreateIntegrationRequest is the request body for creating an integration
type CreateIntegrationRequest struct {
	Kind          models.IntegrationKind     `json:"kind" validate:"required"`
	Name          string                     `json:"name" validate:"required"`
	Enabled       *bool                      `json:"enabled,omitempty"`
	Settings      models.IntegrationSettings `json:"settings"`
	RetryAttempts *int                       `json:"retry_attempts,omitempty" validate:"omitempty,gte=1,lte=10"`
	TimeoutMs     *int                       `json:"timeout_ms,omitempty" validate:"omitempty,gte=100,lte=120000"`
}

// UpdateIntegrationRequest is the request body for updating an integration.
// Kind is immutable once created.
type UpdateIntegrationRequest struct {
	Name          *string                     `json:"name,omitempty"`
	Settings      *models.IntegrationSettings `json:"settings,omitempty"`
	RetryAttempts *int                        `json:"retry_attempts,omitempty" validate:"omitempty,gte=1,lte=10"`
	TimeoutMs     *int                        `json:"timeout_ms,omitempty" validate:"omitempty,gte=100,lte=120000"`
}

// SetEnabledRequest is the request body for toggling an integration
type SetEnabledRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

// TestIntegrationRequest is the request body for a test delivery
type TestIntegrationRequest struct {
	EventType string `json:"event_type,omitempty"`
}

// RegisterRoutes registers the integration routes
func (h *IntegrationHandler) RegisterRoutes(g *echo.Group) {
	integrations := g.Group("/integrations")
	integrations.GET("/kinds", h.Kinds)
	integrations.POST("", h.Create)
	integrations.GET("", h.List)
	integrations.GET("/:id", h.Get)
	integrations.PUT("/:id", h.Update)
	integrations.PUT("/:id/enabled", h.SetEnabled)
	integrations.POST("/:id/test", h.Test)
	integrations.DELETE("/:id", h.Delete)
}

// Kinds handles GET /integrations/kinds
func (h *IntegrationHandler) Kinds(c echo.Context) error {
	return SuccessResponse(c, h.registry.Kinds())
}

// validateSettings runs the adapter's own settings validation so broken
// configs are rejected at write time, not at delivery time
func (h *IntegrationHandler) validateSettings(kind models.IntegrationKind, settings models.IntegrationSettings) error {
	adapter, ok := h.registry.Get(kind)
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown integration kind: %s", kind)
	}
	if err := adapter.Validate(settings); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid settings: %s", err.Error())
	}
	return nil
}

// Create handles POST /integrations
func (h *IntegrationHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	groupID, err := GetGroupID(c)
	if err != nil {
		return err
	}

	var req CreateIntegrationRequest
	if err := BindRequest(c, &req); err != nil {
		return err
	}
	if err := h.validateSettings(req.Kind, req.Settings); err != nil {
		return err
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	config := &models.IntegrationConfig{
		ID:            uuid.New(),
		GroupID:       groupID,
		Kind:          req.Kind,
		Name:          req.Name,
		Enabled:       enabled,
		Settings:      database.JSONB[models.IntegrationSettings]{Data: req.Settings},
		RetryAttempts: req.RetryAttempts,
		TimeoutMs:     req.TimeoutMs,
	}

	if err := h.repo.Create(ctx, config); err != nil {
		return err
	}

	return CreatedResponse(c, config)
}

// List handles GET /integrations
func (h *IntegrationHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	configs, err := h.repo.List(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, configs)
}

// Get handles GET /integrations/:id
func (h *IntegrationHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	config, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, config)
}

// Update handles PUT /integrations/:id
func (h *IntegrationHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	existing, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var req UpdateIntegrationRequest
	if err := BindRequest(c, &req); err != nil {
		return err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Settings != nil {
		if err := h.validateSettings(existing.Kind, *req.Settings); err != nil {
			return err
		}
		existing.Settings = database.JSONB[models.IntegrationSettings]{Data: *req.Settings}
	}
	if req.RetryAttempts != nil {
		existing.RetryAttempts = req.RetryAttempts
	}
	if req.TimeoutMs != nil {
		existing.TimeoutMs = req.TimeoutMs
	}

	if err := h.repo.Update(ctx, existing); err != nil {
		return err
	}

	return SuccessResponse(c, existing)
}

// SetEnabled handles PUT /integrations/:id/enabled
func (h *IntegrationHandler) SetEnabled(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	var req SetEnabledRequest
	if err := BindRequest(c, &req); err != nil {
		return err
	}

	if err := h.repo.SetEnabled(ctx, id, *req.Enabled); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// Test handles POST /integrations/:id/test. It runs a single synchronous
// delivery with a synthetic event and returns the full result, so tenants can
// verify credentials before enabling the integration.
func (h *IntegrationHandler) Test(c echo.Context) error {
	ctx := c.Request().Context()

	groupID, err := GetGroupID(c)
	if err != nil {
		return err
	}

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	config, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	var req TestIntegrationRequest
	if err := c.Bind(&req); err != nil {
		return BadRequest("invalid request body")
	}
	eventType := req.EventType
	if eventType == "" {
		eventType = "integration_test"
	}

	adapter, ok := h.registry.Get(config.Kind)
	if !ok {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "unknown integration kind: %s", config.Kind)
	}

	payload := &providers.EventPayload{
		Event:      eventType,
		GroupID:    groupID.String(),
		OccurredAt: time.Now().UTC(),
		Entity: &providers.EntitySummary{
			ID:   uuid.New().String(),
			Type: "contact",
			Name: "Test Contact",
			Properties: map[string]any{
				"email": "test@example.com",
			},
		},
	}

	result := adapter.Deliver(ctx, h.sender, config, payload)

	status := models.DeliveryResult{
		IntegrationID:   config.ID,
		IntegrationKind: config.Kind,
		Success:         result.Success,
		Attempts:        result.Attempts,
		StatusCode:      result.StatusCode,
		ResponseBody:    string(result.Body),
		CompletedAt:     time.Now().UTC(),
	}
	if result.Err != nil {
		status.Error = result.Err.Error()
	}

	return SuccessResponse(c, status)
}

// Delete handles DELETE /integrations/:id
func (h *IntegrationHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}
