package handlers

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

// EntityHandler handles entity API requests
type EntityHandler struct {
	store *graph.Store
}

// NewEntityHandler creates a new entity handler
func NewEntityHandler(store *graph.Store) *EntityHandler {
	return &EntityHandler{
		store: store,
	}
}

// CreateEntityRequest is the request body for creating an entity
type CreateEntityRequest struct {
	EntityType string              `json:"entity_type" validate:"required"`
	Name       string              `json:"name" validate:"required"`
	Properties map[string]any      `json:"properties,omitempty"`
	Status     models.EntityStatus `json:"status,omitempty" validate:"omitempty,oneof=draft active published archived"`
}

// UpdateEntityRequest is the request body for updating an entity
type UpdateEntityRequest struct {
	Name       *string              `json:"name,omitempty"`
	Properties *map[string]any      `json:"properties,omitempty"`
	Status     *models.EntityStatus `json:"status,omitempty" validate:"omitempty,oneof=draft active published archived"`
}

// RegisterRoutes registers the entity routes
func (h *EntityHandler) RegisterRoutes(g *echo.Group) {
	entities := g.Group("/entities")
	entities.POST("", h.Create)
	entities.GET("", h.List)
	entities.GET("/:id", h.Get)
	entities.PUT("/:id", h.Update)
	entities.DELETE("/:id", h.Delete)
	entities.GET("/:id/events", h.AuditTrail)
}

// Create handles POST /entities
func (h *EntityHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	groupID, err := GetGroupID(c)
	if err != nil {
		return err
	}

	var req CreateEntityRequest
	if err := BindRequest(c, &req); err != nil {
		return err
	}

	entity := &models.Entity{
		ID:         uuid.New(),
		GroupID:    groupID,
		EntityType: req.EntityType,
		Name:       req.Name,
		Status:     req.Status,
		Properties: database.JSONB[map[string]any]{Data: req.Properties},
	}

	created, err := h.store.CreateEntity(ctx, entity)
	if err != nil {
		return err
	}

	return CreatedResponse(c, created)
}

// List handles GET /entities
func (h *EntityHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repositories.EntityFilter{
		EntityType: c.QueryParam("entity_type"),
		Status:     models.EntityStatus(c.QueryParam("status")),
		Limit:      queryInt(c, "limit"),
		Offset:     queryInt(c, "offset"),
	}

	entities, err := h.store.ListEntities(ctx, filter)
	if err != nil {
		return err
	}

	return SuccessResponse(c, entities)
}

// Get handles GET /entities/:id
func (h *EntityHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	entity, err := h.store.GetEntity(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, entity)
}

// Update handles PUT /entities/:id
func (h *EntityHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	existing, err := h.store.GetEntity(ctx, id)
	if err != nil {
		return err
	}

	var req UpdateEntityRequest
	if err := BindRequest(c, &req); err != nil {
		return err
	}

	if req.Name != nil {
		existing.Name = *req.Name
	}
	if req.Properties != nil {
		existing.Properties = database.JSONB[map[string]any]{Data: *req.Properties}
	}
	if req.Status != nil {
		existing.Status = *req.Status
	}

	updated, err := h.store.UpdateEntity(ctx, existing)
	if err != nil {
		return err
	}

	return SuccessResponse(c, updated)
}

// Delete handles DELETE /entities/:id
func (h *EntityHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.store.DeleteEntity(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}

// AuditTrail handles GET /entities/:id/events
func (h *EntityHandler) AuditTrail(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	events, err := h.store.EntityAuditTrail(ctx, id, queryInt(c, "limit"))
	if err != nil {
		return err
	}

	return SuccessResponse(c, events)
}

func queryInt(c echo.Context, param string) int {
	value, err := strconv.Atoi(c.QueryParam(param))
	if err != nil {
		return 0
	}
	return value
}
