package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

const maxBulkRelationships = 100

// RelationshipHandler handles relationship API requests
type RelationshipHandler struct {
	store *graph.Store
}

// NewRelationshipHandler creates a new relationship handler
func NewRelationshipHandler(store *graph.Store) *RelationshipHandler {
	return &RelationshipHandler{
		store: store,
	}
}

// RelationshipRequest is the request body for creating or upserting an edge
type RelationshipRequest struct {
	RelationshipType models.RelationshipType `json:"relationship_type" validate:"required"`
	SourceID         uuid.UUID               `json:"source_id" validate:"required"`
	TargetID         uuid.UUID               `json:"target_id" validate:"required"`
	Strength         *float64                `json:"strength,omitempty" validate:"omitempty,gte=0,lte=1"`
	Metadata         map[string]any          `json:"metadata,omitempty"`
	ValidFrom        *time.Time              `json:"valid_from,omitempty"`
	ValidTo          *time.Time              `json:"valid_to,omitempty"`
}

// BulkCreateRequest is the request body for bulk edge creation
type BulkCreateRequest struct {
	Relationships []RelationshipRequest `json:"relationships" validate:"required,min=1,dive"`
}

// BulkCreateResponse reports the per-edge outcome of a bulk request
type BulkCreateResponse struct {
	Created []*models.Relationship `json:"created"`
	Errors  []*BulkError           `json:"errors,omitempty"`
}

// BulkError names the failed edge by its position in the request
type BulkError struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// RegisterRoutes registers the relationship routes
func (h *RelationshipHandler) RegisterRoutes(g *echo.Group) {
	relationships := g.Group("/relationships")
	relationships.POST("", h.Create)
	relationships.PUT("", h.Upsert)
	relationships.POST("/bulk", h.BulkCreate)
	relationships.GET("", h.List)
	relationships.GET("/:id", h.Get)
	relationships.DELETE("/:id", h.Delete)
}

func (h *RelationshipHandler) toModel(groupID uuid.UUID, req *RelationshipRequest) *models.Relationship {
	return &models.Relationship{
		GroupID:          groupID,
		RelationshipType: req.RelationshipType,
		SourceID:         req.SourceID,
		TargetID:         req.TargetID,
		Strength:         req.Strength,
		Metadata:         database.JSONB[map[string]any]{Data: req.Metadata},
		ValidFrom:        req.ValidFrom,
		ValidTo:          req.ValidTo,
	}
}

// Create handles POST /relationships
func (h *RelationshipHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	groupID, err := GetGroupID(c)
	if err != nil {
		return err
	}

	var req RelationshipRequest
	if err := BindRequest(c, &req); err != nil {
		return err
	}

	created, err := h.store.CreateRelationship(ctx, h.toModel(groupID, &req))
	if err != nil {
		return err
	}

	return CreatedResponse(c, created)
}

// Upsert handles PUT /relationships. An existing (type, source, target) edge
// is patched; a new one is inserted.
func (h *RelationshipHandler) Upsert(c echo.Context) error {
	ctx := c.Request().Context()

	groupID, err := GetGroupID(c)
	if err != nil {
		return err
	}

	var req RelationshipRequest
	if err := BindRequest(c, &req); err != nil {
		return err
	}

	upserted, err := h.store.UpsertRelationship(ctx, h.toModel(groupID, &req))
	if err != nil {
		return err
	}

	return SuccessResponse(c, upserted)
}

// BulkCreate handles POST /relationships/bulk. Valid edges are written even
// when others in the batch fail.
func (h *RelationshipHandler) BulkCreate(c echo.Context) error {
	ctx := c.Request().Context()

	groupID, err := GetGroupID(c)
	if err != nil {
		return err
	}

	var req BulkCreateRequest
	if err := BindRequest(c, &req); err != nil {
		return err
	}
	if len(req.Relationships) > maxBulkRelationships {
		return BadRequest("too many relationships in one request")
	}

	edges := make([]*models.Relationship, len(req.Relationships))
	for i := range req.Relationships {
		edges[i] = h.toModel(groupID, &req.Relationships[i])
	}

	created, errs := h.store.BulkCreateRelationships(ctx, edges)

	resp := BulkCreateResponse{Created: make([]*models.Relationship, 0, len(created))}
	for i, rel := range created {
		if errs[i] != nil {
			resp.Errors = append(resp.Errors, &BulkError{Index: i, Message: errs[i].Error()})
			continue
		}
		resp.Created = append(resp.Created, rel)
	}

	return SuccessResponse(c, resp)
}

// List handles GET /relationships
func (h *RelationshipHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	filter := repositories.RelationshipFilter{
		RelationshipType: models.RelationshipType(c.QueryParam("relationship_type")),
		Limit:            queryInt(c, "limit"),
		Offset:           queryInt(c, "offset"),
	}
	if sourceID, err := uuid.Parse(c.QueryParam("source_id")); err == nil {
		filter.SourceID = &sourceID
	}
	if targetID, err := uuid.Parse(c.QueryParam("target_id")); err == nil {
		filter.TargetID = &targetID
	}

	relationships, err := h.store.ListRelationships(ctx, filter)
	if err != nil {
		return err
	}

	return SuccessResponse(c, relationships)
}

// Get handles GET /relationships/:id
func (h *RelationshipHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	rel, err := h.store.GetRelationship(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, rel)
}

// Delete handles DELETE /relationships/:id
func (h *RelationshipHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	if err := h.store.RemoveRelationship(ctx, id); err != nil {
		return err
	}

	return NoContentResponse(c)
}
