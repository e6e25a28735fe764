package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/isolation"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

// GroupHandler handles tenant group API requests
type GroupHandler struct {
	repo  *repositories.GroupRepository
	guard *isolation.Guard
}

// NewGroupHandler creates a new group handler
func NewGroupHandler(repo *repositories.GroupRepository, guard *isolation.Guard) *GroupHandler {
	return &GroupHandler{
		repo:  repo,
		guard: guard,
	}
}

// CreateGroupRequest is the request body for creating a group
type CreateGroupRequest struct {
	Name          string     `json:"name" validate:"required"`
	ParentGroupID *uuid.UUID `json:"parent_group_id,omitempty"`
}

// SetGroupStatusRequest is the request body for changing a group's lifecycle status
type SetGroupStatusRequest struct {
	Status models.GroupStatus `json:"status" validate:"required,oneof=active inactive archived"`
}

// RegisterRoutes registers the group routes
func (h *GroupHandler) RegisterRoutes(g *echo.Group) {
	groups := g.Group("/groups")
	groups.POST("", h.Create)
	groups.GET("/:id", h.Get)
	groups.GET("/:id/children", h.ListChildren)
	groups.PUT("/:id/status", h.SetStatus)
}

// Create handles POST /groups
func (h *GroupHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateGroupRequest
	if err := BindRequest(c, &req); err != nil {
		return err
	}

	group := &models.Group{
		ID:            uuid.New(),
		Name:          req.Name,
		ParentGroupID: req.ParentGroupID,
		Status:        models.GroupStatusActive,
	}

	if err := h.repo.Create(ctx, group); err != nil {
		return err
	}

	return CreatedResponse(c, group)
}

// requireAccess checks that the caller's group is id itself or one of its
// ancestors. Parents may read descendant groups; siblings are denied.
func (h *GroupHandler) requireAccess(c echo.Context, id uuid.UUID) error {
	callerGroupID, err := GetGroupID(c)
	if err != nil {
		return err
	}

	allowed, err := h.guard.ValidateHierarchicalAccess(c.Request().Context(), callerGroupID, id)
	if err != nil {
		return err
	}
	if !allowed {
		return httperror.NewHTTPErrorf(http.StatusForbidden, "group %s is outside your hierarchy", id)
	}

	return nil
}

// Get handles GET /groups/:id
func (h *GroupHandler) Get(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireAccess(c, id); err != nil {
		return err
	}

	group, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, group)
}

// ListChildren handles GET /groups/:id/children
func (h *GroupHandler) ListChildren(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}
	if err := h.requireAccess(c, id); err != nil {
		return err
	}

	children, err := h.repo.ListChildren(ctx, id)
	if err != nil {
		return err
	}

	return SuccessResponse(c, children)
}

// SetStatus handles PUT /groups/:id/status. Archiving a group is how tenants
// are removed; their records stay for audit but reject writes.
func (h *GroupHandler) SetStatus(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	var req SetGroupStatusRequest
	if err := BindRequest(c, &req); err != nil {
		return err
	}

	group, err := h.repo.SetStatus(ctx, id, req.Status)
	if err != nil {
		return err
	}

	return SuccessResponse(c, group)
}
