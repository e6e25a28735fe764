package handlers

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/models"
)

// EventHandler handles audit event API requests. Events are append-only;
// this surface is read-only.
type EventHandler struct {
	store *graph.Store
}

// NewEventHandler creates a new event handler
func NewEventHandler(store *graph.Store) *EventHandler {
	return &EventHandler{
		store: store,
	}
}

// RegisterRoutes registers the event routes
func (h *EventHandler) RegisterRoutes(g *echo.Group) {
	events := g.Group("/events")
	events.GET("", h.List)
}

// List handles GET /events
func (h *EventHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	filter := models.EventFilter{
		EventType: c.QueryParam("event_type"),
		Limit:     queryInt(c, "limit"),
	}
	if actorID, err := uuid.Parse(c.QueryParam("actor_id")); err == nil {
		filter.ActorID = &actorID
	}
	if targetID, err := uuid.Parse(c.QueryParam("target_id")); err == nil {
		filter.TargetID = &targetID
	}
	if from, err := time.Parse(time.RFC3339, c.QueryParam("from")); err == nil {
		filter.From = &from
	}
	if to, err := time.Parse(time.RFC3339, c.QueryParam("to")); err == nil {
		filter.To = &to
	}

	events, err := h.store.ListEvents(ctx, filter)
	if err != nil {
		return err
	}

	return SuccessResponse(c, events)
}
