package handlers

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/pkg/redis"
)

const defaultDLQListCount = 50

// DLQHandler exposes the delivery dead letter stream for inspection
type DLQHandler struct {
	dlq *redis.DeadLetterQueue
}

// NewDLQHandler creates a new DLQ handler
func NewDLQHandler(dlq *redis.DeadLetterQueue) *DLQHandler {
	return &DLQHandler{
		dlq: dlq,
	}
}

// RegisterRoutes registers the DLQ routes
func (h *DLQHandler) RegisterRoutes(g *echo.Group) {
	dlq := g.Group("/dlq")
	dlq.GET("", h.List)
	dlq.GET("/count", h.Count)
	dlq.DELETE("/:messageId", h.Delete)
}

// List handles GET /dlq. Scoped to the caller's group.
func (h *DLQHandler) List(c echo.Context) error {
	ctx := c.Request().Context()

	groupID, err := GetGroupID(c)
	if err != nil {
		return err
	}

	count := int64(queryInt(c, "count"))
	if count <= 0 {
		count = defaultDLQListCount
	}

	entries, err := h.dlq.ListByGroup(ctx, groupID.String(), count)
	if err != nil {
		return err
	}

	return SuccessResponse(c, entries)
}

// Count handles GET /dlq/count
func (h *DLQHandler) Count(c echo.Context) error {
	ctx := c.Request().Context()

	count, err := h.dlq.Count(ctx)
	if err != nil {
		return err
	}

	return SuccessResponse(c, map[string]string{"count": strconv.FormatInt(count, 10)})
}

// Delete handles DELETE /dlq/:messageId
func (h *DLQHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	messageID := c.Param("messageId")
	if messageID == "" {
		return BadRequest("missing messageId")
	}

	if err := h.dlq.Delete(ctx, messageID); err != nil {
		return err
	}

	return NoContentResponse(c)
}
