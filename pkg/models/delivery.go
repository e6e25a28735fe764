package models

import (
	"time"

	"github.com/google/uuid"
)

// DeliveryResult is the outcome of dispatching one event to one integration.
// It is an ephemeral return value, not a persisted record; callers decide
// whether to log it, surface it, or append a failure event.
type DeliveryResult struct {
	IntegrationID   uuid.UUID       `json:"integration_id"`
	IntegrationKind IntegrationKind `json:"integration_kind"`
	Success         bool            `json:"success"`
	Attempts        int             `json:"attempts"`
	StatusCode      int             `json:"status_code,omitempty"`
	ResponseBody    string          `json:"response_body,omitempty"`
	Error           string          `json:"error,omitempty"`
	CompletedAt     time.Time       `json:"completed_at"`
}
