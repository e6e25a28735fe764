package repositories

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	appctx "github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/database"
)

// NotFound returns a 404 HTTP error with a descriptive message
func NotFound(format string, args ...any) error {
	return httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf(format, args...))
}

// Unauthorized returns a 401 HTTP error
func Unauthorized(message string) error {
	return httperror.NewHTTPError(http.StatusUnauthorized, message)
}

// BadRequest returns a 400 HTTP error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

// Repository provides common database operations with group isolation
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new base repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// DB returns the database instance
func (r *Repository) DB() database.DB {
	return r.db
}

// GetGroupID extracts and validates the tenant group id from context
func GetGroupID(ctx context.Context) (uuid.UUID, error) {
	groupIDStr := appctx.GetGroupID(ctx)
	if groupIDStr == "" {
		return uuid.Nil, httperror.NewHTTPError(http.StatusUnauthorized, "group scope required")
	}

	groupID, err := uuid.Parse(groupIDStr)
	if err != nil {
		return uuid.Nil, httperror.NewHTTPError(http.StatusUnauthorized, "invalid group scope")
	}

	return groupID, nil
}

// GetActorID extracts the optional acting entity id from context. A missing
// or unparsable actor means a system-originated operation.
func GetActorID(ctx context.Context) *uuid.UUID {
	actorIDStr := appctx.GetActorID(ctx)
	if actorIDStr == "" {
		return nil
	}

	actorID, err := uuid.Parse(actorIDStr)
	if err != nil {
		return nil
	}

	return &actorID
}
