package repositories

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

const eventsTable = "events"

var eventStruct = database.NewStruct(new(models.Event))

// defaultEventLimit caps unbounded event queries
const defaultEventLimit = 100

// EventRepository handles database operations for the append-only event log.
// Append is the only write; there is no update or delete.
type EventRepository struct {
	*Repository
}

// NewEventRepository creates a new event repository
func NewEventRepository(db database.DB, logger ectologger.Logger) *EventRepository {
	return &EventRepository{
		Repository: NewRepository(db, logger),
	}
}

// Append records an event (group-scoped)
func (r *EventRepository) Append(ctx context.Context, event *models.Event) error {
	ctx, span := tracing.StartSpan(ctx, "EventRepository.Append")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return err
	}
	event.GroupID = groupID

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto(eventsTable).
		Cols("id", "group_id", "event_type", "actor_id", "target_id", "metadata", "occurred_at").
		Values(event.ID, event.GroupID, event.EventType, event.ActorID, event.TargetID, event.Metadata,
			sqlbuilder.Raw("NOW()")).
		Returning("occurred_at")

	query, args := ib.Build()
	err = r.DB().QueryRowContext(ctx, query, args...).Scan(&event.OccurredAt)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"event_type": event.EventType,
		}).Error("failed to append event")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to append event")
	}

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"event_id":   event.ID,
		"event_type": event.EventType,
	}).Debugf("Appended %s", eventsTable)
	return nil
}

// List retrieves events for the current group, newest first
func (r *EventRepository) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	ctx, span := tracing.StartSpan(ctx, "EventRepository.List")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return nil, err
	}

	sb := eventStruct.SelectFrom(eventsTable)
	conds := []string{sb.Equal("group_id", groupID)}
	if filter.EventType != "" {
		conds = append(conds, sb.Equal("event_type", filter.EventType))
	}
	if filter.ActorID != nil {
		conds = append(conds, sb.Equal("actor_id", *filter.ActorID))
	}
	if filter.TargetID != nil {
		conds = append(conds, sb.Equal("target_id", *filter.TargetID))
	}
	if filter.From != nil {
		conds = append(conds, sb.GreaterEqualThan("occurred_at", *filter.From))
	}
	if filter.To != nil {
		conds = append(conds, sb.LessEqualThan("occurred_at", *filter.To))
	}
	sb.Where(conds...)
	sb.OrderBy("occurred_at").Desc()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultEventLimit
	}
	sb.Limit(limit)

	query, args := sb.Build()
	var events []models.Event
	err = r.DB().SelectContext(ctx, &events, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("failed to list events")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list events")
	}

	return events, nil
}

// AuditTrail retrieves all events where the entity is actor or target,
// newest first.
func (r *EventRepository) AuditTrail(ctx context.Context, entityID uuid.UUID, limit int) ([]models.Event, error) {
	ctx, span := tracing.StartSpan(ctx, "EventRepository.AuditTrail")
	defer span.End()

	groupID, err := GetGroupID(ctx)
	if err != nil {
		return nil, err
	}

	sb := eventStruct.SelectFrom(eventsTable)
	sb.Where(
		sb.Equal("group_id", groupID),
		sb.Or(
			sb.Equal("actor_id", entityID),
			sb.Equal("target_id", entityID),
		),
	)
	sb.OrderBy("occurred_at").Desc()

	if limit <= 0 {
		limit = defaultEventLimit
	}
	sb.Limit(limit)

	query, args := sb.Build()
	var events []models.Event
	err = r.DB().SelectContext(ctx, &events, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"entity_id": entityID,
		}).Error("failed to load audit trail")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load audit trail")
	}

	return events, nil
}
