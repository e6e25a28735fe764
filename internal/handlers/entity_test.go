package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/Gobusters/ectologger/zapadapter"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/repositories"
)

func getTestLogger(t *testing.T) ectologger.Logger {
	zapLogger, err := zap.NewDevelopment()
	require.NoError(t, err)
	return zapadapter.NewZapEctoLogger(zapLogger, nil)
}

type stubGroups struct {
	group *models.Group
}

func (s *stubGroups) GetByID(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	if s.group == nil || s.group.ID != id {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "group %s not found", id)
	}
	return s.group, nil
}

type stubEntities struct {
	byID map[uuid.UUID]*models.Entity
}

func (s *stubEntities) Create(ctx context.Context, entity *models.Entity) error {
	s.byID[entity.ID] = entity
	return nil
}

func (s *stubEntities) GetByID(ctx context.Context, id uuid.UUID) (*models.Entity, error) {
	entity, ok := s.byID[id]
	if !ok {
		return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s not found", id)
	}
	return entity, nil
}

func (s *stubEntities) List(ctx context.Context, filter repositories.EntityFilter) ([]models.Entity, error) {
	var out []models.Entity
	for _, e := range s.byID {
		out = append(out, *e)
	}
	return out, nil
}

func (s *stubEntities) Update(ctx context.Context, entity *models.Entity) error {
	s.byID[entity.ID] = entity
	return nil
}

func (s *stubEntities) SoftDelete(ctx context.Context, id uuid.UUID) error {
	delete(s.byID, id)
	return nil
}

type stubEvents struct {
	types []string
}

func (s *stubEvents) Append(ctx context.Context, event *models.Event) error {
	s.types = append(s.types, event.EventType)
	return nil
}

func (s *stubEvents) List(ctx context.Context, filter models.EventFilter) ([]models.Event, error) {
	return nil, nil
}

func (s *stubEvents) AuditTrail(ctx context.Context, entityID uuid.UUID, limit int) ([]models.Event, error) {
	return nil, nil
}

type allowAll struct{}

func (allowAll) ValidateEntity(ctx context.Context, groupID, entityID uuid.UUID) error {
	return nil
}

func (allowAll) ValidateRelationshipEndpoints(ctx context.Context, groupID, sourceID, targetID uuid.UUID) error {
	return nil
}

func (allowAll) ValidateEventParticipants(ctx context.Context, groupID uuid.UUID, actorID, targetID *uuid.UUID) error {
	return nil
}

func newTestServer(t *testing.T, groupID uuid.UUID) (*echo.Echo, *stubEvents) {
	logger := getTestLogger(t)
	events := &stubEvents{}

	store := graph.NewStore(
		&stubGroups{group: &models.Group{ID: groupID, Name: "acme", Status: models.GroupStatusActive}},
		&stubEntities{byID: map[uuid.UUID]*models.Entity{}},
		nil,
		events,
		allowAll{},
		nil,
		nil,
		nil,
		logger,
	)

	e := echo.New()
	e.HTTPErrorHandler = middleware.Error(logger)
	e.Use(middleware.Context())

	api := e.Group("/api/v1")
	handlers.NewEntityHandler(store).RegisterRoutes(api)

	return e, events
}

func TestCreateEntityEndpoint(t *testing.T) {
	groupID := uuid.New()
	e, events := newTestServer(t, groupID)

	body := `{"entity_type":"contact","name":"Jane","properties":{"email":"jane@example.com"}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/entities", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderGroupID, groupID.String())
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created models.Entity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "contact", created.EntityType)
	assert.Equal(t, "Jane", created.Name)
	assert.Equal(t, groupID, created.GroupID)

	assert.Equal(t, []string{models.EventEntityCreated}, events.types)
}

func TestCreateEntityEndpoint_RequiresGroupHeader(t *testing.T) {
	e, _ := newTestServer(t, uuid.New())

	body := `{"entity_type":"contact","name":"Jane"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/entities", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateEntityEndpoint_ValidatesBody(t *testing.T) {
	groupID := uuid.New()
	e, _ := newTestServer(t, groupID)

	// missing required name
	body := `{"entity_type":"contact"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/entities", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderGroupID, groupID.String())
	rec := httptest.NewRecorder()

	e.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
