package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crewsync-api/internal/dto"
	"github.com/noah-isme/crewsync-api/internal/middleware"
	"github.com/noah-isme/crewsync-api/internal/models"
	"github.com/noah-isme/crewsync-api/internal/service"
	"github.com/noah-isme/crewsync-api/pkg/middleware/requestid"
)

type ownerLookup struct{}

func (ownerLookup) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	if eventID == "e1" {
		return &models.Event{ID: "e1", OrganizerID: "org-1", Status: models.EventStatusActive}, nil
	}
	return nil, sql.ErrNoRows
}

type managerMock struct {
	calls     []string
	err       error
	unassign  *models.Assignment
	lastVol   string
	lastEvent string
	lastShift string
	lastState models.AssignmentStatus
}

func (m *managerMock) record(name, volunteerID, eventID string) {
	m.calls = append(m.calls, name)
	m.lastVol, m.lastEvent = volunteerID, eventID
}

func (m *managerMock) JoinEvent(ctx context.Context, volunteerID, eventID string) (*models.Assignment, error) {
	m.record("join", volunteerID, eventID)
	if m.err != nil {
		return nil, m.err
	}
	return &models.Assignment{ID: "a1", VolunteerID: volunteerID, EventID: eventID, Status: models.AssignmentStatusAssigned}, nil
}

func (m *managerMock) AssignToShift(ctx context.Context, volunteerID, eventID, shiftID string) (*models.Assignment, error) {
	m.record("assign", volunteerID, eventID)
	m.lastShift = shiftID
	if m.err != nil {
		return nil, m.err
	}
	return &models.Assignment{ID: "a1", VolunteerID: volunteerID, EventID: eventID, ShiftID: shiftID}, nil
}

func (m *managerMock) UnassignFromShift(ctx context.Context, volunteerID, eventID, shiftID string) (*models.Assignment, error) {
	m.record("unassign", volunteerID, eventID)
	return m.unassign, m.err
}

func (m *managerMock) LeaveEvent(ctx context.Context, volunteerID, eventID string) (int, error) {
	m.record("leave", volunteerID, eventID)
	return 2, m.err
}

func (m *managerMock) Transition(ctx context.Context, volunteerID, eventID string, next models.AssignmentStatus) (*models.Assignment, error) {
	m.record("transition", volunteerID, eventID)
	m.lastState = next
	if m.err != nil {
		return nil, m.err
	}
	return &models.Assignment{VolunteerID: volunteerID, EventID: eventID, Status: next}, nil
}

func (m *managerMock) ListForEvent(ctx context.Context, eventID string) ([]models.Assignment, error) {
	m.record("list-event", "", eventID)
	return []models.Assignment{{ID: "a1"}}, m.err
}

func (m *managerMock) ListForVolunteer(ctx context.Context, volunteerID string) ([]models.Assignment, error) {
	m.record("list-volunteer", volunteerID, "")
	return []models.Assignment{{ID: "a1", VolunteerID: volunteerID}}, m.err
}

func (m *managerMock) Occupancy(ctx context.Context, shiftID string) (*models.ShiftOccupancy, error) {
	m.calls = append(m.calls, "occupancy")
	return &models.ShiftOccupancy{ShiftID: shiftID, Capacity: 2, Occupied: 1, Available: 1}, m.err
}

func (m *managerMock) EventOccupancy(ctx context.Context, eventID string) (*models.EventOccupancy, error) {
	m.record("event-occupancy", "", eventID)
	return &models.EventOccupancy{EventID: eventID}, m.err
}

func (m *managerMock) FindDuplicates(ctx context.Context, eventID string) ([]models.DuplicateGroup, error) {
	m.record("duplicates", "", eventID)
	return []models.DuplicateGroup{{VolunteerID: "v1"}}, m.err
}

func (m *managerMock) FindOverCapacity(ctx context.Context, eventID string) ([]models.OverCapacity, error) {
	m.record("over-capacity", "", eventID)
	return nil, m.err
}

func (m *managerMock) ReconcileEvent(ctx context.Context, eventID string) (models.ReconcileReport, error) {
	m.record("reconcile", "", eventID)
	return models.ReconcileReport{EventID: eventID, Removed: 1}, m.err
}

func (m *managerMock) ReconcileOrganizer(ctx context.Context, organizerID string) (*models.OrganizerReconcileReport, error) {
	m.record("reconcile-organizer", organizerID, "")
	return &models.OrganizerReconcileReport{OrganizerID: organizerID}, m.err
}

type enqueuerMock struct {
	events   []string
	accepted bool
}

func (e *enqueuerMock) Enqueue(eventID, reason string) (bool, error) {
	e.events = append(e.events, eventID)
	return e.accepted, nil
}

type eventServiceMock struct {
	organizer string
	err       error
}

func (m *eventServiceMock) CreateEvent(ctx context.Context, organizerID string, req dto.CreateEventRequest) (*models.Event, error) {
	m.organizer = organizerID
	if m.err != nil {
		return nil, m.err
	}
	return &models.Event{ID: "e1", Title: req.Title, OrganizerID: organizerID}, nil
}

func (m *eventServiceMock) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Event{ID: id}, nil
}

func (m *eventServiceMock) ListEvents(ctx context.Context, query dto.EventListQuery) ([]models.Event, *models.Pagination, error) {
	return []models.Event{{ID: "e1"}}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, m.err
}

func (m *eventServiceMock) UpdateEventStatus(ctx context.Context, id string, req dto.UpdateEventStatusRequest) (*models.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Event{ID: id, Status: models.EventStatus(req.Status)}, nil
}

func (m *eventServiceMock) CreateShift(ctx context.Context, eventID string, req dto.CreateShiftRequest) (*models.Shift, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.Shift{ID: "s1", EventID: eventID, Capacity: req.Capacity}, nil
}

func (m *eventServiceMock) ListShifts(ctx context.Context, eventID string) ([]models.Shift, error) {
	return []models.Shift{{ID: "s1", EventID: eventID}}, m.err
}

type statsServiceMock struct{}

func (statsServiceMock) EventStats(ctx context.Context, eventID string) (*models.EventStats, error) {
	return &models.EventStats{EventID: eventID, TotalVolunteers: 3}, nil
}

func (statsServiceMock) AdminSummary(ctx context.Context) (*models.AdminSummary, error) {
	return &models.AdminSummary{Volunteers: 12}, nil
}

type auditRecorder struct{ actions []string }

func (a *auditRecorder) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.actions = append(a.actions, log.Action)
	return nil
}

type testRig struct {
	router  *gin.Engine
	manager *managerMock
	events  *eventServiceMock
	queue   *enqueuerMock
	audit   *auditRecorder
}

// newTestRig mounts the real routes behind a header-driven session injector:
// X-Test-Role sets the role and X-Test-User the user ID.
func newTestRig() *testRig {
	gin.SetMode(gin.TestMode)
	rig := &testRig{
		router:  gin.New(),
		manager: &managerMock{},
		events:  &eventServiceMock{},
		queue:   &enqueuerMock{accepted: true},
		audit:   &auditRecorder{},
	}
	access := service.NewAccessService(ownerLookup{}, nil)
	auth := func(c *gin.Context) {
		if role := c.GetHeader("X-Test-Role"); role != "" {
			c.Set(middleware.ContextUserKey, &models.JWTClaims{
				UserID: c.GetHeader("X-Test-User"),
				Role:   models.UserRole(role),
			})
		}
		c.Next()
	}
	rig.router.Use(requestid.Middleware(), middleware.WithResponseMeta())
	RegisterRoutes(rig.router.Group(""), RouterDeps{
		Auth:        auth,
		AuditLog:    rig.audit,
		Events:      NewEventHandler(rig.events, access),
		Assignments: NewAssignmentHandler(rig.manager, access, rig.queue, nil),
		Stats:       NewStatsHandler(statsServiceMock{}, access),
	})
	return rig
}

func (r *testRig) do(method, path, role, user, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, _ := http.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("X-Test-Role", role)
		req.Header.Set("X-Test-User", user)
	}
	w := httptest.NewRecorder()
	r.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Data  json.RawMessage        `json:"data"`
	Error *struct {
		Code string `json:"code"`
	} `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	env := decode(t, w)
	require.NotNil(t, env.Error, w.Body.String())
	return env.Error.Code
}
