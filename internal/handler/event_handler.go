package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/crewsync-api/internal/dto"
	"github.com/noah-isme/crewsync-api/internal/middleware"
	"github.com/noah-isme/crewsync-api/internal/models"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
	"github.com/noah-isme/crewsync-api/pkg/response"
)

type eventService interface {
	CreateEvent(ctx context.Context, organizerID string, req dto.CreateEventRequest) (*models.Event, error)
	GetEvent(ctx context.Context, id string) (*models.Event, error)
	ListEvents(ctx context.Context, query dto.EventListQuery) ([]models.Event, *models.Pagination, error)
	UpdateEventStatus(ctx context.Context, id string, req dto.UpdateEventStatusRequest) (*models.Event, error)
	CreateShift(ctx context.Context, eventID string, req dto.CreateShiftRequest) (*models.Shift, error)
	ListShifts(ctx context.Context, eventID string) ([]models.Shift, error)
}

// EventHandler exposes event and shift management endpoints.
type EventHandler struct {
	service eventService
	access  accessPolicy
}

// NewEventHandler builds a new handler.
func NewEventHandler(service eventService, access accessPolicy) *EventHandler {
	return &EventHandler{service: service, access: access}
}

// Create godoc
// @Summary Create an event
// @Description Organizers own the events they create. Admins may set organizer_id.
// @Tags Events
// @Accept json
// @Produce json
// @Param payload body dto.CreateEventRequest true "Event payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events [post]
func (h *EventHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid event payload"))
		return
	}
	organizerID := claims.UserID
	if claims.Role == models.RoleAdmin && req.OrganizerID != "" {
		organizerID = req.OrganizerID
	}
	event, err := h.service.CreateEvent(c.Request.Context(), organizerID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// List godoc
// @Summary List events
// @Tags Events
// @Produce json
// @Param organizer_id query string false "Organizer filter"
// @Param status query string false "Status filter"
// @Param q query string false "Search in title and location"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /events [get]
func (h *EventHandler) List(c *gin.Context) {
	var query dto.EventListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query parameters"))
		return
	}
	events, pagination, err := h.service.ListEvents(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, pagination, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /events/{id} [get]
func (h *EventHandler) Get(c *gin.Context) {
	event, err := h.service.GetEvent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil, middleware.ExtractMeta(c))
}

// UpdateStatus godoc
// @Summary Change the lifecycle status of an event
// @Description Archiving closes the event to new volunteers; setting an archived event active again unarchives it.
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.UpdateEventStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id}/status [patch]
func (h *EventHandler) UpdateStatus(c *gin.Context) {
	eventID := c.Param("id")
	var req dto.UpdateEventStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	if err := h.access.CanManageEvent(c.Request.Context(), claimsFromContext(c), eventID); err != nil {
		response.Error(c, err)
		return
	}
	event, err := h.service.UpdateEventStatus(c.Request.Context(), eventID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, event, nil, middleware.ExtractMeta(c))
}

// CreateShift godoc
// @Summary Add a shift to an event
// @Tags Events
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.CreateShiftRequest true "Shift payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /events/{id}/shifts [post]
func (h *EventHandler) CreateShift(c *gin.Context) {
	eventID := c.Param("id")
	var req dto.CreateShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid shift payload"))
		return
	}
	if err := h.access.CanManageEvent(c.Request.Context(), claimsFromContext(c), eventID); err != nil {
		response.Error(c, err)
		return
	}
	shift, err := h.service.CreateShift(c.Request.Context(), eventID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, shift)
}

// ListShifts godoc
// @Summary List the shifts of an event
// @Tags Events
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/shifts [get]
func (h *EventHandler) ListShifts(c *gin.Context) {
	shifts, err := h.service.ListShifts(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shifts, nil, middleware.ExtractMeta(c))
}
