package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/crewsync-api/internal/dto"
	"github.com/noah-isme/crewsync-api/internal/middleware"
	"github.com/noah-isme/crewsync-api/internal/models"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
	"github.com/noah-isme/crewsync-api/pkg/response"
)

type assignmentManager interface {
	JoinEvent(ctx context.Context, volunteerID, eventID string) (*models.Assignment, error)
	AssignToShift(ctx context.Context, volunteerID, eventID, shiftID string) (*models.Assignment, error)
	UnassignFromShift(ctx context.Context, volunteerID, eventID, shiftID string) (*models.Assignment, error)
	LeaveEvent(ctx context.Context, volunteerID, eventID string) (int, error)
	Transition(ctx context.Context, volunteerID, eventID string, next models.AssignmentStatus) (*models.Assignment, error)
	ListForEvent(ctx context.Context, eventID string) ([]models.Assignment, error)
	ListForVolunteer(ctx context.Context, volunteerID string) ([]models.Assignment, error)
	Occupancy(ctx context.Context, shiftID string) (*models.ShiftOccupancy, error)
	EventOccupancy(ctx context.Context, eventID string) (*models.EventOccupancy, error)
	FindDuplicates(ctx context.Context, eventID string) ([]models.DuplicateGroup, error)
	FindOverCapacity(ctx context.Context, eventID string) ([]models.OverCapacity, error)
	ReconcileEvent(ctx context.Context, eventID string) (models.ReconcileReport, error)
	ReconcileOrganizer(ctx context.Context, organizerID string) (*models.OrganizerReconcileReport, error)
}

type accessPolicy interface {
	CanManageEvent(ctx context.Context, claims *models.JWTClaims, eventID string) error
	CanActOnVolunteer(ctx context.Context, claims *models.JWTClaims, eventID, volunteerID string) error
	CanSetStatus(ctx context.Context, claims *models.JWTClaims, eventID, volunteerID string, next models.AssignmentStatus) error
}

type reconcileEnqueuer interface {
	Enqueue(eventID, reason string) (bool, error)
}

// AssignmentHandler exposes join, placement, attendance and cleanup endpoints.
type AssignmentHandler struct {
	manager assignmentManager
	access  accessPolicy
	queue   reconcileEnqueuer
	logger  *zap.Logger
}

// NewAssignmentHandler builds the handler. The enqueuer may be nil when no background
// queue runs; async reconcile requests then fall back to running inline.
func NewAssignmentHandler(manager assignmentManager, access accessPolicy, enqueuer reconcileEnqueuer, logger *zap.Logger) *AssignmentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentHandler{manager: manager, access: access, queue: enqueuer, logger: logger}
}

// Join godoc
// @Summary Join an event
// @Description Volunteers join themselves; organizers and admins may name a volunteer.
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param payload body dto.VolunteerRequest false "Volunteer to add"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id}/join [post]
func (h *AssignmentHandler) Join(c *gin.Context) {
	claims := claimsFromContext(c)
	eventID := c.Param("id")
	volunteerID, ok := h.bindVolunteer(c, claims)
	if !ok {
		return
	}
	if err := h.access.CanActOnVolunteer(c.Request.Context(), claims, eventID, volunteerID); err != nil {
		response.Error(c, err)
		return
	}
	assignment, err := h.manager.JoinEvent(c.Request.Context(), volunteerID, eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, assignment, nil, middleware.ExtractMeta(c))
}

// Leave godoc
// @Summary Leave an event
// @Description Removes every record the volunteer holds for the event.
// @Tags Assignments
// @Produce json
// @Param id path string true "Event ID"
// @Param volunteerId path string true "Volunteer ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/volunteers/{volunteerId} [delete]
func (h *AssignmentHandler) Leave(c *gin.Context) {
	claims := claimsFromContext(c)
	eventID, volunteerID := c.Param("id"), c.Param("volunteerId")
	if err := h.access.CanActOnVolunteer(c.Request.Context(), claims, eventID, volunteerID); err != nil {
		response.Error(c, err)
		return
	}
	removed, err := h.manager.LeaveEvent(c.Request.Context(), volunteerID, eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.LeaveResponse{Removed: removed}, nil, middleware.ExtractMeta(c))
}

// Assign godoc
// @Summary Place a volunteer in a shift
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param shiftId path string true "Shift ID"
// @Param payload body dto.VolunteerRequest false "Volunteer to place"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /events/{id}/shifts/{shiftId}/assignments [post]
func (h *AssignmentHandler) Assign(c *gin.Context) {
	claims := claimsFromContext(c)
	eventID, shiftID := c.Param("id"), c.Param("shiftId")
	volunteerID, ok := h.bindVolunteer(c, claims)
	if !ok {
		return
	}
	if err := h.access.CanActOnVolunteer(c.Request.Context(), claims, eventID, volunteerID); err != nil {
		response.Error(c, err)
		return
	}
	assignment, err := h.manager.AssignToShift(c.Request.Context(), volunteerID, eventID, shiftID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, assignment, nil, middleware.ExtractMeta(c))
}

// Unassign godoc
// @Summary Remove a volunteer from a shift
// @Description The volunteer stays joined to the event. Returns 204 when the volunteer was not placed in the shift.
// @Tags Assignments
// @Produce json
// @Param id path string true "Event ID"
// @Param shiftId path string true "Shift ID"
// @Param volunteerId path string true "Volunteer ID"
// @Success 200 {object} response.Envelope
// @Success 204
// @Router /events/{id}/shifts/{shiftId}/assignments/{volunteerId} [delete]
func (h *AssignmentHandler) Unassign(c *gin.Context) {
	claims := claimsFromContext(c)
	eventID, shiftID, volunteerID := c.Param("id"), c.Param("shiftId"), c.Param("volunteerId")
	if err := h.access.CanActOnVolunteer(c.Request.Context(), claims, eventID, volunteerID); err != nil {
		response.Error(c, err)
		return
	}
	assignment, err := h.manager.UnassignFromShift(c.Request.Context(), volunteerID, eventID, shiftID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if assignment == nil {
		response.NoContent(c)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil, middleware.ExtractMeta(c))
}

// Transition godoc
// @Summary Change a volunteer's attendance status
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Event ID"
// @Param volunteerId path string true "Volunteer ID"
// @Param payload body dto.TransitionRequest true "Next status"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /events/{id}/volunteers/{volunteerId}/status [patch]
func (h *AssignmentHandler) Transition(c *gin.Context) {
	claims := claimsFromContext(c)
	eventID, volunteerID := c.Param("id"), c.Param("volunteerId")
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}
	next := models.AssignmentStatus(req.Status)
	if err := h.access.CanSetStatus(c.Request.Context(), claims, eventID, volunteerID, next); err != nil {
		response.Error(c, err)
		return
	}
	assignment, err := h.manager.Transition(c.Request.Context(), volunteerID, eventID, next)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignment, nil, middleware.ExtractMeta(c))
}

// ListForEvent godoc
// @Summary List assignments of an event
// @Tags Assignments
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/assignments [get]
func (h *AssignmentHandler) ListForEvent(c *gin.Context) {
	eventID := c.Param("id")
	if !h.canManage(c, eventID) {
		return
	}
	items, err := h.manager.ListForEvent(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, middleware.ExtractMeta(c))
}

// ListMine godoc
// @Summary List the caller's assignments
// @Tags Assignments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /volunteers/me/assignments [get]
func (h *AssignmentHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.manager.ListForVolunteer(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil, middleware.ExtractMeta(c))
}

// ShiftOccupancy godoc
// @Summary Live occupancy of a shift
// @Tags Assignments
// @Produce json
// @Param shiftId path string true "Shift ID"
// @Success 200 {object} response.Envelope
// @Router /shifts/{shiftId}/occupancy [get]
func (h *AssignmentHandler) ShiftOccupancy(c *gin.Context) {
	occ, err := h.manager.Occupancy(c.Request.Context(), c.Param("shiftId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occ, nil, middleware.ExtractMeta(c))
}

// EventOccupancy godoc
// @Summary Live occupancy of an event and its shifts
// @Tags Assignments
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/occupancy [get]
func (h *AssignmentHandler) EventOccupancy(c *gin.Context) {
	occ, err := h.manager.EventOccupancy(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occ, nil, middleware.ExtractMeta(c))
}

// Duplicates godoc
// @Summary Report duplicate assignment records of an event
// @Tags Reconcile
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/duplicates [get]
func (h *AssignmentHandler) Duplicates(c *gin.Context) {
	eventID := c.Param("id")
	if !h.canManage(c, eventID) {
		return
	}
	groups, err := h.manager.FindDuplicates(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, groups, nil, middleware.ExtractMeta(c))
}

// OverCapacity godoc
// @Summary Report shifts and roles holding more volunteers than allowed
// @Tags Reconcile
// @Produce json
// @Param id path string true "Event ID"
// @Success 200 {object} response.Envelope
// @Router /events/{id}/over-capacity [get]
func (h *AssignmentHandler) OverCapacity(c *gin.Context) {
	eventID := c.Param("id")
	if !h.canManage(c, eventID) {
		return
	}
	entries, err := h.manager.FindOverCapacity(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil, middleware.ExtractMeta(c))
}

// Reconcile godoc
// @Summary Remove duplicates and restore capacity for an event
// @Tags Reconcile
// @Produce json
// @Param id path string true "Event ID"
// @Param async query bool false "Queue the run instead of waiting for it"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Router /events/{id}/reconcile [post]
func (h *AssignmentHandler) Reconcile(c *gin.Context) {
	eventID := c.Param("id")
	if !h.canManage(c, eventID) {
		return
	}

	if async, _ := strconv.ParseBool(c.Query("async")); async && h.queue != nil {
		accepted, err := h.queue.Enqueue(eventID, "api")
		if err != nil {
			response.Error(c, err)
			return
		}
		middleware.SetMeta(c, "coalesced", !accepted)
		response.JSON(c, http.StatusAccepted, dto.ReconcileAccepted{EventID: eventID, Queued: true}, nil, middleware.ExtractMeta(c))
		return
	}

	report, err := h.manager.ReconcileEvent(c.Request.Context(), eventID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}

// ReconcileOrganizer godoc
// @Summary Reconcile every event of the calling organizer
// @Tags Reconcile
// @Produce json
// @Param organizer_id query string false "Organizer to reconcile (admins only)"
// @Success 200 {object} response.Envelope
// @Router /organizers/me/reconcile [post]
func (h *AssignmentHandler) ReconcileOrganizer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	organizerID := claims.UserID
	if override := c.Query("organizer_id"); override != "" {
		if claims.Role != models.RoleAdmin {
			response.Error(c, appErrors.ErrForbidden)
			return
		}
		organizerID = override
	}
	report, err := h.manager.ReconcileOrganizer(c.Request.Context(), organizerID)
	if err != nil {
		h.logger.Warn("organizer reconcile stopped early", zap.String("organizer_id", organizerID), zap.Error(err))
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil, middleware.ExtractMeta(c))
}

func (h *AssignmentHandler) canManage(c *gin.Context, eventID string) bool {
	if err := h.access.CanManageEvent(c.Request.Context(), claimsFromContext(c), eventID); err != nil {
		response.Error(c, err)
		return false
	}
	return true
}

// bindVolunteer reads the optional volunteer_id body field. Volunteers default to themselves.
func (h *AssignmentHandler) bindVolunteer(c *gin.Context, claims *models.JWTClaims) (string, bool) {
	var req dto.VolunteerRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid volunteer payload"))
			return "", false
		}
	}
	volunteerID := req.VolunteerID
	if volunteerID == "" && claims != nil && claims.Role == models.RoleVolunteer {
		volunteerID = claims.UserID
	}
	if volunteerID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "volunteer_id is required"))
		return "", false
	}
	return volunteerID, true
}
