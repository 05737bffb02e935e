package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/crewsync-api/internal/dto"
	"github.com/noah-isme/crewsync-api/internal/models"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
)

type eventRepository interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter models.EventFilter) ([]models.Event, int, error)
	Create(ctx context.Context, event *models.Event) error
	UpdateStatus(ctx context.Context, id string, status models.EventStatus) error
}

type shiftRepository interface {
	ListByEvent(ctx context.Context, eventID string) ([]models.Shift, error)
	Create(ctx context.Context, shift *models.Shift) error
}

type directoryInvalidator interface {
	InvalidateEvent(ctx context.Context, eventID string)
}

// EventService manages events and their shifts on behalf of organizers.
type EventService struct {
	events    eventRepository
	shifts    shiftRepository
	directory directoryInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs the event service.
func NewEventService(events eventRepository, shifts shiftRepository, directory directoryInvalidator, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{events: events, shifts: shifts, directory: directory, validator: validate, logger: logger}
}

// CreateEvent stores a new event owned by organizerID.
func (s *EventService) CreateEvent(ctx context.Context, organizerID string, req dto.CreateEventRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event payload")
	}
	if strings.TrimSpace(organizerID) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "organizer is required")
	}

	event := &models.Event{
		Title:          strings.TrimSpace(req.Title),
		Description:    req.Description,
		Location:       req.Location,
		StartsAt:       req.StartsAt.UTC(),
		OrganizerID:    organizerID,
		CapacityPolicy: models.CapacityPolicy(req.CapacityPolicy),
		Status:         models.EventStatus(req.Status),
	}
	if err := s.events.Create(ctx, event); err != nil {
		return nil, appErrors.Unavailable(err, "failed to create event")
	}
	s.logger.Info("event created", zap.String("event_id", event.ID), zap.String("organizer_id", organizerID))
	return event, nil
}

// GetEvent returns an event by ID.
func (s *EventService) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	event, err := s.events.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEventNotFound, "")
		}
		return nil, appErrors.Unavailable(err, "failed to load event")
	}
	return event, nil
}

// ListEvents returns a page of events.
func (s *EventService) ListEvents(ctx context.Context, query dto.EventListQuery) ([]models.Event, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid event filter")
	}
	filter := models.EventFilter{
		OrganizerID: query.OrganizerID,
		Status:      models.EventStatus(query.Status),
		Search:      strings.TrimSpace(query.Search),
		Page:        query.Page,
		PageSize:    query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	events, total, err := s.events.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Unavailable(err, "failed to list events")
	}
	return events, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UpdateEventStatus moves an event to a new lifecycle status. Archiving closes the event
// to new joins and placements; moving an archived event back to active reopens it.
func (s *EventService) UpdateEventStatus(ctx context.Context, id string, req dto.UpdateEventStatusRequest) (*models.Event, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	event, err := s.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	next := models.EventStatus(req.Status)
	if event.Status == next {
		return event, nil
	}
	if !event.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move event from "+string(event.Status)+" to "+string(next))
	}
	if err := s.events.UpdateStatus(ctx, id, next); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEventNotFound, "")
		}
		return nil, appErrors.Unavailable(err, "failed to update event status")
	}
	s.directory.InvalidateEvent(ctx, id)

	s.logger.Info("event status changed",
		zap.String("event_id", id),
		zap.String("from", string(event.Status)),
		zap.String("to", string(next)))
	event.Status = next
	return event, nil
}

// CreateShift adds a shift to an event.
func (s *EventService) CreateShift(ctx context.Context, eventID string, req dto.CreateShiftRequest) (*models.Shift, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid shift payload")
	}
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.Status == models.EventStatusArchived || event.Status == models.EventStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrEventClosed, "")
	}

	shift := &models.Shift{
		EventID:  eventID,
		Title:    strings.TrimSpace(req.Title),
		Role:     strings.TrimSpace(req.Role),
		Location: req.Location,
		StartsAt: req.StartsAt.UTC(),
		EndsAt:   req.EndsAt.UTC(),
		Capacity: req.Capacity,
	}
	if err := s.shifts.Create(ctx, shift); err != nil {
		return nil, appErrors.Unavailable(err, "failed to create shift")
	}
	s.directory.InvalidateEvent(ctx, eventID)
	s.logger.Info("shift created", zap.String("event_id", eventID), zap.String("shift_id", shift.ID))
	return shift, nil
}

// ListShifts returns the shifts of an event.
func (s *EventService) ListShifts(ctx context.Context, eventID string) ([]models.Shift, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	shifts, err := s.shifts.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list shifts")
	}
	return shifts, nil
}
