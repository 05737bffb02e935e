package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/crewsync-api/internal/models"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
)

type eventLookup interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
}

// AccessService decides which volunteers and events a session may act on.
type AccessService struct {
	events eventLookup
	logger *zap.Logger
}

// NewAccessService constructs the access policy.
func NewAccessService(events eventLookup, logger *zap.Logger) *AccessService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{events: events, logger: logger}
}

// CanManageEvent allows admins and the organizer owning the event.
func (s *AccessService) CanManageEvent(ctx context.Context, claims *models.JWTClaims, eventID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleOrganizer:
		return s.ownsEvent(ctx, claims, eventID)
	}
	return s.deny(claims, eventID, "")
}

// CanActOnVolunteer allows admins, the owning organizer, and volunteers acting on themselves.
func (s *AccessService) CanActOnVolunteer(ctx context.Context, claims *models.JWTClaims, eventID, volunteerID string) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	switch claims.Role {
	case models.RoleAdmin:
		return nil
	case models.RoleOrganizer:
		return s.ownsEvent(ctx, claims, eventID)
	case models.RoleVolunteer:
		if volunteerID != "" && volunteerID == claims.UserID {
			return nil
		}
	}
	return s.deny(claims, eventID, volunteerID)
}

// CanSetStatus guards lifecycle changes. Volunteers may only confirm their own record or
// report themselves as a no-show; attendance is tracked by admins and the owning organizer.
func (s *AccessService) CanSetStatus(ctx context.Context, claims *models.JWTClaims, eventID, volunteerID string, next models.AssignmentStatus) error {
	if claims != nil && claims.Role == models.RoleVolunteer && !volunteerMaySet(next) {
		return s.deny(claims, eventID, volunteerID)
	}
	return s.CanActOnVolunteer(ctx, claims, eventID, volunteerID)
}

func volunteerMaySet(next models.AssignmentStatus) bool {
	return next == models.AssignmentStatusConfirmed || next == models.AssignmentStatusNoShow
}

func (s *AccessService) ownsEvent(ctx context.Context, claims *models.JWTClaims, eventID string) error {
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrEventNotFound, "")
		}
		return appErrors.Unavailable(err, "failed to load event")
	}
	if event.OrganizerID != claims.UserID {
		return s.deny(claims, eventID, "")
	}
	return nil
}

func (s *AccessService) deny(claims *models.JWTClaims, eventID, volunteerID string) error {
	s.logger.Debug("access denied",
		zap.String("user_id", claims.UserID),
		zap.String("role", string(claims.Role)),
		zap.String("event_id", eventID),
		zap.String("volunteer_id", volunteerID))
	return appErrors.Clone(appErrors.ErrForbidden, "not allowed to act on this event")
}
