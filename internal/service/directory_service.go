package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/crewsync-api/internal/models"
	"github.com/noah-isme/crewsync-api/pkg/cache"
)

type eventReader interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
}

type shiftReader interface {
	FindByID(ctx context.Context, id string) (*models.Shift, error)
	ListByEvent(ctx context.Context, eventID string) ([]models.Shift, error)
}

type volunteerReader interface {
	FindVolunteer(ctx context.Context, id string) (*models.VolunteerProfile, error)
}

// DirectoryService resolves event, shift and volunteer records. Event and shift lookups
// are cached; a missing record is reported as sql.ErrNoRows from the underlying repository.
// Occupancy is never derived from this cache.
type DirectoryService struct {
	events     eventReader
	shifts     shiftReader
	volunteers volunteerReader
	cache      *CacheService
	ttl        time.Duration
	logger     *zap.Logger
}

// NewDirectoryService constructs the directory.
func NewDirectoryService(events eventReader, shifts shiftReader, volunteers volunteerReader, cacheSvc *CacheService, ttl time.Duration, logger *zap.Logger) *DirectoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectoryService{events: events, shifts: shifts, volunteers: volunteers, cache: cacheSvc, ttl: ttl, logger: logger}
}

func eventCacheKey(eventID string) string  { return cache.Key("directory", "event", eventID) }
func shiftCacheKey(shiftID string) string  { return cache.Key("directory", "shift", shiftID) }
func shiftsCacheKey(eventID string) string { return cache.Key("directory", "shifts", eventID) }

// GetEvent returns an event by ID.
func (d *DirectoryService) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	key := eventCacheKey(eventID)
	var cached models.Event
	if hit, _ := d.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	event, err := d.events.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	_ = d.cache.Set(ctx, key, event, d.ttl)
	return event, nil
}

// GetShift returns a shift by ID.
func (d *DirectoryService) GetShift(ctx context.Context, shiftID string) (*models.Shift, error) {
	key := shiftCacheKey(shiftID)
	var cached models.Shift
	if hit, _ := d.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}
	shift, err := d.shifts.FindByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	_ = d.cache.Set(ctx, key, shift, d.ttl)
	return shift, nil
}

// ListShiftsForEvent returns the shifts of an event.
func (d *DirectoryService) ListShiftsForEvent(ctx context.Context, eventID string) ([]models.Shift, error) {
	key := shiftsCacheKey(eventID)
	var cached []models.Shift
	if hit, _ := d.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}
	shifts, err := d.shifts.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	_ = d.cache.Set(ctx, key, shifts, d.ttl)
	return shifts, nil
}

// GetVolunteerProfile returns the volunteer profile. Profiles are not cached.
func (d *DirectoryService) GetVolunteerProfile(ctx context.Context, volunteerID string) (*models.VolunteerProfile, error) {
	return d.volunteers.FindVolunteer(ctx, volunteerID)
}

// InvalidateEvent drops cached entries for an event and its shift list.
func (d *DirectoryService) InvalidateEvent(ctx context.Context, eventID string) {
	d.cache.InvalidateKeys(ctx, eventCacheKey(eventID), shiftsCacheKey(eventID))
	d.logger.Debug("directory cache invalidated", zap.String("event_id", eventID))
}
