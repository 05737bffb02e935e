package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/crewsync-api/internal/models"
	"github.com/noah-isme/crewsync-api/pkg/cache"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
)

type statsRepository interface {
	CountEventsByStatus(ctx context.Context) ([]models.StatusCount, error)
	CountUsersByRole(ctx context.Context, role models.UserRole) (int, error)
}

// StatusCounter counts assignments per status. An empty eventID counts every event.
type StatusCounter interface {
	CountByStatus(ctx context.Context, eventID string) ([]models.StatusCount, error)
}

// StatsServiceParams groups constructor dependencies.
type StatsServiceParams struct {
	Directory   Directory
	Assignments RelationStore
	Counter     StatusCounter
	Repo        statsRepository
	Metrics     *MetricsService
	Cache       *CacheService
	CacheTTL    time.Duration
	Logger      *zap.Logger
}

// StatsService computes event staffing figures and the admin summary.
type StatsService struct {
	directory   Directory
	assignments RelationStore
	counter     StatusCounter
	repo        statsRepository
	metrics     *MetricsService
	cache       *CacheService
	ttl         time.Duration
	logger      *zap.Logger
	now         func() time.Time
}

// NewStatsService constructs the stats service.
func NewStatsService(params StatsServiceParams) *StatsService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &StatsService{
		directory:   params.Directory,
		assignments: params.Assignments,
		counter:     params.Counter,
		repo:        params.Repo,
		metrics:     params.Metrics,
		cache:       params.Cache,
		ttl:         ttl,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// EventStats returns live staffing figures for an event. The result is never cached.
func (s *StatsService) EventStats(ctx context.Context, eventID string) (*models.EventStats, error) {
	if err := requireIDs(eventID); err != nil {
		return nil, err
	}
	event, err := s.directory.GetEvent(ctx, eventID)
	if err != nil {
		return nil, directoryError(err, appErrors.ErrEventNotFound, "failed to load event")
	}
	shifts, err := s.directory.ListShiftsForEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list shifts")
	}
	records, err := s.assignments.Query(ctx, models.AssignmentFilter{EventID: eventID})
	if err != nil {
		return nil, storeError(err)
	}

	now := s.now()
	stats := &models.EventStats{
		EventID:     eventID,
		TotalShifts: len(shifts),
		Capacity:    event.CapacityPolicy.Aggregate(),
		GeneratedAt: now,
	}
	for _, sh := range shifts {
		if sh.Upcoming(now) {
			stats.UpcomingShifts++
		}
		if sh.Finished(now) {
			stats.CompletedShifts++
		}
	}

	volunteers := make(map[string]struct{})
	active := 0
	for _, r := range records {
		volunteers[r.VolunteerID] = struct{}{}
		switch r.Status {
		case models.AssignmentStatusConfirmed:
			stats.ConfirmedVolunteers++
		case models.AssignmentStatusCheckedIn:
			stats.CheckedIn++
		case models.AssignmentStatusCheckedOut:
			stats.CheckedOut++
		case models.AssignmentStatusNoShow:
			stats.NoShows++
		}
		if r.Status.Terminal() {
			continue
		}
		active++
		if !r.Placed() {
			stats.Unplaced++
		}
	}
	stats.TotalVolunteers = len(volunteers)
	if stats.Capacity > 0 {
		stats.FillRate = math.Round(float64(active)/float64(stats.Capacity)*10000) / 100
	}
	return stats, nil
}

// AdminSummary returns platform counters, cached for the configured TTL.
func (s *StatsService) AdminSummary(ctx context.Context) (*models.AdminSummary, error) {
	key := cache.Key("stats", "admin")
	var cached models.AdminSummary
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	events, err := s.repo.CountEventsByStatus(ctx)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to count events")
	}
	volunteers, err := s.repo.CountUsersByRole(ctx, models.RoleVolunteer)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to count volunteers")
	}
	organizers, err := s.repo.CountUsersByRole(ctx, models.RoleOrganizer)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to count organizers")
	}
	assignments, err := s.counter.CountByStatus(ctx, "")
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to count assignments")
	}

	summary := &models.AdminSummary{
		EventsByStatus:      statusMap(events),
		AssignmentsByStatus: statusMap(assignments),
		Volunteers:          volunteers,
		Organizers:          organizers,
		System:              s.metrics.Snapshot(),
		GeneratedAt:         s.now(),
	}
	for _, row := range assignments {
		summary.Assignments += row.Count
	}

	if err := s.cache.Set(ctx, key, summary, s.ttl); err != nil {
		s.logger.Debug("admin summary not cached", zap.Error(err))
	}
	return summary, nil
}

func statusMap(rows []models.StatusCount) map[string]int {
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out
}

func directoryError(err error, notFound *appErrors.Error, message string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(notFound, "")
	}
	return appErrors.Unavailable(err, message)
}
