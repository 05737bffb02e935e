package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/crewsync-api/internal/models"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
)

// Directory resolves the event, shift and volunteer records assignments refer to.
// Missing records are reported as sql.ErrNoRows.
type Directory interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
	GetShift(ctx context.Context, shiftID string) (*models.Shift, error)
	ListShiftsForEvent(ctx context.Context, eventID string) ([]models.Shift, error)
	GetVolunteerProfile(ctx context.Context, volunteerID string) (*models.VolunteerProfile, error)
}

// RelationStore persists assignment records. Update and Delete report a missing record
// as sql.ErrNoRows.
type RelationStore interface {
	Insert(ctx context.Context, assignment *models.Assignment) (string, error)
	Update(ctx context.Context, id string, patch models.AssignmentPatch) error
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error)
}

type organizerEvents interface {
	ListIDsByOrganizer(ctx context.Context, organizerID string) ([]string, error)
}

// ReconcileScheduler accepts background cleanup requests for an event.
type ReconcileScheduler interface {
	ScheduleReconcile(eventID, reason string)
}

// AssignmentConfig tunes the assignment manager.
type AssignmentConfig struct {
	// ImplicitJoin lets AssignToShift create the event join when it is missing.
	ImplicitJoin bool
}

// AssignmentService owns the event, shift and volunteer relation. It re-reads occupancy
// from the relation store on every call and holds no state between calls.
type AssignmentService struct {
	directory Directory
	store     RelationStore
	events    organizerEvents
	scheduler ReconcileScheduler
	metrics   *MetricsService
	config    AssignmentConfig
	logger    *zap.Logger
	now       func() time.Time
}

// NewAssignmentService constructs the assignment manager.
func NewAssignmentService(directory Directory, store RelationStore, events organizerEvents, metrics *MetricsService, config AssignmentConfig, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		directory: directory,
		store:     store,
		events:    events,
		metrics:   metrics,
		config:    config,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetScheduler wires the background reconcile queue.
func (s *AssignmentService) SetScheduler(scheduler ReconcileScheduler) {
	s.scheduler = scheduler
}

// JoinEvent records that a volunteer joined an event without a shift placement.
func (s *AssignmentService) JoinEvent(ctx context.Context, volunteerID, eventID string) (result *models.Assignment, err error) {
	defer func() { s.metrics.ObserveAssignment("join", err) }()

	if err := requireIDs(volunteerID, eventID); err != nil {
		return nil, err
	}
	event, err := s.loadOpenEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureVolunteer(ctx, volunteerID); err != nil {
		return nil, err
	}

	existing, err := s.query(ctx, models.AssignmentFilter{EventID: eventID, VolunteerID: volunteerID})
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return nil, appErrors.Clone(appErrors.ErrAlreadyJoined, "")
	}

	active, err := s.query(ctx, models.AssignmentFilter{EventID: eventID, Statuses: models.NonTerminalStatuses})
	if err != nil {
		return nil, err
	}
	if limit := event.CapacityPolicy.Aggregate(); limit > 0 && len(active) >= limit {
		return nil, appErrors.Clone(appErrors.ErrEventFull, "")
	}

	record := &models.Assignment{
		VolunteerID: volunteerID,
		EventID:     eventID,
		Status:      models.AssignmentStatusAssigned,
	}
	if err := s.insert(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("volunteer joined event", zap.String("volunteer_id", volunteerID), zap.String("event_id", eventID))
	s.checkEventCapacity(ctx, event)
	return record, nil
}

// AssignToShift places a volunteer into a shift of the event. It never moves a volunteer
// who is already placed in another shift of the same event.
func (s *AssignmentService) AssignToShift(ctx context.Context, volunteerID, eventID, shiftID string) (result *models.Assignment, err error) {
	defer func() { s.metrics.ObserveAssignment("assign", err) }()

	if err := requireIDs(volunteerID, eventID, shiftID); err != nil {
		return nil, err
	}
	shift, err := s.loadShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.EventID != eventID {
		return nil, appErrors.Clone(appErrors.ErrEventMismatch, "")
	}
	event, err := s.loadOpenEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	records, err := s.query(ctx, models.AssignmentFilter{EventID: eventID, VolunteerID: volunteerID})
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ShiftID == shiftID {
			return nil, appErrors.Clone(appErrors.ErrAlreadyAssigned, "")
		}
	}
	for _, r := range records {
		if r.Placed() {
			return nil, appErrors.Clone(appErrors.ErrAssignedElsewhere, "")
		}
	}

	var current *models.Assignment
	if len(records) > 0 {
		keep, _, _ := canonicalRecord(records)
		current = &keep
		if current.Status.Terminal() {
			return nil, appErrors.Clone(appErrors.ErrAssignmentClosed, "")
		}
	} else {
		if !s.config.ImplicitJoin {
			return nil, appErrors.Clone(appErrors.ErrAssignmentNotFound, "")
		}
		if err := s.ensureVolunteer(ctx, volunteerID); err != nil {
			return nil, err
		}
	}

	if err := s.checkPlacementCapacity(ctx, event, shift, current == nil); err != nil {
		return nil, err
	}

	placedAt := s.now()
	if current == nil {
		current = &models.Assignment{
			VolunteerID: volunteerID,
			EventID:     eventID,
			ShiftID:     shiftID,
			Status:      models.AssignmentStatusAssigned,
			PlacedAt:    &placedAt,
		}
		if err := s.insert(ctx, current); err != nil {
			return nil, err
		}
	} else {
		patch := models.AssignmentPatch{ShiftID: &shiftID, PlacedAt: &placedAt}
		if err := s.update(ctx, current.ID, patch); err != nil {
			return nil, err
		}
		patch.Apply(current)
		current.UpdatedAt = placedAt
	}

	s.logger.Info("volunteer placed in shift",
		zap.String("volunteer_id", volunteerID),
		zap.String("event_id", eventID),
		zap.String("shift_id", shiftID))
	s.checkShiftCapacity(ctx, event, shift)
	return current, nil
}

// UnassignFromShift clears the placement of a volunteer in the shift, keeping the join
// and its status. It returns nil when the volunteer was not placed there.
func (s *AssignmentService) UnassignFromShift(ctx context.Context, volunteerID, eventID, shiftID string) (result *models.Assignment, err error) {
	defer func() { s.metrics.ObserveAssignment("unassign", err) }()

	if err := requireIDs(volunteerID, eventID, shiftID); err != nil {
		return nil, err
	}
	records, err := s.query(ctx, models.AssignmentFilter{EventID: eventID, VolunteerID: volunteerID})
	if err != nil {
		return nil, err
	}

	empty := ""
	for i := range records {
		if records[i].ShiftID != shiftID {
			continue
		}
		patch := models.AssignmentPatch{ShiftID: &empty}
		if err := s.update(ctx, records[i].ID, patch); err != nil {
			if errors.Is(err, appErrors.ErrAssignmentNotFound) {
				continue
			}
			return nil, err
		}
		patch.Apply(&records[i])
		records[i].UpdatedAt = s.now()
		result = &records[i]
	}
	if result != nil {
		s.logger.Info("volunteer removed from shift",
			zap.String("volunteer_id", volunteerID),
			zap.String("event_id", eventID),
			zap.String("shift_id", shiftID))
	}
	return result, nil
}

// LeaveEvent deletes every record the volunteer holds for the event and returns how many
// were removed. Leaving an event that was never joined removes nothing.
func (s *AssignmentService) LeaveEvent(ctx context.Context, volunteerID, eventID string) (removed int, err error) {
	defer func() { s.metrics.ObserveAssignment("leave", err) }()

	if err := requireIDs(volunteerID, eventID); err != nil {
		return 0, err
	}
	records, err := s.query(ctx, models.AssignmentFilter{EventID: eventID, VolunteerID: volunteerID})
	if err != nil {
		return 0, err
	}
	for _, r := range records {
		ok, err := s.delete(ctx, r.ID)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("volunteer left event",
			zap.String("volunteer_id", volunteerID),
			zap.String("event_id", eventID),
			zap.Int("removed", removed))
	}
	return removed, nil
}

// FindDuplicates groups the event's records by volunteer and reports every volunteer
// holding more than one, with the record that cleanup would keep.
func (s *AssignmentService) FindDuplicates(ctx context.Context, eventID string) ([]models.DuplicateGroup, error) {
	if err := requireIDs(eventID); err != nil {
		return nil, err
	}
	records, err := s.query(ctx, models.AssignmentFilter{EventID: eventID})
	if err != nil {
		return nil, err
	}
	return duplicateGroups(records), nil
}

// ReconcileDuplicates deletes all but the canonical record of every duplicate group.
// A second run right after the first removes nothing.
func (s *AssignmentService) ReconcileDuplicates(ctx context.Context, eventID string) (models.ReconcileReport, error) {
	report := models.ReconcileReport{EventID: eventID}
	groups, err := s.FindDuplicates(ctx, eventID)
	if err != nil {
		return report, err
	}
	report.DuplicateGroups = len(groups)
	for _, g := range groups {
		if g.Ambiguous {
			report.Ambiguous = append(report.Ambiguous, g.VolunteerID)
			s.logger.Warn("ambiguous duplicate group, kept most recent placement",
				zap.String("event_id", eventID),
				zap.String("volunteer_id", g.VolunteerID),
				zap.String("kept_id", g.Keep.ID))
		}
		for _, r := range g.Remove {
			ok, err := s.delete(ctx, r.ID)
			if err != nil {
				return report, err
			}
			if ok {
				report.Removed++
			}
		}
	}
	return report, nil
}

// Occupancy returns the live count of non-terminal placements in a shift.
func (s *AssignmentService) Occupancy(ctx context.Context, shiftID string) (*models.ShiftOccupancy, error) {
	if err := requireIDs(shiftID); err != nil {
		return nil, err
	}
	shift, err := s.loadShift(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	records, err := s.query(ctx, models.AssignmentFilter{ShiftID: shiftID, Statuses: models.NonTerminalStatuses})
	if err != nil {
		return nil, err
	}
	occ := shiftOccupancy(*shift, len(records))
	return &occ, nil
}

// EventOccupancy returns live counts for an event and each of its shifts.
func (s *AssignmentService) EventOccupancy(ctx context.Context, eventID string) (*models.EventOccupancy, error) {
	if err := requireIDs(eventID); err != nil {
		return nil, err
	}
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	shifts, err := s.listShifts(ctx, eventID)
	if err != nil {
		return nil, err
	}
	records, err := s.query(ctx, models.AssignmentFilter{EventID: eventID, Statuses: models.NonTerminalStatuses})
	if err != nil {
		return nil, err
	}

	perShift := make(map[string]int)
	unplaced := 0
	for _, r := range records {
		if r.Placed() {
			perShift[r.ShiftID]++
		} else {
			unplaced++
		}
	}

	result := &models.EventOccupancy{
		EventID:  eventID,
		Capacity: event.CapacityPolicy.Aggregate(),
		Occupied: len(records),
		Unplaced: unplaced,
		Shifts:   make([]models.ShiftOccupancy, 0, len(shifts)),
	}
	if len(event.CapacityPolicy) > 0 {
		result.Roles = make(map[string]int)
	}
	for _, sh := range shifts {
		result.Shifts = append(result.Shifts, shiftOccupancy(sh, perShift[sh.ID]))
		if _, ok := event.CapacityPolicy.Limit(sh.Role); ok {
			result.Roles[sh.Role] += perShift[sh.ID]
		}
	}
	return result, nil
}

// FindOverCapacity reports shifts and roles holding more placements than allowed, with
// the records cleanup would release. Records with the most lifecycle progress and the
// earliest placement are kept. An entry with neither shift nor role means the event
// holds more joins than its aggregate capacity.
func (s *AssignmentService) FindOverCapacity(ctx context.Context, eventID string) ([]models.OverCapacity, error) {
	if err := requireIDs(eventID); err != nil {
		return nil, err
	}
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	shifts, err := s.listShifts(ctx, eventID)
	if err != nil {
		return nil, err
	}
	records, err := s.query(ctx, models.AssignmentFilter{EventID: eventID, Statuses: models.NonTerminalStatuses})
	if err != nil {
		return nil, err
	}
	return overCapacity(event, shifts, records), nil
}

// ReconcileOverCapacity clears the placement of every record FindOverCapacity would
// release from a shift or role. Joins beyond the event's aggregate capacity are removed.
func (s *AssignmentService) ReconcileOverCapacity(ctx context.Context, eventID string) (models.ReconcileReport, error) {
	report := models.ReconcileReport{EventID: eventID}
	entries, err := s.FindOverCapacity(ctx, eventID)
	if err != nil {
		return report, err
	}
	report.OverCapacity = len(entries)

	empty := ""
	for _, entry := range entries {
		if entry.ShiftID == "" && entry.Role == "" {
			if err := s.trimJoins(ctx, eventID, entry, &report); err != nil {
				return report, err
			}
			continue
		}
		for _, r := range entry.Release {
			if err := s.update(ctx, r.ID, models.AssignmentPatch{ShiftID: &empty}); err != nil {
				if errors.Is(err, appErrors.ErrAssignmentNotFound) {
					continue
				}
				return report, err
			}
			report.Unplaced++
			s.logger.Warn("placement released to restore capacity",
				zap.String("event_id", eventID),
				zap.String("shift_id", r.ShiftID),
				zap.String("role", entry.Role),
				zap.String("volunteer_id", r.VolunteerID))
		}
	}
	return report, nil
}

func (s *AssignmentService) trimJoins(ctx context.Context, eventID string, entry models.OverCapacity, report *models.ReconcileReport) error {
	for _, r := range entry.Release {
		removed, err := s.delete(ctx, r.ID)
		if err != nil {
			return err
		}
		if !removed {
			continue
		}
		report.Trimmed++
		s.logger.Warn("join removed to restore event capacity",
			zap.String("event_id", eventID),
			zap.String("volunteer_id", r.VolunteerID),
			zap.Int("capacity", entry.Capacity),
			zap.Int("occupied", entry.Occupied))
	}
	return nil
}

// ReconcileEvent removes duplicates and then restores capacity for one event.
func (s *AssignmentService) ReconcileEvent(ctx context.Context, eventID string) (models.ReconcileReport, error) {
	start := time.Now()
	report, err := s.ReconcileDuplicates(ctx, eventID)
	if err != nil {
		return report, err
	}
	capacity, err := s.ReconcileOverCapacity(ctx, eventID)
	if err != nil {
		return report, err
	}
	report.Merge(capacity)
	s.metrics.ObserveReconcile("event", report, time.Since(start))

	s.logger.Info("event reconciled",
		zap.String("event_id", eventID),
		zap.Int("duplicate_groups", report.DuplicateGroups),
		zap.Int("removed", report.Removed),
		zap.Int("unplaced", report.Unplaced),
		zap.Int("trimmed", report.Trimmed))
	return report, nil
}

// ReconcileOrganizer runs ReconcileEvent over every event the organizer owns.
func (s *AssignmentService) ReconcileOrganizer(ctx context.Context, organizerID string) (*models.OrganizerReconcileReport, error) {
	if err := requireIDs(organizerID); err != nil {
		return nil, err
	}
	ids, err := s.events.ListIDsByOrganizer(ctx, organizerID)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list organizer events")
	}

	result := &models.OrganizerReconcileReport{OrganizerID: organizerID, Events: make([]models.ReconcileReport, 0, len(ids))}
	for _, id := range ids {
		report, err := s.ReconcileEvent(ctx, id)
		if err != nil {
			return result, err
		}
		result.Events = append(result.Events, report)
		result.Total.Merge(report)
	}
	return result, nil
}

// Transition moves the volunteer's assignment one step forward in its lifecycle and
// stamps the matching timestamp.
func (s *AssignmentService) Transition(ctx context.Context, volunteerID, eventID string, next models.AssignmentStatus) (result *models.Assignment, err error) {
	defer func() { s.metrics.ObserveAssignment("transition", err) }()

	if err := requireIDs(volunteerID, eventID); err != nil {
		return nil, err
	}
	if !next.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown assignment status")
	}
	records, err := s.query(ctx, models.AssignmentFilter{EventID: eventID, VolunteerID: volunteerID})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, appErrors.Clone(appErrors.ErrAssignmentNotFound, "")
	}
	current, _, _ := canonicalRecord(records)
	if !current.Status.CanTransitionTo(next) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move from "+string(current.Status)+" to "+string(next))
	}

	now := s.now()
	patch := models.AssignmentPatch{Status: &next}
	switch next {
	case models.AssignmentStatusConfirmed:
		patch.ConfirmedAt = &now
	case models.AssignmentStatusCheckedIn:
		patch.CheckedInAt = &now
	case models.AssignmentStatusCheckedOut:
		patch.CheckedOutAt = &now
	}
	if err := s.update(ctx, current.ID, patch); err != nil {
		return nil, err
	}
	patch.Apply(&current)
	current.UpdatedAt = now

	s.logger.Info("assignment status changed",
		zap.String("volunteer_id", volunteerID),
		zap.String("event_id", eventID),
		zap.String("status", string(next)))
	return &current, nil
}

// ListForEvent returns every record of an event.
func (s *AssignmentService) ListForEvent(ctx context.Context, eventID string) ([]models.Assignment, error) {
	if err := requireIDs(eventID); err != nil {
		return nil, err
	}
	if _, err := s.loadEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.query(ctx, models.AssignmentFilter{EventID: eventID})
}

// ListForVolunteer returns every record held by a volunteer.
func (s *AssignmentService) ListForVolunteer(ctx context.Context, volunteerID string) ([]models.Assignment, error) {
	if err := requireIDs(volunteerID); err != nil {
		return nil, err
	}
	return s.query(ctx, models.AssignmentFilter{VolunteerID: volunteerID})
}

func (s *AssignmentService) checkPlacementCapacity(ctx context.Context, event *models.Event, shift *models.Shift, joining bool) error {
	active, err := s.query(ctx, models.AssignmentFilter{EventID: event.ID, Statuses: models.NonTerminalStatuses})
	if err != nil {
		return err
	}

	inShift := 0
	for _, r := range active {
		if r.ShiftID == shift.ID {
			inShift++
		}
	}
	if inShift >= shift.Capacity {
		return appErrors.Clone(appErrors.ErrShiftFull, "")
	}

	if limit, ok := event.CapacityPolicy.Limit(shift.Role); ok {
		shifts, err := s.listShifts(ctx, event.ID)
		if err != nil {
			return err
		}
		if placedInRole(active, roleShiftIDs(shifts, shift.Role)) >= limit {
			return appErrors.Clone(appErrors.ErrRoleFull, "")
		}
	}

	if joining {
		if limit := event.CapacityPolicy.Aggregate(); limit > 0 && len(active) >= limit {
			return appErrors.Clone(appErrors.ErrEventFull, "")
		}
	}
	return nil
}

// checkShiftCapacity re-reads occupancy after a placement. Concurrent writers can still
// overfill a shift; that is logged and handed to the reconcile worker.
func (s *AssignmentService) checkShiftCapacity(ctx context.Context, event *models.Event, shift *models.Shift) {
	records, err := s.store.Query(ctx, models.AssignmentFilter{ShiftID: shift.ID, Statuses: models.NonTerminalStatuses})
	if err != nil {
		s.logger.Warn("post-write occupancy check failed", zap.String("shift_id", shift.ID), zap.Error(err))
		return
	}
	if len(records) <= shift.Capacity {
		return
	}
	s.logger.Warn("shift over capacity",
		zap.String("event_id", event.ID),
		zap.String("shift_id", shift.ID),
		zap.Int("capacity", shift.Capacity),
		zap.Int("occupied", len(records)))
	s.scheduleReconcile(event.ID, "shift_over_capacity")
}

func (s *AssignmentService) checkEventCapacity(ctx context.Context, event *models.Event) {
	limit := event.CapacityPolicy.Aggregate()
	if limit == 0 {
		return
	}
	records, err := s.store.Query(ctx, models.AssignmentFilter{EventID: event.ID, Statuses: models.NonTerminalStatuses})
	if err != nil {
		s.logger.Warn("post-write event capacity check failed", zap.String("event_id", event.ID), zap.Error(err))
		return
	}
	if len(records) <= limit {
		return
	}
	s.logger.Warn("event over capacity",
		zap.String("event_id", event.ID),
		zap.Int("capacity", limit),
		zap.Int("occupied", len(records)))
	s.scheduleReconcile(event.ID, "event_over_capacity")
}

func (s *AssignmentService) scheduleReconcile(eventID, reason string) {
	if s.scheduler == nil {
		return
	}
	s.scheduler.ScheduleReconcile(eventID, reason)
}

func (s *AssignmentService) loadEvent(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := s.directory.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrEventNotFound, "")
		}
		return nil, appErrors.Unavailable(err, "failed to load event")
	}
	return event, nil
}

func (s *AssignmentService) loadOpenEvent(ctx context.Context, eventID string) (*models.Event, error) {
	event, err := s.loadEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.Status.AcceptsVolunteers() {
		return nil, appErrors.Clone(appErrors.ErrEventClosed, "event is "+string(event.Status)+" and not accepting volunteers")
	}
	return event, nil
}

func (s *AssignmentService) loadShift(ctx context.Context, shiftID string) (*models.Shift, error) {
	shift, err := s.directory.GetShift(ctx, shiftID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrShiftNotFound, "")
		}
		return nil, appErrors.Unavailable(err, "failed to load shift")
	}
	return shift, nil
}

func (s *AssignmentService) listShifts(ctx context.Context, eventID string) ([]models.Shift, error) {
	shifts, err := s.directory.ListShiftsForEvent(ctx, eventID)
	if err != nil {
		return nil, appErrors.Unavailable(err, "failed to list shifts")
	}
	return shifts, nil
}

func (s *AssignmentService) ensureVolunteer(ctx context.Context, volunteerID string) error {
	profile, err := s.directory.GetVolunteerProfile(ctx, volunteerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrVolunteerNotFound, "")
		}
		return appErrors.Unavailable(err, "failed to load volunteer")
	}
	if !profile.Active {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "volunteer account is inactive")
	}
	return nil
}

func (s *AssignmentService) query(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	records, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, storeError(err)
	}
	return records, nil
}

func (s *AssignmentService) insert(ctx context.Context, record *models.Assignment) error {
	now := s.now()
	record.CreatedAt = now
	record.UpdatedAt = now
	id, err := s.store.Insert(ctx, record)
	if err != nil {
		return storeError(err)
	}
	record.ID = id
	return nil
}

func (s *AssignmentService) update(ctx context.Context, id string, patch models.AssignmentPatch) error {
	if err := s.store.Update(ctx, id, patch); err != nil {
		return storeError(err)
	}
	return nil
}

// delete reports false when the record was already gone.
func (s *AssignmentService) delete(ctx context.Context, id string) (bool, error) {
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, storeError(err)
	}
	return true, nil
}

func storeError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Wrap(err, appErrors.ErrAssignmentNotFound.Code, appErrors.ErrAssignmentNotFound.Status, "assignment record no longer exists")
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Unavailable(err, "")
}

func requireIDs(ids ...string) error {
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "identifier is required")
		}
	}
	return nil
}

// canonicalRecord picks the record to keep among several held by one volunteer for one
// event. A single placed record wins; with none placed the earliest created wins; with
// several placed the most recently created placement wins and the pick is ambiguous.
func canonicalRecord(records []models.Assignment) (keep models.Assignment, remove []models.Assignment, ambiguous bool) {
	ordered := make([]models.Assignment, len(records))
	copy(ordered, records)
	sort.SliceStable(ordered, func(i, j int) bool { return createdBefore(ordered[i], ordered[j]) })

	var placed []int
	for i, r := range ordered {
		if r.Placed() {
			placed = append(placed, i)
		}
	}

	keepIdx := 0
	switch {
	case len(placed) == 1:
		keepIdx = placed[0]
	case len(placed) > 1:
		keepIdx = placed[len(placed)-1]
		ambiguous = true
	}

	for i, r := range ordered {
		if i != keepIdx {
			remove = append(remove, r)
		}
	}
	return ordered[keepIdx], remove, ambiguous
}

func createdBefore(a, b models.Assignment) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func duplicateGroups(records []models.Assignment) []models.DuplicateGroup {
	byVolunteer := make(map[string][]models.Assignment)
	for _, r := range records {
		byVolunteer[r.VolunteerID] = append(byVolunteer[r.VolunteerID], r)
	}

	volunteers := make([]string, 0, len(byVolunteer))
	for id, group := range byVolunteer {
		if len(group) > 1 {
			volunteers = append(volunteers, id)
		}
	}
	sort.Strings(volunteers)

	groups := make([]models.DuplicateGroup, 0, len(volunteers))
	for _, id := range volunteers {
		keep, remove, ambiguous := canonicalRecord(byVolunteer[id])
		groups = append(groups, models.DuplicateGroup{VolunteerID: id, Keep: keep, Remove: remove, Ambiguous: ambiguous})
	}
	return groups
}

// keepOrder ranks placements competing for limited capacity: more lifecycle progress
// first, then the earliest placement.
func keepOrder(records []models.Assignment) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Status.Progress() != b.Status.Progress() {
			return a.Status.Progress() > b.Status.Progress()
		}
		at, bt := placedTime(a), placedTime(b)
		if !at.Equal(bt) {
			return at.Before(bt)
		}
		return createdBefore(a, b)
	})
}

func placedTime(a models.Assignment) time.Time {
	if a.PlacedAt != nil {
		return *a.PlacedAt
	}
	return a.CreatedAt
}

func overCapacity(event *models.Event, shifts []models.Shift, active []models.Assignment) []models.OverCapacity {
	byShift := make(map[string][]models.Assignment)
	for _, r := range active {
		if r.Placed() {
			byShift[r.ShiftID] = append(byShift[r.ShiftID], r)
		}
	}

	var result []models.OverCapacity
	released := make(map[string]bool)
	for _, sh := range shifts {
		placed := byShift[sh.ID]
		if len(placed) <= sh.Capacity {
			continue
		}
		keepOrder(placed)
		entry := models.OverCapacity{
			ShiftID:  sh.ID,
			Role:     sh.Role,
			Capacity: sh.Capacity,
			Occupied: len(placed),
			Release:  append([]models.Assignment(nil), placed[sh.Capacity:]...),
		}
		for _, r := range entry.Release {
			released[r.ID] = true
		}
		result = append(result, entry)
	}

	roles := make([]string, 0, len(event.CapacityPolicy))
	for role := range event.CapacityPolicy {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	for _, role := range roles {
		limit := event.CapacityPolicy[role]
		ids := roleShiftIDs(shifts, role)
		var placed []models.Assignment
		for _, r := range active {
			if ids[r.ShiftID] && !released[r.ID] {
				placed = append(placed, r)
			}
		}
		if len(placed) <= limit {
			continue
		}
		keepOrder(placed)
		entry := models.OverCapacity{
			Role:     role,
			Capacity: limit,
			Occupied: len(placed),
			Release:  append([]models.Assignment(nil), placed[limit:]...),
		}
		for _, r := range entry.Release {
			released[r.ID] = true
		}
		result = append(result, entry)
	}

	if limit := event.CapacityPolicy.Aggregate(); limit > 0 && len(active) > limit {
		joined := append([]models.Assignment(nil), active...)
		joinKeepOrder(joined, released)
		result = append(result, models.OverCapacity{
			Capacity: limit,
			Occupied: len(joined),
			Release:  append([]models.Assignment(nil), joined[limit:]...),
		})
	}
	return result
}

// joinKeepOrder ranks joins competing for the event's aggregate capacity. Records that
// hold a placement are kept ahead of unplaced ones.
func joinKeepOrder(records []models.Assignment, released map[string]bool) {
	keepOrder(records)
	sort.SliceStable(records, func(i, j int) bool {
		return holdsPlacement(records[i], released) && !holdsPlacement(records[j], released)
	})
}

func holdsPlacement(r models.Assignment, released map[string]bool) bool {
	return r.Placed() && !released[r.ID]
}

func roleShiftIDs(shifts []models.Shift, role string) map[string]bool {
	ids := make(map[string]bool)
	for _, sh := range shifts {
		if sh.Role == role {
			ids[sh.ID] = true
		}
	}
	return ids
}

func placedInRole(active []models.Assignment, shiftIDs map[string]bool) int {
	count := 0
	for _, r := range active {
		if shiftIDs[r.ShiftID] {
			count++
		}
	}
	return count
}

func shiftOccupancy(shift models.Shift, occupied int) models.ShiftOccupancy {
	available := shift.Capacity - occupied
	if available < 0 {
		available = 0
	}
	return models.ShiftOccupancy{
		ShiftID:   shift.ID,
		Role:      shift.Role,
		Capacity:  shift.Capacity,
		Occupied:  occupied,
		Available: available,
	}
}
