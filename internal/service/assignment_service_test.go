package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/crewsync-api/internal/models"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
)

type managerFixture struct {
	svc       *AssignmentService
	dir       *fakeDirectory
	store     *memoryStore
	scheduler *recordingScheduler
}

func newManagerFixture(implicitJoin bool) *managerFixture {
	dir := newFakeDirectory()
	store := newMemoryStore()
	scheduler := &recordingScheduler{}
	svc := NewAssignmentService(dir, store, dir, nil, AssignmentConfig{ImplicitJoin: implicitJoin}, nil)
	svc.now = newStepClock().Now
	svc.SetScheduler(scheduler)
	return &managerFixture{svc: svc, dir: dir, store: store, scheduler: scheduler}
}

func TestJoinEventTwiceKeepsSingleRecord(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addVolunteers("A")
	ctx := context.Background()

	first, err := f.svc.JoinEvent(ctx, "A", "e1")
	require.NoError(t, err)
	assert.Equal(t, "", first.ShiftID)
	assert.Equal(t, models.AssignmentStatusAssigned, first.Status)

	_, err = f.svc.JoinEvent(ctx, "A", "e1")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyJoined)

	records, err := f.store.Query(ctx, models.AssignmentFilter{EventID: "e1", VolunteerID: "A"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, f.store.inserts)
}

func TestJoinEventRejections(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("archived", models.EventStatusArchived, nil)
	f.dir.addEvent("done", models.EventStatusCompleted, nil)
	f.dir.addEvent("draft", models.EventStatusDraft, nil)
	f.dir.addVolunteers("A")
	f.dir.volunteers["sleepy"] = &models.VolunteerProfile{ID: "sleepy", Active: false}
	ctx := context.Background()

	_, err := f.svc.JoinEvent(ctx, "A", "missing")
	assert.ErrorIs(t, err, appErrors.ErrEventNotFound)

	_, err = f.svc.JoinEvent(ctx, "A", "archived")
	assert.ErrorIs(t, err, appErrors.ErrEventClosed)

	_, err = f.svc.JoinEvent(ctx, "A", "done")
	assert.ErrorIs(t, err, appErrors.ErrEventClosed)

	_, err = f.svc.JoinEvent(ctx, "ghost", "draft")
	assert.ErrorIs(t, err, appErrors.ErrVolunteerNotFound)

	_, err = f.svc.JoinEvent(ctx, "sleepy", "draft")
	assert.ErrorIs(t, err, appErrors.ErrPreconditionFailed)

	_, err = f.svc.JoinEvent(ctx, "", "draft")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = f.svc.JoinEvent(ctx, "A", "draft")
	assert.NoError(t, err)
	assert.Equal(t, 1, f.store.inserts)
}

func TestJoinEventAggregateCapacity(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, models.CapacityPolicy{"usher": 1, "medic": 1})
	f.dir.addVolunteers("A", "B", "C")
	ctx := context.Background()

	_, err := f.svc.JoinEvent(ctx, "A", "e1")
	require.NoError(t, err)
	_, err = f.svc.JoinEvent(ctx, "B", "e1")
	require.NoError(t, err)

	_, err = f.svc.JoinEvent(ctx, "C", "e1")
	assert.ErrorIs(t, err, appErrors.ErrEventFull)
	assert.True(t, appErrors.IsCapacity(err))
}

func TestAssignToShiftCapacityScenario(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("E1", models.EventStatusActive, nil)
	f.dir.addShift("S1", "E1", "usher", 2)
	f.dir.addVolunteers("A", "B", "C")
	ctx := context.Background()

	_, err := f.svc.AssignToShift(ctx, "A", "E1", "S1")
	require.NoError(t, err)
	_, err = f.svc.AssignToShift(ctx, "B", "E1", "S1")
	require.NoError(t, err)

	_, err = f.svc.AssignToShift(ctx, "C", "E1", "S1")
	assert.ErrorIs(t, err, appErrors.ErrShiftFull)
	assert.True(t, appErrors.IsCapacity(err))

	occ, err := f.svc.Occupancy(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, 2, occ.Occupied)
	assert.Equal(t, 0, occ.Available)

	records, _ := f.store.Query(ctx, models.AssignmentFilter{VolunteerID: "C"})
	assert.Empty(t, records, "a rejected implicit join must not leave a record behind")
	assert.Empty(t, f.scheduler.scheduled())
}

func TestAssignToShiftExclusivity(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addShift("s1", "e1", "usher", 5)
	f.dir.addShift("s2", "e1", "usher", 5)
	f.dir.addVolunteers("A")
	ctx := context.Background()

	_, err := f.svc.AssignToShift(ctx, "A", "e1", "s1")
	require.NoError(t, err)

	_, err = f.svc.AssignToShift(ctx, "A", "e1", "s2")
	assert.ErrorIs(t, err, appErrors.ErrAssignedElsewhere)

	records, _ := f.store.Query(ctx, models.AssignmentFilter{EventID: "e1", VolunteerID: "A"})
	require.Len(t, records, 1)
	assert.Equal(t, "s1", records[0].ShiftID)

	_, err = f.svc.AssignToShift(ctx, "A", "e1", "s1")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyAssigned)
}

func TestAssignToShiftDistinctErrorsAreDistinguishable(t *testing.T) {
	full := appErrors.FromError(appErrors.Clone(appErrors.ErrShiftFull, ""))
	elsewhere := appErrors.FromError(appErrors.Clone(appErrors.ErrAssignedElsewhere, ""))
	joined := appErrors.FromError(appErrors.Clone(appErrors.ErrAlreadyJoined, ""))

	assert.NotEqual(t, full.Code, elsewhere.Code)
	assert.NotEqual(t, elsewhere.Code, joined.Code)
	assert.NotEqual(t, full.Message, elsewhere.Message)
	assert.NotEqual(t, elsewhere.Message, joined.Message)
}

func TestAssignToShiftReferenceErrors(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addEvent("e2", models.EventStatusActive, nil)
	f.dir.addEvent("closed", models.EventStatusArchived, nil)
	f.dir.addShift("s1", "e1", "usher", 5)
	f.dir.addShift("sc", "closed", "usher", 5)
	f.dir.addVolunteers("A")
	ctx := context.Background()

	_, err := f.svc.AssignToShift(ctx, "A", "e1", "missing")
	assert.ErrorIs(t, err, appErrors.ErrShiftNotFound)

	_, err = f.svc.AssignToShift(ctx, "A", "e2", "s1")
	assert.ErrorIs(t, err, appErrors.ErrEventMismatch)

	_, err = f.svc.AssignToShift(ctx, "A", "closed", "sc")
	assert.ErrorIs(t, err, appErrors.ErrEventClosed)

	_, err = f.svc.AssignToShift(ctx, "ghost", "e1", "s1")
	assert.ErrorIs(t, err, appErrors.ErrVolunteerNotFound)
	assert.Equal(t, 0, f.store.inserts)
}

func TestAssignToShiftWithoutImplicitJoin(t *testing.T) {
	f := newManagerFixture(false)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addShift("s1", "e1", "usher", 5)
	f.dir.addVolunteers("A")
	ctx := context.Background()

	_, err := f.svc.AssignToShift(ctx, "A", "e1", "s1")
	assert.ErrorIs(t, err, appErrors.ErrAssignmentNotFound)

	joined, err := f.svc.JoinEvent(ctx, "A", "e1")
	require.NoError(t, err)

	placed, err := f.svc.AssignToShift(ctx, "A", "e1", "s1")
	require.NoError(t, err)
	assert.Equal(t, joined.ID, placed.ID)
	assert.Equal(t, "s1", placed.ShiftID)
	require.NotNil(t, placed.PlacedAt)
	assert.Equal(t, 1, f.store.inserts)
}

func TestAssignUnassignRoundTrip(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addShift("s1", "e1", "usher", 1)
	f.dir.addVolunteers("A", "B")
	ctx := context.Background()

	_, err := f.svc.AssignToShift(ctx, "A", "e1", "s1")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, "A", "e1", models.AssignmentStatusConfirmed)
	require.NoError(t, err)

	_, err = f.svc.AssignToShift(ctx, "B", "e1", "s1")
	require.ErrorIs(t, err, appErrors.ErrShiftFull)

	cleared, err := f.svc.UnassignFromShift(ctx, "A", "e1", "s1")
	require.NoError(t, err)
	require.NotNil(t, cleared)
	assert.Equal(t, "", cleared.ShiftID)
	assert.Nil(t, cleared.PlacedAt)
	assert.Equal(t, models.AssignmentStatusConfirmed, cleared.Status)

	records, _ := f.store.Query(ctx, models.AssignmentFilter{EventID: "e1", VolunteerID: "A"})
	require.Len(t, records, 1)
	assert.Equal(t, "", records[0].ShiftID)
	assert.Equal(t, models.AssignmentStatusConfirmed, records[0].Status)

	_, err = f.svc.AssignToShift(ctx, "B", "e1", "s1")
	assert.NoError(t, err)
}

func TestUnassignFromShiftIsNoopWhenNotPlaced(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addShift("s1", "e1", "usher", 1)
	f.dir.addShift("s2", "e1", "usher", 1)
	f.dir.addVolunteers("A")
	ctx := context.Background()

	result, err := f.svc.UnassignFromShift(ctx, "A", "e1", "s1")
	assert.NoError(t, err)
	assert.Nil(t, result)

	_, err = f.svc.AssignToShift(ctx, "A", "e1", "s2")
	require.NoError(t, err)
	result, err = f.svc.UnassignFromShift(ctx, "A", "e1", "s1")
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 0, f.store.updates)
}

func TestAssignToShiftRoleCapacity(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, models.CapacityPolicy{"medic": 1, "usher": 5})
	f.dir.addShift("m1", "e1", "medic", 3)
	f.dir.addShift("m2", "e1", "medic", 3)
	f.dir.addShift("u1", "e1", "usher", 3)
	f.dir.addVolunteers("A", "B", "C")
	ctx := context.Background()

	_, err := f.svc.AssignToShift(ctx, "A", "e1", "m1")
	require.NoError(t, err)

	_, err = f.svc.AssignToShift(ctx, "B", "e1", "m2")
	assert.ErrorIs(t, err, appErrors.ErrRoleFull)

	_, err = f.svc.AssignToShift(ctx, "C", "e1", "u1")
	assert.NoError(t, err)
}

func TestAssignToShiftRejectsTerminalAssignment(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addShift("s1", "e1", "usher", 3)
	f.dir.addVolunteers("A")
	ctx := context.Background()

	_, err := f.svc.JoinEvent(ctx, "A", "e1")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, "A", "e1", models.AssignmentStatusNoShow)
	require.NoError(t, err)

	_, err = f.svc.AssignToShift(ctx, "A", "e1", "s1")
	assert.ErrorIs(t, err, appErrors.ErrAssignmentClosed)
}

func TestTerminalPlacementsDoNotCountTowardOccupancy(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addShift("s1", "e1", "usher", 1)
	f.dir.addVolunteers("B")
	f.store.seed(models.Assignment{VolunteerID: "A", EventID: "e1", ShiftID: "s1", Status: models.AssignmentStatusCheckedOut, CreatedAt: at(1)})
	ctx := context.Background()

	occ, err := f.svc.Occupancy(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 0, occ.Occupied)

	_, err = f.svc.AssignToShift(ctx, "B", "e1", "s1")
	assert.NoError(t, err)
}

func TestLeaveEventRemovesEveryRecord(t *testing.T) {
	f := newManagerFixture(true)
	f.store.seed(
		models.Assignment{VolunteerID: "A", EventID: "e1", CreatedAt: at(1)},
		models.Assignment{VolunteerID: "A", EventID: "e1", ShiftID: "s1", CreatedAt: at(2)},
		models.Assignment{VolunteerID: "B", EventID: "e1", CreatedAt: at(3)},
	)
	ctx := context.Background()

	removed, err := f.svc.LeaveEvent(ctx, "A", "e1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	removed, err = f.svc.LeaveEvent(ctx, "A", "e1")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	remaining, _ := f.store.Query(ctx, models.AssignmentFilter{EventID: "e1"})
	require.Len(t, remaining, 1)
	assert.Equal(t, "B", remaining[0].VolunteerID)
}

func TestReconcileDuplicatesTieBreakAndIdempotence(t *testing.T) {
	f := newManagerFixture(true)
	f.store.seed(
		// one unplaced group: earliest created is kept
		models.Assignment{ID: "u-old", VolunteerID: "v1", EventID: "e1", CreatedAt: at(1)},
		models.Assignment{ID: "u-new", VolunteerID: "v1", EventID: "e1", CreatedAt: at(5)},
		// exactly one placed: the placed record is kept
		models.Assignment{ID: "p-unplaced", VolunteerID: "v2", EventID: "e1", CreatedAt: at(1)},
		models.Assignment{ID: "p-placed", VolunteerID: "v2", EventID: "e1", ShiftID: "s1", CreatedAt: at(2)},
		// several placed: the most recent placement is kept and flagged
		models.Assignment{ID: "a-old", VolunteerID: "v3", EventID: "e1", ShiftID: "s1", CreatedAt: at(1)},
		models.Assignment{ID: "a-new", VolunteerID: "v3", EventID: "e1", ShiftID: "s2", CreatedAt: at(3)},
		models.Assignment{ID: "a-bare", VolunteerID: "v3", EventID: "e1", CreatedAt: at(4)},
		// single record, untouched
		models.Assignment{ID: "solo", VolunteerID: "v4", EventID: "e1", CreatedAt: at(1)},
		// other event, untouched
		models.Assignment{ID: "other", VolunteerID: "v1", EventID: "e2", CreatedAt: at(1)},
	)
	ctx := context.Background()

	groups, err := f.svc.FindDuplicates(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, groups, 3)
	assert.Equal(t, "u-old", groups[0].Keep.ID)
	assert.False(t, groups[0].Ambiguous)
	assert.Equal(t, "p-placed", groups[1].Keep.ID)
	assert.False(t, groups[1].Ambiguous)
	assert.Equal(t, "a-new", groups[2].Keep.ID)
	assert.True(t, groups[2].Ambiguous)

	report, err := f.svc.ReconcileDuplicates(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 4, report.Removed)
	assert.Equal(t, 3, report.DuplicateGroups)
	assert.Equal(t, []string{"v3"}, report.Ambiguous)

	again, err := f.svc.ReconcileDuplicates(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Removed)
	assert.Equal(t, 0, again.DuplicateGroups)

	remaining, _ := f.store.Query(ctx, models.AssignmentFilter{EventID: "e1"})
	ids := make([]string, 0, len(remaining))
	for _, r := range remaining {
		ids = append(ids, r.ID)
	}
	assert.ElementsMatch(t, []string{"u-old", "p-placed", "a-new", "solo"}, ids)
}

func TestManagerActsOnCanonicalRecordWhenDuplicated(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.store.seed(
		models.Assignment{ID: "first", VolunteerID: "A", EventID: "e1", CreatedAt: at(1)},
		models.Assignment{ID: "second", VolunteerID: "A", EventID: "e1", CreatedAt: at(2)},
	)

	updated, err := f.svc.Transition(context.Background(), "A", "e1", models.AssignmentStatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, "first", updated.ID)
}

func TestFindAndReconcileOverCapacity(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addShift("s1", "e1", "usher", 2)
	f.store.seed(
		models.Assignment{ID: "early", VolunteerID: "A", EventID: "e1", ShiftID: "s1", PlacedAt: ptrTime(at(1)), CreatedAt: at(1)},
		models.Assignment{ID: "late", VolunteerID: "B", EventID: "e1", ShiftID: "s1", PlacedAt: ptrTime(at(3)), CreatedAt: at(3)},
		models.Assignment{ID: "arrived", VolunteerID: "C", EventID: "e1", ShiftID: "s1", Status: models.AssignmentStatusCheckedIn, PlacedAt: ptrTime(at(5)), CreatedAt: at(5)},
		models.Assignment{ID: "gone", VolunteerID: "D", EventID: "e1", ShiftID: "s1", Status: models.AssignmentStatusCheckedOut, PlacedAt: ptrTime(at(0)), CreatedAt: at(0)},
	)
	ctx := context.Background()

	entries, err := f.svc.FindOverCapacity(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "s1", entries[0].ShiftID)
	assert.Equal(t, 3, entries[0].Occupied)
	require.Len(t, entries[0].Release, 1)
	assert.Equal(t, "late", entries[0].Release[0].ID)

	report, err := f.svc.ReconcileOverCapacity(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unplaced)
	assert.Equal(t, 1, report.OverCapacity)

	occ, err := f.svc.Occupancy(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, occ.Occupied)

	released, _ := f.store.Query(ctx, models.AssignmentFilter{VolunteerID: "B"})
	require.Len(t, released, 1)
	assert.Equal(t, "", released[0].ShiftID)

	again, err := f.svc.ReconcileOverCapacity(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Unplaced)
}

func TestReconcileOverCapacityByRole(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, models.CapacityPolicy{"medic": 1, "usher": 4})
	f.dir.addShift("m1", "e1", "medic", 2)
	f.dir.addShift("m2", "e1", "medic", 2)
	f.store.seed(
		models.Assignment{ID: "first", VolunteerID: "A", EventID: "e1", ShiftID: "m1", PlacedAt: ptrTime(at(1)), CreatedAt: at(1)},
		models.Assignment{ID: "second", VolunteerID: "B", EventID: "e1", ShiftID: "m2", PlacedAt: ptrTime(at(2)), CreatedAt: at(2)},
	)

	entries, err := f.svc.FindOverCapacity(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "medic", entries[0].Role)
	assert.Empty(t, entries[0].ShiftID)
	assert.Equal(t, "second", entries[0].Release[0].ID)
}

func TestReconcileOverCapacityTrimsEventJoins(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, models.CapacityPolicy{"usher": 2})
	f.dir.addShift("s1", "e1", "usher", 2)
	f.store.seed(
		models.Assignment{ID: "waiting", VolunteerID: "A", EventID: "e1", CreatedAt: at(1)},
		models.Assignment{ID: "placed", VolunteerID: "B", EventID: "e1", ShiftID: "s1", PlacedAt: ptrTime(at(4)), CreatedAt: at(2)},
		models.Assignment{ID: "newest", VolunteerID: "C", EventID: "e1", CreatedAt: at(3)},
		models.Assignment{ID: "left", VolunteerID: "D", EventID: "e1", Status: models.AssignmentStatusNoShow, CreatedAt: at(0)},
	)
	ctx := context.Background()

	entries, err := f.svc.FindOverCapacity(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].ShiftID)
	assert.Empty(t, entries[0].Role)
	assert.Equal(t, 2, entries[0].Capacity)
	assert.Equal(t, 3, entries[0].Occupied)
	require.Len(t, entries[0].Release, 1)
	assert.Equal(t, "newest", entries[0].Release[0].ID, "placed joins are kept ahead of unplaced ones")

	report, err := f.svc.ReconcileOverCapacity(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.OverCapacity)
	assert.Equal(t, 1, report.Trimmed)
	assert.Equal(t, 0, report.Removed)

	remaining, _ := f.store.Query(ctx, models.AssignmentFilter{VolunteerID: "C"})
	assert.Empty(t, remaining)

	again, err := f.svc.FindOverCapacity(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestConcurrentJoinOverfillIsRestoredByReconcile(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, models.CapacityPolicy{"usher": 1})
	f.dir.addVolunteers("A")

	// another writer lands a join between the capacity check and this write
	f.store.afterPut = func(s *memoryStore, a models.Assignment) {
		s.afterPut = nil
		s.seed(models.Assignment{ID: "racer", VolunteerID: "racer", EventID: "e1", CreatedAt: at(90)})
	}

	_, err := f.svc.JoinEvent(context.Background(), "A", "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, f.scheduler.scheduled())

	report, err := f.svc.ReconcileEvent(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Trimmed)

	occ, err := f.svc.EventOccupancy(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, occ.Occupied)
	assert.LessOrEqual(t, occ.Occupied, occ.Capacity)

	kept, _ := f.store.Query(context.Background(), models.AssignmentFilter{EventID: "e1"})
	require.Len(t, kept, 1)
	assert.Equal(t, "A", kept[0].VolunteerID)
}

func TestReconcileEventAndOrganizer(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addEvent("e2", models.EventStatusArchived, nil)
	f.dir.addShift("s1", "e1", "usher", 1)
	f.store.seed(
		models.Assignment{ID: "dup-1", VolunteerID: "A", EventID: "e1", CreatedAt: at(1)},
		models.Assignment{ID: "dup-2", VolunteerID: "A", EventID: "e1", CreatedAt: at(2)},
		models.Assignment{ID: "b", VolunteerID: "B", EventID: "e1", ShiftID: "s1", PlacedAt: ptrTime(at(3)), CreatedAt: at(3)},
		models.Assignment{ID: "c", VolunteerID: "C", EventID: "e1", ShiftID: "s1", PlacedAt: ptrTime(at(4)), CreatedAt: at(4)},
		models.Assignment{ID: "e2-1", VolunteerID: "A", EventID: "e2", CreatedAt: at(1)},
		models.Assignment{ID: "e2-2", VolunteerID: "A", EventID: "e2", CreatedAt: at(2)},
	)
	ctx := context.Background()

	report, err := f.svc.ReconcileEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Removed)
	assert.Equal(t, 1, report.Unplaced)

	summary, err := f.svc.ReconcileOrganizer(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, summary.Events, 2)
	assert.Equal(t, 1, summary.Total.Removed, "only e2 still had a duplicate")
	assert.Equal(t, 0, summary.Total.Unplaced)
}

func TestTransitionStateMachine(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addVolunteers("A")
	ctx := context.Background()

	_, err := f.svc.Transition(ctx, "A", "e1", models.AssignmentStatusConfirmed)
	assert.ErrorIs(t, err, appErrors.ErrAssignmentNotFound)

	_, err = f.svc.JoinEvent(ctx, "A", "e1")
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, "A", "e1", models.AssignmentStatusCheckedIn)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	_, err = f.svc.Transition(ctx, "A", "e1", models.AssignmentStatus("removed"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	confirmed, err := f.svc.Transition(ctx, "A", "e1", models.AssignmentStatusConfirmed)
	require.NoError(t, err)
	assert.NotNil(t, confirmed.ConfirmedAt)

	checkedIn, err := f.svc.Transition(ctx, "A", "e1", models.AssignmentStatusCheckedIn)
	require.NoError(t, err)
	assert.NotNil(t, checkedIn.CheckedInAt)

	_, err = f.svc.Transition(ctx, "A", "e1", models.AssignmentStatusNoShow)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	checkedOut, err := f.svc.Transition(ctx, "A", "e1", models.AssignmentStatusCheckedOut)
	require.NoError(t, err)
	assert.NotNil(t, checkedOut.CheckedOutAt)

	_, err = f.svc.Transition(ctx, "A", "e1", models.AssignmentStatusAssigned)
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)

	stored, _ := f.store.Query(ctx, models.AssignmentFilter{VolunteerID: "A"})
	require.Len(t, stored, 1)
	assert.Equal(t, models.AssignmentStatusCheckedOut, stored[0].Status)
}

func TestStoreFailuresAreRetryable(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addVolunteers("A")
	f.store.failWith = errors.New("connection reset by peer")

	_, err := f.svc.JoinEvent(context.Background(), "A", "e1")
	require.Error(t, err)
	assert.True(t, appErrors.Retryable(err))
	assert.Equal(t, "STORE_UNAVAILABLE", appErrors.FromError(err).Code)

	f.store.failWith = nil
	f.dir.err = errors.New("directory timeout")
	_, err = f.svc.AssignToShift(context.Background(), "A", "e1", "s1")
	assert.True(t, appErrors.Retryable(err))

	_, err = f.svc.AssignToShift(context.Background(), "A", "e1", "")
	assert.False(t, appErrors.Retryable(err))
}

func TestJoinEventUniqueConstraintRace(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addVolunteers("A")
	f.store.insertErr = appErrors.Wrap(errors.New("23505"), appErrors.ErrAlreadyJoined.Code, appErrors.ErrAlreadyJoined.Status, appErrors.ErrAlreadyJoined.Message)

	_, err := f.svc.JoinEvent(context.Background(), "A", "e1")
	assert.ErrorIs(t, err, appErrors.ErrAlreadyJoined)
	assert.False(t, appErrors.Retryable(err))
}

func TestConcurrentOverfillIsHandedToReconcile(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.dir.addShift("s1", "e1", "usher", 1)
	f.dir.addVolunteers("A")

	// another writer lands a placement between the capacity check and this write
	f.store.afterPut = func(s *memoryStore, a models.Assignment) {
		s.afterPut = nil
		s.seed(models.Assignment{VolunteerID: "racer", EventID: "e1", ShiftID: "s1", CreatedAt: at(90)})
	}

	_, err := f.svc.AssignToShift(context.Background(), "A", "e1", "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, f.scheduler.scheduled())
}

func TestEventOccupancy(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, models.CapacityPolicy{"usher": 3, "medic": 1})
	f.dir.addShift("s1", "e1", "usher", 2)
	f.dir.addShift("s2", "e1", "medic", 1)
	f.store.seed(
		models.Assignment{VolunteerID: "A", EventID: "e1", ShiftID: "s1", CreatedAt: at(1)},
		models.Assignment{VolunteerID: "B", EventID: "e1", ShiftID: "s2", CreatedAt: at(2)},
		models.Assignment{VolunteerID: "C", EventID: "e1", CreatedAt: at(3)},
		models.Assignment{VolunteerID: "D", EventID: "e1", ShiftID: "s1", Status: models.AssignmentStatusNoShow, CreatedAt: at(4)},
	)

	occ, err := f.svc.EventOccupancy(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, 4, occ.Capacity)
	assert.Equal(t, 3, occ.Occupied)
	assert.Equal(t, 1, occ.Unplaced)
	assert.Equal(t, map[string]int{"usher": 1, "medic": 1}, occ.Roles)
	require.Len(t, occ.Shifts, 2)
	assert.Equal(t, 1, occ.Shifts[0].Available)
	assert.Equal(t, 0, occ.Shifts[1].Available)
}

func TestListForEventAndVolunteer(t *testing.T) {
	f := newManagerFixture(true)
	f.dir.addEvent("e1", models.EventStatusActive, nil)
	f.store.seed(
		models.Assignment{VolunteerID: "A", EventID: "e1", CreatedAt: at(1)},
		models.Assignment{VolunteerID: "A", EventID: "e2", CreatedAt: at(2)},
		models.Assignment{VolunteerID: "B", EventID: "e1", CreatedAt: at(3)},
	)
	ctx := context.Background()

	forEvent, err := f.svc.ListForEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Len(t, forEvent, 2)

	_, err = f.svc.ListForEvent(ctx, "missing")
	assert.ErrorIs(t, err, appErrors.ErrEventNotFound)

	forVolunteer, err := f.svc.ListForVolunteer(ctx, "A")
	require.NoError(t, err)
	assert.Len(t, forVolunteer, 2)
}
