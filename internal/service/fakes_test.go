package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/noah-isme/crewsync-api/internal/models"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
)

type fakeDirectory struct {
	events     map[string]*models.Event
	shifts     map[string]*models.Shift
	volunteers map[string]*models.VolunteerProfile
	err        error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		events:     map[string]*models.Event{},
		shifts:     map[string]*models.Shift{},
		volunteers: map[string]*models.VolunteerProfile{},
	}
}

func (d *fakeDirectory) addEvent(id string, status models.EventStatus, policy models.CapacityPolicy) *models.Event {
	e := &models.Event{ID: id, Title: id, OrganizerID: "org-1", Status: status, CapacityPolicy: policy}
	d.events[id] = e
	return e
}

func (d *fakeDirectory) addShift(id, eventID, role string, capacity int) *models.Shift {
	start := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	s := &models.Shift{ID: id, EventID: eventID, Title: id, Role: role, StartsAt: start, EndsAt: start.Add(4 * time.Hour), Capacity: capacity}
	d.shifts[id] = s
	return s
}

func (d *fakeDirectory) addVolunteers(ids ...string) {
	for _, id := range ids {
		d.volunteers[id] = &models.VolunteerProfile{ID: id, FullName: id, Active: true}
	}
}

func (d *fakeDirectory) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	if d.err != nil {
		return nil, d.err
	}
	e, ok := d.events[eventID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *e
	return &copied, nil
}

func (d *fakeDirectory) GetShift(ctx context.Context, shiftID string) (*models.Shift, error) {
	if d.err != nil {
		return nil, d.err
	}
	s, ok := d.shifts[shiftID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *s
	return &copied, nil
}

func (d *fakeDirectory) ListShiftsForEvent(ctx context.Context, eventID string) ([]models.Shift, error) {
	if d.err != nil {
		return nil, d.err
	}
	var out []models.Shift
	for _, s := range d.shifts {
		if s.EventID == eventID {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (d *fakeDirectory) GetVolunteerProfile(ctx context.Context, volunteerID string) (*models.VolunteerProfile, error) {
	if d.err != nil {
		return nil, d.err
	}
	v, ok := d.volunteers[volunteerID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *v
	return &copied, nil
}

func (d *fakeDirectory) ListIDsByOrganizer(ctx context.Context, organizerID string) ([]string, error) {
	var ids []string
	for id, e := range d.events {
		if e.OrganizerID == organizerID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// memoryStore is an in-memory relation store with the same not-found contract as the
// SQL and document stores.
type memoryStore struct {
	mu        sync.Mutex
	records   []models.Assignment
	seq       int
	failWith  error
	insertErr error
	inserts   int
	updates   int
	deletes   int
	afterPut  func(s *memoryStore, a models.Assignment)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{}
}

func (m *memoryStore) seed(records ...models.Assignment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		if r.ID == "" {
			m.seq++
			r.ID = fmt.Sprintf("seed-%d", m.seq)
		}
		if r.Status == "" {
			r.Status = models.AssignmentStatusAssigned
		}
		m.records = append(m.records, r)
	}
}

func (m *memoryStore) Insert(ctx context.Context, a *models.Assignment) (string, error) {
	m.mu.Lock()
	if m.failWith != nil {
		m.mu.Unlock()
		return "", m.failWith
	}
	if m.insertErr != nil {
		m.mu.Unlock()
		return "", m.insertErr
	}
	m.seq++
	if a.ID == "" {
		a.ID = fmt.Sprintf("a-%d", m.seq)
	}
	m.records = append(m.records, *a)
	m.inserts++
	hook := m.afterPut
	m.mu.Unlock()
	if hook != nil {
		hook(m, *a)
	}
	return a.ID, nil
}

func (m *memoryStore) Update(ctx context.Context, id string, patch models.AssignmentPatch) error {
	m.mu.Lock()
	if m.failWith != nil {
		m.mu.Unlock()
		return m.failWith
	}
	var updated *models.Assignment
	for i := range m.records {
		if m.records[i].ID == id {
			patch.Apply(&m.records[i])
			m.records[i].UpdatedAt = time.Now().UTC()
			m.updates++
			copied := m.records[i]
			updated = &copied
			break
		}
	}
	hook := m.afterPut
	m.mu.Unlock()
	if updated == nil {
		return sql.ErrNoRows
	}
	if hook != nil {
		hook(m, *updated)
	}
	return nil
}

func (m *memoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	for i := range m.records {
		if m.records[i].ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			m.deletes++
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memoryStore) Query(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return nil, m.failWith
	}
	var out []models.Assignment
	for _, r := range m.records {
		if filter.EventID != "" && r.EventID != filter.EventID {
			continue
		}
		if filter.ShiftID != "" && r.ShiftID != filter.ShiftID {
			continue
		}
		if filter.VolunteerID != "" && r.VolunteerID != filter.VolunteerID {
			continue
		}
		if len(filter.Statuses) > 0 && !statusIn(r.Status, filter.Statuses) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return createdBefore(out[i], out[j]) })
	return out, nil
}

func (m *memoryStore) CountByStatus(ctx context.Context, eventID string) ([]models.StatusCount, error) {
	records, err := m.Query(ctx, models.AssignmentFilter{EventID: eventID})
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for _, r := range records {
		counts[string(r.Status)]++
	}
	var rows []models.StatusCount
	for status, n := range counts {
		rows = append(rows, models.StatusCount{Status: status, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Status < rows[j].Status })
	return rows, nil
}

func statusIn(s models.AssignmentStatus, set []models.AssignmentStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

type recordingScheduler struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingScheduler) ScheduleReconcile(eventID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, eventID)
}

func (r *recordingScheduler) scheduled() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

// stepClock returns strictly increasing instants so creation order is deterministic.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

func at(minutes int) time.Time {
	return time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC).Add(time.Duration(minutes) * time.Minute)
}

func ptrTime(t time.Time) *time.Time { return &t }

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	c.sets++
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}
