package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// EventStatus enumerates event lifecycle states.
type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusActive    EventStatus = "active"
	EventStatusCompleted EventStatus = "completed"
	EventStatusArchived  EventStatus = "archived"
)

// Valid reports whether the status is a known event state.
func (s EventStatus) Valid() bool {
	switch s {
	case EventStatusDraft, EventStatusActive, EventStatusCompleted, EventStatusArchived:
		return true
	}
	return false
}

// AcceptsVolunteers reports whether new joins and placements are allowed.
func (s EventStatus) AcceptsVolunteers() bool {
	return s == EventStatusDraft || s == EventStatusActive
}

// CanTransitionTo validates organizer driven status changes.
func (s EventStatus) CanTransitionTo(next EventStatus) bool {
	switch next {
	case EventStatusActive:
		return s == EventStatusDraft || s == EventStatusArchived
	case EventStatusCompleted:
		return s == EventStatusActive
	case EventStatusArchived:
		return s != EventStatusArchived
	}
	return false
}

// CapacityPolicy maps a role name to the maximum number of volunteers for it.
type CapacityPolicy map[string]int

// Aggregate returns the event-wide capacity. Zero means unlimited.
func (p CapacityPolicy) Aggregate() int {
	total := 0
	for _, max := range p {
		if max > 0 {
			total += max
		}
	}
	return total
}

// Limit returns the configured maximum for a role.
func (p CapacityPolicy) Limit(role string) (int, bool) {
	if p == nil || role == "" {
		return 0, false
	}
	max, ok := p[role]
	return max, ok
}

// Value implements driver.Valuer for JSONB persistence.
func (p CapacityPolicy) Value() (driver.Value, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

// Scan implements sql.Scanner for JSONB columns.
func (p *CapacityPolicy) Scan(src interface{}) error {
	if src == nil {
		*p = CapacityPolicy{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported capacity policy type %T", src)
	}
	if len(data) == 0 {
		*p = CapacityPolicy{}
		return nil
	}
	policy := CapacityPolicy{}
	if err := json.Unmarshal(data, &policy); err != nil {
		return err
	}
	*p = policy
	return nil
}

// Event is a volunteer-staffed occasion owned by an organizer.
type Event struct {
	ID             string         `db:"id" json:"id"`
	Title          string         `db:"title" json:"title"`
	Description    string         `db:"description" json:"description"`
	Location       string         `db:"location" json:"location"`
	StartsAt       time.Time      `db:"starts_at" json:"starts_at"`
	OrganizerID    string         `db:"organizer_id" json:"organizer_id"`
	CapacityPolicy CapacityPolicy `db:"capacity_policy" json:"capacity_policy"`
	Status         EventStatus    `db:"status" json:"status"`
	CreatedAt      time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at" json:"updated_at"`
}

// EventFilter narrows event listings.
type EventFilter struct {
	OrganizerID string
	Status      EventStatus
	Search      string
	Page        int
	PageSize    int
}
