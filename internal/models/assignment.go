package models

import "time"

// AssignmentStatus enumerates the volunteer attendance lifecycle.
type AssignmentStatus string

const (
	AssignmentStatusAssigned   AssignmentStatus = "assigned"
	AssignmentStatusConfirmed  AssignmentStatus = "confirmed"
	AssignmentStatusCheckedIn  AssignmentStatus = "checked-in"
	AssignmentStatusCheckedOut AssignmentStatus = "checked-out"
	AssignmentStatusNoShow     AssignmentStatus = "no-show"
)

// NonTerminalStatuses lists statuses that count towards occupancy.
var NonTerminalStatuses = []AssignmentStatus{
	AssignmentStatusAssigned,
	AssignmentStatusConfirmed,
	AssignmentStatusCheckedIn,
}

// Valid reports whether s is a known status.
func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentStatusAssigned, AssignmentStatusConfirmed, AssignmentStatusCheckedIn,
		AssignmentStatusCheckedOut, AssignmentStatusNoShow:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s AssignmentStatus) Terminal() bool {
	return s == AssignmentStatusCheckedOut || s == AssignmentStatusNoShow
}

// Progress ranks how far along the lifecycle a status is.
func (s AssignmentStatus) Progress() int {
	switch s {
	case AssignmentStatusConfirmed:
		return 1
	case AssignmentStatusCheckedIn:
		return 2
	case AssignmentStatusCheckedOut, AssignmentStatusNoShow:
		return 3
	}
	return 0
}

// CanTransitionTo reports whether next is the single forward step allowed from s.
func (s AssignmentStatus) CanTransitionTo(next AssignmentStatus) bool {
	switch s {
	case AssignmentStatusAssigned:
		return next == AssignmentStatusConfirmed || next == AssignmentStatusNoShow
	case AssignmentStatusConfirmed:
		return next == AssignmentStatusCheckedIn || next == AssignmentStatusNoShow
	case AssignmentStatusCheckedIn:
		return next == AssignmentStatusCheckedOut
	}
	return false
}

// Assignment links a volunteer to an event and optionally to one shift.
// An empty ShiftID means the volunteer joined but is not placed yet.
type Assignment struct {
	ID           string           `db:"id" json:"id" bson:"_id"`
	VolunteerID  string           `db:"volunteer_id" json:"volunteer_id" bson:"volunteer_id"`
	EventID      string           `db:"event_id" json:"event_id" bson:"event_id"`
	ShiftID      string           `db:"shift_id" json:"shift_id" bson:"shift_id"`
	Status       AssignmentStatus `db:"status" json:"status" bson:"status"`
	PlacedAt     *time.Time       `db:"placed_at" json:"placed_at,omitempty" bson:"placed_at,omitempty"`
	ConfirmedAt  *time.Time       `db:"confirmed_at" json:"confirmed_at,omitempty" bson:"confirmed_at,omitempty"`
	CheckedInAt  *time.Time       `db:"checked_in_at" json:"checked_in_at,omitempty" bson:"checked_in_at,omitempty"`
	CheckedOutAt *time.Time       `db:"checked_out_at" json:"checked_out_at,omitempty" bson:"checked_out_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at" bson:"updated_at"`
}

// Placed reports whether the assignment holds a shift placement.
func (a Assignment) Placed() bool {
	return a.ShiftID != ""
}

// AssignmentFilter narrows relation store queries. Empty fields are ignored.
type AssignmentFilter struct {
	EventID     string
	ShiftID     string
	VolunteerID string
	Statuses    []AssignmentStatus
}

// AssignmentPatch lists the fields to change on an assignment. Nil fields are untouched.
// PlacedAt is written whenever ShiftID is set, so clearing a placement clears its timestamp.
type AssignmentPatch struct {
	ShiftID      *string
	PlacedAt     *time.Time
	Status       *AssignmentStatus
	ConfirmedAt  *time.Time
	CheckedInAt  *time.Time
	CheckedOutAt *time.Time
}

// Empty reports whether the patch changes nothing.
func (p AssignmentPatch) Empty() bool {
	return p.ShiftID == nil && p.Status == nil && p.ConfirmedAt == nil && p.CheckedInAt == nil && p.CheckedOutAt == nil
}

// Apply copies the patch onto a record.
func (p AssignmentPatch) Apply(a *Assignment) {
	if p.ShiftID != nil {
		a.ShiftID = *p.ShiftID
		a.PlacedAt = p.PlacedAt
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.ConfirmedAt != nil {
		a.ConfirmedAt = p.ConfirmedAt
	}
	if p.CheckedInAt != nil {
		a.CheckedInAt = p.CheckedInAt
	}
	if p.CheckedOutAt != nil {
		a.CheckedOutAt = p.CheckedOutAt
	}
}

// DuplicateGroup describes several records held for one volunteer in one event.
type DuplicateGroup struct {
	VolunteerID string       `json:"volunteer_id"`
	Keep        Assignment   `json:"keep"`
	Remove      []Assignment `json:"remove"`
	Ambiguous   bool         `json:"ambiguous"`
}

// OverCapacity describes a shift, or a role across shifts when ShiftID is empty, holding
// more non-terminal placements than it allows.
type OverCapacity struct {
	ShiftID  string       `json:"shift_id,omitempty"`
	Role     string       `json:"role,omitempty"`
	Capacity int          `json:"capacity"`
	Occupied int          `json:"occupied"`
	Release  []Assignment `json:"release"`
}

// ReconcileReport summarises a cleanup run for one event.
type ReconcileReport struct {
	EventID         string   `json:"event_id"`
	DuplicateGroups int      `json:"duplicate_groups"`
	Removed         int      `json:"removed"`
	Ambiguous       []string `json:"ambiguous,omitempty"`
	OverCapacity    int      `json:"over_capacity"`
	Unplaced        int      `json:"unplaced"`
	Trimmed         int      `json:"trimmed"`
}

// Merge folds another report into r.
func (r *ReconcileReport) Merge(other ReconcileReport) {
	r.DuplicateGroups += other.DuplicateGroups
	r.Removed += other.Removed
	r.Ambiguous = append(r.Ambiguous, other.Ambiguous...)
	r.OverCapacity += other.OverCapacity
	r.Unplaced += other.Unplaced
	r.Trimmed += other.Trimmed
}

// OrganizerReconcileReport aggregates cleanup over all events of an organizer.
type OrganizerReconcileReport struct {
	OrganizerID string            `json:"organizer_id"`
	Events      []ReconcileReport `json:"events"`
	Total       ReconcileReport   `json:"total"`
}

// ShiftOccupancy is the live placement count of one shift.
type ShiftOccupancy struct {
	ShiftID   string `json:"shift_id"`
	Role      string `json:"role,omitempty"`
	Capacity  int    `json:"capacity"`
	Occupied  int    `json:"occupied"`
	Available int    `json:"available"`
}

// EventOccupancy is the live volunteer count of one event. Capacity zero means unlimited.
type EventOccupancy struct {
	EventID  string           `json:"event_id"`
	Capacity int              `json:"capacity"`
	Occupied int              `json:"occupied"`
	Unplaced int              `json:"unplaced"`
	Roles    map[string]int   `json:"roles,omitempty"`
	Shifts   []ShiftOccupancy `json:"shifts"`
}
