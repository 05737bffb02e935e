package models

import "time"

// Shift is a bounded time, location and role slot within an event.
type Shift struct {
	ID        string    `db:"id" json:"id"`
	EventID   string    `db:"event_id" json:"event_id"`
	Title     string    `db:"title" json:"title"`
	Role      string    `db:"role" json:"role"`
	Location  string    `db:"location" json:"location"`
	StartsAt  time.Time `db:"starts_at" json:"starts_at"`
	EndsAt    time.Time `db:"ends_at" json:"ends_at"`
	Capacity  int       `db:"capacity" json:"capacity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Upcoming reports whether the shift has not started yet at the given instant.
func (s Shift) Upcoming(now time.Time) bool {
	return s.StartsAt.After(now)
}

// Finished reports whether the shift window has closed.
func (s Shift) Finished(now time.Time) bool {
	return !s.EndsAt.After(now)
}
