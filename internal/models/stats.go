package models

import "time"

// EventStats summarises staffing for one event.
type EventStats struct {
	EventID             string    `json:"event_id"`
	TotalVolunteers     int       `json:"total_volunteers"`
	ConfirmedVolunteers int       `json:"confirmed_volunteers"`
	CheckedIn           int       `json:"checked_in"`
	CheckedOut          int       `json:"checked_out"`
	NoShows             int       `json:"no_shows"`
	Unplaced            int       `json:"unplaced"`
	TotalShifts         int       `json:"total_shifts"`
	UpcomingShifts      int       `json:"upcoming_shifts"`
	CompletedShifts     int       `json:"completed_shifts"`
	Capacity            int       `json:"capacity"`
	FillRate            float64   `json:"fill_rate"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// StatusCount is a grouped count row.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Count  int    `db:"count" json:"count"`
}

// AdminSummary aggregates platform wide counters for administrators.
type AdminSummary struct {
	EventsByStatus      map[string]int `json:"events_by_status"`
	AssignmentsByStatus map[string]int `json:"assignments_by_status"`
	Volunteers          int            `json:"volunteers"`
	Organizers          int            `json:"organizers"`
	Assignments         int            `json:"assignments"`
	System              SystemMetrics  `json:"system"`
	GeneratedAt         time.Time      `json:"generated_at"`
}

// SystemMetrics represents process level figures captured from instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	AssignmentOps            uint64    `json:"assignment_ops"`
	AssignmentRejections     uint64    `json:"assignment_rejections"`
	ReconcileRuns            uint64    `json:"reconcile_runs"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
