package dto

// VolunteerRequest names the volunteer an organizer acts on. Volunteers may omit it.
type VolunteerRequest struct {
	VolunteerID string `json:"volunteer_id"`
}

// TransitionRequest moves an assignment to the next lifecycle status.
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}

// LeaveResponse reports how many records a leave removed.
type LeaveResponse struct {
	Removed int `json:"removed"`
}

// ReconcileAccepted is returned when a reconcile was queued instead of run inline.
type ReconcileAccepted struct {
	EventID string `json:"event_id"`
	Queued  bool   `json:"queued"`
}
