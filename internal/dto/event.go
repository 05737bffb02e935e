package dto

import "time"

// CreateEventRequest defines the payload for creating an event.
type CreateEventRequest struct {
	Title          string         `json:"title" validate:"required,max=200"`
	Description    string         `json:"description" validate:"max=4000"`
	Location       string         `json:"location" validate:"max=255"`
	StartsAt       time.Time      `json:"starts_at" validate:"required"`
	OrganizerID    string         `json:"organizer_id,omitempty"`
	CapacityPolicy map[string]int `json:"capacity_policy" validate:"omitempty,dive,keys,required,max=64,endkeys,gte=1"`
	Status         string         `json:"status,omitempty" validate:"omitempty,oneof=draft active"`
}

// UpdateEventStatusRequest moves an event through its lifecycle.
type UpdateEventStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft active completed archived"`
}

// CreateShiftRequest defines the payload for adding a shift to an event.
type CreateShiftRequest struct {
	Title    string    `json:"title" validate:"required,max=200"`
	Role     string    `json:"role" validate:"max=64"`
	Location string    `json:"location" validate:"max=255"`
	StartsAt time.Time `json:"starts_at" validate:"required"`
	EndsAt   time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Capacity int       `json:"capacity" validate:"required,gte=1"`
}

// EventListQuery carries list filters parsed from the query string.
type EventListQuery struct {
	OrganizerID string `form:"organizer_id"`
	Status      string `form:"status" validate:"omitempty,oneof=draft active completed archived"`
	Search      string `form:"q"`
	Page        int    `form:"page"`
	PageSize    int    `form:"page_size"`
}
