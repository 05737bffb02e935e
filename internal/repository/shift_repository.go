package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/crewsync-api/internal/models"
)

// ShiftRepository persists event shifts.
type ShiftRepository struct {
	db *sqlx.DB
}

// NewShiftRepository constructs the repository.
func NewShiftRepository(db *sqlx.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

// FindByID returns a shift by identifier.
func (r *ShiftRepository) FindByID(ctx context.Context, id string) (*models.Shift, error) {
	const query = `SELECT id, event_id, title, role, location, starts_at, ends_at, capacity, created_at FROM shifts WHERE id = $1 LIMIT 1`
	var shift models.Shift
	if err := r.db.GetContext(ctx, &shift, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find shift by id: %w", err)
	}
	return &shift, nil
}

// ListByEvent returns the shifts of an event ordered by start time.
func (r *ShiftRepository) ListByEvent(ctx context.Context, eventID string) ([]models.Shift, error) {
	const query = `SELECT id, event_id, title, role, location, starts_at, ends_at, capacity, created_at FROM shifts WHERE event_id = $1 ORDER BY starts_at ASC, title ASC`
	var shifts []models.Shift
	if err := r.db.SelectContext(ctx, &shifts, query, eventID); err != nil {
		return nil, fmt.Errorf("list event shifts: %w", err)
	}
	return shifts, nil
}

// Create inserts a new shift.
func (r *ShiftRepository) Create(ctx context.Context, shift *models.Shift) error {
	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}
	if shift.CreatedAt.IsZero() {
		shift.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO shifts (id, event_id, title, role, location, starts_at, ends_at, capacity, created_at)
		VALUES (:id, :event_id, :title, :role, :location, :starts_at, :ends_at, :capacity, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, shift); err != nil {
		return fmt.Errorf("create shift: %w", err)
	}
	return nil
}
