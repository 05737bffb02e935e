package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/crewsync-api/internal/models"
	appErrors "github.com/noah-isme/crewsync-api/pkg/errors"
)

const (
	assignmentColumns = `id, volunteer_id, event_id, shift_id, status, placed_at, confirmed_at, checked_in_at, checked_out_at, created_at, updated_at`

	pqUniqueViolation = "23505"
)

// AssignmentRepository is the PostgreSQL relation store for volunteer assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Insert stores a new assignment and returns its identifier. A unique violation on
// (volunteer_id, event_id) is reported as ErrAlreadyJoined.
func (r *AssignmentRepository) Insert(ctx context.Context, assignment *models.Assignment) (string, error) {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now
	if assignment.Status == "" {
		assignment.Status = models.AssignmentStatusAssigned
	}

	query := `INSERT INTO assignments (` + assignmentColumns + `)
		VALUES (:id, :volunteer_id, :event_id, :shift_id, :status, :placed_at, :confirmed_at, :checked_in_at, :checked_out_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return "", appErrors.Wrap(err, appErrors.ErrAlreadyJoined.Code, appErrors.ErrAlreadyJoined.Status, appErrors.ErrAlreadyJoined.Message)
		}
		return "", fmt.Errorf("insert assignment: %w", err)
	}
	return assignment.ID, nil
}

// Update applies a partial patch to an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, id string, patch models.AssignmentPatch) error {
	var sets []string
	var args []interface{}
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.ShiftID != nil {
		set("shift_id", *patch.ShiftID)
		set("placed_at", patch.PlacedAt)
	}
	if patch.Status != nil {
		set("status", *patch.Status)
	}
	if patch.ConfirmedAt != nil {
		set("confirmed_at", *patch.ConfirmedAt)
	}
	if patch.CheckedInAt != nil {
		set("checked_in_at", *patch.CheckedInAt)
	}
	if patch.CheckedOutAt != nil {
		set("checked_out_at", *patch.CheckedOutAt)
	}
	if len(sets) == 0 {
		return nil
	}
	set("updated_at", time.Now().UTC())

	args = append(args, id)
	query := fmt.Sprintf("UPDATE assignments SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an assignment record.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM assignments WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Query returns assignments matching the filter ordered by creation time.
func (r *AssignmentRepository) Query(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, error) {
	where, args := assignmentWhere(filter)
	query := fmt.Sprintf("SELECT %s FROM assignments%s ORDER BY created_at ASC, id ASC", assignmentColumns, where)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, args...); err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	return assignments, nil
}

// Count returns the number of assignments matching the filter.
func (r *AssignmentRepository) Count(ctx context.Context, filter models.AssignmentFilter) (int, error) {
	where, args := assignmentWhere(filter)
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM assignments"+where, args...); err != nil {
		return 0, fmt.Errorf("count assignments: %w", err)
	}
	return count, nil
}

// CountByStatus groups assignments by status. An empty event ID spans all events.
func (r *AssignmentRepository) CountByStatus(ctx context.Context, eventID string) ([]models.StatusCount, error) {
	where, args := assignmentWhere(models.AssignmentFilter{EventID: eventID})
	query := fmt.Sprintf("SELECT status, COUNT(*) AS count FROM assignments%s GROUP BY status ORDER BY status", where)
	var rows []models.StatusCount
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count assignments by status: %w", err)
	}
	return rows, nil
}

func assignmentWhere(filter models.AssignmentFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if filter.EventID != "" {
		conditions = append(conditions, fmt.Sprintf("event_id = $%d", len(args)+1))
		args = append(args, filter.EventID)
	}
	if filter.ShiftID != "" {
		conditions = append(conditions, fmt.Sprintf("shift_id = $%d", len(args)+1))
		args = append(args, filter.ShiftID)
	}
	if filter.VolunteerID != "" {
		conditions = append(conditions, fmt.Sprintf("volunteer_id = $%d", len(args)+1))
		args = append(args, filter.VolunteerID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)+1))
		args = append(args, pq.Array(statuses))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}
