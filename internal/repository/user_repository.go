package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/crewsync-api/internal/models"
)

// UserRepository reads users owned by the identity provider.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, full_name, phone, role, active, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindVolunteer returns the directory profile of a volunteer.
func (r *UserRepository) FindVolunteer(ctx context.Context, id string) (*models.VolunteerProfile, error) {
	const query = `SELECT id, full_name, email, phone, active FROM users WHERE id = $1 AND role = $2 LIMIT 1`
	var profile models.VolunteerProfile
	if err := r.db.GetContext(ctx, &profile, query, id, models.RoleVolunteer); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find volunteer: %w", err)
	}
	return &profile, nil
}
