package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
)

// AttendeeRepository reads the officer/witness contact directory.
type AttendeeRepository struct {
	db *sqlx.DB
}

// NewAttendeeRepository constructs the repository.
func NewAttendeeRepository(db *sqlx.DB) *AttendeeRepository {
	return &AttendeeRepository{db: db}
}

// GetByID returns one directory entry.
func (r *AttendeeRepository) GetByID(ctx context.Context, id string) (*models.Attendee, error) {
	const query = `SELECT id, full_name, role, phone, email, supervisor_id FROM attendees WHERE id = $1`
	var attendee models.Attendee
	if err := r.db.GetContext(ctx, &attendee, query, id); err != nil {
		return nil, err
	}
	return &attendee, nil
}

// ListByIDs returns the directory entries found for ids.
func (r *AttendeeRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Attendee, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	const query = `SELECT id, full_name, role, phone, email, supervisor_id FROM attendees WHERE id = ANY($1)`
	var attendees []models.Attendee
	if err := r.db.SelectContext(ctx, &attendees, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	return attendees, nil
}
