package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
)

const recordColumns = `id, hearing_session_id, attendee_id, attendee_name, attendee_role, status, marked_at, method, latitude, longitude, absence_reason, created_at, updated_at`

// AttendanceRepository persists attendance records. Every status change is a
// conditional update so concurrent writers cannot both succeed.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// MarkPending applies t to the attendee's record only while it is pending.
func (r *AttendanceRepository) MarkPending(ctx context.Context, hearingID, attendeeID string, t models.MarkTransition) (bool, error) {
	var lat, lng *float64
	if t.Location != nil {
		lat, lng = &t.Location.Latitude, &t.Location.Longitude
	}
	const query = `UPDATE attendance_records
SET status = $1, method = $2, marked_at = $3, latitude = $4, longitude = $5, updated_at = $3
WHERE hearing_session_id = $6 AND attendee_id = $7 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, t.Status, t.Method, t.MarkedAt, lat, lng, hearingID, attendeeID)
	if err != nil {
		return false, fmt.Errorf("mark attendance: %w", err)
	}
	return affected(res)
}

// OverridePending applies t to a record by id only while it is pending.
func (r *AttendanceRepository) OverridePending(ctx context.Context, id string, t models.MarkTransition) (bool, error) {
	const query = `UPDATE attendance_records
SET status = $1, method = $2, marked_at = $3, updated_at = $3
WHERE id = $4 AND status = 'pending'`
	res, err := r.db.ExecContext(ctx, query, t.Status, t.Method, t.MarkedAt, id)
	if err != nil {
		return false, fmt.Errorf("override attendance: %w", err)
	}
	return affected(res)
}

// GetByHearingAndAttendee returns the roster record of an attendee.
func (r *AttendanceRepository) GetByHearingAndAttendee(ctx context.Context, hearingID, attendeeID string) (*models.AttendanceRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM attendance_records WHERE hearing_session_id = $1 AND attendee_id = $2`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, hearingID, attendeeID); err != nil {
		return nil, err
	}
	return &record, nil
}

// GetByID returns an attendance record by identifier.
func (r *AttendanceRepository) GetByID(ctx context.Context, id string) (*models.AttendanceRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM attendance_records WHERE id = $1`
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, id); err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByHearing returns the full roster of a hearing.
func (r *AttendanceRepository) ListByHearing(ctx context.Context, hearingID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM attendance_records
WHERE hearing_session_id = $1 ORDER BY attendee_role ASC, attendee_name ASC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, hearingID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}

// SweepPending moves every pending record of a hearing to absent and returns
// exactly the records this call changed.
func (r *AttendanceRepository) SweepPending(ctx context.Context, hearingID string, at time.Time) ([]models.AbsentAttendee, error) {
	const query = `UPDATE attendance_records SET status = 'absent', updated_at = $1
WHERE hearing_session_id = $2 AND status = 'pending'
RETURNING id, attendee_id, attendee_name, attendee_role`
	var absent []models.AbsentAttendee
	if err := r.db.SelectContext(ctx, &absent, query, at, hearingID); err != nil {
		return nil, fmt.Errorf("sweep pending attendance: %w", err)
	}
	return absent, nil
}

// SetAbsenceReason stores a reason on an absent record owned by attendeeID.
func (r *AttendanceRepository) SetAbsenceReason(ctx context.Context, id, attendeeID, reason string) (bool, error) {
	const query = `UPDATE attendance_records SET absence_reason = $1, updated_at = $2
WHERE id = $3 AND attendee_id = $4 AND status = 'absent'`
	res, err := r.db.ExecContext(ctx, query, reason, time.Now().UTC(), id, attendeeID)
	if err != nil {
		return false, fmt.Errorf("set absence reason: %w", err)
	}
	return affected(res)
}

// RecentOutcomes lists the settled statuses of an attendee, newest hearing first.
func (r *AttendanceRepository) RecentOutcomes(ctx context.Context, attendeeID string, limit int) ([]models.AttendanceStatus, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ar.status FROM attendance_records ar
JOIN hearing_sessions h ON h.id = ar.hearing_session_id
WHERE ar.attendee_id = $1 AND ar.status <> 'pending' AND h.status <> 'cancelled'
ORDER BY h.hearing_date DESC LIMIT $2`
	var statuses []models.AttendanceStatus
	if err := r.db.SelectContext(ctx, &statuses, query, attendeeID, limit); err != nil {
		return nil, fmt.Errorf("list recent attendance outcomes: %w", err)
	}
	return statuses, nil
}
