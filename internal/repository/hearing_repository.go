package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
	"github.com/chayanC7mondal/project-sync-sub000/pkg/database"
)

// ErrDuplicateHearing is returned when a case already has a hearing on the date.
var ErrDuplicateHearing = errors.New("hearing already scheduled for case and date")

const uniqueViolation = "23505"

const hearingColumns = `id, case_id, hearing_date, hearing_time, court_name, location, qr_code, manual_code, status, created_by, created_at, updated_at`

// HearingRepository persists hearing sessions.
type HearingRepository struct {
	db *sqlx.DB
}

// NewHearingRepository constructs the repository.
func NewHearingRepository(db *sqlx.DB) *HearingRepository {
	return &HearingRepository{db: db}
}

// CreateWithRoster inserts the hearing and its pending roster in one transaction.
func (r *HearingRepository) CreateWithRoster(ctx context.Context, hearing *models.HearingSession, roster []models.AttendanceRecord) error {
	now := time.Now().UTC()
	if hearing.ID == "" {
		hearing.ID = uuid.NewString()
	}
	if hearing.Status == "" {
		hearing.Status = models.HearingStatusScheduled
	}
	hearing.CreatedAt, hearing.UpdatedAt = now, now

	for i := range roster {
		if roster[i].ID == "" {
			roster[i].ID = uuid.NewString()
		}
		roster[i].HearingSessionID = hearing.ID
		roster[i].Status = models.AttendanceStatusPending
		roster[i].Method = models.AttendanceMethodUnset
		roster[i].CreatedAt, roster[i].UpdatedAt = now, now
	}

	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		const insertHearing = `INSERT INTO hearing_sessions (` + hearingColumns + `)
VALUES (:id, :case_id, :hearing_date, :hearing_time, :court_name, :location, :qr_code, :manual_code, :status, :created_by, :created_at, :updated_at)`
		if _, err := tx.NamedExecContext(ctx, insertHearing, hearing); err != nil {
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
				return ErrDuplicateHearing
			}
			return fmt.Errorf("insert hearing session: %w", err)
		}
		const insertRecord = `INSERT INTO attendance_records (id, hearing_session_id, attendee_id, attendee_name, attendee_role, status, method, created_at, updated_at)
VALUES (:id, :hearing_session_id, :attendee_id, :attendee_name, :attendee_role, :status, :method, :created_at, :updated_at)`
		for i := range roster {
			if _, err := tx.NamedExecContext(ctx, insertRecord, &roster[i]); err != nil {
				return fmt.Errorf("insert attendance record: %w", err)
			}
		}
		return nil
	})
}

// GetByID returns a hearing session by identifier.
func (r *HearingRepository) GetByID(ctx context.Context, id string) (*models.HearingSession, error) {
	const query = `SELECT ` + hearingColumns + ` FROM hearing_sessions WHERE id = $1`
	var hearing models.HearingSession
	if err := r.db.GetContext(ctx, &hearing, query, id); err != nil {
		return nil, err
	}
	return &hearing, nil
}

// FindByCaseAndDate resolves the hearing of a case on a given date.
func (r *HearingRepository) FindByCaseAndDate(ctx context.Context, caseID string, date time.Time) (*models.HearingSession, error) {
	const query = `SELECT ` + hearingColumns + ` FROM hearing_sessions WHERE case_id = $1 AND hearing_date = $2`
	var hearing models.HearingSession
	if err := r.db.GetContext(ctx, &hearing, query, caseID, date.Format("2006-01-02")); err != nil {
		return nil, err
	}
	return &hearing, nil
}

// FindNearestOpen returns the open hearing of a case closest to the given day.
// Ties prefer the upcoming hearing.
func (r *HearingRepository) FindNearestOpen(ctx context.Context, caseID string, day time.Time) (*models.HearingSession, error) {
	const query = `SELECT ` + hearingColumns + ` FROM hearing_sessions
WHERE case_id = $1 AND status IN ('scheduled', 'in_progress')
ORDER BY ABS(hearing_date - $2::date) ASC, hearing_date DESC
LIMIT 1`
	var hearing models.HearingSession
	if err := r.db.GetContext(ctx, &hearing, query, caseID, day.Format("2006-01-02")); err != nil {
		return nil, err
	}
	return &hearing, nil
}

// ListOpenBetween lists open hearings dated within [from, to].
func (r *HearingRepository) ListOpenBetween(ctx context.Context, from, to time.Time) ([]models.HearingSession, error) {
	const query = `SELECT ` + hearingColumns + ` FROM hearing_sessions
WHERE status IN ('scheduled', 'in_progress') AND hearing_date BETWEEN $1 AND $2
ORDER BY hearing_date ASC, hearing_time ASC`
	var hearings []models.HearingSession
	if err := r.db.SelectContext(ctx, &hearings, query, from.Format("2006-01-02"), to.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list open hearings: %w", err)
	}
	return hearings, nil
}

// ListWithPendingBefore lists non-cancelled hearings dated before day that
// still have pending roster records.
func (r *HearingRepository) ListWithPendingBefore(ctx context.Context, day time.Time) ([]models.HearingSession, error) {
	const query = `SELECT ` + hearingColumns + ` FROM hearing_sessions h
WHERE h.status <> 'cancelled' AND h.hearing_date < $1
AND EXISTS (SELECT 1 FROM attendance_records ar WHERE ar.hearing_session_id = h.id AND ar.status = 'pending')
ORDER BY h.hearing_date ASC`
	var hearings []models.HearingSession
	if err := r.db.SelectContext(ctx, &hearings, query, day.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("list hearings pending sweep: %w", err)
	}
	return hearings, nil
}

// NextForCase returns the next non-cancelled hearing of a case after day.
func (r *HearingRepository) NextForCase(ctx context.Context, caseID string, day time.Time) (*models.HearingSession, error) {
	const query = `SELECT ` + hearingColumns + ` FROM hearing_sessions
WHERE case_id = $1 AND hearing_date > $2 AND status <> 'cancelled'
ORDER BY hearing_date ASC LIMIT 1`
	var hearing models.HearingSession
	if err := r.db.GetContext(ctx, &hearing, query, caseID, day.Format("2006-01-02")); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("next hearing for case: %w", err)
	}
	return &hearing, nil
}

// TransitionStatus moves a hearing from one status to another. It reports
// false when the hearing was not in the expected status.
func (r *HearingRepository) TransitionStatus(ctx context.Context, id string, from, to models.HearingStatus) (bool, error) {
	const query = `UPDATE hearing_sessions SET status = $1, updated_at = $2 WHERE id = $3 AND status = $4`
	res, err := r.db.ExecContext(ctx, query, to, time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update hearing status: %w", err)
	}
	return affected(res)
}

// CompleteIfOpen closes a hearing that is still scheduled or in progress.
func (r *HearingRepository) CompleteIfOpen(ctx context.Context, id string) (bool, error) {
	const query = `UPDATE hearing_sessions SET status = 'completed', updated_at = $1
WHERE id = $2 AND status IN ('scheduled', 'in_progress')`
	res, err := r.db.ExecContext(ctx, query, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("complete hearing: %w", err)
	}
	return affected(res)
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
