package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/chayanC7mondal/project-sync-sub000/internal/models"
)

// TriggerRepository records which reminder triggers already fired per hearing.
type TriggerRepository struct {
	db *sqlx.DB
}

// NewTriggerRepository constructs the repository.
func NewTriggerRepository(db *sqlx.DB) *TriggerRepository {
	return &TriggerRepository{db: db}
}

// Claim inserts the (hearing, kind) marker. It reports true only for the
// caller that created it.
func (r *TriggerRepository) Claim(ctx context.Context, hearingID string, kind models.TriggerKind) (bool, error) {
	const query = `INSERT INTO hearing_triggers (hearing_session_id, trigger_kind, claimed_at) VALUES ($1, $2, $3)
ON CONFLICT (hearing_session_id, trigger_kind) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, hearingID, kind, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim trigger: %w", err)
	}
	return affected(res)
}

// Release removes a marker so the trigger can fire again.
func (r *TriggerRepository) Release(ctx context.Context, hearingID string, kind models.TriggerKind) error {
	const query = `DELETE FROM hearing_triggers WHERE hearing_session_id = $1 AND trigger_kind = $2`
	if _, err := r.db.ExecContext(ctx, query, hearingID, kind); err != nil {
		return fmt.Errorf("release trigger: %w", err)
	}
	return nil
}
