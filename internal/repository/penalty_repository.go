package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/confera/attendance/internal/model"
)

// PenaltyRepo stores no-show penalties.  Penalties are append-only;
// they block registration while unexpired and are never deleted.
type PenaltyRepo struct {
	db *sql.DB
}

// NewPenaltyRepo returns a PenaltyRepo bound to the given database.
func NewPenaltyRepo(db *sql.DB) *PenaltyRepo { return &PenaltyRepo{db: db} }

// HasActiveTx reports whether the email carries a penalty that is
// permanent (NULL expiry) or expires after now.
func (r *PenaltyRepo) HasActiveTx(ctx context.Context, tx *sql.Tx, email string, now time.Time) (bool, error) {
	const q = `SELECT 1 FROM no_show_penalties
			   WHERE attendee_email = ? AND (expires_at IS NULL OR expires_at > ?)
			   LIMIT 1`
	var one int
	err := tx.QueryRowContext(ctx, q, email, now).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check penalty: %w", err)
	}
	return true, nil
}

// CreateTx inserts a penalty and populates its generated ID.
func (r *PenaltyRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.NoShowPenalty) error {
	const q = `INSERT INTO no_show_penalties (attendee_email, event_id, reason, expires_at)
			   VALUES (?, ?, ?, ?)`
	var expires any
	if p.ExpiresAt != nil {
		expires = *p.ExpiresAt
	}
	res, err := tx.ExecContext(ctx, q, p.AttendeeEmail, p.EventID, p.Reason, expires)
	if err != nil {
		return fmt.Errorf("insert penalty: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("penalty id: %w", err)
	}
	p.ID = uint64(id)
	return nil
}
