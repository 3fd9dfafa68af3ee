package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/confera/attendance/internal/model"
)

// WaitlistRepo manages the FIFO waitlist.  created_at (with id as the
// tiebreaker) is the promotion key; entries are only ever deleted in the
// same transaction that creates the promoted registration.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

const waitlistColumns = `id, event_id, attendee_email, attendee_name, created_at`

func scanWaitlistEntry(row rowScanner) (*model.WaitlistEntry, error) {
	var (
		entry model.WaitlistEntry
		name  sql.NullString
	)
	if err := row.Scan(&entry.ID, &entry.EventID, &entry.AttendeeEmail, &name, &entry.CreatedAt); err != nil {
		return nil, err
	}
	entry.AttendeeName = name.String
	return &entry, nil
}

// CreateTx inserts a waitlist entry and populates its generated ID.
func (r *WaitlistRepo) CreateTx(ctx context.Context, tx *sql.Tx, entry *model.WaitlistEntry) error {
	const q = `INSERT INTO waitlist_entries (event_id, attendee_email, attendee_name) VALUES (?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, entry.EventID, entry.AttendeeEmail, nullIfEmpty(entry.AttendeeName))
	if err != nil {
		return fmt.Errorf("insert waitlist entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("waitlist entry id: %w", err)
	}
	entry.ID = uint64(id)
	// Read the row back so CreatedAt reflects the database clock the
	// FIFO ordering is built on.
	const sel = `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE id = ?`
	got, err := scanWaitlistEntry(tx.QueryRowContext(ctx, sel, entry.ID))
	if err != nil {
		return fmt.Errorf("reload waitlist entry: %w", err)
	}
	*entry = *got
	return nil
}

// ExistsTx reports whether the email already queues for the event.
func (r *WaitlistRepo) ExistsTx(ctx context.Context, tx *sql.Tx, eventID uint64, email string) (bool, error) {
	const q = `SELECT 1 FROM waitlist_entries WHERE event_id = ? AND attendee_email = ? LIMIT 1`
	var one int
	err := tx.QueryRowContext(ctx, q, eventID, email).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check waitlist entry: %w", err)
	}
	return true, nil
}

// ListOldestTx returns up to limit entries in strict arrival order.
func (r *WaitlistRepo) ListOldestTx(ctx context.Context, tx *sql.Tx, eventID uint64, limit int64) ([]model.WaitlistEntry, error) {
	q := `SELECT ` + waitlistColumns + `
		  FROM waitlist_entries WHERE event_id = ?
		  ORDER BY created_at ASC, id ASC LIMIT ?`
	rows, err := tx.QueryContext(ctx, q, eventID, limit)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	defer rows.Close()
	entries := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		entry, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// DeleteTx removes a promoted (or withdrawn) entry.
func (r *WaitlistRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM waitlist_entries WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete waitlist entry: %w", err)
	}
	return nil
}

// ListByEvent returns the full queue for display, oldest first.
func (r *WaitlistRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.WaitlistEntry, error) {
	q := `SELECT ` + waitlistColumns + `
		  FROM waitlist_entries WHERE event_id = ?
		  ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	defer rows.Close()
	entries := make([]model.WaitlistEntry, 0)
	for rows.Next() {
		entry, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}
