package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/confera/attendance/internal/model"
)

// EventRepo reads catalog events and toggles their registration window.
// Everything else about an event is owned by the catalog subsystem.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns an EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

// DB exposes the underlying pool so callers can begin transactions.
func (r *EventRepo) DB() *sql.DB { return r.db }

const eventColumns = `id, title, event_date, registration_open, registration_deadline,
	   capacity, price_amount, price_currency, created_at, updated_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*model.Event, error) {
	var (
		ev       model.Event
		deadline sql.NullTime
		capacity sql.NullInt64
		amount   decimal.NullDecimal
		currency sql.NullString
	)
	err := row.Scan(
		&ev.ID, &ev.Title, &ev.EventDate, &ev.RegistrationOpen, &deadline,
		&capacity, &amount, &currency, &ev.CreatedAt, &ev.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if deadline.Valid {
		d := deadline.Time.UTC()
		ev.RegistrationDeadline = &d
	}
	// NULL and the legacy 0 sentinel both mean "unlimited"; the model
	// carries that as a nil capacity so nothing downstream compares
	// against zero.  A negative value is corrupt data and fails safe to
	// a full event rather than unlimited admission.
	switch {
	case capacity.Valid && capacity.Int64 > 0:
		c := capacity.Int64
		ev.Capacity = &c
	case capacity.Valid && capacity.Int64 < 0:
		c := int64(0)
		ev.Capacity = &c
	}
	if amount.Valid && currency.Valid && amount.Decimal.IsPositive() {
		ev.Pricing = &model.Pricing{Amount: amount.Decimal, Currency: currency.String}
	}
	return &ev, nil
}

// GetByID returns a single event or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	ev, err := scanEvent(r.db.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return ev, nil
}

// GetForUpdateTx loads the event row under an exclusive row lock.  The
// lock is held until the enclosing transaction resolves, serialising
// concurrent admission and promotion decisions for the same event.
func (r *EventRepo) GetForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = ? FOR UPDATE`
	ev, err := scanEvent(tx.QueryRowContext(ctx, q, id))
	if err == sql.ErrNoRows {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lock event row: %w", err)
	}
	return ev, nil
}

// SetRegistrationOpenTx flips the registration window flag.
func (r *EventRepo) SetRegistrationOpenTx(ctx context.Context, tx *sql.Tx, id uint64, open bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE events SET registration_open = ? WHERE id = ?`, open, id)
	if err != nil {
		return fmt.Errorf("set registration window: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// The flag may already hold the requested value; distinguish a
		// genuine miss with a cheap existence probe.
		var one int
		if err := tx.QueryRowContext(ctx, `SELECT 1 FROM events WHERE id = ?`, id).Scan(&one); err == sql.ErrNoRows {
			return ErrEventNotFound
		}
	}
	return nil
}

// ListOpenIDs returns the IDs of all events currently accepting
// registrations.  The scheduler's waitlist sweep iterates this set.
func (r *EventRepo) ListOpenIDs(ctx context.Context) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM events WHERE registration_open = TRUE`)
	if err != nil {
		return nil, fmt.Errorf("list open events: %w", err)
	}
	defer rows.Close()
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListUpcomingOpen returns open events whose date falls inside
// [from, to].  Used by the reminder sweep.
func (r *EventRepo) ListUpcomingOpen(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	q := `SELECT ` + eventColumns + `
		  FROM events
		  WHERE registration_open = TRUE AND event_date >= ? AND event_date <= ?
		  ORDER BY event_date ASC`
	rows, err := r.db.QueryContext(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("list upcoming events: %w", err)
	}
	defer rows.Close()
	var events []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}
