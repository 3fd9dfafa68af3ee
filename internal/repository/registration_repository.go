package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/confera/attendance/internal/model"
)

// RegistrationRepo provides CRUD operations for registrations.  Rows
// carry the opaque check-in token, its QR rendering and a free-form
// metadata blob; the typed payment state lives in its own table (see
// PaymentRepo).  All timestamps are stored in UTC.
type RegistrationRepo struct {
	db *sql.DB
}

// NewRegistrationRepo returns a RegistrationRepo bound to the given database.
func NewRegistrationRepo(db *sql.DB) *RegistrationRepo { return &RegistrationRepo{db: db} }

const registrationColumns = `id, event_id, attendee_email, attendee_name, status,
	   check_in_token, qr_code_data, metadata, created_at, updated_at`

func scanRegistration(row rowScanner) (*model.Registration, error) {
	var (
		reg  model.Registration
		name sql.NullString
		qr   sql.NullString
		meta sql.NullString
	)
	err := row.Scan(
		&reg.ID, &reg.EventID, &reg.AttendeeEmail, &name, &reg.Status,
		&reg.CheckInToken, &qr, &meta, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	reg.AttendeeName = name.String
	reg.QRCodeData = qr.String
	if meta.Valid && meta.String != "" {
		// A corrupt blob is not worth failing a read over; the metadata
		// is client-supplied and informational.
		_ = json.Unmarshal([]byte(meta.String), &reg.Metadata)
	}
	return &reg, nil
}

// CreateTx inserts a new registration within an existing transaction and
// populates the generated ID and timestamps on the provided record.
func (r *RegistrationRepo) CreateTx(ctx context.Context, tx *sql.Tx, reg *model.Registration) error {
	var meta any
	if len(reg.Metadata) > 0 {
		b, err := json.Marshal(reg.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata: %w", err)
		}
		meta = string(b)
	}
	const q = `INSERT INTO registrations
			   (event_id, attendee_email, attendee_name, status, check_in_token, qr_code_data, metadata)
			   VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q,
		reg.EventID, reg.AttendeeEmail, nullIfEmpty(reg.AttendeeName),
		reg.Status, reg.CheckInToken, nullIfEmpty(reg.QRCodeData), meta,
	)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("registration id: %w", err)
	}
	reg.ID = uint64(id)
	// Read the timestamps back so the caller serializes the database
	// clock, not the zero time.
	const sel = `SELECT created_at, updated_at FROM registrations WHERE id = ?`
	if err := tx.QueryRowContext(ctx, sel, reg.ID).Scan(&reg.CreatedAt, &reg.UpdatedAt); err != nil {
		return fmt.Errorf("reload registration: %w", err)
	}
	return nil
}

// GetTx returns a registration by event and ID, or ErrRegistrationNotFound.
func (r *RegistrationRepo) GetTx(ctx context.Context, tx *sql.Tx, eventID, id uint64) (*model.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = ? AND event_id = ?`
	reg, err := scanRegistration(tx.QueryRowContext(ctx, q, id, eventID))
	if err == sql.ErrNoRows {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

// GetByTokenTx looks a registration up by its check-in token.
func (r *RegistrationRepo) GetByTokenTx(ctx context.Context, tx *sql.Tx, token string) (*model.Registration, error) {
	q := `SELECT ` + registrationColumns + ` FROM registrations WHERE check_in_token = ?`
	reg, err := scanRegistration(tx.QueryRowContext(ctx, q, token))
	if err == sql.ErrNoRows {
		return nil, ErrRegistrationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get registration by token: %w", err)
	}
	return reg, nil
}

// CountActiveTx counts confirmed and checked-in registrations for an
// event.  The caller must hold the event row lock when the count feeds
// a capacity decision.
func (r *RegistrationRepo) CountActiveTx(ctx context.Context, tx *sql.Tx, eventID uint64) (int64, error) {
	const q = `SELECT COUNT(*) FROM registrations
			   WHERE event_id = ? AND status IN (?, ?)`
	var n int64
	err := tx.QueryRowContext(ctx, q, eventID, model.StatusConfirmed, model.StatusCheckedIn).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return n, nil
}

// ExistsActiveTx reports whether the email already holds a non-cancelled
// registration for the event.
func (r *RegistrationRepo) ExistsActiveTx(ctx context.Context, tx *sql.Tx, eventID uint64, email string) (bool, error) {
	const q = `SELECT 1 FROM registrations
			   WHERE event_id = ? AND attendee_email = ? AND status != ? LIMIT 1`
	var one int
	err := tx.QueryRowContext(ctx, q, eventID, email, model.StatusCancelled).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check duplicate registration: %w", err)
	}
	return true, nil
}

// UpdateStatusTx transitions a registration's status.
func (r *RegistrationRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx, `UPDATE registrations SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	return nil
}

// ListByEvent returns all registrations for an event in creation order.
func (r *RegistrationRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.Registration, error) {
	q := `SELECT ` + registrationColumns + `
		  FROM registrations WHERE event_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()
	regs := make([]model.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// ListConfirmed returns confirmed registrations for an event.  Feeds
// the reminder sweep.
func (r *RegistrationRepo) ListConfirmed(ctx context.Context, eventID uint64) ([]model.Registration, error) {
	q := `SELECT ` + registrationColumns + `
		  FROM registrations WHERE event_id = ? AND status = ? ORDER BY created_at ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, eventID, model.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("list confirmed registrations: %w", err)
	}
	defer rows.Close()
	regs := make([]model.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// ListAbsenteesTx returns confirmed registrations with no attendance
// record, i.e. the candidates for the no-show sweep.
func (r *RegistrationRepo) ListAbsenteesTx(ctx context.Context, tx *sql.Tx, eventID uint64) ([]model.Registration, error) {
	q := `SELECT ` + registrationColumns + `
		  FROM registrations r
		  WHERE r.event_id = ? AND r.status = ?
			AND NOT EXISTS (SELECT 1 FROM attendance_records a WHERE a.registration_id = r.id)
		  ORDER BY r.id ASC`
	rows, err := tx.QueryContext(ctx, q, eventID, model.StatusConfirmed)
	if err != nil {
		return nil, fmt.Errorf("list absentees: %w", err)
	}
	defer rows.Close()
	regs := make([]model.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		regs = append(regs, *reg)
	}
	return regs, rows.Err()
}

// nullIfEmpty maps an empty string to SQL NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
