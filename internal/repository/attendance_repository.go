package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/confera/attendance/internal/model"
)

// AttendanceRepo stores check-in records, one per registration.
type AttendanceRepo struct {
	db *sql.DB
}

// NewAttendanceRepo returns an AttendanceRepo bound to the given database.
func NewAttendanceRepo(db *sql.DB) *AttendanceRepo { return &AttendanceRepo{db: db} }

// GetByRegistrationTx returns the attendance record for a registration,
// or nil when the attendee never checked in.
func (r *AttendanceRepo) GetByRegistrationTx(ctx context.Context, tx *sql.Tx, registrationID uint64) (*model.AttendanceRecord, error) {
	const q = `SELECT registration_id, check_in_time, check_in_method, scan_payload
			   FROM attendance_records WHERE registration_id = ?`
	var (
		rec     model.AttendanceRecord
		payload sql.NullString
	)
	err := tx.QueryRowContext(ctx, q, registrationID).Scan(&rec.RegistrationID, &rec.CheckInTime, &rec.CheckInMethod, &payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get attendance record: %w", err)
	}
	if payload.Valid && payload.String != "" {
		_ = json.Unmarshal([]byte(payload.String), &rec.ScanPayload)
	}
	return &rec, nil
}

// SaveTx inserts or replaces the attendance record for a registration.
// registration_id is unique so an upsert keeps check-in idempotent at
// the storage level as well.
func (r *AttendanceRepo) SaveTx(ctx context.Context, tx *sql.Tx, rec *model.AttendanceRecord) error {
	var payload any
	if len(rec.ScanPayload) > 0 {
		b, err := json.Marshal(rec.ScanPayload)
		if err != nil {
			return fmt.Errorf("marshal scan payload: %w", err)
		}
		payload = string(b)
	}
	const q = `INSERT INTO attendance_records (registration_id, check_in_time, check_in_method, scan_payload)
			   VALUES (?, ?, ?, ?)
			   ON DUPLICATE KEY UPDATE
				 check_in_time = VALUES(check_in_time),
				 check_in_method = VALUES(check_in_method),
				 scan_payload = VALUES(scan_payload)`
	if _, err := tx.ExecContext(ctx, q, rec.RegistrationID, rec.CheckInTime, rec.CheckInMethod, payload); err != nil {
		return fmt.Errorf("save attendance record: %w", err)
	}
	return nil
}

// ListByEvent returns the attendance summary for every registration of
// an event, including those that never checked in.
func (r *AttendanceRepo) ListByEvent(ctx context.Context, eventID uint64) ([]model.AttendanceView, error) {
	const q = `SELECT r.id, r.attendee_email, r.status, a.check_in_time, a.check_in_method
			   FROM registrations r
			   LEFT JOIN attendance_records a ON a.registration_id = r.id
			   WHERE r.event_id = ?
			   ORDER BY r.created_at ASC, r.id ASC`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()
	views := make([]model.AttendanceView, 0)
	for rows.Next() {
		var (
			v      model.AttendanceView
			at     sql.NullTime
			method sql.NullString
		)
		if err := rows.Scan(&v.RegistrationID, &v.AttendeeEmail, &v.Status, &at, &method); err != nil {
			return nil, err
		}
		if at.Valid {
			t := at.Time.UTC()
			v.CheckInTime = &t
		}
		if method.Valid {
			m := method.String
			v.CheckInMethod = &m
		}
		views = append(views, v)
	}
	return views, rows.Err()
}
