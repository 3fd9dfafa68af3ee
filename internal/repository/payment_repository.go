package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/confera/attendance/internal/model"
)

// PaymentRepo stores the typed payment state attached to registrations.
// One row per registration, keyed by registration_id.
type PaymentRepo struct {
	db *sql.DB
}

// NewPaymentRepo returns a PaymentRepo bound to the given database.
func NewPaymentRepo(db *sql.DB) *PaymentRepo { return &PaymentRepo{db: db} }

// CreateTx records a capture outcome for a registration.
func (r *PaymentRepo) CreateTx(ctx context.Context, tx *sql.Tx, p *model.PaymentState) error {
	const q = `INSERT INTO payment_states (registration_id, payment_id, status, amount, currency)
			   VALUES (?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q, p.RegistrationID, p.PaymentID, p.Status, p.Amount, p.Currency)
	if err != nil {
		return fmt.Errorf("insert payment state: %w", err)
	}
	return nil
}

// GetByRegistrationTx returns the payment state for a registration, or
// nil when the registration was free.
func (r *PaymentRepo) GetByRegistrationTx(ctx context.Context, tx *sql.Tx, registrationID uint64) (*model.PaymentState, error) {
	const q = `SELECT registration_id, payment_id, status, amount, currency, refund_status, refund_reference
			   FROM payment_states WHERE registration_id = ?`
	var (
		p         model.PaymentState
		refStatus sql.NullString
		refRef    sql.NullString
	)
	err := tx.QueryRowContext(ctx, q, registrationID).Scan(
		&p.RegistrationID, &p.PaymentID, &p.Status, &p.Amount, &p.Currency, &refStatus, &refRef,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment state: %w", err)
	}
	if refStatus.Valid {
		p.Refund = &model.RefundState{Status: refStatus.String, Reference: refRef.String}
	}
	return &p, nil
}

// RecordRefundTx stores the refund outcome and flips the payment status.
func (r *PaymentRepo) RecordRefundTx(ctx context.Context, tx *sql.Tx, registrationID uint64, status string, refund *model.RefundState) error {
	const q = `UPDATE payment_states
			   SET status = ?, refund_status = ?, refund_reference = ?
			   WHERE registration_id = ?`
	var refStatus, refRef any
	if refund != nil {
		refStatus = refund.Status
		refRef = nullIfEmpty(refund.Reference)
	}
	if _, err := tx.ExecContext(ctx, q, status, refStatus, refRef, registrationID); err != nil {
		return fmt.Errorf("record refund: %w", err)
	}
	return nil
}
