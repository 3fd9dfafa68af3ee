package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/confera/attendance/internal/model"
	"github.com/confera/attendance/internal/repository"
)

// MySQL implements Store over the repository layer.
type MySQL struct {
	db         *sql.DB
	events     *repository.EventRepo
	regs       *repository.RegistrationRepo
	waitlist   *repository.WaitlistRepo
	attendance *repository.AttendanceRepo
	penalties  *repository.PenaltyRepo
	payments   *repository.PaymentRepo
}

// NewMySQL binds the repositories to one database pool.
func NewMySQL(db *sql.DB) *MySQL {
	return &MySQL{
		db:         db,
		events:     repository.NewEventRepo(db),
		regs:       repository.NewRegistrationRepo(db),
		waitlist:   repository.NewWaitlistRepo(db),
		attendance: repository.NewAttendanceRepo(db),
		penalties:  repository.NewPenaltyRepo(db),
		payments:   repository.NewPaymentRepo(db),
	}
}

// Within begins a transaction, runs fn and commits only when fn
// returns nil.  Any other outcome, including a panic, rolls back.
func (s *MySQL) Within(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(&mysqlTx{s: s, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func (s *MySQL) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	return s.events.GetByID(ctx, id)
}

func (s *MySQL) ListOpenEventIDs(ctx context.Context) ([]uint64, error) {
	return s.events.ListOpenIDs(ctx)
}

func (s *MySQL) ListUpcomingOpen(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	return s.events.ListUpcomingOpen(ctx, from, to)
}

func (s *MySQL) ListRegistrations(ctx context.Context, eventID uint64) ([]model.Registration, error) {
	return s.regs.ListByEvent(ctx, eventID)
}

func (s *MySQL) ListConfirmed(ctx context.Context, eventID uint64) ([]model.Registration, error) {
	return s.regs.ListConfirmed(ctx, eventID)
}

func (s *MySQL) ListWaitlist(ctx context.Context, eventID uint64) ([]model.WaitlistEntry, error) {
	return s.waitlist.ListByEvent(ctx, eventID)
}

func (s *MySQL) ListAttendance(ctx context.Context, eventID uint64) ([]model.AttendanceView, error) {
	return s.attendance.ListByEvent(ctx, eventID)
}

// mysqlTx adapts the repository ...Tx methods to the Tx interface.
type mysqlTx struct {
	s  *MySQL
	tx *sql.Tx
}

func (t *mysqlTx) EventForUpdate(ctx context.Context, id uint64) (*model.Event, error) {
	return t.s.events.GetForUpdateTx(ctx, t.tx, id)
}

func (t *mysqlTx) SetRegistrationOpen(ctx context.Context, id uint64, open bool) error {
	return t.s.events.SetRegistrationOpenTx(ctx, t.tx, id, open)
}

func (t *mysqlTx) CreateRegistration(ctx context.Context, reg *model.Registration) error {
	return t.s.regs.CreateTx(ctx, t.tx, reg)
}

func (t *mysqlTx) Registration(ctx context.Context, eventID, id uint64) (*model.Registration, error) {
	return t.s.regs.GetTx(ctx, t.tx, eventID, id)
}

func (t *mysqlTx) RegistrationByToken(ctx context.Context, token string) (*model.Registration, error) {
	return t.s.regs.GetByTokenTx(ctx, t.tx, token)
}

func (t *mysqlTx) CountActive(ctx context.Context, eventID uint64) (int64, error) {
	return t.s.regs.CountActiveTx(ctx, t.tx, eventID)
}

func (t *mysqlTx) HasActiveRegistration(ctx context.Context, eventID uint64, email string) (bool, error) {
	return t.s.regs.ExistsActiveTx(ctx, t.tx, eventID, email)
}

func (t *mysqlTx) SetRegistrationStatus(ctx context.Context, id uint64, status string) error {
	return t.s.regs.UpdateStatusTx(ctx, t.tx, id, status)
}

func (t *mysqlTx) ListAbsentees(ctx context.Context, eventID uint64) ([]model.Registration, error) {
	return t.s.regs.ListAbsenteesTx(ctx, t.tx, eventID)
}

func (t *mysqlTx) CreateWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error {
	return t.s.waitlist.CreateTx(ctx, t.tx, entry)
}

func (t *mysqlTx) OnWaitlist(ctx context.Context, eventID uint64, email string) (bool, error) {
	return t.s.waitlist.ExistsTx(ctx, t.tx, eventID, email)
}

func (t *mysqlTx) OldestWaitlist(ctx context.Context, eventID uint64, limit int64) ([]model.WaitlistEntry, error) {
	return t.s.waitlist.ListOldestTx(ctx, t.tx, eventID, limit)
}

func (t *mysqlTx) DeleteWaitlistEntry(ctx context.Context, id uint64) error {
	return t.s.waitlist.DeleteTx(ctx, t.tx, id)
}

func (t *mysqlTx) Attendance(ctx context.Context, registrationID uint64) (*model.AttendanceRecord, error) {
	return t.s.attendance.GetByRegistrationTx(ctx, t.tx, registrationID)
}

func (t *mysqlTx) SaveAttendance(ctx context.Context, rec *model.AttendanceRecord) error {
	return t.s.attendance.SaveTx(ctx, t.tx, rec)
}

func (t *mysqlTx) HasActivePenalty(ctx context.Context, email string, now time.Time) (bool, error) {
	return t.s.penalties.HasActiveTx(ctx, t.tx, email, now)
}

func (t *mysqlTx) CreatePenalty(ctx context.Context, p *model.NoShowPenalty) error {
	return t.s.penalties.CreateTx(ctx, t.tx, p)
}

func (t *mysqlTx) PaymentState(ctx context.Context, registrationID uint64) (*model.PaymentState, error) {
	return t.s.payments.GetByRegistrationTx(ctx, t.tx, registrationID)
}

func (t *mysqlTx) CreatePaymentState(ctx context.Context, p *model.PaymentState) error {
	return t.s.payments.CreateTx(ctx, t.tx, p)
}

func (t *mysqlTx) RecordRefund(ctx context.Context, registrationID uint64, status string, refund *model.RefundState) error {
	return t.s.payments.RecordRefundTx(ctx, t.tx, registrationID, status, refund)
}
