// Package store is the unit-of-work seam between the orchestration
// engine and persistence.  A Store hands out read views and runs write
// sequences inside Within, giving each public operation exactly one
// transaction: every write either commits with the operation or rolls
// back with it.
package store

import (
	"context"
	"time"

	"github.com/confera/attendance/internal/model"
)

// Store exposes non-transactional reads plus Within for transactional
// work.  The MySQL implementation binds the repository layer; tests use
// the Memory implementation.
type Store interface {
	// Within runs fn inside a single transaction.  A non-nil error
	// from fn rolls back everything fn wrote and is returned as-is.
	Within(ctx context.Context, fn func(tx Tx) error) error

	GetEvent(ctx context.Context, id uint64) (*model.Event, error)
	ListOpenEventIDs(ctx context.Context) ([]uint64, error)
	ListUpcomingOpen(ctx context.Context, from, to time.Time) ([]model.Event, error)
	ListRegistrations(ctx context.Context, eventID uint64) ([]model.Registration, error)
	ListConfirmed(ctx context.Context, eventID uint64) ([]model.Registration, error)
	ListWaitlist(ctx context.Context, eventID uint64) ([]model.WaitlistEntry, error)
	ListAttendance(ctx context.Context, eventID uint64) ([]model.AttendanceView, error)
}

// Tx is the transactional view handed to Within callbacks.  Lookup
// methods return the repository sentinel errors on missing rows.
type Tx interface {
	// EventForUpdate loads the event under an exclusive lock held
	// until the transaction resolves.  Admission and promotion take
	// this lock for the whole capacity decision.
	EventForUpdate(ctx context.Context, id uint64) (*model.Event, error)
	SetRegistrationOpen(ctx context.Context, id uint64, open bool) error

	CreateRegistration(ctx context.Context, reg *model.Registration) error
	Registration(ctx context.Context, eventID, id uint64) (*model.Registration, error)
	RegistrationByToken(ctx context.Context, token string) (*model.Registration, error)
	CountActive(ctx context.Context, eventID uint64) (int64, error)
	HasActiveRegistration(ctx context.Context, eventID uint64, email string) (bool, error)
	SetRegistrationStatus(ctx context.Context, id uint64, status string) error
	ListAbsentees(ctx context.Context, eventID uint64) ([]model.Registration, error)

	CreateWaitlistEntry(ctx context.Context, entry *model.WaitlistEntry) error
	OnWaitlist(ctx context.Context, eventID uint64, email string) (bool, error)
	OldestWaitlist(ctx context.Context, eventID uint64, limit int64) ([]model.WaitlistEntry, error)
	DeleteWaitlistEntry(ctx context.Context, id uint64) error

	Attendance(ctx context.Context, registrationID uint64) (*model.AttendanceRecord, error)
	SaveAttendance(ctx context.Context, rec *model.AttendanceRecord) error

	HasActivePenalty(ctx context.Context, email string, now time.Time) (bool, error)
	CreatePenalty(ctx context.Context, p *model.NoShowPenalty) error

	PaymentState(ctx context.Context, registrationID uint64) (*model.PaymentState, error)
	CreatePaymentState(ctx context.Context, p *model.PaymentState) error
	RecordRefund(ctx context.Context, registrationID uint64, status string, refund *model.RefundState) error
}
