// Package service implements the registration and attendance
// orchestration engine: admission control, waitlist promotion,
// cancellation with refunds, check-in, the no-show sweep and reminders.
package service

import (
	"errors"

	"github.com/confera/attendance/internal/repository"
)

// Kind tags a domain error so the HTTP boundary can map it to a status
// code without string matching.
type Kind string

// Domain error kinds.
const (
	KindRegistrationClosed    Kind = "registration_closed"
	KindDuplicateRegistration Kind = "duplicate_registration"
	KindPenaltyActive         Kind = "penalty_active"
	KindCheckIn               Kind = "check_in"
	KindPaymentProcessing     Kind = "payment_processing"
	KindNotFound              Kind = "not_found"
)

// Error is a kind-tagged domain error.  Two Errors match under
// errors.Is when their kinds are equal, so handlers compare against the
// package sentinels and still receive the specific message.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

// Is matches any Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrRegistrationClosed    = &Error{Kind: KindRegistrationClosed, Message: "registrations are closed"}
	ErrDuplicateRegistration = &Error{Kind: KindDuplicateRegistration, Message: "attendee already registered"}
	ErrPenaltyActive         = &Error{Kind: KindPenaltyActive, Message: "attendee has an active no-show penalty"}
	ErrCheckIn               = &Error{Kind: KindCheckIn, Message: "check-in rejected"}
	ErrPaymentProcessing     = &Error{Kind: KindPaymentProcessing, Message: "payment processing failed"}
	ErrNotFound              = &Error{Kind: KindNotFound, Message: "not found"}
)

func domainErr(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

func paymentErr(msg string, cause error) error {
	return &Error{Kind: KindPaymentProcessing, Message: msg, cause: cause}
}

// mapLookup converts repository sentinels into not-found domain errors
// and passes everything else through unchanged.
func mapLookup(err error) error {
	switch {
	case errors.Is(err, repository.ErrEventNotFound):
		return domainErr(KindNotFound, "event not found")
	case errors.Is(err, repository.ErrRegistrationNotFound):
		return domainErr(KindNotFound, "registration not found")
	default:
		return err
	}
}
