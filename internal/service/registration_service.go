package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/confera/attendance/internal/model"
	"github.com/confera/attendance/internal/monitoring"
	"github.com/confera/attendance/internal/payment"
	"github.com/confera/attendance/internal/queue"
	"github.com/confera/attendance/internal/repository"
	"github.com/confera/attendance/internal/store"
	"github.com/confera/attendance/internal/utils"
)

// PaymentClient is the subset of the payment adapter the engine needs.
// Retry and circuit-breaking live inside the client; the engine calls
// each operation exactly once per domain operation.
type PaymentClient interface {
	Capture(ctx context.Context, req payment.CaptureRequest) (*payment.Payment, error)
	Refund(ctx context.Context, paymentID, reason string) (*payment.RefundResult, error)
}

// EventPublisher emits domain events after a successful commit.
// Publishing is best effort and never fails a domain operation.
type EventPublisher interface {
	PublishRegistrationConfirmed(ctx context.Context, ev queue.RegistrationConfirmedEvent) error
	PublishReminder(ctx context.Context, ev queue.RegistrationReminderEvent) error
}

// RegistrationService orchestrates registrations and attendance for
// events.  Every public method runs its writes inside one store
// transaction; a failure anywhere rolls that operation back entirely.
type RegistrationService struct {
	store    store.Store
	payments PaymentClient
	events   EventPublisher // nil disables publishing

	now func() time.Time
}

// NewRegistrationService wires the engine to its collaborators.
func NewRegistrationService(st store.Store, payments PaymentClient, events EventPublisher) *RegistrationService {
	return &RegistrationService{
		store:    st,
		payments: payments,
		events:   events,
		now:      time.Now,
	}
}

// Registration outcomes returned by Register.
const (
	OutcomeConfirmed  = "confirmed"
	OutcomeWaitlisted = "waitlisted"
)

// RegisterResult is the outcome of an admission decision: exactly one
// of Registration or WaitlistEntry is set.
type RegisterResult struct {
	Status        string               `json:"status"`
	Registration  *model.Registration  `json:"registration,omitempty"`
	WaitlistEntry *model.WaitlistEntry `json:"waitlist_entry,omitempty"`
}

// CancelResult reports the registration's status after cancellation and
// any waitlist entries promoted into the freed capacity.
type CancelResult struct {
	Status   string               `json:"status"`
	Promoted []model.Registration `json:"promoted"`
}

// WindowState describes an event's registration window.
type WindowState struct {
	EventID              uint64     `json:"event_id"`
	RegistrationOpen     bool       `json:"registration_open"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
}

// PenalizedAttendee is one attendee marked absent by the no-show sweep.
type PenalizedAttendee struct {
	Email     string     `json:"email"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Reminder is one upcoming-event notification produced by the reminder
// sweep.
type Reminder struct {
	EventID       uint64 `json:"event_id"`
	AttendeeEmail string `json:"email"`
	EventDate     string `json:"event_date"`
}

// NormalizeEmail lower-cases and trims an attendee address; the result
// is the dedup key for registrations and waitlist entries.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register admits an attendee to an event or queues them on the
// waitlist.  Preconditions are checked in order, each failing with a
// distinct error: registration window open, no active penalty, no
// existing active registration or waitlist entry.  The event row stays
// locked for the whole capacity decision, so concurrent requests for
// the same event serialise and cannot overbook.
func (s *RegistrationService) Register(ctx context.Context, eventID uint64, email, name string, metadata map[string]any) (*RegisterResult, error) {
	email = NormalizeEmail(email)

	var (
		result  RegisterResult
		evTitle string
	)
	err := s.store.Within(ctx, func(tx store.Tx) error {
		ev, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return mapLookup(err)
		}
		evTitle = ev.Title
		if err := s.ensureWindowOpen(ev); err != nil {
			return err
		}
		blocked, err := tx.HasActivePenalty(ctx, email, s.now())
		if err != nil {
			return err
		}
		if blocked {
			return domainErr(KindPenaltyActive, "attendee is temporarily blocked after repeated no-shows")
		}
		registered, err := tx.HasActiveRegistration(ctx, eventID, email)
		if err != nil {
			return err
		}
		if registered {
			return domainErr(KindDuplicateRegistration, "attendee is already registered for this event")
		}
		queued, err := tx.OnWaitlist(ctx, eventID, email)
		if err != nil {
			return err
		}
		if queued {
			return domainErr(KindDuplicateRegistration, "attendee is already on the waitlist for this event")
		}

		confirmed, err := tx.CountActive(ctx, eventID)
		if err != nil {
			return err
		}
		if ev.Unlimited() || confirmed < *ev.Capacity {
			reg, err := s.confirm(ctx, tx, ev, email, name, metadata)
			if err != nil {
				return err
			}
			result = RegisterResult{Status: OutcomeConfirmed, Registration: reg}
			return nil
		}

		entry := &model.WaitlistEntry{EventID: eventID, AttendeeEmail: email, AttendeeName: name}
		if err := tx.CreateWaitlistEntry(ctx, entry); err != nil {
			return err
		}
		result = RegisterResult{Status: OutcomeWaitlisted, WaitlistEntry: entry}
		return nil
	})
	if err != nil {
		// Business rejections and failures are separate outcomes so the
		// rejected counter stays meaningful.
		outcome := "error"
		var derr *Error
		if errors.As(err, &derr) {
			switch derr.Kind {
			case KindRegistrationClosed, KindDuplicateRegistration, KindPenaltyActive:
				outcome = "rejected"
			}
		}
		monitoring.TrackRegistration(outcome)
		return nil, err
	}

	monitoring.TrackRegistration(result.Status)
	if result.Registration != nil {
		s.publishConfirmed(ctx, evTitle, *result.Registration, false)
	}
	return &result, nil
}

// Cancel releases a registration's capacity slot.  Cancelling an
// already-cancelled or no-show registration is a no-op returning the
// current status.  A captured payment is refunded before anything else
// commits; refund failure aborts the whole cancellation, leaving the
// status unchanged.  Freed capacity is filled from the waitlist within
// the same transaction.
func (s *RegistrationService) Cancel(ctx context.Context, eventID, registrationID uint64) (*CancelResult, error) {
	var (
		result  CancelResult
		evTitle string
	)
	err := s.store.Within(ctx, func(tx store.Tx) error {
		ev, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return mapLookup(err)
		}
		evTitle = ev.Title
		reg, err := tx.Registration(ctx, eventID, registrationID)
		if err != nil {
			return mapLookup(err)
		}
		if reg.Status == model.StatusCancelled || reg.Status == model.StatusNoShow {
			result = CancelResult{Status: reg.Status, Promoted: []model.Registration{}}
			return nil
		}

		if err := tx.SetRegistrationStatus(ctx, reg.ID, model.StatusCancelled); err != nil {
			return err
		}
		state, err := tx.PaymentState(ctx, reg.ID)
		if err != nil {
			return err
		}
		if state != nil && state.Status == model.PaymentCaptured {
			reason := fmt.Sprintf("registration %d for event %d cancelled", reg.ID, eventID)
			res, err := s.payments.Refund(ctx, state.PaymentID, reason)
			if err != nil {
				return paymentErr("payment refund failed; registration left unchanged", err)
			}
			refund := &model.RefundState{Status: res.Status}
			if res.Refund != nil {
				refund = &model.RefundState{Status: res.Refund.Status, Reference: res.Refund.ID}
			}
			if err := tx.RecordRefund(ctx, reg.ID, res.Status, refund); err != nil {
				return err
			}
		}

		promoted, err := s.promoteLocked(ctx, tx, ev)
		if err != nil {
			return err
		}
		result = CancelResult{Status: model.StatusCancelled, Promoted: promoted}
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackPromotions(len(result.Promoted))
	for _, reg := range result.Promoted {
		s.publishConfirmed(ctx, evTitle, reg, true)
	}
	return &result, nil
}

// PromoteWaitlist fills any free capacity from the waitlist in strict
// FIFO order.  Invoked after cancellations, on demand by staff and by
// the periodic sweep.
func (s *RegistrationService) PromoteWaitlist(ctx context.Context, eventID uint64) ([]model.Registration, error) {
	var (
		promoted []model.Registration
		evTitle  string
	)
	err := s.store.Within(ctx, func(tx store.Tx) error {
		ev, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return mapLookup(err)
		}
		evTitle = ev.Title
		promoted, err = s.promoteLocked(ctx, tx, ev)
		return err
	})
	if err != nil {
		return nil, err
	}

	monitoring.TrackPromotions(len(promoted))
	for _, reg := range promoted {
		s.publishConfirmed(ctx, evTitle, reg, true)
	}
	return promoted, nil
}

// CheckIn records attendance for the registration owning the token.
// Repeating a check-in returns the existing record unchanged; tokens of
// cancelled or no-show registrations are rejected with distinct
// messages.
func (s *RegistrationService) CheckIn(ctx context.Context, token, method string, scanPayload map[string]any) (*model.AttendanceRecord, error) {
	if method == "" {
		method = "qr"
	}
	var (
		record *model.AttendanceRecord
		fresh  bool
	)
	err := s.store.Within(ctx, func(tx store.Tx) error {
		reg, err := tx.RegistrationByToken(ctx, token)
		if errors.Is(err, repository.ErrRegistrationNotFound) {
			return domainErr(KindCheckIn, "invalid check-in token")
		}
		if err != nil {
			return err
		}
		switch reg.Status {
		case model.StatusCancelled:
			return domainErr(KindCheckIn, "registration was cancelled")
		case model.StatusNoShow:
			return domainErr(KindCheckIn, "attendee was marked as a no-show")
		case model.StatusCheckedIn:
			existing, err := tx.Attendance(ctx, reg.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				record = existing
				return nil
			}
			// Status says checked in but the record is missing; fall
			// through and recreate it.
		}

		rec := &model.AttendanceRecord{
			RegistrationID: reg.ID,
			CheckInTime:    s.now().UTC(),
			CheckInMethod:  method,
			ScanPayload:    scanPayload,
		}
		if err := tx.SaveAttendance(ctx, rec); err != nil {
			return err
		}
		if reg.Status != model.StatusCheckedIn {
			if err := tx.SetRegistrationStatus(ctx, reg.ID, model.StatusCheckedIn); err != nil {
				return err
			}
		}
		record = rec
		fresh = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if fresh {
		monitoring.TrackCheckIn(method)
	}
	return record, nil
}

// DetectNoShows sweeps a past event: every confirmed registration with
// no attendance record becomes a no-show and receives a penalty
// expiring thirty days after the event date.  Events on or after asOf
// are never swept, and re-running the sweep penalizes nobody new.
func (s *RegistrationService) DetectNoShows(ctx context.Context, eventID uint64, asOf time.Time) ([]PenalizedAttendee, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	penalized := make([]PenalizedAttendee, 0)
	err := s.store.Within(ctx, func(tx store.Tx) error {
		ev, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return mapLookup(err)
		}
		if !dateOnly(ev.EventDate).Before(dateOnly(asOf)) {
			return nil
		}
		absentees, err := tx.ListAbsentees(ctx, eventID)
		if err != nil {
			return err
		}
		expiry := dateOnly(ev.EventDate).Add(30 * 24 * time.Hour)
		for _, reg := range absentees {
			if err := tx.SetRegistrationStatus(ctx, reg.ID, model.StatusNoShow); err != nil {
				return err
			}
			e := expiry
			p := &model.NoShowPenalty{
				AttendeeEmail: reg.AttendeeEmail,
				EventID:       eventID,
				Reason:        "unreported absence",
				ExpiresAt:     &e,
			}
			if err := tx.CreatePenalty(ctx, p); err != nil {
				return err
			}
			penalized = append(penalized, PenalizedAttendee{Email: reg.AttendeeEmail, ExpiresAt: &e})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	monitoring.TrackPenalties(len(penalized))
	return penalized, nil
}

// SendReminders collects confirmed registrations for open events within
// the next withinDays days and publishes a reminder for each.  The
// reminders are also returned so callers can inspect or re-deliver.
func (s *RegistrationService) SendReminders(ctx context.Context, withinDays int) ([]Reminder, error) {
	if withinDays <= 0 {
		withinDays = 3
	}
	from := dateOnly(s.now())
	to := from.Add(time.Duration(withinDays) * 24 * time.Hour)
	events, err := s.store.ListUpcomingOpen(ctx, from, to)
	if err != nil {
		return nil, err
	}

	reminders := make([]Reminder, 0)
	for _, ev := range events {
		regs, err := s.store.ListConfirmed(ctx, ev.ID)
		if err != nil {
			return nil, err
		}
		for _, reg := range regs {
			date := ev.EventDate.Format("2006-01-02")
			reminders = append(reminders, Reminder{
				EventID:       ev.ID,
				AttendeeEmail: reg.AttendeeEmail,
				EventDate:     date,
			})
			if s.events != nil {
				msg := queue.RegistrationReminderEvent{
					EventID:       ev.ID,
					EventTitle:    ev.Title,
					EventDate:     date,
					AttendeeEmail: reg.AttendeeEmail,
				}
				if err := s.events.PublishReminder(ctx, msg); err != nil {
					log.Printf("service: publish %s failed: %v", queue.ReminderQueue, err)
				}
			}
		}
	}
	return reminders, nil
}

// SweepWaitlists promotes waitlists for every open event.  Failures are
// logged per event and do not stop the sweep.
func (s *RegistrationService) SweepWaitlists(ctx context.Context) error {
	ids, err := s.store.ListOpenEventIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := s.PromoteWaitlist(ctx, id); err != nil {
			log.Printf("service: waitlist sweep for event %d failed: %v", id, err)
		}
	}
	return nil
}

// OpenRegistrations opens the event's registration window.
func (s *RegistrationService) OpenRegistrations(ctx context.Context, eventID uint64) (*WindowState, error) {
	return s.setWindow(ctx, eventID, true)
}

// CloseRegistrations closes the event's registration window.
func (s *RegistrationService) CloseRegistrations(ctx context.Context, eventID uint64) (*WindowState, error) {
	return s.setWindow(ctx, eventID, false)
}

func (s *RegistrationService) setWindow(ctx context.Context, eventID uint64, open bool) (*WindowState, error) {
	var state WindowState
	err := s.store.Within(ctx, func(tx store.Tx) error {
		ev, err := tx.EventForUpdate(ctx, eventID)
		if err != nil {
			return mapLookup(err)
		}
		if err := tx.SetRegistrationOpen(ctx, eventID, open); err != nil {
			return mapLookup(err)
		}
		state = WindowState{
			EventID:              eventID,
			RegistrationOpen:     open,
			RegistrationDeadline: ev.RegistrationDeadline,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &state, nil
}

// ListRegistrations returns every registration of an event.
func (s *RegistrationService) ListRegistrations(ctx context.Context, eventID uint64) ([]model.Registration, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, mapLookup(err)
	}
	return s.store.ListRegistrations(ctx, eventID)
}

// ListWaitlist returns the event's waitlist in promotion order.
func (s *RegistrationService) ListWaitlist(ctx context.Context, eventID uint64) ([]model.WaitlistEntry, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, mapLookup(err)
	}
	return s.store.ListWaitlist(ctx, eventID)
}

// ListAttendance returns the attendance summary for every registration
// of the event, including attendees who never checked in.
func (s *RegistrationService) ListAttendance(ctx context.Context, eventID uint64) ([]model.AttendanceView, error) {
	if _, err := s.store.GetEvent(ctx, eventID); err != nil {
		return nil, mapLookup(err)
	}
	return s.store.ListAttendance(ctx, eventID)
}

// confirm creates a confirmed registration with a fresh token and QR
// rendering, capturing payment first when the event is priced.  A
// capture failure aborts the enclosing transaction so no confirmed-but-
// unpaid registration can exist.
func (s *RegistrationService) confirm(ctx context.Context, tx store.Tx, ev *model.Event, email, name string, metadata map[string]any) (*model.Registration, error) {
	token := utils.NewCheckInToken()
	qr, err := utils.QRCodePNG(token)
	if err != nil {
		return nil, err
	}
	reg := &model.Registration{
		EventID:       ev.ID,
		AttendeeEmail: email,
		AttendeeName:  name,
		Status:        model.StatusConfirmed,
		CheckInToken:  token,
		QRCodeData:    qr,
		Metadata:      metadata,
	}
	if err := tx.CreateRegistration(ctx, reg); err != nil {
		return nil, err
	}

	if ev.Priced() {
		captureMeta := make(map[string]any, len(metadata)+2)
		for k, v := range metadata {
			captureMeta[k] = v
		}
		captureMeta["registration_id"] = reg.ID
		captureMeta["event_title"] = ev.Title

		p, err := s.payments.Capture(ctx, payment.CaptureRequest{
			EventID:       ev.ID,
			AttendeeEmail: email,
			Amount:        ev.Pricing.Amount,
			Currency:      ev.Pricing.Currency,
			Metadata:      captureMeta,
		})
		if err != nil {
			return nil, paymentErr("payment capture failed; registration not confirmed", err)
		}
		state := &model.PaymentState{
			RegistrationID: reg.ID,
			PaymentID:      p.ID,
			Status:         p.Status,
			Amount:         ev.Pricing.Amount,
			Currency:       ev.Pricing.Currency,
		}
		if err := tx.CreatePaymentState(ctx, state); err != nil {
			return nil, err
		}
		reg.Payment = state
	}
	return reg, nil
}

// promoteLocked fills free capacity from the waitlist.  The caller must
// hold the event row lock.  The batch is all-or-nothing: one failed
// capture rolls back every promotion attempted in this call.
func (s *RegistrationService) promoteLocked(ctx context.Context, tx store.Tx, ev *model.Event) ([]model.Registration, error) {
	promoted := make([]model.Registration, 0)
	if ev.Unlimited() {
		// Unlimited events never waitlist, so there is nothing to promote.
		return promoted, nil
	}
	confirmed, err := tx.CountActive(ctx, ev.ID)
	if err != nil {
		return nil, err
	}
	available := *ev.Capacity - confirmed
	if available <= 0 {
		return promoted, nil
	}
	entries, err := tx.OldestWaitlist(ctx, ev.ID, available)
	if err != nil {
		return nil, err
	}
	for _, entry := range entries {
		reg, err := s.confirm(ctx, tx, ev, entry.AttendeeEmail, entry.AttendeeName, nil)
		if err != nil {
			return nil, err
		}
		if err := tx.DeleteWaitlistEntry(ctx, entry.ID); err != nil {
			return nil, err
		}
		promoted = append(promoted, *reg)
	}
	return promoted, nil
}

func (s *RegistrationService) ensureWindowOpen(ev *model.Event) error {
	if !ev.RegistrationOpen {
		return domainErr(KindRegistrationClosed, "registrations are currently closed")
	}
	if ev.RegistrationDeadline != nil && ev.RegistrationDeadline.Before(s.now()) {
		return domainErr(KindRegistrationClosed, "the registration period has ended")
	}
	return nil
}

func (s *RegistrationService) publishConfirmed(ctx context.Context, title string, reg model.Registration, promoted bool) {
	if s.events == nil {
		return
	}
	msg := queue.RegistrationConfirmedEvent{
		RegistrationID: reg.ID,
		EventID:        reg.EventID,
		EventTitle:     title,
		AttendeeEmail:  reg.AttendeeEmail,
		Promoted:       promoted,
		ConfirmedAt:    reg.CreatedAt.UTC().Format(time.RFC3339),
	}
	if reg.Payment != nil {
		msg.Amount = reg.Payment.Amount.String()
		msg.Currency = reg.Payment.Currency
	}
	if err := s.events.PublishRegistrationConfirmed(ctx, msg); err != nil {
		log.Printf("service: publish %s failed: %v", queue.ConfirmedQueue, err)
	}
}

// dateOnly truncates a timestamp to its UTC calendar day.
func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
