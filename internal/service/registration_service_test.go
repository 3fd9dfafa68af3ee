package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/confera/attendance/internal/model"
	"github.com/confera/attendance/internal/payment"
	"github.com/confera/attendance/internal/queue"
	"github.com/confera/attendance/internal/store"
)

type fakePayments struct {
	captures      []payment.CaptureRequest
	refunds       []string
	captureErr    error
	failCaptureAt int // 1-based capture call to fail; 0 fails all when captureErr is set
	refundErr     error
	nextID        int
}

func (f *fakePayments) Capture(ctx context.Context, req payment.CaptureRequest) (*payment.Payment, error) {
	f.captures = append(f.captures, req)
	if f.captureErr != nil && (f.failCaptureAt == 0 || f.failCaptureAt == len(f.captures)) {
		return nil, f.captureErr
	}
	f.nextID++
	return &payment.Payment{ID: fmt.Sprintf("pay_%d", f.nextID), Status: model.PaymentCaptured}, nil
}

func (f *fakePayments) Refund(ctx context.Context, paymentID, reason string) (*payment.RefundResult, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	f.refunds = append(f.refunds, paymentID)
	return &payment.RefundResult{
		Status: model.PaymentRefunded,
		Refund: &payment.Refund{ID: "ref_" + paymentID, Status: "completed"},
	}, nil
}

type fakePublisher struct {
	confirmed []queue.RegistrationConfirmedEvent
	reminders []queue.RegistrationReminderEvent
}

func (f *fakePublisher) PublishRegistrationConfirmed(ctx context.Context, ev queue.RegistrationConfirmedEvent) error {
	f.confirmed = append(f.confirmed, ev)
	return nil
}

func (f *fakePublisher) PublishReminder(ctx context.Context, ev queue.RegistrationReminderEvent) error {
	f.reminders = append(f.reminders, ev)
	return nil
}

func newTestService() (*RegistrationService, *store.Memory, *fakePayments, *fakePublisher) {
	mem := store.NewMemory()
	pay := &fakePayments{}
	pub := &fakePublisher{}
	return NewRegistrationService(mem, pay, pub), mem, pay, pub
}

func capPtr(n int64) *int64 { return &n }

func seedEvent(mem *store.Memory, id uint64, capacity *int64, daysFromNow int) model.Event {
	ev := model.Event{
		ID:               id,
		Title:            "Go Systems Summit",
		EventDate:        time.Now().UTC().AddDate(0, 0, daysFromNow),
		RegistrationOpen: true,
		Capacity:         capacity,
	}
	mem.PutEvent(ev)
	return ev
}

func seedPricedEvent(mem *store.Memory, id uint64, capacity *int64, daysFromNow int, amount string) model.Event {
	ev := model.Event{
		ID:               id,
		Title:            "Go Systems Summit",
		EventDate:        time.Now().UTC().AddDate(0, 0, daysFromNow),
		RegistrationOpen: true,
		Capacity:         capacity,
		Pricing:          &model.Pricing{Amount: decimal.RequireFromString(amount), Currency: "EUR"},
	}
	mem.PutEvent(ev)
	return ev
}

func TestRegisterConfirmsUnderCapacity(t *testing.T) {
	svc, mem, _, pub := newTestService()
	seedEvent(mem, 1, capPtr(10), 7)

	res, err := svc.Register(context.Background(), 1, "A@X.com ", "Ada", map[string]any{"company": "x"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Status)
	require.NotNil(t, res.Registration)
	assert.Equal(t, "a@x.com", res.Registration.AttendeeEmail)
	assert.Equal(t, model.StatusConfirmed, res.Registration.Status)
	assert.Len(t, res.Registration.CheckInToken, 32)
	assert.NotEmpty(t, res.Registration.QRCodeData)
	assert.Nil(t, res.WaitlistEntry)

	require.Len(t, pub.confirmed, 1)
	assert.False(t, pub.confirmed[0].Promoted)
	assert.Equal(t, "a@x.com", pub.confirmed[0].AttendeeEmail)
}

func TestRegisterWaitlistsWhenFull(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(1), 7)

	_, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)

	res, err := svc.Register(context.Background(), 1, "b@x.com", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWaitlisted, res.Status)
	require.NotNil(t, res.WaitlistEntry)
	assert.Equal(t, "b@x.com", res.WaitlistEntry.AttendeeEmail)
	assert.Nil(t, res.Registration)
}

func TestRegisterNeverExceedsCapacity(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(2), 7)

	for i := 0; i < 5; i++ {
		_, err := svc.Register(context.Background(), 1, fmt.Sprintf("u%d@x.com", i), "", nil)
		require.NoError(t, err)
	}

	regs, err := svc.ListRegistrations(context.Background(), 1)
	require.NoError(t, err)
	active := 0
	for _, reg := range regs {
		if reg.Active() {
			active++
		}
	}
	assert.Equal(t, 2, active)

	waitlist, err := svc.ListWaitlist(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, waitlist, 3)
}

func TestRegisterUnlimitedEventNeverWaitlists(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, nil, 7)

	for i := 0; i < 20; i++ {
		res, err := svc.Register(context.Background(), 1, fmt.Sprintf("u%d@x.com", i), "", nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeConfirmed, res.Status)
	}

	promoted, err := svc.PromoteWaitlist(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, promoted)
}

func TestRegisterRejectsClosedWindow(t *testing.T) {
	svc, mem, _, _ := newTestService()
	ev := seedEvent(mem, 1, capPtr(5), 7)
	ev.RegistrationOpen = false
	mem.PutEvent(ev)

	_, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestRegisterRejectsPassedDeadline(t *testing.T) {
	svc, mem, _, _ := newTestService()
	ev := seedEvent(mem, 1, capPtr(5), 7)
	deadline := time.Now().UTC().Add(-time.Hour)
	ev.RegistrationDeadline = &deadline
	mem.PutEvent(ev)

	_, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(1), 7)

	_, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)

	// Duplicate of a confirmed registration, case-insensitive.
	_, err = svc.Register(context.Background(), 1, "A@X.COM", "", nil)
	assert.ErrorIs(t, err, ErrDuplicateRegistration)

	// Duplicate of a waitlisted attendee.
	_, err = svc.Register(context.Background(), 1, "b@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), 1, "b@x.com", "", nil)
	assert.ErrorIs(t, err, ErrDuplicateRegistration)
}

func TestRegisterUnknownEvent(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Register(context.Background(), 99, "a@x.com", "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegisterCapturesPaymentForPricedEvent(t *testing.T) {
	svc, mem, pay, _ := newTestService()
	seedPricedEvent(mem, 1, capPtr(5), 7, "25.50")

	res, err := svc.Register(context.Background(), 1, "a@x.com", "Ada", map[string]any{"seat": "front"})
	require.NoError(t, err)

	require.Len(t, pay.captures, 1)
	req := pay.captures[0]
	assert.Equal(t, uint64(1), req.EventID)
	assert.Equal(t, "a@x.com", req.AttendeeEmail)
	assert.Equal(t, "25.5", req.Amount.String())
	assert.Equal(t, "EUR", req.Currency)
	assert.Equal(t, res.Registration.ID, req.Metadata["registration_id"])
	assert.Equal(t, "Go Systems Summit", req.Metadata["event_title"])
	assert.Equal(t, "front", req.Metadata["seat"])

	require.NotNil(t, res.Registration.Payment)
	assert.Equal(t, model.PaymentCaptured, res.Registration.Payment.Status)
	assert.Equal(t, "pay_1", res.Registration.Payment.PaymentID)
}

func TestRegisterAbortsWhenCaptureFails(t *testing.T) {
	svc, mem, pay, pub := newTestService()
	seedPricedEvent(mem, 1, capPtr(5), 7, "25.50")
	pay.captureErr = errors.New("gateway down")

	_, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	assert.ErrorIs(t, err, ErrPaymentProcessing)

	// Nothing persisted, nothing published.
	regs, err := svc.ListRegistrations(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, regs)
	assert.Empty(t, pub.confirmed)
}

func TestRegisterFreeEventSkipsPayment(t *testing.T) {
	svc, mem, pay, _ := newTestService()
	seedEvent(mem, 1, capPtr(5), 7)

	res, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	assert.Empty(t, pay.captures)
	assert.Nil(t, res.Registration.Payment)
}

func TestWaitlistedAttendeesNeverPay(t *testing.T) {
	svc, mem, pay, _ := newTestService()
	seedPricedEvent(mem, 1, capPtr(1), 7, "10.00")

	_, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), 1, "b@x.com", "", nil)
	require.NoError(t, err)

	assert.Len(t, pay.captures, 1) // only the confirmed attendee paid
}

func TestCancelPromotesInFIFOOrder(t *testing.T) {
	svc, mem, _, pub := newTestService()
	seedEvent(mem, 1, capPtr(1), 7)

	a, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), 1, "b@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), 1, "c@x.com", "", nil)
	require.NoError(t, err)

	res, err := svc.Cancel(context.Background(), 1, a.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, res.Status)
	require.Len(t, res.Promoted, 1)
	assert.Equal(t, "b@x.com", res.Promoted[0].AttendeeEmail)
	assert.Equal(t, model.StatusConfirmed, res.Promoted[0].Status)

	waitlist, err := svc.ListWaitlist(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, waitlist, 1)
	assert.Equal(t, "c@x.com", waitlist[0].AttendeeEmail)

	// The promoted registration was announced as such.
	last := pub.confirmed[len(pub.confirmed)-1]
	assert.True(t, last.Promoted)
	assert.Equal(t, "b@x.com", last.AttendeeEmail)
}

func TestCancelIsIdempotent(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(5), 7)

	a, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)

	first, err := svc.Cancel(context.Background(), 1, a.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, first.Status)

	second, err := svc.Cancel(context.Background(), 1, a.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, second.Status)
	assert.Empty(t, second.Promoted)
}

func TestCancelRefundsCapturedPayment(t *testing.T) {
	svc, mem, pay, _ := newTestService()
	seedPricedEvent(mem, 1, capPtr(5), 7, "25.50")

	a, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), 1, a.Registration.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"pay_1"}, pay.refunds)
}

func TestCancelAbortsWhenRefundFails(t *testing.T) {
	svc, mem, pay, _ := newTestService()
	seedPricedEvent(mem, 1, capPtr(1), 7, "25.50")

	a, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), 1, "b@x.com", "", nil)
	require.NoError(t, err)

	pay.refundErr = errors.New("gateway down")
	_, err = svc.Cancel(context.Background(), 1, a.Registration.ID)
	assert.ErrorIs(t, err, ErrPaymentProcessing)

	// Status unchanged and nobody promoted.
	regs, err := svc.ListRegistrations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, model.StatusConfirmed, regs[0].Status)

	waitlist, err := svc.ListWaitlist(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, waitlist, 1)
}

func TestPromotionBatchRollsBackOnPaymentFailure(t *testing.T) {
	svc, mem, pay, _ := newTestService()
	seedPricedEvent(mem, 1, capPtr(2), 7, "10.00")

	// Queue two attendees directly so both capacity slots are free.
	err := mem.Within(context.Background(), func(tx store.Tx) error {
		for _, email := range []string{"w1@x.com", "w2@x.com"} {
			entry := &model.WaitlistEntry{EventID: 1, AttendeeEmail: email}
			if err := tx.CreateWaitlistEntry(context.Background(), entry); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	pay.captureErr = errors.New("gateway down")
	pay.failCaptureAt = 2 // first promotion pays, second fails

	_, err = svc.PromoteWaitlist(context.Background(), 1)
	assert.ErrorIs(t, err, ErrPaymentProcessing)

	// The whole batch rolled back: no registrations, both entries kept.
	regs, err := svc.ListRegistrations(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, regs)

	waitlist, err := svc.ListWaitlist(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, waitlist, 2)
}

func TestCheckInTransitionsAndIsIdempotent(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(5), 7)

	a, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	token := a.Registration.CheckInToken

	first, err := svc.CheckIn(context.Background(), token, "", map[string]any{"gate": "north"})
	require.NoError(t, err)
	assert.Equal(t, "qr", first.CheckInMethod)
	assert.Equal(t, "north", first.ScanPayload["gate"])

	regs, err := svc.ListRegistrations(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCheckedIn, regs[0].Status)

	// A second scan returns the same record untouched, ignoring the
	// new method.
	second, err := svc.CheckIn(context.Background(), token, "manual", nil)
	require.NoError(t, err)
	assert.Equal(t, first.RegistrationID, second.RegistrationID)
	assert.Equal(t, first.CheckInMethod, second.CheckInMethod)
	assert.True(t, first.CheckInTime.Equal(second.CheckInTime))
}

func TestCheckInRejections(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(5), -1)

	a, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	b, err := svc.Register(context.Background(), 1, "b@x.com", "", nil)
	require.NoError(t, err)

	_, err = svc.CheckIn(context.Background(), "no-such-token", "", nil)
	require.ErrorIs(t, err, ErrCheckIn)
	assert.EqualError(t, err, "invalid check-in token")

	_, err = svc.Cancel(context.Background(), 1, a.Registration.ID)
	require.NoError(t, err)
	_, err = svc.CheckIn(context.Background(), a.Registration.CheckInToken, "", nil)
	require.ErrorIs(t, err, ErrCheckIn)
	assert.EqualError(t, err, "registration was cancelled")

	_, err = svc.DetectNoShows(context.Background(), 1, time.Now().UTC())
	require.NoError(t, err)
	_, err = svc.CheckIn(context.Background(), b.Registration.CheckInToken, "", nil)
	require.ErrorIs(t, err, ErrCheckIn)
	assert.EqualError(t, err, "attendee was marked as a no-show")
}

func TestDetectNoShowsSkipsFutureEvents(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(5), 7)

	_, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)

	penalized, err := svc.DetectNoShows(context.Background(), 1, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, penalized)

	regs, err := svc.ListRegistrations(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, regs[0].Status)
}

func TestDetectNoShowsPenalizesAbsentees(t *testing.T) {
	svc, mem, _, _ := newTestService()
	ev := seedEvent(mem, 1, capPtr(5), -2)

	a, err := svc.Register(context.Background(), 1, "present@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), 1, "absent@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.CheckIn(context.Background(), a.Registration.CheckInToken, "", nil)
	require.NoError(t, err)

	penalized, err := svc.DetectNoShows(context.Background(), 1, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, penalized, 1)
	assert.Equal(t, "absent@x.com", penalized[0].Email)
	require.NotNil(t, penalized[0].ExpiresAt)
	wantExpiry := time.Date(ev.EventDate.Year(), ev.EventDate.Month(), ev.EventDate.Day(), 0, 0, 0, 0, time.UTC).Add(30 * 24 * time.Hour)
	assert.True(t, penalized[0].ExpiresAt.Equal(wantExpiry))

	// Re-running the sweep penalizes nobody new.
	again, err := svc.DetectNoShows(context.Background(), 1, time.Now().UTC())
	require.NoError(t, err)
	assert.Empty(t, again)

	// The penalized attendee is blocked from registering elsewhere.
	seedEvent(mem, 2, capPtr(5), 7)
	_, err = svc.Register(context.Background(), 2, "absent@x.com", "", nil)
	assert.ErrorIs(t, err, ErrPenaltyActive)

	// The attendee who showed up is not.
	_, err = svc.Register(context.Background(), 2, "present@x.com", "", nil)
	require.NoError(t, err)
}

func TestExpiredPenaltyNoLongerBlocks(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(5), -40)

	_, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	penalized, err := svc.DetectNoShows(context.Background(), 1, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, penalized, 1)

	// Penalty expired 10 days ago (event 40 days back + 30 day term).
	seedEvent(mem, 2, capPtr(5), 7)
	_, err = svc.Register(context.Background(), 2, "a@x.com", "", nil)
	require.NoError(t, err)
}

func TestCancelledRegistrationFreesDedupKey(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(5), 7)

	a, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), 1, a.Registration.ID)
	require.NoError(t, err)

	res, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, res.Status)
}

func TestRegistrationWindowToggles(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(5), 7)

	state, err := svc.CloseRegistrations(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, state.RegistrationOpen)
	_, err = svc.Register(context.Background(), 1, "a@x.com", "", nil)
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	state, err = svc.OpenRegistrations(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, state.RegistrationOpen)
	_, err = svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
}

func TestSendRemindersCoversUpcomingConfirmed(t *testing.T) {
	svc, mem, _, pub := newTestService()
	seedEvent(mem, 1, capPtr(5), 2)  // inside the window
	seedEvent(mem, 2, capPtr(5), 30) // outside the window

	_, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	b, err := svc.Register(context.Background(), 1, "b@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), 2, "far@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), 1, b.Registration.ID)
	require.NoError(t, err)

	reminders, err := svc.SendReminders(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, uint64(1), reminders[0].EventID)
	assert.Equal(t, "a@x.com", reminders[0].AttendeeEmail)
	require.Len(t, pub.reminders, 1)
	assert.Equal(t, "a@x.com", pub.reminders[0].AttendeeEmail)
}

func TestSweepWaitlistsPromotesOpenEvents(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(2), 7)

	// Two free slots and one queued attendee.
	err := mem.Within(context.Background(), func(tx store.Tx) error {
		return tx.CreateWaitlistEntry(context.Background(), &model.WaitlistEntry{EventID: 1, AttendeeEmail: "w@x.com"})
	})
	require.NoError(t, err)

	require.NoError(t, svc.SweepWaitlists(context.Background()))

	regs, err := svc.ListRegistrations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, "w@x.com", regs[0].AttendeeEmail)
	assert.Equal(t, model.StatusConfirmed, regs[0].Status)
}

// The worked end-to-end scenario: capacity 1, a confirmed, b waitlisted,
// cancelling a promotes b and empties the waitlist.
func TestCapacityOneCancellationScenario(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(1), 7)

	a, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeConfirmed, a.Status)

	b, err := svc.Register(context.Background(), 1, "b@x.com", "", nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeWaitlisted, b.Status)

	res, err := svc.Cancel(context.Background(), 1, a.Registration.ID)
	require.NoError(t, err)
	require.Len(t, res.Promoted, 1)
	assert.Equal(t, "b@x.com", res.Promoted[0].AttendeeEmail)

	regs, err := svc.ListRegistrations(context.Background(), 1)
	require.NoError(t, err)
	statuses := map[string]string{}
	for _, reg := range regs {
		statuses[reg.AttendeeEmail] = reg.Status
	}
	assert.Equal(t, model.StatusCancelled, statuses["a@x.com"])
	assert.Equal(t, model.StatusConfirmed, statuses["b@x.com"])

	waitlist, err := svc.ListWaitlist(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, waitlist)
}

func TestListAttendanceIncludesNonCheckedIn(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(5), 7)

	a, err := svc.Register(context.Background(), 1, "a@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.Register(context.Background(), 1, "b@x.com", "", nil)
	require.NoError(t, err)
	_, err = svc.CheckIn(context.Background(), a.Registration.CheckInToken, "manual", nil)
	require.NoError(t, err)

	views, err := svc.ListAttendance(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, views, 2)
	byEmail := map[string]model.AttendanceView{}
	for _, v := range views {
		byEmail[v.AttendeeEmail] = v
	}
	require.NotNil(t, byEmail["a@x.com"].CheckInTime)
	assert.Equal(t, "manual", *byEmail["a@x.com"].CheckInMethod)
	assert.Nil(t, byEmail["b@x.com"].CheckInTime)
}

// registrationOutcome reads the registrations_total counter for one
// outcome label from the default prometheus registry.
func registrationOutcome(t *testing.T, outcome string) float64 {
	t.Helper()
	mfs, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "registrations_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "outcome" && l.GetValue() == outcome {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRegisterOutcomeCounterSeparatesRejectionsFromErrors(t *testing.T) {
	svc, mem, _, _ := newTestService()
	seedEvent(mem, 1, capPtr(5), 7)
	ctx := context.Background()

	rejected := registrationOutcome(t, "rejected")
	errored := registrationOutcome(t, "error")

	_, err := svc.Register(ctx, 1, "a@x.com", "Ada", nil)
	require.NoError(t, err)
	_, err = svc.Register(ctx, 1, "a@x.com", "Ada", nil)
	require.ErrorIs(t, err, ErrDuplicateRegistration)
	assert.Equal(t, rejected+1, registrationOutcome(t, "rejected"))

	// A lookup miss is not a business rejection.
	_, err = svc.Register(ctx, 99, "b@x.com", "Bea", nil)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, errored+1, registrationOutcome(t, "error"))
	assert.Equal(t, rejected+1, registrationOutcome(t, "rejected"))
}
