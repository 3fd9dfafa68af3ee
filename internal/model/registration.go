package model

import "time"

// Registration status values.  A registration is "active" while it is
// confirmed or checked in; cancelled and no_show registrations release
// their capacity slot.
const (
	StatusConfirmed = "confirmed"
	StatusCheckedIn = "checked_in"
	StatusCancelled = "cancelled"
	StatusNoShow    = "no_show"
)

// Registration is a confirmed (or once-confirmed) seat at an event.
// At most one active registration may exist per (event, email) pair;
// the email is lower-cased before persistence and acts as the dedup key.
//
// Fields:
//  ID            – primary key identifier.
//  EventID       – owning event.
//  AttendeeEmail – normalized attendee address, the dedup key.
//  AttendeeName  – optional display name.
//  Status        – one of the Status* constants above.
//  CheckInToken  – opaque unique token, immutable once issued.
//  QRCodeData    – base64 PNG rendering of the token for tickets.
//  Metadata      – free-form client payload supplied at registration.
//  Payment       – typed payment state, populated when a capture exists.
type Registration struct {
	ID            uint64         `json:"id"`
	EventID       uint64         `json:"event_id"`
	AttendeeEmail string         `json:"email"`
	AttendeeName  string         `json:"name,omitempty"`
	Status        string         `json:"status"`
	CheckInToken  string         `json:"token"`
	QRCodeData    string         `json:"qr_code,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Payment       *PaymentState  `json:"payment,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Active reports whether the registration still occupies a capacity slot.
func (r *Registration) Active() bool {
	return r.Status == StatusConfirmed || r.Status == StatusCheckedIn
}
