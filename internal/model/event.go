package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event is the catalog entity the orchestration engine reads.  The
// catalog subsystem owns creation and mutation of events; this service
// only consumes capacity, pricing and registration-window state and
// toggles the registration_open flag.
//
// Fields:
//  ID                   – primary key identifier.
//  Title                – event title, carried into payment metadata.
//  EventDate            – calendar day of the event (UTC midnight).
//  RegistrationOpen     – whether new registrations are accepted.
//  RegistrationDeadline – optional cut-off after which registration
//                         requests are rejected even when the flag is on.
//  Capacity             – maximum confirmed seats; nil means unlimited.
//  Pricing              – optional price charged on confirmation.
type Event struct {
	ID                   uint64     `json:"id"`
	Title                string     `json:"title"`
	EventDate            time.Time  `json:"event_date"`
	RegistrationOpen     bool       `json:"registration_open"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
	Capacity             *int64     `json:"capacity,omitempty"`
	Pricing              *Pricing   `json:"pricing,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// Pricing is the amount captured per confirmed registration.  Events
// without pricing are free and never touch the payment service.
type Pricing struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// Priced reports whether the event carries a positive price.
func (e *Event) Priced() bool {
	return e.Pricing != nil && e.Pricing.Amount.IsPositive()
}

// Unlimited reports whether the event has no capacity bound.
func (e *Event) Unlimited() bool { return e.Capacity == nil }
