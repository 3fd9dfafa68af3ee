// Package queue defines message payloads exchanged over the message
// broker, the publisher used by the orchestration engine and the
// background consumer that drains notification queues into a log file.
package queue

// Queue names used by the attendance engine.
const (
	ConfirmedQueue = "registration.confirmed"
	ReminderQueue  = "registration.reminder"
)

// RegistrationConfirmedEvent is published after a registration is
// confirmed, whether directly admitted or promoted from the waitlist.
// It carries enough information for downstream consumers to notify the
// attendee without querying the primary database.
type RegistrationConfirmedEvent struct {
	RegistrationID uint64 `json:"registration_id"`
	EventID        uint64 `json:"event_id"`
	EventTitle     string `json:"event_title"`
	AttendeeEmail  string `json:"email"`
	Promoted       bool   `json:"promoted"`
	Amount         string `json:"amount,omitempty"`
	Currency       string `json:"currency,omitempty"`
	ConfirmedAt    string `json:"confirmed_at"`
}

// RegistrationReminderEvent is published by the reminder sweep for each
// confirmed registration of an upcoming event.
type RegistrationReminderEvent struct {
	EventID       uint64 `json:"event_id"`
	EventTitle    string `json:"event_title"`
	EventDate     string `json:"event_date"`
	AttendeeEmail string `json:"email"`
}
