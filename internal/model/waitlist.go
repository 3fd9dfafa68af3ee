package model

import "time"

// WaitlistEntry queues an attendee for a full event.  CreatedAt is the
// FIFO promotion key: entries are promoted strictly in arrival order.
// An email may not hold an active registration and a waitlist entry for
// the same event at the same time.
type WaitlistEntry struct {
	ID            uint64    `json:"id"`
	EventID       uint64    `json:"event_id"`
	AttendeeEmail string    `json:"email"`
	AttendeeName  string    `json:"name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
