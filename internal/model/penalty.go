package model

import "time"

// NoShowPenalty blocks an attendee from registering for a period after
// missing an event without cancelling.  Penalties are created by the
// no-show sweep and never mutated; they simply expire.  A nil ExpiresAt
// means the penalty is permanent.
type NoShowPenalty struct {
	ID            uint64     `json:"id"`
	AttendeeEmail string     `json:"email"`
	EventID       uint64     `json:"event_id"`
	Reason        string     `json:"reason"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// ActiveAt reports whether the penalty still blocks registration at the
// given instant.
func (p *NoShowPenalty) ActiveAt(t time.Time) bool {
	return p.ExpiresAt == nil || p.ExpiresAt.After(t)
}
