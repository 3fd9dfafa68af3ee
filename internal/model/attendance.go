package model

import "time"

// AttendanceRecord stores the first successful check-in for a
// registration.  It is created lazily on first check-in and returned
// unchanged on repeated check-ins with the same token.
type AttendanceRecord struct {
	RegistrationID uint64         `json:"registration_id"`
	CheckInTime    time.Time      `json:"check_in_time"`
	CheckInMethod  string         `json:"check_in_method"`
	ScanPayload    map[string]any `json:"scan_payload,omitempty"`
}

// AttendanceView is the per-registration attendance summary returned by
// the attendance listing: registration identity plus check-in state,
// with nil time/method for registrations that never checked in.
type AttendanceView struct {
	RegistrationID uint64     `json:"registration_id"`
	AttendeeEmail  string     `json:"email"`
	Status         string     `json:"status"`
	CheckInTime    *time.Time `json:"checked_in_at,omitempty"`
	CheckInMethod  *string    `json:"method,omitempty"`
}
