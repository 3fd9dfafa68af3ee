// Package repository implements all database access for the attendance
// engine.  Repositories expose plain read methods bound to *sql.DB and
// ...Tx variants taking an explicit *sql.Tx so the service layer can
// compose several writes into one transactional unit of work.  Sentinel
// errors let higher layers distinguish failure scenarios without
// inspecting driver errors.
package repository

import "errors"

// ErrEventNotFound is returned when the referenced event does not exist.
var ErrEventNotFound = errors.New("event not found")

// ErrRegistrationNotFound is returned when a registration lookup by ID
// or check-in token matches nothing.
var ErrRegistrationNotFound = errors.New("registration not found")
