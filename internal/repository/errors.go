// Package repository defines the storage contract for waitlist
// reservations together with its in-memory, MySQL and Redis backed
// implementations.  The sentinel errors below let the engine tell a
// missing record apart from a lost compare-and-set race.
package repository

import "errors"

// ErrNotFound is returned when no reservation exists for the given id.
// The engine translates it into a NotFoundError for callers.
var ErrNotFound = errors.New("reservation not found")

// ErrStatusConflict is returned by CompareAndSwap when the stored status no
// longer matches the expected one.  Another writer won the race; callers
// should re-read the record and decide again.
var ErrStatusConflict = errors.New("reservation status changed concurrently")

// ErrDuplicate is returned by Create when a record with the same id or the
// same (day, number) pair already exists.
var ErrDuplicate = errors.New("duplicate reservation")
