package repository

import (
    "context"

    "github.com/iliyamo/waitlist-display/internal/model"
)

// ReservationStore is the persistence contract the queue engine relies on.
// Every status write goes through CompareAndSwap so that concurrent
// transitions on the same id have a single winner.
type ReservationStore interface {
    // Create inserts a new reservation.
    Create(ctx context.Context, res model.Reservation) error
    // Get returns the reservation with the given id or ErrNotFound.
    Get(ctx context.Context, id string) (model.Reservation, error)
    // CompareAndSwap replaces the status, calledAt and updatedAt of the
    // reservation only if its current status equals expected.  It returns
    // ErrNotFound or ErrStatusConflict when the write did not happen.
    CompareAndSwap(ctx context.Context, id string, expected model.Status, next model.Reservation) error
    // ListActive returns, as one consistent snapshot, every reservation of
    // the operating day plus every waiting or called reservation of earlier
    // days.  Parties still in the queue never fall out of view when the day
    // changes.
    ListActive(ctx context.Context, day string) ([]model.Reservation, error)
    // ListByStatus returns every reservation currently in status.
    ListByStatus(ctx context.Context, status model.Status) ([]model.Reservation, error)
}

// SequenceAllocator hands out display numbers.  Next must never return the
// same number twice for a day, even under concurrent callers.
type SequenceAllocator interface {
    Next(ctx context.Context, day string) (int, error)
}
