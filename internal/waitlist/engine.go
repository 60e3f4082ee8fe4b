// Package waitlist implements the reservation queue engine: the status
// lifecycle of waitlist reservations, display number allocation, the
// aggregates served to the TV display and the expiry of stale calls.
//
// All writes go through the engine.  Each transition is a compare-and-set on
// the reservation's status, so concurrent commands on the same id (or a
// command racing the expiry sweep) resolve to a single winner while
// different ids proceed in parallel.
package waitlist

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"

	"github.com/iliyamo/waitlist-display/internal/clock"
	"github.com/iliyamo/waitlist-display/internal/model"
	"github.com/iliyamo/waitlist-display/internal/repository"
)

const (
	// MaxNameLength bounds the display name in characters.
	MaxNameLength = 100
	// MaxPartySize bounds the number of people in one reservation.
	MaxPartySize = 99

	// Every lost race means the status advanced along an acyclic path of at
	// most two edges, so a handful of attempts always converges.
	maxCASAttempts = 5

	dayLayout = "2006-01-02"

	lockStripes = 64
)

// Engine owns the reservation state machine.
type Engine struct {
	store  repository.ReservationStore
	seq    repository.SequenceAllocator
	clock  clock.Clock
	loc    *time.Location
	notify notifier

	// stripes serialize the write and the event of transitions on one id,
	// so subscribers see an id's events in transition order.
	stripes [lockStripes]sync.Mutex
}

// New returns an Engine.  loc defines the operating-day boundary used for
// numbering and for the daily views; nil means UTC.
func New(store repository.ReservationStore, seq repository.SequenceAllocator, clk clock.Clock, loc *time.Location) *Engine {
	if store == nil || seq == nil {
		panic("nil store passed to waitlist.New")
	}
	if clk == nil {
		clk = clock.Real()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{store: store, seq: seq, clock: clk, loc: loc}
}

func (e *Engine) lockID(id string) func() {
	mu := &e.stripes[xxhash.Sum64String(id)%lockStripes]
	mu.Lock()
	return mu.Unlock
}

// Now returns the engine's current time.
func (e *Engine) Now() time.Time { return e.clock.Now() }

// Day returns the operating day t falls in.
func (e *Engine) Day(t time.Time) string { return t.In(e.loc).Format(dayLayout) }

// Subscribe registers fn to receive every successful transition.  The
// returned function removes the subscription.  fn runs on the caller's
// goroutine and must not block or call back into the engine.  Events of one
// reservation arrive in transition order.
func (e *Engine) Subscribe(fn func(Event)) func() { return e.notify.subscribe(fn) }

// Register adds a new waiting party with the next number of today.
func (e *Engine) Register(ctx context.Context, name string, people int) (model.Reservation, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return model.Reservation{}, &ValidationError{Field: "name", Message: "must not be empty"}
	case utf8.RuneCountInString(name) > MaxNameLength:
		return model.Reservation{}, &ValidationError{Field: "name", Message: fmt.Sprintf("must be at most %d characters", MaxNameLength)}
	case people <= 0:
		return model.Reservation{}, &ValidationError{Field: "people", Message: "must be positive"}
	case people > MaxPartySize:
		return model.Reservation{}, &ValidationError{Field: "people", Message: fmt.Sprintf("must be at most %d", MaxPartySize)}
	}

	now := e.clock.Now()
	day := e.Day(now)
	number, err := e.seq.Next(ctx, day)
	if err != nil {
		return model.Reservation{}, fmt.Errorf("allocate number: %w", err)
	}
	res := model.Reservation{
		ID:        uuid.NewString(),
		Day:       day,
		Number:    number,
		Name:      name,
		People:    people,
		Status:    model.StatusWaiting,
		CreatedAt: now,
		UpdatedAt: now,
	}
	unlock := e.lockID(res.ID)
	defer unlock()
	if err := e.store.Create(ctx, res); err != nil {
		return model.Reservation{}, fmt.Errorf("create reservation: %w", err)
	}
	e.emit(EventRegistered, res, now)
	return res, nil
}

// Call moves a waiting reservation to called and stamps calledAt.  Calling
// a reservation that is already called returns it unchanged.
func (e *Engine) Call(ctx context.Context, id string) (model.Reservation, error) {
	return e.transition(ctx, id, "call", EventCalled, func(cur model.Reservation, now time.Time) (model.Reservation, bool, error) {
		switch cur.Status {
		case model.StatusCalled:
			return cur, false, nil
		case model.StatusWaiting:
			cur.Status = model.StatusCalled
			cur.CalledAt = &now
			cur.UpdatedAt = now
			return cur, true, nil
		}
		return cur, false, &InvalidStateError{ID: cur.ID, Op: "call", Status: cur.Status}
	})
}

// Seat moves a called reservation to seatEnter.  Waiting parties must be
// called first.
func (e *Engine) Seat(ctx context.Context, id string) (model.Reservation, error) {
	return e.transition(ctx, id, "seat", EventSeated, func(cur model.Reservation, now time.Time) (model.Reservation, bool, error) {
		if cur.Status != model.StatusCalled {
			return cur, false, &InvalidStateError{ID: cur.ID, Op: "seat", Status: cur.Status}
		}
		cur.Status = model.StatusSeatEnter
		cur.UpdatedAt = now
		return cur, true, nil
	})
}

// Cancel removes a waiting or called reservation from the queue.  It is a
// no-op on an already cancelled reservation.
func (e *Engine) Cancel(ctx context.Context, id string) (model.Reservation, error) {
	return e.transition(ctx, id, "cancel", EventCancelled, func(cur model.Reservation, now time.Time) (model.Reservation, bool, error) {
		switch cur.Status {
		case model.StatusCancelled:
			return cur, false, nil
		case model.StatusWaiting, model.StatusCalled:
			cur.Status = model.StatusCancelled
			cur.UpdatedAt = now
			return cur, true, nil
		}
		return cur, false, &InvalidStateError{ID: cur.ID, Op: "cancel", Status: cur.Status}
	})
}

type decideFunc func(cur model.Reservation, now time.Time) (next model.Reservation, changed bool, err error)

// transition reads the reservation, asks decide for the next state and
// writes it with a compare-and-set on the status that was read.  A lost
// race re-runs decide against the fresh record.
func (e *Engine) transition(ctx context.Context, id, op string, evType EventType, decide decideFunc) (model.Reservation, error) {
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		cur, err := e.store.Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return model.Reservation{}, &NotFoundError{ID: id}
		}
		if err != nil {
			return model.Reservation{}, fmt.Errorf("%s: load reservation: %w", op, err)
		}

		now := e.clock.Now()
		next, changed, err := decide(cur, now)
		if err != nil {
			return model.Reservation{}, err
		}
		if !changed {
			return cur, nil
		}

		err = e.swap(ctx, cur.Status, next, evType, now)
		switch {
		case err == nil:
			return next, nil
		case errors.Is(err, repository.ErrStatusConflict):
			continue
		case errors.Is(err, repository.ErrNotFound):
			return model.Reservation{}, &NotFoundError{ID: id}
		default:
			return model.Reservation{}, fmt.Errorf("%s: update reservation: %w", op, err)
		}
	}
	return model.Reservation{}, fmt.Errorf("%s %s: %w", op, id, ErrContention)
}

// swap writes next if the stored status is still expected and emits evType
// before another transition of the same id can be written.
func (e *Engine) swap(ctx context.Context, expected model.Status, next model.Reservation, evType EventType, now time.Time) error {
	unlock := e.lockID(next.ID)
	defer unlock()
	if err := e.store.CompareAndSwap(ctx, next.ID, expected, next); err != nil {
		return err
	}
	e.emit(evType, next, now)
	return nil
}

// ExpirySweep marks every called reservation whose call is at least timeout
// old at now as missed, and returns the reservations it expired.  Each
// expiry is its own compare-and-set, so a reservation seated or cancelled
// concurrently is skipped rather than overwritten.  Failures on individual
// reservations do not stop the sweep; they are joined into the error.
func (e *Engine) ExpirySweep(ctx context.Context, now time.Time, timeout time.Duration) ([]model.Reservation, error) {
	called, err := e.store.ListByStatus(ctx, model.StatusCalled)
	if err != nil {
		return nil, fmt.Errorf("sweep: list called: %w", err)
	}
	var (
		expired []model.Reservation
		errs    []error
	)
	for _, r := range called {
		if r.CalledAt == nil || now.Sub(*r.CalledAt) < timeout {
			continue
		}
		next := r
		next.Status = model.StatusMissed
		next.UpdatedAt = now
		err := e.swap(ctx, model.StatusCalled, next, EventMissed, now)
		switch {
		case err == nil:
			expired = append(expired, next)
		case errors.Is(err, repository.ErrStatusConflict), errors.Is(err, repository.ErrNotFound):
			// someone else already moved it on
		default:
			errs = append(errs, fmt.Errorf("sweep: expire %s: %w", r.ID, err))
		}
	}
	return expired, errors.Join(errs...)
}

// Get returns a single reservation.
func (e *Engine) Get(ctx context.Context, id string) (model.Reservation, error) {
	res, err := e.store.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Reservation{}, &NotFoundError{ID: id}
	}
	if err != nil {
		return model.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// Snapshot returns what the displays show: every waiting or called
// reservation whatever day it was registered on, plus today's finished ones.
// The list is ordered by day, then number.
func (e *Engine) Snapshot(ctx context.Context) ([]model.Reservation, error) {
	list, err := e.store.ListActive(ctx, e.Day(e.clock.Now()))
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	sort.Slice(list, func(i, j int) bool { return queueOrder(list[i], list[j]) })
	return list, nil
}

// queueOrder orders by operating day, then display number.
func queueOrder(a, b model.Reservation) bool {
	if a.Day != b.Day {
		return a.Day < b.Day
	}
	return a.Number < b.Number
}

// List returns the Snapshot, optionally restricted to one status.
func (e *Engine) List(ctx context.Context, status model.Status) ([]model.Reservation, error) {
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	list, err := e.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return list, nil
	}
	out := make([]model.Reservation, 0, len(list))
	for _, r := range list {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

// WaitingSummary computes the summary over the Snapshot.
func (e *Engine) WaitingSummary(ctx context.Context) (model.WaitingSummary, error) {
	list, err := e.Snapshot(ctx)
	if err != nil {
		return model.WaitingSummary{}, err
	}
	return ComputeWaitingSummary(list), nil
}

// TvStatus computes the TV payload over the Snapshot.
func (e *Engine) TvStatus(ctx context.Context) (model.TvStatus, error) {
	list, err := e.Snapshot(ctx)
	if err != nil {
		return model.TvStatus{}, err
	}
	return ComputeTvStatus(list), nil
}

func (e *Engine) emit(t EventType, res model.Reservation, at time.Time) {
	e.notify.publish(Event{Type: t, Reservation: res, At: at})
}

func calledAt(r model.Reservation) time.Time {
	if r.CalledAt == nil {
		return time.Time{}
	}
	return *r.CalledAt
}
