package repository

import (
    "context"
    "strconv"
    "sync"
    "time"

    "github.com/iliyamo/waitlist-display/internal/model"
)

// MemoryStore keeps reservations in process memory.  A read/write mutex
// guards the map: compare-and-set holds the write lock for a single map
// update, and list calls hold the read lock for the whole scan so they
// observe one consistent view.
type MemoryStore struct {
    mu    sync.RWMutex
    byID  map[string]model.Reservation
    index map[string]struct{} // day + "#" + number
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
    return &MemoryStore{
        byID:  make(map[string]model.Reservation),
        index: make(map[string]struct{}),
    }
}

func dayNumberKey(day string, number int) string {
    return day + "#" + strconv.Itoa(number)
}

// Create stores res.  It fails with ErrDuplicate when the id or the
// (day, number) pair is already taken.
func (s *MemoryStore) Create(_ context.Context, res model.Reservation) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    if _, ok := s.byID[res.ID]; ok {
        return ErrDuplicate
    }
    key := dayNumberKey(res.Day, res.Number)
    if _, ok := s.index[key]; ok {
        return ErrDuplicate
    }
    s.byID[res.ID] = clone(res)
    s.index[key] = struct{}{}
    return nil
}

// Get returns a copy of the stored reservation.
func (s *MemoryStore) Get(_ context.Context, id string) (model.Reservation, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    res, ok := s.byID[id]
    if !ok {
        return model.Reservation{}, ErrNotFound
    }
    return clone(res), nil
}

// CompareAndSwap applies next's status, calledAt and updatedAt when the
// stored status equals expected.
func (s *MemoryStore) CompareAndSwap(_ context.Context, id string, expected model.Status, next model.Reservation) error {
    s.mu.Lock()
    defer s.mu.Unlock()
    cur, ok := s.byID[id]
    if !ok {
        return ErrNotFound
    }
    if cur.Status != expected {
        return ErrStatusConflict
    }
    cur.Status = next.Status
    cur.CalledAt = cloneTime(next.CalledAt)
    cur.UpdatedAt = next.UpdatedAt
    s.byID[id] = cur
    return nil
}

// ListActive returns day's reservations and every non-terminal one, in no
// particular order.
func (s *MemoryStore) ListActive(_ context.Context, day string) ([]model.Reservation, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    out := make([]model.Reservation, 0, len(s.byID))
    for _, r := range s.byID {
        if r.Day == day || !r.Status.Terminal() {
            out = append(out, clone(r))
        }
    }
    return out, nil
}

// ListByStatus returns the reservations currently in status.
func (s *MemoryStore) ListByStatus(_ context.Context, status model.Status) ([]model.Reservation, error) {
    s.mu.RLock()
    defer s.mu.RUnlock()
    var out []model.Reservation
    for _, r := range s.byID {
        if r.Status == status {
            out = append(out, clone(r))
        }
    }
    return out, nil
}

// MemorySequence is an in-process SequenceAllocator with one counter per day.
type MemorySequence struct {
    mu   sync.Mutex
    last map[string]int
}

// NewMemorySequence returns a MemorySequence starting every day at 1.
func NewMemorySequence() *MemorySequence {
    return &MemorySequence{last: make(map[string]int)}
}

// Next returns the next number of day.
func (q *MemorySequence) Next(_ context.Context, day string) (int, error) {
    q.mu.Lock()
    defer q.mu.Unlock()
    q.last[day]++
    return q.last[day], nil
}

func clone(r model.Reservation) model.Reservation {
    r.CalledAt = cloneTime(r.CalledAt)
    return r
}

func cloneTime(t *time.Time) *time.Time {
    if t == nil {
        return nil
    }
    v := *t
    return &v
}
