package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/waitlist-display/internal/model"
)

// ReservationRepo is the MySQL implementation of ReservationStore.  Rows
// live in the reservations table; all timestamps are stored in UTC.
type ReservationRepo struct {
    db *sql.DB
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationColumns = `id, day, number, name, people, status, called_at, created_at, updated_at`

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062

// Create inserts a new reservation row.  A unique key violation on the
// primary key or on (day, number) is reported as ErrDuplicate.
func (r *ReservationRepo) Create(ctx context.Context, res model.Reservation) error {
    const q = `INSERT INTO reservations (` + reservationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
    _, err := r.db.ExecContext(ctx, q,
        res.ID, res.Day, res.Number, res.Name, res.People, string(res.Status),
        nullTime(res.CalledAt), res.CreatedAt.UTC(), res.UpdatedAt.UTC(),
    )
    var myErr *mysql.MySQLError
    if errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry {
        return ErrDuplicate
    }
    return err
}

// Get loads a single reservation by id.  It returns ErrNotFound when no row
// matches.
func (r *ReservationRepo) Get(ctx context.Context, id string) (model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = ?`
    res, err := scanReservation(r.db.QueryRowContext(ctx, q, id))
    if errors.Is(err, sql.ErrNoRows) {
        return model.Reservation{}, ErrNotFound
    }
    return res, err
}

// CompareAndSwap issues a conditional UPDATE guarded by the expected status.
// The row lock taken by the UPDATE makes the check and the write atomic.
// When nothing was updated, a follow-up lookup distinguishes a missing row
// from a status that moved on.
func (r *ReservationRepo) CompareAndSwap(ctx context.Context, id string, expected model.Status, next model.Reservation) error {
    const q = `UPDATE reservations SET status = ?, called_at = ?, updated_at = ? WHERE id = ? AND status = ?`
    result, err := r.db.ExecContext(ctx, q,
        string(next.Status), nullTime(next.CalledAt), next.UpdatedAt.UTC(), id, string(expected),
    )
    if err != nil {
        return err
    }
    n, err := result.RowsAffected()
    if err != nil {
        return err
    }
    if n > 0 {
        return nil
    }
    var exists int
    err = r.db.QueryRowContext(ctx, `SELECT 1 FROM reservations WHERE id = ?`, id).Scan(&exists)
    if errors.Is(err, sql.ErrNoRows) {
        return ErrNotFound
    }
    if err != nil {
        return err
    }
    return ErrStatusConflict
}

// ListActive returns the operating day's reservations and every waiting or
// called one of earlier days, ordered by day and number.  A single SELECT
// gives a consistent snapshot under InnoDB's consistent read.
func (r *ReservationRepo) ListActive(ctx context.Context, day string) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations
               WHERE day = ? OR status IN (?, ?) ORDER BY day ASC, number ASC`
    return r.list(ctx, q, day, string(model.StatusWaiting), string(model.StatusCalled))
}

// ListByStatus returns all reservations currently in status.  It is backed
// by the idx_reservations_status index and used by the expiry sweep.
func (r *ReservationRepo) ListByStatus(ctx context.Context, status model.Status) ([]model.Reservation, error) {
    const q = `SELECT ` + reservationColumns + ` FROM reservations WHERE status = ? ORDER BY called_at ASC`
    return r.list(ctx, q, string(status))
}

func (r *ReservationRepo) list(ctx context.Context, q string, args ...interface{}) ([]model.Reservation, error) {
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    var out []model.Reservation
    for rows.Next() {
        res, err := scanReservation(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, res)
    }
    if err := rows.Err(); err != nil {
        return nil, err
    }
    return out, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
    Scan(dest ...interface{}) error
}

func scanReservation(s rowScanner) (model.Reservation, error) {
    var (
        res      model.Reservation
        status   string
        calledAt sql.NullTime
    )
    if err := s.Scan(&res.ID, &res.Day, &res.Number, &res.Name, &res.People, &status,
        &calledAt, &res.CreatedAt, &res.UpdatedAt); err != nil {
        return model.Reservation{}, err
    }
    res.Status = model.Status(status)
    if calledAt.Valid {
        t := calledAt.Time.UTC()
        res.CalledAt = &t
    }
    res.CreatedAt = res.CreatedAt.UTC()
    res.UpdatedAt = res.UpdatedAt.UTC()
    return res, nil
}

func nullTime(t *time.Time) sql.NullTime {
    if t == nil {
        return sql.NullTime{}
    }
    return sql.NullTime{Time: t.UTC(), Valid: true}
}

// SequenceRepo allocates display numbers from the reservation_sequences
// table.  One row per day holds the last number handed out.
type SequenceRepo struct {
    db *sql.DB
}

// NewSequenceRepo returns a SequenceRepo bound to db.
func NewSequenceRepo(db *sql.DB) *SequenceRepo { return &SequenceRepo{db: db} }

// Next increments the counter of day and returns the new value.  The upsert
// stores the result in LAST_INSERT_ID so the increment and the read happen
// in one statement, serialized by the row lock.
func (q *SequenceRepo) Next(ctx context.Context, day string) (int, error) {
    const stmt = `INSERT INTO reservation_sequences (day, last_number) VALUES (?, LAST_INSERT_ID(1))
                  ON DUPLICATE KEY UPDATE last_number = LAST_INSERT_ID(last_number + 1)`
    result, err := q.db.ExecContext(ctx, stmt, day)
    if err != nil {
        return 0, err
    }
    n, err := result.LastInsertId()
    if err != nil {
        return 0, err
    }
    return int(n), nil
}
