package model

import "time"

// Status is the lifecycle state of a waitlist reservation.
type Status string

const (
    StatusWaiting   Status = "waiting"
    StatusCalled    Status = "called"
    StatusSeatEnter Status = "seatEnter"
    StatusMissed    Status = "missed"
    StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
    switch s {
    case StatusWaiting, StatusCalled, StatusSeatEnter, StatusMissed, StatusCancelled:
        return true
    }
    return false
}

// Terminal reports whether no further transition is possible from s.
func (s Status) Terminal() bool {
    return s == StatusSeatEnter || s == StatusMissed || s == StatusCancelled
}

// Reservation is one party on the waitlist.
//
// Fields:
//  ID        – opaque identifier assigned at registration.
//  Day       – operating day (YYYY-MM-DD) the number belongs to.
//  Number    – display number, unique and increasing within Day.
//  Name      – display name of the party.
//  People    – party size.
//  Status    – lifecycle state.
//  CalledAt  – set when the party was called; kept after seating or expiry.
//  CreatedAt – registration timestamp.
//  UpdatedAt – timestamp of the last transition.
type Reservation struct {
    ID        string     `json:"id"`
    Day       string     `json:"day"`
    Number    int        `json:"number"`
    Name      string     `json:"name"`
    People    int        `json:"people"`
    Status    Status     `json:"status"`
    CalledAt  *time.Time `json:"calledAt,omitempty"`
    CreatedAt time.Time  `json:"createdAt"`
    UpdatedAt time.Time  `json:"updatedAt"`
}

// WaitingSummary aggregates the parties still waiting.
type WaitingSummary struct {
    Groups int `json:"groups"`
    People int `json:"people"`
}

// TvReservation is the reduced view of a reservation shown on the TV display.
type TvReservation struct {
    ID     string `json:"id"`
    Number int    `json:"number"`
    Name   string `json:"name"`
    People int    `json:"people"`
    Status Status `json:"status"`
}

// TvStatus is the payload polled by the TV display.  CurrentCalled is ordered
// by call time, Reservations by number.
type TvStatus struct {
    CurrentCalled []int           `json:"currentCalled"`
    Reservations  []TvReservation `json:"reservations"`
}
