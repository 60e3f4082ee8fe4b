// Package queue defines the waitlist event payload carried over RabbitMQ and
// the consumer that turns it into an audit log.
package queue

import (
    "time"

    "github.com/iliyamo/waitlist-display/internal/waitlist"
)

// DefaultQueueName is the durable queue engine events are published to.
const DefaultQueueName = "waitlist.events"

// ReservationEvent is published on every status change.  It carries enough
// for downstream consumers to log or notify without reading the store.
type ReservationEvent struct {
    Event         string `json:"event"`
    ReservationID string `json:"reservation_id"`
    Day           string `json:"day"`
    Number        int    `json:"number"`
    Name          string `json:"name"`
    People        int    `json:"people"`
    Status        string `json:"status"`
    CalledAt      string `json:"called_at,omitempty"`
    OccurredAt    string `json:"occurred_at"`
}

// FromEngine flattens an engine event into its wire form.  Times are RFC 3339
// in UTC.
func FromEngine(ev waitlist.Event) ReservationEvent {
    r := ev.Reservation
    out := ReservationEvent{
        Event:         string(ev.Type),
        ReservationID: r.ID,
        Day:           r.Day,
        Number:        r.Number,
        Name:          r.Name,
        People:        r.People,
        Status:        string(r.Status),
        OccurredAt:    ev.At.UTC().Format(time.RFC3339),
    }
    if r.CalledAt != nil {
        out.CalledAt = r.CalledAt.UTC().Format(time.RFC3339)
    }
    return out
}
