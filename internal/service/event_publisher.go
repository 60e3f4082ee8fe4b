// Package service publishes waitlist events to RabbitMQ.  Failures are logged
// and never reach the request that caused the event.
package service

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/waitlist-display/internal/queue"
    "github.com/iliyamo/waitlist-display/internal/waitlist"
)

// PublishFunc delivers one JSON message.
type PublishFunc func(ctx context.Context, body []byte) error

// EventPublisher buffers engine events and publishes them in order from a
// single worker.  When the buffer is full new events are dropped.
type EventPublisher struct {
    publish PublishFunc
    events  chan waitlist.Event
    timeout time.Duration

    mu      sync.Mutex
    dropped int
}

// NewEventPublisher returns a publisher with the given buffer size.
func NewEventPublisher(publish PublishFunc, buffer int) *EventPublisher {
    if publish == nil {
        panic("nil publish passed to NewEventPublisher")
    }
    if buffer <= 0 {
        buffer = 256
    }
    return &EventPublisher{publish: publish, events: make(chan waitlist.Event, buffer), timeout: 5 * time.Second}
}

// Handle is an engine subscriber.  It never blocks.
func (p *EventPublisher) Handle(ev waitlist.Event) {
    select {
    case p.events <- ev:
    default:
        p.mu.Lock()
        p.dropped++
        p.mu.Unlock()
        log.Printf("rabbitmq: buffer full, dropped %s for %s", ev.Type, ev.Reservation.ID)
    }
}

// Dropped reports how many events were discarded because the buffer was full.
func (p *EventPublisher) Dropped() int {
    p.mu.Lock()
    defer p.mu.Unlock()
    return p.dropped
}

// Run publishes buffered events until ctx is cancelled.  Events still queued
// at that point are flushed with a fresh deadline.
func (p *EventPublisher) Run(ctx context.Context) {
    for {
        select {
        case ev := <-p.events:
            p.send(ctx, ev)
        case <-ctx.Done():
            flush := context.WithoutCancel(ctx)
            for {
                select {
                case ev := <-p.events:
                    p.send(flush, ev)
                default:
                    return
                }
            }
        }
    }
}

func (p *EventPublisher) send(ctx context.Context, ev waitlist.Event) {
    body, err := json.Marshal(queue.FromEngine(ev))
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return
    }
    ctx, cancel := context.WithTimeout(ctx, p.timeout)
    defer cancel()
    if err := p.publish(ctx, body); err != nil {
        log.Printf("rabbitmq: publish %s for %s failed: %v", ev.Type, ev.Reservation.ID, err)
    }
}

// AMQPPublisher keeps one connection and channel open and reopens them after
// a failure.
type AMQPPublisher struct {
    url       string
    queueName string

    mu   sync.Mutex
    conn *amqp.Connection
    ch   *amqp.Channel
}

// NewAMQPPublisher does not connect; the first Publish does.
func NewAMQPPublisher(url, queueName string) *AMQPPublisher {
    if queueName == "" {
        queueName = queue.DefaultQueueName
    }
    return &AMQPPublisher{url: url, queueName: queueName}
}

// Publish sends body to the queue as a persistent JSON message.
func (a *AMQPPublisher) Publish(ctx context.Context, body []byte) error {
    a.mu.Lock()
    defer a.mu.Unlock()
    if err := a.ensure(); err != nil {
        return err
    }
    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Body:         body,
    }
    if err := a.ch.PublishWithContext(ctx, "", a.queueName, false, false, pub); err != nil {
        a.reset()
        return fmt.Errorf("publish: %w", err)
    }
    return nil
}

func (a *AMQPPublisher) ensure() error {
    if a.ch != nil && !a.ch.IsClosed() {
        return nil
    }
    a.reset()
    conn, err := amqp.Dial(a.url)
    if err != nil {
        return fmt.Errorf("dial: %w", err)
    }
    ch, err := conn.Channel()
    if err != nil {
        _ = conn.Close()
        return fmt.Errorf("channel open: %w", err)
    }
    if _, err := ch.QueueDeclare(a.queueName, true, false, false, false, nil); err != nil {
        _ = ch.Close()
        _ = conn.Close()
        return fmt.Errorf("queue declare: %w", err)
    }
    a.conn, a.ch = conn, ch
    return nil
}

func (a *AMQPPublisher) reset() {
    if a.ch != nil {
        _ = a.ch.Close()
    }
    if a.conn != nil {
        _ = a.conn.Close()
    }
    a.conn, a.ch = nil, nil
}

// Close releases the broker connection.
func (a *AMQPPublisher) Close() error {
    a.mu.Lock()
    defer a.mu.Unlock()
    if a.conn == nil {
        return nil
    }
    err := a.conn.Close()
    a.conn, a.ch = nil, nil
    if errors.Is(err, amqp.ErrClosed) {
        return nil
    }
    return err
}
