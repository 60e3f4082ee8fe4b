package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// AuditLog appends one line per event to a file.
type AuditLog struct {
    path string
    mu   sync.Mutex
}

// NewAuditLog returns an AuditLog writing to path; the directory is created
// on first write.
func NewAuditLog(path string) *AuditLog {
    if path == "" {
        path = filepath.Join("logs", "waitlist.log")
    }
    return &AuditLog{path: path}
}

// Path returns the log file location.
func (a *AuditLog) Path() string { return a.path }

// Handle decodes a message body and appends it to the log.
func (a *AuditLog) Handle(body []byte) error {
    var ev ReservationEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if ev.Event == "" || ev.ReservationID == "" {
        return errors.New("event or reservation_id missing")
    }

    a.mu.Lock()
    defer a.mu.Unlock()
    if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    f, err := os.OpenFile(a.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(formatLine(ev)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

func formatLine(ev ReservationEvent) string {
    line := fmt.Sprintf("[%s] %s | day=%s | number=%d | reservation_id=%s | name=%q | people=%d | status=%s",
        ev.OccurredAt, ev.Event, ev.Day, ev.Number, ev.ReservationID, ev.Name, ev.People, ev.Status)
    if ev.CalledAt != "" {
        line += " | called_at=" + ev.CalledAt
    }
    return line + "\n"
}

// StartAuditConsumer connects to RabbitMQ, declares queueName (durable) and
// feeds each delivery to audit.  It reconnects with backoff until ctx is
// cancelled, then returns ctx.Err().  Messages that cannot be handled are
// rejected without requeue.
func StartAuditConsumer(ctx context.Context, url, queueName string, audit *AuditLog) error {
    if queueName == "" {
        queueName = DefaultQueueName
    }
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = consumeLoop(ctx, conn, queueName, audit)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("audit-consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, queueName string, audit *AuditLog) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("audit-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := audit.Handle(d.Body); err != nil {
                log.Printf("audit-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
