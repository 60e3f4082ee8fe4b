package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/waitlist-display/internal/waitlist"
)

// EventsHandler streams engine events to screens that prefer push over
// polling.  Events are best effort: a client that falls behind loses
// events and should re-read tv-status.
type EventsHandler struct {
	subscribe func(func(waitlist.Event)) func()
	heartbeat time.Duration
	buffer    int
}

// NewEventsHandler wires the handler to a subscription source, usually
// (*waitlist.Engine).Subscribe.
func NewEventsHandler(subscribe func(func(waitlist.Event)) func(), heartbeat time.Duration) *EventsHandler {
	if subscribe == nil {
		panic("nil subscribe passed to NewEventsHandler")
	}
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &EventsHandler{subscribe: subscribe, heartbeat: heartbeat, buffer: 64}
}

// Stream handles GET /api/events as a text/event-stream.
func (h *EventsHandler) Stream(c echo.Context) error {
	ch := make(chan waitlist.Event, h.buffer)
	unsubscribe := h.subscribe(func(ev waitlist.Event) {
		select {
		case ch <- ev:
		default:
		}
	})
	defer unsubscribe()

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-ch:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Printf("events: marshal %s: %v", ev.Type, err)
				continue
			}
			if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
				return nil
			}
			res.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}
