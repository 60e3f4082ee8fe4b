package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/waitlist-display/internal/clock"
	"github.com/iliyamo/waitlist-display/internal/repository"
	"github.com/iliyamo/waitlist-display/internal/waitlist"
)

func TestEventsHandler_StreamsTransitions(t *testing.T) {
	engine := waitlist.New(repository.NewMemoryStore(), repository.NewMemorySequence(),
		clock.NewFake(time.Date(2026, 10, 18, 18, 0, 0, 0, time.UTC)), time.UTC)
	e := echo.New()
	e.GET("/api/events", NewEventsHandler(engine.Subscribe, time.Hour).Stream)
	srv := httptest.NewServer(e)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	r, err := engine.Register(context.Background(), "A", 2)
	require.NoError(t, err)

	scanner := bufio.NewScanner(resp.Body)
	var eventLine, dataLine string
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "event: ") {
			eventLine = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			dataLine = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, string(waitlist.EventRegistered), eventLine)

	var ev waitlist.Event
	require.NoError(t, json.Unmarshal([]byte(dataLine), &ev))
	assert.Equal(t, r.ID, ev.Reservation.ID)
	assert.Equal(t, 1, ev.Reservation.Number)
}

func TestEventsHandler_UnsubscribesOnDisconnect(t *testing.T) {
	subscribed := make(chan struct{})
	unsubscribed := make(chan struct{})
	h := NewEventsHandler(func(func(waitlist.Event)) func() {
		close(subscribed)
		return func() { close(unsubscribed) }
	}, time.Hour)

	e := echo.New()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	done := make(chan error, 1)
	go func() { done <- h.Stream(c) }()

	<-subscribed
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not return after disconnect")
	}
	select {
	case <-unsubscribed:
	default:
		t.Fatal("subscription was not released")
	}
}
