package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/waitlist-display/internal/model"
	"github.com/iliyamo/waitlist-display/internal/waitlist"
)

// QueueEngine is the subset of the waitlist engine the HTTP layer needs.
type QueueEngine interface {
	Register(ctx context.Context, name string, people int) (model.Reservation, error)
	Call(ctx context.Context, id string) (model.Reservation, error)
	Seat(ctx context.Context, id string) (model.Reservation, error)
	Cancel(ctx context.Context, id string) (model.Reservation, error)
	Get(ctx context.Context, id string) (model.Reservation, error)
	List(ctx context.Context, status model.Status) ([]model.Reservation, error)
	WaitingSummary(ctx context.Context) (model.WaitingSummary, error)
	TvStatus(ctx context.Context) (model.TvStatus, error)
}

// WaitlistHandler serves the read API polled by the TV display and the
// commands issued by reception and the admin screen.
type WaitlistHandler struct {
	Engine QueueEngine
}

// NewWaitlistHandler constructs a WaitlistHandler.  The engine must be non-nil.
func NewWaitlistHandler(engine QueueEngine) *WaitlistHandler {
	if engine == nil {
		panic("nil engine passed to NewWaitlistHandler")
	}
	return &WaitlistHandler{Engine: engine}
}

// WaitingSummary handles GET /api/waiting-summary.  A backend failure is
// reported as 500 rather than as an empty summary, so pollers keep their
// last good display.
func (h *WaitlistHandler) WaitingSummary(c echo.Context) error {
	sum, err := h.Engine.WaitingSummary(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sum)
}

// TvStatus handles GET /api/tv-status.
func (h *WaitlistHandler) TvStatus(c echo.Context) error {
	tv, err := h.Engine.TvStatus(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, tv)
}

// CreateReservation handles POST /api/reservations.  The body carries the
// party's display name and size; the response is the new reservation with
// its display number.
func (h *WaitlistHandler) CreateReservation(c echo.Context) error {
	var body struct {
		Name   string `json:"name"`
		People int    `json:"people"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "message": "invalid request body"})
	}
	res, err := h.Engine.Register(c.Request().Context(), body.Name, body.People)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListReservations handles GET /api/reservations.  The optional status
// query parameter restricts the list to one status.
func (h *WaitlistHandler) ListReservations(c echo.Context) error {
	status := model.Status(strings.TrimSpace(c.QueryParam("status")))
	list, err := h.Engine.List(c.Request().Context(), status)
	if err != nil {
		return writeError(c, err)
	}
	if list == nil {
		list = []model.Reservation{}
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// GetReservation handles GET /api/reservations/:id.
func (h *WaitlistHandler) GetReservation(c echo.Context) error {
	res, err := h.Engine.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// CallReservation handles POST /api/reservations/:id/call.
func (h *WaitlistHandler) CallReservation(c echo.Context) error {
	return h.command(c, h.Engine.Call)
}

// SeatReservation handles POST /api/reservations/:id/seat.
func (h *WaitlistHandler) SeatReservation(c echo.Context) error {
	return h.command(c, h.Engine.Seat)
}

// CancelReservation handles POST /api/reservations/:id/cancel.
func (h *WaitlistHandler) CancelReservation(c echo.Context) error {
	return h.command(c, h.Engine.Cancel)
}

func (h *WaitlistHandler) command(c echo.Context, op func(context.Context, string) (model.Reservation, error)) error {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "message": "invalid reservation id"})
	}
	res, err := op(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// writeError maps engine errors onto status codes.  Anything that is not a
// typed engine error is a backend failure.
func writeError(c echo.Context, err error) error {
	var (
		verr  *waitlist.ValidationError
		nferr *waitlist.NotFoundError
		serr  *waitlist.InvalidStateError
	)
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation_error", "message": verr.Error()})
	case errors.As(err, &nferr):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": nferr.Error()})
	case errors.As(err, &serr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":   "invalid_state",
			"message": serr.Error(),
			"status":  serr.Status,
		})
	}
	log.Printf("waitlist: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "backend_error", "message": "temporarily unavailable"})
}
