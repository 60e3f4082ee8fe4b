package router // package router defines how HTTP routes are registered for the API

import (
	"log"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/waitlist-display/internal/handler"
	"github.com/iliyamo/waitlist-display/internal/middleware"
)

// Staff roles carried in the token's "role" claim.
const (
	RoleAdmin     = "ADMIN"
	RoleReception = "RECEPTION"
)

// RegisterRoutes registers the probes used by load balancers and
// orchestrators.
func RegisterRoutes(e *echo.Echo, ready *handler.ReadyHandler) {
	e.GET("/healthz", handler.Health)
	if ready != nil {
		e.GET("/readyz", ready.Ready)
	}
}

// RegisterDisplay registers the unauthenticated endpoints polled by the TV
// display.  events may be nil to leave the push stream off.
func RegisterDisplay(e *echo.Echo, w *handler.WaitlistHandler, events *handler.EventsHandler) {
	e.GET("/api/waiting-summary", w.WaitingSummary)
	e.GET("/api/tv-status", w.TvStatus)
	if events != nil {
		e.GET("/api/events", events.Stream)
	}
}

// RegisterCommands registers the reception and admin endpoints.  Reception
// may register parties; everything else needs ADMIN.  With an empty
// jwtSecret the routes are left open, which is meant for a single trusted
// kiosk on a private network.  limiter, when non-nil, guards registration.
func RegisterCommands(e *echo.Echo, w *handler.WaitlistHandler, jwtSecret string, limiter echo.MiddlewareFunc) {
	var reception, admin []echo.MiddlewareFunc
	if jwtSecret != "" {
		auth := middleware.JWTAuth(jwtSecret)
		reception = []echo.MiddlewareFunc{auth, middleware.RequireRole(RoleReception, RoleAdmin)}
		admin = []echo.MiddlewareFunc{auth, middleware.RequireRole(RoleAdmin)}
	} else {
		log.Printf("router: JWT_SECRET is empty, command routes are unauthenticated")
	}
	if limiter != nil {
		reception = append(reception, limiter)
	}

	e.POST("/api/reservations", w.CreateReservation, reception...)
	e.GET("/api/reservations", w.ListReservations, admin...)
	e.GET("/api/reservations/:id", w.GetReservation, admin...)
	e.POST("/api/reservations/:id/call", w.CallReservation, admin...)
	e.POST("/api/reservations/:id/seat", w.SeatReservation, admin...)
	e.POST("/api/reservations/:id/cancel", w.CancelReservation, admin...)
}
