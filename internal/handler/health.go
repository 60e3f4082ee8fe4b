package handler // declare the package name; contains HTTP handlers

import (
    "context"
    "net/http"
    "sort"
    "time"

    "github.com/labstack/echo/v4"
)

// Health is the liveness endpoint used by load balancers.  It returns a
// plain text "ok" with 200 as long as the process serves requests.
func Health(c echo.Context) error {
    return c.String(http.StatusOK, "ok")
}

// Checker probes one backend dependency (MySQL, Redis, ...).
type Checker func(ctx context.Context) error

// ReadyHandler reports whether the backends behind the waitlist respond.
type ReadyHandler struct {
    checks map[string]Checker
}

// NewReadyHandler builds a ReadyHandler.  An empty map always reports ready.
func NewReadyHandler(checks map[string]Checker) *ReadyHandler {
    if checks == nil {
        checks = map[string]Checker{}
    }
    return &ReadyHandler{checks: checks}
}

// Ready handles GET /readyz.  Each check gets two seconds; any failure turns
// the response into 503 with the failing dependency names.
func (h *ReadyHandler) Ready(c echo.Context) error {
    ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
    defer cancel()
    failed := []string{}
    for name, check := range h.checks {
        if err := check(ctx); err != nil {
            failed = append(failed, name)
        }
    }
    if len(failed) > 0 {
        sort.Strings(failed)
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "failed": failed})
    }
    return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}
