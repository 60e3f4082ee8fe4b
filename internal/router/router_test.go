package router

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/waitlist-display/internal/clock"
	"github.com/iliyamo/waitlist-display/internal/config"
	"github.com/iliyamo/waitlist-display/internal/handler"
	"github.com/iliyamo/waitlist-display/internal/middleware"
	"github.com/iliyamo/waitlist-display/internal/repository"
	"github.com/iliyamo/waitlist-display/internal/waitlist"
)

const secret = "router-secret"

func newApp(t *testing.T, jwtSecret string, limiter echo.MiddlewareFunc) (*echo.Echo, *waitlist.Engine) {
	t.Helper()
	engine := waitlist.New(repository.NewMemoryStore(), repository.NewMemorySequence(),
		clock.NewFake(time.Date(2026, 10, 18, 18, 0, 0, 0, time.UTC)), time.UTC)
	w := handler.NewWaitlistHandler(engine)
	e := echo.New()
	RegisterRoutes(e, handler.NewReadyHandler(map[string]handler.Checker{
		"store": func(context.Context) error { return nil },
	}))
	RegisterDisplay(e, w, handler.NewEventsHandler(engine.Subscribe, time.Second))
	RegisterCommands(e, w, jwtSecret, limiter)
	return e, engine
}

func token(t *testing.T, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.StaffClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "staff",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func call(e *echo.Echo, method, path, body, bearer string) int {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec.Code
}

func TestRoutes_Probes(t *testing.T) {
	e, _ := newApp(t, secret, nil)
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/healthz", "", ""))
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/readyz", "", ""))
}

func TestRoutes_DisplayIsPublic(t *testing.T) {
	e, _ := newApp(t, secret, nil)
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/api/waiting-summary", "", ""))
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/api/tv-status", "", ""))
}

func TestRoutes_CommandRoles(t *testing.T) {
	e, engine := newApp(t, secret, nil)
	r, err := engine.Register(context.Background(), "A", 2)
	require.NoError(t, err)
	body := `{"name":"B","people":1}`

	assert.Equal(t, http.StatusUnauthorized, call(e, http.MethodPost, "/api/reservations", body, ""))
	assert.Equal(t, http.StatusCreated, call(e, http.MethodPost, "/api/reservations", body, token(t, "reception")))
	assert.Equal(t, http.StatusCreated, call(e, http.MethodPost, "/api/reservations", body, token(t, "admin")))

	path := "/api/reservations/" + r.ID + "/call"
	assert.Equal(t, http.StatusUnauthorized, call(e, http.MethodPost, path, "", ""))
	assert.Equal(t, http.StatusForbidden, call(e, http.MethodPost, path, "", token(t, "reception")))
	assert.Equal(t, http.StatusOK, call(e, http.MethodPost, path, "", token(t, "admin")))
	assert.Equal(t, http.StatusForbidden, call(e, http.MethodGet, "/api/reservations", "", token(t, "reception")))
}

func TestRoutes_OpenWithoutSecret(t *testing.T) {
	e, engine := newApp(t, "", nil)
	r, err := engine.Register(context.Background(), "A", 2)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, call(e, http.MethodPost, "/api/reservations/"+r.ID+"/cancel", "", ""))
}

func TestRoutes_RegistrationIsRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	limiter := middleware.NewTokenBucket(config.RateLimitConfig{
		Enabled: true, Capacity: 1, RefillTokens: 1,
		RefillInterval: time.Hour, TTL: 5 * time.Hour, Prefix: "rl:router",
	}, rdb)
	e, _ := newApp(t, "", limiter)

	body := `{"name":"A","people":2}`
	assert.Equal(t, http.StatusCreated, call(e, http.MethodPost, "/api/reservations", body, ""))
	assert.Equal(t, http.StatusTooManyRequests, call(e, http.MethodPost, "/api/reservations", body, ""))
	// reads are never limited
	assert.Equal(t, http.StatusOK, call(e, http.MethodGet, "/api/tv-status", "", ""))
}

func TestRoutes_ReadyReportsFailure(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e, handler.NewReadyHandler(map[string]handler.Checker{
		"redis": func(context.Context) error { return errors.New("down") },
	}))
	assert.Equal(t, http.StatusServiceUnavailable, call(e, http.MethodGet, "/readyz", "", ""))
}
