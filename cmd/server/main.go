package main // Entry point package

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/waitlist-display/internal/clock"
	"github.com/iliyamo/waitlist-display/internal/config"
	"github.com/iliyamo/waitlist-display/internal/database"
	"github.com/iliyamo/waitlist-display/internal/handler"
	"github.com/iliyamo/waitlist-display/internal/middleware"
	"github.com/iliyamo/waitlist-display/internal/queue"
	"github.com/iliyamo/waitlist-display/internal/repository"
	"github.com/iliyamo/waitlist-display/internal/router"
	"github.com/iliyamo/waitlist-display/internal/service"
	"github.com/iliyamo/waitlist-display/internal/waitlist"
)

func main() {
	config.LoadDotEnv()
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	checks := map[string]handler.Checker{}

	// Redis is optional unless it carries the number sequence.
	rdb, err := config.NewRedisClient(ctx)
	if err != nil {
		if cfg.SequenceDriver == "redis" {
			return err
		}
		log.Printf("redis unavailable, rate limiting disabled: %v", err)
		rdb = nil
	} else {
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	store, seq, db, err := openStore(ctx, cfg, rdb)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		checks["mysql"] = db.PingContext
	}

	engine := waitlist.New(store, seq, clock.Real(), cfg.Location)

	var bg []func()
	if cfg.EventsEnabled {
		amqpPub := service.NewAMQPPublisher(cfg.RabbitURL, cfg.EventsQueue)
		defer amqpPub.Close()
		pub := service.NewEventPublisher(amqpPub.Publish, 0)
		unsubscribe := engine.Subscribe(pub.Handle)
		defer unsubscribe()
		bg = append(bg, func() { pub.Run(ctx) })
		log.Printf("publishing events to %s", cfg.EventsQueue)
	}
	if cfg.AuditConsumerEnabled {
		audit := queue.NewAuditLog(cfg.AuditLogPath)
		log.Printf("audit-consumer: appending %s events to %s", cfg.EventsQueue, audit.Path())
		bg = append(bg, func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitURL, cfg.EventsQueue, audit); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("audit-consumer: stopped: %v", err)
			}
		})
	}
	sweeper := waitlist.NewSweeper(engine, cfg.SweepInterval, cfg.CallTimeout)
	bg = append(bg, func() { sweeper.Run(ctx) })

	done := make(chan struct{}, len(bg))
	for _, fn := range bg {
		fn := fn
		go func() {
			fn()
			done <- struct{}{}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.Logger())
	e.Use(echomw.CORS())

	w := handler.NewWaitlistHandler(engine)
	router.RegisterRoutes(e, handler.NewReadyHandler(checks))
	router.RegisterDisplay(e, w, handler.NewEventsHandler(engine.Subscribe, 15*time.Second))
	router.RegisterCommands(e, w, cfg.JWTSecret, middleware.NewTokenBucket(cfg.RateLimit, rdb))

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, store=%s, tz=%s)", addr, cfg.Env, cfg.StoreDriver, cfg.Location)

	errc := make(chan error, 1)
	go func() { errc <- e.Start(addr) }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}

	// Background workers exit on ctx; wait briefly so queued events flush.
	for range bg {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			return nil
		}
	}
	return nil
}

func openStore(ctx context.Context, cfg config.Config, rdb *redis.Client) (repository.ReservationStore, repository.SequenceAllocator, *sql.DB, error) {
	var (
		store repository.ReservationStore
		seq   repository.SequenceAllocator
		db    *sql.DB
	)
	switch cfg.StoreDriver {
	case "mysql":
		var err error
		db, err = database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("mysql: %w", err)
		}
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, nil, nil, fmt.Errorf("migrate: %w", err)
		}
		store = repository.NewReservationRepo(db)
		seq = repository.NewSequenceRepo(db)
	default:
		store = repository.NewMemoryStore()
		seq = repository.NewMemorySequence()
	}
	if cfg.SequenceDriver == "redis" {
		seq = repository.NewRedisSequence(rdb, "", 0)
	}
	return store, seq, db, nil
}
