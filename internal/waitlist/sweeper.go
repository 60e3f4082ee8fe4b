package waitlist

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/waitlist-display/internal/model"
)

// DefaultCallTimeout is how long a called party has to show up before the
// sweep marks it missed.
const DefaultCallTimeout = 10 * time.Minute

// Sweeper runs ExpirySweep on a fixed interval from a single goroutine.
type Sweeper struct {
	engine   *Engine
	interval time.Duration
	timeout  time.Duration
}

// NewSweeper returns a Sweeper.  Non-positive durations fall back to a 5s
// interval and DefaultCallTimeout.
func NewSweeper(e *Engine, interval, timeout time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &Sweeper{engine: e, interval: interval, timeout: timeout}
}

// Run sweeps every interval until ctx is cancelled.  An iteration that
// has started always runs to completion.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	log.Printf("sweeper: started (interval=%s timeout=%s)", s.interval, s.timeout)
	for {
		select {
		case <-ctx.Done():
			log.Printf("sweeper: stopped")
			return
		case <-ticker.C:
			// detach from ctx so shutdown does not abort a sweep halfway
			_, _ = s.RunOnce(context.WithoutCancel(ctx))
		}
	}
}

// RunOnce performs a single sweep at the engine's current time.
func (s *Sweeper) RunOnce(ctx context.Context) ([]model.Reservation, error) {
	expired, err := s.engine.ExpirySweep(ctx, s.engine.Now(), s.timeout)
	if err != nil {
		log.Printf("sweeper: %v", err)
	}
	for _, r := range expired {
		log.Printf("sweeper: reservation %s (number=%d) missed after %s", r.ID, r.Number, s.timeout)
	}
	return expired, err
}
