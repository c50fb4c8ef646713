package reservations

import (
	"context"
	"sync"
	"time"

	"staybook/internal/shared/clock"
	"staybook/pkg/logger"
)

// Sweeper expires stale holds on a fixed interval, independent of request handling
type Sweeper struct {
	expirer  Expirer
	clock    clock.Clock
	interval time.Duration
	logger   *logger.Logger
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSweeper creates a sweeper. A non-positive interval falls back to one minute.
func NewSweeper(expirer Expirer, clk clock.Clock, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &Sweeper{
		expirer:  expirer,
		clock:    clk,
		interval: interval,
		logger:   log,
		done:     make(chan struct{}),
	}
}

// Start launches the sweep loop
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("Starting hold sweeper", "interval", s.interval.String())
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop stops the loop and waits for an in-flight pass to finish
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	s.logger.Info("Hold sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(ctx)
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepOnce runs a single pass at the clock's current time
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	now := s.clock.Now()
	expired, err := s.expirer.SweepExpired(ctx, now)
	if err != nil {
		s.logger.ErrorWithContext(ctx, "Error sweeping expired holds", err, nil)
	}
	if len(expired) > 0 {
		s.logger.LogHoldsExpired(ctx, len(expired), now)
	}
	return len(expired)
}
