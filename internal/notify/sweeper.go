package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Expirer removes notifications that expired before now and reports how
// many went. Service implements it.
type Expirer interface {
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

// Sweeper periodically deletes expired notifications.
type Sweeper struct {
	mu       sync.RWMutex
	store    Expirer
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a sweeper. A non-positive interval defaults to one minute.
func NewSweeper(store Expirer, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		logger:   logger.With("component", "sweeper"),
		now:      time.Now,
	}
}

// Start begins the sweep loop.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// Stop stops the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.RLock()
	cancel := s.cancel
	done := s.done
	s.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// Sweep deletes expired notifications once and returns how many went.
func (s *Sweeper) Sweep(ctx context.Context) int {
	n, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		s.logger.Error("delete expired notifications", "error", err)
		return 0
	}
	if n > 0 {
		s.logger.Info("expired notifications deleted", "count", n)
	}
	return n
}
