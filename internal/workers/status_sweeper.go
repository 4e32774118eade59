package workers

import (
	"context"
	"log/slog"
	"time"
)

// OrderLifecycle is the slice of the order service the sweeper drives.
type OrderLifecycle interface {
	AdvanceOrderStatuses(ctx context.Context)
}

// StatusSweeper periodically advances order statuses that are due for an
// automatic transition (card-payment timeouts, cash auto-confirmation,
// kitchen acceptance and completion).
type StatusSweeper struct {
	logger *slog.Logger
	orders OrderLifecycle

	// How often to run the advancement pass.
	interval time.Duration

	done chan struct{}
}

// NewStatusSweeper creates a new order status sweeper worker.
func NewStatusSweeper(logger *slog.Logger, orders OrderLifecycle, interval time.Duration) *StatusSweeper {
	return &StatusSweeper{
		logger:   logger,
		orders:   orders,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the periodic advancement of order statuses. It runs one pass
// immediately, then once per interval until ctx is cancelled. Passes run
// sequentially on this goroutine, so two sweeps can never overlap; if a pass
// outlives the interval, the ticker simply drops the missed ticks.
func (s *StatusSweeper) Start(ctx context.Context) {
	defer close(s.done)

	s.logger.Info("Starting order status sweeper", "interval", s.interval.String())

	// Run an initial pass immediately
	s.orders.AdvanceOrderStatuses(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Order status sweeper stopped")
			return
		case <-ticker.C:
			s.orders.AdvanceOrderStatuses(ctx)
		}
	}
}

// Done is closed once Start has returned, letting shutdown code wait for an
// in-flight pass to finish.
func (s *StatusSweeper) Done() <-chan struct{} {
	return s.done
}
