package service

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dtroode/sharekeeper/internal/logger"
)

var (
	sweepRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sharekeeper_sweep_runs_total",
		Help: "Total number of expiry sweeps",
	})

	sharesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sharekeeper_shares_expired_total",
		Help: "Total number of shares removed by expiry sweeps",
	})

	repairHealedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sharekeeper_repair_healed_total",
		Help: "Total number of share paths healed by repair passes",
	})

	repairRemovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sharekeeper_repair_removed_total",
		Help: "Total number of shares removed by repair passes because their file was gone",
	})

	sweepDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sharekeeper_sweep_duration_seconds",
		Help:    "Duration of expiry sweeps in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// SweepResult is the outcome of one sweep.
type SweepResult struct {
	Expired  int
	Duration time.Duration
	Err      error
}

// Sweeper periodically removes expired shares.
type Sweeper struct {
	ledger   *ShareLedger
	interval time.Duration
	logger   *logger.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(ledger *ShareLedger, interval time.Duration, logger *logger.Logger) *Sweeper {
	return &Sweeper{
		ledger:   ledger,
		interval: interval,
		logger:   logger.With("component", "sweeper"),
	}
}

// Start runs a sweep immediately and then on every interval until Stop or
// ctx cancellation.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	sweepCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(sweepCtx, s.done)

	s.logger.Info("Sweeper: started", "interval", s.interval.String())
}

// Stop cancels the loop and waits for the running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Sweeper: stopped")
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one expiry sweep and records its metrics.
func (s *Sweeper) RunOnce(ctx context.Context) SweepResult {
	start := time.Now()

	expired, err := s.ledger.SweepExpired(ctx)
	result := SweepResult{
		Expired:  expired,
		Duration: time.Since(start),
		Err:      err,
	}

	sweepRunsTotal.Inc()
	sharesExpiredTotal.Add(float64(expired))
	sweepDurationSeconds.Observe(result.Duration.Seconds())

	if err != nil {
		s.logger.Error("Sweeper: sweep failed", "expired", expired, "error", err)
		return result
	}
	if expired > 0 {
		s.logger.Info("Sweeper: sweep finished", "expired", expired, "duration", result.Duration)
	} else {
		s.logger.Debug("Sweeper: nothing expired")
	}
	return result
}

// Repair runs one repair pass and records its metrics.
func (s *Sweeper) Repair(ctx context.Context) (RepairResult, error) {
	result, err := s.ledger.RepairAll(ctx)

	repairHealedTotal.Add(float64(result.Healed))
	repairRemovedTotal.Add(float64(result.Removed))

	s.logger.Info("Sweeper: repair finished",
		"healed", result.Healed,
		"copied", result.Copied,
		"removed", result.Removed,
		"errors", result.Errors,
	)
	if err != nil {
		s.logger.Error("Sweeper: repair failed to persist", "error", err)
	}
	return result, err
}
