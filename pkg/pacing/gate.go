// Package pacing serializes outbound requests under a minimum start-to-start
// interval and a bounded number of in-flight requests. It is the client-side
// counterpart of the PxWeb rate window (maxCallsPerTimeWindow per timeWindow
// seconds): staying under the window locally avoids 429 responses entirely.
package pacing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prometheus metrics for the pacing gate.
var (
	pacingAcquiresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "px_pacing_acquires_total",
		Help: "Total requests released through the pacing gate",
	})

	pacingWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "px_pacing_wait_seconds",
		Help:    "Time spent waiting for a slot and pacing headroom",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
	})

	pacingInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "px_pacing_in_flight",
		Help: "Requests currently holding a pacing slot",
	})
)

// Gate paces request starts. It grants at most its concurrency limit of
// slots simultaneously and keeps at least the configured interval between
// any two granted starts, measured start to start.
//
// The last-start timestamp and the slot pool form one monitor: the mutex is
// held across the pacing sleep, so two waiters can never observe the same
// stale timestamp and proceed early. Waiters are served in arrival order.
//
// A Gate's clock state persists for the lifetime of the client that owns
// it; it is reset only by constructing a new Gate.
type Gate struct {
	interval time.Duration
	slots    chan struct{}
	logger   zerolog.Logger

	mu        sync.Mutex
	lastStart time.Time
	started   bool
}

// NewGate creates a gate with the given minimum start-to-start interval and
// concurrency limit.
func NewGate(interval time.Duration, concurrency int) (*Gate, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("pacing interval must be positive, got %v", interval)
	}
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency limit must be at least 1, got %d", concurrency)
	}
	return &Gate{
		interval: interval,
		slots:    make(chan struct{}, concurrency),
		logger:   log.With().Str("component", "pacing-gate").Logger(),
	}, nil
}

// IntervalFor derives a safe request interval from a service's rate window:
// the window duration divided by the calls it permits, plus a margin.
func IntervalFor(timeWindow time.Duration, maxCalls int, margin time.Duration) time.Duration {
	if maxCalls < 1 {
		maxCalls = 1
	}
	return timeWindow/time.Duration(maxCalls) + margin
}

// Acquire blocks until a concurrency slot is free and at least the gate's
// interval has elapsed since the last granted start, then stamps the
// current time as the new last start and returns. Every successful Acquire
// must be paired with exactly one Release, on failure paths too.
func (g *Gate) Acquire(ctx context.Context) error {
	waitStart := time.Now()

	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("acquire pacing slot: %w", ctx.Err())
	}
	pacingInFlight.Inc()

	g.mu.Lock()
	if g.started {
		if wait := g.interval - time.Since(g.lastStart); wait > 0 {
			g.logger.Debug().
				Dur("wait", wait).
				Msg("Pacing request start")
			timer := time.NewTimer(wait)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				g.mu.Unlock()
				g.Release()
				return fmt.Errorf("wait for pacing interval: %w", ctx.Err())
			}
		}
	}
	g.lastStart = time.Now()
	g.started = true
	g.mu.Unlock()

	pacingAcquiresTotal.Inc()
	pacingWaitSeconds.Observe(time.Since(waitStart).Seconds())
	return nil
}

// Release returns a slot to the pool. It must be called exactly once per
// successful Acquire.
func (g *Gate) Release() {
	select {
	case <-g.slots:
		pacingInFlight.Dec()
	default:
		panic("pacing: Release without matching Acquire")
	}
}

// InFlight returns the number of slots currently held.
func (g *Gate) InFlight() int {
	return len(g.slots)
}

// Interval returns the gate's minimum start-to-start interval.
func (g *Gate) Interval() time.Duration {
	return g.interval
}
