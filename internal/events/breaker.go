package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"idverifier/internal/ledger"
)

// ErrCircuitOpen is returned while the downstream sink is considered down.
var ErrCircuitOpen = errors.New("event sink circuit open")

// CircuitBreaker stops hammering a sink that keeps failing. After threshold
// consecutive failures it opens for cooldown, then admits a single trial
// whose outcome closes or reopens it.
type CircuitBreaker struct {
	mu sync.Mutex

	threshold int
	cooldown  time.Duration
	now       func() time.Time

	failures  int
	openUntil time.Time
	open      bool
	halfOpen  bool
}

func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = 5
	}
	if cooldown <= 0 {
		cooldown = time.Minute
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

// Allow reports whether a delivery may be attempted. Once the cooldown has
// passed exactly one caller is admitted until that trial is recorded.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.open {
		return true
	}
	if cb.halfOpen || !cb.now().After(cb.openUntil) {
		return false
	}
	cb.halfOpen = true
	return true
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.open = false
	cb.halfOpen = false
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.halfOpen {
		cb.halfOpen = false
		cb.openUntil = cb.now().Add(cb.cooldown)
		return
	}
	cb.failures++
	if cb.failures >= cb.threshold {
		cb.open = true
		cb.openUntil = cb.now().Add(cb.cooldown)
	}
}

func (cb *CircuitBreaker) IsOpen() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.open
}

// GuardedSink wraps a sink with a circuit breaker and delivery metrics.
type GuardedSink struct {
	next    ledger.EventSink
	breaker *CircuitBreaker
	metrics *Metrics
	logger  *slog.Logger
}

type GuardOption func(*GuardedSink)

func WithMetrics(m *Metrics) GuardOption {
	return func(g *GuardedSink) { g.metrics = m }
}

func WithLogger(logger *slog.Logger) GuardOption {
	return func(g *GuardedSink) { g.logger = logger }
}

func NewGuardedSink(next ledger.EventSink, breaker *CircuitBreaker, opts ...GuardOption) *GuardedSink {
	g := &GuardedSink{next: next, breaker: breaker, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GuardedSink) Publish(ctx context.Context, events []ledger.Event) error {
	if !g.breaker.Allow() {
		g.metrics.addDropped(len(events))
		return ErrCircuitOpen
	}

	if err := g.next.Publish(ctx, events); err != nil {
		g.breaker.RecordFailure()
		g.metrics.addFailed(len(events))
		g.metrics.setCircuitState(g.breaker.IsOpen())
		g.logger.WarnContext(ctx, "event delivery failed",
			"events", len(events),
			"circuit_open", g.breaker.IsOpen(),
			"error", err,
		)
		return err
	}

	g.breaker.RecordSuccess()
	g.metrics.addDelivered(len(events))
	g.metrics.setCircuitState(false)
	return nil
}
