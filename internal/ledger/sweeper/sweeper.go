// Package sweeper periodically evicts lapsed ledger entries from hosts that
// keep them until asked. Reads already treat lapsed entries as absent, so a
// missed sweep only costs storage.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Evictor drops lapsed entries and reports how many went.
type Evictor interface {
	Evict(ctx context.Context) (int64, error)
}

// EvictFunc adapts a function to Evictor.
type EvictFunc func(ctx context.Context) (int64, error)

func (f EvictFunc) Evict(ctx context.Context) (int64, error) { return f(ctx) }

type Metrics struct {
	Evicted prometheus.Counter
	Errors  prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Evicted: f.NewCounter(prometheus.CounterOpts{
			Name: "idverifier_ledger_evicted_entries_total",
			Help: "Lapsed ledger entries removed by the retention sweeper",
		}),
		Errors: f.NewCounter(prometheus.CounterOpts{
			Name: "idverifier_ledger_sweep_errors_total",
			Help: "Retention sweeps that failed",
		}),
	}
}

// Worker runs an Evictor on a fixed interval until its context ends.
type Worker struct {
	evictor  Evictor
	interval time.Duration
	logger   *slog.Logger
	metrics  *Metrics
}

type Option func(*Worker)

func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(evictor Evictor, interval time.Duration, opts ...Option) *Worker {
	w := &Worker{evictor: evictor, interval: interval, logger: slog.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run sweeps once per interval. A failed sweep is logged and retried on the
// next tick; Run only returns when ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs a single eviction pass.
func (w *Worker) Sweep(ctx context.Context) int64 {
	n, err := w.evictor.Evict(ctx)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.WarnContext(ctx, "ledger sweep failed", "error", err)
		}
		if w.metrics != nil {
			w.metrics.Errors.Inc()
		}
		return 0
	}
	if n > 0 {
		w.logger.InfoContext(ctx, "ledger_entries_evicted", "count", n)
		if w.metrics != nil {
			w.metrics.Evicted.Add(float64(n))
		}
	}
	return n
}
