// Package events forwards committed registry events (identity verified,
// credits prepaid) to downstream consumers. Delivery happens after the
// ledger call commits and never feeds back into it: a failed sink is logged
// and counted, the registration stands.
package events

import (
	"context"
	"errors"
	"log/slog"

	"idverifier/internal/ledger"
)

// LogSink writes every event to the structured log.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, events []ledger.Event) error {
	for _, e := range events {
		s.logger.InfoContext(ctx, "registry event",
			"topic", e.Topic,
			"subject", e.Subject.Hex(),
			"ledger_time", e.Timestamp,
			"data", e.Data,
		)
	}
	return nil
}

// Fanout delivers to every sink and joins their errors.
type Fanout []ledger.EventSink

func (f Fanout) Publish(ctx context.Context, events []ledger.Event) error {
	var errs []error
	for _, sink := range f {
		if sink == nil {
			continue
		}
		if err := sink.Publish(ctx, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
