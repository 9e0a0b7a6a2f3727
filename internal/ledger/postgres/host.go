// Package postgres is a ledger host backed by PostgreSQL. Each call runs in a
// SERIALIZABLE transaction; writes are buffered and flushed in one batch
// before commit, and calls that lose a serialization race are re-run.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"idverifier/internal/ledger"
	"idverifier/pkg/platform/sentinel"
	"idverifier/pkg/platform/tx"
)

const (
	defaultMaxRetries = 5

	// SQLSTATE serialization_failure and deadlock_detected.
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Host is a PostgreSQL-backed ledger.Host.
type Host struct {
	db         *sql.DB
	clock      ledger.Clock
	initialTTL uint64
	maxRetries int
	sink       ledger.EventSink
	logger     *slog.Logger
}

type Option func(*Host)

func WithClock(clock ledger.Clock) Option {
	return func(h *Host) {
		if clock != nil {
			h.clock = clock
		}
	}
}

func WithInitialTTL(ttl uint64) Option {
	return func(h *Host) {
		h.initialTTL = ttl
	}
}

func WithMaxRetries(n int) Option {
	return func(h *Host) {
		if n >= 0 {
			h.maxRetries = n
		}
	}
}

func WithEventSink(sink ledger.EventSink) Option {
	return func(h *Host) {
		h.sink = sink
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

func New(db *sql.DB, opts ...Option) *Host {
	h := &Host{
		db:         db,
		clock:      func() uint64 { return uint64(time.Now().Unix()) },
		initialTTL: ledger.DefaultRetention,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Migrate creates the ledger tables if they do not exist.
func (h *Host) Migrate(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

func (h *Host) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		events, err := h.attempt(ctx, fn)
		if isRetryable(err) {
			continue
		}
		if err != nil {
			return err
		}
		h.forward(ctx, events)
		return nil
	}
	return fmt.Errorf("postgres ledger: retries exhausted: %w", sentinel.ErrConflict)
}

func (h *Host) attempt(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) ([]ledger.Event, error) {
	sqlTx, err := h.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer func() { _ = sqlTx.Rollback() }()

	txCtx := tx.WithTx(ctx, sqlTx)
	t := &pgTx{host: h, now: h.clock(), writes: make(map[ledger.Key]*pendingWrite)}
	if err := fn(txCtx, t); err != nil {
		return nil, err
	}
	if err := t.flush(txCtx); err != nil {
		return nil, err
	}
	if err := sqlTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit ledger tx: %w", err)
	}
	return t.events, nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

func (h *Host) forward(ctx context.Context, events []ledger.Event) {
	if h.sink == nil || len(events) == 0 {
		return
	}
	if err := h.sink.Publish(ctx, events); err != nil && h.logger != nil {
		h.logger.WarnContext(ctx, "event sink publish failed", "error", err, "events", len(events))
	}
}

// Evict deletes entries whose retention window lapsed before now.
func (h *Host) Evict(ctx context.Context) (int64, error) {
	res, err := h.db.ExecContext(ctx,
		`DELETE FROM ledger_entries WHERE live_until > 0 AND live_until < $1`, int64(h.clock()))
	if err != nil {
		return 0, fmt.Errorf("evict lapsed entries: %w", err)
	}
	return res.RowsAffected()
}

// Events returns the committed event log, oldest first.
func (h *Host) Events(ctx context.Context) ([]ledger.Event, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT payload FROM ledger_events ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []ledger.Event
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		var ev ledger.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

type pendingWrite struct {
	value     []byte
	hasValue  bool
	liveUntil uint64
}

type pgTx struct {
	host   *Host
	now    uint64
	writes map[ledger.Key]*pendingWrite
	order  []ledger.Key
	events []ledger.Event
}

func (t *pgTx) Timestamp() uint64 { return t.now }

func (t *pgTx) Publish(event ledger.Event) {
	if event.Timestamp == 0 {
		event.Timestamp = t.now
	}
	t.events = append(t.events, event)
}

// load reads the committed row for key, treating lapsed rows as absent.
func (t *pgTx) load(ctx context.Context, key ledger.Key) ([]byte, uint64, bool, error) {
	q := tx.QuerierFrom(ctx, t.host.db)
	var (
		value     []byte
		liveUntil int64
	)
	err := q.QueryRowContext(ctx,
		`SELECT value, live_until FROM ledger_entries WHERE key = $1`, key.String()).Scan(&value, &liveUntil)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, false, nil
	}
	if err != nil {
		return nil, 0, false, fmt.Errorf("load %s: %w", key, err)
	}
	if liveUntil > 0 && t.now > uint64(liveUntil) {
		return nil, 0, false, nil
	}
	return value, uint64(liveUntil), true, nil
}

func (t *pgTx) Get(ctx context.Context, key ledger.Key) ([]byte, bool, error) {
	if w, ok := t.writes[key]; ok && w.hasValue {
		return append([]byte(nil), w.value...), true, nil
	}
	value, _, found, err := t.load(ctx, key)
	return value, found, err
}

func (t *pgTx) Has(ctx context.Context, key ledger.Key) (bool, error) {
	_, found, err := t.Get(ctx, key)
	return found, err
}

func (t *pgTx) currentLiveUntil(ctx context.Context, key ledger.Key) (uint64, bool, error) {
	if w, ok := t.writes[key]; ok {
		return w.liveUntil, true, nil
	}
	_, liveUntil, found, err := t.load(ctx, key)
	return liveUntil, found, err
}

func (t *pgTx) pending(key ledger.Key) *pendingWrite {
	w, ok := t.writes[key]
	if !ok {
		w = &pendingWrite{}
		t.writes[key] = w
		t.order = append(t.order, key)
	}
	return w
}

func (t *pgTx) Set(ctx context.Context, key ledger.Key, value []byte) error {
	var liveUntil uint64
	if key.Durability() == ledger.DurabilityPersistent {
		current, found, err := t.currentLiveUntil(ctx, key)
		if err != nil {
			return err
		}
		liveUntil = current
		if !found || current == 0 {
			liveUntil = t.now + t.host.initialTTL
		}
	}
	w := t.pending(key)
	w.value = append([]byte(nil), value...)
	w.hasValue = true
	w.liveUntil = liveUntil
	return nil
}

func (t *pgTx) ExtendTTL(ctx context.Context, key ledger.Key, ttl uint64) error {
	current, found, err := t.currentLiveUntil(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return sentinel.ErrNotFound
	}
	if key.Durability() == ledger.DurabilityInstance {
		return nil
	}
	if target := t.now + ttl; target > current {
		t.pending(key).liveUntil = target
	}
	return nil
}

func (t *pgTx) flush(ctx context.Context) error {
	q := tx.QuerierFrom(ctx, t.host.db)

	var (
		upsertKeys   []string
		upsertValues [][]byte
		upsertLive   []int64
		extendKeys   []string
		extendLive   []int64
	)
	for _, key := range t.order {
		w := t.writes[key]
		if w.hasValue {
			upsertKeys = append(upsertKeys, key.String())
			upsertValues = append(upsertValues, w.value)
			upsertLive = append(upsertLive, int64(w.liveUntil))
			continue
		}
		extendKeys = append(extendKeys, key.String())
		extendLive = append(extendLive, int64(w.liveUntil))
	}

	if len(upsertKeys) > 0 {
		_, err := q.ExecContext(ctx, `
			INSERT INTO ledger_entries (key, value, live_until)
			SELECT * FROM unnest($1::text[], $2::bytea[], $3::bigint[])
			ON CONFLICT (key) DO UPDATE SET
				value = EXCLUDED.value,
				live_until = EXCLUDED.live_until
		`, pq.Array(upsertKeys), pq.Array(upsertValues), pq.Array(upsertLive))
		if err != nil {
			return fmt.Errorf("flush ledger entries: %w", err)
		}
	}

	if len(extendKeys) > 0 {
		_, err := q.ExecContext(ctx, `
			UPDATE ledger_entries AS e SET live_until = u.live_until
			FROM unnest($1::text[], $2::bigint[]) AS u(key, live_until)
			WHERE e.key = u.key
		`, pq.Array(extendKeys), pq.Array(extendLive))
		if err != nil {
			return fmt.Errorf("flush ledger retention: %w", err)
		}
	}

	for _, ev := range t.events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", ev.Topic, err)
		}
		_, err = q.ExecContext(ctx,
			`INSERT INTO ledger_events (topic, subject, payload, ledger_time) VALUES ($1, $2, $3, $4)`,
			ev.Topic, ev.Subject.Hex(), payload, int64(ev.Timestamp))
		if err != nil {
			return fmt.Errorf("append event %s: %w", ev.Topic, err)
		}
	}
	return nil
}
