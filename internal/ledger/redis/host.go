// Package redis is a ledger host backed by Redis. Each call runs as an
// optimistic transaction: every key read is WATCHed, writes are buffered and
// applied with MULTI/EXEC, and the call is re-run when a watched key changed
// underneath it. Retention windows map onto native key expiry.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"idverifier/internal/ledger"
	"idverifier/pkg/platform/sentinel"
)

var txRetries = promauto.NewCounter(prometheus.CounterOpts{
	Name: "idverifier_redis_ledger_tx_retries_total",
	Help: "Redis ledger transactions re-run after a watched key changed",
})

const (
	defaultPrefix     = "idv:"
	defaultStream     = "idv:events"
	defaultMaxRetries = 5
)

// Host is a Redis-backed ledger.Host.
type Host struct {
	client     *redis.Client
	prefix     string
	stream     string
	maxRetries int
	clock      ledger.Clock
	initialTTL uint64
	sink       ledger.EventSink
	logger     *slog.Logger
}

type Option func(*Host)

// WithPrefix namespaces every key written by the host.
func WithPrefix(prefix string) Option {
	return func(h *Host) {
		h.prefix = prefix
		h.stream = prefix + "events"
	}
}

func WithMaxRetries(n int) Option {
	return func(h *Host) {
		if n >= 0 {
			h.maxRetries = n
		}
	}
}

func WithInitialTTL(ttl uint64) Option {
	return func(h *Host) {
		h.initialTTL = ttl
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

// New builds a host on client. The ledger clock is the wall clock because
// Redis expiry is wall-clock based.
func New(client *redis.Client, opts ...Option) *Host {
	h := &Host{
		client:     client,
		prefix:     defaultPrefix,
		stream:     defaultStream,
		maxRetries: defaultMaxRetries,
		clock:      func() uint64 { return uint64(time.Now().Unix()) },
		initialTTL: ledger.DefaultRetention,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Host) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	for attempt := 0; attempt <= h.maxRetries; attempt++ {
		var committed []ledger.Event
		err := h.client.Watch(ctx, func(rtx *redis.Tx) error {
			t := newRedisTx(h, rtx)
			if err := fn(ctx, t); err != nil {
				return err
			}
			if len(t.writes) == 0 && len(t.events) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				return t.flush(ctx, pipe)
			})
			if err != nil {
				return err
			}
			committed = t.events
			return nil
		})
		if errors.Is(err, redis.TxFailedErr) {
			txRetries.Inc()
			continue
		}
		if err != nil {
			return err
		}
		h.forward(ctx, committed)
		return nil
	}
	return fmt.Errorf("redis ledger: retries exhausted: %w", sentinel.ErrConflict)
}

func (h *Host) forward(ctx context.Context, events []ledger.Event) {
	if h.sink == nil || len(events) == 0 {
		return
	}
	if err := h.sink.Publish(ctx, events); err != nil && h.logger != nil {
		h.logger.WarnContext(ctx, "event sink publish failed", "error", err, "events", len(events))
	}
}

// Events reads the committed event log stream, oldest first.
func (h *Host) Events(ctx context.Context) ([]ledger.Event, error) {
	msgs, err := h.client.XRange(ctx, h.stream, "-", "+").Result()
	if err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}
	events := make([]ledger.Event, 0, len(msgs))
	for _, msg := range msgs {
		raw, _ := msg.Values["event"].(string)
		var ev ledger.Event
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			return nil, fmt.Errorf("decode event %s: %w", msg.ID, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

func (h *Host) redisKey(key ledger.Key) string {
	return h.prefix + key.String()
}

type pendingWrite struct {
	value     []byte
	hasValue  bool
	liveUntil uint64
}

type redisTx struct {
	host    *Host
	rtx     *redis.Tx
	now     uint64
	writes  map[ledger.Key]*pendingWrite
	order   []ledger.Key
	watched map[string]struct{}
	events  []ledger.Event
}

func newRedisTx(h *Host, rtx *redis.Tx) *redisTx {
	return &redisTx{
		host:    h,
		rtx:     rtx,
		now:     h.clock(),
		writes:  make(map[ledger.Key]*pendingWrite),
		watched: make(map[string]struct{}),
	}
}

func (t *redisTx) Timestamp() uint64 { return t.now }

func (t *redisTx) Publish(event ledger.Event) {
	if event.Timestamp == 0 {
		event.Timestamp = t.now
	}
	t.events = append(t.events, event)
}

func (t *redisTx) watch(ctx context.Context, key string) error {
	if _, ok := t.watched[key]; ok {
		return nil
	}
	if err := t.rtx.Watch(ctx, key).Err(); err != nil {
		return fmt.Errorf("watch %s: %w", key, err)
	}
	t.watched[key] = struct{}{}
	return nil
}

func (t *redisTx) Get(ctx context.Context, key ledger.Key) ([]byte, bool, error) {
	if w, ok := t.writes[key]; ok && w.hasValue {
		return append([]byte(nil), w.value...), true, nil
	}
	k := t.host.redisKey(key)
	if err := t.watch(ctx, k); err != nil {
		return nil, false, err
	}
	raw, err := t.rtx.Get(ctx, k).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", k, err)
	}
	return raw, true, nil
}

func (t *redisTx) Has(ctx context.Context, key ledger.Key) (bool, error) {
	if w, ok := t.writes[key]; ok && w.hasValue {
		return true, nil
	}
	k := t.host.redisKey(key)
	if err := t.watch(ctx, k); err != nil {
		return false, err
	}
	n, err := t.rtx.Exists(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", k, err)
	}
	return n > 0, nil
}

// liveUntil returns the current expiry of key in ledger seconds. found is
// false when the key is absent; liveUntil is 0 for keys without expiry.
func (t *redisTx) liveUntil(ctx context.Context, key ledger.Key) (liveUntil uint64, found bool, err error) {
	if w, ok := t.writes[key]; ok {
		return w.liveUntil, true, nil
	}
	k := t.host.redisKey(key)
	if err := t.watch(ctx, k); err != nil {
		return 0, false, err
	}
	exp, err := t.rtx.ExpireTime(ctx, k).Result()
	if err != nil {
		return 0, false, fmt.Errorf("expiretime %s: %w", k, err)
	}
	switch {
	case exp == -2:
		return 0, false, nil
	case exp < 0:
		return 0, true, nil
	default:
		// EXPIRETIME is the first second the key is gone.
		return uint64(exp/time.Second) - 1, true, nil
	}
}

func (t *redisTx) pending(key ledger.Key) *pendingWrite {
	w, ok := t.writes[key]
	if !ok {
		w = &pendingWrite{}
		t.writes[key] = w
		t.order = append(t.order, key)
	}
	return w
}

func (t *redisTx) Set(ctx context.Context, key ledger.Key, value []byte) error {
	var liveUntil uint64
	if key.Durability() == ledger.DurabilityPersistent {
		current, found, err := t.liveUntil(ctx, key)
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

func (t *redisTx) ExtendTTL(ctx context.Context, key ledger.Key, ttl uint64) error {
	current, found, err := t.liveUntil(ctx, key)
	if err != nil {
		return err
	}
	if !found {
		return sentinel.ErrNotFound
	}
	if key.Durability() == ledger.DurabilityInstance {
		return nil
	}
	target := t.now + ttl
	if target <= current {
		return nil
	}
	t.pending(key).liveUntil = target
	return nil
}

func (t *redisTx) flush(ctx context.Context, pipe redis.Pipeliner) error {
	for _, key := range t.order {
		w := t.writes[key]
		k := t.host.redisKey(key)
		if w.hasValue {
			pipe.Set(ctx, k, w.value, 0)
		}
		if w.liveUntil > 0 {
			pipe.ExpireAt(ctx, k, time.Unix(int64(w.liveUntil)+1, 0))
		}
	}
	for _, ev := range t.events {
		raw, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("encode event %s: %w", ev.Topic, err)
		}
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: t.host.stream,
			Values: map[string]any{"topic": ev.Topic, "event": string(raw)},
		})
	}
	return nil
}
