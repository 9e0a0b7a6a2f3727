// Package memory is an in-process ledger host. Calls are serialized behind a
// single lock and every mutation is journaled so a failed call is reverted
// entry by entry. It backs unit tests and single-node development runs.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"idverifier/internal/ledger"
	"idverifier/pkg/platform/sentinel"
)

type entry struct {
	value []byte
	// liveUntil is the last ledger second the entry is readable; 0 never expires.
	liveUntil uint64
}

// Host is an in-memory ledger.Host.
type Host struct {
	mu         sync.Mutex
	entries    map[ledger.Key]entry
	log        []ledger.Event
	clock      ledger.Clock
	initialTTL uint64
	sink       ledger.EventSink
	logger     *slog.Logger
}

type Option func(*Host)

// WithClock overrides the ledger clock (defaults to wall-clock seconds).
func WithClock(clock ledger.Clock) Option {
	return func(h *Host) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithInitialTTL sets the retention given to a persistent entry on creation,
// before any explicit extension.
func WithInitialTTL(ttl uint64) Option {
	return func(h *Host) {
		h.initialTTL = ttl
	}
}

// WithEventSink forwards committed events to sink.
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

func New(opts ...Option) *Host {
	h := &Host{
		entries:    make(map[ledger.Key]entry),
		clock:      func() uint64 { return uint64(time.Now().Unix()) },
		initialTTL: ledger.DefaultRetention,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RunInTx runs fn with exclusive access to the ledger. If fn returns an
// error every write and event of the call is discarded.
func (h *Host) RunInTx(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	events, err := h.apply(ctx, fn)
	if err != nil {
		return err
	}
	h.forward(ctx, events)
	return nil
}

func (h *Host) apply(ctx context.Context, fn func(ctx context.Context, tx ledger.Tx) error) ([]ledger.Event, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := &memTx{host: h, now: h.clock()}
	snap := t.journal.snapshot()
	defer func() {
		if r := recover(); r != nil {
			t.journal.revertToSnapshot(snap, h)
			panic(r)
		}
	}()
	if err := fn(ctx, t); err != nil {
		t.journal.revertToSnapshot(snap, h)
		return nil, err
	}
	h.log = append(h.log, t.events...)
	return t.events, nil
}

func (h *Host) forward(ctx context.Context, events []ledger.Event) {
	if h.sink == nil || len(events) == 0 {
		return
	}
	if err := h.sink.Publish(ctx, events); err != nil && h.logger != nil {
		h.logger.WarnContext(ctx, "event sink publish failed", "error", err, "events", len(events))
	}
}

// Events returns a copy of the committed event log.
func (h *Host) Events() []ledger.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ledger.Event(nil), h.log...)
}

// LiveUntil reports the last readable ledger second of key; ok is false when
// the entry is absent or lapsed.
func (h *Host) LiveUntil(key ledger.Key) (uint64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.lookup(key, h.clock())
	if !ok {
		return 0, false
	}
	return e.liveUntil, true
}

// Evict drops lapsed entries and returns how many were removed.
func (h *Host) Evict() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	now := h.clock()
	evicted := 0
	for k, e := range h.entries {
		if expired(e, now) {
			delete(h.entries, k)
			evicted++
		}
	}
	return evicted
}

func (h *Host) lookup(key ledger.Key, now uint64) (entry, bool) {
	e, ok := h.entries[key]
	if !ok || expired(e, now) {
		return entry{}, false
	}
	return e, true
}

func expired(e entry, now uint64) bool {
	return e.liveUntil != 0 && now > e.liveUntil
}

type memTx struct {
	host    *Host
	now     uint64
	journal journal
	events  []ledger.Event
}

func (t *memTx) Timestamp() uint64 { return t.now }

func (t *memTx) Publish(event ledger.Event) {
	if event.Timestamp == 0 {
		event.Timestamp = t.now
	}
	t.events = append(t.events, event)
}

func (t *memTx) Get(_ context.Context, key ledger.Key) ([]byte, bool, error) {
	e, ok := t.host.lookup(key, t.now)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (t *memTx) Has(_ context.Context, key ledger.Key) (bool, error) {
	_, ok := t.host.lookup(key, t.now)
	return ok, nil
}

func (t *memTx) Set(_ context.Context, key ledger.Key, value []byte) error {
	prev, existed := t.host.entries[key]
	t.journal.append(entryChange{key: key, prev: prev, existed: existed})

	next := entry{value: append([]byte(nil), value...)}
	if key.Durability() == ledger.DurabilityPersistent {
		if live, ok := t.host.lookup(key, t.now); ok {
			next.liveUntil = live.liveUntil
		} else {
			next.liveUntil = t.now + t.host.initialTTL
		}
	}
	t.host.entries[key] = next
	return nil
}

func (t *memTx) ExtendTTL(_ context.Context, key ledger.Key, ttl uint64) error {
	e, ok := t.host.lookup(key, t.now)
	if !ok {
		return sentinel.ErrNotFound
	}
	if key.Durability() == ledger.DurabilityInstance {
		return nil
	}
	target := t.now + ttl
	if target <= e.liveUntil {
		return nil
	}
	t.journal.append(entryChange{key: key, prev: e, existed: true})
	e.liveUntil = target
	t.host.entries[key] = e
	return nil
}
