// Package ledger defines the host storage primitives the registry runs on:
// versioned key-value entries with a retention window, an event log, and an
// all-or-nothing transaction boundary around each call.
//
// Hosts live in subpackages (memory, redis, postgres). Business code only sees
// Host, Tx and Store.
package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// DefaultRetention is the retention window, in ledger seconds, applied to
// persistent entries on every write (~60 days).
const DefaultRetention uint64 = 5_184_000

// Store is the entry-level view of the host.
//
// Entries whose retention window has lapsed are reported as absent by Get and
// Has, exactly as if they had never been written.
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Set(ctx context.Context, key Key, value []byte) error
	Has(ctx context.Context, key Key) (bool, error)
	// ExtendTTL guarantees key stays readable for at least ttl more ledger
	// seconds. Instance entries ignore it. Absent entries yield sentinel.ErrNotFound.
	ExtendTTL(ctx context.Context, key Key, ttl uint64) error
}

// Tx is a Store scoped to one call. Nothing written or published through it
// is visible outside until the enclosing RunInTx returns nil.
type Tx interface {
	Store
	// Timestamp is the ledger time of the call, fixed for its whole duration.
	Timestamp() uint64
	Publish(event Event)
}

// Host runs calls against shared state. Calls are totally ordered: no call
// observes another call's partial effects.
type Host interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Event is an entry in the host event log.
type Event struct {
	Topic     string         `json:"topic"`
	Subject   common.Address `json:"subject"`
	Data      any            `json:"data"`
	Timestamp uint64         `json:"timestamp"`
}

// EventSink receives events after the call that published them has committed.
type EventSink interface {
	Publish(ctx context.Context, events []Event) error
}

// Clock returns the current ledger time in seconds.
type Clock func() uint64
