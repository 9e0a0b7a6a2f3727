package sweeper_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idverifier/internal/ledger"
	"idverifier/internal/ledger/memory"
	"idverifier/internal/ledger/sweeper"
)

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSweepEvictsLapsedMemoryEntries(t *testing.T) {
	ctx := context.Background()
	clock := memory.NewManualClock(1_000)
	host := memory.New(memory.WithClock(clock.Now), memory.WithInitialTTL(10))
	user := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	err := host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := ledger.Save(ctx, tx, ledger.UserDocCountKey(user), uint32(1)); err != nil {
			return err
		}
		return ledger.Save(ctx, tx, ledger.AdminKey(), user)
	})
	require.NoError(t, err)

	m := sweeper.NewMetrics(prometheus.NewRegistry())
	w := sweeper.NewWorker(sweeper.EvictFunc(func(context.Context) (int64, error) {
		return int64(host.Evict()), nil
	}), time.Minute, sweeper.WithLogger(quietLogger()), sweeper.WithMetrics(m))

	assert.Zero(t, w.Sweep(ctx), "nothing has lapsed yet")

	clock.Advance(11)
	assert.Equal(t, int64(1), w.Sweep(ctx), "only the persistent entry lapses")
	assert.InDelta(t, 1, testutil.ToFloat64(m.Evicted), 0)

	_, live := host.LiveUntil(ledger.AdminKey())
	assert.True(t, live)
}

func TestSweepCountsFailures(t *testing.T) {
	m := sweeper.NewMetrics(prometheus.NewRegistry())
	w := sweeper.NewWorker(sweeper.EvictFunc(func(context.Context) (int64, error) {
		return 0, errors.New("database unavailable")
	}), time.Minute, sweeper.WithLogger(quietLogger()), sweeper.WithMetrics(m))

	assert.Zero(t, w.Sweep(context.Background()))
	assert.InDelta(t, 1, testutil.ToFloat64(m.Errors), 0)
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	w := sweeper.NewWorker(sweeper.EvictFunc(func(context.Context) (int64, error) {
		calls.Add(1)
		return 0, nil
	}), 5*time.Millisecond, sweeper.WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
