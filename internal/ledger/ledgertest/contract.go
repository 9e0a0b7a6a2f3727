// Package ledgertest holds behavioral checks every ledger.Host must pass.
package ledgertest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idverifier/internal/ledger"
	"idverifier/pkg/platform/sentinel"
)

var (
	user      = common.HexToAddress("0x000000000000000000000000000000000000c0de")
	nullifier = common.HexToHash("0xfeed")
)

// RunHostContract exercises host with transactions that must behave the same
// on every backend. newHost must return an empty host.
func RunHostContract(t *testing.T, newHost func(t *testing.T) ledger.Host) {
	t.Run("committed writes are visible", func(t *testing.T) {
		host := newHost(t)
		ctx := context.Background()

		err := host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			return ledger.SaveRetained(ctx, tx, ledger.UserDocCountKey(user), uint32(2), ledger.DefaultRetention)
		})
		require.NoError(t, err)

		err = host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			count, ok, err := ledger.Load[uint32](ctx, tx, ledger.UserDocCountKey(user))
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, uint32(2), count)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("writes are visible within the same call", func(t *testing.T) {
		host := newHost(t)
		err := host.RunInTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
			require.NoError(t, tx.Set(ctx, ledger.AdminKey(), []byte("admin")))
			value, ok, err := tx.Get(ctx, ledger.AdminKey())
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, []byte("admin"), value)
			has, err := tx.Has(ctx, ledger.AdminKey())
			require.NoError(t, err)
			assert.True(t, has)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("failed call leaves no trace", func(t *testing.T) {
		host := newHost(t)
		ctx := context.Background()
		boom := errors.New("boom")

		err := host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			require.NoError(t, tx.Set(ctx, ledger.NullifierUsedKey(nullifier), []byte{1}))
			tx.Publish(ledger.Event{Topic: "verified", Subject: user})
			return boom
		})
		require.ErrorIs(t, err, boom)

		err = host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			has, err := tx.Has(ctx, ledger.NullifierUsedKey(nullifier))
			require.NoError(t, err)
			assert.False(t, has)
			return nil
		})
		require.NoError(t, err)
	})

	t.Run("extending an absent entry is not found", func(t *testing.T) {
		host := newHost(t)
		err := host.RunInTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
			return tx.ExtendTTL(ctx, ledger.UserIdentityKey(user), 10)
		})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("check-then-set admits exactly one winner", func(t *testing.T) {
		host := newHost(t)
		const callers = 16
		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		errTaken := errors.New("taken")
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := host.RunInTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
					key := ledger.NullifierUsedKey(nullifier)
					used, err := tx.Has(ctx, key)
					if err != nil {
						return err
					}
					if used {
						return errTaken
					}
					return ledger.SaveRetained(ctx, tx, key, true, ledger.DefaultRetention)
				})
				if err == nil {
					wins.Add(1)
				}
			}()
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})
}
