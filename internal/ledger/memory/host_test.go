package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"idverifier/internal/ledger"
	"idverifier/internal/ledger/ledgertest"
	"idverifier/pkg/platform/sentinel"
)

type HostSuite struct {
	suite.Suite
	clock *ManualClock
	host  *Host
}

func TestHostSuite(t *testing.T) {
	suite.Run(t, new(HostSuite))
}

func (s *HostSuite) SetupTest() {
	s.clock = NewManualClock(1_000)
	s.host = New(WithClock(s.clock.Now), WithInitialTTL(100))
}

var (
	alice     = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	nullifier = common.HexToHash("0x01")
)

func (s *HostSuite) set(key ledger.Key, value string) {
	err := s.host.RunInTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.Set(ctx, key, []byte(value))
	})
	s.Require().NoError(err)
}

func (s *HostSuite) get(key ledger.Key) ([]byte, bool) {
	var (
		value []byte
		found bool
	)
	err := s.host.RunInTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		var err error
		value, found, err = tx.Get(ctx, key)
		return err
	})
	s.Require().NoError(err)
	return value, found
}

func (s *HostSuite) TestCommit() {
	key := ledger.UserDocCountKey(alice)
	s.set(key, "one")

	value, ok := s.get(key)
	s.True(ok)
	s.Equal([]byte("one"), value)
}

func (s *HostSuite) TestFailedCallRevertsEveryWrite() {
	ctx := context.Background()
	s.set(ledger.UserDocCountKey(alice), "one")

	boom := errors.New("boom")
	err := s.host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		s.Require().NoError(tx.Set(ctx, ledger.NullifierUsedKey(nullifier), []byte{1}))
		s.Require().NoError(tx.Set(ctx, ledger.UserDocCountKey(alice), []byte("two")))
		s.Require().NoError(tx.ExtendTTL(ctx, ledger.UserDocCountKey(alice), 10_000))
		tx.Publish(ledger.Event{Topic: "verified", Subject: alice})
		return boom
	})
	s.ErrorIs(err, boom)

	_, ok := s.get(ledger.NullifierUsedKey(nullifier))
	s.False(ok)
	value, ok := s.get(ledger.UserDocCountKey(alice))
	s.True(ok)
	s.Equal([]byte("one"), value)
	liveUntil, ok := s.host.LiveUntil(ledger.UserDocCountKey(alice))
	s.True(ok)
	s.Equal(uint64(1_100), liveUntil)
	s.Empty(s.host.Events())
}

func (s *HostSuite) TestPanicRevertsAndUnlocks() {
	ctx := context.Background()
	s.Panics(func() {
		_ = s.host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			_ = tx.Set(ctx, ledger.AdminKey(), []byte("admin"))
			panic("host trap")
		})
	})
	_, ok := s.get(ledger.AdminKey())
	s.False(ok)
}

func (s *HostSuite) TestRetention() {
	ctx := context.Background()
	key := ledger.NullifierUsedKey(nullifier)
	s.set(key, "used")

	s.Run("new persistent entry gets the initial window", func() {
		liveUntil, ok := s.host.LiveUntil(key)
		s.True(ok)
		s.Equal(uint64(1_100), liveUntil)
	})

	s.Run("extension never shortens", func() {
		err := s.host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			if err := tx.ExtendTTL(ctx, key, 500); err != nil {
				return err
			}
			return tx.ExtendTTL(ctx, key, 10)
		})
		s.Require().NoError(err)
		liveUntil, _ := s.host.LiveUntil(key)
		s.Equal(uint64(1_500), liveUntil)
	})

	s.Run("entry is readable through its last second", func() {
		s.clock.Set(1_500)
		_, ok := s.get(key)
		s.True(ok)
	})

	s.Run("lapsed entry reads as absent", func() {
		s.clock.Set(1_501)
		_, ok := s.get(key)
		s.False(ok)
		err := s.host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
			has, err := tx.Has(ctx, key)
			s.False(has)
			return err
		})
		s.NoError(err)
		s.Equal(1, s.host.Evict())
	})

	s.Run("instance entries never lapse", func() {
		s.set(ledger.AdminKey(), "admin")
		s.clock.Advance(1 << 40)
		_, ok := s.get(ledger.AdminKey())
		s.True(ok)
	})
}

func (s *HostSuite) TestExtendAbsentEntry() {
	err := s.host.RunInTx(context.Background(), func(ctx context.Context, tx ledger.Tx) error {
		return tx.ExtendTTL(ctx, ledger.UserIdentityKey(alice), 100)
	})
	s.ErrorIs(err, sentinel.ErrNotFound)
}

type recordingSink struct {
	events []ledger.Event
}

func (r *recordingSink) Publish(_ context.Context, events []ledger.Event) error {
	r.events = append(r.events, events...)
	return nil
}

func (s *HostSuite) TestEventsStampedAndForwardedOnCommit() {
	sink := &recordingSink{}
	host := New(WithClock(s.clock.Now), WithEventSink(sink))

	err := host.RunInTx(context.Background(), func(_ context.Context, tx ledger.Tx) error {
		tx.Publish(ledger.Event{Topic: "verified", Subject: alice, Data: nullifier})
		return nil
	})
	s.Require().NoError(err)

	s.Require().Len(host.Events(), 1)
	s.Equal(uint64(1_000), host.Events()[0].Timestamp)
	s.Equal(host.Events(), sink.events)
}

func TestHostContract(t *testing.T) {
	ledgertest.RunHostContract(t, func(*testing.T) ledger.Host { return New() })
}
