//go:build integration

package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"idverifier/internal/ledger"
	"idverifier/internal/ledger/ledgertest"
	ledgerredis "idverifier/internal/ledger/redis"
	"idverifier/pkg/testutil/containers"
)

type RedisHostSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisHostSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisHostSuite))
}

func (s *RedisHostSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *RedisHostSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisHostSuite) TestContract() {
	ledgertest.RunHostContract(s.T(), func(t *testing.T) ledger.Host {
		s.Require().NoError(s.redis.FlushAll(context.Background()))
		return ledgerredis.New(s.redis.Client)
	})
}

func (s *RedisHostSuite) TestRetentionMapsToKeyExpiry() {
	ctx := context.Background()
	host := ledgerredis.New(s.redis.Client, ledgerredis.WithInitialTTL(60))
	user := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	err := host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := ledger.Save(ctx, tx, ledger.UserDocCountKey(user), uint32(1)); err != nil {
			return err
		}
		return ledger.Save(ctx, tx, ledger.AdminKey(), user)
	})
	s.Require().NoError(err)

	ttl, err := s.redis.Client.TTL(ctx, "idv:"+ledger.UserDocCountKey(user).String()).Result()
	s.Require().NoError(err)
	s.InDelta(61*time.Second, ttl, float64(2*time.Second))

	err = host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return tx.ExtendTTL(ctx, ledger.UserDocCountKey(user), 3600)
	})
	s.Require().NoError(err)
	ttl, err = s.redis.Client.TTL(ctx, "idv:"+ledger.UserDocCountKey(user).String()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, 59*time.Minute)

	adminTTL, err := s.redis.Client.TTL(ctx, "idv:admin").Result()
	s.Require().NoError(err)
	s.Equal(time.Duration(-1), adminTTL)
}

func (s *RedisHostSuite) TestEventStream() {
	ctx := context.Background()
	host := ledgerredis.New(s.redis.Client)
	user := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	err := host.RunInTx(ctx, func(_ context.Context, tx ledger.Tx) error {
		tx.Publish(ledger.Event{Topic: "verified", Subject: user, Data: "0x01"})
		return nil
	})
	s.Require().NoError(err)

	events, err := host.Events(ctx)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("verified", events[0].Topic)
	s.Equal(user, events[0].Subject)
	s.NotZero(events[0].Timestamp)
}
