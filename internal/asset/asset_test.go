package asset

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/suite"

	"idverifier/internal/ledger"
	"idverifier/internal/ledger/memory"
)

type TokenSuite struct {
	suite.Suite
	host  *memory.Host
	token *Token
}

var (
	xlm   = common.HexToAddress("0x0000000000000000000000000000000000000a55")
	user  = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	admin = common.HexToAddress("0x00000000000000000000000000000000000000ad")
)

func TestTokenSuite(t *testing.T) {
	suite.Run(t, new(TokenSuite))
}

func (s *TokenSuite) SetupTest() {
	s.host = memory.New()
	s.token = NewToken(xlm)
}

func (s *TokenSuite) do(fn func(ctx context.Context, tx ledger.Tx) error) error {
	return s.host.RunInTx(context.Background(), fn)
}

func (s *TokenSuite) balance(holder common.Address) *uint256.Int {
	var b *uint256.Int
	s.Require().NoError(s.do(func(ctx context.Context, tx ledger.Tx) error {
		var err error
		b, err = s.token.Balance(ctx, tx, holder)
		return err
	}))
	return b
}

func (s *TokenSuite) TestUnits() {
	s.Equal(uint64(300_000_000), Units(30).Uint64())
}

func (s *TokenSuite) TestTransfer() {
	s.Require().NoError(s.do(func(ctx context.Context, tx ledger.Tx) error {
		return s.token.Mint(ctx, tx, user, Units(100))
	}))

	s.Run("owner moves own funds without allowance", func() {
		err := s.do(func(ctx context.Context, tx ledger.Tx) error {
			return s.token.Transfer(ctx, tx, user, user, admin, Units(30))
		})
		s.Require().NoError(err)
		s.Equal(Units(70), s.balance(user))
		s.Equal(Units(30), s.balance(admin))
	})

	s.Run("third-party pull without approval fails", func() {
		err := s.do(func(ctx context.Context, tx ledger.Tx) error {
			return s.token.Transfer(ctx, tx, admin, user, admin, Units(30))
		})
		s.ErrorIs(err, ErrInsufficientAllowance)
		s.Equal(Units(70), s.balance(user))
	})

	s.Run("approved pull draws down the allowance", func() {
		s.Require().NoError(s.do(func(ctx context.Context, tx ledger.Tx) error {
			return s.token.Approve(ctx, tx, user, admin, Units(40))
		}))
		s.Require().NoError(s.do(func(ctx context.Context, tx ledger.Tx) error {
			return s.token.Transfer(ctx, tx, admin, user, admin, Units(30))
		}))
		s.Equal(Units(40), s.balance(user))
		s.Require().NoError(s.do(func(ctx context.Context, tx ledger.Tx) error {
			allowance, err := s.token.Allowance(ctx, tx, user, admin)
			s.Equal(Units(10), allowance)
			return err
		}))
	})

	s.Run("overdraw fails and leaves balances unchanged", func() {
		err := s.do(func(ctx context.Context, tx ledger.Tx) error {
			return s.token.Transfer(ctx, tx, user, user, admin, Units(41))
		})
		s.ErrorIs(err, ErrInsufficientBalance)
		s.Equal(Units(40), s.balance(user))
	})

	s.Run("zero amount is rejected", func() {
		err := s.do(func(ctx context.Context, tx ledger.Tx) error {
			return s.token.Transfer(ctx, tx, user, user, admin, new(uint256.Int))
		})
		s.ErrorIs(err, ErrInvalidAmount)
	})
}
