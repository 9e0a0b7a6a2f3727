package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"idverifier/internal/ledger"
	"idverifier/internal/verifier/models"
	dErrors "idverifier/pkg/domain-errors"
)

// Approve records an owner-signed allowance on the payment asset. Under the
// pay-per-call policy a user approves the authority before any paid
// registration.
func (s *Service) Approve(ctx context.Context, req models.ApproveRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	payload, err := req.SigningPayload()
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to encode request")
	}
	err = s.host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := s.authorize(ctx, tx, req.Owner, models.OpApprove, payload, req.Nonce, req.Signature); err != nil {
			return err
		}
		return s.asset.Approve(ctx, tx, req.Owner, req.Spender, req.Amount)
	})
	if err != nil {
		err = internalUnlessCoded(err, "failed to approve allowance")
		s.reject(ctx, models.OpApprove, err, "owner", req.Owner.Hex())
		return err
	}
	s.logger.InfoContext(ctx, "allowance_approved",
		"owner", req.Owner.Hex(),
		"spender", req.Spender.Hex(),
		"amount", req.Amount.Dec(),
	)
	return nil
}

// Fund mints payment asset to holder. Only wired in development.
func (s *Service) Fund(ctx context.Context, holder common.Address, amount *uint256.Int) (*uint256.Int, error) {
	var balance *uint256.Int
	err := s.host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		if err := s.asset.Mint(ctx, tx, holder, amount); err != nil {
			return dErrors.Wrap(err, dErrors.CodeBadRequest, "mint rejected")
		}
		var err error
		balance, err = s.asset.Balance(ctx, tx, holder)
		return err
	})
	if err != nil {
		return nil, internalUnlessCoded(err, "failed to fund account")
	}
	return balance, nil
}

// AssetBalance returns holder's balance of the payment asset.
func (s *Service) AssetBalance(ctx context.Context, holder common.Address) (*uint256.Int, error) {
	var balance *uint256.Int
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		var err error
		balance, err = s.asset.Balance(ctx, store, holder)
		return err
	})
	return balance, err
}

// AssetAllowance returns how much spender may still pull from owner.
func (s *Service) AssetAllowance(ctx context.Context, owner, spender common.Address) (*uint256.Int, error) {
	var allowance *uint256.Int
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		var err error
		allowance, err = s.asset.Allowance(ctx, store, owner, spender)
		return err
	})
	return allowance, err
}
