package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"idverifier/internal/ledger"
	"idverifier/internal/verifier/models"
	dErrors "idverifier/pkg/domain-errors"
)

// Initialize sets the registry authority. It succeeds exactly once; there is
// no way to change the authority afterwards.
func (s *Service) Initialize(ctx context.Context, admin common.Address) error {
	if admin == (common.Address{}) {
		return dErrors.New(dErrors.CodeBadRequest, "admin is required")
	}
	err := s.host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return s.authority.initialize(ctx, tx, admin)
	})
	if err != nil {
		err = internalUnlessCoded(err, "failed to initialize registry")
		s.reject(ctx, "initialize", err, "admin", admin.Hex())
		return err
	}
	s.logger.InfoContext(ctx, "authority_initialized", "admin", admin.Hex())
	return nil
}

// GetAdmin returns the authority, failing with ErrUninitialized before
// Initialize.
func (s *Service) GetAdmin(ctx context.Context) (common.Address, error) {
	var admin common.Address
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		var err error
		admin, err = s.authority.admin(ctx, store)
		return err
	})
	return admin, err
}

// IsInitialized reports whether an authority has been set.
func (s *Service) IsInitialized(ctx context.Context) (bool, error) {
	_, err := s.GetAdmin(ctx)
	if dErrors.Is(err, models.ErrUninitialized) {
		return false, nil
	}
	return err == nil, err
}
