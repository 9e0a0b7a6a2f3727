package service

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"idverifier/internal/authz"
	"idverifier/internal/ledger"
	"idverifier/internal/verifier/models"
	dErrors "idverifier/pkg/domain-errors"
)

// authorize checks that signer produced the proof for this exact call and
// advances signer's nonce. Both happen inside tx, so a call that fails later
// leaves the nonce where it was and the proof can be resubmitted.
func (s *Service) authorize(ctx context.Context, tx ledger.Tx, signer common.Address, op string, payload []byte, nonce uint64, signature []byte) error {
	key := ledger.AuthNonceKey(signer)
	expected, _, err := ledger.Load[uint64](ctx, tx, key)
	if err != nil {
		return err
	}
	if nonce != expected {
		return dErrors.Wrap(models.ErrUnauthorized, dErrors.CodeUnauthorized,
			fmt.Sprintf("proof nonce %d, expected %d", nonce, expected))
	}

	proof := authz.Proof{Operation: op, Nonce: nonce, Payload: payload, Signature: signature}
	if err := s.authorizer.Authorize(ctx, signer, proof); err != nil {
		return dErrors.Wrap(fmt.Errorf("%w: %w", models.ErrUnauthorized, err), dErrors.CodeUnauthorized,
			"authorization proof rejected")
	}
	return ledger.Save(ctx, tx, key, expected+1)
}

// ProofNonce returns the nonce signer's next proof must carry.
func (s *Service) ProofNonce(ctx context.Context, signer common.Address) (uint64, error) {
	var nonce uint64
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		var err error
		nonce, _, err = ledger.Load[uint64](ctx, store, ledger.AuthNonceKey(signer))
		return err
	})
	return nonce, err
}
