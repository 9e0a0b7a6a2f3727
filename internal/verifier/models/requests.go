package models

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	dErrors "idverifier/pkg/domain-errors"
)

// Operation names bound into authorization proofs.
const (
	OpRegister = "register_verified_identity"
	OpPrepay   = "prepay_verification"
	OpApprove  = "approve"
)

// RegisterRequest carries one admin-signed registration.
// TokenAsset may be left zero, meaning the registry's configured asset.
type RegisterRequest struct {
	Admin          common.Address
	User           common.Address
	CommitmentHash common.Hash
	Nullifier      common.Hash
	TokenAsset     common.Address
	MinAgeVerified uint32
	DocumentType   DocumentType
	GenderVerified bool
	Nonce          uint64
	Signature      []byte
}

func (r RegisterRequest) Validate() error {
	if r.User == (common.Address{}) {
		return dErrors.New(dErrors.CodeBadRequest, "user is required")
	}
	if r.Nullifier == (common.Hash{}) {
		return dErrors.New(dErrors.CodeBadRequest, "nullifier is required")
	}
	if !r.DocumentType.IsValid() {
		return dErrors.Wrap(ErrInvalidDocumentType, dErrors.CodeBadRequest,
			fmt.Sprintf("document type %d", uint32(r.DocumentType)))
	}
	return nil
}

// SigningPayload is the canonical encoding the admin signs.
func (r RegisterRequest) SigningPayload() ([]byte, error) {
	return rlp.EncodeToBytes([]any{
		r.Admin, r.User, r.CommitmentHash, r.Nullifier, r.TokenAsset,
		r.MinAgeVerified, uint32(r.DocumentType), r.GenderVerified,
	})
}

// PrepayRequest buys one verification credit; signed by User.
type PrepayRequest struct {
	User       common.Address
	TokenAsset common.Address
	Nonce      uint64
	Signature  []byte
}

func (r PrepayRequest) Validate() error {
	if r.User == (common.Address{}) {
		return dErrors.New(dErrors.CodeBadRequest, "user is required")
	}
	return nil
}

func (r PrepayRequest) SigningPayload() ([]byte, error) {
	return rlp.EncodeToBytes([]any{r.User, r.TokenAsset})
}

// ApproveRequest lets Spender pull up to Amount of the payment asset from
// Owner. Pay-per-call registration needs one naming the admin as spender.
type ApproveRequest struct {
	Owner     common.Address
	Spender   common.Address
	Amount    *uint256.Int
	Nonce     uint64
	Signature []byte
}

func (r ApproveRequest) Validate() error {
	if r.Owner == (common.Address{}) || r.Spender == (common.Address{}) {
		return dErrors.New(dErrors.CodeBadRequest, "owner and spender are required")
	}
	if r.Amount == nil {
		return dErrors.New(dErrors.CodeBadRequest, "amount is required")
	}
	return nil
}

func (r ApproveRequest) SigningPayload() ([]byte, error) {
	return rlp.EncodeToBytes([]any{r.Owner, r.Spender, r.Amount})
}
