package handler

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"idverifier/internal/verifier/models"
	dErrors "idverifier/pkg/domain-errors"
)

type initializeRequest struct {
	Admin string `json:"admin"`
}

type registerRequest struct {
	Admin          string `json:"admin"`
	User           string `json:"user"`
	CommitmentHash string `json:"commitment_hash"`
	Nullifier      string `json:"nullifier"`
	TokenAsset     string `json:"token_asset,omitempty"`
	MinAgeVerified uint32 `json:"min_age_verified"`
	DocumentType   uint32 `json:"document_type"`
	GenderVerified bool   `json:"gender_verified"`
	Nonce          uint64 `json:"nonce"`
	Signature      string `json:"signature"`
}

func (r registerRequest) toModel() (models.RegisterRequest, error) {
	var p fieldParser
	out := models.RegisterRequest{
		Admin:          p.address("admin", r.Admin),
		User:           p.address("user", r.User),
		CommitmentHash: p.hash("commitment_hash", r.CommitmentHash),
		Nullifier:      p.hash("nullifier", r.Nullifier),
		TokenAsset:     p.optionalAddress("token_asset", r.TokenAsset),
		MinAgeVerified: r.MinAgeVerified,
		DocumentType:   models.DocumentType(r.DocumentType),
		GenderVerified: r.GenderVerified,
		Nonce:          r.Nonce,
		Signature:      p.bytes("signature", r.Signature),
	}
	return out, p.err
}

type prepayRequest struct {
	User       string `json:"user"`
	TokenAsset string `json:"token_asset,omitempty"`
	Nonce      uint64 `json:"nonce"`
	Signature  string `json:"signature"`
}

func (r prepayRequest) toModel() (models.PrepayRequest, error) {
	var p fieldParser
	out := models.PrepayRequest{
		User:       p.address("user", r.User),
		TokenAsset: p.optionalAddress("token_asset", r.TokenAsset),
		Nonce:      r.Nonce,
		Signature:  p.bytes("signature", r.Signature),
	}
	return out, p.err
}

type approveRequest struct {
	Owner     string `json:"owner"`
	Spender   string `json:"spender"`
	Amount    string `json:"amount"`
	Nonce     uint64 `json:"nonce"`
	Signature string `json:"signature"`
}

func (r approveRequest) toModel() (models.ApproveRequest, error) {
	var p fieldParser
	out := models.ApproveRequest{
		Owner:     p.address("owner", r.Owner),
		Spender:   p.address("spender", r.Spender),
		Amount:    p.amount("amount", r.Amount),
		Nonce:     r.Nonce,
		Signature: p.bytes("signature", r.Signature),
	}
	return out, p.err
}

type mintRequest struct {
	Holder string `json:"holder"`
	Amount string `json:"amount"`
}

// fieldParser keeps the first parse failure so a request converts in one pass.
type fieldParser struct {
	err error
}

func (p *fieldParser) fail(field, format string, args ...any) {
	if p.err == nil {
		p.err = dErrors.New(dErrors.CodeBadRequest, field+": "+fmt.Sprintf(format, args...))
	}
}

func (p *fieldParser) address(field, v string) common.Address {
	if !common.IsHexAddress(v) {
		p.fail(field, "%q is not a hex address", v)
		return common.Address{}
	}
	return common.HexToAddress(v)
}

func (p *fieldParser) optionalAddress(field, v string) common.Address {
	if strings.TrimSpace(v) == "" {
		return common.Address{}
	}
	return p.address(field, v)
}

func (p *fieldParser) hash(field, v string) common.Hash {
	b, err := hexutil.Decode(v)
	if err != nil || len(b) != common.HashLength {
		p.fail(field, "expected 0x-prefixed 32-byte hex")
		return common.Hash{}
	}
	return common.BytesToHash(b)
}

func (p *fieldParser) bytes(field, v string) []byte {
	if v == "" {
		return nil
	}
	b, err := hexutil.Decode(v)
	if err != nil {
		p.fail(field, "expected 0x-prefixed hex")
		return nil
	}
	return b
}

func (p *fieldParser) amount(field, v string) *uint256.Int {
	n, err := uint256.FromDecimal(v)
	if err != nil {
		p.fail(field, "expected a decimal amount in minor units")
		return nil
	}
	return n
}
