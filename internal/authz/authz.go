// Package authz checks that a call was authorized by the identity it claims
// to act for. Proofs are secp256k1 signatures over a domain-separated digest
// of the operation name, the signer's nonce and the canonical call payload.
package authz

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/sha3"
)

const domainTag = "idverifier:"

var (
	ErrMissingProof   = errors.New("missing authorization proof")
	ErrMalformedProof = errors.New("malformed authorization proof")
	ErrSignerMismatch = errors.New("proof not signed by claimed identity")
)

// Proof accompanies a state-changing call.
type Proof struct {
	Operation string
	Nonce     uint64
	Payload   []byte
	Signature []byte
}

// Authorizer answers whether proof shows that claimed authorized the call.
type Authorizer interface {
	Authorize(ctx context.Context, claimed common.Address, proof Proof) error
}

// Digest is the 32-byte message a proof signs.
func Digest(operation string, nonce uint64, payload []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(domainTag))
	h.Write([]byte(operation))
	h.Write([]byte{':'})
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], nonce)
	h.Write(n[:])
	h.Write(payload)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// Sign produces a proof for operation on behalf of key's address.
func Sign(key *ecdsa.PrivateKey, operation string, nonce uint64, payload []byte) (Proof, error) {
	digest := Digest(operation, nonce, payload)
	sig, err := crypto.Sign(digest[:], key)
	if err != nil {
		return Proof{}, fmt.Errorf("sign %s: %w", operation, err)
	}
	return Proof{Operation: operation, Nonce: nonce, Payload: payload, Signature: sig}, nil
}

// SignatureAuthorizer recovers the signer from a 65-byte [R || S || V]
// signature and compares it to the claimed address.
type SignatureAuthorizer struct{}

func NewSignatureAuthorizer() *SignatureAuthorizer {
	return &SignatureAuthorizer{}
}

func (a *SignatureAuthorizer) Authorize(_ context.Context, claimed common.Address, proof Proof) error {
	if len(proof.Signature) == 0 {
		return ErrMissingProof
	}
	if len(proof.Signature) != crypto.SignatureLength {
		return fmt.Errorf("signature length %d: %w", len(proof.Signature), ErrMalformedProof)
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, proof.Signature)
	// Accept both the raw recovery id and the 27/28 form wallets emit.
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}

	digest := Digest(proof.Operation, proof.Nonce, proof.Payload)
	pub, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return fmt.Errorf("recover signer: %w", ErrMalformedProof)
	}
	if signer := crypto.PubkeyToAddress(*pub); signer != claimed {
		return fmt.Errorf("signed by %s, claimed %s: %w", signer.Hex(), claimed.Hex(), ErrSignerMismatch)
	}
	return nil
}
