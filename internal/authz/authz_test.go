package authz

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignatureAuthorizer(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	other, err := crypto.GenerateKey()
	require.NoError(t, err)

	ctx := context.Background()
	a := NewSignatureAuthorizer()
	payload := []byte{0xc0, 0x01}

	t.Run("valid proof passes", func(t *testing.T) {
		proof, err := Sign(key, "register", 0, payload)
		require.NoError(t, err)
		assert.NoError(t, a.Authorize(ctx, signer, proof))
	})

	t.Run("27/28 recovery id is accepted", func(t *testing.T) {
		proof, err := Sign(key, "register", 0, payload)
		require.NoError(t, err)
		proof.Signature[crypto.RecoveryIDOffset] += 27
		assert.NoError(t, a.Authorize(ctx, signer, proof))
	})

	t.Run("another key's signature is rejected", func(t *testing.T) {
		proof, err := Sign(other, "register", 0, payload)
		require.NoError(t, err)
		assert.ErrorIs(t, a.Authorize(ctx, signer, proof), ErrSignerMismatch)
	})

	t.Run("tampered payload is rejected", func(t *testing.T) {
		proof, err := Sign(key, "register", 0, payload)
		require.NoError(t, err)
		proof.Payload = []byte{0xc0, 0x02}
		assert.Error(t, a.Authorize(ctx, signer, proof))
	})

	t.Run("proof for another operation is rejected", func(t *testing.T) {
		proof, err := Sign(key, "prepay", 0, payload)
		require.NoError(t, err)
		proof.Operation = "register"
		assert.Error(t, a.Authorize(ctx, signer, proof))
	})

	t.Run("proof with a different nonce is rejected", func(t *testing.T) {
		proof, err := Sign(key, "prepay", 3, payload)
		require.NoError(t, err)
		proof.Nonce = 4
		assert.Error(t, a.Authorize(ctx, signer, proof))
	})

	t.Run("missing and malformed proofs", func(t *testing.T) {
		assert.ErrorIs(t, a.Authorize(ctx, signer, Proof{Operation: "register"}), ErrMissingProof)
		assert.ErrorIs(t, a.Authorize(ctx, signer, Proof{Signature: []byte{1, 2, 3}}), ErrMalformedProof)
	})
}

func TestDigestIsDomainSeparated(t *testing.T) {
	assert.NotEqual(t, Digest("register", 0, []byte("x")), Digest("prepay", 0, []byte("x")))
	assert.NotEqual(t, Digest("register", 0, []byte("x")), Digest("register", 1, []byte("x")))
	assert.Equal(t, Digest("register", 0, []byte("x")), Digest("register", 0, []byte("x")))
}
