package service

import (
	"context"
	"crypto/ecdsa"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idverifier/internal/asset"
	"idverifier/internal/authz"
	"idverifier/internal/ledger"
	"idverifier/internal/ledger/memory"
	"idverifier/internal/verifier/models"
	"idverifier/pkg/testutil"
)

// registry wires the service to the real token and signature authorizer.
type registry struct {
	t     *testing.T
	svc   *Service
	token *asset.Token
	host  *memory.Host
	admin *ecdsa.PrivateKey
	user  *ecdsa.PrivateKey
}

func newRegistry(t *testing.T, policy models.PaymentMode) *registry {
	t.Helper()
	adminKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	userKey, err := crypto.GenerateKey()
	require.NoError(t, err)

	host := memory.New(memory.WithClock(memory.NewManualClock(startsAt).Now))
	token := asset.NewToken(xlm)
	gate, err := NewPaymentGate(policy, token, asset.Units(30), ledger.DefaultRetention)
	require.NoError(t, err)

	svc := New(host, token, authz.NewSignatureAuthorizer(), WithPaymentGate(gate))
	return &registry{t: t, svc: svc, token: token, host: host, admin: adminKey, user: userKey}
}

func (r *registry) adminAddr() common.Address { return crypto.PubkeyToAddress(r.admin.PublicKey) }
func (r *registry) userAddr() common.Address { return crypto.PubkeyToAddress(r.user.PublicKey) }

func (r *registry) nonce(signer common.Address) uint64 {
	n, err := r.svc.ProofNonce(context.Background(), signer)
	require.NoError(r.t, err)
	return n
}

func (r *registry) register(n byte, minAge uint32, docType models.DocumentType, gender bool) (*models.Registration, error) {
	req := models.RegisterRequest{
		Admin:          r.adminAddr(),
		User:           r.userAddr(),
		CommitmentHash: commitment(n),
		Nullifier:      nullifier(n),
		MinAgeVerified: minAge,
		DocumentType:   docType,
		GenderVerified: gender,
		Nonce:          r.nonce(r.adminAddr()),
	}
	payload, err := req.SigningPayload()
	require.NoError(r.t, err)
	proof, err := authz.Sign(r.admin, models.OpRegister, req.Nonce, payload)
	require.NoError(r.t, err)
	req.Signature = proof.Signature
	return r.svc.Register(context.Background(), req)
}

func (r *registry) prepay() (uint32, error) {
	req := models.PrepayRequest{User: r.userAddr(), TokenAsset: xlm, Nonce: r.nonce(r.userAddr())}
	payload, err := req.SigningPayload()
	require.NoError(r.t, err)
	proof, err := authz.Sign(r.user, models.OpPrepay, req.Nonce, payload)
	require.NoError(r.t, err)
	req.Signature = proof.Signature
	return r.svc.PrepayVerification(context.Background(), req)
}

func (r *registry) approveAdmin() error {
	req := models.ApproveRequest{
		Owner:   r.userAddr(),
		Spender: r.adminAddr(),
		Amount:  asset.Units(30),
		Nonce:   r.nonce(r.userAddr()),
	}
	payload, err := req.SigningPayload()
	require.NoError(r.t, err)
	proof, err := authz.Sign(r.user, models.OpApprove, req.Nonce, payload)
	require.NoError(r.t, err)
	req.Signature = proof.Signature
	return r.svc.Approve(context.Background(), req)
}

func (r *registry) docCount() uint32 {
	n, err := r.svc.GetUserDocCount(context.Background(), r.userAddr())
	require.NoError(r.t, err)
	return n
}

func (r *registry) consumed(n common.Hash) bool {
	used, err := r.svc.IsNullifierConsumed(context.Background(), n)
	require.NoError(r.t, err)
	return used
}

func (r *registry) firstRegistration(t *testing.T) {
	require.NoError(t, r.svc.Initialize(context.Background(), r.adminAddr()))
	reg, err := r.register(1, 18, models.DocumentPassport, false)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFree, reg.Payment)
	assert.Equal(t, uint32(1), r.docCount())

	ctx := context.Background()
	over18, err := r.svc.CheckAgeOver18(ctx, r.userAddr())
	require.NoError(t, err)
	assert.True(t, over18)
	over21, err := r.svc.CheckAgeOver21(ctx, r.userAddr())
	require.NoError(t, err)
	assert.False(t, over21)
}

func TestPayPerCallScenario(t *testing.T) {
	r := newRegistry(t, models.PaymentPayPerCall)
	ctx := context.Background()

	testutil.Given(t, "an initialized registry and a user's free first registration", r.firstRegistration)

	testutil.When(t, "the admin registers a second document with no prior payment setup", func(t *testing.T) {
		_, err := r.register(2, 18, models.DocumentPassport, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, asset.ErrInsufficientAllowance)
	})

	testutil.Then(t, "the call aborts with no effect", func(t *testing.T) {
		assert.Equal(t, uint32(1), r.docCount())
		assert.False(t, r.consumed(nullifier(2)))
	})

	testutil.When(t, "the user funds their account and approves the admin", func(t *testing.T) {
		_, err := r.svc.Fund(ctx, r.userAddr(), asset.Units(50))
		require.NoError(t, err)
		require.NoError(t, r.approveAdmin())
	})

	testutil.Then(t, "the second registration pulls the fee to the admin", func(t *testing.T) {
		reg, err := r.register(2, 21, models.DocumentDriversLicense, true)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPayPerCall, reg.Payment)

		userBalance, err := r.svc.AssetBalance(ctx, r.userAddr())
		require.NoError(t, err)
		assert.Equal(t, asset.Units(20), userBalance)
		adminBalance, err := r.svc.AssetBalance(ctx, r.adminAddr())
		require.NoError(t, err)
		assert.Equal(t, asset.Units(30), adminBalance)
		allowance, err := r.svc.AssetAllowance(ctx, r.userAddr(), r.adminAddr())
		require.NoError(t, err)
		assert.True(t, allowance.IsZero())
	})

	testutil.And(t, "a third registration fails once the allowance is spent", func(t *testing.T) {
		_, err := r.register(3, 21, models.DocumentPassport, false)
		assert.ErrorIs(t, err, asset.ErrInsufficientAllowance)
		assert.Equal(t, uint32(2), r.docCount())
	})
}

func TestPrepaidScenario(t *testing.T) {
	r := newRegistry(t, models.PaymentPrepaid)
	ctx := context.Background()

	testutil.Given(t, "an initialized registry and a user's free first registration", r.firstRegistration)

	testutil.And(t, "the user holds enough of the payment asset", func(t *testing.T) {
		_, err := r.svc.Fund(ctx, r.userAddr(), asset.Units(30))
		require.NoError(t, err)
	})

	testutil.When(t, "the user prepays one verification", func(t *testing.T) {
		credits, err := r.prepay()
		require.NoError(t, err)
		assert.Equal(t, uint32(1), credits)
	})

	testutil.Then(t, "a second registration consumes the credit", func(t *testing.T) {
		reg, err := r.register(2, 21, models.DocumentAadhaar, true)
		require.NoError(t, err)
		assert.Equal(t, models.PaymentPrepaid, reg.Payment)

		credits, err := r.svc.GetPrepaidCredits(ctx, r.userAddr())
		require.NoError(t, err)
		assert.Zero(t, credits)
		assert.Equal(t, uint32(2), r.docCount())
	})

	testutil.And(t, "both documents are kept in order", func(t *testing.T) {
		second, err := r.svc.GetDocument(ctx, r.userAddr(), 1)
		require.NoError(t, err)
		require.NotNil(t, second)
		assert.Equal(t, commitment(2), second.CommitmentHash)
		assert.True(t, second.Attributes.AgeOver21)
		assert.Equal(t, models.DocumentAadhaar, second.Attributes.DocumentType)

		first, err := r.svc.GetDocument(ctx, r.userAddr(), 0)
		require.NoError(t, err)
		require.NotNil(t, first)
		assert.Equal(t, commitment(1), first.CommitmentHash)
		assert.False(t, first.Attributes.AgeOver21)
	})

	testutil.And(t, "a purchase the user cannot afford adds no credit", func(t *testing.T) {
		_, err := r.prepay()
		assert.ErrorIs(t, err, asset.ErrInsufficientBalance)
		credits, err := r.svc.GetPrepaidCredits(ctx, r.userAddr())
		require.NoError(t, err)
		assert.Zero(t, credits)
	})

	testutil.And(t, "the event log holds exactly the committed events", func(t *testing.T) {
		var topics []string
		for _, e := range r.host.Events() {
			topics = append(topics, e.Topic)
		}
		assert.Equal(t, []string{models.EventVerified, models.EventPrepaid, models.EventVerified}, topics)
	})
}

func TestReplayedPrepayProofIsRejected(t *testing.T) {
	r := newRegistry(t, models.PaymentPrepaid)
	ctx := context.Background()
	require.NoError(t, r.svc.Initialize(ctx, r.adminAddr()))
	_, err := r.svc.Fund(ctx, r.userAddr(), asset.Units(90))
	require.NoError(t, err)

	req := models.PrepayRequest{User: r.userAddr(), Nonce: 0}
	payload, err := req.SigningPayload()
	require.NoError(t, err)
	proof, err := authz.Sign(r.user, models.OpPrepay, 0, payload)
	require.NoError(t, err)
	req.Signature = proof.Signature

	_, err = r.svc.PrepayVerification(ctx, req)
	require.NoError(t, err)
	_, err = r.svc.PrepayVerification(ctx, req)
	assert.ErrorIs(t, err, models.ErrUnauthorized)

	balance, err := r.svc.AssetBalance(ctx, r.userAddr())
	require.NoError(t, err)
	assert.Equal(t, asset.Units(60), balance, "the replay was not charged")
}

func TestProofFromAnotherKeyIsRejected(t *testing.T) {
	r := newRegistry(t, models.PaymentPrepaid)
	require.NoError(t, r.svc.Initialize(context.Background(), r.adminAddr()))

	// The user signs a registration that names the real admin as caller.
	req := models.RegisterRequest{
		Admin:        r.adminAddr(),
		User:         r.userAddr(),
		Nullifier:    nullifier(1),
		DocumentType: models.DocumentPassport,
	}
	payload, err := req.SigningPayload()
	require.NoError(t, err)
	proof, err := authz.Sign(r.user, models.OpRegister, 0, payload)
	require.NoError(t, err)
	req.Signature = proof.Signature

	_, err = r.svc.Register(context.Background(), req)
	assert.ErrorIs(t, err, models.ErrUnauthorized)
	assert.ErrorIs(t, err, authz.ErrSignerMismatch)
	assert.False(t, r.consumed(nullifier(1)))
	assert.Zero(t, r.docCount())
}
