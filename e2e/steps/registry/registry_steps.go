package registry

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"idverifier/internal/asset"
	"idverifier/internal/authz"
	"idverifier/internal/platform/config"
	"idverifier/internal/verifier/models"
)

// TestContext is the slice of the scenario context registry steps need.
type TestContext interface {
	Start(policy string) error
	Key(name string) (*ecdsa.PrivateKey, error)
	POST(path string, body any) error
	GET(path string) error
	Status() int
	Decode(v any) error
}

// RegisterSteps registers the registry step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &registrySteps{tc: tc}

	ctx.Step(`^a registry with the "([^"]*)" payment policy$`, steps.registryWithPolicy)
	ctx.Step(`^"([^"]*)" initializes the registry$`, steps.initializes)
	ctx.Step(`^"([^"]*)" holds (\d+) units of the payment asset$`, steps.holds)
	ctx.Step(`^"([^"]*)" registers "([^"]*)" with nullifier "([^"]*)" and minimum age (\d+)$`, steps.registers)
	ctx.Step(`^"([^"]*)" prepays one verification$`, steps.prepays)
	ctx.Step(`^"([^"]*)" approves "([^"]*)" to spend (\d+) units$`, steps.approves)

	ctx.Step(`^"([^"]*)" should be verified as over (\d+)$`, steps.shouldBeVerifiedOver)
	ctx.Step(`^"([^"]*)" should not be verified$`, steps.shouldNotBeVerified)
	ctx.Step(`^"([^"]*)" should have (\d+) documents?$`, steps.shouldHaveDocuments)
	ctx.Step(`^"([^"]*)" should have (\d+) prepaid credits?$`, steps.shouldHaveCredits)
	ctx.Step(`^"([^"]*)" should hold (\d+) units of the payment asset$`, steps.shouldHold)
	ctx.Step(`^the next registration of "([^"]*)" should (not )?require payment$`, steps.nextRegistrationRequiresPayment)
}

type registrySteps struct {
	tc TestContext
}

func (s *registrySteps) address(name string) (common.Address, error) {
	k, err := s.tc.Key(name)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(k.PublicKey), nil
}

func (s *registrySteps) nonce(signer common.Address) (uint64, error) {
	if err := s.tc.GET("/v1/accounts/" + signer.Hex() + "/nonce"); err != nil {
		return 0, err
	}
	var out struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := s.tc.Decode(&out); err != nil {
		return 0, err
	}
	return out.Nonce, nil
}

// sign fills in the signer's current nonce and returns the hex signature.
func (s *registrySteps) sign(name, op string, payload func(nonce uint64) ([]byte, error)) (uint64, string, error) {
	key, err := s.tc.Key(name)
	if err != nil {
		return 0, "", err
	}
	nonce, err := s.nonce(crypto.PubkeyToAddress(key.PublicKey))
	if err != nil {
		return 0, "", err
	}
	raw, err := payload(nonce)
	if err != nil {
		return 0, "", err
	}
	proof, err := authz.Sign(key, op, nonce, raw)
	if err != nil {
		return 0, "", err
	}
	return nonce, hexutil.Encode(proof.Signature), nil
}

func (s *registrySteps) registryWithPolicy(_ context.Context, policy string) error {
	return s.tc.Start(policy)
}

func (s *registrySteps) initializes(_ context.Context, admin string) error {
	addr, err := s.address(admin)
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/initialize", map[string]string{"admin": addr.Hex()})
}

func (s *registrySteps) holds(_ context.Context, name string, units int) error {
	addr, err := s.address(name)
	if err != nil {
		return err
	}
	if err := s.tc.POST("/v1/asset/mint", map[string]string{
		"holder": addr.Hex(),
		"amount": asset.Units(uint64(units)).Dec(),
	}); err != nil {
		return err
	}
	if s.tc.Status() != 200 {
		return fmt.Errorf("mint failed with status %d", s.tc.Status())
	}
	return nil
}

func (s *registrySteps) registers(_ context.Context, signer, user, nullifier string, minAge int) error {
	signerAddr, err := s.address(signer)
	if err != nil {
		return err
	}
	userAddr, err := s.address(user)
	if err != nil {
		return err
	}
	req := models.RegisterRequest{
		Admin:          signerAddr,
		User:           userAddr,
		CommitmentHash: crypto.Keccak256Hash([]byte("commitment:" + nullifier)),
		Nullifier:      crypto.Keccak256Hash([]byte(nullifier)),
		MinAgeVerified: uint32(minAge),
		DocumentType:   models.DocumentPassport,
		GenderVerified: true,
	}
	nonce, sig, err := s.sign(signer, models.OpRegister, func(nonce uint64) ([]byte, error) {
		req.Nonce = nonce
		return req.SigningPayload()
	})
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/register", map[string]any{
		"admin":            req.Admin.Hex(),
		"user":             req.User.Hex(),
		"commitment_hash":  req.CommitmentHash.Hex(),
		"nullifier":        req.Nullifier.Hex(),
		"min_age_verified": req.MinAgeVerified,
		"document_type":    uint32(req.DocumentType),
		"gender_verified":  req.GenderVerified,
		"nonce":            nonce,
		"signature":        sig,
	})
}

func (s *registrySteps) prepays(_ context.Context, user string) error {
	addr, err := s.address(user)
	if err != nil {
		return err
	}
	req := models.PrepayRequest{User: addr, TokenAsset: config.DefaultAsset}
	nonce, sig, err := s.sign(user, models.OpPrepay, func(nonce uint64) ([]byte, error) {
		req.Nonce = nonce
		return req.SigningPayload()
	})
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/prepay", map[string]any{
		"user":        addr.Hex(),
		"token_asset": config.DefaultAsset.Hex(),
		"nonce":       nonce,
		"signature":   sig,
	})
}

func (s *registrySteps) approves(_ context.Context, owner, spender string, units int) error {
	ownerAddr, err := s.address(owner)
	if err != nil {
		return err
	}
	spenderAddr, err := s.address(spender)
	if err != nil {
		return err
	}
	req := models.ApproveRequest{Owner: ownerAddr, Spender: spenderAddr, Amount: asset.Units(uint64(units))}
	nonce, sig, err := s.sign(owner, models.OpApprove, func(nonce uint64) ([]byte, error) {
		req.Nonce = nonce
		return req.SigningPayload()
	})
	if err != nil {
		return err
	}
	return s.tc.POST("/v1/asset/approve", map[string]any{
		"owner":     ownerAddr.Hex(),
		"spender":   spenderAddr.Hex(),
		"amount":    req.Amount.Dec(),
		"nonce":     nonce,
		"signature": sig,
	})
}

type userView struct {
	Verified       bool   `json:"verified"`
	AgeOver18      bool   `json:"age_over_18"`
	AgeOver21      bool   `json:"age_over_21"`
	DocCount       uint32 `json:"doc_count"`
	PrepaidCredits uint32 `json:"prepaid_credits"`
}

func (s *registrySteps) user(name string) (userView, error) {
	var out userView
	addr, err := s.address(name)
	if err != nil {
		return out, err
	}
	if err := s.tc.GET("/v1/users/" + addr.Hex()); err != nil {
		return out, err
	}
	return out, s.tc.Decode(&out)
}

func (s *registrySteps) shouldBeVerifiedOver(_ context.Context, name string, age int) error {
	u, err := s.user(name)
	if err != nil {
		return err
	}
	if !u.Verified {
		return fmt.Errorf("%s is not verified", name)
	}
	switch age {
	case 18:
		if !u.AgeOver18 {
			return fmt.Errorf("%s is not verified over 18", name)
		}
	case 21:
		if !u.AgeOver21 {
			return fmt.Errorf("%s is not verified over 21", name)
		}
	default:
		return fmt.Errorf("the registry only tracks ages 18 and 21, not %d", age)
	}
	return nil
}

func (s *registrySteps) shouldNotBeVerified(_ context.Context, name string) error {
	u, err := s.user(name)
	if err != nil {
		return err
	}
	if u.Verified {
		return fmt.Errorf("%s is verified", name)
	}
	return nil
}

func (s *registrySteps) shouldHaveDocuments(_ context.Context, name string, n int) error {
	u, err := s.user(name)
	if err != nil {
		return err
	}
	if int(u.DocCount) != n {
		return fmt.Errorf("expected %d documents for %s, got %d", n, name, u.DocCount)
	}
	return nil
}

func (s *registrySteps) shouldHaveCredits(_ context.Context, name string, n int) error {
	u, err := s.user(name)
	if err != nil {
		return err
	}
	if int(u.PrepaidCredits) != n {
		return fmt.Errorf("expected %d prepaid credits for %s, got %d", n, name, u.PrepaidCredits)
	}
	return nil
}

func (s *registrySteps) shouldHold(_ context.Context, name string, units int) error {
	addr, err := s.address(name)
	if err != nil {
		return err
	}
	if err := s.tc.GET("/v1/asset/balances/" + addr.Hex()); err != nil {
		return err
	}
	var out struct {
		Balance string `json:"balance"`
	}
	if err := s.tc.Decode(&out); err != nil {
		return err
	}
	if want := asset.Units(uint64(units)).Dec(); out.Balance != want {
		return fmt.Errorf("expected %s to hold %s, got %s", name, want, out.Balance)
	}
	return nil
}

func (s *registrySteps) nextRegistrationRequiresPayment(_ context.Context, name, not string) error {
	addr, err := s.address(name)
	if err != nil {
		return err
	}
	if err := s.tc.GET("/v1/users/" + addr.Hex() + "/payment"); err != nil {
		return err
	}
	var out struct {
		PaymentRequired bool `json:"payment_required"`
	}
	if err := s.tc.Decode(&out); err != nil {
		return err
	}
	if want := not == ""; out.PaymentRequired != want {
		return fmt.Errorf("expected payment_required=%t, got %t", want, out.PaymentRequired)
	}
	return nil
}
