package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"idverifier/internal/asset"
	"idverifier/internal/ledger"
	"idverifier/internal/verifier/models"
	dErrors "idverifier/pkg/domain-errors"
)

// Charge identifies who pays for a registration and who is paid.
type Charge struct {
	Admin common.Address
	User  common.Address
}

// PaymentGate settles a registration that is not the user's first. It runs
// inside the registration transaction; an error aborts the whole call.
type PaymentGate interface {
	Mode() models.PaymentMode
	Charge(ctx context.Context, tx ledger.Tx, c Charge) error
}

// PayPerCallGate pulls the fee from the user to the admin inside the
// admin-signed registration. The user must have approved the admin as a
// spender of at least the fee beforehand.
type PayPerCallGate struct {
	asset  PaymentAsset
	amount *uint256.Int
}

func NewPayPerCallGate(payAsset PaymentAsset, amount *uint256.Int) *PayPerCallGate {
	if amount == nil {
		amount = DefaultPaymentAmount
	}
	return &PayPerCallGate{asset: payAsset, amount: amount}
}

func (g *PayPerCallGate) Mode() models.PaymentMode { return models.PaymentPayPerCall }

func (g *PayPerCallGate) Charge(ctx context.Context, tx ledger.Tx, c Charge) error {
	if err := g.asset.Transfer(ctx, tx, c.Admin, c.User, c.Admin, g.amount); err != nil {
		return transferFailed(err)
	}
	return nil
}

// PrepaidGate draws down one prepaid credit; no transfer happens here.
type PrepaidGate struct {
	credits creditLedger
}

func NewPrepaidGate(retention uint64) *PrepaidGate {
	return &PrepaidGate{credits: creditLedger{retention: retention}}
}

func (g *PrepaidGate) Mode() models.PaymentMode { return models.PaymentPrepaid }

func (g *PrepaidGate) Charge(ctx context.Context, tx ledger.Tx, c Charge) error {
	_, err := g.credits.consumeCredit(ctx, tx, c.User)
	return err
}

// NewPaymentGate builds the gate for a configured policy name.
func NewPaymentGate(mode models.PaymentMode, payAsset PaymentAsset, amount *uint256.Int, retention uint64) (PaymentGate, error) {
	switch mode {
	case models.PaymentPayPerCall:
		return NewPayPerCallGate(payAsset, amount), nil
	case models.PaymentPrepaid, "":
		return NewPrepaidGate(retention), nil
	default:
		return nil, fmt.Errorf("unknown payment policy %q", mode)
	}
}

func transferFailed(err error) error {
	if errors.Is(err, asset.ErrInsufficientBalance) || errors.Is(err, asset.ErrInsufficientAllowance) {
		return dErrors.Wrap(err, dErrors.CodePaymentRequired, "payment transfer failed")
	}
	return internalUnlessCoded(err, "payment transfer failed")
}

// PrepayVerification buys one verification credit for req.User. It is only
// offered under the prepaid policy and must be signed by the user.
func (s *Service) PrepayVerification(ctx context.Context, req models.PrepayRequest) (uint32, error) {
	ctx, span := s.tracer.Start(ctx, "verifier.PrepayVerification",
		trace.WithAttributes(attribute.String("user", req.User.Hex())))
	defer span.End()

	balance, err := s.prepay(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prepay rejected")
		s.reject(ctx, models.OpPrepay, err, "user", req.User.Hex())
		return 0, err
	}

	s.logger.InfoContext(ctx, "credit_purchased",
		"user", req.User.Hex(),
		"prepaid_credits", balance,
		"amount", s.amount.Dec(),
	)
	if s.metrics != nil {
		s.metrics.IncCreditPurchase()
	}
	return balance, nil
}

func (s *Service) prepay(ctx context.Context, req models.PrepayRequest) (uint32, error) {
	if s.gate.Mode() != models.PaymentPrepaid {
		return 0, dErrors.Wrap(models.ErrPolicyNotSupported, dErrors.CodeNotFound, "prepaid credits are not offered")
	}
	if err := req.Validate(); err != nil {
		return 0, err
	}
	if err := s.checkAsset(req.TokenAsset); err != nil {
		return 0, err
	}
	payload, err := req.SigningPayload()
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to encode request")
	}

	var balance uint32
	err = s.host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		admin, err := s.authority.admin(ctx, tx)
		if err != nil {
			return err
		}
		if err := s.authorize(ctx, tx, req.User, models.OpPrepay, payload, req.Nonce, req.Signature); err != nil {
			return err
		}
		if err := s.asset.Transfer(ctx, tx, req.User, req.User, admin, s.amount); err != nil {
			return transferFailed(err)
		}
		balance, err = s.credits.addCredit(ctx, tx, req.User)
		if err != nil {
			return err
		}
		tx.Publish(ledger.Event{Topic: models.EventPrepaid, Subject: req.User, Data: balance})
		return nil
	})
	if err != nil {
		return 0, internalUnlessCoded(err, "failed to purchase credit")
	}
	return balance, nil
}
