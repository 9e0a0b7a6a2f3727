// Package service implements the verified-identity registry: the authority
// store, nullifier ledger, credit ledger and document store, the two payment
// policies, the registration protocol and the read-only query surface.
//
// Every state-changing call runs inside one ledger.Host transaction, so a
// failure at any step discards all of the call's writes and events.
package service

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Authorizer,PaymentAsset

import (
	"context"
	"errors"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"idverifier/internal/authz"
	"idverifier/internal/ledger"
	"idverifier/internal/verifier/metrics"
	"idverifier/internal/verifier/models"
	dErrors "idverifier/pkg/domain-errors"
)

// DefaultPaymentAmount is 30 units of a 7-decimal asset.
var DefaultPaymentAmount = uint256.NewInt(300_000_000)

// Authorizer checks that a call was authorized by the identity it claims.
type Authorizer interface {
	Authorize(ctx context.Context, claimed common.Address, proof authz.Proof) error
}

// PaymentAsset is the payment collaborator. Its state lives in the same
// ledger, so every method takes the calling transaction's store.
type PaymentAsset interface {
	Address() common.Address
	Balance(ctx context.Context, store ledger.Store, holder common.Address) (*uint256.Int, error)
	Allowance(ctx context.Context, store ledger.Store, owner, spender common.Address) (*uint256.Int, error)
	Mint(ctx context.Context, store ledger.Store, holder common.Address, amount *uint256.Int) error
	Approve(ctx context.Context, store ledger.Store, owner, spender common.Address, amount *uint256.Int) error
	Transfer(ctx context.Context, store ledger.Store, spender, from, to common.Address, amount *uint256.Int) error
}

// Service is the registry.
type Service struct {
	host       ledger.Host
	asset      PaymentAsset
	authorizer Authorizer
	gate       PaymentGate
	amount     *uint256.Int
	retention  uint64

	authority  authorityStore
	nullifiers nullifierLedger
	credits    creditLedger
	documents  documentStore

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithPaymentGate selects the payment policy. The default is prepaid credits.
func WithPaymentGate(gate PaymentGate) Option {
	return func(s *Service) {
		s.gate = gate
	}
}

// WithPaymentAmount sets the fee, in the asset's minor units, charged for a
// credit purchase and reported by the payment preflight.
func WithPaymentAmount(amount *uint256.Int) Option {
	return func(s *Service) {
		if amount != nil && !amount.IsZero() {
			s.amount = amount
		}
	}
}

// WithRetention sets the retention window, in ledger seconds, renewed on
// every write to a per-user or per-nullifier entry.
func WithRetention(seconds uint64) Option {
	return func(s *Service) {
		if seconds > 0 {
			s.retention = seconds
		}
	}
}

// New constructs a Service.
func New(host ledger.Host, asset PaymentAsset, authorizer Authorizer, opts ...Option) *Service {
	s := &Service{
		host:       host,
		asset:      asset,
		authorizer: authorizer,
		amount:     DefaultPaymentAmount,
		retention:  ledger.DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("idverifier/verifier")
	}
	s.nullifiers = nullifierLedger{retention: s.retention}
	s.credits = creditLedger{retention: s.retention}
	s.documents = documentStore{retention: s.retention}
	if s.gate == nil {
		s.gate = NewPrepaidGate(s.retention)
	}
	return s
}

// Policy reports the active payment policy.
func (s *Service) Policy() models.PaymentMode {
	return s.gate.Mode()
}

// Asset reports the payment asset's address.
func (s *Service) Asset() common.Address {
	return s.asset.Address()
}

// view runs a read-only function against a consistent snapshot.
func (s *Service) view(ctx context.Context, fn func(ctx context.Context, store ledger.Store) error) error {
	err := s.host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		return fn(ctx, tx)
	})
	return internalUnlessCoded(err, "failed to read registry state")
}

// checkAsset accepts the zero address as "the configured asset".
func (s *Service) checkAsset(asset common.Address) error {
	if asset == (common.Address{}) || asset == s.asset.Address() {
		return nil
	}
	return dErrors.Wrap(models.ErrUnsupportedAsset, dErrors.CodeBadRequest,
		"token asset "+asset.Hex()+" is not accepted")
}

func internalUnlessCoded(err error, msg string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
