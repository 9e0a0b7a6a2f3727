package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"idverifier/internal/ledger"
	"idverifier/internal/verifier/models"
	dErrors "idverifier/pkg/domain-errors"
)

// Register binds a verified identity to req.User.
//
// Steps run in this order inside one ledger transaction:
//  1. the caller must be the stored authority and carry its proof
//  2. the nullifier is consumed, failing if it already was
//  3. a user's second and later registrations go through the payment gate
//  4. attributes are derived from the proof outputs
//  5. the record is appended at index doc_count and becomes the latest
//  6. a verified event is published
//
// Any failure discards every effect of the call, including the nullifier.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.Registration, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "verifier.Register",
		trace.WithAttributes(
			attribute.String("user", req.User.Hex()),
			attribute.String("payment_policy", string(s.gate.Mode())),
		))
	defer span.End()

	reg, err := s.register(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration rejected")
		s.reject(ctx, models.OpRegister, err,
			"user", req.User.Hex(),
			"nullifier", req.Nullifier.Hex(),
		)
		return nil, err
	}

	span.SetAttributes(attribute.Int("doc_index", int(reg.Index)))
	s.logger.InfoContext(ctx, "identity_registered",
		"user", reg.User.Hex(),
		"doc_index", reg.Index,
		"doc_count", reg.DocCount,
		"payment", string(reg.Payment),
		"document_type", reg.Record.Attributes.DocumentType.String(),
	)
	if s.metrics != nil {
		s.metrics.IncRegistration(string(reg.Payment))
		s.metrics.ObserveRegistration(start)
	}
	return reg, nil
}

func (s *Service) register(ctx context.Context, req models.RegisterRequest) (*models.Registration, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkAsset(req.TokenAsset); err != nil {
		return nil, err
	}
	payload, err := req.SigningPayload()
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to encode request")
	}

	var reg *models.Registration
	err = s.host.RunInTx(ctx, func(ctx context.Context, tx ledger.Tx) error {
		admin, err := s.authority.admin(ctx, tx)
		if err != nil {
			return err
		}
		if req.Admin != admin {
			return dErrors.Wrap(models.ErrUnauthorized, dErrors.CodeUnauthorized, "caller is not the registry authority")
		}
		if err := s.authorize(ctx, tx, admin, models.OpRegister, payload, req.Nonce, req.Signature); err != nil {
			return err
		}

		if err := s.nullifiers.consume(ctx, tx, req.Nullifier); err != nil {
			return err
		}

		count, err := s.credits.docCount(ctx, tx, req.User)
		if err != nil {
			return err
		}
		payment := models.PaymentFree
		if count >= 1 {
			if err := s.gate.Charge(ctx, tx, Charge{Admin: admin, User: req.User}); err != nil {
				return err
			}
			payment = s.gate.Mode()
		}

		now := tx.Timestamp()
		record := models.IdentityRecord{
			CommitmentHash: req.CommitmentHash,
			Timestamp:      now,
			Attributes:     models.DeriveAttributes(req.MinAgeVerified, req.DocumentType, req.GenderVerified, now),
		}

		index := count
		if err := s.credits.setDocCount(ctx, tx, req.User, count+1); err != nil {
			return err
		}
		if err := s.documents.append(ctx, tx, req.User, index, record); err != nil {
			return err
		}
		if err := incrementTotalVerifications(ctx, tx); err != nil {
			return err
		}

		tx.Publish(ledger.Event{Topic: models.EventVerified, Subject: req.User, Data: req.CommitmentHash.Hex()})

		reg = &models.Registration{
			User:     req.User,
			Index:    index,
			Record:   record,
			DocCount: count + 1,
			Payment:  payment,
		}
		return nil
	})
	if err != nil {
		return nil, internalUnlessCoded(err, "failed to register identity")
	}
	return reg, nil
}
