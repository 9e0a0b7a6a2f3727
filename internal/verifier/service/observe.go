package service

import (
	"context"
	"errors"

	"idverifier/internal/asset"
	"idverifier/internal/verifier/models"
	dErrors "idverifier/pkg/domain-errors"
)

var rejectionReasons = []struct {
	err    error
	reason string
}{
	{models.ErrAlreadyInitialized, "already_initialized"},
	{models.ErrUninitialized, "uninitialized"},
	{models.ErrUnauthorized, "unauthorized"},
	{models.ErrNullifierAlreadyUsed, "nullifier_already_used"},
	{models.ErrNoPrepaidCredits, "no_prepaid_credits"},
	{models.ErrInvalidDocumentType, "invalid_document_type"},
	{models.ErrUnsupportedAsset, "unsupported_asset"},
	{models.ErrPolicyNotSupported, "policy_not_supported"},
	{asset.ErrInsufficientBalance, "insufficient_balance"},
	{asset.ErrInsufficientAllowance, "insufficient_allowance"},
}

// reasonOf names the failure for logs and metric labels.
func reasonOf(err error) string {
	for _, r := range rejectionReasons {
		if errors.Is(err, r.err) {
			return r.reason
		}
	}
	return string(dErrors.CodeOf(err))
}

// reject logs and counts a failed state-changing call.
func (s *Service) reject(ctx context.Context, op string, err error, attrs ...any) {
	reason := reasonOf(err)
	args := append([]any{"operation", op, "reason", reason, "error", err}, attrs...)
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		s.logger.ErrorContext(ctx, "call failed", args...)
	} else {
		s.logger.WarnContext(ctx, "call rejected", args...)
	}
	if s.metrics != nil {
		s.metrics.IncRejection(op, reason)
	}
}
