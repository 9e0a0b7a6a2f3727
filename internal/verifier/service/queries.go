package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"idverifier/internal/ledger"
	"idverifier/internal/verifier/models"
)

// Queries never fail for unknown users: absence reads as nil, false or zero.

// CheckVerification returns the user's latest record, or nil.
func (s *Service) CheckVerification(ctx context.Context, user common.Address) (*models.IdentityRecord, error) {
	var rec *models.IdentityRecord
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		var err error
		rec, err = s.documents.latest(ctx, store, user)
		return err
	})
	return rec, err
}

func (s *Service) CheckAgeOver18(ctx context.Context, user common.Address) (bool, error) {
	rec, err := s.CheckVerification(ctx, user)
	if err != nil || rec == nil {
		return false, err
	}
	return rec.Attributes.AgeOver18, nil
}

func (s *Service) CheckAgeOver21(ctx context.Context, user common.Address) (bool, error) {
	rec, err := s.CheckVerification(ctx, user)
	if err != nil || rec == nil {
		return false, err
	}
	return rec.Attributes.AgeOver21, nil
}

// GetDocumentType returns the latest record's document type, or 0.
func (s *Service) GetDocumentType(ctx context.Context, user common.Address) (models.DocumentType, error) {
	rec, err := s.CheckVerification(ctx, user)
	if err != nil || rec == nil {
		return 0, err
	}
	return rec.Attributes.DocumentType, nil
}

// GetDocument returns the record at index, or nil when index >= doc_count.
func (s *Service) GetDocument(ctx context.Context, user common.Address, index uint32) (*models.IdentityRecord, error) {
	var rec *models.IdentityRecord
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		count, err := s.credits.docCount(ctx, store, user)
		if err != nil || index >= count {
			return err
		}
		rec, err = s.documents.at(ctx, store, user, index)
		return err
	})
	return rec, err
}

func (s *Service) GetUserDocCount(ctx context.Context, user common.Address) (uint32, error) {
	var n uint32
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		var err error
		n, err = s.credits.docCount(ctx, store, user)
		return err
	})
	return n, err
}

func (s *Service) GetPrepaidCredits(ctx context.Context, user common.Address) (uint32, error) {
	var n uint32
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		var err error
		n, err = s.credits.prepaid(ctx, store, user)
		return err
	})
	return n, err
}

// IsNullifierConsumed reports whether nullifier has been used and not lapsed.
func (s *Service) IsNullifierConsumed(ctx context.Context, nullifier common.Hash) (bool, error) {
	var used bool
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		var err error
		used, err = s.nullifiers.isConsumed(ctx, store, nullifier)
		return err
	})
	return used, err
}

// TotalVerifications returns the number of successful registrations.
func (s *Service) TotalVerifications(ctx context.Context) (uint64, error) {
	var n uint64
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		var err error
		n, err = totalVerifications(ctx, store)
		return err
	})
	return n, err
}

// RequiresPayment tells a client whether the user's next registration will be
// charged, and how.
func (s *Service) RequiresPayment(ctx context.Context, user common.Address) (*models.PaymentPreflight, error) {
	out := &models.PaymentPreflight{Policy: s.gate.Mode(), Amount: new(uint256.Int)}
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		var err error
		if out.DocCount, err = s.credits.docCount(ctx, store, user); err != nil {
			return err
		}
		out.PrepaidCredits, err = s.credits.prepaid(ctx, store, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	if out.DocCount >= 1 {
		out.PaymentRequired = true
		out.Amount = new(uint256.Int).Set(s.amount)
	}
	return out, nil
}

// GetUser collects the lookup view for one user.
func (s *Service) GetUser(ctx context.Context, user common.Address) (*models.UserSummary, error) {
	out := &models.UserSummary{User: user}
	err := s.view(ctx, func(ctx context.Context, store ledger.Store) error {
		var err error
		if out.Latest, err = s.documents.latest(ctx, store, user); err != nil {
			return err
		}
		if out.DocCount, err = s.credits.docCount(ctx, store, user); err != nil {
			return err
		}
		out.PrepaidCredits, err = s.credits.prepaid(ctx, store, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
