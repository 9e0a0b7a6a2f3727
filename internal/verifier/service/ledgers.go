package service

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"idverifier/internal/ledger"
	"idverifier/internal/verifier/models"
	dErrors "idverifier/pkg/domain-errors"
	"idverifier/pkg/platform/sentinel"
)

// authorityStore holds the single admin identity.
type authorityStore struct{}

func (authorityStore) initialize(ctx context.Context, store ledger.Store, admin common.Address) error {
	exists, err := store.Has(ctx, ledger.AdminKey())
	if err != nil {
		return err
	}
	if exists {
		return dErrors.Wrap(models.ErrAlreadyInitialized, dErrors.CodeConflict, "registry authority is already set")
	}
	return ledger.Save(ctx, store, ledger.AdminKey(), admin)
}

func (authorityStore) admin(ctx context.Context, store ledger.Store) (common.Address, error) {
	admin, ok, err := ledger.Load[common.Address](ctx, store, ledger.AdminKey())
	if err != nil {
		return common.Address{}, err
	}
	if !ok {
		return common.Address{}, dErrors.Wrap(models.ErrUninitialized, dErrors.CodePreconditionFailed, "registry has no authority")
	}
	return admin, nil
}

// nullifierLedger is the set of consumed one-time tokens.
type nullifierLedger struct {
	retention uint64
}

func (nullifierLedger) isConsumed(ctx context.Context, store ledger.Store, nullifier common.Hash) (bool, error) {
	return store.Has(ctx, ledger.NullifierUsedKey(nullifier))
}

func (l nullifierLedger) consume(ctx context.Context, store ledger.Store, nullifier common.Hash) error {
	used, err := l.isConsumed(ctx, store, nullifier)
	if err != nil {
		return err
	}
	if used {
		return dErrors.Wrap(models.ErrNullifierAlreadyUsed, dErrors.CodeConflict, "nullifier "+nullifier.Hex())
	}
	return ledger.SaveRetained(ctx, store, ledger.NullifierUsedKey(nullifier), true, l.retention)
}

// creditLedger keeps the per-user document counter and prepaid credits.
type creditLedger struct {
	retention uint64
}

func (creditLedger) docCount(ctx context.Context, store ledger.Store, user common.Address) (uint32, error) {
	n, _, err := ledger.Load[uint32](ctx, store, ledger.UserDocCountKey(user))
	return n, err
}

func (l creditLedger) setDocCount(ctx context.Context, store ledger.Store, user common.Address, n uint32) error {
	return ledger.SaveRetained(ctx, store, ledger.UserDocCountKey(user), n, l.retention)
}

func (creditLedger) prepaid(ctx context.Context, store ledger.Store, user common.Address) (uint32, error) {
	n, _, err := ledger.Load[uint32](ctx, store, ledger.UserPrepaidCreditsKey(user))
	return n, err
}

func (l creditLedger) addCredit(ctx context.Context, store ledger.Store, user common.Address) (uint32, error) {
	n, err := l.prepaid(ctx, store, user)
	if err != nil {
		return 0, err
	}
	n++
	return n, ledger.SaveRetained(ctx, store, ledger.UserPrepaidCreditsKey(user), n, l.retention)
}

// consumeCredit never lets the balance go below zero.
func (l creditLedger) consumeCredit(ctx context.Context, store ledger.Store, user common.Address) (uint32, error) {
	n, err := l.prepaid(ctx, store, user)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, dErrors.Wrap(models.ErrNoPrepaidCredits, dErrors.CodePaymentRequired, "no prepaid credits for "+user.Hex())
	}
	n--
	return n, ledger.SaveRetained(ctx, store, ledger.UserPrepaidCreditsKey(user), n, l.retention)
}

// documentStore keeps the indexed history and the latest-record pointer.
type documentStore struct {
	retention uint64
}

// append writes rec at index and renews every earlier record, so the whole
// history shares the counter's retention window.
func (l documentStore) append(ctx context.Context, store ledger.Store, user common.Address, index uint32, rec models.IdentityRecord) error {
	for k := uint32(0); k < index; k++ {
		err := store.ExtendTTL(ctx, ledger.UserDocumentKey(user, k), l.retention)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
	}
	if err := ledger.SaveRetained(ctx, store, ledger.UserDocumentKey(user, index), rec, l.retention); err != nil {
		return err
	}
	return ledger.SaveRetained(ctx, store, ledger.UserIdentityKey(user), rec, l.retention)
}

func (documentStore) latest(ctx context.Context, store ledger.Store, user common.Address) (*models.IdentityRecord, error) {
	return loadRecord(ctx, store, ledger.UserIdentityKey(user))
}

func (documentStore) at(ctx context.Context, store ledger.Store, user common.Address, index uint32) (*models.IdentityRecord, error) {
	return loadRecord(ctx, store, ledger.UserDocumentKey(user, index))
}

func loadRecord(ctx context.Context, store ledger.Store, key ledger.Key) (*models.IdentityRecord, error) {
	rec, ok, err := ledger.Load[models.IdentityRecord](ctx, store, key)
	if err != nil || !ok {
		return nil, err
	}
	return &rec, nil
}

func totalVerifications(ctx context.Context, store ledger.Store) (uint64, error) {
	n, _, err := ledger.Load[uint64](ctx, store, ledger.TotalVerificationsKey())
	return n, err
}

func incrementTotalVerifications(ctx context.Context, store ledger.Store) error {
	n, err := totalVerifications(ctx, store)
	if err != nil {
		return err
	}
	return ledger.Save(ctx, store, ledger.TotalVerificationsKey(), n+1)
}
