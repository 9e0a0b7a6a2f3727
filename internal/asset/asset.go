// Package asset implements the payment asset the registry charges in. Balances
// and allowances live in the same ledger as the registry state, so a transfer
// made inside a registration commits or rolls back with it.
package asset

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"idverifier/internal/ledger"
)

// Decimals is the native precision of the asset (1 unit = 10^7 minor units).
const Decimals = 7

var (
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInvalidAmount         = errors.New("invalid amount")
)

// Units converts whole asset units to minor units.
func Units(whole uint64) *uint256.Int {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(Decimals))
	return new(uint256.Int).Mul(uint256.NewInt(whole), scale)
}

// Token is a fungible asset identified by its contract address.
type Token struct {
	address common.Address
}

func NewToken(address common.Address) *Token {
	return &Token{address: address}
}

func (t *Token) Address() common.Address { return t.address }

// Balance returns holder's balance; unknown holders have zero.
func (t *Token) Balance(ctx context.Context, store ledger.Store, holder common.Address) (*uint256.Int, error) {
	return t.load(ctx, store, ledger.AssetBalanceKey(t.address, holder))
}

// Allowance returns how much spender may pull from owner.
func (t *Token) Allowance(ctx context.Context, store ledger.Store, owner, spender common.Address) (*uint256.Int, error) {
	return t.load(ctx, store, ledger.AssetAllowanceKey(t.address, owner, spender))
}

// Mint credits amount to holder.
func (t *Token) Mint(ctx context.Context, store ledger.Store, holder common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}
	key := ledger.AssetBalanceKey(t.address, holder)
	balance, err := t.load(ctx, store, key)
	if err != nil {
		return err
	}
	next, overflow := new(uint256.Int).AddOverflow(balance, amount)
	if overflow {
		return fmt.Errorf("mint to %s: %w", holder.Hex(), ErrInvalidAmount)
	}
	return ledger.Save(ctx, store, key, next)
}

// Approve lets spender pull up to amount from owner. It replaces any previous
// allowance. The caller is responsible for having authorized owner.
func (t *Token) Approve(ctx context.Context, store ledger.Store, owner, spender common.Address, amount *uint256.Int) error {
	if amount == nil {
		return ErrInvalidAmount
	}
	return ledger.Save(ctx, store, ledger.AssetAllowanceKey(t.address, owner, spender), amount)
}

// Transfer moves amount from from to to on behalf of spender. When spender is
// not from the move draws down from's allowance to spender, so a pull by a
// third party only succeeds if from approved it beforehand.
func (t *Token) Transfer(ctx context.Context, store ledger.Store, spender, from, to common.Address, amount *uint256.Int) error {
	if amount == nil || amount.IsZero() {
		return ErrInvalidAmount
	}

	if spender != from {
		allowanceKey := ledger.AssetAllowanceKey(t.address, from, spender)
		allowance, err := t.load(ctx, store, allowanceKey)
		if err != nil {
			return err
		}
		if allowance.Lt(amount) {
			return fmt.Errorf("pull %s from %s by %s: %w", amount.Dec(), from.Hex(), spender.Hex(), ErrInsufficientAllowance)
		}
		if err := ledger.Save(ctx, store, allowanceKey, new(uint256.Int).Sub(allowance, amount)); err != nil {
			return err
		}
	}

	fromKey := ledger.AssetBalanceKey(t.address, from)
	fromBalance, err := t.load(ctx, store, fromKey)
	if err != nil {
		return err
	}
	if fromBalance.Lt(amount) {
		return fmt.Errorf("transfer %s from %s: %w", amount.Dec(), from.Hex(), ErrInsufficientBalance)
	}
	if err := ledger.Save(ctx, store, fromKey, new(uint256.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}

	toKey := ledger.AssetBalanceKey(t.address, to)
	toBalance, err := t.load(ctx, store, toKey)
	if err != nil {
		return err
	}
	return ledger.Save(ctx, store, toKey, new(uint256.Int).Add(toBalance, amount))
}

func (t *Token) load(ctx context.Context, store ledger.Store, key ledger.Key) (*uint256.Int, error) {
	v, ok, err := ledger.Load[uint256.Int](ctx, store, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	return &v, nil
}
