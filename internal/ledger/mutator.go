// Package ledger holds the two primitives every balance-affecting operation
// is built from: the balance mutator and the transaction recorder. Both are
// meant to run inside a unit opened with pg.TXManager.
package ledger

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/GlebRadaev/walletledger/internal/domain"
	"github.com/GlebRadaev/walletledger/internal/pg"
)

//go:generate mockgen -source=mutator.go -destination=mock_mutator.go -package=ledger

type AccountStore interface {
	LockAndGetBalance(ctx context.Context, accountID int) (decimal.Decimal, error)
	SetBalance(ctx context.Context, accountID int, balance decimal.Decimal) error
}

type Mutator struct {
	accounts  AccountStore
	txManager pg.TXManager
}

func NewMutator(accounts AccountStore, txManager pg.TXManager) *Mutator {
	return &Mutator{
		accounts:  accounts,
		txManager: txManager,
	}
}

// ApplyDelta adds delta to the account balance and returns the new balance.
// A debit that would take the balance below zero fails with
// domain.ErrInsufficientFunds and writes nothing.
func (m *Mutator) ApplyDelta(ctx context.Context, accountID int, delta decimal.Decimal) (decimal.Decimal, error) {
	var newBalance decimal.Decimal
	err := m.txManager.Begin(ctx, func(ctx context.Context) error {
		current, err := m.accounts.LockAndGetBalance(ctx, accountID)
		if err != nil {
			return err
		}
		next := current.Add(delta)
		if next.IsNegative() {
			return domain.ErrInsufficientFunds
		}
		if err := m.accounts.SetBalance(ctx, accountID, next); err != nil {
			return err
		}
		newBalance = next
		return nil
	})
	if err != nil {
		return decimal.Zero, domain.WrapStorage("apply balance delta", err)
	}
	return newBalance, nil
}

// LockAccounts takes the row locks of all given accounts in ascending id
// order. Callers touching several accounts in one unit lock them here first.
func (m *Mutator) LockAccounts(ctx context.Context, accountIDs ...int) error {
	ids := append([]int(nil), accountIDs...)
	sort.Ints(ids)

	err := m.txManager.Begin(ctx, func(ctx context.Context) error {
		for i, id := range ids {
			if i > 0 && ids[i-1] == id {
				continue
			}
			if _, err := m.accounts.LockAndGetBalance(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	return domain.WrapStorage("lock accounts", err)
}
