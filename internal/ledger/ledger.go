// Package ledger is the typed money API over the store: balances, deposits,
// purchase debits and their compensation.
package ledger

import (
	"context"
	"errors"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"

	"github.com/shopspring/decimal"
)

var ErrDuplicatePurchase = errors.New("duplicate_purchase")

type Ledger struct {
	Store *store.Store
}

func New(s *store.Store) *Ledger {
	return &Ledger{Store: s}
}

// GetBalance may serve a value up to the cache TTL old.
func (l *Ledger) GetBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return l.Store.Balance(ctx, userID)
}

func (l *Ledger) FreshBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	return l.Store.FreshBalance(ctx, userID)
}

func (l *Ledger) Credit(ctx context.Context, userID int64, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, apperr.Invalid("amount", "must be positive")
	}
	return l.Store.Credit(ctx, userID, amount, "credit", "manual", reason)
}

func (l *Ledger) Debit(ctx context.Context, userID int64, amount decimal.Decimal, reason string) (decimal.Decimal, error) {
	if !amount.IsPositive() {
		return decimal.Zero, apperr.Invalid("amount", "must be positive")
	}
	return l.Store.Debit(ctx, userID, amount, "debit", "manual", reason)
}

func (l *Ledger) SetStat(ctx context.Context, userID int64, stat store.Stat, value decimal.Decimal) error {
	return l.Store.Update(ctx, func(tx *store.Tx) error {
		return tx.SetStat(userID, stat, value)
	})
}

func (l *Ledger) Account(ctx context.Context, userID int64) (store.Account, error) {
	return l.Store.EnsureAccount(ctx, userID)
}

func (l *Ledger) Flush(ctx context.Context) error {
	return l.Store.Flush(ctx)
}
