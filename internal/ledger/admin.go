package ledger

import (
	"context"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"

	"github.com/shopspring/decimal"
)

var MaxFeePercent = decimal.NewFromInt(50)

// Adjust applies an administrative delta. A negative delta larger than the
// balance fails like any other debit.
func (l *Ledger) Adjust(ctx context.Context, userID int64, delta decimal.Decimal, reason string) (decimal.Decimal, error) {
	if delta.IsZero() {
		return decimal.Zero, apperr.Invalid("delta", "must not be zero")
	}
	if delta.IsPositive() {
		return l.Store.Credit(ctx, userID, delta, "admin_adjust", "admin", reason)
	}
	return l.Store.Debit(ctx, userID, delta.Neg(), "admin_adjust", "admin", reason)
}

func (l *Ledger) FeePercent(ctx context.Context) (decimal.Decimal, error) {
	var fee decimal.Decimal
	err := l.Store.View(ctx, func(tx *store.Tx) error {
		fee = tx.Settings().FeePercent
		return nil
	})
	return fee, err
}

func (l *Ledger) SetFeePercent(ctx context.Context, fee decimal.Decimal) error {
	if fee.IsNegative() || fee.GreaterThan(MaxFeePercent) {
		return apperr.Invalid("fee_percent", "must be between 0 and 50")
	}
	return l.Store.Update(ctx, func(tx *store.Tx) error {
		tx.SetFeePercent(fee)
		return nil
	})
}

func (l *Ledger) InternalBalance(ctx context.Context) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := l.Store.View(ctx, func(tx *store.Tx) error {
		bal = tx.Settings().InternalBalance
		return nil
	})
	return bal, err
}
