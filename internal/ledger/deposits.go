package ledger

import (
	"context"
	"strings"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"

	"github.com/shopspring/decimal"
)

type DepositRecord struct {
	UserID int64
	Amount decimal.Decimal
	TxHash string
	Source string
}

type DepositResult struct {
	Credited bool
	Balance  decimal.Decimal
}

// RecordDeposit credits a deposit once per tx hash. A replayed hash returns
// Credited=false and leaves every table untouched.
func (l *Ledger) RecordDeposit(ctx context.Context, d DepositRecord) (DepositResult, error) {
	d.TxHash = strings.TrimSpace(d.TxHash)
	if d.TxHash == "" {
		return DepositResult{}, apperr.Invalid("tx_hash", "is required")
	}
	if !d.Amount.IsPositive() {
		return DepositResult{}, apperr.Invalid("amount", "must be positive")
	}
	var res DepositResult
	err := l.Store.Update(ctx, func(tx *store.Tx) error {
		if tx.TxProcessed(d.TxHash) {
			if a, ok := tx.LookupAccount(d.UserID); ok {
				res.Balance = a.Balance
			}
			return nil
		}
		bal, err := tx.Credit(d.UserID, d.Amount, "deposit", d.Source, d.TxHash)
		if err != nil {
			return err
		}
		acc := tx.Account(d.UserID)
		acc.TotalDeposited = acc.TotalDeposited.Add(d.Amount)
		tx.AddInternal(d.Amount)
		tx.AppendDeposit(store.Deposit{
			UserID: d.UserID,
			Amount: d.Amount,
			TxHash: d.TxHash,
			Source: d.Source,
		})
		res = DepositResult{Credited: true, Balance: bal}
		return nil
	})
	return res, err
}

func (l *Ledger) TxProcessed(ctx context.Context, hash string) (bool, error) {
	var ok bool
	err := l.Store.View(ctx, func(tx *store.Tx) error {
		ok = tx.TxProcessed(hash)
		return nil
	})
	return ok, err
}
