package ledger

import (
	"context"
	"fmt"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type PurchaseDebit struct {
	PurchaseID string
	UserID     int64
	Recipient  string
	Quantity   int64
	Cost       decimal.Decimal
	Fee        decimal.Decimal
}

// CommitPurchase debits the cost, logs the purchase, books the fee to the
// internal balance and bumps the bought counter in one step.
func (l *Ledger) CommitPurchase(ctx context.Context, p PurchaseDebit) (decimal.Decimal, error) {
	if p.PurchaseID == "" {
		return decimal.Zero, apperr.Invalid("purchase_id", "is required")
	}
	if p.Quantity <= 0 {
		return decimal.Zero, apperr.Invalid("quantity", "must be positive")
	}
	if !p.Cost.IsPositive() {
		return decimal.Zero, apperr.Invalid("cost", "must be positive")
	}
	var bal decimal.Decimal
	err := l.Store.Update(ctx, func(tx *store.Tx) error {
		if _, exists := tx.Purchase(p.PurchaseID); exists {
			return fmt.Errorf("%w: %s", ErrDuplicatePurchase, p.PurchaseID)
		}
		var err error
		bal, err = tx.Debit(p.UserID, p.Cost, "purchase", "purchase", p.PurchaseID)
		if err != nil {
			return err
		}
		tx.AppendPurchase(store.Purchase{
			ID:        p.PurchaseID,
			UserID:    p.UserID,
			Recipient: p.Recipient,
			Quantity:  p.Quantity,
			Cost:      p.Cost,
			Fee:       p.Fee,
			Status:    store.PurchaseCommitted,
		})
		tx.AddInternal(p.Fee)
		tx.AddBought(p.UserID, p.Quantity)
		return nil
	})
	return bal, err
}

func (l *Ledger) MarkPurchase(ctx context.Context, purchaseID, status, txHash string) error {
	return l.Store.Update(ctx, func(tx *store.Tx) error {
		row, ok := tx.Purchase(purchaseID)
		if !ok {
			return fmt.Errorf("purchase %s: %w", purchaseID, apperr.ErrNotFound)
		}
		if row.Status == store.PurchaseRolledBack {
			return apperr.Invalid("status", "purchase already rolled back")
		}
		row.Status = status
		if txHash != "" {
			row.TxHash = txHash
		}
		row.UpdatedAt = tx.Now()
		return nil
	})
}

// RollbackPurchase undoes CommitPurchase exactly once. Calling it again for
// the same purchase is a no-op.
func (l *Ledger) RollbackPurchase(ctx context.Context, purchaseID string) error {
	return l.Store.Update(ctx, func(tx *store.Tx) error {
		row, ok := tx.Purchase(purchaseID)
		if !ok {
			return fmt.Errorf("purchase %s: %w", purchaseID, apperr.ErrNotFound)
		}
		if row.Status == store.PurchaseRolledBack {
			return nil
		}
		if _, err := tx.Credit(row.UserID, row.Cost, "purchase_rollback", "purchase", row.ID); err != nil {
			return err
		}
		tx.AddBought(row.UserID, -row.Quantity)
		tx.AddInternal(row.Fee.Neg())
		row.Status = store.PurchaseRolledBack
		row.UpdatedAt = tx.Now()
		log.Warn().Str("purchase_id", row.ID).Int64("user_id", row.UserID).Str("cost", row.Cost.String()).Msg("purchase rolled back")
		return nil
	})
}
