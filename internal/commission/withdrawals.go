package commission

import (
	"context"
	"fmt"
	"strings"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const minWalletAddressLen = 48

func validWallet(addr string) bool {
	if len(addr) < minWalletAddressLen {
		return false
	}
	return strings.HasPrefix(addr, "EQ") || strings.HasPrefix(addr, "UQ")
}

func newWithdrawalID(tx *store.Tx, ownerID int64) string {
	id := store.NewID()
	return fmt.Sprintf("wd_%d_%d_%s", tx.Now().Unix(), ownerID, strings.ToLower(id[len(id)-6:]))
}

type Balance struct {
	Earned    decimal.Decimal `json:"earned"`
	Withdrawn decimal.Decimal `json:"withdrawn"`
	Available decimal.Decimal `json:"available"`
	Reserved  decimal.Decimal `json:"reserved"`
	Free      decimal.Decimal `json:"free"`
}

func (e *Engine) balance(tx *store.Tx, ownerID int64) Balance {
	b := Balance{Earned: decimal.Zero, Withdrawn: decimal.Zero, Available: decimal.Zero, Reserved: decimal.Zero}
	for _, c := range tx.OwnerChats(ownerID) {
		b.Earned = b.Earned.Add(c.TotalEarnings)
		b.Withdrawn = b.Withdrawn.Add(c.Withdrawn)
		b.Available = b.Available.Add(c.Available())
	}
	for _, w := range tx.Withdrawals() {
		if w.OwnerID == ownerID && w.Open() {
			b.Reserved = b.Reserved.Add(w.Amount)
		}
	}
	b.Free = decimal.Max(decimal.Zero, b.Available.Sub(b.Reserved))
	return b
}

// Available reports the owner's partner balance and what open requests hold.
func (e *Engine) Available(ctx context.Context, ownerID int64) (Balance, error) {
	var b Balance
	err := e.store.View(ctx, func(tx *store.Tx) error {
		b = e.balance(tx, ownerID)
		return nil
	})
	return b, err
}

// drain withdraws amount from the owner's chats oldest first, emptying each
// before moving on. The caller checks the total beforehand.
func drain(tx *store.Tx, ownerID int64, amount decimal.Decimal) {
	left := amount
	for _, c := range tx.OwnerChats(ownerID) {
		if !left.IsPositive() {
			return
		}
		avail := c.Available()
		if !avail.IsPositive() {
			continue
		}
		take := decimal.Min(avail, left)
		c.Withdrawn = c.Withdrawn.Add(take)
		left = left.Sub(take)
	}
}

func (e *Engine) RequestWithdrawal(ctx context.Context, ownerID int64, amount decimal.Decimal, wallet string) (store.Withdrawal, error) {
	wallet = strings.TrimSpace(wallet)
	if amount.LessThan(e.minWallet) || !amount.IsPositive() {
		return store.Withdrawal{}, apperr.Invalid("amount", "must be at least "+e.minWallet.String())
	}
	if !validWallet(wallet) {
		return store.Withdrawal{}, apperr.Invalid("wallet_address", "must be a 48+ character EQ/UQ address")
	}
	var out store.Withdrawal
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		if len(tx.OwnerChats(ownerID)) == 0 {
			return fmt.Errorf("%w: %d", ErrPartnerNotFound, ownerID)
		}
		b := e.balance(tx, ownerID)
		if amount.GreaterThan(b.Free) {
			return &apperr.FundsError{Account: fmt.Sprintf("partner:%d", ownerID), Need: amount, Have: b.Free}
		}
		out = tx.AppendWithdrawal(store.Withdrawal{
			ID:            newWithdrawalID(tx, ownerID),
			OwnerID:       ownerID,
			Amount:        amount,
			WalletAddress: wallet,
			Destination:   store.DestinationWallet,
			Status:        store.WithdrawalPending,
		})
		return nil
	})
	if err != nil {
		return store.Withdrawal{}, err
	}
	log.Info().Int64("owner_id", ownerID).Str("withdrawal_id", out.ID).Str("amount", amount.String()).Msg("withdrawal requested")
	return out, nil
}

func (e *Engine) transition(ctx context.Context, id, from, to string, apply func(tx *store.Tx, w *store.Withdrawal) error) (store.Withdrawal, error) {
	var out store.Withdrawal
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		w, ok := tx.Withdrawal(id)
		if !ok {
			return fmt.Errorf("%w: %s", ErrWithdrawalNotFound, id)
		}
		if w.Status != from {
			return &TransitionError{ID: id, From: w.Status, To: to}
		}
		if apply != nil {
			if err := apply(tx, w); err != nil {
				return err
			}
		}
		now := tx.Now()
		w.Status = to
		w.ProcessedAt = &now
		out = *w
		return nil
	})
	if err != nil {
		return store.Withdrawal{}, err
	}
	log.Info().Int64("owner_id", out.OwnerID).Str("withdrawal_id", id).Str("status", to).Msg("withdrawal updated")
	return out, nil
}

func (e *Engine) Approve(ctx context.Context, id, comment string) (store.Withdrawal, error) {
	return e.transition(ctx, id, store.WithdrawalPending, store.WithdrawalApproved, func(_ *store.Tx, w *store.Withdrawal) error {
		if comment != "" {
			w.AdminComment = comment
		}
		return nil
	})
}

func (e *Engine) Reject(ctx context.Context, id, comment string) (store.Withdrawal, error) {
	return e.transition(ctx, id, store.WithdrawalPending, store.WithdrawalRejected, func(_ *store.Tx, w *store.Withdrawal) error {
		w.AdminComment = comment
		return nil
	})
}

// Complete settles an approved request by debiting the owner's chats.
func (e *Engine) Complete(ctx context.Context, id, txHash string) (store.Withdrawal, error) {
	return e.transition(ctx, id, store.WithdrawalApproved, store.WithdrawalCompleted, func(tx *store.Tx, w *store.Withdrawal) error {
		b := e.balance(tx, w.OwnerID)
		if w.Amount.GreaterThan(b.Available) {
			return &apperr.FundsError{Account: fmt.Sprintf("partner:%d", w.OwnerID), Need: w.Amount, Have: b.Available}
		}
		drain(tx, w.OwnerID, w.Amount)
		w.TxHash = strings.TrimSpace(txHash)
		return nil
	})
}

// WithdrawToBalance moves partner earnings onto the owner's spendable balance
// in a single store transaction.
func (e *Engine) WithdrawToBalance(ctx context.Context, ownerID int64, amount decimal.Decimal) (store.Withdrawal, decimal.Decimal, error) {
	if amount.LessThan(e.minBalance) || !amount.IsPositive() {
		return store.Withdrawal{}, decimal.Zero, apperr.Invalid("amount", "must be at least "+e.minBalance.String())
	}
	var (
		out     store.Withdrawal
		balance decimal.Decimal
	)
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		if len(tx.OwnerChats(ownerID)) == 0 {
			return fmt.Errorf("%w: %d", ErrPartnerNotFound, ownerID)
		}
		b := e.balance(tx, ownerID)
		if amount.GreaterThan(b.Free) {
			return &apperr.FundsError{Account: fmt.Sprintf("partner:%d", ownerID), Need: amount, Have: b.Free}
		}
		id := newWithdrawalID(tx, ownerID)
		bal, err := tx.Credit(ownerID, amount, "partner_withdrawal", "withdrawal", id)
		if err != nil {
			return err
		}
		drain(tx, ownerID, amount)
		now := tx.Now()
		out = tx.AppendWithdrawal(store.Withdrawal{
			ID:          id,
			OwnerID:     ownerID,
			Amount:      amount,
			Destination: store.DestinationBalance,
			Status:      store.WithdrawalCompleted,
			ProcessedAt: &now,
		})
		balance = bal
		return nil
	})
	if err != nil {
		return store.Withdrawal{}, decimal.Zero, err
	}
	log.Info().Int64("owner_id", ownerID).Str("withdrawal_id", out.ID).Str("amount", amount.String()).Msg("partner earnings moved to balance")
	return out, balance, nil
}
