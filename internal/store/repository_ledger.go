package store

import (
	"context"
	"sort"
	"time"
)

type TransactionFilter struct {
	UserID  int64
	RefType string
	RefID   string
	From    *time.Time
	To      *time.Time
}

func (f TransactionFilter) match(t Transaction) bool {
	if f.UserID != 0 && t.UserID != f.UserID {
		return false
	}
	if f.RefType != "" && t.RefType != f.RefType {
		return false
	}
	if f.RefID != "" && t.RefID != f.RefID {
		return false
	}
	if f.From != nil && t.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.CreatedAt.After(*f.To) {
		return false
	}
	return true
}

// ListTransactions returns matching audit rows, newest first.
func (s *Store) ListTransactions(ctx context.Context, f TransactionFilter, limit, offset int) ([]Transaction, error) {
	var out []Transaction
	err := s.View(ctx, func(tx *Tx) error {
		all := tx.s.t.transactions
		matched := make([]Transaction, 0, len(all))
		for i := len(all) - 1; i >= 0; i-- {
			if f.match(all[i]) {
				matched = append(matched, all[i])
			}
		}
		out = page(matched, limit, offset)
		return nil
	})
	return out, err
}

// ListDeposits returns deposits newest first; userID 0 lists everyone.
func (s *Store) ListDeposits(ctx context.Context, userID int64, limit, offset int) ([]Deposit, error) {
	var out []Deposit
	err := s.View(ctx, func(tx *Tx) error {
		all := tx.s.t.deposits
		matched := make([]Deposit, 0, len(all))
		for i := len(all) - 1; i >= 0; i-- {
			if userID == 0 || all[i].UserID == userID {
				matched = append(matched, all[i])
			}
		}
		out = page(matched, limit, offset)
		return nil
	})
	return out, err
}

// ListPurchases returns purchases newest first; userID 0 lists everyone.
func (s *Store) ListPurchases(ctx context.Context, userID int64, limit, offset int) ([]Purchase, error) {
	var out []Purchase
	err := s.View(ctx, func(tx *Tx) error {
		all := tx.s.t.purchases
		matched := make([]Purchase, 0, len(all))
		for i := len(all) - 1; i >= 0; i-- {
			if userID == 0 || all[i].UserID == userID {
				matched = append(matched, all[i])
			}
		}
		out = page(matched, limit, offset)
		return nil
	})
	return out, err
}

// ListEarnings returns partner earnings newest first, filtered by owner and chat when non-zero.
func (s *Store) ListEarnings(ctx context.Context, ownerID, chatID int64, limit, offset int) ([]Earning, error) {
	var out []Earning
	err := s.View(ctx, func(tx *Tx) error {
		all := tx.s.t.earnings
		matched := make([]Earning, 0, len(all))
		for i := len(all) - 1; i >= 0; i-- {
			e := all[i]
			if (ownerID == 0 || e.OwnerID == ownerID) && (chatID == 0 || e.ChatID == chatID) {
				matched = append(matched, e)
			}
		}
		out = page(matched, limit, offset)
		return nil
	})
	return out, err
}

// ListWithdrawals returns requests newest first, filtered by status and owner when set.
func (s *Store) ListWithdrawals(ctx context.Context, status string, ownerID int64) ([]Withdrawal, error) {
	var out []Withdrawal
	err := s.View(ctx, func(tx *Tx) error {
		for _, w := range tx.s.t.withdrawals {
			if (status == "" || w.Status == status) && (ownerID == 0 || w.OwnerID == ownerID) {
				out = append(out, w)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, err
}
