package store

import (
	"context"

	"github.com/shopspring/decimal"
)

func (s *Store) Debit(ctx context.Context, userID int64, amount decimal.Decimal, entryType, refType, refID string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		bal, err = tx.Debit(userID, amount, entryType, refType, refID)
		return err
	})
	return bal, err
}

func (s *Store) Credit(ctx context.Context, userID int64, amount decimal.Decimal, entryType, refType, refID string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := s.Update(ctx, func(tx *Tx) error {
		var err error
		bal, err = tx.Credit(userID, amount, entryType, refType, refID)
		return err
	})
	return bal, err
}

func (s *Store) EnsureAccount(ctx context.Context, userID int64) (Account, error) {
	var out Account
	err := s.Update(ctx, func(tx *Tx) error {
		out = *tx.Account(userID)
		return nil
	})
	return out, err
}

func (s *Store) GetAccount(ctx context.Context, userID int64) (Account, bool, error) {
	var (
		out Account
		ok  bool
	)
	err := s.View(ctx, func(tx *Tx) error {
		var a *Account
		a, ok = tx.LookupAccount(userID)
		if ok {
			out = *a
		}
		return nil
	})
	return out, ok, err
}

func (s *Store) ListAccounts(ctx context.Context, limit, offset int) ([]Account, error) {
	var out []Account
	err := s.View(ctx, func(tx *Tx) error {
		out = page(tx.Accounts(), limit, offset)
		return nil
	})
	return out, err
}

func page[T any](items []T, limit, offset int) []T {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
