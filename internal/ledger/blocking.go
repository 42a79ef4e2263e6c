package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"
)

// Block marks the account blocked. Blocking an already blocked account keeps
// the original timestamp and replaces the reason.
func (l *Ledger) Block(ctx context.Context, userID int64, reason string) (store.Account, error) {
	if userID <= 0 {
		return store.Account{}, apperr.Invalid("user_id", "must be positive")
	}
	var out store.Account
	err := l.Store.Update(ctx, func(tx *store.Tx) error {
		a := tx.Account(userID)
		if !a.IsBlocked {
			at := tx.Now()
			a.IsBlocked = true
			a.BlockedAt = &at
		}
		a.BlockedReason = strings.TrimSpace(reason)
		out = *a
		return nil
	})
	return out, err
}

// Unblock fails with not found for users the ledger has never seen.
func (l *Ledger) Unblock(ctx context.Context, userID int64) (store.Account, error) {
	var out store.Account
	err := l.Store.Update(ctx, func(tx *store.Tx) error {
		if _, ok := tx.LookupAccount(userID); !ok {
			return fmt.Errorf("account %d: %w", userID, apperr.ErrNotFound)
		}
		a := tx.Account(userID)
		a.IsBlocked = false
		a.BlockedAt = nil
		a.BlockedReason = ""
		out = *a
		return nil
	})
	return out, err
}

func (l *Ledger) IsBlocked(ctx context.Context, userID int64) (bool, error) {
	blocked := false
	err := l.Store.View(ctx, func(tx *store.Tx) error {
		if a, ok := tx.LookupAccount(userID); ok {
			blocked = a.IsBlocked
		}
		return nil
	})
	return blocked, err
}

// CheckActive returns ErrUserBlocked for blocked accounts. Unknown users are
// active.
func (l *Ledger) CheckActive(ctx context.Context, userID int64) error {
	blocked, err := l.IsBlocked(ctx, userID)
	if err != nil {
		return err
	}
	if blocked {
		return fmt.Errorf("user %d: %w", userID, apperr.ErrUserBlocked)
	}
	return nil
}

// BlockedUsers lists blocked accounts, most recently blocked first.
func (l *Ledger) BlockedUsers(ctx context.Context) ([]store.Account, error) {
	var out []store.Account
	err := l.Store.View(ctx, func(tx *store.Tx) error {
		for _, a := range tx.Accounts() {
			if a.IsBlocked {
				out = append(out, a)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].BlockedAt != nil && (out[j].BlockedAt == nil || out[i].BlockedAt.After(*out[j].BlockedAt))
	})
	return out, err
}
