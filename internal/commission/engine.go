// Package commission accrues partner earnings from chat activity and runs the
// partner withdrawal workflow.
package commission

import (
	"context"
	"fmt"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Options struct {
	Tiers                Tiers
	MinWalletWithdrawal  decimal.Decimal
	MinBalanceWithdrawal decimal.Decimal
}

type Engine struct {
	store *store.Store
	tiers Tiers

	minWallet  decimal.Decimal
	minBalance decimal.Decimal
}

func New(st *store.Store, opts Options) *Engine {
	if len(opts.Tiers) == 0 {
		opts.Tiers = DefaultTiers()
	}
	return &Engine{
		store:      st,
		tiers:      opts.Tiers,
		minWallet:  opts.MinWalletWithdrawal,
		minBalance: opts.MinBalanceWithdrawal,
	}
}

func (e *Engine) Tiers() Tiers {
	return append(Tiers(nil), e.tiers...)
}

// ownerLevel sums volume over every chat the owner ever registered.
func (e *Engine) ownerLevel(tx *store.Tx, ownerID int64) LevelInfo {
	volume := decimal.Zero
	manual := ""
	for _, c := range tx.OwnerChats(ownerID) {
		volume = volume.Add(c.TotalVolume)
		if manual == "" && c.ManualLevel != "" {
			manual = c.ManualLevel
		}
	}
	return e.tiers.Level(volume, manual)
}

func (e *Engine) OwnerLevel(ctx context.Context, ownerID int64) (LevelInfo, error) {
	var info LevelInfo
	err := e.store.View(ctx, func(tx *store.Tx) error {
		info = e.ownerLevel(tx, ownerID)
		return nil
	})
	return info, err
}

// RegisterChat creates the chat or reactivates it, keeping its owner.
func (e *Engine) RegisterChat(ctx context.Context, chatID, ownerID int64, title string) (store.Chat, error) {
	if chatID == 0 {
		return store.Chat{}, apperr.Invalid("chat_id", "is required")
	}
	if ownerID <= 0 {
		return store.Chat{}, apperr.Invalid("owner_id", "must be positive")
	}
	var out store.Chat
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		if c, ok := tx.Chat(chatID); ok {
			c.IsActive = true
			c.DeactivatedAt = nil
			if title != "" {
				c.Title = title
			}
			out = *c
			log.Info().Int64("chat_id", chatID).Int64("owner_id", c.OwnerID).Msg("chat reactivated")
			return nil
		}
		c := &store.Chat{
			ChatID:           chatID,
			OwnerID:          ownerID,
			Title:            title,
			IsActive:         true,
			TotalVolume:      decimal.Zero,
			TotalEarnings:    decimal.Zero,
			NGREarnings:      decimal.Zero,
			PurchaseEarnings: decimal.Zero,
			Withdrawn:        decimal.Zero,
			CreatedAt:        tx.Now(),
		}
		tx.PutChat(c)
		out = *c
		log.Info().Int64("chat_id", chatID).Int64("owner_id", ownerID).Msg("chat registered")
		return nil
	})
	return out, err
}

func (e *Engine) DeactivateChat(ctx context.Context, chatID int64) error {
	return e.store.Update(ctx, func(tx *store.Tx) error {
		c, ok := tx.Chat(chatID)
		if !ok {
			return fmt.Errorf("%w: %d", ErrChatNotFound, chatID)
		}
		if !c.IsActive {
			return nil
		}
		now := tx.Now()
		c.IsActive = false
		c.DeactivatedAt = &now
		log.Info().Int64("chat_id", chatID).Msg("chat deactivated")
		return nil
	})
}

func (e *Engine) Chat(ctx context.Context, chatID int64) (store.Chat, error) {
	var out store.Chat
	err := e.store.View(ctx, func(tx *store.Tx) error {
		c, ok := tx.Chat(chatID)
		if !ok {
			return fmt.Errorf("%w: %d", ErrChatNotFound, chatID)
		}
		out = *c
		return nil
	})
	return out, err
}

// ChatOwner reports the chat's owner; ok is false for unknown chats.
func (e *Engine) ChatOwner(ctx context.Context, chatID int64) (int64, bool, error) {
	c, err := e.Chat(ctx, chatID)
	if err != nil {
		if isChatNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return c.OwnerID, true, nil
}

func (e *Engine) OwnerChats(ctx context.Context, ownerID int64) ([]store.Chat, error) {
	var out []store.Chat
	err := e.store.View(ctx, func(tx *store.Tx) error {
		for _, c := range tx.OwnerChats(ownerID) {
			out = append(out, *c)
		}
		return nil
	})
	return out, err
}

func (e *Engine) addEarning(tx *store.Tx, c *store.Chat, kind string, userID int64, amount decimal.Decimal, details string) {
	c.TotalEarnings = c.TotalEarnings.Add(amount)
	switch kind {
	case store.EarningNGR:
		c.NGREarnings = c.NGREarnings.Add(amount)
	case store.EarningPurchase:
		c.PurchaseEarnings = c.PurchaseEarnings.Add(amount)
	}
	tx.AppendEarning(store.Earning{
		ChatID:  c.ChatID,
		OwnerID: c.OwnerID,
		UserID:  userID,
		Kind:    kind,
		Amount:  amount,
		Details: details,
	})
}
