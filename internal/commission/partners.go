package commission

import (
	"context"
	"fmt"
	"sort"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type PartnerSummary struct {
	OwnerID     int64           `json:"owner_id"`
	Chats       int             `json:"chats"`
	ActiveChats int             `json:"active_chats"`
	Volume      decimal.Decimal `json:"volume"`
	Earnings    decimal.Decimal `json:"earnings"`
	NGR         decimal.Decimal `json:"ngr_earnings"`
	Purchases   decimal.Decimal `json:"purchase_earnings"`
	Withdrawn   decimal.Decimal `json:"withdrawn"`
	Available   decimal.Decimal `json:"available"`
	Level       LevelInfo       `json:"level"`
}

// Partners summarises every chat owner, highest volume first.
func (e *Engine) Partners(ctx context.Context) ([]PartnerSummary, error) {
	var out []PartnerSummary
	err := e.store.View(ctx, func(tx *store.Tx) error {
		byOwner := map[int64]*PartnerSummary{}
		var order []int64
		for _, c := range tx.Chats() {
			p, ok := byOwner[c.OwnerID]
			if !ok {
				p = &PartnerSummary{
					OwnerID:   c.OwnerID,
					Volume:    decimal.Zero,
					Earnings:  decimal.Zero,
					NGR:       decimal.Zero,
					Purchases: decimal.Zero,
					Withdrawn: decimal.Zero,
					Available: decimal.Zero,
				}
				byOwner[c.OwnerID] = p
				order = append(order, c.OwnerID)
			}
			p.Chats++
			if c.IsActive {
				p.ActiveChats++
			}
			p.Volume = p.Volume.Add(c.TotalVolume)
			p.Earnings = p.Earnings.Add(c.TotalEarnings)
			p.NGR = p.NGR.Add(c.NGREarnings)
			p.Purchases = p.Purchases.Add(c.PurchaseEarnings)
			p.Withdrawn = p.Withdrawn.Add(c.Withdrawn)
			p.Available = p.Available.Add(c.Available())
		}
		for _, id := range order {
			p := byOwner[id]
			p.Level = e.ownerLevel(tx, id)
			out = append(out, *p)
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Volume.GreaterThan(out[j].Volume) })
	return out, err
}

// Overview is what a partner sees about their own program standing.
type Overview struct {
	OwnerID     int64              `json:"owner_id"`
	Level       LevelInfo          `json:"level"`
	Balance     Balance            `json:"balance"`
	Chats       []store.Chat       `json:"chats"`
	Withdrawals []store.Withdrawal `json:"withdrawals"`
}

func (e *Engine) Overview(ctx context.Context, ownerID int64) (Overview, error) {
	out := Overview{OwnerID: ownerID}
	err := e.store.View(ctx, func(tx *store.Tx) error {
		for _, c := range tx.OwnerChats(ownerID) {
			out.Chats = append(out.Chats, *c)
		}
		out.Level = e.ownerLevel(tx, ownerID)
		out.Balance = e.balance(tx, ownerID)
		all := tx.Withdrawals()
		for i := len(all) - 1; i >= 0; i-- {
			if all[i].OwnerID == ownerID {
				out.Withdrawals = append(out.Withdrawals, all[i])
			}
		}
		return nil
	})
	return out, err
}

// SetManualLevel pins the owner's tier on every owned chat; an empty key
// returns the owner to volume-based tiers.
func (e *Engine) SetManualLevel(ctx context.Context, ownerID int64, key string) (LevelInfo, error) {
	if key != "" {
		if _, _, ok := e.tiers.Lookup(key); !ok {
			return LevelInfo{}, apperr.Invalid("level", "unknown tier "+key)
		}
	}
	var info LevelInfo
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		chats := tx.OwnerChats(ownerID)
		if len(chats) == 0 {
			return fmt.Errorf("%w: %d", ErrPartnerNotFound, ownerID)
		}
		for _, c := range chats {
			c.ManualLevel = key
		}
		info = e.ownerLevel(tx, ownerID)
		return nil
	})
	if err != nil {
		return LevelInfo{}, err
	}
	log.Info().Int64("owner_id", ownerID).Str("level", key).Msg("partner level set")
	return info, nil
}

// AdjustPartnerBalance books an admin correction on the owner's oldest chat.
// Earnings never drop below what was already withdrawn.
func (e *Engine) AdjustPartnerBalance(ctx context.Context, ownerID int64, amount decimal.Decimal, reason string) (store.Chat, error) {
	if amount.IsZero() {
		return store.Chat{}, apperr.Invalid("amount", "must not be zero")
	}
	var out store.Chat
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		chats := tx.OwnerChats(ownerID)
		if len(chats) == 0 {
			return fmt.Errorf("%w: %d", ErrPartnerNotFound, ownerID)
		}
		c := chats[0]
		if next := c.TotalEarnings.Add(amount); next.LessThan(c.Withdrawn) {
			return &apperr.FundsError{Account: fmt.Sprintf("chat:%d", c.ChatID), Need: amount.Neg(), Have: c.Available()}
		}
		c.TotalEarnings = c.TotalEarnings.Add(amount)
		c.Adjustments = append(c.Adjustments, store.Adjustment{Amount: amount, Reason: reason, At: tx.Now()})
		tx.AppendEarning(store.Earning{
			ChatID:  c.ChatID,
			OwnerID: c.OwnerID,
			Kind:    store.EarningAdjustment,
			Amount:  amount,
			Details: reason,
		})
		out = *c
		return nil
	})
	if err != nil {
		return store.Chat{}, err
	}
	log.Info().Int64("owner_id", ownerID).Int64("chat_id", out.ChatID).Str("amount", amount.String()).Msg("partner balance adjusted")
	return out, nil
}
