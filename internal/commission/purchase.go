package commission

import (
	"context"
	"fmt"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// PurchaseEvent describes a completed purchase attributed to a chat.
type PurchaseEvent struct {
	PurchaseID string
	ChatID     int64
	BuyerID    int64
	Quantity   int64
	UnitPrice  decimal.Decimal
	FeePercent decimal.Decimal
	Cost       decimal.Decimal
}

type Accrual struct {
	ChatID     int64           `json:"chat_id"`
	OwnerID    int64           `json:"owner_id"`
	Tier       string          `json:"tier"`
	Commission decimal.Decimal `json:"commission"`
	Skipped    string          `json:"skipped,omitempty"`
}

const (
	skipUnknownChat  = "unknown_chat"
	skipInactiveChat = "inactive_chat"
	skipOwnPurchase  = "own_purchase"
	skipOwnWager     = "own_wager"
)

// PurchaseCommission is the owner's share of the markup, truncated so it
// never exceeds the markup itself.
func PurchaseCommission(unitPrice, feePercent decimal.Decimal, quantity int64, purchasePercent decimal.Decimal) decimal.Decimal {
	markup := unitPrice.Mul(feePercent).Shift(-2).Mul(decimal.NewFromInt(quantity))
	return markup.Mul(purchasePercent).Shift(-2).Truncate(6)
}

func (ev PurchaseEvent) validate() error {
	switch {
	case ev.ChatID == 0:
		return apperr.Invalid("chat_id", "is required")
	case ev.Quantity <= 0:
		return apperr.Invalid("quantity", "must be positive")
	case ev.UnitPrice.IsNegative():
		return apperr.Invalid("unit_price", "must not be negative")
	case ev.FeePercent.IsNegative():
		return apperr.Invalid("fee_percent", "must not be negative")
	case ev.Cost.IsNegative():
		return apperr.Invalid("cost", "must not be negative")
	}
	return nil
}

// AccruePurchase credits the chat owner for one completed purchase. The tier
// is the one in force before the purchase volume is added.
func (e *Engine) AccruePurchase(ctx context.Context, ev PurchaseEvent) (Accrual, error) {
	if err := ev.validate(); err != nil {
		return Accrual{}, err
	}
	out := Accrual{ChatID: ev.ChatID, Commission: decimal.Zero}
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		c, ok := tx.Chat(ev.ChatID)
		switch {
		case !ok:
			out.Skipped = skipUnknownChat
			return nil
		case !c.IsActive:
			out.OwnerID = c.OwnerID
			out.Skipped = skipInactiveChat
			return nil
		case c.OwnerID == ev.BuyerID:
			out.OwnerID = c.OwnerID
			out.Skipped = skipOwnPurchase
			return nil
		}
		out.OwnerID = c.OwnerID
		level := e.ownerLevel(tx, c.OwnerID)
		out.Tier = level.Tier.Key

		c.TotalPurchases++
		if ev.Cost.IsPositive() {
			c.TotalVolume = c.TotalVolume.Add(ev.Cost)
		}
		out.Commission = PurchaseCommission(ev.UnitPrice, ev.FeePercent, ev.Quantity, level.Tier.PurchasePercent)
		if out.Commission.IsPositive() {
			e.addEarning(tx, c, store.EarningPurchase, ev.BuyerID, out.Commission,
				fmt.Sprintf("purchase %s qty=%d", ev.PurchaseID, ev.Quantity))
		}
		return nil
	})
	if err != nil {
		return Accrual{}, err
	}
	if out.Skipped == "" {
		log.Info().
			Int64("chat_id", out.ChatID).
			Int64("owner_id", out.OwnerID).
			Str("purchase_id", ev.PurchaseID).
			Str("tier", out.Tier).
			Str("commission", out.Commission.String()).
			Msg("purchase commission accrued")
	}
	return out, nil
}
