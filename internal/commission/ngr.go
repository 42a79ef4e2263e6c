package commission

import (
	"context"
	"fmt"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// WagerEvent is one settled game round played inside a chat.
type WagerEvent struct {
	UserID int64
	ChatID int64
	Bet    decimal.Decimal
	Win    decimal.Decimal
	Game   string
}

type WagerResult struct {
	ChatID     int64           `json:"chat_id"`
	OwnerID    int64           `json:"owner_id"`
	NGR        decimal.Decimal `json:"ngr"`
	PaidNGR    decimal.Decimal `json:"paid_ngr"`
	Commission decimal.Decimal `json:"commission"`
	Tier       string          `json:"tier,omitempty"`
	Skipped    string          `json:"skipped,omitempty"`
}

// NGRCommission is the share of the not-yet-paid net gaming revenue.
func NGRCommission(ngr, paid, ngrPercent decimal.Decimal) decimal.Decimal {
	if !ngr.GreaterThan(paid) {
		return decimal.Zero
	}
	return ngr.Sub(paid).Mul(ngrPercent).Shift(-2)
}

func (ev WagerEvent) validate() error {
	switch {
	case ev.UserID <= 0:
		return apperr.Invalid("user_id", "must be positive")
	case ev.ChatID == 0:
		return apperr.Invalid("chat_id", "is required")
	case ev.Bet.IsNegative():
		return apperr.Invalid("bet", "must not be negative")
	case ev.Win.IsNegative():
		return apperr.Invalid("win", "must not be negative")
	}
	return nil
}

// RecordWager folds one round into the player's NGR tracker and pays the
// owner only for revenue above the watermark. Wagers by the owner move the
// watermark without earning.
func (e *Engine) RecordWager(ctx context.Context, ev WagerEvent) (WagerResult, error) {
	if err := ev.validate(); err != nil {
		return WagerResult{}, err
	}
	out := WagerResult{ChatID: ev.ChatID, NGR: decimal.Zero, PaidNGR: decimal.Zero, Commission: decimal.Zero}
	err := e.store.Update(ctx, func(tx *store.Tx) error {
		c, ok := tx.Chat(ev.ChatID)
		if !ok {
			out.Skipped = skipUnknownChat
			return nil
		}
		out.OwnerID = c.OwnerID
		if !c.IsActive {
			out.Skipped = skipInactiveChat
			return nil
		}
		level := e.ownerLevel(tx, c.OwnerID)
		out.Tier = level.Tier.Key

		p := tx.NGR(ev.UserID, ev.ChatID)
		p.TotalWagered = p.TotalWagered.Add(ev.Bet)
		p.TotalWon = p.TotalWon.Add(ev.Win)
		ngr := p.NGR()
		out.NGR = ngr

		if ev.UserID == c.OwnerID {
			if ngr.GreaterThan(p.PaidNGR) {
				p.PaidNGR = ngr
			}
			out.PaidNGR = p.PaidNGR
			out.Skipped = skipOwnWager
			return nil
		}

		c.TotalWagers++
		c.TotalVolume = decimal.Max(decimal.Zero, c.TotalVolume.Add(ev.Bet).Sub(ev.Win))

		out.Commission = NGRCommission(ngr, p.PaidNGR, level.Tier.NGRPercent)
		if ngr.GreaterThan(p.PaidNGR) {
			p.PaidNGR = ngr
		}
		out.PaidNGR = p.PaidNGR
		if out.Commission.IsPositive() {
			e.addEarning(tx, c, store.EarningNGR, ev.UserID, out.Commission,
				fmt.Sprintf("%s bet=%s win=%s", ev.Game, ev.Bet, ev.Win))
		}
		return nil
	})
	if err != nil {
		return WagerResult{}, err
	}
	if out.Commission.IsPositive() {
		log.Debug().
			Int64("chat_id", out.ChatID).
			Int64("owner_id", out.OwnerID).
			Int64("user_id", ev.UserID).
			Str("commission", out.Commission.String()).
			Str("paid_ngr", out.PaidNGR.String()).
			Msg("ngr commission accrued")
	}
	return out, nil
}
