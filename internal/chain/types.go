// Package chain talks to the TON network: transfer history and balances over
// the public HTTP APIs, and outbound messages through the broadcaster.
package chain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is one incoming value transfer to a watched address.
type Transfer struct {
	Hash    string          `json:"hash"`
	Time    time.Time       `json:"time"`
	Amount  decimal.Decimal `json:"amount"`
	Source  string          `json:"source"`
	Comment string          `json:"comment"`
}

// Message is one outbound internal message of a prepared transaction.
type Message struct {
	Address   string `json:"address"`
	Amount    string `json:"amount"`
	Payload   string `json:"payload,omitempty"`
	StateInit string `json:"stateInit,omitempty"`
}

type BalanceSource interface {
	Balance(ctx context.Context, address string) (decimal.Decimal, error)
}

func fromNano(nano int64) decimal.Decimal {
	return decimal.New(nano, -9)
}

// ToNano converts an amount to nanotons, truncating below one nanoton.
func ToNano(amount decimal.Decimal) int64 {
	return amount.Shift(9).Truncate(0).IntPart()
}
