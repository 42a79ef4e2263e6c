// Package gateway creates top-up invoices with the external payment
// providers and credits paid invoices to the ledger.
package gateway

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPaid    Status = "paid"
	StatusExpired Status = "expired"
)

type InvoiceRequest struct {
	UserID int64
	// Amount is in USD for rocket and in Currency units for cryptopay.
	Amount   decimal.Decimal
	Currency string
}

type Invoice struct {
	ID        string          `json:"id"`
	Family    string          `json:"family"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	PayAmount decimal.Decimal `json:"pay_amount"`
	PayURL    string          `json:"pay_url"`
	CreatedAt time.Time       `json:"created_at"`
}

// Key is the idempotency key the ledger records for this invoice.
func (i Invoice) Key() string {
	return i.Family + ":" + i.ID
}

type Gateway interface {
	Family() string
	CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error)
	CheckStatus(ctx context.Context, id string) (Status, error)
	// ToTON converts a paid invoice into the amount credited to the user.
	ToTON(ctx context.Context, inv Invoice) (decimal.Decimal, error)
}

// RateSource prices one TON in fiat.
type RateSource interface {
	FiatRate(ctx context.Context, currency string) decimal.Decimal
}
