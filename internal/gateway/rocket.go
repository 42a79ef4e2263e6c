package gateway

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/httpclient"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const FamilyRocket = "rocket"

var rocketMinUSD = decimal.NewFromInt(1)

// Rocket issues invoices priced in USD and paid in a token.
type Rocket struct {
	client  *httpclient.Client
	baseURL string
	token   string
	rates   RateSource
	now     func() time.Time
}

func NewRocket(client *httpclient.Client, baseURL, token string, rates RateSource) *Rocket {
	return &Rocket{client: client, baseURL: strings.TrimRight(baseURL, "/"), token: token, rates: rates, now: time.Now}
}

func (r *Rocket) Family() string { return FamilyRocket }

func (r *Rocket) headers() map[string]string {
	return map[string]string{"Rocket-Pay-Key": r.token}
}

type rocketEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		ID     int64  `json:"id"`
		Link   string `json:"link"`
		Status string `json:"status"`
	} `json:"data"`
}

func (r *Rocket) tokenAmount(ctx context.Context, usd decimal.Decimal, currency string) (decimal.Decimal, error) {
	switch currency {
	case "USDT", "USDC":
		return usd, nil
	case "TONCOIN", "TON":
		rate := r.rates.FiatRate(ctx, "usd")
		if !rate.IsPositive() {
			return decimal.Zero, apperr.External(FamilyRocket, "rate", errors.New("no usd rate"))
		}
		return usd.Div(rate).Round(6), nil
	default:
		return decimal.Zero, apperr.Invalid("currency", "unsupported token "+currency)
	}
}

func (r *Rocket) CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	if req.Amount.LessThan(rocketMinUSD) {
		return Invoice{}, apperr.Invalid("amount", "must be at least 1 USD")
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "TON" {
		currency = "TONCOIN"
	}
	pay, err := r.tokenAmount(ctx, req.Amount, currency)
	if err != nil {
		return Invoice{}, err
	}
	body := map[string]any{
		"amount":      pay.InexactFloat64(),
		"currency":    currency,
		"description": "Balance top-up",
		"payload":     fmt.Sprintf("%d:%s:%s:%s", req.UserID, currency, req.Amount, uuid.NewString()),
		"numPayments": 1,
		"expiredIn":   int((10 * time.Minute).Seconds()),
	}
	var env rocketEnvelope
	if err := r.client.PostJSON(ctx, r.baseURL+"/tg-invoices", r.headers(), body, &env); err != nil {
		return Invoice{}, apperr.External(FamilyRocket, "create_invoice", err)
	}
	if !env.Success || env.Data.ID == 0 {
		return Invoice{}, apperr.External(FamilyRocket, "create_invoice", errors.New(env.Message))
	}
	return Invoice{
		ID:        strconv.FormatInt(env.Data.ID, 10),
		Family:    FamilyRocket,
		UserID:    req.UserID,
		Amount:    req.Amount,
		Currency:  "USD",
		PayAmount: pay,
		PayURL:    env.Data.Link,
		CreatedAt: r.now(),
	}, nil
}

func (r *Rocket) CheckStatus(ctx context.Context, id string) (Status, error) {
	var env rocketEnvelope
	if err := r.client.GetJSON(ctx, r.baseURL+"/tg-invoices/"+id, r.headers(), &env); err != nil {
		return StatusUnpaid, apperr.External(FamilyRocket, "check_invoice", err)
	}
	return rocketStatus(env.Data.Status), nil
}

func rocketStatus(s string) Status {
	switch strings.ToLower(s) {
	case "paid", "success", "completed":
		return StatusPaid
	case "expired":
		return StatusExpired
	default:
		return StatusUnpaid
	}
}

// ToTON credits the USD value at the current oracle rate.
func (r *Rocket) ToTON(ctx context.Context, inv Invoice) (decimal.Decimal, error) {
	rate := r.rates.FiatRate(ctx, "usd")
	if !rate.IsPositive() {
		return decimal.Zero, apperr.External(FamilyRocket, "rate", errors.New("no usd rate"))
	}
	return inv.Amount.Div(rate).Round(6), nil
}
