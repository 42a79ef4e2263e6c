package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/httpclient"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const FamilyCryptoPay = "cryptopay"

var cryptoPayMinimums = map[string]decimal.Decimal{
	"USDT": decimal.NewFromInt(1),
	"USDC": decimal.NewFromInt(1),
	"TON":  decimal.RequireFromString("0.5"),
	"BTC":  decimal.RequireFromString("0.00001"),
	"ETH":  decimal.RequireFromString("0.0001"),
	"BNB":  decimal.RequireFromString("0.001"),
}

// CryptoPay issues invoices in a crypto asset and converts paid amounts to
// TON through the provider's exchange rates.
type CryptoPay struct {
	client  *httpclient.Client
	baseURL string
	token   string
	rates   RateSource
	now     func() time.Time
}

func NewCryptoPay(client *httpclient.Client, baseURL, token string, rates RateSource) *CryptoPay {
	return &CryptoPay{client: client, baseURL: strings.TrimRight(baseURL, "/"), token: token, rates: rates, now: time.Now}
}

func (c *CryptoPay) Family() string { return FamilyCryptoPay }

func (c *CryptoPay) headers() map[string]string {
	return map[string]string{"Crypto-Pay-API-Token": c.token}
}

type cpEnvelope[T any] struct {
	OK     bool `json:"ok"`
	Result T    `json:"result"`
	Error  *struct {
		Code int    `json:"code"`
		Name string `json:"name"`
	} `json:"error"`
}

func (e cpEnvelope[T]) err() error {
	if e.OK {
		return nil
	}
	if e.Error != nil {
		return errors.New(e.Error.Name)
	}
	return errors.New("request failed")
}

type cpInvoice struct {
	InvoiceID     int64           `json:"invoice_id"`
	Status        string          `json:"status"`
	Asset         string          `json:"asset"`
	Amount        decimal.Decimal `json:"amount"`
	BotInvoiceURL string          `json:"bot_invoice_url"`
}

func (c *CryptoPay) CreateInvoice(ctx context.Context, req InvoiceRequest) (Invoice, error) {
	asset := strings.ToUpper(req.Currency)
	minimum, ok := cryptoPayMinimums[asset]
	if !ok {
		return Invoice{}, apperr.Invalid("currency", "unsupported asset "+asset)
	}
	if req.Amount.LessThan(minimum) {
		return Invoice{}, apperr.Invalid("amount", "must be at least "+minimum.String()+" "+asset)
	}
	body := map[string]any{
		"asset":       asset,
		"amount":      req.Amount.String(),
		"description": "Balance top-up",
		"payload":     fmt.Sprintf("%d:%s", req.UserID, uuid.NewString()),
		"expires_in":  int((10 * time.Minute).Seconds()),
	}
	var env cpEnvelope[cpInvoice]
	if err := c.client.PostJSON(ctx, c.baseURL+"/createInvoice", c.headers(), body, &env); err != nil {
		return Invoice{}, apperr.External(FamilyCryptoPay, "create_invoice", err)
	}
	if err := env.err(); err != nil {
		return Invoice{}, apperr.External(FamilyCryptoPay, "create_invoice", err)
	}
	return Invoice{
		ID:        strconv.FormatInt(env.Result.InvoiceID, 10),
		Family:    FamilyCryptoPay,
		UserID:    req.UserID,
		Amount:    req.Amount,
		Currency:  asset,
		PayAmount: req.Amount,
		PayURL:    env.Result.BotInvoiceURL,
		CreatedAt: c.now(),
	}, nil
}

func (c *CryptoPay) CheckStatus(ctx context.Context, id string) (Status, error) {
	var env cpEnvelope[struct {
		Items []cpInvoice `json:"items"`
	}]
	endpoint := c.baseURL + "/getInvoices?" + url.Values{"invoice_ids": {id}}.Encode()
	if err := c.client.GetJSON(ctx, endpoint, c.headers(), &env); err != nil {
		return StatusUnpaid, apperr.External(FamilyCryptoPay, "check_invoice", err)
	}
	if err := env.err(); err != nil {
		return StatusUnpaid, apperr.External(FamilyCryptoPay, "check_invoice", err)
	}
	if len(env.Result.Items) == 0 {
		return StatusUnpaid, fmt.Errorf("cryptopay invoice %s: %w", id, apperr.ErrNotFound)
	}
	switch env.Result.Items[0].Status {
	case "paid":
		return StatusPaid, nil
	case "expired":
		return StatusExpired, nil
	default:
		return StatusUnpaid, nil
	}
}

type cpRate struct {
	IsValid bool            `json:"is_valid"`
	Source  string          `json:"source"`
	Target  string          `json:"target"`
	Rate    decimal.Decimal `json:"rate"`
}

func (c *CryptoPay) usdRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	var env cpEnvelope[[]cpRate]
	if err := c.client.GetJSON(ctx, c.baseURL+"/getExchangeRates", c.headers(), &env); err != nil {
		return nil, err
	}
	if err := env.err(); err != nil {
		return nil, err
	}
	out := map[string]decimal.Decimal{}
	for _, r := range env.Result {
		if r.IsValid && r.Target == "USD" && r.Rate.IsPositive() {
			out[r.Source] = r.Rate
		}
	}
	return out, nil
}

// ToTON converts via the provider's USD rates; stablecoins fall back to the
// oracle rate when the provider cannot price them.
func (c *CryptoPay) ToTON(ctx context.Context, inv Invoice) (decimal.Decimal, error) {
	if inv.Currency == "TON" {
		return inv.Amount, nil
	}
	rates, err := c.usdRates(ctx)
	if err == nil {
		src, okSrc := rates[inv.Currency]
		ton, okTon := rates["TON"]
		if okSrc && okTon {
			return inv.Amount.Mul(src).Div(ton).Round(6), nil
		}
		err = fmt.Errorf("no rate for %s", inv.Currency)
	}
	log.Warn().Err(err).Str("asset", inv.Currency).Msg("cryptopay conversion failed")
	if inv.Currency == "USDT" || inv.Currency == "USDC" {
		if rate := c.rates.FiatRate(ctx, "usd"); rate.IsPositive() {
			return inv.Amount.Div(rate).Round(6), nil
		}
	}
	return decimal.Zero, apperr.External(FamilyCryptoPay, "convert", err)
}
