package chain

import (
	"context"
	"net/url"
	"strings"

	"stars-engine/internal/apperr"
	"stars-engine/internal/httpclient"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const serviceTonAPI = "tonapi"

type TonAPI struct {
	client  *httpclient.Client
	baseURL string
}

func NewTonAPI(client *httpclient.Client, baseURL string) *TonAPI {
	return &TonAPI{client: client, baseURL: strings.TrimRight(baseURL, "/")}
}

func (t *TonAPI) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	var body struct {
		Balance int64 `json:"balance"`
	}
	if err := t.client.GetJSON(ctx, t.baseURL+"/accounts/"+url.PathEscape(address), nil, &body); err != nil {
		return decimal.Zero, apperr.External(serviceTonAPI, "accounts", err)
	}
	return fromNano(body.Balance), nil
}

// FallbackBalance asks Primary first and Fallback when it fails.
type FallbackBalance struct {
	Primary  BalanceSource
	Fallback BalanceSource
}

func (f FallbackBalance) Balance(ctx context.Context, address string) (decimal.Decimal, error) {
	bal, err := f.Primary.Balance(ctx, address)
	if err == nil || f.Fallback == nil {
		return bal, err
	}
	log.Warn().Err(err).Msg("primary balance source failed, using fallback")
	return f.Fallback.Balance(ctx, address)
}
