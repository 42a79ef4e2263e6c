// Package oracle caches the star unit price and the TON fiat rates, falling
// back to the last good value and then to configured constants.
package oracle

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"stars-engine/internal/httpclient"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const coinID = "the-open-network"

type PriceSource interface {
	UnitPrice(ctx context.Context) (decimal.Decimal, error)
}

type Options struct {
	RateURL  string
	PriceTTL time.Duration
	RateTTL  time.Duration

	FallbackUnitPrice decimal.Decimal
	FallbackRates     map[string]decimal.Decimal
}

type cached struct {
	value decimal.Decimal
	at    time.Time
}

type Oracle struct {
	prices PriceSource
	rates  *httpclient.Client
	opts   Options
	now    func() time.Time
	group  singleflight.Group

	mu     sync.Mutex
	price  cached
	fiat   map[string]decimal.Decimal
	fiatAt time.Time
}

func New(prices PriceSource, rates *httpclient.Client, opts Options) *Oracle {
	if opts.PriceTTL <= 0 {
		opts.PriceTTL = time.Minute
	}
	if opts.RateTTL <= 0 {
		opts.RateTTL = 5 * time.Minute
	}
	fallback := map[string]decimal.Decimal{}
	for k, v := range opts.FallbackRates {
		fallback[strings.ToLower(k)] = v
	}
	opts.FallbackRates = fallback
	return &Oracle{prices: prices, rates: rates, opts: opts, now: time.Now, fiat: map[string]decimal.Decimal{}}
}

// UnitPrice is the per-star price without markup.
func (o *Oracle) UnitPrice(ctx context.Context) decimal.Decimal {
	o.mu.Lock()
	if !o.price.at.IsZero() && o.now().Sub(o.price.at) < o.opts.PriceTTL {
		v := o.price.value
		o.mu.Unlock()
		return v
	}
	o.mu.Unlock()

	v, err, _ := o.group.Do("price", func() (any, error) {
		return o.prices.UnitPrice(ctx)
	})
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		o.price = cached{value: v.(decimal.Decimal), at: o.now()}
		return o.price.value
	}
	log.Warn().Err(err).Msg("unit price refresh failed")
	if !o.price.at.IsZero() {
		return o.price.value
	}
	return o.opts.FallbackUnitPrice
}

// PriceWithFee is the per-star price the buyer pays, rounded to 6 dp.
func (o *Oracle) PriceWithFee(ctx context.Context, feePercent decimal.Decimal) decimal.Decimal {
	return WithFee(o.UnitPrice(ctx), feePercent)
}

func WithFee(unit, feePercent decimal.Decimal) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(1).Add(feePercent.Shift(-2))).Round(6)
}

// FiatRate is the price of one TON in the given fiat currency (usd, rub).
func (o *Oracle) FiatRate(ctx context.Context, currency string) decimal.Decimal {
	currency = strings.ToLower(currency)
	o.mu.Lock()
	fresh := !o.fiatAt.IsZero() && o.now().Sub(o.fiatAt) < o.opts.RateTTL
	v, ok := o.fiat[currency]
	o.mu.Unlock()
	if fresh && ok {
		return v
	}

	rates, err, _ := o.group.Do("fiat", func() (any, error) {
		return o.fetchRates(ctx)
	})
	o.mu.Lock()
	defer o.mu.Unlock()
	if err == nil {
		for k, r := range rates.(map[string]decimal.Decimal) {
			if r.IsPositive() {
				o.fiat[k] = r
			}
		}
		o.fiatAt = o.now()
	} else {
		log.Warn().Err(err).Str("currency", currency).Msg("fiat rate refresh failed")
	}
	if v, ok := o.fiat[currency]; ok {
		return v
	}
	return o.opts.FallbackRates[currency]
}

func (o *Oracle) currencies() []string {
	out := make([]string, 0, len(o.opts.FallbackRates))
	for k := range o.opts.FallbackRates {
		out = append(out, k)
	}
	if len(out) == 0 {
		out = append(out, "usd")
	}
	return out
}

func (o *Oracle) fetchRates(ctx context.Context) (map[string]decimal.Decimal, error) {
	q := url.Values{}
	q.Set("ids", coinID)
	q.Set("vs_currencies", strings.Join(o.currencies(), ","))
	var body map[string]map[string]decimal.Decimal
	if err := o.rates.GetJSON(ctx, o.opts.RateURL+"?"+q.Encode(), nil, &body); err != nil {
		return nil, err
	}
	return body[coinID], nil
}
