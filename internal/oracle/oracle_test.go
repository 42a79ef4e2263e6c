package oracle

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"stars-engine/internal/httpclient"

	"github.com/shopspring/decimal"
)

type fakePrices struct {
	mu    sync.Mutex
	calls int
	price decimal.Decimal
	err   error
}

func (f *fakePrices) UnitPrice(context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.price, f.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestUnitPriceCachesAndFallsBack(t *testing.T) {
	src := &fakePrices{price: dec("0.005")}
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	o := New(src, nil, Options{PriceTTL: time.Minute, FallbackUnitPrice: dec("0.0046")})
	o.now = clock.Now
	ctx := context.Background()

	if got := o.UnitPrice(ctx); !got.Equal(dec("0.005")) {
		t.Fatalf("first = %s", got)
	}
	_ = o.UnitPrice(ctx)
	if src.calls != 1 {
		t.Fatalf("calls = %d, want cached", src.calls)
	}

	clock.Advance(2 * time.Minute)
	src.err = errors.New("upstream down")
	if got := o.UnitPrice(ctx); !got.Equal(dec("0.005")) {
		t.Fatalf("after failure = %s, want last good value", got)
	}

	cold := New(&fakePrices{err: errors.New("down")}, nil, Options{FallbackUnitPrice: dec("0.0046")})
	if got := cold.UnitPrice(ctx); !got.Equal(dec("0.0046")) {
		t.Fatalf("cold fallback = %s", got)
	}
}

func TestWithFee(t *testing.T) {
	if got := WithFee(dec("0.0046"), dec("5")); !got.Equal(dec("0.00483")) {
		t.Fatalf("WithFee = %s", got)
	}
}

func TestFiatRate(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		if r.URL.Query().Get("ids") != coinID {
			t.Errorf("ids = %s", r.URL.Query().Get("ids"))
		}
		_, _ = w.Write([]byte(`{"the-open-network":{"usd":5.25,"rub":480}}`))
	}))
	defer srv.Close()

	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	o := New(nil, httpclient.New("rates-test", httpclient.Options{Timeout: time.Second, RetryBase: time.Millisecond}), Options{
		RateURL:       srv.URL,
		RateTTL:       5 * time.Minute,
		FallbackRates: map[string]decimal.Decimal{"USD": dec("6.5"), "rub": dec("650")},
	})
	o.now = clock.Now
	ctx := context.Background()

	if got := o.FiatRate(ctx, "usd"); !got.Equal(dec("5.25")) {
		t.Fatalf("usd = %s", got)
	}
	if got := o.FiatRate(ctx, "RUB"); !got.Equal(dec("480")) {
		t.Fatalf("rub = %s", got)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}

	clock.Advance(10 * time.Minute)
	fail.Store(true)
	if got := o.FiatRate(ctx, "usd"); !got.Equal(dec("5.25")) {
		t.Fatalf("stale usd = %s, want last good value", got)
	}
}

func TestFiatRateColdFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	o := New(nil, httpclient.New("rates-test", httpclient.Options{Timeout: time.Second}), Options{
		RateURL:       srv.URL,
		FallbackRates: map[string]decimal.Decimal{"usd": dec("6.5")},
	})
	if got := o.FiatRate(context.Background(), "usd"); !got.Equal(dec("6.5")) {
		t.Fatalf("fallback = %s", got)
	}
}
