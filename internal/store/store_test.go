package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"stars-engine/internal/apperr"

	"github.com/shopspring/decimal"
)

type memSink struct {
	mu    sync.Mutex
	docs  map[string][]byte
	saves map[string]int
	fail  error
}

func newMemSink() *memSink {
	return &memSink{docs: map[string][]byte{}, saves: map[string]int{}}
}

func (m *memSink) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.docs[name]
	if !ok {
		return nil, ErrNoDocument
	}
	return body, nil
}

func (m *memSink) Save(_ context.Context, name string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.docs[name] = append([]byte(nil), body...)
	m.saves[name]++
	return nil
}

func (m *memSink) Ping(context.Context) error { return nil }
func (m *memSink) Close() error               { return nil }

func (m *memSink) saveCount(name Table) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[string(name)]
}

func (m *memSink) setFail(err error) {
	m.mu.Lock()
	m.fail = err
	m.mu.Unlock()
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

func newTestStore(t *testing.T, sink Sink, opts Options) *Store {
	t.Helper()
	if opts.FlushDelay == 0 {
		opts.FlushDelay = time.Hour
	}
	st, err := New(context.Background(), sink, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return st
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestDebitNeverGoesNegative(t *testing.T) {
	st := newTestStore(t, newMemSink(), Options{})
	ctx := context.Background()

	if _, err := st.Credit(ctx, 1, dec("10"), "deposit", "test", "a"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	steps := []struct {
		amount string
		ok     bool
		want   string
	}{
		{"4", true, "6"},
		{"6.000000001", false, "6"},
		{"6", true, "0"},
		{"0.1", false, "0"},
	}
	for _, s := range steps {
		_, err := st.Debit(ctx, 1, dec(s.amount), "purchase", "test", s.amount)
		if s.ok && err != nil {
			t.Fatalf("debit %s: %v", s.amount, err)
		}
		if !s.ok && !errors.Is(err, apperr.ErrInsufficientFunds) {
			t.Fatalf("debit %s: err = %v, want insufficient funds", s.amount, err)
		}
		bal, _ := st.FreshBalance(ctx, 1)
		if !bal.Equal(dec(s.want)) {
			t.Fatalf("after debit %s balance = %s, want %s", s.amount, bal, s.want)
		}
	}
}

func TestDebitRejectsNegativeAmount(t *testing.T) {
	st := newTestStore(t, newMemSink(), Options{})
	_, err := st.Debit(context.Background(), 1, dec("-1"), "purchase", "", "")
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
}

func TestBalanceCacheInvalidatedOnMutation(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	st := newTestStore(t, newMemSink(), Options{BalanceCacheTTL: 5 * time.Second, Now: clock.Now})
	ctx := context.Background()

	if _, err := st.Credit(ctx, 7, dec("3"), "deposit", "", ""); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if bal, _ := st.Balance(ctx, 7); !bal.Equal(dec("3")) {
		t.Fatalf("balance = %s, want 3", bal)
	}
	if _, err := st.Debit(ctx, 7, dec("1"), "purchase", "", ""); err != nil {
		t.Fatalf("debit: %v", err)
	}
	if bal, _ := st.Balance(ctx, 7); !bal.Equal(dec("2")) {
		t.Fatalf("balance after debit = %s, want 2 (stale cache)", bal)
	}
}

func TestBalanceCacheServesWithinTTL(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	st := newTestStore(t, newMemSink(), Options{BalanceCacheTTL: 5 * time.Second, Now: clock.Now})
	ctx := context.Background()
	_, _ = st.Credit(ctx, 7, dec("3"), "deposit", "", "")
	_, _ = st.Balance(ctx, 7)

	// Bypass the typed API so no invalidation happens.
	st.mu.Lock()
	st.t.accounts[7].Balance = dec("100")
	st.mu.Unlock()

	if bal, _ := st.Balance(ctx, 7); !bal.Equal(dec("3")) {
		t.Fatalf("cached balance = %s, want 3", bal)
	}
	clock.Advance(6 * time.Second)
	if bal, _ := st.Balance(ctx, 7); !bal.Equal(dec("100")) {
		t.Fatalf("balance after ttl = %s, want 100", bal)
	}
	if n := st.SweepCache(); n != 0 {
		t.Fatalf("SweepCache() = %d, want 0 fresh entries removed", n)
	}
}

func TestFlushCoalescesWrites(t *testing.T) {
	sink := newMemSink()
	st := newTestStore(t, sink, Options{})
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if _, err := st.Credit(ctx, 1, dec("1"), "deposit", "", ""); err != nil {
			t.Fatalf("credit: %v", err)
		}
	}
	if got := sink.saveCount(TableAccounts); got != 0 {
		t.Fatalf("saves before window = %d, want 0", got)
	}
	if err := st.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if got := sink.saveCount(TableAccounts); got != 1 {
		t.Fatalf("account saves = %d, want 1", got)
	}
	if got := sink.saveCount(TableChats); got != 0 {
		t.Fatalf("untouched table saved %d times", got)
	}
	if err := st.Flush(ctx); err != nil {
		t.Fatalf("second Flush() error = %v", err)
	}
	if got := sink.saveCount(TableAccounts); got != 1 {
		t.Fatalf("clean flush rewrote accounts: %d", got)
	}
}

func TestDebouncedFlushRunsInBackground(t *testing.T) {
	sink := newMemSink()
	st := newTestStore(t, sink, Options{FlushDelay: 20 * time.Millisecond})
	_, _ = st.Credit(context.Background(), 1, dec("1"), "deposit", "", "")

	deadline := time.Now().Add(2 * time.Second)
	for sink.saveCount(TableAccounts) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("background flush did not run")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFlushFailureKeepsStateAndRetries(t *testing.T) {
	sink := newMemSink()
	sink.setFail(errors.New("disk full"))
	st := newTestStore(t, sink, Options{})
	ctx := context.Background()

	if _, err := st.Credit(ctx, 1, dec("5"), "deposit", "", ""); err != nil {
		t.Fatalf("credit must not fail on sink errors: %v", err)
	}
	if err := st.Flush(ctx); err == nil {
		t.Fatal("Flush() expected error")
	}
	if bal, _ := st.FreshBalance(ctx, 1); !bal.Equal(dec("5")) {
		t.Fatalf("in-memory balance = %s, want 5", bal)
	}

	sink.setFail(nil)
	if err := st.Flush(ctx); err != nil {
		t.Fatalf("retry Flush() error = %v", err)
	}
	if sink.saveCount(TableAccounts) != 1 {
		t.Fatal("dirty table not retried")
	}
}

func TestReloadFromSink(t *testing.T) {
	sink := newMemSink()
	ctx := context.Background()
	st := newTestStore(t, sink, Options{})

	err := st.Update(ctx, func(tx *Tx) error {
		if _, err := tx.Credit(1, dec("2.5"), "deposit", "chain", "h1"); err != nil {
			return err
		}
		tx.AppendDeposit(Deposit{UserID: 1, Amount: dec("2.5"), TxHash: "h1", Source: "chain"})
		tx.PutChat(&Chat{ChatID: -100, OwnerID: 9, IsActive: true, CreatedAt: tx.Now()})
		tx.NGR(1, -100).TotalWagered = dec("3")
		tx.AppendWithdrawal(Withdrawal{ID: "wd_1", OwnerID: 9, Amount: dec("1"), Status: WithdrawalPending})
		tx.SetFeePercent(dec("7.5"))
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := st.Close(ctx); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	again := newTestStore(t, sink, Options{})
	err = again.View(ctx, func(tx *Tx) error {
		if !tx.TxProcessed("h1") {
			t.Error("processed hash not rebuilt")
		}
		if c, ok := tx.Chat(-100); !ok || c.OwnerID != 9 {
			t.Errorf("chat not reloaded: %+v", c)
		}
		if p := tx.NGR(1, -100); !p.TotalWagered.Equal(dec("3")) {
			t.Errorf("ngr wagered = %s", p.TotalWagered)
		}
		if w, ok := tx.Withdrawal("wd_1"); !ok || w.Status != WithdrawalPending {
			t.Errorf("withdrawal not reindexed")
		}
		if !tx.Settings().FeePercent.Equal(dec("7.5")) {
			t.Errorf("fee = %s", tx.Settings().FeePercent)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if bal, _ := again.FreshBalance(ctx, 1); !bal.Equal(dec("2.5")) {
		t.Fatalf("reloaded balance = %s, want 2.5", bal)
	}
}

func TestViewIsReadOnly(t *testing.T) {
	st := newTestStore(t, newMemSink(), Options{})
	err := st.View(context.Background(), func(tx *Tx) error {
		_, err := tx.Credit(1, dec("1"), "deposit", "", "")
		return err
	})
	if !errors.Is(err, ErrReadOnly) {
		t.Fatalf("err = %v, want read only", err)
	}
	if _, ok, _ := st.GetAccount(context.Background(), 1); ok {
		t.Fatal("view created an account")
	}
}

func TestSetStatValidation(t *testing.T) {
	st := newTestStore(t, newMemSink(), Options{})
	ctx := context.Background()
	cases := []struct {
		stat  Stat
		value string
		ok    bool
	}{
		{StatTotalBought, "150", true},
		{StatTotalBought, "1.5", false},
		{StatTotalDeposited, "-1", false},
		{Stat("balance"), "1", false},
		{StatLastActive, "1700000000", true},
	}
	for _, tc := range cases {
		err := st.Update(ctx, func(tx *Tx) error { return tx.SetStat(3, tc.stat, dec(tc.value)) })
		if tc.ok && err != nil {
			t.Fatalf("SetStat(%s, %s) error = %v", tc.stat, tc.value, err)
		}
		if !tc.ok && !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("SetStat(%s, %s) err = %v, want validation", tc.stat, tc.value, err)
		}
	}
	acc, _, _ := st.GetAccount(ctx, 3)
	if acc.TotalBought != 150 {
		t.Fatalf("TotalBought = %d, want 150", acc.TotalBought)
	}
}

func TestLogsAreCapped(t *testing.T) {
	st := newTestStore(t, newMemSink(), Options{EarningsCap: 3, TransactionsCap: 2})
	ctx := context.Background()
	_ = st.Update(ctx, func(tx *Tx) error {
		for i := 0; i < 5; i++ {
			tx.AppendEarning(Earning{ChatID: 1, Amount: decimal.NewFromInt(int64(i))})
			_, _ = tx.Credit(1, dec("1"), "deposit", "", "")
		}
		return nil
	})
	earnings, _ := st.ListEarnings(ctx, 0, 0, 10, 0)
	if len(earnings) != 3 || !earnings[0].Amount.Equal(dec("4")) {
		t.Fatalf("earnings = %+v", earnings)
	}
	txs, _ := st.ListTransactions(ctx, TransactionFilter{UserID: 1}, 10, 0)
	if len(txs) != 2 || !txs[0].Balance.Equal(dec("5")) {
		t.Fatalf("transactions = %+v", txs)
	}
}

func TestUpdateHonoursCancelledContext(t *testing.T) {
	st := newTestStore(t, newMemSink(), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := st.Update(ctx, func(*Tx) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) || called {
		t.Fatalf("err = %v, called = %v", err, called)
	}
}

func TestUpdateReleasesLockAfterPanic(t *testing.T) {
	st := newTestStore(t, newMemSink(), Options{})
	ctx := context.Background()

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("panic was swallowed")
			}
		}()
		_ = st.Update(ctx, func(tx *Tx) error {
			tx.Account(4)
			panic("boom")
		})
	}()

	done := make(chan error, 1)
	go func() {
		_, err := st.Credit(ctx, 4, dec("1"), "deposit", "test", "after-panic")
		done <- err
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("credit after panic: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("credit blocked after a recovered panic inside Update")
	}
	if bal, _ := st.Balance(ctx, 4); !bal.Equal(dec("1")) {
		t.Fatalf("balance = %s, want 1", bal)
	}
}
