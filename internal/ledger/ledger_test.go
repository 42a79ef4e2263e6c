package ledger

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"
	"stars-engine/internal/testutil"

	"github.com/shopspring/decimal"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	st := testutil.OpenStore(t, store.Options{FlushDelay: time.Hour, BalanceCacheTTL: 5 * time.Second})
	return New(st)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestRandomCreditDebitSequencesStayNonNegative(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))
	expected := decimal.Zero

	for i := 0; i < 500; i++ {
		amount := decimal.New(int64(rng.Intn(5000)+1), -3)
		if rng.Intn(2) == 0 {
			if _, err := l.Credit(ctx, 1, amount, "test"); err != nil {
				t.Fatalf("credit: %v", err)
			}
			expected = expected.Add(amount)
			continue
		}
		_, err := l.Debit(ctx, 1, amount, "test")
		if amount.GreaterThan(expected) {
			if !errors.Is(err, apperr.ErrInsufficientFunds) {
				t.Fatalf("step %d: overdraft err = %v", i, err)
			}
		} else {
			if err != nil {
				t.Fatalf("step %d: debit: %v", i, err)
			}
			expected = expected.Sub(amount)
		}
		bal, _ := l.GetBalance(ctx, 1)
		if bal.IsNegative() || !bal.Equal(expected) {
			t.Fatalf("step %d: balance = %s, want %s", i, bal, expected)
		}
	}
}

func TestRecordDepositIsIdempotentOnHash(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	d := DepositRecord{UserID: 5, Amount: dec("1.5"), TxHash: "abc", Source: "chain"}

	for i := 0; i < 3; i++ {
		res, err := l.RecordDeposit(ctx, d)
		if err != nil {
			t.Fatalf("RecordDeposit #%d: %v", i, err)
		}
		if res.Credited != (i == 0) {
			t.Fatalf("RecordDeposit #%d credited = %v", i, res.Credited)
		}
		if !res.Balance.Equal(dec("1.5")) {
			t.Fatalf("RecordDeposit #%d balance = %s", i, res.Balance)
		}
	}
	acc, _ := l.Account(ctx, 5)
	if !acc.TotalDeposited.Equal(dec("1.5")) {
		t.Fatalf("TotalDeposited = %s", acc.TotalDeposited)
	}
	internal, _ := l.InternalBalance(ctx)
	if !internal.Equal(dec("1.5")) {
		t.Fatalf("internal = %s", internal)
	}
	if ok, _ := l.TxProcessed(ctx, "abc"); !ok {
		t.Fatal("hash not recorded")
	}
}

func TestRecordDepositValidation(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	bad := []DepositRecord{
		{UserID: 1, Amount: dec("1"), TxHash: "  "},
		{UserID: 1, Amount: dec("0"), TxHash: "h"},
		{UserID: 1, Amount: dec("-1"), TxHash: "h"},
	}
	for _, d := range bad {
		if _, err := l.RecordDeposit(ctx, d); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("RecordDeposit(%+v) err = %v", d, err)
		}
	}
}

func TestCommitAndRollbackPurchaseRestoresBalanceExactly(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, _ = l.RecordDeposit(ctx, DepositRecord{UserID: 9, Amount: dec("10.123456789"), TxHash: "h", Source: "chain"})
	before, _ := l.FreshBalance(ctx, 9)
	internalBefore, _ := l.InternalBalance(ctx)

	p := PurchaseDebit{PurchaseID: "p_9_1", UserID: 9, Recipient: "alice", Quantity: 100, Cost: dec("0.483"), Fee: dec("0.023")}
	bal, err := l.CommitPurchase(ctx, p)
	if err != nil {
		t.Fatalf("CommitPurchase: %v", err)
	}
	if !bal.Equal(before.Sub(p.Cost)) {
		t.Fatalf("balance after commit = %s", bal)
	}
	if _, err := l.CommitPurchase(ctx, p); !errors.Is(err, ErrDuplicatePurchase) {
		t.Fatalf("second commit err = %v", err)
	}

	if err := l.RollbackPurchase(ctx, p.PurchaseID); err != nil {
		t.Fatalf("RollbackPurchase: %v", err)
	}
	if err := l.RollbackPurchase(ctx, p.PurchaseID); err != nil {
		t.Fatalf("second RollbackPurchase: %v", err)
	}
	after, _ := l.FreshBalance(ctx, 9)
	if !after.Equal(before) {
		t.Fatalf("balance after rollback = %s, want %s", after, before)
	}
	internal, _ := l.InternalBalance(ctx)
	if !internal.Equal(internalBefore) {
		t.Fatalf("internal after rollback = %s, want %s", internal, internalBefore)
	}
	acc, _ := l.Account(ctx, 9)
	if acc.TotalBought != 0 {
		t.Fatalf("TotalBought = %d, want 0", acc.TotalBought)
	}
	if err := l.MarkPurchase(ctx, p.PurchaseID, store.PurchaseDelivered, "tx"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("MarkPurchase after rollback err = %v", err)
	}
}

func TestCommitPurchaseInsufficientFundsLeavesNoTrace(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, _ = l.Credit(ctx, 2, dec("1"), "seed")

	_, err := l.CommitPurchase(ctx, PurchaseDebit{PurchaseID: "p", UserID: 2, Quantity: 50, Cost: dec("2"), Fee: dec("0.1")})
	if !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Fatalf("err = %v", err)
	}
	items, _ := l.Store.ListPurchases(ctx, 2, 10, 0)
	if len(items) != 0 {
		t.Fatalf("purchase row written: %+v", items)
	}
	if err := l.RollbackPurchase(ctx, "p"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("rollback unknown err = %v", err)
	}
}

func TestAdjustAndFeeSettings(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if bal, err := l.Adjust(ctx, 3, dec("2"), "bonus"); err != nil || !bal.Equal(dec("2")) {
		t.Fatalf("Adjust(+2) = %s, %v", bal, err)
	}
	if _, err := l.Adjust(ctx, 3, dec("-3"), "fix"); !errors.Is(err, apperr.ErrInsufficientFunds) {
		t.Fatalf("Adjust(-3) err = %v", err)
	}
	if bal, err := l.Adjust(ctx, 3, dec("-2"), "fix"); err != nil || !bal.IsZero() {
		t.Fatalf("Adjust(-2) = %s, %v", bal, err)
	}
	if _, err := l.Adjust(ctx, 3, decimal.Zero, "noop"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Adjust(0) err = %v", err)
	}

	if fee, _ := l.FeePercent(ctx); !fee.Equal(store.DefaultFeePercent) {
		t.Fatalf("default fee = %s", fee)
	}
	for _, bad := range []string{"-0.1", "50.01"} {
		if err := l.SetFeePercent(ctx, dec(bad)); !errors.Is(err, apperr.ErrValidation) {
			t.Fatalf("SetFeePercent(%s) err = %v", bad, err)
		}
	}
	if err := l.SetFeePercent(ctx, dec("50")); err != nil {
		t.Fatalf("SetFeePercent(50) err = %v", err)
	}
}

func TestStatistics(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	_, _ = l.RecordDeposit(ctx, DepositRecord{UserID: 1, Amount: dec("5"), TxHash: "a", Source: "chain"})
	_, _ = l.RecordDeposit(ctx, DepositRecord{UserID: 2, Amount: dec("3"), TxHash: "b", Source: "rocket"})
	_, _ = l.CommitPurchase(ctx, PurchaseDebit{PurchaseID: "p1", UserID: 1, Quantity: 50, Cost: dec("1"), Fee: dec("0.05")})
	_, _ = l.CommitPurchase(ctx, PurchaseDebit{PurchaseID: "p2", UserID: 2, Quantity: 60, Cost: dec("1"), Fee: dec("0.05")})
	_ = l.RollbackPurchase(ctx, "p2")

	st, err := l.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if st.Users != 2 || st.Deposits != 2 || !st.DepositVolume.Equal(dec("8")) {
		t.Fatalf("unexpected deposit stats: %+v", st)
	}
	if st.Purchases != 1 || st.PurchasesRolled != 1 || st.PurchasedQuantity != 50 {
		t.Fatalf("unexpected purchase stats: %+v", st)
	}
	if !st.TotalBalance.Equal(dec("7")) {
		t.Fatalf("TotalBalance = %s, want 7", st.TotalBalance)
	}
}
