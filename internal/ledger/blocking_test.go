package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/store"
	"stars-engine/internal/testutil"
)

func TestBlockAndUnblock(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	st := testutil.OpenStore(t, store.Options{FlushDelay: time.Hour, Now: func() time.Time { return now }})
	l := New(st)
	ctx := context.Background()

	if err := l.CheckActive(ctx, 1); err != nil {
		t.Fatalf("unknown user CheckActive() = %v", err)
	}
	acct, err := l.Block(ctx, 1, " spam ")
	if err != nil {
		t.Fatalf("Block() error = %v", err)
	}
	if !acct.IsBlocked || acct.BlockedReason != "spam" || acct.BlockedAt == nil || !acct.BlockedAt.Equal(now) {
		t.Fatalf("blocked account = %+v", acct)
	}
	if err := l.CheckActive(ctx, 1); !errors.Is(err, apperr.ErrUserBlocked) {
		t.Fatalf("CheckActive() = %v, want user blocked", err)
	}

	first := now
	now = now.Add(time.Minute)
	acct, _ = l.Block(ctx, 1, "chargeback")
	if !acct.BlockedAt.Equal(first) || acct.BlockedReason != "chargeback" {
		t.Fatalf("reblock = %+v", acct)
	}
	if _, err := l.Block(ctx, 2, ""); err != nil {
		t.Fatalf("Block(2) error = %v", err)
	}

	blocked, err := l.BlockedUsers(ctx)
	if err != nil {
		t.Fatalf("BlockedUsers() error = %v", err)
	}
	if len(blocked) != 2 || blocked[0].UserID != 2 || blocked[1].UserID != 1 {
		t.Fatalf("blocked = %+v", blocked)
	}

	acct, err = l.Unblock(ctx, 1)
	if err != nil {
		t.Fatalf("Unblock() error = %v", err)
	}
	if acct.IsBlocked || acct.BlockedAt != nil || acct.BlockedReason != "" {
		t.Fatalf("unblocked account = %+v", acct)
	}
	if ok, _ := l.IsBlocked(ctx, 1); ok {
		t.Fatal("user 1 still blocked")
	}
	if _, err := l.Unblock(ctx, 99); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("Unblock(unknown) = %v", err)
	}
	if _, err := l.Block(ctx, 0, "x"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("Block(0) = %v", err)
	}
}

func TestBlockedFlagSurvivesReload(t *testing.T) {
	sink := testutil.NewMemSink()
	st, _ := testutil.OpenStoreWithSink(t, sink, store.Options{})
	ctx := context.Background()
	if _, err := New(st).Block(ctx, 3, "fraud"); err != nil {
		t.Fatalf("Block() error = %v", err)
	}
	if err := st.Flush(ctx); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	reopened, _ := testutil.OpenStoreWithSink(t, sink, store.Options{})
	if ok, _ := New(reopened).IsBlocked(ctx, 3); !ok {
		t.Fatal("block lost after reload")
	}
}
