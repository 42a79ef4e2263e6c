package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type Options struct {
	FlushDelay      time.Duration
	BalanceCacheTTL time.Duration
	EarningsCap     int
	TransactionsCap int
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if o.FlushDelay <= 0 {
		o.FlushDelay = 3 * time.Second
	}
	if o.EarningsCap <= 0 {
		o.EarningsCap = 10000
	}
	if o.TransactionsCap <= 0 {
		o.TransactionsCap = 50000
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Store owns every ledger table in memory. All access goes through Update or
// View, which serialize on one mutex; the in-memory state is authoritative and
// the sink receives coalesced snapshots.
type Store struct {
	mu   sync.Mutex
	t    tables
	sink Sink
	opts Options

	cache   *balanceCache
	flusher *flusher
}

func New(ctx context.Context, sink Sink, opts Options) (*Store, error) {
	opts = opts.withDefaults()
	s := &Store{
		t:     newTables(),
		sink:  sink,
		opts:  opts,
		cache: newBalanceCache(opts.BalanceCacheTTL),
	}
	if err := s.t.load(ctx, sink); err != nil {
		return nil, err
	}
	s.flusher = newFlusher(s, opts.FlushDelay)
	return s, nil
}

func (s *Store) now() time.Time {
	return s.opts.Now()
}

// Update runs fn under the store lock with write access. fn must validate
// before mutating: tables touched before an error is returned stay modified.
func (s *Store) Update(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	tx := newTx(s, true)
	defer func() {
		for userID := range tx.touched {
			s.cache.invalidate(userID)
		}
		dirty := tx.dirty
		s.mu.Unlock()

		if len(dirty) > 0 {
			s.flusher.mark(dirty)
		}
	}()
	return fn(tx)
}

// View runs fn under the store lock with read access. Pointers obtained from
// the Tx must not escape fn.
func (s *Store) View(ctx context.Context, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(newTx(s, false))
}

// Balance serves from the short-TTL cache when possible.
func (s *Store) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	if v, ok := s.cache.get(userID, s.now()); ok {
		return v, nil
	}
	if err := ctx.Err(); err != nil {
		return decimal.Zero, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bal := decimal.Zero
	if a, ok := s.t.accounts[userID]; ok {
		bal = a.Balance
	}
	s.cache.put(userID, bal, s.now())
	return bal, nil
}

// FreshBalance bypasses the cache.
func (s *Store) FreshBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	bal := decimal.Zero
	err := s.View(ctx, func(tx *Tx) error {
		if a, ok := tx.LookupAccount(userID); ok {
			bal = a.Balance
		}
		return nil
	})
	return bal, err
}

// SweepCache drops expired balance cache entries.
func (s *Store) SweepCache() int {
	return s.cache.sweep(s.now())
}

// Flush writes every dirty table now.
func (s *Store) Flush(ctx context.Context) error {
	return s.flusher.flush(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	return s.sink.Ping(ctx)
}

// Close stops the background flusher, writes pending tables and closes the sink.
func (s *Store) Close(ctx context.Context) error {
	s.flusher.stop()
	err := s.flusher.flush(ctx)
	if cerr := s.sink.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Store) snapshot(names map[Table]struct{}) (map[Table][]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Table][]byte, len(names))
	for name := range names {
		body, err := s.t.encode(name)
		if err != nil {
			return nil, err
		}
		out[name] = body
	}
	return out, nil
}
