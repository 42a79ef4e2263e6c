package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// flusher coalesces dirty tables and writes them once per delay window.
type flusher struct {
	s     *Store
	delay time.Duration

	mu      sync.Mutex
	pending map[Table]struct{}
	timer   *time.Timer
	stopped bool

	// writeMu keeps an older snapshot from overwriting a newer one.
	writeMu sync.Mutex
}

func newFlusher(s *Store, delay time.Duration) *flusher {
	return &flusher{s: s, delay: delay, pending: map[Table]struct{}{}}
}

func (f *flusher) mark(names map[Table]struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for name := range names {
		f.pending[name] = struct{}{}
	}
	f.scheduleLocked()
}

func (f *flusher) scheduleLocked() {
	if f.stopped || f.timer != nil || len(f.pending) == 0 {
		return
	}
	f.timer = time.AfterFunc(f.delay, f.fire)
}

func (f *flusher) fire() {
	f.mu.Lock()
	f.timer = nil
	f.mu.Unlock()
	if err := f.flush(context.Background()); err != nil {
		log.Error().Err(err).Msg("ledger flush failed")
	}
}

func (f *flusher) take() map[Table]struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = map[Table]struct{}{}
	return out
}

func (f *flusher) requeue(names []Table) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, name := range names {
		f.pending[name] = struct{}{}
	}
	f.scheduleLocked()
}

func (f *flusher) flush(ctx context.Context) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	names := f.take()
	if len(names) == 0 {
		return nil
	}
	docs, err := f.s.snapshot(names)
	if err != nil {
		f.requeue(keys(names))
		return err
	}
	var (
		errs   []error
		failed []Table
	)
	for name, body := range docs {
		if err := f.s.sink.Save(ctx, string(name), body); err != nil {
			errs = append(errs, fmt.Errorf("save %s: %w", name, err))
			failed = append(failed, name)
			continue
		}
		metricFlushWrites.Add(1)
	}
	if len(failed) > 0 {
		metricFlushErrors.Add(int64(len(failed)))
		f.requeue(failed)
	}
	return errors.Join(errs...)
}

func (f *flusher) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
}

func keys(m map[Table]struct{}) []Table {
	out := make([]Table, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
