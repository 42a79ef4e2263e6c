package jobs

import (
	"context"
	"time"

	"stars-engine/internal/config"
	"stars-engine/internal/deposit"
	"stars-engine/internal/purchase"

	"github.com/rs/zerolog/log"
)

const (
	TaskSweep       = "sweep"
	TaskDepositPoll = "deposit_poll"
	TaskCheckpoint  = "checkpoint"
)

type DepositPoller interface {
	Poll(ctx context.Context) (deposit.PollReport, error)
	Sweep(now time.Time) int
}

type PurchaseSweeper interface {
	Sweep(now time.Time) purchase.SweepReport
}

type InvoiceSweeper interface {
	Sweep(now time.Time, ttl time.Duration) int
}

type Checkpointer interface {
	Flush(ctx context.Context) error
	SweepCache() int
}

type Targets struct {
	Deposits  DepositPoller
	Purchases PurchaseSweeper
	Invoices  InvoiceSweeper
	Store     Checkpointer
	// InvoiceTTL is how long settled invoices stay queryable.
	InvoiceTTL time.Duration
	Now        func() time.Time
}

// Register adds the engine's standard tasks to s.
func Register(s *Scheduler, cfg config.JobsConfig, tg Targets) error {
	now := tg.Now
	if now == nil {
		now = time.Now
	}
	if tg.InvoiceTTL <= 0 {
		tg.InvoiceTTL = time.Hour
	}
	tasks := []Task{
		{Name: TaskSweep, Spec: cfg.SweepSpec, Run: func(context.Context) error {
			sweep(tg, now())
			return nil
		}},
		{Name: TaskCheckpoint, Spec: cfg.CheckpointSpec, Timeout: 30 * time.Second, Run: func(ctx context.Context) error {
			if tg.Store == nil {
				return nil
			}
			return tg.Store.Flush(ctx)
		}},
	}
	if tg.Deposits != nil {
		tasks = append(tasks, Task{Name: TaskDepositPoll, Spec: cfg.DepositPollSpec, Timeout: 20 * time.Second, Run: func(ctx context.Context) error {
			rep, err := tg.Deposits.Poll(ctx)
			if err != nil {
				return err
			}
			if rep.Credited > 0 {
				log.Info().Int("checked", rep.Checked).Int("credited", rep.Credited).Msg("deposit poll credited payments")
			}
			return nil
		}})
	}
	for _, t := range tasks {
		if err := s.Add(t); err != nil {
			return err
		}
	}
	return nil
}

func sweep(tg Targets, now time.Time) {
	ev := log.Debug()
	if tg.Deposits != nil {
		ev = ev.Int("codes", tg.Deposits.Sweep(now))
	}
	if tg.Purchases != nil {
		rep := tg.Purchases.Sweep(now)
		ev = ev.Int("completed", rep.Completed).Int("cooldowns", rep.Cooldowns).Int("quotes", rep.Quotes)
	}
	if tg.Invoices != nil {
		ev = ev.Int("invoices", tg.Invoices.Sweep(now, tg.InvoiceTTL))
	}
	if tg.Store != nil {
		ev = ev.Int("balance_cache", tg.Store.SweepCache())
	}
	ev.Msg("sweep done")
}
