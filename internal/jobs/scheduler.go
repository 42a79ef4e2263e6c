// Package jobs runs the periodic maintenance of the engine on cron specs:
// TTL sweeps, the deposit poll and ledger checkpoints.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Task struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
	// Timeout bounds one run; zero means no bound.
	Timeout time.Duration
}

type Scheduler struct {
	cron *cron.Cron

	mu    sync.Mutex
	tasks map[string]Task
	ctx   context.Context
}

// cronLogger feeds robfig/cron's own messages into zerolog.
type cronLogger struct {
	l zerolog.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

func New() *Scheduler {
	logger := cronLogger{l: log.With().Str("component", "jobs").Logger()}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		tasks: map[string]Task{},
		ctx:   context.Background(),
	}
}

// Add registers a task. An invalid spec is returned as an error.
func (s *Scheduler) Add(t Task) error {
	if t.Name == "" || t.Run == nil {
		return fmt.Errorf("jobs: task needs a name and a func")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.tasks[t.Name]; dup {
		return fmt.Errorf("jobs: duplicate task %q", t.Name)
	}
	if _, err := s.cron.AddFunc(t.Spec, func() { s.run(t) }); err != nil {
		return fmt.Errorf("jobs: task %s spec %q: %w", t.Name, t.Spec, err)
	}
	s.tasks[t.Name] = t
	return nil
}

func (s *Scheduler) run(t Task) {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}
	started := time.Now()
	err := t.Run(ctx)
	metricRuns.Add(t.Name, 1)
	if err != nil {
		metricFailures.Add(t.Name, 1)
		log.Error().Err(err).Str("task", t.Name).Msg("scheduled task failed")
		return
	}
	log.Debug().Str("task", t.Name).Dur("took", time.Since(started)).Msg("scheduled task done")
}

// RunNow executes a registered task synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	t, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("jobs: unknown task %q", name)
	}
	return t.Run(ctx)
}

// Start runs the scheduler until Stop. ctx is handed to every task run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	n := len(s.tasks)
	s.mu.Unlock()
	s.cron.Start()
	log.Info().Int("tasks", n).Msg("scheduler started")
}

// Stop waits for running tasks to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}
