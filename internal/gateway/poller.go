package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/ledger"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ErrServiceClosed = errors.New("gateway_service_closed")

type Depositor interface {
	CheckActive(ctx context.Context, userID int64) error
	RecordDeposit(ctx context.Context, d ledger.DepositRecord) (ledger.DepositResult, error)
}

type CheckResult struct {
	Invoice  Invoice         `json:"invoice"`
	Status   Status          `json:"status"`
	Credited bool            `json:"credited"`
	Amount   decimal.Decimal `json:"amount"`
	Balance  decimal.Decimal `json:"balance"`
}

type settledInvoice struct {
	result CheckResult
	at     time.Time
}

type Options struct {
	PollAttempts int
	PollInterval time.Duration
}

// Service owns the configured gateways and the watchers of open invoices.
type Service struct {
	gateways map[string]Gateway
	ledger   Depositor
	opts     Options

	mu      sync.Mutex
	pending map[string]Invoice
	settled map[string]settledInvoice

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewService(ledger Depositor, opts Options, gateways ...Gateway) *Service {
	if opts.PollAttempts <= 0 {
		opts.PollAttempts = 60
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		gateways: map[string]Gateway{},
		ledger:   ledger,
		opts:     opts,
		pending:  map[string]Invoice{},
		settled:  map[string]settledInvoice{},
		ctx:      ctx,
		cancel:   cancel,
	}
	for _, g := range gateways {
		s.gateways[g.Family()] = g
	}
	return s
}

func (s *Service) Families() []string {
	out := make([]string, 0, len(s.gateways))
	for f := range s.gateways {
		out = append(out, f)
	}
	return out
}

func (s *Service) gateway(family string) (Gateway, error) {
	g, ok := s.gateways[family]
	if !ok {
		return nil, apperr.Invalid("family", "unknown payment gateway "+family)
	}
	return g, nil
}

// Create opens an invoice and starts watching it in the background.
func (s *Service) Create(ctx context.Context, family string, req InvoiceRequest) (Invoice, error) {
	if req.UserID <= 0 {
		return Invoice{}, apperr.Invalid("user_id", "must be positive")
	}
	g, err := s.gateway(family)
	if err != nil {
		return Invoice{}, err
	}
	if s.ctx.Err() != nil {
		return Invoice{}, ErrServiceClosed
	}
	if err := s.ledger.CheckActive(ctx, req.UserID); err != nil {
		return Invoice{}, err
	}
	inv, err := g.CreateInvoice(ctx, req)
	if err != nil {
		return Invoice{}, err
	}
	s.mu.Lock()
	if s.ctx.Err() != nil {
		s.mu.Unlock()
		log.Warn().Str("invoice", inv.Key()).Msg("invoice created after shutdown, not watching")
		return Invoice{}, ErrServiceClosed
	}
	s.pending[inv.Key()] = inv
	s.wg.Add(1)
	s.mu.Unlock()

	go s.watch(g, inv)
	log.Info().Int64("user_id", inv.UserID).Str("invoice", inv.Key()).Str("amount", inv.Amount.String()).Msg("invoice created")
	return inv, nil
}

// Check queries one invoice now and credits it when paid.
func (s *Service) Check(ctx context.Context, family, id string) (CheckResult, error) {
	g, err := s.gateway(family)
	if err != nil {
		return CheckResult{}, err
	}
	key := family + ":" + id
	s.mu.Lock()
	inv, ok := s.pending[key]
	done, settled := s.settled[key]
	s.mu.Unlock()
	if settled {
		res := done.result
		res.Credited = false
		return res, nil
	}
	if !ok {
		return CheckResult{}, fmt.Errorf("invoice %s:%s: %w", family, id, apperr.ErrNotFound)
	}
	return s.check(ctx, g, inv)
}

func (s *Service) check(ctx context.Context, g Gateway, inv Invoice) (CheckResult, error) {
	res := CheckResult{Invoice: inv, Amount: decimal.Zero, Balance: decimal.Zero}
	status, err := g.CheckStatus(ctx, inv.ID)
	if err != nil {
		return res, err
	}
	res.Status = status
	switch status {
	case StatusExpired:
		s.forget(inv)
		return res, nil
	case StatusUnpaid:
		return res, nil
	}
	amount, err := g.ToTON(ctx, inv)
	if err != nil {
		return res, err
	}
	dep, err := s.ledger.RecordDeposit(ctx, ledger.DepositRecord{
		UserID: inv.UserID,
		Amount: amount,
		TxHash: inv.Key(),
		Source: inv.Family,
	})
	if err != nil {
		return res, err
	}
	res.Credited = dep.Credited
	res.Amount = amount
	res.Balance = dep.Balance
	s.mu.Lock()
	delete(s.pending, inv.Key())
	s.settled[inv.Key()] = settledInvoice{result: res, at: time.Now()}
	s.mu.Unlock()
	if dep.Credited {
		metricInvoicesPaid.Add(inv.Family, 1)
		log.Info().Int64("user_id", inv.UserID).Str("invoice", inv.Key()).Str("credited", amount.String()).Msg("invoice paid")
	}
	return res, nil
}

func (s *Service) forget(inv Invoice) {
	s.mu.Lock()
	delete(s.pending, inv.Key())
	s.mu.Unlock()
}

func (s *Service) watch(g Gateway, inv Invoice) {
	defer s.wg.Done()
	t := time.NewTicker(s.opts.PollInterval)
	defer t.Stop()
	for attempt := 0; attempt < s.opts.PollAttempts; attempt++ {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
		}
		res, err := s.check(s.ctx, g, inv)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Warn().Err(err).Str("invoice", inv.Key()).Msg("invoice check failed")
			continue
		}
		if res.Status != StatusUnpaid {
			return
		}
	}
	s.forget(inv)
	metricInvoicesExpired.Add(inv.Family, 1)
	log.Info().Str("invoice", inv.Key()).Msg("invoice expired without payment")
}

// Sweep drops settled invoices older than ttl.
func (s *Service) Sweep(now time.Time, ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.settled {
		if now.Sub(v.at) > ttl {
			delete(s.settled, k)
			n++
		}
	}
	return n
}

// Pending reports the number of invoices still being watched.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Close stops every watcher and waits for them to exit.
func (s *Service) Close() {
	s.mu.Lock()
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
}
