package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/chain"
	"stars-engine/internal/commission"
	"stars-engine/internal/issuance"
	"stars-engine/internal/ledger"
	"stars-engine/internal/store"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

type Ledger interface {
	CheckActive(ctx context.Context, userID int64) error
	FreshBalance(ctx context.Context, userID int64) (decimal.Decimal, error)
	FeePercent(ctx context.Context) (decimal.Decimal, error)
	CommitPurchase(ctx context.Context, p ledger.PurchaseDebit) (decimal.Decimal, error)
	MarkPurchase(ctx context.Context, purchaseID, status, txHash string) error
	RollbackPurchase(ctx context.Context, purchaseID string) error
}

type PriceSource interface {
	UnitPrice(ctx context.Context) decimal.Decimal
}

type Issuer interface {
	ResolveRecipient(ctx context.Context, handle string) (string, error)
	PrepareIssuance(ctx context.Context, recipient string, quantity int64, treasury string) (issuance.Prepared, error)
}

type Sender interface {
	Send(ctx context.Context, req chain.SendRequest) chain.SendResult
}

type Commissions interface {
	AccruePurchase(ctx context.Context, ev commission.PurchaseEvent) (commission.Accrual, error)
}

type Options struct {
	TreasuryAddress string
	TreasuryReserve decimal.Decimal
	Cooldown        time.Duration
	CompletedTTL    time.Duration
	QuoteTTL        time.Duration
	MinQuantity     int64
	MaxQuantity     int64
	Now             func() time.Time
}

func (o Options) withDefaults() Options {
	if !o.TreasuryReserve.IsPositive() {
		o.TreasuryReserve = decimal.RequireFromString("1.1")
	}
	if o.Cooldown <= 0 {
		o.Cooldown = 3 * time.Second
	}
	if o.CompletedTTL <= 0 {
		o.CompletedTTL = time.Hour
	}
	if o.QuoteTTL <= 0 {
		o.QuoteTTL = 10 * time.Minute
	}
	if o.MinQuantity <= 0 {
		o.MinQuantity = 50
	}
	if o.MaxQuantity < o.MinQuantity {
		o.MaxQuantity = 10000
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

type Deps struct {
	Ledger      Ledger
	Prices      PriceSource
	Issuer      Issuer
	Treasury    chain.BalanceSource
	Sender      Sender
	Commissions Commissions
}

type completedEntry struct {
	state State
	at    time.Time
}

// Saga coordinates one purchase across the ledger, the issuance API and the
// broadcaster. Admission state lives under mu; the lock is never held across
// a collaborator call.
type Saga struct {
	deps Deps
	opts Options

	mu        sync.Mutex
	inFlight  map[string]struct{}
	completed map[string]completedEntry
	cooldown  map[int64]time.Time
	quotes    map[string]Intent
}

func New(deps Deps, opts Options) *Saga {
	return &Saga{
		deps:      deps,
		opts:      opts.withDefaults(),
		inFlight:  map[string]struct{}{},
		completed: map[string]completedEntry{},
		cooldown:  map[int64]time.Time{},
		quotes:    map[string]Intent{},
	}
}

type QuoteRequest struct {
	UserID       int64
	Handle       string
	Quantity     int64
	SourceChatID int64
}

func (s *Saga) Quote(ctx context.Context, req QuoteRequest) (Intent, error) {
	if req.UserID <= 0 {
		return Intent{}, apperr.Invalid("user_id", "must be positive")
	}
	handle := issuance.NormalizeHandle(req.Handle)
	if handle == "" {
		return Intent{}, apperr.Invalid("recipient", "is required")
	}
	if req.Quantity < s.opts.MinQuantity || req.Quantity > s.opts.MaxQuantity {
		return Intent{}, apperr.Invalid("quantity", fmt.Sprintf("must be between %d and %d", s.opts.MinQuantity, s.opts.MaxQuantity))
	}
	if err := s.deps.Ledger.CheckActive(ctx, req.UserID); err != nil {
		return Intent{}, err
	}
	unit := s.deps.Prices.UnitPrice(ctx)
	if !unit.IsPositive() {
		return Intent{}, apperr.External("oracle", "unit_price", errors.New("no price available"))
	}
	fee, err := s.deps.Ledger.FeePercent(ctx)
	if err != nil {
		return Intent{}, err
	}
	now := s.opts.Now()
	in := Intent{
		ID:              newPurchaseID(req.UserID, now),
		UserID:          req.UserID,
		RecipientHandle: handle,
		Quantity:        req.Quantity,
		UnitPrice:       unit,
		FeePercent:      fee,
		Cost:            Cost(unit, fee, req.Quantity),
		SourceChatID:    req.SourceChatID,
		State:           StateCreated,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.opts.QuoteTTL),
	}
	s.mu.Lock()
	s.quotes[in.ID] = in
	s.mu.Unlock()
	return in, nil
}

// Confirm executes a stored quote on behalf of its owner.
func (s *Saga) Confirm(ctx context.Context, purchaseID string, userID int64) (Result, error) {
	now := s.opts.Now()
	s.mu.Lock()
	if done, ok := s.completed[purchaseID]; ok {
		s.mu.Unlock()
		return Result{Status: StatusDuplicate, PurchaseID: purchaseID, State: done.state}, nil
	}
	in, ok := s.quotes[purchaseID]
	s.mu.Unlock()
	if !ok || in.UserID != userID || now.After(in.ExpiresAt) {
		return Result{}, fmt.Errorf("%w: %s", ErrQuoteNotFound, purchaseID)
	}
	return s.Execute(ctx, in)
}

// admit returns done=true when the request must not run.
func (s *Saga) admit(in Intent) (Result, bool, error) {
	now := s.opts.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.inFlight[in.ID]; ok {
		return Result{Status: StatusInFlight, PurchaseID: in.ID, State: StateProcessing}, true, nil
	}
	if done, ok := s.completed[in.ID]; ok {
		return Result{Status: StatusDuplicate, PurchaseID: in.ID, State: done.state}, true, nil
	}
	if last, ok := s.cooldown[in.UserID]; ok && now.Sub(last) < s.opts.Cooldown {
		return Result{}, true, ErrCooldownActive
	}
	s.inFlight[in.ID] = struct{}{}
	s.cooldown[in.UserID] = now
	return Result{}, false, nil
}

func (s *Saga) release(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

func (s *Saga) finish(in Intent) {
	s.mu.Lock()
	s.completed[in.ID] = completedEntry{state: in.State, at: s.opts.Now()}
	delete(s.quotes, in.ID)
	s.mu.Unlock()
	metricOutcomes.Add(string(in.State), 1)
}

func (s *Saga) validate(in Intent) error {
	switch {
	case in.ID == "":
		return apperr.Invalid("purchase_id", "is required")
	case in.UserID <= 0:
		return apperr.Invalid("user_id", "must be positive")
	case in.RecipientHandle == "":
		return apperr.Invalid("recipient", "is required")
	case in.Quantity <= 0:
		return apperr.Invalid("quantity", "must be positive")
	case !in.Cost.IsPositive():
		return apperr.Invalid("cost", "must be positive")
	}
	return nil
}

// Execute runs the saga for one intent. Failures before the debit leave no
// trace; after the debit the saga ignores caller cancellation and either
// settles the purchase or rolls it back.
func (s *Saga) Execute(ctx context.Context, in Intent) (res Result, err error) {
	if err := s.validate(in); err != nil {
		return Result{}, err
	}
	if err := s.deps.Ledger.CheckActive(ctx, in.UserID); err != nil {
		metricRejected.Add(1)
		return Result{}, err
	}
	if admitted, done, err := s.admit(in); done {
		return admitted, err
	}
	defer s.release(in.ID)

	lg := log.With().Str("purchase_id", in.ID).Int64("user_id", in.UserID).Logger()

	in.State = StateConfirming
	if err := s.checkFunds(ctx, in); err != nil {
		metricRejected.Add(1)
		return Result{}, err
	}
	var recipient string
	recipient, err = s.deps.Issuer.ResolveRecipient(ctx, in.RecipientHandle)
	if err != nil {
		metricRejected.Add(1)
		return Result{}, err
	}
	var prepared issuance.Prepared
	prepared, err = s.deps.Issuer.PrepareIssuance(ctx, recipient, in.Quantity, s.opts.TreasuryAddress)
	if err != nil {
		metricRejected.Add(1)
		return Result{}, err
	}

	in.State = StateProcessing
	var balance decimal.Decimal
	balance, err = s.deps.Ledger.CommitPurchase(ctx, ledger.PurchaseDebit{
		PurchaseID: in.ID,
		UserID:     in.UserID,
		Recipient:  in.RecipientHandle,
		Quantity:   in.Quantity,
		Cost:       in.Cost,
		Fee:        in.Fee(),
	})
	if err != nil {
		metricRejected.Add(1)
		return Result{}, err
	}
	lg.Info().Str("cost", in.Cost.String()).Int64("quantity", in.Quantity).Msg("purchase debited")

	ctx = context.WithoutCancel(ctx)
	res = Result{Status: StatusDone, PurchaseID: in.ID, Cost: in.Cost, Balance: balance, Commission: decimal.Zero}
	settled := false
	defer func() {
		if settled {
			return
		}
		in.State = StateCompensatedRollback
		res.State = in.State
		res.Balance = s.compensate(ctx, in)
		s.finish(in)
	}()

	req := chain.SendRequest{Messages: prepared.Messages, Reference: in.ID}
	if !prepared.ValidUntil.IsZero() {
		req.ValidUntil = prepared.ValidUntil.Unix()
	}
	sent := s.deps.Sender.Send(ctx, req)
	switch sent.Outcome {
	case chain.Accepted:
		in.State = StateCommitted
		s.mark(ctx, in, store.PurchaseDelivered, sent.TxHash)
	case chain.UnconfirmedTimeout:
		in.State = StateCommittedUnconfirmed
		s.mark(ctx, in, store.PurchaseUnconfirmed, sent.TxHash)
		lg.Warn().Err(sent.Err).Msg("purchase broadcast unconfirmed, keeping debit")
	default:
		err = sent.Err
		if err == nil {
			err = apperr.External("broadcaster", "send", errors.New("transaction rejected"))
		}
		lg.Error().Err(err).Msg("purchase broadcast failed")
		return res, err
	}
	settled = true
	res.State = in.State
	res.TxHash = sent.TxHash
	res.Commission = s.accrue(ctx, in)
	s.finish(in)
	lg.Info().Str("state", string(in.State)).Str("tx_hash", sent.TxHash).Msg("purchase settled")
	return res, nil
}

func (s *Saga) checkFunds(ctx context.Context, in Intent) error {
	have, err := s.deps.Ledger.FreshBalance(ctx, in.UserID)
	if err != nil {
		return err
	}
	if have.LessThan(in.Cost) {
		return &apperr.FundsError{Account: fmt.Sprintf("user:%d", in.UserID), Need: in.Cost, Have: have}
	}
	treasury, err := s.deps.Treasury.Balance(ctx, s.opts.TreasuryAddress)
	if err != nil {
		return err
	}
	need := in.Cost.Mul(s.opts.TreasuryReserve)
	if treasury.LessThan(need) {
		log.Error().Str("purchase_id", in.ID).Str("treasury", treasury.String()).Str("need", need.String()).Msg("treasury balance too low")
		return &apperr.FundsError{Account: "treasury", Need: need, Have: treasury}
	}
	return nil
}

func (s *Saga) mark(ctx context.Context, in Intent, status, txHash string) {
	if err := s.deps.Ledger.MarkPurchase(ctx, in.ID, status, txHash); err != nil {
		log.Error().Err(err).Str("purchase_id", in.ID).Str("status", status).Msg("mark purchase failed")
	}
}

func (s *Saga) accrue(ctx context.Context, in Intent) decimal.Decimal {
	if in.SourceChatID == 0 || s.deps.Commissions == nil {
		return decimal.Zero
	}
	acc, err := s.deps.Commissions.AccruePurchase(ctx, commission.PurchaseEvent{
		PurchaseID: in.ID,
		ChatID:     in.SourceChatID,
		BuyerID:    in.UserID,
		Quantity:   in.Quantity,
		UnitPrice:  in.UnitPrice,
		FeePercent: in.FeePercent,
		Cost:       in.Cost,
	})
	if err != nil {
		log.Error().Err(err).Str("purchase_id", in.ID).Int64("chat_id", in.SourceChatID).Msg("purchase commission failed")
		return decimal.Zero
	}
	return acc.Commission
}

// compensate reverses the debit. It never panics and never returns an
// error; failures are logged for manual reconciliation.
func (s *Saga) compensate(ctx context.Context, in Intent) (balance decimal.Decimal) {
	lg := log.With().Str("purchase_id", in.ID).Int64("user_id", in.UserID).Logger()
	defer func() {
		if r := recover(); r != nil {
			metricCompensationFailed.Add(1)
			lg.Error().Interface("panic", r).Msg("purchase rollback panicked")
		}
	}()
	if err := s.deps.Ledger.RollbackPurchase(ctx, in.ID); err != nil {
		metricCompensationFailed.Add(1)
		lg.Error().Err(err).Str("cost", in.Cost.String()).Msg("purchase rollback failed")
		return decimal.Zero
	}
	lg.Warn().Str("cost", in.Cost.String()).Msg("purchase compensated")
	bal, err := s.deps.Ledger.FreshBalance(ctx, in.UserID)
	if err != nil {
		return decimal.Zero
	}
	return bal
}

type SweepReport struct {
	Completed int
	Cooldowns int
	Quotes    int
}

// Sweep evicts expired completed ids, cooldown stamps and quotes.
func (s *Saga) Sweep(now time.Time) SweepReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rep SweepReport
	for id, c := range s.completed {
		if now.Sub(c.at) > s.opts.CompletedTTL {
			delete(s.completed, id)
			rep.Completed++
		}
	}
	for user, at := range s.cooldown {
		if now.Sub(at) >= s.opts.Cooldown {
			delete(s.cooldown, user)
			rep.Cooldowns++
		}
	}
	for id, q := range s.quotes {
		if now.After(q.ExpiresAt) {
			delete(s.quotes, id)
			rep.Quotes++
		}
	}
	return rep
}

// InFlight reports the number of purchases currently executing.
func (s *Saga) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}
