// Package deposit matches incoming treasury transfers to per-user payment
// codes and credits them to the ledger exactly once.
package deposit

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/chain"
	"stars-engine/internal/ledger"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const sourceTransfer = "ton_transfer"

type TransferSource interface {
	Transfers(ctx context.Context, address string, limit int) ([]chain.Transfer, error)
}

type Depositor interface {
	CheckActive(ctx context.Context, userID int64) error
	RecordDeposit(ctx context.Context, d ledger.DepositRecord) (ledger.DepositResult, error)
}

type Status string

const (
	StatusCredited     Status = "credited"
	StatusNotFound     Status = "not_found"
	StatusBelowMinimum Status = "below_minimum"
	StatusDuplicate    Status = "duplicate"
	StatusExpired      Status = "expired"
	StatusNoCode       Status = "no_code"
)

type CheckResult struct {
	Status    Status          `json:"status"`
	Code      string          `json:"code,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	TxHash    string          `json:"tx_hash,omitempty"`
	Balance   decimal.Decimal `json:"balance"`
	ExpiresAt time.Time       `json:"expires_at,omitempty"`
}

type Options struct {
	Address      string
	MinDeposit   decimal.Decimal
	HistoryLimit int
	Now          func() time.Time
}

type Reconciler struct {
	codes  *Codes
	source TransferSource
	ledger Depositor
	opts   Options
}

func NewReconciler(codes *Codes, source TransferSource, ledger Depositor, opts Options) *Reconciler {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 30
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reconciler{codes: codes, source: source, ledger: ledger, opts: opts}
}

// Invoice is what a user needs to pay a deposit.
type Invoice struct {
	PendingPayment
	Address string `json:"address"`
	PayURL  string `json:"pay_url"`
}

// Issue hands the user a fresh code, replacing the previous one. A positive
// amount is embedded in the wallet deep link. Blocked users get no code.
func (r *Reconciler) Issue(ctx context.Context, userID int64, amount decimal.Decimal) (Invoice, error) {
	if userID <= 0 {
		return Invoice{}, apperr.Invalid("user_id", "must be positive")
	}
	if r.opts.Address == "" {
		return Invoice{}, apperr.Invalid("treasury_address", "is not configured")
	}
	if err := r.ledger.CheckActive(ctx, userID); err != nil {
		return Invoice{}, err
	}
	p := r.codes.Issue(userID)
	q := url.Values{}
	if amount.IsPositive() {
		q.Set("amount", fmt.Sprint(chain.ToNano(amount)))
	}
	q.Set("text", p.Code)
	inv := Invoice{
		PendingPayment: p,
		Address:        r.opts.Address,
		PayURL:         "https://app.tonkeeper.com/transfer/" + r.opts.Address + "?" + q.Encode(),
	}
	log.Info().Int64("user_id", userID).Str("code", p.Code).Msg("deposit code issued")
	return inv, nil
}

// CheckUser looks for the user's payment in the latest treasury transfers.
func (r *Reconciler) CheckUser(ctx context.Context, userID int64) (CheckResult, error) {
	p, ok := r.codes.Lookup(userID)
	if !ok {
		return CheckResult{Status: StatusNoCode}, nil
	}
	now := r.opts.Now()
	if p.Expired(now) {
		r.codes.Clear(userID, p.Code)
		return CheckResult{Status: StatusExpired, Code: p.Code}, nil
	}
	transfers, err := r.source.Transfers(ctx, r.opts.Address, r.opts.HistoryLimit)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("deposit check failed")
		return CheckResult{}, err
	}
	return r.settle(ctx, p, transfers, now)
}

type PollReport struct {
	Checked  int `json:"checked"`
	Credited int `json:"credited"`
}

// Poll matches every active code against one history fetch.
func (r *Reconciler) Poll(ctx context.Context) (PollReport, error) {
	active := r.codes.Active()
	if len(active) == 0 {
		return PollReport{}, nil
	}
	transfers, err := r.source.Transfers(ctx, r.opts.Address, r.opts.HistoryLimit)
	if err != nil {
		log.Error().Err(err).Int("codes", len(active)).Msg("deposit poll failed")
		return PollReport{}, err
	}
	rep := PollReport{Checked: len(active)}
	now := r.opts.Now()
	for _, p := range active {
		res, err := r.settle(ctx, p, transfers, now)
		if err != nil {
			log.Error().Err(err).Int64("user_id", p.UserID).Msg("deposit credit failed")
			continue
		}
		if res.Status == StatusCredited {
			rep.Credited++
		}
	}
	return rep, nil
}

// Sweep evicts expired codes.
func (r *Reconciler) Sweep(now time.Time) int {
	return r.codes.Sweep(now)
}

func (r *Reconciler) settle(ctx context.Context, p PendingPayment, transfers []chain.Transfer, now time.Time) (CheckResult, error) {
	out := CheckResult{Status: StatusNotFound, Code: p.Code, Amount: decimal.Zero, Balance: decimal.Zero, ExpiresAt: p.ExpiresAt}
	if p.Expired(now) {
		out.Status = StatusExpired
		return out, nil
	}
	for _, tr := range transfers {
		if !matches(p, tr) {
			continue
		}
		if tr.Amount.LessThan(r.opts.MinDeposit) {
			metricBelowMinimum.Add(1)
			if out.Status == StatusNotFound {
				out.Status = StatusBelowMinimum
				out.Amount = tr.Amount
				out.TxHash = tr.Hash
			}
			continue
		}
		res, err := r.ledger.RecordDeposit(ctx, ledger.DepositRecord{
			UserID: p.UserID,
			Amount: tr.Amount,
			TxHash: tr.Hash,
			Source: sourceTransfer,
		})
		if err != nil {
			return CheckResult{}, err
		}
		if !res.Credited {
			metricDuplicates.Add(1)
			if out.Status == StatusNotFound {
				out.Status = StatusDuplicate
				out.Amount = tr.Amount
				out.TxHash = tr.Hash
			}
			continue
		}
		r.codes.Clear(p.UserID, p.Code)
		metricCredited.Add(1)
		log.Info().
			Int64("user_id", p.UserID).
			Str("tx_hash", tr.Hash).
			Str("amount", tr.Amount.String()).
			Str("code", p.Code).
			Msg("deposit credited")
		return CheckResult{
			Status:  StatusCredited,
			Code:    p.Code,
			Amount:  tr.Amount,
			TxHash:  tr.Hash,
			Balance: res.Balance,
		}, nil
	}
	return out, nil
}
