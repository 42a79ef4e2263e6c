// Package purchase runs the stars purchase saga: quote, admission, funds
// checks, issuance, debit, broadcast, commission and compensation.
package purchase

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"stars-engine/internal/apperr"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type State string

const (
	StateCreated              State = "created"
	StateConfirming           State = "confirming"
	StateProcessing           State = "processing"
	StateCommitted            State = "committed"
	StateCommittedUnconfirmed State = "committed_unconfirmed"
	StateCompensatedRollback  State = "compensated_rollback"
)

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateCommitted || s == StateCommittedUnconfirmed || s == StateCompensatedRollback
}

var (
	ErrCooldownActive = errors.New("cooldown_active")
	ErrQuoteNotFound  = fmt.Errorf("quote_%w", apperr.ErrNotFound)
)

type Intent struct {
	ID              string          `json:"purchase_id"`
	UserID          int64           `json:"user_id"`
	RecipientHandle string          `json:"recipient_handle"`
	Quantity        int64           `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	FeePercent      decimal.Decimal `json:"fee_percent"`
	Cost            decimal.Decimal `json:"cost"`
	SourceChatID    int64           `json:"source_chat_id,omitempty"`
	State           State           `json:"state"`
	CreatedAt       time.Time       `json:"created_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// Fee is the markup part of the cost.
func (in Intent) Fee() decimal.Decimal {
	base := in.UnitPrice.Mul(decimal.NewFromInt(in.Quantity))
	fee := in.Cost.Sub(base).Round(6)
	if fee.IsNegative() {
		return decimal.Zero
	}
	return fee
}

// Cost is unit price with the fee applied, times quantity, at 6 dp.
func Cost(unitPrice, feePercent decimal.Decimal, quantity int64) decimal.Decimal {
	withFee := unitPrice.Mul(decimal.NewFromInt(1).Add(feePercent.Shift(-2)))
	return withFee.Mul(decimal.NewFromInt(quantity)).Round(6)
}

func newPurchaseID(userID int64, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("p_%d_%d_%s", userID, now.UnixMilli(), suffix)
}

// Status tells the caller whether the request did any work.
type Status string

const (
	StatusDone      Status = "done"
	StatusInFlight  Status = "in_flight"
	StatusDuplicate Status = "duplicate"
)

type Result struct {
	Status     Status          `json:"status"`
	PurchaseID string          `json:"purchase_id"`
	State      State           `json:"state"`
	Cost       decimal.Decimal `json:"cost"`
	Balance    decimal.Decimal `json:"balance"`
	TxHash     string          `json:"tx_hash,omitempty"`
	Commission decimal.Decimal `json:"commission"`
}
