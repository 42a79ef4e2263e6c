package store

import (
	"time"

	"github.com/shopspring/decimal"
)

type Account struct {
	UserID         int64           `json:"user_id"`
	Balance        decimal.Decimal `json:"balance"`
	TotalDeposited decimal.Decimal `json:"total_deposited"`
	TotalBought    int64           `json:"total_bought"`
	CreatedAt      time.Time       `json:"created_at"`
	LastActive     time.Time       `json:"last_active"`
	IsBlocked      bool            `json:"is_blocked"`
	BlockedAt      *time.Time      `json:"blocked_at,omitempty"`
	BlockedReason  string          `json:"blocked_reason,omitempty"`
}

type Deposit struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	Amount    decimal.Decimal `json:"amount"`
	TxHash    string          `json:"tx_hash"`
	Source    string          `json:"source"`
	CreatedAt time.Time       `json:"created_at"`
}

const (
	PurchaseCommitted   = "committed"
	PurchaseUnconfirmed = "unconfirmed"
	PurchaseDelivered   = "delivered"
	PurchaseRolledBack  = "rolled_back"
)

type Purchase struct {
	ID        string          `json:"purchase_id"`
	UserID    int64           `json:"user_id"`
	Recipient string          `json:"recipient"`
	Quantity  int64           `json:"quantity"`
	Cost      decimal.Decimal `json:"cost"`
	Fee       decimal.Decimal `json:"fee"`
	Status    string          `json:"status"`
	TxHash    string          `json:"tx_hash,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type Adjustment struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
	At     time.Time       `json:"at"`
}

type Chat struct {
	ChatID           int64           `json:"chat_id"`
	OwnerID          int64           `json:"owner_id"`
	Title            string          `json:"title"`
	IsActive         bool            `json:"is_active"`
	TotalVolume      decimal.Decimal `json:"total_volume"`
	TotalEarnings    decimal.Decimal `json:"total_earnings"`
	NGREarnings      decimal.Decimal `json:"ngr_earnings"`
	PurchaseEarnings decimal.Decimal `json:"purchase_earnings"`
	Withdrawn        decimal.Decimal `json:"withdrawn"`
	TotalWagers      int64           `json:"total_wagers"`
	TotalPurchases   int64           `json:"total_purchases"`
	ManualLevel      string          `json:"manual_level,omitempty"`
	Adjustments      []Adjustment    `json:"adjustments,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	DeactivatedAt    *time.Time      `json:"deactivated_at,omitempty"`
}

// Available is the part of the chat's earnings not yet withdrawn.
func (c *Chat) Available() decimal.Decimal {
	return c.TotalEarnings.Sub(c.Withdrawn)
}

const (
	EarningNGR        = "ngr"
	EarningPurchase   = "purchase"
	EarningAdjustment = "adjustment"
)

type Earning struct {
	ID        string          `json:"id"`
	ChatID    int64           `json:"chat_id"`
	OwnerID   int64           `json:"owner_id"`
	UserID    int64           `json:"user_id"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Details   string          `json:"details,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type PlayerNGR struct {
	UserID       int64           `json:"user_id"`
	ChatID       int64           `json:"chat_id"`
	TotalWagered decimal.Decimal `json:"total_wagered"`
	TotalWon     decimal.Decimal `json:"total_won"`
	PaidNGR      decimal.Decimal `json:"paid_ngr"`
}

// NGR is the player's net loss in the chat; negative when the player is ahead.
func (p *PlayerNGR) NGR() decimal.Decimal {
	return p.TotalWagered.Sub(p.TotalWon)
}

const (
	WithdrawalPending   = "pending"
	WithdrawalApproved  = "approved"
	WithdrawalRejected  = "rejected"
	WithdrawalCompleted = "completed"

	DestinationWallet  = "wallet"
	DestinationBalance = "balance"
)

type Withdrawal struct {
	ID            string          `json:"id"`
	OwnerID       int64           `json:"owner_id"`
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"wallet_address,omitempty"`
	Destination   string          `json:"destination"`
	Status        string          `json:"status"`
	TxHash        string          `json:"tx_hash,omitempty"`
	AdminComment  string          `json:"admin_comment,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// Open reports whether the request still reserves partner funds.
func (w *Withdrawal) Open() bool {
	return w.Status == WithdrawalPending || w.Status == WithdrawalApproved
}

type Transaction struct {
	ID        string          `json:"id"`
	UserID    int64           `json:"user_id"`
	Kind      string          `json:"kind"`
	Amount    decimal.Decimal `json:"amount"`
	Balance   decimal.Decimal `json:"balance"`
	RefType   string          `json:"ref_type,omitempty"`
	RefID     string          `json:"ref_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type Settings struct {
	FeePercent      decimal.Decimal `json:"fee_percent"`
	InternalBalance decimal.Decimal `json:"internal_balance"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

var DefaultFeePercent = decimal.NewFromInt(5)
