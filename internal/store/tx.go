package store

import (
	"errors"
	"sort"
	"strconv"
	"time"

	"stars-engine/internal/apperr"

	"github.com/shopspring/decimal"
)

var ErrReadOnly = errors.New("read_only_transaction")

type Stat string

const (
	StatTotalDeposited Stat = "total_deposited"
	StatTotalBought    Stat = "total_bought"
	StatLastActive     Stat = "last_active"
)

// Tx is the view of the tables handed to Update and View callbacks. It never
// locks; the owning Store already holds the mutex.
type Tx struct {
	s       *Store
	write   bool
	now     time.Time
	dirty   map[Table]struct{}
	touched map[int64]struct{}
}

func newTx(s *Store, write bool) *Tx {
	return &Tx{
		s:       s,
		write:   write,
		now:     s.now(),
		dirty:   map[Table]struct{}{},
		touched: map[int64]struct{}{},
	}
}

func (tx *Tx) Now() time.Time { return tx.now }

func (tx *Tx) markDirty(name Table) {
	if tx.write {
		tx.dirty[name] = struct{}{}
	}
}

func (tx *Tx) touch(userID int64) {
	tx.touched[userID] = struct{}{}
	tx.markDirty(TableAccounts)
}

func (tx *Tx) LookupAccount(userID int64) (*Account, bool) {
	a, ok := tx.s.t.accounts[userID]
	return a, ok
}

// Account returns the user's account, creating it inside write transactions.
// Read transactions get a detached zero account for unknown users.
func (tx *Tx) Account(userID int64) *Account {
	if a, ok := tx.s.t.accounts[userID]; ok {
		if tx.write {
			tx.touch(userID)
		}
		return a
	}
	a := &Account{
		UserID:         userID,
		Balance:        decimal.Zero,
		TotalDeposited: decimal.Zero,
		CreatedAt:      tx.now,
		LastActive:     tx.now,
	}
	if tx.write {
		tx.s.t.accounts[userID] = a
		tx.touch(userID)
	}
	return a
}

func (tx *Tx) Accounts() []Account {
	out := make([]Account, 0, len(tx.s.t.accounts))
	for _, a := range tx.s.t.accounts {
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Credit adds amount to the balance and returns the new balance.
func (tx *Tx) Credit(userID int64, amount decimal.Decimal, kind, refType, refID string) (decimal.Decimal, error) {
	if !tx.write {
		return decimal.Zero, ErrReadOnly
	}
	if amount.IsNegative() {
		return decimal.Zero, apperr.Invalid("amount", "must not be negative")
	}
	a := tx.Account(userID)
	a.Balance = a.Balance.Add(amount)
	a.LastActive = tx.now
	tx.appendTransaction(userID, kind, amount, a.Balance, refType, refID)
	return a.Balance, nil
}

// Debit fails without mutation when the balance cannot cover amount.
func (tx *Tx) Debit(userID int64, amount decimal.Decimal, kind, refType, refID string) (decimal.Decimal, error) {
	if !tx.write {
		return decimal.Zero, ErrReadOnly
	}
	if amount.IsNegative() {
		return decimal.Zero, apperr.Invalid("amount", "must not be negative")
	}
	current := decimal.Zero
	if a, ok := tx.LookupAccount(userID); ok {
		current = a.Balance
	}
	if current.LessThan(amount) {
		return current, &apperr.FundsError{Account: "user:" + strconv.FormatInt(userID, 10), Need: amount, Have: current}
	}
	a := tx.Account(userID)
	a.Balance = a.Balance.Sub(amount)
	a.LastActive = tx.now
	tx.appendTransaction(userID, kind, amount.Neg(), a.Balance, refType, refID)
	return a.Balance, nil
}

func (tx *Tx) SetStat(userID int64, stat Stat, value decimal.Decimal) error {
	if !tx.write {
		return ErrReadOnly
	}
	if value.IsNegative() {
		return apperr.Invalid(string(stat), "must not be negative")
	}
	switch stat {
	case StatTotalDeposited:
		tx.Account(userID).TotalDeposited = value
	case StatTotalBought:
		if !value.IsInteger() {
			return apperr.Invalid(string(stat), "must be a whole number")
		}
		tx.Account(userID).TotalBought = value.IntPart()
	case StatLastActive:
		tx.Account(userID).LastActive = time.Unix(value.IntPart(), 0).UTC()
	default:
		return apperr.Invalid("stat", "unknown field "+string(stat))
	}
	return nil
}

// AddBought moves the bought counter by delta, never below zero.
func (tx *Tx) AddBought(userID int64, delta int64) {
	a := tx.Account(userID)
	a.TotalBought += delta
	if a.TotalBought < 0 {
		a.TotalBought = 0
	}
}

func (tx *Tx) appendTransaction(userID int64, kind string, amount, balance decimal.Decimal, refType, refID string) {
	t := &tx.s.t
	t.transactions = append(t.transactions, Transaction{
		ID:        newIDAt(tx.now),
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		Balance:   balance,
		RefType:   refType,
		RefID:     refID,
		CreatedAt: tx.now,
	})
	if over := len(t.transactions) - tx.s.opts.TransactionsCap; over > 0 {
		t.transactions = append([]Transaction(nil), t.transactions[over:]...)
	}
	tx.markDirty(TableTransactions)
}

func (tx *Tx) Transactions() []Transaction {
	return append([]Transaction(nil), tx.s.t.transactions...)
}

func (tx *Tx) Settings() Settings {
	return tx.s.t.settings
}

func (tx *Tx) SetFeePercent(p decimal.Decimal) {
	tx.s.t.settings.FeePercent = p
	tx.s.t.settings.UpdatedAt = tx.now
	tx.markDirty(TableSettings)
}

func (tx *Tx) AddInternal(delta decimal.Decimal) {
	tx.s.t.settings.InternalBalance = tx.s.t.settings.InternalBalance.Add(delta)
	tx.s.t.settings.UpdatedAt = tx.now
	tx.markDirty(TableSettings)
}

func (tx *Tx) TxProcessed(hash string) bool {
	_, ok := tx.s.t.processed[hash]
	return ok
}

// AppendDeposit logs the deposit and records its hash as processed.
func (tx *Tx) AppendDeposit(d Deposit) Deposit {
	if d.ID == "" {
		d.ID = newIDAt(tx.now)
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = tx.now
	}
	tx.s.t.deposits = append(tx.s.t.deposits, d)
	tx.s.t.processed[d.TxHash] = struct{}{}
	tx.markDirty(TableDeposits)
	return d
}

func (tx *Tx) Deposits() []Deposit {
	return append([]Deposit(nil), tx.s.t.deposits...)
}

func (tx *Tx) AppendPurchase(p Purchase) Purchase {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = tx.now
	}
	p.UpdatedAt = tx.now
	tx.s.t.purchases = append(tx.s.t.purchases, p)
	tx.s.t.purchaseIdx[p.ID] = len(tx.s.t.purchases) - 1
	tx.markDirty(TablePurchases)
	return p
}

func (tx *Tx) Purchase(id string) (*Purchase, bool) {
	i, ok := tx.s.t.purchaseIdx[id]
	if !ok {
		return nil, false
	}
	tx.markDirty(TablePurchases)
	return &tx.s.t.purchases[i], true
}

func (tx *Tx) Purchases() []Purchase {
	return append([]Purchase(nil), tx.s.t.purchases...)
}

func (tx *Tx) Chat(chatID int64) (*Chat, bool) {
	c, ok := tx.s.t.chats[chatID]
	if ok {
		tx.markDirty(TableChats)
	}
	return c, ok
}

func (tx *Tx) PutChat(c *Chat) {
	tx.s.t.chats[c.ChatID] = c
	tx.markDirty(TableChats)
}

// Chats returns every chat, oldest first.
func (tx *Tx) Chats() []*Chat {
	out := make([]*Chat, 0, len(tx.s.t.chats))
	for _, c := range tx.s.t.chats {
		out = append(out, c)
	}
	sortChats(out)
	tx.markDirty(TableChats)
	return out
}

// OwnerChats returns the owner's chats, oldest first, active or not.
func (tx *Tx) OwnerChats(ownerID int64) []*Chat {
	var out []*Chat
	for _, c := range tx.s.t.chats {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sortChats(out)
	if len(out) > 0 {
		tx.markDirty(TableChats)
	}
	return out
}

func sortChats(cs []*Chat) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].ChatID < cs[j].ChatID
		}
		return cs[i].CreatedAt.Before(cs[j].CreatedAt)
	})
}

// NGR returns the pair's tracker, creating it inside write transactions.
func (tx *Tx) NGR(userID, chatID int64) *PlayerNGR {
	key := ngrKey(userID, chatID)
	p, ok := tx.s.t.ngr[key]
	if !ok {
		p = &PlayerNGR{
			UserID:       userID,
			ChatID:       chatID,
			TotalWagered: decimal.Zero,
			TotalWon:     decimal.Zero,
			PaidNGR:      decimal.Zero,
		}
		if tx.write {
			tx.s.t.ngr[key] = p
		}
	}
	tx.markDirty(TableNGR)
	return p
}

// AppendEarning logs a partner earning, keeping only the newest rows.
func (tx *Tx) AppendEarning(e Earning) Earning {
	t := &tx.s.t
	if e.ID == "" {
		e.ID = newIDAt(tx.now)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = tx.now
	}
	t.earnings = append(t.earnings, e)
	if over := len(t.earnings) - tx.s.opts.EarningsCap; over > 0 {
		t.earnings = append([]Earning(nil), t.earnings[over:]...)
	}
	tx.markDirty(TableEarnings)
	return e
}

func (tx *Tx) Earnings() []Earning {
	return append([]Earning(nil), tx.s.t.earnings...)
}

func (tx *Tx) AppendWithdrawal(w Withdrawal) Withdrawal {
	if w.CreatedAt.IsZero() {
		w.CreatedAt = tx.now
	}
	tx.s.t.withdrawals = append(tx.s.t.withdrawals, w)
	tx.s.t.withdrawalIdx[w.ID] = len(tx.s.t.withdrawals) - 1
	tx.markDirty(TableWithdrawals)
	return w
}

func (tx *Tx) Withdrawal(id string) (*Withdrawal, bool) {
	i, ok := tx.s.t.withdrawalIdx[id]
	if !ok {
		return nil, false
	}
	tx.markDirty(TableWithdrawals)
	return &tx.s.t.withdrawals[i], true
}

func (tx *Tx) Withdrawals() []Withdrawal {
	return append([]Withdrawal(nil), tx.s.t.withdrawals...)
}
