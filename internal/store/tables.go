package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

type Table string

const (
	TableAccounts     Table = "accounts"
	TableDeposits     Table = "deposits"
	TablePurchases    Table = "purchases"
	TableChats        Table = "chats"
	TableEarnings     Table = "earnings"
	TableWithdrawals  Table = "withdrawals"
	TableNGR          Table = "ngr"
	TableSettings     Table = "settings"
	TableTransactions Table = "transactions"
)

var allTables = []Table{
	TableAccounts, TableDeposits, TablePurchases, TableChats, TableEarnings,
	TableWithdrawals, TableNGR, TableSettings, TableTransactions,
}

type tables struct {
	accounts     map[int64]*Account
	deposits     []Deposit
	purchases    []Purchase
	chats        map[int64]*Chat
	earnings     []Earning
	withdrawals  []Withdrawal
	ngr          map[string]*PlayerNGR
	settings     Settings
	transactions []Transaction

	processed     map[string]struct{}
	purchaseIdx   map[string]int
	withdrawalIdx map[string]int
}

func newTables() tables {
	return tables{
		accounts:      map[int64]*Account{},
		chats:         map[int64]*Chat{},
		ngr:           map[string]*PlayerNGR{},
		settings:      Settings{FeePercent: DefaultFeePercent},
		processed:     map[string]struct{}{},
		purchaseIdx:   map[string]int{},
		withdrawalIdx: map[string]int{},
	}
}

func ngrKey(userID, chatID int64) string {
	return strconv.FormatInt(userID, 10) + "_" + strconv.FormatInt(chatID, 10)
}

func (t *tables) target(name Table) (any, error) {
	switch name {
	case TableAccounts:
		return &t.accounts, nil
	case TableDeposits:
		return &t.deposits, nil
	case TablePurchases:
		return &t.purchases, nil
	case TableChats:
		return &t.chats, nil
	case TableEarnings:
		return &t.earnings, nil
	case TableWithdrawals:
		return &t.withdrawals, nil
	case TableNGR:
		return &t.ngr, nil
	case TableSettings:
		return &t.settings, nil
	case TableTransactions:
		return &t.transactions, nil
	}
	return nil, fmt.Errorf("unknown table %q", name)
}

func (t *tables) encode(name Table) ([]byte, error) {
	v, err := t.target(name)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

func (t *tables) load(ctx context.Context, sink Sink) error {
	for _, name := range allTables {
		raw, err := sink.Load(ctx, string(name))
		if errors.Is(err, ErrNoDocument) {
			continue
		}
		if err != nil {
			return fmt.Errorf("load %s: %w", name, err)
		}
		v, err := t.target(name)
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, v); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
	}
	if t.accounts == nil {
		t.accounts = map[int64]*Account{}
	}
	if t.chats == nil {
		t.chats = map[int64]*Chat{}
	}
	if t.ngr == nil {
		t.ngr = map[string]*PlayerNGR{}
	}
	t.reindex()
	return nil
}

func (t *tables) reindex() {
	t.processed = make(map[string]struct{}, len(t.deposits))
	for _, d := range t.deposits {
		t.processed[d.TxHash] = struct{}{}
	}
	t.purchaseIdx = make(map[string]int, len(t.purchases))
	for i, p := range t.purchases {
		t.purchaseIdx[p.ID] = i
	}
	t.withdrawalIdx = make(map[string]int, len(t.withdrawals))
	for i, w := range t.withdrawals {
		t.withdrawalIdx[w.ID] = i
	}
}
