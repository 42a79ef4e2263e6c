package ledger

import (
	"context"
	"time"

	"stars-engine/internal/store"

	"github.com/shopspring/decimal"
)

type Statistics struct {
	Users          int             `json:"users"`
	ActiveUsers24h int             `json:"active_users_24h"`
	TotalBalance   decimal.Decimal `json:"total_balance"`

	Deposits      int             `json:"deposits"`
	DepositVolume decimal.Decimal `json:"deposit_volume"`

	Purchases          int             `json:"purchases"`
	PurchasesRolled    int             `json:"purchases_rolled_back"`
	PurchasedQuantity  int64           `json:"purchased_quantity"`
	PurchaseVolume     decimal.Decimal `json:"purchase_volume"`
	InternalBalance    decimal.Decimal `json:"internal_balance"`
	FeePercent         decimal.Decimal `json:"fee_percent"`
	Chats              int             `json:"chats"`
	ActiveChats        int             `json:"active_chats"`
	PartnerEarnings    decimal.Decimal `json:"partner_earnings"`
	PartnerWithdrawn   decimal.Decimal `json:"partner_withdrawn"`
	PendingWithdrawals int             `json:"pending_withdrawals"`
}

func (l *Ledger) Statistics(ctx context.Context) (Statistics, error) {
	var st Statistics
	err := l.Store.View(ctx, func(tx *store.Tx) error {
		dayAgo := tx.Now().Add(-24 * time.Hour)
		for _, a := range tx.Accounts() {
			st.Users++
			st.TotalBalance = st.TotalBalance.Add(a.Balance)
			if a.LastActive.After(dayAgo) {
				st.ActiveUsers24h++
			}
		}
		for _, d := range tx.Deposits() {
			st.Deposits++
			st.DepositVolume = st.DepositVolume.Add(d.Amount)
		}
		for _, p := range tx.Purchases() {
			if p.Status == store.PurchaseRolledBack {
				st.PurchasesRolled++
				continue
			}
			st.Purchases++
			st.PurchasedQuantity += p.Quantity
			st.PurchaseVolume = st.PurchaseVolume.Add(p.Cost)
		}
		settings := tx.Settings()
		st.InternalBalance = settings.InternalBalance
		st.FeePercent = settings.FeePercent
		for _, c := range tx.Chats() {
			st.Chats++
			if c.IsActive {
				st.ActiveChats++
			}
			st.PartnerEarnings = st.PartnerEarnings.Add(c.TotalEarnings)
			st.PartnerWithdrawn = st.PartnerWithdrawn.Add(c.Withdrawn)
		}
		for _, w := range tx.Withdrawals() {
			if w.Status == store.WithdrawalPending {
				st.PendingWithdrawals++
			}
		}
		return nil
	})
	return st, err
}
