package httptransport

import (
	"context"
	"net/http"
	"strings"

	"stars-engine/internal/commission"
	"stars-engine/internal/deposit"
	"stars-engine/internal/gateway"
	"stars-engine/internal/ledger"
	"stars-engine/internal/purchase"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type PriceSource interface {
	UnitPrice(ctx context.Context) decimal.Decimal
	FiatRate(ctx context.Context, currency string) decimal.Decimal
}

// BotHandlers serve the API consumed by the chat frontend.
type BotHandlers struct {
	ledger     *ledger.Ledger
	deposits   *deposit.Reconciler
	gateways   *gateway.Service
	purchases  *purchase.Saga
	commission *commission.Engine
	prices     PriceSource
}

func NewBotHandlers(svc Services) *BotHandlers {
	return &BotHandlers{
		ledger:     svc.Ledger,
		deposits:   svc.Deposits,
		gateways:   svc.Gateways,
		purchases:  svc.Purchases,
		commission: svc.Commission,
		prices:     svc.Prices,
	}
}

func (h *BotHandlers) Balance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := int64Param(w, r, "user_id")
		if !ok {
			return
		}
		acct, err := h.ledger.Account(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		bal, err := h.ledger.GetBalance(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":              true,
			"user_id":         userID,
			"balance":         bal,
			"total_deposited": acct.TotalDeposited,
			"total_bought":    acct.TotalBought,
		})
	}
}

func (h *BotHandlers) Price() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fee, err := h.ledger.FeePercent(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		unit := h.prices.UnitPrice(r.Context())
		writeJSON(w, http.StatusOK, map[string]any{
			"ok":             true,
			"unit_price":     unit,
			"fee_percent":    fee,
			"price_with_fee": purchase.Cost(unit, fee, 1),
			"ton_usd":        h.prices.FiatRate(r.Context(), "usd"),
		})
	}
}

func (h *BotHandlers) IssueDeposit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := int64Param(w, r, "user_id")
		if !ok {
			return
		}
		var body struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if r.ContentLength != 0 && !decodeBody(w, r, &body) {
			return
		}
		inv, err := h.deposits.Issue(r.Context(), userID, body.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "invoice": inv})
	}
}

func (h *BotHandlers) CheckDeposit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := int64Param(w, r, "user_id")
		if !ok {
			return
		}
		res, err := h.deposits.CheckUser(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
	}
}

func (h *BotHandlers) CreateInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := int64Param(w, r, "user_id")
		if !ok {
			return
		}
		var body struct {
			Family   string          `json:"family"`
			Amount   decimal.Decimal `json:"amount"`
			Currency string          `json:"currency"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		inv, err := h.gateways.Create(r.Context(), strings.ToLower(body.Family), gateway.InvoiceRequest{
			UserID:   userID,
			Amount:   body.Amount,
			Currency: body.Currency,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "invoice": inv})
	}
}

func (h *BotHandlers) CheckInvoice() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		res, err := h.gateways.Check(r.Context(), chi.URLParam(r, "family"), chi.URLParam(r, "invoice_id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
	}
}

func (h *BotHandlers) Quote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID    int64  `json:"user_id"`
			Recipient string `json:"recipient"`
			Quantity  int64  `json:"quantity"`
			ChatID    int64  `json:"chat_id"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		in, err := h.purchases.Quote(r.Context(), purchase.QuoteRequest{
			UserID:       body.UserID,
			Handle:       body.Recipient,
			Quantity:     body.Quantity,
			SourceChatID: body.ChatID,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "quote": in})
	}
}

func (h *BotHandlers) Confirm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID int64 `json:"user_id"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		res, err := h.purchases.Confirm(r.Context(), chi.URLParam(r, "purchase_id"), body.UserID)
		if err != nil {
			metricPurchases.Add("error", 1)
			writeError(w, r, err)
			return
		}
		metricPurchases.Add(string(res.Status), 1)
		status := http.StatusOK
		if res.Status == purchase.StatusInFlight {
			status = http.StatusAccepted
		}
		writeJSON(w, status, map[string]any{"ok": true, "result": res})
	}
}

func (h *BotHandlers) RegisterChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ChatID  int64  `json:"chat_id"`
			OwnerID int64  `json:"owner_id"`
			Title   string `json:"title"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		chat, err := h.commission.RegisterChat(r.Context(), body.ChatID, body.OwnerID, body.Title)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "chat": chat})
	}
}

func (h *BotHandlers) DeactivateChat() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, ok := int64Param(w, r, "chat_id")
		if !ok {
			return
		}
		if err := h.commission.DeactivateChat(r.Context(), chatID); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}

func (h *BotHandlers) Wager() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID int64           `json:"user_id"`
			ChatID int64           `json:"chat_id"`
			Bet    decimal.Decimal `json:"bet"`
			Win    decimal.Decimal `json:"win"`
			Game   string          `json:"game"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		res, err := h.commission.RecordWager(r.Context(), commission.WagerEvent{
			UserID: body.UserID,
			ChatID: body.ChatID,
			Bet:    body.Bet,
			Win:    body.Win,
			Game:   body.Game,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "result": res})
	}
}

func (h *BotHandlers) PartnerOverview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := int64Param(w, r, "owner_id")
		if !ok {
			return
		}
		ov, err := h.commission.Overview(r.Context(), ownerID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "partner": ov})
	}
}

func (h *BotHandlers) RequestWithdrawal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := int64Param(w, r, "owner_id")
		if !ok {
			return
		}
		var body struct {
			Amount decimal.Decimal `json:"amount"`
			Wallet string          `json:"wallet"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		wd, err := h.commission.RequestWithdrawal(r.Context(), ownerID, body.Amount, body.Wallet)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "withdrawal": wd})
	}
}

func (h *BotHandlers) WithdrawToBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := int64Param(w, r, "owner_id")
		if !ok {
			return
		}
		var body struct {
			Amount decimal.Decimal `json:"amount"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		wd, bal, err := h.commission.WithdrawToBalance(r.Context(), ownerID, body.Amount)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "withdrawal": wd, "balance": bal})
	}
}
