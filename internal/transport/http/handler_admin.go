package httptransport

import (
	"net/http"
	"strconv"
	"time"

	"stars-engine/internal/apperr"
	"stars-engine/internal/commission"
	"stars-engine/internal/ledger"
	"stars-engine/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type AdminHandlers struct {
	store      *store.Store
	ledger     *ledger.Ledger
	commission *commission.Engine
}

func NewAdminHandlers(svc Services) *AdminHandlers {
	return &AdminHandlers{store: svc.Store, ledger: svc.Ledger, commission: svc.Commission}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.store.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "store": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "store": "up"})
	}
}

func queryInt64(r *http.Request, name string) int64 {
	n, _ := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	return n
}

func queryTime(r *http.Request, name string) *time.Time {
	v := r.URL.Query().Get(name)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

func writePage[T any](w http.ResponseWriter, items []T, limit, offset int) {
	if items == nil {
		items = []T{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit, "offset": offset})
}

func (h *AdminHandlers) Statistics() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := h.ledger.Statistics(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func (h *AdminHandlers) Accounts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		items, err := h.store.ListAccounts(r.Context(), limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writePage(w, items, limit, offset)
	}
}

func (h *AdminHandlers) Account() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := int64Param(w, r, "user_id")
		if !ok {
			return
		}
		acct, found, err := h.store.GetAccount(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !found {
			WriteHTTPError(w, http.StatusNotFound, apperr.ErrNotFound.Error())
			return
		}
		writeJSON(w, http.StatusOK, acct)
	}
}

func (h *AdminHandlers) Transactions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		f := store.TransactionFilter{
			UserID:  queryInt64(r, "user_id"),
			RefType: r.URL.Query().Get("ref_type"),
			RefID:   r.URL.Query().Get("ref_id"),
			From:    queryTime(r, "from"),
			To:      queryTime(r, "to"),
		}
		items, err := h.store.ListTransactions(r.Context(), f, limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writePage(w, items, limit, offset)
	}
}

func (h *AdminHandlers) Deposits() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		items, err := h.store.ListDeposits(r.Context(), queryInt64(r, "user_id"), limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writePage(w, items, limit, offset)
	}
}

func (h *AdminHandlers) Purchases() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		items, err := h.store.ListPurchases(r.Context(), queryInt64(r, "user_id"), limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writePage(w, items, limit, offset)
	}
}

func (h *AdminHandlers) Earnings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		items, err := h.store.ListEarnings(r.Context(), queryInt64(r, "owner_id"), queryInt64(r, "chat_id"), limit, offset)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writePage(w, items, limit, offset)
	}
}

func (h *AdminHandlers) AdjustBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := int64Param(w, r, "user_id")
		if !ok {
			return
		}
		var body struct {
			Delta  decimal.Decimal `json:"delta"`
			Reason string          `json:"reason"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		bal, err := h.ledger.Adjust(r.Context(), userID, body.Delta, body.Reason)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "balance": bal})
	}
}

func (h *AdminHandlers) BlockUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := int64Param(w, r, "user_id")
		if !ok {
			return
		}
		var body struct {
			Reason string `json:"reason"`
		}
		if r.ContentLength != 0 && !decodeBody(w, r, &body) {
			return
		}
		acct, err := h.ledger.Block(r.Context(), userID, body.Reason)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "account": acct})
	}
}

func (h *AdminHandlers) UnblockUser() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := int64Param(w, r, "user_id")
		if !ok {
			return
		}
		acct, err := h.ledger.Unblock(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "account": acct})
	}
}

func (h *AdminHandlers) BlockedUsers() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.ledger.BlockedUsers(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		if items == nil {
			items = []store.Account{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (h *AdminHandlers) Fee() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			var body struct {
				FeePercent decimal.Decimal `json:"fee_percent"`
			}
			if !decodeBody(w, r, &body) {
				return
			}
			if err := h.ledger.SetFeePercent(r.Context(), body.FeePercent); err != nil {
				writeError(w, r, err)
				return
			}
		}
		fee, err := h.ledger.FeePercent(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		internal, err := h.ledger.InternalBalance(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "fee_percent": fee, "internal_balance": internal})
	}
}

func (h *AdminHandlers) Partners() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.commission.Partners(r.Context())
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "tiers": h.commission.Tiers()})
	}
}

func (h *AdminHandlers) SetPartnerLevel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := int64Param(w, r, "owner_id")
		if !ok {
			return
		}
		var body struct {
			Level string `json:"level"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		lvl, err := h.commission.SetManualLevel(r.Context(), ownerID, body.Level)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "level": lvl})
	}
}

func (h *AdminHandlers) AdjustPartner() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := int64Param(w, r, "owner_id")
		if !ok {
			return
		}
		var body struct {
			Amount decimal.Decimal `json:"amount"`
			Reason string          `json:"reason"`
		}
		if !decodeBody(w, r, &body) {
			return
		}
		chat, err := h.commission.AdjustPartnerBalance(r.Context(), ownerID, body.Amount, body.Reason)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "chat": chat})
	}
}

func (h *AdminHandlers) Withdrawals() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.store.ListWithdrawals(r.Context(), r.URL.Query().Get("status"), queryInt64(r, "owner_id"))
		if err != nil {
			writeError(w, r, err)
			return
		}
		if items == nil {
			items = []store.Withdrawal{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

// ProcessWithdrawal handles approve, reject and complete.
func (h *AdminHandlers) ProcessWithdrawal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "withdrawal_id")
		var body struct {
			Comment string `json:"comment"`
			TxHash  string `json:"tx_hash"`
		}
		if r.ContentLength != 0 && !decodeBody(w, r, &body) {
			return
		}
		var (
			wd  store.Withdrawal
			err error
		)
		switch chi.URLParam(r, "action") {
		case "approve":
			wd, err = h.commission.Approve(r.Context(), id, body.Comment)
		case "reject":
			wd, err = h.commission.Reject(r.Context(), id, body.Comment)
		case "complete":
			wd, err = h.commission.Complete(r.Context(), id, body.TxHash)
		default:
			WriteHTTPError(w, http.StatusNotFound, "unknown_action")
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "withdrawal": wd})
	}
}

func (h *AdminHandlers) Flush() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h.ledger.Flush(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	}
}
