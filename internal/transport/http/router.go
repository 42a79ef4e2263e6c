package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"stars-engine/internal/commission"
	"stars-engine/internal/config"
	"stars-engine/internal/deposit"
	"stars-engine/internal/gateway"
	"stars-engine/internal/ledger"
	"stars-engine/internal/purchase"
	"stars-engine/internal/store"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// Services are the components the HTTP surface exposes.
type Services struct {
	Store      *store.Store
	Ledger     *ledger.Ledger
	Deposits   *deposit.Reconciler
	Gateways   *gateway.Service
	Purchases  *purchase.Saga
	Commission *commission.Engine
	Prices     PriceSource
}

func NewRouter(svc Services, server config.ServerConfig, bot config.BotConfig) *chi.Mux {
	botHandlers := NewBotHandlers(svc)
	adminHandlers := NewAdminHandlers(svc)
	verifier := NewAdminVerifier(server.AdminAPIKeyHash)
	if server.AdminAPIKeyHash == "" {
		log.Warn().Msg("ADMIN_API_KEY_HASH is empty; admin API is locked")
	}
	if bot.ServiceKey == "" {
		log.Warn().Msg("BOT_SERVICE_KEY is empty; bot API is unauthenticated")
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Route("/bot", func(r chi.Router) {
			r.Use(ServiceKeyMiddleware(bot.ServiceKey))
			r.Get("/price", botHandlers.Price())
			r.Get("/users/{user_id}/balance", botHandlers.Balance())
			r.Post("/users/{user_id}/deposits", botHandlers.IssueDeposit())
			r.Post("/users/{user_id}/deposits/check", botHandlers.CheckDeposit())
			r.Post("/users/{user_id}/invoices", botHandlers.CreateInvoice())
			r.Get("/invoices/{family}/{invoice_id}", botHandlers.CheckInvoice())
			r.Post("/purchases/quote", botHandlers.Quote())
			r.Post("/purchases/{purchase_id}/confirm", botHandlers.Confirm())
			r.Post("/chats", botHandlers.RegisterChat())
			r.Delete("/chats/{chat_id}", botHandlers.DeactivateChat())
			r.Post("/wagers", botHandlers.Wager())
			r.Get("/partners/{owner_id}", botHandlers.PartnerOverview())
			r.Post("/partners/{owner_id}/withdrawals", botHandlers.RequestWithdrawal())
			r.Post("/partners/{owner_id}/withdrawals/balance", botHandlers.WithdrawToBalance())
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(verifier))
			r.Use(BodyCaptureMiddleware(4096))
			r.Get("/statistics", adminHandlers.Statistics())
			r.Get("/accounts", adminHandlers.Accounts())
			r.Get("/accounts/{user_id}", adminHandlers.Account())
			r.Post("/accounts/{user_id}/adjust", adminHandlers.AdjustBalance())
			r.Get("/accounts/blocked", adminHandlers.BlockedUsers())
			r.Post("/accounts/{user_id}/block", adminHandlers.BlockUser())
			r.Post("/accounts/{user_id}/unblock", adminHandlers.UnblockUser())
			r.Get("/transactions", adminHandlers.Transactions())
			r.Get("/deposits", adminHandlers.Deposits())
			r.Get("/purchases", adminHandlers.Purchases())
			r.Get("/earnings", adminHandlers.Earnings())
			r.MethodFunc(http.MethodGet, "/settings/fee", adminHandlers.Fee())
			r.MethodFunc(http.MethodPut, "/settings/fee", adminHandlers.Fee())
			r.Get("/partners", adminHandlers.Partners())
			r.Put("/partners/{owner_id}/level", adminHandlers.SetPartnerLevel())
			r.Post("/partners/{owner_id}/adjust", adminHandlers.AdjustPartner())
			r.Get("/withdrawals", adminHandlers.Withdrawals())
			r.Post("/withdrawals/{withdrawal_id}/{action}", adminHandlers.ProcessWithdrawal())
			r.Post("/flush", adminHandlers.Flush())
			r.Get("/debug/vars", expvar.Handler().ServeHTTP)
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
