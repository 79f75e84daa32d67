// Package httpapi exposes the wallet, swap and treasury services over HTTP.
package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"veilfi-wallet/pkg/deposit"
	"veilfi-wallet/pkg/jupiter"
	"veilfi-wallet/pkg/observability"
	"veilfi-wallet/pkg/pumpfun"
	"veilfi-wallet/pkg/session"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/swap"
	"veilfi-wallet/pkg/wallet"
)

const banner = "API Online - Veilfi Backend"

// Deps are the services behind the API. Nil optional services make their
// routes answer 503 NOT_CONFIGURED.
type Deps struct {
	Sessions *session.Manager
	Wallets  *wallet.Service
	Balances *sln.Balances
	Node     sln.RPC

	Jupiter  *jupiter.SwapService // optional, prices token balances
	Pumpfun  *pumpfun.Client      // optional
	SolPrice *sln.PriceService    // optional
	Router   *swap.Router
	Merchant *swap.Merchant  // optional
	Treasury *swap.Treasury  // optional
	Deposits *deposit.Tracker // optional

	TokenMint      string
	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	Metrics *observability.Metrics
	Logger  logrus.FieldLogger
}

// Server routes requests to the services.
type Server struct {
	deps    Deps
	logger  logrus.FieldLogger
	handler http.Handler
}

// NewServer builds the router and middleware chain.
func NewServer(deps Deps) *Server {
	s := &Server{deps: deps, logger: deps.Logger}
	if s.logger == nil {
		s.logger = logrus.StandardLogger()
	}

	r := mux.NewRouter()
	observed := observe(s.logger, deps.Metrics)
	r.Use(observed)

	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/auth/import", s.handleAuthImport).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/session/me", s.handleSessionMe).Methods(http.MethodGet)

	r.HandleFunc("/wallet/address", s.handleWalletAddress).Methods(http.MethodGet)
	r.HandleFunc("/wallet/balance", s.handleWalletBalance).Methods(http.MethodGet)
	r.HandleFunc("/wallet/send", s.handleSendSOL).Methods(http.MethodPost)
	r.HandleFunc("/wallet/send-spl", s.handleSendSPL).Methods(http.MethodPost)

	r.HandleFunc("/user/create", s.handleUserCreate).Methods(http.MethodPost)
	r.HandleFunc("/user/import", s.handleUserImport).Methods(http.MethodPost)
	r.HandleFunc("/user/balance", s.handleUserBalance).Methods(http.MethodPost)
	r.HandleFunc("/user/withdraw/sol", s.handleWithdrawSOL).Methods(http.MethodPost)
	r.HandleFunc("/user/withdraw/spl", s.handleWithdrawSPL).Methods(http.MethodPost)
	r.HandleFunc("/activity/{userId}", s.handleActivity).Methods(http.MethodGet)

	r.HandleFunc("/swap/price", s.handleSwapPrice).Methods(http.MethodGet)
	r.HandleFunc("/swap/quote", s.handleSwapQuote).Methods(http.MethodPost)
	r.HandleFunc("/swap/build", s.handleSwapBuild).Methods(http.MethodPost)
	r.HandleFunc("/swap/execute", s.handleSwapExecute).Methods(http.MethodPost)
	r.HandleFunc("/swap/prepare/buy", s.handlePrepareBuy).Methods(http.MethodPost)
	r.HandleFunc("/swap/prepare/sell", s.handlePrepareSell).Methods(http.MethodPost)
	r.HandleFunc("/swap/orders", s.handleListOrders).Methods(http.MethodGet)
	r.HandleFunc("/swap/orders/{id}", s.handleGetOrder).Methods(http.MethodGet)

	r.HandleFunc("/buy/init", s.handleBuyInit).Methods(http.MethodPost)
	r.HandleFunc("/buy/confirm", s.handleBuyConfirm).Methods(http.MethodPost)

	r.HandleFunc("/deposit/check", s.handleDepositCheck).Methods(http.MethodGet)
	r.HandleFunc("/tx/{signature}", s.handleTx).Methods(http.MethodGet)

	// Router middleware only runs on matched routes.
	r.NotFoundHandler = observed(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, apiError{Error: "NOT_FOUND"})
	}))
	r.MethodNotAllowedHandler = observed(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, apiError{Error: "METHOD_NOT_ALLOWED"})
	}))

	var h http.Handler = r
	if deps.RateLimitRPS > 0 {
		h = newIPRateLimiter(deps.RateLimitRPS, deps.RateLimitBurst).middleware(deps.Metrics, h)
	}
	h = cors(deps.CORSOrigins, h)
	s.handler = recoverer(s.logger, h)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, banner)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}
