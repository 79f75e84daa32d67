package httpapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/mux"

	"veilfi-wallet/pkg/models"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/swap"
)

type swapRequest struct {
	InputMint     string     `json:"inputMint"`
	OutputMint    string     `json:"outputMint"`
	Amount        flexString `json:"amount"`
	SlippageBps   int        `json:"slippageBps"`
	Provider      string     `json:"provider"`
	UserPublicKey string     `json:"userPublicKey"`

	// Custodial execution on behalf of a database user.
	UserID     string `json:"userId"`
	Passphrase string `json:"passphrase"`
}

func (req *swapRequest) toSwap() (swap.Request, error) {
	if err := requireFields("inputMint", req.InputMint, "outputMint", req.OutputMint, "amount", req.Amount.String()); err != nil {
		return swap.Request{}, err
	}
	amount, err := sln.ParseBaseUnits(req.Amount.String())
	if err != nil {
		return swap.Request{}, err
	}
	return swap.Request{
		InputMint:   strings.TrimSpace(req.InputMint),
		OutputMint:  strings.TrimSpace(req.OutputMint),
		Amount:      amount,
		SlippageBps: req.SlippageBps,
	}, nil
}

// decodeSwap reads a swap body and checks the router is available.
func (s *Server) decodeSwap(w http.ResponseWriter, r *http.Request) (*swapRequest, swap.Request, error) {
	var body swapRequest
	if err := decode(w, r, &body); err != nil {
		return nil, swap.Request{}, err
	}
	if s.deps.Router == nil {
		return nil, swap.Request{}, swap.ErrNotConfigured
	}
	req, err := body.toSwap()
	return &body, req, err
}

func (s *Server) handleSwapQuote(w http.ResponseWriter, r *http.Request) {
	body, req, err := s.decodeSwap(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	quote, err := s.deps.Router.Quote(r.Context(), body.Provider, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "quote": quote})
}

func (s *Server) handleSwapBuild(w http.ResponseWriter, r *http.Request) {
	body, req, err := s.decodeSwap(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := requireFields("userPublicKey", body.UserPublicKey); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, err := solana.PublicKeyFromBase58(strings.TrimSpace(body.UserPublicKey))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: userPublicKey: %v", swap.ErrInvalidRequest, err))
		return
	}

	built, err := s.deps.Router.Build(r.Context(), body.Provider, req, user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":           true,
		"provider":     built.Provider,
		"quote":        built.Quote,
		"transactions": built.Transactions,
	})
}

// handleSwapExecute signs with the session wallet, or with a database
// user's key when userId is given.
func (s *Server) handleSwapExecute(w http.ResponseWriter, r *http.Request) {
	body, req, err := s.decodeSwap(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	var signer solana.PrivateKey
	if body.UserID != "" {
		signer, err = s.deps.Wallets.Signer(r.Context(), body.UserID, body.Passphrase)
	} else {
		signer, err = s.sessionWallet(r)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Router.Execute(r.Context(), body.Provider, req, signer, body.UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	explorers := make([]string, 0, len(res.Signatures))
	for _, sig := range res.Signatures {
		explorers = append(explorers, sln.ExplorerURL(sig))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"provider":   res.Provider,
		"quote":      res.Quote,
		"signatures": res.Signatures,
		"explorer":   explorers,
	})
}

func (s *Server) handleSwapPrice(w http.ResponseWriter, r *http.Request) {
	if s.deps.Pumpfun == nil {
		s.writeError(w, r, fmt.Errorf("%w: pump.fun client", swap.ErrNotConfigured))
		return
	}
	mint := strings.TrimSpace(r.URL.Query().Get("mint"))
	if mint == "" {
		mint = s.deps.TokenMint
	}
	if mint == "" {
		s.writeError(w, r, fmt.Errorf("%w: mint", errMissingParams))
		return
	}
	if _, err := solana.PublicKeyFromBase58(mint); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: mint %q: %v", swap.ErrInvalidRequest, mint, err))
		return
	}

	price := s.deps.Pumpfun.GetPrice(r.Context(), mint)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":         true,
		"mint":       price.Mint,
		"priceSol":   price.PriceSol,
		"priceUsd":   price.PriceUsd,
		"source":     price.Source,
		"sourceMeta": price.Meta,
	})
}

type prepareRequest struct {
	PayerPubkey  string     `json:"payerPubkey"`
	BuyWith      string     `json:"buyWith"`
	Amount       flexString `json:"amount"`
	SellerPubkey string     `json:"sellerPubkey"`
	SellWith     string     `json:"sellWith"`
	AmountTokens flexString `json:"amountTokens"`
}

func (s *Server) handlePrepareBuy(w http.ResponseWriter, r *http.Request) {
	var req prepareRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Merchant == nil {
		s.writeError(w, r, swap.ErrNotConfigured)
		return
	}
	out, err := s.deps.Merchant.PrepareBuy(r.Context(), req.PayerPubkey, req.BuyWith, req.Amount.String())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePrepareSell(w http.ResponseWriter, r *http.Request) {
	var req prepareRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Merchant == nil {
		s.writeError(w, r, swap.ErrNotConfigured)
		return
	}
	out, err := s.deps.Merchant.PrepareSell(r.Context(), req.SellerPubkey, req.SellWith, req.AmountTokens.String())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if s.deps.Merchant == nil {
		s.writeError(w, r, swap.ErrNotConfigured)
		return
	}
	orders, err := s.deps.Merchant.ListOrders(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "orders": orders})
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	if s.deps.Merchant == nil {
		s.writeError(w, r, swap.ErrNotConfigured)
		return
	}
	order, err := s.deps.Merchant.GetOrder(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "order": order})
}

type buyRequest struct {
	OrderID          string `json:"orderId"`
	PaymentSignature string `json:"paymentSignature"`
	Buyer            string `json:"buyer"`
}

func (s *Server) handleBuyInit(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Treasury == nil {
		s.writeError(w, r, fmt.Errorf("%w: treasury", swap.ErrNotConfigured))
		return
	}
	out, err := s.deps.Treasury.InitBuy(r.Context(), req.Buyer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleBuyConfirm(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.deps.Treasury == nil {
		s.writeError(w, r, fmt.Errorf("%w: treasury", swap.ErrNotConfigured))
		return
	}
	out, err := s.deps.Treasury.ConfirmBuy(r.Context(), req.OrderID, req.PaymentSignature, req.Buyer)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
