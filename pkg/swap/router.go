package swap

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"veilfi-wallet/pkg/jupiter"
	"veilfi-wallet/pkg/models"
	"veilfi-wallet/pkg/observability"
	"veilfi-wallet/pkg/pumpfun"
	"veilfi-wallet/pkg/raydium"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/storage"
)

// Providers
const (
	ProviderAuto    = "auto"
	ProviderJupiter = "jupiter"
	ProviderRaydium = "raydium"
	ProviderPumpfun = "pumpfun"
)

// pump.fun bonding curve tokens use six decimals.
const pumpDecimals = 6

// Request is a swap of Amount base units of InputMint into OutputMint.
type Request struct {
	InputMint   string `json:"inputMint"`
	OutputMint  string `json:"outputMint"`
	Amount      uint64 `json:"amount"`
	SlippageBps int    `json:"slippageBps,omitempty"`
}

func (r *Request) validate(defaultSlippage int) error {
	if r.InputMint == "" || r.OutputMint == "" || r.Amount == 0 {
		return ErrMissingParams
	}
	if r.InputMint == r.OutputMint {
		return fmt.Errorf("%w: input and output mint are the same", ErrInvalidRequest)
	}
	for _, mint := range []string{r.InputMint, r.OutputMint} {
		if _, err := solana.PublicKeyFromBase58(mint); err != nil {
			return fmt.Errorf("%w: mint %q: %v", ErrInvalidRequest, mint, err)
		}
	}
	if r.SlippageBps == 0 {
		r.SlippageBps = defaultSlippage
	}
	if r.SlippageBps < 0 || r.SlippageBps > 10_000 {
		return fmt.Errorf("%w: slippageBps out of range", ErrInvalidRequest)
	}
	return nil
}

// Quote is a provider-neutral swap quote.
type Quote struct {
	Provider             string      `json:"provider"`
	InputMint            string      `json:"inputMint"`
	OutputMint           string      `json:"outputMint"`
	InAmount             string      `json:"inAmount"`
	OutAmount            string      `json:"outAmount"`
	OtherAmountThreshold string      `json:"otherAmountThreshold,omitempty"`
	SlippageBps          int         `json:"slippageBps"`
	PriceImpactPct       string      `json:"priceImpactPct,omitempty"`
	Estimated            bool        `json:"estimated,omitempty"`
	Route                interface{} `json:"route,omitempty"`
}

// Built holds unsigned base64 transactions in execution order.
type Built struct {
	Provider     string   `json:"provider"`
	Quote        *Quote   `json:"quote"`
	Transactions []string `json:"transactions"`
}

// Result is an executed swap.
type Result struct {
	Provider   string   `json:"provider"`
	Quote      *Quote   `json:"quote,omitempty"`
	Signatures []string `json:"signatures"`
}

// RouterDeps wires a Router. Any aggregator may be nil.
type RouterDeps struct {
	Jupiter     *jupiter.SwapService
	Raydium     *raydium.Client
	Pumpfun     *pumpfun.Client
	Sender      *sln.Sender
	Activities  storage.ActivityStore
	Metrics     *observability.Metrics
	SlippageBps int
	// Retries and RetryDelay bound Jupiter execution attempts.
	Retries    int
	RetryDelay time.Duration
	Logger     logrus.FieldLogger
}

// Router picks an aggregator per request and falls back from Jupiter to
// Raydium when the provider is "auto".
type Router struct {
	RouterDeps
}

// NewRouter creates a swap router.
func NewRouter(deps RouterDeps) *Router {
	if deps.SlippageBps == 0 {
		deps.SlippageBps = jupiter.DefaultSlippageBps
	}
	if deps.Retries == 0 {
		deps.Retries = 3
	}
	if deps.RetryDelay == 0 {
		deps.RetryDelay = 2 * time.Second
	}
	return &Router{RouterDeps: deps}
}

func (r *Router) providers(provider string) ([]string, error) {
	var out []string
	switch provider {
	case "", ProviderAuto:
		if r.Jupiter != nil {
			out = append(out, ProviderJupiter)
		}
		if r.Raydium != nil {
			out = append(out, ProviderRaydium)
		}
	case ProviderJupiter:
		if r.Jupiter != nil {
			out = append(out, ProviderJupiter)
		}
	case ProviderRaydium:
		if r.Raydium != nil {
			out = append(out, ProviderRaydium)
		}
	case ProviderPumpfun:
		if r.Pumpfun != nil {
			out = append(out, ProviderPumpfun)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: provider %q", ErrNotConfigured, provider)
	}
	return out, nil
}

// Quote returns the first quote a provider produces.
func (r *Router) Quote(ctx context.Context, provider string, req Request) (*Quote, error) {
	if err := req.validate(r.SlippageBps); err != nil {
		return nil, err
	}
	providers, err := r.providers(provider)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, p := range providers {
		q, err := r.quoteWith(ctx, p, req)
		if err == nil {
			return q, nil
		}
		lastErr = err
		r.Metrics.RecordAggregatorError(p, "quote")
		r.Logger.WithField("provider", p).Warnf("quote failed: %v", err)
	}
	return nil, lastErr
}

// Build returns unsigned transactions for user to sign client side.
func (r *Router) Build(ctx context.Context, provider string, req Request, user solana.PublicKey) (*Built, error) {
	if err := req.validate(r.SlippageBps); err != nil {
		return nil, err
	}
	providers, err := r.providers(provider)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, p := range providers {
		built, err := r.buildWith(ctx, p, req, user)
		if err == nil {
			return built, nil
		}
		lastErr = err
		r.Metrics.RecordAggregatorError(p, "build")
		r.Logger.WithField("provider", p).Warnf("build failed: %v", err)
	}
	return nil, lastErr
}

// Execute swaps from wallet and records a swap activity for userID when
// given. A provider is only abandoned for the next one when nothing of its
// attempt can still land on chain.
func (r *Router) Execute(ctx context.Context, provider string, req Request, wallet solana.PrivateKey, userID string) (*Result, error) {
	if err := req.validate(r.SlippageBps); err != nil {
		return nil, err
	}
	providers, err := r.providers(provider)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, p := range providers {
		res, err := r.executeWith(ctx, p, req, wallet)
		r.Metrics.RecordSwap(p, err)
		if err == nil {
			r.recordActivity(ctx, userID, req, res)
			return res, nil
		}
		lastErr = err
		r.Logger.WithFields(logrus.Fields{"provider": p, "wallet": wallet.PublicKey().String()}).Warnf("swap failed: %v", err)
		if errors.Is(err, sln.ErrConfirmTimeout) || (res != nil && len(res.Signatures) > 0) {
			return res, err
		}
	}
	return nil, lastErr
}

func (r *Router) quoteWith(ctx context.Context, provider string, req Request) (*Quote, error) {
	switch provider {
	case ProviderJupiter:
		q, err := r.Jupiter.Quote(ctx, jupiterParams(req))
		if err != nil {
			return nil, err
		}
		return fromJupiter(q), nil
	case ProviderRaydium:
		c, err := r.Raydium.ComputeSwapBaseIn(ctx, req.InputMint, req.OutputMint, req.Amount, req.SlippageBps)
		if err != nil {
			return nil, err
		}
		return fromRaydium(c), nil
	case ProviderPumpfun:
		return r.pumpQuote(ctx, req)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
}

func (r *Router) buildWith(ctx context.Context, provider string, req Request, user solana.PublicKey) (*Built, error) {
	switch provider {
	case ProviderJupiter:
		b, err := r.Jupiter.BuildSwap(ctx, jupiterParams(req), user)
		if err != nil {
			return nil, err
		}
		return &Built{Provider: provider, Quote: fromJupiter(b.Quote), Transactions: []string{b.Transaction}}, nil
	case ProviderRaydium:
		c, err := r.Raydium.ComputeSwapBaseIn(ctx, req.InputMint, req.OutputMint, req.Amount, req.SlippageBps)
		if err != nil {
			return nil, err
		}
		txs, err := r.Raydium.BuildSwapTransactions(ctx, c, user, r.raydiumFee(ctx))
		if err != nil {
			return nil, err
		}
		return &Built{Provider: provider, Quote: fromRaydium(c), Transactions: txs}, nil
	case ProviderPumpfun:
		q, err := r.pumpQuote(ctx, req)
		if err != nil {
			return nil, err
		}
		trade, err := r.pumpTrade(req)
		if err != nil {
			return nil, err
		}
		trade.PublicKey = user.String()
		tx, err := r.Pumpfun.BuildTrade(ctx, trade)
		if err != nil {
			return nil, err
		}
		raw, err := tx.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("failed to encode transaction: %w", err)
		}
		return &Built{Provider: provider, Quote: q, Transactions: []string{base64.StdEncoding.EncodeToString(raw)}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
}

func (r *Router) executeWith(ctx context.Context, provider string, req Request, wallet solana.PrivateKey) (*Result, error) {
	switch provider {
	case ProviderJupiter:
		sig, q, err := r.Jupiter.ExecuteSwap(ctx, wallet, jupiterParams(req), r.Retries, r.RetryDelay)
		if err != nil {
			if !sig.IsZero() {
				return &Result{Provider: provider, Signatures: []string{sig.String()}}, err
			}
			return nil, err
		}
		return &Result{Provider: provider, Quote: fromJupiter(q), Signatures: []string{sig.String()}}, nil
	case ProviderRaydium:
		c, err := r.Raydium.ComputeSwapBaseIn(ctx, req.InputMint, req.OutputMint, req.Amount, req.SlippageBps)
		if err != nil {
			return nil, err
		}
		txs, err := r.Raydium.BuildSwapTransactions(ctx, c, wallet.PublicKey(), r.raydiumFee(ctx))
		if err != nil {
			return nil, err
		}
		sigs, err := r.Raydium.Execute(ctx, r.Sender, wallet, txs)
		res := &Result{Provider: provider, Quote: fromRaydium(c), Signatures: signatureStrings(sigs)}
		return res, err
	case ProviderPumpfun:
		q, err := r.pumpQuote(ctx, req)
		if err != nil {
			return nil, err
		}
		trade, err := r.pumpTrade(req)
		if err != nil {
			return nil, err
		}
		sig, err := r.Pumpfun.Execute(ctx, r.Sender, wallet, trade)
		if err != nil {
			if !sig.IsZero() {
				return &Result{Provider: provider, Signatures: []string{sig.String()}}, err
			}
			return nil, err
		}
		return &Result{Provider: provider, Quote: q, Signatures: []string{sig.String()}}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
}

func (r *Router) raydiumFee(ctx context.Context) uint64 {
	fee, err := r.Raydium.PriorityFee(ctx)
	if err != nil || fee == 0 {
		return r.Sender.PriorityFee
	}
	return fee
}

// pumpQuote estimates a bonding curve trade from the current pump.fun price.
func (r *Router) pumpQuote(ctx context.Context, req Request) (*Quote, error) {
	wsol := sln.WrappedSolMint.String()
	if req.InputMint != wsol && req.OutputMint != wsol {
		return nil, fmt.Errorf("%w: pump.fun trades against SOL only", ErrInvalidRequest)
	}

	mint := req.OutputMint
	if req.OutputMint == wsol {
		mint = req.InputMint
	}
	price := r.Pumpfun.GetPrice(ctx, mint)
	if price.PriceSol <= 0 || price.Source == pumpfun.SourceFallback {
		return nil, fmt.Errorf("%w: no pump.fun price for %s", ErrProviderRejected, mint)
	}
	priceSol := decimal.NewFromFloat(price.PriceSol)

	amount := decimal.NewFromUint64(req.Amount)
	var out decimal.Decimal
	if req.InputMint == wsol {
		out = amount.Shift(-9).Div(priceSol).Shift(pumpDecimals).Floor()
	} else {
		out = amount.Shift(-pumpDecimals).Mul(priceSol).Shift(9).Floor()
	}

	return &Quote{
		Provider:    ProviderPumpfun,
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		InAmount:    strconv.FormatUint(req.Amount, 10),
		OutAmount:   out.String(),
		SlippageBps: req.SlippageBps,
		Estimated:   true,
		Route:       map[string]interface{}{"priceSol": price.PriceSol, "source": price.Source},
	}, nil
}

func (r *Router) pumpTrade(req Request) (pumpfun.TradeRequest, error) {
	wsol := sln.WrappedSolMint.String()
	slippage := req.SlippageBps / 100
	if slippage < 1 {
		slippage = 1
	}
	fee, _ := decimal.NewFromUint64(r.Sender.PriorityFeeLamports(200_000)).Shift(-9).Float64()

	switch wsol {
	case req.InputMint:
		return pumpfun.TradeRequest{
			Action:           "buy",
			Mint:             req.OutputMint,
			Amount:           sln.LamportsToSOL(req.Amount),
			DenominatedInSol: true,
			Slippage:         slippage,
			PriorityFee:      fee,
		}, nil
	case req.OutputMint:
		return pumpfun.TradeRequest{
			Action:      "sell",
			Mint:        req.InputMint,
			Amount:      sln.BaseUnitsToUI(req.Amount, pumpDecimals),
			Slippage:    slippage,
			PriorityFee: fee,
		}, nil
	}
	return pumpfun.TradeRequest{}, fmt.Errorf("%w: pump.fun trades against SOL only", ErrInvalidRequest)
}

func (r *Router) recordActivity(ctx context.Context, userID string, req Request, res *Result) {
	if userID == "" || r.Activities == nil || len(res.Signatures) == 0 {
		return
	}
	metadata := map[string]interface{}{
		"provider":   res.Provider,
		"outputMint": req.OutputMint,
		"signatures": res.Signatures,
	}
	if res.Quote != nil {
		metadata["outAmount"] = res.Quote.OutAmount
	}
	activity := &models.Activity{
		UserID:    userID,
		Type:      models.ActivitySwap,
		Token:     req.InputMint,
		Amount:    strconv.FormatUint(req.Amount, 10),
		Signature: res.Signatures[len(res.Signatures)-1],
		Metadata:  metadata,
	}
	if err := r.Activities.Insert(ctx, activity); err != nil {
		r.Logger.WithError(err).WithField("user", userID).Error("failed to record swap activity")
	}
}

func jupiterParams(req Request) jupiter.QuoteParams {
	return jupiter.QuoteParams{
		InputMint:   req.InputMint,
		OutputMint:  req.OutputMint,
		Amount:      req.Amount,
		SlippageBps: req.SlippageBps,
	}
}

func fromJupiter(q *jupiter.QuoteResponse) *Quote {
	if q == nil {
		return nil
	}
	var route interface{} = q.RoutePlan
	if len(q.Raw) > 0 {
		route = q.Raw
	}
	return &Quote{
		Provider:             ProviderJupiter,
		InputMint:            q.InputMint,
		OutputMint:           q.OutputMint,
		InAmount:             q.InAmount,
		OutAmount:            q.OutAmount,
		OtherAmountThreshold: q.OtherAmountThreshold,
		SlippageBps:          q.SlippageBps,
		PriceImpactPct:       q.PriceImpactPct,
		Route:                route,
	}
}

func fromRaydium(c *raydium.SwapCompute) *Quote {
	return &Quote{
		Provider:             ProviderRaydium,
		InputMint:            c.Data.InputMint,
		OutputMint:           c.Data.OutputMint,
		InAmount:             c.Data.InputAmount,
		OutAmount:            c.Data.OutputAmount,
		OtherAmountThreshold: c.Data.OtherAmountThreshold,
		SlippageBps:          c.Data.SlippageBps,
		PriceImpactPct:       strconv.FormatFloat(c.Data.PriceImpactPct, 'f', -1, 64),
	}
}

func signatureStrings(sigs []solana.Signature) []string {
	out := make([]string, len(sigs))
	for i, sig := range sigs {
		out[i] = sig.String()
	}
	return out
}
