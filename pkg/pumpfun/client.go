// Package pumpfun reads pump.fun token prices and trades through the
// pumpportal local-transaction API.
package pumpfun

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"veilfi-wallet/pkg/models"
	sln "veilfi-wallet/pkg/solana"
)

const (
	SourceFallback = "fallback"

	userAgent = "Veilfi/1.0"
)

// ErrTradeRejected is returned when pumpportal does not produce a transaction.
var ErrTradeRejected = errors.New("pumpportal rejected trade")

// Price is a token price in SOL and USD.
type Price struct {
	Mint     string          `json:"mint"`
	PriceSol float64         `json:"priceSol"`
	PriceUsd float64         `json:"priceUsd"`
	Source   string          `json:"source"`
	Meta     json.RawMessage `json:"sourceMeta,omitempty"`
}

// Options configures a Client.
type Options struct {
	PriceURLs        []string // token endpoints; the mint is appended
	PortalURL        string
	FallbackPriceSol float64
	FallbackPriceUsd float64
	Timeout          time.Duration
}

// Client queries pump.fun mirrors and pumpportal.
type Client struct {
	priceURLs   []string
	portalURL   string
	fallbackSol float64
	fallbackUsd float64
	httpClient  *http.Client
	logger      logrus.FieldLogger
}

// NewClient creates a pump.fun client.
func NewClient(opts Options, logger logrus.FieldLogger) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	urls := make([]string, len(opts.PriceURLs))
	for i, u := range opts.PriceURLs {
		urls[i] = strings.TrimRight(u, "/")
	}
	return &Client{
		priceURLs:   urls,
		portalURL:   strings.TrimRight(opts.PortalURL, "/"),
		fallbackSol: opts.FallbackPriceSol,
		fallbackUsd: opts.FallbackPriceUsd,
		httpClient:  &http.Client{Timeout: opts.Timeout},
		logger:      logger,
	}
}

// GetPrice tries each pump.fun mirror in order and returns the first price it
// can read. When none answers, the configured fallback is returned.
func (c *Client) GetPrice(ctx context.Context, mint string) *Price {
	for _, base := range c.priceURLs {
		endpoint := base + "/" + mint
		body, err := c.get(ctx, endpoint)
		if err != nil {
			c.logger.WithField("url", endpoint).Debugf("pump.fun price lookup failed: %v", err)
			continue
		}

		var doc map[string]interface{}
		if err := json.Unmarshal(body, &doc); err != nil {
			continue
		}
		priceSol, okSol := lookup(doc, "priceSol", "data.priceSol", "price.sol", "meta.priceSol", "market_price.sol")
		priceUsd, okUsd := lookup(doc, "priceUsd", "data.priceUsd", "price.usd", "meta.priceUsd", "market_price.usd")
		if !okSol && !okUsd {
			continue
		}
		if !okSol {
			priceSol = c.fallbackSol
		}
		if !okUsd {
			priceUsd = c.fallbackUsd
		}
		return &Price{Mint: mint, PriceSol: priceSol, PriceUsd: priceUsd, Source: endpoint, Meta: body}
	}

	return &Price{
		Mint:     mint,
		PriceSol: c.fallbackSol,
		PriceUsd: c.fallbackUsd,
		Source:   SourceFallback,
		Meta:     json.RawMessage(`{"note":"fallback used"}`),
	}
}

// lookup returns the first dotted path that resolves to a number or a
// numeric string.
func lookup(doc map[string]interface{}, paths ...string) (float64, bool) {
	for _, path := range paths {
		var cur interface{} = doc
		for _, key := range strings.Split(path, ".") {
			m, ok := cur.(map[string]interface{})
			if !ok {
				cur = nil
				break
			}
			cur = m[key]
		}
		switch v := cur.(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

type portalBalance struct {
	Mint     string      `json:"mint"`
	Balance  json.Number `json:"balance"`
	Decimals uint8       `json:"decimals"`
	UiAmount json.Number `json:"uiAmount"`
}

// GetBalances lists pump.fun token holdings of owner as reported by
// pumpportal. Failures yield an empty list.
func (c *Client) GetBalances(ctx context.Context, owner string) []models.TokenBalance {
	endpoint := fmt.Sprintf("%s/wallet/%s/balances", c.portalURL, owner)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		c.logger.WithField("wallet", owner).Warnf("pumpportal balances failed: %v", err)
		return []models.TokenBalance{}
	}

	var resp struct {
		Balances []portalBalance `json:"balances"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		c.logger.WithField("wallet", owner).Warnf("pumpportal balances unreadable: %v", err)
		return []models.TokenBalance{}
	}

	out := make([]models.TokenBalance, 0, len(resp.Balances))
	for _, b := range resp.Balances {
		out = append(out, models.TokenBalance{
			Mint:           b.Mint,
			Amount:         b.Balance.String(),
			Decimals:       b.Decimals,
			UiAmountString: b.UiAmount.String(),
		})
	}
	return out
}

// TradeRequest is a pumpportal trade-local order.
type TradeRequest struct {
	PublicKey        string  `json:"publicKey"`
	Action           string  `json:"action"` // buy | sell
	Mint             string  `json:"mint"`
	Amount           string  `json:"amount"` // tokens, SOL, or a percentage such as "100%"
	DenominatedInSol bool    `json:"-"`
	Slippage         int     `json:"slippage"`    // percent
	PriorityFee      float64 `json:"priorityFee"` // SOL
	Pool             string  `json:"pool"`
}

// BuildTrade asks pumpportal for an unsigned transaction.
func (c *Client) BuildTrade(ctx context.Context, req TradeRequest) (*solana.Transaction, error) {
	if req.Action != "buy" && req.Action != "sell" {
		return nil, fmt.Errorf("%w: unknown action %q", ErrTradeRejected, req.Action)
	}
	if req.Pool == "" {
		req.Pool = "auto"
	}

	payload := struct {
		TradeRequest
		DenominatedInSol string `json:"denominatedInSol"`
	}{req, strconv.FormatBool(req.DenominatedInSol)}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.portalURL+"/trade-local", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pumpportal request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrTradeRejected, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode pumpportal transaction: %w", err)
	}
	return tx, nil
}

// Execute builds the trade for wallet, signs it and waits for confirmation.
func (c *Client) Execute(ctx context.Context, sender *sln.Sender, wallet solana.PrivateKey, req TradeRequest) (solana.Signature, error) {
	req.PublicKey = wallet.PublicKey().String()
	tx, err := c.BuildTrade(ctx, req)
	if err != nil {
		return solana.Signature{}, err
	}
	return sender.SignAndSend(ctx, tx, false, wallet)
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}
