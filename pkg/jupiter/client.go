package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"
)

var (
	// ErrUnavailable is returned when no mirror produced an answer.
	ErrUnavailable = errors.New("jupiter unavailable")
	// ErrNoRoute is returned for quotes with a zero output amount.
	ErrNoRoute = errors.New("no route found")
)

// APIError is a non-2xx answer from a Jupiter endpoint.
type APIError struct {
	Status int
	Body   string
	URL    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jupiter %s returned %d: %s", e.URL, e.Status, e.Body)
}

func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Options configures a Client.
type Options struct {
	BaseURLs []string
	PriceURL string
	APIKey   string
	Timeout  time.Duration
}

// Client represents a Jupiter API client. Every call walks the configured
// mirrors in order.
type Client struct {
	baseURLs   []string
	priceURL   string
	apiKey     string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// NewClient creates a new Jupiter API client
func NewClient(opts Options, logger logrus.FieldLogger) *Client {
	if len(opts.BaseURLs) == 0 {
		opts.BaseURLs = []string{DefaultBaseURL}
	}
	if opts.PriceURL == "" {
		opts.PriceURL = DefaultPriceURL
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	bases := make([]string, len(opts.BaseURLs))
	for i, base := range opts.BaseURLs {
		bases[i] = strings.TrimRight(base, "/")
	}
	return &Client{
		baseURLs:   bases,
		priceURL:   opts.PriceURL,
		apiKey:     opts.APIKey,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger,
	}
}

// GetPrices fetches USD prices for given token mints
func (c *Client) GetPrices(ctx context.Context, tokenMints []string) (map[string]float64, error) {
	prices := make(map[string]float64)
	if len(tokenMints) == 0 {
		return prices, nil
	}

	query := url.Values{}
	query.Set("ids", strings.Join(tokenMints, ","))

	var priceResp PriceResponse
	if err := c.get(ctx, c.priceURL+"?"+query.Encode(), &priceResp); err != nil {
		return nil, fmt.Errorf("failed to call Jupiter Price API: %w", err)
	}

	for mint, data := range priceResp.Data {
		if data != nil && data.Price > 0 {
			prices[mint] = float64(data.Price)
		}
	}
	return prices, nil
}

// GetQuote fetches a swap quote, trying each mirror.
func (c *Client) GetQuote(ctx context.Context, params QuoteParams) (*QuoteResponse, error) {
	if params.Amount == 0 {
		return nil, fmt.Errorf("quote amount must be positive")
	}
	if params.SlippageBps == 0 {
		params.SlippageBps = DefaultSlippageBps
	}

	query := url.Values{}
	query.Set("inputMint", params.InputMint)
	query.Set("outputMint", params.OutputMint)
	query.Set("amount", strconv.FormatUint(params.Amount, 10))
	query.Set("slippageBps", strconv.Itoa(params.SlippageBps))
	query.Set("onlyDirectRoutes", strconv.FormatBool(params.OnlyDirectRoutes))

	var raw json.RawMessage
	if err := c.mirrors(ctx, func(base string) error {
		return c.get(ctx, base+"/quote?"+query.Encode(), &raw)
	}); err != nil {
		return nil, err
	}

	var quoteResp QuoteResponse
	if err := json.Unmarshal(raw, &quoteResp); err != nil {
		return nil, fmt.Errorf("failed to decode Jupiter Quote API response: %w", err)
	}
	quoteResp.Raw = raw

	// Basic validation: Check if we got a valid quote (outAmount > 0)
	outAmount, _ := strconv.ParseUint(quoteResp.OutAmount, 10, 64)
	if outAmount == 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, params.InputMint, params.OutputMint)
	}

	return &quoteResp, nil
}

// GetSwapTransaction asks Jupiter to build the transaction for quote.
func (c *Client) GetSwapTransaction(ctx context.Context, quote *QuoteResponse, userPubKey solana.PublicKey, opts SwapOptions) (*SwapResponse, error) {
	quoteJSON := quote.Raw
	if len(quoteJSON) == 0 {
		var err error
		if quoteJSON, err = json.Marshal(quote); err != nil {
			return nil, fmt.Errorf("failed to marshal quote: %w", err)
		}
	}

	swapReq := SwapRequest{
		UserPublicKey:                 userPubKey.String(),
		QuoteResponse:                 quoteJSON,
		WrapAndUnwrapSol:              true,
		UseSharedAccounts:             opts.UseSharedAccounts,
		AsLegacyTransaction:           opts.AsLegacyTransaction,
		ComputeUnitPriceMicroLamports: opts.PriorityFeeMicroLamports,
		DynamicComputeUnitLimit:       true,
	}

	var swapResp SwapResponse
	if err := c.mirrors(ctx, func(base string) error {
		return c.post(ctx, base+"/swap", swapReq, &swapResp)
	}); err != nil {
		return nil, err
	}

	if swapResp.SwapTransaction == "" {
		return nil, fmt.Errorf("Jupiter Swap API returned empty transaction")
	}
	return &swapResp, nil
}

// mirrors runs call against each base URL until one succeeds or fails with
// a non-retryable API error.
func (c *Client) mirrors(ctx context.Context, call func(base string) error) error {
	var lastErr error
	for _, base := range c.baseURLs {
		err := call(base)
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.WithField("mirror", base).Warnf("Jupiter mirror failed: %v", err)
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
}

func (c *Client) get(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, endpoint string, body, out interface{}) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body)), URL: req.URL.Path}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}
