// Package raydium talks to the Raydium trade API, which quotes swaps and
// returns ready-to-sign transactions.
package raydium

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

	sln "veilfi-wallet/pkg/solana"
)

const (
	DefaultSwapHost = "https://transaction-v1.raydium.io"
	DefaultAPIHost  = "https://api-v3.raydium.io"

	txVersion = "V0"
)

// ErrNoRoute is returned when Raydium cannot route the pair.
var ErrNoRoute = errors.New("raydium: no route")

// APIError is a failed Raydium call: either a non-2xx status or a body with
// success=false.
type APIError struct {
	Status int
	Msg    string
	URL    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("raydium %s returned %d: %s", e.URL, e.Status, e.Msg)
}

// SwapCompute is the compute/swap-base-in answer. Raw is echoed back when
// requesting the transaction.
type SwapCompute struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Version string `json:"version"`
	Msg     string `json:"msg,omitempty"`
	Data    struct {
		SwapType             string  `json:"swapType"`
		InputMint            string  `json:"inputMint"`
		InputAmount          string  `json:"inputAmount"`
		OutputMint           string  `json:"outputMint"`
		OutputAmount         string  `json:"outputAmount"`
		OtherAmountThreshold string  `json:"otherAmountThreshold"`
		SlippageBps          int     `json:"slippageBps"`
		PriceImpactPct       float64 `json:"priceImpactPct"`
	} `json:"data"`

	Raw json.RawMessage `json:"-"`
}

type swapTransactionsRequest struct {
	ComputeUnitPriceMicroLamports string          `json:"computeUnitPriceMicroLamports"`
	SwapResponse                  json.RawMessage `json:"swapResponse"`
	TxVersion                     string          `json:"txVersion"`
	Wallet                        string          `json:"wallet"`
	WrapSol                       bool            `json:"wrapSol"`
	UnwrapSol                     bool            `json:"unwrapSol"`
}

type swapTransactionsResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Version string `json:"version"`
	Msg     string `json:"msg,omitempty"`
	Data    []struct {
		Transaction string `json:"transaction"`
	} `json:"data"`
}

type autoFeeResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Default struct {
			VH float64 `json:"vh"`
			H  float64 `json:"h"`
			M  float64 `json:"m"`
		} `json:"default"`
	} `json:"data"`
}

// Client is a Raydium trade API client.
type Client struct {
	swapHost   string
	apiHost    string
	httpClient *http.Client
	logger     logrus.FieldLogger
}

// NewClient creates a client; empty hosts use the public endpoints.
func NewClient(swapHost, apiHost string, logger logrus.FieldLogger) *Client {
	if swapHost == "" {
		swapHost = DefaultSwapHost
	}
	if apiHost == "" {
		apiHost = DefaultAPIHost
	}
	return &Client{
		swapHost:   strings.TrimRight(swapHost, "/"),
		apiHost:    strings.TrimRight(apiHost, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// ComputeSwapBaseIn quotes swapping amount base units of inputMint.
func (c *Client) ComputeSwapBaseIn(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*SwapCompute, error) {
	query := url.Values{}
	query.Set("inputMint", inputMint)
	query.Set("outputMint", outputMint)
	query.Set("amount", strconv.FormatUint(amount, 10))
	query.Set("slippageBps", strconv.Itoa(slippageBps))
	query.Set("txVersion", txVersion)

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.swapHost+"/compute/swap-base-in?"+query.Encode(), nil, &raw); err != nil {
		return nil, err
	}

	var compute SwapCompute
	if err := json.Unmarshal(raw, &compute); err != nil {
		return nil, fmt.Errorf("failed to decode Raydium quote: %w", err)
	}
	if !compute.Success {
		return nil, &APIError{Status: http.StatusOK, Msg: compute.Msg, URL: "/compute/swap-base-in"}
	}
	if out, _ := strconv.ParseUint(compute.Data.OutputAmount, 10, 64); out == 0 {
		return nil, fmt.Errorf("%w: %s -> %s", ErrNoRoute, inputMint, outputMint)
	}
	compute.Raw = raw
	return &compute, nil
}

// PriorityFee returns Raydium's suggested "high" compute unit price.
func (c *Client) PriorityFee(ctx context.Context) (uint64, error) {
	var fee autoFeeResponse
	if err := c.do(ctx, http.MethodGet, c.apiHost+"/main/auto-fee", nil, &fee); err != nil {
		return 0, err
	}
	if !fee.Success {
		return 0, &APIError{Status: http.StatusOK, Msg: "auto-fee unavailable", URL: "/main/auto-fee"}
	}
	return uint64(fee.Data.Default.H), nil
}

// BuildSwapTransactions returns the base64 transactions implementing
// compute for wallet, in execution order. SOL is wrapped or unwrapped when
// either side is the native mint.
func (c *Client) BuildSwapTransactions(ctx context.Context, compute *SwapCompute, wallet solana.PublicKey, priorityFee uint64) ([]string, error) {
	req := swapTransactionsRequest{
		ComputeUnitPriceMicroLamports: strconv.FormatUint(priorityFee, 10),
		SwapResponse:                  compute.Raw,
		TxVersion:                     txVersion,
		Wallet:                        wallet.String(),
		WrapSol:                       compute.Data.InputMint == sln.WrappedSolMint.String(),
		UnwrapSol:                     compute.Data.OutputMint == sln.WrappedSolMint.String(),
	}

	var resp swapTransactionsResponse
	if err := c.do(ctx, http.MethodPost, c.swapHost+"/transaction/swap-base-in", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || len(resp.Data) == 0 {
		return nil, &APIError{Status: http.StatusOK, Msg: resp.Msg, URL: "/transaction/swap-base-in"}
	}

	txs := make([]string, 0, len(resp.Data))
	for _, d := range resp.Data {
		txs = append(txs, d.Transaction)
	}
	return txs, nil
}

// Execute signs each transaction with wallet and sends them in order,
// waiting for every one to confirm before sending the next.
func (c *Client) Execute(ctx context.Context, sender *sln.Sender, wallet solana.PrivateKey, txs []string) ([]solana.Signature, error) {
	sigs := make([]solana.Signature, 0, len(txs))
	for i, encoded := range txs {
		tx, err := solana.TransactionFromBase64(encoded)
		if err != nil {
			return sigs, fmt.Errorf("failed to decode transaction %d: %w", i, err)
		}
		sig, err := sender.SignAndSend(ctx, tx, false, wallet)
		if err != nil {
			return sigs, fmt.Errorf("transaction %d/%d: %w", i+1, len(txs), err)
		}
		c.logger.WithField("sig", sig.String()).Infof("Raydium transaction %d/%d confirmed", i+1, len(txs))
		sigs = append(sigs, sig)
	}
	return sigs, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("raydium request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode, Msg: strings.TrimSpace(string(data)), URL: req.URL.Path}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", req.URL.Path, err)
	}
	return nil
}
