package raydium

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilfi-wallet/pkg/logging"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/solana/solanatest"
)

const usdc = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"

func computeBody(out string) string {
	return `{"id":"q1","success":true,"version":"V1","data":{
		"swapType":"BaseIn","inputMint":"So11111111111111111111111111111111111111112","inputAmount":"1000000",
		"outputMint":"` + usdc + `","outputAmount":"` + out + `","otherAmountThreshold":"141000",
		"slippageBps":50,"priceImpactPct":0.01,"routePlan":[{"poolId":"pool"}]}}`
}

func newRaydium(t *testing.T, wallet solana.PublicKey) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/compute/swap-base-in":
			assert.Equal(t, "V0", r.URL.Query().Get("txVersion"))
			_, _ = w.Write([]byte(computeBody("142000")))
		case "/transaction/swap-base-in":
			var req map[string]json.RawMessage
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.JSONEq(t, `true`, string(req["wrapSol"]))
			assert.JSONEq(t, `false`, string(req["unwrapSol"]))
			assert.JSONEq(t, `"5000"`, string(req["computeUnitPriceMicroLamports"]))
			assert.Contains(t, string(req["swapResponse"]), "routePlan")
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id": "t1", "success": true, "version": "V1",
				"data": []map[string]string{
					{"transaction": solanatest.UnsignedTransactionBase64(wallet)},
					{"transaction": solanatest.UnsignedTransactionBase64(wallet)},
				},
			})
		case "/main/auto-fee":
			_, _ = w.Write([]byte(`{"id":"f","success":true,"data":{"default":{"vh":30000,"h":5000,"m":1000}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestQuoteBuildExecute(t *testing.T) {
	wallet := solana.NewWallet().PrivateKey
	srv := newRaydium(t, wallet.PublicKey())
	defer srv.Close()

	client := NewClient(srv.URL, srv.URL, logging.Discard())
	ctx := context.Background()

	compute, err := client.ComputeSwapBaseIn(ctx, sln.WrappedSolMint.String(), usdc, 1_000_000, 50)
	require.NoError(t, err)
	assert.Equal(t, "142000", compute.Data.OutputAmount)

	fee, err := client.PriorityFee(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), fee)

	txs, err := client.BuildSwapTransactions(ctx, compute, wallet.PublicKey(), fee)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	node := solanatest.NewFakeRPC()
	sender := sln.NewSender(node, 0, logging.Discard())
	sender.PollInterval = time.Millisecond

	sigs, err := client.Execute(ctx, sender, wallet, txs)
	require.NoError(t, err)
	assert.Len(t, sigs, 2)
	assert.Equal(t, 2, node.SentCount())
}

func TestComputeNoRoute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(computeBody("0")))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.URL, logging.Discard()).ComputeSwapBaseIn(context.Background(), "a", "b", 1, 50)
	assert.ErrorIs(t, err, ErrNoRoute)
}

func TestComputeUnsuccessful(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"x","success":false,"version":"V1","msg":"ROUTE_NOT_FOUND"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.URL, logging.Discard()).ComputeSwapBaseIn(context.Background(), "a", "b", 1, 50)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "ROUTE_NOT_FOUND", apiErr.Msg)
}

func TestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, srv.URL, logging.Discard()).PriorityFee(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)
}
