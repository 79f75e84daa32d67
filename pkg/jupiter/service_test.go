package jupiter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilfi-wallet/pkg/logging"
	sln "veilfi-wallet/pkg/solana"
	"veilfi-wallet/pkg/solana/solanatest"
)

func newTestService(t *testing.T, srv *httptest.Server) (*SwapService, *solanatest.FakeRPC) {
	t.Helper()
	node := solanatest.NewFakeRPC()
	sender := sln.NewSender(node, 0, logging.Discard())
	sender.PollInterval = time.Millisecond
	sender.ConfirmTimeout = time.Second
	client := NewClient(Options{BaseURLs: []string{srv.URL}, PriceURL: srv.URL + "/price"}, logging.Discard())
	return NewSwapService(client, sender, sln.NewBalances(node, logging.Discard()), logging.Discard()), node
}

func TestExecuteSwapFallsBackFromSharedAccounts(t *testing.T) {
	wallet := solana.NewWallet().PrivateKey
	var swapCalls atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			_, _ = w.Write([]byte(quoteJSON))
		case "/swap":
			swapCalls.Add(1)
			var req SwapRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			if req.UseSharedAccounts {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"Simple AMMs are not supported with shared accounts"}`))
				return
			}
			_ = json.NewEncoder(w).Encode(SwapResponse{SwapTransaction: solanatest.UnsignedTransactionBase64(wallet.PublicKey())})
		}
	}))
	defer srv.Close()

	service, node := newTestService(t, srv)
	sig, quote, err := service.ExecuteSwap(context.Background(), wallet, QuoteParams{
		InputMint:  WrappedSolMint,
		OutputMint: QuoteCurrencyMint,
		Amount:     1_000_000,
	}, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "142000", quote.OutAmount)
	assert.Equal(t, int32(2), swapCalls.Load())

	sent := node.LastSent()
	require.NotNil(t, sent)
	assert.Equal(t, sig, sent.Signatures[0])
	assert.Equal(t, node.Blockhash, sent.Message.RecentBlockhash, "blockhash refreshed before signing")
	assert.True(t, node.SentOpts[0].SkipPreflight)
}

func TestExecuteSwapGivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	service, node := newTestService(t, srv)
	_, _, err := service.ExecuteSwap(context.Background(), solana.NewWallet().PrivateKey, QuoteParams{
		InputMint: WrappedSolMint, OutputMint: QuoteCurrencyMint, Amount: 1,
	}, 2, time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 attempts failed")
	assert.Zero(t, node.SentCount())
}

func TestBuildSwap(t *testing.T) {
	user := solana.NewWallet().PublicKey()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/quote":
			_, _ = w.Write([]byte(quoteJSON))
		case "/swap":
			_ = json.NewEncoder(w).Encode(SwapResponse{SwapTransaction: solanatest.UnsignedTransactionBase64(user), LastValidBlockHeight: 500})
		}
	}))
	defer srv.Close()

	service, node := newTestService(t, srv)
	built, err := service.BuildSwap(context.Background(), QuoteParams{
		InputMint: WrappedSolMint, OutputMint: QuoteCurrencyMint, Amount: 1_000_000,
	}, user)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), built.LastValidBlockHeight)
	assert.NotEmpty(t, built.Transaction)
	assert.Zero(t, node.SentCount(), "building never sends")
}

func TestGetTokenBalancesWithPrices(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v":{"price":"1.0"}}}`))
	}))
	defer srv.Close()

	service, node := newTestService(t, srv)
	usdc := solana.MustPublicKeyFromBase58(QuoteCurrencyMint)
	node.AddTokenAccount(owner, solana.NewWallet().PublicKey(), usdc, solana.TokenProgramID, "2500000", 6, "2.5")

	balances, err := service.GetTokenBalances(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, balances, 1)
	assert.Equal(t, 1.0, balances[0].UsdPrice)
	assert.Equal(t, 2.5, balances[0].UsdValue)
}
