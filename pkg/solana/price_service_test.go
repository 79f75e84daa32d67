package solana

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"veilfi-wallet/pkg/logging"
)

func TestPriceService(t *testing.T) {
	var fail atomic.Bool
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"solana":{"usd":142.5}}`))
	}))
	defer srv.Close()

	prices := NewPriceService(srv.URL, logging.Discard())
	ctx := context.Background()

	assert.Equal(t, 142.5, prices.GetCurrentPrice(ctx))
	assert.Equal(t, 142.5, prices.GetCurrentPrice(ctx), "fresh value is served from cache")
	assert.Equal(t, int32(1), calls.Load())

	fail.Store(true)
	prices.updatePrice(ctx)
	assert.Equal(t, 142.5, prices.GetCurrentPrice(ctx), "failed refresh keeps last price")
}

func TestPriceServiceStartStop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"solana":{"usd":99}}`))
	}))
	defer srv.Close()

	prices := NewPriceService(srv.URL, logging.Discard())
	prices.Start(context.Background())
	prices.Stop()
	prices.Stop()

	assert.Equal(t, 99.0, prices.GetCurrentPrice(context.Background()))
}

func TestPriceServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	assert.Zero(t, NewPriceService(srv.URL, logging.Discard()).GetCurrentPrice(context.Background()))
}
