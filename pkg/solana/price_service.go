package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PriceResponse is the CoinGecko simple price payload.
type PriceResponse struct {
	Solana struct {
		Usd float64 `json:"usd"`
	} `json:"solana"`
}

// PriceService tracks the SOL/USD price, refreshing it in the background.
// A failed refresh keeps the last known price.
type PriceService struct {
	currentPrice   float64
	lastUpdated    time.Time
	updateInterval time.Duration
	staleAfter     time.Duration
	mu             sync.RWMutex
	logger         logrus.FieldLogger
	apiURL         string
	client         *http.Client
	stopChan       chan struct{}
	stopOnce       sync.Once
	wg             sync.WaitGroup
}

// NewPriceService creates a price service reading apiURL.
func NewPriceService(apiURL string, logger logrus.FieldLogger) *PriceService {
	return &PriceService{
		updateInterval: 10 * time.Minute,
		staleAfter:     30 * time.Minute,
		logger:         logger,
		apiURL:         apiURL,
		client:         &http.Client{Timeout: 10 * time.Second},
		stopChan:       make(chan struct{}),
	}
}

// Start fetches the price once and then refreshes it every interval.
func (p *PriceService) Start(ctx context.Context) {
	p.updatePrice(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.updateInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				p.updatePrice(ctx)
			case <-p.stopChan:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the refresh loop.
func (p *PriceService) Stop() {
	p.stopOnce.Do(func() { close(p.stopChan) })
	p.wg.Wait()
}

// GetCurrentPrice returns the SOL price in USD, fetching synchronously when
// nothing is cached or the cached value is stale. Zero means unknown.
func (p *PriceService) GetCurrentPrice(ctx context.Context) float64 {
	p.mu.RLock()
	price, updated := p.currentPrice, p.lastUpdated
	p.mu.RUnlock()

	if price == 0 || time.Since(updated) > p.staleAfter {
		p.updatePrice(ctx)
		p.mu.RLock()
		price = p.currentPrice
		p.mu.RUnlock()
	}
	return price
}

func (p *PriceService) updatePrice(ctx context.Context) {
	price, err := p.fetch(ctx)
	if err != nil {
		p.logger.Printf("Error fetching SOL price: %v", err)
		return
	}

	p.mu.Lock()
	p.currentPrice = price
	p.lastUpdated = time.Now()
	p.mu.Unlock()

	p.logger.Debugf("Updated SOL price: $%.2f", price)
}

func (p *PriceService) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiURL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	var priceData PriceResponse
	if err := json.NewDecoder(resp.Body).Decode(&priceData); err != nil {
		return 0, fmt.Errorf("parse price data: %w", err)
	}
	if priceData.Solana.Usd <= 0 {
		return 0, fmt.Errorf("no price in response")
	}
	return priceData.Solana.Usd, nil
}
