package solana

import (
	"context"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// BlockhashCache reuses the latest blockhash for a short TTL so bursts of
// transfers do not each pay a round trip.
type BlockhashCache struct {
	mu        sync.Mutex
	node      RPC
	blockhash solana.Hash
	expiry    time.Time
	ttl       time.Duration
	now       func() time.Time
}

// NewBlockhashCache creates a cache over node.
func NewBlockhashCache(node RPC, ttl time.Duration) *BlockhashCache {
	return &BlockhashCache{
		node: node,
		ttl:  ttl,
		now:  time.Now,
	}
}

// Get returns a cached or freshly fetched blockhash.
func (c *BlockhashCache) Get(ctx context.Context) (solana.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.now().Before(c.expiry) {
		return c.blockhash, nil
	}
	block, err := c.node.GetLatestBlockhash(ctx, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Hash{}, err
	}

	c.blockhash = block.Value.Blockhash
	c.expiry = c.now().Add(c.ttl)

	return c.blockhash, nil
}

// Invalidate drops the cached value, e.g. after a "blockhash not found" send error.
func (c *BlockhashCache) Invalidate() {
	c.mu.Lock()
	c.expiry = time.Time{}
	c.mu.Unlock()
}
