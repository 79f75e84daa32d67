package jupiter

// Jupiter (Solana DEX aggregator) defaults
const (
	DefaultBaseURL  = "https://quote-api.jup.ag/v6"
	DefaultPriceURL = "https://lite-api.jup.ag/price/v2"

	QuoteCurrencyMint  = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v" // USDC Mint on Mainnet
	WrappedSolMint     = "So11111111111111111111111111111111111111112"  // Wrapped SOL Mint on Mainnet
	DefaultSlippageBps = 50

	apiKeyHeader = "x-api-key"

	sharedAccountsUnsupported = "Simple AMMs are not supported with shared accounts"
)
