package models

import "time"

// User is a custodial wallet owner. The secret key is only ever stored sealed.
type User struct {
	ID         string    `json:"id"`
	Pubkey     string    `json:"pubkey"`
	Ciphertext string    `json:"-"`
	IV         string    `json:"-"`
	Salt       string    `json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Activity types
const (
	ActivityWithdraw = "withdraw"
	ActivitySwap     = "swap"
	ActivityDeposit  = "deposit"
	ActivityBuy      = "buy"
)

// Activity is one entry of a user's history.
type Activity struct {
	ID        int64                  `json:"id"`
	UserID    string                 `json:"userId"`
	Type      string                 `json:"type"`
	Token     string                 `json:"token"`  // "SOL" or a mint address
	Amount    string                 `json:"amount"` // base units
	Signature string                 `json:"signature,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// TokenBalance is one SPL or Token-2022 account holding.
type TokenBalance struct {
	Mint           string  `json:"mint"`
	Account        string  `json:"account"`
	Program        string  `json:"program"`
	Amount         string  `json:"amount"`
	Decimals       uint8   `json:"decimals"`
	UiAmountString string  `json:"uiAmountString"`
	UsdPrice       float64 `json:"usdPrice,omitempty"`
	UsdValue       float64 `json:"usdValue,omitempty"`
}

// WalletInfo is the balance snapshot of an address.
type WalletInfo struct {
	Address  string         `json:"address"`
	Lamports uint64         `json:"lamports"`
	Sol      string         `json:"sol"`
	Tokens   []TokenBalance `json:"tokens"`
}
