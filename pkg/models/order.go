package models

import "time"

// Order kinds
const (
	OrderBuy         = "buy"
	OrderSell        = "sell"
	OrderTreasuryBuy = "treasury_buy"
)

// Order statuses
const (
	OrderPending   = "pending"
	OrderPaid      = "paid"
	OrderFulfilled = "fulfilled"
	OrderFailed    = "failed"
)

// Order is a merchant or treasury purchase awaiting settlement.
type Order struct {
	ID                 string    `json:"id"`
	Kind               string    `json:"kind"`
	Status             string    `json:"status"`
	Wallet             string    `json:"wallet"`
	PayWith            string    `json:"payWith,omitempty"` // SOL, USDC or a mint
	Amount             string    `json:"amount,omitempty"`
	TokenMint          string    `json:"tokenMint"`
	TokenAmount        string    `json:"tokenAmount,omitempty"`
	PaymentSignature   string    `json:"paymentSignature,omitempty"`
	FulfillerSignature string    `json:"fulfillerSignature,omitempty"`
	Error              string    `json:"error,omitempty"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
}

// Deposit is an incoming SOL transfer seen on the deposit wallet.
type Deposit struct {
	Signature      string     `json:"signature"`
	Wallet         string     `json:"wallet"`
	AmountLamports uint64     `json:"amountLamports"`
	AmountSol      string     `json:"amountSol"`
	BlockTime      *time.Time `json:"blockTime,omitempty"`
	Explorer       string     `json:"explorer"`
	CreatedAt      time.Time  `json:"createdAt"`
}
