package jupiter

import (
	"encoding/json"
	"strconv"
)

// PriceResponse is the Jupiter Price API v2 response. Prices arrive as
// strings; older mirrors send numbers.
type PriceResponse struct {
	Data map[string]*struct {
		ID    string     `json:"id"`
		Type  string     `json:"type"`
		Price flexiFloat `json:"price"`
	} `json:"data"`
	TimeTaken float64 `json:"timeTaken"`
}

type flexiFloat float64

func (f *flexiFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexiFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = flexiFloat(v)
	return nil
}

// QuoteParams selects a route.
type QuoteParams struct {
	InputMint        string `json:"inputMint"`
	OutputMint       string `json:"outputMint"`
	Amount           uint64 `json:"amount"` // base units of InputMint
	SlippageBps      int    `json:"slippageBps,omitempty"`
	OnlyDirectRoutes bool   `json:"onlyDirectRoutes,omitempty"`
}

// QuoteResponse represents the Jupiter Quote API response. Raw keeps the
// body as received so the swap request echoes every route field.
type QuoteResponse struct {
	InputMint            string `json:"inputMint"`
	InAmount             string `json:"inAmount"`
	OutputMint           string `json:"outputMint"`
	OutAmount            string `json:"outAmount"`
	OtherAmountThreshold string `json:"otherAmountThreshold"`
	SwapMode             string `json:"swapMode"`
	SlippageBps          int    `json:"slippageBps"`
	PlatformFee          *struct {
		Amount string `json:"amount"`
		Mint   string `json:"mint"`
	} `json:"platformFee"`
	PriceImpactPct string `json:"priceImpactPct"`
	RoutePlan      []struct {
		SwapInfo struct {
			AmmKey     string `json:"ammKey"`
			Label      string `json:"label"`
			InputMint  string `json:"inputMint"`
			OutputMint string `json:"outputMint"`
			InAmount   string `json:"inAmount"`
			OutAmount  string `json:"outAmount"`
			FeeAmount  string `json:"feeAmount"`
			FeeMint    string `json:"feeMint"`
		} `json:"swapInfo"`
		Percent int `json:"percent"`
	} `json:"routePlan"`
	ContextSlot uint64  `json:"contextSlot"`
	TimeTaken   float64 `json:"timeTaken"`

	Raw json.RawMessage `json:"-"`
}

// SwapOptions tune the swap transaction Jupiter builds.
type SwapOptions struct {
	UseSharedAccounts        bool
	PriorityFeeMicroLamports uint64
	AsLegacyTransaction      bool
}

// SwapRequest represents the Jupiter Swap API request
type SwapRequest struct {
	UserPublicKey                 string          `json:"userPublicKey"`
	QuoteResponse                 json.RawMessage `json:"quoteResponse"`
	WrapAndUnwrapSol              bool            `json:"wrapAndUnwrapSol"`
	UseSharedAccounts             bool            `json:"useSharedAccounts"`
	FeeAccount                    string          `json:"feeAccount,omitempty"`
	ComputeUnitPriceMicroLamports uint64          `json:"computeUnitPriceMicroLamports,omitempty"`
	AsLegacyTransaction           bool            `json:"asLegacyTransaction,omitempty"`
	DynamicComputeUnitLimit       bool            `json:"dynamicComputeUnitLimit"`
}

// SwapResponse represents the Jupiter Swap API response
type SwapResponse struct {
	SwapTransaction      string `json:"swapTransaction"` // base64 encoded transaction
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
	LastErrorId          string `json:"lastErrorId"`
	LastErrorTs          int64  `json:"lastErrorTs"`
}

// BuiltSwap is an unsigned swap for the client to sign.
type BuiltSwap struct {
	Quote                *QuoteResponse `json:"quote"`
	Transaction          string         `json:"transaction"`
	LastValidBlockHeight uint64         `json:"lastValidBlockHeight,omitempty"`
}
