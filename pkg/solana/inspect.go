package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// TokenDelta is the change of one token account owned by the inspected address.
type TokenDelta struct {
	Mint     string `json:"mint"`
	Account  string `json:"account"`
	Decimals uint8  `json:"decimals"`
	Change   string `json:"change"` // base units, signed
	UIChange string `json:"uiChange"`
}

// TxInspection summarises a confirmed transaction from the point of view of
// one address (the fee payer unless another address is given).
type TxInspection struct {
	Signature     string       `json:"signature"`
	Slot          uint64       `json:"slot"`
	BlockTime     *time.Time   `json:"blockTime,omitempty"`
	Success       bool         `json:"success"`
	Error         string       `json:"error,omitempty"`
	Fee           uint64       `json:"fee"`
	Signer        string       `json:"signer"`
	Address       string       `json:"address"`
	Involved      bool         `json:"involved"`
	LamportsDelta int64        `json:"lamportsDelta"`
	TokenDeltas   []TokenDelta `json:"tokenDeltas"`
	// WrappedSolReceived sums wSOL transferChecked amounts landing in accounts
	// of the address, as a swap into SOL produces before unwrapping.
	WrappedSolReceived uint64 `json:"wrappedSolReceived"`
	Explorer           string `json:"explorer"`
}

// InspectTransaction fetches a parsed transaction and computes balance
// changes for address, or for the first signer when address is nil.
func InspectTransaction(ctx context.Context, node RPC, sig solana.Signature, address *solana.PublicKey) (*TxInspection, error) {
	maxSupportedTransactionVersion := uint64(0)

	tx, err := node.GetParsedTransaction(ctx, sig, &rpc.GetParsedTransactionOpts{
		Commitment:                     rpc.CommitmentConfirmed,
		MaxSupportedTransactionVersion: &maxSupportedTransactionVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction %s: %w", sig, err)
	}
	if tx == nil || tx.Transaction == nil || tx.Meta == nil {
		return nil, fmt.Errorf("transaction %s: %w", sig, rpc.ErrNotFound)
	}

	out := &TxInspection{
		Signature: sig.String(),
		Slot:      tx.Slot,
		Success:   tx.Meta.Err == nil,
		Fee:       tx.Meta.Fee,
		Explorer:  ExplorerURL(sig.String()),
	}
	if tx.BlockTime != nil {
		t := tx.BlockTime.Time().UTC()
		out.BlockTime = &t
	}
	if tx.Meta.Err != nil {
		out.Error = fmt.Sprintf("%v", tx.Meta.Err)
	}

	keys := tx.Transaction.Message.AccountKeys
	for _, account := range keys {
		if account.Signer {
			out.Signer = account.PublicKey.String()
			break
		}
	}

	target := out.Signer
	if address != nil {
		target = address.String()
	}
	out.Address = target

	for i, account := range keys {
		if account.PublicKey.String() != target {
			continue
		}
		out.Involved = true
		if i < len(tx.Meta.PreBalances) && i < len(tx.Meta.PostBalances) {
			out.LamportsDelta = int64(tx.Meta.PostBalances[i]) - int64(tx.Meta.PreBalances[i])
		}
		break
	}

	out.TokenDeltas = tokenDeltas(tx, target)
	if len(out.TokenDeltas) > 0 {
		out.Involved = true
	}
	out.WrappedSolReceived = wrappedSolReceived(tx, target)

	return out, nil
}

func tokenDeltas(tx *rpc.GetParsedTransactionResult, owner string) []TokenDelta {
	type entry struct {
		mint     string
		decimals uint8
		pre      decimal.Decimal
		post     decimal.Decimal
	}
	byIndex := make(map[uint16]*entry)
	var order []uint16

	collect := func(balances []rpc.TokenBalance, post bool) {
		for _, b := range balances {
			if b.Owner == nil || b.Owner.String() != owner || b.UiTokenAmount == nil {
				continue
			}
			amount, err := decimal.NewFromString(b.UiTokenAmount.Amount)
			if err != nil {
				continue
			}
			e, ok := byIndex[b.AccountIndex]
			if !ok {
				e = &entry{mint: b.Mint.String(), decimals: b.UiTokenAmount.Decimals}
				byIndex[b.AccountIndex] = e
				order = append(order, b.AccountIndex)
			}
			if post {
				e.post = amount
			} else {
				e.pre = amount
			}
		}
	}
	collect(tx.Meta.PreTokenBalances, false)
	collect(tx.Meta.PostTokenBalances, true)

	keys := tx.Transaction.Message.AccountKeys
	var out []TokenDelta
	for _, idx := range order {
		e := byIndex[idx]
		change := e.post.Sub(e.pre)
		if change.IsZero() {
			continue
		}
		account := ""
		if int(idx) < len(keys) {
			account = keys[idx].PublicKey.String()
		}
		out = append(out, TokenDelta{
			Mint:     e.mint,
			Account:  account,
			Decimals: e.decimals,
			Change:   change.String(),
			UIChange: change.Shift(-int32(e.decimals)).String(),
		})
	}
	return out
}

type parsedInstruction struct {
	Type string                 `json:"type"`
	Info map[string]interface{} `json:"info"`
}

func decodeParsed(inst *rpc.ParsedInstruction) (*parsedInstruction, bool) {
	if inst == nil || inst.Parsed == nil {
		return nil, false
	}
	// The envelope only exposes its content through JSON.
	data, err := json.Marshal(inst.Parsed)
	if err != nil {
		return nil, false
	}
	var out parsedInstruction
	if err := json.Unmarshal(data, &out); err != nil || out.Type == "" {
		return nil, false
	}
	return &out, true
}

func infoString(info map[string]interface{}, key string) string {
	s, _ := info[key].(string)
	return s
}

func wrappedSolReceived(tx *rpc.GetParsedTransactionResult, owner string) uint64 {
	// Token accounts that belong to owner: known from balances, created for
	// owner in this transaction, or closed back to owner.
	ownerAccounts := map[string]bool{owner: true}
	keys := tx.Transaction.Message.AccountKeys
	for _, b := range append(append([]rpc.TokenBalance{}, tx.Meta.PreTokenBalances...), tx.Meta.PostTokenBalances...) {
		if b.Owner != nil && b.Owner.String() == owner && int(b.AccountIndex) < len(keys) {
			ownerAccounts[keys[b.AccountIndex].PublicKey.String()] = true
		}
	}
	for _, inst := range tx.Transaction.Message.Instructions {
		parsed, ok := decodeParsed(inst)
		if !ok {
			continue
		}
		switch parsed.Type {
		case "createIdempotent", "create", "initializeAccount3":
			if infoString(parsed.Info, "wallet") == owner || infoString(parsed.Info, "owner") == owner {
				ownerAccounts[infoString(parsed.Info, "account")] = true
			}
		case "closeAccount":
			if infoString(parsed.Info, "destination") == owner {
				ownerAccounts[infoString(parsed.Info, "account")] = true
			}
		}
	}

	var received uint64
	for _, inner := range tx.Meta.InnerInstructions {
		for _, inst := range inner.Instructions {
			if inst.Program != "spl-token" {
				continue
			}
			parsed, ok := decodeParsed(inst)
			if !ok || parsed.Type != "transferChecked" {
				continue
			}
			if infoString(parsed.Info, "mint") != WrappedSolMint.String() {
				continue
			}
			if !ownerAccounts[infoString(parsed.Info, "destination")] {
				continue
			}
			tokenAmount, ok := parsed.Info["tokenAmount"].(map[string]interface{})
			if !ok {
				continue
			}
			amount, err := strconv.ParseUint(infoString(tokenAmount, "amount"), 10, 64)
			if err == nil {
				received += amount
			}
		}
	}
	return received
}
