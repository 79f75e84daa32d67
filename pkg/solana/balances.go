package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"veilfi-wallet/pkg/models"
)

// Balances reads SOL and token holdings. Concurrent lookups for the same
// owner share one set of RPC calls.
type Balances struct {
	node   RPC
	group  singleflight.Group
	logger logrus.FieldLogger
}

// NewBalances creates a balance reader over node.
func NewBalances(node RPC, logger logrus.FieldLogger) *Balances {
	return &Balances{node: node, logger: logger}
}

// SOL returns the lamport balance of owner.
func (b *Balances) SOL(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	res, err := b.node.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return 0, fmt.Errorf("failed to get balance: %w", err)
	}
	return res.Value, nil
}

// Tokens lists token accounts held by owner under both token programs,
// sorted by mint.
func (b *Balances) Tokens(ctx context.Context, owner solana.PublicKey, includeEmpty bool) ([]models.TokenBalance, error) {
	programs := []solana.PublicKey{solana.TokenProgramID, Token2022ProgramID}
	results := make([][]models.TokenBalance, len(programs))

	g, gctx := errgroup.WithContext(ctx)
	for i, program := range programs {
		i, program := i, program
		g.Go(func() error {
			list, err := b.tokensOf(gctx, owner, program, includeEmpty)
			if err != nil {
				return err
			}
			results[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []models.TokenBalance
	for _, list := range results {
		out = append(out, list...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out, nil
}

// WalletInfo returns SOL and token balances of owner.
func (b *Balances) WalletInfo(ctx context.Context, owner solana.PublicKey, includeEmpty bool) (*models.WalletInfo, error) {
	key := fmt.Sprintf("%s:%t", owner, includeEmpty)
	v, err, _ := b.group.Do(key, func() (interface{}, error) {
		info := &models.WalletInfo{Address: owner.String()}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			lamports, err := b.SOL(gctx, owner)
			if err != nil {
				return err
			}
			info.Lamports = lamports
			info.Sol = LamportsToSOL(lamports)
			return nil
		})
		g.Go(func() error {
			tokens, err := b.Tokens(gctx, owner, includeEmpty)
			if err != nil {
				return err
			}
			info.Tokens = tokens
			return nil
		})
		if err := g.Wait(); err != nil {
			return nil, err
		}
		return info, nil
	})
	if err != nil {
		return nil, err
	}

	// Callers may decorate tokens with prices; hand each its own copy.
	info := *v.(*models.WalletInfo)
	info.Tokens = append([]models.TokenBalance(nil), info.Tokens...)
	return &info, nil
}

type parsedTokenAccount struct {
	Parsed struct {
		Info struct {
			Mint        string `json:"mint"`
			TokenAmount struct {
				Amount         string `json:"amount"`
				Decimals       uint8  `json:"decimals"`
				UiAmountString string `json:"uiAmountString"`
			} `json:"tokenAmount"`
		} `json:"info"`
	} `json:"parsed"`
}

func (b *Balances) tokensOf(ctx context.Context, owner, program solana.PublicKey, includeEmpty bool) ([]models.TokenBalance, error) {
	res, err := b.node.GetTokenAccountsByOwner(
		ctx,
		owner,
		&rpc.GetTokenAccountsConfig{ProgramId: program.ToPointer()},
		&rpc.GetTokenAccountsOpts{Encoding: solana.EncodingJSONParsed},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get token accounts: %w", err)
	}

	var out []models.TokenBalance
	for _, acc := range res.Value {
		if acc == nil || acc.Account.Data == nil {
			continue
		}
		var data parsedTokenAccount
		if err := json.Unmarshal(acc.Account.Data.GetRawJSON(), &data); err != nil {
			b.logger.WithField("account", acc.Pubkey.String()).Debugf("skipping unparsed token account: %v", err)
			continue
		}
		amount := data.Parsed.Info.TokenAmount
		if !includeEmpty && (amount.Amount == "" || amount.Amount == "0") {
			continue
		}
		out = append(out, models.TokenBalance{
			Mint:           data.Parsed.Info.Mint,
			Account:        acc.Pubkey.String(),
			Program:        program.String(),
			Amount:         amount.Amount,
			Decimals:       amount.Decimals,
			UiAmountString: amount.UiAmountString,
		})
	}
	return out, nil
}
