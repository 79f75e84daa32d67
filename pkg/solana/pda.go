package solana

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	ataext "veilfi-wallet/pkg/solana/associated_token_account_extended"
)

// FindATA derives the associated token account of owner for mint under the
// given token program (SPL Token or Token-2022).
func FindATA(owner, mint, tokenProgram solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := ataext.FindAddress(owner, mint, tokenProgram)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("failed to find associated token address: %w", err)
	}
	return addr, nil
}

// TokenProgramOf returns the program that owns mint.
func TokenProgramOf(ctx context.Context, node RPC, mint solana.PublicKey) (solana.PublicKey, error) {
	info, err := node.GetAccountInfo(ctx, mint)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return solana.PublicKey{}, fmt.Errorf("%w: %s does not exist", ErrUnknownTokenMint, mint)
		}
		return solana.PublicKey{}, fmt.Errorf("failed to get mint account: %w", err)
	}
	if info == nil || info.Value == nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s does not exist", ErrUnknownTokenMint, mint)
	}

	owner := info.Value.Owner
	if owner.Equals(solana.TokenProgramID) || owner.Equals(Token2022ProgramID) {
		return owner, nil
	}
	return solana.PublicKey{}, fmt.Errorf("%w: %s owned by %s", ErrUnknownTokenMint, mint, owner)
}

// AccountExists reports whether an account is allocated on chain.
func AccountExists(ctx context.Context, node RPC, account solana.PublicKey) (bool, error) {
	info, err := node.GetAccountInfo(ctx, account)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get account info: %w", err)
	}
	return info != nil && info.Value != nil, nil
}
