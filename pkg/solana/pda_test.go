package solana

import (
	"context"
	"testing"

	sln "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilfi-wallet/pkg/solana/solanatest"
)

func TestFindATA(t *testing.T) {
	owner := sln.MustPublicKeyFromBase58("SkatebLAUZ9cmbayrLE3wWao3VuFsb1eGE3R7mCs2X2")
	mint := sln.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")

	ata, err := FindATA(owner, mint, sln.TokenProgramID)
	require.NoError(t, err)

	// Matches solana-go's classic derivation.
	expected, _, err := sln.FindAssociatedTokenAddress(owner, mint)
	require.NoError(t, err)
	assert.Equal(t, expected, ata)

	ata2022, err := FindATA(owner, mint, Token2022ProgramID)
	require.NoError(t, err)
	assert.NotEqual(t, ata, ata2022, "token programs derive different accounts")

	again, err := FindATA(owner, mint, sln.TokenProgramID)
	require.NoError(t, err)
	assert.Equal(t, ata, again)
}

func TestTokenProgramOf(t *testing.T) {
	node := solanatest.NewFakeRPC()
	classic := sln.NewWallet().PublicKey()
	extended := sln.NewWallet().PublicKey()
	stranger := sln.NewWallet().PublicKey()
	node.Accounts[classic] = &rpc.Account{Owner: sln.TokenProgramID}
	node.Accounts[extended] = &rpc.Account{Owner: Token2022ProgramID}
	node.Accounts[stranger] = &rpc.Account{Owner: sln.SystemProgramID}

	ctx := context.Background()

	program, err := TokenProgramOf(ctx, node, classic)
	require.NoError(t, err)
	assert.Equal(t, sln.TokenProgramID, program)

	program, err = TokenProgramOf(ctx, node, extended)
	require.NoError(t, err)
	assert.Equal(t, Token2022ProgramID, program)

	_, err = TokenProgramOf(ctx, node, stranger)
	assert.ErrorIs(t, err, ErrUnknownTokenMint)

	_, err = TokenProgramOf(ctx, node, sln.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ErrUnknownTokenMint)

	exists, err := AccountExists(ctx, node, classic)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = AccountExists(ctx, node, sln.NewWallet().PublicKey())
	require.NoError(t, err)
	assert.False(t, exists)
}
