package solana

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	sln "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veilfi-wallet/pkg/logging"
	"veilfi-wallet/pkg/solana/solanatest"
)

func newTestSender(node RPC) *Sender {
	sender := NewSender(node, 0, logging.Discard())
	sender.PollInterval = time.Millisecond
	sender.ConfirmTimeout = time.Second
	return sender
}

func programOf(t *testing.T, tx *sln.Transaction, ix sln.CompiledInstruction) sln.PublicKey {
	t.Helper()
	program, err := tx.Message.ResolveProgramIDIndex(ix.ProgramIDIndex)
	require.NoError(t, err)
	return program
}

func TestTransferSOL(t *testing.T) {
	node := solanatest.NewFakeRPC()
	from := sln.NewWallet().PrivateKey
	to := sln.NewWallet().PublicKey()
	node.Balances[from.PublicKey()] = 2 * LamportsPerSOL

	transfers := NewTransfers(newTestSender(node), logging.Discard())
	sig, err := transfers.TransferSOL(context.Background(), from, to, LamportsPerSOL/2)
	require.NoError(t, err)

	tx := node.LastSent()
	require.NotNil(t, tx)
	assert.Equal(t, tx.Signatures[0], sig)
	assert.Equal(t, from.PublicKey(), tx.Message.AccountKeys[0], "sender pays the fee")

	last := tx.Message.Instructions[len(tx.Message.Instructions)-1]
	assert.Equal(t, sln.SystemProgramID, programOf(t, tx, last))
	// system transfer: u32 index 2, u64 lamports
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(last.Data[:4]))
	assert.Equal(t, uint64(LamportsPerSOL/2), binary.LittleEndian.Uint64(last.Data[4:12]))
}

func TestTransferSOLKeepsFeeReserve(t *testing.T) {
	node := solanatest.NewFakeRPC()
	from := sln.NewWallet().PrivateKey
	node.Balances[from.PublicKey()] = 1_000_000

	transfers := NewTransfers(newTestSender(node), logging.Discard())

	_, err := transfers.TransferSOL(context.Background(), from, sln.NewWallet().PublicKey(), 1_000_000)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	_, err = transfers.TransferSOL(context.Background(), from, sln.NewWallet().PublicKey(), 1_000_000-FeeReserveLamports)
	assert.NoError(t, err)

	_, err = transfers.TransferSOL(context.Background(), from, sln.NewWallet().PublicKey(), 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, 1, node.SentCount())
}

func TestTransferSPLToken2022CreatesDestination(t *testing.T) {
	node := solanatest.NewFakeRPC()
	from := sln.NewWallet().PrivateKey
	to := sln.NewWallet().PublicKey()
	mint := sln.NewWallet().PublicKey()

	node.AddMint(mint, Token2022ProgramID)
	source, err := FindATA(from.PublicKey(), mint, Token2022ProgramID)
	require.NoError(t, err)
	node.AddTokenAccount(from.PublicKey(), source, mint, Token2022ProgramID, "5000000", 6, "5")

	transfers := NewTransfers(newTestSender(node), logging.Discard())
	_, err = transfers.TransferSPL(context.Background(), from, SPLTransfer{To: to, Mint: mint, UIAmount: "1.5"})
	require.NoError(t, err)

	tx := node.LastSent()
	require.NotNil(t, tx)
	ixs := tx.Message.Instructions
	require.Len(t, ixs, 3, "compute limit, create ATA, transfer")

	assert.Equal(t, sln.SPLAssociatedTokenAccountProgramID, programOf(t, tx, ixs[1]))
	assert.Equal(t, []byte{1}, []byte(ixs[1].Data))

	transfer := ixs[2]
	assert.Equal(t, Token2022ProgramID, programOf(t, tx, transfer))
	require.Len(t, transfer.Data, 10)
	assert.Equal(t, byte(12), transfer.Data[0], "transferChecked")
	assert.Equal(t, uint64(1_500_000), binary.LittleEndian.Uint64(transfer.Data[1:9]))
	assert.Equal(t, byte(6), transfer.Data[9])
}

func TestTransferSPLExistingDestination(t *testing.T) {
	node := solanatest.NewFakeRPC()
	from := sln.NewWallet().PrivateKey
	to := sln.NewWallet().PublicKey()
	mint := sln.NewWallet().PublicKey()

	node.AddMint(mint, sln.TokenProgramID)
	source, _ := FindATA(from.PublicKey(), mint, sln.TokenProgramID)
	destination, _ := FindATA(to, mint, sln.TokenProgramID)
	node.AddTokenAccount(from.PublicKey(), source, mint, sln.TokenProgramID, "100", 0, "100")
	node.AddTokenAccount(to, destination, mint, sln.TokenProgramID, "0", 0, "0")

	transfers := NewTransfers(newTestSender(node), logging.Discard())
	_, err := transfers.TransferSPL(context.Background(), from, SPLTransfer{To: to, Mint: mint, Amount: 40})
	require.NoError(t, err)

	tx := node.LastSent()
	require.Len(t, tx.Message.Instructions, 2)
	assert.Equal(t, sln.TokenProgramID, programOf(t, tx, tx.Message.Instructions[1]))

	_, err = transfers.TransferSPL(context.Background(), from, SPLTransfer{To: to, Mint: mint, Amount: 101})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestTransferSPLWithoutSourceAccount(t *testing.T) {
	node := solanatest.NewFakeRPC()
	mint := sln.NewWallet().PublicKey()
	node.AddMint(mint, sln.TokenProgramID)

	transfers := NewTransfers(newTestSender(node), logging.Discard())
	_, err := transfers.TransferSPL(context.Background(), sln.NewWallet().PrivateKey, SPLTransfer{
		To: sln.NewWallet().PublicKey(), Mint: mint, Amount: 1,
	})
	assert.ErrorIs(t, err, ErrTokenAccountAbsent)
	assert.Zero(t, node.SentCount())
}

func TestEnsureATA(t *testing.T) {
	node := solanatest.NewFakeRPC()
	payer := sln.NewWallet().PrivateKey
	owner := sln.NewWallet().PublicKey()
	mint := sln.NewWallet().PublicKey()
	node.AddMint(mint, sln.TokenProgramID)

	transfers := NewTransfers(newTestSender(node), logging.Discard())
	ata, sig, err := transfers.EnsureATA(context.Background(), payer, owner, mint)
	require.NoError(t, err)
	require.NotNil(t, sig)

	expected, _, _ := sln.FindAssociatedTokenAddress(owner, mint)
	assert.Equal(t, expected, ata)

	// The created account is visible on chain, so a second call sends nothing.
	require.Contains(t, node.Accounts, ata)
	_, sig, err = transfers.EnsureATA(context.Background(), payer, owner, mint)
	require.NoError(t, err)
	assert.Nil(t, sig)
	assert.Equal(t, 1, node.SentCount())
}

func TestSignAndSendFailedTransaction(t *testing.T) {
	node := solanatest.NewFakeRPC()
	node.AutoConfirm = false
	payer := sln.NewWallet().PrivateKey

	sender := newTestSender(node)
	tx, err := sln.NewTransaction(
		[]sln.Instruction{system.NewTransferInstruction(1, payer.PublicKey(), payer.PublicKey()).Build()},
		node.Blockhash,
		sln.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)
	require.NoError(t, Sign(tx, payer))
	node.Statuses[tx.Signatures[0]] = &rpc.SignatureStatusesResult{
		ConfirmationStatus: rpc.ConfirmationStatusProcessed,
		Err:                map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
	}

	_, err = sender.SignAndSend(context.Background(), tx, false, payer)
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

func TestWaitForConfirmationTimesOut(t *testing.T) {
	node := solanatest.NewFakeRPC()
	node.AutoConfirm = false
	sender := newTestSender(node)
	sender.ConfirmTimeout = 20 * time.Millisecond

	err := sender.WaitForConfirmation(context.Background(), sln.Signature{1})
	assert.ErrorIs(t, err, ErrConfirmTimeout)
}

func TestSendErrorInvalidatesBlockhash(t *testing.T) {
	node := solanatest.NewFakeRPC()
	node.SendErr = errors.New("Blockhash not found")
	payer := sln.NewWallet().PrivateKey
	node.Balances[payer.PublicKey()] = LamportsPerSOL

	transfers := NewTransfers(newTestSender(node), logging.Discard())
	_, err := transfers.TransferSOL(context.Background(), payer, sln.NewWallet().PublicKey(), 1000)
	require.Error(t, err)
	_, err = transfers.TransferSOL(context.Background(), payer, sln.NewWallet().PublicKey(), 1000)
	require.Error(t, err)
	assert.Equal(t, 2, node.BlockhashCalls)
}

func TestPriorityFeeInstructions(t *testing.T) {
	node := solanatest.NewFakeRPC()
	payer := sln.NewWallet().PrivateKey
	node.Balances[payer.PublicKey()] = LamportsPerSOL

	sender := newTestSender(node)
	sender.PriorityFee = 100_000
	assert.Equal(t, uint64(100), sender.PriorityFeeLamports(1_000))

	transfers := NewTransfers(sender, logging.Discard())
	_, err := transfers.TransferSOL(context.Background(), payer, sln.NewWallet().PublicKey(), 1000)
	require.NoError(t, err)

	tx := node.LastSent()
	require.Len(t, tx.Message.Instructions, 3)
	assert.Equal(t, sln.MustPublicKeyFromBase58("ComputeBudget111111111111111111111111111111"), programOf(t, tx, tx.Message.Instructions[0]))
}
