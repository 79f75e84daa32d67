package solana

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	ataext "veilfi-wallet/pkg/solana/associated_token_account_extended"
)

// Compute unit limits requested for each transfer kind.
const (
	solTransferUnits = 1_000
	splTransferUnits = 60_000
	ataCreateUnits   = 40_000
)

// Transfers moves SOL and SPL tokens out of custodial wallets.
type Transfers struct {
	node   RPC
	sender *Sender
	logger logrus.FieldLogger
}

// NewTransfers creates a transfer service sending through sender.
func NewTransfers(sender *Sender, logger logrus.FieldLogger) *Transfers {
	return &Transfers{node: sender.Node(), sender: sender, logger: logger}
}

// TransferSOL sends lamports from the owner of from to to. The balance must
// cover the amount plus the fee reserve.
func (t *Transfers) TransferSOL(ctx context.Context, from solana.PrivateKey, to solana.PublicKey, lamports uint64) (solana.Signature, error) {
	if lamports == 0 {
		return solana.Signature{}, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	owner := from.PublicKey()
	balance, err := t.node.GetBalance(ctx, owner, rpc.CommitmentConfirmed)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get balance: %w", err)
	}

	reserve := uint64(FeeReserveLamports) + t.sender.PriorityFeeLamports(solTransferUnits)
	if balance.Value < lamports+reserve {
		return solana.Signature{}, fmt.Errorf("%w: have %d lamports, need %d", ErrInsufficientFunds, balance.Value, lamports+reserve)
	}

	t.logger.WithField("wallet", owner.String()).Infof("Sending %s SOL to %s", LamportsToSOL(lamports), to)

	ix := system.NewTransferInstruction(lamports, owner, to).Build()
	return t.sender.BuildAndSend(ctx, from, solTransferUnits, []solana.Instruction{ix})
}

// SPLTransfer describes a token transfer. Exactly one of Amount (base units)
// or UIAmount must be set.
type SPLTransfer struct {
	To       solana.PublicKey
	Mint     solana.PublicKey
	Amount   uint64
	UIAmount string
}

// TransferSPL sends tokens from the sender's ATA to the recipient's ATA,
// creating the latter when missing.
func (t *Transfers) TransferSPL(ctx context.Context, from solana.PrivateKey, req SPLTransfer) (solana.Signature, error) {
	owner := from.PublicKey()

	program, err := TokenProgramOf(ctx, t.node, req.Mint)
	if err != nil {
		return solana.Signature{}, err
	}

	source, err := FindATA(owner, req.Mint, program)
	if err != nil {
		return solana.Signature{}, err
	}
	sourceBalance, err := t.node.GetTokenAccountBalance(ctx, source, rpc.CommitmentConfirmed)
	if err != nil || sourceBalance.Value == nil {
		return solana.Signature{}, fmt.Errorf("%w: %s", ErrTokenAccountAbsent, source)
	}
	decimals := sourceBalance.Value.Decimals

	amount := req.Amount
	if req.UIAmount != "" {
		if amount, err = UIToBaseUnits(req.UIAmount, decimals); err != nil {
			return solana.Signature{}, err
		}
	}
	if amount == 0 {
		return solana.Signature{}, fmt.Errorf("%w: amount must be positive", ErrInvalidAmount)
	}

	held, err := strconv.ParseUint(sourceBalance.Value.Amount, 10, 64)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to parse token balance: %w", err)
	}
	if held < amount {
		return solana.Signature{}, fmt.Errorf("%w: have %d base units, need %d", ErrInsufficientFunds, held, amount)
	}

	destination, err := FindATA(req.To, req.Mint, program)
	if err != nil {
		return solana.Signature{}, err
	}

	var instrs []solana.Instruction
	units := uint32(splTransferUnits)
	exists, err := AccountExists(ctx, t.node, destination)
	if err != nil {
		t.logger.WithError(err).Warn("could not check destination token account, creating idempotently")
	}
	if !exists {
		instrs = append(instrs, createATAInstruction(owner, req.To, req.Mint, program))
		units += ataCreateUnits
	}

	transfer, err := transferCheckedInstruction(amount, decimals, source, req.Mint, destination, owner, program)
	if err != nil {
		return solana.Signature{}, err
	}
	instrs = append(instrs, transfer)

	t.logger.WithFields(logrus.Fields{"wallet": owner.String(), "mint": req.Mint.String()}).
		Infof("Sending %s tokens to %s", BaseUnitsToUI(amount, decimals), req.To)

	return t.sender.BuildAndSend(ctx, from, units, instrs)
}

// EnsureATA creates owner's token account for mint, paid by payer, unless it
// already exists. The signature is nil when nothing was sent.
func (t *Transfers) EnsureATA(ctx context.Context, payer solana.PrivateKey, owner, mint solana.PublicKey) (solana.PublicKey, *solana.Signature, error) {
	program, err := TokenProgramOf(ctx, t.node, mint)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	ata, err := FindATA(owner, mint, program)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}

	exists, err := AccountExists(ctx, t.node, ata)
	if err != nil {
		return ata, nil, err
	}
	if exists {
		return ata, nil, nil
	}

	sig, err := t.sender.BuildAndSend(ctx, payer, ataCreateUnits, []solana.Instruction{
		createATAInstruction(payer.PublicKey(), owner, mint, program),
	})
	if err != nil {
		return ata, nil, fmt.Errorf("failed to create token account: %w", err)
	}
	return ata, &sig, nil
}

func createATAInstruction(payer, owner, mint, program solana.PublicKey) solana.Instruction {
	return ataext.NewCreateIdempotentInstructionBuilder().
		SetPayer(payer).
		SetWallet(owner).
		SetMint(mint).
		SetTokenProgram(program).
		Build()
}

// transferCheckedInstruction builds an SPL transferChecked; Token-2022 shares
// the layout, so the instruction is re-addressed to that program.
func transferCheckedInstruction(amount uint64, decimals uint8, source, mint, destination, owner, program solana.PublicKey) (solana.Instruction, error) {
	ix := token.NewTransferCheckedInstruction(amount, decimals, source, mint, destination, owner, []solana.PublicKey{}).Build()
	if program.Equals(solana.TokenProgramID) {
		return ix, nil
	}
	data, err := ix.Data()
	if err != nil {
		return nil, fmt.Errorf("failed to encode transfer: %w", err)
	}
	return solana.NewInstruction(program, ix.Accounts(), data), nil
}
