package solanatest

import (
	"encoding/base64"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// UnsignedTransaction mimics what aggregator APIs return: a transaction paid
// by payer with an empty signature slot, serialized to wire bytes.
func UnsignedTransaction(payer solana.PublicKey) []byte {
	tx, err := solana.NewTransaction(
		[]solana.Instruction{system.NewTransferInstruction(1, payer, solana.NewWallet().PublicKey()).Build()},
		solana.Hash{1},
		solana.TransactionPayer(payer),
	)
	if err != nil {
		panic(err)
	}
	tx.Signatures = make([]solana.Signature, 1)
	raw, err := tx.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return raw
}

// UnsignedTransactionBase64 is UnsignedTransaction encoded as base64.
func UnsignedTransactionBase64(payer solana.PublicKey) string {
	return base64.StdEncoding.EncodeToString(UnsignedTransaction(payer))
}
