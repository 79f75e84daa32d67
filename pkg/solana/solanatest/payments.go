package solanatest

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// SOLPayment is a parsed system transfer of lamports from payer to recipient
// with a 5000 lamport fee. failed marks the transaction as errored on chain.
func SOLPayment(sig solana.Signature, payer, recipient solana.PublicKey, lamports uint64, failed bool) *rpc.GetParsedTransactionResult {
	const fee = 5000
	payerPre, recipientPre := uint64(10_000_000_000), uint64(1_000_000_000)
	payerPost, recipientPost := payerPre-lamports-fee, recipientPre+lamports
	errJSON := "null"
	if failed {
		payerPost, recipientPost = payerPre-fee, recipientPre
		errJSON = `{"InstructionError":[0,"Custom"]}`
	}

	raw := fmt.Sprintf(`{
		"slot": 260000000,
		"blockTime": 1710000000,
		"transaction": {
			"signatures": [%q],
			"message": {
				"accountKeys": [
					{"pubkey": %q, "signer": true, "writable": true},
					{"pubkey": %q, "signer": false, "writable": true},
					{"pubkey": "11111111111111111111111111111111", "signer": false, "writable": false}
				],
				"instructions": [
					{"program": "system", "programId": "11111111111111111111111111111111",
					 "parsed": {"type": "transfer", "info": {"source": %[2]q, "destination": %[3]q, "lamports": %[4]d}}}
				],
				"recentBlockhash": "11111111111111111111111111111111"
			}
		},
		"meta": {
			"err": %[5]s,
			"fee": %[6]d,
			"preBalances": [%[7]d, %[8]d, 1],
			"postBalances": [%[9]d, %[10]d, 1],
			"innerInstructions": [],
			"preTokenBalances": [],
			"postTokenBalances": [],
			"logMessages": []
		}
	}`, sig.String(), payer.String(), recipient.String(), lamports, errJSON, fee, payerPre, recipientPre, payerPost, recipientPost)

	var tx rpc.GetParsedTransactionResult
	if err := json.Unmarshal([]byte(raw), &tx); err != nil {
		panic(err)
	}
	return &tx
}
