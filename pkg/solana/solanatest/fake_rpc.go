// Package solanatest provides an in-memory stand-in for the Solana JSON-RPC
// client used by wallet, swap and deposit tests.
package solanatest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	ataext "veilfi-wallet/pkg/solana/associated_token_account_extended"
)

// FakeRPC records sent transactions and answers queries from its maps.
type FakeRPC struct {
	mu sync.Mutex

	Balances      map[solana.PublicKey]uint64
	Accounts      map[solana.PublicKey]*rpc.Account
	TokenAccounts map[solana.PublicKey][]*rpc.TokenAccount // by owner
	TokenBalances map[solana.PublicKey]*rpc.UiTokenAmount  // by token account
	Signatures    map[solana.PublicKey][]*rpc.TransactionSignature
	Transactions  map[solana.Signature]*rpc.GetParsedTransactionResult
	Statuses      map[solana.Signature]*rpc.SignatureStatusesResult

	Blockhash      solana.Hash
	BlockhashCalls int
	RentExempt     uint64

	// AutoConfirm reports every sent transaction as confirmed.
	AutoConfirm bool
	SendErr     error
	BalanceErr  error
	Sent        []*solana.Transaction
	SentOpts    []rpc.TransactionOpts
}

// NewFakeRPC returns an empty chain that confirms whatever is sent.
func NewFakeRPC() *FakeRPC {
	return &FakeRPC{
		Balances:      make(map[solana.PublicKey]uint64),
		Accounts:      make(map[solana.PublicKey]*rpc.Account),
		TokenAccounts: make(map[solana.PublicKey][]*rpc.TokenAccount),
		TokenBalances: make(map[solana.PublicKey]*rpc.UiTokenAmount),
		Signatures:    make(map[solana.PublicKey][]*rpc.TransactionSignature),
		Transactions:  make(map[solana.Signature]*rpc.GetParsedTransactionResult),
		Statuses:      make(map[solana.Signature]*rpc.SignatureStatusesResult),
		Blockhash:     solana.HashFromBytes([]byte("veilfi-test-blockhash-0000000000")),
		RentExempt:    2_039_280,
		AutoConfirm:   true,
	}
}

func (f *FakeRPC) GetBalance(_ context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.BalanceErr != nil {
		return nil, f.BalanceErr
	}
	return &rpc.GetBalanceResult{Value: f.Balances[account]}, nil
}

func (f *FakeRPC) GetTokenAccountsByOwner(_ context.Context, owner solana.PublicKey, conf *rpc.GetTokenAccountsConfig, _ *rpc.GetTokenAccountsOpts) (*rpc.GetTokenAccountsResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*rpc.TokenAccount
	for _, acc := range f.TokenAccounts[owner] {
		if conf != nil && conf.ProgramId != nil && !acc.Account.Owner.Equals(*conf.ProgramId) {
			continue
		}
		if conf != nil && conf.Mint != nil {
			if mint, ok := mintOf(acc); !ok || !mint.Equals(*conf.Mint) {
				continue
			}
		}
		out = append(out, acc)
	}
	return &rpc.GetTokenAccountsResult{Value: out}, nil
}

func (f *FakeRPC) GetTokenAccountBalance(_ context.Context, account solana.PublicKey, _ rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	bal, ok := f.TokenBalances[account]
	if !ok {
		return nil, fmt.Errorf("could not find account %s", account)
	}
	return &rpc.GetTokenAccountBalanceResult{Value: bal}, nil
}

func (f *FakeRPC) GetAccountInfo(_ context.Context, account solana.PublicKey) (*rpc.GetAccountInfoResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc, ok := f.Accounts[account]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return &rpc.GetAccountInfoResult{Value: acc}, nil
}

func (f *FakeRPC) GetLatestBlockhash(_ context.Context, _ rpc.CommitmentType) (*rpc.GetLatestBlockhashResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.BlockhashCalls++
	return &rpc.GetLatestBlockhashResult{Value: &rpc.LatestBlockhashResult{
		Blockhash:            f.Blockhash,
		LastValidBlockHeight: 1000,
	}}, nil
}

func (f *FakeRPC) SendTransactionWithOpts(_ context.Context, tx *solana.Transaction, opts rpc.TransactionOpts) (solana.Signature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SendErr != nil {
		return solana.Signature{}, f.SendErr
	}
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, fmt.Errorf("transaction is not signed")
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("signature verification failed: %w", err)
	}
	created, err := ataext.Creations(tx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("invalid token account creation: %w", err)
	}
	for _, c := range created {
		if _, ok := f.Accounts[c.Account]; !ok {
			f.Accounts[c.Account] = &rpc.Account{Owner: c.TokenProgram, Lamports: f.RentExempt}
		}
	}
	f.Sent = append(f.Sent, tx)
	f.SentOpts = append(f.SentOpts, opts)
	return tx.Signatures[0], nil
}

func (f *FakeRPC) GetSignatureStatuses(_ context.Context, _ bool, sigs ...solana.Signature) (*rpc.GetSignatureStatusesResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*rpc.SignatureStatusesResult, len(sigs))
	for i, sig := range sigs {
		if status, ok := f.Statuses[sig]; ok {
			out[i] = status
			continue
		}
		if f.AutoConfirm && f.wasSent(sig) {
			out[i] = &rpc.SignatureStatusesResult{Slot: 1, ConfirmationStatus: rpc.ConfirmationStatusConfirmed}
		}
	}
	return &rpc.GetSignatureStatusesResult{Value: out}, nil
}

func (f *FakeRPC) GetSignaturesForAddressWithOpts(_ context.Context, account solana.PublicKey, opts *rpc.GetSignaturesForAddressOpts) ([]*rpc.TransactionSignature, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sigs := f.Signatures[account]
	if opts != nil && opts.Limit != nil && len(sigs) > *opts.Limit {
		sigs = sigs[:*opts.Limit]
	}
	return sigs, nil
}

func (f *FakeRPC) GetParsedTransaction(_ context.Context, sig solana.Signature, _ *rpc.GetParsedTransactionOpts) (*rpc.GetParsedTransactionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tx, ok := f.Transactions[sig]
	if !ok {
		return nil, rpc.ErrNotFound
	}
	return tx, nil
}

func (f *FakeRPC) GetMinimumBalanceForRentExemption(_ context.Context, _ uint64, _ rpc.CommitmentType) (uint64, error) {
	return f.RentExempt, nil
}

// SentCount returns how many transactions were accepted.
func (f *FakeRPC) SentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Sent)
}

// LastSent returns the most recent transaction, or nil.
func (f *FakeRPC) LastSent() *solana.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.Sent) == 0 {
		return nil
	}
	return f.Sent[len(f.Sent)-1]
}

func (f *FakeRPC) wasSent(sig solana.Signature) bool {
	for _, tx := range f.Sent {
		if len(tx.Signatures) > 0 && tx.Signatures[0] == sig {
			return true
		}
	}
	return false
}

// AddTokenAccount registers a jsonParsed token account for owner, as
// getTokenAccountsByOwner and getTokenAccountBalance would report it.
func (f *FakeRPC) AddTokenAccount(owner, account, mint, program solana.PublicKey, amount string, decimals uint8, uiAmount string) {
	raw := fmt.Sprintf(`{
		"pubkey": %q,
		"account": {
			"lamports": 2039280,
			"owner": %q,
			"executable": false,
			"rentEpoch": 0,
			"data": {
				"program": "spl-token",
				"parsed": {
					"type": "account",
					"info": {
						"mint": %q,
						"owner": %q,
						"tokenAmount": {"amount": %q, "decimals": %d, "uiAmountString": %q}
					}
				},
				"space": 165
			}
		}
	}`, account, program, mint, owner, amount, decimals, uiAmount)

	var ta rpc.TokenAccount
	if err := json.Unmarshal([]byte(raw), &ta); err != nil {
		panic(err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.TokenAccounts[owner] = append(f.TokenAccounts[owner], &ta)
	f.TokenBalances[account] = &rpc.UiTokenAmount{Amount: amount, Decimals: decimals, UiAmountString: uiAmount}
	f.Accounts[account] = &rpc.Account{Owner: program, Lamports: 2039280}
}

// AddMint registers a mint owned by program.
func (f *FakeRPC) AddMint(mint, program solana.PublicKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Accounts[mint] = &rpc.Account{Owner: program, Lamports: 1461600}
}

func mintOf(acc *rpc.TokenAccount) (solana.PublicKey, bool) {
	var parsed struct {
		Parsed struct {
			Info struct {
				Mint string `json:"mint"`
			} `json:"info"`
		} `json:"parsed"`
	}
	if acc.Account.Data == nil || json.Unmarshal(acc.Account.Data.GetRawJSON(), &parsed) != nil {
		return solana.PublicKey{}, false
	}
	mint, err := solana.PublicKeyFromBase58(parsed.Parsed.Info.Mint)
	return mint, err == nil
}
