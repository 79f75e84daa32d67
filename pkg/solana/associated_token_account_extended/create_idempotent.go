package associated_token_account_extended

import (
	"errors"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/text/format"
	"github.com/gagliardetto/treeout"
)

// CreateIdempotent creates the associated token account for Wallet and Mint
// unless it already exists. TokenProgram selects SPL Token or Token-2022.
type CreateIdempotent struct {
	Payer        solana.PublicKey `bin:"-" borsh_skip:"true"`
	Wallet       solana.PublicKey `bin:"-" borsh_skip:"true"`
	Mint         solana.PublicKey `bin:"-" borsh_skip:"true"`
	TokenProgram solana.PublicKey `bin:"-" borsh_skip:"true"`

	// [0] = [WRITE, SIGNER] Payer
	// [1] = [WRITE] AssociatedTokenAccount
	// [2] = [] Wallet
	// [3] = [] Mint
	// [4] = [] SystemProgram
	// [5] = [] TokenProgram
	solana.AccountMetaSlice `bin:"-" borsh_skip:"true"`
}

// NewCreateIdempotentInstructionBuilder creates an empty builder.
func NewCreateIdempotentInstructionBuilder() *CreateIdempotent {
	return &CreateIdempotent{}
}

// NewCreateIdempotentInstruction builds the instruction for the classic SPL Token program.
func NewCreateIdempotentInstruction(payer, wallet, mint solana.PublicKey) *CreateIdempotent {
	return NewCreateIdempotentInstructionBuilder().
		SetPayer(payer).
		SetWallet(wallet).
		SetMint(mint).
		SetTokenProgram(solana.TokenProgramID)
}

func (inst *CreateIdempotent) SetPayer(payer solana.PublicKey) *CreateIdempotent {
	inst.Payer = payer
	return inst
}

func (inst *CreateIdempotent) SetWallet(wallet solana.PublicKey) *CreateIdempotent {
	inst.Wallet = wallet
	return inst
}

func (inst *CreateIdempotent) SetMint(mint solana.PublicKey) *CreateIdempotent {
	inst.Mint = mint
	return inst
}

func (inst *CreateIdempotent) SetTokenProgram(program solana.PublicKey) *CreateIdempotent {
	inst.TokenProgram = program
	return inst
}

// FindAddress derives the associated token account for wallet, mint and token program.
func FindAddress(wallet, mint, tokenProgram solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{
		wallet[:],
		tokenProgram[:],
		mint[:],
	}, ProgramID)
}

func (inst CreateIdempotent) Build() *Instruction {
	ata, _, err := FindAddress(inst.Wallet, inst.Mint, inst.TokenProgram)
	if err != nil {
		panic(err)
	}

	inst.AccountMetaSlice = solana.AccountMetaSlice{
		solana.Meta(inst.Payer).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
		solana.Meta(inst.Wallet),
		solana.Meta(inst.Mint),
		solana.Meta(solana.SystemProgramID),
		solana.Meta(inst.TokenProgram),
	}

	return &Instruction{BaseVariant: bin.BaseVariant{
		Impl:   &inst,
		TypeID: bin.TypeIDFromUint8(Instruction_CreateIdempotent),
	}}
}

// ValidateAndBuild validates the instruction accounts.
func (inst CreateIdempotent) ValidateAndBuild() (*Instruction, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return inst.Build(), nil
}

func (inst *CreateIdempotent) Validate() error {
	switch {
	case inst.Payer.IsZero():
		return errors.New("Payer not set")
	case inst.Wallet.IsZero():
		return errors.New("Wallet not set")
	case inst.Mint.IsZero():
		return errors.New("Mint not set")
	case inst.TokenProgram.IsZero():
		return errors.New("TokenProgram not set")
	}
	return nil
}

func (inst *CreateIdempotent) EncodeToTree(parent treeout.Branches) {
	parent.Child(format.Program(ProgramName, ProgramID)).
		ParentFunc(func(programBranch treeout.Branches) {
			programBranch.Child(format.Instruction("CreateIdempotent")).
				ParentFunc(func(instructionBranch treeout.Branches) {
					instructionBranch.Child("Params[len=0]").ParentFunc(func(paramsBranch treeout.Branches) {})
					instructionBranch.Child("Accounts[len=6]").ParentFunc(func(accountsBranch treeout.Branches) {
						accountsBranch.Child(format.Meta("                 payer", inst.AccountMetaSlice.Get(0)))
						accountsBranch.Child(format.Meta("associatedTokenAddress", inst.AccountMetaSlice.Get(1)))
						accountsBranch.Child(format.Meta("                wallet", inst.AccountMetaSlice.Get(2)))
						accountsBranch.Child(format.Meta("             tokenMint", inst.AccountMetaSlice.Get(3)))
						accountsBranch.Child(format.Meta("         systemProgram", inst.AccountMetaSlice.Get(4)))
						accountsBranch.Child(format.Meta("          tokenProgram", inst.AccountMetaSlice.Get(5)))
					})
				})
		})
}

func (inst CreateIdempotent) MarshalWithEncoder(encoder *bin.Encoder) error {
	return nil
}

func (inst *CreateIdempotent) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	return nil
}

func (inst *CreateIdempotent) SetAccounts(accounts []*solana.AccountMeta) error {
	if len(accounts) < 6 {
		return errors.New("CreateIdempotent requires 6 accounts")
	}
	inst.AccountMetaSlice = accounts
	inst.Payer = accounts[0].PublicKey
	inst.Wallet = accounts[2].PublicKey
	inst.Mint = accounts[3].PublicKey
	inst.TokenProgram = accounts[5].PublicKey
	return nil
}

func (inst *CreateIdempotent) GetAccounts() []*solana.AccountMeta {
	return inst.AccountMetaSlice
}
