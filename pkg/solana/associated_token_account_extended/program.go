// Package associated_token_account_extended adds the CreateIdempotent
// instruction to solana-go's associated token account program, derives
// addresses for both token programs and finds account creations in
// transactions.
package associated_token_account_extended

import (
	"bytes"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	"github.com/gagliardetto/solana-go/text"
	"github.com/gagliardetto/treeout"
)

var ProgramID = solana.SPLAssociatedTokenAccountProgramID

const ProgramName = "AssociatedTokenAccount"

// Instruction discriminators. A legacy Create carries no data at all.
const (
	Instruction_Create uint8 = iota
	Instruction_CreateIdempotent
	Instruction_RecoverNested
)

var instructionNames = map[uint8]string{
	Instruction_Create:           "Create",
	Instruction_CreateIdempotent: "CreateIdempotent",
	Instruction_RecoverNested:    "RecoverNested",
}

// InstructionIDToName returns the instruction name, or "" when unknown.
func InstructionIDToName(id uint8) string {
	return instructionNames[id]
}

var instructionVariants = bin.NewVariantDefinition(
	bin.Uint8TypeIDEncoding,
	[]bin.VariantType{
		{Name: "Create", Type: (*associatedtokenaccount.Create)(nil)},
		{Name: "CreateIdempotent", Type: (*CreateIdempotent)(nil)},
	},
)

// Instruction is a built or decoded associated token account instruction.
// It satisfies solana.Instruction.
type Instruction struct {
	bin.BaseVariant
}

func (inst *Instruction) ProgramID() solana.PublicKey {
	return ProgramID
}

func (inst *Instruction) Accounts() []*solana.AccountMeta {
	return inst.Impl.(solana.AccountsGettable).GetAccounts()
}

func (inst *Instruction) Data() ([]byte, error) {
	var buf bytes.Buffer
	if err := bin.NewBinEncoder(&buf).Encode(inst); err != nil {
		return nil, fmt.Errorf("encode %s instruction: %w", ProgramName, err)
	}
	return buf.Bytes(), nil
}

func (inst *Instruction) EncodeToTree(parent treeout.Branches) {
	if tree, ok := inst.Impl.(text.EncodableToTree); ok {
		tree.EncodeToTree(parent)
		return
	}
	parent.Child(spew.Sdump(inst))
}

func (inst *Instruction) TextEncode(encoder *text.Encoder, option *text.Option) error {
	return encoder.Encode(inst.Impl, option)
}

func (inst *Instruction) UnmarshalWithDecoder(decoder *bin.Decoder) error {
	return inst.BaseVariant.UnmarshalBinaryVariant(decoder, instructionVariants)
}

func (inst Instruction) MarshalWithEncoder(encoder *bin.Encoder) error {
	if err := encoder.WriteUint8(inst.TypeID.Uint8()); err != nil {
		return fmt.Errorf("write %s discriminator: %w", ProgramName, err)
	}
	return encoder.Encode(inst.Impl)
}

// DecodeInstruction parses instruction data and attaches its accounts.
func DecodeInstruction(accounts []*solana.AccountMeta, data []byte) (*Instruction, error) {
	inst := new(Instruction)
	if err := bin.NewBinDecoder(data).Decode(inst); err != nil {
		return nil, fmt.Errorf("decode %s instruction: %w", ProgramName, err)
	}
	if settable, ok := inst.Impl.(solana.AccountsSettable); ok {
		if err := settable.SetAccounts(accounts); err != nil {
			return nil, fmt.Errorf("set %s accounts: %w", ProgramName, err)
		}
	}
	return inst, nil
}

// Creation is an associated token account created by a transaction.
type Creation struct {
	Account      solana.PublicKey
	Wallet       solana.PublicKey
	Mint         solana.PublicKey
	TokenProgram solana.PublicKey
	Idempotent   bool
}

// Creations lists the associated token accounts tx creates, in instruction
// order. RecoverNested instructions are ignored.
func Creations(tx *solana.Transaction) ([]Creation, error) {
	keys := tx.Message.AccountKeys
	var out []Creation
	for i, ix := range tx.Message.Instructions {
		program, err := tx.Message.ResolveProgramIDIndex(ix.ProgramIDIndex)
		if err != nil {
			return nil, fmt.Errorf("instruction %d: %w", i, err)
		}
		if !program.Equals(ProgramID) {
			continue
		}

		idempotent := len(ix.Data) > 0 && ix.Data[0] == Instruction_CreateIdempotent
		if len(ix.Data) > 0 && ix.Data[0] != Instruction_Create && !idempotent {
			continue
		}
		if len(ix.Accounts) < 6 {
			return nil, fmt.Errorf("instruction %d: %d accounts, create needs 6", i, len(ix.Accounts))
		}
		var accounts [6]solana.PublicKey
		for j := range accounts {
			idx := int(ix.Accounts[j])
			if idx >= len(keys) {
				return nil, fmt.Errorf("instruction %d: account index %d out of range", i, idx)
			}
			accounts[j] = keys[idx]
		}

		out = append(out, Creation{
			Account:      accounts[1],
			Wallet:       accounts[2],
			Mint:         accounts[3],
			TokenProgram: accounts[5],
			Idempotent:   idempotent,
		})
	}
	return out, nil
}
