// internal/bundle/types.go
package bundle

import (
	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-bundler/internal/types"
	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

// Protocol ceilings.
const (
	MaxTxSize            = 1232 // байт на сериализованную транзакцию
	DefaultAccountLocks  = 64   // уникальных аккаунтов на транзакцию
	MaxBundleTransaction = 5    // транзакций в одном бандле у релея
)

// InstructionSet is the atomic unit the packer places: one wallet's swap or
// one prelude step. Its instructions are never split across transactions.
type InstructionSet struct {
	Label        string
	Instructions []solana.Instruction
	// Signers[0] pays fees when the set opens a transaction.
	Signers []*wallet.Wallet
	Budget  types.ComputeBudget
	// MaxInput is the quoted input committed by the swap (0 for prelude sets).
	MaxInput uint64
}

// FeePayer returns the first signer of the set.
func (s InstructionSet) FeePayer() solana.PublicKey {
	if len(s.Signers) == 0 || s.Signers[0] == nil {
		return solana.PublicKey{}
	}
	return s.Signers[0].PublicKey
}

// WithBudget returns the set's instructions prefixed by its compute-budget pair.
func (s InstructionSet) WithBudget() []solana.Instruction {
	out := s.Budget.Instructions()
	return append(out, s.Instructions...)
}

// PackedTransaction is an unsigned transaction holding whole instruction sets.
type PackedTransaction struct {
	Tx        *solana.Transaction
	FeePayer  solana.PublicKey
	Blockhash solana.Hash
	Signers   []*wallet.Wallet
	Sets      []InstructionSet
	Size      int // serialized size with all signatures present
	Accounts  int // unique accounts, table lookups included
}

// Group is an ordered run of instruction sets packed together.
// Groups keep their order in the bundle and never share a transaction.
type Group struct {
	Name string
	Sets []InstructionSet
}

// Tip describes the relay tip appended to the bundle.
type Tip struct {
	Payer    *wallet.Wallet
	Lamports uint64
}

// Bundle is an ordered, signed set of transactions sharing one blockhash.
type Bundle struct {
	ID                   string
	Transactions         []*solana.Transaction
	AnchorSignature      solana.Signature
	Blockhash            solana.Hash
	LastValidBlockHeight uint64
	TipAccount           solana.PublicKey
	TipLamports          uint64
}
