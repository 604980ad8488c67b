// internal/bundle/packer.go
package bundle

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/types"
	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

// Limits are the per-transaction ceilings the packer honors.
type Limits struct {
	MaxTxSize       int
	MaxAccountLocks int
}

// DefaultLimits returns the protocol ceilings.
func DefaultLimits() Limits {
	return Limits{MaxTxSize: MaxTxSize, MaxAccountLocks: DefaultAccountLocks}
}

// Packer places instruction sets into as few transactions as the limits allow.
type Packer struct {
	limits Limits
	logger *zap.Logger
}

// NewPacker creates a packer; zero limits fall back to the protocol ceilings.
func NewPacker(limits Limits, logger *zap.Logger) *Packer {
	if limits.MaxTxSize <= 0 {
		limits.MaxTxSize = MaxTxSize
	}
	if limits.MaxAccountLocks <= 0 {
		limits.MaxAccountLocks = DefaultAccountLocks
	}
	return &Packer{
		limits: limits,
		logger: logger.Named("packer"),
	}
}

// Limits returns the effective ceilings.
func (p *Packer) Limits() Limits {
	return p.limits
}

// Pack greedily appends sets, in order, to the open transaction while the
// result stays within the limits, and starts a new transaction otherwise.
// A set that does not fit an empty transaction is an assembly error.
func (p *Packer) Pack(sets []InstructionSet, blockhash solana.Hash, tables map[solana.PublicKey]solana.PublicKeySlice) ([]*PackedTransaction, error) {
	var (
		packed []*PackedTransaction
		open   *PackedTransaction
	)

	for i, set := range sets {
		if len(set.Instructions) == 0 {
			continue
		}
		if open != nil {
			candidate, err := p.build(append(append([]InstructionSet{}, open.Sets...), set), blockhash, tables)
			if err != nil {
				return nil, err
			}
			if p.fits(candidate) {
				open = candidate
				continue
			}
			packed = append(packed, open)
		}

		single, err := p.build([]InstructionSet{set}, blockhash, tables)
		if err != nil {
			return nil, err
		}
		if !p.fits(single) {
			return nil, types.NewError(types.KindAssembly, "pack",
				fmt.Errorf("%w: set %d (%s) needs %d bytes and %d accounts, limits %d/%d",
					types.ErrOversizeInstructionSet, i, set.Label, single.Size, single.Accounts,
					p.limits.MaxTxSize, p.limits.MaxAccountLocks))
		}
		open = single
	}
	if open != nil {
		packed = append(packed, open)
	}

	for i, tx := range packed {
		p.logger.Debug("Packed transaction",
			zap.Int("index", i),
			zap.Int("sets", len(tx.Sets)),
			zap.Int("size", tx.Size),
			zap.Int("accounts", tx.Accounts),
			zap.String("fee_payer", tx.FeePayer.String()))
	}
	return packed, nil
}

func (p *Packer) fits(tx *PackedTransaction) bool {
	return tx.Size <= p.limits.MaxTxSize && tx.Accounts <= p.limits.MaxAccountLocks
}

// build compiles sets into one transaction carrying a single merged
// compute-budget pair. With lookup tables both encodings are compiled and
// the smaller one is kept.
func (p *Packer) build(sets []InstructionSet, blockhash solana.Hash, tables map[solana.PublicKey]solana.PublicKeySlice) (*PackedTransaction, error) {
	var (
		budget       types.ComputeBudget
		instructions []solana.Instruction
		signers      []*wallet.Wallet
		seen         = make(map[solana.PublicKey]bool)
	)
	for _, set := range sets {
		budget = budget.Merge(set.Budget)
		instructions = append(instructions, set.Instructions...)
		for _, s := range set.Signers {
			if s != nil && !seen[s.PublicKey] {
				seen[s.PublicKey] = true
				signers = append(signers, s)
			}
		}
	}
	instructions = append(budget.Instructions(), instructions...)
	payer := sets[0].FeePayer()

	best, err := compile(instructions, blockhash, payer)
	if err != nil {
		return nil, err
	}
	if len(tables) > 0 {
		withTables, err := compile(instructions, blockhash, payer, solana.TransactionAddressTables(tables))
		if err != nil {
			return nil, err
		}
		if withTables.Size < best.Size {
			best = withTables
		}
	}

	best.FeePayer = payer
	best.Blockhash = blockhash
	best.Signers = signers
	best.Sets = sets
	return best, nil
}

func compile(instructions []solana.Instruction, blockhash solana.Hash, payer solana.PublicKey, opts ...solana.TransactionOption) (*PackedTransaction, error) {
	opts = append([]solana.TransactionOption{solana.TransactionPayer(payer)}, opts...)
	tx, err := solana.NewTransaction(instructions, blockhash, opts...)
	if err != nil {
		return nil, types.NewError(types.KindAssembly, "compile", err)
	}
	size, err := SignedSize(tx)
	if err != nil {
		return nil, err
	}
	return &PackedTransaction{
		Tx:       tx,
		Size:     size,
		Accounts: AccountCount(tx),
	}, nil
}

// SignedSize is the serialized size of tx once every required signature is present.
func SignedSize(tx *solana.Transaction) (int, error) {
	saved := tx.Signatures
	tx.Signatures = make([]solana.Signature, tx.Message.Header.NumRequiredSignatures)
	defer func() { tx.Signatures = saved }()

	raw, err := tx.MarshalBinary()
	if err != nil {
		return 0, types.NewError(types.KindAssembly, "measure", err)
	}
	return len(raw), nil
}

// AccountCount counts static keys plus accounts loaded through lookup tables.
func AccountCount(tx *solana.Transaction) int {
	n := len(tx.Message.AccountKeys)
	for _, lookup := range tx.Message.AddressTableLookups {
		n += len(lookup.WritableIndexes) + len(lookup.ReadonlyIndexes)
	}
	return n
}

// SharedAccounts returns accounts referenced by more than one set, in first-seen order.
// Useful to pick lookup table contents for a batch.
func SharedAccounts(sets []InstructionSet) []solana.PublicKey {
	owners := make(map[solana.PublicKey]int)
	counts := make(map[solana.PublicKey]int)
	var order []solana.PublicKey

	for i, set := range sets {
		for _, ix := range set.Instructions {
			keys := append([]*solana.AccountMeta{}, ix.Accounts()...)
			keys = append(keys, &solana.AccountMeta{PublicKey: ix.ProgramID()})
			for _, meta := range keys {
				if meta == nil {
					continue
				}
				k := meta.PublicKey
				owner, ok := owners[k]
				switch {
				case !ok:
					owners[k] = i
					counts[k] = 1
					order = append(order, k)
				case owner != i:
					owners[k] = i
					counts[k]++
				}
			}
		}
	}

	var shared []solana.PublicKey
	for _, k := range order {
		if counts[k] > 1 {
			shared = append(shared, k)
		}
	}
	return shared
}
