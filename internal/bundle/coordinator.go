// internal/bundle/coordinator.go
package bundle

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain"
	"github.com/rovshanmuradov/solana-bundler/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

// Coordinator turns ordered instruction groups into one signed bundle.
type Coordinator struct {
	packer    *Packer
	validator *transaction.Validator
	logger    *zap.Logger
}

// NewCoordinator creates a coordinator over the given packer.
func NewCoordinator(packer *Packer, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		packer:    packer,
		validator: transaction.NewValidator(logger),
		logger:    logger.Named("coordinator"),
	}
}

// AssembleBundle packs groups in order, attaches the tip, and signs every
// transaction against the one blockhash. The tip rides in the last
// transaction when it fits there, otherwise in a trailing tip-only one.
func (c *Coordinator) AssembleBundle(
	groups []Group,
	bh *blockchain.BlockhashInfo,
	tables map[solana.PublicKey]solana.PublicKeySlice,
	tip *Tip,
) (*Bundle, error) {
	if bh == nil || bh.Blockhash.IsZero() {
		return nil, types.NewError(types.KindValidation, "assemble bundle", fmt.Errorf("blockhash is required"))
	}

	var packed []*PackedTransaction
	for _, g := range groups {
		txs, err := c.packer.Pack(g.Sets, bh.Blockhash, tables)
		if err != nil {
			return nil, fmt.Errorf("group %q: %w", g.Name, err)
		}
		packed = append(packed, txs...)
	}
	if len(packed) == 0 {
		return nil, types.NewError(types.KindValidation, "assemble bundle", fmt.Errorf("no instructions to bundle"))
	}

	b := &Bundle{
		ID:                   uuid.NewString(),
		Blockhash:            bh.Blockhash,
		LastValidBlockHeight: bh.LastValidBlockHeight,
	}

	if tip != nil && tip.Lamports > 0 {
		if tip.Payer == nil {
			return nil, types.NewError(types.KindValidation, "assemble bundle", fmt.Errorf("tip payer is required"))
		}
		account := RandomTipAccount()
		var err error
		packed, err = c.attachTip(packed, *tip, account, bh.Blockhash, tables)
		if err != nil {
			return nil, err
		}
		b.TipAccount = account
		b.TipLamports = tip.Lamports
	}

	if len(packed) > MaxBundleTransaction {
		return nil, types.NewError(types.KindAssembly, "assemble bundle",
			fmt.Errorf("%w: %d transactions, max %d", types.ErrBundleTooLarge, len(packed), MaxBundleTransaction))
	}

	for i, p := range packed {
		if p.Tx.Message.RecentBlockhash != bh.Blockhash {
			return nil, types.NewError(types.KindAssembly, "assemble bundle",
				fmt.Errorf("%w: transaction %d", types.ErrBlockhashMismatch, i))
		}
		if err := c.sign(p); err != nil {
			return nil, types.NewError(types.KindAssembly, "sign",
				fmt.Errorf("transaction %d: %w", i, err))
		}
		b.Transactions = append(b.Transactions, p.Tx)
	}
	b.AnchorSignature = b.Transactions[0].Signatures[0]

	c.logger.Info("Bundle assembled",
		zap.String("bundle_id", b.ID),
		zap.Int("transactions", len(b.Transactions)),
		zap.String("anchor", b.AnchorSignature.String()),
		zap.String("blockhash", b.Blockhash.String()),
		zap.Uint64("tip_lamports", b.TipLamports))

	return b, nil
}

// attachTip tries the tip in the last transaction first.
func (c *Coordinator) attachTip(
	packed []*PackedTransaction,
	tip Tip,
	account solana.PublicKey,
	blockhash solana.Hash,
	tables map[solana.PublicKey]solana.PublicKeySlice,
) ([]*PackedTransaction, error) {
	set := tipSet(tip, account)
	last := packed[len(packed)-1]

	sets := append(append([]InstructionSet{}, last.Sets...), set)
	merged, err := c.packer.build(sets, blockhash, tables)
	if err != nil {
		return nil, err
	}
	if c.packer.fits(merged) {
		packed[len(packed)-1] = merged
		return packed, nil
	}

	c.logger.Debug("Tip does not fit the last transaction, appending tip-only transaction",
		zap.Int("last_size", last.Size))
	alone, err := c.packer.Pack([]InstructionSet{set}, blockhash, tables)
	if err != nil {
		return nil, err
	}
	return append(packed, alone...), nil
}

func (c *Coordinator) sign(p *PackedTransaction) error {
	// Sign дописывает подписи к уже существующим
	p.Tx.Signatures = nil
	if _, err := p.Tx.Sign(wallet.KeyGetter(p.Signers...)); err != nil {
		return err
	}
	return c.validator.ValidateTransaction(p.Tx)
}
