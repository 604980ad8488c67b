// internal/blockchain/solbc/lookup_builder.go
package solbc

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

// AddressLookupTableProgramID - нативная программа таблиц адресов.
var AddressLookupTableProgramID = solana.MustPublicKeyFromBase58("AddressLookupTab1e1111111111111111111111111")

const (
	lutCreateTag uint32 = 0
	lutExtendTag uint32 = 2

	// MaxExtendAddresses - адресов на одну extend-транзакцию; 20 ключей
	// оставляют запас до 1232 байт вместе с create.
	MaxExtendAddresses = 20
)

// Confirmer waits for a signature to land. *transaction.Watcher implements it.
type Confirmer interface {
	AwaitConfirmation(ctx context.Context, signature solana.Signature, lastValidBlockHeight uint64, commitment solanarpc.CommitmentType) (*transaction.Outcome, error)
}

var _ Confirmer = (*transaction.Watcher)(nil)

// DeriveLookupTableAddress returns the table PDA for authority and recent slot.
func DeriveLookupTableAddress(authority solana.PublicKey, recentSlot uint64) (solana.PublicKey, uint8, error) {
	slot := make([]byte, 8)
	binary.LittleEndian.PutUint64(slot, recentSlot)
	return solana.FindProgramAddress([][]byte{authority.Bytes(), slot}, AddressLookupTableProgramID)
}

// CreateLookupTableInstruction builds CreateLookupTable and returns the new table address.
func CreateLookupTableInstruction(authority, payer solana.PublicKey, recentSlot uint64) (solana.Instruction, solana.PublicKey, error) {
	table, bump, err := DeriveLookupTableAddress(authority, recentSlot)
	if err != nil {
		return nil, solana.PublicKey{}, fmt.Errorf("derive lookup table address: %w", err)
	}

	data := make([]byte, 13)
	binary.LittleEndian.PutUint32(data[0:4], lutCreateTag)
	binary.LittleEndian.PutUint64(data[4:12], recentSlot)
	data[12] = bump

	accounts := solana.AccountMetaSlice{
		solana.Meta(table).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(AddressLookupTableProgramID, accounts, data), table, nil
}

// ExtendLookupTableInstruction appends addresses to an existing table.
func ExtendLookupTableInstruction(table, authority, payer solana.PublicKey, addresses []solana.PublicKey) solana.Instruction {
	data := make([]byte, 12, 12+32*len(addresses))
	binary.LittleEndian.PutUint32(data[0:4], lutExtendTag)
	binary.LittleEndian.PutUint64(data[4:12], uint64(len(addresses)))
	for _, a := range addresses {
		data = append(data, a.Bytes()...)
	}

	accounts := solana.AccountMetaSlice{
		solana.Meta(table).WRITE(),
		solana.Meta(authority).SIGNER(),
		solana.Meta(payer).WRITE().SIGNER(),
		solana.Meta(solana.SystemProgramID),
	}
	return solana.NewInstruction(AddressLookupTableProgramID, accounts, data)
}

// LookupTableBuilder creates a lookup table and fills it before bundling.
type LookupTableBuilder struct {
	client    *Client
	confirmer Confirmer
	logger    *zap.Logger
}

// NewLookupTableBuilder creates a builder sending through client.
func NewLookupTableBuilder(client *Client, confirmer Confirmer, logger *zap.Logger) *LookupTableBuilder {
	return &LookupTableBuilder{
		client:    client,
		confirmer: confirmer,
		logger:    logger.Named("lut-builder"),
	}
}

// Create creates a table owned and paid for by authority, extends it with
// addresses in chunks and waits for every step to confirm. Duplicates are
// dropped; more than 256 addresses is an error.
func (b *LookupTableBuilder) Create(ctx context.Context, authority *wallet.Wallet, addresses []solana.PublicKey) (solana.PublicKey, error) {
	if authority == nil {
		return solana.PublicKey{}, fmt.Errorf("lookup table authority is nil")
	}
	addresses = uniqueKeys(addresses)
	if len(addresses) == 0 {
		return solana.PublicKey{}, fmt.Errorf("no addresses for lookup table")
	}
	if len(addresses) > addresslookuptable.LOOKUP_TABLE_MAX_ADDRESSES {
		return solana.PublicKey{}, fmt.Errorf("lookup table holds at most %d addresses, got %d",
			addresslookuptable.LOOKUP_TABLE_MAX_ADDRESSES, len(addresses))
	}

	// recent_slot должен быть в SlotHashes; finalized-слот туда гарантированно попадает.
	slot, err := b.client.GetSlot(ctx, solanarpc.CommitmentFinalized)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("recent slot: %w", err)
	}
	owner := authority.PublicKey
	create, table, err := CreateLookupTableInstruction(owner, owner, slot)
	if err != nil {
		return solana.PublicKey{}, err
	}
	logger := b.logger.With(zap.String("lut", table.String()), zap.Int("addresses", len(addresses)))

	for i, chunk := range chunkKeys(addresses, MaxExtendAddresses) {
		ixs := []solana.Instruction{ExtendLookupTableInstruction(table, owner, owner, chunk)}
		if i == 0 {
			ixs = append([]solana.Instruction{create}, ixs...)
		}
		if err := b.send(ctx, authority, ixs); err != nil {
			return solana.PublicKey{}, fmt.Errorf("lookup table %s step %d: %w", table, i, err)
		}
		logger.Debug("Lookup table step confirmed", zap.Int("step", i), zap.Int("chunk", len(chunk)))
	}

	logger.Info("Lookup table created")
	return table, nil
}

func (b *LookupTableBuilder) send(ctx context.Context, authority *wallet.Wallet, ixs []solana.Instruction) error {
	bh, err := b.client.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}
	tx, err := solana.NewTransaction(ixs, bh.Blockhash, solana.TransactionPayer(authority.PublicKey))
	if err != nil {
		return fmt.Errorf("build transaction: %w", err)
	}
	if _, err := tx.Sign(wallet.KeyGetter(authority)); err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := b.client.SendTransaction(ctx, tx)
	if err != nil {
		return err
	}
	outcome, err := b.confirmer.AwaitConfirmation(ctx, sig, bh.LastValidBlockHeight, solanarpc.CommitmentConfirmed)
	if err != nil {
		return err
	}
	if outcome.State != transaction.StateConfirmed {
		return fmt.Errorf("transaction %s ended %s %s", sig, outcome.State, outcome.Error)
	}
	return nil
}

func uniqueKeys(keys []solana.PublicKey) []solana.PublicKey {
	seen := make(map[solana.PublicKey]bool, len(keys))
	out := make([]solana.PublicKey, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func chunkKeys(keys []solana.PublicKey, size int) [][]solana.PublicKey {
	var chunks [][]solana.PublicKey
	for start := 0; start < len(keys); start += size {
		end := min(start+size, len(keys))
		chunks = append(chunks, keys[start:end])
	}
	return chunks
}
