package pumpswap

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account discriminators extracted from the IDL
var (
	GlobalConfigDiscriminator = [8]byte{149, 8, 156, 202, 160, 252, 176, 217}
	PoolDiscriminator         = [8]byte{241, 154, 109, 4, 17, 177, 109, 188}
)

// SPL token account: amount лежит после mint и owner.
const (
	TokenAccountAmountOffset = 64
	TokenAccountAmountSize   = 8
)

// GlobalConfig represents the global configuration for PumpSwap
type GlobalConfig struct {
	Discriminator          [8]byte
	Admin                  solana.PublicKey    // The admin public key
	LPFeeBasisPoints       uint64              // LP fee in basis points (0.01%)
	ProtocolFeeBasisPoints uint64              // Protocol fee in basis points (0.01%)
	DisableFlags           uint8               // Flags to disable certain functionality
	ProtocolFeeRecipients  [8]solana.PublicKey // Addresses of protocol fee recipients
}

// coin_creator_fee_basis_points следует за фиксированной частью у новых конфигов.
const creatorFeeOffset = 8 + 32 + 8 + 8 + 1 + 32*8

// DisableFlags bits in GlobalConfig
const (
	DisableCreatePool = 1 << iota
	DisableDeposit
	DisableWithdraw
	DisableBuy
	DisableSell
)

// TotalFeeBps sums every fee the pool charges on the input side.
func (c *GlobalConfig) TotalFeeBps(creatorFee uint64) uint64 {
	return c.LPFeeBasisPoints + c.ProtocolFeeBasisPoints + creatorFee
}

// ParseGlobalConfig parses account data into GlobalConfig structure and
// returns the creator fee when the account carries one.
func ParseGlobalConfig(data []byte) (*GlobalConfig, uint64, error) {
	var cfg GlobalConfig
	if err := bin.NewBorshDecoder(data).Decode(&cfg); err != nil {
		return nil, 0, fmt.Errorf("failed to decode global config: %w", err)
	}
	if !bytes.Equal(cfg.Discriminator[:], GlobalConfigDiscriminator[:]) {
		return nil, 0, fmt.Errorf("invalid discriminator for GlobalConfig")
	}

	var creatorFee uint64
	if len(data) >= creatorFeeOffset+8 {
		creatorFee = binary.LittleEndian.Uint64(data[creatorFeeOffset : creatorFeeOffset+8])
	}
	return &cfg, creatorFee, nil
}

// poolLayout - фиксированная часть аккаунта пула.
type poolLayout struct {
	Discriminator         [8]byte
	PoolBump              uint8
	Index                 uint16
	Creator               solana.PublicKey
	BaseMint              solana.PublicKey
	QuoteMint             solana.PublicKey
	LPMint                solana.PublicKey
	PoolBaseTokenAccount  solana.PublicKey
	PoolQuoteTokenAccount solana.PublicKey
	LPSupply              uint64
}

const coinCreatorOffset = 8 + 1 + 2 + 32*6 + 8

// PoolState represents a liquidity pool account in PumpSwap
type PoolState struct {
	Index                 uint16
	Creator               solana.PublicKey
	BaseMint              solana.PublicKey // traded token
	QuoteMint             solana.PublicKey // wrapped SOL
	LPMint                solana.PublicKey
	PoolBaseTokenAccount  solana.PublicKey
	PoolQuoteTokenAccount solana.PublicKey
	LPSupply              uint64
	CoinCreator           solana.PublicKey
}

// ParsePool parses account data into PoolState
func ParsePool(data []byte) (*PoolState, error) {
	var layout poolLayout
	if err := bin.NewBorshDecoder(data).Decode(&layout); err != nil {
		return nil, fmt.Errorf("failed to decode pool: %w", err)
	}
	if !bytes.Equal(layout.Discriminator[:], PoolDiscriminator[:]) {
		return nil, fmt.Errorf("invalid discriminator for Pool")
	}

	state := &PoolState{
		Index:                 layout.Index,
		Creator:               layout.Creator,
		BaseMint:              layout.BaseMint,
		QuoteMint:             layout.QuoteMint,
		LPMint:                layout.LPMint,
		PoolBaseTokenAccount:  layout.PoolBaseTokenAccount,
		PoolQuoteTokenAccount: layout.PoolQuoteTokenAccount,
		LPSupply:              layout.LPSupply,
	}
	if len(data) >= coinCreatorOffset+solana.PublicKeyLength {
		state.CoinCreator = solana.PublicKeyFromBytes(data[coinCreatorOffset : coinCreatorOffset+solana.PublicKeyLength])
	}
	return state, nil
}

// parseTokenAmount извлекает баланс из бинарных данных токен-аккаунта.
func parseTokenAmount(data []byte) (uint64, error) {
	if len(data) < TokenAccountAmountOffset+TokenAccountAmountSize {
		return 0, fmt.Errorf("token account data too short: %d bytes", len(data))
	}
	return binary.LittleEndian.Uint64(data[TokenAccountAmountOffset : TokenAccountAmountOffset+TokenAccountAmountSize]), nil
}
