// =============================
// File: internal/dex/pumpswap/pool.go
// =============================
package pumpswap

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-bundler/internal/dex/model"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

// PoolAccounts are the addresses identifying one PumpSwap pool.
type PoolAccounts struct {
	Address              solana.PublicKey
	BaseMint             solana.PublicKey
	PoolBaseVault        solana.PublicKey
	PoolQuoteVault       solana.PublicKey
	CoinCreator          solana.PublicKey
	ProtocolFeeRecipient solana.PublicKey
}

// Pool is a constant-product PumpSwap pool with SOL (wrapped) on the quote side.
type Pool struct {
	accounts PoolAccounts

	globalConfig            solana.PublicKey
	eventAuthority          solana.PublicKey
	creatorVaultAuthority   solana.PublicKey
	creatorVaultATA         solana.PublicKey
	protocolFeeRecipientATA solana.PublicKey

	BaseReserve  uint64
	QuoteReserve uint64
	FeeBps       uint16
}

var _ model.Pool = (*Pool)(nil)

// NewPool derives the program accounts for a pool snapshot.
// A zero ProtocolFeeRecipient falls back to the first mainnet recipient.
func NewPool(accounts PoolAccounts, baseReserve, quoteReserve uint64, feeBps uint16) (*Pool, error) {
	if accounts.Address.IsZero() || accounts.BaseMint.IsZero() {
		return nil, fmt.Errorf("pool address and base mint are required")
	}
	if accounts.PoolBaseVault.IsZero() || accounts.PoolQuoteVault.IsZero() {
		return nil, fmt.Errorf("pool vaults are required")
	}
	if accounts.ProtocolFeeRecipient.IsZero() {
		accounts.ProtocolFeeRecipient = MainnetFeeRecipients[0]
	}

	globalConfig, err := DeriveGlobalConfig()
	if err != nil {
		return nil, err
	}
	eventAuthority, err := DeriveEventAuthority()
	if err != nil {
		return nil, err
	}
	vaultAuthority, vaultATA, err := DeriveCreatorVault(accounts.CoinCreator, solana.WrappedSol)
	if err != nil {
		return nil, err
	}
	feeATA, _, err := solana.FindAssociatedTokenAddress(accounts.ProtocolFeeRecipient, solana.WrappedSol)
	if err != nil {
		return nil, fmt.Errorf("failed to derive protocol fee recipient ata: %w", err)
	}

	return &Pool{
		accounts:                accounts,
		globalConfig:            globalConfig,
		eventAuthority:          eventAuthority,
		creatorVaultAuthority:   vaultAuthority,
		creatorVaultATA:         vaultATA,
		protocolFeeRecipientATA: feeATA,
		BaseReserve:             baseReserve,
		QuoteReserve:            quoteReserve,
		FeeBps:                  feeBps,
	}, nil
}

func (p *Pool) Variant() model.Variant      { return model.VariantConstantProduct }
func (p *Pool) ProgramID() solana.PublicKey { return PumpSwapProgramID }
func (p *Pool) BaseMint() solana.PublicKey  { return p.accounts.BaseMint }
func (p *Pool) WrapsNative() bool           { return true }

// Accounts returns the identifying addresses of the pool.
func (p *Pool) Accounts() PoolAccounts { return p.accounts }

// Reserves orients vault balances: a buy pays quote (SOL) for base.
func (p *Pool) Reserves(direction types.Direction) types.PoolReserves {
	return model.OrientReserves(direction, p.BaseReserve, p.QuoteReserve, p.FeeBps)
}

// SwapInstruction creates buy(baseAmountOut, maxQuoteAmountIn) or
// sell(baseAmountIn, minQuoteAmountOut).
func (p *Pool) SwapInstruction(params model.SwapParams) (solana.Instruction, error) {
	if params.User.IsZero() || params.UserBase.IsZero() || params.UserQuote.IsZero() {
		return nil, fmt.Errorf("user, base and quote token accounts are required")
	}

	data := make([]byte, 8+8+8)
	switch params.Direction {
	case types.DirectionBuy:
		copy(data[0:8], buyDiscriminator)
		binary.LittleEndian.PutUint64(data[8:16], params.AmountOut)
		binary.LittleEndian.PutUint64(data[16:24], params.MaxAmountIn)
	case types.DirectionSell:
		copy(data[0:8], sellDiscriminator)
		binary.LittleEndian.PutUint64(data[8:16], params.MaxAmountIn)
		binary.LittleEndian.PutUint64(data[16:24], params.AmountOut)
	default:
		return nil, fmt.Errorf("unknown direction %q", params.Direction)
	}

	accountMetas := []*solana.AccountMeta{
		solana.NewAccountMeta(p.accounts.Address, false, false),
		solana.NewAccountMeta(params.User, true, true),
		solana.NewAccountMeta(p.globalConfig, false, false),
		solana.NewAccountMeta(p.accounts.BaseMint, false, false),
		solana.NewAccountMeta(solana.WrappedSol, false, false),
		solana.NewAccountMeta(params.UserBase, true, false),
		solana.NewAccountMeta(params.UserQuote, true, false),
		solana.NewAccountMeta(p.accounts.PoolBaseVault, true, false),
		solana.NewAccountMeta(p.accounts.PoolQuoteVault, true, false),
		solana.NewAccountMeta(p.accounts.ProtocolFeeRecipient, false, false),
		solana.NewAccountMeta(p.protocolFeeRecipientATA, true, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
		solana.NewAccountMeta(solana.SPLAssociatedTokenAccountProgramID, false, false),
		solana.NewAccountMeta(p.eventAuthority, false, false),
		solana.NewAccountMeta(PumpSwapProgramID, false, false),
		solana.NewAccountMeta(p.creatorVaultATA, true, false),
		solana.NewAccountMeta(p.creatorVaultAuthority, false, false),
	}

	return solana.NewInstruction(PumpSwapProgramID, accountMetas, data), nil
}
