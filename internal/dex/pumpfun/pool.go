// =============================
// File: internal/dex/pumpfun/pool.go
// =============================
package pumpfun

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-bundler/internal/dex/model"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

// BondingCurvePool is a pre-migration Pump.fun curve. The curve prices against
// its virtual reserves as a constant product and settles in native lamports,
// so buyers need no wrapped-SOL account.
type BondingCurvePool struct {
	Mint                   solana.PublicKey
	BondingCurve           solana.PublicKey
	AssociatedBondingCurve solana.PublicKey
	Creator                solana.PublicKey
	CreatorVault           solana.PublicKey
	Global                 solana.PublicKey
	FeeRecipient           solana.PublicKey

	VirtualTokenReserves uint64
	VirtualSolReserves   uint64
	FeeBps               uint16
}

var _ model.Pool = (*BondingCurvePool)(nil)

// NewBondingCurvePool derives every PDA the swap needs from mint and creator.
func NewBondingCurvePool(mint, creator, feeRecipient solana.PublicKey, virtualToken, virtualSol uint64, feeBps uint16) (*BondingCurvePool, error) {
	if mint.IsZero() {
		return nil, fmt.Errorf("mint is required")
	}
	if creator.IsZero() {
		return nil, fmt.Errorf("curve creator is required")
	}
	if feeRecipient.IsZero() {
		return nil, fmt.Errorf("fee recipient is required")
	}

	global, err := DeriveGlobal()
	if err != nil {
		return nil, err
	}
	curve, associatedCurve, err := DeriveBondingCurve(mint)
	if err != nil {
		return nil, err
	}
	vault, err := DeriveCreatorVault(creator)
	if err != nil {
		return nil, err
	}

	return &BondingCurvePool{
		Mint:                   mint,
		BondingCurve:           curve,
		AssociatedBondingCurve: associatedCurve,
		Creator:                creator,
		CreatorVault:           vault,
		Global:                 global,
		FeeRecipient:           feeRecipient,
		VirtualTokenReserves:   virtualToken,
		VirtualSolReserves:     virtualSol,
		FeeBps:                 feeBps,
	}, nil
}

func (p *BondingCurvePool) Variant() model.Variant      { return model.VariantBondingCurve }
func (p *BondingCurvePool) ProgramID() solana.PublicKey { return PumpFunProgramID }
func (p *BondingCurvePool) BaseMint() solana.PublicKey  { return p.Mint }
func (p *BondingCurvePool) WrapsNative() bool           { return false }

// Reserves orients the virtual reserves: a buy pays SOL in for tokens out.
func (p *BondingCurvePool) Reserves(direction types.Direction) types.PoolReserves {
	return model.OrientReserves(direction, p.VirtualTokenReserves, p.VirtualSolReserves, p.FeeBps)
}

// SwapInstruction builds buy(amount, maxSolCost) or sell(amount, minSolOutput).
func (p *BondingCurvePool) SwapInstruction(params model.SwapParams) (solana.Instruction, error) {
	if params.User.IsZero() || params.UserBase.IsZero() {
		return nil, fmt.Errorf("user and user token account are required")
	}

	data := make([]byte, 24)
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

	// Порядок аккаунтов buy и sell отличается местами system/creator_vault/token.
	metas := []*solana.AccountMeta{
		solana.NewAccountMeta(p.Global, false, false),
		solana.NewAccountMeta(p.FeeRecipient, true, false),
		solana.NewAccountMeta(p.Mint, false, false),
		solana.NewAccountMeta(p.BondingCurve, true, false),
		solana.NewAccountMeta(p.AssociatedBondingCurve, true, false),
		solana.NewAccountMeta(params.UserBase, true, false),
		solana.NewAccountMeta(params.User, true, true),
		solana.NewAccountMeta(solana.SystemProgramID, false, false),
	}
	if params.Direction == types.DirectionBuy {
		metas = append(metas,
			solana.NewAccountMeta(solana.TokenProgramID, false, false),
			solana.NewAccountMeta(p.CreatorVault, true, false),
		)
	} else {
		metas = append(metas,
			solana.NewAccountMeta(p.CreatorVault, true, false),
			solana.NewAccountMeta(solana.TokenProgramID, false, false),
		)
	}
	metas = append(metas,
		solana.NewAccountMeta(PumpFunEventAuth, false, false),
		solana.NewAccountMeta(PumpFunProgramID, false, false),
	)

	return solana.NewInstruction(PumpFunProgramID, metas, data), nil
}
