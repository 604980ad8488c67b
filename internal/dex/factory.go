// =============================
// File: internal/dex/factory.go
// =============================
package dex

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain"
	"github.com/rovshanmuradov/solana-bundler/internal/dex/model"
	"github.com/rovshanmuradov/solana-bundler/internal/dex/pumpfun"
	"github.com/rovshanmuradov/solana-bundler/internal/dex/pumpswap"
	"github.com/rovshanmuradov/solana-bundler/internal/dex/raydium"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

// StaticReserves are reserves supplied by the caller instead of read on chain.
type StaticReserves struct {
	Base   uint64
	Quote  uint64
	FeeBps uint16
}

// PoolDescriptor identifies a pool by program id plus the accounts the
// variant needs. Static reserves, when present, bypass the chain read.
type PoolDescriptor struct {
	ProgramID solana.PublicKey
	Mint      solana.PublicKey

	// Pump.fun: curve creator. PumpSwap: coin creator.
	Creator      solana.PublicKey
	FeeRecipient solana.PublicKey

	// PumpSwap
	Address    solana.PublicKey
	BaseVault  solana.PublicKey
	QuoteVault solana.PublicKey

	// Raydium AMM v4
	Raydium *raydium.PoolKeys

	Static *StaticReserves
}

// IsSupportedProgram reports whether the program id has a known swap shape.
func IsSupportedProgram(program solana.PublicKey) bool {
	switch program {
	case pumpfun.PumpFunProgramID, pumpswap.PumpSwapProgramID, raydium.RaydiumV4ProgramID:
		return true
	}
	return false
}

func unknownVariant(program solana.PublicKey) error {
	return types.NewError(types.KindAssembly, "resolve pool",
		fmt.Errorf("%w: %s", types.ErrUnknownProgramVariant, program))
}

// ResolvePool builds the pool variant for a descriptor with static reserves.
func ResolvePool(desc PoolDescriptor) (model.Pool, error) {
	if desc.Static == nil {
		return nil, types.NewError(types.KindValidation, "resolve pool", fmt.Errorf("static reserves are required"))
	}
	r := desc.Static

	var (
		pool model.Pool
		err  error
	)
	switch desc.ProgramID {
	case pumpfun.PumpFunProgramID:
		pool, err = pumpfun.NewBondingCurvePool(desc.Mint, desc.Creator, desc.FeeRecipient, r.Base, r.Quote, feeOr(r.FeeBps, pumpfun.DefaultFeeBps))
	case pumpswap.PumpSwapProgramID:
		pool, err = pumpswap.NewPool(pumpswap.PoolAccounts{
			Address:              desc.Address,
			BaseMint:             desc.Mint,
			PoolBaseVault:        desc.BaseVault,
			PoolQuoteVault:       desc.QuoteVault,
			CoinCreator:          desc.Creator,
			ProtocolFeeRecipient: desc.FeeRecipient,
		}, r.Base, r.Quote, feeOr(r.FeeBps, pumpswap.DefaultFeeBps))
	case raydium.RaydiumV4ProgramID:
		if desc.Raydium == nil {
			return nil, types.NewError(types.KindValidation, "resolve pool", fmt.Errorf("raydium pool keys are required"))
		}
		pool, err = raydium.NewOrderBookPool(*desc.Raydium, r.Base, r.Quote, feeOr(r.FeeBps, raydium.DefaultFeeBps))
	default:
		return nil, unknownVariant(desc.ProgramID)
	}
	if err != nil {
		return nil, types.NewError(types.KindValidation, "resolve pool", err)
	}
	return pool, nil
}

// NewPoolSource picks how the pool is snapshotted for each build attempt:
// static reserves when given, otherwise a live chain read for variants that
// support one.
func NewPoolSource(desc PoolDescriptor, client blockchain.Client, logger *zap.Logger) (model.PoolSource, error) {
	if !IsSupportedProgram(desc.ProgramID) {
		return nil, unknownVariant(desc.ProgramID)
	}
	if desc.Static != nil {
		pool, err := ResolvePool(desc)
		if err != nil {
			return nil, err
		}
		return NewStaticSource(pool), nil
	}

	switch desc.ProgramID {
	case pumpfun.PumpFunProgramID:
		return pumpfun.NewCurveSource(client, desc.Mint, logger), nil
	case pumpswap.PumpSwapProgramID:
		return pumpswap.NewVaultSource(client, desc.Address, logger), nil
	default:
		return nil, types.NewError(types.KindValidation, "pool source",
			fmt.Errorf("program %s requires static reserves", desc.ProgramID))
	}
}

// StaticSource returns the same pre-decoded pool on every snapshot.
type StaticSource struct {
	pool model.Pool
}

var _ model.PoolSource = (*StaticSource)(nil)

func NewStaticSource(pool model.Pool) *StaticSource {
	return &StaticSource{pool: pool}
}

func (s *StaticSource) Snapshot(_ context.Context) (model.Pool, error) {
	return s.pool, nil
}

func feeOr(fee, fallback uint16) uint16 {
	if fee == 0 {
		return fallback
	}
	return fee
}
