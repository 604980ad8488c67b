// internal/dex/model/pool.go
package model

import (
	"context"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

// Variant - форма AMM, определяющая структуру инструкции свапа.
type Variant string

const (
	VariantBondingCurve    Variant = "bonding_curve"
	VariantConstantProduct Variant = "constant_product"
	VariantOrderBook       Variant = "order_book"
)

// SwapParams are the per-wallet inputs of a swap instruction.
// For a buy AmountOut is the token amount wanted and MaxAmountIn the most
// lamports paid; for a sell MaxAmountIn is the token amount given and AmountOut
// the least lamports accepted.
type SwapParams struct {
	Direction   types.Direction
	User        solana.PublicKey
	UserBase    solana.PublicKey // token account of the traded mint
	UserQuote   solana.PublicKey // wrapped-SOL account; zero when the pool settles in native SOL
	AmountOut   uint64
	MaxAmountIn uint64
}

// Pool is a decoded pool snapshot able to quote and build its own swap.
// Implementations are immutable once built.
type Pool interface {
	Variant() Variant
	ProgramID() solana.PublicKey
	// BaseMint is the traded token; the quote side is always SOL.
	BaseMint() solana.PublicKey
	// Reserves returns reserves oriented for the direction (input side first).
	Reserves(direction types.Direction) types.PoolReserves
	// WrapsNative reports whether the pool settles SOL through a wrapped-SOL account.
	WrapsNative() bool
	SwapInstruction(params SwapParams) (solana.Instruction, error)
}

// PoolSource captures a fresh pool snapshot for one bundle-build attempt.
type PoolSource interface {
	Snapshot(ctx context.Context) (Pool, error)
}

// OrientReserves maps raw base/quote reserves onto input/output for a direction.
func OrientReserves(direction types.Direction, baseReserve, quoteReserve uint64, feeBps uint16) types.PoolReserves {
	if direction == types.DirectionSell {
		return types.PoolReserves{InputReserve: baseReserve, OutputReserve: quoteReserve, FeeBps: feeBps}
	}
	return types.PoolReserves{InputReserve: quoteReserve, OutputReserve: baseReserve, FeeBps: feeBps}
}
