// =============================
// File: internal/dex/quote.go
// =============================
package dex

import (
	"fmt"

	"github.com/holiman/uint256"

	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

var bpsDenominator = uint256.NewInt(types.BpsDenominator)

// QuoteMaxInput returns the most input a trader should commit to receive
// desiredOutput from a constant-product pool: the exact input, plus the pool
// fee, plus the slippage tolerance, in that order. Products are computed in
// 256-bit integers so reserve products never overflow.
func QuoteMaxInput(desiredOutput uint64, reserves types.PoolReserves, slippageBps, feeBps uint16) (uint64, error) {
	if desiredOutput == 0 {
		return 0, types.NewError(types.KindValidation, "quote", fmt.Errorf("desired output must be positive"))
	}
	if reserves.InputReserve == 0 || reserves.OutputReserve == 0 {
		return 0, types.NewError(types.KindValidation, "quote", fmt.Errorf("reserves must be positive"))
	}
	if err := types.ValidateBps("slippage", slippageBps); err != nil {
		return 0, err
	}
	if err := types.ValidateBps("fee", feeBps); err != nil {
		return 0, err
	}
	if desiredOutput >= reserves.OutputReserve {
		return 0, types.NewError(types.KindLiquidity, "quote",
			fmt.Errorf("%w: want %d of %d", types.ErrInsufficientLiquidity, desiredOutput, reserves.OutputReserve))
	}

	in := uint256.NewInt(reserves.InputReserve)
	out := uint256.NewInt(reserves.OutputReserve)
	newOut := uint256.NewInt(reserves.OutputReserve - desiredOutput)

	// newIn = ceil(in*out / newOut); округление вверх гарантирует,
	// что прямой расчёт по той же формуле даст не меньше desiredOutput.
	k := new(uint256.Int).Mul(in, out)
	newIn := ceilDiv(k, newOut)
	raw := new(uint256.Int).Sub(newIn, in)

	withFee := ceilDiv(scaleBps(raw, feeBps), bpsDenominator)
	maxInput := new(uint256.Int).Div(scaleBps(withFee, slippageBps), bpsDenominator)

	if !maxInput.IsUint64() {
		return 0, types.NewError(types.KindLiquidity, "quote",
			fmt.Errorf("%w: required input overflows u64", types.ErrInsufficientLiquidity))
	}
	return maxInput.Uint64(), nil
}

// SwapOutput computes the forward constant-product output for amountIn after
// the fee is taken from the input. It is the inverse used to check quotes.
func SwapOutput(amountIn uint64, reserves types.PoolReserves) uint64 {
	if amountIn == 0 || reserves.InputReserve == 0 || reserves.OutputReserve == 0 {
		return 0
	}
	effective := new(uint256.Int).Mul(uint256.NewInt(amountIn), bpsDenominator)
	effective.Div(effective, uint256.NewInt(types.BpsDenominator+uint64(reserves.FeeBps)))

	numerator := new(uint256.Int).Mul(effective, uint256.NewInt(reserves.OutputReserve))
	denominator := new(uint256.Int).Add(uint256.NewInt(reserves.InputReserve), effective)
	return numerator.Div(numerator, denominator).Uint64()
}

// scaleBps returns x * (10000 + bps).
func scaleBps(x *uint256.Int, bps uint16) *uint256.Int {
	factor := uint256.NewInt(types.BpsDenominator + uint64(bps))
	return new(uint256.Int).Mul(x, factor)
}

func ceilDiv(a, b *uint256.Int) *uint256.Int {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(a, b, r)
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	return q
}
