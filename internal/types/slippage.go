// internal/types/slippage.go
package types

import (
	"fmt"
	"math"
)

// ValidateBps проверяет, что значение лежит в диапазоне [0, 10000].
func ValidateBps(name string, bps uint16) error {
	if bps > BpsDenominator {
		return NewError(KindValidation, name, fmt.Errorf("%s bps %d out of range [0, %d]", name, bps, BpsDenominator))
	}
	return nil
}

// PercentToBps converts a human percentage (1.5 = 1.5%) from plan files to basis points.
func PercentToBps(percent float64) (uint16, error) {
	if percent < 0 || percent > 100 || math.IsNaN(percent) {
		return 0, NewError(KindValidation, "percent", fmt.Errorf("percent %.4f out of range [0, 100]", percent))
	}
	return uint16(math.Round(percent * 100)), nil
}
