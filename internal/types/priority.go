package types

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
)

// MaxComputeUnits - потолок compute units на одну транзакцию.
const MaxComputeUnits uint32 = 1_400_000

type PriorityLevel string

const (
	PriorityLow     PriorityLevel = "low"
	PriorityMedium  PriorityLevel = "medium"
	PriorityHigh    PriorityLevel = "high"
	PriorityExtreme PriorityLevel = "extreme"
)

// ComputeBudget is the (price, limit) request of one wallet or one transaction.
type ComputeBudget struct {
	UnitLimit uint32 // Number of compute units
	UnitPrice uint64 // Priority fee in micro-lamports per unit
}

var priorityProfiles = map[PriorityLevel]ComputeBudget{
	PriorityLow:     {UnitLimit: 200_000, UnitPrice: 1_000},
	PriorityMedium:  {UnitLimit: 400_000, UnitPrice: 5_000},
	PriorityHigh:    {UnitLimit: 800_000, UnitPrice: 10_000},
	PriorityExtreme: {UnitLimit: 1_000_000, UnitPrice: 50_000},
}

// BudgetForLevel returns the predefined compute budget of a priority level.
func BudgetForLevel(level PriorityLevel) (ComputeBudget, error) {
	b, ok := priorityProfiles[level]
	if !ok {
		return ComputeBudget{}, fmt.Errorf("unknown priority level: %s", level)
	}
	return b, nil
}

// Merge combines two wallets' budgets into one transaction budget:
// limits add up (capped), the higher price wins.
func (b ComputeBudget) Merge(other ComputeBudget) ComputeBudget {
	limit := uint64(b.UnitLimit) + uint64(other.UnitLimit)
	if limit > uint64(MaxComputeUnits) {
		limit = uint64(MaxComputeUnits)
	}
	price := b.UnitPrice
	if other.UnitPrice > price {
		price = other.UnitPrice
	}
	return ComputeBudget{UnitLimit: uint32(limit), UnitPrice: price}
}

// IsZero reports whether no budget instructions are needed.
func (b ComputeBudget) IsZero() bool {
	return b.UnitLimit == 0 && b.UnitPrice == 0
}

// Instructions returns the compute-budget pair, price first then limit.
// Zero fields are omitted.
func (b ComputeBudget) Instructions() []solana.Instruction {
	var instructions []solana.Instruction

	// Set compute unit price
	if b.UnitPrice > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitPriceInstruction(b.UnitPrice).Build())
	}

	// Set compute unit limit
	if b.UnitLimit > 0 {
		instructions = append(instructions, computebudget.NewSetComputeUnitLimitInstruction(b.UnitLimit).Build())
	}

	return instructions
}
