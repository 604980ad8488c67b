// internal/types/types.go
package types

import (
	"fmt"

	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

// BpsDenominator - знаменатель для всех значений в базисных пунктах.
const BpsDenominator = 10_000

// Direction определяет сторону свапа относительно нативного SOL.
type Direction string

const (
	DirectionBuy  Direction = "buy"
	DirectionSell Direction = "sell"
)

// PoolReserves is a frozen snapshot of the reserves a quote is computed against.
// InputReserve is the side the trader pays into, OutputReserve the side paid out.
type PoolReserves struct {
	InputReserve  uint64
	OutputReserve uint64
	FeeBps        uint16
}

// Validate checks reserve invariants before any quoting happens.
func (r PoolReserves) Validate() error {
	if r.InputReserve == 0 || r.OutputReserve == 0 {
		return NewError(KindValidation, "reserves", fmt.Errorf("reserves must be positive: in=%d out=%d", r.InputReserve, r.OutputReserve))
	}
	if err := ValidateBps("fee", r.FeeBps); err != nil {
		return err
	}
	return nil
}

// SwapIntent describes what a single wallet wants out of the pool.
type SwapIntent struct {
	Direction           Direction
	DesiredOutputAmount uint64
	SlippageBps         uint16
}

// Validate проверяет корректность намерения до сетевых вызовов.
func (i SwapIntent) Validate() error {
	if i.Direction != DirectionBuy && i.Direction != DirectionSell {
		return NewError(KindValidation, "intent", fmt.Errorf("unknown direction %q", i.Direction))
	}
	if i.DesiredOutputAmount == 0 {
		return NewError(KindValidation, "intent", fmt.Errorf("desired output must be positive"))
	}
	return ValidateBps("slippage", i.SlippageBps)
}

// WalletTask pairs a caller-supplied signer with the most SOL it may spend.
type WalletTask struct {
	Wallet            *wallet.Wallet
	SolBudgetLamports uint64
}

// Validate checks the task has a signer and a budget.
func (t WalletTask) Validate() error {
	if t.Wallet == nil {
		return NewError(KindValidation, "wallet task", fmt.Errorf("wallet is nil"))
	}
	if t.SolBudgetLamports == 0 {
		return NewError(KindValidation, "wallet task", fmt.Errorf("sol budget must be positive for %s", t.Wallet.PublicKey))
	}
	return nil
}

// BundleStatus is the terminal (or submission) state reported to the caller.
type BundleStatus string

const (
	StatusSubmitted          BundleStatus = "submitted"
	StatusAllEndpointsFailed BundleStatus = "all_endpoints_failed"
	StatusConfirmed          BundleStatus = "confirmed"
	StatusOnChainError       BundleStatus = "on_chain_error"
	StatusExpired            BundleStatus = "expired"
)

// EndpointOutcome is the result of one relay call.
type EndpointOutcome struct {
	URL      string
	Region   string
	Accepted bool
	BundleID string
	Kind     Kind // пусто при успехе
	Err      error
}

// BundleResult is everything the caller learns about one bundle.
type BundleResult struct {
	Status          BundleStatus
	BundleID        string
	AnchorSignature string
	Endpoints       []EndpointOutcome
	Attempts        int
	Err             error
	Logs            []string
}

// Failures returns the endpoint outcomes that did not accept the bundle.
func (r *BundleResult) Failures() []EndpointOutcome {
	var failed []EndpointOutcome
	for _, e := range r.Endpoints {
		if !e.Accepted {
			failed = append(failed, e)
		}
	}
	return failed
}

// Accepted returns how many endpoints accepted the bundle.
func (r *BundleResult) Accepted() int {
	return len(r.Endpoints) - len(r.Failures())
}
