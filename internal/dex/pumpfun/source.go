// =============================
// File: internal/dex/pumpfun/source.go
// =============================
package pumpfun

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain"
	"github.com/rovshanmuradov/solana-bundler/internal/dex/model"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

// CurveSource snapshots a live bonding curve: the curve and the global
// account are read in one request and decoded together.
type CurveSource struct {
	client blockchain.Client
	mint   solana.PublicKey
	logger *zap.Logger
}

var _ model.PoolSource = (*CurveSource)(nil)

// NewCurveSource creates a source for the curve of mint.
func NewCurveSource(client blockchain.Client, mint solana.PublicKey, logger *zap.Logger) *CurveSource {
	return &CurveSource{
		client: client,
		mint:   mint,
		logger: logger.Named("pumpfun-source"),
	}
}

// Snapshot reads the current virtual reserves. A completed curve has migrated
// and can no longer be traded here.
func (s *CurveSource) Snapshot(ctx context.Context) (model.Pool, error) {
	global, err := DeriveGlobal()
	if err != nil {
		return nil, err
	}
	curve, _, err := DeriveBondingCurve(s.mint)
	if err != nil {
		return nil, err
	}

	accounts, err := s.client.GetMultipleAccounts(ctx, []solana.PublicKey{curve, global})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bonding curve accounts: %w", err)
	}
	if len(accounts) != 2 || accounts[0] == nil {
		return nil, types.NewError(types.KindLiquidity, "snapshot",
			fmt.Errorf("%w: bonding curve %s not found", types.ErrInsufficientLiquidity, curve))
	}

	state, err := ParseCurveState(accounts[0])
	if err != nil {
		return nil, err
	}
	if state.Complete {
		return nil, types.NewError(types.KindLiquidity, "snapshot",
			fmt.Errorf("%w: bonding curve %s is complete", types.ErrInsufficientLiquidity, curve))
	}
	if state.Creator.IsZero() {
		return nil, fmt.Errorf("bonding curve %s has no creator", curve)
	}

	if accounts[1] == nil {
		return nil, fmt.Errorf("global account %s not found", global)
	}
	globalAccount, err := ParseGlobalAccount(accounts[1])
	if err != nil {
		return nil, err
	}

	feeBps := DefaultFeeBps
	if globalAccount.FeeBasisPoints > 0 && globalAccount.FeeBasisPoints <= types.BpsDenominator {
		feeBps = uint16(globalAccount.FeeBasisPoints)
	}

	pool, err := NewBondingCurvePool(s.mint, state.Creator, globalAccount.FeeRecipient,
		state.VirtualTokenReserves, state.VirtualSolReserves, feeBps)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Bonding curve snapshot",
		zap.String("mint", s.mint.String()),
		zap.Uint64("virtual_token_reserves", state.VirtualTokenReserves),
		zap.Uint64("virtual_sol_reserves", state.VirtualSolReserves),
		zap.Uint16("fee_bps", feeBps))
	return pool, nil
}
