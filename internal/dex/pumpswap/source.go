// =============================
// File: internal/dex/pumpswap/source.go
// =============================
package pumpswap

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain"
	"github.com/rovshanmuradov/solana-bundler/internal/dex/model"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

// VaultSource snapshots a live PumpSwap pool. The pool account and the global
// config are read concurrently, then both vault balances in one request.
type VaultSource struct {
	client  blockchain.Client
	address solana.PublicKey
	logger  *zap.Logger
}

var _ model.PoolSource = (*VaultSource)(nil)

// NewVaultSource creates a source for the pool at address.
func NewVaultSource(client blockchain.Client, address solana.PublicKey, logger *zap.Logger) *VaultSource {
	return &VaultSource{
		client:  client,
		address: address,
		logger:  logger.Named("pumpswap-source"),
	}
}

// Snapshot returns the pool with current vault reserves and fee.
func (s *VaultSource) Snapshot(ctx context.Context) (model.Pool, error) {
	globalConfigAddr, err := DeriveGlobalConfig()
	if err != nil {
		return nil, err
	}

	var (
		state      *PoolState
		cfg        *GlobalConfig
		creatorFee uint64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := s.client.GetAccountInfo(gctx, s.address)
		if err != nil {
			return fmt.Errorf("failed to get pool account: %w", err)
		}
		if data == nil {
			return fmt.Errorf("pool account %s not found", s.address)
		}
		state, err = ParsePool(data)
		return err
	})
	g.Go(func() error {
		data, err := s.client.GetAccountInfo(gctx, globalConfigAddr)
		if err != nil {
			return fmt.Errorf("failed to get global config account: %w", err)
		}
		if data == nil {
			return fmt.Errorf("global config %s not found", globalConfigAddr)
		}
		cfg, creatorFee, err = ParseGlobalConfig(data)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if state.QuoteMint != solana.WrappedSol {
		return nil, types.NewError(types.KindAssembly, "snapshot",
			fmt.Errorf("%w: pool %s quotes in %s, not SOL", types.ErrUnknownProgramVariant, s.address, state.QuoteMint))
	}

	vaults, err := s.client.GetMultipleAccounts(ctx, []solana.PublicKey{state.PoolBaseTokenAccount, state.PoolQuoteTokenAccount})
	if err != nil {
		return nil, fmt.Errorf("failed to get pool vaults: %w", err)
	}
	if len(vaults) != 2 {
		return nil, fmt.Errorf("expected 2 vault accounts, got %d", len(vaults))
	}
	baseReserve, err := parseTokenAmount(vaults[0])
	if err != nil {
		return nil, fmt.Errorf("base vault: %w", err)
	}
	quoteReserve, err := parseTokenAmount(vaults[1])
	if err != nil {
		return nil, fmt.Errorf("quote vault: %w", err)
	}
	if baseReserve == 0 || quoteReserve == 0 {
		return nil, types.NewError(types.KindLiquidity, "snapshot",
			fmt.Errorf("%w: pool %s has empty vaults", types.ErrInsufficientLiquidity, s.address))
	}

	feeBps := DefaultFeeBps
	if total := cfg.TotalFeeBps(creatorFee); total > 0 && total <= types.BpsDenominator {
		feeBps = uint16(total)
	}

	pool, err := NewPool(PoolAccounts{
		Address:              s.address,
		BaseMint:             state.BaseMint,
		PoolBaseVault:        state.PoolBaseTokenAccount,
		PoolQuoteVault:       state.PoolQuoteTokenAccount,
		CoinCreator:          state.CoinCreator,
		ProtocolFeeRecipient: cfg.ProtocolFeeRecipients[0],
	}, baseReserve, quoteReserve, feeBps)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("PumpSwap pool snapshot",
		zap.String("pool", s.address.String()),
		zap.Uint64("base_reserve", baseReserve),
		zap.Uint64("quote_reserve", quoteReserve),
		zap.Uint16("fee_bps", feeBps))
	return pool, nil
}
