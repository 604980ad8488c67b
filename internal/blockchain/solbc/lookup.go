// internal/blockchain/solbc/lookup.go
package solbc

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain/solbc/rpc"
)

// DefaultLookupTableTTL - сколько держим состояние таблицы до повторного чтения.
const DefaultLookupTableTTL = 5 * time.Minute

// LookupTableLoader fetches address lookup tables and caches their contents.
type LookupTableLoader struct {
	client *Client
	cache  *gocache.Cache
	logger *zap.Logger
}

// NewLookupTableLoader creates a loader over the client's node pool.
func NewLookupTableLoader(client *Client, ttl time.Duration, logger *zap.Logger) *LookupTableLoader {
	if ttl <= 0 {
		ttl = DefaultLookupTableTTL
	}
	return &LookupTableLoader{
		client: client,
		cache:  gocache.New(ttl, 2*ttl),
		logger: logger.Named("lut-loader"),
	}
}

// Load returns the address tables keyed by table address, ready for
// solana.TransactionAddressTables. Deactivated tables are skipped.
func (l *LookupTableLoader) Load(ctx context.Context, tables []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	out := make(map[solana.PublicKey]solana.PublicKeySlice, len(tables))
	for _, addr := range tables {
		if cached, ok := l.cache.Get(addr.String()); ok {
			out[addr] = cached.(solana.PublicKeySlice)
			continue
		}

		state, err := retryRead(ctx, l.client.retry, l.logger, "getAddressLookupTable", func() (*addresslookuptable.AddressLookupTableState, error) {
			node := l.client.NextNode()
			st, err := addresslookuptable.GetAddressLookupTable(ctx, node.Client, addr)
			if err != nil {
				return nil, rpc.NewError(err, node.URL, "getAddressLookupTable")
			}
			return st, nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load lookup table %s: %w", addr, err)
		}
		if state.DeactivationSlot != math.MaxUint64 {
			l.logger.Warn("Lookup table is deactivated, skipping", zap.String("lut", addr.String()))
			continue
		}

		l.cache.SetDefault(addr.String(), state.Addresses)
		out[addr] = state.Addresses
		l.logger.Debug("Loaded lookup table",
			zap.String("lut", addr.String()),
			zap.Int("addresses", len(state.Addresses)))
	}
	return out, nil
}
