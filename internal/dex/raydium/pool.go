// internal/dex/raydium/pool.go
package raydium

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/rovshanmuradov/solana-bundler/internal/dex/model"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

// Program IDs
var (
	RaydiumV4ProgramID = solana.MPK("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8")
	AmmAuthority       = solana.MPK("5Q544fKrFoe6tsEbD7S8EmxGTJYAKtTVhAW5Q5pge4j1")
)

// Коды инструкций AMM v4.
const (
	InstructionSwapBaseIn  uint8 = 9
	InstructionSwapBaseOut uint8 = 11
)

// DefaultFeeBps - swap fee пулов AMM v4 (25/10000).
const DefaultFeeBps uint16 = 25

// PoolKeys содержит все аккаунты пула и его рынка OpenBook/Serum.
// Coin - торгуемый токен, Pc - wrapped SOL.
type PoolKeys struct {
	AmmID                 solana.PublicKey
	AmmOpenOrders         solana.PublicKey
	AmmTargetOrders       solana.PublicKey
	PoolCoinTokenAccount  solana.PublicKey
	PoolPcTokenAccount    solana.PublicKey
	SerumProgramID        solana.PublicKey
	SerumMarket           solana.PublicKey
	SerumBids             solana.PublicKey
	SerumAsks             solana.PublicKey
	SerumEventQueue       solana.PublicKey
	SerumCoinVaultAccount solana.PublicKey
	SerumPcVaultAccount   solana.PublicKey
	SerumVaultSigner      solana.PublicKey
	CoinMint              solana.PublicKey
}

// Validate проверяет, что заданы все аккаунты.
func (k PoolKeys) Validate() error {
	named := []struct {
		name string
		key  solana.PublicKey
	}{
		{"amm_id", k.AmmID},
		{"amm_open_orders", k.AmmOpenOrders},
		{"amm_target_orders", k.AmmTargetOrders},
		{"pool_coin_token_account", k.PoolCoinTokenAccount},
		{"pool_pc_token_account", k.PoolPcTokenAccount},
		{"serum_program_id", k.SerumProgramID},
		{"serum_market", k.SerumMarket},
		{"serum_bids", k.SerumBids},
		{"serum_asks", k.SerumAsks},
		{"serum_event_queue", k.SerumEventQueue},
		{"serum_coin_vault_account", k.SerumCoinVaultAccount},
		{"serum_pc_vault_account", k.SerumPcVaultAccount},
		{"serum_vault_signer", k.SerumVaultSigner},
		{"coin_mint", k.CoinMint},
	}
	for _, n := range named {
		if n.key.IsZero() {
			return fmt.Errorf("raydium pool key %s is required", n.name)
		}
	}
	return nil
}

// OrderBookPool is a Raydium AMM v4 pool backed by an order-book market.
// It swaps with exact output (swapBaseOut) so every wallet receives exactly
// the amount it was quoted for.
type OrderBookPool struct {
	Keys        PoolKeys
	CoinReserve uint64
	PcReserve   uint64
	FeeBps      uint16
}

var _ model.Pool = (*OrderBookPool)(nil)

// NewOrderBookPool validates keys and captures reserves.
func NewOrderBookPool(keys PoolKeys, coinReserve, pcReserve uint64, feeBps uint16) (*OrderBookPool, error) {
	if err := keys.Validate(); err != nil {
		return nil, err
	}
	return &OrderBookPool{Keys: keys, CoinReserve: coinReserve, PcReserve: pcReserve, FeeBps: feeBps}, nil
}

func (p *OrderBookPool) Variant() model.Variant      { return model.VariantOrderBook }
func (p *OrderBookPool) ProgramID() solana.PublicKey { return RaydiumV4ProgramID }
func (p *OrderBookPool) BaseMint() solana.PublicKey  { return p.Keys.CoinMint }
func (p *OrderBookPool) WrapsNative() bool           { return true }

func (p *OrderBookPool) Reserves(direction types.Direction) types.PoolReserves {
	return model.OrientReserves(direction, p.CoinReserve, p.PcReserve, p.FeeBps)
}

// SwapInstruction создает swapBaseOut: [11, maxAmountIn, amountOut].
func (p *OrderBookPool) SwapInstruction(params model.SwapParams) (solana.Instruction, error) {
	if params.User.IsZero() || params.UserBase.IsZero() || params.UserQuote.IsZero() {
		return nil, fmt.Errorf("user, coin and pc token accounts are required")
	}

	var source, destination solana.PublicKey
	switch params.Direction {
	case types.DirectionBuy:
		source, destination = params.UserQuote, params.UserBase
	case types.DirectionSell:
		source, destination = params.UserBase, params.UserQuote
	default:
		return nil, fmt.Errorf("unknown direction %q", params.Direction)
	}

	data := make([]byte, 17)
	data[0] = InstructionSwapBaseOut
	binary.LittleEndian.PutUint64(data[1:9], params.MaxAmountIn)
	binary.LittleEndian.PutUint64(data[9:17], params.AmountOut)

	k := p.Keys
	accountMetas := []*solana.AccountMeta{
		solana.NewAccountMeta(solana.TokenProgramID, false, false),
		solana.NewAccountMeta(k.AmmID, true, false),
		solana.NewAccountMeta(AmmAuthority, false, false),
		solana.NewAccountMeta(k.AmmOpenOrders, true, false),
		solana.NewAccountMeta(k.AmmTargetOrders, true, false),
		solana.NewAccountMeta(k.PoolCoinTokenAccount, true, false),
		solana.NewAccountMeta(k.PoolPcTokenAccount, true, false),
		solana.NewAccountMeta(k.SerumProgramID, false, false),
		solana.NewAccountMeta(k.SerumMarket, true, false),
		solana.NewAccountMeta(k.SerumBids, true, false),
		solana.NewAccountMeta(k.SerumAsks, true, false),
		solana.NewAccountMeta(k.SerumEventQueue, true, false),
		solana.NewAccountMeta(k.SerumCoinVaultAccount, true, false),
		solana.NewAccountMeta(k.SerumPcVaultAccount, true, false),
		solana.NewAccountMeta(k.SerumVaultSigner, false, false),
		solana.NewAccountMeta(source, true, false),
		solana.NewAccountMeta(destination, true, false),
		solana.NewAccountMeta(params.User, false, true),
	}

	return solana.NewInstruction(RaydiumV4ProgramID, accountMetas, data), nil
}
