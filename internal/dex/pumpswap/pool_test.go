package pumpswap

import (
	"bytes"
	"context"
	"encoding/binary"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain/mocks"
	"github.com/rovshanmuradov/solana-bundler/internal/dex/model"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

func newKey() solana.PublicKey {
	return solana.NewWallet().PublicKey()
}

func testAccounts() PoolAccounts {
	return PoolAccounts{
		Address:        newKey(),
		BaseMint:       newKey(),
		PoolBaseVault:  newKey(),
		PoolQuoteVault: newKey(),
		CoinCreator:    newKey(),
	}
}

func TestNewPool_Validation(t *testing.T) {
	_, err := NewPool(PoolAccounts{}, 1, 1, DefaultFeeBps)
	assert.Error(t, err)

	acc := testAccounts()
	acc.PoolQuoteVault = solana.PublicKey{}
	_, err = NewPool(acc, 1, 1, DefaultFeeBps)
	assert.Error(t, err)
}

func TestPool_SwapInstruction(t *testing.T) {
	acc := testAccounts()
	pool, err := NewPool(acc, 206_900_000_000_000, 85_000_000_000, DefaultFeeBps)
	require.NoError(t, err)

	assert.True(t, pool.WrapsNative())
	assert.Equal(t, model.VariantConstantProduct, pool.Variant())
	assert.Equal(t, MainnetFeeRecipients[0], pool.Accounts().ProtocolFeeRecipient)

	buy := pool.Reserves(types.DirectionBuy)
	assert.Equal(t, uint64(85_000_000_000), buy.InputReserve)
	assert.Equal(t, uint64(206_900_000_000_000), buy.OutputReserve)

	user, userBase, userQuote := newKey(), newKey(), newKey()
	ix, err := pool.SwapInstruction(model.SwapParams{
		Direction:   types.DirectionBuy,
		User:        user,
		UserBase:    userBase,
		UserQuote:   userQuote,
		AmountOut:   1_000_000,
		MaxAmountIn: 42_000,
	})
	require.NoError(t, err)

	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, buyDiscriminator, data[:8])
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, uint64(42_000), binary.LittleEndian.Uint64(data[16:24]))

	metas := ix.Accounts()
	require.Len(t, metas, 19)
	assert.Equal(t, acc.Address, metas[0].PublicKey)
	assert.True(t, metas[1].IsSigner)
	assert.Equal(t, solana.WrappedSol, metas[4].PublicKey)
	assert.Equal(t, userBase, metas[5].PublicKey)
	assert.Equal(t, userQuote, metas[6].PublicKey)

	authority, vaultATA, err := DeriveCreatorVault(acc.CoinCreator, solana.WrappedSol)
	require.NoError(t, err)
	assert.Equal(t, vaultATA, metas[17].PublicKey)
	assert.Equal(t, authority, metas[18].PublicKey)

	sell, err := pool.SwapInstruction(model.SwapParams{
		Direction:   types.DirectionSell,
		User:        user,
		UserBase:    userBase,
		UserQuote:   userQuote,
		AmountOut:   40_000,
		MaxAmountIn: 1_000_000,
	})
	require.NoError(t, err)
	sellData, err := sell.Data()
	require.NoError(t, err)
	assert.Equal(t, sellDiscriminator, sellData[:8])
	assert.Equal(t, uint64(1_000_000), binary.LittleEndian.Uint64(sellData[8:16]))
	assert.Equal(t, uint64(40_000), binary.LittleEndian.Uint64(sellData[16:24]))
}

func TestPool_SwapInstructionNeedsQuoteAccount(t *testing.T) {
	pool, err := NewPool(testAccounts(), 10, 10, DefaultFeeBps)
	require.NoError(t, err)

	_, err = pool.SwapInstruction(model.SwapParams{Direction: types.DirectionBuy, User: newKey(), UserBase: newKey()})
	assert.Error(t, err)
}

func TestDerivePoolAddress_Deterministic(t *testing.T) {
	creator, mint := newKey(), newKey()
	a, err := DerivePoolAddress(0, creator, mint, solana.WrappedSol)
	require.NoError(t, err)
	b, err := DerivePoolAddress(0, creator, mint, solana.WrappedSol)
	require.NoError(t, err)
	c, err := DerivePoolAddress(1, creator, mint, solana.WrappedSol)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func tokenAccountData(amount uint64) []byte {
	data := make([]byte, 165)
	binary.LittleEndian.PutUint64(data[TokenAccountAmountOffset:], amount)
	return data
}

func encodePool(t *testing.T, layout poolLayout, coinCreator solana.PublicKey) []byte {
	t.Helper()
	var buf bytes.Buffer
	layout.Discriminator = PoolDiscriminator
	require.NoError(t, bin.NewBorshEncoder(&buf).Encode(&layout))
	buf.Write(coinCreator.Bytes())
	return buf.Bytes()
}

func encodeGlobalConfig(t *testing.T, lpFee, protocolFee, creatorFee uint64, recipient solana.PublicKey) []byte {
	t.Helper()
	var buf bytes.Buffer
	cfg := GlobalConfig{
		Discriminator:          GlobalConfigDiscriminator,
		Admin:                  newKey(),
		LPFeeBasisPoints:       lpFee,
		ProtocolFeeBasisPoints: protocolFee,
	}
	cfg.ProtocolFeeRecipients[0] = recipient
	require.NoError(t, bin.NewBorshEncoder(&buf).Encode(&cfg))
	fee := make([]byte, 8)
	binary.LittleEndian.PutUint64(fee, creatorFee)
	buf.Write(fee)
	return buf.Bytes()
}

func TestVaultSource_Snapshot(t *testing.T) {
	address, mint, baseVault, quoteVault := newKey(), newKey(), newKey(), newKey()
	coinCreator, recipient := newKey(), newKey()
	globalConfig, err := DeriveGlobalConfig()
	require.NoError(t, err)

	client := new(mocks.MockChainClient)
	client.On("GetAccountInfo", mock.Anything, address).Return(encodePool(t, poolLayout{
		Creator:               newKey(),
		BaseMint:              mint,
		QuoteMint:             solana.WrappedSol,
		LPMint:                newKey(),
		PoolBaseTokenAccount:  baseVault,
		PoolQuoteTokenAccount: quoteVault,
		LPSupply:              1,
	}, coinCreator), nil)
	client.On("GetAccountInfo", mock.Anything, globalConfig).Return(encodeGlobalConfig(t, 20, 5, 5, recipient), nil)
	client.On("GetMultipleAccounts", mock.Anything, []solana.PublicKey{baseVault, quoteVault}).Return([][]byte{
		tokenAccountData(206_900_000_000_000),
		tokenAccountData(85_000_000_000),
	}, nil)

	pool, err := NewVaultSource(client, address, zaptest.NewLogger(t)).Snapshot(context.Background())
	require.NoError(t, err)

	reserves := pool.Reserves(types.DirectionBuy)
	assert.Equal(t, uint64(85_000_000_000), reserves.InputReserve)
	assert.Equal(t, uint64(206_900_000_000_000), reserves.OutputReserve)
	assert.Equal(t, uint16(30), reserves.FeeBps)
	assert.Equal(t, mint, pool.BaseMint())

	swapPool := pool.(*Pool)
	assert.Equal(t, recipient, swapPool.Accounts().ProtocolFeeRecipient)
	assert.Equal(t, coinCreator, swapPool.Accounts().CoinCreator)
	client.AssertExpectations(t)
}

func TestVaultSource_EmptyVault(t *testing.T) {
	address := newKey()
	globalConfig, err := DeriveGlobalConfig()
	require.NoError(t, err)

	client := new(mocks.MockChainClient)
	client.On("GetAccountInfo", mock.Anything, address).Return(encodePool(t, poolLayout{
		BaseMint:              newKey(),
		QuoteMint:             solana.WrappedSol,
		PoolBaseTokenAccount:  newKey(),
		PoolQuoteTokenAccount: newKey(),
	}, newKey()), nil)
	client.On("GetAccountInfo", mock.Anything, globalConfig).Return(encodeGlobalConfig(t, 20, 5, 0, newKey()), nil)
	client.On("GetMultipleAccounts", mock.Anything, mock.Anything).Return([][]byte{
		tokenAccountData(0),
		tokenAccountData(10),
	}, nil)

	_, err = NewVaultSource(client, address, zaptest.NewLogger(t)).Snapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientLiquidity)
}

func TestVaultSource_MissingPool(t *testing.T) {
	address := newKey()
	client := new(mocks.MockChainClient)
	client.On("GetAccountInfo", mock.Anything, mock.Anything).Return(nil, nil)

	_, err := NewVaultSource(client, address, zaptest.NewLogger(t)).Snapshot(context.Background())
	assert.Error(t, err)
}
