package bundle

import (
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

func testBlockhash() *blockchain.BlockhashInfo {
	return &blockchain.BlockhashInfo{Blockhash: testHash(), LastValidBlockHeight: 1_000}
}

func TestAssembleBundle_SignedAndShared(t *testing.T) {
	c := NewCoordinator(NewPacker(DefaultLimits(), zap.NewNop()), zaptest.NewLogger(t))
	bh := testBlockhash()
	tipPayer := newWallet()

	groups := []Group{{Name: "buys", Sets: walletSets(t, curvePool(t), 3)}}
	b, err := c.AssembleBundle(groups, bh, nil, &Tip{Payer: tipPayer, Lamports: 10_000})
	require.NoError(t, err)

	require.NotEmpty(t, b.Transactions)
	assert.LessOrEqual(t, len(b.Transactions), MaxBundleTransaction)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, bh.Blockhash, b.Blockhash)
	assert.Equal(t, uint64(1_000), b.LastValidBlockHeight)
	assert.Contains(t, TipAccounts, b.TipAccount)
	assert.Equal(t, uint64(10_000), b.TipLamports)
	assert.Equal(t, b.Transactions[0].Signatures[0], b.AnchorSignature)

	for i, tx := range b.Transactions {
		assert.Equal(t, bh.Blockhash, tx.Message.RecentBlockhash, "tx %d", i)
		require.NoError(t, tx.VerifySignatures(), "tx %d", i)
		assert.Len(t, tx.Signatures, int(tx.Message.Header.NumRequiredSignatures))

		raw, err := tx.MarshalBinary()
		require.NoError(t, err)
		assert.LessOrEqual(t, len(raw), MaxTxSize)
	}

	// чаевые в последней транзакции
	last := b.Transactions[len(b.Transactions)-1]
	assert.Contains(t, last.Message.AccountKeys, b.TipAccount)
	assert.Contains(t, last.Message.AccountKeys, tipPayer.PublicKey)
}

func TestAssembleBundle_TipFallsBackToOwnTransaction(t *testing.T) {
	sets := walletSets(t, curvePool(t), 1)
	bh := testBlockhash()

	single, err := NewPacker(unbounded, zap.NewNop()).Pack(sets, bh.Blockhash, nil)
	require.NoError(t, err)

	// последняя транзакция заполнена до предела: чаевым места нет
	full := Limits{MaxTxSize: single[0].Size, MaxAccountLocks: DefaultAccountLocks}
	c := NewCoordinator(NewPacker(full, zap.NewNop()), zap.NewNop())
	tipPayer := newWallet()

	b, err := c.AssembleBundle([]Group{{Name: "buys", Sets: sets}}, bh, nil, &Tip{Payer: tipPayer, Lamports: 5_000})
	require.NoError(t, err)
	require.Len(t, b.Transactions, 2)

	tipTx := b.Transactions[1]
	require.Len(t, tipTx.Message.Instructions, 1)
	assert.Equal(t, tipPayer.PublicKey, tipTx.Message.AccountKeys[0])
	assert.Contains(t, tipTx.Message.AccountKeys, b.TipAccount)
	assert.Equal(t, b.Transactions[0].Signatures[0], b.AnchorSignature)
}

func TestAssembleBundle_GroupsKeepOrder(t *testing.T) {
	c := NewCoordinator(NewPacker(unbounded, zap.NewNop()), zap.NewNop())
	pool := curvePool(t)
	first := walletSets(t, pool, 1)
	second := walletSets(t, pool, 1)

	b, err := c.AssembleBundle([]Group{
		{Name: "prelude", Sets: first},
		{Name: "buys", Sets: second},
	}, testBlockhash(), nil, nil)
	require.NoError(t, err)

	// группы не делят транзакцию даже при свободном месте
	require.Len(t, b.Transactions, 2)
	assert.Equal(t, first[0].FeePayer(), b.Transactions[0].Message.AccountKeys[0])
	assert.Equal(t, second[0].FeePayer(), b.Transactions[1].Message.AccountKeys[0])
	assert.True(t, b.TipAccount.IsZero())
}

func TestAssembleBundle_Errors(t *testing.T) {
	pool := curvePool(t)

	tooMany := make([]Group, MaxBundleTransaction+1)
	for i := range tooMany {
		tooMany[i] = Group{Sets: walletSets(t, pool, 1)}
	}

	tests := []struct {
		name   string
		groups []Group
		bh     *blockchain.BlockhashInfo
		tip    *Tip
		kind   types.Kind
		target error
	}{
		{
			name:   "too many transactions",
			groups: tooMany,
			bh:     testBlockhash(),
			kind:   types.KindAssembly,
			target: types.ErrBundleTooLarge,
		},
		{
			name:   "missing blockhash",
			groups: tooMany[:1],
			bh:     &blockchain.BlockhashInfo{},
			kind:   types.KindValidation,
		},
		{
			name:   "tip without payer",
			groups: tooMany[:1],
			bh:     testBlockhash(),
			tip:    &Tip{Lamports: 1_000},
			kind:   types.KindValidation,
		},
		{
			name:   "nothing to bundle",
			groups: []Group{{Name: "empty"}},
			bh:     testBlockhash(),
			kind:   types.KindValidation,
		},
		{
			name: "signer not available",
			groups: []Group{{Sets: []InstructionSet{{
				Label:        "foreign",
				Instructions: walletSets(t, pool, 1)[0].Instructions,
				Signers:      []*wallet.Wallet{newWallet()},
			}}}},
			bh:   testBlockhash(),
			kind: types.KindAssembly,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoordinator(NewPacker(unbounded, zap.NewNop()), zap.NewNop())
			_, err := c.AssembleBundle(tt.groups, tt.bh, nil, tt.tip)
			require.Error(t, err)
			assert.Equal(t, tt.kind, types.KindOf(err))
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	c := NewCoordinator(NewPacker(DefaultLimits(), zap.NewNop()), zap.NewNop())
	b, err := c.AssembleBundle([]Group{{Sets: walletSets(t, ammPool(t), 2)}}, testBlockhash(), nil, &Tip{Payer: newWallet(), Lamports: 1})
	require.NoError(t, err)

	encoded, err := EncodeBundle(b)
	require.NoError(t, err)
	require.Len(t, encoded, len(b.Transactions))

	for i, enc := range encoded {
		decoded, err := Deserialize(enc)
		require.NoError(t, err)

		want, err := b.Transactions[i].MarshalBinary()
		require.NoError(t, err)
		got, err := decoded.MarshalBinary()
		require.NoError(t, err)
		assert.Equal(t, want, got)
		assert.Equal(t, b.Transactions[i].Signatures, decoded.Signatures)
	}

	_, err = Deserialize("0OIl")
	assert.Error(t, err)
}

func TestRandomTipAccount(t *testing.T) {
	seen := map[solana.PublicKey]bool{}
	for i := 0; i < 200; i++ {
		acc := RandomTipAccount()
		require.Contains(t, TipAccounts, acc)
		seen[acc] = true
	}
	assert.Greater(t, len(seen), 1)
}
