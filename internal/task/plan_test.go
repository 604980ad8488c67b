package task

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-bundler/internal/dex/pumpswap"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

func newWallet() *wallet.Wallet {
	return wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
}

func writePlan(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

type planFixture struct {
	mint, address, baseVault, quoteVault solana.PublicKey
	creator, buyerA, buyerB              *wallet.Wallet
	program                              solana.PublicKey
}

func newFixture() planFixture {
	return planFixture{
		mint:       solana.NewWallet().PublicKey(),
		address:    solana.NewWallet().PublicKey(),
		baseVault:  solana.NewWallet().PublicKey(),
		quoteVault: solana.NewWallet().PublicKey(),
		creator:    newWallet(),
		buyerA:     newWallet(),
		buyerB:     newWallet(),
		program:    solana.NewWallet().PublicKey(),
	}
}

func (f planFixture) wallets() map[string]*wallet.Wallet {
	return map[string]*wallet.Wallet{
		"creator": f.creator,
		"a":       f.buyerA,
		"b":       f.buyerB,
	}
}

func (f planFixture) yaml() string {
	return fmt.Sprintf(`
pool:
  program_id: %s
  mint: %s
  address: %s
  base_vault: %s
  quote_vault: %s
  static:
    base_reserve: 1000000000000000
    quote_reserve: 30000000000
    fee_bps: 25
slippage_percent: "1.5"
tip_payer: creator
orders:
  - wallet: a
    sol_budget: "0.25"
    desired_output: 1000000
  - wallet: b
    sol_budget: 2
    desired_output: 5000000
    slippage_percent: "3"
prelude:
  - name: create
    steps:
      - signers: [creator]
        instructions:
          - program_id: %s
            data: %s
            accounts:
              - pubkey: %s
                signer: true
                writable: true
              - pubkey: %s
                writable: true
`, pumpswap.PumpSwapProgramID, f.mint, f.address, f.baseVault, f.quoteVault,
		f.program, base58.Encode([]byte{1, 2, 3}), f.creator.PublicKey, f.mint)
}

func TestLoadPlan(t *testing.T) {
	f := newFixture()
	plan, err := LoadPlan(writePlan(t, f.yaml()))
	require.NoError(t, err)

	assert.Equal(t, types.DirectionBuy, plan.Direction)
	assert.Equal(t, pumpswap.PumpSwapProgramID, plan.Pool.ProgramID)
	assert.Equal(t, f.mint, plan.Pool.Mint)
	require.NotNil(t, plan.Pool.Static)
	assert.Equal(t, uint64(30_000_000_000), plan.Pool.Static.Quote)
	assert.Equal(t, uint16(25), plan.Pool.Static.FeeBps)

	require.Len(t, plan.Orders, 2)
	assert.Equal(t, Order{Wallet: "a", SolBudgetLamports: 250_000_000, DesiredOutput: 1_000_000, SlippageBps: 150}, plan.Orders[0])
	assert.Equal(t, Order{Wallet: "b", SolBudgetLamports: 2 * LamportsPerSOL, DesiredOutput: 5_000_000, SlippageBps: 300}, plan.Orders[1])

	require.Len(t, plan.Prelude, 1)
	require.Len(t, plan.Prelude[0].Steps, 1)
	step := plan.Prelude[0].Steps[0]
	assert.Equal(t, "create/0", step.Label)
	require.Len(t, step.Instructions, 1)

	ix := step.Instructions[0]
	assert.Equal(t, f.program, ix.ProgramID())
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, data)
	accounts := ix.Accounts()
	require.Len(t, accounts, 2)
	assert.True(t, accounts[0].IsSigner)
	assert.False(t, accounts[1].IsSigner)
	assert.True(t, accounts[1].IsWritable)
}

func TestPlanResolve(t *testing.T) {
	f := newFixture()
	plan, err := LoadPlan(writePlan(t, f.yaml()))
	require.NoError(t, err)

	budget := types.ComputeBudget{UnitLimit: 200_000, UnitPrice: 1_000}
	resolved, err := plan.Resolve(f.wallets(), budget)
	require.NoError(t, err)

	require.Len(t, resolved.Orders, 2)
	assert.Same(t, f.buyerA, resolved.Orders[0].Task.Wallet)
	assert.Same(t, f.buyerB, resolved.Orders[1].Task.Wallet)
	assert.Equal(t, uint16(300), resolved.Orders[1].Intent.SlippageBps)
	assert.Equal(t, types.DirectionBuy, resolved.Orders[0].Intent.Direction)

	require.Len(t, resolved.Prelude, 1)
	set := resolved.Prelude[0].Sets[0]
	assert.Equal(t, f.creator.PublicKey, set.FeePayer())
	assert.Equal(t, budget, set.Budget)
	assert.Same(t, f.creator, resolved.TipPayer)

	_, err = plan.Resolve(map[string]*wallet.Wallet{"a": f.buyerA}, budget)
	require.Error(t, err)
	assert.Equal(t, types.KindValidation, types.KindOf(err))
}

func TestPlanResolve_SignerWithoutKey(t *testing.T) {
	f := newFixture()
	plan, err := LoadPlan(writePlan(t, f.yaml()))
	require.NoError(t, err)

	// шаг подписывает другой кошелёк, ключ создателя не указан
	plan.Prelude[0].Steps[0].Signers = []string{"a"}
	_, err = plan.Resolve(f.wallets(), types.ComputeBudget{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must sign")
}

func TestPlanResolve_TipPayerFallback(t *testing.T) {
	f := newFixture()
	plan, err := LoadPlan(writePlan(t, f.yaml()))
	require.NoError(t, err)

	plan.TipPayer = ""
	resolved, err := plan.Resolve(f.wallets(), types.ComputeBudget{})
	require.NoError(t, err)
	assert.Same(t, f.buyerA, resolved.TipPayer)
}

func TestParseSOL(t *testing.T) {
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"1", LamportsPerSOL, false},
		{"0.000000001", 1, false},
		{" 0.5 ", 500_000_000, false},
		{"0.0000000001", 0, true},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
		{"100000000000", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSOL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadPlan_Invalid(t *testing.T) {
	f := newFixture()
	pool := fmt.Sprintf("pool:\n  program_id: %s\n  mint: %s\n", pumpswap.PumpSwapProgramID, f.mint)
	order := "orders:\n  - wallet: a\n    sol_budget: \"1\"\n    desired_output: 10\n"

	tests := []struct {
		name string
		body string
	}{
		{"no orders", pool},
		{"unknown program", fmt.Sprintf("pool:\n  program_id: %s\n  mint: %s\n", f.program, f.mint) + order},
		{"missing mint", fmt.Sprintf("pool:\n  program_id: %s\n", pumpswap.PumpSwapProgramID) + order},
		{"bad direction", pool + order + "direction: hold\n"},
		{"slippage over 100", pool + order + "slippage_percent: \"150\"\n"},
		{"zero output", pool + "orders:\n  - wallet: a\n    sol_budget: \"1\"\n"},
		{"duplicate wallet", pool + order + "  - wallet: a\n    sol_budget: \"1\"\n    desired_output: 10\n"},
		{"bad data", pool + order + fmt.Sprintf(
			"prelude:\n  - name: x\n    steps:\n      - signers: [a]\n        instructions:\n          - program_id: %s\n            data: \"0OIl\"\n", f.program)},
		{"step without signer", pool + order + fmt.Sprintf(
			"prelude:\n  - name: x\n    steps:\n      - instructions:\n          - program_id: %s\n", f.program)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPlan(writePlan(t, tt.body))
			require.Error(t, err)
			assert.Equal(t, types.KindValidation, types.KindOf(err))
		})
	}

	_, err := LoadPlan(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, types.ErrUnknownProgramVariant))
}
