package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
rpc_list:
  - https://api.mainnet-beta.solana.com
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"mainnet"}, cfg.RelayRegions)
	assert.Equal(t, uint64(DefaultTipLamports), cfg.TipLamports)
	assert.Equal(t, DefaultMaxTxSize, cfg.MaxTxSize)
	assert.Equal(t, DefaultMaxAccountLocks, cfg.MaxAccountLocks)
	assert.Equal(t, DefaultMaxRebuilds, cfg.MaxRebuilds)
	assert.Equal(t, 5*time.Second, cfg.RelayTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.PollInterval())
	assert.Equal(t, 90*time.Second, cfg.Deadline())
	assert.Equal(t, "confirmed", string(cfg.CommitmentType()))
	assert.True(t, cfg.ComputeBudget().IsZero())
	assert.False(t, cfg.CreateLookupTable)
}

func TestLoadConfig_FileValues(t *testing.T) {
	path := writeConfig(t, `
rpc_list: ["https://rpc-a.example", "https://rpc-b.example"]
relay_endpoints: ["https://relay.example/api/v1/bundles"]
relay_regions: ["ny", "tokyo"]
relay_rate_limit: 5
simulate_url: https://relay.example/api/v1/bundles
tip_lamports: 50000
compute_unit_limit: 250000
priority: high
lookup_tables: ["9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"]
create_lookup_table: true
max_rebuilds: 4
commitment: finalized
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Len(t, cfg.RPCList, 2)
	assert.Equal(t, []string{"ny", "tokyo"}, cfg.RelayRegions)
	assert.Equal(t, 5.0, cfg.RelayRateLimit)
	assert.Equal(t, uint64(50_000), cfg.TipLamports)
	assert.Equal(t, 4, cfg.MaxRebuilds)
	assert.True(t, cfg.CreateLookupTable)

	// явный лимит остаётся, цена берётся из профиля high
	assert.Equal(t, types.ComputeBudget{UnitLimit: 250_000, UnitPrice: 10_000}, cfg.ComputeBudget())
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
rpc_list: ["https://rpc-a.example"]
tip_lamports: 1000
`)
	t.Setenv("SOLANA_BUNDLER_RPC_LIST", " https://rpc-env-1.example , https://rpc-env-2.example ,")
	t.Setenv("SOLANA_BUNDLER_TIP_LAMPORTS", "77000")
	t.Setenv("SOLANA_BUNDLER_RELAY_REGIONS", "amsterdam,frankfurt")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"https://rpc-env-1.example", "https://rpc-env-2.example"}, cfg.RPCList)
	assert.Equal(t, uint64(77_000), cfg.TipLamports)
	assert.Equal(t, []string{"amsterdam", "frankfurt"}, cfg.RelayRegions)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty rpc list", `tip_lamports: 1`},
		{"bad rpc scheme", `rpc_list: ["ws://rpc.example"]`},
		{"bad relay url", "rpc_list: [\"https://rpc.example\"]\nrelay_endpoints: [\"relay\"]"},
		{"oversize tx", "rpc_list: [\"https://rpc.example\"]\nmax_tx_size: 5000"},
		{"bad commitment", "rpc_list: [\"https://rpc.example\"]\ncommitment: eventually"},
		{"bad priority", "rpc_list: [\"https://rpc.example\"]\npriority: ludicrous"},
		{"negative rebuilds", "rpc_list: [\"https://rpc.example\"]\nmax_rebuilds: -1"},
		{"zero deadline", "rpc_list: [\"https://rpc.example\"]\ndeadline_seconds: 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
