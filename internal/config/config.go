// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/solana-bundler/internal/types"
)

type Config struct {
	RPCList           []string `mapstructure:"rpc_list"`
	RelayEndpoints    []string `mapstructure:"relay_endpoints"`
	RelayRegions      []string `mapstructure:"relay_regions"`
	RelayTimeoutMs    int      `mapstructure:"relay_timeout_ms"`
	RelayRateLimit    float64  `mapstructure:"relay_rate_limit"`
	SimulateURL       string   `mapstructure:"simulate_url"`
	TipLamports       uint64   `mapstructure:"tip_lamports"`
	Priority          string   `mapstructure:"priority"`
	ComputeUnitLimit  uint32   `mapstructure:"compute_unit_limit"`
	ComputeUnitPrice  uint64   `mapstructure:"compute_unit_price"`
	MaxTxSize         int      `mapstructure:"max_tx_size"`
	MaxAccountLocks   int      `mapstructure:"max_account_locks"`
	LookupTables      []string `mapstructure:"lookup_tables"`
	CreateLookupTable bool     `mapstructure:"create_lookup_table"`
	Retries           int      `mapstructure:"retries"`
	RetryDelayMs      int      `mapstructure:"retry_delay_ms"`
	PollIntervalMs    int      `mapstructure:"poll_interval_ms"`
	DeadlineSeconds   int      `mapstructure:"deadline_seconds"`
	MaxRebuilds       int      `mapstructure:"max_rebuilds"`
	Commitment        string   `mapstructure:"commitment"`
	DebugLogging      bool     `mapstructure:"debug_logging"`
	LogFile           string   `mapstructure:"log_file"`
}

const (
	DefaultRelayTimeoutMs  = 5000
	DefaultTipLamports     = 10_000
	DefaultMaxTxSize       = 1232
	DefaultMaxAccountLocks = 64
	DefaultRetries         = 3
	DefaultRetryDelayMs    = 200
	DefaultPollIntervalMs  = 500
	DefaultDeadlineSeconds = 90
	DefaultMaxRebuilds     = 2
	DefaultCommitment      = "confirmed"
	DefaultLogFile         = "bundler.log"

	envPrefix = "SOLANA_BUNDLER"
)

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"relay_regions":       []string{"mainnet"},
		"relay_timeout_ms":    DefaultRelayTimeoutMs,
		"relay_rate_limit":    0,
		"tip_lamports":        DefaultTipLamports,
		"max_tx_size":         DefaultMaxTxSize,
		"max_account_locks":   DefaultMaxAccountLocks,
		"create_lookup_table": false,
		"retries":             DefaultRetries,
		"retry_delay_ms":      DefaultRetryDelayMs,
		"poll_interval_ms":    DefaultPollIntervalMs,
		"deadline_seconds":    DefaultDeadlineSeconds,
		"max_rebuilds":        DefaultMaxRebuilds,
		"commitment":          DefaultCommitment,
		"log_file":            DefaultLogFile,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	loadEnvironmentLists(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if len(cfg.RPCList) == 0 {
		return errors.New("rpc_list is empty")
	}
	for _, rpcURL := range cfg.RPCList {
		if err := validateURLWithCache(rpcURL, "http"); err != nil {
			return fmt.Errorf("invalid RPC URL %q: %w", rpcURL, err)
		}
	}
	if len(cfg.RelayEndpoints) == 0 && len(cfg.RelayRegions) == 0 {
		return errors.New("no relay endpoints or regions configured")
	}
	for _, relayURL := range cfg.RelayEndpoints {
		if err := validateURLWithCache(relayURL, "http"); err != nil {
			return fmt.Errorf("invalid relay URL %q: %w", relayURL, err)
		}
	}
	if cfg.SimulateURL != "" {
		if err := validateURLWithCache(cfg.SimulateURL, "http"); err != nil {
			return fmt.Errorf("invalid simulate_url: %w", err)
		}
	}
	switch cfg.Commitment {
	case string(solanarpc.CommitmentProcessed), string(solanarpc.CommitmentConfirmed), string(solanarpc.CommitmentFinalized):
	default:
		return fmt.Errorf("invalid commitment %q", cfg.Commitment)
	}
	if cfg.Priority != "" {
		if _, err := types.BudgetForLevel(types.PriorityLevel(cfg.Priority)); err != nil {
			return err
		}
	}
	return validateNumericParams(cfg)
}

func validateNumericParams(cfg *Config) error {
	if cfg.RelayTimeoutMs <= 0 {
		return errors.New("invalid relay_timeout_ms")
	}
	if cfg.RelayRateLimit < 0 {
		return errors.New("invalid relay_rate_limit")
	}
	if cfg.MaxTxSize <= 0 || cfg.MaxTxSize > DefaultMaxTxSize {
		return fmt.Errorf("max_tx_size must be in (0, %d]", DefaultMaxTxSize)
	}
	if cfg.MaxAccountLocks <= 0 {
		return errors.New("invalid max_account_locks")
	}
	if cfg.ComputeUnitLimit > types.MaxComputeUnits {
		return fmt.Errorf("compute_unit_limit exceeds %d", types.MaxComputeUnits)
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.RetryDelayMs < 0 {
		return errors.New("invalid retry_delay_ms")
	}
	if cfg.PollIntervalMs <= 0 {
		return errors.New("invalid poll_interval_ms")
	}
	if cfg.DeadlineSeconds <= 0 {
		return errors.New("invalid deadline_seconds")
	}
	if cfg.MaxRebuilds < 0 {
		return errors.New("invalid max_rebuilds")
	}
	return nil
}

var urlCache sync.Map

func validateURLWithCache(rawURL string, protocol string) error {
	if _, ok := urlCache.Load(rawURL); ok {
		return nil
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) || parsed.Host == "" {
		return errors.New("invalid URL protocol")
	}
	urlCache.Store(rawURL, parsed)
	return nil
}

// loadEnvironmentLists переопределяет списки из переменных окружения вида "a,b,c".
func loadEnvironmentLists(v *viper.Viper, cfg *Config) {
	lists := map[string]*[]string{
		"RPC_LIST":        &cfg.RPCList,
		"RELAY_ENDPOINTS": &cfg.RelayEndpoints,
		"RELAY_REGIONS":   &cfg.RelayRegions,
		"LOOKUP_TABLES":   &cfg.LookupTables,
	}
	for key, target := range lists {
		raw := v.GetString(key)
		if raw == "" {
			continue
		}
		if clean := splitList(raw); len(clean) > 0 {
			*target = clean
		}
	}
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if clean := strings.TrimSpace(item); clean != "" {
			out = append(out, clean)
		}
	}
	return out
}

// ComputeBudget returns the per-wallet budget: explicit unit limit and price
// win, otherwise the priority profile fills the gaps.
func (c *Config) ComputeBudget() types.ComputeBudget {
	budget := types.ComputeBudget{UnitLimit: c.ComputeUnitLimit, UnitPrice: c.ComputeUnitPrice}
	if c.Priority == "" {
		return budget
	}
	profile, err := types.BudgetForLevel(types.PriorityLevel(c.Priority))
	if err != nil {
		return budget
	}
	if budget.UnitLimit == 0 {
		budget.UnitLimit = profile.UnitLimit
	}
	if budget.UnitPrice == 0 {
		budget.UnitPrice = profile.UnitPrice
	}
	return budget
}

func (c *Config) RelayTimeout() time.Duration {
	return time.Duration(c.RelayTimeoutMs) * time.Millisecond
}

func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelayMs) * time.Millisecond
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

func (c *Config) Deadline() time.Duration {
	return time.Duration(c.DeadlineSeconds) * time.Second
}

func (c *Config) CommitmentType() solanarpc.CommitmentType {
	return solanarpc.CommitmentType(c.Commitment)
}
