// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-bundler/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-bundler/internal/bot"
	"github.com/rovshanmuradov/solana-bundler/internal/bundle"
	"github.com/rovshanmuradov/solana-bundler/internal/config"
	"github.com/rovshanmuradov/solana-bundler/internal/dex"
	"github.com/rovshanmuradov/solana-bundler/internal/relay"
	"github.com/rovshanmuradov/solana-bundler/internal/task"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
	"github.com/rovshanmuradov/solana-bundler/internal/utils/logger"
	"github.com/rovshanmuradov/solana-bundler/internal/utils/metrics"
	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to engine config")
	planPath := flag.String("plan", "configs/plan.yaml", "path to bundle plan")
	walletsPath := flag.String("wallets", "configs/wallets.csv", "path to wallets CSV")
	flag.Parse()

	// .env необязателен
	_ = godotenv.Load()

	os.Exit(run(*configPath, *planPath, *walletsPath))
}

func run(configPath, planPath, walletsPath string) int {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = cfg.LogFile
	logCfg.Development = cfg.DebugLogging
	appLogger, err := logger.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		return 1
	}

	shutdown := bot.NewShutdownHandler(appLogger.Logger, 10*time.Second)
	shutdown.AddFunc("logger", appLogger.Sync)
	defer func() {
		if err := shutdown.Shutdown(); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown: %v\n", err)
		}
	}()

	ctx, cancel := shutdown.Watch(context.Background())
	defer cancel()

	log := appLogger.WithOperation("bundle")
	result, err := execute(ctx, cfg, planPath, walletsPath, appLogger, log)
	if err != nil && result == nil {
		log.Error("Bundle run aborted", zap.Error(err))
		return 1
	}
	if result.Status != types.StatusConfirmed {
		return 1
	}
	return 0
}

func execute(
	ctx context.Context,
	cfg *config.Config,
	planPath, walletsPath string,
	appLogger *logger.Logger,
	log *zap.Logger,
) (*types.BundleResult, error) {
	names, wallets, err := wallet.LoadWallets(walletsPath)
	if err != nil {
		return nil, fmt.Errorf("load wallets: %w", err)
	}
	log.Info("Wallets loaded", zap.Int("count", len(names)))

	plan, err := task.LoadPlan(planPath)
	if err != nil {
		return nil, err
	}
	budget := cfg.ComputeBudget()
	resolved, err := plan.Resolve(wallets, budget)
	if err != nil {
		return nil, err
	}
	for _, o := range resolved.Orders {
		appLogger.WithWallet(o.Task.Wallet.PublicKey.String()).Info("Order resolved",
			zap.String("direction", string(o.Intent.Direction)),
			zap.Uint64("sol_budget", o.Task.SolBudgetLamports),
			zap.Uint64("desired_output", o.Intent.DesiredOutputAmount),
			zap.Uint16("slippage_bps", o.Intent.SlippageBps))
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	retry := solbc.DefaultRetryPolicy()
	retry.MaxAttempts = uint(cfg.Retries) + 1
	retry.InitialInterval = cfg.RetryDelay()
	chain, err := solbc.NewClient(cfg.RPCList, retry, cfg.CommitmentType(), log)
	if err != nil {
		return nil, fmt.Errorf("rpc client: %w", err)
	}
	chain.SetRecorder(collector)

	source, err := dex.NewPoolSource(plan.Pool, chain, log)
	if err != nil {
		return nil, err
	}

	endpoints, err := relay.ResolveEndpoints(cfg.RelayEndpoints, cfg.RelayRegions)
	if err != nil {
		return nil, err
	}
	broadcaster, err := relay.NewBroadcaster(endpoints, relay.Config{
		Timeout:   cfg.RelayTimeout(),
		RateLimit: cfg.RelayRateLimit,
	}, collector, log)
	if err != nil {
		return nil, err
	}

	tables, err := parseKeys(cfg.LookupTables)
	if err != nil {
		return nil, fmt.Errorf("lookup_tables: %w", err)
	}

	opts := []bot.Option{
		bot.WithRecorder(collector),
		bot.WithLookupTables(solbc.NewLookupTableLoader(chain, solbc.DefaultLookupTableTTL, log)),
	}
	if cfg.SimulateURL != "" {
		sim := relay.NewSimulator(relay.Endpoint{URL: cfg.SimulateURL, Region: "simulate"}, nil, cfg.RelayTimeout(), collector, log)
		opts = append(opts, bot.WithSimulator(sim))
	}

	watcher := transaction.NewWatcher(chain, cfg.PollInterval(), log)
	if cfg.CreateLookupTable {
		opts = append(opts, bot.WithTableBuilder(solbc.NewLookupTableBuilder(chain, watcher, log)))
	}

	runner := bot.NewRunner(
		chain,
		bundle.NewAssembler(budget, log),
		bundle.NewCoordinator(bundle.NewPacker(bundle.Limits{
			MaxTxSize:       cfg.MaxTxSize,
			MaxAccountLocks: cfg.MaxAccountLocks,
		}, log), log),
		broadcaster,
		watcher,
		bot.Settings{
			TipLamports:  cfg.TipLamports,
			LookupTables: tables,
			Commitment:   cfg.CommitmentType(),
			Deadline:     cfg.Deadline(),
			MaxRebuilds:  cfg.MaxRebuilds,
		},
		log,
		opts...,
	)

	log.Info("Running bundle",
		zap.String("pool_program", plan.Pool.ProgramID.String()),
		zap.String("mint", plan.Pool.Mint.String()),
		zap.String("direction", string(plan.Direction)),
		zap.Int("orders", len(resolved.Orders)),
		zap.Int("prelude_groups", len(resolved.Prelude)),
		zap.Int("endpoints", len(endpoints)))

	req := bot.Request{
		Source:   source,
		Orders:   resolved.Orders,
		Prelude:  resolved.Prelude,
		TipPayer: resolved.TipPayer,
	}
	if cfg.CreateLookupTable {
		table, err := runner.PrepareLookupTable(ctx, req)
		if err != nil {
			return nil, err
		}
		log.Info("Created lookup table for this run", zap.String("lut", table.String()))
	}

	done := appLogger.TrackPerformance("bundle_run")
	result, err := runner.Run(ctx, req)
	done()

	logResult(appLogger, result, err)
	logSnapshot(log, collector)
	return result, err
}

func parseKeys(raw []string) ([]solana.PublicKey, error) {
	keys := make([]solana.PublicKey, 0, len(raw))
	for _, s := range raw {
		k, err := solana.PublicKeyFromBase58(s)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", s, err)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func logResult(appLogger *logger.Logger, result *types.BundleResult, err error) {
	if result == nil {
		return
	}
	log := appLogger.WithBundle(result.BundleID)
	for _, o := range result.Endpoints {
		fields := []zap.Field{
			zap.String("endpoint", o.URL),
			zap.String("region", o.Region),
			zap.Bool("accepted", o.Accepted),
		}
		if o.Err != nil {
			fields = append(fields, zap.String("kind", string(o.Kind)), zap.Error(o.Err))
		}
		log.Info("Endpoint outcome", fields...)
	}

	fields := []zap.Field{
		zap.String("status", string(result.Status)),
		zap.String("anchor", result.AnchorSignature),
		zap.Int("attempts", result.Attempts),
		zap.Int("accepted", result.Accepted()),
	}
	if err != nil {
		log.Error("Bundle finished", append(fields, zap.Error(err))...)
		return
	}
	log.Info("Bundle finished", fields...)
}

func logSnapshot(log *zap.Logger, collector *metrics.Collector) {
	snap, err := collector.Snapshot()
	if err != nil {
		log.Warn("Metrics snapshot failed", zap.Error(err))
		return
	}
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Float64(k, snap[k]))
	}
	log.Info("Metrics snapshot", fields...)
}
