// internal/bot/runner.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/solana-bundler/internal/blockchain"
	"github.com/rovshanmuradov/solana-bundler/internal/blockchain/solbc"
	"github.com/rovshanmuradov/solana-bundler/internal/blockchain/solbc/transaction"
	"github.com/rovshanmuradov/solana-bundler/internal/bundle"
	"github.com/rovshanmuradov/solana-bundler/internal/dex/model"
	"github.com/rovshanmuradov/solana-bundler/internal/relay"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

// Broadcaster submits bundles and answers status lookups. *relay.Broadcaster implements it.
type Broadcaster interface {
	Broadcast(ctx context.Context, bn *bundle.Bundle) (*types.BundleResult, error)
	BundleStatuses(ctx context.Context, ids []string) ([]*relay.BundleStatus, error)
}

// Simulator is the optional relay preflight. *relay.Simulator implements it.
type Simulator interface {
	Simulate(ctx context.Context, bn *bundle.Bundle) error
}

// TableLoader resolves address lookup tables. *solbc.LookupTableLoader implements it.
type TableLoader interface {
	Load(ctx context.Context, tables []solana.PublicKey) (map[solana.PublicKey]solana.PublicKeySlice, error)
}

// TableBuilder creates a lookup table from addresses. *solbc.LookupTableBuilder implements it.
type TableBuilder interface {
	Create(ctx context.Context, authority *wallet.Wallet, addresses []solana.PublicKey) (solana.PublicKey, error)
}

// Recorder receives per-attempt outcomes. *metrics.Collector implements it.
type Recorder interface {
	RecordBundle(status string, duration time.Duration)
	RecordConfirmation(state string, duration time.Duration)
}

var (
	_ Broadcaster  = (*relay.Broadcaster)(nil)
	_ Simulator    = (*relay.Simulator)(nil)
	_ TableLoader  = (*solbc.LookupTableLoader)(nil)
	_ TableBuilder = (*solbc.LookupTableBuilder)(nil)
)

// Settings are the run-wide knobs taken from config.
type Settings struct {
	TipLamports  uint64
	LookupTables []solana.PublicKey
	Commitment   rpc.CommitmentType
	Deadline     time.Duration
	MaxRebuilds  int
}

// Request is one bundle to land: where reserves come from, who swaps, and
// which opaque groups go before the swaps.
type Request struct {
	Source   model.PoolSource
	Orders   []bundle.WalletOrder
	Prelude  []bundle.Group
	TipPayer *wallet.Wallet
}

// Validate checks the request before any network call.
func (r Request) Validate() error {
	if r.Source == nil {
		return types.NewError(types.KindValidation, "request", fmt.Errorf("pool source is nil"))
	}
	if len(r.Orders) == 0 && len(r.Prelude) == 0 {
		return types.NewError(types.KindValidation, "request", fmt.Errorf("nothing to bundle"))
	}
	for i, o := range r.Orders {
		if err := o.Task.Validate(); err != nil {
			return fmt.Errorf("order %d: %w", i, err)
		}
		if err := o.Intent.Validate(); err != nil {
			return fmt.Errorf("order %d: %w", i, err)
		}
	}
	return nil
}

// Runner drives one bundle from snapshot to a terminal result, rebuilding
// from a fresh snapshot when the previous attempt expired or failed on chain.
type Runner struct {
	chain       blockchain.Client
	assembler   *bundle.Assembler
	coordinator *bundle.Coordinator
	broadcaster Broadcaster
	watcher     *transaction.Watcher
	analyzer    *solbc.ErrorAnalyzer

	simulator Simulator
	tables    TableLoader
	builder   TableBuilder
	recorder  Recorder

	// таблицы, созданные PrepareLookupTable; содержимое известно без чтения
	created map[solana.PublicKey]solana.PublicKeySlice

	settings Settings
	logger   *zap.Logger
}

// Option настраивает необязательные зависимости Runner.
type Option func(*Runner)

func WithSimulator(s Simulator) Option { return func(r *Runner) { r.simulator = s } }

func WithLookupTables(l TableLoader) Option { return func(r *Runner) { r.tables = l } }

func WithTableBuilder(b TableBuilder) Option { return func(r *Runner) { r.builder = b } }

func WithRecorder(rec Recorder) Option { return func(r *Runner) { r.recorder = rec } }

// NewRunner wires the pipeline stages together.
func NewRunner(
	chain blockchain.Client,
	assembler *bundle.Assembler,
	coordinator *bundle.Coordinator,
	broadcaster Broadcaster,
	watcher *transaction.Watcher,
	settings Settings,
	logger *zap.Logger,
	opts ...Option,
) *Runner {
	if settings.Commitment == "" {
		settings.Commitment = rpc.CommitmentConfirmed
	}
	if settings.MaxRebuilds < 0 {
		settings.MaxRebuilds = 0
	}
	r := &Runner{
		chain:       chain,
		assembler:   assembler,
		coordinator: coordinator,
		broadcaster: broadcaster,
		watcher:     watcher,
		analyzer:    solbc.NewErrorAnalyzer(logger),
		settings:    settings,
		logger:      logger.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run returns the final BundleResult. The error is nil only for a confirmed
// bundle; otherwise it is result.Err. Attempts counts build rounds.
func (r *Runner) Run(ctx context.Context, req Request) (*types.BundleResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if r.settings.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.settings.Deadline)
		defer cancel()
	}

	tables, err := r.loadTables(ctx)
	if err != nil {
		if ctx.Err() != nil {
			result := &types.BundleResult{Status: types.StatusExpired, Err: deadlineError("load lookup tables", err)}
			return result, result.Err
		}
		return nil, err
	}

	var result *types.BundleResult
	for attempt := 1; attempt <= r.settings.MaxRebuilds+1; attempt++ {
		start := time.Now()
		result, err = r.attempt(ctx, req, tables)
		if result == nil {
			result = &types.BundleResult{Err: err}
		}
		if err != nil && ctx.Err() != nil && !errors.Is(err, types.ErrDeadlineExceeded) {
			// дедлайн истёк посреди сборки или отправки
			err = deadlineError("attempt", err)
			result.Status = types.StatusExpired
			result.Err = err
		}
		result.Attempts = attempt
		r.recordBundle(result, err, time.Since(start))

		logger := r.logger.With(
			zap.Int("attempt", attempt),
			zap.String("bundle_id", result.BundleID),
			zap.String("status", string(result.Status)))

		if err == nil {
			logger.Info("Bundle confirmed", zap.String("anchor", result.AnchorSignature))
			return result, nil
		}
		if !types.IsRebuildable(err) || ctx.Err() != nil {
			logger.Error("Bundle failed", zap.Error(err))
			return result, err
		}
		logger.Warn("Rebuilding bundle from fresh snapshot", zap.Error(err))
	}

	r.logger.Error("Rebuild limit reached",
		zap.Int("max_rebuilds", r.settings.MaxRebuilds),
		zap.Error(result.Err))
	return result, result.Err
}

func (r *Runner) loadTables(ctx context.Context) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	tables := make(map[solana.PublicKey]solana.PublicKeySlice, len(r.settings.LookupTables)+len(r.created))
	if r.tables != nil && len(r.settings.LookupTables) > 0 {
		loaded, err := r.tables.Load(ctx, r.settings.LookupTables)
		if err != nil {
			return nil, fmt.Errorf("load lookup tables: %w", err)
		}
		for k, v := range loaded {
			tables[k] = v
		}
	}
	for k, v := range r.created {
		tables[k] = v
	}
	if len(tables) == 0 {
		return nil, nil
	}
	return tables, nil
}

// PrepareLookupTable assembles the request once, creates a lookup table
// holding the accounts shared between its instruction sets and uses it for
// every later Run. Signers and invoked programs stay out of the table.
func (r *Runner) PrepareLookupTable(ctx context.Context, req Request) (solana.PublicKey, error) {
	if r.builder == nil {
		return solana.PublicKey{}, fmt.Errorf("no lookup table builder configured")
	}
	if err := req.Validate(); err != nil {
		return solana.PublicKey{}, err
	}
	if req.TipPayer == nil {
		return solana.PublicKey{}, types.NewError(types.KindValidation, "prepare lookup table", fmt.Errorf("authority wallet is nil"))
	}

	var sets []bundle.InstructionSet
	for _, g := range req.Prelude {
		sets = append(sets, g.Sets...)
	}
	if len(req.Orders) > 0 {
		pool, err := req.Source.Snapshot(ctx)
		if err != nil {
			return solana.PublicKey{}, fmt.Errorf("pool snapshot: %w", err)
		}
		existing, err := r.existingAccounts(ctx, req.Orders, pool)
		if err != nil {
			return solana.PublicKey{}, err
		}
		swaps, err := r.assembler.BuildAll(ctx, req.Orders, pool, existing)
		if err != nil {
			return solana.PublicKey{}, err
		}
		sets = append(sets, swaps...)
	}

	addresses := tableCandidates(sets)
	if len(addresses) == 0 {
		return solana.PublicKey{}, types.NewError(types.KindValidation, "prepare lookup table", fmt.Errorf("no shared accounts to put in a table"))
	}
	table, err := r.builder.Create(ctx, req.TipPayer, addresses)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("create lookup table: %w", err)
	}

	if r.created == nil {
		r.created = make(map[solana.PublicKey]solana.PublicKeySlice)
	}
	r.created[table] = addresses
	r.logger.Info("Lookup table ready",
		zap.String("lut", table.String()),
		zap.Int("addresses", len(addresses)))
	return table, nil
}

// tableCandidates filters SharedAccounts down to keys a lookup table may hold:
// signers must be static keys, invoked programs too.
func tableCandidates(sets []bundle.InstructionSet) []solana.PublicKey {
	static := make(map[solana.PublicKey]bool)
	for _, set := range sets {
		for _, ix := range set.WithBudget() {
			static[ix.ProgramID()] = true
			for _, meta := range ix.Accounts() {
				if meta != nil && meta.IsSigner {
					static[meta.PublicKey] = true
				}
			}
		}
	}
	var out []solana.PublicKey
	for _, k := range bundle.SharedAccounts(sets) {
		if !static[k] {
			out = append(out, k)
		}
	}
	return out
}

// attempt runs one snapshot-to-terminal round.
func (r *Runner) attempt(
	ctx context.Context,
	req Request,
	tables map[solana.PublicKey]solana.PublicKeySlice,
) (*types.BundleResult, error) {
	bn, err := r.build(ctx, req, tables)
	if err != nil {
		return nil, err
	}
	result := &types.BundleResult{
		BundleID:        bn.ID,
		AnchorSignature: bn.AnchorSignature.String(),
	}

	if r.simulator != nil {
		if err := r.simulator.Simulate(ctx, bn); err != nil {
			if types.KindOf(err) == types.KindOnChain {
				result.Status = types.StatusOnChainError
				var simErr *relay.SimulationError
				if errors.As(err, &simErr) {
					result.Logs = simErr.Logs
					r.explain(bn.ID, simErr.Logs)
				}
			}
			result.Err = err
			return result, err
		}
	}

	submitted, err := r.broadcaster.Broadcast(ctx, bn)
	if submitted != nil {
		result.Status = submitted.Status
		result.Endpoints = submitted.Endpoints
	}
	if err != nil {
		result.Err = err
		return result, err
	}

	outcome, err := r.watcher.AwaitConfirmation(ctx, bn.AnchorSignature, bn.LastValidBlockHeight, r.settings.Commitment)
	if outcome != nil && r.recorder != nil {
		r.recorder.RecordConfirmation(string(outcome.State), outcome.Elapsed)
	}
	if err != nil {
		// контекст истёк или отменён: это дедлайн всего прогона
		result.Status = types.StatusExpired
		result.Err = deadlineError("await confirmation", err)
		return result, result.Err
	}

	switch outcome.State {
	case transaction.StateConfirmed:
		result.Status = types.StatusConfirmed
		return result, nil
	case transaction.StateFailedOnChain:
		result.Status = types.StatusOnChainError
		result.Logs = r.failureLogs(ctx, bn)
		r.explain(bn.ID, result.Logs)
		result.Err = types.NewError(types.KindOnChain, "await confirmation",
			fmt.Errorf("anchor %s failed: %s", outcome.Signature, outcome.Error))
	default:
		result.Status = types.StatusExpired
		result.Err = types.NewError(types.KindExpired, "await confirmation",
			fmt.Errorf("%w at height %d", types.ErrBlockhashExpired, outcome.BlockHeight))
		r.diagnose(ctx, result)
	}
	return result, result.Err
}

// build snapshots the pool and assembles a signed bundle against a fresh blockhash.
func (r *Runner) build(
	ctx context.Context,
	req Request,
	tables map[solana.PublicKey]solana.PublicKeySlice,
) (*bundle.Bundle, error) {
	pool, err := req.Source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("pool snapshot: %w", err)
	}

	bh, err := r.chain.GetLatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest blockhash: %w", err)
	}

	groups := make([]bundle.Group, 0, len(req.Prelude)+1)
	groups = append(groups, req.Prelude...)

	if len(req.Orders) > 0 {
		existing, err := r.existingAccounts(ctx, req.Orders, pool)
		if err != nil {
			return nil, err
		}
		sets, err := r.assembler.BuildAll(ctx, req.Orders, pool, existing)
		if err != nil {
			return nil, err
		}
		groups = append(groups, bundle.Group{Name: "swaps", Sets: sets})
	}

	var tip *bundle.Tip
	if r.settings.TipLamports > 0 {
		tip = &bundle.Tip{Payer: req.TipPayer, Lamports: r.settings.TipLamports}
	}
	return r.coordinator.AssembleBundle(groups, bh, tables, tip)
}

// existingAccounts checks every ATA the swaps touch with one batched read.
func (r *Runner) existingAccounts(ctx context.Context, orders []bundle.WalletOrder, pool model.Pool) (bundle.ExistingAccounts, error) {
	keys, err := bundle.RequiredAccounts(orders, pool)
	if err != nil {
		return nil, err
	}
	existing := make(bundle.ExistingAccounts, len(keys))
	if len(keys) == 0 {
		return existing, nil
	}

	data, err := r.chain.GetMultipleAccounts(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("account existence check: %w", err)
	}
	for i, key := range keys {
		existing[key] = i < len(data) && data[i] != nil
	}
	return existing, nil
}

// diagnose asks the relays what happened to an expired bundle; logging only.
func (r *Runner) diagnose(ctx context.Context, result *types.BundleResult) {
	ids := relay.AcceptedIDs(result)
	if len(ids) == 0 {
		return
	}
	statuses, err := r.broadcaster.BundleStatuses(ctx, ids)
	if err != nil {
		r.logger.Debug("Bundle status lookup failed", zap.Error(err))
		return
	}
	if len(statuses) == 0 {
		r.logger.Info("Relays have no record of the expired bundle", zap.Strings("relay_ids", ids))
		return
	}
	for _, s := range statuses {
		r.logger.Info("Relay bundle status",
			zap.String("relay_id", s.BundleID),
			zap.Uint64("slot", s.Slot),
			zap.String("confirmation", s.ConfirmationStatus),
			zap.Any("err", s.Err))
	}
}

// failureLogs re-simulates the anchor transaction to recover the program
// logs of an on-chain failure. Best effort: nil when simulation fails.
func (r *Runner) failureLogs(ctx context.Context, bn *bundle.Bundle) []string {
	if len(bn.Transactions) == 0 {
		return nil
	}
	sim, err := r.chain.SimulateTransaction(ctx, bn.Transactions[0])
	if err != nil || sim == nil {
		r.logger.Debug("Anchor re-simulation failed", zap.String("bundle_id", bn.ID), zap.Error(err))
		return nil
	}
	if sim.Err == nil {
		r.logger.Info("Anchor simulates cleanly now; pool state changed after the failure",
			zap.String("bundle_id", bn.ID))
	}
	return sim.Logs
}

func deadlineError(op string, err error) error {
	return types.NewError(types.KindExpired, op, fmt.Errorf("%w: %w", types.ErrDeadlineExceeded, err))
}

func (r *Runner) explain(bundleID string, logs []string) {
	if r.analyzer.IsSlippageFailure(logs) {
		r.logger.Warn("Simulation tripped a slippage guard; reserves moved since quoting",
			zap.String("bundle_id", bundleID))
	}
}

func (r *Runner) recordBundle(result *types.BundleResult, err error, d time.Duration) {
	if r.recorder == nil {
		return
	}
	status := string(result.Status)
	if status == "" {
		status = string(types.KindOf(err))
		if status == "" {
			status = "error"
		}
	}
	r.recorder.RecordBundle(status, d)
}
