// internal/bundle/assembler.go
package bundle

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rovshanmuradov/solana-bundler/internal/dex"
	"github.com/rovshanmuradov/solana-bundler/internal/dex/model"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

// ExistingAccounts marks token accounts already present on chain.
// A nil map means nothing is known and every account is created idempotently.
type ExistingAccounts map[solana.PublicKey]bool

// WalletOrder is one wallet's swap request.
type WalletOrder struct {
	Task   types.WalletTask
	Intent types.SwapIntent
}

// Assembler turns a wallet's intent into its ordered instruction set.
type Assembler struct {
	budget types.ComputeBudget
	logger *zap.Logger
}

// NewAssembler creates an assembler attaching budget to every wallet set.
func NewAssembler(budget types.ComputeBudget, logger *zap.Logger) *Assembler {
	return &Assembler{
		budget: budget,
		logger: logger.Named("assembler"),
	}
}

// BuildWalletInstructions produces, in order: wrapped-SOL account creation,
// lamport transfer plus sync, destination account creation, the swap, and the
// wrapped-SOL close. Wrap steps are emitted only for pools settling in
// wrapped SOL; account creation is skipped for accounts known to exist.
func (a *Assembler) BuildWalletInstructions(
	task types.WalletTask,
	intent types.SwapIntent,
	pool model.Pool,
	existing ExistingAccounts,
) (InstructionSet, error) {
	if err := task.Validate(); err != nil {
		return InstructionSet{}, err
	}
	if err := intent.Validate(); err != nil {
		return InstructionSet{}, err
	}
	if pool == nil || !dex.IsSupportedProgram(pool.ProgramID()) {
		program := solana.PublicKey{}
		if pool != nil {
			program = pool.ProgramID()
		}
		return InstructionSet{}, types.NewError(types.KindAssembly, "assemble",
			fmt.Errorf("%w: %s", types.ErrUnknownProgramVariant, program))
	}

	reserves := pool.Reserves(intent.Direction)
	if err := reserves.Validate(); err != nil {
		return InstructionSet{}, err
	}
	maxInput, err := dex.QuoteMaxInput(intent.DesiredOutputAmount, reserves, intent.SlippageBps, reserves.FeeBps)
	if err != nil {
		return InstructionSet{}, err
	}
	if intent.Direction == types.DirectionBuy && maxInput > task.SolBudgetLamports {
		return InstructionSet{}, types.NewError(types.KindValidation, "assemble",
			fmt.Errorf("%w: %s needs %d lamports, budget %d",
				types.ErrBudgetExceeded, task.Wallet.PublicKey, maxInput, task.SolBudgetLamports))
	}

	w := task.Wallet
	user := w.PublicKey
	baseATA, err := w.GetATA(pool.BaseMint())
	if err != nil {
		return InstructionSet{}, fmt.Errorf("failed to derive token account: %w", err)
	}

	var (
		instructions []solana.Instruction
		wsolATA      solana.PublicKey
	)

	if pool.WrapsNative() {
		wsolATA, err = w.WrappedSOLAccount()
		if err != nil {
			return InstructionSet{}, fmt.Errorf("failed to derive wrapped sol account: %w", err)
		}

		// 1. wrapped SOL account
		if !existing[wsolATA] {
			ix, err := wallet.CreateAssociatedTokenAccountIdempotentInstruction(user, user, solana.WrappedSol)
			if err != nil {
				return InstructionSet{}, err
			}
			instructions = append(instructions, ix)
		}

		// 2. перевод лампортов и sync - только при покупке
		if intent.Direction == types.DirectionBuy {
			instructions = append(instructions,
				system.NewTransferInstruction(maxInput, user, wsolATA).Build(),
				token.NewSyncNativeInstruction(wsolATA).Build(),
			)
		}
	}

	// 3. destination account: token on buy, wrapped SOL (already created) on sell
	if intent.Direction == types.DirectionBuy && !existing[baseATA] {
		ix, err := wallet.CreateAssociatedTokenAccountIdempotentInstruction(user, user, pool.BaseMint())
		if err != nil {
			return InstructionSet{}, err
		}
		instructions = append(instructions, ix)
	}

	// 4. swap
	swapIx, err := pool.SwapInstruction(model.SwapParams{
		Direction:   intent.Direction,
		User:        user,
		UserBase:    baseATA,
		UserQuote:   wsolATA,
		AmountOut:   intent.DesiredOutputAmount,
		MaxAmountIn: maxInput,
	})
	if err != nil {
		return InstructionSet{}, types.NewError(types.KindAssembly, "assemble", err)
	}
	instructions = append(instructions, swapIx)

	// 5. закрываем wrapped SOL, остаток лампортов возвращается владельцу
	if pool.WrapsNative() {
		instructions = append(instructions,
			token.NewCloseAccountInstruction(wsolATA, user, user, nil).Build())
	}

	a.logger.Debug("Wallet instructions assembled",
		zap.String("wallet", user.String()),
		zap.String("variant", string(pool.Variant())),
		zap.String("direction", string(intent.Direction)),
		zap.Uint64("desired_output", intent.DesiredOutputAmount),
		zap.Uint64("max_input", maxInput),
		zap.Int("instructions", len(instructions)))

	return InstructionSet{
		Label:        user.String(),
		Instructions: instructions,
		Signers:      []*wallet.Wallet{w},
		Budget:       a.budget,
		MaxInput:     maxInput,
	}, nil
}

// BuildAll assembles every order concurrently and returns sets in input order.
// The first failure cancels the rest.
func (a *Assembler) BuildAll(ctx context.Context, orders []WalletOrder, pool model.Pool, existing ExistingAccounts) ([]InstructionSet, error) {
	sets := make([]InstructionSet, len(orders))

	g, gctx := errgroup.WithContext(ctx)
	for i, order := range orders {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			set, err := a.BuildWalletInstructions(order.Task, order.Intent, pool, existing)
			if err != nil {
				return fmt.Errorf("wallet %d: %w", i, err)
			}
			sets[i] = set
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

// RequiredAccounts lists the token accounts the orders may need to create,
// for one batched existence check before assembly.
func RequiredAccounts(orders []WalletOrder, pool model.Pool) ([]solana.PublicKey, error) {
	seen := make(map[solana.PublicKey]bool)
	var out []solana.PublicKey
	add := func(k solana.PublicKey) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}

	for _, order := range orders {
		if order.Task.Wallet == nil {
			continue
		}
		if pool.WrapsNative() {
			wsol, err := order.Task.Wallet.WrappedSOLAccount()
			if err != nil {
				return nil, err
			}
			add(wsol)
		}
		ata, err := order.Task.Wallet.GetATA(pool.BaseMint())
		if err != nil {
			return nil, err
		}
		add(ata)
	}
	return out, nil
}
