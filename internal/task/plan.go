// =============================================
// File: internal/task/plan.go
// =============================================
// Package task loads bundle plans: which pool to trade, which wallets buy or
// sell and with what budget, and which opaque instruction groups go first.
package task

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/rovshanmuradov/solana-bundler/internal/bundle"
	"github.com/rovshanmuradov/solana-bundler/internal/dex"
	"github.com/rovshanmuradov/solana-bundler/internal/dex/raydium"
	"github.com/rovshanmuradov/solana-bundler/internal/types"
	"github.com/rovshanmuradov/solana-bundler/internal/wallet"
)

// LamportsPerSOL переводит SOL из плана в лампорты.
const LamportsPerSOL = 1_000_000_000

var lamportsPerSOL = decimal.NewFromInt(LamportsPerSOL)

// Plan is a validated bundle plan with wallets still referenced by name.
type Plan struct {
	Pool      dex.PoolDescriptor
	Direction types.Direction
	TipPayer  string
	Orders    []Order
	Prelude   []PreludeGroup
}

// Order is one wallet's swap within the plan.
type Order struct {
	Wallet            string
	SolBudgetLamports uint64
	DesiredOutput     uint64
	SlippageBps       uint16
}

// PreludeGroup is an ordered block of opaque instruction sets placed before
// the swaps, e.g. token creation or pool migration.
type PreludeGroup struct {
	Name  string
	Steps []PreludeStep
}

// PreludeStep keeps its instructions together in one transaction.
// Signers[0] pays the fee.
type PreludeStep struct {
	Label        string
	Signers      []string
	Instructions []solana.Instruction
}

type rawPlan struct {
	Pool            rawPool    `mapstructure:"pool"`
	Direction       string     `mapstructure:"direction"`
	SlippagePercent string     `mapstructure:"slippage_percent"`
	TipPayer        string     `mapstructure:"tip_payer"`
	Orders          []rawOrder `mapstructure:"orders"`
	Prelude         []rawGroup `mapstructure:"prelude"`
}

type rawPool struct {
	ProgramID    string      `mapstructure:"program_id"`
	Mint         string      `mapstructure:"mint"`
	Creator      string      `mapstructure:"creator"`
	FeeRecipient string      `mapstructure:"fee_recipient"`
	Address      string      `mapstructure:"address"`
	BaseVault    string      `mapstructure:"base_vault"`
	QuoteVault   string      `mapstructure:"quote_vault"`
	Static       *rawStatic  `mapstructure:"static"`
	Raydium      *rawRaydium `mapstructure:"raydium"`
}

type rawStatic struct {
	BaseReserve  uint64 `mapstructure:"base_reserve"`
	QuoteReserve uint64 `mapstructure:"quote_reserve"`
	FeeBps       uint16 `mapstructure:"fee_bps"`
}

type rawRaydium struct {
	AmmID                 string `mapstructure:"amm_id"`
	AmmOpenOrders         string `mapstructure:"amm_open_orders"`
	AmmTargetOrders       string `mapstructure:"amm_target_orders"`
	PoolCoinTokenAccount  string `mapstructure:"pool_coin_token_account"`
	PoolPcTokenAccount    string `mapstructure:"pool_pc_token_account"`
	SerumProgramID        string `mapstructure:"serum_program_id"`
	SerumMarket           string `mapstructure:"serum_market"`
	SerumBids             string `mapstructure:"serum_bids"`
	SerumAsks             string `mapstructure:"serum_asks"`
	SerumEventQueue       string `mapstructure:"serum_event_queue"`
	SerumCoinVaultAccount string `mapstructure:"serum_coin_vault_account"`
	SerumPcVaultAccount   string `mapstructure:"serum_pc_vault_account"`
	SerumVaultSigner      string `mapstructure:"serum_vault_signer"`
}

type rawOrder struct {
	Wallet          string `mapstructure:"wallet"`
	SolBudget       string `mapstructure:"sol_budget"`
	DesiredOutput   uint64 `mapstructure:"desired_output"`
	SlippagePercent string `mapstructure:"slippage_percent"`
}

type rawGroup struct {
	Name  string    `mapstructure:"name"`
	Steps []rawStep `mapstructure:"steps"`
}

type rawStep struct {
	Label        string           `mapstructure:"label"`
	Signers      []string         `mapstructure:"signers"`
	Instructions []rawInstruction `mapstructure:"instructions"`
}

type rawInstruction struct {
	ProgramID string       `mapstructure:"program_id"`
	Data      string       `mapstructure:"data"`
	Accounts  []rawAccount `mapstructure:"accounts"`
}

type rawAccount struct {
	Pubkey   string `mapstructure:"pubkey"`
	Signer   bool   `mapstructure:"signer"`
	Writable bool   `mapstructure:"writable"`
}

// LoadPlan reads a YAML (or any viper-supported) plan file and validates it.
func LoadPlan(path string) (*Plan, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("direction", string(types.DirectionBuy))
	v.SetDefault("slippage_percent", "1")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read plan error: %w", err)
	}

	var raw rawPlan
	if err := v.Unmarshal(&raw); err != nil {
		return nil, fmt.Errorf("unmarshal plan error: %w", err)
	}

	plan, err := raw.toPlan()
	if err != nil {
		return nil, types.NewError(types.KindValidation, "load plan", err)
	}
	return plan, nil
}

func (r *rawPlan) toPlan() (*Plan, error) {
	direction := types.Direction(strings.ToLower(strings.TrimSpace(r.Direction)))
	if direction != types.DirectionBuy && direction != types.DirectionSell {
		return nil, fmt.Errorf("unknown direction %q", r.Direction)
	}

	pool, err := r.Pool.toDescriptor()
	if err != nil {
		return nil, err
	}

	defaultSlippage, err := parseSlippage(r.SlippagePercent)
	if err != nil {
		return nil, err
	}

	if len(r.Orders) == 0 {
		return nil, fmt.Errorf("plan has no orders")
	}
	seen := make(map[string]bool, len(r.Orders))
	orders := make([]Order, 0, len(r.Orders))
	for i, o := range r.Orders {
		name := strings.TrimSpace(o.Wallet)
		if name == "" {
			return nil, fmt.Errorf("order %d: wallet is required", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("order %d: wallet %q appears twice", i, name)
		}
		seen[name] = true

		budget, err := ParseSOL(o.SolBudget)
		if err != nil {
			return nil, fmt.Errorf("order %d (%s): %w", i, name, err)
		}
		if o.DesiredOutput == 0 {
			return nil, fmt.Errorf("order %d (%s): desired_output must be positive", i, name)
		}
		slippage := defaultSlippage
		if o.SlippagePercent != "" {
			if slippage, err = parseSlippage(o.SlippagePercent); err != nil {
				return nil, fmt.Errorf("order %d (%s): %w", i, name, err)
			}
		}
		orders = append(orders, Order{
			Wallet:            name,
			SolBudgetLamports: budget,
			DesiredOutput:     o.DesiredOutput,
			SlippageBps:       slippage,
		})
	}

	prelude := make([]PreludeGroup, 0, len(r.Prelude))
	for i, g := range r.Prelude {
		group, err := g.toGroup()
		if err != nil {
			return nil, fmt.Errorf("prelude %d: %w", i, err)
		}
		prelude = append(prelude, group)
	}

	return &Plan{
		Pool:      pool,
		Direction: direction,
		TipPayer:  strings.TrimSpace(r.TipPayer),
		Orders:    orders,
		Prelude:   prelude,
	}, nil
}

// ParseSOL converts a decimal SOL amount ("0.25") to lamports. Fractions
// below one lamport are rejected rather than rounded.
func ParseSOL(amount string) (uint64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, fmt.Errorf("invalid SOL amount %q: %w", amount, err)
	}
	lamports := d.Mul(lamportsPerSOL)
	if !lamports.IsInteger() {
		return 0, fmt.Errorf("SOL amount %s has more than 9 decimals", d)
	}
	if !lamports.IsPositive() {
		return 0, fmt.Errorf("SOL amount must be positive, got %s", d)
	}
	if !lamports.BigInt().IsUint64() {
		return 0, fmt.Errorf("SOL amount %s overflows", d)
	}
	return lamports.BigInt().Uint64(), nil
}

func parseSlippage(percent string) (uint16, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(percent))
	if err != nil {
		return 0, fmt.Errorf("invalid slippage %q: %w", percent, err)
	}
	return types.PercentToBps(d.InexactFloat64())
}

// keyParser collects the first decoding error so descriptors read linearly.
type keyParser struct {
	err error
}

func (p *keyParser) key(field, value string, required bool) solana.PublicKey {
	if p.err != nil {
		return solana.PublicKey{}
	}
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			p.err = fmt.Errorf("%s is required", field)
		}
		return solana.PublicKey{}
	}
	key, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", field, err)
	}
	return key
}

func (r rawPool) toDescriptor() (dex.PoolDescriptor, error) {
	var p keyParser
	desc := dex.PoolDescriptor{
		ProgramID:    p.key("pool.program_id", r.ProgramID, true),
		Mint:         p.key("pool.mint", r.Mint, true),
		Creator:      p.key("pool.creator", r.Creator, false),
		FeeRecipient: p.key("pool.fee_recipient", r.FeeRecipient, false),
		Address:      p.key("pool.address", r.Address, false),
		BaseVault:    p.key("pool.base_vault", r.BaseVault, false),
		QuoteVault:   p.key("pool.quote_vault", r.QuoteVault, false),
	}
	if r.Raydium != nil {
		k := r.Raydium
		desc.Raydium = &raydium.PoolKeys{
			AmmID:                 p.key("raydium.amm_id", k.AmmID, true),
			AmmOpenOrders:         p.key("raydium.amm_open_orders", k.AmmOpenOrders, true),
			AmmTargetOrders:       p.key("raydium.amm_target_orders", k.AmmTargetOrders, true),
			PoolCoinTokenAccount:  p.key("raydium.pool_coin_token_account", k.PoolCoinTokenAccount, true),
			PoolPcTokenAccount:    p.key("raydium.pool_pc_token_account", k.PoolPcTokenAccount, true),
			SerumProgramID:        p.key("raydium.serum_program_id", k.SerumProgramID, true),
			SerumMarket:           p.key("raydium.serum_market", k.SerumMarket, true),
			SerumBids:             p.key("raydium.serum_bids", k.SerumBids, true),
			SerumAsks:             p.key("raydium.serum_asks", k.SerumAsks, true),
			SerumEventQueue:       p.key("raydium.serum_event_queue", k.SerumEventQueue, true),
			SerumCoinVaultAccount: p.key("raydium.serum_coin_vault_account", k.SerumCoinVaultAccount, true),
			SerumPcVaultAccount:   p.key("raydium.serum_pc_vault_account", k.SerumPcVaultAccount, true),
			SerumVaultSigner:      p.key("raydium.serum_vault_signer", k.SerumVaultSigner, true),
		}
		desc.Raydium.CoinMint = desc.Mint
	}
	if p.err != nil {
		return dex.PoolDescriptor{}, p.err
	}
	if !dex.IsSupportedProgram(desc.ProgramID) {
		return dex.PoolDescriptor{}, fmt.Errorf("%w: %s", types.ErrUnknownProgramVariant, desc.ProgramID)
	}
	if r.Static != nil {
		desc.Static = &dex.StaticReserves{
			Base:   r.Static.BaseReserve,
			Quote:  r.Static.QuoteReserve,
			FeeBps: r.Static.FeeBps,
		}
	}
	return desc, nil
}

func (g rawGroup) toGroup() (PreludeGroup, error) {
	if len(g.Steps) == 0 {
		return PreludeGroup{}, fmt.Errorf("group %q has no steps", g.Name)
	}
	group := PreludeGroup{Name: g.Name}
	for i, s := range g.Steps {
		if len(s.Signers) == 0 {
			return PreludeGroup{}, fmt.Errorf("step %d: at least one signer is required", i)
		}
		if len(s.Instructions) == 0 {
			return PreludeGroup{}, fmt.Errorf("step %d: no instructions", i)
		}
		step := PreludeStep{Label: s.Label, Signers: s.Signers}
		if step.Label == "" {
			step.Label = fmt.Sprintf("%s/%d", g.Name, i)
		}
		for j, ix := range s.Instructions {
			decoded, err := ix.decode()
			if err != nil {
				return PreludeGroup{}, fmt.Errorf("step %d instruction %d: %w", i, j, err)
			}
			step.Instructions = append(step.Instructions, decoded)
		}
		group.Steps = append(group.Steps, step)
	}
	return group, nil
}

func (r rawInstruction) decode() (solana.Instruction, error) {
	var p keyParser
	program := p.key("program_id", r.ProgramID, true)
	accounts := make(solana.AccountMetaSlice, 0, len(r.Accounts))
	for i, a := range r.Accounts {
		key := p.key(fmt.Sprintf("accounts[%d]", i), a.Pubkey, true)
		accounts = append(accounts, solana.NewAccountMeta(key, a.Writable, a.Signer))
	}
	if p.err != nil {
		return nil, p.err
	}

	var data []byte
	if r.Data != "" {
		var err error
		if data, err = base58.Decode(r.Data); err != nil {
			return nil, fmt.Errorf("data is not base58: %w", err)
		}
	}
	return solana.NewInstruction(program, accounts, data), nil
}

// Resolved is a plan bound to concrete signers.
type Resolved struct {
	Orders   []bundle.WalletOrder
	Prelude  []bundle.Group
	TipPayer *wallet.Wallet
}

// Resolve binds wallet names to loaded keys. Prelude instruction sets carry
// budget so the packer emits one compute-budget pair for them as well.
// A missing tip_payer falls back to the first order's wallet.
func (p *Plan) Resolve(wallets map[string]*wallet.Wallet, budget types.ComputeBudget) (*Resolved, error) {
	lookup := func(name string) (*wallet.Wallet, error) {
		w, ok := wallets[name]
		if !ok {
			return nil, types.NewError(types.KindValidation, "resolve plan", fmt.Errorf("unknown wallet %q", name))
		}
		return w, nil
	}

	out := &Resolved{}
	for _, o := range p.Orders {
		w, err := lookup(o.Wallet)
		if err != nil {
			return nil, err
		}
		out.Orders = append(out.Orders, bundle.WalletOrder{
			Task: types.WalletTask{Wallet: w, SolBudgetLamports: o.SolBudgetLamports},
			Intent: types.SwapIntent{
				Direction:           p.Direction,
				DesiredOutputAmount: o.DesiredOutput,
				SlippageBps:         o.SlippageBps,
			},
		})
	}

	for _, g := range p.Prelude {
		group := bundle.Group{Name: g.Name}
		for _, s := range g.Steps {
			set := bundle.InstructionSet{
				Label:        s.Label,
				Instructions: s.Instructions,
				Budget:       budget,
			}
			signers := make(map[solana.PublicKey]bool, len(s.Signers))
			for _, name := range s.Signers {
				w, err := lookup(name)
				if err != nil {
					return nil, err
				}
				set.Signers = append(set.Signers, w)
				signers[w.PublicKey] = true
			}
			if err := checkSigners(s, signers); err != nil {
				return nil, err
			}
			group.Sets = append(group.Sets, set)
		}
		out.Prelude = append(out.Prelude, group)
	}

	if p.TipPayer != "" {
		w, err := lookup(p.TipPayer)
		if err != nil {
			return nil, err
		}
		out.TipPayer = w
	} else if len(out.Orders) > 0 {
		out.TipPayer = out.Orders[0].Task.Wallet
	}
	return out, nil
}

// checkSigners ensures every account flagged as signer has a key in the step.
func checkSigners(s PreludeStep, signers map[solana.PublicKey]bool) error {
	for _, ix := range s.Instructions {
		accounts := ix.Accounts()
		for _, meta := range accounts {
			if meta.IsSigner && !signers[meta.PublicKey] {
				return types.NewError(types.KindValidation, "resolve plan",
					fmt.Errorf("step %q: account %s must sign but no wallet holds its key", s.Label, meta.PublicKey))
			}
		}
	}
	return nil
}
