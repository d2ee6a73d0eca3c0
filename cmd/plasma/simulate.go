package main

import (
	"context"
	"fmt"

	solanago "github.com/gagliardetto/solana-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krazyTry/plasma-go/amm"
	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	"github.com/krazyTry/plasma-go/program"
)

// sandwichParams describes a front-run, victim, back-run sequence against a
// freshly seeded pool.
type sandwichParams struct {
	BaseReserves  uint64
	QuoteReserves uint64
	FeeInBps      uint64
	ProtocolPct   uint64
	FrontRun      uint64
	Victim        uint64
	// BackrunSlots is the delay between the victim and the back-run.
	BackrunSlots uint64
}

type sandwichResult struct {
	BackrunSlots uint64 `json:"backrun_slots"`
	SameWindow   bool   `json:"same_window"`
	FrontRunSlot uint64 `json:"front_run_slot"`
	BackrunSlot  uint64 `json:"backrun_slot"`
	VictimBase   uint64 `json:"victim_base_received"`
	AttackerIn   uint64 `json:"attacker_quote_in"`
	AttackerOut  uint64 `json:"attacker_quote_out"`
	Profit       int64  `json:"attacker_profit"`
	ProtocolFees uint64 `json:"protocol_fees"`
	LpFees       uint64 `json:"lp_fees"`
}

type sandbox struct {
	ledger    *program.Ledger
	runtime   *program.Runtime
	pool      solanago.PublicKey
	baseMint  solanago.PublicKey
	quoteMint solanago.PublicKey
}

type wallet struct {
	owner solanago.PublicKey
	base  solanago.PublicKey
	quote solanago.PublicKey
}

func newSandbox(logger *zap.Logger, feeInBps, protocolPct uint64) (*sandbox, error) {
	s := &sandbox{
		ledger:    program.NewLedger(1_000, 1_700_000_000),
		pool:      solanago.NewWallet().PublicKey(),
		baseMint:  solanago.NewWallet().PublicKey(),
		quoteMint: solanago.NewWallet().PublicKey(),
	}
	s.runtime = program.NewRuntime(s.ledger, program.WithLogger(logger))
	if err := s.ledger.CreateMint(s.baseMint, 9); err != nil {
		return nil, err
	}
	if err := s.ledger.CreateMint(s.quoteMint, 6); err != nil {
		return nil, err
	}
	if err := s.ledger.CreateAccount(s.pool, plasma.ProgramID, plasma.PoolAccountSize); err != nil {
		return nil, err
	}

	creator := solanago.NewWallet().PublicKey()
	var recipients [plasma.MaxFeeRecipients]plasma.ProtocolFeeRecipientParams
	for i := range recipients {
		recipients[i] = plasma.ProtocolFeeRecipientParams{Recipient: solanago.NewWallet().PublicKey(), Shares: 1}
	}
	ix, err := plasma.NewInitializePoolInstruction(plasma.InitializePoolParams{
		LpFeeInBps:                   feeInBps,
		ProtocolLpFeeAllocationInPct: protocolPct,
		FeeRecipients:                recipients,
	}, s.pool, creator, s.baseMint, s.quoteMint)
	if err != nil {
		return nil, err
	}
	if _, err := s.send(creator, ix); err != nil {
		return nil, fmt.Errorf("initialize pool: %w", err)
	}
	return s, nil
}

func (s *sandbox) send(signer solanago.PublicKey, ixs ...solanago.Instruction) (*program.Receipt, error) {
	return s.runtime.Send(context.Background(), []solanago.PublicKey{signer}, ixs...)
}

func (s *sandbox) newWallet(base, quote uint64) (wallet, error) {
	w := wallet{
		owner: solanago.NewWallet().PublicKey(),
		base:  solanago.NewWallet().PublicKey(),
		quote: solanago.NewWallet().PublicKey(),
	}
	if err := s.ledger.CreateTokenAccount(w.base, s.baseMint, w.owner, base); err != nil {
		return wallet{}, err
	}
	if err := s.ledger.CreateTokenAccount(w.quote, s.quoteMint, w.owner, quote); err != nil {
		return wallet{}, err
	}
	return w, nil
}

func (s *sandbox) vaults(w wallet) (plasma.VaultAccounts, error) {
	baseVault, _, err := plasma.DeriveVaultPDA(s.pool, s.baseMint)
	if err != nil {
		return plasma.VaultAccounts{}, err
	}
	quoteVault, _, err := plasma.DeriveVaultPDA(s.pool, s.quoteMint)
	if err != nil {
		return plasma.VaultAccounts{}, err
	}
	return plasma.VaultAccounts{
		BaseAccount:  w.base,
		QuoteAccount: w.quote,
		BaseVault:    baseVault,
		QuoteVault:   quoteVault,
	}, nil
}

// seed deposits the whole balance of a new wallet as the first liquidity.
func (s *sandbox) seed(base, quote uint64) error {
	lp, err := s.newWallet(base, quote)
	if err != nil {
		return err
	}
	open, err := plasma.NewInitializeLpPositionInstruction(s.pool, lp.owner, lp.owner)
	if err != nil {
		return err
	}
	vaults, err := s.vaults(lp)
	if err != nil {
		return err
	}
	shares := amm.GeometricMeanShares(base, quote)
	add, err := plasma.NewAddLiquidityInstruction(plasma.AddLiquidityParams{
		DesiredBaseAmountIn:  base,
		DesiredQuoteAmountIn: quote,
		InitialLpShares:      &shares,
	}, s.pool, lp.owner, vaults)
	if err != nil {
		return err
	}
	if _, err := s.send(lp.owner, open, add); err != nil {
		return fmt.Errorf("seed liquidity: %w", err)
	}
	return nil
}

func (s *sandbox) swap(w wallet, side amm.Side, amountIn uint64) (uint64, error) {
	vaults, err := s.vaults(w)
	if err != nil {
		return 0, err
	}
	ix, err := plasma.NewSwapInstruction(plasma.SwapParams{Side: side, SwapType: amm.NewExactIn(amountIn, 0)}, s.pool, w.owner, vaults)
	if err != nil {
		return 0, err
	}
	receipt, err := s.send(w.owner, ix)
	if err != nil {
		return 0, fmt.Errorf("%s %d: %w", side, amountIn, err)
	}
	_, out, err := program.DecodeSwapReturnData(receipt.ReturnData)
	return out, err
}

func (s *sandbox) poolAccount() (*plasma.PoolAccount, error) {
	a, ok := s.ledger.Account(s.pool)
	if !ok {
		return nil, fmt.Errorf("pool %s not found", s.pool)
	}
	return plasma.DecodePoolAccount(a.Data)
}

// runSandwich seeds a pool, moves to the start of a snapshot window, then
// has an attacker buy ahead of a victim and sell BackrunSlots later.
func runSandwich(logger *zap.Logger, p sandwichParams) (sandwichResult, error) {
	s, err := newSandbox(logger, p.FeeInBps, p.ProtocolPct)
	if err != nil {
		return sandwichResult{}, err
	}
	if err := s.seed(p.BaseReserves, p.QuoteReserves); err != nil {
		return sandwichResult{}, err
	}
	attacker, err := s.newWallet(0, p.FrontRun)
	if err != nil {
		return sandwichResult{}, err
	}
	victim, err := s.newWallet(0, p.Victim)
	if err != nil {
		return sandwichResult{}, err
	}

	slot, _ := s.ledger.Clock()
	s.ledger.Warp(amm.WindowStart(slot) + amm.LeaderSlotWindow - slot)
	frontSlot, _ := s.ledger.Clock()
	baseOut, err := s.swap(attacker, amm.Buy, p.FrontRun)
	if err != nil {
		return sandwichResult{}, err
	}

	s.ledger.Warp(1)
	victimBase, err := s.swap(victim, amm.Buy, p.Victim)
	if err != nil {
		return sandwichResult{}, err
	}

	s.ledger.Warp(p.BackrunSlots)
	backSlot, _ := s.ledger.Clock()
	quoteOut, err := s.swap(attacker, amm.Sell, baseOut)
	if err != nil {
		return sandwichResult{}, err
	}

	pool, err := s.poolAccount()
	if err != nil {
		return sandwichResult{}, err
	}
	return sandwichResult{
		BackrunSlots: p.BackrunSlots,
		SameWindow:   amm.WindowStart(frontSlot) == amm.WindowStart(backSlot),
		FrontRunSlot: frontSlot,
		BackrunSlot:  backSlot,
		VictimBase:   victimBase,
		AttackerIn:   p.FrontRun,
		AttackerOut:  quoteOut,
		Profit:       int64(quoteOut) - int64(p.FrontRun),
		ProtocolFees: pool.Amm.CumulativeQuoteProtocolFees,
		LpFees:       pool.Amm.CumulativeQuoteLpFees,
	}, nil
}

func newSimulateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay sandwich attacks against an in-memory pool",
		Long: "simulate seeds a pool on an in-memory ledger and runs a buy sandwich around a victim " +
			"for each back-run delay, reporting what the attacker made.",
		Args: cobra.NoArgs,
		RunE: runSimulate,
	}
	cmd.Flags().Uint64("base-reserves", 279_900_000_000_000, "initial base liquidity")
	cmd.Flags().Uint64("quote-reserves", 100_000_000_000, "initial quote liquidity")
	cmd.Flags().Uint64("fee-bps", 25, "LP fee in basis points")
	cmd.Flags().Uint64("protocol-pct", 10, "share of the fee allocated to the protocol")
	cmd.Flags().Uint64("front-run", 2_000_000_000, "quote the attacker spends ahead of the victim")
	cmd.Flags().Uint64("victim", 1_000_000_000, "quote the victim spends")
	cmd.Flags().UintSlice("backrun-slots", []uint{1, 3}, "slots between the victim and the back-run")
	return cmd
}

func runSimulate(cmd *cobra.Command, _ []string) error {
	level, _ := cmd.Flags().GetString("log-level")
	logger, err := newLogger(level)
	if err != nil {
		return err
	}
	defer logger.Sync()

	flags := cmd.Flags()
	p := sandwichParams{}
	for name, dst := range map[string]*uint64{
		"base-reserves":  &p.BaseReserves,
		"quote-reserves": &p.QuoteReserves,
		"fee-bps":        &p.FeeInBps,
		"protocol-pct":   &p.ProtocolPct,
		"front-run":      &p.FrontRun,
		"victim":         &p.Victim,
	} {
		if *dst, err = flags.GetUint64(name); err != nil {
			return err
		}
	}
	delays, err := flags.GetUintSlice("backrun-slots")
	if err != nil {
		return err
	}

	results := make([]sandwichResult, 0, len(delays))
	for _, delay := range delays {
		p.BackrunSlots = uint64(delay)
		result, err := runSandwich(logger, p)
		if err != nil {
			return fmt.Errorf("backrun after %d slots: %w", delay, err)
		}
		results = append(results, result)
	}
	return printJSON(cmd.OutOrStdout(), results)
}
