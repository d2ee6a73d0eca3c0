package main

import (
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/krazyTry/plasma-go/client"
	solanago "github.com/krazyTry/plasma-go/solana"
)

type poolOutput struct {
	Address          string          `json:"address"`
	BaseMint         string          `json:"base_mint"`
	QuoteMint        string          `json:"quote_mint"`
	SequenceNumber   uint64          `json:"sequence_number"`
	FeeInBps         uint32          `json:"fee_in_bps"`
	ProtocolFeeInPct uint32          `json:"protocol_fee_in_pct"`
	BaseReserves     uint64          `json:"base_reserves"`
	QuoteReserves    uint64          `json:"quote_reserves"`
	SlotSnapshot     uint64          `json:"slot_snapshot"`
	TotalLpShares    uint64          `json:"total_lp_shares"`
	Price            decimal.Decimal `json:"price"`
	SnapshotPrice    decimal.Decimal `json:"snapshot_price"`
	BaseVault        uint64          `json:"base_vault"`
	QuoteVault       uint64          `json:"quote_vault"`
	LpFees           uint64          `json:"cumulative_lp_fees"`
	ProtocolFees     uint64          `json:"cumulative_protocol_fees"`
	UnclaimedFees    uint64          `json:"unclaimed_protocol_fees"`
}

func newPoolCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pool <address>",
		Short: "Show a pool's reserves, prices and fee balances",
		Args:  cobra.ExactArgs(1),
		RunE:  runPool,
	}
}

func runPool(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	address, err := parseKey("pool", args[0])
	if err != nil {
		return err
	}
	c, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	pool, err := c.GetPool(ctx, address)
	if err != nil {
		return err
	}
	baseVault, quoteVault, err := c.VaultBalances(ctx, pool)
	if err != nil {
		return err
	}
	unclaimed, err := c.UnclaimedFees(ctx, pool)
	if err != nil {
		return err
	}
	logger.Debug("pool loaded", zap.String("pool", address.String()), zap.Uint64("sequence", pool.Header.SequenceNumber))

	return printJSON(cmd.OutOrStdout(), poolOutput{
		Address:          address.String(),
		BaseMint:         pool.Header.Base.Mint.String(),
		QuoteMint:        pool.Header.Quote.Mint.String(),
		SequenceNumber:   pool.Header.SequenceNumber,
		FeeInBps:         pool.Amm.FeeInBps,
		ProtocolFeeInPct: pool.Amm.ProtocolAllocationInPct,
		BaseReserves:     pool.Amm.BaseReserves,
		QuoteReserves:    pool.Amm.QuoteReserves,
		SlotSnapshot:     pool.Amm.SlotSnapshot,
		TotalLpShares:    pool.Amm.TotalLpShares,
		Price:            pool.Price(),
		SnapshotPrice:    pool.SnapshotPrice(),
		BaseVault:        baseVault,
		QuoteVault:       quoteVault,
		LpFees:           pool.Amm.CumulativeQuoteLpFees,
		ProtocolFees:     pool.Amm.CumulativeQuoteProtocolFees,
		UnclaimedFees:    unclaimed,
	})
}

func newPositionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "position <pool> [owner]",
		Short: "Summarize one LP position, or every position of a pool",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runPosition,
	}
}

func runPosition(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	address, err := parseKey("pool", args[0])
	if err != nil {
		return err
	}
	c, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	pool, err := c.GetPool(ctx, address)
	if err != nil {
		return err
	}

	if len(args) == 1 {
		summaries, err := c.SummarizePool(ctx, pool)
		if err != nil {
			return err
		}
		out := make(map[string]client.PositionSummary, len(summaries))
		for owner, summary := range summaries {
			out[owner.String()] = summary
		}
		return printJSON(cmd.OutOrStdout(), out)
	}

	owner, err := parseKey("owner", args[1])
	if err != nil {
		return err
	}
	position, err := c.GetLpPosition(ctx, address, owner)
	if err != nil {
		return err
	}
	slot, err := solanago.CurrentSlot(ctx, c.RPC())
	if err != nil {
		return err
	}
	summary, err := client.Summarize(pool.PoolAccount, position.LpPositionAccount, slot)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), summary)
}
