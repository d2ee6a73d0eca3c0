package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/krazyTry/plasma-go/amm"
	"github.com/krazyTry/plasma-go/client"
	"github.com/krazyTry/plasma-go/decimal_math"
	solanago "github.com/krazyTry/plasma-go/solana"
)

type quoteOutput struct {
	Pool           string          `json:"pool"`
	Slot           uint64          `json:"slot"`
	Side           string          `json:"side"`
	Kind           string          `json:"kind"`
	AmountIn       uint64          `json:"amount_in"`
	AmountOut      uint64          `json:"amount_out"`
	UiAmountIn     decimal.Decimal `json:"ui_amount_in"`
	UiAmountOut    decimal.Decimal `json:"ui_amount_out"`
	Fee            uint64          `json:"fee"`
	ReferencePrice decimal.Decimal `json:"reference_price"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	PriceImpact    decimal.Decimal `json:"price_impact"`
	SlippageBps    uint64          `json:"slippage_bps"`
	// One of the bounds is set, matching Kind.
	MinAmountOut uint64 `json:"min_amount_out,omitempty"`
	MaxAmountIn  uint64 `json:"max_amount_in,omitempty"`
}

func newQuoteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quote <pool>",
		Short: "Price a swap against the current pool state",
		Args:  cobra.ExactArgs(1),
		RunE:  runQuote,
	}
	cmd.Flags().String("side", "buy", "buy (pay quote) or sell (pay base)")
	cmd.Flags().String("amount-in", "", "exact input amount in ui units, e.g. 1.5")
	cmd.Flags().String("amount-out", "", "exact output amount in ui units")
	cmd.Flags().Uint64("slippage-bps", 50, "tolerated slippage in basis points")
	cmd.MarkFlagsMutuallyExclusive("amount-in", "amount-out")
	cmd.MarkFlagsOneRequired("amount-in", "amount-out")
	return cmd
}

func parseSide(s string) (amm.Side, error) {
	switch strings.ToLower(s) {
	case "buy":
		return amm.Buy, nil
	case "sell":
		return amm.Sell, nil
	}
	return 0, fmt.Errorf("side %q is not buy or sell", s)
}

func runQuote(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	address, err := parseKey("pool", args[0])
	if err != nil {
		return err
	}
	sideFlag, _ := cmd.Flags().GetString("side")
	side, err := parseSide(sideFlag)
	if err != nil {
		return err
	}
	slippage, _ := cmd.Flags().GetUint64("slippage-bps")
	kind, flag := amm.ExactIn, "amount-in"
	if cmd.Flags().Changed("amount-out") {
		kind, flag = amm.ExactOut, "amount-out"
	}
	value, _ := cmd.Flags().GetString(flag)
	uiAmount, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("%s: %w", flag, err)
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
	baseDecimals := uint8(pool.Header.Base.Decimals)
	quoteDecimals := uint8(pool.Header.Quote.Decimals)
	inDecimals, outDecimals := quoteDecimals, baseDecimals
	if side == amm.Sell {
		inDecimals, outDecimals = baseDecimals, quoteDecimals
	}

	var swapType amm.SwapType
	if kind == amm.ExactIn {
		amount, err := decimal_math.FromUiAmount(uiAmount, inDecimals)
		if err != nil {
			return fmt.Errorf("%s: %w", flag, err)
		}
		swapType = amm.NewExactIn(amount, 0)
	} else {
		amount, err := decimal_math.FromUiAmount(uiAmount, outDecimals)
		if err != nil {
			return fmt.Errorf("%s: %w", flag, err)
		}
		swapType = amm.NewExactOut(amount, math.MaxUint64)
	}

	slot, err := solanago.CurrentSlot(ctx, c.RPC())
	if err != nil {
		return err
	}
	quote, err := client.QuoteSwap(pool.PoolAccount, slot, side, swapType)
	if err != nil {
		return err
	}

	out := quoteOutput{
		Pool:           address.String(),
		Slot:           quote.Slot,
		Side:           side.String(),
		Kind:           swapType.Kind.String(),
		AmountIn:       quote.AmountIn,
		AmountOut:      quote.AmountOut,
		UiAmountIn:     decimal_math.ToUiAmount(quote.AmountIn, inDecimals),
		UiAmountOut:    decimal_math.ToUiAmount(quote.AmountOut, outDecimals),
		Fee:            quote.Fee,
		ReferencePrice: quote.ReferencePrice,
		ExecutionPrice: quote.ExecutionPrice,
		PriceImpact:    quote.PriceImpact,
		SlippageBps:    slippage,
	}
	if swapType.Kind == amm.ExactIn {
		out.MinAmountOut = client.MinAmountOut(quote.AmountOut, slippage)
	} else {
		out.MaxAmountIn = client.MaxAmountIn(quote.AmountIn, slippage)
	}
	return printJSON(cmd.OutOrStdout(), out)
}
