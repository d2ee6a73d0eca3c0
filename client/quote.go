package client

import (
	"context"
	"fmt"
	"math"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/krazyTry/plasma-go/amm"
	"github.com/krazyTry/plasma-go/decimal_math"
	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	solanago "github.com/krazyTry/plasma-go/solana"
	"github.com/krazyTry/plasma-go/u128"
)

// SwapQuote prices a swap against a pool without changing it.
type SwapQuote struct {
	Slot      uint64
	Result    amm.SwapResult
	AmountIn  uint64
	AmountOut uint64
	Fee       uint64
	// ReferencePrice is the price the window of Slot anchors to.
	ReferencePrice decimal.Decimal
	ExecutionPrice decimal.Decimal
	// PriceImpact is the relative distance between execution and reference price.
	PriceImpact decimal.Decimal
}

// QuoteSwap simulates a swap on a copy of pool at slot.
func QuoteSwap(pool *plasma.PoolAccount, slot uint64, side amm.Side, swapType amm.SwapType) (*SwapQuote, error) {
	result, err := pool.Amm.Simulate(slot, side, swapType)
	if err != nil {
		return nil, err
	}
	baseDecimals := uint8(pool.Header.Base.Decimals)
	quoteDecimals := uint8(pool.Header.Quote.Decimals)

	refBase, refQuote := pool.Amm.ReferenceReserves(slot)
	quote := &SwapQuote{
		Slot:           slot,
		Result:         result,
		AmountIn:       result.DepositAmount(),
		AmountOut:      result.WithdrawAmount(),
		Fee:            result.FeeInQuote,
		ReferencePrice: decimal_math.Price(refBase, refQuote, baseDecimals, quoteDecimals),
		ExecutionPrice: decimal_math.Price(result.BaseAmountToTransfer, result.QuoteAmountToTransfer, baseDecimals, quoteDecimals),
	}
	if !quote.ReferencePrice.IsZero() && !result.IsEmpty() {
		quote.PriceImpact = quote.ExecutionPrice.Sub(quote.ReferencePrice).Abs().Div(quote.ReferencePrice)
	}
	return quote, nil
}

// MinAmountOut lowers amount by slippageBps, rounding down.
func MinAmountOut(amount, slippageBps uint64) uint64 {
	if slippageBps >= amm.BasisPointMax {
		return 0
	}
	return u128.MulDiv(u128.From(amount), u128.From(amm.BasisPointMax-slippageBps), u128.From(amm.BasisPointMax)).Uint64()
}

// MaxAmountIn raises amount by slippageBps, rounding up so any nonzero
// slippage tolerates at least one more unit, and saturates at u64 max.
func MaxAmountIn(amount, slippageBps uint64) uint64 {
	raised := u128.CeilDiv(
		u128.Mul(amount, amm.BasisPointMax+slippageBps),
		u128.From(amm.BasisPointMax),
	)
	if !u128.FitsU64(raised) {
		return math.MaxUint64
	}
	return raised.Uint64()
}

// Quote fetches the pool and prices the swap at the current slot.
func (c *Client) Quote(ctx context.Context, poolAddress solana.PublicKey, side amm.Side, swapType amm.SwapType) (*SwapQuote, error) {
	pool, err := c.GetPool(ctx, poolAddress)
	if err != nil {
		return nil, err
	}
	slot, err := solanago.CurrentSlot(ctx, c.rpcClient)
	if err != nil {
		return nil, err
	}
	quote, err := QuoteSwap(pool.PoolAccount, slot, side, swapType)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("quote",
		zap.Stringer("pool", poolAddress),
		zap.Stringer("side", side),
		zap.Uint64("slot", slot),
		zap.Uint64("in", quote.AmountIn),
		zap.Uint64("out", quote.AmountOut),
		zap.Uint64("fee", quote.Fee),
	)
	return quote, nil
}

// SimulateSwap runs the swap through the cluster's simulator and returns
// the swap event the program would emit.
func (c *Client) SimulateSwap(
	ctx context.Context,
	owner solana.PublicKey,
	pool *Pool,
	side amm.Side,
	swapType amm.SwapType,
) (*plasma.SwapEvent, error) {
	instructions, err := SwapInstruction(ctx, c.rpcClient, owner, owner, pool, side, swapType)
	if err != nil {
		return nil, err
	}
	logs, err := solanago.SimulateTransaction(ctx, c.rpcClient, instructions, owner)
	if err != nil {
		return nil, err
	}
	events, err := plasma.ParseLogs(logs)
	if err != nil {
		return nil, err
	}
	for _, event := range events {
		if swap, ok := event.Payload.(*plasma.SwapEvent); ok {
			return swap, nil
		}
	}
	return nil, fmt.Errorf("simulation of swap on %s emitted no swap event", pool.Address)
}
