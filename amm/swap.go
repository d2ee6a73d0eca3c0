package amm

import (
	"fmt"
	"math/big"

	"github.com/krazyTry/plasma-go/u128"
)

// Side is the direction of a swap from the trader's point of view.
type Side uint8

const (
	// Buy pays quote and receives base.
	Buy Side = iota
	// Sell pays base and receives quote.
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "Buy"
	case Sell:
		return "Sell"
	}
	return fmt.Sprintf("Side(%d)", uint8(s))
}

type SwapKind uint8

const (
	ExactIn SwapKind = iota
	ExactOut
)

func (k SwapKind) String() string {
	switch k {
	case ExactIn:
		return "ExactIn"
	case ExactOut:
		return "ExactOut"
	}
	return fmt.Sprintf("SwapKind(%d)", uint8(k))
}

// SwapType fixes one side of the trade and bounds the other.
// AmountIn and MinAmountOut are read for ExactIn, AmountOut and MaxAmountIn for ExactOut.
type SwapType struct {
	Kind         SwapKind
	AmountIn     uint64
	MinAmountOut uint64
	AmountOut    uint64
	MaxAmountIn  uint64
}

func NewExactIn(amountIn, minAmountOut uint64) SwapType {
	return SwapType{Kind: ExactIn, AmountIn: amountIn, MinAmountOut: minAmountOut}
}

func NewExactOut(amountOut, maxAmountIn uint64) SwapType {
	return SwapType{Kind: ExactOut, AmountOut: amountOut, MaxAmountIn: maxAmountIn}
}

func (s SwapType) checkSlippage(r SwapResult) error {
	switch s.Kind {
	case ExactIn:
		if out := r.WithdrawAmount(); out < s.MinAmountOut {
			return fmt.Errorf("%w: received %d, minimum %d", ErrSlippageExceeded, out, s.MinAmountOut)
		}
	case ExactOut:
		if in := r.DepositAmount(); in > s.MaxAmountIn {
			return fmt.Errorf("%w: paid %d, maximum %d", ErrSlippageExceeded, in, s.MaxAmountIn)
		}
	}
	return nil
}

// SwapResult describes a filled swap. The matched amounts split the fill
// between the virtual limit order and the curve.
type SwapResult struct {
	Side                     Side
	BaseAmountToTransfer     uint64
	QuoteAmountToTransfer    uint64
	BaseMatchedAsLimitOrder  uint64
	QuoteMatchedAsLimitOrder uint64
	BaseMatchedAsSwap        uint64
	QuoteMatchedAsSwap       uint64
	FeeInQuote               uint64
}

// DepositAmount is what the trader pays into the pool.
func (r SwapResult) DepositAmount() uint64 {
	if r.Side == Buy {
		return r.QuoteAmountToTransfer
	}
	return r.BaseAmountToTransfer
}

// WithdrawAmount is what the trader receives.
func (r SwapResult) WithdrawAmount() uint64 {
	if r.Side == Buy {
		return r.BaseAmountToTransfer
	}
	return r.QuoteAmountToTransfer
}

func (r SwapResult) IsEmpty() bool {
	return r.BaseAmountToTransfer == 0 && r.QuoteAmountToTransfer == 0
}

// Swap executes a trade at slot. On any error the pool is left untouched.
func (a *Amm) Swap(slot uint64, side Side, swapType SwapType) (SwapResult, error) {
	if a.TotalLpShares == 0 {
		return SwapResult{}, ErrNoLiquidity
	}
	next := *a
	next.MaybeUpdateSnapshot(slot)

	var (
		result SwapResult
		err    error
	)
	switch side {
	case Buy:
		switch swapType.Kind {
		case ExactIn:
			result, err = next.buyExactIn(swapType.AmountIn)
		case ExactOut:
			result, err = next.buyExactOut(swapType.AmountOut)
		default:
			return SwapResult{}, ErrInvalidSwapType
		}
	case Sell:
		switch swapType.Kind {
		case ExactIn:
			result, err = next.sellExactIn(swapType.AmountIn)
		case ExactOut:
			result, err = next.sellExactOut(swapType.AmountOut)
		default:
			return SwapResult{}, ErrInvalidSwapType
		}
	default:
		return SwapResult{}, ErrInvalidSide
	}
	if err != nil {
		return SwapResult{}, err
	}
	if err := swapType.checkSlippage(result); err != nil {
		return SwapResult{}, err
	}
	*a = next
	return result, nil
}

// Simulate prices a swap without changing the pool.
func (a Amm) Simulate(slot uint64, side Side, swapType SwapType) (SwapResult, error) {
	return a.Swap(slot, side, swapType)
}

// SimulateBuyExactIn quotes the base received for quoteIn, ignoring slippage.
func (a Amm) SimulateBuyExactIn(slot, quoteIn uint64) (SwapResult, error) {
	return a.Simulate(slot, Buy, NewExactIn(quoteIn, 0))
}

// SimulateSellExactIn quotes the quote received for baseIn, ignoring slippage.
func (a Amm) SimulateSellExactIn(slot, baseIn uint64) (SwapResult, error) {
	return a.Simulate(slot, Sell, NewExactIn(baseIn, 0))
}

type fills struct {
	baseLimit  *big.Int
	quoteLimit *big.Int
	baseSwap   *big.Int
	quoteSwap  *big.Int
}

func (f fills) base() *big.Int {
	return new(big.Int).Add(f.baseLimit, f.baseSwap)
}

func (f fills) quote() *big.Int {
	return new(big.Int).Add(f.quoteLimit, f.quoteSwap)
}

func (a *Amm) settle(side Side, base, quote *big.Int, f fills, fee *big.Int, kStart *big.Int) (SwapResult, error) {
	var r SwapResult
	r.Side = side
	for _, v := range []struct {
		dst *uint64
		src *big.Int
	}{
		{&r.BaseAmountToTransfer, base},
		{&r.QuoteAmountToTransfer, quote},
		{&r.BaseMatchedAsLimitOrder, f.baseLimit},
		{&r.QuoteMatchedAsLimitOrder, f.quoteLimit},
		{&r.BaseMatchedAsSwap, f.baseSwap},
		{&r.QuoteMatchedAsSwap, f.quoteSwap},
		{&r.FeeInQuote, fee},
	} {
		n, err := u128.Downcast(v.src)
		if err != nil {
			return SwapResult{}, err
		}
		*v.dst = n
	}

	if kEnd := a.k(); kEnd.Cmp(kStart) < 0 {
		return SwapResult{}, fmt.Errorf("%w: %s -> %s", ErrInvariantViolation, kStart, kEnd)
	}
	if base.Cmp(f.base()) != 0 {
		return SwapResult{}, fmt.Errorf("%w: base %s != %s", ErrSwapAmountMismatch, base, f.base())
	}

	fees, err := a.splitFee(r.FeeInQuote)
	if err != nil {
		return SwapResult{}, err
	}
	if err := a.applyFees(fees); err != nil {
		return SwapResult{}, err
	}
	return r, nil
}

func (a *Amm) buyExactIn(quoteIn uint64) (SwapResult, error) {
	if quoteIn == 0 {
		return SwapResult{Side: Buy}, nil
	}
	in := u128.From(quoteIn)
	fee := a.feeRoundedDown(in)
	postFee := new(big.Int).Sub(in, fee)
	kStart := a.k()

	ask := a.limitOrderSize(Buy)
	var f fills
	if ask.sizeInQuote.Cmp(postFee) >= 0 {
		f = fills{
			baseLimit:  a.complementarySize(postFee, Buy, tokenQuote),
			quoteLimit: postFee,
			baseSwap:   new(big.Int),
			quoteSwap:  new(big.Int),
		}
		if err := a.applyBuy(f.quoteLimit, f.baseLimit); err != nil {
			return SwapResult{}, err
		}
	} else {
		f.baseLimit, f.quoteLimit = ask.sizeInBase, ask.sizeInQuote
		if err := a.applyBuy(f.quoteLimit, f.baseLimit); err != nil {
			return SwapResult{}, err
		}
		f.quoteSwap = new(big.Int).Sub(postFee, ask.sizeInQuote)
		f.baseSwap = a.baseOutFromQuoteIn(f.quoteSwap)
		if err := a.applyBuy(f.quoteSwap, f.baseSwap); err != nil {
			return SwapResult{}, err
		}
	}

	if got := new(big.Int).Add(f.quote(), fee); got.Cmp(in) != 0 {
		return SwapResult{}, fmt.Errorf("%w: quote %s != %s", ErrSwapAmountMismatch, in, got)
	}
	return a.settle(Buy, f.base(), in, f, fee, kStart)
}

func (a *Amm) buyExactOut(baseOut uint64) (SwapResult, error) {
	if a.BaseReserves < baseOut {
		return SwapResult{}, fmt.Errorf("%w: base out %d, reserves %d", ErrSwapExactOutTooLarge, baseOut, a.BaseReserves)
	}
	if baseOut == 0 {
		return SwapResult{Side: Buy}, nil
	}
	out := u128.From(baseOut)
	kStart := a.k()

	ask := a.limitOrderSize(Buy)
	var f fills
	if ask.sizeInBase.Cmp(out) >= 0 {
		quote := a.complementarySize(out, Buy, tokenBase)
		f = fills{
			baseLimit:  out,
			quoteLimit: quote.Add(quote, one),
			baseSwap:   new(big.Int),
			quoteSwap:  new(big.Int),
		}
		if err := a.applyBuy(f.quoteLimit, f.baseLimit); err != nil {
			return SwapResult{}, err
		}
	} else {
		f.baseLimit, f.quoteLimit = ask.sizeInBase, ask.sizeInQuote
		if err := a.applyBuy(f.quoteLimit, f.baseLimit); err != nil {
			return SwapResult{}, err
		}
		f.baseSwap = new(big.Int).Sub(out, ask.sizeInBase)
		quoteSwap, err := a.quoteInFromBaseOut(f.baseSwap)
		if err != nil {
			return SwapResult{}, err
		}
		f.quoteSwap = quoteSwap
		if err := a.applyBuy(f.quoteSwap, f.baseSwap); err != nil {
			return SwapResult{}, err
		}
	}

	postFee := f.quote()
	quoteIn := a.preFeeAdjust(postFee)
	fee := new(big.Int).Sub(quoteIn, postFee)
	return a.settle(Buy, out, quoteIn, f, fee, kStart)
}

func (a *Amm) sellExactIn(baseIn uint64) (SwapResult, error) {
	if baseIn == 0 {
		return SwapResult{Side: Sell}, nil
	}
	if a.BaseReserves+baseIn < a.BaseReserves {
		return SwapResult{}, fmt.Errorf("%w: base in %d, reserves %d", ErrSwapExactInTooLarge, baseIn, a.BaseReserves)
	}
	in := u128.From(baseIn)
	kStart := a.k()

	bid := a.limitOrderSize(Sell)
	var (
		f   fills
		fee *big.Int
	)
	if bid.sizeInBase.Cmp(in) >= 0 {
		quote := a.complementarySize(in, Sell, tokenBase)
		fee = a.feeRoundedDown(quote)
		if err := a.applySell(in, quote); err != nil {
			return SwapResult{}, err
		}
		f = fills{
			baseLimit:  in,
			quoteLimit: new(big.Int).Sub(quote, fee),
			baseSwap:   new(big.Int),
			quoteSwap:  new(big.Int),
		}
	} else {
		fee = a.feeRoundedDown(bid.sizeInQuote)
		if err := a.applySell(bid.sizeInBase, bid.sizeInQuote); err != nil {
			return SwapResult{}, err
		}
		f.baseLimit = bid.sizeInBase
		f.quoteLimit = new(big.Int).Sub(bid.sizeInQuote, fee)

		f.baseSwap = new(big.Int).Sub(in, bid.sizeInBase)
		quoteSwap := a.quoteOutFromBaseIn(f.baseSwap)
		if err := a.applySell(f.baseSwap, quoteSwap); err != nil {
			return SwapResult{}, err
		}
		swapFee := a.feeRoundedDown(quoteSwap)
		fee.Add(fee, swapFee)
		f.quoteSwap = quoteSwap.Sub(quoteSwap, swapFee)
	}

	return a.settle(Sell, in, f.quote(), f, fee, kStart)
}

func (a *Amm) sellExactOut(quoteOut uint64) (SwapResult, error) {
	if quoteOut == 0 {
		return SwapResult{Side: Sell}, nil
	}
	out := u128.From(quoteOut)
	preFee := a.preFeeAdjust(out)
	fee := new(big.Int).Sub(preFee, out)
	if a.QuoteReserves < quoteOut {
		return SwapResult{}, fmt.Errorf("%w: quote out %d, reserves %d", ErrSwapExactOutTooLarge, quoteOut, a.QuoteReserves)
	}
	kStart := a.k()

	bid := a.limitOrderSize(Sell)
	var f fills
	if bid.sizeInQuote.Cmp(out) >= 0 {
		f = fills{
			baseLimit:  a.complementarySize(preFee, Sell, tokenQuote),
			quoteLimit: preFee,
			baseSwap:   new(big.Int),
			quoteSwap:  new(big.Int),
		}
		if err := a.applySell(f.baseLimit, f.quoteLimit); err != nil {
			return SwapResult{}, err
		}
	} else {
		f.baseLimit, f.quoteLimit = bid.sizeInBase, bid.sizeInQuote
		if err := a.applySell(f.baseLimit, f.quoteLimit); err != nil {
			return SwapResult{}, err
		}
		f.quoteSwap = new(big.Int).Sub(preFee, bid.sizeInQuote)
		baseSwap, err := a.baseInFromQuoteOut(f.quoteSwap)
		if err != nil {
			return SwapResult{}, err
		}
		f.baseSwap = baseSwap
		if err := a.applySell(f.baseSwap, f.quoteSwap); err != nil {
			return SwapResult{}, err
		}
	}

	if got := new(big.Int).Sub(f.quote(), fee); got.Cmp(out) != 0 {
		return SwapResult{}, fmt.Errorf("%w: quote %s != %s", ErrSwapAmountMismatch, out, got)
	}
	return a.settle(Sell, f.base(), out, f, fee, kStart)
}
