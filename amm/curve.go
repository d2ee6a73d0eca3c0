package amm

import (
	"fmt"
	"math/big"

	"github.com/krazyTry/plasma-go/u128"
)

var one = big.NewInt(1)

type tokenType uint8

const (
	tokenBase tokenType = iota
	tokenQuote
)

// limitOrder is the virtual order resting at the snapshot price.
type limitOrder struct {
	sizeInBase  *big.Int
	sizeInQuote *big.Int
}

func emptyLimitOrder() limitOrder {
	return limitOrder{sizeInBase: new(big.Int), sizeInQuote: new(big.Int)}
}

// limitOrderSize solves for the order at the snapshot price that moves the
// live price back to the snapshot price:
//
//	quoteSnapshot / baseSnapshot = (quoteReserves + dq) / (baseReserves + db)
//
// Buy consumes the ask side, which only exists when the live price is below
// the snapshot price. Sell consumes the bid side, the mirror case.
func (a Amm) limitOrderSize(side Side) limitOrder {
	if a.BaseReservesSnapshot == 0 || a.QuoteReservesSnapshot == 0 {
		return emptyLimitOrder()
	}
	qs := u128.From(a.QuoteReservesSnapshot)
	bs := u128.From(a.BaseReservesSnapshot)
	qsBr := u128.Mul(a.QuoteReservesSnapshot, a.BaseReserves)
	bsQr := u128.Mul(a.BaseReservesSnapshot, a.QuoteReserves)

	switch side {
	case Buy:
		if qsBr.Cmp(bsQr) <= 0 {
			return emptyLimitOrder()
		}
		sizeInQuote := new(big.Int).Sub(qsBr, bsQr)
		sizeInQuote.Quo(sizeInQuote, new(big.Int).Lsh(bs, 1))
		return limitOrder{
			sizeInBase:  u128.MulDiv(sizeInQuote, bs, qs),
			sizeInQuote: sizeInQuote,
		}
	case Sell:
		if bsQr.Cmp(qsBr) <= 0 {
			return emptyLimitOrder()
		}
		sizeInBase := new(big.Int).Sub(bsQr, qsBr)
		sizeInBase.Quo(sizeInBase, new(big.Int).Lsh(qs, 1))
		return limitOrder{
			sizeInBase:  sizeInBase,
			sizeInQuote: u128.MulDiv(sizeInBase, qs, bs),
		}
	}
	return emptyLimitOrder()
}

// complementarySize converts amount of the input token into the other token
// at the snapshot price. The leg the pool receives is rounded up.
func (a Amm) complementarySize(amount *big.Int, side Side, input tokenType) *big.Int {
	if amount.Sign() == 0 {
		return new(big.Int)
	}
	qs := u128.From(a.QuoteReservesSnapshot)
	bs := u128.From(a.BaseReservesSnapshot)
	switch {
	case side == Buy && input == tokenBase:
		return u128.CeilDiv(new(big.Int).Mul(amount, qs), bs)
	case side == Buy && input == tokenQuote:
		return u128.MulDiv(amount, bs, qs)
	case side == Sell && input == tokenBase:
		return u128.MulDiv(amount, qs, bs)
	default:
		return u128.CeilDiv(new(big.Int).Mul(amount, bs), qs)
	}
}

// kMinusOne keeps every curve rounding in the pool's favour.
func (a Amm) kMinusOne() *big.Int {
	k := a.k()
	if k.Sign() > 0 {
		k.Sub(k, one)
	}
	return k
}

func (a Amm) baseOutFromQuoteIn(quoteIn *big.Int) *big.Int {
	d := new(big.Int).Add(u128.From(a.QuoteReserves), quoteIn)
	d.Quo(a.kMinusOne(), d)
	d.Add(d, one)
	return d.Sub(u128.From(a.BaseReserves), d)
}

func (a Amm) quoteOutFromBaseIn(baseIn *big.Int) *big.Int {
	d := new(big.Int).Add(u128.From(a.BaseReserves), baseIn)
	d.Quo(a.kMinusOne(), d)
	d.Add(d, one)
	return d.Sub(u128.From(a.QuoteReserves), d)
}

func (a Amm) quoteInFromBaseOut(baseOut *big.Int) (*big.Int, error) {
	br := u128.From(a.BaseReserves)
	if baseOut.Cmp(br) >= 0 {
		return nil, fmt.Errorf("%w: base out %s, reserves %s", ErrSwapOutputExceedsReserves, baseOut, br)
	}
	d := new(big.Int).Sub(br, baseOut)
	d.Quo(a.kMinusOne(), d)
	d.Add(d, one)
	return d.Sub(d, u128.From(a.QuoteReserves)), nil
}

func (a Amm) baseInFromQuoteOut(quoteOut *big.Int) (*big.Int, error) {
	qr := u128.From(a.QuoteReserves)
	if quoteOut.Cmp(qr) >= 0 {
		return nil, fmt.Errorf("%w: quote out %s, reserves %s", ErrSwapOutputExceedsReserves, quoteOut, qr)
	}
	d := new(big.Int).Sub(qr, quoteOut)
	d.Quo(a.kMinusOne(), d)
	d.Add(d, one)
	return d.Sub(d, u128.From(a.BaseReserves)), nil
}

func (a *Amm) applyBuy(quoteIn, baseOut *big.Int) error {
	out, err := u128.Downcast(baseOut)
	if err != nil {
		return err
	}
	in, err := u128.Downcast(quoteIn)
	if err != nil {
		return err
	}
	if out > a.BaseReserves {
		return fmt.Errorf("base reserves: %w", u128.ErrUnderflow)
	}
	if a.QuoteReserves+in < a.QuoteReserves {
		return fmt.Errorf("quote reserves: %w", u128.ErrOverflow)
	}
	a.BaseReserves -= out
	a.QuoteReserves += in
	return nil
}

func (a *Amm) applySell(baseIn, quoteOut *big.Int) error {
	in, err := u128.Downcast(baseIn)
	if err != nil {
		return err
	}
	out, err := u128.Downcast(quoteOut)
	if err != nil {
		return err
	}
	if a.BaseReserves+in < a.BaseReserves {
		return fmt.Errorf("base reserves: %w", u128.ErrOverflow)
	}
	if out > a.QuoteReserves {
		return fmt.Errorf("quote reserves: %w", u128.ErrUnderflow)
	}
	a.BaseReserves += in
	a.QuoteReserves -= out
	return nil
}
