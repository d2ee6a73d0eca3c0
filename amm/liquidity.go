package amm

import (
	"fmt"
	"math/big"

	dmath "github.com/krazyTry/plasma-go/decimal_math"
	"github.com/krazyTry/plasma-go/u128"
)

// GeometricMeanShares is the initial share count for a first deposit.
func GeometricMeanShares(base, quote uint64) uint64 {
	return dmath.GeometricMean(base, quote)
}

// MintResult is the outcome of a deposit into the pool.
type MintResult struct {
	BaseDeposited  uint64
	QuoteDeposited uint64
	LpShares       uint64
}

// Mint deposits liquidity and issues shares. initialLpShares must be set on
// the first deposit, to the integer square root of base*quote, and must be
// nil afterwards. Later deposits are trimmed to the live reserve ratio.
func (a *Amm) Mint(slot, baseDesired, quoteDesired uint64, initialLpShares *uint64) (MintResult, error) {
	next := *a
	next.MaybeUpdateSnapshot(slot)

	var res MintResult
	if next.TotalLpShares == 0 {
		if initialLpShares == nil {
			return MintResult{}, fmt.Errorf("%w: initial lp shares", ErrMissingExpectedArgument)
		}
		s := new(big.Int).SetUint64(*initialLpShares)
		k := u128.Mul(baseDesired, quoteDesired)
		lo := new(big.Int).Mul(s, s)
		s1 := new(big.Int).Add(s, one)
		hi := s1.Mul(s1, s1)
		if lo.Cmp(k) > 0 || hi.Cmp(k) <= 0 {
			return MintResult{}, fmt.Errorf("%w: %d shares for %d base and %d quote", ErrInvalidInitialLpShares, *initialLpShares, baseDesired, quoteDesired)
		}
		next.BaseReservesSnapshot = baseDesired
		next.QuoteReservesSnapshot = quoteDesired
		next.BaseReserves = baseDesired
		next.QuoteReserves = quoteDesired
		res = MintResult{BaseDeposited: baseDesired, QuoteDeposited: quoteDesired, LpShares: *initialLpShares}
	} else {
		if initialLpShares != nil {
			return MintResult{}, fmt.Errorf("%w: initial lp shares on a funded pool", ErrUnexpectedArgument)
		}
		quoteOptimal := next.depositAmountQuote(baseDesired)
		baseOptimal := next.depositAmountBase(quoteDesired)

		var base, quote *big.Int
		if u128.From(quoteDesired).Cmp(quoteOptimal) >= 0 {
			base, quote = u128.From(baseDesired), quoteOptimal
		} else {
			if u128.From(baseDesired).Cmp(baseOptimal) < 0 {
				return MintResult{}, fmt.Errorf("%w: deposit ratio", ErrInvariantViolation)
			}
			base, quote = baseOptimal, u128.From(quoteDesired)
		}

		total := u128.From(next.TotalLpShares)
		shares := u128.MulDiv(quote, total, u128.From(next.QuoteReserves))
		if byBase := u128.MulDiv(base, total, u128.From(next.BaseReserves)); byBase.Cmp(shares) < 0 {
			shares = byBase
		}

		var err error
		if res.BaseDeposited, err = u128.Downcast(base); err != nil {
			return MintResult{}, err
		}
		if res.QuoteDeposited, err = u128.Downcast(quote); err != nil {
			return MintResult{}, err
		}
		if res.LpShares, err = u128.Downcast(shares); err != nil {
			return MintResult{}, err
		}
		if next.BaseReserves+res.BaseDeposited < next.BaseReserves || next.QuoteReserves+res.QuoteDeposited < next.QuoteReserves {
			return MintResult{}, fmt.Errorf("reserves: %w", u128.ErrOverflow)
		}
		next.BaseReserves += res.BaseDeposited
		next.QuoteReserves += res.QuoteDeposited
	}

	if res.LpShares == 0 {
		return MintResult{}, ErrBelowMinimumLpShares
	}
	if next.TotalLpShares+res.LpShares < next.TotalLpShares {
		return MintResult{}, fmt.Errorf("total lp shares: %w", u128.ErrOverflow)
	}
	next.TotalLpShares += res.LpShares
	*a = next
	return res, nil
}

// Burn redeems lpShares for their pro rata slice of the live reserves.
func (a *Amm) Burn(slot, lpShares uint64) (base, quote uint64, err error) {
	if a.TotalLpShares == 0 {
		return 0, 0, ErrNoLiquidity
	}
	if lpShares > a.TotalLpShares {
		return 0, 0, fmt.Errorf("burn %d of %d shares: %w", lpShares, a.TotalLpShares, u128.ErrUnderflow)
	}
	next := *a
	next.MaybeUpdateSnapshot(slot)

	total := u128.From(next.TotalLpShares)
	shares := u128.From(lpShares)
	// both legs are at most the reserves they come from
	base = u128.MulDiv(u128.From(next.BaseReserves), shares, total).Uint64()
	quote = u128.MulDiv(u128.From(next.QuoteReserves), shares, total).Uint64()
	if base == 0 || quote == 0 {
		return 0, 0, ErrBelowMinimumWithdrawal
	}
	next.BaseReserves -= base
	next.QuoteReserves -= quote
	next.TotalLpShares -= lpShares
	*a = next
	return base, quote, nil
}
