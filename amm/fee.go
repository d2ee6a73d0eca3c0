package amm

import (
	"fmt"
	"math/big"

	"github.com/krazyTry/plasma-go/fixed"
	"github.com/krazyTry/plasma-go/u128"
)

// FeeBreakdown splits a charged fee between liquidity providers and the protocol.
type FeeBreakdown struct {
	LpFee       uint64
	ProtocolFee uint64
}

func (f FeeBreakdown) Total() uint64 {
	return f.LpFee + f.ProtocolFee
}

// feeRoundedDown is the fee charged on an amount that already includes it.
func (a Amm) feeRoundedDown(amount *big.Int) *big.Int {
	return u128.MulDiv(amount, u128.From(uint64(a.FeeInBps)), u128.From(BasisPointMax))
}

// preFeeAdjust returns the gross amount whose net of fee is amount.
func (a Amm) preFeeAdjust(amount *big.Int) *big.Int {
	d := new(big.Int).Sub(
		u128.From(FeeAdjustMultiplier),
		new(big.Int).Mul(u128.From(FeeAdjustedBasisPoint), u128.From(uint64(a.FeeInBps))),
	)
	return u128.MulDiv(amount, u128.From(FeeAdjustMultiplier), d)
}

// splitFee allocates the protocol percentage rounded down and gives the rest to LPs.
func (a Amm) splitFee(fee uint64) (FeeBreakdown, error) {
	protocol := u128.MulDiv(u128.From(fee), u128.From(uint64(a.ProtocolAllocationInPct)), big.NewInt(100))
	p, err := u128.Downcast(protocol)
	if err != nil {
		return FeeBreakdown{}, err
	}
	out := FeeBreakdown{LpFee: fee - p, ProtocolFee: p}
	if out.Total() != fee {
		return FeeBreakdown{}, fmt.Errorf("%w: %d + %d != %d", ErrMismatchedFees, out.LpFee, out.ProtocolFee, fee)
	}
	return out, nil
}

// applyFees credits the cumulative counters and grows the reward factor by
// lpFee / totalLpShares. Fees never enter the reserves.
func (a *Amm) applyFees(fees FeeBreakdown) error {
	if a.TotalLpShares == 0 {
		return ErrNoLiquidity
	}
	lp := a.CumulativeQuoteLpFees + fees.LpFee
	if lp < a.CumulativeQuoteLpFees {
		return fmt.Errorf("cumulative lp fees: %w", u128.ErrOverflow)
	}
	protocol := a.CumulativeQuoteProtocolFees + fees.ProtocolFee
	if protocol < a.CumulativeQuoteProtocolFees {
		return fmt.Errorf("cumulative protocol fees: %w", u128.ErrOverflow)
	}
	delta, err := fixed.FromFraction(fees.LpFee, a.TotalLpShares)
	if err != nil {
		return err
	}
	rf, err := a.RewardFactor.Add(delta)
	if err != nil {
		return err
	}
	a.CumulativeQuoteLpFees = lp
	a.CumulativeQuoteProtocolFees = protocol
	a.RewardFactor = rf
	return nil
}
