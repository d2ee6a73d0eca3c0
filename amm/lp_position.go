package amm

import (
	"fmt"

	"github.com/krazyTry/plasma-go/fixed"
	"github.com/krazyTry/plasma-go/u128"
)

// PendingSharesToVest is the single locked tranche of a position.
// A zero LpSharesToVest means there is none.
type PendingSharesToVest struct {
	DepositSlot    uint64
	LpSharesToVest uint64
}

func (p PendingSharesToVest) IsEmpty() bool {
	return p.LpSharesToVest == 0
}

// Matured reports whether the tranche is withdrawable at slot.
func (p PendingSharesToVest) Matured(slot, window uint64) bool {
	return !p.IsEmpty() && slot >= p.DepositSlot && slot-p.DepositSlot >= window
}

// add locks lpShares at slot. A tranche that is still locked absorbs them
// and its lock restarts at the later deposit slot.
func (p *PendingSharesToVest) add(slot, lpShares uint64) error {
	if p.IsEmpty() {
		p.DepositSlot = slot
		p.LpSharesToVest = lpShares
		return nil
	}
	merged := p.LpSharesToVest + lpShares
	if merged < p.LpSharesToVest {
		return ErrVestingConflict
	}
	if slot > p.DepositSlot {
		p.DepositSlot = slot
	}
	p.LpSharesToVest = merged
	return nil
}

func (p *PendingSharesToVest) maybeVest(slot, window uint64) uint64 {
	if !p.Matured(slot, window) {
		return 0
	}
	vested := p.LpSharesToVest
	*p = PendingSharesToVest{}
	return vested
}

// LpPosition is one owner's stake in one pool.
type LpPosition struct {
	RewardFactorSnapshot fixed.I80F48
	LpShares             uint64
	WithdrawableLpShares uint64
	UncollectedFees      uint64
	CollectedFees        uint64
	PendingSharesToVest  PendingSharesToVest
}

// NewLpPosition starts a position at the pool's current reward factor so it
// earns nothing from fees realized before it existed.
func NewLpPosition(rewardFactor fixed.I80F48) LpPosition {
	return LpPosition{RewardFactorSnapshot: rewardFactor}
}

type AddLiquidityResult struct {
	BaseAmountDeposited  uint64
	QuoteAmountDeposited uint64
	LpSharesReceived     uint64
	LpSharesVested       uint64
	QuoteFeesAccumulated uint64
}

type RemoveLiquidityResult struct {
	BaseAmountWithdrawn  uint64
	QuoteAmountWithdrawn uint64
	LpSharesBurned       uint64
	LpSharesVested       uint64
	QuoteFeesAccumulated uint64
}

// Settle vests a matured tranche and moves fees earned since the last
// settlement into UncollectedFees. It must run before LpShares changes.
// Calling it twice at the same reward factor settles nothing the second time.
func (p *LpPosition) Settle(slot uint64, amm *Amm) (vested, fees uint64, err error) {
	next := *p
	vested = next.PendingSharesToVest.maybeVest(slot, amm.LpVestingWindow)
	next.WithdrawableLpShares += vested

	if amm.RewardFactor.Sign() > 0 && amm.TotalLpShares > 0 {
		delta, err := amm.RewardFactor.Sub(next.RewardFactorSnapshot)
		if err != nil {
			return 0, 0, err
		}
		if delta.Sign() < 0 {
			return 0, 0, fmt.Errorf("%w: %s < %s", ErrNegativeReward, amm.RewardFactor, next.RewardFactorSnapshot)
		}
		earned, err := delta.MulInt(next.LpShares)
		if err != nil {
			return 0, 0, err
		}
		if fees, err = earned.Floor(); err != nil {
			return 0, 0, err
		}
		if next.UncollectedFees+fees < next.UncollectedFees {
			return 0, 0, fmt.Errorf("uncollected fees: %w", u128.ErrOverflow)
		}
		next.UncollectedFees += fees
	}
	next.RewardFactorSnapshot = amm.RewardFactor
	*p = next
	return vested, fees, nil
}

// AddLiquidity settles the position, mints into amm and locks the new shares.
// Both the position and the pool are unchanged on error.
func (p *LpPosition) AddLiquidity(slot uint64, amm *Amm, baseDesired, quoteDesired uint64, initialLpShares *uint64) (AddLiquidityResult, error) {
	pos := *p
	pool := *amm
	vested, fees, err := pos.Settle(slot, &pool)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	minted, err := pool.Mint(slot, baseDesired, quoteDesired, initialLpShares)
	if err != nil {
		return AddLiquidityResult{}, err
	}
	if err := pos.PendingSharesToVest.add(slot, minted.LpShares); err != nil {
		return AddLiquidityResult{}, err
	}
	if pos.LpShares+minted.LpShares < pos.LpShares {
		return AddLiquidityResult{}, fmt.Errorf("lp shares: %w", u128.ErrOverflow)
	}
	pos.LpShares += minted.LpShares
	// a zero vesting window makes the tranche withdrawable immediately
	pos.WithdrawableLpShares += pos.PendingSharesToVest.maybeVest(slot, pool.LpVestingWindow)

	*p = pos
	*amm = pool
	return AddLiquidityResult{
		BaseAmountDeposited:  minted.BaseDeposited,
		QuoteAmountDeposited: minted.QuoteDeposited,
		LpSharesReceived:     minted.LpShares,
		LpSharesVested:       vested,
		QuoteFeesAccumulated: fees,
	}, nil
}

// RemoveLiquidity settles the position and burns lpShares of its withdrawable shares.
func (p *LpPosition) RemoveLiquidity(slot uint64, amm *Amm, lpShares uint64) (RemoveLiquidityResult, error) {
	pos := *p
	pool := *amm
	vested, fees, err := pos.Settle(slot, &pool)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	if lpShares > pos.WithdrawableLpShares {
		return RemoveLiquidityResult{}, fmt.Errorf("%w: requested %d, withdrawable %d", ErrInsufficientWithdrawableShares, lpShares, pos.WithdrawableLpShares)
	}
	base, quote, err := pool.Burn(slot, lpShares)
	if err != nil {
		return RemoveLiquidityResult{}, err
	}
	pos.WithdrawableLpShares -= lpShares
	pos.LpShares -= lpShares

	*p = pos
	*amm = pool
	return RemoveLiquidityResult{
		BaseAmountWithdrawn:  base,
		QuoteAmountWithdrawn: quote,
		LpSharesBurned:       lpShares,
		LpSharesVested:       vested,
		QuoteFeesAccumulated: fees,
	}, nil
}

// CollectFees settles and moves everything uncollected to collected.
// It returns zero, not an error, when nothing is owed.
func (p *LpPosition) CollectFees(slot uint64, amm *Amm) (uint64, error) {
	pos := *p
	if _, _, err := pos.Settle(slot, amm); err != nil {
		return 0, err
	}
	fees := pos.UncollectedFees
	if pos.CollectedFees+fees < pos.CollectedFees {
		return 0, fmt.Errorf("collected fees: %w", u128.ErrOverflow)
	}
	pos.CollectedFees += fees
	pos.UncollectedFees = 0
	*p = pos
	return fees, nil
}

// WithdrawableAmounts is what burning every withdrawable share would pay at
// the current reserves.
func (p LpPosition) WithdrawableAmounts(amm Amm) (base, quote uint64) {
	if amm.TotalLpShares == 0 {
		return 0, 0
	}
	total := u128.From(amm.TotalLpShares)
	shares := u128.From(p.WithdrawableLpShares)
	base = u128.MulDiv(shares, u128.From(amm.BaseReserves), total).Uint64()
	quote = u128.MulDiv(shares, u128.From(amm.QuoteReserves), total).Uint64()
	return base, quote
}

// PendingFees is what Settle would add to UncollectedFees right now.
func (p LpPosition) PendingFees(amm Amm) (uint64, error) {
	pos := p
	_, fees, err := pos.Settle(amm.SlotSnapshot, &amm)
	return fees, err
}
