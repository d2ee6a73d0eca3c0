package amm

import (
	"math/big"

	"github.com/krazyTry/plasma-go/fixed"
	"github.com/krazyTry/plasma-go/u128"
)

const (
	// LeaderSlotWindow is the number of slots that share one reserve snapshot.
	LeaderSlotWindow uint64 = 4

	// BasisPointMax is 100% in basis points.
	BasisPointMax uint64 = 10_000

	// FeeAdjustMultiplier is the largest integer below u64 max that is a multiple of 10000.
	FeeAdjustMultiplier uint64 = 18_446_744_073_709_550_000
	// FeeAdjustedBasisPoint is FeeAdjustMultiplier / 10000.
	FeeAdjustedBasisPoint uint64 = FeeAdjustMultiplier / BasisPointMax
)

// WindowStart maps a slot to the first slot of its snapshot window.
func WindowStart(slot uint64) uint64 {
	return slot / LeaderSlotWindow * LeaderSlotWindow
}

// Amm is the mutable trading state of a pool.
type Amm struct {
	FeeInBps                uint32
	ProtocolAllocationInPct uint32
	// LpVestingWindow is the number of slots a new tranche stays locked.
	LpVestingWindow uint64
	RewardFactor    fixed.I80F48
	TotalLpShares   uint64
	// SlotSnapshot is the first slot of the window the snapshot belongs to.
	SlotSnapshot                uint64
	BaseReservesSnapshot        uint64
	QuoteReservesSnapshot       uint64
	BaseReserves                uint64
	QuoteReserves               uint64
	CumulativeQuoteLpFees       uint64
	CumulativeQuoteProtocolFees uint64
}

// New returns an empty pool. The vesting window is given in slots.
func New(feeInBps, protocolAllocationInPct uint32, lpVestingWindow, slot uint64) Amm {
	return Amm{
		FeeInBps:                feeInBps,
		ProtocolAllocationInPct: protocolAllocationInPct,
		LpVestingWindow:         lpVestingWindow,
		SlotSnapshot:            WindowStart(slot),
	}
}

// MaybeUpdateSnapshot copies live reserves into the snapshot when slot falls
// in a later window than the cached one. It reports whether it did.
func (a *Amm) MaybeUpdateSnapshot(slot uint64) bool {
	window := WindowStart(slot)
	if window <= a.SlotSnapshot {
		return false
	}
	a.SlotSnapshot = window
	a.BaseReservesSnapshot = a.BaseReserves
	a.QuoteReservesSnapshot = a.QuoteReserves
	return true
}

// ReferenceReserves returns the reserves that price swaps in the window of slot.
func (a Amm) ReferenceReserves(slot uint64) (base, quote uint64) {
	if WindowStart(slot) > a.SlotSnapshot {
		return a.BaseReserves, a.QuoteReserves
	}
	return a.BaseReservesSnapshot, a.QuoteReservesSnapshot
}

// TotalFees is the sum of both cumulative fee counters.
func (a Amm) TotalFees() *big.Int {
	return new(big.Int).Add(u128.From(a.CumulativeQuoteLpFees), u128.From(a.CumulativeQuoteProtocolFees))
}

// depositAmountQuote is the quote matching amountBase at the live ratio.
func (a Amm) depositAmountQuote(amountBase uint64) *big.Int {
	return u128.MulDiv(u128.From(amountBase), u128.From(a.QuoteReserves), u128.From(a.BaseReserves))
}

// depositAmountBase is the base matching amountQuote at the live ratio.
func (a Amm) depositAmountBase(amountQuote uint64) *big.Int {
	return u128.MulDiv(u128.From(amountQuote), u128.From(a.BaseReserves), u128.From(a.QuoteReserves))
}

func (a Amm) k() *big.Int {
	return u128.Mul(a.BaseReserves, a.QuoteReserves)
}
