package indexer

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gagliardetto/solana-go"

	plasma "github.com/krazyTry/plasma-go/gen/plasma"
	"github.com/krazyTry/plasma-go/u128"
)

var ErrSequenceGap = errors.New("event sequence gap")

// PoolState is a pool rebuilt from its events alone.
type PoolState struct {
	Pool solana.PublicKey `json:"pool"`
	// NextSequence is the sequence number the next event must carry.
	NextSequence uint64 `json:"next_sequence"`
	// FirstSequence is the first event seen. A pool tracked from zero has
	// seen its whole history.
	FirstSequence uint64 `json:"first_sequence"`
	Gaps          uint64 `json:"gaps"`
	Slot          uint64 `json:"slot"`
	Timestamp     int64  `json:"timestamp"`

	BaseDecimals     uint8  `json:"base_decimals"`
	QuoteDecimals    uint8  `json:"quote_decimals"`
	LpFeeInBps       uint64 `json:"lp_fee_in_bps"`
	ProtocolFeeInPct uint64 `json:"protocol_fee_in_pct"`

	BaseReserves          uint64 `json:"base_reserves"`
	QuoteReserves         uint64 `json:"quote_reserves"`
	SnapshotBaseReserves  uint64 `json:"snapshot_base_reserves"`
	SnapshotQuoteReserves uint64 `json:"snapshot_quote_reserves"`
	TotalLpShares         uint64 `json:"total_lp_shares"`
	Positions             uint64 `json:"positions"`

	Swaps       uint64 `json:"swaps"`
	BaseVolume  uint64 `json:"base_volume"`
	QuoteVolume uint64 `json:"quote_volume"`

	CumulativeLpFees       uint64 `json:"cumulative_lp_fees"`
	CumulativeProtocolFees uint64 `json:"cumulative_protocol_fees"`
	LpFeesWithdrawn        uint64 `json:"lp_fees_withdrawn"`
	ProtocolFeesWithdrawn  uint64 `json:"protocol_fees_withdrawn"`
}

// Complete reports whether every event of the pool since initialization was applied.
func (s *PoolState) Complete() bool {
	return s.FirstSequence == 0 && s.Gaps == 0
}

// UnclaimedFees is the quote held by the vault on top of the reserves.
func (s *PoolState) UnclaimedFees() uint64 {
	return s.CumulativeLpFees + s.CumulativeProtocolFees - s.LpFeesWithdrawn - s.ProtocolFeesWithdrawn
}

func (s *PoolState) apply(event plasma.Event) error {
	s.Slot = event.Header.Slot
	s.Timestamp = event.Header.Timestamp
	s.BaseDecimals = event.Header.BaseDecimals
	s.QuoteDecimals = event.Header.QuoteDecimals

	switch p := event.Payload.(type) {
	case *plasma.InitializePoolEvent:
		s.LpFeeInBps = p.LpFeeInBps
		s.ProtocolFeeInPct = p.ProtocolFeeInPct
	case *plasma.InitializeLpPositionEvent:
		s.Positions++
	case *plasma.SwapEvent:
		s.BaseReserves = p.PostBaseLiquidity
		s.QuoteReserves = p.PostQuoteLiquidity
		s.SnapshotBaseReserves = p.SnapshotBaseLiquidity
		s.SnapshotQuoteReserves = p.SnapshotQuoteLiquidity
		s.Swaps++
		s.BaseVolume = saturatingAdd(s.BaseVolume, p.SwapResult.BaseAmountToTransfer)
		s.QuoteVolume = saturatingAdd(s.QuoteVolume, p.SwapResult.QuoteAmountToTransfer)

		fee := p.SwapResult.FeeInQuote
		protocol := u128.MulDiv(u128.From(fee), u128.From(s.ProtocolFeeInPct), u128.From(100)).Uint64()
		s.CumulativeProtocolFees += protocol
		s.CumulativeLpFees += fee - protocol
	case *plasma.AddLiquidityEvent:
		s.applyLiquidity(p.LiquiditySnapshot)
	case *plasma.RemoveLiquidityEvent:
		s.applyLiquidity(p.LiquiditySnapshot)
	case *plasma.WithdrawLpFeesEvent:
		s.LpFeesWithdrawn += p.FeesWithdrawn
	case *plasma.WithdrawProtocolFeesEvent:
		s.ProtocolFeesWithdrawn += p.FeesWithdrawn
	case *plasma.RenounceLiquidityEvent:
	default:
		return fmt.Errorf("unexpected event payload %T", event.Payload)
	}
	return nil
}

func (s *PoolState) applyLiquidity(snapshot plasma.LiquiditySnapshot) {
	s.TotalLpShares = snapshot.PoolTotalLpShares
	s.BaseReserves = snapshot.PoolTotalBaseLiquidity
	s.QuoteReserves = snapshot.PoolTotalQuoteLiquidity
	s.SnapshotBaseReserves = snapshot.SnapshotBaseLiquidity
	s.SnapshotQuoteReserves = snapshot.SnapshotQuoteLiquidity
}

func saturatingAdd(a, b uint64) uint64 {
	if a+b < a {
		return ^uint64(0)
	}
	return a + b
}

// Tracker keeps one PoolState per pool and checks that every pool's events
// arrive in sequence.
type Tracker struct {
	pools map[solana.PublicKey]*PoolState
}

func NewTracker(states ...PoolState) *Tracker {
	t := &Tracker{pools: make(map[solana.PublicKey]*PoolState, len(states))}
	for i := range states {
		state := states[i]
		t.pools[state.Pool] = &state
	}
	return t
}

// Apply folds event into its pool's state. It returns false for an event
// that was already applied. An event past the expected sequence number is
// applied and reported with ErrSequenceGap.
func (t *Tracker) Apply(event plasma.Event) (bool, error) {
	seq := event.Header.SequenceNumber
	state, ok := t.pools[event.Header.Pool]
	if !ok {
		state = &PoolState{Pool: event.Header.Pool, NextSequence: seq, FirstSequence: seq}
		t.pools[event.Header.Pool] = state
	}
	if seq < state.NextSequence {
		return false, nil
	}

	var gap error
	if seq > state.NextSequence {
		gap = fmt.Errorf("%w: pool %s expected %d, got %d", ErrSequenceGap, state.Pool, state.NextSequence, seq)
		state.Gaps++
	}
	if err := state.apply(event); err != nil {
		return false, err
	}
	state.NextSequence = seq + 1
	return true, gap
}

// Pool returns a copy of the state of pool.
func (t *Tracker) Pool(pool solana.PublicKey) (PoolState, bool) {
	state, ok := t.pools[pool]
	if !ok {
		return PoolState{}, false
	}
	return *state, true
}

// Pools returns a copy of every tracked state ordered by pool address.
func (t *Tracker) Pools() []PoolState {
	out := make([]PoolState, 0, len(t.pools))
	for _, state := range t.pools {
		out = append(out, *state)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Pool.String() < out[j].Pool.String()
	})
	return out
}
