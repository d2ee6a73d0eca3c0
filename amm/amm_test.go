package amm

import (
	"errors"
	"fmt"
	"testing"
)

func TestWindowStart(t *testing.T) {
	for slot, want := range map[uint64]uint64{0: 0, 3: 0, 4: 4, 7: 4, 8: 8, 1_000_001: 1_000_000} {
		if got := WindowStart(slot); got != want {
			t.Fatalf("WindowStart(%d) = %d, want %d", slot, got, want)
		}
	}
}

func TestMaybeUpdateSnapshot(t *testing.T) {
	a := New(30, 20, 0, 5)
	if a.SlotSnapshot != 4 {
		t.Fatal("New() snapshot", a.SlotSnapshot)
	}
	a.BaseReserves, a.QuoteReserves = 10, 20

	if a.MaybeUpdateSnapshot(7) {
		t.Fatal("same window must not refresh")
	}
	if a.BaseReservesSnapshot != 0 {
		t.Fatal("snapshot moved")
	}
	if !a.MaybeUpdateSnapshot(9) {
		t.Fatal("next window must refresh")
	}
	if a.SlotSnapshot != 8 || a.BaseReservesSnapshot != 10 || a.QuoteReservesSnapshot != 20 {
		t.Fatal("snapshot not copied", a)
	}
	if a.MaybeUpdateSnapshot(3) {
		t.Fatal("an older slot must not refresh")
	}
}

func TestMintInitialDeposit(t *testing.T) {
	a := New(30, 20, 0, 0)

	if _, err := a.Mint(0, 1_000_000, 4_000_000, nil); !errors.Is(err, ErrMissingExpectedArgument) {
		t.Fatal("Mint() without initial shares", err)
	}
	tooMany := uint64(2_000_001)
	if _, err := a.Mint(0, 1_000_000, 4_000_000, &tooMany); !errors.Is(err, ErrInvalidInitialLpShares) {
		t.Fatal("Mint() with bad initial shares", err)
	}
	zero := uint64(0)
	if _, err := a.Mint(0, 0, 4_000_000, &zero); !errors.Is(err, ErrBelowMinimumLpShares) {
		t.Fatal("Mint() with zero shares", err)
	}
	if a.TotalLpShares != 0 {
		t.Fatal("failed mint changed the pool")
	}

	shares := GeometricMeanShares(1_000_000, 4_000_000)
	res, err := a.Mint(0, 1_000_000, 4_000_000, &shares)
	if err != nil {
		t.Fatal("Mint() fail", err)
	}
	fmt.Printf("initial mint: %+v\n", res)
	if res.LpShares != 2_000_000 || a.TotalLpShares != 2_000_000 {
		t.Fatal("Mint() shares", res.LpShares)
	}
	if a.BaseReservesSnapshot != 1_000_000 || a.QuoteReservesSnapshot != 4_000_000 {
		t.Fatal("initial mint must seed the snapshot")
	}

	if _, err := a.Mint(0, 1, 1, &shares); !errors.Is(err, ErrUnexpectedArgument) {
		t.Fatal("Mint() initial shares on a funded pool", err)
	}
}

func TestMintProportional(t *testing.T) {
	tests := []struct {
		base, quote uint64
		want        MintResult
	}{
		{1_000, 5_000, MintResult{BaseDeposited: 1_000, QuoteDeposited: 4_000, LpShares: 2_000}},
		{1_000, 3_000, MintResult{BaseDeposited: 750, QuoteDeposited: 3_000, LpShares: 1_500}},
		{1_000, 4_000, MintResult{BaseDeposited: 1_000, QuoteDeposited: 4_000, LpShares: 2_000}},
	}
	for _, tt := range tests {
		a := testPool(t)
		got, err := a.Mint(1, tt.base, tt.quote, nil)
		if err != nil {
			t.Fatal("Mint() fail", err)
		}
		if got != tt.want {
			t.Fatalf("Mint(%d, %d) = %+v, want %+v", tt.base, tt.quote, got, tt.want)
		}
		if a.BaseReserves != 1_000_000+got.BaseDeposited || a.QuoteReserves != 4_000_000+got.QuoteDeposited {
			t.Fatal("reserves", a.BaseReserves, a.QuoteReserves)
		}
	}
}

func TestBurn(t *testing.T) {
	a := testPool(t)
	base, quote, err := a.Burn(1, 2_000)
	if err != nil {
		t.Fatal("Burn() fail", err)
	}
	if base != 1_000 || quote != 4_000 {
		t.Fatal("Burn() =", base, quote)
	}
	if a.TotalLpShares != 1_998_000 {
		t.Fatal("total shares", a.TotalLpShares)
	}

	before := a
	if _, _, err := a.Burn(1, 1); !errors.Is(err, ErrBelowMinimumWithdrawal) {
		t.Fatal("Burn() dust", err)
	}
	if a != before {
		t.Fatal("failed burn changed the pool")
	}

	if _, _, err := a.Burn(1, a.TotalLpShares); err != nil {
		t.Fatal("Burn() all fail", err)
	}
	if a.BaseReserves != 0 || a.QuoteReserves != 0 || a.TotalLpShares != 0 {
		t.Fatal("pool not empty", a)
	}
	if _, _, err := a.Burn(1, 1); !errors.Is(err, ErrNoLiquidity) {
		t.Fatal("Burn() on empty pool", err)
	}
}

func TestErrorClasses(t *testing.T) {
	wrapped := fmt.Errorf("swap: %w", ErrNoLiquidity)
	tests := map[error]Class{
		errPlain:                          ClassUnknown,
		ErrSlippageExceeded:               ClassEconomic,
		ErrInsufficientWithdrawableShares: ClassEconomic,
		ErrInvalidInitialLpShares:         ClassValidation,
		ErrInvariantViolation:             ClassArithmetic,
		wrapped:                           ClassEconomic,
	}
	for err, want := range tests {
		if got := ClassOf(err); got != want {
			t.Fatalf("ClassOf(%v) = %s, want %s", err, got, want)
		}
	}
}

var errPlain = errors.New("plain error")
