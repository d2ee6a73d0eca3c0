package fixed

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"

	binary "github.com/gagliardetto/binary"
	"pgregory.net/rapid"
)

func TestFromFraction(t *testing.T) {
	half, err := FromFraction(1, 2)
	if err != nil {
		t.Fatal("FromFraction() fail", err)
	}
	if half.Bits().Cmp(new(big.Int).Lsh(big.NewInt(1), FractionalBits-1)) != 0 {
		t.Fatal("1/2 =", half.GoString())
	}
	if half.String() != "0.5" {
		t.Fatal("String() =", half.String())
	}

	third, err := FromFraction(1, 3)
	if err != nil {
		t.Fatal("FromFraction() fail", err)
	}
	// truncated, so three thirds fall one ulp short of one
	sum, _ := third.Add(third)
	sum, _ = sum.Add(third)
	if sum.Cmp(FromInt(1)) >= 0 {
		t.Fatal("3 * 1/3 should truncate below 1", sum)
	}

	if _, err := FromFraction(1, 0); !errors.Is(err, ErrDivideByZero) {
		t.Fatal("FromFraction(1, 0) error", err)
	}
}

func TestArithmetic(t *testing.T) {
	a := FromInt(6)
	b := FromInt(4)

	sum, err := a.Add(b)
	if err != nil || sum.Cmp(FromInt(10)) != 0 {
		t.Fatal("Add() =", sum, err)
	}
	diff, err := b.Sub(a)
	if err != nil || diff.Sign() >= 0 {
		t.Fatal("Sub() =", diff, err)
	}
	if diff.String() != "-2" {
		t.Fatal("Sub() =", diff.String())
	}
	prod, err := a.Mul(b)
	if err != nil || prod.Cmp(FromInt(24)) != 0 {
		t.Fatal("Mul() =", prod, err)
	}
	quo, err := a.Div(b)
	if err != nil || quo.String() != "1.5" {
		t.Fatal("Div() =", quo, err)
	}
	if _, err := a.Div(Zero()); !errors.Is(err, ErrDivideByZero) {
		t.Fatal("Div() by zero", err)
	}

	// Mul floors, so a negative product rounds away from zero
	tiny := MustFromBits(big.NewInt(1))
	negTiny, _ := Zero().Sub(tiny)
	p, err := negTiny.Mul(MustFromBits(new(big.Int).Lsh(big.NewInt(1), FractionalBits-1)))
	if err != nil || p.Bits().Int64() != -1 {
		t.Fatal("Mul() rounding", p.GoString(), err)
	}
	// Div truncates toward zero
	q, err := negTiny.Div(FromInt(2))
	if err != nil || !q.IsZero() {
		t.Fatal("Div() rounding", q.GoString(), err)
	}
}

func TestOverflow(t *testing.T) {
	max := MustFromBits(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1)))
	if _, err := max.Add(MustFromBits(big.NewInt(1))); !errors.Is(err, ErrOverflow) {
		t.Fatal("Add() overflow", err)
	}
	if _, err := max.Mul(FromInt(2)); !errors.Is(err, ErrOverflow) {
		t.Fatal("Mul() overflow", err)
	}
	if _, err := FromBits(new(big.Int).Lsh(big.NewInt(1), 127)); !errors.Is(err, ErrOverflow) {
		t.Fatal("FromBits() overflow", err)
	}
	if _, err := max.Floor(); !errors.Is(err, ErrOverflow) {
		t.Fatal("Floor() beyond u64", err)
	}
	neg, _ := Zero().Sub(FromInt(1))
	if _, err := neg.Floor(); !errors.Is(err, ErrOverflow) {
		t.Fatal("Floor() negative", err)
	}
}

func TestFloat64(t *testing.T) {
	f, err := FromFraction(5, 4)
	if err != nil {
		t.Fatal("FromFraction() fail", err)
	}
	v, err := f.Float64()
	if err != nil || v != 1.25 {
		t.Fatal("Float64() =", v, err)
	}

	neg, _ := Zero().Sub(f)
	v, err = neg.Float64()
	if err != nil || v != -1.25 {
		t.Fatal("Float64() negative =", v, err)
	}

	safe := FromInt(1<<53 - 1)
	if _, err := safe.Float64(); err != nil {
		t.Fatal("Float64() at the safe limit", err)
	}
	if _, err := FromInt(1 << 53).Float64(); !errors.Is(err, ErrOverflow) {
		t.Fatal("Float64() beyond the safe limit", err)
	}
	fmt.Println("max safe:", safe)
}

func TestFloorAndMulInt(t *testing.T) {
	rf, _ := FromFraction(24, 2_000_000)
	earned, err := rf.MulInt(2_000_000)
	if err != nil {
		t.Fatal("MulInt() fail", err)
	}
	got, err := earned.Floor()
	if err != nil {
		t.Fatal("Floor() fail", err)
	}
	// the truncated factor loses less than one unit
	if got != 23 {
		t.Fatal("Floor() =", got)
	}

	top, _ := FromInt(math.MaxUint64).Floor()
	if top != math.MaxUint64 {
		t.Fatal("Floor() max u64", top)
	}
}

func TestBorsh(t *testing.T) {
	f, _ := FromFraction(3, 2)
	neg, _ := Zero().Sub(f)

	for _, v := range []I80F48{Zero(), f, neg, FromInt(math.MaxUint64)} {
		data, err := binary.MarshalBorsh(v)
		if err != nil {
			t.Fatal("MarshalBorsh() fail", err)
		}
		if len(data) != 16 {
			t.Fatal("encoded length", len(data))
		}
		var got I80F48
		if err := binary.UnmarshalBorsh(&got, data); err != nil {
			t.Fatal("UnmarshalBorsh() fail", err)
		}
		if got != v {
			t.Fatalf("round trip %s -> %s", v.GoString(), got.GoString())
		}
	}

	data, _ := binary.MarshalBorsh(neg)
	if data[15] != 0xff {
		t.Fatal("negative values must be two's complement", data)
	}
}

func TestPropertyBitsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hi := rapid.Int64().Draw(t, "hi")
		lo := rapid.Uint64().Draw(t, "lo")
		f := I80F48{hi: hi, lo: lo}

		g, err := FromBits(f.Bits())
		if err != nil {
			t.Fatal("FromBits() fail", err)
		}
		if g != f {
			t.Fatalf("bits round trip %s -> %s", f.GoString(), g.GoString())
		}
		if f.Sign() != f.Bits().Sign() {
			t.Fatal("Sign() disagrees with Bits()")
		}
	})
}

func TestPropertyAddSubInverse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := FromInt(rapid.Uint64().Draw(t, "a"))
		b, err := FromFraction(rapid.Uint64().Draw(t, "num"), rapid.Uint64Range(1, math.MaxUint64).Draw(t, "den"))
		if err != nil {
			t.Fatal("FromFraction() fail", err)
		}
		sum, err := a.Add(b)
		if err != nil {
			t.Fatal("Add() fail", err)
		}
		back, err := sum.Sub(b)
		if err != nil {
			t.Fatal("Sub() fail", err)
		}
		if back != a {
			t.Fatalf("(a + b) - b = %s, want %s", back, a)
		}
		if sum.Cmp(a) < 0 {
			t.Fatal("adding a non-negative value decreased a")
		}
	})
}
