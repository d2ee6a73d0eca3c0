package u128

import (
	"errors"
	"math"
	"math/big"
)

var (
	// ErrOverflow is returned when a wide intermediate does not fit back into u64.
	ErrOverflow = errors.New("value overflows u64")
	// ErrUnderflow is returned when a subtraction would go below zero.
	ErrUnderflow = errors.New("value underflows zero")
)

var maxU64 = new(big.Int).SetUint64(math.MaxUint64)

func From(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

// Mul returns a*b without overflow.
func Mul(a, b uint64) *big.Int {
	return new(big.Int).Mul(From(a), From(b))
}

// MulDiv returns floor(a*b/d). d must be non-zero.
func MulDiv(a, b, d *big.Int) *big.Int {
	p := new(big.Int).Mul(a, b)
	return p.Quo(p, d)
}

// CeilDiv returns ceil(n/d) for n >= 0. Zero stays zero.
func CeilDiv(n, d *big.Int) *big.Int {
	if n.Sign() == 0 {
		return new(big.Int)
	}
	q := new(big.Int).Sub(n, big.NewInt(1))
	q.Quo(q, d)
	return q.Add(q, big.NewInt(1))
}

// Downcast narrows x into u64.
func Downcast(x *big.Int) (uint64, error) {
	if x.Sign() < 0 {
		return 0, ErrUnderflow
	}
	if x.Cmp(maxU64) > 0 {
		return 0, ErrOverflow
	}
	return x.Uint64(), nil
}

// FitsU64 reports whether x is a valid u64.
func FitsU64(x *big.Int) bool {
	return x.Sign() >= 0 && x.Cmp(maxU64) <= 0
}
