package decimal_math

import "math/big"

// Isqrt returns floor(sqrt(x)).
func Isqrt(x *big.Int) *big.Int {
	if x.Sign() < 0 {
		panic("sqrt on negative integer")
	}
	return new(big.Int).Sqrt(x)
}

// GeometricMean returns floor(sqrt(a*b)), the share count a first deposit of
// a base and b quote mints. The product is taken at full width so it never
// overflows.
func GeometricMean(a, b uint64) uint64 {
	k := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	return Isqrt(k).Uint64()
}
