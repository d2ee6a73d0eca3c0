package decimal_math

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FromQ converts a binary fixed point value with fracBits fractional bits
// into an exact decimal.
func FromQ(bits *big.Int, fracBits uint) decimal.Decimal {
	if bits == nil {
		return decimal.Zero
	}
	denominator := decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), fracBits), 0)
	// k / 2^n has at most n decimal places
	return decimal.NewFromBigInt(bits, 0).DivRound(denominator, int32(fracBits))
}
