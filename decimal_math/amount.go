package decimal_math

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ToUiAmount scales a raw token amount down by its mint decimals.
func ToUiAmount(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromUint64(amount).Shift(-int32(decimals))
}

// FromUiAmount scales a ui amount up to raw units, rounding down.
func FromUiAmount(amount decimal.Decimal, decimals uint8) (uint64, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}
	raw := amount.Shift(int32(decimals)).Floor()
	if raw.GreaterThan(decimal.NewFromUint64(math.MaxUint64)) {
		return 0, fmt.Errorf("amount %s overflows u64", amount)
	}
	return raw.BigInt().Uint64(), nil
}

// Price returns quote per base in ui units. A zero base amount yields zero.
func Price(base, quote uint64, baseDecimals, quoteDecimals uint8) decimal.Decimal {
	if base == 0 {
		return decimal.Zero
	}
	return ToUiAmount(quote, quoteDecimals).Div(ToUiAmount(base, baseDecimals))
}
