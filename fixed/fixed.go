package fixed

import (
	bin "encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"

	binary "github.com/gagliardetto/binary"
	"github.com/shopspring/decimal"

	dmath "github.com/krazyTry/plasma-go/decimal_math"
)

// FractionalBits is the number of bits after the binary point.
const FractionalBits = 48

var (
	// ErrOverflow is returned when a result does not fit in 128 signed bits,
	// or a conversion target cannot hold the value.
	ErrOverflow = errors.New("fixed point overflow")
	// ErrDivideByZero is returned by Div and FromFraction on a zero divisor.
	ErrDivideByZero = errors.New("fixed point division by zero")
)

var (
	one      = new(big.Int).Lsh(big.NewInt(1), FractionalBits)
	fracMask = new(big.Int).Sub(one, big.NewInt(1))
	lowMask  = new(big.Int).SetUint64(math.MaxUint64)
	maxBits  = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	minBits  = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxU64   = new(big.Int).SetUint64(math.MaxUint64)

	// largest magnitude that converts to float64 without losing the integer part
	maxSafe = new(big.Int).Lsh(big.NewInt(1<<53-1), FractionalBits)
)

// I80F48 is a signed 128 bit fixed point number with 80 integer bits and 48
// fractional bits. The zero value is 0.
type I80F48 struct {
	hi int64
	lo uint64
}

func Zero() I80F48 {
	return I80F48{}
}

// FromInt converts an unsigned integer. It can not overflow.
func FromInt(v uint64) I80F48 {
	return I80F48{hi: int64(v >> (64 - FractionalBits)), lo: v << FractionalBits}
}

// FromFraction returns numerator / denominator truncated to 48 fractional bits.
func FromFraction(numerator, denominator uint64) (I80F48, error) {
	if denominator == 0 {
		return I80F48{}, ErrDivideByZero
	}
	n := new(big.Int).Lsh(new(big.Int).SetUint64(numerator), FractionalBits)
	return FromBits(n.Quo(n, new(big.Int).SetUint64(denominator)))
}

// FromBits wraps raw bits. The value must fit in 128 signed bits.
func FromBits(bits *big.Int) (I80F48, error) {
	if bits.Cmp(maxBits) > 0 || bits.Cmp(minBits) < 0 {
		return I80F48{}, ErrOverflow
	}
	lo := new(big.Int).And(bits, lowMask)
	hi := new(big.Int).Rsh(bits, 64)
	return I80F48{hi: hi.Int64(), lo: lo.Uint64()}, nil
}

func MustFromBits(bits *big.Int) I80F48 {
	f, err := FromBits(bits)
	if err != nil {
		panic(err)
	}
	return f
}

// Bits returns the raw two's complement value as a big integer.
func (f I80F48) Bits() *big.Int {
	hi := new(big.Int).Lsh(big.NewInt(f.hi), 64)
	return hi.Add(hi, new(big.Int).SetUint64(f.lo))
}

func (f I80F48) Add(g I80F48) (I80F48, error) {
	return FromBits(new(big.Int).Add(f.Bits(), g.Bits()))
}

func (f I80F48) Sub(g I80F48) (I80F48, error) {
	return FromBits(new(big.Int).Sub(f.Bits(), g.Bits()))
}

// Mul rounds toward negative infinity.
func (f I80F48) Mul(g I80F48) (I80F48, error) {
	p := new(big.Int).Mul(f.Bits(), g.Bits())
	return FromBits(p.Rsh(p, FractionalBits))
}

// Div rounds toward zero.
func (f I80F48) Div(g I80F48) (I80F48, error) {
	if g.IsZero() {
		return I80F48{}, ErrDivideByZero
	}
	n := new(big.Int).Lsh(f.Bits(), FractionalBits)
	return FromBits(n.Quo(n, g.Bits()))
}

// MulInt multiplies by an unsigned integer.
func (f I80F48) MulInt(v uint64) (I80F48, error) {
	return FromBits(new(big.Int).Mul(f.Bits(), new(big.Int).SetUint64(v)))
}

// Floor returns the integer part. Negative values and values beyond u64 fail.
func (f I80F48) Floor() (uint64, error) {
	if f.hi < 0 {
		return 0, ErrOverflow
	}
	v := new(big.Int).Rsh(f.Bits(), FractionalBits)
	if v.Cmp(maxU64) > 0 {
		return 0, ErrOverflow
	}
	return v.Uint64(), nil
}

func (f I80F48) Cmp(g I80F48) int {
	switch {
	case f.hi < g.hi:
		return -1
	case f.hi > g.hi:
		return 1
	case f.lo < g.lo:
		return -1
	case f.lo > g.lo:
		return 1
	}
	return 0
}

func (f I80F48) Sign() int {
	switch {
	case f.hi < 0:
		return -1
	case f.hi == 0 && f.lo == 0:
		return 0
	}
	return 1
}

func (f I80F48) IsZero() bool {
	return f.hi == 0 && f.lo == 0
}

// Float64 is a lossy conversion meant for display. It fails when the
// integer part would not be exactly representable.
func (f I80F48) Float64() (float64, error) {
	bits := f.Bits()
	if new(big.Int).Abs(bits).Cmp(maxSafe) > 0 {
		return 0, ErrOverflow
	}
	whole := new(big.Int).Rsh(bits, FractionalBits)
	frac := new(big.Int).And(bits, fracMask)
	return float64(whole.Int64()) + float64(frac.Uint64())/float64(uint64(1)<<FractionalBits), nil
}

// Decimal returns the exact decimal value.
func (f I80F48) Decimal() decimal.Decimal {
	return dmath.FromQ(f.Bits(), FractionalBits)
}

func (f I80F48) String() string {
	return f.Decimal().String()
}

func (f I80F48) GoString() string {
	return fmt.Sprintf("I80F48(%s)", f.Bits())
}

func (f I80F48) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := encoder.WriteUint64(f.lo, bin.LittleEndian); err != nil {
		return err
	}
	return encoder.WriteInt64(f.hi, bin.LittleEndian)
}

func (f *I80F48) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	if f.lo, err = decoder.ReadUint64(bin.LittleEndian); err != nil {
		return err
	}
	if f.hi, err = decoder.ReadInt64(bin.LittleEndian); err != nil {
		return err
	}
	return nil
}
