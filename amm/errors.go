package amm

import (
	"errors"

	"github.com/krazyTry/plasma-go/fixed"
	"github.com/krazyTry/plasma-go/u128"
)

// Class groups errors by the stage at which an instruction is rejected.
type Class uint8

const (
	ClassUnknown Class = iota
	// ClassValidation rejects malformed input before any mutation.
	ClassValidation
	// ClassEconomic rejects a computed outcome before it is committed.
	ClassEconomic
	// ClassAuthorization rejects the caller at entry.
	ClassAuthorization
	// ClassArithmetic is a fatal overflow or broken invariant.
	ClassArithmetic
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "ValidationError"
	case ClassEconomic:
		return "EconomicError"
	case ClassAuthorization:
		return "AuthorizationError"
	case ClassArithmetic:
		return "ArithmeticError"
	default:
		return "UnknownError"
	}
}

// Error is a sentinel carrying its class.
type Error struct {
	class Class
	msg   string
}

func NewError(class Class, msg string) *Error {
	return &Error{class: class, msg: msg}
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Class() Class { return e.class }

// ClassOf returns the class of the first classified error in err's chain.
func ClassOf(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.class
	}
	switch {
	case errors.Is(err, u128.ErrOverflow),
		errors.Is(err, u128.ErrUnderflow),
		errors.Is(err, fixed.ErrOverflow),
		errors.Is(err, fixed.ErrDivideByZero):
		return ClassArithmetic
	}
	return ClassUnknown
}

var (
	ErrUnexpectedArgument      = NewError(ClassValidation, "unexpected argument")
	ErrMissingExpectedArgument = NewError(ClassValidation, "missing expected argument")
	ErrInvalidInitialLpShares  = NewError(ClassValidation, "initial lp shares must be the integer square root of base*quote")
	ErrInvalidSide             = NewError(ClassValidation, "invalid swap side")
	ErrInvalidSwapType         = NewError(ClassValidation, "invalid swap type")

	ErrNoLiquidity                    = NewError(ClassEconomic, "pool has no liquidity")
	ErrSlippageExceeded               = NewError(ClassEconomic, "slippage exceeded")
	ErrInsufficientWithdrawableShares = NewError(ClassEconomic, "insufficient withdrawable lp shares")
	ErrVestingConflict                = NewError(ClassEconomic, "pending vesting tranche can not absorb new shares")
	ErrBelowMinimumLpShares           = NewError(ClassEconomic, "must mint at least 1 lp share")
	ErrBelowMinimumWithdrawal         = NewError(ClassEconomic, "must withdraw at least 1 base token and 1 quote token")
	ErrSwapExactOutTooLarge           = NewError(ClassEconomic, "exact out amount too large")
	ErrSwapExactInTooLarge            = NewError(ClassEconomic, "exact in amount too large")
	ErrSwapOutputExceedsReserves      = NewError(ClassEconomic, "swap output is greater than or equal to reserves")

	ErrInvariantViolation = NewError(ClassArithmetic, "constant product decreased")
	ErrSwapAmountMismatch = NewError(ClassArithmetic, "swap amounts do not reconcile")
	ErrMismatchedFees     = NewError(ClassArithmetic, "fee split does not sum to total fee")
	ErrNegativeReward     = NewError(ClassArithmetic, "reward factor moved backwards")
)
