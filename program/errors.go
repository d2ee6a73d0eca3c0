package program

import "github.com/krazyTry/plasma-go/amm"

var (
	ErrIncorrectProgramID       = amm.NewError(amm.ClassValidation, "incorrect program id")
	ErrNotEnoughAccounts        = amm.NewError(amm.ClassValidation, "not enough account keys")
	ErrInvalidAccount           = amm.NewError(amm.ClassValidation, "invalid account")
	ErrInvalidSeeds             = amm.NewError(amm.ClassValidation, "account does not match derived address")
	ErrAccountAlreadyInUse      = amm.NewError(amm.ClassValidation, "account already in use")
	ErrAccountNotWritable       = amm.NewError(amm.ClassValidation, "account is not writable")
	ErrInvalidArgument          = amm.NewError(amm.ClassValidation, "invalid argument")
	ErrIdenticalMints           = amm.NewError(amm.ClassValidation, "base mint and quote mint must be different")
	ErrDuplicateFeeRecipient    = amm.NewError(amm.ClassValidation, "protocol fee recipients must be different")
	ErrInvalidFeeRecipientShare = amm.NewError(amm.ClassValidation, "protocol fee recipient shares must sum to a nonzero u64")
	ErrPoolAlreadyInitialized   = amm.NewError(amm.ClassValidation, "pool account already initialized")
	ErrUnsupportedProgram       = amm.NewError(amm.ClassValidation, "program is not supported by the runtime")

	ErrInsufficientFunds = amm.NewError(amm.ClassEconomic, "insufficient token balance")

	ErrMissingSignature      = amm.NewError(amm.ClassAuthorization, "missing required signature")
	ErrUnauthorized          = amm.NewError(amm.ClassAuthorization, "signer does not own the lp position")
	ErrUnauthorizedRecipient = amm.NewError(amm.ClassAuthorization, "signer is not a protocol fee recipient")
	ErrPositionRenounced     = amm.NewError(amm.ClassAuthorization, "lp position has been renounced")
	ErrFeesBurned            = amm.NewError(amm.ClassAuthorization, "lp position renounced its fees")
	ErrTokenOwnerMismatch    = amm.NewError(amm.ClassAuthorization, "token account owner does not match")

	ErrFeeNotCharged       = amm.NewError(amm.ClassArithmetic, "swap did not charge a fee")
	ErrProtocolFeeMismatch = amm.NewError(amm.ClassArithmetic, "protocol fee recipients exceed cumulative protocol fees")
)
