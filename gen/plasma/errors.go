package plasma

import "github.com/krazyTry/plasma-go/amm"

var (
	ErrInvalidDiscriminator = amm.NewError(amm.ClassValidation, "invalid account discriminator")
	ErrInvalidAccountSize   = amm.NewError(amm.ClassValidation, "invalid account size")
	ErrInvalidStatus        = amm.NewError(amm.ClassValidation, "invalid lp position status")
	ErrUnknownInstruction   = amm.NewError(amm.ClassValidation, "unknown instruction tag")
	ErrUnknownEvent         = amm.NewError(amm.ClassValidation, "unknown event kind")
	ErrTrailingBytes        = amm.NewError(amm.ClassValidation, "trailing bytes after payload")
)
