package amm

import (
	bin "encoding/binary"
	"fmt"

	binary "github.com/gagliardetto/binary"
)

// Encoded sizes in bytes.
const (
	AmmSize        = 96
	LpPositionSize = 64
	SwapResultSize = 57
)

func writeUint64s(encoder *binary.Encoder, values ...uint64) error {
	for _, v := range values {
		if err := encoder.WriteUint64(v, bin.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

func readUint64s(decoder *binary.Decoder, dst ...*uint64) (err error) {
	for _, d := range dst {
		if *d, err = decoder.ReadUint64(bin.LittleEndian); err != nil {
			return err
		}
	}
	return nil
}

func (a Amm) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := encoder.WriteUint32(a.FeeInBps, bin.LittleEndian); err != nil {
		return err
	}
	if err := encoder.WriteUint32(a.ProtocolAllocationInPct, bin.LittleEndian); err != nil {
		return err
	}
	if err := encoder.WriteUint64(a.LpVestingWindow, bin.LittleEndian); err != nil {
		return err
	}
	if err := a.RewardFactor.MarshalWithEncoder(encoder); err != nil {
		return err
	}
	return writeUint64s(encoder,
		a.TotalLpShares,
		a.SlotSnapshot,
		a.BaseReservesSnapshot,
		a.QuoteReservesSnapshot,
		a.BaseReserves,
		a.QuoteReserves,
		a.CumulativeQuoteLpFees,
		a.CumulativeQuoteProtocolFees,
	)
}

func (a *Amm) UnmarshalWithDecoder(decoder *binary.Decoder) (err error) {
	if a.FeeInBps, err = decoder.ReadUint32(bin.LittleEndian); err != nil {
		return err
	}
	if a.ProtocolAllocationInPct, err = decoder.ReadUint32(bin.LittleEndian); err != nil {
		return err
	}
	if a.LpVestingWindow, err = decoder.ReadUint64(bin.LittleEndian); err != nil {
		return err
	}
	if err = a.RewardFactor.UnmarshalWithDecoder(decoder); err != nil {
		return err
	}
	return readUint64s(decoder,
		&a.TotalLpShares,
		&a.SlotSnapshot,
		&a.BaseReservesSnapshot,
		&a.QuoteReservesSnapshot,
		&a.BaseReserves,
		&a.QuoteReserves,
		&a.CumulativeQuoteLpFees,
		&a.CumulativeQuoteProtocolFees,
	)
}

func (p LpPosition) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := p.RewardFactorSnapshot.MarshalWithEncoder(encoder); err != nil {
		return err
	}
	return writeUint64s(encoder,
		p.LpShares,
		p.WithdrawableLpShares,
		p.UncollectedFees,
		p.CollectedFees,
		p.PendingSharesToVest.DepositSlot,
		p.PendingSharesToVest.LpSharesToVest,
	)
}

func (p *LpPosition) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	if err := p.RewardFactorSnapshot.UnmarshalWithDecoder(decoder); err != nil {
		return err
	}
	return readUint64s(decoder,
		&p.LpShares,
		&p.WithdrawableLpShares,
		&p.UncollectedFees,
		&p.CollectedFees,
		&p.PendingSharesToVest.DepositSlot,
		&p.PendingSharesToVest.LpSharesToVest,
	)
}

func (s Side) MarshalWithEncoder(encoder *binary.Encoder) error {
	return encoder.WriteUint8(uint8(s))
}

func (s *Side) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	v, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	if v > uint8(Sell) {
		return fmt.Errorf("%w: %d", ErrInvalidSide, v)
	}
	*s = Side(v)
	return nil
}

// SwapType is a borsh enum: a variant byte followed by its two amounts.
func (s SwapType) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := encoder.WriteUint8(uint8(s.Kind)); err != nil {
		return err
	}
	switch s.Kind {
	case ExactIn:
		return writeUint64s(encoder, s.AmountIn, s.MinAmountOut)
	case ExactOut:
		return writeUint64s(encoder, s.AmountOut, s.MaxAmountIn)
	}
	return fmt.Errorf("%w: %d", ErrInvalidSwapType, s.Kind)
}

func (s *SwapType) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	v, err := decoder.ReadUint8()
	if err != nil {
		return err
	}
	*s = SwapType{Kind: SwapKind(v)}
	switch s.Kind {
	case ExactIn:
		return readUint64s(decoder, &s.AmountIn, &s.MinAmountOut)
	case ExactOut:
		return readUint64s(decoder, &s.AmountOut, &s.MaxAmountIn)
	}
	return fmt.Errorf("%w: %d", ErrInvalidSwapType, v)
}

func (r SwapResult) MarshalWithEncoder(encoder *binary.Encoder) error {
	if err := r.Side.MarshalWithEncoder(encoder); err != nil {
		return err
	}
	return writeUint64s(encoder,
		r.BaseAmountToTransfer,
		r.QuoteAmountToTransfer,
		r.BaseMatchedAsLimitOrder,
		r.QuoteMatchedAsLimitOrder,
		r.BaseMatchedAsSwap,
		r.QuoteMatchedAsSwap,
		r.FeeInQuote,
	)
}

func (r *SwapResult) UnmarshalWithDecoder(decoder *binary.Decoder) error {
	if err := r.Side.UnmarshalWithDecoder(decoder); err != nil {
		return err
	}
	return readUint64s(decoder,
		&r.BaseAmountToTransfer,
		&r.QuoteAmountToTransfer,
		&r.BaseMatchedAsLimitOrder,
		&r.QuoteMatchedAsLimitOrder,
		&r.BaseMatchedAsSwap,
		&r.QuoteMatchedAsSwap,
		&r.FeeInQuote,
	)
}
